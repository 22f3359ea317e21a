// Package shell provides an interactive command shell for driving an ACME
// issuance session by hand: creating orders, inspecting authorizations,
// solving challenges, finalizing with a CSR and downloading the
// certificate.
package shell

import (
	"context"
	"log"
	"os"

	"github.com/abiosoft/ishell"
	"github.com/abiosoft/readline"

	acmeclient "github.com/certmason/certmason/acme/client"
	acmecmd "github.com/certmason/certmason/cmd"
	"github.com/certmason/certmason/solver"
)

// Options configures an ACMEShell. This includes all of the
// acmeclient.Config options in addition to challenge response ports for
// HTTP-01, TLS-ALPN-01 and DNS-01 challenges.
type Options struct {
	acmeclient.Config
	// Port number the ACME server validates HTTP-01 challenges over.
	HTTPPort int
	// Port number the ACME server validates TLS-ALPN-01 challenges over.
	TLSPort int
	// Port number the ACME server validates DNS-01 challenges over.
	DNSPort int
}

// ACMEShell is an ishell.Shell instance tailored for ACME. At its core an
// ACMEShell is an acme/client.Client with an associated
// solver.ChallengeServer, both stored in the shell for commands to access.
type ACMEShell struct {
	*ishell.Shell
}

// NewACMEShell builds the shell, the embedded challenge response server and
// the ACME client. Client construction performs the session setup calls
// against the configured directory; any failure there is fatal. The
// challenge server is not started until Run is called.
func NewACMEShell(opts *Options) *ACMEShell {
	shell := ishell.NewWithConfig(&readline.Config{
		Prompt: BasePrompt,
	})

	challSrv, err := solver.New(solver.Config{
		HTTPPort:  opts.HTTPPort,
		TLSPort:   opts.TLSPort,
		DNSPort:   opts.DNSPort,
		ServerLog: log.New(os.Stdout, "challRespSrv: ", log.Ldate|log.Ltime),
	})
	acmecmd.FailOnError(err, "Unable to create challenge response server")
	shell.Set(challSrvKey, challSrv)

	client, err := acmeclient.NewClient(context.Background(), opts.Config)
	acmecmd.FailOnError(err, "Unable to create ACME client")
	shell.Set(clientKey, client)

	for _, cmd := range commands {
		shell.AddCmd(cmd)
	}

	return &ACMEShell{
		Shell: shell,
	}
}

// Run starts the ACMEShell, dropping into an interactive session that
// blocks on user input until it is time to exit. The challenge response
// server is started before the shell and shut down after the session ends.
func (shell *ACMEShell) Run() {
	challSrv := getChallengeServer(shell)
	challSrv.Run()

	shell.Println("Welcome to certmason shell")
	shell.Shell.Run()
	shell.Println("Goodbye!")
	challSrv.Shutdown()
}
