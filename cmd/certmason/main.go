// certmason issues one certificate from an ACME server: it registers an
// account, orders the requested domains, answers challenges from an
// embedded response server, finalizes with a fresh key's CSR and writes
// the resulting PEM chain and key to disk.
package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	acmeclient "github.com/certmason/certmason/acme/client"
	"github.com/certmason/certmason/acme/keys"
	"github.com/certmason/certmason/cmd"
	"github.com/certmason/certmason/issue"
	"github.com/certmason/certmason/metrics"
	"github.com/certmason/certmason/solver"
)

const (
	DIRECTORY_DEFAULT = "https://acme-staging-v02.api.letsencrypt.org/directory"
	HTTP_PORT_DEFAULT = 5002
	TLS_PORT_DEFAULT  = 5001
	DNS_PORT_DEFAULT  = 5252
)

func main() {
	directory := flag.String(
		"directory",
		DIRECTORY_DEFAULT,
		"Directory URL for ACME server")

	caCert := flag.String(
		"ca",
		"",
		"CA certificate(s) for verifying ACME server HTTPS (default: system roots)")

	email := flag.String(
		"contact",
		"",
		"Optional contact email address for the registered ACME account")

	acctPath := flag.String(
		"account",
		"",
		"Optional JSON filepath to save/restore the registered ACME account to")

	domainsArg := flag.String(
		"domains",
		"",
		"Comma separated list of DNS identifiers to order a certificate for")

	challType := flag.String(
		"challenge",
		"http-01",
		"Challenge type to solve (http-01, dns-01 or tls-alpn-01)")

	httpPort := flag.Int(
		"httpPort",
		HTTP_PORT_DEFAULT,
		"HTTP-01 challenge server port")

	tlsPort := flag.Int(
		"tlsPort",
		TLS_PORT_DEFAULT,
		"TLS-ALPN-01 challenge server port")

	dnsPort := flag.Int(
		"dnsPort",
		DNS_PORT_DEFAULT,
		"DNS-01 challenge server port")

	certOut := flag.String(
		"certout",
		"cert.pem",
		"File path to write the issued PEM certificate chain to")

	keyOut := flag.String(
		"keyout",
		"key.pem",
		"File path to write the certificate key PEM to")

	metricsAddr := flag.String(
		"metricsAddr",
		"",
		"Optional listen address for a Prometheus /metrics endpoint")

	timeout := flag.Duration(
		"timeout",
		5*time.Minute,
		"Overall time budget for the issuance")

	verbose := flag.Bool(
		"verbose",
		false,
		"Log protocol step details")

	pebble := flag.Bool(
		"pebble",
		false,
		"Use Pebble defaults")

	flag.Parse()

	if *pebble {
		pebbleDirectory := "https://localhost:14000/dir"
		directory = &pebbleDirectory
		pebbleBaseDir := os.Getenv("GOPATH")
		pebbleCA := pebbleBaseDir + "/src/github.com/letsencrypt/pebble/test/certs/pebble.minica.pem"
		caCert = &pebbleCA
	}

	var domains []string
	for _, domain := range strings.Split(*domainsArg, ",") {
		if domain := strings.TrimSpace(domain); domain != "" {
			domains = append(domains, domain)
		}
	}
	if len(domains) == 0 {
		cmd.FailOnError(fmt.Errorf("no -domains provided"), "Nothing to issue")
	}

	log := cmd.NewLogger(*verbose)

	m := metrics.New(log)
	if *metricsAddr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", m.Handler())
		go func() {
			if err := http.ListenAndServe(*metricsAddr, mux); err != nil {
				log.Error(err, "metrics listener failed", "addr", *metricsAddr)
			}
		}()
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	client, err := acmeclient.NewClient(ctx, acmeclient.Config{
		DirectoryURL:  *directory,
		CACert:        *caCert,
		ContactEmail:  *email,
		AccountPath:   *acctPath,
		Logger:        log,
		WrapTransport: m.WrapTransport,
	})
	cmd.FailOnError(err, "Unable to create ACME client")

	challSrv, err := solver.New(solver.Config{
		HTTPPort: *httpPort,
		TLSPort:  *tlsPort,
		DNSPort:  *dnsPort,
		Log:      log,
	})
	cmd.FailOnError(err, "Unable to create challenge response server")
	challSrv.Run()
	defer challSrv.Shutdown()

	challSolver, err := challSrv.SolverFor(*challType)
	cmd.FailOnError(err, "Unable to select challenge solver")

	issuer := &issue.Issuer{
		Client: client,
		Solver: challSolver,
		Log:    log,
	}

	bundle, err := issuer.Issue(ctx, issue.Request{Domains: domains})
	cmd.FailOnError(err, "Issuance failed")

	keyPEM, err := keys.SignerToPEM(bundle.CertificateKey)
	cmd.FailOnError(err, "Unable to encode certificate key")
	cmd.FailOnError(os.WriteFile(*keyOut, []byte(keyPEM), 0600),
		"Unable to write certificate key")
	cmd.FailOnError(os.WriteFile(*certOut, bundle.CertificatePEM, 0644),
		"Unable to write certificate chain")

	log.Info("wrote certificate and key",
		"cert", *certOut, "key", *keyOut, "domains", domains)
}
