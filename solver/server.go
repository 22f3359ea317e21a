package solver

import (
	"fmt"
	"io"
	"log"

	"github.com/go-logr/logr"
	"github.com/letsencrypt/challtestsrv"

	"github.com/certmason/certmason/acme"
)

// Config controls construction of a ChallengeServer.
type Config struct {
	// Port number the ACME server validates HTTP-01 challenges over.
	HTTPPort int
	// Port number the ACME server validates TLS-ALPN-01 challenges over.
	TLSPort int
	// Port number the ACME server validates DNS-01 challenges over.
	DNSPort int
	// An optional logger recording solver activity. The zero value discards
	// all output.
	Log logr.Logger
	// An optional stdlib logger handed to the embedded challtestsrv
	// instance, which logs through nothing else. If nil its output is
	// discarded.
	ServerLog *log.Logger
}

// ChallengeServer runs embedded HTTP-01, TLS-ALPN-01 and DNS-01 responders
// and hands out Solvers that install challenge responses into them.
type ChallengeServer struct {
	log     logr.Logger
	srv     *challtestsrv.ChallSrv
	dnsAddr string
}

// New creates a ChallengeServer with responders bound to the configured
// ports. The responders are not started until Run is called.
func New(cfg Config) (*ChallengeServer, error) {
	serverLog := cfg.ServerLog
	if serverLog == nil {
		serverLog = log.New(io.Discard, "", 0)
	}

	srv, err := challtestsrv.New(challtestsrv.Config{
		HTTPOneAddrs:    []string{fmt.Sprintf(":%d", cfg.HTTPPort)},
		TLSALPNOneAddrs: []string{fmt.Sprintf(":%d", cfg.TLSPort)},
		DNSOneAddrs:     []string{fmt.Sprintf(":%d", cfg.DNSPort)},
		Log:             serverLog,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create challenge response server: %w", err)
	}

	return &ChallengeServer{
		log:     cfg.Log,
		srv:     srv,
		dnsAddr: fmt.Sprintf("127.0.0.1:%d", cfg.DNSPort),
	}, nil
}

// Run starts the responders in the background.
func (s *ChallengeServer) Run() {
	go s.srv.Run()
	s.log.V(1).Info("challenge response server started")
}

// Shutdown stops the responders.
func (s *ChallengeServer) Shutdown() {
	s.srv.Shutdown()
	s.log.V(1).Info("challenge response server stopped")
}

// SetDefaultIPv4 sets the IP address the embedded DNS responder answers A
// queries with, so that an ACME server resolving the ordered names reaches
// the HTTP-01/TLS-ALPN-01 responders.
func (s *ChallengeServer) SetDefaultIPv4(addr string) {
	s.srv.SetDefaultDNSIPv4(addr)
}

// HTTP01 returns a Solver answering http-01 challenges from the embedded
// HTTP responder.
func (s *ChallengeServer) HTTP01() Solver {
	return http01Solver{server: s}
}

// DNS01 returns a Solver answering dns-01 challenges from the embedded DNS
// responder.
func (s *ChallengeServer) DNS01() Solver {
	return dns01Solver{server: s}
}

// TLSALPN01 returns a Solver answering tls-alpn-01 challenges from the
// embedded TLS responder.
func (s *ChallengeServer) TLSALPN01() Solver {
	return tlsalpn01Solver{server: s}
}

// SolverFor returns the Solver for the given challenge type.
func (s *ChallengeServer) SolverFor(challType string) (Solver, error) {
	switch challType {
	case acme.CHALLENGE_HTTP_01:
		return s.HTTP01(), nil
	case acme.CHALLENGE_DNS_01:
		return s.DNS01(), nil
	case acme.CHALLENGE_TLS_ALPN_01:
		return s.TLSALPN01(), nil
	}
	return nil, fmt.Errorf("no solver for challenge type %q", challType)
}
