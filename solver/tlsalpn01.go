package solver

import (
	"context"

	"github.com/certmason/certmason/acme"
)

type tlsalpn01Solver struct {
	server *ChallengeServer
}

func (s tlsalpn01Solver) Type() string {
	return acme.CHALLENGE_TLS_ALPN_01
}

// Present has the embedded TLS responder serve a self-signed certificate
// carrying the acmeIdentifier extension for the domain.
//
// See RFC 8737.
func (s tlsalpn01Solver) Present(_ context.Context, domain string, token string, keyAuth string) error {
	s.server.srv.AddTLSALPNChallenge(domain, keyAuth)
	s.server.log.V(1).Info("installed tls-alpn-01 response",
		"domain", domain, "token", token)
	return nil
}

func (s tlsalpn01Solver) CleanUp(_ context.Context, domain string, _ string) error {
	s.server.srv.DeleteTLSALPNChallenge(domain)
	s.server.log.V(1).Info("removed tls-alpn-01 response",
		"domain", domain)
	return nil
}
