package solver

import (
	"context"

	"github.com/certmason/certmason/acme"
)

type http01Solver struct {
	server *ChallengeServer
}

func (s http01Solver) Type() string {
	return acme.CHALLENGE_HTTP_01
}

// Present serves the key authorization at
// /.well-known/acme-challenge/<token> on the embedded HTTP responder.
func (s http01Solver) Present(_ context.Context, domain string, token string, keyAuth string) error {
	s.server.srv.AddHTTPOneChallenge(token, keyAuth)
	s.server.log.V(1).Info("installed http-01 response",
		"domain", domain, "token", token)
	return nil
}

func (s http01Solver) CleanUp(_ context.Context, domain string, token string) error {
	s.server.srv.DeleteHTTPOneChallenge(token)
	s.server.log.V(1).Info("removed http-01 response",
		"domain", domain, "token", token)
	return nil
}
