// Package solver automates ACME challenge responses.
//
// A Solver provisions the response for one challenge type before the client
// asks the ACME server to validate it, and removes the response afterwards.
// The solvers in this package install responses into an embedded
// challtestsrv instance serving HTTP-01, DNS-01 and TLS-ALPN-01 responses.
package solver

import "context"

// Solver provisions and removes the response for one ACME challenge type.
type Solver interface {
	// Type returns the challenge type this solver answers ("http-01",
	// "dns-01" or "tls-alpn-01").
	Type() string
	// Present provisions the response for the given challenge before the
	// server validates it. The keyAuth is the key authorization computed
	// from the challenge token and the account key's JWK thumbprint.
	Present(ctx context.Context, domain string, token string, keyAuth string) error
	// CleanUp removes a response provisioned by Present.
	CleanUp(ctx context.Context, domain string, token string) error
}
