package issue

import (
	"context"
	"crypto/ecdsa"
	"crypto/x509"
	"encoding/pem"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certmason/certmason/acme"
	"github.com/certmason/certmason/acme/client"
	"github.com/certmason/certmason/acmetest"
)

// fakeSolver records Present/CleanUp calls instead of serving anything. The
// test server validates any triggered challenge without connecting outward,
// so nothing real needs to be provisioned.
type fakeSolver struct {
	challType  string
	presentErr error

	mu        sync.Mutex
	presented []string
	cleaned   []string
}

func (s *fakeSolver) Type() string {
	return s.challType
}

func (s *fakeSolver) Present(_ context.Context, domain string, _ string, keyAuth string) error {
	if s.presentErr != nil {
		return s.presentErr
	}
	if keyAuth == "" {
		return fmt.Errorf("empty key authorization")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.presented = append(s.presented, domain)
	return nil
}

func (s *fakeSolver) CleanUp(_ context.Context, domain string, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cleaned = append(s.cleaned, domain)
	return nil
}

func newTestIssuer(t *testing.T, s *fakeSolver) *Issuer {
	t.Helper()

	srv, err := acmetest.New()
	require.NoError(t, err)
	t.Cleanup(srv.Close)

	c, err := client.NewClient(context.Background(), client.Config{
		DirectoryURL: srv.URL,
	})
	require.NoError(t, err)

	return &Issuer{
		Client:   c,
		Solver:   s,
		Interval: 10 * time.Millisecond,
	}
}

func TestIssue(t *testing.T) {
	s := &fakeSolver{challType: acme.CHALLENGE_HTTP_01}
	issuer := newTestIssuer(t, s)

	domains := []string{"example.com", "www.example.com"}
	bundle, err := issuer.Issue(context.Background(), Request{Domains: domains})
	require.NoError(t, err)

	require.NotNil(t, bundle.CertificateKey)
	assert.Equal(t, acme.STATUS_VALID, bundle.Order.Status)

	// One response per domain, provisioned in order and removed again.
	assert.Equal(t, domains, s.presented)
	assert.Equal(t, domains, s.cleaned)

	// The downloaded chain is a leaf covering the ordered domains plus the
	// issuer.
	block, rest := pem.Decode(bundle.CertificatePEM)
	require.NotNil(t, block)
	leaf, err := x509.ParseCertificate(block.Bytes)
	require.NoError(t, err)
	assert.ElementsMatch(t, domains, leaf.DNSNames)
	leafKey, ok := leaf.PublicKey.(*ecdsa.PublicKey)
	require.True(t, ok)
	assert.True(t, leafKey.Equal(bundle.CertificateKey.Public()),
		"certificate must be bound to the bundle key")

	issuerBlock, _ := pem.Decode(rest)
	require.NotNil(t, issuerBlock, "chain should include the issuing certificate")
}

func TestIssueDNS01(t *testing.T) {
	s := &fakeSolver{challType: acme.CHALLENGE_DNS_01}
	issuer := newTestIssuer(t, s)

	bundle, err := issuer.Issue(context.Background(), Request{Domains: []string{"example.com"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"example.com"}, s.presented)
	assert.NotEmpty(t, bundle.CertificatePEM)
}

func TestIssueNoMatchingChallenge(t *testing.T) {
	// The test server offers http-01 and dns-01 only.
	s := &fakeSolver{challType: acme.CHALLENGE_TLS_ALPN_01}
	issuer := newTestIssuer(t, s)

	_, err := issuer.Issue(context.Background(), Request{Domains: []string{"example.com"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), acme.CHALLENGE_TLS_ALPN_01)
	assert.Empty(t, s.presented)
	assert.Empty(t, s.cleaned)
}

func TestIssuePresentFailure(t *testing.T) {
	s := &fakeSolver{
		challType:  acme.CHALLENGE_HTTP_01,
		presentErr: fmt.Errorf("responder offline"),
	}
	issuer := newTestIssuer(t, s)

	_, err := issuer.Issue(context.Background(), Request{Domains: []string{"example.com"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "responder offline")
	// Nothing was provisioned, so nothing is cleaned up.
	assert.Empty(t, s.cleaned)
}

func TestIssueRejectsAccountKey(t *testing.T) {
	s := &fakeSolver{challType: acme.CHALLENGE_HTTP_01}
	issuer := newTestIssuer(t, s)

	_, err := issuer.Issue(context.Background(), Request{
		Domains:        []string{"example.com"},
		CertificateKey: issuer.Client.Account().Signer,
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "account key")
}

func TestIssueNoDomains(t *testing.T) {
	s := &fakeSolver{challType: acme.CHALLENGE_HTTP_01}
	issuer := newTestIssuer(t, s)

	_, err := issuer.Issue(context.Background(), Request{})
	assert.Error(t, err)
}
