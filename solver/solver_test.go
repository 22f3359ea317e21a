package solver

import (
	"context"
	"fmt"
	"io"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certmason/certmason/acme"
)

// freePort asks the kernel for an unused port and releases it for the
// challenge server to re-bind, so concurrent test runs don't collide.
func freePort(t *testing.T) int {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	port := l.Addr().(*net.TCPAddr).Port
	require.NoError(t, l.Close())
	return port
}

func newTestChallengeServer(t *testing.T) (*ChallengeServer, int) {
	t.Helper()

	httpPort := freePort(t)
	srv, err := New(Config{
		HTTPPort: httpPort,
		TLSPort:  freePort(t),
		DNSPort:  freePort(t),
	})
	require.NoError(t, err)

	srv.Run()
	t.Cleanup(srv.Shutdown)

	// Run starts the responders in the background. Wait for the HTTP
	// responder to accept connections before the test talks to any of them.
	deadline := time.Now().Add(5 * time.Second)
	for {
		resp, err := http.Get(fmt.Sprintf("http://127.0.0.1:%d/", httpPort))
		if err == nil {
			resp.Body.Close()
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("challenge server did not start: %s", err)
		}
		time.Sleep(50 * time.Millisecond)
	}
	return srv, httpPort
}

func TestHTTP01Solver(t *testing.T) {
	srv, httpPort := newTestChallengeServer(t)
	ctx := context.Background()

	s := srv.HTTP01()
	assert.Equal(t, acme.CHALLENGE_HTTP_01, s.Type())

	token := "http-test-token"
	keyAuth := token + ".thumbprint"
	require.NoError(t, s.Present(ctx, "example.com", token, keyAuth))
	defer func() {
		require.NoError(t, s.CleanUp(ctx, "example.com", token))
	}()

	resp, err := http.Get(fmt.Sprintf(
		"http://127.0.0.1:%d/.well-known/acme-challenge/%s", httpPort, token))
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, keyAuth, string(body))
}

func TestDNS01Solver(t *testing.T) {
	srv, _ := newTestChallengeServer(t)
	ctx := context.Background()

	s := srv.DNS01()
	assert.Equal(t, acme.CHALLENGE_DNS_01, s.Type())

	token := "dns-test-token"
	keyAuth := token + ".thumbprint"

	// Present self-checks the installed record against the embedded DNS
	// responder, so success here proves the record resolves with the
	// expected digest.
	require.NoError(t, s.Present(ctx, "example.com", token, keyAuth))

	// The responder serves stored content verbatim, so the record installed
	// must be the digest of the key authorization, never the raw value.
	records := srv.srv.GetDNSOneChallenge(dns01Prefix + "example.com.")
	require.NotEmpty(t, records)
	assert.Contains(t, records, dns01TXTDigest(keyAuth))
	assert.NotContains(t, records, keyAuth)

	assert.NoError(t, s.CleanUp(ctx, "example.com", token))
}

func TestDNS01TXTDigest(t *testing.T) {
	// Value computed with the digest rule of RFC 8555 Section 8.4:
	// base64url(SHA-256(keyAuth)), no padding.
	digest := dns01TXTDigest("token.thumbprint")
	assert.NotContains(t, digest, "=")
	assert.Len(t, digest, 43)
}

func TestTLSALPN01Solver(t *testing.T) {
	srv, _ := newTestChallengeServer(t)
	ctx := context.Background()

	s := srv.TLSALPN01()
	assert.Equal(t, acme.CHALLENGE_TLS_ALPN_01, s.Type())

	require.NoError(t, s.Present(ctx, "example.com", "token", "token.thumbprint"))
	assert.NoError(t, s.CleanUp(ctx, "example.com", "token"))
}

func TestSolverFor(t *testing.T) {
	srv, _ := newTestChallengeServer(t)

	for _, challType := range []string{
		acme.CHALLENGE_HTTP_01,
		acme.CHALLENGE_DNS_01,
		acme.CHALLENGE_TLS_ALPN_01,
	} {
		s, err := srv.SolverFor(challType)
		require.NoError(t, err)
		assert.Equal(t, challType, s.Type())
	}

	_, err := srv.SolverFor("tls-sni-02")
	assert.Error(t, err)
}
