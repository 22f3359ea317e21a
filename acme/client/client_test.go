package client_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/certmason/certmason/acme"
	"github.com/certmason/certmason/acme/client"
	"github.com/certmason/certmason/acme/keys"
	"github.com/certmason/certmason/acme/resources"
	"github.com/certmason/certmason/acmetest"
)

func newTestServer(t *testing.T) *acmetest.Server {
	t.Helper()
	srv, err := acmetest.New()
	require.NoError(t, err)
	t.Cleanup(srv.Close)
	return srv
}

func newTestClient(t *testing.T, srv *acmetest.Server) *client.Client {
	t.Helper()
	c, err := client.NewClient(context.Background(), client.Config{
		DirectoryURL: srv.URL,
	})
	require.NoError(t, err)
	return c
}

// readyOrder drives a fresh order through its authorizations until the
// server reports it ready to be finalized.
func readyOrder(t *testing.T, c *client.Client, domains []string) *resources.Order {
	t.Helper()
	ctx := context.Background()

	order, err := c.NewOrder(ctx, domains)
	require.NoError(t, err)
	require.Equal(t, acme.STATUS_PENDING, order.Status)

	for _, authzURL := range order.Authorizations {
		authz, err := c.FetchAuthorization(ctx, authzURL)
		require.NoError(t, err)
		require.NotEmpty(t, authz.Challenges)

		chall, err := c.TriggerChallenge(ctx, authz.Identifier.Value, authz.Challenges[0].URL)
		require.NoError(t, err)
		require.Equal(t, acme.STATUS_VALID, chall.Status)
	}

	order, err = c.FetchOrder(ctx, order.URL)
	require.NoError(t, err)
	require.Equal(t, acme.STATUS_READY, order.Status)
	return order
}

func TestNewClient(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv)

	assert.NotEmpty(t, c.Account().ID)
	assert.True(t, strings.HasPrefix(c.Account().ID, srv.URL[:len(srv.URL)-len("/dir")]+"/acct/"),
		"account ID %q should be an account URL on the test server", c.Account().ID)
	assert.NoError(t, c.Directory().Validate())
}

func TestNewClientContactEmail(t *testing.T) {
	srv := newTestServer(t)

	c, err := client.NewClient(context.Background(), client.Config{
		DirectoryURL: srv.URL,
		ContactEmail: "admin@example.com",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"mailto:admin@example.com"}, c.Account().Contact)

	_, err = client.NewClient(context.Background(), client.Config{
		DirectoryURL: srv.URL,
		ContactEmail: "not an email",
	})
	assert.Error(t, err)
}

func TestNewClientRegistrationMissingLocation(t *testing.T) {
	srv := newTestServer(t)
	srv.SetDropLocation(true)

	_, err := client.NewClient(context.Background(), client.Config{
		DirectoryURL: srv.URL,
	})
	require.Error(t, err)

	var protoErr *acme.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Contains(t, protoErr.Reason, "Location")
	assert.Equal(t, http.StatusCreated, protoErr.Status)
}

func TestNewClientDirectoryFailures(t *testing.T) {
	testCases := []struct {
		name      string
		handler   http.HandlerFunc
		wantProto bool
	}{
		{
			name: "non-2xx status",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantProto: true,
		},
		{
			name: "2xx with non-JSON body",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte("<html>not a directory</html>"))
			},
		},
		{
			name: "valid JSON missing a required endpoint",
			handler: func(w http.ResponseWriter, r *http.Request) {
				_, _ = w.Write([]byte(`{"newNonce":"https://ca/nonce","newAccount":"https://ca/acct"}`))
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			ts := httptest.NewServer(tc.handler)
			defer ts.Close()

			_, err := client.NewClient(context.Background(), client.Config{
				DirectoryURL: ts.URL,
			})
			require.Error(t, err)
			if tc.wantProto {
				var protoErr *acme.ProtocolError
				assert.ErrorAs(t, err, &protoErr)
			} else {
				var decodeErr *acme.DecodeError
				assert.ErrorAs(t, err, &decodeErr)
			}
		})
	}
}

func TestNewOrderIdentifiers(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv)
	ctx := context.Background()

	testCases := []struct {
		name    string
		domains []string
	}{
		{
			name:    "two domains",
			domains: []string{"example.com", "www.example.com"},
		},
		{
			name:    "single domain",
			domains: []string{"example.com"},
		},
		{
			name:    "duplicates pass through unchanged",
			domains: []string{"example.com", "example.com"},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			order, err := c.NewOrder(ctx, tc.domains)
			require.NoError(t, err)

			require.Len(t, order.Identifiers, len(tc.domains))
			for i, domain := range tc.domains {
				assert.Equal(t, acme.IDENTIFIER_TYPE_DNS, order.Identifiers[i].Type)
				assert.Equal(t, domain, order.Identifiers[i].Value)
			}
			assert.NotEmpty(t, order.URL)
			assert.NotEmpty(t, order.Finalize)
			assert.Len(t, order.Authorizations, len(tc.domains))
		})
	}
}

func TestNewOrderNoDomains(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv)

	_, err := c.NewOrder(context.Background(), nil)
	assert.Error(t, err)
}

func TestFetchAuthorization(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv)
	ctx := context.Background()

	order, err := c.NewOrder(ctx, []string{"example.com"})
	require.NoError(t, err)
	require.Len(t, order.Authorizations, 1)

	authz, err := c.FetchAuthorization(ctx, order.Authorizations[0])
	require.NoError(t, err)

	assert.Equal(t, order.Authorizations[0], authz.URL)
	assert.Equal(t, acme.STATUS_PENDING, authz.Status)
	assert.Equal(t, acme.IDENTIFIER_TYPE_DNS, authz.Identifier.Type)
	assert.Equal(t, "example.com", authz.Identifier.Value)
	require.NotEmpty(t, authz.Challenges)
	for _, chall := range authz.Challenges {
		assert.NotEmpty(t, chall.Type)
		assert.NotEmpty(t, chall.URL)
		assert.NotEmpty(t, chall.Token)
	}
}

func TestNonceReturnsHeaderValue(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv)

	// The nonce handed back is exactly the Replay-Nonce header the server
	// sent, not a derived or cached value.
	nonce, err := c.Nonce(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, nonce)
	assert.Equal(t, srv.LastNonce(), nonce)

	// Each call draws a fresh nonce.
	next, err := c.Nonce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, srv.LastNonce(), next)
	assert.NotEqual(t, nonce, next)
}

func TestNonceMissingHeaderTolerated(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv)
	ctx := context.Background()

	srv.SetDropNonceHeader(true)

	// A missing Replay-Nonce header is not an error at the nonce fetch.
	nonce, err := c.Nonce(ctx)
	require.NoError(t, err)
	assert.Equal(t, "", nonce)

	// The failure surfaces on the next signed call as the server's badNonce
	// rejection.
	_, err = c.NewOrder(ctx, []string{"example.com"})
	require.Error(t, err)
	var protoErr *acme.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	require.NotNil(t, protoErr.Problem)
	assert.Contains(t, protoErr.Problem.Type, "badNonce")

	// Re-invoking the step after the fault clears draws a fresh nonce and
	// succeeds.
	srv.SetDropNonceHeader(false)
	_, err = c.NewOrder(ctx, []string{"example.com"})
	assert.NoError(t, err)
}

func TestNonceEndpointFailure(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv)
	ctx := context.Background()

	srv.SetFailNonce(true)

	_, err := c.Nonce(ctx)
	require.Error(t, err)
	var protoErr *acme.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, http.StatusInternalServerError, protoErr.Status)

	// Every operation draws a nonce first, so each fails the same way and
	// no client state is harmed.
	_, err = c.NewOrder(ctx, []string{"example.com"})
	assert.ErrorAs(t, err, &protoErr)

	srv.SetFailNonce(false)
	_, err = c.NewOrder(ctx, []string{"example.com"})
	assert.NoError(t, err)
}

func TestFinalizeOrderCSREncoding(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv)
	ctx := context.Background()

	order := readyOrder(t, c, []string{"example.com", "www.example.com"})

	certKey, err := keys.NewSigner("ecdsa")
	require.NoError(t, err)
	csr, err := keys.CSR("", []string{"example.com", "www.example.com"}, certKey)
	require.NoError(t, err)

	finalized, err := c.FinalizeOrder(ctx, order.Finalize, csr.DER)
	require.NoError(t, err)
	assert.Equal(t, acme.STATUS_VALID, finalized.Status)
	assert.NotEmpty(t, finalized.Certificate)

	// The CSR travels base64url encoded with no padding.
	wire := srv.LastCSR()
	require.NotEmpty(t, wire)
	assert.NotContains(t, wire, "+")
	assert.NotContains(t, wire, "/")
	assert.NotContains(t, wire, "=")
}

func TestFinalizeOrderNotReady(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv)
	ctx := context.Background()

	order, err := c.NewOrder(ctx, []string{"example.com"})
	require.NoError(t, err)

	certKey, err := keys.NewSigner("ecdsa")
	require.NoError(t, err)
	csr, err := keys.CSR("", []string{"example.com"}, certKey)
	require.NoError(t, err)

	// No authorization was completed, so the server refuses to finalize.
	_, err = c.FinalizeOrder(ctx, order.Finalize, csr.DER)
	require.Error(t, err)
	var protoErr *acme.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	require.NotNil(t, protoErr.Problem)
	assert.Contains(t, protoErr.Problem.Type, "orderNotReady")
}

func TestDownloadCertificateIdempotent(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv)
	ctx := context.Background()

	order := readyOrder(t, c, []string{"example.com"})

	certKey, err := keys.NewSigner("ecdsa")
	require.NoError(t, err)
	csr, err := keys.CSR("", []string{"example.com"}, certKey)
	require.NoError(t, err)

	finalized, err := c.FinalizeOrder(ctx, order.Finalize, csr.DER)
	require.NoError(t, err)
	require.NotEmpty(t, finalized.Certificate)

	noncesBefore := srv.NoncesIssued()

	first, err := c.DownloadCertificate(ctx, finalized.Certificate)
	require.NoError(t, err)
	second, err := c.DownloadCertificate(ctx, finalized.Certificate)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Contains(t, string(first), "BEGIN CERTIFICATE")
	// Each download independently draws its own nonce.
	assert.Equal(t, noncesBefore+2, srv.NoncesIssued())
}

func TestOrdersRecorded(t *testing.T) {
	srv := newTestServer(t)
	c := newTestClient(t, srv)
	ctx := context.Background()

	first, err := c.NewOrder(ctx, []string{"a.example.com"})
	require.NoError(t, err)
	second, err := c.NewOrder(ctx, []string{"b.example.com"})
	require.NoError(t, err)

	assert.Equal(t, []string{first.URL, second.URL}, c.Orders())

	url, err := c.OrderURL(1)
	require.NoError(t, err)
	assert.Equal(t, second.URL, url)

	_, err = c.OrderURL(2)
	assert.Error(t, err)
}
