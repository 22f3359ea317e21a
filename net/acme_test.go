package net

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostURL(t *testing.T) {
	assert := assert.New(t)

	var gotContentType, gotUserAgent, gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotUserAgent = r.Header.Get("User-Agent")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	net, err := New(Config{})
	require.NoError(t, err)

	resp, err := net.PostURL(context.Background(), srv.URL, []byte(`{"payload":"x"}`))
	require.NoError(t, err)

	assert.Equal("application/jose+json", gotContentType)
	assert.True(strings.HasPrefix(gotUserAgent, userAgentBase))
	assert.Equal(`{"payload":"x"}`, gotBody)
	assert.Equal(http.StatusOK, resp.Response.StatusCode)
	assert.Equal(`{"ok":true}`, string(resp.RespBody))
	assert.NotEmpty(resp.ReqDump)
	assert.NotEmpty(resp.RespDump)
}

func TestGetURLContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	net, err := New(Config{})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = net.GetURL(ctx, srv.URL)
	assert.Error(t, err)
}

func TestWrapTransport(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	var wrapped bool
	net, err := New(Config{
		WrapTransport: func(rt http.RoundTripper) http.RoundTripper {
			return roundTripperFunc(func(req *http.Request) (*http.Response, error) {
				wrapped = true
				return rt.RoundTrip(req)
			})
		},
	})
	require.NoError(t, err)

	_, err = net.GetURL(context.Background(), srv.URL)
	require.NoError(t, err)
	assert.True(t, wrapped)
}

func TestNewBadCABundle(t *testing.T) {
	_, err := New(Config{CABundle: "/does/not/exist.pem"})
	assert.Error(t, err)
}

type roundTripperFunc func(*http.Request) (*http.Response, error)

func (f roundTripperFunc) RoundTrip(req *http.Request) (*http.Response, error) {
	return f(req)
}
