// Package net provides common HTTP utilities for talking to an ACME server.
package net

import (
	"bytes"
	"context"
	"crypto/tls"
	"crypto/x509"
	"fmt"
	"io"
	"net/http"
	"net/http/httputil"
	"os"
	"runtime"
)

const (
	version       = "0.1.0"
	userAgentBase = "certmason"
	locale        = "en-us"
)

// Config controls construction of an ACMENet instance.
type Config struct {
	// An optional file path to one or more PEM encoded CA certificates that
	// should be used as trust roots for HTTPS requests to the ACME server.
	// If empty the default system roots are used. For example, if you are
	// using Pebble as the ACME server, it should be the file path to the
	// "test/certs/pebble.minica.pem" file from the Pebble source directory.
	CABundle string
	// An optional hook that wraps the underlying RoundTripper, e.g. to
	// instrument requests with metrics. It is applied after the TLS
	// configuration is built.
	WrapTransport func(http.RoundTripper) http.RoundTripper
}

// ACMENet performs HTTP requests to an ACME server, stamping each request
// with a User-Agent header and capturing request/response dumps for
// debugging.
type ACMENet struct {
	httpClient *http.Client
}

// New constructs an ACMENet from the given Config.
func New(cfg Config) (*ACMENet, error) {
	var caBundle *x509.CertPool
	if cfg.CABundle != "" {
		pemBundle, err := os.ReadFile(cfg.CABundle)
		if err != nil {
			return nil, err
		}

		caBundle = x509.NewCertPool()
		if ok := caBundle.AppendCertsFromPEM(pemBundle); !ok {
			return nil, fmt.Errorf("no CA certificates found in %q", cfg.CABundle)
		}
	}

	var transport http.RoundTripper = &http.Transport{
		TLSClientConfig: &tls.Config{
			RootCAs: caBundle,
		},
	}
	if cfg.WrapTransport != nil {
		transport = cfg.WrapTransport(transport)
	}

	return &ACMENet{
		httpClient: &http.Client{
			Transport: transport,
		},
	}, nil
}

// NetResponse holds the results from calling Do with an HTTP Request.
type NetResponse struct {
	// The HTTP Response object from making the request.
	Response *http.Response
	// The response body.
	RespBody []byte
	// The response dumped by httputil to a printable form.
	RespDump []byte
	// The request dumped by httputil to a printable form.
	ReqDump []byte
}

// Do performs an HTTP request, returning a pointer to a NetResponse instance
// or an error. User-Agent and Accept-Language headers are automatically added
// to the request. The body of the HTTP Response is read into the NetResponse
// and can not be read again.
func (c *ACMENet) Do(req *http.Request) (*NetResponse, error) {
	return c.httpRequest(req)
}

func (c *ACMENet) httpRequest(req *http.Request) (*NetResponse, error) {
	ua := fmt.Sprintf("%s %s (%s; %s)",
		userAgentBase, version, runtime.GOOS, runtime.GOARCH)
	req.Header.Set("User-Agent", ua)
	req.Header.Set("Accept-Language", locale)

	reqDump, err := httputil.DumpRequest(req, true)
	if err != nil {
		return nil, err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	respDump, err := httputil.DumpResponse(resp, true)
	if err != nil {
		return nil, err
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	return &NetResponse{
		Response: resp,
		RespBody: respBody,
		RespDump: respDump,
		ReqDump:  reqDump,
	}, nil
}

// PostRequest constructs a POST request to the given URL with the given
// JWS body. Returns an HTTP request or a non-nil error.
func (c *ACMENet) PostRequest(ctx context.Context, url string, body []byte) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewBuffer(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/jose+json")
	return req, nil
}

// PostURL POSTs the given URL with the given body. This is a wrapper
// combining PostRequest and Do.
func (c *ACMENet) PostURL(ctx context.Context, url string, body []byte) (*NetResponse, error) {
	req, err := c.PostRequest(ctx, url, body)
	if err != nil {
		return nil, err
	}

	return c.Do(req)
}

// GetRequest constructs a GET request to the given URL. Returns an HTTP
// request or a non-nil error.
func (c *ACMENet) GetRequest(ctx context.Context, url string) (*http.Request, error) {
	return http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
}

// GetURL GETs the given URL. This is a wrapper combining GetRequest and Do.
func (c *ACMENet) GetURL(ctx context.Context, url string) (*NetResponse, error) {
	req, err := c.GetRequest(ctx, url)
	if err != nil {
		return nil, err
	}
	return c.Do(req)
}
