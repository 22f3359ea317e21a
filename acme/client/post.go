package client

import (
	"context"
	"encoding/json"

	"github.com/certmason/certmason/acme"
	acmenet "github.com/certmason/certmason/net"
)

// problemFromBody attempts to decode an RFC 7807 problem document from an
// error response body. It returns nil when the body is empty or does not
// carry a problem document; the caller's ProtocolError stands on its own in
// that case.
func problemFromBody(body []byte) *acme.Problem {
	if len(body) == 0 {
		return nil
	}
	var prob acme.Problem
	if err := json.Unmarshal(body, &prob); err != nil {
		return nil
	}
	if prob.Type == "" && prob.Detail == "" {
		return nil
	}
	return &prob
}

// signAndPost performs one complete signed exchange with the ACME server:
// it draws a fresh nonce, signs the payload with the given options and the
// nonce, POSTs the serialized JWS to the URL and checks for a successful
// status code. The nonce is fetched immediately before signing and consumed
// by exactly this one request.
//
// A nil opts signs with the account key and the account ID as the JWS Key
// ID, which is what every endpoint except newAccount expects.
func (c *Client) signAndPost(ctx context.Context, url string, payload []byte, opts *SigningOptions) (*acmenet.NetResponse, error) {
	nonce, err := c.Nonce(ctx)
	if err != nil {
		return nil, err
	}

	if opts == nil {
		opts = &SigningOptions{}
	}
	opts.Nonce = nonce

	signResult, err := c.Sign(url, payload, opts)
	if err != nil {
		return nil, &acme.SigningError{URL: url, Err: err}
	}

	resp, err := c.net.PostURL(ctx, url, signResult.SerializedJWS)
	if err != nil {
		return nil, &acme.TransportError{URL: url, Err: err}
	}

	if status := resp.Response.StatusCode; status < 200 || status >= 300 {
		return nil, &acme.ProtocolError{
			URL:     url,
			Status:  status,
			Reason:  "unexpected status code",
			Problem: problemFromBody(resp.RespBody),
		}
	}

	return resp, nil
}

// postAsGet issues a signed POST-as-GET request: a JWS with a zero-byte
// payload, used to fetch a resource that plain GET may not retrieve.
//
// See https://tools.ietf.org/html/rfc8555#section-6.3
func (c *Client) postAsGet(ctx context.Context, url string) (*acmenet.NetResponse, error) {
	return c.signAndPost(ctx, url, nil, &SigningOptions{PostAsGET: true})
}
