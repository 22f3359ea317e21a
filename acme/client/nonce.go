package client

import (
	"context"

	"github.com/certmason/certmason/acme"
)

// Nonce fetches a fresh anti-replay nonce from the ACME server's newNonce
// endpoint with an unsigned GET. Every signed request draws its own nonce
// immediately before signing; nonces are never cached, pooled or shared
// between requests, so a nonce can never go stale between fetch and use.
//
// A success response without a Replay-Nonce header yields an empty nonce
// rather than an error here. The server rejects the subsequent signed
// request with a badNonce problem and the failure surfaces there.
//
// See https://tools.ietf.org/html/rfc8555#section-7.2
func (c *Client) Nonce(ctx context.Context) (string, error) {
	nonceURL := c.directory.NewNonce

	resp, err := c.net.GetURL(ctx, nonceURL)
	if err != nil {
		return "", &acme.TransportError{URL: nonceURL, Err: err}
	}

	if status := resp.Response.StatusCode; status < 200 || status >= 300 {
		return "", &acme.ProtocolError{
			URL:     nonceURL,
			Status:  status,
			Reason:  "unexpected status code fetching nonce",
			Problem: problemFromBody(resp.RespBody),
		}
	}

	nonce := resp.Response.Header.Get(acme.REPLAY_NONCE_HEADER)
	if nonce == "" {
		c.log.V(1).Info("nonce response carried no replay-nonce header",
			"url", nonceURL)
	} else {
		c.log.V(1).Info("fetched nonce", "nonce", nonce)
	}
	return nonce, nil
}
