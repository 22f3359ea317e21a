package client

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/certmason/certmason/acme"
	"github.com/certmason/certmason/acme/resources"
)

// NewOrder asks the ACME server to create a new Order for the given domain
// names. One "dns" type identifier is built per domain, preserving the
// caller's order and cardinality: duplicates are passed through unchanged.
// The returned Order carries the URL from the response's Location header
// when the server provided one.
//
// For more information on Order creation see "Applying for Certificate
// Issuance" in RFC 8555:
// https://tools.ietf.org/html/rfc8555#section-7.4
func (c *Client) NewOrder(ctx context.Context, domains []string) (*resources.Order, error) {
	if len(domains) == 0 {
		return nil, fmt.Errorf("newOrder: no domains specified")
	}

	identifiers := make([]resources.Identifier, len(domains))
	for i, domain := range domains {
		identifiers[i] = resources.Identifier{
			Type:  acme.IDENTIFIER_TYPE_DNS,
			Value: domain,
		}
	}

	req := struct {
		Identifiers []resources.Identifier `json:"identifiers"`
	}{
		Identifiers: identifiers,
	}
	reqBody, err := json.Marshal(&req)
	if err != nil {
		return nil, err
	}

	newOrderURL := c.directory.NewOrder
	resp, err := c.signAndPost(ctx, newOrderURL, reqBody, nil)
	if err != nil {
		return nil, err
	}

	var order resources.Order
	if err := json.Unmarshal(resp.RespBody, &order); err != nil {
		return nil, &acme.DecodeError{URL: newOrderURL, Err: err}
	}
	order.URL = resp.Response.Header.Get("Location")
	c.recordOrder(order.URL)

	c.log.V(1).Info("created order",
		"url", order.URL, "status", order.Status, "domains", domains)
	return &order, nil
}

// FetchOrder refreshes an Order by its URL with a signed POST-as-GET.
// Fetching is required to observe server-side status transitions, e.g.
// "processing" becoming "valid" after a finalize request.
func (c *Client) FetchOrder(ctx context.Context, orderURL string) (*resources.Order, error) {
	if orderURL == "" {
		return nil, fmt.Errorf("fetchOrder: order URL must not be empty")
	}

	resp, err := c.postAsGet(ctx, orderURL)
	if err != nil {
		return nil, err
	}

	var order resources.Order
	if err := json.Unmarshal(resp.RespBody, &order); err != nil {
		return nil, &acme.DecodeError{URL: orderURL, Err: err}
	}
	order.URL = orderURL

	c.log.V(1).Info("fetched order", "url", orderURL, "status", order.Status)
	return &order, nil
}

// FetchAuthorization fetches the Authorization resource at the given URL
// with a signed POST-as-GET, decoding its identifier, status and challenge
// list.
//
// See https://tools.ietf.org/html/rfc8555#section-7.5
func (c *Client) FetchAuthorization(ctx context.Context, authzURL string) (*resources.Authorization, error) {
	if authzURL == "" {
		return nil, fmt.Errorf("fetchAuthorization: authorization URL must not be empty")
	}

	resp, err := c.postAsGet(ctx, authzURL)
	if err != nil {
		return nil, err
	}

	var authz resources.Authorization
	if err := json.Unmarshal(resp.RespBody, &authz); err != nil {
		return nil, &acme.DecodeError{URL: authzURL, Err: err}
	}
	authz.URL = authzURL

	c.log.V(1).Info("fetched authorization",
		"url", authzURL,
		"identifier", authz.Identifier.Value,
		"status", authz.Status,
		"challenges", len(authz.Challenges))
	return &authz, nil
}

// TriggerChallenge tells the ACME server to begin validating the challenge
// at the given URL by POSTing it an empty JSON object. The challenge
// response must already be provisioned (e.g. the HTTP-01 token served, the
// DNS-01 TXT record installed) before calling this.
//
// The domain is diagnostic only: it appears in log output and never on the
// wire.
//
// See https://tools.ietf.org/html/rfc8555#section-7.5.1
func (c *Client) TriggerChallenge(ctx context.Context, domain string, challengeURL string) (*resources.Challenge, error) {
	if challengeURL == "" {
		return nil, fmt.Errorf("triggerChallenge: challenge URL must not be empty")
	}

	resp, err := c.signAndPost(ctx, challengeURL, []byte("{}"), nil)
	if err != nil {
		return nil, err
	}

	var chall resources.Challenge
	if err := json.Unmarshal(resp.RespBody, &chall); err != nil {
		return nil, &acme.DecodeError{URL: challengeURL, Err: err}
	}

	c.log.V(1).Info("triggered challenge",
		"domain", domain, "url", challengeURL, "status", chall.Status)
	return &chall, nil
}

// FinalizeOrder submits the DER encoded certificate signing request to the
// Order's finalize URL. The CSR travels base64url encoded without padding,
// the only base64 variant ACME permits. The decoded response is the updated
// Order.
//
// See https://tools.ietf.org/html/rfc8555#section-7.4
func (c *Client) FinalizeOrder(ctx context.Context, finalizeURL string, csrDER []byte) (*resources.Order, error) {
	if finalizeURL == "" {
		return nil, fmt.Errorf("finalizeOrder: finalize URL must not be empty")
	}
	if len(csrDER) == 0 {
		return nil, fmt.Errorf("finalizeOrder: CSR must not be empty")
	}

	req := struct {
		CSR string `json:"csr"`
	}{
		CSR: base64.RawURLEncoding.EncodeToString(csrDER),
	}
	reqBody, err := json.Marshal(&req)
	if err != nil {
		return nil, err
	}

	resp, err := c.signAndPost(ctx, finalizeURL, reqBody, nil)
	if err != nil {
		return nil, err
	}

	var order resources.Order
	if err := json.Unmarshal(resp.RespBody, &order); err != nil {
		return nil, &acme.DecodeError{URL: finalizeURL, Err: err}
	}
	order.URL = resp.Response.Header.Get("Location")

	c.log.V(1).Info("finalized order",
		"url", order.URL, "status", order.Status)
	return &order, nil
}

// DownloadCertificate fetches the issued certificate chain from the given
// URL with a signed POST-as-GET and returns the response body unparsed (a
// PEM chain). Downloading does not change the server-side resource, so the
// call is safe to repeat; each invocation draws its own fresh nonce.
//
// See https://tools.ietf.org/html/rfc8555#section-7.4.2
func (c *Client) DownloadCertificate(ctx context.Context, certificateURL string) ([]byte, error) {
	if certificateURL == "" {
		return nil, fmt.Errorf("downloadCertificate: certificate URL must not be empty")
	}

	resp, err := c.postAsGet(ctx, certificateURL)
	if err != nil {
		return nil, err
	}

	c.log.V(1).Info("downloaded certificate",
		"url", certificateURL, "bytes", len(resp.RespBody))
	return resp.RespBody, nil
}
