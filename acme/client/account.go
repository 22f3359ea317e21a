package client

import (
	"context"
	"encoding/json"

	"github.com/certmason/certmason/acme"
	"github.com/certmason/certmason/acme/resources"
)

// register creates the given Account resource with the ACME server, storing
// the server-assigned account URL from the response's Location header as the
// Account's ID. A response without a Location header is an error even when
// the status code reports success: without the kid no subsequent request can
// be authenticated.
//
// The JWS for this request embeds the account's public key as a JWK because
// no Key ID exists yet.
//
// Important: registration always unconditionally agrees to the server's
// terms of service (it sends "termsOfServiceAgreed": true).
//
// For more information on account creation see
// https://tools.ietf.org/html/rfc8555#section-7.3
func (c *Client) register(ctx context.Context, acct *resources.Account) error {
	contact := acct.Contact
	if contact == nil {
		contact = []string{}
	}

	newAcctReq := struct {
		OnlyReturnExisting   bool     `json:"onlyReturnExisting"`
		TermsOfServiceAgreed bool     `json:"termsOfServiceAgreed"`
		Contact              []string `json:"contact"`
	}{
		OnlyReturnExisting:   false,
		TermsOfServiceAgreed: true,
		Contact:              contact,
	}

	reqBody, err := json.Marshal(&newAcctReq)
	if err != nil {
		return err
	}

	newAcctURL := c.directory.NewAccount
	resp, err := c.signAndPost(ctx, newAcctURL, reqBody, &SigningOptions{
		EmbedKey: true,
		Signer:   acct.Signer,
	})
	if err != nil {
		return err
	}

	locHeader := resp.Response.Header.Get("Location")
	if locHeader == "" {
		return &acme.ProtocolError{
			URL:    newAcctURL,
			Status: resp.Response.StatusCode,
			Reason: "registration response had no Location header",
		}
	}

	acct.ID = locHeader
	c.log.V(1).Info("registered account", "kid", acct.ID, "contact", acct.Contact)
	return nil
}
