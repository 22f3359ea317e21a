package client

import (
	"context"
	"encoding/json"

	"github.com/certmason/certmason/acme"
	"github.com/certmason/certmason/acme/resources"
)

// resolveDirectory fetches the server's directory resource with an unsigned
// GET, decodes it and checks the endpoints the client depends on are
// present. It runs once during construction; the directory never changes for
// the lifetime of the client.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.1
func (c *Client) resolveDirectory(ctx context.Context) error {
	dirURL := c.directoryURL.String()

	resp, err := c.net.GetURL(ctx, dirURL)
	if err != nil {
		return &acme.TransportError{URL: dirURL, Err: err}
	}

	if status := resp.Response.StatusCode; status < 200 || status >= 300 {
		return &acme.ProtocolError{
			URL:     dirURL,
			Status:  status,
			Reason:  "unexpected status code fetching directory",
			Problem: problemFromBody(resp.RespBody),
		}
	}

	var directory resources.Directory
	if err := json.Unmarshal(resp.RespBody, &directory); err != nil {
		return &acme.DecodeError{URL: dirURL, Err: err}
	}

	// A directory that decodes but lacks a required endpoint is as useless
	// as one that doesn't decode at all.
	if err := directory.Validate(); err != nil {
		return &acme.DecodeError{URL: dirURL, Err: err}
	}

	c.directory = directory
	c.log.V(1).Info("resolved directory",
		"url", dirURL,
		"newNonce", directory.NewNonce,
		"newAccount", directory.NewAccount,
		"newOrder", directory.NewOrder)
	return nil
}
