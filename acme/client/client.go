// Package client provides a low-level ACME v2 client.
//
// A Client is built for one issuance session: construction resolves the
// server's directory and registers (or restores) the account, and the
// resulting client exposes the protocol operations for ordering and
// downloading a certificate. Every signed request draws its own fresh
// anti-replay nonce immediately before signing. The client never retries,
// polls or sleeps; callers re-invoke a failed step, which re-draws a fresh
// nonce and is therefore always safe with respect to nonce staleness.
package client

import (
	"context"
	"crypto"
	"fmt"
	"net/http"
	"net/mail"
	"net/url"
	"os"
	"strings"
	"sync"

	"github.com/go-logr/logr"

	"github.com/certmason/certmason/acme/resources"
	acmenet "github.com/certmason/certmason/net"
)

// Client interacts with a single ACME server on behalf of a single account.
//
// The directory is fetched once at construction and treated as immutable:
// every endpoint URL is used opaquely, exactly as the server provided it.
// The account ID ("kid") is likewise set exactly once, by registration or by
// restoring a saved account, and is carried in the protected header of every
// subsequent signed request.
//
// Methods are safe for concurrent use. Operations running in parallel each
// draw their own nonce; nonces are never shared between two signed calls.
type Client struct {
	// log records protocol steps. The zero logr.Logger discards everything.
	log logr.Logger
	// net performs HTTP requests to the ACME server.
	net *acmenet.ACMENet
	// directoryURL is the parsed URL the directory was fetched from.
	directoryURL *url.URL
	// directory is the server's endpoint map, resolved at construction.
	directory resources.Directory
	// account is the registered account: its key signs every request and
	// its ID is the JWS Key ID.
	account *resources.Account

	mu sync.Mutex
	// orders collects the URLs of orders created by this client.
	orders []string
}

// Config contains configuration options provided to NewClient.
type Config struct {
	// A fully qualified URL for the ACME server's directory resource. Must
	// include an HTTP/HTTPS protocol prefix. This field is mandatory.
	//
	// See https://tools.ietf.org/html/rfc8555#section-7.1.1
	DirectoryURL string
	// An optional file path to one or more PEM encoded CA certificates to be
	// used as trust roots for HTTPS requests to the ACME server. If empty
	// the default system roots are used. If you are using Pebble as the ACME
	// server, it should be the file path to the "test/certs/pebble.minica.pem"
	// file from the Pebble source directory.
	CACert string
	// An optional email address used as a "mailto:" contact address when the
	// account is registered. Only a single email address is supported.
	ContactEmail string
	// An optional file path for account persistence. When the file exists
	// a previously saved account (key and ID) is restored from it and no
	// registration takes place. Otherwise the freshly registered account is
	// saved to it.
	AccountPath string
	// An optional private key for the account. When nil a new ECDSA P-256
	// key is generated. Ignored when an account is restored from
	// AccountPath, which carries its own key.
	Key crypto.Signer
	// An optional logger recording client activity. The zero value discards
	// all output.
	Logger logr.Logger
	// An optional hook wrapping the HTTP transport, e.g. with metrics
	// instrumentation. See the metrics package.
	WrapTransport func(http.RoundTripper) http.RoundTripper
}

// normalize validates a Config.
func (conf *Config) normalize() error {
	// Clean up any junk whitespace that might have snuck in
	conf.DirectoryURL = strings.TrimSpace(conf.DirectoryURL)
	conf.ContactEmail = strings.TrimSpace(conf.ContactEmail)
	conf.AccountPath = strings.TrimSpace(conf.AccountPath)

	if conf.DirectoryURL == "" {
		return fmt.Errorf("DirectoryURL must not be empty")
	}

	if _, err := url.Parse(conf.DirectoryURL); err != nil {
		return fmt.Errorf("DirectoryURL invalid: %s", err.Error())
	}

	if conf.ContactEmail != "" {
		addr, err := mail.ParseAddress(conf.ContactEmail)
		if err != nil {
			return fmt.Errorf("ContactEmail is invalid: %s", err.Error())
		}
		conf.ContactEmail = addr.Address
	}

	return nil
}

// NewClient creates a Client from the given Config. Construction performs
// the session setup network calls: it fetches and validates the server's
// directory, then registers the account (drawing a nonce and issuing one
// signed request) unless a saved account is restored from Config.AccountPath.
// Any failure is fatal to construction and a nil Client is returned.
func NewClient(ctx context.Context, config Config) (*Client, error) {
	if err := config.normalize(); err != nil {
		return nil, err
	}

	net, err := acmenet.New(acmenet.Config{
		CABundle:      config.CACert,
		WrapTransport: config.WrapTransport,
	})
	if err != nil {
		return nil, fmt.Errorf("unable to create ACME net client: %w", err)
	}

	// NOTE: Its safe to throw away the returned err here because we check
	// that `url.Parse` will succeed in `config.normalize()` above.
	dirURL, _ := url.Parse(config.DirectoryURL)

	client := &Client{
		log:          config.Logger,
		net:          net,
		directoryURL: dirURL,
	}

	if err := client.resolveDirectory(ctx); err != nil {
		return nil, err
	}

	// If requested, try to restore an existing account from disk. A missing
	// file is not an error: the account is registered and saved below.
	if config.AccountPath != "" {
		acct, err := resources.RestoreAccount(config.AccountPath)
		if err != nil && !os.IsNotExist(err) {
			return nil, fmt.Errorf("error restoring account from %q: %w",
				config.AccountPath, err)
		}
		if err == nil {
			client.account = acct
			client.log.V(1).Info("restored account",
				"path", config.AccountPath, "kid", acct.ID, "contact", acct.Contact)
		}
	}

	if client.account == nil {
		var emails []string
		if config.ContactEmail != "" {
			emails = []string{config.ContactEmail}
		}
		acct, err := resources.NewAccount(emails, config.Key)
		if err != nil {
			return nil, err
		}
		client.account = acct
	}

	// A freshly created account, or a restored file predating registration,
	// has no ID yet. Register it with the server to obtain the kid.
	if client.account.ID == "" {
		if err := client.register(ctx, client.account); err != nil {
			return nil, err
		}
		if config.AccountPath != "" {
			if err := resources.SaveAccount(config.AccountPath, client.account); err != nil {
				return nil, fmt.Errorf("error saving account to %q: %w",
					config.AccountPath, err)
			}
			client.log.V(1).Info("saved account", "path", config.AccountPath)
		}
	}

	return client, nil
}

// Account returns the client's registered account. Callers must treat it as
// read-only.
func (c *Client) Account() *resources.Account {
	return c.account
}

// Directory returns the server's directory resource fetched at construction.
func (c *Client) Directory() resources.Directory {
	return c.directory
}

// Orders returns the URLs of the orders this client has created, oldest
// first.
func (c *Client) Orders() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string{}, c.orders...)
}

// OrderURL returns the URL of the i-th order created by this client.
func (c *Client) OrderURL(i int) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if i < 0 || i >= len(c.orders) {
		return "", fmt.Errorf("order index %d out of range, have %d orders", i, len(c.orders))
	}
	return c.orders[i], nil
}

func (c *Client) recordOrder(orderURL string) {
	if orderURL == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orders = append(c.orders, orderURL)
}
