// Package issue drives a complete certificate issuance against an ACME
// server: create an order, prove control of each identifier, finalize with
// a CSR and download the chain.
//
// All waiting lives here. The underlying client performs single protocol
// steps and never retries or sleeps; the Issuer re-fetches pending
// resources on a fixed interval until the server reports them valid or
// invalid, honoring the caller's context throughout.
package issue

import (
	"context"
	"crypto"
	"fmt"
	"strings"
	"time"

	"github.com/go-logr/logr"

	"github.com/certmason/certmason/acme"
	"github.com/certmason/certmason/acme/client"
	"github.com/certmason/certmason/acme/keys"
	"github.com/certmason/certmason/acme/resources"
	"github.com/certmason/certmason/solver"
)

const (
	defaultInterval = 500 * time.Millisecond
	defaultMaxPolls = 20
)

// Issuer runs issuance sessions with one client and one challenge solver.
type Issuer struct {
	// Client performs the ACME protocol steps. Required.
	Client *client.Client
	// Solver provisions challenge responses. Its Type selects which of the
	// server's offered challenges is attempted. Required.
	Solver solver.Solver
	// Interval between polls of a pending resource. Defaults to 500ms.
	Interval time.Duration
	// MaxPolls bounds how often a pending resource is re-fetched before
	// issuance gives up. Defaults to 20.
	MaxPolls int
	// Log records issuance progress. The zero value discards everything.
	Log logr.Logger
}

// Request describes one certificate to issue.
type Request struct {
	// Domains to include in the certificate, in order. Required.
	Domains []string
	// CommonName for the CSR subject. Defaults to the first domain.
	CommonName string
	// CertificateKey signs the CSR and is the key the certificate is bound
	// to. It must not be the account key. When nil a fresh ECDSA P-256 key
	// is generated.
	CertificateKey crypto.Signer
}

// Bundle is the outcome of a successful issuance.
type Bundle struct {
	// CertificatePEM is the PEM chain exactly as the server served it.
	CertificatePEM []byte
	// CertificateKey is the private key the certificate is bound to.
	CertificateKey crypto.Signer
	// Order is the final state of the order the certificate was issued for.
	Order *resources.Order
}

// Issue runs one issuance session for the given request.
func (i *Issuer) Issue(ctx context.Context, req Request) (*Bundle, error) {
	if i.Client == nil {
		return nil, fmt.Errorf("issue: Client must not be nil")
	}
	if i.Solver == nil {
		return nil, fmt.Errorf("issue: Solver must not be nil")
	}
	if len(req.Domains) == 0 {
		return nil, fmt.Errorf("issue: no domains specified")
	}

	certKey := req.CertificateKey
	if certKey == nil {
		var err error
		certKey, err = keys.NewSigner("ecdsa")
		if err != nil {
			return nil, fmt.Errorf("issue: unable to generate certificate key: %w", err)
		}
	}
	// RFC 8555 Section 11.1: the certificate key must differ from the
	// account key.
	if certKey == i.Client.Account().Signer {
		return nil, fmt.Errorf("issue: certificate key must not be the account key")
	}

	order, err := i.Client.NewOrder(ctx, req.Domains)
	if err != nil {
		return nil, err
	}
	i.Log.Info("created order", "url", order.URL, "domains", req.Domains)

	for _, authzURL := range order.Authorizations {
		if err := i.authorize(ctx, authzURL); err != nil {
			return nil, err
		}
	}

	csr, err := keys.CSR(req.CommonName, req.Domains, certKey)
	if err != nil {
		return nil, fmt.Errorf("issue: unable to create CSR: %w", err)
	}

	finalized, err := i.Client.FinalizeOrder(ctx, order.Finalize, csr.DER)
	if err != nil {
		return nil, err
	}
	orderURL := finalized.URL
	if orderURL == "" {
		orderURL = order.URL
	}

	final, err := i.awaitOrder(ctx, orderURL, finalized)
	if err != nil {
		return nil, err
	}

	chain, err := i.Client.DownloadCertificate(ctx, final.Certificate)
	if err != nil {
		return nil, err
	}
	i.Log.Info("issued certificate",
		"order", final.URL, "domains", req.Domains, "bytes", len(chain))

	return &Bundle{
		CertificatePEM: chain,
		CertificateKey: certKey,
		Order:          final,
	}, nil
}

// authorize proves control of the identifier behind one authorization URL:
// it selects the challenge matching the solver's type, provisions the
// response, triggers validation and waits for the server's verdict. The
// provisioned response is removed regardless of the outcome.
func (i *Issuer) authorize(ctx context.Context, authzURL string) error {
	authz, err := i.Client.FetchAuthorization(ctx, authzURL)
	if err != nil {
		return err
	}
	domain := authz.Identifier.Value

	if authz.Status == acme.STATUS_VALID {
		i.Log.V(1).Info("authorization already valid", "domain", domain)
		return nil
	}
	if authz.Status != acme.STATUS_PENDING {
		return fmt.Errorf("issue: authorization for %q has status %q", domain, authz.Status)
	}

	chall, err := pickChallenge(authz, i.Solver.Type())
	if err != nil {
		return err
	}

	keyAuth := keys.KeyAuth(i.Client.Account().Signer, chall.Token)
	if err := i.Solver.Present(ctx, domain, chall.Token, keyAuth); err != nil {
		return fmt.Errorf("issue: unable to provision %s response for %q: %w",
			chall.Type, domain, err)
	}
	defer func() {
		if err := i.Solver.CleanUp(context.WithoutCancel(ctx), domain, chall.Token); err != nil {
			i.Log.Error(err, "challenge response cleanup failed",
				"domain", domain, "type", chall.Type)
		}
	}()

	if _, err := i.Client.TriggerChallenge(ctx, domain, chall.URL); err != nil {
		return err
	}

	return i.awaitAuthorization(ctx, authzURL, domain)
}

func pickChallenge(authz *resources.Authorization, challType string) (*resources.Challenge, error) {
	var offered []string
	for idx := range authz.Challenges {
		if authz.Challenges[idx].Type == challType {
			return &authz.Challenges[idx], nil
		}
		offered = append(offered, authz.Challenges[idx].Type)
	}
	return nil, fmt.Errorf("issue: authorization for %q offers no %q challenge (offered: %s)",
		authz.Identifier.Value, challType, strings.Join(offered, ", "))
}

func (i *Issuer) awaitAuthorization(ctx context.Context, authzURL string, domain string) error {
	for poll := 0; poll < i.maxPolls(); poll++ {
		authz, err := i.Client.FetchAuthorization(ctx, authzURL)
		if err != nil {
			return err
		}

		switch authz.Status {
		case acme.STATUS_VALID:
			i.Log.V(1).Info("authorization valid", "domain", domain)
			return nil
		case acme.STATUS_INVALID:
			return fmt.Errorf("issue: validation for %q failed: %s",
				domain, challengeFailure(authz))
		}

		if err := i.wait(ctx); err != nil {
			return err
		}
	}
	return fmt.Errorf("issue: authorization for %q still pending after %d polls",
		domain, i.maxPolls())
}

func (i *Issuer) awaitOrder(ctx context.Context, orderURL string, order *resources.Order) (*resources.Order, error) {
	for poll := 0; poll < i.maxPolls(); poll++ {
		switch order.Status {
		case acme.STATUS_VALID:
			if order.Certificate == "" {
				return nil, fmt.Errorf("issue: order %q is valid but has no certificate URL", orderURL)
			}
			return order, nil
		case acme.STATUS_INVALID:
			if order.Error != nil {
				return nil, fmt.Errorf("issue: order %q failed: %s: %s",
					orderURL, order.Error.Type, order.Error.Detail)
			}
			return nil, fmt.Errorf("issue: order %q failed", orderURL)
		}

		if err := i.wait(ctx); err != nil {
			return nil, err
		}

		var err error
		order, err = i.Client.FetchOrder(ctx, orderURL)
		if err != nil {
			return nil, err
		}
	}
	return nil, fmt.Errorf("issue: order %q still %q after %d polls",
		orderURL, order.Status, i.maxPolls())
}

// challengeFailure digs the first challenge error out of a failed
// authorization for the issuance error message.
func challengeFailure(authz *resources.Authorization) string {
	for _, chall := range authz.Challenges {
		if chall.Error != nil {
			return fmt.Sprintf("%s: %s", chall.Error.Type, chall.Error.Detail)
		}
	}
	return "no challenge error reported"
}

func (i *Issuer) wait(ctx context.Context) error {
	timer := time.NewTimer(i.interval())
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (i *Issuer) interval() time.Duration {
	if i.Interval > 0 {
		return i.Interval
	}
	return defaultInterval
}

func (i *Issuer) maxPolls() int {
	if i.MaxPolls > 0 {
		return i.MaxPolls
	}
	return defaultMaxPolls
}
