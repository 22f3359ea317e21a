package resources

import (
	"fmt"

	"github.com/certmason/certmason/acme"
)

// Directory is the ACME server's directory resource: the map of endpoint
// URLs the server publishes for each protocol operation. It is fetched once
// when a client is constructed and treated as immutable afterwards. Every
// URL is used opaquely, exactly as the server provided it.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.1
type Directory struct {
	// The endpoint used to fetch a fresh anti-replay nonce.
	NewNonce string `json:"newNonce"`
	// The endpoint used to register an account.
	NewAccount string `json:"newAccount"`
	// The endpoint used to create a new order.
	NewOrder string `json:"newOrder"`
	// Optional endpoint for pre-authorization. Most servers omit it.
	NewAuthz string `json:"newAuthz,omitempty"`
	// Optional endpoint for certificate revocation.
	RevokeCert string `json:"revokeCert,omitempty"`
	// Optional endpoint for account key rollover.
	KeyChange string `json:"keyChange,omitempty"`
	// Optional directory metadata.
	Meta DirectoryMeta `json:"meta,omitempty"`
}

// DirectoryMeta holds the optional "meta" entry of a directory resource.
type DirectoryMeta struct {
	TermsOfService          string   `json:"termsOfService,omitempty"`
	Website                 string   `json:"website,omitempty"`
	CAAIdentities           []string `json:"caaIdentities,omitempty"`
	ExternalAccountRequired bool     `json:"externalAccountRequired,omitempty"`
}

// Validate checks that the directory carries the endpoints required to
// register an account and issue a certificate. A directory that decodes from
// valid JSON but is missing one of these entries is unusable.
func (d Directory) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{acme.NEW_NONCE_ENDPOINT, d.NewNonce},
		{acme.NEW_ACCOUNT_ENDPOINT, d.NewAccount},
		{acme.NEW_ORDER_ENDPOINT, d.NewOrder},
	}
	for _, entry := range required {
		if entry.value == "" {
			return fmt.Errorf("directory is missing required %q entry", entry.name)
		}
	}
	return nil
}
