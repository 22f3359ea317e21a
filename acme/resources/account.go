// Package resources provides types for representing ACME protocol resources.
package resources

import (
	"crypto"
	"encoding/json"
	"fmt"
	"os"

	"github.com/certmason/certmason/acme/keys"
)

// Account holds information related to a single ACME Account resource. If
// the account has an empty ID it has not yet been registered with the ACME
// server.
//
// The ID field holds the server-assigned Account ID (a URL) that is assigned
// at the time of account creation and used as the JWS Key ID ("kid") for
// authenticating ACME requests with the Account's registered keypair. It is
// set exactly once, either by registration or by restoring a previously
// saved account, and never changes afterwards.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.2
type Account struct {
	// The server-assigned Account ID. This is used for the JWS Key ID when
	// authenticating ACME requests using the Account's registered keypair.
	ID string
	// Zero or more "mailto:" contact addresses registered for the Account.
	Contact []string
	// The private key for the Account's keypair. The public component is
	// computed from this key when it is embedded in a registration JWS.
	Signer crypto.Signer
}

// String returns the Account's ID or an empty string if it has not been
// registered with the ACME server.
func (a Account) String() string {
	return a.ID
}

// NewAccount creates an ACME account in-memory. *Important:* the created
// Account is *not* registered with the ACME server until a client registers
// it explicitly.
//
// The emails argument is a slice of zero or more email addresses that should
// be used as the Account's Contact information. Empty entries are skipped,
// all others receive a "mailto:" prefix.
//
// The signer argument is the private key to use for the Account keypair. If
// it is nil a new randomly generated ECDSA P-256 key is used.
func NewAccount(emails []string, signer crypto.Signer) (*Account, error) {
	var contacts []string
	for _, e := range emails {
		if e == "" {
			continue
		}
		contacts = append(contacts, fmt.Sprintf("mailto:%s", e))
	}

	if signer == nil {
		randKey, err := keys.NewSigner("ecdsa")
		if err != nil {
			return nil, err
		}
		signer = randKey
	}

	return &Account{
		Contact: contacts,
		Signer:  signer,
	}, nil
}

// SaveAccount persists the given Account object (which must not be nil) to
// the given file path. If any errors occur serializing the account it will
// be returned.
func SaveAccount(path string, account *Account) error {
	if account == nil {
		return fmt.Errorf("account must not be nil")
	}
	frozenBytes, err := account.save()
	if err != nil {
		return err
	}
	// The serialized account contains the private key
	return os.WriteFile(path, frozenBytes, 0600)
}

// RestoreAccount loads a previously saved Account object from the given file
// path. This file should have been created using SaveAccount in a previous
// session. If any errors occur deserializing an Account from the data in the
// provided filepath a nil Account instance and a non-nil error will be
// returned.
func RestoreAccount(path string) (*Account, error) {
	frozenBytes, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	acct := &Account{}
	if err := acct.restore(frozenBytes); err != nil {
		return nil, err
	}
	return acct, nil
}

type rawAccount struct {
	ID         string
	Contact    []string
	PrivateKey []byte
	KeyType    string
}

func (acct *Account) save() ([]byte, error) {
	keyBytes, keyType, err := keys.MarshalSigner(acct.Signer)
	if err != nil {
		return nil, err
	}

	rawAcct := rawAccount{
		ID:         acct.ID,
		Contact:    acct.Contact,
		PrivateKey: keyBytes,
		KeyType:    keyType,
	}
	return json.MarshalIndent(rawAcct, "", "  ")
}

func (acct *Account) restore(frozenAcct []byte) error {
	var rawAcct rawAccount
	if err := json.Unmarshal(frozenAcct, &rawAcct); err != nil {
		return err
	}

	signer, err := keys.UnmarshalSigner(rawAcct.PrivateKey, rawAcct.KeyType)
	if err != nil {
		return err
	}

	acct.ID = rawAcct.ID
	acct.Contact = rawAcct.Contact
	acct.Signer = signer
	return nil
}
