package client

import (
	"crypto"
	"errors"
	"fmt"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/certmason/certmason/acme/keys"
)

// SigningOptions allows specifying signature related options when calling the
// Client's Sign function.
type SigningOptions struct {
	// If true, embed the public key of the Signer as a JWK in the signed JWS
	// instead of using a KeyID header. This is required for the NewAccount
	// endpoint, where no account URL exists yet. Setting EmbedKey to true is
	// mutually exclusive with a non-empty KeyID.
	EmbedKey bool
	// If not-empty, a KeyID value to use for the JWS Key ID header to
	// identify the ACME account. If empty the account's ID field is used.
	// Providing a KeyID is mutually exclusive with setting EmbedKey to true.
	KeyID string
	// If not-nil, a private key to sign the JWS with. The associated public
	// key is computed and used for the embedded JWK if EmbedKey is true. If
	// nil the account's key is used.
	Signer crypto.Signer
	// The anti-replay nonce for the JWS protected header, exactly as the
	// server provided it. An empty Nonce is signed as-is; the server answers
	// the request with a badNonce problem and the failure surfaces there.
	Nonce string
	// If true sign a zero-byte payload, producing a POST-as-GET request.
	// The data argument to Sign must be empty.
	//
	// See https://tools.ietf.org/html/rfc8555#section-6.3
	PostAsGET bool
}

// validate checks that the SigningOptions are sensible. This enforces the
// mutually exclusive KeyID and EmbedKey options and ensures the Signer is not
// nil. Because it checks that the Signer field is not nil it must only be
// called after populating a default (like the account's key). An empty Nonce
// is deliberately not rejected.
func (opts *SigningOptions) validate() error {
	if opts.KeyID != "" && opts.EmbedKey {
		return fmt.Errorf("SigningOptions validate: cannot specify both KeyID and EmbedKey")
	}
	if opts.KeyID == "" && !opts.EmbedKey {
		return fmt.Errorf("SigningOptions validate: you must specify a KeyID or EmbedKey")
	}
	if opts.Signer == nil {
		return fmt.Errorf("SigningOptions validate: you must specify a private key")
	}
	return nil
}

// staticNonce hands one pre-fetched nonce value to the JOSE signer. Each
// signed request draws its own fresh nonce before signing, so the source is
// never asked twice.
type staticNonce string

// Nonce satisfies the jose.NonceSource interface.
func (n staticNonce) Nonce() (string, error) {
	return string(n), nil
}

// SignResult holds the input and output from a Sign operation.
type SignResult struct {
	// The url argument given to Sign.
	InputURL string
	// The data argument given to Sign.
	InputData []byte
	// The JWS produced by signing the given data.
	JWS *jose.JSONWebSignature
	// The JWS in serialized form, ready to be POSTed.
	SerializedJWS []byte
}

// Sign produces a SignResult by signing the provided data (with a protected
// "url" header) according to the SigningOptions provided. If no Signer is
// specified in the SigningOptions then the account's key is used. If the
// SigningOptions specify not to embed a JWK but do not specify a Key ID to
// use then the account's ID is used as the JWS Key ID.
func (c *Client) Sign(url string, data []byte, opts *SigningOptions) (*SignResult, error) {
	if opts == nil {
		opts = &SigningOptions{}
	}
	// If there is no Signer and no account we can't proceed
	if opts.Signer == nil && c.account == nil {
		return nil, errors.New(
			"account is nil and no Signer was specified in SigningOptions")
	} else if opts.Signer == nil {
		opts.Signer = c.account.Signer
	}

	// If there is no EmbedKey specified and there is no KeyID specified, and
	// there is no account, we can't proceed.
	if !opts.EmbedKey && opts.KeyID == "" && c.account == nil {
		return nil, errors.New(
			"SigningOptions EmbedKey was false, no KeyID was specified, and " +
				"there is no account")
	} else if !opts.EmbedKey && opts.KeyID == "" {
		opts.KeyID = c.account.ID
	}

	if opts.PostAsGET && len(data) > 0 {
		return nil, errors.New("SigningOptions specified PostAsGET but data was not empty")
	}

	// Now that the defaults are populated check that the resulting options
	// are valid.
	if err := opts.validate(); err != nil {
		return nil, err
	}

	if opts.EmbedKey {
		return signEmbedded(url, data, *opts)
	}
	return signKeyID(url, data, *opts)
}

// signEmbedded signs data with the public JWK of the signing key carried in
// the protected header. The NewAccount endpoint requires this form because
// the account has no URL to use as a Key ID until the server assigns one.
func signEmbedded(url string, data []byte, opts SigningOptions) (*SignResult, error) {
	privKey := opts.Signer
	if privKey == nil {
		return nil, fmt.Errorf("signEmbedded: nil private key")
	}

	signingKey := jose.SigningKey{
		Key:       privKey,
		Algorithm: keys.SigAlgForKey(privKey),
	}

	signer, err := jose.NewSigner(signingKey, &jose.SignerOptions{
		NonceSource: staticNonce(opts.Nonce),
		EmbedJWK:    true,
		ExtraHeaders: map[jose.HeaderKey]interface{}{
			"url": url,
		},
	})
	if err != nil {
		return nil, err
	}

	return sign(signer, url, data, opts)
}

// signKeyID signs data with the account URL carried as the "kid" of the
// protected header. Every endpoint except NewAccount uses this form.
func signKeyID(url string, data []byte, opts SigningOptions) (*SignResult, error) {
	if opts.KeyID == "" {
		return nil, fmt.Errorf("sign: empty KeyID")
	}

	signingKey := keys.SigningKeyForSigner(opts.Signer, opts.KeyID)

	joseOpts := &jose.SignerOptions{
		NonceSource: staticNonce(opts.Nonce),
		ExtraHeaders: map[jose.HeaderKey]interface{}{
			"url": url,
		},
	}

	signer, err := jose.NewSigner(signingKey, joseOpts)
	if err != nil {
		return nil, err
	}

	return sign(signer, url, data, opts)
}

func sign(signer jose.Signer, url string, data []byte, opts SigningOptions) (*SignResult, error) {
	if opts.PostAsGET {
		data = []byte{}
	}

	signed, err := signer.Sign(data)
	if err != nil {
		return nil, err
	}

	serialized := []byte(signed.FullSerialize())

	// Reparse the serialized body to get a fully populated JWS object
	var parsedJWS *jose.JSONWebSignature
	parsedJWS, err = jose.ParseSigned(string(serialized), []jose.SignatureAlgorithm{
		keys.SigAlgForKey(opts.Signer),
	})
	if err != nil {
		return nil, err
	}

	return &SignResult{
		InputURL:      url,
		InputData:     data,
		JWS:           parsedJWS,
		SerializedJWS: serialized,
	}, nil
}
