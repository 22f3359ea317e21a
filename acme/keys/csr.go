package keys

import (
	"crypto"
	"crypto/rand"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/pem"
	"fmt"
)

// CertificateRequest holds the encodings of an x509 certificate signing
// request produced by CSR.
type CertificateRequest struct {
	// The DER encoding of the request, as submitted to an ACME server when
	// finalizing an order.
	DER []byte
	// The PEM encoding of the same request.
	PEM string
}

// CSR produces a certificate signing request for the provided commonName and
// SAN names, signed with the given private key. The CSR uses the public
// component of this key as its public key; per RFC 8555 Section 11.1 it must
// not be the account key. If no commonName is provided the first of the
// names is used.
func CSR(commonName string, names []string, signer crypto.Signer) (*CertificateRequest, error) {
	if len(names) == 0 {
		return nil, fmt.Errorf("no names specified")
	}
	if signer == nil {
		return nil, fmt.Errorf("no private key specified")
	}

	if commonName == "" {
		commonName = names[0]
	}

	template := x509.CertificateRequest{
		Subject: pkix.Name{
			CommonName: commonName,
		},
		DNSNames: names,
	}

	csrBytes, err := x509.CreateCertificateRequest(rand.Reader, &template, signer)
	if err != nil {
		return nil, err
	}

	pemBytes := pem.EncodeToMemory(&pem.Block{
		Type: "CERTIFICATE REQUEST", Bytes: csrBytes,
	})

	return &CertificateRequest{
		DER: csrBytes,
		PEM: string(pemBytes),
	}, nil
}
