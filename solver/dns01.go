package solver

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"fmt"

	"github.com/miekg/dns"

	"github.com/certmason/certmason/acme"
)

// dns01Prefix is the label prepended to an identifier's domain to form the
// TXT record name a dns-01 validator queries.
//
// See https://tools.ietf.org/html/rfc8555#section-8.4
const dns01Prefix = "_acme-challenge."

type dns01Solver struct {
	server *ChallengeServer
}

func (s dns01Solver) Type() string {
	return acme.CHALLENGE_DNS_01
}

// Present installs the TXT record for the challenge into the embedded DNS
// responder, then queries the responder for it and compares the answer to
// the expected digest. The self-check surfaces a misconfigured responder
// before the ACME server is told to validate.
func (s dns01Solver) Present(ctx context.Context, domain string, token string, keyAuth string) error {
	fqdn := dns01Prefix + domain + "."
	s.server.srv.AddDNSOneChallenge(fqdn, dns01TXTDigest(keyAuth))
	s.server.log.V(1).Info("installed dns-01 response",
		"domain", domain, "fqdn", fqdn, "token", token)

	return s.selfCheck(ctx, fqdn, keyAuth)
}

func (s dns01Solver) CleanUp(_ context.Context, domain string, token string) error {
	fqdn := dns01Prefix + domain + "."
	s.server.srv.DeleteDNSOneChallenge(fqdn)
	s.server.log.V(1).Info("removed dns-01 response",
		"domain", domain, "fqdn", fqdn, "token", token)
	return nil
}

// dns01TXTDigest computes the TXT record value for a key authorization: the
// base64url encoded SHA-256 digest, without padding.
func dns01TXTDigest(keyAuth string) string {
	digest := sha256.Sum256([]byte(keyAuth))
	return base64.RawURLEncoding.EncodeToString(digest[:])
}

func (s dns01Solver) selfCheck(ctx context.Context, fqdn string, keyAuth string) error {
	m := new(dns.Msg)
	m.SetQuestion(fqdn, dns.TypeTXT)

	client := new(dns.Client)
	resp, _, err := client.ExchangeContext(ctx, m, s.server.dnsAddr)
	if err != nil {
		return fmt.Errorf("dns-01 self-check query for %q failed: %w", fqdn, err)
	}

	expected := dns01TXTDigest(keyAuth)
	for _, rr := range resp.Answer {
		txt, ok := rr.(*dns.TXT)
		if !ok {
			continue
		}
		for _, value := range txt.Txt {
			if value == expected {
				return nil
			}
		}
	}
	return fmt.Errorf("dns-01 self-check: no TXT record for %q matched the expected digest", fqdn)
}
