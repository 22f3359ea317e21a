// Package acme provides ACME protocol constants and error types. See RFC 8555.
package acme

const (
	// Directory constants
	// See https://tools.ietf.org/html/rfc8555#section-9.7.5

	// The ACME directory key for the newNonce endpoint
	NEW_NONCE_ENDPOINT = "newNonce"
	// The ACME directory key for the newAccount endpoint.
	NEW_ACCOUNT_ENDPOINT = "newAccount"
	// The ACME directory key for the newOrder endpoint.
	NEW_ORDER_ENDPOINT = "newOrder"

	// The HTTP response header used by ACME to communicate a fresh nonce. See
	// https://tools.ietf.org/html/rfc8555#section-9.3
	REPLAY_NONCE_HEADER = "Replay-Nonce"

	// Status values shared by the Order, Authorization and Challenge resources.
	// See https://tools.ietf.org/html/rfc8555#section-7.1.6
	STATUS_PENDING     = "pending"
	STATUS_READY       = "ready"
	STATUS_PROCESSING  = "processing"
	STATUS_VALID       = "valid"
	STATUS_INVALID     = "invalid"
	STATUS_DEACTIVATED = "deactivated"

	// Challenge types defined by RFC 8555 Section 8 and RFC 8737.
	CHALLENGE_HTTP_01     = "http-01"
	CHALLENGE_DNS_01      = "dns-01"
	CHALLENGE_TLS_ALPN_01 = "tls-alpn-01"

	// The identifier type used for domain names in newOrder requests.
	IDENTIFIER_TYPE_DNS = "dns"
)
