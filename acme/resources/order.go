package resources

import "github.com/certmason/certmason/acme"

// The Order resource represents a collection of identifiers that an account
// wishes to create a Certificate for.
//
// See https://tools.ietf.org/html/rfc8555#section-7.1.3
//
// To understand the Status changes specified by ACME for the Order resource
// see https://tools.ietf.org/html/rfc8555#section-7.1.6
type Order struct {
	// The server-assigned URL identifying the Order, taken from the Location
	// header of the response that created or returned it. It is not part of
	// the JSON body.
	URL string `json:"-"`
	// The Status of the Order: "pending", "ready", "processing", "valid" or
	// "invalid".
	Status string `json:"status"`
	// A string representing an RFC 3339 date at which time the server will
	// consider the Order expired.
	Expires string `json:"expires,omitempty"`
	// The Identifiers the Order wishes to finalize a Certificate for once the
	// Order is ready. Identifier order matches the newOrder request.
	Identifiers []Identifier `json:"identifiers"`
	// A list of URLs for Authorization resources the server specifies for the
	// Order Identifiers.
	Authorizations []string `json:"authorizations"`
	// A URL used to Finalize the Order with a CSR once the Order has a status
	// of "ready".
	Finalize string `json:"finalize"`
	// A URL used to fetch the Certificate issued by the server for the Order
	// after being Finalized. The Certificate field should be present and
	// not-empty when the Order has a status of "valid".
	Certificate string `json:"certificate,omitempty"`
	// The error that occurred while processing the Order, if any.
	Error *acme.Problem `json:"error,omitempty"`
}

// String returns the Order's URL.
func (o Order) String() string {
	return o.URL
}
