package acme

// Problem is a struct representing an RFC 7807 problem document from the
// server. ACME servers attach one to most error responses.
//
// See https://tools.ietf.org/html/rfc8555#section-6.7
type Problem struct {
	Type   string `json:"type,omitempty"`
	Detail string `json:"detail,omitempty"`
	Status int    `json:"status,omitempty"`
}
