package acme

import "fmt"

// TransportError wraps a failure to complete an HTTP exchange with the ACME
// server: connection refused, TLS handshake failure, a cancelled context.
// The server never produced a usable response.
type TransportError struct {
	// The URL the request was sent to.
	URL string
	// The underlying error from the HTTP client.
	Err error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("transport error for %q: %s", e.URL, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// ProtocolError indicates the ACME server replied outside the protocol
// contract: an unexpected HTTP status code, or a successful response missing
// a required header (e.g. no Location header on account creation). If the
// server sent a problem document describing the failure it is attached.
type ProtocolError struct {
	// The URL the request was sent to.
	URL string
	// The HTTP status code of the response.
	Status int
	// A short description of the violated expectation.
	Reason string
	// The problem document from the response body, when the server sent one.
	Problem *Problem
}

func (e *ProtocolError) Error() string {
	msg := fmt.Sprintf("protocol error for %q: HTTP %d: %s", e.URL, e.Status, e.Reason)
	if e.Problem != nil {
		msg = fmt.Sprintf("%s (%s: %s)", msg, e.Problem.Type, e.Problem.Detail)
	}
	return msg
}

// DecodeError indicates a response body that was not valid JSON or that did
// not match the shape of the expected ACME resource.
type DecodeError struct {
	// The URL the response was received from.
	URL string
	// The underlying decoding error.
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("error decoding response body from %q: %s", e.URL, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// SigningError indicates a failure producing the JWS envelope for a request
// payload before anything was sent to the server.
type SigningError struct {
	// The URL the JWS was being prepared for.
	URL string
	// The underlying error from the JOSE library or key handling.
	Err error
}

func (e *SigningError) Error() string {
	return fmt.Sprintf("error signing request for %q: %s", e.URL, e.Err)
}

func (e *SigningError) Unwrap() error {
	return e.Err
}
