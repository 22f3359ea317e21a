// Package acmetest provides an in-process ACME server for tests.
//
// The server speaks enough of RFC 8555 to drive a full issuance session:
// it verifies the JWS envelope of every signed request (embedded JWK for
// registration, Key ID afterwards), enforces single-use nonces, walks
// orders from "pending" through "ready" to "valid" as challenges are
// triggered and the CSR arrives, and signs a real certificate chain for
// the CSR. Challenge validation is simulated: triggering a challenge
// immediately validates it without any outward connection.
//
// Fault injection hooks let tests exercise the client's error handling:
// dropping the Replay-Nonce header, failing the nonce endpoint and
// stripping the Location header from registration responses.
package acmetest

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"path"
	"sync"

	jose "github.com/go-jose/go-jose/v4"

	"github.com/certmason/certmason/acme"
	"github.com/certmason/certmason/acme/resources"
)

// Server is an in-process fake ACME CA backed by an httptest.Server.
type Server struct {
	// URL is the directory URL clients should be pointed at.
	URL string

	hs *httptest.Server
	ca *issuingCA

	mu              sync.Mutex
	dropNonceHeader bool
	failNonce       bool
	dropLocation    bool

	nonces       map[string]bool
	noncesIssued int
	lastNonce    string
	accounts     map[string]*jose.JSONWebKey
	orders       map[string]*resources.Order
	authzs       map[string]*resources.Authorization
	// challenge ID -> owning authorization ID
	challAuthz map[string]string
	certs      map[string][]byte
	lastCSR    string
	nextID     int
}

// New starts a Server. Callers must Close it when done.
func New() (*Server, error) {
	ca, err := newIssuingCA()
	if err != nil {
		return nil, err
	}

	s := &Server{
		ca:         ca,
		nonces:     make(map[string]bool),
		accounts:   make(map[string]*jose.JSONWebKey),
		orders:     make(map[string]*resources.Order),
		authzs:     make(map[string]*resources.Authorization),
		challAuthz: make(map[string]string),
		certs:      make(map[string][]byte),
		nextID:     1,
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/dir", s.handleDirectory)
	mux.HandleFunc("/new-nonce", s.handleNewNonce)
	mux.HandleFunc("/new-account", s.handleNewAccount)
	mux.HandleFunc("/new-order", s.handleNewOrder)
	mux.HandleFunc("/order/", s.handleOrder)
	mux.HandleFunc("/authz/", s.handleAuthz)
	mux.HandleFunc("/chall/", s.handleChallenge)
	mux.HandleFunc("/finalize/", s.handleFinalize)
	mux.HandleFunc("/cert/", s.handleCert)

	s.hs = httptest.NewServer(mux)
	s.URL = s.hs.URL + "/dir"
	return s, nil
}

// Close shuts the underlying HTTP server down.
func (s *Server) Close() {
	s.hs.Close()
}

// SetDropNonceHeader controls whether new-nonce responses omit the
// Replay-Nonce header.
func (s *Server) SetDropNonceHeader(drop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropNonceHeader = drop
}

// SetFailNonce controls whether the new-nonce endpoint returns HTTP 500.
func (s *Server) SetFailNonce(fail bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNonce = fail
}

// SetDropLocation controls whether registration responses omit the
// Location header.
func (s *Server) SetDropLocation(drop bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dropLocation = drop
}

// LastNonce returns the value the most recent new-nonce response carried in
// its Replay-Nonce header.
func (s *Server) LastNonce() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastNonce
}

// NoncesIssued reports how many nonces the new-nonce endpoint has handed
// out.
func (s *Server) NoncesIssued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.noncesIssued
}

// LastCSR returns the base64url encoded CSR from the most recent finalize
// request, exactly as it appeared on the wire.
func (s *Server) LastCSR() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.lastCSR
}

func (s *Server) url(pathAndID string) string {
	return s.hs.URL + pathAndID
}

func (s *Server) id() string {
	id := s.nextID
	s.nextID++
	return fmt.Sprintf("%d", id)
}

func randomToken() string {
	var buf [16]byte
	_, _ = rand.Read(buf[:])
	return hex.EncodeToString(buf[:])
}

type problem struct {
	Type   string `json:"type"`
	Detail string `json:"detail"`
	Status int    `json:"status"`
}

func writeProblem(w http.ResponseWriter, prob *problem) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(prob.Status)
	_ = json.NewEncoder(w).Encode(prob)
}

func writeJSON(w http.ResponseWriter, status int, ob interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(ob)
}

func (s *Server) handleDirectory(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, resources.Directory{
		NewNonce:   s.url("/new-nonce"),
		NewAccount: s.url("/new-account"),
		NewOrder:   s.url("/new-order"),
	})
}

func (s *Server) handleNewNonce(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNonce {
		writeProblem(w, &problem{
			Type:   "urn:ietf:params:acme:error:serverInternal",
			Detail: "nonce generator offline",
			Status: http.StatusInternalServerError,
		})
		return
	}

	if !s.dropNonceHeader {
		nonce := randomToken()
		s.nonces[nonce] = true
		s.lastNonce = nonce
		w.Header().Set(acme.REPLAY_NONCE_HEADER, nonce)
	}
	s.noncesIssued++
	w.WriteHeader(http.StatusOK)
}

// verifyJWS checks the signed envelope of an incoming request: the JWS
// parses, the nonce is known and unused, the protected "url" header names
// the requested URL, and the signature verifies against either the
// embedded JWK or the registered account key named by the Key ID.
func (s *Server) verifyJWS(r *http.Request) ([]byte, jose.Header, *problem) {
	var hdr jose.Header

	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, hdr, &problem{
			Type:   "urn:ietf:params:acme:error:malformed",
			Detail: "unable to read request body",
			Status: http.StatusBadRequest,
		}
	}

	jws, err := jose.ParseSigned(string(body), []jose.SignatureAlgorithm{jose.ES256, jose.RS256})
	if err != nil {
		return nil, hdr, &problem{
			Type:   "urn:ietf:params:acme:error:malformed",
			Detail: fmt.Sprintf("unable to parse JWS: %s", err),
			Status: http.StatusBadRequest,
		}
	}
	hdr = jws.Signatures[0].Protected

	s.mu.Lock()
	_, ok := s.nonces[hdr.Nonce]
	if ok {
		// single-use: consume it
		delete(s.nonces, hdr.Nonce)
	}
	s.mu.Unlock()
	if !ok {
		return nil, hdr, &problem{
			Type:   "urn:ietf:params:acme:error:badNonce",
			Detail: fmt.Sprintf("nonce %q was not issued or was already used", hdr.Nonce),
			Status: http.StatusBadRequest,
		}
	}

	wantURL := s.hs.URL + r.URL.Path
	if gotURL, _ := hdr.ExtraHeaders["url"].(string); gotURL != wantURL {
		return nil, hdr, &problem{
			Type:   "urn:ietf:params:acme:error:malformed",
			Detail: fmt.Sprintf("JWS url header %q does not match request URL %q", gotURL, wantURL),
			Status: http.StatusBadRequest,
		}
	}

	var key interface{}
	if hdr.JSONWebKey != nil {
		key = hdr.JSONWebKey
	} else {
		s.mu.Lock()
		acctKey := s.accounts[hdr.KeyID]
		s.mu.Unlock()
		if acctKey == nil {
			return nil, hdr, &problem{
				Type:   "urn:ietf:params:acme:error:accountDoesNotExist",
				Detail: fmt.Sprintf("no account with key ID %q", hdr.KeyID),
				Status: http.StatusBadRequest,
			}
		}
		key = acctKey
	}

	payload, err := jws.Verify(key)
	if err != nil {
		return nil, hdr, &problem{
			Type:   "urn:ietf:params:acme:error:malformed",
			Detail: fmt.Sprintf("JWS verification failed: %s", err),
			Status: http.StatusBadRequest,
		}
	}
	return payload, hdr, nil
}

func (s *Server) handleNewAccount(w http.ResponseWriter, r *http.Request) {
	payload, hdr, prob := s.verifyJWS(r)
	if prob != nil {
		writeProblem(w, prob)
		return
	}
	if hdr.JSONWebKey == nil {
		writeProblem(w, &problem{
			Type:   "urn:ietf:params:acme:error:malformed",
			Detail: "registration JWS must embed a JWK",
			Status: http.StatusBadRequest,
		})
		return
	}

	var req struct {
		Contact              []string `json:"contact"`
		TermsOfServiceAgreed bool     `json:"termsOfServiceAgreed"`
	}
	if err := json.Unmarshal(payload, &req); err != nil {
		writeProblem(w, &problem{
			Type:   "urn:ietf:params:acme:error:malformed",
			Detail: "registration payload is not valid JSON",
			Status: http.StatusBadRequest,
		})
		return
	}

	s.mu.Lock()
	kid := s.url("/acct/" + s.id())
	s.accounts[kid] = hdr.JSONWebKey
	dropLocation := s.dropLocation
	s.mu.Unlock()

	if !dropLocation {
		w.Header().Set("Location", kid)
	}
	writeJSON(w, http.StatusCreated, struct {
		Status  string   `json:"status"`
		Contact []string `json:"contact,omitempty"`
	}{
		Status:  acme.STATUS_VALID,
		Contact: req.Contact,
	})
}

func (s *Server) handleNewOrder(w http.ResponseWriter, r *http.Request) {
	payload, _, prob := s.verifyJWS(r)
	if prob != nil {
		writeProblem(w, prob)
		return
	}

	var req struct {
		Identifiers []resources.Identifier `json:"identifiers"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || len(req.Identifiers) == 0 {
		writeProblem(w, &problem{
			Type:   "urn:ietf:params:acme:error:malformed",
			Detail: "order payload must carry at least one identifier",
			Status: http.StatusBadRequest,
		})
		return
	}

	s.mu.Lock()
	orderID := s.id()
	order := &resources.Order{
		Status:      acme.STATUS_PENDING,
		Identifiers: req.Identifiers,
		Finalize:    s.url("/finalize/" + orderID),
	}
	for _, ident := range req.Identifiers {
		authzID := s.id()
		authzURL := s.url("/authz/" + authzID)
		authz := &resources.Authorization{
			Status:     acme.STATUS_PENDING,
			Identifier: ident,
		}
		for _, challType := range []string{acme.CHALLENGE_HTTP_01, acme.CHALLENGE_DNS_01} {
			challID := s.id()
			authz.Challenges = append(authz.Challenges, resources.Challenge{
				Type:   challType,
				URL:    s.url("/chall/" + challID),
				Token:  randomToken(),
				Status: acme.STATUS_PENDING,
			})
			s.challAuthz[challID] = authzID
		}
		s.authzs[authzID] = authz
		order.Authorizations = append(order.Authorizations, authzURL)
	}
	s.orders[orderID] = order
	s.mu.Unlock()

	w.Header().Set("Location", s.url("/order/"+orderID))
	writeJSON(w, http.StatusCreated, order)
}

func (s *Server) handleOrder(w http.ResponseWriter, r *http.Request) {
	_, _, prob := s.verifyJWS(r)
	if prob != nil {
		writeProblem(w, prob)
		return
	}

	s.mu.Lock()
	order := s.orders[path.Base(r.URL.Path)]
	s.mu.Unlock()
	if order == nil {
		writeProblem(w, notFound("order"))
		return
	}
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleAuthz(w http.ResponseWriter, r *http.Request) {
	_, _, prob := s.verifyJWS(r)
	if prob != nil {
		writeProblem(w, prob)
		return
	}

	s.mu.Lock()
	authz := s.authzs[path.Base(r.URL.Path)]
	s.mu.Unlock()
	if authz == nil {
		writeProblem(w, notFound("authorization"))
		return
	}
	writeJSON(w, http.StatusOK, authz)
}

func (s *Server) handleChallenge(w http.ResponseWriter, r *http.Request) {
	_, _, prob := s.verifyJWS(r)
	if prob != nil {
		writeProblem(w, prob)
		return
	}

	challID := path.Base(r.URL.Path)

	s.mu.Lock()
	defer s.mu.Unlock()

	authzID, ok := s.challAuthz[challID]
	if !ok {
		writeProblem(w, notFound("challenge"))
		return
	}
	authz := s.authzs[authzID]

	// Triggering any challenge validates it, and with it the authorization.
	// When every authorization of an order is valid the order becomes ready.
	var triggered *resources.Challenge
	challURL := s.url("/chall/" + challID)
	for i := range authz.Challenges {
		if authz.Challenges[i].URL == challURL {
			authz.Challenges[i].Status = acme.STATUS_VALID
			triggered = &authz.Challenges[i]
		}
	}
	if triggered == nil {
		writeProblem(w, notFound("challenge"))
		return
	}
	authz.Status = acme.STATUS_VALID

	for orderID, order := range s.orders {
		if order.Status != acme.STATUS_PENDING {
			continue
		}
		allValid := true
		for _, authzURL := range order.Authorizations {
			if s.authzs[path.Base(authzURL)].Status != acme.STATUS_VALID {
				allValid = false
				break
			}
		}
		if allValid {
			s.orders[orderID].Status = acme.STATUS_READY
		}
	}

	writeJSON(w, http.StatusOK, triggered)
}

func (s *Server) handleFinalize(w http.ResponseWriter, r *http.Request) {
	payload, _, prob := s.verifyJWS(r)
	if prob != nil {
		writeProblem(w, prob)
		return
	}

	orderID := path.Base(r.URL.Path)

	s.mu.Lock()
	defer s.mu.Unlock()

	order := s.orders[orderID]
	if order == nil {
		writeProblem(w, notFound("order"))
		return
	}
	if order.Status != acme.STATUS_READY {
		writeProblem(w, &problem{
			Type:   "urn:ietf:params:acme:error:orderNotReady",
			Detail: fmt.Sprintf("order status is %q, not %q", order.Status, acme.STATUS_READY),
			Status: http.StatusForbidden,
		})
		return
	}

	var req struct {
		CSR string `json:"csr"`
	}
	if err := json.Unmarshal(payload, &req); err != nil || req.CSR == "" {
		writeProblem(w, &problem{
			Type:   "urn:ietf:params:acme:error:badCSR",
			Detail: "finalize payload carried no CSR",
			Status: http.StatusBadRequest,
		})
		return
	}
	s.lastCSR = req.CSR

	csrDER, err := base64.RawURLEncoding.DecodeString(req.CSR)
	if err != nil {
		writeProblem(w, &problem{
			Type:   "urn:ietf:params:acme:error:badCSR",
			Detail: fmt.Sprintf("CSR was not base64url encoded: %s", err),
			Status: http.StatusBadRequest,
		})
		return
	}
	csr, err := parseCSR(csrDER)
	if err != nil {
		writeProblem(w, &problem{
			Type:   "urn:ietf:params:acme:error:badCSR",
			Detail: err.Error(),
			Status: http.StatusBadRequest,
		})
		return
	}

	certID := s.id()
	chain, err := s.ca.issue(csr, int64(s.nextID))
	if err != nil {
		writeProblem(w, &problem{
			Type:   "urn:ietf:params:acme:error:serverInternal",
			Detail: err.Error(),
			Status: http.StatusInternalServerError,
		})
		return
	}
	s.certs[certID] = chain

	order.Status = acme.STATUS_VALID
	order.Certificate = s.url("/cert/" + certID)

	w.Header().Set("Location", s.url("/order/"+orderID))
	writeJSON(w, http.StatusOK, order)
}

func (s *Server) handleCert(w http.ResponseWriter, r *http.Request) {
	_, _, prob := s.verifyJWS(r)
	if prob != nil {
		writeProblem(w, prob)
		return
	}

	s.mu.Lock()
	chain := s.certs[path.Base(r.URL.Path)]
	s.mu.Unlock()
	if chain == nil {
		writeProblem(w, notFound("certificate"))
		return
	}

	w.Header().Set("Content-Type", "application/pem-certificate-chain")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(chain)
}

func notFound(kind string) *problem {
	return &problem{
		Type:   "urn:ietf:params:acme:error:malformed",
		Detail: fmt.Sprintf("no such %s", kind),
		Status: http.StatusNotFound,
	}
}
