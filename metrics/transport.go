package metrics

import (
	"fmt"
	"net/http"
	"strings"
	"time"
)

// This file implements a custom instrumented HTTP round tripper that exposes
// Prometheus metrics for each ACME endpoint called. Wrapping the transport
// rather than individual client operations ensures no request is missed.

// Transport is a http.RoundTripper that collects Prometheus metrics of every
// request it processes.
type Transport struct {
	metrics *Metrics

	wrappedRT http.RoundTripper
}

// WrapTransport wraps the given RoundTripper with instrumentation. A nil
// RoundTripper defaults to http.DefaultTransport. The result is suitable for
// the net package's Config.WrapTransport hook.
func (m *Metrics) WrapTransport(rt http.RoundTripper) http.RoundTripper {
	if rt == nil {
		rt = http.DefaultTransport
	}
	return &Transport{
		metrics:   m,
		wrappedRT: rt,
	}
}

// RoundTrip implements http.RoundTripper. It forwards the request to the
// wrapped RoundTripper and measures the time it took in a Prometheus summary.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	statusCode := 999

	start := time.Now()

	resp, err := t.wrappedRT.RoundTrip(req)
	if resp != nil {
		statusCode = resp.StatusCode
	}

	labels := []string{
		req.URL.Scheme,
		req.URL.Host,
		pathProcessor(req.URL.Path),
		req.Method,
		fmt.Sprintf("%d", statusCode),
	}
	t.metrics.ObserveACMERequestDuration(time.Since(start), labels...)
	t.metrics.IncrementACMERequestCount(labels...)

	return resp, err
}

// pathProcessor will trim the provided path to only include the first 2
// segments in order to reduce the number of prometheus labels generated
func pathProcessor(path string) string {
	p := strings.Split(path, "/")
	// only record the first two path segments as a prometheus label value
	if len(p) > 3 {
		p = p[:3]
	}
	return strings.Join(p, "/")
}
