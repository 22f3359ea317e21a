package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-logr/logr"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPathProcessor(t *testing.T) {
	assert := assert.New(t)

	assert.Equal("/acme/new-order", pathProcessor("/acme/new-order"))
	assert.Equal("/acme/order", pathProcessor("/acme/order/12345/67890"))
	assert.Equal("/", pathProcessor("/"))
	assert.Equal("", pathProcessor(""))
}

func TestWrapTransportCollects(t *testing.T) {
	assert := assert.New(t)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
	}))
	defer srv.Close()

	m := New(logr.Discard())
	client := &http.Client{Transport: m.WrapTransport(nil)}

	resp, err := client.Get(srv.URL + "/acme/new-order")
	require.NoError(t, err)
	defer resp.Body.Close()

	families, err := m.registry.Gather()
	require.NoError(t, err)

	var sawCount, sawDuration bool
	for _, family := range families {
		switch family.GetName() {
		case "certmason_http_acme_client_request_count":
			sawCount = true
			require.Len(t, family.GetMetric(), 1)
			labels := map[string]string{}
			for _, pair := range family.GetMetric()[0].GetLabel() {
				labels[pair.GetName()] = pair.GetValue()
			}
			assert.Equal("http", labels["scheme"])
			assert.Equal("/acme/new-order", labels["path"])
			assert.Equal("GET", labels["method"])
			assert.Equal("201", labels["status"])
			assert.Equal(float64(1), family.GetMetric()[0].GetCounter().GetValue())
		case "certmason_http_acme_client_request_duration_seconds":
			sawDuration = true
		}
	}
	assert.True(sawCount, "request count metric should be collected")
	assert.True(sawDuration, "request duration metric should be collected")
}

func TestHandlerServesMetrics(t *testing.T) {
	m := New(logr.Discard())
	m.IncrementACMERequestCount("https", "ca.example.com", "/acme/new-nonce", "GET", "204")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "certmason_http_acme_client_request_count")
}
