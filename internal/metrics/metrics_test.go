package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector_Counters(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordCartMutation("add")
	c.RecordCartMutation("add")
	c.RecordCartMutation("clear")
	c.RecordCheckout(CheckoutRedirected)
	c.RecordSessionEnded("logout")

	assert.Equal(t, 2.0, testutil.ToFloat64(c.cartMutations.WithLabelValues("add")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.cartMutations.WithLabelValues("clear")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.checkouts.WithLabelValues(CheckoutRedirected)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.sessionsEnded.WithLabelValues("logout")))
}

func TestCollector_RecordAPIRequest(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordAPIRequest("POST /login", 200, 120*time.Millisecond)
	c.RecordAPIRequest("POST /login", 401, 80*time.Millisecond)

	assert.Equal(t, 1.0, testutil.ToFloat64(c.apiRequests.WithLabelValues("POST /login", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.apiRequests.WithLabelValues("POST /login", "401")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.apiLatency))
}

func TestHandler_ExposesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordCartMutation("remove")

	srv := httptest.NewServer(Handler(reg))
	defer srv.Close()

	resp, err := http.Get(srv.URL)
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.True(t, strings.Contains(string(body), `storefront_cart_mutations_total{op="remove"} 1`))
}

func TestWriteFile(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordCheckout(CheckoutEmptyCart)
	path := filepath.Join(t.TempDir(), "storefront.prom")

	require.NoError(t, WriteFile(path, reg))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `storefront_checkout_total{outcome="empty_cart"} 1`)
}

func TestNop(t *testing.T) {
	var r Recorder = Nop{}
	r.RecordCartMutation("add")
	r.RecordCheckout(CheckoutFailed)
	r.RecordAPIRequest("GET /users/me", 500, time.Second)
	r.RecordSessionEnded("expired")
}
