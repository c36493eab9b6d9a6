package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics_CustomRegistry(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics("test", reg)

	m.AuctionsInitialized.Inc()
	m.ClaimsTotal.WithLabelValues("SETTLED").Inc()
	m.ClaimsTotal.WithLabelValues("SETTLED").Inc()
	m.SettledLamports.Add(550)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.AuctionsInitialized))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.ClaimsTotal.WithLabelValues("SETTLED")))
	assert.Equal(t, 550.0, testutil.ToFloat64(m.SettledLamports))

	families, err := reg.Gather()
	require.NoError(t, err)
	var names []string
	for _, f := range families {
		names = append(names, f.GetName())
	}
	assert.Contains(t, names, "test_auction_initialized_total")
	assert.Contains(t, names, "test_auction_claims_total")
}

func TestRecordHelpers(t *testing.T) {
	before := testutil.ToFloat64(DefaultMetrics.ClaimsTotal.WithLabelValues("EXPIRED"))
	RecordClaim("EXPIRED")
	assert.Equal(t, before+1, testutil.ToFloat64(DefaultMetrics.ClaimsTotal.WithLabelValues("EXPIRED")))

	RecordSettlement(1000)
	assert.Equal(t, 1000.0, testutil.ToFloat64(DefaultMetrics.LastSettledPrice))

	gauge := testutil.ToFloat64(DefaultMetrics.FeedSubscribers)
	FeedSubscribed(1)
	FeedSubscribed(-1)
	assert.Equal(t, gauge, testutil.ToFloat64(DefaultMetrics.FeedSubscribers))
}

func TestHandler(t *testing.T) {
	RecordAuctionInitialized()

	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "dutch_auction_auction_initialized_total"))
}
