package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func scrape(t *testing.T) string {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rec := httptest.NewRecorder()
	require.NoError(t, Handler()(e.NewContext(req, rec)))
	require.Equal(t, http.StatusOK, rec.Code)
	return rec.Body.String()
}

func TestHandlerExposesCollectors(t *testing.T) {
	ObservePurchase("ok", 10*time.Millisecond)
	ObserveScan("admitted")
	CommitRetried()
	RateLimited("scan")

	body := scrape(t)
	assert.Contains(t, body, `ticketing_purchases_total{outcome="ok"}`)
	assert.Contains(t, body, `ticketing_scans_total{result="admitted"}`)
	assert.Contains(t, body, "ticketing_commit_retries_total")
	assert.Contains(t, body, `ticketing_rate_limited_total{scope="scan"}`)
	assert.Contains(t, body, "ticketing_purchase_duration_seconds_bucket")
}
