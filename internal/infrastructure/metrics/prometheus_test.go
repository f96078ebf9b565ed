package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"token_farm/internal/app/port"
	"token_farm/internal/domain/entity"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPrometheusMetrics(t *testing.T) {
	m := NewPrometheusMetrics("tokenfarm")

	m.IncTransaction(entity.TxApprove, "submitted")
	m.IncTransaction(entity.TxApprove, "submitted")
	m.IncTransaction(entity.TxStake, "rejected")
	m.IncBalanceQuery(entity.StakedBalance, "success")
	m.ObserveStartupStage("connect", 20*time.Millisecond)
	m.SetLoading(true)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.transactions.WithLabelValues("approve", "submitted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transactions.WithLabelValues("stake", "rejected")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.balanceQueries.WithLabelValues("stakingBalance", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.loading))
	m.SetLoading(false)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.loading))

	rec := httptest.NewRecorder()
	m.HTTPHandler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "tokenfarm_transactions_total")
	assert.Contains(t, rec.Body.String(), "tokenfarm_startup_stage_seconds")
}

func TestNopMetricsImplementsPort(t *testing.T) {
	var m port.Metrics = NewNopMetrics()
	m.SetLoading(true)
	m.IncTransaction(entity.TxUnstake, "confirmed")
}
