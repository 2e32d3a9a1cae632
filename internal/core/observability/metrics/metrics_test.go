package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollector(t *testing.T) {
	c := NewCollector("behave")
	c.ObserveTick("patrol", "running", time.Millisecond)
	c.ObserveTick("patrol", "running", time.Millisecond)
	c.ObserveTick("patrol", "success", time.Millisecond)
	c.Fatal("patrol")
	c.SetAgents("patrol", 3)

	assert.Equal(t, 2.0, testutil.ToFloat64(c.ticks.WithLabelValues("patrol", "running")))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.fatal.WithLabelValues("patrol")))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.agents.WithLabelValues("patrol")))
	assert.Equal(t, 1, testutil.CollectAndCount(c.duration))
}

func TestHandler(t *testing.T) {
	c := NewCollector("behave")
	c.SetAgents("patrol", 1)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `behave_bound_agents{tree="patrol"} 1`)
}
