package v1

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dmehra2102/prod-golang-projects/rxintake/internal/config"
)

func TestIPLimiters_EvictsIdleClients(t *testing.T) {
	now := time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC)
	store := newIPLimiters(config.RateLimitConfig{RequestsPerSecond: 1, BurstSize: 1})
	store.now = func() time.Time { return now }

	store.get("10.0.0.1")
	store.get("10.0.0.2")
	require.Equal(t, 2, store.len())

	now = now.Add(limiterIdleTTL / 2)
	store.get("10.0.0.2")
	assert.Equal(t, 2, store.len(), "no sweep before the interval elapses")

	now = now.Add(limiterIdleTTL / 2)
	store.get("10.0.0.3")
	assert.Equal(t, 2, store.len(), "10.0.0.1 was idle for a full interval")

	now = now.Add(2 * limiterIdleTTL)
	store.get("10.0.0.4")
	assert.Equal(t, 1, store.len())
}

func TestRateLimit_EvictedClientGetsFreshBucket(t *testing.T) {
	now := time.Date(2024, 3, 20, 8, 0, 0, 0, time.UTC)
	store := newIPLimiters(config.RateLimitConfig{RequestsPerSecond: 0.0001, BurstSize: 1})
	store.now = func() time.Time { return now }

	r := gin.New()
	r.Use(rateLimit(store))
	r.GET("/", func(c *gin.Context) { c.Status(http.StatusOK) })

	hit := func() int {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
		return w.Code
	}

	assert.Equal(t, http.StatusOK, hit())
	assert.Equal(t, http.StatusTooManyRequests, hit())

	now = now.Add(limiterIdleTTL)
	assert.Equal(t, http.StatusOK, hit())
	assert.Equal(t, 1, store.len())
}
