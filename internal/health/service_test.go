package health

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"bluegold-backend/internal/middleware"

	"github.com/alicebob/miniredis/v2"
	"github.com/glebarez/sqlite"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestCollectHealth_NothingConnected(t *testing.T) {
	r := CollectHealth(context.Background(), nil, nil)
	assert.Equal(t, "issue", r.Status)
	assert.Equal(t, "disconnected", r.Dependencies["database"].Status)
	assert.Equal(t, "disconnected", r.Dependencies["redis"].Status)
	assert.Zero(t, r.Traffic.TotalRequests)
	assert.NotEmpty(t, r.Runtime.GoVersion)
}

func TestCollectHealth_TrafficAndDatabase(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer rdb.Close()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)
	ctx := context.Background()

	r := CollectHealth(ctx, rdb, &GormPinger{DB: db})
	assert.Equal(t, "ok", r.Status)
	assert.Equal(t, "100", r.Traffic.SuccessRate)
	assert.NotNil(t, r.Dependencies["database"].PingMs)

	require.NoError(t, rdb.Set(ctx, middleware.KeyReqTotal, "10", 0).Err())
	require.NoError(t, rdb.Set(ctx, middleware.KeyReqErrors, "2", 0).Err())
	require.NoError(t, rdb.Set(ctx, middleware.KeyResTime, "150.5", 0).Err())
	require.NoError(t, rdb.Set(ctx, middleware.KeyResCount, "10", 0).Err())
	require.NoError(t, rdb.Set(ctx, middleware.KeyLastReq, `{"method":"GET","path":"/api/v1/investors","ip":"1.2.3.4"}`, 0).Err())

	r = CollectHealth(ctx, rdb, nil)
	assert.Equal(t, "issue", r.Status)
	assert.Equal(t, 10, r.Traffic.TotalRequests)
	assert.Equal(t, 8, r.Traffic.SuccessCount)
	assert.Equal(t, "80.0", r.Traffic.SuccessRate)
	assert.Equal(t, "15.05", r.Traffic.AvgResponseTime)
	assert.NotNil(t, r.Traffic.LastRequest)

	html := RenderDashboardHTML(r)
	assert.Contains(t, html, "System Issues Detected")
	assert.Contains(t, html, "GET /api/v1/investors 1.2.3.4")
}

func TestCollectHealth_Probes(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	defer srv.Close()

	r := CollectHealth(context.Background(), nil, nil,
		Probe{Name: "paystack", URL: srv.URL},
		Probe{Name: "frontend", URL: "http://127.0.0.1:1"},
		Probe{Name: "skipped"},
	)
	assert.Equal(t, "reachable", r.Dependencies["paystack"].Status)
	assert.Equal(t, "unreachable", r.Dependencies["frontend"].Status)
	assert.NotContains(t, r.Dependencies, "skipped")
}

func TestFormatUptime(t *testing.T) {
	assert.Equal(t, "1h 1m 1s", formatUptime(3661))
	assert.Equal(t, "2d 3h 0m", formatUptime(2*86400+3*3600))
}
