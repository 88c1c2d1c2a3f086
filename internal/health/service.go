package health

import (
	"context"
	"encoding/json"
	"net/http"
	"runtime"
	"strconv"
	"time"

	"bluegold-backend/internal/middleware"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const probeTimeout = 3 * time.Second

// DBPinger reports whether the record store answers. A nil pinger is
// reported as disconnected.
type DBPinger interface {
	Ping() error
}

// GormPinger pings the pool behind a gorm handle.
type GormPinger struct {
	DB *gorm.DB
}

func (g *GormPinger) Ping() error {
	if g == nil || g.DB == nil {
		return nil
	}
	sqlDB, err := g.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Ping()
}

// Probe is an external HTTP dependency checked for reachability. Any HTTP
// response counts as reachable.
type Probe struct {
	Name string
	URL  string
}

type Report struct {
	Status       string               `json:"status"`
	Runtime      RuntimeInfo          `json:"runtime"`
	Traffic      TrafficInfo          `json:"traffic"`
	Dependencies map[string]DepStatus `json:"dependencies"`
}

type RuntimeInfo struct {
	UptimeSeconds int64  `json:"uptimeSeconds"`
	HeapMB        int    `json:"heapMb"`
	AllocMB       int    `json:"allocMb"`
	Goroutines    int    `json:"goroutines"`
	Platform      string `json:"platform"`
	GoVersion     string `json:"goVersion"`
}

type TrafficInfo struct {
	TotalRequests   int         `json:"totalRequests"`
	SuccessCount    int         `json:"successCount"`
	FailedCount     int         `json:"failedCount"`
	SuccessRate     string      `json:"successRate"`
	AvgResponseTime string      `json:"avgResponseTime"`
	LastRequest     interface{} `json:"lastRequest"`
}

type DepStatus struct {
	Status string `json:"status"`
	PingMs *int64 `json:"pingMs"`
}

// CollectHealth gathers store and redis connectivity, request counters kept
// by HealthMarker, runtime stats and the reachability of each probe. The
// overall status is "ok" only when both the database and redis answer.
func CollectHealth(ctx context.Context, rdb *redis.Client, db DBPinger, probes ...Probe) Report {
	out := Report{Dependencies: map[string]DepStatus{}}

	dbDep := DepStatus{Status: "disconnected"}
	if db != nil {
		start := time.Now()
		if err := db.Ping(); err != nil {
			dbDep.Status = "error"
		} else {
			dbDep = DepStatus{Status: "connected", PingMs: since(start)}
		}
	}
	out.Dependencies["database"] = dbDep

	startMs := time.Now().UnixMilli()
	out.Traffic = TrafficInfo{SuccessRate: "100", AvgResponseTime: "0"}
	redisDep := DepStatus{Status: "disconnected"}
	if rdb != nil {
		start := time.Now()
		if err := rdb.Ping(ctx).Err(); err != nil {
			redisDep.Status = "error"
		} else {
			redisDep = DepStatus{Status: "connected", PingMs: since(start)}
			startMs = readTraffic(ctx, rdb, &out.Traffic, startMs)
		}
	}
	out.Dependencies["redis"] = redisDep

	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	uptime := (time.Now().UnixMilli() - startMs) / 1000
	if uptime < 0 {
		uptime = 0
	}
	out.Runtime = RuntimeInfo{
		UptimeSeconds: uptime,
		HeapMB:        int(m.HeapInuse / 1024 / 1024),
		AllocMB:       int(m.Alloc / 1024 / 1024),
		Goroutines:    runtime.NumGoroutine(),
		Platform:      runtime.GOOS + " (" + runtime.GOARCH + ")",
		GoVersion:     runtime.Version(),
	}

	for _, p := range probes {
		if p.URL == "" {
			continue
		}
		dep := DepStatus{Status: "unreachable"}
		if ms := httpPing(ctx, p.URL); ms != nil {
			dep = DepStatus{Status: "reachable", PingMs: ms}
		}
		out.Dependencies[p.Name] = dep
	}

	out.Status = "issue"
	if dbDep.Status == "connected" && redisDep.Status == "connected" {
		out.Status = "ok"
	}
	return out
}

func readTraffic(ctx context.Context, rdb *redis.Client, t *TrafficInfo, startMs int64) int64 {
	vals, err := rdb.MGet(ctx, middleware.KeyReqTotal, middleware.KeyReqErrors, middleware.KeyResTime,
		middleware.KeyResCount, middleware.KeyStartTime, middleware.KeyLastReq).Result()
	if err != nil {
		return startMs
	}
	str := func(i int) string {
		s, _ := vals[i].(string)
		return s
	}
	if s := str(4); s != "" {
		if v, err := strconv.ParseInt(s, 10, 64); err == nil {
			startMs = v
		}
	} else {
		rdb.Set(ctx, middleware.KeyStartTime, startMs, 0)
	}
	t.TotalRequests, _ = strconv.Atoi(str(0))
	t.FailedCount, _ = strconv.Atoi(str(1))
	t.SuccessCount = t.TotalRequests - t.FailedCount
	if t.TotalRequests > 0 {
		t.SuccessRate = strconv.FormatFloat(float64(t.SuccessCount)/float64(t.TotalRequests)*100, 'f', 1, 64)
	}
	sum, _ := strconv.ParseFloat(str(2), 64)
	if n, _ := strconv.Atoi(str(3)); n > 0 {
		t.AvgResponseTime = strconv.FormatFloat(sum/float64(n), 'f', 2, 64)
	}
	if s := str(5); s != "" {
		var last map[string]interface{}
		if json.Unmarshal([]byte(s), &last) == nil {
			t.LastRequest = last
		}
	}
	return startMs
}

func since(start time.Time) *int64 {
	ms := time.Since(start).Milliseconds()
	return &ms
}

func httpPing(ctx context.Context, url string) *int64 {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil
	}
	start := time.Now()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil
	}
	resp.Body.Close()
	return since(start)
}
