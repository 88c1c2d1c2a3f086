package health

import (
	"encoding/json"
	"fmt"
	"html/template"
	"sort"
	"strings"
)

var dashboardTmpl = template.Must(template.New("dashboard").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
  <meta charset="UTF-8">
  <title>Blue Gold Investments · API Status</title>
  <meta name="viewport" content="width=device-width, initial-scale=1" />
  <style>
    :root { --navy: #0B2545; --gold: #C9A227; --bg: #F5F7FA; --muted: #64748b; --bad: #DC2626; }
    body { background: var(--bg); color: var(--navy); font-family: system-ui, sans-serif; margin: 0; display: flex; justify-content: center; }
    .wrap { width: 100%; max-width: 980px; padding: 40px 20px; }
    h1 { font-size: 44px; font-weight: 900; margin: 0 0 8px; }
    h1.issue { color: var(--bad); }
    .sub { color: var(--muted); font-weight: 600; margin-bottom: 28px; }
    .grid { display: grid; grid-template-columns: repeat(3, 1fr); gap: 16px; }
    .card { background: white; border-radius: 18px; padding: 28px; box-shadow: 0 10px 40px -20px rgba(11,37,69,0.3); }
    .label { text-transform: uppercase; font-size: 11px; letter-spacing: 2px; color: var(--muted); font-weight: 800; margin-bottom: 16px; }
    .big { font-size: 36px; font-weight: 900; margin-bottom: 8px; }
    .row { display: flex; justify-content: space-between; padding: 6px 0; font-weight: 600; border-bottom: 1px solid #eef2f6; }
    .row:last-child { border-bottom: none; }
    .ok { color: var(--gold); }
    .err { color: var(--bad); }
    .foot { margin-top: 20px; font-family: monospace; color: var(--muted); display: flex; justify-content: space-between; }
    a { color: var(--navy); font-weight: 700; }
    @media (max-width: 800px) { .grid { grid-template-columns: 1fr; } }
  </style>
</head>
<body>
  <div class="wrap">
    <h1 id="headline" class="{{.Status}}">{{if eq .Status "ok"}}All Systems Operational{{else}}System Issues Detected{{end}}</h1>
    <div class="sub">Weekly interest engine, ledger and payments API.</div>
    <div class="grid">
      <div class="card">
        <div class="label">Traffic</div>
        <div class="big" id="total-req">{{.Traffic.TotalRequests}}</div>
        <div class="row"><span>Successful</span><span id="success-count">{{.Traffic.SuccessCount}}</span></div>
        <div class="row"><span>Failed</span><span id="failed-count">{{.Traffic.FailedCount}}</span></div>
        <div class="row"><span>Success rate</span><span id="success-rate">{{.Traffic.SuccessRate}}%</span></div>
        <div class="row"><span>Avg latency</span><span id="avg-time">{{.Traffic.AvgResponseTime}}ms</span></div>
      </div>
      <div class="card">
        <div class="label">Runtime</div>
        <div class="big" id="uptime">{{.Uptime}}</div>
        <div class="row"><span>Heap in use</span><span id="heap">{{.Runtime.HeapMB}} MB</span></div>
        <div class="row"><span>Goroutines</span><span id="goroutines">{{.Runtime.Goroutines}}</span></div>
        <div class="row"><span>Platform</span><span>{{.Runtime.Platform}}</span></div>
        <div class="row"><span>Go</span><span>{{.Runtime.GoVersion}}</span></div>
      </div>
      <div class="card">
        <div class="label">Dependencies</div>
        {{range .Deps}}<div class="row"><span>{{.Name}}</span><span id="dep-{{.Name}}" class="{{if .Healthy}}ok{{else}}err{{end}}">{{.Status}}{{if .PingMs}} · {{.PingMs}} ms{{end}}</span></div>
        {{end}}
      </div>
    </div>
    <div class="foot">
      <span>LAST INBOUND {{.LastRequest}}</span>
      <span><a href="/health/json">/health/json</a> · <a href="/health/errors">/health/errors</a></span>
    </div>
  </div>
  <script>
    const initial = {{.JSON}};
    const render = (d) => {
      document.getElementById('total-req').innerText = d.traffic.totalRequests;
      document.getElementById('success-count').innerText = d.traffic.successCount;
      document.getElementById('failed-count').innerText = d.traffic.failedCount;
      document.getElementById('success-rate').innerText = d.traffic.successRate + '%';
      document.getElementById('avg-time').innerText = d.traffic.avgResponseTime + 'ms';
      document.getElementById('heap').innerText = d.runtime.heapMb + ' MB';
      document.getElementById('goroutines').innerText = d.runtime.goroutines;
      for (const [name, dep] of Object.entries(d.dependencies)) {
        const el = document.getElementById('dep-' + name);
        if (!el) continue;
        const ok = dep.status === 'connected' || dep.status === 'reachable';
        el.className = ok ? 'ok' : 'err';
        el.innerText = dep.status + (dep.pingMs != null ? ' · ' + dep.pingMs + ' ms' : '');
      }
      const hl = document.getElementById('headline');
      hl.className = d.status;
      hl.innerText = d.status === 'ok' ? 'All Systems Operational' : 'System Issues Detected';
    };
    render(JSON.parse(initial));
    let left = 3;
    const timer = setInterval(async () => {
      if (--left < 0) { clearInterval(timer); return; }
      try { const r = await fetch('/health/json'); render(await r.json()); } catch (e) {}
    }, 10000);
  </script>
</body>
</html>`))

type depRow struct {
	Name    string
	Status  string
	PingMs  *int64
	Healthy bool
}

// RenderDashboardHTML renders the status page served at GET /.
func RenderDashboardHTML(r Report) string {
	names := make([]string, 0, len(r.Dependencies))
	for name := range r.Dependencies {
		names = append(names, name)
	}
	sort.Strings(names)
	deps := make([]depRow, 0, len(names))
	for _, name := range names {
		d := r.Dependencies[name]
		deps = append(deps, depRow{
			Name:    name,
			Status:  d.Status,
			PingMs:  d.PingMs,
			Healthy: d.Status == "connected" || d.Status == "reachable",
		})
	}

	last := "-"
	if m, ok := r.Traffic.LastRequest.(map[string]interface{}); ok {
		last = strings.TrimSpace(fmt.Sprintf("%v %v %v", m["method"], m["path"], m["ip"]))
	}
	payload, _ := json.Marshal(r)

	var b strings.Builder
	err := dashboardTmpl.Execute(&b, map[string]interface{}{
		"Status":      r.Status,
		"Traffic":     r.Traffic,
		"Runtime":     r.Runtime,
		"Uptime":      formatUptime(r.Runtime.UptimeSeconds),
		"Deps":        deps,
		"LastRequest": last,
		"JSON":        string(payload),
	})
	if err != nil {
		return "<!DOCTYPE html><html><body><h1>" + template.HTMLEscapeString(r.Status) + "</h1></body></html>"
	}
	return b.String()
}

func formatUptime(s int64) string {
	d, h, m := s/86400, (s%86400)/3600, (s%3600)/60
	if d > 0 {
		return fmt.Sprintf("%dd %dh %dm", d, h, m)
	}
	return fmt.Sprintf("%dh %dm %ds", h, m, s%60)
}
