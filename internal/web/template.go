package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/peak-switch/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"stamp": func(t time.Time) string {
		if t.IsZero() {
			return "never"
		}
		return t.Format("2006-01-02 15:04:05")
	},
	"stateOrUnknown": func(s string) string {
		if s == "" {
			return "UNKNOWN"
		}
		return s
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Peak Switch</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: green; font-weight: bold; }
.off { color: #888; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
.error { color: red; }
</style>
</head>
<body>
<h1>Peak Switch</h1>

<h2>State</h2>
{{$sw := stateOrUnknown (printf "%s" .Switch)}}<table>
<tr><th>Switch {{.Config.SwitchID}}</th><td id="switch-state" class="{{if eq $sw "ON"}}on{{else if eq $sw "OFF"}}off{{else}}unknown{{end}}">{{$sw}}</td></tr>
<tr><th>Classification</th><td>{{.Code}}</td></tr>
<tr><th>Period</th><td>{{if .Period}}{{.Period}}{{else}}UNKNOWN{{end}}</td></tr>
<tr><th>Last fetch</th><td>{{stamp .LastFetch}}</td></tr>
<tr><th>Next wake</th><td>{{if .NextWakeKind}}{{stamp .NextWake}} ({{.NextWakeKind}}){{else}}none{{end}}</td></tr>
{{if .LastError}}<tr><th>Last error</th><td class="error">{{.LastError}} at {{stamp .LastErrorAt}}</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
<tr><th>Source</th><td>{{.Config.SourceURL}}</td></tr>
</table>

<h2>Counts</h2>
<table>
<tr><th>Fetches</th><td>{{.Counts.Fetches}}</td></tr>
<tr><th>Fetch failures</th><td>{{.Counts.FetchFailures}}</td></tr>
<tr><th>Switch commands</th><td>{{.Counts.SwitchCommands}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Peak window</th><td>{{printf "%02d:00" .Config.PeakStartHour}} to {{printf "%02d:00" .Config.PeakEndHour}}</td></tr>
<tr><th>Daily refresh</th><td>{{printf "%02d:00" .Config.DailyRefreshHour}}</td></tr>
<tr><th>Retry delay</th><td>{{.Config.RetryDelaySeconds}}s</td></tr>
<tr><th>Fallback</th><td>{{.Config.FallbackPolicy}}</td></tr>
<tr><th>Notifications</th><td>{{if .Config.NotificationsEnabled}}enabled{{else}}disabled{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> | <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() method but template needs a Duration field.
	data := struct {
		status.Snapshot
		Uptime time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
	}
	indexTmpl.Execute(w, data)
}
