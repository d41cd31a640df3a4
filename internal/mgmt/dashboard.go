package mgmt

import (
	"fmt"
	"html"
	"net/http"
	"sort"
	"strings"
)

// handleDashboard serves the live billing dashboard HTML page.
// Restricted to localhost; it exposes account ids and charge history.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	if !isLoopback(r.RemoteAddr) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}

	snaps := s.engine.Snapshots()
	sort.Slice(snaps, func(i, j int) bool {
		return snaps[i].CallID < snaps[j].CallID
	})

	var totalBilled float64
	for _, sn := range snaps {
		totalBilled += sn.TotalBilled
	}

	var b strings.Builder
	b.WriteString(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="5">
<title>Nibblebill - Live Billing</title>
<style>
  * { margin: 0; padding: 0; box-sizing: border-box; }
  body { font-family: 'SF Mono', 'Fira Code', 'Cascadia Code', monospace; background: #0d1117; color: #c9d1d9; padding: 24px; }
  h1 { color: #58a6ff; font-size: 18px; margin-bottom: 16px; }
  h2 { color: #8b949e; font-size: 13px; margin: 24px 0 8px; text-transform: uppercase; letter-spacing: 1px; }
  .summary { display: flex; gap: 24px; margin-bottom: 24px; padding: 16px; background: #161b22; border: 1px solid #30363d; border-radius: 6px; }
  .stat-label { font-size: 11px; color: #8b949e; text-transform: uppercase; letter-spacing: 1px; }
  .stat-value { font-size: 24px; font-weight: bold; color: #f0f6fc; }
  .stat-value.cost { color: #ffa657; }
  table { width: 100%; border-collapse: collapse; background: #161b22; border: 1px solid #30363d; border-radius: 6px; overflow: hidden; }
  th { text-align: left; padding: 10px 14px; font-size: 11px; color: #8b949e; text-transform: uppercase; letter-spacing: 1px; background: #0d1117; border-bottom: 1px solid #30363d; }
  td { padding: 10px 14px; font-size: 13px; border-bottom: 1px solid #21262d; }
  tr:last-child td { border-bottom: none; }
  .call-id { color: #58a6ff; }
  .cost { color: #ffa657; font-weight: bold; }
  .paused { color: #d29922; }
  .active { color: #3fb950; }
  .empty { text-align: center; padding: 40px; color: #8b949e; }
</style>
</head>
<body>
<h1>Nibblebill - Live Billing</h1>
<div class="summary">
  <div class="stat">
    <div class="stat-label">Metered Calls</div>
    <div class="stat-value">`)
	fmt.Fprintf(&b, "%d", len(snaps))
	b.WriteString(`</div>
  </div>
  <div class="stat">
    <div class="stat-label">Billed This Session</div>
    <div class="stat-value cost">`)
	fmt.Fprintf(&b, "%.6f", totalBilled)
	b.WriteString(`</div>
  </div>
</div>
<h2>Active Records</h2>
`)

	if len(snaps) == 0 {
		b.WriteString(`<table><tr><td class="empty">No metered calls</td></tr></table>`)
	} else {
		b.WriteString(`<table>
<tr><th>Call</th><th>Billed</th><th>Pending Credit</th><th>State</th><th>Last Boundary</th></tr>
`)
		for _, sn := range snaps {
			state, class := "metering", "active"
			if sn.Paused {
				state, class = "paused", "paused"
			}
			fmt.Fprintf(&b,
				`<tr><td class="call-id">%s</td><td class="cost">%.6f</td><td>%.6f</td><td class="%s">%s</td><td>%s</td></tr>`+"\n",
				html.EscapeString(sn.CallID), sn.TotalBilled, sn.BillAdjustments,
				class, state, sn.LastBilledAt.Format("15:04:05"))
		}
		b.WriteString("</table>\n")
	}

	b.WriteString(`<h2>Recent Charges</h2>
`)
	entries, err := s.journal.Recent(r.Context(), 25)
	switch {
	case err != nil:
		fmt.Fprintf(&b, `<table><tr><td class="empty">journal unavailable: %s</td></tr></table>`,
			html.EscapeString(err.Error()))
	case len(entries) == 0:
		b.WriteString(`<table><tr><td class="empty">No charges recorded</td></tr></table>`)
	default:
		b.WriteString(`<table>
<tr><th>Time</th><th>Call</th><th>Account</th><th>Kind</th><th>Amount</th><th>Total</th></tr>
`)
		for _, e := range entries {
			fmt.Fprintf(&b,
				`<tr><td>%s</td><td class="call-id">%s</td><td>%s</td><td>%s</td><td class="cost">%.6f</td><td>%.6f</td></tr>`+"\n",
				e.At.Format("15:04:05"), html.EscapeString(e.CallID),
				html.EscapeString(e.Account), html.EscapeString(e.Kind), e.Amount, e.Total)
		}
		b.WriteString("</table>\n")
	}

	b.WriteString(`</body>
</html>`)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write([]byte(b.String()))
}
