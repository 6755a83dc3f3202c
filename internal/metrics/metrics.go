// Package metrics defines the Prometheus collectors exposed by nutd's
// embedded admin HTTP server (internal/adminhttp). It is grounded on the
// teacher's daemon/services/api/metrics.go: package-level collector vars, a
// dedicated Registry instead of the global default, and an init() that
// registers everything up front. The label shapes mirror what
// michaelkoetter-go-nut/nut.go polls over the wire (per-UPS gauges), since
// that package is itself a NUT-specific Prometheus exporter.
package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	// DSPConnections tracks the number of live connections to a driver's
	// Unix socket, labeled by UPS name — the Go-side view of the conn_t
	// list walked by send_to_all in drivers/dstate.c.
	DSPConnections = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nutd_dsp_connections",
			Help: "Number of live connections to a driver's DSP socket",
		},
		[]string{"ups"},
	)

	// DSPBroadcastDrops counts connections dropped because their outbound
	// buffer was full during a broadcast or DUMPALL, the Go equivalent of
	// the original's sock_fail disconnect-on-short-write path.
	DSPBroadcastDrops = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutd_dsp_broadcast_drops_total",
			Help: "Connections dropped for a full outbound buffer during broadcast",
		},
		[]string{"ups"},
	)

	// ShadowLiveness is 1 while a server-side Shadow (internal/sss) has
	// heard from its driver within the configured max age, 0 once it is
	// considered stale (DATA-STALE is served to clients until DATAOK
	// resumes or the socket is actually reset by an I/O failure).
	ShadowLiveness = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nutd_shadow_liveness",
			Help: "Whether a server-side UPS shadow has a live, fresh driver connection (1) or not (0)",
		},
		[]string{"ups"},
	)

	// LogEventsTotal counts every log line emitted by internal/logging,
	// labeled by level, so a quietly-degrading driver (rising warning/error
	// rate with no corresponding liveness drop) shows up on the same
	// dashboard as the protocol metrics above.
	LogEventsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutd_log_events_total",
			Help: "Log lines emitted, by level",
		},
		[]string{"level"},
	)

	// NPESessions tracks how many clients are currently LOGGED_IN to each
	// UPS, labeled by UPS name — set on every LOGIN/LOGOUT/disconnect.
	NPESessions = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "nutd_npe_sessions",
			Help: "Clients currently logged in to a UPS, by UPS name",
		},
		[]string{"ups"},
	)

	// NPECommandsTotal counts client commands processed, labeled by verb
	// and outcome — "ok" or the ErrCode string written back to the client.
	NPECommandsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "nutd_npe_commands_total",
			Help: "Network protocol engine commands processed, by verb and outcome",
		},
		[]string{"verb", "outcome"},
	)
)

// Registry is the custom registry nutd serves instead of the global
// default, matching the teacher's metricsRegistry pattern so the exposed
// surface is exactly these collectors.
var Registry = prometheus.NewRegistry()

func init() {
	Registry.MustRegister(
		DSPConnections,
		DSPBroadcastDrops,
		ShadowLiveness,
		NPESessions,
		NPECommandsTotal,
		LogEventsTotal,
	)
}
