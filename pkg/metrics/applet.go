package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/marmos91/webshim/pkg/applet"
)

// AppletMetrics tracks web applet lifecycle metrics.
//
// All metrics use the webshim_ prefix. The type implements applet.Metrics;
// a nil *AppletMetrics is a valid no-op receiver.
type AppletMetrics struct {
	// DecodesTotal counts argument-blob decodes by shim kind and status
	DecodesTotal *prometheus.CounterVec

	// DecodedEntries tracks how many TLV entries each blob carried
	DecodedEntries prometheus.Histogram

	// ResolutionsTotal counts offline resolutions by source and cache outcome
	ResolutionsTotal *prometheus.CounterVec

	// ResolutionDuration tracks resolution latency by source
	ResolutionDuration *prometheus.HistogramVec

	// CompletionsTotal counts completed invocations by shim kind and exit reason
	CompletionsTotal *prometheus.CounterVec
}

// NewAppletMetrics creates applet metrics registered against the process
// registry. Returns nil when metrics are disabled (InitRegistry not called).
func NewAppletMetrics() *AppletMetrics {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}
	return newAppletMetrics(reg)
}

func newAppletMetrics(reg prometheus.Registerer) *AppletMetrics {
	m := &AppletMetrics{
		DecodesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webshim_argument_decodes_total",
				Help: "Total argument-blob decodes by shim kind and status",
			},
			[]string{"shim_kind", "status"}, // status: "ok", "error"
		),
		DecodedEntries: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "webshim_argument_entries",
				Help:    "TLV entries carried by each decoded argument blob",
				Buckets: []float64{0, 1, 2, 4, 8, 16},
			},
		),
		ResolutionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webshim_offline_resolutions_total",
				Help: "Total offline document resolutions by source and cache outcome",
			},
			[]string{"source", "cache"}, // cache: "hit", "miss"
		),
		ResolutionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "webshim_offline_resolution_duration_seconds",
				Help:    "Offline document resolution duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"source"},
		),
		CompletionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "webshim_completions_total",
				Help: "Total completed invocations by shim kind and exit reason",
			},
			[]string{"shim_kind", "exit_reason"},
		),
	}

	reg.MustRegister(
		m.DecodesTotal,
		m.DecodedEntries,
		m.ResolutionsTotal,
		m.ResolutionDuration,
		m.CompletionsTotal,
	)

	return m
}

var _ applet.Metrics = (*AppletMetrics)(nil)

// ObserveDecode records one argument-blob decode attempt.
func (m *AppletMetrics) ObserveDecode(shimKind string, entries int, failed bool) {
	if m == nil {
		return
	}
	status := "ok"
	if failed {
		status = "error"
	}
	m.DecodesTotal.WithLabelValues(shimKind, status).Inc()
	if !failed {
		m.DecodedEntries.Observe(float64(entries))
	}
}

// ObserveResolution records one offline document resolution.
func (m *AppletMetrics) ObserveResolution(source string, cacheHit bool, seconds float64) {
	if m == nil {
		return
	}
	outcome := "miss"
	if cacheHit {
		outcome = "hit"
	}
	m.ResolutionsTotal.WithLabelValues(source, outcome).Inc()
	m.ResolutionDuration.WithLabelValues(source).Observe(seconds)
}

// ObserveCompletion records one completed invocation.
func (m *AppletMetrics) ObserveCompletion(shimKind string, exitReason string) {
	if m == nil {
		return
	}
	m.CompletionsTotal.WithLabelValues(shimKind, exitReason).Inc()
}
