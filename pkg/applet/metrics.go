package applet

// Metrics receives observations from the applet lifecycle. The concrete
// Prometheus implementation lives in pkg/metrics; a nil Metrics disables
// collection.
type Metrics interface {
	// ObserveDecode records one argument-blob decode attempt.
	ObserveDecode(shimKind string, entries int, failed bool)

	// ObserveResolution records one offline document resolution.
	ObserveResolution(source string, cacheHit bool, seconds float64)

	// ObserveCompletion records one completed invocation.
	ObserveCompletion(shimKind string, exitReason string)
}

// nopMetrics backs the nil case so call sites never branch.
type nopMetrics struct{}

func (nopMetrics) ObserveDecode(string, int, bool)         {}
func (nopMetrics) ObserveResolution(string, bool, float64) {}
func (nopMetrics) ObserveCompletion(string, string)        {}

func orNop(m Metrics) Metrics {
	if m == nil {
		return nopMetrics{}
	}
	return m
}
