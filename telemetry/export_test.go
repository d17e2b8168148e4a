package telemetry

// NewEnabledRuntime returns a Runtime that reports itself enabled without
// installing exporters.
func NewEnabledRuntime() *Runtime {
	return &Runtime{enabled: true}
}

// NormalizeOTLPEndpoint exports normalizeOTLPEndpoint for testing.
func NormalizeOTLPEndpoint(raw string) (string, bool, error) {
	return normalizeOTLPEndpoint(raw)
}
