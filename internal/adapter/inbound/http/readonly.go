package edgegateway

import "github.com/meridianmesh/edge-gateway/internal/domain/readonly"

// newReadOnlyGate builds a readonly.Gate over Config's current values.
// ReadOnlyMode is captured at router-build time; operators flipping
// READ_ONLY_MODE at runtime requires the composition root to rebuild this
// closure. EnabledFunc exists precisely so a future composition root could
// instead close over a config pointer and hot-swap it; Config is a value
// today because no hot-reload path exists yet.
func newReadOnlyGate(cfg Config) *readonly.Gate {
	return readonly.NewGate(func() bool { return cfg.ReadOnlyMode }, cfg.ReadOnlyExemptPrefixes)
}
