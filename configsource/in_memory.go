// Package configsource contains concrete implementations of
// core.ConfigSource, the admin-facing surface supplying immutable batch
// configuration payloads at batch creation time.
//
// The canonical ConfigSource interface lives in the core package. The engine
// treats resolved payloads as opaque records; this package only stores and
// hands them back.
package configsource

import (
	"sync"

	"github.com/hupe1980/groupmesh/core"
)

// InMemorySource is a trivial in-process ConfigSource keeping named batch
// configuration payloads in a map guarded by an RWMutex. Payloads are copied
// on put and resolve so a registered configuration can never be mutated
// after the fact.
type InMemorySource struct {
	mu      sync.RWMutex
	configs map[string]core.BatchConfig
}

// NewInMemorySource returns an empty in-memory configuration source.
func NewInMemorySource() *InMemorySource {
	return &InMemorySource{configs: make(map[string]core.BatchConfig)}
}

// Put registers (or overwrites) the payload under name.
func (s *InMemorySource) Put(name string, cfg core.BatchConfig) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.configs[name] = copyConfig(cfg)
	return nil
}

// Resolve returns the payload registered under name.
func (s *InMemorySource) Resolve(name string) (core.BatchConfig, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cfg, ok := s.configs[name]
	if !ok {
		return core.BatchConfig{}, false
	}
	return copyConfig(cfg), true
}

// Names returns the registered payload names. The slice is a snapshot and
// safe for caller mutation.
func (s *InMemorySource) Names() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	names := make([]string, 0, len(s.configs))
	for name := range s.configs {
		names = append(names, name)
	}
	return names
}

func copyConfig(cfg core.BatchConfig) core.BatchConfig {
	if cfg.Factors != nil {
		factors := make(map[string]any, len(cfg.Factors))
		for k, v := range cfg.Factors {
			factors[k] = v
		}
		cfg.Factors = factors
	}
	return cfg
}
