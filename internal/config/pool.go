package config

import (
	"github.com/codepr/rlb/internal/backend"
	"github.com/codepr/rlb/internal/balancing"
)

// BuildBackends converts a Config's backend list into backend.Backend
// instances in the same order they were declared (spec §3: stable
// insertion order, stable indices).
func (c *Config) BuildBackends() []*backend.Backend {
	out := make([]*backend.Backend, len(c.Backends))
	for i, bc := range c.Backends {
		out[i] = backend.New(bc.Address, bc.HealthPath)
	}
	return out
}

// BuildPool constructs a backend.Pool bound to the policy named by the
// config's balancing tag.
func (c *Config) BuildPool() (*backend.Pool, error) {
	policy, err := balancing.New(c.Balancing)
	if err != nil {
		return nil, err
	}
	return backend.NewPool(c.BuildBackends(), policy), nil
}
