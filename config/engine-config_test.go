package config

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValidate(t *testing.T) {
	require.NoError(t, New().EngineConfig.Validate())

	cases := map[string]func(c *EngineConfig){
		"degree":  func(c *EngineConfig) { c.Degree = 2 },
		"growth":  func(c *EngineConfig) { c.GrowthNodeCount = 0 },
		"layout":  func(c *EngineConfig) { c.Layout = "striped" },
		"pool":    func(c *EngineConfig) { c.PoolPolicy = "lru" },
		"bounded": func(c *EngineConfig) { c.PoolPolicy = PoolBounded; c.MaxOpenFiles = 0 },
		"reclaim": func(c *EngineConfig) { c.ReclaimScan = "all" },
		"chunk":   func(c *EngineConfig) { c.MaxChunkSize = -1 },
		"dir":     func(c *EngineConfig) { c.BaseDir = "" },
		"lock":    func(c *EngineConfig) { c.LockScope = "row" },
		"lookups": func(c *EngineConfig) { c.LookupCacheSize = -1 },
	}
	for name, mutate := range cases {
		c := NewEngineConfig()
		mutate(c)
		require.Error(t, c.Validate(), name)
	}
}
