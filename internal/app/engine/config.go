package engine

import (
	"time"

	"zk-attestation/internal/app/attestation"
	"zk-attestation/internal/app/proofcache"
)

const (
	DefaultBatchGroupSize = 3
	DefaultTimeout        = 30 * time.Second
)

// Config is copied at construction and never changes afterwards.
type Config struct {
	CacheTTL       time.Duration
	BatchGroupSize int
	Timeouts       map[attestation.Kind]time.Duration
}

func DefaultConfig() Config {
	return Config{
		CacheTTL:       proofcache.DefaultTTL,
		BatchGroupSize: DefaultBatchGroupSize,
		Timeouts: map[attestation.Kind]time.Duration{
			attestation.KindAge:        30 * time.Second,
			attestation.KindRegion:     20 * time.Second,
			attestation.KindUniqueness: 20 * time.Second,
		},
	}
}

func (c Config) withDefaults() Config {
	def := DefaultConfig()
	out := Config{
		CacheTTL:       c.CacheTTL,
		BatchGroupSize: c.BatchGroupSize,
		Timeouts:       make(map[attestation.Kind]time.Duration, len(def.Timeouts)),
	}
	if out.CacheTTL <= 0 {
		out.CacheTTL = def.CacheTTL
	}
	if out.BatchGroupSize <= 0 {
		out.BatchGroupSize = def.BatchGroupSize
	}
	for kind, d := range def.Timeouts {
		out.Timeouts[kind] = d
	}
	for kind, d := range c.Timeouts {
		if d > 0 {
			out.Timeouts[kind] = d
		}
	}
	return out
}

func (c Config) timeout(kind attestation.Kind) time.Duration {
	if d, ok := c.Timeouts[kind]; ok {
		return d
	}
	return DefaultTimeout
}
