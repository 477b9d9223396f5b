// Package config loads process configuration from the environment
package config

import (
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
)

// Config is the server process configuration
type Config struct {
	Port            int           `env:"RPG_PROGRESSION_PORT"              envDefault:"50052"`
	RedisAddr       string        `env:"RPG_PROGRESSION_REDIS_ADDR"        envDefault:"localhost:6379"`
	RedisCluster    []string      `env:"RPG_PROGRESSION_REDIS_CLUSTER"     envSeparator:","`
	RedisPassword   string        `env:"RPG_PROGRESSION_REDIS_PASSWORD"`
	RedisTLS        bool          `env:"RPG_PROGRESSION_REDIS_TLS"`
	CompendiumPath  string        `env:"RPG_PROGRESSION_COMPENDIUM_PATH"   envDefault:"compendium.db"`
	SRDBaseURL      string        `env:"RPG_PROGRESSION_SRD_BASE_URL"      envDefault:"https://www.dnd5eapi.co/api/2014/"`
	SRDCacheTTL     time.Duration `env:"RPG_PROGRESSION_SRD_CACHE_TTL"     envDefault:"24h"`
	SnapshotTTL     time.Duration `env:"RPG_PROGRESSION_SNAPSHOT_TTL"      envDefault:"24h"`
	MaxLevel        int           `env:"RPG_PROGRESSION_MAX_LEVEL"         envDefault:"20"`
	HitPointAbility string        `env:"RPG_PROGRESSION_HIT_POINT_ABILITY" envDefault:"con"`
}

// Load parses the environment and validates the result
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "failed to parse environment")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks ranges and required values
func (c *Config) Validate() error {
	vb := errors.NewValidationBuilder()
	if err := errors.ValidateRange("RPG_PROGRESSION_PORT", c.Port, 1, 65535); err != nil {
		vb.Field("RPG_PROGRESSION_PORT", "must be between 1 and 65535")
	}
	if c.RedisAddr == "" && len(c.RedisCluster) == 0 {
		vb.RequiredField("RPG_PROGRESSION_REDIS_ADDR")
	}
	if c.CompendiumPath == "" {
		vb.RequiredField("RPG_PROGRESSION_COMPENDIUM_PATH")
	}
	if c.SRDCacheTTL < 0 {
		vb.InvalidField("RPG_PROGRESSION_SRD_CACHE_TTL", "cannot be negative")
	}
	if c.SnapshotTTL <= 0 {
		vb.InvalidField("RPG_PROGRESSION_SNAPSHOT_TTL", "must be positive")
	}
	if c.MaxLevel < 1 {
		vb.InvalidField("RPG_PROGRESSION_MAX_LEVEL", "must be positive")
	}
	if !dnd5e.IsValidAbility(c.HitPointAbility) {
		vb.InvalidField("RPG_PROGRESSION_HIT_POINT_ABILITY", "unknown ability "+c.HitPointAbility)
	}
	return vb.Build()
}
