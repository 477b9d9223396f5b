package config_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/KirkDiggler/rpg-progression/internal/config"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := config.Load()
	require.NoError(t, err)

	assert.Equal(t, 50052, cfg.Port)
	assert.Equal(t, "localhost:6379", cfg.RedisAddr)
	assert.Equal(t, "compendium.db", cfg.CompendiumPath)
	assert.Equal(t, 24*time.Hour, cfg.SnapshotTTL)
	assert.Equal(t, 20, cfg.MaxLevel)
	assert.Equal(t, "con", cfg.HitPointAbility)
}

func TestLoadFromEnvironment(t *testing.T) {
	t.Setenv("RPG_PROGRESSION_PORT", "6000")
	t.Setenv("RPG_PROGRESSION_SNAPSHOT_TTL", "2h")
	t.Setenv("RPG_PROGRESSION_MAX_LEVEL", "30")
	t.Setenv("RPG_PROGRESSION_REDIS_CLUSTER", "redis-a:6379,redis-b:6379")
	t.Setenv("RPG_PROGRESSION_REDIS_TLS", "true")

	cfg, err := config.Load()
	require.NoError(t, err)
	assert.Equal(t, 6000, cfg.Port)
	assert.Equal(t, 2*time.Hour, cfg.SnapshotTTL)
	assert.Equal(t, 30, cfg.MaxLevel)
	assert.Equal(t, []string{"redis-a:6379", "redis-b:6379"}, cfg.RedisCluster)
	assert.True(t, cfg.RedisTLS)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "unparseable duration", key: "RPG_PROGRESSION_SNAPSHOT_TTL", value: "soon"},
		{name: "port out of range", key: "RPG_PROGRESSION_PORT", value: "70000"},
		{name: "unknown ability", key: "RPG_PROGRESSION_HIT_POINT_ABILITY", value: "luck"},
		{name: "zero max level", key: "RPG_PROGRESSION_MAX_LEVEL", value: "0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			_, err := config.Load()
			require.Error(t, err)
			assert.True(t, errors.IsInvalidArgument(err))
		})
	}
}
