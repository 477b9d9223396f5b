package advancement

import (
	"context"

	"github.com/KirkDiggler/rpg-toolkit/dice"

	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
	"github.com/KirkDiggler/rpg-progression/internal/pkg/idgen"
	"github.com/KirkDiggler/rpg-progression/internal/resolver"
)

// Defaults applied by Config.Validate
const (
	DefaultMaxLevel        = 20
	DefaultHitPointAbility = dnd5e.AbilityConstitution
	DefaultSize            = dnd5e.SizeMedium
)

// Config holds the engine's collaborators and rules settings
type Config struct {
	Registry    *Registry
	Resolver    resolver.Resolver
	Roller      dice.Roller
	IDGenerator idgen.Generator

	// MaxLevel bounds the levels hit points apply at
	MaxLevel int
	// HitPointAbility is the ability whose modifier is added to hit points
	HitPointAbility string
	// DefaultSize is the size a character returns to when a size grant is reversed
	DefaultSize string
}

// Validate validates the config and fills defaults
func (c *Config) Validate() error {
	if c == nil {
		return errors.InvalidArgument("config is required")
	}

	if c.MaxLevel == 0 {
		c.MaxLevel = DefaultMaxLevel
	}
	if c.HitPointAbility == "" {
		c.HitPointAbility = DefaultHitPointAbility
	}
	if c.DefaultSize == "" {
		c.DefaultSize = DefaultSize
	}

	vb := errors.NewValidationBuilder()
	if c.Registry == nil {
		vb.RequiredField("Registry")
	}
	if c.Resolver == nil {
		vb.RequiredField("Resolver")
	}
	if c.Roller == nil {
		vb.RequiredField("Roller")
	}
	if c.IDGenerator == nil {
		vb.RequiredField("IDGenerator")
	}
	if c.MaxLevel < 1 {
		vb.InvalidField("MaxLevel", "must be positive")
	}
	if !dnd5e.IsValidAbility(c.HitPointAbility) {
		vb.InvalidField("HitPointAbility", "unknown ability "+c.HitPointAbility)
	}
	if !dnd5e.IsValidSize(c.DefaultSize) {
		vb.InvalidField("DefaultSize", "unknown size "+c.DefaultSize)
	}
	return vb.Build()
}

// Engine builds advancement-bearing items from persisted data
type Engine struct {
	registry        *Registry
	resolver        resolver.Resolver
	roller          dice.Roller
	ids             idgen.Generator
	maxLevel        int
	hitPointAbility string
	defaultSize     string
}

// New creates an engine
func New(cfg *Config) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Engine{
		registry:        cfg.Registry,
		resolver:        cfg.Resolver,
		roller:          cfg.Roller,
		ids:             cfg.IDGenerator,
		maxLevel:        cfg.MaxLevel,
		hitPointAbility: cfg.HitPointAbility,
		defaultSize:     cfg.DefaultSize,
	}, nil
}

// Registry returns the engine's type registry
func (e *Engine) Registry() *Registry {
	return e.registry
}

// MaxLevel returns the highest class level
func (e *Engine) MaxLevel() int {
	return e.maxLevel
}

// NewItem builds an advancement-bearing item from a copy of data
func (e *Engine) NewItem(ctx context.Context, data *dnd5e.Item) (*Item, error) {
	if data == nil {
		return nil, errors.InvalidArgument("item is required")
	}

	item := &Item{engine: e}
	advs, err := newCollection(item)
	if err != nil {
		return nil, err
	}
	item.advancements = advs

	if err := item.Refresh(ctx, data); err != nil {
		return nil, err
	}
	return item, nil
}

func (e *Engine) resolve(ctx context.Context, uuid string) (*dnd5e.Item, error) {
	item, err := e.resolver.Resolve(ctx, uuid)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to resolve %s", uuid)
	}
	if item == nil {
		return nil, nil
	}
	return item.Clone()
}
