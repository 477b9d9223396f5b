package advancement

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"github.com/KirkDiggler/rpg-progression/internal/actor"
	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
)

// ScaleDistanceConfig holds the units of distance scales
type ScaleDistanceConfig struct {
	Units string `json:"units,omitempty"`
}

// ScaleValueConfig is the authored configuration
type ScaleValueConfig struct {
	Identifier string                  `json:"identifier,omitempty"`
	Type       string                  `json:"type"`
	Distance   *ScaleDistanceConfig    `json:"distance,omitempty"`
	Scale      map[int]json.RawMessage `json:"scale"`
}

// ScaleValuePayload is empty: a scale never asks the player anything
type ScaleValuePayload struct{}

// AdvancementType implements Payload
func (*ScaleValuePayload) AdvancementType() string { return TypeScaleValue }

// ScaleValueSnapshot is empty: a scale never changes the character
type ScaleValueSnapshot struct{}

// AdvancementType implements Snapshot
func (*ScaleValueSnapshot) AdvancementType() string { return TypeScaleValue }

// ScaleValue exposes a value that changes with level. It never mutates the
// character.
type ScaleValue struct {
	Base
	config ScaleValueConfig
	values map[int]ScaleValueType
	levels []int
}

func (s *ScaleValue) load(rec *dnd5e.AdvancementRecord) error {
	var config ScaleValueConfig
	if err := decode(rec.Configuration, &config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if !IsScaleType(config.Type) {
		return fmt.Errorf("unknown scale type %q", config.Type)
	}

	units := ""
	if config.Distance != nil {
		units = config.Distance.Units
	}

	values := make(map[int]ScaleValueType, len(config.Scale))
	levels := make([]int, 0, len(config.Scale))
	for level, raw := range config.Scale {
		v, err := decodeScaleValue(config.Type, raw, units)
		if err != nil {
			return fmt.Errorf("level %d: %w", level, err)
		}
		values[level] = v
		levels = append(levels, level)
	}
	sort.Ints(levels)

	s.config = config
	s.values = values
	s.levels = levels
	return nil
}

// Record implements Advancement
func (s *ScaleValue) Record() (*dnd5e.AdvancementRecord, error) {
	return s.record(s.config, nil)
}

// Config returns the configuration
func (s *ScaleValue) Config() ScaleValueConfig { return s.config }

// ScaleType returns the type tag of the values
func (s *ScaleValue) ScaleType() string { return s.config.Type }

// Identifier names the value in roll data, defaulting to a slug of the title
func (s *ScaleValue) Identifier() string {
	if s.config.Identifier != "" {
		return s.config.Identifier
	}
	return slugify(s.Title())
}

// Levels returns the levels with an explicit scale entry
func (s *ScaleValue) Levels() []int {
	return append([]int(nil), s.levels...)
}

// ValueForLevel returns the entry at the greatest configured level not above
// level, or nil when level is below every entry.
func (s *ScaleValue) ValueForLevel(level int) ScaleValueType {
	idx := sort.SearchInts(s.levels, level+1) - 1
	if idx < 0 {
		return nil
	}
	return s.values[s.levels[idx]]
}

// AutomaticApplicationValue is always available
func (s *ScaleValue) AutomaticApplicationValue(*actor.Actor, int) (Payload, bool) {
	return &ScaleValuePayload{}, true
}

// Apply does nothing
func (s *ScaleValue) Apply(context.Context, *actor.Actor, int, Payload, Snapshot) error {
	return nil
}

// Restore does nothing
func (s *ScaleValue) Restore(context.Context, *actor.Actor, int, Snapshot) error {
	return nil
}

// Reverse does nothing and retains nothing
func (s *ScaleValue) Reverse(context.Context, *actor.Actor, int) (Snapshot, error) {
	return nil, nil
}
