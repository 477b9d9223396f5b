package advancement

import (
	"context"
	"fmt"

	"github.com/KirkDiggler/rpg-progression/internal/actor"
	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
)

// SizeConfig lists the sizes a race allows
type SizeConfig struct {
	Sizes []string `json:"sizes"`
}

// SizeValue is the size that was set
type SizeValue struct {
	Size string `json:"size,omitempty"`
}

// SizePayload is the chosen size
type SizePayload struct {
	Size string `json:"size"`
}

// AdvancementType implements Payload
func (*SizePayload) AdvancementType() string { return TypeSize }

// SizeSnapshot is the size that was reversed
type SizeSnapshot struct {
	Size string `json:"size"`
}

// AdvancementType implements Snapshot
func (*SizeSnapshot) AdvancementType() string { return TypeSize }

// Size sets the character's size category
type Size struct {
	Base
	config SizeConfig
	value  SizeValue
}

func (s *Size) load(rec *dnd5e.AdvancementRecord) error {
	var config SizeConfig
	if err := decode(rec.Configuration, &config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for _, size := range config.Sizes {
		if !dnd5e.IsValidSize(size) {
			return fmt.Errorf("unknown size %q", size)
		}
	}

	var value SizeValue
	if err := decode(rec.Value, &value); err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}
	if value.Size != "" && !dnd5e.IsValidSize(value.Size) {
		return fmt.Errorf("unknown size %q", value.Size)
	}

	s.config = config
	s.value = value
	return nil
}

// Record implements Advancement
func (s *Size) Record() (*dnd5e.AdvancementRecord, error) {
	return s.record(s.config, s.value)
}

// Config returns the configuration
func (s *Size) Config() SizeConfig { return s.config }

// Value returns the size that was set
func (s *Size) Value() SizeValue { return s.value }

// ConfiguredForLevel reports whether a size was chosen
func (s *Size) ConfiguredForLevel(int) bool { return s.value.Size != "" }

// AutomaticApplicationValue picks the only allowed size
func (s *Size) AutomaticApplicationValue(*actor.Actor, int) (Payload, bool) {
	if len(s.config.Sizes) != 1 {
		return nil, false
	}
	return &SizePayload{Size: s.config.Sizes[0]}, true
}

func (s *Size) allows(size string) bool {
	if len(s.config.Sizes) == 0 {
		return dnd5e.IsValidSize(size)
	}
	for _, allowed := range s.config.Sizes {
		if allowed == size {
			return true
		}
	}
	return false
}

// Apply implements Advancement
func (s *Size) Apply(_ context.Context, a *actor.Actor, level int, payload Payload, retained Snapshot) error {
	var size string
	switch p := payload.(type) {
	case *SizePayload:
		size = p.Size
	case nil:
		snap, ok := retained.(*SizeSnapshot)
		if !ok {
			return s.fail(level, errors.FailedPrecondition("size is required"))
		}
		size = snap.Size
	default:
		return s.fail(level, errors.InvalidArgumentf("unexpected payload %s", payload.AdvancementType()))
	}

	if size == "" {
		return s.fail(level, errors.FailedPrecondition("size is required"))
	}
	if !s.allows(size) {
		return s.fail(level, errors.InvalidArgumentf("size %s is not allowed", size).WithMeta("size", size))
	}

	a.SetSize(size)
	s.value = SizeValue{Size: size}
	return s.persist(a, s.value)
}

// Restore implements Advancement
func (s *Size) Restore(ctx context.Context, a *actor.Actor, level int, retained Snapshot) error {
	if _, ok := retained.(*SizeSnapshot); !ok {
		return s.fail(level, errors.FailedPrecondition("size snapshot is required"))
	}
	return s.Apply(ctx, a, level, nil, retained)
}

// Reverse returns the character to the default size
func (s *Size) Reverse(_ context.Context, a *actor.Actor, _ int) (Snapshot, error) {
	if s.value.Size == "" {
		return nil, nil
	}

	snap := &SizeSnapshot{Size: s.value.Size}
	a.SetSize(s.engine.defaultSize)
	s.value = SizeValue{}
	if err := s.persist(a, s.value); err != nil {
		return nil, err
	}
	return snap, nil
}
