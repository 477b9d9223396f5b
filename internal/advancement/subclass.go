package advancement

import (
	"context"
	"fmt"

	"github.com/KirkDiggler/rpg-progression/internal/actor"
	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
)

// SubclassValue is the granted subclass item id and its source uuid
type SubclassValue struct {
	Document string `json:"document,omitempty"`
	UUID     string `json:"uuid,omitempty"`
}

// SubclassPayload is the chosen subclass
type SubclassPayload struct {
	UUID string `json:"uuid"`
}

// AdvancementType implements Payload
func (*SubclassPayload) AdvancementType() string { return TypeSubclass }

// SubclassSnapshot holds the removed subclass item
type SubclassSnapshot struct {
	UUID string      `json:"uuid"`
	Item *dnd5e.Item `json:"item,omitempty"`
}

// AdvancementType implements Snapshot
func (*SubclassSnapshot) AdvancementType() string { return TypeSubclass }

// Subclass adds the chosen subclass to its class
type Subclass struct {
	Base
	value SubclassValue
}

func (s *Subclass) load(rec *dnd5e.AdvancementRecord) error {
	var value SubclassValue
	if err := decode(rec.Value, &value); err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}
	s.value = value
	return nil
}

// Record implements Advancement
func (s *Subclass) Record() (*dnd5e.AdvancementRecord, error) {
	return s.record(nil, s.value)
}

// Value returns the granted subclass
func (s *Subclass) Value() SubclassValue { return s.value }

// ConfiguredForLevel reports whether a subclass was chosen
func (s *Subclass) ConfiguredForLevel(int) bool { return s.value.Document != "" }

// Apply implements Advancement
func (s *Subclass) Apply(ctx context.Context, a *actor.Actor, level int, payload Payload, retained Snapshot) error {
	var uuid string
	var source *dnd5e.Item
	switch p := payload.(type) {
	case *SubclassPayload:
		uuid = p.UUID
	case nil:
		snap, ok := retained.(*SubclassSnapshot)
		if !ok {
			return s.fail(level, errors.FailedPrecondition("subclass is required"))
		}
		uuid = snap.UUID
	default:
		return s.fail(level, errors.InvalidArgumentf("unexpected payload %s", payload.AdvancementType()))
	}
	if uuid == "" {
		return s.fail(level, errors.FailedPrecondition("subclass is required"))
	}
	if snap, ok := retained.(*SubclassSnapshot); ok && snap.UUID == uuid {
		source = snap.Item
	}
	keepID := source != nil

	if source == nil {
		resolved, err := s.lookup(ctx, uuid)
		if err != nil {
			return err
		}
		if resolved == nil {
			return s.fail(level, errors.FailedPreconditionf("subclass %s could not be found", uuid).WithMeta("uuid", uuid))
		}
		source = resolved
	}
	if source.Type != dnd5e.ItemTypeSubclass {
		return s.fail(level, errors.InvalidArgumentf("%s is a %s, not a subclass", uuid, source.Type).WithMeta("uuid", uuid))
	}

	if s.value.Document != "" {
		if _, err := s.Reverse(ctx, a, level); err != nil {
			return err
		}
	}

	granted, err := s.grantItem(a, source, uuid, keepID, nil)
	if err != nil {
		return err
	}
	granted.System.ClassIdentifier = s.item.Identifier()
	if err := a.CreateItems(granted); err != nil {
		return err
	}

	s.value = SubclassValue{Document: granted.ID, UUID: uuid}
	return s.persist(a, s.value)
}

// Restore implements Advancement
func (s *Subclass) Restore(ctx context.Context, a *actor.Actor, level int, retained Snapshot) error {
	if _, ok := retained.(*SubclassSnapshot); !ok {
		return s.fail(level, errors.FailedPrecondition("subclass snapshot is required"))
	}
	return s.Apply(ctx, a, level, nil, retained)
}

// Reverse removes the subclass item
func (s *Subclass) Reverse(_ context.Context, a *actor.Actor, _ int) (Snapshot, error) {
	if s.value.Document == "" {
		return nil, nil
	}

	snap := &SubclassSnapshot{UUID: s.value.UUID}
	if removed := a.DeleteItems(s.value.Document); len(removed) > 0 {
		snap.Item = removed[0]
	}
	s.value = SubclassValue{}
	if err := s.persist(a, s.value); err != nil {
		return nil, err
	}
	return snap, nil
}
