package advancement

import (
	"context"

	"github.com/KirkDiggler/rpg-progression/internal/actor"
	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
)

// Invalid stands in for a quarantined record when one is asked for
// explicitly. Every lifecycle call fails.
type Invalid struct {
	Base
	rec   *dnd5e.AdvancementRecord
	cause error
}

func (i *Item) invalid(id string, rec *dnd5e.AdvancementRecord, cause error) Advancement {
	if rec == nil {
		rec = &dnd5e.AdvancementRecord{ID: id}
	}
	def := &Definition{Type: rec.Type, Order: OrderDefault, Title: "Invalid Advancement"}
	b := Base{engine: i.engine, item: i, def: def}
	b.loadBase(rec)
	b.id = id
	return &Invalid{Base: b, rec: rec.Clone(), cause: cause}
}

// Cause returns why the record was quarantined
func (v *Invalid) Cause() error { return v.cause }

// Levels is empty: an invalid record is never scheduled
func (v *Invalid) Levels() []int { return nil }

func (v *Invalid) load(*dnd5e.AdvancementRecord) error { return nil }

func (v *Invalid) err(level int) error {
	if v.cause == nil {
		return v.fail(level, errors.FailedPrecondition("advancement record is invalid"))
	}
	return v.fail(level, errors.WrapWithCode(v.cause, errors.CodeFailedPrecondition, "advancement record is invalid"))
}

// Apply implements Advancement
func (v *Invalid) Apply(_ context.Context, _ *actor.Actor, level int, _ Payload, _ Snapshot) error {
	return v.err(level)
}

// Restore implements Advancement
func (v *Invalid) Restore(_ context.Context, _ *actor.Actor, level int, _ Snapshot) error {
	return v.err(level)
}

// Reverse implements Advancement
func (v *Invalid) Reverse(_ context.Context, _ *actor.Actor, level int) (Snapshot, error) {
	return nil, v.err(level)
}

// Record returns the raw record unchanged
func (v *Invalid) Record() (*dnd5e.AdvancementRecord, error) {
	return v.rec.Clone(), nil
}
