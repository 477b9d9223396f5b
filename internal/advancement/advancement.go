package advancement

import (
	"context"
	"encoding/json"
	"sort"

	"github.com/KirkDiggler/rpg-progression/internal/actor"
	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
)

// Advancement type tags as persisted in records
const (
	TypeHitPoints               = "HitPoints"
	TypeAbilityScoreImprovement = "AbilityScoreImprovement"
	TypeItemGrant               = "ItemGrant"
	TypeItemChoice              = "ItemChoice"
	TypeScaleValue              = "ScaleValue"
	TypeSize                    = "Size"
	TypeSubclass                = "Subclass"
	TypeTrait                   = "Trait"
)

// Processing order within a level. Lower runs first on level up and last
// on level down.
const (
	OrderHitPoints               = 10
	OrderAbilityScoreImprovement = 20
	OrderSize                    = 25
	OrderTrait                   = 30
	OrderItemGrant               = 40
	OrderItemChoice              = 50
	OrderScaleValue              = 60
	OrderSubclass                = 70
	OrderDefault                 = 100
)

// ClassRestriction limits a class advancement to the character's original
// class or to multiclass copies.
type ClassRestriction string

// Class restrictions
const (
	ClassRestrictionNone      ClassRestriction = ""
	ClassRestrictionPrimary   ClassRestriction = "primary"
	ClassRestrictionSecondary ClassRestriction = "secondary"
)

// Payload is the validated player input for one Apply call
type Payload interface {
	AdvancementType() string
}

// Snapshot is what Reverse hands back so Restore can replay a grant without
// asking the player again or re-resolving items.
type Snapshot interface {
	AdvancementType() string
}

// Advancement is one grant rule owned by an Item
type Advancement interface {
	ID() string
	Type() string
	Title() string
	Icon() string
	Order() int
	Level() int
	ClassRestriction() ClassRestriction
	Item() *Item

	// Levels lists the levels at which this advancement does something.
	// Empty means it is not configured for any level yet.
	Levels() []int
	// ConfiguredForLevel reports whether choices for level have been made
	ConfiguredForLevel(level int) bool
	// AppliesToClass reports whether the advancement applies given whether
	// its owning class is the character's original class
	AppliesToClass(originalClass bool) bool
	// AutomaticApplicationValue returns a payload that needs no player
	// input, or false when the player must choose.
	AutomaticApplicationValue(a *actor.Actor, level int) (Payload, bool)

	Apply(ctx context.Context, a *actor.Actor, level int, payload Payload, retained Snapshot) error
	Restore(ctx context.Context, a *actor.Actor, level int, retained Snapshot) error
	Reverse(ctx context.Context, a *actor.Actor, level int) (Snapshot, error)

	// Record serializes the advancement back to its persisted form
	Record() (*dnd5e.AdvancementRecord, error)

	base() *Base
	load(rec *dnd5e.AdvancementRecord) error
}

// Base carries the fields and behavior every variant shares
type Base struct {
	engine *Engine
	item   *Item
	def    *Definition

	id               string
	title            string
	icon             string
	level            int
	classRestriction ClassRestriction
}

func (b *Base) base() *Base { return b }

func (b *Base) loadBase(rec *dnd5e.AdvancementRecord) {
	b.id = rec.ID
	b.title = rec.Title
	b.icon = rec.Icon
	b.level = rec.Level
	b.classRestriction = ClassRestriction(rec.ClassRestriction)
}

// ID returns the advancement id
func (b *Base) ID() string { return b.id }

// Type returns the type tag
func (b *Base) Type() string { return b.def.Type }

// Title returns the configured title or the type's default
func (b *Base) Title() string {
	if b.title != "" {
		return b.title
	}
	return b.def.Title
}

// Icon returns the configured icon or the type's default
func (b *Base) Icon() string {
	if b.icon != "" {
		return b.icon
	}
	return b.def.Icon
}

// Order returns the processing order of the type
func (b *Base) Order() int { return b.def.Order }

// Level returns the single level a one-shot advancement applies at
func (b *Base) Level() int { return b.level }

// ClassRestriction returns the class restriction
func (b *Base) ClassRestriction() ClassRestriction { return b.classRestriction }

// Item returns the owning item
func (b *Base) Item() *Item { return b.item }

// Levels returns the single configured level
func (b *Base) Levels() []int { return []int{b.level} }

// ConfiguredForLevel is true unless a variant needs choices
func (b *Base) ConfiguredForLevel(int) bool { return true }

// AppliesToClass implements the class restriction. Advancements on items
// other than classes always apply.
func (b *Base) AppliesToClass(originalClass bool) bool {
	if b.item == nil || b.item.Type() != dnd5e.ItemTypeClass {
		return true
	}
	switch b.classRestriction {
	case ClassRestrictionPrimary:
		return originalClass
	case ClassRestrictionSecondary:
		return !originalClass
	}
	return true
}

// AutomaticApplicationValue requires player input unless a variant says otherwise
func (b *Base) AutomaticApplicationValue(*actor.Actor, int) (Payload, bool) {
	return nil, false
}

func (b *Base) record(config, value any) (*dnd5e.AdvancementRecord, error) {
	rec := &dnd5e.AdvancementRecord{
		ID:               b.id,
		Type:             b.def.Type,
		Title:            b.title,
		Icon:             b.icon,
		Level:            b.level,
		ClassRestriction: string(b.classRestriction),
	}

	if config != nil {
		raw, err := json.Marshal(config)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode configuration of %s", b.id)
		}
		rec.Configuration = raw
	}
	if value != nil {
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode value of %s", b.id)
		}
		rec.Value = raw
	}
	return rec, nil
}

// persist writes value into the owning item's record and stages the same
// change on the actor's copy of the item.
func (b *Base) persist(a *actor.Actor, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return errors.Wrapf(err, "failed to encode value of %s", b.id)
	}

	if rec, ok := b.item.data.System.Advancement[b.id]; ok {
		rec.Value = raw
	}

	if err := a.UpdateItem(b.item.ID(), "system.advancement."+b.id+".value", json.RawMessage(raw)); err != nil {
		return errors.Wrapf(err, "failed to stage value of %s", b.id)
	}
	return nil
}

func (b *Base) fail(level int, err *errors.Error) *AdvancementError {
	return &AdvancementError{
		AdvancementID: b.id,
		Type:          b.def.Type,
		Level:         level,
		Err:           err.WithMeta("advancement_id", b.id).WithMeta("level", level),
	}
}

func decode(raw json.RawMessage, target any) error {
	if len(raw) == 0 || string(raw) == "null" {
		return nil
	}
	return json.Unmarshal(raw, target)
}

func sortAdvancements(advs []Advancement) {
	sort.SliceStable(advs, func(i, j int) bool {
		if advs[i].Order() != advs[j].Order() {
			return advs[i].Order() < advs[j].Order()
		}
		if advs[i].Title() != advs[j].Title() {
			return advs[i].Title() < advs[j].Title()
		}
		return advs[i].ID() < advs[j].ID()
	})
}
