package advancement

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/KirkDiggler/rpg-toolkit/core"

	"github.com/KirkDiggler/rpg-progression/internal/actor"
	"github.com/KirkDiggler/rpg-progression/internal/collection"
	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
)

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string) string {
	return strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(s), "-"), "-")
}

// Item is a class, subclass, race or background together with its live
// advancements. It works on its own copy of the item data.
type Item struct {
	engine       *Engine
	data         *dnd5e.Item
	advancements *Collection
}

// GetID implements core.Entity
func (i *Item) GetID() string { return i.data.ID }

// GetType implements core.Entity
func (i *Item) GetType() string { return i.data.Type }

// ID returns the item id
func (i *Item) ID() string { return i.data.ID }

// Type returns the item type
func (i *Item) Type() string { return i.data.Type }

// Name returns the item name
func (i *Item) Name() string { return i.data.Name }

// Data returns the item's current data. Callers must not mutate it.
func (i *Item) Data() *dnd5e.Item { return i.data }

// Identifier returns system.identifier, falling back to a slug of the name
func (i *Item) Identifier() string {
	if i.data.System.Identifier != "" {
		return i.data.System.Identifier
	}
	return slugify(i.data.Name)
}

// ClassLevel returns system.levels for class items
func (i *Item) ClassLevel() int { return i.data.System.Levels }

// Advancements returns the live advancement collection
func (i *Item) Advancements() *Collection { return i.advancements }

// IsOriginalClass reports whether this is the character's first class. With
// no original class recorded, the first class item on the character counts.
func (i *Item) IsOriginalClass(a *actor.Actor) bool {
	if i.Type() != dnd5e.ItemTypeClass {
		return false
	}
	if original := a.OriginalClass(); original != "" {
		return original == i.ID()
	}
	classes := a.Character().ItemsByType(dnd5e.ItemTypeClass)
	return len(classes) > 0 && classes[0].ID == i.ID()
}

// Refresh re-synchronizes the item and its advancements with data. Live
// advancements whose records survive are updated in place.
func (i *Item) Refresh(ctx context.Context, data *dnd5e.Item) error {
	clone, err := data.Clone()
	if err != nil {
		return errors.Wrapf(err, "failed to copy item %s", data.ID)
	}
	if clone.System.Advancement == nil {
		clone.System.Advancement = make(map[string]*dnd5e.AdvancementRecord)
	}
	i.data = clone
	i.advancements.Initialize(ctx, clone.System.Advancement)
	return nil
}

// CreateAdvancement adds a new advancement built from rec. The id is
// generated when rec has none. Singleton types and owning item types are
// enforced here.
func (i *Item) CreateAdvancement(ctx context.Context, rec *dnd5e.AdvancementRecord) (Advancement, error) {
	if rec == nil {
		return nil, errors.InvalidArgument("advancement record is required")
	}

	def, ok := i.engine.registry.Get(rec.Type)
	if !ok {
		return nil, errors.InvalidArgumentf("unknown advancement type %s", rec.Type).WithMeta("type", rec.Type)
	}
	if !def.AllowsItemType(i.Type()) {
		return nil, errors.InvalidArgumentf("%s advancements cannot be added to %s items", rec.Type, i.Type()).
			WithMeta("type", rec.Type).
			WithMeta("item_type", i.Type())
	}
	if def.Singleton && len(i.advancements.OfType(rec.Type)) > 0 {
		return nil, errors.AlreadyExistsf("item %s already has a %s advancement", i.ID(), rec.Type).
			WithMeta("item_id", i.ID()).
			WithMeta("type", rec.Type)
	}

	stored := rec.Clone()
	if stored.ID == "" {
		stored.ID = i.engine.ids.Generate()
	}
	if i.advancements.Has(stored.ID) {
		return nil, errors.AlreadyExistsf("advancement %s already exists", stored.ID).WithMeta("advancement_id", stored.ID)
	}

	adv, err := i.build(stored.ID, stored)
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "invalid advancement")
	}
	i.advancements.Set(stored.ID, adv, stored, collection.WriteOptions{})
	return adv, nil
}

// DeleteAdvancement removes an advancement by id
func (i *Item) DeleteAdvancement(id string) error {
	if !i.advancements.Has(id) {
		if _, quarantined := i.advancements.InvalidCause(id); !quarantined {
			return errors.NotFoundf("advancement %s not found", id).WithMeta("advancement_id", id)
		}
	}
	i.advancements.Delete(id, collection.WriteOptions{})
	return nil
}

// ScaleValues returns the value of every scale value advancement at level,
// keyed by identifier. Entries without a value at level are omitted.
func (i *Item) ScaleValues(level int) map[string]ScaleValueType {
	out := make(map[string]ScaleValueType)
	for _, adv := range i.advancements.OfType(TypeScaleValue) {
		sv := adv.(*ScaleValue)
		if v := sv.ValueForLevel(level); v != nil {
			out[sv.Identifier()] = v
		}
	}
	return out
}

func (i *Item) build(id string, rec *dnd5e.AdvancementRecord) (Advancement, error) {
	if rec == nil {
		return nil, invalidRecord(id, "", fmt.Errorf("missing record"))
	}
	if rec.ID != id {
		return nil, invalidRecord(id, rec.Type, fmt.Errorf("record id %q does not match key", rec.ID))
	}

	def, ok := i.engine.registry.Get(rec.Type)
	if !ok {
		return nil, invalidRecord(id, rec.Type, fmt.Errorf("unknown advancement type %q", rec.Type))
	}

	b := Base{engine: i.engine, item: i, def: def}
	b.loadBase(rec)
	adv := def.build(b)
	if err := adv.load(rec); err != nil {
		return nil, invalidRecord(id, rec.Type, err)
	}
	return adv, nil
}

var _ core.Entity = (*Item)(nil)
