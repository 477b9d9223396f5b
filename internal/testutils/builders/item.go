package builders

import (
	"encoding/json"

	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
)

// ItemBuilder provides a fluent interface for building test Item instances
type ItemBuilder struct {
	item *dnd5e.Item
}

// NewItemBuilder creates a builder for an item of the given type
func NewItemBuilder(id, itemType string) *ItemBuilder {
	return &ItemBuilder{
		item: &dnd5e.Item{
			ID:   id,
			Name: id,
			Type: itemType,
		},
	}
}

// NewClassBuilder creates a builder for a level 1 class with a d8 hit die
func NewClassBuilder(id, identifier string) *ItemBuilder {
	return NewItemBuilder(id, dnd5e.ItemTypeClass).
		WithIdentifier(identifier).
		WithLevels(1).
		WithHitDice("d8")
}

// WithName sets the item name
func (b *ItemBuilder) WithName(name string) *ItemBuilder {
	b.item.Name = name
	return b
}

// WithIdentifier sets the system identifier
func (b *ItemBuilder) WithIdentifier(identifier string) *ItemBuilder {
	b.item.System.Identifier = identifier
	return b
}

// WithClassIdentifier links a subclass to its class
func (b *ItemBuilder) WithClassIdentifier(identifier string) *ItemBuilder {
	b.item.System.ClassIdentifier = identifier
	return b
}

// WithLevels sets the class levels
func (b *ItemBuilder) WithLevels(levels int) *ItemBuilder {
	b.item.System.Levels = levels
	return b
}

// WithHitDice sets the class hit die
func (b *ItemBuilder) WithHitDice(hitDice string) *ItemBuilder {
	b.item.System.HitDice = hitDice
	return b
}

// WithSource sets the compendium UUID the item came from
func (b *ItemBuilder) WithSource(uuid string) *ItemBuilder {
	b.item.Flags.SourceID = uuid
	return b
}

// WithAdvancement adds advancement records keyed by their ID
func (b *ItemBuilder) WithAdvancement(records ...*dnd5e.AdvancementRecord) *ItemBuilder {
	if b.item.System.Advancement == nil {
		b.item.System.Advancement = map[string]*dnd5e.AdvancementRecord{}
	}
	for _, rec := range records {
		b.item.System.Advancement[rec.ID] = rec
	}
	return b
}

// Build returns the built Item
func (b *ItemBuilder) Build() *dnd5e.Item {
	return b.item
}

// Record builds an advancement record. Config and value are marshaled to
// JSON when not nil.
func Record(id, advType string, level int, config, value any) *dnd5e.AdvancementRecord {
	rec := &dnd5e.AdvancementRecord{ID: id, Type: advType, Level: level}
	if config != nil {
		rec.Configuration = MustJSON(config)
	}
	if value != nil {
		rec.Value = MustJSON(value)
	}
	return rec
}

// MustJSON marshals v and panics on failure
func MustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return raw
}
