// Package builders provides test data builders for creating test fixtures
package builders

import (
	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
)

// CharacterBuilder provides a fluent interface for building test Character instances
type CharacterBuilder struct {
	character *dnd5e.Character
}

// NewCharacterBuilder creates a new builder with minimal defaults
func NewCharacterBuilder() *CharacterBuilder {
	return &CharacterBuilder{
		character: &dnd5e.Character{
			ID:       "char-test-123",
			PlayerID: "player-test-123",
			Name:     "Test Character",
			System: dnd5e.CharacterSystem{
				Abilities: map[string]*dnd5e.Ability{},
				Traits:    dnd5e.Traits{Size: dnd5e.SizeMedium},
			},
		},
	}
}

// WithID sets the character ID
func (b *CharacterBuilder) WithID(id string) *CharacterBuilder {
	b.character.ID = id
	return b
}

// WithPlayerID sets the player ID
func (b *CharacterBuilder) WithPlayerID(playerID string) *CharacterBuilder {
	b.character.PlayerID = playerID
	return b
}

// WithName sets the character name
func (b *CharacterBuilder) WithName(name string) *CharacterBuilder {
	b.character.Name = name
	return b
}

// WithAbility sets one ability score
func (b *CharacterBuilder) WithAbility(key string, value int) *CharacterBuilder {
	b.character.System.Abilities[key] = &dnd5e.Ability{Value: value}
	return b
}

// WithStandardArray assigns 15, 14, 13, 12, 10, 8 in sheet order
func (b *CharacterBuilder) WithStandardArray() *CharacterBuilder {
	scores := []int{15, 14, 13, 12, 10, 8}
	for i, key := range dnd5e.Abilities {
		b.WithAbility(key, scores[i])
	}
	return b
}

// WithHitPoints sets current and maximum hit points
func (b *CharacterBuilder) WithHitPoints(value, maxHP int) *CharacterBuilder {
	b.character.System.Attributes.HP.Value = value
	b.character.System.Attributes.HP.Max = maxHP
	return b
}

// WithSize sets the size trait
func (b *CharacterBuilder) WithSize(size string) *CharacterBuilder {
	b.character.System.Traits.Size = size
	return b
}

// WithOriginalClass sets the class the character started in
func (b *CharacterBuilder) WithOriginalClass(itemID string) *CharacterBuilder {
	b.character.System.Details.OriginalClass = itemID
	return b
}

// WithItems embeds items in the character
func (b *CharacterBuilder) WithItems(items ...*dnd5e.Item) *CharacterBuilder {
	b.character.Items = append(b.character.Items, items...)
	return b
}

// WithClass embeds a class item and makes it the original class when none is set
func (b *CharacterBuilder) WithClass(item *dnd5e.Item) *CharacterBuilder {
	if b.character.System.Details.OriginalClass == "" {
		b.character.System.Details.OriginalClass = item.ID
	}
	return b.WithItems(item)
}

// Build returns the built Character
func (b *CharacterBuilder) Build() *dnd5e.Character {
	return b.character
}
