package testutils

import (
	"github.com/KirkDiggler/rpg-progression/internal/advancement"
	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/testutils/builders"
)

// TestCharacterName is the default character name for test fixtures
const TestCharacterName = "Thorin Oakenshield"

// CreateTestCharacter creates a character with no class levels
func CreateTestCharacter(id string) *dnd5e.Character {
	return builders.NewCharacterBuilder().
		WithID(id).
		WithName(TestCharacterName).
		WithStandardArray().
		Build()
}

// CreateTestClass creates a class item with hit points at every level and
// an improvement at level 4
func CreateTestClass(id, identifier, hitDice string) *dnd5e.Item {
	return builders.NewItemBuilder(id, dnd5e.ItemTypeClass).
		WithName(identifier).
		WithIdentifier(identifier).
		WithHitDice(hitDice).
		WithSource("compendium.classes."+identifier).
		WithAdvancement(
			builders.Record("hp", advancement.TypeHitPoints, 0, nil, nil),
			builders.Record("asi", advancement.TypeAbilityScoreImprovement, 4, map[string]any{"points": 2}, nil),
		).
		Build()
}

// CreateTestRace creates a race item that grants a single size
func CreateTestRace(id, size string) *dnd5e.Item {
	return builders.NewItemBuilder(id, dnd5e.ItemTypeRace).
		WithAdvancement(
			builders.Record("size", advancement.TypeSize, 0, map[string]any{"sizes": []string{size}}, nil),
		).
		Build()
}
