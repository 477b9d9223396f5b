// Package progression defines the interface for character level transitions
package progression

//go:generate mockgen -destination=mock/mock_service.go -package=progressionmock github.com/KirkDiggler/rpg-progression/internal/services/progression Service

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
)

// Service defines the interface for progression operations
type Service interface {
	// Character documents
	CreateCharacter(ctx context.Context, input *CreateCharacterInput) (*CreateCharacterOutput, error)
	GetCharacter(ctx context.Context, input *GetCharacterInput) (*GetCharacterOutput, error)

	// PlanLevelUp walks a level up without committing and reports every
	// step with how it would be satisfied
	PlanLevelUp(ctx context.Context, input *PlanLevelUpInput) (*PlanLevelUpOutput, error)

	// LevelUp applies one class level and commits the character once.
	// Returns an *advancement.AdvancementError when a step needs input.
	LevelUp(ctx context.Context, input *LevelUpInput) (*LevelUpOutput, error)

	// LevelDown reverses the highest level of a class and retains the
	// reversed data for a later LevelUp
	LevelDown(ctx context.Context, input *LevelDownInput) (*LevelDownOutput, error)

	// Refresh re-synchronizes an embedded item with new item data
	Refresh(ctx context.Context, input *RefreshInput) (*RefreshOutput, error)
}

// Step sources
const (
	// SourcePayload means the caller supplied input for the step
	SourcePayload = "payload"
	// SourceSnapshot means data retained by an earlier level down is replayed
	SourceSnapshot = "snapshot"
	// SourceAutomatic means the step needs no input
	SourceAutomatic = "automatic"
	// SourceRequired means the step is waiting on input
	SourceRequired = "required"
)

// StepKey addresses one advancement at one level in a payload map
func StepKey(itemID, advancementID string, level int) string {
	return fmt.Sprintf("%s.%s.%d", itemID, advancementID, level)
}

// Step is one advancement processed during a transition
type Step struct {
	Key           string
	ItemID        string
	ItemName      string
	ItemType      string
	AdvancementID string
	Type          string
	Title         string
	Level         int
	Source        string
}

// CreateCharacterInput defines the request for creating a character
type CreateCharacterInput struct {
	Character *dnd5e.Character
}

// CreateCharacterOutput defines the response for creating a character
type CreateCharacterOutput struct {
	Character *dnd5e.Character
}

// GetCharacterInput defines the request for getting a character
type GetCharacterInput struct {
	CharacterID string
}

// GetCharacterOutput defines the response for getting a character
type GetCharacterOutput struct {
	Character *dnd5e.Character
}

// PlanLevelUpInput defines the request for planning a level up
type PlanLevelUpInput struct {
	CharacterID string
	// ClassItemID levels an existing class
	ClassItemID string
	// ClassUUID adds a new class. Exactly one of ClassItemID and ClassUUID is set.
	ClassUUID string
	// Payloads are keyed by StepKey. Steps after a payload-dependent one
	// (such as a newly chosen subclass) only appear once it is provided.
	Payloads map[string]json.RawMessage
}

// PlanLevelUpOutput defines the response for planning a level up
type PlanLevelUpOutput struct {
	ClassItemID    string
	ClassLevel     int
	CharacterLevel int
	Steps          []Step
}

// Ready reports whether the plan can be committed without further input
func (o *PlanLevelUpOutput) Ready() bool {
	for _, step := range o.Steps {
		if step.Source == SourceRequired {
			return false
		}
	}
	return true
}

// LevelUpInput defines the request for a level up
type LevelUpInput struct {
	CharacterID string
	ClassItemID string
	ClassUUID   string
	Payloads    map[string]json.RawMessage
}

// LevelUpOutput defines the response for a level up
type LevelUpOutput struct {
	Character  *dnd5e.Character
	ClassLevel int
	Steps      []Step
}

// LevelDownInput defines the request for a level down
type LevelDownInput struct {
	CharacterID string
	ClassItemID string
}

// LevelDownOutput defines the response for a level down
type LevelDownOutput struct {
	Character  *dnd5e.Character
	ClassLevel int
	Steps      []Step
}

// RefreshInput defines the request for refreshing an embedded item
type RefreshInput struct {
	CharacterID string
	ItemID      string
	// Item is the new item data. When nil the item's source uuid is resolved.
	Item *dnd5e.Item
}

// RefreshOutput defines the response for refreshing an embedded item
type RefreshOutput struct {
	Character *dnd5e.Character
	Item      *dnd5e.Item
	// InvalidAdvancementIDs lists records that were quarantined
	InvalidAdvancementIDs []string
}
