// Package progression implements the progression orchestrator
package progression

import (
	"context"
	"log/slog"

	"github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/KirkDiggler/rpg-progression/internal/advancement"
	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
	"github.com/KirkDiggler/rpg-progression/internal/pkg/idgen"
	characterrepo "github.com/KirkDiggler/rpg-progression/internal/repositories/character"
	snapshotrepo "github.com/KirkDiggler/rpg-progression/internal/repositories/snapshot"
	"github.com/KirkDiggler/rpg-progression/internal/resolver"
	"github.com/KirkDiggler/rpg-progression/internal/services/progression"
)

// Event types published after a transition commits
const (
	EventAdvancementApplied  = "advancement.applied"
	EventAdvancementRestored = "advancement.restored"
	EventAdvancementReversed = "advancement.reversed"
)

// Config holds the dependencies for the progression orchestrator
type Config struct {
	CharacterRepo characterrepo.Repository
	SnapshotRepo  snapshotrepo.Repository
	Engine        *advancement.Engine
	Resolver      resolver.Resolver
	EventBus      events.EventBus
	IDGenerator   idgen.Generator
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	if c == nil {
		return errors.InvalidArgument("config is required")
	}

	vb := errors.NewValidationBuilder()
	if c.CharacterRepo == nil {
		vb.RequiredField("CharacterRepo")
	}
	if c.SnapshotRepo == nil {
		vb.RequiredField("SnapshotRepo")
	}
	if c.Engine == nil {
		vb.RequiredField("Engine")
	}
	if c.Resolver == nil {
		vb.RequiredField("Resolver")
	}
	if c.EventBus == nil {
		vb.RequiredField("EventBus")
	}
	if c.IDGenerator == nil {
		vb.RequiredField("IDGenerator")
	}
	return vb.Build()
}

// Orchestrator implements the progression.Service interface
type Orchestrator struct {
	characterRepo characterrepo.Repository
	snapshotRepo  snapshotrepo.Repository
	engine        *advancement.Engine
	resolver      resolver.Resolver
	eventBus      events.EventBus
	ids           idgen.Generator
}

// New creates a new progression orchestrator
func New(cfg *Config) (*Orchestrator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	return &Orchestrator{
		characterRepo: cfg.CharacterRepo,
		snapshotRepo:  cfg.SnapshotRepo,
		engine:        cfg.Engine,
		resolver:      cfg.Resolver,
		eventBus:      cfg.EventBus,
		ids:           cfg.IDGenerator,
	}, nil
}

// Ensure Orchestrator implements the Service interface
var _ progression.Service = (*Orchestrator)(nil)

// CreateCharacter stores a new character. An id is generated when missing.
func (o *Orchestrator) CreateCharacter(
	ctx context.Context,
	input *progression.CreateCharacterInput,
) (*progression.CreateCharacterOutput, error) {
	if input == nil || input.Character == nil {
		return nil, errors.InvalidArgument("character is required")
	}

	character, err := input.Character.Clone()
	if err != nil {
		return nil, errors.Wrap(err, "failed to copy character")
	}
	if character.ID == "" {
		character.ID = o.ids.Generate()
	}

	vb := errors.NewValidationBuilder()
	if character.Name == "" {
		vb.RequiredField("name")
	}
	if character.System.Attributes.HP.Value > character.System.Attributes.HP.Max {
		vb.InvalidField("system.attributes.hp.value", "cannot exceed max")
	}
	for key, ability := range character.System.Abilities {
		if !dnd5e.IsValidAbility(key) {
			vb.InvalidField("system.abilities", "unknown ability "+key)
			continue
		}
		if ability != nil && ability.Value > ability.Ceiling() {
			vb.Fieldf("system.abilities."+key, "value %d exceeds max %d", ability.Value, ability.Ceiling())
		}
	}
	if size := character.System.Traits.Size; size != "" && !dnd5e.IsValidSize(size) {
		vb.InvalidField("system.traits.size", "unknown size "+size)
	}
	if err := vb.Build(); err != nil {
		return nil, err
	}

	out, err := o.characterRepo.Create(ctx, characterrepo.CreateInput{Character: character})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create character")
	}

	slog.InfoContext(ctx, "created character", "character_id", out.Character.ID)
	return &progression.CreateCharacterOutput{Character: out.Character}, nil
}

// GetCharacter returns a stored character
func (o *Orchestrator) GetCharacter(
	ctx context.Context,
	input *progression.GetCharacterInput,
) (*progression.GetCharacterOutput, error) {
	if input == nil || input.CharacterID == "" {
		return nil, errors.InvalidArgument("character ID is required")
	}

	out, err := o.characterRepo.Get(ctx, characterrepo.GetInput{ID: input.CharacterID})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get character")
	}
	return &progression.GetCharacterOutput{Character: out.Character}, nil
}

// PlanLevelUp runs a level up against a throwaway copy of the character
func (o *Orchestrator) PlanLevelUp(
	ctx context.Context,
	input *progression.PlanLevelUpInput,
) (*progression.PlanLevelUpOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	t, err := o.levelUp(ctx, &levelUpRequest{
		characterID: input.CharacterID,
		classItemID: input.ClassItemID,
		classUUID:   input.ClassUUID,
		payloads:    input.Payloads,
		dryRun:      true,
	})
	if err != nil {
		return nil, err
	}

	return &progression.PlanLevelUpOutput{
		ClassItemID:    t.classID,
		ClassLevel:     t.classLevel,
		CharacterLevel: t.actor.Level(),
		Steps:          t.steps,
	}, nil
}

// LevelUp applies one class level and commits the result
func (o *Orchestrator) LevelUp(
	ctx context.Context,
	input *progression.LevelUpInput,
) (*progression.LevelUpOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	t, err := o.levelUp(ctx, &levelUpRequest{
		characterID: input.CharacterID,
		classItemID: input.ClassItemID,
		classUUID:   input.ClassUUID,
		payloads:    input.Payloads,
	})
	if err != nil {
		return nil, err
	}

	character, err := o.commit(ctx, t)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "leveled up",
		"character_id", character.ID,
		"class_item_id", t.classID,
		"class_level", t.classLevel,
		"steps", len(t.steps))

	return &progression.LevelUpOutput{
		Character:  character,
		ClassLevel: t.classLevel,
		Steps:      t.steps,
	}, nil
}

// LevelDown reverses the highest level of a class and commits the result
func (o *Orchestrator) LevelDown(
	ctx context.Context,
	input *progression.LevelDownInput,
) (*progression.LevelDownOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	t, err := o.levelDown(ctx, input)
	if err != nil {
		return nil, err
	}

	character, err := o.commit(ctx, t)
	if err != nil {
		return nil, err
	}

	slog.InfoContext(ctx, "leveled down",
		"character_id", character.ID,
		"class_item_id", t.classID,
		"class_level", t.classLevel,
		"retained", len(t.retained))

	return &progression.LevelDownOutput{
		Character:  character,
		ClassLevel: t.classLevel,
		Steps:      t.steps,
	}, nil
}

// Refresh replaces an embedded item's data while keeping the values its
// surviving advancements already hold
func (o *Orchestrator) Refresh(
	ctx context.Context,
	input *progression.RefreshInput,
) (*progression.RefreshOutput, error) {
	if input == nil {
		return nil, errors.InvalidArgument("input is required")
	}

	vb := errors.NewValidationBuilder()
	if input.CharacterID == "" {
		vb.RequiredField("CharacterID")
	}
	if input.ItemID == "" {
		vb.RequiredField("ItemID")
	}
	if err := vb.Build(); err != nil {
		return nil, err
	}

	t, err := o.begin(ctx, input.CharacterID)
	if err != nil {
		return nil, err
	}

	existing := t.actor.Item(input.ItemID)
	if existing == nil {
		return nil, errors.NotFoundf("item %s not found", input.ItemID).WithMeta("item_id", input.ItemID)
	}

	data := input.Item
	if data == nil {
		source := existing.Flags.SourceID
		if source == "" {
			return nil, errors.FailedPreconditionf("item %s has no source to refresh from", input.ItemID)
		}
		data, err = o.resolver.Resolve(ctx, source)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to resolve %s", source)
		}
		if data == nil {
			return nil, errors.NotFoundf("source %s could not be resolved", source).WithMeta("uuid", source)
		}
	}
	if data.Type != existing.Type {
		return nil, errors.InvalidArgumentf("cannot refresh %s item with %s data", existing.Type, data.Type)
	}

	merged, err := mergeItem(existing, data)
	if err != nil {
		return nil, err
	}

	item, err := o.engine.NewItem(ctx, existing)
	if err != nil {
		return nil, errors.Wrap(err, "failed to load item")
	}
	if err := item.Refresh(ctx, merged); err != nil {
		return nil, errors.Wrap(err, "failed to refresh item")
	}

	refreshed := item.Data()
	if err := t.actor.UpdateItem(input.ItemID, "name", refreshed.Name); err != nil {
		return nil, err
	}
	if err := t.actor.UpdateItem(input.ItemID, "system", refreshed.System); err != nil {
		return nil, err
	}

	character, err := o.commit(ctx, t)
	if err != nil {
		return nil, err
	}

	invalid := item.Advancements().InvalidIDs()
	if len(invalid) > 0 {
		slog.WarnContext(ctx, "refreshed item has invalid advancements",
			"character_id", character.ID,
			"item_id", input.ItemID,
			"invalid_ids", invalid)
	}

	return &progression.RefreshOutput{
		Character:             character,
		Item:                  character.Item(input.ItemID),
		InvalidAdvancementIDs: invalid,
	}, nil
}

// mergeItem takes configuration from data and keeps identity, class levels
// and advancement values from existing
func mergeItem(existing, data *dnd5e.Item) (*dnd5e.Item, error) {
	merged, err := data.Clone()
	if err != nil {
		return nil, errors.Wrap(err, "failed to copy item")
	}

	merged.ID = existing.ID
	merged.System.Levels = existing.System.Levels
	if merged.System.ClassIdentifier == "" {
		merged.System.ClassIdentifier = existing.System.ClassIdentifier
	}
	if merged.Flags.SourceID == "" {
		merged.Flags.SourceID = existing.Flags.SourceID
	}
	merged.Flags.AdvancementOrigin = existing.Flags.AdvancementOrigin

	for id, rec := range merged.System.Advancement {
		if rec == nil {
			continue
		}
		rec.Value = nil
		if old, ok := existing.System.Advancement[id]; ok && old != nil && old.Type == rec.Type {
			rec.Value = old.Clone().Value
		}
	}
	return merged, nil
}
