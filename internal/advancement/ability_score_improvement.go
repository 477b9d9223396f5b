package advancement

import (
	"context"
	"fmt"

	"github.com/KirkDiggler/rpg-progression/internal/actor"
	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
)

// Improvement kinds
const (
	ImprovementASI  = "asi"
	ImprovementFeat = "feat"
)

// DefaultImprovementCap is the most points one ability may receive
const DefaultImprovementCap = 2

// AbilityScoreImprovementConfig is the authored configuration
type AbilityScoreImprovementConfig struct {
	// Points the player may distribute
	Points int `json:"points"`
	// Fixed increases applied regardless of the player's choice
	Fixed map[string]int `json:"fixed,omitempty"`
	// Cap on points the player may put into one ability
	Cap int `json:"cap,omitempty"`
	// Locked abilities cannot be improved
	Locked         []string `json:"locked,omitempty"`
	Recommendation string   `json:"recommendation,omitempty"`
	// AllowFeat permits taking a feat instead; defaults to true on classes
	AllowFeat *bool `json:"allowFeat,omitempty"`
}

// AbilityScoreImprovementValue records what was taken
type AbilityScoreImprovementValue struct {
	Type        string            `json:"type,omitempty"`
	Assignments map[string]int    `json:"assignments,omitempty"`
	Feat        map[string]string `json:"feat,omitempty"`
}

// AbilityScoreImprovementPayload is the player's choice
type AbilityScoreImprovementPayload struct {
	Type        string         `json:"type"`
	Assignments map[string]int `json:"assignments,omitempty"`
	FeatUUID    string         `json:"featUuid,omitempty"`
}

// AdvancementType implements Payload
func (*AbilityScoreImprovementPayload) AdvancementType() string {
	return TypeAbilityScoreImprovement
}

// AbilityScoreImprovementSnapshot holds player points (without fixed
// increases) or the feat that was granted.
type AbilityScoreImprovementSnapshot struct {
	Type        string         `json:"type"`
	Assignments map[string]int `json:"assignments,omitempty"`
	FeatUUID    string         `json:"featUuid,omitempty"`
	Feat        *dnd5e.Item    `json:"feat,omitempty"`
}

// AdvancementType implements Snapshot
func (*AbilityScoreImprovementSnapshot) AdvancementType() string {
	return TypeAbilityScoreImprovement
}

// AbilityScoreImprovement raises ability scores or grants a feat
type AbilityScoreImprovement struct {
	Base
	config AbilityScoreImprovementConfig
	value  AbilityScoreImprovementValue
}

func (s *AbilityScoreImprovement) load(rec *dnd5e.AdvancementRecord) error {
	var config AbilityScoreImprovementConfig
	if err := decode(rec.Configuration, &config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if config.Points < 0 {
		return fmt.Errorf("points must not be negative")
	}
	if config.Cap < 0 {
		return fmt.Errorf("cap must not be negative")
	}
	if config.Cap == 0 {
		config.Cap = DefaultImprovementCap
	}
	for key := range config.Fixed {
		if !dnd5e.IsValidAbility(key) {
			return fmt.Errorf("fixed increase for unknown ability %q", key)
		}
	}
	for _, key := range config.Locked {
		if !dnd5e.IsValidAbility(key) {
			return fmt.Errorf("unknown locked ability %q", key)
		}
	}

	var value AbilityScoreImprovementValue
	if err := decode(rec.Value, &value); err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}
	switch value.Type {
	case "", ImprovementASI, ImprovementFeat:
	default:
		return fmt.Errorf("unknown improvement type %q", value.Type)
	}

	s.config = config
	s.value = value
	return nil
}

// Record implements Advancement
func (s *AbilityScoreImprovement) Record() (*dnd5e.AdvancementRecord, error) {
	return s.record(s.config, s.value)
}

// Config returns the configuration
func (s *AbilityScoreImprovement) Config() AbilityScoreImprovementConfig { return s.config }

// Value returns what has been taken
func (s *AbilityScoreImprovement) Value() AbilityScoreImprovementValue { return s.value }

// AllowFeat reports whether a feat may be taken instead of points
func (s *AbilityScoreImprovement) AllowFeat() bool {
	if s.config.AllowFeat != nil {
		return *s.config.AllowFeat
	}
	return s.item.Type() == dnd5e.ItemTypeClass
}

// CanImprove reports whether the player may put points into key
func (s *AbilityScoreImprovement) CanImprove(key string) bool {
	if !dnd5e.IsValidAbility(key) {
		return false
	}
	for _, locked := range s.config.Locked {
		if locked == key {
			return false
		}
	}
	return true
}

// ConfiguredForLevel reports whether a choice was made
func (s *AbilityScoreImprovement) ConfiguredForLevel(int) bool {
	return s.value.Type != ""
}

// AutomaticApplicationValue applies fixed increases without asking when
// there are no points to spend.
func (s *AbilityScoreImprovement) AutomaticApplicationValue(*actor.Actor, int) (Payload, bool) {
	if s.config.Points > 0 {
		return nil, false
	}
	return &AbilityScoreImprovementPayload{Type: ImprovementASI}, true
}

// ValidateAssignments checks player points against the pool, the per-ability
// cap and locked abilities.
func (s *AbilityScoreImprovement) ValidateAssignments(assignments map[string]int) *errors.Error {
	spent := 0
	for key, points := range assignments {
		if !s.CanImprove(key) {
			return errors.InvalidArgumentf("ability %s cannot be improved", key).WithMeta("ability", key)
		}
		if points < 0 {
			return errors.InvalidArgumentf("cannot assign %d points to %s", points, key).WithMeta("ability", key)
		}
		if points > s.config.Cap {
			return errors.InvalidArgumentf("%s may receive at most %d points", key, s.config.Cap).
				WithMeta("ability", key).
				WithMeta("cap", s.config.Cap)
		}
		spent += points
	}
	if spent > s.config.Points {
		return errors.InvalidArgumentf("assigned %d points but only %d are available", spent, s.config.Points).
			WithMeta("points", s.config.Points)
	}
	return nil
}

// Apply implements Advancement
func (s *AbilityScoreImprovement) Apply(ctx context.Context, a *actor.Actor, level int, payload Payload, retained Snapshot) error {
	var choice AbilityScoreImprovementPayload
	var retainedFeat *dnd5e.Item
	switch p := payload.(type) {
	case *AbilityScoreImprovementPayload:
		choice = *p
	case nil:
		snap, ok := retained.(*AbilityScoreImprovementSnapshot)
		if !ok {
			return s.fail(level, errors.FailedPrecondition("ability score improvement choice is required"))
		}
		choice = AbilityScoreImprovementPayload{Type: snap.Type, Assignments: snap.Assignments, FeatUUID: snap.FeatUUID}
		retainedFeat = snap.Feat
	default:
		return s.fail(level, errors.InvalidArgumentf("unexpected payload %s", payload.AdvancementType()))
	}
	if snap, ok := retained.(*AbilityScoreImprovementSnapshot); ok && retainedFeat == nil && snap.FeatUUID == choice.FeatUUID {
		retainedFeat = snap.Feat
	}

	switch choice.Type {
	case ImprovementASI:
		if err := s.ValidateAssignments(choice.Assignments); err != nil {
			return s.fail(level, err)
		}
	case ImprovementFeat:
		if !s.AllowFeat() {
			return s.fail(level, errors.InvalidArgument("a feat cannot be taken here"))
		}
		if choice.FeatUUID == "" {
			return s.fail(level, errors.FailedPrecondition("feat is required"))
		}
	case "":
		return s.fail(level, errors.FailedPrecondition("ability score improvement choice is required"))
	default:
		return s.fail(level, errors.InvalidArgumentf("unknown improvement type %s", choice.Type))
	}

	if s.value.Type != "" {
		if _, err := s.Reverse(ctx, a, level); err != nil {
			return err
		}
	}

	if choice.Type == ImprovementFeat {
		return s.applyFeat(ctx, a, level, choice.FeatUUID, retainedFeat)
	}
	return s.applyPoints(a, choice.Assignments)
}

func (s *AbilityScoreImprovement) applyPoints(a *actor.Actor, assignments map[string]int) error {
	applied := make(map[string]int)
	for _, key := range dnd5e.Abilities {
		change := s.config.Fixed[key] + assignments[key]
		ability := a.Ability(key)
		// locked abilities only refuse assigned points, fixed increases still land
		if change == 0 || ability == nil {
			continue
		}
		change = min(change, max(ability.Ceiling()-ability.Value, 0))
		if change == 0 {
			continue
		}
		if err := a.SetAbilityValue(key, ability.Value+change); err != nil {
			return err
		}
		applied[key] = change
	}

	s.value = AbilityScoreImprovementValue{Type: ImprovementASI, Assignments: applied}
	return s.persist(a, s.value)
}

func (s *AbilityScoreImprovement) applyFeat(ctx context.Context, a *actor.Actor, level int, uuid string, retained *dnd5e.Item) error {
	source := retained
	if source == nil {
		resolved, err := s.lookup(ctx, uuid)
		if err != nil {
			return err
		}
		if resolved == nil {
			return s.fail(level, errors.FailedPreconditionf("feat %s could not be found", uuid).WithMeta("uuid", uuid))
		}
		source = resolved
	}
	if source.Type != dnd5e.ItemTypeFeat {
		return s.fail(level, errors.InvalidArgumentf("%s is a %s, not a feat", uuid, source.Type).WithMeta("uuid", uuid))
	}

	granted, err := s.grantItem(a, source, uuid, retained != nil, nil)
	if err != nil {
		return err
	}
	if err := a.CreateItems(granted); err != nil {
		return err
	}

	s.value = AbilityScoreImprovementValue{Type: ImprovementFeat, Feat: map[string]string{granted.ID: uuid}}
	return s.persist(a, s.value)
}

// Restore implements Advancement
func (s *AbilityScoreImprovement) Restore(ctx context.Context, a *actor.Actor, level int, retained Snapshot) error {
	if _, ok := retained.(*AbilityScoreImprovementSnapshot); !ok {
		return s.fail(level, errors.FailedPrecondition("ability score improvement snapshot is required"))
	}
	return s.Apply(ctx, a, level, nil, retained)
}

// Reverse implements Advancement
func (s *AbilityScoreImprovement) Reverse(_ context.Context, a *actor.Actor, _ int) (Snapshot, error) {
	if s.value.Type == "" {
		return nil, nil
	}

	snap := &AbilityScoreImprovementSnapshot{Type: s.value.Type}
	switch s.value.Type {
	case ImprovementASI:
		snap.Assignments = make(map[string]int)
		for _, key := range dnd5e.Abilities {
			change, ok := s.value.Assignments[key]
			ability := a.Ability(key)
			if !ok || ability == nil {
				continue
			}
			if err := a.SetAbilityValue(key, ability.Value-change); err != nil {
				return nil, err
			}
			if chosen := change - s.config.Fixed[key]; chosen > 0 {
				snap.Assignments[key] = chosen
			}
		}
	case ImprovementFeat:
		for uuid, item := range removeGranted(a, s.value.Feat) {
			snap.FeatUUID = uuid
			snap.Feat = item
		}
		if snap.FeatUUID == "" {
			for _, uuid := range s.value.Feat {
				snap.FeatUUID = uuid
			}
		}
	}

	s.value = AbilityScoreImprovementValue{}
	if err := s.persist(a, s.value); err != nil {
		return nil, err
	}
	return snap, nil
}
