package progression_test

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/KirkDiggler/rpg-toolkit/events"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/KirkDiggler/rpg-progression/internal/advancement"
	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
	progression "github.com/KirkDiggler/rpg-progression/internal/orchestrators/progression"
	"github.com/KirkDiggler/rpg-progression/internal/pkg/clock"
	"github.com/KirkDiggler/rpg-progression/internal/pkg/idgen"
	characterrepo "github.com/KirkDiggler/rpg-progression/internal/repositories/character"
	charactermock "github.com/KirkDiggler/rpg-progression/internal/repositories/character/mock"
	snapshotrepo "github.com/KirkDiggler/rpg-progression/internal/repositories/snapshot"
	snapshotmock "github.com/KirkDiggler/rpg-progression/internal/repositories/snapshot/mock"
	"github.com/KirkDiggler/rpg-progression/internal/resolver"
	progressionsvc "github.com/KirkDiggler/rpg-progression/internal/services/progression"
	"github.com/KirkDiggler/rpg-progression/internal/testutils"
	"github.com/KirkDiggler/rpg-progression/internal/testutils/builders"
	"github.com/KirkDiggler/rpg-progression/internal/testutils/mocks"
)

type stubRoller struct{}

// Minimal implementation to satisfy dice.Roller interface
func (r *stubRoller) Roll(size int) (int, error) { return size, nil }
func (r *stubRoller) RollN(count, size int) ([]int, error) {
	out := make([]int, count)
	for i := range out {
		out[i] = size
	}
	return out, nil
}

// stubEventBus records published events
type stubEventBus struct {
	published []events.Event
}

func (s *stubEventBus) Publish(_ context.Context, e events.Event) error {
	s.published = append(s.published, e)
	return nil
}
func (s *stubEventBus) Subscribe(_ string, _ events.Handler) string { return "sub-id" }
func (s *stubEventBus) SubscribeFunc(_ string, _ int, _ events.HandlerFunc) string {
	return "sub-id"
}
func (s *stubEventBus) Unsubscribe(_ string) error { return nil }
func (s *stubEventBus) Clear(_ string)             {}
func (s *stubEventBus) ClearAll()                  {}

func (s *stubEventBus) types() []string {
	out := make([]string, 0, len(s.published))
	for _, e := range s.published {
		out = append(out, e.Type())
	}
	return out
}

const (
	testCharID  = "char-1"
	testClassID = "class1"
)

type OrchestratorTestSuite struct {
	suite.Suite
	ctx       context.Context
	sources   map[string]*dnd5e.Item
	bus       *stubEventBus
	engine    *advancement.Engine
	resolver  resolver.Resolver
	chars     characterrepo.Repository
	snapshots snapshotrepo.Repository
	orch      *progression.Orchestrator
}

func TestOrchestratorSuite(t *testing.T) {
	suite.Run(t, new(OrchestratorTestSuite))
}

func (s *OrchestratorTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.bus = &stubEventBus{}
	s.sources = map[string]*dnd5e.Item{
		"compendium.classes.wizard": {
			ID:   "wizard",
			Name: "Wizard",
			Type: dnd5e.ItemTypeClass,
			System: dnd5e.ItemSystem{
				Identifier: "wizard",
				HitDice:    "d6",
				Advancement: map[string]*dnd5e.AdvancementRecord{
					"hp": builders.Record("hp", advancement.TypeHitPoints, 0, nil, nil),
				},
			},
		},
	}
	s.resolver = resolver.Func(func(_ context.Context, uuid string) (*dnd5e.Item, error) {
		return s.sources[uuid], nil
	})

	var err error
	s.engine, err = advancement.New(&advancement.Config{
		Registry:    advancement.NewRegistry(),
		Resolver:    s.resolver,
		Roller:      &stubRoller{},
		IDGenerator: idgen.NewSequential("adv"),
	})
	s.Require().NoError(err)

	client, _ := testutils.CreateTestRedisClient(s.T())
	fixed := clock.NewFixed(time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	s.chars, err = characterrepo.NewRedis(&characterrepo.RedisConfig{Client: client, Clock: fixed})
	s.Require().NoError(err)
	s.snapshots, err = snapshotrepo.NewRedisRepository(&snapshotrepo.Config{Client: client, Clock: fixed})
	s.Require().NoError(err)

	s.orch = s.newOrchestrator(s.chars, s.snapshots)
}

func (s *OrchestratorTestSuite) newOrchestrator(
	chars characterrepo.Repository,
	snapshots snapshotrepo.Repository,
) *progression.Orchestrator {
	orch, err := progression.New(&progression.Config{
		CharacterRepo: chars,
		SnapshotRepo:  snapshots,
		Engine:        s.engine,
		Resolver:      s.resolver,
		EventBus:      s.bus,
		IDGenerator:   idgen.NewSequential("gen"),
	})
	s.Require().NoError(err)
	return orch
}

// fighter is a level 3 fighter with an improvement waiting at level 4
func fighter() *dnd5e.Character {
	class := builders.NewClassBuilder(testClassID, "fighter").
		WithName("Fighter").
		WithLevels(3).
		WithHitDice("d10").
		WithSource("compendium.classes.fighter").
		WithAdvancement(
			builders.Record("hp", advancement.TypeHitPoints, 0, nil,
				map[string]any{"1": "max", "2": 6, "3": 6}),
			builders.Record("asi", advancement.TypeAbilityScoreImprovement, 4,
				advancement.AbilityScoreImprovementConfig{Points: 2}, nil),
		).
		Build()

	character := builders.NewCharacterBuilder().
		WithID(testCharID).
		WithName("Brakka").
		WithAbility(dnd5e.AbilityStrength, 14).
		WithAbility(dnd5e.AbilityDexterity, 12).
		WithAbility(dnd5e.AbilityConstitution, 14).
		WithHitPoints(28, 28).
		WithClass(class).
		Build()
	character.PlayerID = ""
	return character
}

func levelFourPayloads() map[string]json.RawMessage {
	return map[string]json.RawMessage{
		progressionsvc.StepKey(testClassID, "hp", 4):  json.RawMessage(`{"value": 5}`),
		progressionsvc.StepKey(testClassID, "asi", 4): json.RawMessage(`{"type": "asi", "assignments": {"str": 2}}`),
	}
}

func (s *OrchestratorTestSuite) create(character *dnd5e.Character) *dnd5e.Character {
	out, err := s.orch.CreateCharacter(s.ctx, &progressionsvc.CreateCharacterInput{Character: character})
	s.Require().NoError(err)
	return out.Character
}

func (s *OrchestratorTestSuite) stored() *dnd5e.Character {
	out, err := s.orch.GetCharacter(s.ctx, &progressionsvc.GetCharacterInput{CharacterID: testCharID})
	s.Require().NoError(err)
	return out.Character
}

func (s *OrchestratorTestSuite) liveSnapshots() []*snapshotrepo.Snapshot {
	out, err := s.snapshots.ListByCharacter(s.ctx, snapshotrepo.ListByCharacterInput{CharacterID: testCharID})
	s.Require().NoError(err)
	return out.Snapshots
}

func (s *OrchestratorTestSuite) TestNewRequiresDependencies() {
	_, err := progression.New(&progression.Config{})
	s.Require().Error(err)
	s.True(errors.IsInvalidArgument(err))

	_, err = progression.New(nil)
	s.Require().Error(err)
}

func (s *OrchestratorTestSuite) TestCreateCharacter() {
	s.Run("generates an id", func() {
		character := fighter()
		character.ID = ""
		out, err := s.orch.CreateCharacter(s.ctx, &progressionsvc.CreateCharacterInput{Character: character})
		s.Require().NoError(err)
		s.Equal("gen_1", out.Character.ID)
	})

	s.Run("validates the document", func() {
		character := fighter()
		character.Name = ""
		character.System.Traits.Size = "colossal"
		_, err := s.orch.CreateCharacter(s.ctx, &progressionsvc.CreateCharacterInput{Character: character})
		s.Require().Error(err)
		s.True(errors.IsInvalidArgument(err))
	})

	s.Run("requires a character", func() {
		_, err := s.orch.CreateCharacter(s.ctx, &progressionsvc.CreateCharacterInput{})
		s.True(errors.IsInvalidArgument(err))
	})
}

func (s *OrchestratorTestSuite) TestLevelUpAndDownRoundTrip() {
	s.create(fighter())

	up, err := s.orch.LevelUp(s.ctx, &progressionsvc.LevelUpInput{
		CharacterID: testCharID,
		ClassItemID: testClassID,
		Payloads:    levelFourPayloads(),
	})
	s.Require().NoError(err)
	s.Equal(4, up.ClassLevel)
	s.Equal(35, up.Character.System.Attributes.HP.Max)
	s.Equal(35, up.Character.System.Attributes.HP.Value)
	s.Equal(16, up.Character.System.Abilities[dnd5e.AbilityStrength].Value)
	s.Equal(4, up.Character.Level())
	s.Require().Len(up.Steps, 2)
	for _, step := range up.Steps {
		s.Equal(progressionsvc.SourcePayload, step.Source)
	}
	s.Equal(4, s.stored().Level())

	down, err := s.orch.LevelDown(s.ctx, &progressionsvc.LevelDownInput{
		CharacterID: testCharID,
		ClassItemID: testClassID,
	})
	s.Require().NoError(err)
	s.Equal(3, down.ClassLevel)
	s.Equal(28, down.Character.System.Attributes.HP.Max)
	s.Equal(14, down.Character.System.Abilities[dnd5e.AbilityStrength].Value)
	s.Len(s.liveSnapshots(), 2)

	again, err := s.orch.LevelUp(s.ctx, &progressionsvc.LevelUpInput{
		CharacterID: testCharID,
		ClassItemID: testClassID,
	})
	s.Require().NoError(err)
	s.Equal(35, again.Character.System.Attributes.HP.Max)
	s.Equal(16, again.Character.System.Abilities[dnd5e.AbilityStrength].Value)
	for _, step := range again.Steps {
		s.Equal(progressionsvc.SourceSnapshot, step.Source)
	}
	s.Empty(s.liveSnapshots())

	s.Equal([]string{
		progression.EventAdvancementApplied,
		progression.EventAdvancementApplied,
		progression.EventAdvancementReversed,
		progression.EventAdvancementReversed,
		progression.EventAdvancementRestored,
		progression.EventAdvancementRestored,
	}, s.bus.types())
}

func (s *OrchestratorTestSuite) TestLevelUpRequiresInput() {
	created := s.create(fighter())

	_, err := s.orch.LevelUp(s.ctx, &progressionsvc.LevelUpInput{
		CharacterID: testCharID,
		ClassItemID: testClassID,
	})
	s.Require().Error(err)
	advErr, ok := advancement.AsAdvancementError(err)
	s.Require().True(ok)
	s.Equal("hp", advErr.AdvancementID)
	s.Equal(4, advErr.Level)
	s.True(errors.IsFailedPrecondition(err))

	s.Equal(created.UpdatedAt, s.stored().UpdatedAt)
	s.Empty(s.bus.published)
}

func (s *OrchestratorTestSuite) TestLevelUpValidatesPayloads() {
	s.create(fighter())

	s.Run("unknown step key", func() {
		payloads := levelFourPayloads()
		payloads["class1.nope.4"] = json.RawMessage(`{}`)
		_, err := s.orch.LevelUp(s.ctx, &progressionsvc.LevelUpInput{
			CharacterID: testCharID,
			ClassItemID: testClassID,
			Payloads:    payloads,
		})
		s.Require().Error(err)
		s.True(errors.IsInvalidArgument(err))
	})

	s.Run("malformed payload", func() {
		payloads := levelFourPayloads()
		payloads[progressionsvc.StepKey(testClassID, "hp", 4)] = json.RawMessage(`{"value": "lots"}`)
		_, err := s.orch.LevelUp(s.ctx, &progressionsvc.LevelUpInput{
			CharacterID: testCharID,
			ClassItemID: testClassID,
			Payloads:    payloads,
		})
		s.Require().Error(err)
		s.True(advancement.IsAdvancementError(err))
		s.True(errors.IsInvalidArgument(err))
	})

	s.Run("class selector", func() {
		_, err := s.orch.LevelUp(s.ctx, &progressionsvc.LevelUpInput{CharacterID: testCharID})
		s.True(errors.IsInvalidArgument(err))

		_, err = s.orch.LevelUp(s.ctx, &progressionsvc.LevelUpInput{
			CharacterID: testCharID,
			ClassItemID: testClassID,
			ClassUUID:   "compendium.classes.wizard",
		})
		s.True(errors.IsInvalidArgument(err))

		_, err = s.orch.LevelUp(s.ctx, &progressionsvc.LevelUpInput{
			CharacterID: testCharID,
			ClassItemID: "missing",
		})
		s.True(errors.IsNotFound(err))
	})
}

func (s *OrchestratorTestSuite) TestPlanLevelUp() {
	created := s.create(fighter())

	plan, err := s.orch.PlanLevelUp(s.ctx, &progressionsvc.PlanLevelUpInput{
		CharacterID: testCharID,
		ClassItemID: testClassID,
	})
	s.Require().NoError(err)
	s.False(plan.Ready())
	s.Equal(4, plan.ClassLevel)
	s.Equal(4, plan.CharacterLevel)
	s.Require().Len(plan.Steps, 2)
	s.Equal(progressionsvc.SourceRequired, plan.Steps[0].Source)
	s.Equal("class1.hp.4", plan.Steps[0].Key)

	plan, err = s.orch.PlanLevelUp(s.ctx, &progressionsvc.PlanLevelUpInput{
		CharacterID: testCharID,
		ClassItemID: testClassID,
		Payloads:    levelFourPayloads(),
	})
	s.Require().NoError(err)
	s.True(plan.Ready())

	s.Equal(created.UpdatedAt, s.stored().UpdatedAt)
	s.Empty(s.bus.published)
}

func (s *OrchestratorTestSuite) TestNewClassFromUUID() {
	character := fighter()
	character.Items = []*dnd5e.Item{{
		ID:   "race1",
		Name: "Halfling",
		Type: dnd5e.ItemTypeRace,
		System: dnd5e.ItemSystem{
			Identifier: "halfling",
			Advancement: map[string]*dnd5e.AdvancementRecord{
				"size": builders.Record("size", advancement.TypeSize, 0,
					advancement.SizeConfig{Sizes: []string{dnd5e.SizeSmall}}, nil),
			},
		},
	}}
	character.System.Attributes.HP = dnd5e.HitPoints{}
	character.System.Details.OriginalClass = ""
	s.create(character)

	up, err := s.orch.LevelUp(s.ctx, &progressionsvc.LevelUpInput{
		CharacterID: testCharID,
		ClassUUID:   "compendium.classes.wizard",
	})
	s.Require().NoError(err)
	s.Equal(1, up.ClassLevel)
	s.Equal(8, up.Character.System.Attributes.HP.Max)
	s.Equal(dnd5e.SizeSmall, up.Character.System.Traits.Size)
	s.Equal("wizard", up.Character.System.Details.OriginalClass)

	wizard := up.Character.Item("wizard")
	s.Require().NotNil(wizard)
	s.Equal(1, wizard.System.Levels)
	s.Equal("compendium.classes.wizard", wizard.Flags.SourceID)

	_, err = s.orch.LevelUp(s.ctx, &progressionsvc.LevelUpInput{
		CharacterID: testCharID,
		ClassUUID:   "compendium.classes.wizard",
	})
	s.Require().Error(err)
	s.True(errors.IsAlreadyExists(err))

	down, err := s.orch.LevelDown(s.ctx, &progressionsvc.LevelDownInput{
		CharacterID: testCharID,
		ClassItemID: "wizard",
	})
	s.Require().NoError(err)
	s.Equal(0, down.ClassLevel)
	s.Nil(down.Character.Item("wizard"))
	s.Empty(down.Character.System.Details.OriginalClass)
	s.Equal(0, down.Character.System.Attributes.HP.Max)
	s.Equal(dnd5e.SizeMedium, down.Character.System.Traits.Size)
	s.Equal(0, down.Character.Level())
}

func (s *OrchestratorTestSuite) TestLevelDownRequiresLevels() {
	character := fighter()
	character.Items[0].System.Levels = 0
	s.create(character)

	_, err := s.orch.LevelDown(s.ctx, &progressionsvc.LevelDownInput{
		CharacterID: testCharID,
		ClassItemID: testClassID,
	})
	s.Require().Error(err)
	s.True(errors.IsFailedPrecondition(err))

	_, err = s.orch.LevelDown(s.ctx, &progressionsvc.LevelDownInput{CharacterID: testCharID})
	s.True(errors.IsInvalidArgument(err))
}

func (s *OrchestratorTestSuite) TestRefreshQuarantinesInvalidRecords() {
	s.create(fighter())

	s.sources["compendium.classes.fighter"] = &dnd5e.Item{
		ID:   "fighter",
		Name: "Fighter (Revised)",
		Type: dnd5e.ItemTypeClass,
		System: dnd5e.ItemSystem{
			Identifier: "fighter",
			HitDice:    "d10",
			Advancement: map[string]*dnd5e.AdvancementRecord{
				"hp":     builders.Record("hp", advancement.TypeHitPoints, 0, nil, nil),
				"broken": builders.Record("broken", "Teleport", 2, nil, nil),
			},
		},
	}

	out, err := s.orch.Refresh(s.ctx, &progressionsvc.RefreshInput{
		CharacterID: testCharID,
		ItemID:      testClassID,
	})
	s.Require().NoError(err)
	s.Equal([]string{"broken"}, out.InvalidAdvancementIDs)
	s.Equal("Fighter (Revised)", out.Item.Name)
	s.Equal(3, out.Item.System.Levels)
	s.Equal(testClassID, out.Item.ID)
	s.NotContains(out.Item.System.Advancement, "asi")

	hp := out.Item.System.Advancement["hp"]
	s.Require().NotNil(hp)
	s.JSONEq(`{"1": "max", "2": 6, "3": 6}`, string(hp.Value))

	s.Run("rejects a different item type", func() {
		_, err := s.orch.Refresh(s.ctx, &progressionsvc.RefreshInput{
			CharacterID: testCharID,
			ItemID:      testClassID,
			Item:        &dnd5e.Item{ID: "x", Name: "Rope", Type: dnd5e.ItemTypeLoot},
		})
		s.True(errors.IsInvalidArgument(err))
	})
}

func (s *OrchestratorTestSuite) TestConcurrentWriteAborts() {
	ctrl := gomock.NewController(s.T())
	chars := charactermock.NewMockRepository(ctrl)
	snapshots := snapshotmock.NewMockRepository(ctrl)
	orch := s.newOrchestrator(chars, snapshots)

	character := fighter()
	character.UpdatedAt = 42

	mocks.ExpectCharacterGet(chars, character)
	mocks.ExpectNoSnapshots(snapshots, 2)
	chars.EXPECT().
		Update(gomock.Any(), gomock.Any()).
		DoAndReturn(func(_ context.Context, input characterrepo.UpdateInput) (*characterrepo.UpdateOutput, error) {
			s.Equal(int64(42), input.ExpectedUpdatedAt)
			s.Equal(4, input.Character.Level())
			return nil, errors.New(errors.CodeAborted, "character was modified concurrently")
		})

	_, err := orch.LevelUp(s.ctx, &progressionsvc.LevelUpInput{
		CharacterID: testCharID,
		ClassItemID: testClassID,
		Payloads:    levelFourPayloads(),
	})
	s.Require().Error(err)
	s.Equal(errors.CodeAborted, errors.GetCode(err))
	s.Empty(s.bus.published)
}

func (s *OrchestratorTestSuite) TestLevelDownRetainsSnapshotsBeforeSaving() {
	ctrl := gomock.NewController(s.T())
	chars := charactermock.NewMockRepository(ctrl)
	snapshots := snapshotmock.NewMockRepository(ctrl)
	orch := s.newOrchestrator(chars, snapshots)

	character := fighter()
	character.UpdatedAt = 7

	mocks.ExpectCharacterGet(chars, character)
	gomock.InOrder(
		snapshots.EXPECT().
			Put(gomock.Any(), gomock.Any()).
			DoAndReturn(func(_ context.Context, input snapshotrepo.PutInput) (*snapshotrepo.PutOutput, error) {
				s.Equal(snapshotrepo.Key{
					CharacterID:   testCharID,
					ItemID:        testClassID,
					AdvancementID: "hp",
					Level:         3,
				}, input.Key)
				return &snapshotrepo.PutOutput{}, nil
			}),
		mocks.ExpectCharacterUpdate(chars, 7),
	)

	out, err := orch.LevelDown(s.ctx, &progressionsvc.LevelDownInput{
		CharacterID: testCharID,
		ClassItemID: testClassID,
	})
	s.Require().NoError(err)
	s.Equal(2, out.ClassLevel)
	s.Equal(int64(8), out.Character.UpdatedAt)
	s.Equal(20, out.Character.System.Attributes.HP.Max)
	s.Equal([]string{progression.EventAdvancementReversed}, s.bus.types())

	s.Run("a failed retain leaves the character untouched", func() {
		fresh := fighter()
		fresh.UpdatedAt = 7
		mocks.ExpectCharacterGet(chars, fresh)
		snapshots.EXPECT().
			Put(gomock.Any(), gomock.Any()).
			Return(nil, errors.New(errors.CodeUnavailable, "redis down"))

		_, err := orch.LevelDown(s.ctx, &progressionsvc.LevelDownInput{
			CharacterID: testCharID,
			ClassItemID: testClassID,
		})
		s.Require().Error(err)
		s.Equal(errors.CodeUnavailable, errors.GetCode(err))
	})
}
