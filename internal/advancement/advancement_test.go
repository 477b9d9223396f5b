package advancement_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/rpg-progression/internal/actor"
	"github.com/KirkDiggler/rpg-progression/internal/advancement"
	"github.com/KirkDiggler/rpg-progression/internal/collection"
	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
	"github.com/KirkDiggler/rpg-progression/internal/pkg/idgen"
	"github.com/KirkDiggler/rpg-progression/internal/resolver"
)

type stubRoller struct {
	next int
}

// Minimal implementation to satisfy dice.Roller interface
func (r *stubRoller) Roll(_ int) (int, error) { return r.next, nil }
func (r *stubRoller) RollN(count, _ int) ([]int, error) {
	out := make([]int, count)
	for i := range out {
		out[i] = r.next
	}
	return out, nil
}

type AdvancementTestSuite struct {
	suite.Suite
	ctx       context.Context
	roller    *stubRoller
	sources   map[string]*dnd5e.Item
	engine    *advancement.Engine
	character *dnd5e.Character
}

func TestAdvancementSuite(t *testing.T) {
	suite.Run(t, new(AdvancementTestSuite))
}

func (s *AdvancementTestSuite) SetupTest() {
	s.ctx = context.Background()
	s.roller = &stubRoller{next: 1}
	s.sources = map[string]*dnd5e.Item{
		"compendium.feats.alert": {ID: "alert", Name: "Alert", Type: dnd5e.ItemTypeFeat},
		"compendium.items.rope":  {ID: "rope", Name: "Rope", Type: dnd5e.ItemTypeLoot},
		"compendium.items.torch": {ID: "torch", Name: "Torch", Type: dnd5e.ItemTypeLoot},
		"compendium.spells.light": {
			ID: "light", Name: "Light", Type: dnd5e.ItemTypeSpell,
			System: dnd5e.ItemSystem{Level: 0},
		},
		"compendium.spells.sleep": {
			ID: "sleep", Name: "Sleep", Type: dnd5e.ItemTypeSpell,
			System: dnd5e.ItemSystem{Level: 1},
		},
		"compendium.subclasses.champion": {
			ID: "champion", Name: "Champion", Type: dnd5e.ItemTypeSubclass,
			System: dnd5e.ItemSystem{Identifier: "champion"},
		},
	}

	var err error
	s.engine, err = advancement.New(&advancement.Config{
		Registry: advancement.NewRegistry(),
		Resolver: resolver.Func(func(_ context.Context, uuid string) (*dnd5e.Item, error) {
			return s.sources[uuid], nil
		}),
		Roller:      s.roller,
		IDGenerator: idgen.NewSequential("gen"),
	})
	s.Require().NoError(err)

	s.character = &dnd5e.Character{
		ID:   "char-1",
		Name: "Brakka",
		System: dnd5e.CharacterSystem{
			Abilities: map[string]*dnd5e.Ability{
				"str": {Value: 14},
				"dex": {Value: 12},
				"con": {Value: 12},
				"int": {Value: 10},
				"wis": {Value: 10},
				"cha": {Value: 8},
			},
			Attributes: dnd5e.Attributes{HP: dnd5e.HitPoints{Value: 10, Max: 10}},
			Traits:     dnd5e.Traits{Size: dnd5e.SizeMedium, Languages: dnd5e.TraitSet{Value: []string{"common"}}},
			Skills:     map[string]*dnd5e.Proficiency{},
			Tools:      map[string]*dnd5e.Proficiency{},
		},
	}
}

func record(id, advType string, level int, config any) *dnd5e.AdvancementRecord {
	rec := &dnd5e.AdvancementRecord{ID: id, Type: advType, Level: level}
	if config != nil {
		raw, _ := json.Marshal(config)
		rec.Configuration = raw
	}
	return rec
}

func itemWith(id, itemType string, recs ...*dnd5e.AdvancementRecord) *dnd5e.Item {
	advs := make(map[string]*dnd5e.AdvancementRecord, len(recs))
	for _, rec := range recs {
		advs[rec.ID] = rec
	}
	return &dnd5e.Item{
		ID:   id,
		Name: "Fighter",
		Type: itemType,
		System: dnd5e.ItemSystem{
			Identifier:  "fighter",
			Levels:      1,
			HitDice:     "d8",
			Advancement: advs,
		},
	}
}

// load adds data to the character and returns its live item and an actor
// staged from the character.
func (s *AdvancementTestSuite) load(data *dnd5e.Item) (*advancement.Item, *actor.Actor) {
	s.character.Items = append(s.character.Items, data)
	item, err := s.engine.NewItem(s.ctx, data)
	s.Require().NoError(err)
	a, err := actor.New(s.character)
	s.Require().NoError(err)
	return item, a
}

func (s *AdvancementTestSuite) get(item *advancement.Item, id string) advancement.Advancement {
	adv, err := item.Advancements().Get(id, collection.GetOptions{Strict: true})
	s.Require().NoError(err)
	return adv
}

// characterJSON renders the staged character for before and after comparisons
func (s *AdvancementTestSuite) characterJSON(a *actor.Actor) string {
	raw, err := json.Marshal(a.Character())
	s.Require().NoError(err)
	return string(raw)
}

func (s *AdvancementTestSuite) requireAdvancementError(err error, code errors.Code) {
	s.Require().Error(err)
	advErr, ok := advancement.AsAdvancementError(err)
	s.Require().True(ok, "expected an AdvancementError, got %v", err)
	s.Equal(code, advErr.Err.Code)
}

func (s *AdvancementTestSuite) TestNewRequiresCollaborators() {
	_, err := advancement.New(&advancement.Config{})
	s.Require().Error(err)
	s.True(errors.IsInvalidArgument(err))
}

func (s *AdvancementTestSuite) TestHitPointsAndImprovementReverseExactly() {
	s.roller.next = 6
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass,
		record("hp", advancement.TypeHitPoints, 0, nil),
		record("asi4", advancement.TypeAbilityScoreImprovement, 4, map[string]any{"points": 2}),
	))
	hp := s.get(item, "hp")
	asi := s.get(item, "asi4")

	s.Require().NoError(hp.Apply(s.ctx, a, 4,
		&advancement.HitPointsPayload{Value: advancement.HitPointsValue{Mode: advancement.HitPointsRoll}}, nil))
	s.Require().NoError(asi.Apply(s.ctx, a, 4,
		&advancement.AbilityScoreImprovementPayload{Type: advancement.ImprovementASI, Assignments: map[string]int{"str": 2}}, nil))

	s.Equal(17, a.HitPoints().Value)
	s.Equal(17, a.HitPoints().Max)
	s.Equal(16, a.Ability("str").Value)
	s.True(hp.ConfiguredForLevel(4))

	asiSnap, err := asi.Reverse(s.ctx, a, 4)
	s.Require().NoError(err)
	hpSnap, err := hp.Reverse(s.ctx, a, 4)
	s.Require().NoError(err)

	s.Equal(10, a.HitPoints().Value)
	s.Equal(10, a.HitPoints().Max)
	s.Equal(14, a.Ability("str").Value)
	s.Equal(&advancement.HitPointsSnapshot{Level: 4, Value: advancement.HitPointsValue{Amount: 6}}, hpSnap)
	s.Equal(map[string]int{"str": 2}, asiSnap.(*advancement.AbilityScoreImprovementSnapshot).Assignments)
	s.False(hp.ConfiguredForLevel(4))

	s.Require().NoError(hp.Restore(s.ctx, a, 4, hpSnap))
	s.Require().NoError(asi.Restore(s.ctx, a, 4, asiSnap))
	s.Equal(17, a.HitPoints().Value)
	s.Equal(16, a.Ability("str").Value)
}

func (s *AdvancementTestSuite) TestHitPointsReapplyIsStable() {
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass, record("hp", advancement.TypeHitPoints, 0, nil)))
	hp := s.get(item, "hp")
	payload := &advancement.HitPointsPayload{Value: advancement.HitPointsValue{Mode: advancement.HitPointsAverage}}

	s.Require().NoError(hp.Apply(s.ctx, a, 2, payload, nil))
	s.Require().NoError(hp.Apply(s.ctx, a, 2, payload, nil))

	// average of d8 is 5, plus con mod 1
	s.Equal(16, a.HitPoints().Value)
}

func (s *AdvancementTestSuite) TestHitPointsAutomaticValues() {
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass, record("hp", advancement.TypeHitPoints, 0, nil)))
	hp := s.get(item, "hp")

	payload, ok := hp.AutomaticApplicationValue(a, 1)
	s.Require().True(ok)
	s.Equal(advancement.HitPointsMax, payload.(*advancement.HitPointsPayload).Value.Mode)

	_, ok = hp.AutomaticApplicationValue(a, 2)
	s.False(ok)

	s.Require().NoError(hp.Apply(s.ctx, a, 2,
		&advancement.HitPointsPayload{Value: advancement.HitPointsValue{Mode: advancement.HitPointsAverage}}, nil))
	payload, ok = hp.AutomaticApplicationValue(a, 3)
	s.Require().True(ok)
	s.Equal(advancement.HitPointsAverage, payload.(*advancement.HitPointsPayload).Value.Mode)
}

func (s *AdvancementTestSuite) TestHitPointsRejectsOutOfRangeResult() {
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass, record("hp", advancement.TypeHitPoints, 0, nil)))
	hp := s.get(item, "hp")

	err := hp.Apply(s.ctx, a, 2, &advancement.HitPointsPayload{Value: advancement.HitPointsValue{Amount: 9}}, nil)
	s.requireAdvancementError(err, errors.CodeInvalidArgument)

	err = hp.Apply(s.ctx, a, 2, nil, nil)
	s.requireAdvancementError(err, errors.CodeFailedPrecondition)
	s.Equal(10, a.HitPoints().Value)
}

func (s *AdvancementTestSuite) TestImprovementValidation() {
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass,
		record("asi", advancement.TypeAbilityScoreImprovement, 4, map[string]any{"points": 3, "locked": []string{"cha"}}),
	))
	asi := s.get(item, "asi")

	testCases := []struct {
		name        string
		assignments map[string]int
	}{
		{name: "over the pool", assignments: map[string]int{"str": 2, "dex": 2}},
		{name: "over the cap", assignments: map[string]int{"str": 3}},
		{name: "locked ability", assignments: map[string]int{"cha": 1}},
		{name: "unknown ability", assignments: map[string]int{"luck": 1}},
		{name: "negative points", assignments: map[string]int{"str": -1}},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			err := asi.Apply(s.ctx, a, 4, &advancement.AbilityScoreImprovementPayload{
				Type:        advancement.ImprovementASI,
				Assignments: tc.assignments,
			}, nil)
			s.requireAdvancementError(err, errors.CodeInvalidArgument)
			s.Equal(14, a.Ability("str").Value)
		})
	}
}

func (s *AdvancementTestSuite) TestImprovementClampsAtAbilityMax() {
	s.character.System.Abilities["str"].Value = 19
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass,
		record("asi", advancement.TypeAbilityScoreImprovement, 4, map[string]any{"points": 2}),
	))
	asi := s.get(item, "asi").(*advancement.AbilityScoreImprovement)

	s.Require().NoError(asi.Apply(s.ctx, a, 4, &advancement.AbilityScoreImprovementPayload{
		Type:        advancement.ImprovementASI,
		Assignments: map[string]int{"str": 2},
	}, nil))
	s.Equal(20, a.Ability("str").Value)
	s.Equal(map[string]int{"str": 1}, asi.Value().Assignments)

	_, err := asi.Reverse(s.ctx, a, 4)
	s.Require().NoError(err)
	s.Equal(19, a.Ability("str").Value)
}

func (s *AdvancementTestSuite) TestImprovementFixedOnlyIsAutomatic() {
	item, a := s.load(itemWith("race1", dnd5e.ItemTypeRace,
		record("asi", advancement.TypeAbilityScoreImprovement, 0, map[string]any{"points": 0, "fixed": map[string]int{"con": 2}}),
	))
	asi := s.get(item, "asi")

	payload, ok := asi.AutomaticApplicationValue(a, 0)
	s.Require().True(ok)
	s.Require().NoError(asi.Apply(s.ctx, a, 0, payload, nil))
	s.Equal(14, a.Ability("con").Value)

	snap, err := asi.Reverse(s.ctx, a, 0)
	s.Require().NoError(err)
	s.Empty(snap.(*advancement.AbilityScoreImprovementSnapshot).Assignments)
	s.Equal(12, a.Ability("con").Value)
}

func (s *AdvancementTestSuite) TestImprovementFixedIgnoresLock() {
	item, a := s.load(itemWith("race1", dnd5e.ItemTypeRace,
		record("asi", advancement.TypeAbilityScoreImprovement, 0, map[string]any{
			"points": 0,
			"fixed":  map[string]int{"str": 2},
			"locked": []string{"str"},
		}),
	))
	asi := s.get(item, "asi").(*advancement.AbilityScoreImprovement)

	s.NotNil(asi.ValidateAssignments(map[string]int{"str": 1}))

	payload, ok := asi.AutomaticApplicationValue(a, 0)
	s.Require().True(ok)
	s.Require().NoError(asi.Apply(s.ctx, a, 0, payload, nil))
	s.Equal(16, a.Ability("str").Value)
	s.Equal(map[string]int{"str": 2}, asi.Value().Assignments)

	snap, err := asi.Reverse(s.ctx, a, 0)
	s.Require().NoError(err)
	s.Equal(14, a.Ability("str").Value)

	s.Require().NoError(asi.Restore(s.ctx, a, 0, snap))
	s.Equal(16, a.Ability("str").Value)
}

func (s *AdvancementTestSuite) TestImprovementFeat() {
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass,
		record("asi", advancement.TypeAbilityScoreImprovement, 4, map[string]any{"points": 2}),
	))
	asi := s.get(item, "asi")

	s.Require().NoError(asi.Apply(s.ctx, a, 4, &advancement.AbilityScoreImprovementPayload{
		Type:     advancement.ImprovementFeat,
		FeatUUID: "compendium.feats.alert",
	}, nil))

	feats := a.Character().ItemsByType(dnd5e.ItemTypeFeat)
	s.Require().Len(feats, 1)
	s.Equal("gen_1", feats[0].ID)
	s.Equal("compendium.feats.alert", feats[0].Flags.SourceID)
	s.Equal("class1.asi", feats[0].Flags.AdvancementOrigin)

	snap, err := asi.Reverse(s.ctx, a, 4)
	s.Require().NoError(err)
	s.Empty(a.Character().ItemsByType(dnd5e.ItemTypeFeat))

	// the feat restores from the snapshot even after the source disappears
	delete(s.sources, "compendium.feats.alert")
	s.Require().NoError(asi.Restore(s.ctx, a, 4, snap))
	feats = a.Character().ItemsByType(dnd5e.ItemTypeFeat)
	s.Require().Len(feats, 1)
	s.Equal("gen_1", feats[0].ID)
}

func (s *AdvancementTestSuite) TestImprovementUnknownFeat() {
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass,
		record("asi", advancement.TypeAbilityScoreImprovement, 4, map[string]any{"points": 2}),
	))
	asi := s.get(item, "asi")

	err := asi.Apply(s.ctx, a, 4, &advancement.AbilityScoreImprovementPayload{
		Type:     advancement.ImprovementFeat,
		FeatUUID: "compendium.feats.missing",
	}, nil)
	s.requireAdvancementError(err, errors.CodeFailedPrecondition)
}

func (s *AdvancementTestSuite) TestItemGrantRoundTrip() {
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass,
		record("grant", advancement.TypeItemGrant, 1, map[string]any{
			"items": []map[string]any{
				{"uuid": "compendium.items.rope"},
				{"uuid": "compendium.items.torch", "optional": true},
				{"uuid": "compendium.items.missing"},
			},
		}),
	))
	grant := s.get(item, "grant").(*advancement.ItemGrant)

	_, ok := grant.AutomaticApplicationValue(a, 1)
	s.False(ok)

	s.Require().NoError(grant.Apply(s.ctx, a, 1, &advancement.ItemGrantPayload{Selected: []string{"compendium.items.torch"}}, nil))
	s.Len(a.Items(), 3)
	s.Len(grant.Value().Added, 2)
	s.True(grant.ConfiguredForLevel(1))
	for _, granted := range a.Character().ItemsByType(dnd5e.ItemTypeLoot) {
		s.Equal("class1.grant", granted.Flags.AdvancementOrigin)
	}

	snap, err := grant.Reverse(s.ctx, a, 1)
	s.Require().NoError(err)
	s.Len(a.Items(), 1)
	retained := snap.(*advancement.ItemGrantSnapshot)
	s.Require().Contains(retained.Items, "compendium.items.rope")
	ropeID := retained.Items["compendium.items.rope"].ID

	s.sources = map[string]*dnd5e.Item{}
	s.Require().NoError(grant.Restore(s.ctx, a, 1, snap))
	s.Len(a.Items(), 3)
	s.NotNil(a.Item(ropeID))
}

func (s *AdvancementTestSuite) TestItemGrantRejectsUnknownSelection() {
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass,
		record("grant", advancement.TypeItemGrant, 1, map[string]any{
			"items": []map[string]any{{"uuid": "compendium.items.rope", "optional": true}},
		}),
	))
	grant := s.get(item, "grant")

	err := grant.Apply(s.ctx, a, 1, &advancement.ItemGrantPayload{Selected: []string{"compendium.items.torch"}}, nil)
	s.requireAdvancementError(err, errors.CodeInvalidArgument)
	s.Len(a.Items(), 1)
}

func (s *AdvancementTestSuite) TestItemGrantStampsSpellConfig() {
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass,
		record("grant", advancement.TypeItemGrant, 1, map[string]any{
			"items": []map[string]any{{"uuid": "compendium.spells.light"}},
			"spell": map[string]any{"ability": "int", "preparation": "always"},
		}),
	))
	grant := s.get(item, "grant")

	payload, ok := grant.AutomaticApplicationValue(a, 1)
	s.Require().True(ok)
	s.Require().NoError(grant.Apply(s.ctx, a, 1, payload, nil))

	spells := a.Character().ItemsByType(dnd5e.ItemTypeSpell)
	s.Require().Len(spells, 1)
	s.Equal("int", spells[0].System.Ability)
	s.Equal("always", spells[0].System.Preparation.Mode)
}

func (s *AdvancementTestSuite) TestItemChoiceRules() {
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass,
		record("choice", advancement.TypeItemChoice, 0, map[string]any{
			"choices": map[string]any{"1": map[string]any{"count": 1}, "3": map[string]any{"count": 1}, "5": map[string]any{"count": 0}},
			"pool": []map[string]any{
				{"uuid": "compendium.spells.light"},
				{"uuid": "compendium.spells.sleep"},
			},
			"type": dnd5e.ItemTypeSpell,
		}),
	))
	choice := s.get(item, "choice").(*advancement.ItemChoice)

	s.Equal([]int{1, 3}, choice.Levels())
	s.True(choice.ConfiguredForLevel(5))
	s.False(choice.ConfiguredForLevel(1))

	s.Run("too many picks", func() {
		err := choice.Apply(s.ctx, a, 1, &advancement.ItemChoicePayload{
			Selected: []string{"compendium.spells.light", "compendium.spells.sleep"},
		}, nil)
		s.requireAdvancementError(err, errors.CodeInvalidArgument)
	})

	s.Run("outside the pool", func() {
		err := choice.Apply(s.ctx, a, 1, &advancement.ItemChoicePayload{Selected: []string{"compendium.items.rope"}}, nil)
		s.requireAdvancementError(err, errors.CodeInvalidArgument)
	})

	s.Require().NoError(choice.Apply(s.ctx, a, 1, &advancement.ItemChoicePayload{Selected: []string{"compendium.spells.light"}}, nil))
	s.True(choice.ConfiguredForLevel(1))

	s.Run("picked at an earlier level", func() {
		err := choice.Apply(s.ctx, a, 3, &advancement.ItemChoicePayload{Selected: []string{"compendium.spells.light"}}, nil)
		s.requireAdvancementError(err, errors.CodeInvalidArgument)
	})

	s.Require().NoError(choice.Apply(s.ctx, a, 3, &advancement.ItemChoicePayload{Selected: []string{"compendium.spells.sleep"}}, nil))
	s.Len(a.Character().ItemsByType(dnd5e.ItemTypeSpell), 2)

	snap, err := choice.Reverse(s.ctx, a, 3)
	s.Require().NoError(err)
	s.Equal(3, snap.(*advancement.ItemChoiceSnapshot).Level)
	s.Len(a.Character().ItemsByType(dnd5e.ItemTypeSpell), 1)
	s.True(choice.ConfiguredForLevel(1))
}

func (s *AdvancementTestSuite) TestItemChoiceRestoreKeepsItemIDs() {
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass,
		record("choice", advancement.TypeItemChoice, 0, map[string]any{
			"choices": map[string]any{"1": map[string]any{"count": 1}, "3": map[string]any{"count": 1}},
			"pool": []map[string]any{
				{"uuid": "compendium.spells.light"},
				{"uuid": "compendium.spells.sleep"},
			},
			"type": dnd5e.ItemTypeSpell,
		}),
	))
	choice := s.get(item, "choice").(*advancement.ItemChoice)

	s.Require().NoError(choice.Apply(s.ctx, a, 1, &advancement.ItemChoicePayload{Selected: []string{"compendium.spells.light"}}, nil))
	s.Require().NoError(choice.Apply(s.ctx, a, 3, &advancement.ItemChoicePayload{Selected: []string{"compendium.spells.sleep"}}, nil))
	var sleepID string
	for id, uuid := range choice.Value().Added[3] {
		if uuid == "compendium.spells.sleep" {
			sleepID = id
		}
	}
	s.Require().NotEmpty(sleepID)
	before := s.characterJSON(a)

	snap, err := choice.Reverse(s.ctx, a, 3)
	s.Require().NoError(err)
	s.Nil(a.Item(sleepID))
	s.False(choice.ConfiguredForLevel(3))

	s.sources = map[string]*dnd5e.Item{}
	s.Require().NoError(choice.Restore(s.ctx, a, 3, snap))
	s.NotNil(a.Item(sleepID))
	s.True(choice.ConfiguredForLevel(3))
	s.JSONEq(before, s.characterJSON(a))
}

func (s *AdvancementTestSuite) TestItemChoiceSkipsUnresolvedPicks() {
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass,
		record("choice", advancement.TypeItemChoice, 0, map[string]any{
			"choices": map[string]any{"1": map[string]any{"count": 1}},
			"pool":    []map[string]any{{"uuid": "compendium.spells.missing"}},
		}),
	))
	choice := s.get(item, "choice")

	s.Require().NoError(choice.Apply(s.ctx, a, 1, &advancement.ItemChoicePayload{Selected: []string{"compendium.spells.missing"}}, nil))
	s.False(choice.ConfiguredForLevel(1))
	s.Empty(a.Character().ItemsByType(dnd5e.ItemTypeSpell))
	s.True(a.Patch().IsEmpty())
}

func (s *AdvancementTestSuite) TestItemChoiceRestriction() {
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass,
		record("choice", advancement.TypeItemChoice, 0, map[string]any{
			"choices":     map[string]any{"1": map[string]any{"count": 1}},
			"allowDrops":  true,
			"type":        dnd5e.ItemTypeSpell,
			"restriction": map[string]any{"level": 0},
		}),
	))
	choice := s.get(item, "choice")

	err := choice.Apply(s.ctx, a, 1, &advancement.ItemChoicePayload{Selected: []string{"compendium.spells.sleep"}}, nil)
	s.requireAdvancementError(err, errors.CodeInvalidArgument)

	err = choice.Apply(s.ctx, a, 1, &advancement.ItemChoicePayload{Selected: []string{"compendium.items.rope"}}, nil)
	s.requireAdvancementError(err, errors.CodeInvalidArgument)

	s.Require().NoError(choice.Apply(s.ctx, a, 1, &advancement.ItemChoicePayload{Selected: []string{"compendium.spells.light"}}, nil))
}

func (s *AdvancementTestSuite) TestScaleValueLookup() {
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass,
		&dnd5e.AdvancementRecord{
			ID:    "sneak",
			Type:  advancement.TypeScaleValue,
			Title: "Sneak Attack",
			Configuration: json.RawMessage(`{"type":"dice","scale":{
				"1":{"number":1,"faces":6},
				"3":{"number":2,"faces":6},
				"5":{"number":3,"faces":6}}}`),
		},
	))
	sv := s.get(item, "sneak").(*advancement.ScaleValue)

	s.Equal("sneak-attack", sv.Identifier())
	s.Equal([]int{1, 3, 5}, sv.Levels())
	s.Equal("2d6", sv.ValueForLevel(4).Formula())
	s.Equal("3d6", sv.ValueForLevel(20).Formula())
	s.Nil(sv.ValueForLevel(0))

	values := item.ScaleValues(3)
	s.Require().Contains(values, "sneak-attack")
	s.Equal("d6", values["sneak-attack"].(*advancement.ScaleDice).Die())

	payload, ok := sv.AutomaticApplicationValue(a, 3)
	s.Require().True(ok)
	s.Require().NoError(sv.Apply(s.ctx, a, 3, payload, nil))
	s.True(a.Patch().IsEmpty())
}

func (s *AdvancementTestSuite) TestConvertScaleValue() {
	testCases := []struct {
		name        string
		value       advancement.ScaleValueType
		target      string
		expected    string
		expectedErr bool
	}{
		{name: "same type is unchanged", value: &advancement.ScaleNumber{Value: 3}, target: advancement.ScaleTypeNumber, expected: "3"},
		{name: "number to dice", value: &advancement.ScaleNumber{Value: 3}, target: advancement.ScaleTypeDice, expectedErr: true},
		{name: "dice to number", value: &advancement.ScaleDice{Number: 2, Faces: 6}, target: advancement.ScaleTypeNumber, expectedErr: true},
		{name: "dice to string", value: &advancement.ScaleDice{Number: 2, Faces: 6}, target: advancement.ScaleTypeString, expected: "2d6"},
		{name: "string to dice", value: &advancement.ScaleString{Value: "1d8"}, target: advancement.ScaleTypeDice, expected: "1d8"},
		{name: "string to dice without a count", value: &advancement.ScaleString{Value: "d10"}, target: advancement.ScaleTypeDice, expected: "d10"},
		{name: "text to number", value: &advancement.ScaleString{Value: "lots"}, target: advancement.ScaleTypeNumber, expectedErr: true},
		{name: "number to cr shows a fraction", value: &advancement.ScaleNumber{Value: 0.5}, target: advancement.ScaleTypeCR, expected: "½"},
		{name: "whole cr", value: &advancement.ScaleNumber{Value: 2}, target: advancement.ScaleTypeCR, expected: "2"},
		{name: "cr to string keeps the display", value: &advancement.ScaleCR{Value: 0.25}, target: advancement.ScaleTypeString, expected: "¼"},
		{name: "cr to number", value: &advancement.ScaleCR{Value: 0.125}, target: advancement.ScaleTypeNumber, expected: "0.125"},
		{name: "number to distance", value: &advancement.ScaleNumber{Value: 30}, target: advancement.ScaleTypeDistance, expected: "30"},
		{name: "unknown target", value: &advancement.ScaleNumber{Value: 1}, target: "color", expectedErr: true},
		{name: "nothing to convert", target: advancement.ScaleTypeNumber, expectedErr: true},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			got, err := advancement.ConvertScaleValue(tc.value, tc.target)
			if tc.expectedErr {
				s.Error(err)
				return
			}
			s.Require().NoError(err)
			s.Equal(tc.target, got.Type())
			s.Equal(tc.expected, got.Display())
		})
	}
}

func (s *AdvancementTestSuite) TestHitPointsTotals() {
	s.roller.next = 3
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass, record("hp", advancement.TypeHitPoints, 0, nil)))
	hp := s.get(item, "hp").(*advancement.HitPoints)
	s.Zero(hp.Total())

	s.Require().NoError(hp.Apply(s.ctx, a, 1, &advancement.HitPointsPayload{Value: advancement.HitPointsValue{Mode: advancement.HitPointsMax}}, nil))
	s.Require().NoError(hp.Apply(s.ctx, a, 2, &advancement.HitPointsPayload{Value: advancement.HitPointsValue{Mode: advancement.HitPointsAverage}}, nil))
	s.Require().NoError(hp.Apply(s.ctx, a, 3, &advancement.HitPointsPayload{Value: advancement.HitPointsValue{Mode: advancement.HitPointsRoll}}, nil))

	// d8: 8 at first level, 5 average, 3 rolled
	s.Equal(16, hp.Total())

	testCases := []struct {
		name     string
		mod      int
		expected int
	}{
		{name: "no modifier", mod: 0, expected: 16},
		{name: "positive modifier per level", mod: 1, expected: 19},
		{name: "each level keeps at least one", mod: -4, expected: 6},
	}
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.Equal(tc.expected, hp.AdjustedTotal(tc.mod))
		})
	}
}

func (s *AdvancementTestSuite) TestScaleValueWithoutTypeIsInvalid() {
	item, _ := s.load(itemWith("class1", dnd5e.ItemTypeClass,
		&dnd5e.AdvancementRecord{
			ID:            "broken",
			Type:          advancement.TypeScaleValue,
			Configuration: json.RawMessage(`{"scale":{"1":{"value":"x"}}}`),
		},
		record("hp", advancement.TypeHitPoints, 0, nil),
	))

	s.Equal(1, item.Advancements().Len())
	s.Equal([]string{"broken"}, item.Advancements().InvalidIDs())

	adv, err := item.Advancements().Get("broken", collection.GetOptions{})
	s.Require().NoError(err)
	s.Nil(adv)

	adv, err = item.Advancements().Get("broken", collection.GetOptions{Invalid: true})
	s.Require().NoError(err)
	s.Require().NotNil(adv)
	s.requireAdvancementError(adv.Apply(s.ctx, nil, 1, nil, nil), errors.CodeFailedPrecondition)
}

func (s *AdvancementTestSuite) TestSizeAutomaticAndReverse() {
	item, a := s.load(itemWith("race1", dnd5e.ItemTypeRace,
		record("size", advancement.TypeSize, 0, map[string]any{"sizes": []string{dnd5e.SizeSmall}}),
	))
	size := s.get(item, "size")

	payload, ok := size.AutomaticApplicationValue(a, 0)
	s.Require().True(ok)
	s.Require().NoError(size.Apply(s.ctx, a, 0, payload, nil))
	s.Equal(dnd5e.SizeSmall, a.Size())

	err := size.Apply(s.ctx, a, 0, &advancement.SizePayload{Size: dnd5e.SizeLarge}, nil)
	s.requireAdvancementError(err, errors.CodeInvalidArgument)
	before := s.characterJSON(a)

	snap, err := size.Reverse(s.ctx, a, 0)
	s.Require().NoError(err)
	s.Equal(dnd5e.SizeMedium, a.Size())
	s.Equal(&advancement.SizeSnapshot{Size: dnd5e.SizeSmall}, snap)
	s.False(size.ConfiguredForLevel(0))

	s.Require().NoError(size.Restore(s.ctx, a, 0, snap))
	s.Equal(dnd5e.SizeSmall, a.Size())
	s.JSONEq(before, s.characterJSON(a))
}

func (s *AdvancementTestSuite) TestSubclass() {
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass, record("sub", advancement.TypeSubclass, 3, nil)))
	sub := s.get(item, "sub")

	err := sub.Apply(s.ctx, a, 3, &advancement.SubclassPayload{UUID: "compendium.subclasses.missing"}, nil)
	s.requireAdvancementError(err, errors.CodeFailedPrecondition)

	err = sub.Apply(s.ctx, a, 3, &advancement.SubclassPayload{UUID: "compendium.feats.alert"}, nil)
	s.requireAdvancementError(err, errors.CodeInvalidArgument)

	s.Require().NoError(sub.Apply(s.ctx, a, 3, &advancement.SubclassPayload{UUID: "compendium.subclasses.champion"}, nil))
	subclasses := a.Character().ItemsByType(dnd5e.ItemTypeSubclass)
	s.Require().Len(subclasses, 1)
	s.Equal("fighter", subclasses[0].System.ClassIdentifier)
	s.True(sub.ConfiguredForLevel(3))

	subclassID := subclasses[0].ID
	before := s.characterJSON(a)

	snap, err := sub.Reverse(s.ctx, a, 3)
	s.Require().NoError(err)
	s.Empty(a.Character().ItemsByType(dnd5e.ItemTypeSubclass))
	s.Equal("compendium.subclasses.champion", snap.(*advancement.SubclassSnapshot).UUID)
	s.False(sub.ConfiguredForLevel(3))

	// the retained item is restored even once the source is gone
	s.sources = map[string]*dnd5e.Item{}
	s.Require().NoError(sub.Restore(s.ctx, a, 3, snap))
	s.NotNil(a.Item(subclassID))
	s.JSONEq(before, s.characterJSON(a))
}

func (s *AdvancementTestSuite) TestTraitGrantsAndChoices() {
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass,
		record("trait", advancement.TypeTrait, 1, map[string]any{
			"grants":  []string{"saves:str", "languages:standard:dwarvish"},
			"choices": []map[string]any{{"count": 1, "pool": []string{"skills:*"}}},
		}),
	))
	trait := s.get(item, "trait")

	_, ok := trait.AutomaticApplicationValue(a, 1)
	s.False(ok)

	err := trait.Apply(s.ctx, a, 1, &advancement.TraitPayload{Chosen: []string{"tools:art:alchemist"}}, nil)
	s.requireAdvancementError(err, errors.CodeInvalidArgument)

	s.Require().NoError(trait.Apply(s.ctx, a, 1, &advancement.TraitPayload{Chosen: []string{"skills:ath"}}, nil))
	s.Equal(dnd5e.ProficiencyFull, a.SkillProficiency("ath"))
	s.Equal(dnd5e.ProficiencyFull, a.SaveProficiency("str"))
	languages, err := a.TraitSet("languages")
	s.Require().NoError(err)
	s.Equal([]string{"common", "dwarvish"}, languages)

	// another source raises athletics to expertise before reversal
	a.SetSkillProficiency("ath", dnd5e.ProficiencyExpert)

	snap, err := trait.Reverse(s.ctx, a, 1)
	s.Require().NoError(err)
	s.Equal([]string{"skills:ath"}, snap.(*advancement.TraitSnapshot).Chosen)
	s.Equal(dnd5e.ProficiencyExpert, a.SkillProficiency("ath"))
	s.Equal(dnd5e.ProficiencyNone, a.SaveProficiency("str"))
	languages, err = a.TraitSet("languages")
	s.Require().NoError(err)
	s.Equal([]string{"common"}, languages)
}

func (s *AdvancementTestSuite) TestTraitReverseThenRestore() {
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass,
		record("trait", advancement.TypeTrait, 1, map[string]any{
			"grants":  []string{"saves:str", "languages:standard:dwarvish", "dr:fire"},
			"choices": []map[string]any{{"count": 2, "pool": []string{"skills:*", "tools:art:*"}}},
		}),
	))
	trait := s.get(item, "trait")

	s.Require().NoError(trait.Apply(s.ctx, a, 1, &advancement.TraitPayload{
		Chosen: []string{"tools:art:alchemist", "skills:ath"},
	}, nil))
	before := s.characterJSON(a)

	snap, err := trait.Reverse(s.ctx, a, 1)
	s.Require().NoError(err)
	s.False(trait.ConfiguredForLevel(1))
	s.Equal(dnd5e.ProficiencyNone, a.ToolProficiency("alchemist"))

	s.Require().NoError(trait.Restore(s.ctx, a, 1, snap))
	s.True(trait.ConfiguredForLevel(1))
	s.JSONEq(before, s.characterJSON(a))
}

func (s *AdvancementTestSuite) TestTraitRejectsWildcardKeys() {
	s.Run("as a pick", func() {
		s.character.Items = nil
		item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass,
			record("trait", advancement.TypeTrait, 1, map[string]any{
				"choices": []map[string]any{{"count": 1, "pool": []string{"skills:*"}}},
			}),
		))
		trait := s.get(item, "trait")

		err := trait.Apply(s.ctx, a, 1, &advancement.TraitPayload{Chosen: []string{"skills:*"}}, nil)
		s.requireAdvancementError(err, errors.CodeInvalidArgument)
		s.NotContains(a.Character().System.Skills, "*")
		s.False(trait.ConfiguredForLevel(1))
		s.True(a.Patch().IsEmpty())
	})

	s.Run("as a grant", func() {
		s.character.Items = nil
		item, _ := s.load(itemWith("class1", dnd5e.ItemTypeClass,
			record("trait", advancement.TypeTrait, 1, map[string]any{"grants": []string{"saves:*"}}),
		))
		s.Equal([]string{"trait"}, item.Advancements().InvalidIDs())
	})
}

func (s *AdvancementTestSuite) TestTraitReapplyKeepsPreviousOnBadPick() {
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass,
		record("trait", advancement.TypeTrait, 1, map[string]any{
			"grants":  []string{"saves:str", "languages:standard:dwarvish"},
			"choices": []map[string]any{{"count": 1, "pool": []string{"skills:*"}}},
		}),
	))
	trait := s.get(item, "trait").(*advancement.Trait)

	s.Require().NoError(trait.Apply(s.ctx, a, 1, &advancement.TraitPayload{Chosen: []string{"skills:ath"}}, nil))
	before := s.characterJSON(a)
	applied := trait.Value()

	err := trait.Apply(s.ctx, a, 1, &advancement.TraitPayload{Chosen: []string{"tools:art:alchemist"}}, nil)
	s.requireAdvancementError(err, errors.CodeInvalidArgument)
	s.Equal(applied, trait.Value())
	s.JSONEq(before, s.characterJSON(a))

	s.Require().NoError(trait.Apply(s.ctx, a, 1, &advancement.TraitPayload{Chosen: []string{"skills:acr"}}, nil))
	s.Equal(dnd5e.ProficiencyNone, a.SkillProficiency("ath"))
	s.Equal(dnd5e.ProficiencyFull, a.SkillProficiency("acr"))
	s.Equal(dnd5e.ProficiencyFull, a.SaveProficiency("str"))
}

func (s *AdvancementTestSuite) TestTraitReplacementIgnoresOwnGrants() {
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass,
		record("trait", advancement.TypeTrait, 1, map[string]any{
			"allowReplacements": true,
			"grants":            []string{"skills:ath"},
		}),
	))
	trait := s.get(item, "trait")

	s.Require().NoError(trait.Apply(s.ctx, a, 1, &advancement.TraitPayload{}, nil))
	s.Equal(dnd5e.ProficiencyFull, a.SkillProficiency("ath"))

	// athletics only comes from this advancement, so it cannot be swapped
	err := trait.Apply(s.ctx, a, 1, &advancement.TraitPayload{Chosen: []string{"skills:acr"}}, nil)
	s.requireAdvancementError(err, errors.CodeInvalidArgument)
	s.Equal(dnd5e.ProficiencyFull, a.SkillProficiency("ath"))
	s.Equal(dnd5e.ProficiencyNone, a.SkillProficiency("acr"))
}

func (s *AdvancementTestSuite) TestTraitModes() {
	s.character.System.Skills["ste"] = &dnd5e.Proficiency{Value: dnd5e.ProficiencyFull}

	testCases := []struct {
		name     string
		mode     string
		grant    string
		expected float64
	}{
		{name: "expertise on a proficient skill", mode: advancement.TraitModeExpertise, grant: "skills:ste", expected: dnd5e.ProficiencyExpert},
		{name: "expertise skips an untrained skill", mode: advancement.TraitModeExpertise, grant: "skills:arc", expected: dnd5e.ProficiencyNone},
		{name: "forced expertise", mode: advancement.TraitModeForcedExpertise, grant: "skills:arc", expected: dnd5e.ProficiencyExpert},
		{name: "upgrade untrained", mode: advancement.TraitModeUpgrade, grant: "skills:arc", expected: dnd5e.ProficiencyFull},
		{name: "upgrade proficient", mode: advancement.TraitModeUpgrade, grant: "skills:ste", expected: dnd5e.ProficiencyExpert},
		{name: "saves never exceed proficient", mode: advancement.TraitModeForcedExpertise, grant: "saves:dex", expected: dnd5e.ProficiencyFull},
	}

	for _, tc := range testCases {
		s.Run(tc.name, func() {
			s.character.Items = nil
			item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass,
				record("trait", advancement.TypeTrait, 1, map[string]any{"mode": tc.mode, "grants": []string{tc.grant}}),
			))
			trait := s.get(item, "trait")

			payload, ok := trait.AutomaticApplicationValue(a, 1)
			s.Require().True(ok)
			s.Require().NoError(trait.Apply(s.ctx, a, 1, payload, nil))

			var got float64
			if tc.grant == "saves:dex" {
				got = a.SaveProficiency("dex")
			} else {
				got = a.SkillProficiency(tc.grant[len("skills:"):])
			}
			s.Equal(tc.expected, got)
		})
	}
}

func (s *AdvancementTestSuite) TestByLevelOrdering() {
	item, _ := s.load(itemWith("class1", dnd5e.ItemTypeClass,
		record("sub", advancement.TypeSubclass, 3, nil),
		record("asi", advancement.TypeAbilityScoreImprovement, 3, map[string]any{"points": 2}),
		record("hp", advancement.TypeHitPoints, 0, nil),
		record("grant", advancement.TypeItemGrant, 3, map[string]any{"items": []map[string]any{}}),
		record("choice", advancement.TypeItemChoice, 0, map[string]any{"choices": map[string]any{}}),
	))

	var types []string
	for _, adv := range item.Advancements().ByLevel(3) {
		types = append(types, adv.Type())
	}
	s.Equal([]string{
		advancement.TypeHitPoints,
		advancement.TypeAbilityScoreImprovement,
		advancement.TypeItemGrant,
		advancement.TypeSubclass,
	}, types)

	s.Len(item.Advancements().ByLevel(2), 1)
	s.Require().Len(item.Advancements().Unconfigured(), 1)
	s.Equal("choice", item.Advancements().Unconfigured()[0].ID())
}

func (s *AdvancementTestSuite) TestCreateAdvancementRules() {
	item, _ := s.load(itemWith("class1", dnd5e.ItemTypeClass, record("hp", advancement.TypeHitPoints, 0, nil)))

	_, err := item.CreateAdvancement(s.ctx, &dnd5e.AdvancementRecord{Type: advancement.TypeHitPoints})
	s.Require().Error(err)
	s.True(errors.IsAlreadyExists(err))

	_, err = item.CreateAdvancement(s.ctx, &dnd5e.AdvancementRecord{Type: advancement.TypeSize})
	s.Require().Error(err)
	s.True(errors.IsInvalidArgument(err))

	adv, err := item.CreateAdvancement(s.ctx, &dnd5e.AdvancementRecord{Type: advancement.TypeSubclass, Level: 3})
	s.Require().NoError(err)
	s.Equal("gen_1", adv.ID())
	s.Contains(item.Data().System.Advancement, "gen_1")

	s.Require().NoError(item.DeleteAdvancement("gen_1"))
	s.NotContains(item.Data().System.Advancement, "gen_1")
	s.True(errors.IsNotFound(item.DeleteAdvancement("gen_1")))
}

func (s *AdvancementTestSuite) TestRecordRoundTrip() {
	data := itemWith("class1", dnd5e.ItemTypeClass,
		record("asi", advancement.TypeAbilityScoreImprovement, 4, map[string]any{"points": 2, "fixed": map[string]int{"str": 1}}),
		record("trait", advancement.TypeTrait, 1, map[string]any{"grants": []string{"skills:ath"}}),
	)
	item, a := s.load(data)
	s.Require().NoError(s.get(item, "asi").Apply(s.ctx, a, 4, &advancement.AbilityScoreImprovementPayload{
		Type:        advancement.ImprovementASI,
		Assignments: map[string]int{"dex": 2},
	}, nil))

	rebuilt, err := s.engine.NewItem(s.ctx, item.Data())
	s.Require().NoError(err)
	s.Equal(item.Advancements().IDs(), rebuilt.Advancements().IDs())

	for _, id := range item.Advancements().IDs() {
		original, err := s.get(item, id).Record()
		s.Require().NoError(err)
		again, err := s.get(rebuilt, id).Record()
		s.Require().NoError(err)
		s.JSONEq(string(mustJSON(original)), string(mustJSON(again)))
	}

	asi := s.get(rebuilt, "asi").(*advancement.AbilityScoreImprovement)
	s.Equal(map[string]int{"str": 1, "dex": 2}, asi.Value().Assignments)
}

func (s *AdvancementTestSuite) TestRefreshKeepsIdentity() {
	data := itemWith("class1", dnd5e.ItemTypeClass, record("trait", advancement.TypeTrait, 1, nil))
	item, _ := s.load(data)
	before := s.get(item, "trait")

	updated, err := data.Clone()
	s.Require().NoError(err)
	updated.System.Advancement["trait"].Title = "Renamed"
	s.Require().NoError(item.Refresh(s.ctx, updated))

	after := s.get(item, "trait")
	s.Same(before, after)
	s.Equal("Renamed", after.Title())
}

func (s *AdvancementTestSuite) TestSnapshotEnvelope() {
	registry := s.engine.Registry()
	raw, err := registry.EncodeSnapshot(&advancement.HitPointsSnapshot{Level: 3, Value: advancement.HitPointsValue{Mode: advancement.HitPointsAverage}})
	s.Require().NoError(err)

	snap, err := registry.DecodeSnapshot(raw)
	s.Require().NoError(err)
	s.Equal(&advancement.HitPointsSnapshot{Level: 3, Value: advancement.HitPointsValue{Mode: advancement.HitPointsAverage}}, snap)

	_, err = registry.DecodeSnapshot([]byte(`{"type":"Unknown","data":{}}`))
	s.True(errors.IsInvalidArgument(err))

	payload, err := registry.DecodePayload(advancement.TypeHitPoints, []byte(`{"value":7}`))
	s.Require().NoError(err)
	s.Equal(7, payload.(*advancement.HitPointsPayload).Value.Amount)
}

func (s *AdvancementTestSuite) TestClassRestriction() {
	item, a := s.load(itemWith("class1", dnd5e.ItemTypeClass,
		&dnd5e.AdvancementRecord{ID: "primary", Type: advancement.TypeTrait, Level: 1, ClassRestriction: "primary"},
		&dnd5e.AdvancementRecord{ID: "secondary", Type: advancement.TypeTrait, Level: 1, ClassRestriction: "secondary"},
	))
	s.True(item.IsOriginalClass(a))
	s.True(s.get(item, "primary").AppliesToClass(true))
	s.False(s.get(item, "primary").AppliesToClass(false))
	s.False(s.get(item, "secondary").AppliesToClass(true))
	s.True(s.get(item, "secondary").AppliesToClass(false))
}

func mustJSON(v any) []byte {
	out, err := json.Marshal(v)
	if err != nil {
		panic(err)
	}
	return out
}
