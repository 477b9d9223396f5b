package dnd5e_test

import (
	"testing"

	"github.com/stretchr/testify/suite"

	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
)

type CharacterTestSuite struct {
	suite.Suite
}

func TestCharacterSuite(t *testing.T) {
	suite.Run(t, new(CharacterTestSuite))
}

func (s *CharacterTestSuite) TestAbilityMod() {
	testCases := []struct {
		value int
		mod   int
	}{
		{value: 1, mod: -5},
		{value: 9, mod: -1},
		{value: 10, mod: 0},
		{value: 13, mod: 1},
		{value: 20, mod: 5},
	}

	for _, tc := range testCases {
		a := &dnd5e.Ability{Value: tc.value}
		s.Equal(tc.mod, a.Mod(), "value %d", tc.value)
	}

	var missing *dnd5e.Ability
	s.Equal(0, missing.Mod())
	s.Equal(dnd5e.DefaultAbilityMax, missing.Ceiling())
}

func (s *CharacterTestSuite) TestLevelSumsClasses() {
	char := &dnd5e.Character{
		Items: []*dnd5e.Item{
			{ID: "c1", Type: dnd5e.ItemTypeClass, System: dnd5e.ItemSystem{Levels: 3}},
			{ID: "c2", Type: dnd5e.ItemTypeClass, System: dnd5e.ItemSystem{Levels: 2}},
			{ID: "r1", Type: dnd5e.ItemTypeRace},
		},
	}

	s.Equal(5, char.Level())
	s.Len(char.ItemsByType(dnd5e.ItemTypeClass), 2)
	s.Equal("r1", char.Item("r1").ID)
	s.Nil(char.Item("nope"))
}

func (s *CharacterTestSuite) TestHitDieFaces() {
	item := &dnd5e.Item{System: dnd5e.ItemSystem{HitDice: "d10"}}
	faces, err := item.HitDieFaces()
	s.Require().NoError(err)
	s.Equal(10, faces)

	for _, bad := range []string{"", "10", "dx", "d0"} {
		_, err := (&dnd5e.Item{System: dnd5e.ItemSystem{HitDice: bad}}).HitDieFaces()
		s.Error(err, bad)
	}
}

func (s *CharacterTestSuite) TestCloneIsDeep() {
	char := &dnd5e.Character{
		ID: "char-1",
		System: dnd5e.CharacterSystem{
			Abilities: map[string]*dnd5e.Ability{"str": {Value: 12}},
		},
		Items: []*dnd5e.Item{{
			ID: "c1",
			System: dnd5e.ItemSystem{Advancement: map[string]*dnd5e.AdvancementRecord{
				"a1": {ID: "a1", Type: "HitPoints"},
			}},
		}},
	}

	clone, err := char.Clone()
	s.Require().NoError(err)
	clone.System.Abilities["str"].Value = 18
	clone.Items[0].System.Advancement["a1"].Title = "changed"

	s.Equal(12, char.System.Abilities["str"].Value)
	s.Empty(char.Items[0].System.Advancement["a1"].Title)
}
