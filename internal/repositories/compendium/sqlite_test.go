package compendium_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
	"github.com/KirkDiggler/rpg-progression/internal/repositories/compendium"
	compendiummock "github.com/KirkDiggler/rpg-progression/internal/repositories/compendium/mock"
)

const packYAML = `
pack: feats
items:
  - _id: alert
    name: Alert
    type: feat
  - _id: tough
    name: Tough
    type: feat
---
pack: classes
items:
  - _id: fighter
    name: Fighter
    type: class
    system:
      identifier: fighter
      hitDice: d10
      advancement:
        hp:
          _id: hp
          type: HitPoints
`

type SQLiteTestSuite struct {
	suite.Suite
	store *compendium.Store
	ctx   context.Context
}

func (s *SQLiteTestSuite) SetupTest() {
	store, err := compendium.NewSQLite(&compendium.Config{Path: compendium.MemoryPath})
	s.Require().NoError(err)
	s.store = store
	s.ctx = context.Background()
}

func (s *SQLiteTestSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func (s *SQLiteTestSuite) TestConfigValidation() {
	_, err := compendium.NewSQLite(&compendium.Config{})
	s.Require().Error(err)
	s.True(errors.IsInvalidArgument(err))
}

func (s *SQLiteTestSuite) TestParseUUID() {
	pack, id, err := compendium.ParseUUID("compendium.feats.alert")
	s.Require().NoError(err)
	s.Equal("feats", pack)
	s.Equal("alert", id)

	for _, bad := range []string{"", "srd.class.fighter", "compendium.feats", "compendium..alert"} {
		_, _, err := compendium.ParseUUID(bad)
		s.True(errors.IsInvalidArgument(err), bad)
	}
}

func (s *SQLiteTestSuite) TestPutGetAndReplace() {
	out, err := s.store.Put(s.ctx, compendium.PutInput{
		Pack:  "feats",
		Items: []*dnd5e.Item{{ID: "alert", Name: "Alert", Type: dnd5e.ItemTypeFeat}},
	})
	s.Require().NoError(err)
	s.Equal([]string{"compendium.feats.alert"}, out.UUIDs)

	got, err := s.store.Get(s.ctx, compendium.GetInput{UUID: "compendium.feats.alert"})
	s.Require().NoError(err)
	s.Equal("Alert", got.Entry.Item.Name)
	s.Equal("feats", got.Entry.Pack)

	_, err = s.store.Put(s.ctx, compendium.PutInput{
		Pack:  "feats",
		Items: []*dnd5e.Item{{ID: "alert", Name: "Alert (revised)", Type: dnd5e.ItemTypeFeat}},
	})
	s.Require().NoError(err)

	got, err = s.store.Get(s.ctx, compendium.GetInput{UUID: "compendium.feats.alert"})
	s.Require().NoError(err)
	s.Equal("Alert (revised)", got.Entry.Item.Name)
}

func (s *SQLiteTestSuite) TestPutValidation() {
	testCases := []struct {
		name  string
		input compendium.PutInput
	}{
		{name: "missing pack", input: compendium.PutInput{Items: []*dnd5e.Item{{ID: "a", Type: "feat"}}}},
		{name: "dotted pack", input: compendium.PutInput{Pack: "a.b", Items: []*dnd5e.Item{{ID: "a", Type: "feat"}}}},
		{name: "item without id", input: compendium.PutInput{Pack: "feats", Items: []*dnd5e.Item{{Type: "feat"}}}},
		{name: "item without type", input: compendium.PutInput{Pack: "feats", Items: []*dnd5e.Item{{ID: "a"}}}},
	}
	for _, tc := range testCases {
		s.Run(tc.name, func() {
			_, err := s.store.Put(s.ctx, tc.input)
			s.Require().Error(err)
			s.True(errors.IsInvalidArgument(err))
		})
	}
}

func (s *SQLiteTestSuite) TestImportListAndResolve() {
	uuids, err := compendium.Import(s.ctx, s.store, strings.NewReader(packYAML))
	s.Require().NoError(err)
	s.Len(uuids, 3)

	feats, err := s.store.List(s.ctx, compendium.ListInput{Type: dnd5e.ItemTypeFeat})
	s.Require().NoError(err)
	s.Require().Len(feats.Entries, 2)
	s.Equal("compendium.feats.alert", feats.Entries[0].UUID)
	s.Equal("compendium.feats.tough", feats.Entries[1].UUID)

	all, err := s.store.List(s.ctx, compendium.ListInput{})
	s.Require().NoError(err)
	s.Len(all.Entries, 3)

	fighter, err := s.store.Resolve(s.ctx, "compendium.classes.fighter")
	s.Require().NoError(err)
	s.Require().NotNil(fighter)
	s.Equal("d10", fighter.System.HitDice)
	s.Require().Contains(fighter.System.Advancement, "hp")
	s.Equal("HitPoints", fighter.System.Advancement["hp"].Type)

	missing, err := s.store.Resolve(s.ctx, "compendium.classes.wizard")
	s.Require().NoError(err)
	s.Nil(missing)

	foreign, err := s.store.Resolve(s.ctx, "srd.class.wizard")
	s.Require().NoError(err)
	s.Nil(foreign)
}

func (s *SQLiteTestSuite) TestDelete() {
	_, err := s.store.Put(s.ctx, compendium.PutInput{
		Pack:  "feats",
		Items: []*dnd5e.Item{{ID: "alert", Name: "Alert", Type: dnd5e.ItemTypeFeat}},
	})
	s.Require().NoError(err)

	_, err = s.store.Delete(s.ctx, compendium.DeleteInput{UUID: "compendium.feats.alert"})
	s.Require().NoError(err)

	_, err = s.store.Get(s.ctx, compendium.GetInput{UUID: "compendium.feats.alert"})
	s.True(errors.IsNotFound(err))

	_, err = s.store.Delete(s.ctx, compendium.DeleteInput{UUID: "compendium.feats.alert"})
	s.True(errors.IsNotFound(err))
}

func (s *SQLiteTestSuite) TestImportRejectsBadDocuments() {
	_, err := compendium.DecodeYAML(strings.NewReader("items: []\n"))
	s.True(errors.IsInvalidArgument(err))

	_, err = compendium.DecodeYAML(strings.NewReader("pack: [unclosed\n"))
	s.True(errors.IsInvalidArgument(err))
}

func (s *SQLiteTestSuite) TestImportStopsOnStoreFailure() {
	ctrl := gomock.NewController(s.T())
	repo := compendiummock.NewMockRepository(ctrl)

	repo.EXPECT().
		Put(s.ctx, gomock.Any()).
		Return(nil, errors.Internal("disk full"))

	_, err := compendium.Import(s.ctx, repo, strings.NewReader(packYAML))
	s.Require().Error(err)
	s.True(errors.IsInternal(err))
}

func TestSQLiteSuite(t *testing.T) {
	suite.Run(t, new(SQLiteTestSuite))
}
