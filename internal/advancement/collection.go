package advancement

import (
	"context"

	"github.com/KirkDiggler/rpg-progression/internal/collection"
	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
)

// Collection is an item's set of advancements with a level index on top of
// the generic type index.
type Collection struct {
	*collection.Collection[Advancement, *dnd5e.AdvancementRecord]

	byLevel      map[int][]Advancement
	unconfigured []Advancement
}

func newCollection(item *Item) (*Collection, error) {
	inner, err := collection.New(collection.Config[Advancement, *dnd5e.AdvancementRecord]{
		Name: "advancement",
		New: func(_ context.Context, id string, rec *dnd5e.AdvancementRecord) (Advancement, error) {
			return item.build(id, rec)
		},
		Refresh: func(_ context.Context, adv Advancement, rec *dnd5e.AdvancementRecord) (bool, error) {
			if rec == nil || adv.Type() != rec.Type {
				return true, nil
			}
			adv.base().loadBase(rec)
			if err := adv.load(rec); err != nil {
				return false, invalidRecord(rec.ID, rec.Type, err)
			}
			return false, nil
		},
		Invalid: func(id string, rec *dnd5e.AdvancementRecord, cause error) Advancement {
			return item.invalid(id, rec, cause)
		},
		TypeOf: func(adv Advancement) string { return adv.Type() },
	})
	if err != nil {
		return nil, err
	}

	c := &Collection{Collection: inner}
	inner.OnInvalidate(func() {
		c.byLevel = nil
		c.unconfigured = nil
	})
	return c, nil
}

func (c *Collection) index() {
	if c.byLevel != nil {
		return
	}

	byLevel := make(map[int][]Advancement)
	var unconfigured []Advancement
	for _, adv := range c.Values() {
		levels := adv.Levels()
		if len(levels) == 0 {
			unconfigured = append(unconfigured, adv)
			continue
		}
		for _, level := range levels {
			byLevel[level] = append(byLevel[level], adv)
		}
	}
	for _, advs := range byLevel {
		sortAdvancements(advs)
	}
	sortAdvancements(unconfigured)

	c.byLevel = byLevel
	c.unconfigured = unconfigured
}

// ByLevel returns the advancements active at level in processing order
func (c *Collection) ByLevel(level int) []Advancement {
	c.index()
	return c.byLevel[level]
}

// LevelIndex returns every level bucket
func (c *Collection) LevelIndex() map[int][]Advancement {
	c.index()
	return c.byLevel
}

// Unconfigured returns advancements that are not active at any level yet
func (c *Collection) Unconfigured() []Advancement {
	c.index()
	return c.unconfigured
}
