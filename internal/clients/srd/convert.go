package srd

import (
	"fmt"
	"strings"

	dnd5eapi "github.com/fadedpez/dnd5e-api/clients/dnd5e"
	apientities "github.com/fadedpez/dnd5e-api/entities"

	"github.com/KirkDiggler/rpg-progression/internal/advancement"
	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
)

// API is the subset of the dnd5e-api client the resolver needs
type API interface {
	GetClass(key string) (*apientities.Class, error)
	GetRace(key string) (*apientities.Race, error)
	GetSpell(key string) (*apientities.Spell, error)
	GetFeature(key string) (*apientities.Feature, error)
	GetEquipment(key string) (dnd5eapi.EquipmentInterface, error)
}

// asiLevels are the class levels that grant an ability score improvement
var asiLevels = []int{4, 8, 12, 16, 19}

var sizes = map[string]string{
	"tiny":       dnd5e.SizeTiny,
	"small":      dnd5e.SizeSmall,
	"medium":     dnd5e.SizeMedium,
	"large":      dnd5e.SizeLarge,
	"huge":       dnd5e.SizeHuge,
	"gargantuan": dnd5e.SizeGargantuan,
}

func (c *Client) class(key string) (*dnd5e.Item, error) {
	class, err := c.api.GetClass(key)
	if err != nil {
		return nil, err
	}
	if class == nil {
		return nil, nil
	}

	item := &dnd5e.Item{
		ID:   class.Key,
		Name: class.Name,
		Type: dnd5e.ItemTypeClass,
		System: dnd5e.ItemSystem{
			Identifier:  class.Key,
			HitDice:     fmt.Sprintf("d%d", class.HitDie),
			Advancement: make(map[string]*dnd5e.AdvancementRecord),
		},
	}

	hp, err := record("hit-points", advancement.TypeHitPoints, 0, nil)
	if err != nil {
		return nil, err
	}
	item.System.Advancement[hp.ID] = hp

	var saves []string
	for _, st := range class.SavingThrows {
		if dnd5e.IsValidAbility(st.Key) {
			saves = append(saves, "saves:"+st.Key)
		}
	}
	if len(saves) > 0 {
		rec, err := record("saves", advancement.TypeTrait, 1, &advancement.TraitConfig{Grants: saves})
		if err != nil {
			return nil, err
		}
		rec.ClassRestriction = string(advancement.ClassRestrictionPrimary)
		item.System.Advancement[rec.ID] = rec
	}

	for _, level := range asiLevels {
		rec, err := record(fmt.Sprintf("asi-%d", level), advancement.TypeAbilityScoreImprovement, level,
			&advancement.AbilityScoreImprovementConfig{Points: 2})
		if err != nil {
			return nil, err
		}
		item.System.Advancement[rec.ID] = rec
	}
	return item, nil
}

func (c *Client) race(key string) (*dnd5e.Item, error) {
	race, err := c.api.GetRace(key)
	if err != nil {
		return nil, err
	}
	if race == nil {
		return nil, nil
	}

	item := &dnd5e.Item{
		ID:   race.Key,
		Name: race.Name,
		Type: dnd5e.ItemTypeRace,
		System: dnd5e.ItemSystem{
			Identifier:  race.Key,
			Advancement: make(map[string]*dnd5e.AdvancementRecord),
		},
	}

	if size, ok := sizes[strings.ToLower(race.Size)]; ok {
		rec, err := record("size", advancement.TypeSize, 0, &advancement.SizeConfig{Sizes: []string{size}})
		if err != nil {
			return nil, err
		}
		item.System.Advancement[rec.ID] = rec
	}

	fixed := make(map[string]int)
	for _, bonus := range race.AbilityBonuses {
		if bonus.AbilityScore == nil || !dnd5e.IsValidAbility(bonus.AbilityScore.Key) {
			continue
		}
		fixed[bonus.AbilityScore.Key] += int(bonus.Bonus)
	}
	if len(fixed) > 0 {
		rec, err := record("ability-bonuses", advancement.TypeAbilityScoreImprovement, 0,
			&advancement.AbilityScoreImprovementConfig{Fixed: fixed})
		if err != nil {
			return nil, err
		}
		item.System.Advancement[rec.ID] = rec
	}

	var languages []string
	for _, lang := range race.Languages {
		if lang.Key != "" {
			languages = append(languages, "languages:"+lang.Key)
		}
	}
	if len(languages) > 0 {
		rec, err := record("languages", advancement.TypeTrait, 0, &advancement.TraitConfig{Grants: languages})
		if err != nil {
			return nil, err
		}
		item.System.Advancement[rec.ID] = rec
	}
	return item, nil
}

func (c *Client) spell(key string) (*dnd5e.Item, error) {
	spell, err := c.api.GetSpell(key)
	if err != nil {
		return nil, err
	}
	if spell == nil {
		return nil, nil
	}

	return &dnd5e.Item{
		ID:   spell.Key,
		Name: spell.Name,
		Type: dnd5e.ItemTypeSpell,
		System: dnd5e.ItemSystem{
			Identifier: spell.Key,
			Level:      int(spell.SpellLevel),
		},
	}, nil
}

func (c *Client) feature(key string) (*dnd5e.Item, error) {
	feature, err := c.api.GetFeature(key)
	if err != nil {
		return nil, err
	}
	if feature == nil {
		return nil, nil
	}

	item := &dnd5e.Item{
		ID:   feature.Key,
		Name: feature.Name,
		Type: dnd5e.ItemTypeFeat,
		System: dnd5e.ItemSystem{
			Identifier: feature.Key,
			Type:       &dnd5e.ItemSubtype{Value: "class"},
		},
	}
	if feature.Class != nil {
		item.System.Type.Subtype = feature.Class.Key
	}
	return item, nil
}

func (c *Client) equipment(key string) (*dnd5e.Item, error) {
	equipment, err := c.api.GetEquipment(key)
	if err != nil {
		return nil, err
	}
	if equipment == nil {
		return nil, nil
	}

	item := &dnd5e.Item{
		System: dnd5e.ItemSystem{
			Type: &dnd5e.ItemSubtype{Value: equipment.GetType()},
		},
	}
	switch eq := equipment.(type) {
	case *apientities.Weapon:
		item.ID, item.Name, item.Type = eq.Key, eq.Name, dnd5e.ItemTypeWeapon
	case *apientities.Armor:
		item.ID, item.Name, item.Type = eq.Key, eq.Name, dnd5e.ItemTypeEquipment
	case *apientities.Equipment:
		item.ID, item.Name, item.Type = eq.Key, eq.Name, dnd5e.ItemTypeLoot
	default:
		return nil, nil
	}
	item.System.Identifier = item.ID
	return item, nil
}
