// Package actor stages changes against a character during a level transition.
//
// An Actor wraps a private copy of the character. Every mutation is applied
// to that copy immediately, so later steps observe earlier ones, and is also
// recorded on a Patch that the caller commits once at the end.
package actor

import (
	"encoding/json"
	"sort"

	"github.com/KirkDiggler/rpg-toolkit/core"

	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
)

// EntityType is the core.Entity type of an actor
const EntityType = "character"

// Actor is a staged view of a character. It is not safe for concurrent use.
type Actor struct {
	character *dnd5e.Character
	baseItems map[string]bool
	patch     *Patch
}

// New stages a copy of character
func New(character *dnd5e.Character) (*Actor, error) {
	if character == nil {
		return nil, errors.InvalidArgument("character is required")
	}

	staged, err := character.Clone()
	if err != nil {
		return nil, errors.Wrap(err, "failed to stage character")
	}
	if staged.System.Abilities == nil {
		staged.System.Abilities = make(map[string]*dnd5e.Ability)
	}
	if staged.System.Skills == nil {
		staged.System.Skills = make(map[string]*dnd5e.Proficiency)
	}
	if staged.System.Tools == nil {
		staged.System.Tools = make(map[string]*dnd5e.Proficiency)
	}

	base := make(map[string]bool, len(staged.Items))
	for _, item := range staged.Items {
		base[item.ID] = true
	}

	return &Actor{
		character: staged,
		baseItems: base,
		patch:     &Patch{},
	}, nil
}

// GetID implements core.Entity
func (a *Actor) GetID() string { return a.character.ID }

// GetType implements core.Entity
func (a *Actor) GetType() string { return EntityType }

// Character returns the staged character. Callers must not mutate it.
func (a *Actor) Character() *dnd5e.Character { return a.character }

// Patch returns the changes staged so far
func (a *Actor) Patch() *Patch { return a.patch }

// Level returns the staged character level
func (a *Actor) Level() int { return a.character.Level() }

// Ability returns the staged ability, or nil when the character lacks it
func (a *Actor) Ability(key string) *dnd5e.Ability {
	return a.character.System.Abilities[key]
}

// AbilityMod returns the modifier of an ability, zero when missing
func (a *Actor) AbilityMod(key string) int {
	return a.Ability(key).Mod()
}

// SetAbilityValue sets an ability score
func (a *Actor) SetAbilityValue(key string, value int) error {
	ability, ok := a.character.System.Abilities[key]
	if !ok {
		return errors.NotFoundf("ability %s not found", key).WithMeta("ability", key)
	}
	ability.Value = value
	a.patch.assign("system.abilities."+key+".value", value)
	return nil
}

// SaveProficiency returns the saving throw proficiency of an ability
func (a *Actor) SaveProficiency(key string) float64 {
	if ability := a.Ability(key); ability != nil {
		return ability.Proficient
	}
	return dnd5e.ProficiencyNone
}

// SetSaveProficiency sets the saving throw proficiency of an ability
func (a *Actor) SetSaveProficiency(key string, value float64) error {
	ability, ok := a.character.System.Abilities[key]
	if !ok {
		return errors.NotFoundf("ability %s not found", key).WithMeta("ability", key)
	}
	ability.Proficient = value
	a.patch.assign("system.abilities."+key+".proficient", value)
	return nil
}

// HitPoints returns the staged hit points
func (a *Actor) HitPoints() dnd5e.HitPoints {
	return a.character.System.Attributes.HP
}

// AdjustHitPoints moves current and maximum hit points by delta
func (a *Actor) AdjustHitPoints(delta int) {
	hp := &a.character.System.Attributes.HP
	hp.Value += delta
	hp.Max += delta
	a.patch.assign("system.attributes.hp.value", hp.Value)
	a.patch.assign("system.attributes.hp.max", hp.Max)
}

// Size returns the staged size category
func (a *Actor) Size() string {
	return a.character.System.Traits.Size
}

// SetSize sets the size category
func (a *Actor) SetSize(size string) {
	a.character.System.Traits.Size = size
	a.patch.assign("system.traits.size", size)
}

// SkillProficiency returns the proficiency level of a skill
func (a *Actor) SkillProficiency(key string) float64 {
	if skill, ok := a.character.System.Skills[key]; ok {
		return skill.Value
	}
	return dnd5e.ProficiencyNone
}

// SetSkillProficiency sets the proficiency level of a skill
func (a *Actor) SetSkillProficiency(key string, value float64) {
	skill, ok := a.character.System.Skills[key]
	if !ok {
		skill = &dnd5e.Proficiency{}
		a.character.System.Skills[key] = skill
	}
	skill.Value = value
	a.patch.assign("system.skills."+key+".value", value)
}

// ToolProficiency returns the proficiency level of a tool
func (a *Actor) ToolProficiency(key string) float64 {
	if tool, ok := a.character.System.Tools[key]; ok {
		return tool.Value
	}
	return dnd5e.ProficiencyNone
}

// SetToolProficiency sets the proficiency level of a tool
func (a *Actor) SetToolProficiency(key string, value float64) {
	tool, ok := a.character.System.Tools[key]
	if !ok {
		tool = &dnd5e.Proficiency{}
		a.character.System.Tools[key] = tool
	}
	tool.Value = value
	a.patch.assign("system.tools."+key+".value", value)
}

// TraitSet returns a copy of the keys in a set-valued trait
func (a *Actor) TraitSet(trait string) ([]string, error) {
	set, err := a.traitSet(trait)
	if err != nil {
		return nil, err
	}
	return append([]string(nil), set.Value...), nil
}

// SetTraitSet replaces the keys in a set-valued trait
func (a *Actor) SetTraitSet(trait string, keys []string) error {
	set, err := a.traitSet(trait)
	if err != nil {
		return err
	}
	values := append([]string{}, keys...)
	sort.Strings(values)
	set.Value = values
	a.patch.assign("system.traits."+trait+".value", values)
	return nil
}

func (a *Actor) traitSet(trait string) (*dnd5e.TraitSet, error) {
	t := &a.character.System.Traits
	switch trait {
	case "languages":
		return &t.Languages, nil
	case "weaponProf":
		return &t.WeaponProf, nil
	case "armorProf":
		return &t.ArmorProf, nil
	case "di":
		return &t.DI, nil
	case "dr":
		return &t.DR, nil
	case "dv":
		return &t.DV, nil
	case "ci":
		return &t.CI, nil
	}
	return nil, errors.InvalidArgumentf("unknown trait set %s", trait).WithMeta("trait", trait)
}

// OriginalClass returns the id of the first class the character took
func (a *Actor) OriginalClass() string {
	return a.character.System.Details.OriginalClass
}

// SetOriginalClass records the character's first class
func (a *Actor) SetOriginalClass(itemID string) {
	a.character.System.Details.OriginalClass = itemID
	a.patch.assign("system.details.originalClass", itemID)
}

// Item returns a staged item by id
func (a *Actor) Item(id string) *dnd5e.Item {
	return a.character.Item(id)
}

// Items returns the staged items
func (a *Actor) Items() []*dnd5e.Item {
	return a.character.Items
}

// CreateItems adds items to the character
func (a *Actor) CreateItems(items ...*dnd5e.Item) error {
	for _, item := range items {
		if item.ID == "" {
			return errors.InvalidArgument("item id is required")
		}
		if a.character.Item(item.ID) != nil {
			return errors.AlreadyExistsf("item %s already exists", item.ID).WithMeta("item_id", item.ID)
		}
	}

	for _, item := range items {
		a.character.Items = append(a.character.Items, item)
		stored, err := item.Clone()
		if err != nil {
			return errors.Wrapf(err, "failed to stage item %s", item.ID)
		}
		a.patch.Create = append(a.patch.Create, stored)
	}
	return nil
}

// DeleteItems removes items from the character and returns the removed data.
// Unknown ids are ignored.
func (a *Actor) DeleteItems(ids ...string) []*dnd5e.Item {
	var removed []*dnd5e.Item
	for _, id := range ids {
		idx := -1
		for i, item := range a.character.Items {
			if item.ID == id {
				idx = i
				break
			}
		}
		if idx < 0 {
			continue
		}

		removed = append(removed, a.character.Items[idx])
		a.character.Items = append(a.character.Items[:idx], a.character.Items[idx+1:]...)

		a.patch.dropItem(id)
		if a.baseItems[id] {
			a.patch.markDeleted(id)
		}
	}
	return removed
}

// UpdateItem sets a dotted path on a staged item. A json.RawMessage value is
// written verbatim; a nil json.RawMessage deletes the path.
func (a *Actor) UpdateItem(itemID, path string, value any) error {
	idx := -1
	for i, item := range a.character.Items {
		if item.ID == itemID {
			idx = i
			break
		}
	}
	if idx < 0 {
		return errors.NotFoundf("item %s not found", itemID).WithMeta("item_id", itemID)
	}

	data, err := json.Marshal(a.character.Items[idx])
	if err != nil {
		return errors.Wrapf(err, "failed to encode item %s", itemID)
	}
	data, err = setPath(data, path, value)
	if err != nil {
		return errors.Wrapf(err, "failed to update item %s", itemID)
	}
	var updated dnd5e.Item
	if err := json.Unmarshal(data, &updated); err != nil {
		return errors.Wrapf(err, "failed to decode item %s", itemID)
	}
	a.character.Items[idx] = &updated

	if a.isCreated(itemID) {
		for i, item := range a.patch.Create {
			if item.ID == itemID {
				stored, err := updated.Clone()
				if err != nil {
					return errors.Wrapf(err, "failed to stage item %s", itemID)
				}
				a.patch.Create[i] = stored
			}
		}
		return nil
	}

	a.patch.updateItem(itemID, path, value)
	return nil
}

func (a *Actor) isCreated(itemID string) bool {
	for _, item := range a.patch.Create {
		if item.ID == itemID {
			return true
		}
	}
	return false
}

var _ core.Entity = (*Actor)(nil)
