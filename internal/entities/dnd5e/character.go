// Package dnd5e holds the persisted character and item documents the
// advancement engine reads and mutates.
//
// JSON tags follow the dotted paths used in staged patches, so
// "system.attributes.hp.value" addresses Character.System.Attributes.HP.Value.
package dnd5e

import (
	"encoding/json"
	"math"
)

// Character is a persisted player character with its embedded items
type Character struct {
	ID        string          `json:"id"`
	Name      string          `json:"name"`
	PlayerID  string          `json:"playerId,omitempty"`
	System    CharacterSystem `json:"system"`
	Items     []*Item         `json:"items"`
	CreatedAt int64           `json:"createdAt"`
	UpdatedAt int64           `json:"updatedAt"`
}

// CharacterSystem is the rules data of a character
type CharacterSystem struct {
	Abilities  map[string]*Ability     `json:"abilities"`
	Attributes Attributes              `json:"attributes"`
	Traits     Traits                  `json:"traits"`
	Skills     map[string]*Proficiency `json:"skills"`
	Tools      map[string]*Proficiency `json:"tools"`
	Details    Details                 `json:"details"`
}

// Ability is a single ability score
type Ability struct {
	Value      int     `json:"value"`
	Max        int     `json:"max,omitempty"`
	Proficient float64 `json:"proficient"`
}

// Mod returns the ability modifier
func (a *Ability) Mod() int {
	if a == nil {
		return 0
	}
	return int(math.Floor(float64(a.Value-10) / 2))
}

// Ceiling returns the configured max, or DefaultAbilityMax when unset
func (a *Ability) Ceiling() int {
	if a == nil || a.Max == 0 {
		return DefaultAbilityMax
	}
	return a.Max
}

// Attributes holds derived-but-persisted character attributes
type Attributes struct {
	HP HitPoints `json:"hp"`
}

// HitPoints tracks current and maximum hit points
type HitPoints struct {
	Value   int              `json:"value"`
	Max     int              `json:"max"`
	Bonuses HitPointsBonuses `json:"bonuses"`
}

// HitPointsBonuses are flat bonuses applied while leveling
type HitPointsBonuses struct {
	Level int `json:"level"`
}

// Traits holds size and set-valued traits
type Traits struct {
	Size       string   `json:"size"`
	Languages  TraitSet `json:"languages"`
	WeaponProf TraitSet `json:"weaponProf"`
	ArmorProf  TraitSet `json:"armorProf"`
	DI         TraitSet `json:"di"`
	DR         TraitSet `json:"dr"`
	DV         TraitSet `json:"dv"`
	CI         TraitSet `json:"ci"`
}

// TraitSet is an unordered set of trait keys, persisted as a list
type TraitSet struct {
	Value []string `json:"value"`
}

// Has reports whether key is present
func (t TraitSet) Has(key string) bool {
	for _, v := range t.Value {
		if v == key {
			return true
		}
	}
	return false
}

// Proficiency is a skill or tool proficiency level
type Proficiency struct {
	Value   float64 `json:"value"`
	Ability string  `json:"ability,omitempty"`
}

// Details holds biographical and bookkeeping data
type Details struct {
	OriginalClass string `json:"originalClass"`
}

// Item returns the embedded item with the given id
func (c *Character) Item(id string) *Item {
	for _, item := range c.Items {
		if item.ID == id {
			return item
		}
	}
	return nil
}

// ItemsByType returns embedded items of the given type in document order
func (c *Character) ItemsByType(itemType string) []*Item {
	var out []*Item
	for _, item := range c.Items {
		if item.Type == itemType {
			out = append(out, item)
		}
	}
	return out
}

// Level returns the character level: the sum of class levels
func (c *Character) Level() int {
	total := 0
	for _, item := range c.ItemsByType(ItemTypeClass) {
		total += item.System.Levels
	}
	return total
}

// Clone returns a deep copy
func (c *Character) Clone() (*Character, error) {
	data, err := json.Marshal(c)
	if err != nil {
		return nil, err
	}
	var out Character
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
