package dnd5e

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Item is an embedded item document: a class, subclass, race, background,
// feat, spell or piece of equipment.
type Item struct {
	ID     string     `json:"_id"`
	Name   string     `json:"name"`
	Type   string     `json:"type"`
	Img    string     `json:"img,omitempty"`
	System ItemSystem `json:"system"`
	Flags  ItemFlags  `json:"flags"`
}

// ItemSystem is the rules data of an item. Fields only apply to the item
// types that use them.
type ItemSystem struct {
	Identifier      string                        `json:"identifier,omitempty"`
	ClassIdentifier string                        `json:"classIdentifier,omitempty"`
	Levels          int                           `json:"levels,omitempty"`
	HitDice         string                        `json:"hitDice,omitempty"`
	Advancement     map[string]*AdvancementRecord `json:"advancement,omitempty"`
	Level           int                           `json:"level,omitempty"`
	Ability         string                        `json:"ability,omitempty"`
	Preparation     *SpellPreparation             `json:"preparation,omitempty"`
	Type            *ItemSubtype                  `json:"type,omitempty"`
}

// SpellPreparation describes how a granted spell is prepared
type SpellPreparation struct {
	Mode     string `json:"mode"`
	Prepared bool   `json:"prepared"`
}

// ItemSubtype is the type/subtype classification of feats and equipment
type ItemSubtype struct {
	Value   string `json:"value,omitempty"`
	Subtype string `json:"subtype,omitempty"`
}

// ItemFlags records where an item came from
type ItemFlags struct {
	SourceID          string `json:"sourceId,omitempty"`
	AdvancementOrigin string `json:"advancementOrigin,omitempty"`
}

// AdvancementRecord is the persisted form of one advancement
type AdvancementRecord struct {
	ID               string          `json:"_id"`
	Type             string          `json:"type"`
	Title            string          `json:"title,omitempty"`
	Icon             string          `json:"icon,omitempty"`
	Level            int             `json:"level,omitempty"`
	ClassRestriction string          `json:"classRestriction,omitempty"`
	Configuration    json.RawMessage `json:"configuration,omitempty"`
	Value            json.RawMessage `json:"value,omitempty"`
}

// Clone returns a deep copy of the record
func (r *AdvancementRecord) Clone() *AdvancementRecord {
	if r == nil {
		return nil
	}
	out := *r
	if r.Configuration != nil {
		out.Configuration = append(json.RawMessage(nil), r.Configuration...)
	}
	if r.Value != nil {
		out.Value = append(json.RawMessage(nil), r.Value...)
	}
	return &out
}

// Clone returns a deep copy of the item
func (i *Item) Clone() (*Item, error) {
	data, err := json.Marshal(i)
	if err != nil {
		return nil, err
	}
	var out Item
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HitDieFaces parses system.hitDice ("d8") into its face count
func (i *Item) HitDieFaces() (int, error) {
	raw := strings.TrimSpace(i.System.HitDice)
	if !strings.HasPrefix(raw, "d") {
		return 0, fmt.Errorf("invalid hit die %q", raw)
	}
	faces, err := strconv.Atoi(raw[1:])
	if err != nil || faces <= 0 {
		return 0, fmt.Errorf("invalid hit die %q", raw)
	}
	return faces, nil
}

// OriginKey is the value stamped into flags.advancementOrigin for items
// granted by advancementID on this item.
func (i *Item) OriginKey(advancementID string) string {
	return i.ID + "." + advancementID
}
