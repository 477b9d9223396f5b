package actor

import (
	"encoding/json"
	"fmt"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
)

// Assignment sets a dotted path on the character document
type Assignment struct {
	Path  string `json:"path"`
	Value any    `json:"value"`
}

// ItemUpdate sets a dotted path on one embedded item
type ItemUpdate struct {
	ItemID string `json:"itemId"`
	Path   string `json:"path"`
	Value  any    `json:"value"`
}

// Patch is the pending character update produced by a level transition.
// It is applied in a fixed order: deletions, creations, item updates and
// then character assignments.
type Patch struct {
	Set         []Assignment  `json:"set,omitempty"`
	Create      []*dnd5e.Item `json:"create,omitempty"`
	Delete      []string      `json:"delete,omitempty"`
	ItemUpdates []ItemUpdate  `json:"itemUpdates,omitempty"`
}

// IsEmpty reports whether the patch changes nothing
func (p *Patch) IsEmpty() bool {
	return len(p.Set) == 0 && len(p.Create) == 0 && len(p.Delete) == 0 && len(p.ItemUpdates) == 0
}

// Value returns the staged value for path, if any
func (p *Patch) Value(path string) (any, bool) {
	for _, a := range p.Set {
		if a.Path == path {
			return a.Value, true
		}
	}
	return nil, false
}

func (p *Patch) assign(path string, value any) {
	for i := range p.Set {
		if p.Set[i].Path == path {
			p.Set[i].Value = value
			return
		}
	}
	p.Set = append(p.Set, Assignment{Path: path, Value: value})
}

func (p *Patch) updateItem(itemID, path string, value any) {
	for i := range p.ItemUpdates {
		if p.ItemUpdates[i].ItemID == itemID && p.ItemUpdates[i].Path == path {
			p.ItemUpdates[i].Value = value
			return
		}
	}
	p.ItemUpdates = append(p.ItemUpdates, ItemUpdate{ItemID: itemID, Path: path, Value: value})
}

func (p *Patch) dropItem(itemID string) (wasCreated bool) {
	updates := p.ItemUpdates[:0]
	for _, u := range p.ItemUpdates {
		if u.ItemID != itemID {
			updates = append(updates, u)
		}
	}
	p.ItemUpdates = updates

	for i, item := range p.Create {
		if item.ID == itemID {
			p.Create = append(p.Create[:i], p.Create[i+1:]...)
			return true
		}
	}
	return false
}

func (p *Patch) markDeleted(itemID string) {
	for _, id := range p.Delete {
		if id == itemID {
			return
		}
	}
	p.Delete = append(p.Delete, itemID)
}

// ApplyTo commits the patch onto character in place
func (p *Patch) ApplyTo(character *dnd5e.Character) error {
	if character.Items == nil {
		character.Items = []*dnd5e.Item{}
	}

	data, err := json.Marshal(character)
	if err != nil {
		return errors.Wrap(err, "failed to encode character")
	}

	for _, id := range p.Delete {
		idx := itemIndex(data, id)
		if idx < 0 {
			return errors.NotFoundf("item %s not found", id).WithMeta("item_id", id)
		}
		data, err = sjson.DeleteBytes(data, fmt.Sprintf("items.%d", idx))
		if err != nil {
			return errors.Wrapf(err, "failed to delete item %s", id)
		}
	}

	for _, item := range p.Create {
		raw, err := json.Marshal(item)
		if err != nil {
			return errors.Wrapf(err, "failed to encode item %s", item.ID)
		}
		data, err = sjson.SetRawBytes(data, "items.-1", raw)
		if err != nil {
			return errors.Wrapf(err, "failed to create item %s", item.ID)
		}
	}

	for _, u := range p.ItemUpdates {
		idx := itemIndex(data, u.ItemID)
		if idx < 0 {
			return errors.NotFoundf("item %s not found", u.ItemID).WithMeta("item_id", u.ItemID)
		}
		data, err = setPath(data, fmt.Sprintf("items.%d.%s", idx, u.Path), u.Value)
		if err != nil {
			return errors.Wrapf(err, "failed to update item %s", u.ItemID)
		}
	}

	for _, a := range p.Set {
		data, err = setPath(data, a.Path, a.Value)
		if err != nil {
			return errors.Wrapf(err, "failed to set %s", a.Path)
		}
	}

	var updated dnd5e.Character
	if err := json.Unmarshal(data, &updated); err != nil {
		return errors.Wrap(err, "failed to decode patched character")
	}
	*character = updated
	return nil
}

func setPath(data []byte, path string, value any) ([]byte, error) {
	if raw, ok := value.(json.RawMessage); ok {
		if raw == nil {
			return sjson.DeleteBytes(data, path)
		}
		return sjson.SetRawBytes(data, path, raw)
	}
	return sjson.SetBytes(data, path, value)
}

func itemIndex(data []byte, id string) int {
	for i, v := range gjson.GetBytes(data, "items.#._id").Array() {
		if v.String() == id {
			return i
		}
	}
	return -1
}
