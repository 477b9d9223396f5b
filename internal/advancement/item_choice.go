package advancement

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/KirkDiggler/rpg-progression/internal/actor"
	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
)

// ItemChoiceLevel is how many items may be picked at one level
type ItemChoiceLevel struct {
	Count       int  `json:"count"`
	Replacement bool `json:"replacement,omitempty"`
}

// PoolEntry is an item the player may pick
type PoolEntry struct {
	UUID string `json:"uuid"`
}

// ItemRestriction narrows which items may be picked
type ItemRestriction struct {
	// Type matches system.type.value, e.g. a feat category
	Type    string `json:"type,omitempty"`
	Subtype string `json:"subtype,omitempty"`
	// Level matches the spell level of spell choices
	Level *int `json:"level,omitempty"`
}

// ItemChoiceConfig is the authored configuration
type ItemChoiceConfig struct {
	Choices map[int]ItemChoiceLevel `json:"choices"`
	Pool    []PoolEntry             `json:"pool,omitempty"`
	// AllowDrops permits picks from outside the pool
	AllowDrops  bool            `json:"allowDrops,omitempty"`
	Type        string          `json:"type,omitempty"`
	Restriction ItemRestriction `json:"restriction,omitempty"`
	Spell       *SpellConfig    `json:"spell,omitempty"`
}

// ItemChoiceValue maps each level to the item ids picked there and their
// source uuids.
type ItemChoiceValue struct {
	Added map[int]map[string]string `json:"added,omitempty"`
}

// ItemChoicePayload lists the uuids picked at one level
type ItemChoicePayload struct {
	Selected []string `json:"selected"`
}

// AdvancementType implements Payload
func (*ItemChoicePayload) AdvancementType() string { return TypeItemChoice }

// ItemChoiceSnapshot holds the items picked at one level keyed by uuid
type ItemChoiceSnapshot struct {
	Level int                    `json:"level"`
	Items map[string]*dnd5e.Item `json:"items"`
}

// AdvancementType implements Snapshot
func (*ItemChoiceSnapshot) AdvancementType() string { return TypeItemChoice }

// ItemChoice lets the player pick items from a pool at configured levels
type ItemChoice struct {
	Base
	config ItemChoiceConfig
	value  ItemChoiceValue
}

func (c *ItemChoice) load(rec *dnd5e.AdvancementRecord) error {
	var config ItemChoiceConfig
	if err := decode(rec.Configuration, &config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	for level, choice := range config.Choices {
		if level < 0 {
			return fmt.Errorf("choice at negative level %d", level)
		}
		if choice.Count < 0 {
			return fmt.Errorf("negative choice count at level %d", level)
		}
	}
	for _, entry := range config.Pool {
		if entry.UUID == "" {
			return fmt.Errorf("pool entry without uuid")
		}
	}

	value := ItemChoiceValue{}
	if err := decode(rec.Value, &value); err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}
	if value.Added == nil {
		value.Added = make(map[int]map[string]string)
	}

	c.config = config
	c.value = value
	return nil
}

// Record implements Advancement
func (c *ItemChoice) Record() (*dnd5e.AdvancementRecord, error) {
	return c.record(c.config, c.value)
}

// Config returns the configuration
func (c *ItemChoice) Config() ItemChoiceConfig { return c.config }

// Value returns the picks made so far
func (c *ItemChoice) Value() ItemChoiceValue { return c.value }

// Levels returns the levels with something to pick
func (c *ItemChoice) Levels() []int {
	levels := make([]int, 0, len(c.config.Choices))
	for level, choice := range c.config.Choices {
		if choice.Count > 0 {
			levels = append(levels, level)
		}
	}
	sort.Ints(levels)
	return levels
}

// Count returns how many items may be picked at level
func (c *ItemChoice) Count(level int) int {
	return c.config.Choices[level].Count
}

// ConfiguredForLevel reports whether picks were made at level
func (c *ItemChoice) ConfiguredForLevel(level int) bool {
	if c.Count(level) == 0 {
		return true
	}
	_, ok := c.value.Added[level]
	return ok
}

// ChosenElsewhere reports whether uuid was picked at a level other than level
func (c *ItemChoice) ChosenElsewhere(uuid string, level int) bool {
	for l, added := range c.value.Added {
		if l == level {
			continue
		}
		for _, source := range added {
			if source == uuid {
				return true
			}
		}
	}
	return false
}

func (c *ItemChoice) inPool(uuid string) bool {
	for _, entry := range c.config.Pool {
		if entry.UUID == uuid {
			return true
		}
	}
	return false
}

// validateSelection checks the picks for level before anything resolves
func (c *ItemChoice) validateSelection(level int, selected []string) *errors.Error {
	count := c.Count(level)
	if len(selected) > count {
		return errors.InvalidArgumentf("selected %d items but only %d may be chosen at level %d", len(selected), count, level).
			WithMeta("count", count)
	}

	seen := make(map[string]bool, len(selected))
	for _, uuid := range selected {
		if seen[uuid] {
			return errors.InvalidArgumentf("%s selected more than once", uuid).WithMeta("uuid", uuid)
		}
		seen[uuid] = true
		if !c.config.AllowDrops && !c.inPool(uuid) {
			return errors.InvalidArgumentf("%s is not in the choice pool", uuid).WithMeta("uuid", uuid)
		}
		if c.ChosenElsewhere(uuid, level) {
			return errors.InvalidArgumentf("%s was already chosen at another level", uuid).WithMeta("uuid", uuid)
		}
	}
	return nil
}

// validateItem checks a resolved pick against the type restrictions
func (c *ItemChoice) validateItem(uuid string, item *dnd5e.Item) *errors.Error {
	if c.config.Type != "" && item.Type != c.config.Type {
		return errors.InvalidArgumentf("%s is a %s, expected %s", uuid, item.Type, c.config.Type).WithMeta("uuid", uuid)
	}

	r := c.config.Restriction
	if r.Type != "" || r.Subtype != "" {
		var value, subtype string
		if item.System.Type != nil {
			value, subtype = item.System.Type.Value, item.System.Type.Subtype
		}
		if r.Type != "" && value != r.Type {
			return errors.InvalidArgumentf("%s does not match type %s", uuid, r.Type).WithMeta("uuid", uuid)
		}
		if r.Subtype != "" && subtype != r.Subtype {
			return errors.InvalidArgumentf("%s does not match subtype %s", uuid, r.Subtype).WithMeta("uuid", uuid)
		}
	}
	if r.Level != nil && item.Type == dnd5e.ItemTypeSpell && item.System.Level != *r.Level {
		return errors.InvalidArgumentf("%s is a level %d spell, expected level %d", uuid, item.System.Level, *r.Level).
			WithMeta("uuid", uuid)
	}
	return nil
}

// Apply implements Advancement
func (c *ItemChoice) Apply(ctx context.Context, a *actor.Actor, level int, payload Payload, retained Snapshot) error {
	var selected []string
	switch p := payload.(type) {
	case *ItemChoicePayload:
		selected = p.Selected
	case nil:
		if snap, ok := retained.(*ItemChoiceSnapshot); ok {
			return c.Restore(ctx, a, level, snap)
		}
		return c.fail(level, errors.FailedPrecondition("item selection is required"))
	default:
		return c.fail(level, errors.InvalidArgumentf("unexpected payload %s", payload.AdvancementType()))
	}

	if err := c.validateSelection(level, selected); err != nil {
		return c.fail(level, err)
	}

	var snap *ItemChoiceSnapshot
	if s, ok := retained.(*ItemChoiceSnapshot); ok && s.Level == level {
		snap = s
	}

	type pick struct {
		uuid   string
		source *dnd5e.Item
		keepID bool
	}
	picks := make([]pick, 0, len(selected))
	for _, uuid := range selected {
		if snap != nil && snap.Items[uuid] != nil {
			picks = append(picks, pick{uuid: uuid, source: snap.Items[uuid], keepID: true})
			continue
		}
		resolved, err := c.lookup(ctx, uuid)
		if err != nil {
			return err
		}
		if resolved == nil {
			slog.WarnContext(ctx, "skipping unresolved choice", "advancement_id", c.id, "uuid", uuid, "level", level)
			continue
		}
		if err := c.validateItem(uuid, resolved); err != nil {
			return c.fail(level, err)
		}
		picks = append(picks, pick{uuid: uuid, source: resolved})
	}
	if len(picks) == 0 && len(selected) > 0 {
		return nil
	}

	if _, applied := c.value.Added[level]; applied {
		if _, err := c.Reverse(ctx, a, level); err != nil {
			return err
		}
	}

	added := make(map[string]string, len(picks))
	items := make([]*dnd5e.Item, 0, len(picks))
	for _, p := range picks {
		granted, err := c.grantItem(a, p.source, p.uuid, p.keepID, c.config.Spell)
		if err != nil {
			return err
		}
		items = append(items, granted)
		added[granted.ID] = p.uuid
	}

	if err := a.CreateItems(items...); err != nil {
		return err
	}
	c.value.Added[level] = added
	return c.persist(a, c.value)
}

// Restore re-adds the items picked at level with their data unchanged
func (c *ItemChoice) Restore(ctx context.Context, a *actor.Actor, level int, retained Snapshot) error {
	snap, ok := retained.(*ItemChoiceSnapshot)
	if !ok {
		return c.fail(level, errors.FailedPrecondition("item choice snapshot is required"))
	}

	if _, applied := c.value.Added[level]; applied {
		if _, err := c.Reverse(ctx, a, level); err != nil {
			return err
		}
	}

	uuids := make([]string, 0, len(snap.Items))
	for uuid := range snap.Items {
		uuids = append(uuids, uuid)
	}
	sort.Strings(uuids)

	added := make(map[string]string, len(uuids))
	items := make([]*dnd5e.Item, 0, len(uuids))
	for _, uuid := range uuids {
		granted, err := c.grantItem(a, snap.Items[uuid], uuid, true, nil)
		if err != nil {
			return err
		}
		items = append(items, granted)
		added[granted.ID] = uuid
	}

	if err := a.CreateItems(items...); err != nil {
		return err
	}
	c.value.Added[level] = added
	return c.persist(a, c.value)
}

// Reverse removes the items picked at level
func (c *ItemChoice) Reverse(_ context.Context, a *actor.Actor, level int) (Snapshot, error) {
	added, ok := c.value.Added[level]
	if !ok {
		return nil, nil
	}

	snap := &ItemChoiceSnapshot{Level: level, Items: removeGranted(a, added)}
	delete(c.value.Added, level)
	if err := c.persist(a, c.value); err != nil {
		return nil, err
	}
	return snap, nil
}
