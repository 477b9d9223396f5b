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

// GrantEntry is one item an ItemGrant may hand out
type GrantEntry struct {
	UUID     string `json:"uuid"`
	Optional bool   `json:"optional,omitempty"`
}

// ItemGrantConfig is the authored configuration
type ItemGrantConfig struct {
	Items []GrantEntry `json:"items"`
	// Optional makes every entry optional
	Optional bool         `json:"optional,omitempty"`
	Spell    *SpellConfig `json:"spell,omitempty"`
}

// ItemGrantValue maps granted item ids to their source uuid
type ItemGrantValue struct {
	Added map[string]string `json:"added,omitempty"`
}

// ItemGrantPayload names the optional entries the player accepted. Required
// entries are always granted.
type ItemGrantPayload struct {
	Selected []string `json:"selected,omitempty"`
}

// AdvancementType implements Payload
func (*ItemGrantPayload) AdvancementType() string { return TypeItemGrant }

// ItemGrantSnapshot holds the granted items keyed by source uuid
type ItemGrantSnapshot struct {
	Items map[string]*dnd5e.Item `json:"items"`
}

// AdvancementType implements Snapshot
func (*ItemGrantSnapshot) AdvancementType() string { return TypeItemGrant }

// ItemGrant adds fixed items at one level
type ItemGrant struct {
	Base
	config ItemGrantConfig
	value  ItemGrantValue
}

func (g *ItemGrant) load(rec *dnd5e.AdvancementRecord) error {
	var config ItemGrantConfig
	if err := decode(rec.Configuration, &config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	seen := make(map[string]bool, len(config.Items))
	for _, entry := range config.Items {
		if entry.UUID == "" {
			return fmt.Errorf("grant entry without uuid")
		}
		if seen[entry.UUID] {
			return fmt.Errorf("duplicate grant entry %s", entry.UUID)
		}
		seen[entry.UUID] = true
	}

	var value ItemGrantValue
	if err := decode(rec.Value, &value); err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}

	g.config = config
	g.value = value
	return nil
}

// Record implements Advancement
func (g *ItemGrant) Record() (*dnd5e.AdvancementRecord, error) {
	return g.record(g.config, g.value)
}

// Config returns the configuration
func (g *ItemGrant) Config() ItemGrantConfig { return g.config }

// Value returns the granted items
func (g *ItemGrant) Value() ItemGrantValue { return g.value }

// IsOptional reports whether the player may decline entry
func (g *ItemGrant) IsOptional(entry GrantEntry) bool {
	return g.config.Optional || entry.Optional
}

// ConfiguredForLevel reports whether anything was granted
func (g *ItemGrant) ConfiguredForLevel(int) bool {
	return len(g.value.Added) > 0
}

// AutomaticApplicationValue grants everything when nothing is optional
func (g *ItemGrant) AutomaticApplicationValue(*actor.Actor, int) (Payload, bool) {
	for _, entry := range g.config.Items {
		if g.IsOptional(entry) {
			return nil, false
		}
	}
	return &ItemGrantPayload{}, true
}

// Apply implements Advancement
func (g *ItemGrant) Apply(ctx context.Context, a *actor.Actor, level int, payload Payload, retained Snapshot) error {
	var selected []string
	switch p := payload.(type) {
	case *ItemGrantPayload:
		selected = p.Selected
	case nil:
		snap, ok := retained.(*ItemGrantSnapshot)
		if !ok {
			return g.fail(level, errors.FailedPrecondition("item selection is required"))
		}
		return g.Restore(ctx, a, level, snap)
	default:
		return g.fail(level, errors.InvalidArgumentf("unexpected payload %s", payload.AdvancementType()))
	}

	chosen := make(map[string]bool, len(selected))
	for _, uuid := range selected {
		chosen[uuid] = true
	}
	configured := make(map[string]bool, len(g.config.Items))
	for _, entry := range g.config.Items {
		configured[entry.UUID] = true
	}
	for _, uuid := range selected {
		if !configured[uuid] {
			return g.fail(level, errors.InvalidArgumentf("%s is not granted by this advancement", uuid).WithMeta("uuid", uuid))
		}
	}

	var snap *ItemGrantSnapshot
	if s, ok := retained.(*ItemGrantSnapshot); ok {
		snap = s
	}

	if len(g.value.Added) > 0 {
		if _, err := g.Reverse(ctx, a, level); err != nil {
			return err
		}
	}

	added := make(map[string]string)
	var items []*dnd5e.Item
	for _, entry := range g.config.Items {
		if g.IsOptional(entry) && !chosen[entry.UUID] {
			continue
		}

		var source *dnd5e.Item
		keepID := false
		if snap != nil && snap.Items[entry.UUID] != nil {
			source, keepID = snap.Items[entry.UUID], true
		} else {
			resolved, err := g.lookup(ctx, entry.UUID)
			if err != nil {
				return err
			}
			if resolved == nil {
				slog.WarnContext(ctx, "skipping unresolved grant", "advancement_id", g.id, "uuid", entry.UUID)
				continue
			}
			source = resolved
		}

		granted, err := g.grantItem(a, source, entry.UUID, keepID, g.config.Spell)
		if err != nil {
			return err
		}
		items = append(items, granted)
		added[granted.ID] = entry.UUID
	}

	if err := a.CreateItems(items...); err != nil {
		return err
	}
	g.value = ItemGrantValue{Added: added}
	return g.persist(a, g.value)
}

// Restore re-adds the retained items with their data unchanged
func (g *ItemGrant) Restore(ctx context.Context, a *actor.Actor, level int, retained Snapshot) error {
	snap, ok := retained.(*ItemGrantSnapshot)
	if !ok {
		return g.fail(level, errors.FailedPrecondition("item grant snapshot is required"))
	}

	if len(g.value.Added) > 0 {
		if _, err := g.Reverse(ctx, a, level); err != nil {
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
		granted, err := g.grantItem(a, snap.Items[uuid], uuid, true, nil)
		if err != nil {
			return err
		}
		items = append(items, granted)
		added[granted.ID] = uuid
	}

	if err := a.CreateItems(items...); err != nil {
		return err
	}
	g.value = ItemGrantValue{Added: added}
	return g.persist(a, g.value)
}

// Reverse implements Advancement
func (g *ItemGrant) Reverse(_ context.Context, a *actor.Actor, _ int) (Snapshot, error) {
	if len(g.value.Added) == 0 {
		return nil, nil
	}

	snap := &ItemGrantSnapshot{Items: removeGranted(a, g.value.Added)}
	g.value = ItemGrantValue{}
	if err := g.persist(a, g.value); err != nil {
		return nil, err
	}
	return snap, nil
}
