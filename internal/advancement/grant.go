package advancement

import (
	"context"
	"log/slog"

	"github.com/KirkDiggler/rpg-progression/internal/actor"
	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
)

// SpellConfig is stamped onto spells granted by an advancement
type SpellConfig struct {
	Ability     string `json:"ability,omitempty"`
	Preparation string `json:"preparation,omitempty"`
}

// lookup resolves uuid, logging and returning nil when nothing is found
func (b *Base) lookup(ctx context.Context, uuid string) (*dnd5e.Item, error) {
	item, err := b.engine.resolve(ctx, uuid)
	if err != nil {
		return nil, err
	}
	if item == nil {
		slog.WarnContext(ctx, "advancement source did not resolve",
			"advancement_id", b.id,
			"item_id", b.item.ID(),
			"uuid", uuid)
	}
	return item, nil
}

// grantItem turns source data into an embedded item stamped with where it
// came from. Retained items keep their id unless the actor already has it.
func (b *Base) grantItem(a *actor.Actor, source *dnd5e.Item, uuid string, retained bool, spell *SpellConfig) (*dnd5e.Item, error) {
	granted, err := source.Clone()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to copy %s", uuid)
	}
	if !retained || granted.ID == "" || a.Item(granted.ID) != nil {
		granted.ID = b.engine.ids.Generate()
	}
	granted.Flags.SourceID = uuid
	granted.Flags.AdvancementOrigin = b.item.data.OriginKey(b.id)

	if spell != nil && granted.Type == dnd5e.ItemTypeSpell {
		if spell.Ability != "" {
			granted.System.Ability = spell.Ability
		}
		if spell.Preparation != "" {
			granted.System.Preparation = &dnd5e.SpellPreparation{Mode: spell.Preparation, Prepared: true}
		}
	}
	return granted, nil
}

// removeGranted deletes the granted item ids from the actor and returns
// their data keyed by source uuid.
func removeGranted(a *actor.Actor, added map[string]string) map[string]*dnd5e.Item {
	ids := make([]string, 0, len(added))
	for id := range added {
		ids = append(ids, id)
	}

	out := make(map[string]*dnd5e.Item, len(ids))
	for _, item := range a.DeleteItems(ids...) {
		out[added[item.ID]] = item
	}
	return out
}
