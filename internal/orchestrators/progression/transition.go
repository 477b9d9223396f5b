package progression

import (
	"context"
	"encoding/json"
	"log/slog"
	"slices"
	"sort"

	"github.com/KirkDiggler/rpg-toolkit/events"

	"github.com/KirkDiggler/rpg-progression/internal/actor"
	"github.com/KirkDiggler/rpg-progression/internal/advancement"
	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
	characterrepo "github.com/KirkDiggler/rpg-progression/internal/repositories/character"
	snapshotrepo "github.com/KirkDiggler/rpg-progression/internal/repositories/snapshot"
	"github.com/KirkDiggler/rpg-progression/internal/services/progression"
)

// transition is one staged level change. Nothing is persisted until commit.
type transition struct {
	original *dnd5e.Character
	actor    *actor.Actor

	classID    string
	classLevel int
	steps      []progression.Step

	payloads map[string]json.RawMessage
	consumed map[string]bool
	dryRun   bool

	usedSnapshots []snapshotrepo.Key
	retained      []snapshotrepo.PutInput
	events        []pendingEvent
}

type pendingEvent struct {
	eventType string
	item      *advancement.Item
	step      progression.Step
}

type levelUpRequest struct {
	characterID string
	classItemID string
	classUUID   string
	payloads    map[string]json.RawMessage
	dryRun      bool
}

func (o *Orchestrator) begin(ctx context.Context, characterID string) (*transition, error) {
	out, err := o.characterRepo.Get(ctx, characterrepo.GetInput{ID: characterID})
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get character %s", characterID)
	}

	a, err := actor.New(out.Character)
	if err != nil {
		return nil, err
	}
	return &transition{
		original: out.Character,
		actor:    a,
		consumed: make(map[string]bool),
	}, nil
}

func (o *Orchestrator) levelUp(ctx context.Context, req *levelUpRequest) (*transition, error) {
	vb := errors.NewValidationBuilder()
	if req.characterID == "" {
		vb.RequiredField("CharacterID")
	}
	if (req.classItemID == "") == (req.classUUID == "") {
		vb.InvalidField("ClassItemID", "exactly one of ClassItemID or ClassUUID is required")
	}
	if err := vb.Build(); err != nil {
		return nil, err
	}

	t, err := o.begin(ctx, req.characterID)
	if err != nil {
		return nil, err
	}
	t.payloads = req.payloads
	t.dryRun = req.dryRun

	if t.actor.Level() >= o.engine.MaxLevel() {
		return nil, errors.FailedPreconditionf("character is already level %d", t.actor.Level()).
			WithMeta("character_id", req.characterID)
	}

	classID, err := o.prepareClass(ctx, t, req)
	if err != nil {
		return nil, err
	}
	t.classID = classID
	t.classLevel = t.actor.Item(classID).System.Levels + 1

	if err := t.actor.UpdateItem(classID, "system.levels", t.classLevel); err != nil {
		return nil, err
	}
	if t.actor.OriginalClass() == "" {
		t.actor.SetOriginalClass(classID)
	}

	classItem, err := o.engine.NewItem(ctx, t.actor.Item(classID))
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load class %s", classID)
	}
	if err := o.applyLevel(ctx, t, classItem, t.classLevel); err != nil {
		return nil, err
	}

	// Subclasses are read after the class steps so one granted at this
	// level also applies its own advancements for the level.
	for _, data := range o.subclassesOf(t.actor, classItem.Identifier()) {
		item, err := o.engine.NewItem(ctx, data)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load subclass %s", data.ID)
		}
		if err := o.applyLevel(ctx, t, item, t.classLevel); err != nil {
			return nil, err
		}
	}

	for _, data := range originItems(t.actor) {
		item, err := o.engine.NewItem(ctx, data)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load %s %s", data.Type, data.ID)
		}
		for _, level := range characterLevels(t.actor.Level()) {
			if err := o.applyLevel(ctx, t, item, level); err != nil {
				return nil, err
			}
		}
	}

	for _, key := range sortedKeys(t.payloads) {
		if !t.consumed[key] {
			return nil, errors.InvalidArgumentf("payload %s does not match any step", key).WithMeta("key", key)
		}
	}
	return t, nil
}

// prepareClass returns the id of the class item gaining a level, creating
// it from ClassUUID when the character is taking a new class.
func (o *Orchestrator) prepareClass(ctx context.Context, t *transition, req *levelUpRequest) (string, error) {
	if req.classItemID != "" {
		data := t.actor.Item(req.classItemID)
		if data == nil {
			return "", errors.NotFoundf("item %s not found", req.classItemID).WithMeta("item_id", req.classItemID)
		}
		if data.Type != dnd5e.ItemTypeClass {
			return "", errors.InvalidArgumentf("item %s is a %s, not a class", data.ID, data.Type)
		}
		return data.ID, nil
	}

	source, err := o.resolver.Resolve(ctx, req.classUUID)
	if err != nil {
		return "", errors.Wrapf(err, "failed to resolve %s", req.classUUID)
	}
	if source == nil {
		return "", errors.NotFoundf("class %s could not be resolved", req.classUUID).WithMeta("uuid", req.classUUID)
	}
	if source.Type != dnd5e.ItemTypeClass {
		return "", errors.InvalidArgumentf("%s is a %s, not a class", req.classUUID, source.Type)
	}

	candidate, err := o.engine.NewItem(ctx, source)
	if err != nil {
		return "", errors.Wrapf(err, "failed to load class %s", req.classUUID)
	}
	for _, existing := range t.actor.Character().ItemsByType(dnd5e.ItemTypeClass) {
		loaded, err := o.engine.NewItem(ctx, existing)
		if err != nil {
			return "", errors.Wrapf(err, "failed to load class %s", existing.ID)
		}
		if loaded.Identifier() == candidate.Identifier() {
			return "", errors.AlreadyExistsf("character already has class %s", candidate.Identifier()).
				WithMeta("item_id", existing.ID)
		}
	}

	data, err := source.Clone()
	if err != nil {
		return "", errors.Wrap(err, "failed to copy class")
	}
	if data.ID == "" || t.actor.Item(data.ID) != nil {
		data.ID = o.ids.Generate()
	}
	data.System.Levels = 0
	if data.Flags.SourceID == "" {
		data.Flags.SourceID = req.classUUID
	}
	for _, rec := range data.System.Advancement {
		if rec != nil {
			rec.Value = nil
		}
	}

	if err := t.actor.CreateItems(data); err != nil {
		return "", err
	}

	slog.DebugContext(ctx, "staged new class",
		"character_id", t.original.ID,
		"class_item_id", data.ID,
		"uuid", req.classUUID)
	return data.ID, nil
}

func (o *Orchestrator) applyLevel(ctx context.Context, t *transition, item *advancement.Item, level int) error {
	original := item.IsOriginalClass(t.actor)

	for _, adv := range item.Advancements().ByLevel(level) {
		if !adv.AppliesToClass(original) {
			continue
		}

		step := newStep(item, adv, level)
		key := snapshotrepo.Key{
			CharacterID:   t.original.ID,
			ItemID:        item.ID(),
			AdvancementID: adv.ID(),
			Level:         level,
		}

		retained, err := o.retained(ctx, key)
		if err != nil {
			return err
		}

		var payload advancement.Payload
		if raw, ok := t.payloads[step.Key]; ok {
			t.consumed[step.Key] = true
			payload, err = o.engine.Registry().DecodePayload(adv.Type(), raw)
			if err != nil {
				return &advancement.AdvancementError{
					AdvancementID: adv.ID(),
					Type:          adv.Type(),
					Level:         level,
					Err:           errors.WrapWithCode(err, errors.CodeInvalidArgument, "invalid payload").WithMeta("key", step.Key),
				}
			}
		}

		eventType := EventAdvancementApplied
		switch {
		case payload != nil:
			step.Source = progression.SourcePayload
			err = adv.Apply(ctx, t.actor, level, payload, retained)
		case retained != nil:
			step.Source = progression.SourceSnapshot
			eventType = EventAdvancementRestored
			err = adv.Restore(ctx, t.actor, level, retained)
		default:
			auto, ok := adv.AutomaticApplicationValue(t.actor, level)
			if !ok {
				if !t.dryRun {
					return &advancement.AdvancementError{
						AdvancementID: adv.ID(),
						Type:          adv.Type(),
						Level:         level,
						Err: errors.FailedPreconditionf("input is required for %s", step.Key).
							WithMeta("key", step.Key),
					}
				}
				step.Source = progression.SourceRequired
				t.steps = append(t.steps, step)
				continue
			}
			step.Source = progression.SourceAutomatic
			err = adv.Apply(ctx, t.actor, level, auto, nil)
		}
		if err != nil {
			return err
		}

		if retained != nil {
			t.usedSnapshots = append(t.usedSnapshots, key)
		}
		t.steps = append(t.steps, step)
		t.events = append(t.events, pendingEvent{eventType: eventType, item: item, step: step})

		slog.DebugContext(ctx, "applied advancement",
			"character_id", t.original.ID,
			"key", step.Key,
			"type", step.Type,
			"source", step.Source)
	}
	return nil
}

// retained loads the snapshot an earlier level down kept for key. Unreadable
// snapshots are dropped with a warning.
func (o *Orchestrator) retained(ctx context.Context, key snapshotrepo.Key) (advancement.Snapshot, error) {
	out, err := o.snapshotRepo.Get(ctx, snapshotrepo.GetInput{Key: key})
	if err != nil {
		if errors.IsNotFound(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "failed to get snapshot")
	}

	snap, err := o.engine.Registry().DecodeSnapshot(out.Snapshot.Data)
	if err != nil {
		slog.WarnContext(ctx, "ignoring unreadable snapshot",
			"character_id", key.CharacterID,
			"item_id", key.ItemID,
			"advancement_id", key.AdvancementID,
			"level", key.Level,
			"error", err)
		return nil, nil
	}
	return snap, nil
}

func (o *Orchestrator) levelDown(ctx context.Context, input *progression.LevelDownInput) (*transition, error) {
	vb := errors.NewValidationBuilder()
	if input.CharacterID == "" {
		vb.RequiredField("CharacterID")
	}
	if input.ClassItemID == "" {
		vb.RequiredField("ClassItemID")
	}
	if err := vb.Build(); err != nil {
		return nil, err
	}

	t, err := o.begin(ctx, input.CharacterID)
	if err != nil {
		return nil, err
	}

	data := t.actor.Item(input.ClassItemID)
	if data == nil {
		return nil, errors.NotFoundf("item %s not found", input.ClassItemID).WithMeta("item_id", input.ClassItemID)
	}
	if data.Type != dnd5e.ItemTypeClass {
		return nil, errors.InvalidArgumentf("item %s is a %s, not a class", data.ID, data.Type)
	}
	level := data.System.Levels
	if level < 1 {
		return nil, errors.FailedPreconditionf("class %s has no levels to remove", data.ID)
	}
	t.classID = data.ID

	origins := originItems(t.actor)
	slices.Reverse(origins)
	levels := characterLevels(t.actor.Level())
	slices.Reverse(levels)
	for _, originData := range origins {
		item, err := o.engine.NewItem(ctx, originData)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load %s %s", originData.Type, originData.ID)
		}
		for _, l := range levels {
			if err := o.reverseLevel(ctx, t, item, l); err != nil {
				return nil, err
			}
		}
	}

	classItem, err := o.engine.NewItem(ctx, data)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to load class %s", data.ID)
	}

	subclasses := o.subclassesOf(t.actor, classItem.Identifier())
	slices.Reverse(subclasses)
	for _, subData := range subclasses {
		item, err := o.engine.NewItem(ctx, subData)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to load subclass %s", subData.ID)
		}
		if err := o.reverseLevel(ctx, t, item, level); err != nil {
			return nil, err
		}
	}

	if err := o.reverseLevel(ctx, t, classItem, level); err != nil {
		return nil, err
	}

	t.classLevel = level - 1
	if t.classLevel == 0 {
		t.actor.DeleteItems(t.classID)
		if t.actor.OriginalClass() == t.classID {
			t.actor.SetOriginalClass("")
		}
		return t, nil
	}
	if err := t.actor.UpdateItem(t.classID, "system.levels", t.classLevel); err != nil {
		return nil, err
	}
	return t, nil
}

func (o *Orchestrator) reverseLevel(ctx context.Context, t *transition, item *advancement.Item, level int) error {
	original := item.IsOriginalClass(t.actor)

	advs := slices.Clone(item.Advancements().ByLevel(level))
	slices.Reverse(advs)
	for _, adv := range advs {
		if !adv.AppliesToClass(original) {
			continue
		}

		step := newStep(item, adv, level)
		snap, err := adv.Reverse(ctx, t.actor, level)
		if err != nil {
			return err
		}
		if snap != nil {
			data, err := o.engine.Registry().EncodeSnapshot(snap)
			if err != nil {
				return errors.Wrapf(err, "failed to encode snapshot for %s", step.Key)
			}
			step.Source = progression.SourceSnapshot
			t.retained = append(t.retained, snapshotrepo.PutInput{
				Key: snapshotrepo.Key{
					CharacterID:   t.original.ID,
					ItemID:        item.ID(),
					AdvancementID: adv.ID(),
					Level:         level,
				},
				Data: data,
			})
		}

		t.steps = append(t.steps, step)
		t.events = append(t.events, pendingEvent{eventType: EventAdvancementReversed, item: item, step: step})

		slog.DebugContext(ctx, "reversed advancement",
			"character_id", t.original.ID,
			"key", step.Key,
			"type", step.Type,
			"retained", snap != nil)
	}
	return nil
}

// commit persists the staged character and then settles snapshots and
// events. Failures after the character write are logged, not returned.
func (o *Orchestrator) commit(ctx context.Context, t *transition) (*dnd5e.Character, error) {
	updated, err := t.original.Clone()
	if err != nil {
		return nil, errors.Wrap(err, "failed to copy character")
	}
	if err := t.actor.Patch().ApplyTo(updated); err != nil {
		return nil, errors.Wrap(err, "failed to apply staged changes")
	}

	// Retained snapshots are written first. If the character write then
	// fails they sit under keys the next level down overwrites.
	for _, put := range t.retained {
		if _, err := o.snapshotRepo.Put(ctx, put); err != nil {
			return nil, errors.Wrap(err, "failed to retain snapshot")
		}
	}

	out, err := o.characterRepo.Update(ctx, characterrepo.UpdateInput{
		Character:         updated,
		ExpectedUpdatedAt: t.original.UpdatedAt,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to save character")
	}

	if len(t.usedSnapshots) > 0 {
		if _, err := o.snapshotRepo.Delete(ctx, snapshotrepo.DeleteInput{Keys: t.usedSnapshots}); err != nil {
			slog.WarnContext(ctx, "failed to delete replayed snapshots",
				"character_id", out.Character.ID,
				"count", len(t.usedSnapshots),
				"error", err)
		}
	}

	o.publish(ctx, t)
	return out.Character, nil
}

func (o *Orchestrator) publish(ctx context.Context, t *transition) {
	for _, pending := range t.events {
		event := events.NewGameEvent(pending.eventType, t.actor, pending.item)
		event.Context().Set("key", pending.step.Key)
		event.Context().Set("advancement_id", pending.step.AdvancementID)
		event.Context().Set("advancement_type", pending.step.Type)
		event.Context().Set("level", pending.step.Level)
		event.Context().Set("source", pending.step.Source)
		event.Context().Set("class_item_id", t.classID)

		if err := o.eventBus.Publish(ctx, event); err != nil {
			slog.WarnContext(ctx, "failed to publish advancement event",
				"event_type", pending.eventType,
				"key", pending.step.Key,
				"error", err)
		}
	}
}

func (o *Orchestrator) subclassesOf(a *actor.Actor, classIdentifier string) []*dnd5e.Item {
	var out []*dnd5e.Item
	for _, item := range a.Character().ItemsByType(dnd5e.ItemTypeSubclass) {
		if item.System.ClassIdentifier == classIdentifier {
			out = append(out, item)
		}
	}
	return out
}

// originItems returns the race and background items, race first
func originItems(a *actor.Actor) []*dnd5e.Item {
	out := a.Character().ItemsByType(dnd5e.ItemTypeRace)
	return append(out, a.Character().ItemsByType(dnd5e.ItemTypeBackground)...)
}

// characterLevels lists the levels race and background advancements run at
// for a character level. Level zero advancements run with the first level.
func characterLevels(level int) []int {
	if level == 1 {
		return []int{0, 1}
	}
	return []int{level}
}

func newStep(item *advancement.Item, adv advancement.Advancement, level int) progression.Step {
	return progression.Step{
		Key:           progression.StepKey(item.ID(), adv.ID(), level),
		ItemID:        item.ID(),
		ItemName:      item.Name(),
		ItemType:      item.Type(),
		AdvancementID: adv.ID(),
		Type:          adv.Type(),
		Title:         adv.Title(),
		Level:         level,
	}
}

// sortedKeys keeps payload errors deterministic
func sortedKeys(m map[string]json.RawMessage) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
