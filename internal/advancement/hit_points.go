package advancement

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/KirkDiggler/rpg-progression/internal/actor"
	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
)

// Hit point value modes
const (
	HitPointsAverage = "avg"
	HitPointsMax     = "max"
	HitPointsRoll    = "roll"
)

// HitPointsValue is the hit die result chosen for one level: a number, or
// one of the "avg", "max" or "roll" modes. "roll" is only valid as input;
// the rolled number is what gets recorded.
type HitPointsValue struct {
	Mode   string
	Amount int
}

// MarshalJSON writes modes as strings and amounts as numbers
func (v HitPointsValue) MarshalJSON() ([]byte, error) {
	if v.Mode != "" {
		return json.Marshal(v.Mode)
	}
	return json.Marshal(v.Amount)
}

// UnmarshalJSON accepts either form
func (v *HitPointsValue) UnmarshalJSON(data []byte) error {
	var mode string
	if err := json.Unmarshal(data, &mode); err == nil {
		switch mode {
		case HitPointsAverage, HitPointsMax, HitPointsRoll:
			*v = HitPointsValue{Mode: mode}
			return nil
		}
		return fmt.Errorf("unknown hit point mode %q", mode)
	}

	var amount int
	if err := json.Unmarshal(data, &amount); err != nil {
		return fmt.Errorf("hit point value must be a number or mode: %w", err)
	}
	*v = HitPointsValue{Amount: amount}
	return nil
}

// HitPointsPayload is the player's hit die choice for a level
type HitPointsPayload struct {
	Value HitPointsValue `json:"value"`
}

// AdvancementType implements Payload
func (*HitPointsPayload) AdvancementType() string { return TypeHitPoints }

// HitPointsSnapshot is the value a reversed level held
type HitPointsSnapshot struct {
	Level int            `json:"level"`
	Value HitPointsValue `json:"value"`
}

// AdvancementType implements Snapshot
func (*HitPointsSnapshot) AdvancementType() string { return TypeHitPoints }

// HitPoints adds hit points at every class level
type HitPoints struct {
	Base
	values map[int]HitPointsValue
}

func (h *HitPoints) load(rec *dnd5e.AdvancementRecord) error {
	values := make(map[int]HitPointsValue)
	if err := decode(rec.Value, &values); err != nil {
		return fmt.Errorf("invalid hit point values: %w", err)
	}
	for level, v := range values {
		if v.Mode == HitPointsRoll {
			return fmt.Errorf("level %d records an unrolled value", level)
		}
	}
	h.values = values
	return nil
}

// Record implements Advancement
func (h *HitPoints) Record() (*dnd5e.AdvancementRecord, error) {
	return h.record(nil, h.values)
}

// Levels returns every class level
func (h *HitPoints) Levels() []int {
	levels := make([]int, h.engine.maxLevel)
	for i := range levels {
		levels[i] = i + 1
	}
	return levels
}

// HitDie returns the owning class's hit die face count
func (h *HitPoints) HitDie() (int, error) {
	return h.item.data.HitDieFaces()
}

// Average returns the fixed per-level value for the hit die
func (h *HitPoints) Average() (int, error) {
	faces, err := h.HitDie()
	if err != nil {
		return 0, err
	}
	return faces/2 + 1, nil
}

// ValueForLevel returns the raw hit die result recorded at level
func (h *HitPoints) ValueForLevel(level int) (int, bool) {
	v, ok := h.values[level]
	if !ok {
		return 0, false
	}
	n, err := h.amount(v)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Total sums the recorded hit die results before modifiers
func (h *HitPoints) Total() int {
	total := 0
	for level := range h.values {
		n, _ := h.ValueForLevel(level)
		total += n
	}
	return total
}

// AdjustedTotal sums the recorded results with mod applied per level
func (h *HitPoints) AdjustedTotal(mod int) int {
	total := 0
	for level := range h.values {
		n, _ := h.ValueForLevel(level)
		total += max(n+mod, 1)
	}
	return total
}

// ConfiguredForLevel reports whether a value is recorded for level
func (h *HitPoints) ConfiguredForLevel(level int) bool {
	_, ok := h.values[level]
	return ok
}

// AutomaticApplicationValue takes the maximum at first level of the
// original class and keeps taking the average once the player chose it.
func (h *HitPoints) AutomaticApplicationValue(a *actor.Actor, level int) (Payload, bool) {
	if level == 1 && h.item.IsOriginalClass(a) {
		return &HitPointsPayload{Value: HitPointsValue{Mode: HitPointsMax}}, true
	}
	if prev, ok := h.values[level-1]; ok && prev.Mode == HitPointsAverage {
		return &HitPointsPayload{Value: HitPointsValue{Mode: HitPointsAverage}}, true
	}
	return nil, false
}

func (h *HitPoints) amount(v HitPointsValue) (int, error) {
	faces, err := h.HitDie()
	if err != nil {
		return 0, err
	}
	switch v.Mode {
	case HitPointsAverage:
		return faces/2 + 1, nil
	case HitPointsMax:
		return faces, nil
	case "":
		return v.Amount, nil
	}
	return 0, fmt.Errorf("hit point mode %q has no fixed amount", v.Mode)
}

func (h *HitPoints) applicable(a *actor.Actor, base int) int {
	return max(base+a.AbilityMod(h.engine.hitPointAbility), 1) + a.HitPoints().Bonuses.Level
}

// Apply implements Advancement
func (h *HitPoints) Apply(ctx context.Context, a *actor.Actor, level int, payload Payload, retained Snapshot) error {
	if level < 1 || level > h.engine.maxLevel {
		return h.fail(level, errors.InvalidArgumentf("level %d is outside 1-%d", level, h.engine.maxLevel))
	}

	var value HitPointsValue
	switch p := payload.(type) {
	case *HitPointsPayload:
		value = p.Value
	case nil:
		snap, ok := retained.(*HitPointsSnapshot)
		if !ok {
			return h.fail(level, errors.FailedPrecondition("hit point value is required"))
		}
		value = snap.Value
	default:
		return h.fail(level, errors.InvalidArgumentf("unexpected payload %s", payload.AdvancementType()))
	}

	faces, err := h.HitDie()
	if err != nil {
		return h.fail(level, errors.WrapWithCode(err, errors.CodeFailedPrecondition, "class has no usable hit die"))
	}

	if value.Mode == HitPointsRoll {
		rolled, err := h.engine.roller.Roll(faces)
		if err != nil {
			return errors.Wrap(err, "failed to roll hit die")
		}
		value = HitPointsValue{Amount: rolled}
	}
	if value.Mode == "" && (value.Amount < 1 || value.Amount > faces) {
		if value.Amount == 0 {
			return h.fail(level, errors.FailedPrecondition("hit point value is required"))
		}
		return h.fail(level, errors.InvalidArgumentf("hit die result %d is outside 1-%d", value.Amount, faces))
	}

	if _, applied := h.values[level]; applied {
		if _, err := h.Reverse(ctx, a, level); err != nil {
			return err
		}
	}

	base, err := h.amount(value)
	if err != nil {
		return h.fail(level, errors.WrapWithCode(err, errors.CodeInvalidArgument, "invalid hit point value"))
	}
	a.AdjustHitPoints(h.applicable(a, base))
	h.values[level] = value
	return h.persist(a, h.values)
}

// Restore implements Advancement
func (h *HitPoints) Restore(ctx context.Context, a *actor.Actor, level int, retained Snapshot) error {
	snap, ok := retained.(*HitPointsSnapshot)
	if !ok {
		return h.fail(level, errors.FailedPrecondition("hit point snapshot is required"))
	}
	return h.Apply(ctx, a, level, &HitPointsPayload{Value: snap.Value}, nil)
}

// Reverse implements Advancement. Nothing recorded at level yields a nil
// snapshot.
func (h *HitPoints) Reverse(_ context.Context, a *actor.Actor, level int) (Snapshot, error) {
	value, ok := h.values[level]
	if !ok {
		return nil, nil
	}

	base, err := h.amount(value)
	if err != nil {
		return nil, h.fail(level, errors.WrapWithCode(err, errors.CodeFailedPrecondition, "cannot compute recorded hit points"))
	}
	a.AdjustHitPoints(-h.applicable(a, base))
	delete(h.values, level)
	if err := h.persist(a, h.values); err != nil {
		return nil, err
	}
	return &HitPointsSnapshot{Level: level, Value: value}, nil
}
