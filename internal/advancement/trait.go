package advancement

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/KirkDiggler/rpg-progression/internal/actor"
	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
)

// Trait modes
const (
	TraitModeDefault         = "default"
	TraitModeExpertise       = "expertise"
	TraitModeForcedExpertise = "forcedExpertise"
	TraitModeUpgrade         = "upgrade"
)

// Trait key categories. Keys look like "skills:ath", "saves:str",
// "tools:art:alchemist" or "languages:standard:common"; the last segment
// is what lands on the character.
const (
	traitSkills    = "skills"
	traitTools     = "tools"
	traitSaves     = "saves"
	traitLanguages = "languages"
	traitWeapon    = "weapon"
	traitArmor     = "armor"
	traitDI        = "di"
	traitDR        = "dr"
	traitDV        = "dv"
	traitCI        = "ci"
)

// set-valued categories and the character trait each one writes
var traitSets = map[string]string{
	traitLanguages: "languages",
	traitWeapon:    "weaponProf",
	traitArmor:     "armorProf",
	traitDI:        "di",
	traitDR:        "dr",
	traitDV:        "dv",
	traitCI:        "ci",
}

type traitKey struct {
	raw      string
	category string
	leaf     string
}

func (k traitKey) proficiency() bool {
	_, set := traitSets[k.category]
	return !set
}

func parseTraitKey(raw string) (traitKey, error) {
	parts := strings.Split(raw, ":")
	if len(parts) < 2 || parts[len(parts)-1] == "" {
		return traitKey{}, fmt.Errorf("invalid trait key %q", raw)
	}
	k := traitKey{raw: raw, category: parts[0], leaf: parts[len(parts)-1]}

	switch k.category {
	case traitSkills:
		if k.leaf != "*" && !dnd5e.IsValidSkill(k.leaf) {
			return traitKey{}, fmt.Errorf("unknown skill in %q", raw)
		}
	case traitSaves:
		if k.leaf != "*" && !dnd5e.IsValidAbility(k.leaf) {
			return traitKey{}, fmt.Errorf("unknown ability in %q", raw)
		}
	case traitTools:
	default:
		if _, ok := traitSets[k.category]; !ok {
			return traitKey{}, fmt.Errorf("unknown trait category in %q", raw)
		}
	}
	return k, nil
}

// parseConcreteKey parses a key naming a single trait. Pool wildcards are
// only valid in choice pools.
func parseConcreteKey(raw string) (traitKey, error) {
	k, err := parseTraitKey(raw)
	if err != nil {
		return traitKey{}, err
	}
	if k.leaf == "*" {
		return traitKey{}, fmt.Errorf("%q is a pool pattern, not a trait", raw)
	}
	return k, nil
}

// traitPoolMatches reports whether key is allowed by a pool entry. Entries
// ending in ":*" match every key below that prefix.
func traitPoolMatches(pattern, key string) bool {
	if strings.HasSuffix(pattern, ":*") {
		return strings.HasPrefix(key, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == key
}

func contains(values []string, v string) bool {
	for _, s := range values {
		if s == v {
			return true
		}
	}
	return false
}

// TraitChoice lets the player pick count keys from pool
type TraitChoice struct {
	Count int      `json:"count"`
	Pool  []string `json:"pool"`
}

// TraitConfig is the authored configuration
type TraitConfig struct {
	Mode string `json:"mode,omitempty"`
	// AllowReplacements lets the player swap a grant they already have for
	// another key of the same category
	AllowReplacements bool          `json:"allowReplacements,omitempty"`
	Grants            []string      `json:"grants,omitempty"`
	Choices           []TraitChoice `json:"choices,omitempty"`
}

// TraitValue records the keys granted and what they replaced
type TraitValue struct {
	// Chosen is every key applied, grants included
	Chosen []string `json:"chosen,omitempty"`
	// Prior and Granted hold proficiency levels before and after apply
	Prior   map[string]float64 `json:"prior,omitempty"`
	Granted map[string]float64 `json:"granted,omitempty"`
	// Added lists set keys that were not present before apply
	Added []string `json:"added,omitempty"`
}

// TraitPayload is the keys the player picked
type TraitPayload struct {
	Chosen []string `json:"chosen,omitempty"`
}

// AdvancementType implements Payload
func (*TraitPayload) AdvancementType() string { return TypeTrait }

// TraitSnapshot is the player's picks at the time of reversal
type TraitSnapshot struct {
	Chosen []string `json:"chosen,omitempty"`
}

// AdvancementType implements Snapshot
func (*TraitSnapshot) AdvancementType() string { return TypeTrait }

// Trait grants proficiencies, languages, resistances and immunities
type Trait struct {
	Base
	config TraitConfig
	value  TraitValue
}

func (t *Trait) load(rec *dnd5e.AdvancementRecord) error {
	var config TraitConfig
	if err := decode(rec.Configuration, &config); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	switch config.Mode {
	case "":
		config.Mode = TraitModeDefault
	case TraitModeDefault, TraitModeExpertise, TraitModeForcedExpertise, TraitModeUpgrade:
	default:
		return fmt.Errorf("unknown trait mode %q", config.Mode)
	}
	for _, grant := range config.Grants {
		if _, err := parseConcreteKey(grant); err != nil {
			return err
		}
	}
	for i, choice := range config.Choices {
		if choice.Count < 0 {
			return fmt.Errorf("choice %d has a negative count", i)
		}
		for _, pattern := range choice.Pool {
			if _, err := parseTraitKey(pattern); err != nil {
				return err
			}
		}
	}

	var value TraitValue
	if err := decode(rec.Value, &value); err != nil {
		return fmt.Errorf("invalid value: %w", err)
	}

	t.config = config
	t.value = value
	return nil
}

// Record implements Advancement
func (t *Trait) Record() (*dnd5e.AdvancementRecord, error) {
	return t.record(t.config, t.value)
}

// Config returns the configuration
func (t *Trait) Config() TraitConfig { return t.config }

// Value returns what was applied
func (t *Trait) Value() TraitValue { return t.value }

func (t *Trait) choiceCount() int {
	n := 0
	for _, c := range t.config.Choices {
		n += c.Count
	}
	return n
}

// ConfiguredForLevel reports whether choices were made, or none are needed
func (t *Trait) ConfiguredForLevel(int) bool {
	if t.choiceCount() == 0 && !t.config.AllowReplacements {
		return true
	}
	return len(t.value.Chosen) > 0
}

// AutomaticApplicationValue applies the grants when nothing is chosen
func (t *Trait) AutomaticApplicationValue(*actor.Actor, int) (Payload, bool) {
	if t.choiceCount() > 0 || t.config.AllowReplacements {
		return nil, false
	}
	return &TraitPayload{}, true
}

func (t *Trait) isGrant(key string) bool {
	for _, g := range t.config.Grants {
		if g == key {
			return true
		}
	}
	return false
}

// has reports whether the actor already holds key at the level it grants
func (t *Trait) has(a *actor.Actor, k traitKey) bool {
	if !k.proficiency() {
		set, err := a.TraitSet(traitSets[k.category])
		if err != nil {
			return false
		}
		for _, v := range set {
			if v == k.leaf {
				return true
			}
		}
		return false
	}
	current := t.proficiencyOf(a, k)
	target, ok := t.target(k, current)
	return !ok || current >= target
}

// heldWithoutThis reports whether the actor would still hold key once this
// advancement's current value is reversed.
func (t *Trait) heldWithoutThis(a *actor.Actor, k traitKey) bool {
	if contains(t.value.Added, k.raw) {
		return false
	}
	if granted, ok := t.value.Granted[k.raw]; ok && t.proficiencyOf(a, k) == granted {
		prior := t.value.Prior[k.raw]
		target, ok := t.target(k, prior)
		return !ok || prior >= target
	}
	return t.has(a, k)
}

// validateChoices checks the picks against the pools and any replacements
func (t *Trait) validateChoices(a *actor.Actor, chosen []string) *errors.Error {
	remaining := make([]int, len(t.config.Choices))
	for i, c := range t.config.Choices {
		remaining[i] = c.Count
	}

	// grants the actor already holds may each be swapped for one pick of
	// the same category
	replaceable := make(map[string]int)
	if t.config.AllowReplacements {
		for _, g := range t.config.Grants {
			k, _ := parseTraitKey(g)
			if t.heldWithoutThis(a, k) {
				replaceable[k.category]++
			}
		}
	}

	seen := make(map[string]bool, len(chosen))
	for _, raw := range chosen {
		k, err := parseConcreteKey(raw)
		if err != nil {
			return errors.WrapWithCode(err, errors.CodeInvalidArgument, "invalid trait choice").WithMeta("key", raw)
		}
		if seen[raw] {
			return errors.InvalidArgumentf("%s chosen more than once", raw).WithMeta("key", raw)
		}
		seen[raw] = true
		if t.isGrant(raw) {
			return errors.InvalidArgumentf("%s is already granted", raw).WithMeta("key", raw)
		}

		matched := false
		for i, c := range t.config.Choices {
			if remaining[i] == 0 {
				continue
			}
			for _, pattern := range c.Pool {
				if traitPoolMatches(pattern, raw) {
					remaining[i]--
					matched = true
					break
				}
			}
			if matched {
				break
			}
		}
		if !matched && replaceable[k.category] > 0 {
			replaceable[k.category]--
			matched = true
		}
		if !matched {
			return errors.InvalidArgumentf("%s is not an available choice", raw).WithMeta("key", raw)
		}
	}
	return nil
}

func (t *Trait) proficiencyOf(a *actor.Actor, k traitKey) float64 {
	switch k.category {
	case traitSkills:
		return a.SkillProficiency(k.leaf)
	case traitSaves:
		return a.SaveProficiency(k.leaf)
	}
	return a.ToolProficiency(k.leaf)
}

func (t *Trait) setProficiency(a *actor.Actor, k traitKey, value float64) error {
	switch k.category {
	case traitSkills:
		a.SetSkillProficiency(k.leaf, value)
	case traitSaves:
		return a.SetSaveProficiency(k.leaf, value)
	default:
		a.SetToolProficiency(k.leaf, value)
	}
	return nil
}

// target returns the proficiency level the mode grants over current, or
// false when the mode grants nothing.
func (t *Trait) target(k traitKey, current float64) (float64, bool) {
	var target float64
	switch t.config.Mode {
	case TraitModeExpertise:
		if current == dnd5e.ProficiencyNone {
			return 0, false
		}
		target = dnd5e.ProficiencyExpert
	case TraitModeForcedExpertise:
		target = dnd5e.ProficiencyExpert
	case TraitModeUpgrade:
		if current < dnd5e.ProficiencyFull {
			target = dnd5e.ProficiencyFull
		} else {
			target = dnd5e.ProficiencyExpert
		}
	default:
		target = max(current, dnd5e.ProficiencyFull)
	}
	if k.category == traitSaves {
		target = min(target, dnd5e.ProficiencyFull)
	}
	return target, true
}

// Apply implements Advancement
func (t *Trait) Apply(ctx context.Context, a *actor.Actor, level int, payload Payload, retained Snapshot) error {
	var chosen []string
	switch p := payload.(type) {
	case *TraitPayload:
		chosen = p.Chosen
	case nil:
		snap, ok := retained.(*TraitSnapshot)
		if !ok {
			return t.fail(level, errors.FailedPrecondition("trait choices are required"))
		}
		chosen = snap.Chosen
	default:
		return t.fail(level, errors.InvalidArgumentf("unexpected payload %s", payload.AdvancementType()))
	}

	// a rejected pick leaves the previous application in place
	if err := t.validateChoices(a, chosen); err != nil {
		return t.fail(level, err)
	}
	if t.choiceCount() > 0 && len(chosen) == 0 {
		return t.fail(level, errors.FailedPrecondition("trait choices are required"))
	}

	if len(t.value.Chosen) > 0 {
		if _, err := t.Reverse(ctx, a, level); err != nil {
			return err
		}
	}

	keys := make([]string, 0, len(t.config.Grants)+len(chosen))
	keys = append(keys, t.config.Grants...)
	keys = append(keys, chosen...)
	sort.Strings(keys)

	value := TraitValue{
		Chosen:  keys,
		Prior:   make(map[string]float64),
		Granted: make(map[string]float64),
	}
	additions := make(map[string][]string)
	for _, raw := range keys {
		k, err := parseTraitKey(raw)
		if err != nil {
			return t.fail(level, errors.WrapWithCode(err, errors.CodeInvalidArgument, "invalid trait key"))
		}

		if !k.proficiency() {
			trait := traitSets[k.category]
			if !t.has(a, k) && !contains(additions[trait], k.leaf) {
				additions[trait] = append(additions[trait], k.leaf)
				value.Added = append(value.Added, raw)
			}
			continue
		}

		current := t.proficiencyOf(a, k)
		target, ok := t.target(k, current)
		if !ok || target == current {
			continue
		}
		if err := t.setProficiency(a, k, target); err != nil {
			return t.fail(level, errors.WrapWithCode(err, errors.CodeFailedPrecondition, "cannot grant "+raw))
		}
		value.Prior[raw] = current
		value.Granted[raw] = target
	}

	for trait, leaves := range additions {
		current, err := a.TraitSet(trait)
		if err != nil {
			return err
		}
		if err := a.SetTraitSet(trait, append(current, leaves...)); err != nil {
			return err
		}
	}

	t.value = value
	return t.persist(a, t.value)
}

// Restore implements Advancement
func (t *Trait) Restore(ctx context.Context, a *actor.Actor, level int, retained Snapshot) error {
	if _, ok := retained.(*TraitSnapshot); !ok {
		return t.fail(level, errors.FailedPrecondition("trait snapshot is required"))
	}
	return t.Apply(ctx, a, level, nil, retained)
}

// Reverse undoes the grants. A proficiency is only put back when it still
// holds the level this advancement set.
func (t *Trait) Reverse(_ context.Context, a *actor.Actor, level int) (Snapshot, error) {
	if len(t.value.Chosen) == 0 {
		return nil, nil
	}

	for raw, granted := range t.value.Granted {
		k, err := parseTraitKey(raw)
		if err != nil {
			continue
		}
		if t.proficiencyOf(a, k) != granted {
			continue
		}
		if err := t.setProficiency(a, k, t.value.Prior[raw]); err != nil {
			return nil, t.fail(level, errors.WrapWithCode(err, errors.CodeFailedPrecondition, "cannot reverse "+raw))
		}
	}

	removals := make(map[string]map[string]bool)
	for _, raw := range t.value.Added {
		k, err := parseTraitKey(raw)
		if err != nil {
			continue
		}
		trait := traitSets[k.category]
		if removals[trait] == nil {
			removals[trait] = make(map[string]bool)
		}
		removals[trait][k.leaf] = true
	}
	for trait, drop := range removals {
		current, err := a.TraitSet(trait)
		if err != nil {
			return nil, err
		}
		kept := current[:0]
		for _, v := range current {
			if !drop[v] {
				kept = append(kept, v)
			}
		}
		if err := a.SetTraitSet(trait, kept); err != nil {
			return nil, err
		}
	}

	snap := &TraitSnapshot{}
	for _, raw := range t.value.Chosen {
		if !t.isGrant(raw) {
			snap.Chosen = append(snap.Chosen, raw)
		}
	}

	t.value = TraitValue{}
	if err := t.persist(a, t.value); err != nil {
		return nil, err
	}
	return snap, nil
}
