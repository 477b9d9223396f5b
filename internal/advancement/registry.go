package advancement

import (
	"encoding/json"
	"sort"

	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
)

// Definition describes one advancement type
type Definition struct {
	Type  string
	Order int
	Title string
	Icon  string
	Hint  string
	// MultiLevel types derive their levels from configuration or value
	MultiLevel bool
	// Singleton types allow at most one instance per item
	Singleton bool
	// ItemTypes lists the item types that may own this advancement
	ItemTypes []string

	build       func(b Base) Advancement
	newPayload  func() Payload
	newSnapshot func() Snapshot
}

// AllowsItemType reports whether an item of itemType may own this type
func (d *Definition) AllowsItemType(itemType string) bool {
	for _, t := range d.ItemTypes {
		if t == itemType {
			return true
		}
	}
	return false
}

// Registry maps type tags to definitions
type Registry struct {
	defs map[string]*Definition
}

var progressionItems = []string{
	dnd5e.ItemTypeClass,
	dnd5e.ItemTypeSubclass,
	dnd5e.ItemTypeRace,
	dnd5e.ItemTypeBackground,
}

// NewRegistry returns a registry holding every built-in advancement type
func NewRegistry() *Registry {
	r := &Registry{defs: make(map[string]*Definition)}
	for _, def := range []*Definition{
		{
			Type:        TypeHitPoints,
			Order:       OrderHitPoints,
			Title:       "Hit Points",
			Icon:        "icons/hit-points.svg",
			Hint:        "Track hit points gained at each class level.",
			MultiLevel:  true,
			Singleton:   true,
			ItemTypes:   []string{dnd5e.ItemTypeClass},
			build:       func(b Base) Advancement { return &HitPoints{Base: b} },
			newPayload:  func() Payload { return &HitPointsPayload{} },
			newSnapshot: func() Snapshot { return &HitPointsSnapshot{} },
		},
		{
			Type:        TypeAbilityScoreImprovement,
			Order:       OrderAbilityScoreImprovement,
			Title:       "Ability Score Improvement",
			Icon:        "icons/ability-score-improvement.svg",
			Hint:        "Increase ability scores or take a feat.",
			ItemTypes:   []string{dnd5e.ItemTypeClass, dnd5e.ItemTypeRace, dnd5e.ItemTypeBackground, dnd5e.ItemTypeFeat},
			build:       func(b Base) Advancement { return &AbilityScoreImprovement{Base: b} },
			newPayload:  func() Payload { return &AbilityScoreImprovementPayload{} },
			newSnapshot: func() Snapshot { return &AbilityScoreImprovementSnapshot{} },
		},
		{
			Type:        TypeSize,
			Order:       OrderSize,
			Title:       "Size",
			Icon:        "icons/size.svg",
			Hint:        "Set the character's size.",
			Singleton:   true,
			ItemTypes:   []string{dnd5e.ItemTypeRace},
			build:       func(b Base) Advancement { return &Size{Base: b} },
			newPayload:  func() Payload { return &SizePayload{} },
			newSnapshot: func() Snapshot { return &SizeSnapshot{} },
		},
		{
			Type:        TypeTrait,
			Order:       OrderTrait,
			Title:       "Traits",
			Icon:        "icons/trait.svg",
			Hint:        "Grant proficiencies, languages, resistances or immunities.",
			ItemTypes:   progressionItems,
			build:       func(b Base) Advancement { return &Trait{Base: b} },
			newPayload:  func() Payload { return &TraitPayload{} },
			newSnapshot: func() Snapshot { return &TraitSnapshot{} },
		},
		{
			Type:        TypeItemGrant,
			Order:       OrderItemGrant,
			Title:       "Grant Items",
			Icon:        "icons/item-grant.svg",
			Hint:        "Grant specific items at a level.",
			ItemTypes:   progressionItems,
			build:       func(b Base) Advancement { return &ItemGrant{Base: b} },
			newPayload:  func() Payload { return &ItemGrantPayload{} },
			newSnapshot: func() Snapshot { return &ItemGrantSnapshot{} },
		},
		{
			Type:        TypeItemChoice,
			Order:       OrderItemChoice,
			Title:       "Choose Items",
			Icon:        "icons/item-choice.svg",
			Hint:        "Let the player choose items from a pool.",
			MultiLevel:  true,
			ItemTypes:   progressionItems,
			build:       func(b Base) Advancement { return &ItemChoice{Base: b} },
			newPayload:  func() Payload { return &ItemChoicePayload{} },
			newSnapshot: func() Snapshot { return &ItemChoiceSnapshot{} },
		},
		{
			Type:        TypeScaleValue,
			Order:       OrderScaleValue,
			Title:       "Scale Value",
			Icon:        "icons/scale-value.svg",
			Hint:        "Expose a value that changes with level.",
			MultiLevel:  true,
			ItemTypes:   progressionItems,
			build:       func(b Base) Advancement { return &ScaleValue{Base: b} },
			newPayload:  func() Payload { return &ScaleValuePayload{} },
			newSnapshot: func() Snapshot { return &ScaleValueSnapshot{} },
		},
		{
			Type:        TypeSubclass,
			Order:       OrderSubclass,
			Title:       "Subclass",
			Icon:        "icons/subclass.svg",
			Hint:        "Choose a subclass.",
			Singleton:   true,
			ItemTypes:   []string{dnd5e.ItemTypeClass},
			build:       func(b Base) Advancement { return &Subclass{Base: b} },
			newPayload:  func() Payload { return &SubclassPayload{} },
			newSnapshot: func() Snapshot { return &SubclassSnapshot{} },
		},
	} {
		r.defs[def.Type] = def
	}
	return r
}

// Get returns the definition for a type tag
func (r *Registry) Get(advType string) (*Definition, bool) {
	def, ok := r.defs[advType]
	return def, ok
}

// Types returns the registered type tags, sorted
func (r *Registry) Types() []string {
	out := make([]string, 0, len(r.defs))
	for t := range r.defs {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// DecodePayload decodes player input for an advancement type
func (r *Registry) DecodePayload(advType string, raw []byte) (Payload, error) {
	def, ok := r.defs[advType]
	if !ok {
		return nil, errors.InvalidArgumentf("unknown advancement type %s", advType).WithMeta("type", advType)
	}
	payload := def.newPayload()
	if err := decode(raw, payload); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeInvalidArgument, "invalid payload").WithMeta("type", advType)
	}
	return payload, nil
}

type snapshotEnvelope struct {
	Type string          `json:"type"`
	Data json.RawMessage `json:"data"`
}

// EncodeSnapshot serializes a snapshot with its type tag
func (r *Registry) EncodeSnapshot(s Snapshot) ([]byte, error) {
	if s == nil {
		return nil, errors.InvalidArgument("snapshot is required")
	}
	data, err := json.Marshal(s)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode snapshot")
	}
	return json.Marshal(snapshotEnvelope{Type: s.AdvancementType(), Data: data})
}

// DecodeSnapshot reverses EncodeSnapshot
func (r *Registry) DecodeSnapshot(raw []byte) (Snapshot, error) {
	var env snapshotEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeDataLoss, "invalid snapshot envelope")
	}
	def, ok := r.defs[env.Type]
	if !ok {
		return nil, errors.InvalidArgumentf("unknown snapshot type %s", env.Type).WithMeta("type", env.Type)
	}
	snap := def.newSnapshot()
	if err := decode(env.Data, snap); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeDataLoss, "invalid snapshot data").WithMeta("type", env.Type)
	}
	return snap, nil
}
