// Package advancement models what a class, subclass, race or background
// grants a character as it gains levels, and how those grants are applied,
// reversed and replayed.
//
// Each grant rule is an Advancement owned by an Item. Advancements share one
// lifecycle:
//
//	Apply(ctx, actor, level, payload, retained)  stage the grant and record it
//	Reverse(ctx, actor, level) (Snapshot, error) undo it, returning what was granted
//	Restore(ctx, actor, level, snapshot)         replay a reversed grant verbatim
//
// Every lifecycle call mutates an *actor.Actor, never the stored character.
// The caller commits the actor's patch once per level transition, so a
// failing step can be abandoned by discarding the actor.
//
// Variants are selected from the persisted type tag through a Registry that
// is handed to the Engine at construction:
//
//	engine, err := advancement.New(&advancement.Config{
//	    Registry:    advancement.NewRegistry(),
//	    Resolver:    compendium,
//	    Roller:      dice.DefaultRoller,
//	    IDGenerator: idgen.NewDocument(),
//	})
//	item, err := engine.NewItem(ctx, classItem)
//	for _, adv := range item.Advancements().ByLevel(4) {
//	    ...
//	}
//
// Records that fail to decode are quarantined by the item's collection and
// reported through InvalidIDs rather than failing the item.
package advancement
