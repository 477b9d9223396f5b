// Package resolver looks up item documents by uuid for the advancement engine
package resolver

//go:generate mockgen -destination=mock/mock_resolver.go -package=resolvermock github.com/KirkDiggler/rpg-progression/internal/resolver Resolver

import (
	"context"
	"log/slog"
	"strings"

	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
)

// Resolver turns a uuid into item data. An unknown uuid resolves to nil
// with no error; errors are reserved for lookups that could not be made.
type Resolver interface {
	Resolve(ctx context.Context, uuid string) (*dnd5e.Item, error)
}

// Func adapts a function to a Resolver
type Func func(ctx context.Context, uuid string) (*dnd5e.Item, error)

// Resolve implements Resolver
func (f Func) Resolve(ctx context.Context, uuid string) (*dnd5e.Item, error) {
	return f(ctx, uuid)
}

// Chain asks each resolver in turn and returns the first hit
type Chain []Resolver

// Resolve implements Resolver. A failing resolver is logged and skipped so
// one unavailable source does not hide the others.
func (c Chain) Resolve(ctx context.Context, uuid string) (*dnd5e.Item, error) {
	var firstErr error
	for _, r := range c {
		item, err := r.Resolve(ctx, uuid)
		if err != nil {
			slog.WarnContext(ctx, "resolver failed", "uuid", uuid, "error", err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		if item != nil {
			return item, nil
		}
	}
	return nil, firstErr
}

// Prefixed routes uuids beginning with Prefix to Resolver and resolves
// everything else to nil.
type Prefixed struct {
	Prefix   string
	Resolver Resolver
}

// Resolve implements Resolver
func (p *Prefixed) Resolve(ctx context.Context, uuid string) (*dnd5e.Item, error) {
	if !strings.HasPrefix(uuid, p.Prefix) {
		return nil, nil
	}
	return p.Resolver.Resolve(ctx, uuid)
}
