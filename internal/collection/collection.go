// Package collection keeps a live map of documents in step with the raw
// records they were built from.
//
// The raw source map is owned by the caller (typically a field on a parent
// document) and is written through on Set and Delete. Initialize reconciles
// the live map against that source: new ids are built, known ids are
// refreshed in place so outstanding references stay valid, and ids that
// disappeared are dropped. A record that fails to build is quarantined as
// invalid instead of failing the whole pass.
//
// A Collection is not safe for concurrent use.
package collection

import (
	"context"
	"log/slog"
	"sort"

	"github.com/KirkDiggler/rpg-progression/internal/errors"
)

// Config wires the document-specific behavior into a Collection
type Config[D any, R any] struct {
	// Name identifies the collection in logs and errors
	Name string
	// New builds a live document from a raw record
	New func(ctx context.Context, id string, raw R) (D, error)
	// Refresh re-initializes an existing document from its raw record.
	// Returning replace=true asks the collection to rebuild it with New.
	Refresh func(ctx context.Context, doc D, raw R) (replace bool, err error)
	// Invalid builds a placeholder for a quarantined record. Optional.
	Invalid func(id string, raw R, cause error) D
	// TypeOf returns the type tag used by ByType
	TypeOf func(doc D) string
}

// Validate validates the config
func (c *Config[D, R]) Validate() error {
	vb := errors.NewValidationBuilder()
	if c.Name == "" {
		vb.RequiredField("Name")
	}
	if c.New == nil {
		vb.RequiredField("New")
	}
	if c.Refresh == nil {
		vb.RequiredField("Refresh")
	}
	if c.TypeOf == nil {
		vb.RequiredField("TypeOf")
	}
	return vb.Build()
}

// GetOptions controls Get
type GetOptions struct {
	// Invalid returns a placeholder for a quarantined id instead of nothing
	Invalid bool
	// Strict turns an unknown id into a NotFound error
	Strict bool
}

// WriteOptions controls Set and Delete
type WriteOptions struct {
	// SkipSource leaves the raw source map untouched
	SkipSource bool
}

// Collection is an ordered, id-keyed set of live documents mirroring a raw
// source map.
type Collection[D any, R any] struct {
	cfg     Config[D, R]
	source  map[string]R
	live    map[string]D
	order   []string
	invalid map[string]error

	byType       map[string][]D
	onInvalidate []func()
}

// New creates an empty collection
func New[D any, R any](cfg Config[D, R]) (*Collection[D, R], error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &Collection[D, R]{
		cfg:     cfg,
		source:  make(map[string]R),
		live:    make(map[string]D),
		invalid: make(map[string]error),
	}, nil
}

// Name returns the collection name
func (c *Collection[D, R]) Name() string {
	return c.cfg.Name
}

// Source returns the raw source map
func (c *Collection[D, R]) Source() map[string]R {
	return c.source
}

// OnInvalidate registers fn to run whenever derived caches are dropped
func (c *Collection[D, R]) OnInvalidate(fn func()) {
	c.onInvalidate = append(c.onInvalidate, fn)
}

// Initialize reconciles the live documents against source. A nil source is
// treated as empty.
func (c *Collection[D, R]) Initialize(ctx context.Context, source map[string]R) {
	if source == nil {
		source = make(map[string]R)
	}
	c.source = source

	var added []string
	for id := range source {
		if _, known := c.live[id]; !known {
			added = append(added, id)
		}
	}
	sort.Strings(added)

	kept := c.order[:0]
	for _, id := range c.order {
		if _, ok := source[id]; ok {
			kept = append(kept, id)
		}
	}
	c.order = append(kept, added...)

	for id := range c.live {
		if _, ok := source[id]; !ok {
			delete(c.live, id)
		}
	}
	c.invalid = make(map[string]error)

	valid := c.order[:0]
	for _, id := range c.order {
		if err := c.sync(ctx, id, source[id]); err != nil {
			slog.WarnContext(ctx, "quarantined invalid record",
				"collection", c.cfg.Name,
				"id", id,
				"error", err)
			c.invalid[id] = err
			delete(c.live, id)
			continue
		}
		valid = append(valid, id)
	}
	c.order = valid

	c.invalidate()
}

func (c *Collection[D, R]) sync(ctx context.Context, id string, raw R) error {
	if doc, ok := c.live[id]; ok {
		replace, err := c.cfg.Refresh(ctx, doc, raw)
		if err != nil {
			return err
		}
		if !replace {
			return nil
		}
	}

	doc, err := c.cfg.New(ctx, id, raw)
	if err != nil {
		return err
	}
	c.live[id] = doc
	return nil
}

// Get returns the document with id. Without Strict an unknown id yields the
// zero document and no error.
func (c *Collection[D, R]) Get(id string, opts GetOptions) (D, error) {
	if doc, ok := c.live[id]; ok {
		return doc, nil
	}

	var zero D
	if cause, ok := c.invalid[id]; ok && opts.Invalid && c.cfg.Invalid != nil {
		return c.cfg.Invalid(id, c.source[id], cause), nil
	}
	if opts.Strict {
		return zero, errors.NotFoundf("%s %s not found", c.cfg.Name, id).
			WithMeta("collection", c.cfg.Name).
			WithMeta("id", id)
	}
	return zero, nil
}

// Has reports whether id is a live document
func (c *Collection[D, R]) Has(id string) bool {
	_, ok := c.live[id]
	return ok
}

// Len returns the number of live documents
func (c *Collection[D, R]) Len() int {
	return len(c.order)
}

// IDs returns live ids in collection order
func (c *Collection[D, R]) IDs() []string {
	return append([]string(nil), c.order...)
}

// Values returns live documents in collection order. Invalid records are
// never included.
func (c *Collection[D, R]) Values() []D {
	out := make([]D, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.live[id])
	}
	return out
}

// InvalidIDs returns the quarantined ids, sorted
func (c *Collection[D, R]) InvalidIDs() []string {
	ids := make([]string, 0, len(c.invalid))
	for id := range c.invalid {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// InvalidCause returns why id was quarantined
func (c *Collection[D, R]) InvalidCause(id string) (error, bool) {
	cause, ok := c.invalid[id]
	return cause, ok
}

// Set stores doc under id, writing raw through to the source map unless
// told not to.
func (c *Collection[D, R]) Set(id string, doc D, raw R, opts WriteOptions) {
	if _, ok := c.live[id]; !ok {
		c.order = append(c.order, id)
	}
	c.live[id] = doc
	delete(c.invalid, id)
	if !opts.SkipSource {
		c.source[id] = raw
	}
	c.invalidate()
}

// Delete removes id, also from the source map unless told not to
func (c *Collection[D, R]) Delete(id string, opts WriteOptions) {
	if _, ok := c.live[id]; ok {
		delete(c.live, id)
		for i, existing := range c.order {
			if existing == id {
				c.order = append(c.order[:i], c.order[i+1:]...)
				break
			}
		}
	}
	delete(c.invalid, id)
	if !opts.SkipSource {
		delete(c.source, id)
	}
	c.invalidate()
}

// ByType groups live documents by type tag, in collection order
func (c *Collection[D, R]) ByType() map[string][]D {
	if c.byType != nil {
		return c.byType
	}

	grouped := make(map[string][]D)
	for _, id := range c.order {
		doc := c.live[id]
		t := c.cfg.TypeOf(doc)
		grouped[t] = append(grouped[t], doc)
	}
	c.byType = grouped
	return grouped
}

// OfType returns live documents with the given type tag
func (c *Collection[D, R]) OfType(t string) []D {
	return c.ByType()[t]
}

func (c *Collection[D, R]) invalidate() {
	c.byType = nil
	for _, fn := range c.onInvalidate {
		fn()
	}
}
