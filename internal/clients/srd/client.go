// Package srd resolves "srd.<kind>.<key>" uuids against the D&D 5e SRD API
// and converts the results into item documents with advancements attached.
package srd

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	dnd5eapi "github.com/fadedpez/dnd5e-api/clients/dnd5e"

	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
	"github.com/KirkDiggler/rpg-progression/internal/resolver"
)

// UUIDPrefix begins every SRD uuid
const UUIDPrefix = "srd."

// Kinds of SRD documents
const (
	KindClass     = "class"
	KindRace      = "race"
	KindSpell     = "spell"
	KindFeature   = "feature"
	KindEquipment = "equipment"
)

// Config contains configuration options for the SRD client
type Config struct {
	// BaseURL for the D&D 5e API (optional, defaults to https://www.dnd5eapi.co/api/2014/)
	BaseURL string
	// HTTPTimeout for API requests (optional, defaults to 30 seconds)
	HTTPTimeout time.Duration
	// CacheTTL for the cached client (optional, defaults to 24 hours)
	CacheTTL time.Duration
	// API replaces the HTTP client, mainly for tests
	API API
}

// Validate validates the Config and sets defaults if not provided
func (cfg *Config) Validate() error {
	if cfg == nil {
		return errors.InvalidArgument("config cannot be nil")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.dnd5eapi.co/api/2014/"
	}
	if cfg.HTTPTimeout == 0 {
		cfg.HTTPTimeout = 30 * time.Second
	}
	if cfg.CacheTTL == 0 {
		cfg.CacheTTL = 24 * time.Hour
	}
	return errors.ValidateRange("HTTPTimeout", int(cfg.HTTPTimeout/time.Second), 1, 300)
}

// Client resolves SRD documents
type Client struct {
	api API
}

var _ resolver.Resolver = (*Client)(nil)

// New creates a new SRD client
func New(cfg *Config) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.API != nil {
		return &Client{api: cfg.API}, nil
	}

	baseClient, err := dnd5eapi.NewDND5eAPI(&dnd5eapi.DND5eAPIConfig{
		Client:  &http.Client{Timeout: cfg.HTTPTimeout},
		BaseURL: cfg.BaseURL,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create D&D 5e API client")
	}

	return &Client{api: dnd5eapi.NewCachedClient(baseClient, cfg.CacheTTL)}, nil
}

// UUID builds the uuid of an SRD document
func UUID(kind, key string) string {
	return UUIDPrefix + kind + "." + key
}

// Resolve implements resolver.Resolver. Uuids outside the srd namespace and
// unknown kinds resolve to nil.
func (c *Client) Resolve(ctx context.Context, uuid string) (*dnd5e.Item, error) {
	rest, ok := strings.CutPrefix(uuid, UUIDPrefix)
	if !ok {
		return nil, nil
	}
	kind, key, ok := strings.Cut(rest, ".")
	if !ok || key == "" {
		return nil, nil
	}

	slog.DebugContext(ctx, "resolving srd document", "kind", kind, "key", key)

	var (
		item *dnd5e.Item
		err  error
	)
	switch kind {
	case KindClass:
		item, err = c.class(key)
	case KindRace:
		item, err = c.race(key)
	case KindSpell:
		item, err = c.spell(key)
	case KindFeature:
		item, err = c.feature(key)
	case KindEquipment:
		item, err = c.equipment(key)
	default:
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeUnavailable, fmt.Sprintf("failed to get srd %s %s", kind, key)).
			WithMeta("uuid", uuid)
	}
	if item != nil {
		item.Flags.SourceID = uuid
	}
	return item, nil
}

func record(id, advType string, level int, config any) (*dnd5e.AdvancementRecord, error) {
	rec := &dnd5e.AdvancementRecord{ID: id, Type: advType, Level: level}
	if config != nil {
		raw, err := json.Marshal(config)
		if err != nil {
			return nil, err
		}
		rec.Configuration = raw
	}
	return rec, nil
}
