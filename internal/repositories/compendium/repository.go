// Package compendium stores world compendium items that advancements grant
// by uuid.
//
// Items are addressed as "compendium.<pack>.<id>".
package compendium

//go:generate mockgen -destination=mock/mock_repository.go -package=compendiummock github.com/KirkDiggler/rpg-progression/internal/repositories/compendium Repository

import (
	"context"
	"strings"

	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
)

// UUIDPrefix begins every compendium uuid
const UUIDPrefix = "compendium."

// UUID builds the uuid of an item in pack
func UUID(pack, itemID string) string {
	return UUIDPrefix + pack + "." + itemID
}

// ParseUUID splits a compendium uuid into pack and item id
func ParseUUID(uuid string) (pack, itemID string, err error) {
	rest, ok := strings.CutPrefix(uuid, UUIDPrefix)
	if !ok {
		return "", "", errors.InvalidArgumentf("%q is not a compendium uuid", uuid)
	}
	pack, itemID, ok = strings.Cut(rest, ".")
	if !ok || pack == "" || itemID == "" {
		return "", "", errors.InvalidArgumentf("%q is not a compendium uuid", uuid)
	}
	return pack, itemID, nil
}

// Entry is a stored compendium item
type Entry struct {
	UUID string
	Pack string
	Item *dnd5e.Item
}

// PutInput contains the items to store in a pack
type PutInput struct {
	Pack  string
	Items []*dnd5e.Item
}

// PutOutput contains the uuids written
type PutOutput struct {
	UUIDs []string
}

// GetInput contains the uuid to look up
type GetInput struct {
	UUID string
}

// GetOutput contains the stored entry
type GetOutput struct {
	Entry *Entry
}

// ListInput filters a listing. Empty fields match everything.
type ListInput struct {
	Pack string
	Type string
}

// ListOutput contains matching entries ordered by uuid
type ListOutput struct {
	Entries []*Entry
}

// DeleteInput contains the uuid to remove
type DeleteInput struct {
	UUID string
}

// DeleteOutput is empty
type DeleteOutput struct{}

// Repository defines compendium storage operations
type Repository interface {
	// Put inserts or replaces items in a pack
	Put(ctx context.Context, input PutInput) (*PutOutput, error)

	// Get returns errors.NotFound for unknown uuids
	Get(ctx context.Context, input GetInput) (*GetOutput, error)

	List(ctx context.Context, input ListInput) (*ListOutput, error)

	// Delete returns errors.NotFound for unknown uuids
	Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error)
}
