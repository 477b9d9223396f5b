// Package snapshot stores the data a reversed advancement hands back so a
// later level up can restore it without prompting again.
package snapshot

//go:generate mockgen -destination=mock/mock_repository.go -package=snapshotmock github.com/KirkDiggler/rpg-progression/internal/repositories/snapshot Repository

import (
	"context"
	"time"
)

// Key identifies one retained snapshot
type Key struct {
	CharacterID   string
	ItemID        string
	AdvancementID string
	Level         int
}

// Snapshot is an encoded advancement snapshot with its storage metadata
type Snapshot struct {
	Key Key

	// Data is the type-tagged envelope produced by the advancement registry
	Data []byte

	CreatedAt time.Time
	ExpiresAt time.Time
}

// PutInput contains parameters for storing a snapshot
type PutInput struct {
	Key  Key
	Data []byte
	TTL  time.Duration // zero uses the repository default
}

// PutOutput contains the stored snapshot
type PutOutput struct {
	Snapshot *Snapshot
}

// GetInput contains parameters for retrieving a snapshot
type GetInput struct {
	Key Key
}

// GetOutput contains the retrieved snapshot
type GetOutput struct {
	Snapshot *Snapshot
}

// DeleteInput contains parameters for deleting snapshots
type DeleteInput struct {
	Keys []Key
}

// DeleteOutput contains the number of snapshots removed
type DeleteOutput struct {
	Deleted int
}

// ListByCharacterInput contains parameters for listing a character's snapshots
type ListByCharacterInput struct {
	CharacterID string
}

// ListByCharacterOutput contains the live snapshots of a character
type ListByCharacterOutput struct {
	Snapshots []*Snapshot
}

// Repository defines snapshot storage operations
type Repository interface {
	// Put stores a snapshot, replacing any existing one under the same key
	Put(ctx context.Context, input PutInput) (*PutOutput, error)

	// Get retrieves a snapshot. Returns errors.NotFound when absent or expired.
	Get(ctx context.Context, input GetInput) (*GetOutput, error)

	// Delete removes snapshots. Missing keys are ignored.
	Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error)

	// ListByCharacter returns every unexpired snapshot of a character
	ListByCharacter(ctx context.Context, input ListByCharacterInput) (*ListByCharacterOutput, error)
}
