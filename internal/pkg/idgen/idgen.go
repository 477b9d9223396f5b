// Package idgen provides ID generation for characters, items and advancements
package idgen

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sync/atomic"

	"github.com/google/uuid"
)

// DocumentIDLength is the length of ids handed to embedded documents
const DocumentIDLength = 16

const documentAlphabet = "abcdefghijklmnopqrstuvwxyzABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// Generator generates unique identifiers
type Generator interface {
	Generate() string
}

// DocumentGenerator generates fixed-length alphanumeric ids, the shape used
// for items and advancement records embedded in a character.
type DocumentGenerator struct {
	length int
}

// NewDocument creates a generator producing DocumentIDLength ids
func NewDocument() *DocumentGenerator {
	return &DocumentGenerator{length: DocumentIDLength}
}

// Generate creates a new random alphanumeric id
func (g *DocumentGenerator) Generate() string {
	max := big.NewInt(int64(len(documentAlphabet)))
	out := make([]byte, g.length)
	for i := range out {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			// crypto/rand failing means the system is unusable
			panic(fmt.Sprintf("crypto/rand failed: %v", err))
		}
		out[i] = documentAlphabet[n.Int64()]
	}
	return string(out)
}

// SequentialGenerator generates sequential IDs for testing
type SequentialGenerator struct {
	prefix  string
	counter uint64
}

// NewSequential creates a new sequential generator
func NewSequential(prefix string) *SequentialGenerator {
	return &SequentialGenerator{prefix: prefix}
}

// Generate creates a new sequential ID
func (g *SequentialGenerator) Generate() string {
	n := atomic.AddUint64(&g.counter, 1)
	if g.prefix != "" {
		return fmt.Sprintf("%s_%d", g.prefix, n)
	}
	return fmt.Sprintf("%d", n)
}

// UUIDGenerator generates UUIDs with optional prefix
type UUIDGenerator struct {
	prefix string
}

// NewUUID creates a new UUID generator with optional prefix
func NewUUID(prefix string) *UUIDGenerator {
	return &UUIDGenerator{prefix: prefix}
}

// Generate creates a new UUID-based ID
func (g *UUIDGenerator) Generate() string {
	id := uuid.New().String()
	if g.prefix != "" {
		return fmt.Sprintf("%s_%s", g.prefix, id)
	}
	return id
}
