package snapshot

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	redis "github.com/redis/go-redis/v9"

	"github.com/KirkDiggler/rpg-progression/internal/errors"
	"github.com/KirkDiggler/rpg-progression/internal/pkg/clock"
	redisclient "github.com/KirkDiggler/rpg-progression/internal/redis"
)

const (
	// Key pattern: snapshot:{character_id}:{item_id}:{advancement_id}:{level}
	snapshotKeyPrefix = "snapshot:"
	// Index pattern: snapshot:character:{character_id}
	characterIndexPrefix = "snapshot:character:"

	// DefaultTTL is how long a reversed grant stays restorable
	DefaultTTL = 24 * time.Hour

	errCharacterIDEmpty = "character ID cannot be empty"
)

// Config holds the configuration for the Redis repository
type Config struct {
	Client redisclient.Client
	Clock  clock.Clock
	// TTL overrides DefaultTTL
	TTL time.Duration
}

// Validate ensures all required dependencies are provided
func (c *Config) Validate() error {
	if c == nil {
		return errors.InvalidArgument("config cannot be nil")
	}
	vb := errors.NewValidationBuilder()
	if c.Client == nil {
		vb.RequiredField("Client")
	}
	if c.Clock == nil {
		vb.RequiredField("Clock")
	}
	if c.TTL < 0 {
		vb.InvalidField("TTL", "cannot be negative")
	}
	return vb.Build()
}

type redisRepository struct {
	client redisclient.Client
	clock  clock.Clock
	ttl    time.Duration
}

// NewRedisRepository creates a new Redis repository for snapshots
func NewRedisRepository(cfg *Config) (Repository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, errors.Wrap(err, "invalid config")
	}

	ttl := cfg.TTL
	if ttl == 0 {
		ttl = DefaultTTL
	}

	return &redisRepository{
		client: cfg.Client,
		clock:  cfg.Clock,
		ttl:    ttl,
	}, nil
}

// Ensure redisRepository implements Repository
var _ Repository = (*redisRepository)(nil)

func validateKey(k Key) error {
	vb := errors.NewValidationBuilder()
	if k.CharacterID == "" {
		vb.RequiredField("CharacterID")
	}
	if k.ItemID == "" {
		vb.RequiredField("ItemID")
	}
	if k.AdvancementID == "" {
		vb.RequiredField("AdvancementID")
	}
	if k.Level < 0 {
		vb.InvalidField("Level", "cannot be negative")
	}
	return vb.Build()
}

// Put stores a snapshot with the requested TTL
func (r *redisRepository) Put(ctx context.Context, input PutInput) (*PutOutput, error) {
	if err := validateKey(input.Key); err != nil {
		return nil, err
	}
	if len(input.Data) == 0 {
		return nil, errors.InvalidArgument("snapshot data cannot be empty")
	}

	ttl := input.TTL
	if ttl == 0 {
		ttl = r.ttl
	}
	now := r.clock.Now()

	snap := &Snapshot{
		Key:       input.Key,
		Data:      input.Data,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}

	data, err := json.Marshal(snap)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal snapshot")
	}

	key := r.buildKey(input.Key)
	indexKey := characterIndexPrefix + input.Key.CharacterID

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, data, ttl)
	pipe.SAdd(ctx, indexKey, key)
	pipe.Expire(ctx, indexKey, ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, "failed to store snapshot in Redis")
	}

	return &PutOutput{Snapshot: snap}, nil
}

// Get retrieves a snapshot by key
func (r *redisRepository) Get(ctx context.Context, input GetInput) (*GetOutput, error) {
	if err := validateKey(input.Key); err != nil {
		return nil, err
	}

	snap, err := r.load(ctx, r.buildKey(input.Key))
	if err != nil {
		return nil, err
	}
	return &GetOutput{Snapshot: snap}, nil
}

func (r *redisRepository) load(ctx context.Context, key string) (*Snapshot, error) {
	raw, err := r.client.Get(ctx, key).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFound("snapshot not found").WithMeta("key", key)
		}
		return nil, errors.Wrapf(err, "failed to get snapshot from Redis")
	}

	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeDataLoss, "failed to unmarshal snapshot")
	}

	if r.clock.Now().After(snap.ExpiresAt) {
		_ = r.client.Del(ctx, key)
		return nil, errors.NotFound("snapshot has expired").WithMeta("key", key)
	}

	return &snap, nil
}

// Delete removes snapshots and their index entries
func (r *redisRepository) Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error) {
	if len(input.Keys) == 0 {
		return &DeleteOutput{}, nil
	}

	pipe := r.client.TxPipeline()
	dels := make([]*redis.IntCmd, 0, len(input.Keys))
	for _, k := range input.Keys {
		if err := validateKey(k); err != nil {
			return nil, err
		}
		key := r.buildKey(k)
		dels = append(dels, pipe.Del(ctx, key))
		pipe.SRem(ctx, characterIndexPrefix+k.CharacterID, key)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, "failed to delete snapshots from Redis")
	}

	deleted := 0
	for _, cmd := range dels {
		deleted += int(cmd.Val())
	}
	return &DeleteOutput{Deleted: deleted}, nil
}

// ListByCharacter returns a character's live snapshots, pruning stale index entries
func (r *redisRepository) ListByCharacter(
	ctx context.Context,
	input ListByCharacterInput,
) (*ListByCharacterOutput, error) {
	if input.CharacterID == "" {
		return nil, errors.InvalidArgument(errCharacterIDEmpty)
	}

	indexKey := characterIndexPrefix + input.CharacterID
	keys, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get snapshots from index %s", indexKey)
	}

	out := make([]*Snapshot, 0, len(keys))
	for _, key := range keys {
		snap, err := r.load(ctx, key)
		if err != nil {
			if errors.IsNotFound(err) {
				slog.WarnContext(ctx, "snapshot gone, cleaning up index",
					"key", key,
					"index_key", indexKey)
				r.client.SRem(ctx, indexKey, key)
				continue
			}
			return nil, err
		}
		out = append(out, snap)
	}

	return &ListByCharacterOutput{Snapshots: out}, nil
}

// buildKey creates the Redis key for a snapshot
func (r *redisRepository) buildKey(k Key) string {
	return fmt.Sprintf("%s%s:%s:%s:%d", snapshotKeyPrefix, k.CharacterID, k.ItemID, k.AdvancementID, k.Level)
}
