package character

import (
	"context"
	"encoding/json"
	"log/slog"

	redis "github.com/redis/go-redis/v9"

	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
	"github.com/KirkDiggler/rpg-progression/internal/pkg/clock"
	redisclient "github.com/KirkDiggler/rpg-progression/internal/redis"
)

const (
	characterKeyPrefix = "character:"
	playerIndexPrefix  = "character:player:"

	// Error messages
	errCharacterNil     = "character cannot be nil"
	errCharacterIDEmpty = "character ID cannot be empty"
	errPlayerIDEmpty    = "player ID cannot be empty"
)

type redisRepository struct {
	client redisclient.Client
	clock  clock.Clock
}

// RedisConfig contains configuration for the Redis character repository
type RedisConfig struct {
	Client redisclient.Client
	Clock  clock.Clock
}

// Validate validates the RedisConfig
func (cfg *RedisConfig) Validate() error {
	if cfg == nil {
		return errors.InvalidArgument("config cannot be nil")
	}
	if cfg.Client == nil {
		return errors.InvalidArgument("client cannot be nil")
	}
	return nil
}

// NewRedis creates a new Redis-backed character repository
func NewRedis(cfg *RedisConfig) (Repository, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}

	return &redisRepository{
		client: cfg.Client,
		clock:  c,
	}, nil
}

var _ Repository = (*redisRepository)(nil)

func (r *redisRepository) Create(ctx context.Context, input CreateInput) (*CreateOutput, error) {
	if input.Character == nil {
		return nil, errors.InvalidArgument(errCharacterNil)
	}
	if input.Character.ID == "" {
		return nil, errors.InvalidArgument(errCharacterIDEmpty)
	}

	key := characterKeyPrefix + input.Character.ID

	exists, err := r.client.Exists(ctx, key).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to check existence")
	}
	if exists > 0 {
		return nil, errors.AlreadyExistsf("character with ID %s already exists", input.Character.ID)
	}

	stored, err := input.Character.Clone()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to copy character")
	}
	now := r.clock.Now().UnixMilli()
	stored.CreatedAt = now
	stored.UpdatedAt = now

	data, err := json.Marshal(stored)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to marshal character")
	}

	pipe := r.client.TxPipeline()
	pipe.Set(ctx, key, data, 0)
	if stored.PlayerID != "" {
		pipe.SAdd(ctx, playerIndexPrefix+stored.PlayerID, stored.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, "failed to create character")
	}

	return &CreateOutput{Character: stored}, nil
}

func (r *redisRepository) Get(ctx context.Context, input GetInput) (*GetOutput, error) {
	if input.ID == "" {
		return nil, errors.InvalidArgument(errCharacterIDEmpty)
	}

	character, err := r.load(ctx, r.client, input.ID)
	if err != nil {
		return nil, err
	}
	return &GetOutput{Character: character}, nil
}

func (r *redisRepository) load(ctx context.Context, cmd redis.Cmdable, id string) (*dnd5e.Character, error) {
	result, err := cmd.Get(ctx, characterKeyPrefix+id).Result()
	if err != nil {
		if err == redis.Nil {
			return nil, errors.NotFoundf("character with ID %s not found", id).WithMeta("character_id", id)
		}
		return nil, errors.Wrapf(err, "failed to get character")
	}

	var character dnd5e.Character
	if err := json.Unmarshal([]byte(result), &character); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeDataLoss, "failed to unmarshal character")
	}
	return &character, nil
}

func (r *redisRepository) Update(ctx context.Context, input UpdateInput) (*UpdateOutput, error) {
	if input.Character == nil {
		return nil, errors.InvalidArgument(errCharacterNil)
	}
	if input.Character.ID == "" {
		return nil, errors.InvalidArgument(errCharacterIDEmpty)
	}

	key := characterKeyPrefix + input.Character.ID
	stored, err := input.Character.Clone()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to copy character")
	}

	// WATCH the key so a concurrent writer aborts this transaction
	err = r.client.Watch(ctx, func(tx *redis.Tx) error {
		existing, err := r.load(ctx, tx, input.Character.ID)
		if err != nil {
			return err
		}
		if input.ExpectedUpdatedAt != 0 && existing.UpdatedAt != input.ExpectedUpdatedAt {
			return errors.Newf(errors.CodeAborted, "character %s was modified concurrently", input.Character.ID).
				WithMeta("character_id", input.Character.ID)
		}

		stored.CreatedAt = existing.CreatedAt
		stored.UpdatedAt = max(r.clock.Now().UnixMilli(), existing.UpdatedAt+1)
		data, err := json.Marshal(stored)
		if err != nil {
			return errors.Wrapf(err, "failed to marshal character")
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)
			if existing.PlayerID != stored.PlayerID {
				if existing.PlayerID != "" {
					pipe.SRem(ctx, playerIndexPrefix+existing.PlayerID, stored.ID)
				}
				if stored.PlayerID != "" {
					pipe.SAdd(ctx, playerIndexPrefix+stored.PlayerID, stored.ID)
				}
			}
			return nil
		})
		return err
	}, key)
	if err != nil {
		if err == redis.TxFailedErr {
			return nil, errors.Newf(errors.CodeAborted, "character %s was modified concurrently", input.Character.ID)
		}
		if _, ok := err.(*errors.Error); ok {
			return nil, err
		}
		return nil, errors.Wrapf(err, "failed to update character")
	}

	return &UpdateOutput{Character: stored}, nil
}

func (r *redisRepository) Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error) {
	if input.ID == "" {
		return nil, errors.InvalidArgument(errCharacterIDEmpty)
	}

	character, err := r.load(ctx, r.client, input.ID)
	if err != nil {
		return nil, err
	}

	pipe := r.client.TxPipeline()
	pipe.Del(ctx, characterKeyPrefix+input.ID)
	if character.PlayerID != "" {
		pipe.SRem(ctx, playerIndexPrefix+character.PlayerID, input.ID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return nil, errors.Wrapf(err, "failed to delete character")
	}

	return &DeleteOutput{}, nil
}

func (r *redisRepository) ListByPlayerID(
	ctx context.Context,
	input ListByPlayerIDInput,
) (*ListByPlayerIDOutput, error) {
	if input.PlayerID == "" {
		return nil, errors.InvalidArgument(errPlayerIDEmpty)
	}

	indexKey := playerIndexPrefix + input.PlayerID
	ids, err := r.client.SMembers(ctx, indexKey).Result()
	if err != nil {
		return nil, errors.Wrapf(err, "failed to get characters from index %s", indexKey)
	}

	characters := make([]*dnd5e.Character, 0, len(ids))
	for _, id := range ids {
		character, err := r.load(ctx, r.client, id)
		if err != nil {
			if errors.IsNotFound(err) {
				slog.WarnContext(ctx, "character not found, cleaning up index",
					"character_id", id,
					"index_key", indexKey)
				r.client.SRem(ctx, indexKey, id)
				continue
			}
			return nil, errors.Wrapf(err, "failed to get character %s", id)
		}
		characters = append(characters, character)
	}

	slog.DebugContext(ctx, "listed characters by player",
		"player_id", input.PlayerID,
		"count", len(characters))

	return &ListByPlayerIDOutput{Characters: characters}, nil
}
