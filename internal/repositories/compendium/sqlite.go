package compendium

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"log/slog"
	"path/filepath"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/KirkDiggler/rpg-progression/internal/entities/dnd5e"
	"github.com/KirkDiggler/rpg-progression/internal/errors"
	"github.com/KirkDiggler/rpg-progression/internal/pkg/clock"
	"github.com/KirkDiggler/rpg-progression/internal/resolver"
)

// MemoryPath opens a private in-memory database
const MemoryPath = ":memory:"

//go:embed schema.sql
var schema string

// Config holds the configuration for the SQLite store
type Config struct {
	// Path is the database file, or MemoryPath
	Path  string
	Clock clock.Clock
}

// Validate validates the config
func (c *Config) Validate() error {
	if c == nil {
		return errors.InvalidArgument("config cannot be nil")
	}
	vb := errors.NewValidationBuilder()
	if strings.TrimSpace(c.Path) == "" {
		vb.RequiredField("Path")
	}
	return vb.Build()
}

// Store is a SQLite-backed compendium. It also resolves compendium uuids
// for the advancement engine.
type Store struct {
	db    *sql.DB
	clock clock.Clock
}

var (
	_ Repository        = (*Store)(nil)
	_ resolver.Resolver = (*Store)(nil)
)

// NewSQLite opens the store and creates its schema
func NewSQLite(cfg *Config) (*Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	dsn := MemoryPath
	if cfg.Path != MemoryPath {
		dsn = filepath.Clean(cfg.Path) + "?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open compendium %s", cfg.Path)
	}
	if cfg.Path == MemoryPath {
		// every connection to :memory: is a separate database
		db.SetMaxOpenConns(1)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, errors.Wrapf(err, "failed to ping compendium %s", cfg.Path)
	}
	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, "failed to create compendium schema")
	}

	c := cfg.Clock
	if c == nil {
		c = clock.New()
	}
	return &Store{db: db, clock: c}, nil
}

// Close closes the database handle
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Put inserts or replaces items in one transaction
func (s *Store) Put(ctx context.Context, input PutInput) (*PutOutput, error) {
	vb := errors.NewValidationBuilder()
	if input.Pack == "" || strings.Contains(input.Pack, ".") {
		vb.InvalidField("Pack", "must be a non-empty name without dots")
	}
	for i, item := range input.Items {
		if item == nil || item.ID == "" {
			vb.Fieldf("Items", "item %d has no id", i)
			continue
		}
		if item.Type == "" {
			vb.Fieldf("Items", "item %s has no type", item.ID)
		}
	}
	if err := vb.Build(); err != nil {
		return nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.Wrap(err, "failed to begin compendium transaction")
	}
	defer func() { _ = tx.Rollback() }()

	now := s.clock.Now().UnixMilli()
	uuids := make([]string, 0, len(input.Items))
	for _, item := range input.Items {
		data, err := json.Marshal(item)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to encode item %s", item.ID)
		}
		uuid := UUID(input.Pack, item.ID)
		_, err = tx.ExecContext(ctx,
			`INSERT INTO compendium_items (uuid, pack, item_id, item_type, name, data, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)
			 ON CONFLICT(uuid) DO UPDATE SET
			   item_type = excluded.item_type,
			   name = excluded.name,
			   data = excluded.data,
			   updated_at = excluded.updated_at`,
			uuid, input.Pack, item.ID, item.Type, item.Name, string(data), now,
		)
		if err != nil {
			return nil, errors.Wrapf(err, "failed to store item %s", uuid)
		}
		uuids = append(uuids, uuid)
	}

	if err := tx.Commit(); err != nil {
		return nil, errors.Wrap(err, "failed to commit compendium items")
	}

	slog.InfoContext(ctx, "stored compendium items", "pack", input.Pack, "count", len(uuids))
	return &PutOutput{UUIDs: uuids}, nil
}

// Get returns a stored entry
func (s *Store) Get(ctx context.Context, input GetInput) (*GetOutput, error) {
	if _, _, err := ParseUUID(input.UUID); err != nil {
		return nil, err
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT uuid, pack, data FROM compendium_items WHERE uuid = ?`, input.UUID)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, errors.NotFoundf("compendium item %s not found", input.UUID).WithMeta("uuid", input.UUID)
		}
		return nil, err
	}
	return &GetOutput{Entry: entry}, nil
}

// List returns entries matching the filter
func (s *Store) List(ctx context.Context, input ListInput) (*ListOutput, error) {
	query := `SELECT uuid, pack, data FROM compendium_items`
	var (
		where []string
		args  []any
	)
	if input.Pack != "" {
		where = append(where, "pack = ?")
		args = append(args, input.Pack)
	}
	if input.Type != "" {
		where = append(where, "item_type = ?")
		args = append(args, input.Type)
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY uuid"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list compendium items")
	}
	defer func() { _ = rows.Close() }()

	var entries []*Entry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate compendium items")
	}
	return &ListOutput{Entries: entries}, nil
}

// Delete removes an entry
func (s *Store) Delete(ctx context.Context, input DeleteInput) (*DeleteOutput, error) {
	if _, _, err := ParseUUID(input.UUID); err != nil {
		return nil, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM compendium_items WHERE uuid = ?`, input.UUID)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to delete compendium item %s", input.UUID)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, errors.Wrap(err, "failed to read affected rows")
	}
	if n == 0 {
		return nil, errors.NotFoundf("compendium item %s not found", input.UUID).WithMeta("uuid", input.UUID)
	}
	return &DeleteOutput{}, nil
}

// Resolve implements resolver.Resolver. Unknown uuids resolve to nil.
func (s *Store) Resolve(ctx context.Context, uuid string) (*dnd5e.Item, error) {
	out, err := s.Get(ctx, GetInput{UUID: uuid})
	if err != nil {
		if errors.IsNotFound(err) || errors.IsInvalidArgument(err) {
			return nil, nil
		}
		return nil, err
	}
	return out.Entry.Item, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var (
		entry Entry
		data  string
	)
	if err := row.Scan(&entry.UUID, &entry.Pack, &data); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, errors.Wrap(err, "failed to scan compendium item")
	}

	var item dnd5e.Item
	if err := json.Unmarshal([]byte(data), &item); err != nil {
		return nil, errors.WrapWithCode(err, errors.CodeDataLoss, "failed to decode compendium item").
			WithMeta("uuid", entry.UUID)
	}
	entry.Item = &item
	return &entry, nil
}
