// Package sqlite is an embedded vector store on modernc.org/sqlite.
// Vectors are float32 BLOBs ranked by a registered L2 scalar function,
// so search is an exact scan rather than an ANN index.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kailas-cloud/graphvec/internal/db"
)

// Compile-time check: Store implements db.VectorStore.
var _ db.VectorStore = (*Store)(nil)

const (
	driverName   = "sqlite"
	distanceFunc = "graphvec_l2"

	colSeq       = "seq"
	colID        = "id"
	colEmbedding = "embedding"
	colDistance  = "_distance"
)

var registerOnce sync.Once

// Config holds the database location.
type Config struct {
	// Path is a file path or ":memory:".
	Path string
}

// Store implements db.VectorStore on a single SQLite database.
type Store struct {
	db *sql.DB
}

// NewStore opens (or creates) the database at cfg.Path.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("path is required")
	}

	var regErr error
	registerOnce.Do(func() { regErr = registerFunctions() })
	if regErr != nil {
		return nil, fmt.Errorf("register functions: %w", regErr)
	}

	conn, err := sql.Open(driverName, cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite: %w", err)
	}
	// One connection: keeps ":memory:" a single database and serialises writers.
	conn.SetMaxOpenConns(1)

	return &Store{db: conn}, nil
}

// Ping checks connectivity.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return &db.Error{Op: db.OpPing, Err: err}
	}
	return nil
}

// Close releases the database handle.
func (s *Store) Close() {
	_ = s.db.Close()
}

// WaitForReady polls Ping until the store responds or timeout expires.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitForPing(ctx, s, timeout)
}

// CreateCollection creates a table with one TEXT column per attribute field.
func (s *Store) CreateCollection(ctx context.Context, spec db.CollectionSpec) error {
	if err := validateIdents(append([]string{spec.Name}, spec.Fields...)...); err != nil {
		return err
	}
	exists, err := s.CollectionExists(ctx, spec.Name)
	if err != nil {
		return err
	}
	if exists {
		return db.ErrCollectionExists
	}

	cols := []string{
		quote(colSeq) + " INTEGER PRIMARY KEY AUTOINCREMENT",
		quote(colID) + " TEXT NOT NULL",
	}
	for _, f := range spec.Fields {
		cols = append(cols, quote(f)+" TEXT")
	}
	cols = append(cols, quote(colEmbedding)+" BLOB NOT NULL")

	stmts := []string{
		fmt.Sprintf("CREATE TABLE %s (%s)", quote(spec.Name), strings.Join(cols, ", ")),
	}
	for _, f := range spec.Fields {
		stmts = append(stmts, fmt.Sprintf("CREATE INDEX %s ON %s (%s)",
			quote(spec.Name+"__"+f), quote(spec.Name), quote(f)))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpCreate, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	for _, stmt := range stmts {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return &db.Error{Op: db.OpCreate, Err: err}
		}
	}
	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpCreate, Err: err}
	}
	return nil
}

// DropCollection drops the table.
func (s *Store) DropCollection(ctx context.Context, name string) error {
	if err := validateIdents(name); err != nil {
		return err
	}
	exists, err := s.CollectionExists(ctx, name)
	if err != nil {
		return err
	}
	if !exists {
		return db.ErrCollectionNotFound
	}
	if _, err := s.db.ExecContext(ctx, "DROP TABLE "+quote(name)); err != nil {
		return &db.Error{Op: db.OpDrop, Err: err}
	}
	return nil
}

// CollectionExists checks sqlite_master for the table.
func (s *Store) CollectionExists(ctx context.Context, name string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = ?", name,
	).Scan(&n)
	if err != nil {
		return false, &db.Error{Op: db.OpExists, Err: err}
	}
	return n > 0, nil
}

func quote(ident string) string {
	return `"` + ident + `"`
}

func validateIdents(names ...string) error {
	for _, n := range names {
		if !db.IsValidIdentifier(n) {
			return fmt.Errorf("%w: %q", db.ErrInvalidIdentifier, n)
		}
	}
	return nil
}
