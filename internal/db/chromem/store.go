// Package chromem keeps collections in an embedded chromem-go database,
// optionally persisted to disk. Intended for single-process deployments and tests.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/philippgille/chromem-go"

	"github.com/kailas-cloud/graphvec/internal/db"
)

// Compile-time check: Store implements db.VectorStore.
var _ db.VectorStore = (*Store)(nil)

const metaSeq = "_seq"

var errNoEmbedding = errors.New("records must carry precomputed embeddings")

// Config holds database parameters.
type Config struct {
	// Path enables persistence when non-empty.
	Path     string
	Compress bool
	// Dimension is the vector length used for full scans.
	Dimension int
}

// Store implements db.VectorStore on chromem-go.
type Store struct {
	db     *chromem.DB
	dim    int
	seq    atomic.Int64
	mu     sync.Mutex // serializes read-modify-write sequences on one collection
	anchor []float32
}

// NewStore opens an in-memory or persistent database.
func NewStore(cfg Config) (*Store, error) {
	if cfg.Dimension <= 0 {
		return nil, fmt.Errorf("dimension must be positive")
	}

	var (
		cdb *chromem.DB
		err error
	)
	if cfg.Path == "" {
		cdb = chromem.NewDB()
	} else {
		cdb, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("open %s: %w", cfg.Path, err)
		}
	}

	s := &Store{db: cdb, dim: cfg.Dimension}
	s.seq.Store(time.Now().UnixNano())
	s.anchor = make([]float32, cfg.Dimension)
	s.anchor[0] = 1
	return s, nil
}

func embedFunc(_ context.Context, _ string) ([]float32, error) {
	return nil, errNoEmbedding
}

// Ping always succeeds for the embedded database.
func (s *Store) Ping(_ context.Context) error { return nil }

// Close is a no-op; persistent databases write through on every change.
func (s *Store) Close() {}

// WaitForReady returns immediately.
func (s *Store) WaitForReady(ctx context.Context, timeout time.Duration) error {
	return db.WaitForPing(ctx, s, timeout)
}

// CreateCollection creates an empty collection.
func (s *Store) CreateCollection(_ context.Context, spec db.CollectionSpec) error {
	if !db.IsValidIdentifier(spec.Name) {
		return fmt.Errorf("%w: %q", db.ErrInvalidIdentifier, spec.Name)
	}
	if spec.Dimension != s.dim {
		return fmt.Errorf("dimension %d does not match store dimension %d", spec.Dimension, s.dim)
	}
	if s.db.GetCollection(spec.Name, embedFunc) != nil {
		return db.ErrCollectionExists
	}
	if _, err := s.db.CreateCollection(spec.Name, nil, embedFunc); err != nil {
		if strings.Contains(err.Error(), "already exists") {
			return db.ErrCollectionExists
		}
		return &db.Error{Op: db.OpCreate, Err: err}
	}
	return nil
}

// DropCollection deletes the collection and its documents.
func (s *Store) DropCollection(_ context.Context, name string) error {
	if s.db.GetCollection(name, embedFunc) == nil {
		return db.ErrCollectionNotFound
	}
	if err := s.db.DeleteCollection(name); err != nil {
		return &db.Error{Op: db.OpDrop, Err: err}
	}
	return nil
}

// CollectionExists checks whether the collection is present.
func (s *Store) CollectionExists(_ context.Context, name string) (bool, error) {
	return s.db.GetCollection(name, embedFunc) != nil, nil
}

func (s *Store) collection(name string, op string) (*chromem.Collection, error) {
	c := s.db.GetCollection(name, embedFunc)
	if c == nil {
		return nil, &db.Error{Op: op, Err: db.ErrCollectionNotFound}
	}
	return c, nil
}

// Insert adds rows with fresh UUIDs.
func (s *Store) Insert(ctx context.Context, collection string, rows []db.Row) error {
	if len(rows) == 0 {
		return nil
	}
	c, err := s.collection(collection, db.OpInsert)
	if err != nil {
		return err
	}

	last := s.seq.Add(int64(len(rows)))
	first := last - int64(len(rows)) + 1

	docs := make([]chromem.Document, len(rows))
	for i, row := range rows {
		if len(row.Vector) != s.dim {
			return &db.Error{Op: db.OpInsert, Err: fmt.Errorf("vector length %d, want %d", len(row.Vector), s.dim)}
		}
		meta := make(map[string]string, len(row.Fields)+1)
		for k, v := range row.Fields {
			meta[k] = v
		}
		meta[metaSeq] = strconv.FormatInt(first+int64(i), 10)

		docs[i] = chromem.Document{
			ID:        uuid.NewString(),
			Metadata:  meta,
			Embedding: row.Vector,
			Content:   documentContent(row.Fields),
		}
	}

	if err := c.AddDocuments(ctx, docs, 1); err != nil {
		return &db.Error{Op: db.OpInsert, Err: err}
	}
	return nil
}

// DeleteWhere removes documents whose field equals value.
func (s *Store) DeleteWhere(ctx context.Context, collection, field, value string) (int, error) {
	c, err := s.collection(collection, db.OpDelete)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	before := c.Count()
	if before == 0 {
		return 0, nil
	}
	if err := c.Delete(ctx, map[string]string{field: value}, nil); err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}
	return before - c.Count(), nil
}

// Truncate removes every document.
func (s *Store) Truncate(ctx context.Context, collection string) (int, error) {
	c, err := s.collection(collection, db.OpTruncate)
	if err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	n := c.Count()
	if n == 0 {
		return 0, nil
	}
	all, err := c.QueryEmbedding(ctx, s.anchor, n, nil, nil)
	if err != nil {
		return 0, &db.Error{Op: db.OpTruncate, Err: err}
	}
	ids := make([]string, len(all))
	for i, r := range all {
		ids[i] = r.ID
	}
	if err := c.Delete(ctx, nil, nil, ids...); err != nil {
		return 0, &db.Error{Op: db.OpTruncate, Err: err}
	}
	return n - c.Count(), nil
}

// SearchKNN returns up to K nearest documents. Embeddings are stored unit-normalized,
// so Euclid distance is derived from cosine similarity.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) ([]db.Entry, error) {
	if q.Collection == "" {
		return nil, fmt.Errorf("%w: collection is required", db.ErrInvalidQuery)
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("%w: vector is required", db.ErrInvalidQuery)
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", db.ErrInvalidQuery)
	}
	c, err := s.collection(q.Collection, db.OpSearch)
	if err != nil {
		return nil, err
	}

	k := min(q.K, c.Count())
	if k == 0 {
		return nil, nil
	}
	res, err := c.QueryEmbedding(ctx, q.Vector, k, nil, nil)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	entries := make([]db.Entry, len(res))
	for i, r := range res {
		entries[i] = entryFromResult(r, q.Fields)
		entries[i].Distance = distanceFromSimilarity(r.Similarity)
	}
	sort.SliceStable(entries, func(i, j int) bool {
		if entries[i].Distance != entries[j].Distance {
			return entries[i].Distance < entries[j].Distance
		}
		return entries[i].Seq < entries[j].Seq
	})
	return entries, nil
}

// FindByField returns documents whose field matches any of values, in insertion order.
func (s *Store) FindByField(
	ctx context.Context, collection, field string, values []string, limit int,
) ([]db.Entry, error) {
	if len(values) == 0 {
		return nil, nil
	}
	c, err := s.collection(collection, db.OpFind)
	if err != nil {
		return nil, err
	}

	n := c.Count()
	if n == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{})
	var entries []db.Entry
	for _, v := range values {
		if _, dup := seen[v]; dup {
			continue
		}
		seen[v] = struct{}{}

		res, err := c.QueryEmbedding(ctx, s.anchor, n, map[string]string{field: v}, nil)
		if err != nil {
			return nil, &db.Error{Op: db.OpFind, Err: err}
		}
		for _, r := range res {
			entries = append(entries, entryFromResult(r, nil))
		}
	}

	sort.SliceStable(entries, func(i, j int) bool { return entries[i].Seq < entries[j].Seq })
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Count returns the number of documents.
func (s *Store) Count(_ context.Context, collection string) (int, error) {
	c, err := s.collection(collection, db.OpCount)
	if err != nil {
		return 0, err
	}
	return c.Count(), nil
}

func entryFromResult(r chromem.Result, only []string) db.Entry {
	e := db.Entry{ID: r.ID, Fields: make(map[string]string, len(r.Metadata))}
	for k, v := range r.Metadata {
		if k == metaSeq {
			e.Seq, _ = strconv.ParseInt(v, 10, 64)
			continue
		}
		e.Fields[k] = v
	}
	if len(only) > 0 {
		kept := make(map[string]string, len(only))
		for _, f := range only {
			if v, ok := e.Fields[f]; ok {
				kept[f] = v
			}
		}
		e.Fields = kept
	}
	return e
}

func distanceFromSimilarity(sim float32) float64 {
	return math.Sqrt(math.Max(0, 2-2*float64(sim)))
}

func documentContent(fields map[string]string) string {
	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fields[k])
	}
	return strings.Join(parts, "\n")
}
