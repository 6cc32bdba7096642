package redis

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"github.com/redis/rueidis"

	"github.com/kailas-cloud/graphvec/internal/db"
)

const (
	scanCount = 500
	pageSize  = 1000
	delChunk  = 500
)

// Insert reserves a sequence range and writes all hashes in a single DoMulti round-trip.
func (s *Store) Insert(ctx context.Context, collection string, rows []db.Row) error {
	if len(rows) == 0 {
		return nil
	}

	exists, err := s.CollectionExists(ctx, collection)
	if err != nil {
		return err
	}
	if !exists {
		return &db.Error{Op: db.OpInsert, Err: fmt.Errorf("%s: %w", collection, db.ErrCollectionNotFound)}
	}

	last, err := s.do(ctx, s.b().Incrby().Key(s.seqKey(collection)).Increment(int64(len(rows))).Build()).AsInt64()
	if err != nil {
		return &db.Error{Op: db.OpSequence, Err: err}
	}
	first := last - int64(len(rows)) + 1

	keys := make([]string, len(rows))
	cmds := make(rueidis.Commands, len(rows))
	for i, row := range rows {
		keys[i] = s.docPrefix(collection) + uuid.NewString()
		cmd := s.b().Hset().Key(keys[i]).FieldValue()
		for k, v := range row.Fields {
			cmd = cmd.FieldValue(k, v)
		}
		cmd = cmd.FieldValue(fieldSeq, strconv.FormatInt(first+int64(i), 10))
		cmd = cmd.FieldValue(fieldVector, vectorToBytes(row.Vector))
		cmds[i] = cmd.Build()
	}

	for i, res := range s.client.DoMulti(ctx, cmds...) {
		if err := res.Error(); err != nil {
			return &db.Error{Op: db.OpInsert, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
	}
	return nil
}

// DeleteWhere removes hashes whose field equals value.
func (s *Store) DeleteWhere(ctx context.Context, collection, field, value string) (int, error) {
	keys, err := s.matchKeys(ctx, collection, field, []string{value})
	if err != nil {
		return 0, err
	}
	return s.del(ctx, keys, db.OpDelete)
}

// Truncate removes every hash under the collection prefix.
func (s *Store) Truncate(ctx context.Context, collection string) (int, error) {
	keys, err := s.scanKeys(ctx, collection)
	if err != nil {
		return 0, err
	}
	return s.del(ctx, keys, db.OpTruncate)
}

// FindByField returns hashes whose field matches any of values, in insertion order.
func (s *Store) FindByField(
	ctx context.Context, collection, field string, values []string, limit int,
) ([]db.Entry, error) {
	if len(values) == 0 {
		return nil, nil
	}
	keys, err := s.matchKeys(ctx, collection, field, values)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	cmds := make(rueidis.Commands, len(keys))
	for i, k := range keys {
		cmds[i] = s.b().Hgetall().Key(k).Build()
	}

	entries := make([]db.Entry, 0, len(keys))
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		m, err := res.AsStrMap()
		if err != nil {
			return nil, &db.Error{Op: db.OpFind, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		if len(m) == 0 {
			continue // deleted between lookup and fetch
		}
		entries = append(entries, s.entryFromHash(collection, keys[i], m))
	}

	slices.SortStableFunc(entries, func(a, b db.Entry) int {
		switch {
		case a.Seq < b.Seq:
			return -1
		case a.Seq > b.Seq:
			return 1
		}
		return 0
	})
	if limit > 0 && len(entries) > limit {
		entries = entries[:limit]
	}
	return entries, nil
}

// Count returns the number of hashes in the collection.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	if s.dialect == DialectValkey {
		keys, err := s.scanKeys(ctx, collection)
		if err != nil {
			return 0, err
		}
		return len(keys), nil
	}

	cmd := s.b().Arbitrary("FT.SEARCH").Args(s.indexName(collection), "*", "LIMIT", "0", "0").Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	if len(raw) == 0 {
		return 0, nil
	}
	total, err := raw[0].AsInt64()
	if err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: fmt.Errorf("parse count: %w", err)}
	}
	return int(total), nil
}

// matchKeys resolves the keys whose field equals one of values.
func (s *Store) matchKeys(ctx context.Context, collection, field string, values []string) ([]string, error) {
	if !db.IsValidIdentifier(field) {
		return nil, fmt.Errorf("%w: %q", db.ErrInvalidIdentifier, field)
	}
	if s.dialect == DialectValkey {
		return s.scanMatch(ctx, collection, field, values)
	}

	escaped := make([]string, len(values))
	for i, v := range values {
		escaped[i] = tagEscaper.Replace(v)
	}
	query := fmt.Sprintf("@%s:{%s}", field, strings.Join(escaped, " | "))

	var keys []string
	for offset := 0; ; offset += pageSize {
		cmd := s.b().Arbitrary("FT.SEARCH").Args(
			s.indexName(collection), query, "NOCONTENT",
			"LIMIT", strconv.Itoa(offset), strconv.Itoa(pageSize),
			"DIALECT", "2",
		).Build()
		raw, err := s.do(ctx, cmd).ToArray()
		if err != nil {
			return nil, &db.Error{Op: db.OpFind, Err: err}
		}
		if len(raw) == 0 {
			return keys, nil
		}
		total, err := raw[0].AsInt64()
		if err != nil {
			return nil, &db.Error{Op: db.OpFind, Err: fmt.Errorf("parse total: %w", err)}
		}
		for _, m := range raw[1:] {
			if k, err := m.ToString(); err == nil {
				keys = append(keys, k)
			}
		}
		if len(raw) == 1 || int64(offset+pageSize) >= total {
			return keys, nil
		}
	}
}

// scanMatch filters the collection's keys by reading field from each hash.
func (s *Store) scanMatch(ctx context.Context, collection, field string, values []string) ([]string, error) {
	keys, err := s.scanKeys(ctx, collection)
	if err != nil {
		return nil, err
	}
	if len(keys) == 0 {
		return nil, nil
	}

	want := make(map[string]bool, len(values))
	for _, v := range values {
		want[v] = true
	}

	cmds := make(rueidis.Commands, len(keys))
	for i, k := range keys {
		cmds[i] = s.b().Hget().Key(k).Field(field).Build()
	}

	var matched []string
	for i, res := range s.client.DoMulti(ctx, cmds...) {
		v, err := res.ToString()
		if err != nil {
			if rueidis.IsRedisNil(err) {
				continue
			}
			return nil, &db.Error{Op: db.OpFind, Err: fmt.Errorf("key %s: %w", keys[i], err)}
		}
		if want[v] {
			matched = append(matched, keys[i])
		}
	}
	return matched, nil
}

// scanKeys iterates all hash keys of the collection.
func (s *Store) scanKeys(ctx context.Context, collection string) ([]string, error) {
	var keys []string
	var cursor uint64
	pattern := s.docPrefix(collection) + "*"

	for {
		cmd := s.b().Scan().Cursor(cursor).Match(pattern).Count(scanCount).Build()
		res, err := s.do(ctx, cmd).AsScanEntry()
		if err != nil {
			return nil, &db.Error{Op: db.OpFind, Err: err}
		}
		keys = append(keys, res.Elements...)
		cursor = res.Cursor
		if cursor == 0 {
			break
		}
	}
	return keys, nil
}

func (s *Store) del(ctx context.Context, keys []string, op string) (int, error) {
	total := 0
	for start := 0; start < len(keys); start += delChunk {
		end := min(start+delChunk, len(keys))
		n, err := s.do(ctx, s.b().Del().Key(keys[start:end]...).Build()).AsInt64()
		if err != nil {
			return total, &db.Error{Op: op, Err: err}
		}
		total += int(n)
	}
	return total, nil
}

func (s *Store) entryFromHash(collection, key string, m map[string]string) db.Entry {
	e := db.Entry{ID: strings.TrimPrefix(key, s.docPrefix(collection)), Fields: make(map[string]string, len(m))}
	for k, v := range m {
		switch k {
		case fieldVector, fieldScore:
		case fieldSeq:
			e.Seq, _ = strconv.ParseInt(v, 10, 64)
		default:
			e.Fields[k] = v
		}
	}
	return e
}
