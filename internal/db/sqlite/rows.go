package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/kailas-cloud/graphvec/internal/db"
)

// AtomicInsert reports that Insert runs in a single transaction.
func (s *Store) AtomicInsert() bool { return true }

// Insert writes all rows in one transaction.
func (s *Store) Insert(ctx context.Context, collection string, rows []db.Row) error {
	if err := validateIdents(collection); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return &db.Error{Op: db.OpInsert, Err: err}
	}
	defer func() { _ = tx.Rollback() }()

	stmts := make(map[string]*sql.Stmt)
	defer func() {
		for _, st := range stmts {
			_ = st.Close()
		}
	}()

	for i, row := range rows {
		names := make([]string, 0, len(row.Fields))
		for k := range row.Fields {
			names = append(names, k)
		}
		slices.Sort(names)
		if err := validateIdents(names...); err != nil {
			return err
		}

		key := strings.Join(names, ",")
		st, ok := stmts[key]
		if !ok {
			st, err = tx.PrepareContext(ctx, insertSQL(collection, names))
			if err != nil {
				return &db.Error{Op: db.OpInsert, Err: err}
			}
			stmts[key] = st
		}

		args := make([]any, 0, len(names)+2)
		args = append(args, uuid.NewString())
		for _, n := range names {
			args = append(args, row.Fields[n])
		}
		args = append(args, db.EncodeVector(row.Vector))

		if _, err := st.ExecContext(ctx, args...); err != nil {
			return &db.Error{Op: db.OpInsert, Err: fmt.Errorf("row %d: %w", i, err)}
		}
	}

	if err := tx.Commit(); err != nil {
		return &db.Error{Op: db.OpInsert, Err: err}
	}
	return nil
}

func insertSQL(collection string, fields []string) string {
	cols := make([]string, 0, len(fields)+2)
	cols = append(cols, quote(colID))
	for _, f := range fields {
		cols = append(cols, quote(f))
	}
	cols = append(cols, quote(colEmbedding))
	marks := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)", quote(collection), strings.Join(cols, ", "), marks)
}

// DeleteWhere removes rows whose field equals value.
func (s *Store) DeleteWhere(ctx context.Context, collection, field, value string) (int, error) {
	if err := validateIdents(collection, field); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx,
		fmt.Sprintf("DELETE FROM %s WHERE %s = ?", quote(collection), quote(field)), value)
	if err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &db.Error{Op: db.OpDelete, Err: err}
	}
	return int(n), nil
}

// Truncate removes every row.
func (s *Store) Truncate(ctx context.Context, collection string) (int, error) {
	if err := validateIdents(collection); err != nil {
		return 0, err
	}
	res, err := s.db.ExecContext(ctx, "DELETE FROM "+quote(collection))
	if err != nil {
		return 0, &db.Error{Op: db.OpTruncate, Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &db.Error{Op: db.OpTruncate, Err: err}
	}
	return int(n), nil
}

// SearchKNN ranks every row by L2 distance; ties fall back to insertion order.
func (s *Store) SearchKNN(ctx context.Context, q *db.KNNQuery) ([]db.Entry, error) {
	if err := validateIdents(q.Collection); err != nil {
		return nil, err
	}
	if len(q.Vector) == 0 {
		return nil, fmt.Errorf("%w: vector is required", db.ErrInvalidQuery)
	}
	if q.K <= 0 {
		return nil, fmt.Errorf("%w: k must be positive", db.ErrInvalidQuery)
	}
	if err := validateIdents(q.Fields...); err != nil {
		return nil, err
	}

	query := fmt.Sprintf("SELECT %s, %s(%s, ?) AS %s FROM %s ORDER BY %s, %s LIMIT ?",
		selectList(q.Fields), distanceFunc, quote(colEmbedding), quote(colDistance),
		quote(q.Collection), quote(colDistance), quote(colSeq))

	rows, err := s.db.QueryContext(ctx, query, db.EncodeVector(q.Vector), q.K)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}
	return entries, nil
}

// FindByField returns rows whose field matches any of values, in insertion order.
func (s *Store) FindByField(
	ctx context.Context, collection, field string, values []string, limit int,
) ([]db.Entry, error) {
	if err := validateIdents(collection, field); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, nil
	}
	if limit <= 0 {
		limit = -1
	}

	marks := strings.TrimSuffix(strings.Repeat("?, ", len(values)), ", ")
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s) ORDER BY %s LIMIT ?",
		selectList(nil), quote(collection), quote(field), marks, quote(colSeq))

	args := make([]any, 0, len(values)+1)
	for _, v := range values {
		args = append(args, v)
	}
	args = append(args, limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, &db.Error{Op: db.OpFind, Err: err}
	}
	defer rows.Close()

	entries, err := scanEntries(rows)
	if err != nil {
		return nil, &db.Error{Op: db.OpFind, Err: err}
	}
	return entries, nil
}

// Count returns the number of rows.
func (s *Store) Count(ctx context.Context, collection string) (int, error) {
	if err := validateIdents(collection); err != nil {
		return 0, err
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM "+quote(collection)).Scan(&n); err != nil {
		return 0, &db.Error{Op: db.OpCount, Err: err}
	}
	return n, nil
}

// selectList returns seq, id and the requested attribute columns (all non-vector columns when empty).
func selectList(fields []string) string {
	if len(fields) == 0 {
		return "*"
	}
	cols := []string{quote(colSeq), quote(colID)}
	for _, f := range fields {
		cols = append(cols, quote(f))
	}
	return strings.Join(cols, ", ")
}

func scanEntries(rows *sql.Rows) ([]db.Entry, error) {
	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var entries []db.Entry
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}

		e := db.Entry{Fields: make(map[string]string, len(cols))}
		for i, c := range cols {
			switch c {
			case colEmbedding:
				continue
			case colSeq:
				if n, ok := vals[i].(int64); ok {
					e.Seq = n
				}
			case colID:
				e.ID = asString(vals[i])
			case colDistance:
				if d, ok := vals[i].(float64); ok {
					e.Distance = d
				}
			default:
				if vals[i] != nil {
					e.Fields[c] = asString(vals[i])
				}
			}
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

func asString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case []byte:
		return string(t)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
