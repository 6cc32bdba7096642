package redis

import (
	"cmp"
	"context"
	"fmt"
	"math"
	"slices"
	"strconv"
	"strings"

	"github.com/redis/rueidis"

	"github.com/kailas-cloud/graphvec/internal/db"
)

// knnTieSlack is how many extra neighbours SearchKNN fetches so that rows tied
// at the K-th distance can be reordered by insertion sequence. Ties wider than
// the slack keep the backend's order.
const knnTieSlack = 16

// SearchKNN runs a KNN vector similarity search via FT.SEARCH.
// Entries come back by ascending distance, then insertion sequence.
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

	fetch := q.K + knnTieSlack
	queryStr := fmt.Sprintf("*=>[KNN %d @%s $BLOB]", fetch, fieldVector)
	args := []string{s.indexName(q.Collection), queryStr}

	if len(q.Fields) > 0 {
		ret := append([]string{fieldSeq, fieldScore}, q.Fields...)
		args = append(args, "RETURN", strconv.Itoa(len(ret)))
		args = append(args, ret...)
	}

	args = append(args,
		"PARAMS", "2", "BLOB", vectorToBytes(q.Vector),
		"LIMIT", "0", strconv.Itoa(fetch),
		"DIALECT", "2",
	)

	cmd := s.b().Arbitrary("FT.SEARCH").Args(args...).Build()
	raw, err := s.do(ctx, cmd).ToArray()
	if err != nil {
		return nil, &db.Error{Op: db.OpSearch, Err: err}
	}

	entries, err := s.parseKNNResult(q.Collection, raw)
	if err != nil {
		return nil, err
	}
	slices.SortStableFunc(entries, func(a, b db.Entry) int {
		if c := cmp.Compare(a.Distance, b.Distance); c != 0 {
			return c
		}
		return cmp.Compare(a.Seq, b.Seq)
	})
	if len(entries) > q.K {
		entries = entries[:q.K]
	}
	return entries, nil
}

func (s *Store) parseKNNResult(collection string, raw []rueidis.RedisMessage) ([]db.Entry, error) {
	if len(raw) == 0 {
		return nil, nil
	}

	total, err := raw[0].AsInt64()
	if err != nil {
		return nil, fmt.Errorf("parse total: %w", err)
	}
	if total == 0 {
		return nil, nil
	}

	entries := make([]db.Entry, 0, total)
	// 2-stride: [total, key1, fields1, key2, fields2, ...]
	for i := 1; i+1 < len(raw); i += 2 {
		key, err := raw[i].ToString()
		if err != nil {
			continue
		}

		fields, err := raw[i+1].ToArray()
		if err != nil {
			continue
		}

		pairs := parseFieldPairs(fields)
		entry := s.entryFromHash(collection, key, pairs)
		if scoreStr, ok := pairs[fieldScore]; ok {
			if sq, err := strconv.ParseFloat(scoreStr, 64); err == nil {
				// L2 scores are squared distances.
				entry.Distance = math.Sqrt(max(0, sq))
			}
		}

		entries = append(entries, entry)
	}

	return entries, nil
}

func parseFieldPairs(fields []rueidis.RedisMessage) map[string]string {
	m := make(map[string]string, len(fields)/2)
	for j := 0; j+1 < len(fields); j += 2 {
		name, err := fields[j].ToString()
		if err != nil {
			continue
		}
		value, err := fields[j+1].ToString()
		if err != nil {
			continue
		}
		m[name] = value
	}
	return m
}

var tagEscaper = strings.NewReplacer(
	`\`, `\\`,
	",", "\\,",
	".", "\\.",
	"<", "\\<",
	">", "\\>",
	"{", "\\{",
	"}", "\\}",
	"[", "\\[",
	"]", "\\]",
	"\"", "\\\"",
	"'", "\\'",
	":", "\\:",
	";", "\\;",
	"!", "\\!",
	"@", "\\@",
	"#", "\\#",
	"$", "\\$",
	"%", "\\%",
	"^", "\\^",
	"&", "\\&",
	"*", "\\*",
	"(", "\\(",
	")", "\\)",
	"-", "\\-",
	"+", "\\+",
	"=", "\\=",
	"~", "\\~",
	"|", "\\|",
	"/", "\\/",
	" ", "\\ ",
)

func vectorToBytes(v []float32) string {
	return rueidis.BinaryString(db.EncodeVector(v))
}
