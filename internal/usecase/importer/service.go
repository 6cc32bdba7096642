// Package importer loads GraphRAG parquet exports into typed collections.
package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"github.com/parquet-go/parquet-go"
	"go.uber.org/zap"

	"github.com/kailas-cloud/graphvec/internal/domain/collection"
	"github.com/kailas-cloud/graphvec/internal/domain/collection/field"
)

// DefaultBatchSize is the number of records sent per BatchInsert.
const DefaultBatchSize = 1000

const (
	idColumn      = "id"
	summaryColumn = "summary"
	readBuffer    = 256
)

// FileMapping routes GraphRAG output files to the collection they populate.
var FileMapping = map[string]collection.Type{
	"relationships.parquet":     collection.Relationship,
	"text_units.parquet":        collection.TextUnit,
	"entities.parquet":          collection.EntityTitle,
	"communities.parquet":       collection.CommunityTitle,
	"community_reports.parquet": collection.EntityDescription,
}

// Service reads parquet files and inserts their rows in batches.
type Service struct {
	inserter  Inserter
	registry  *collection.Registry
	batchSize int
	logger    *zap.Logger
}

// New creates an importer with DefaultBatchSize.
func New(inserter Inserter, registry *collection.Registry, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		inserter:  inserter,
		registry:  registry,
		batchSize: DefaultBatchSize,
		logger:    logger,
	}
}

// WithBatchSize overrides the insert batch size. Non-positive values are ignored.
func (s *Service) WithBatchSize(n int) *Service {
	if n > 0 {
		s.batchSize = n
	}
	return s
}

// ImportDir imports every mapped parquet file in dir, in name order, and returns the number of
// records inserted per file name. Unmapped files are logged and skipped. On error the counts of
// files imported so far are returned alongside it.
func (s *Service) ImportDir(ctx context.Context, dir string) (map[string]int, error) {
	files, err := filepath.Glob(filepath.Join(dir, "*.parquet"))
	if err != nil {
		return nil, fmt.Errorf("glob parquet files: %w", err)
	}
	sort.Strings(files)

	counts := make(map[string]int)
	for _, path := range files {
		name := filepath.Base(path)
		t, ok := FileMapping[name]
		if !ok {
			s.logger.Info("Skipping unmapped parquet file", zap.String("file", name))
			continue
		}
		n, err := s.ImportFile(ctx, path, t)
		if err != nil {
			return counts, fmt.Errorf("import %s: %w", name, err)
		}
		counts[name] = n
	}
	return counts, nil
}

// ImportFile inserts every row of the parquet file at path into collection t.
func (s *Service) ImportFile(ctx context.Context, path string, t collection.Type) (int, error) {
	schema, err := s.registry.Resolve(t)
	if err != nil {
		return 0, err
	}

	h, err := openParquet(path)
	if err != nil {
		return 0, err
	}
	defer h.Close()

	cols := resolveColumns(h.pf, schema)
	for name, idx := range cols {
		if idx >= 0 {
			continue
		}
		if name == field.SourceID {
			name = idColumn
		}
		return 0, fmt.Errorf("%s: column %q not found", filepath.Base(path), name)
	}

	total := 0
	batch := make([]collection.Record, 0, s.batchSize)
	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		n, err := s.inserter.BatchInsert(ctx, t, batch)
		if err != nil {
			return fmt.Errorf("insert rows %d-%d: %w", total, total+len(batch)-1, err)
		}
		total += n
		batch = batch[:0]
		return nil
	}

	buf := make([]parquet.Row, readBuffer)
	for _, rg := range h.pf.RowGroups() {
		rows := parquet.NewRowGroupReader(rg)
		for {
			n, readErr := rows.ReadRows(buf)
			for i := 0; i < n; i++ {
				batch = append(batch, toRecord(buf[i], cols))
				if len(batch) == s.batchSize {
					if err := flush(); err != nil {
						return total, err
					}
				}
			}
			if readErr != nil {
				if errors.Is(readErr, io.EOF) {
					break
				}
				return total, fmt.Errorf("read rows: %w", readErr)
			}
		}
	}
	if err := flush(); err != nil {
		return total, err
	}

	s.logger.Info("Imported parquet file",
		zap.String("file", filepath.Base(path)),
		zap.String("collection", string(t)),
		zap.Int("records", total),
	)
	return total, nil
}

// resolveColumns maps each record field to its leaf column index, -1 when absent.
// The id column feeds source_id; a missing description falls back to summary.
func resolveColumns(pf *parquet.File, schema collection.Schema) map[string]int {
	byName := make(map[string]int)
	for i, path := range pf.Schema().Columns() {
		if len(path) == 0 {
			continue
		}
		if _, dup := byName[path[0]]; !dup {
			byName[path[0]] = i
		}
	}
	lookup := func(name string) int {
		if i, ok := byName[name]; ok {
			return i
		}
		return -1
	}

	cols := map[string]int{field.SourceID: lookup(idColumn)}
	for _, name := range schema.SourceFields() {
		cols[name] = lookup(name)
	}
	if _, ok := cols["description"]; ok && cols["description"] < 0 {
		cols["description"] = lookup(summaryColumn)
	}
	return cols
}

// toRecord extracts the mapped columns of row. Null values become empty strings.
// Every column in cols is expected to resolve.
func toRecord(row parquet.Row, cols map[string]int) collection.Record {
	byColumn := make(map[int]string, len(cols))
	for _, v := range row {
		if v.IsNull() {
			continue
		}
		byColumn[v.Column()] = v.String()
	}

	fields := make(map[string]string, len(cols))
	for name, idx := range cols {
		fields[name] = byColumn[idx]
	}
	return collection.NewRecord(fields)
}

type parquetHandle struct {
	pf   *parquet.File
	file *os.File
}

func (h *parquetHandle) Close() {
	_ = h.file.Close()
}

func openParquet(path string) (*parquetHandle, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}

	stat, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("stat: %w", err)
	}

	pf, err := parquet.OpenFile(f, stat.Size())
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("open parquet: %w", err)
	}
	return &parquetHandle{pf: pf, file: f}, nil
}
