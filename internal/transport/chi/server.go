// Package chi serves the graphvec HTTP API.
package chi

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/kailas-cloud/graphvec"
	logpkg "github.com/kailas-cloud/graphvec/internal/logger"
	"github.com/kailas-cloud/graphvec/internal/metrics"
	healthuc "github.com/kailas-cloud/graphvec/internal/usecase/health"
)

const (
	defaultLimit = 10
	maxLimit     = 1000
	maxBodyBytes = 8 << 20
)

// Server exposes an API over HTTP.
type Server struct {
	api     API
	apiKeys []string
	logger  *zap.Logger
}

// NewServer creates an HTTP API server.
func NewServer(api API, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{api: api, logger: logger}
}

// WithAPIKeys enables bearer / X-API-Key authentication.
func (s *Server) WithAPIKeys(keys []string) *Server {
	s.apiKeys = keys
	return s
}

// Router builds the chi router with the full middleware stack.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(JSONRecoverer(s.logger))
	r.Use(chiMiddleware.RequestID)
	r.Use(RequestLogger(s.logger))
	r.Use(BearerAuthMiddleware(s.apiKeys))
	r.Use(metrics.Middleware())

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, CodeBadRequest, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, CodeBadRequest, "method not allowed")
	})

	r.Get("/health", s.HealthCheck)
	r.Get("/metrics", s.Metrics)

	r.Route("/collections/{type}", func(r chi.Router) {
		r.Post("/records", s.InsertRecords)
		r.Get("/records", s.GetRecords)
		r.Delete("/records", s.DeleteRecords)
		r.Delete("/", s.ClearCollection)
		r.Get("/stats", s.CollectionStats)
		r.Post("/search", s.SearchCollection)
	})
	r.Get("/stats", s.AllStats)
	r.Post("/search", s.SearchMultiple)
	r.Post("/search/hybrid", s.HybridSearch)
	r.Post("/embeddings", s.Embed)

	return r
}

// InsertRecords handles POST /collections/{type}/records.
func (s *Server) InsertRecords(w http.ResponseWriter, r *http.Request) {
	t, ok := s.collectionType(w, r)
	if !ok {
		return
	}
	var req insertRequest
	if !decode(w, r, &req) {
		return
	}

	var n int
	var err error
	switch {
	case req.Records != nil:
		n, err = s.api.BatchInsert(r.Context(), t, req.Records)
	case req.Fields != nil:
		n, err = s.api.Insert(r.Context(), t, graphvec.Record{Fields: req.Fields, Vector: req.Vector})
	default:
		writeError(w, http.StatusBadRequest, CodeBadRequest, `body needs "fields" or "records"`)
		return
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, countResponse{Inserted: &n})
}

// GetRecords handles GET /collections/{type}/records?source_id=&limit=.
func (s *Server) GetRecords(w http.ResponseWriter, r *http.Request) {
	t, ok := s.collectionType(w, r)
	if !ok {
		return
	}
	sourceID := r.URL.Query().Get("source_id")
	if sourceID == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "source_id query parameter is required")
		return
	}
	limit, ok := queryLimit(w, r)
	if !ok {
		return
	}

	hits, err := s.api.QueryBySourceID(r.Context(), t, sourceID, limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hitsResponse{Results: nonNil(hits)})
}

// DeleteRecords handles DELETE /collections/{type}/records?field=&value=.
func (s *Server) DeleteRecords(w http.ResponseWriter, r *http.Request) {
	t, ok := s.collectionType(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	fieldName, value := q.Get("field"), q.Get("value")
	if fieldName == "" || !q.Has("value") {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "field and value query parameters are required")
		return
	}

	n, err := s.api.Delete(r.Context(), t, fieldName, value)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Deleted: &n})
}

// ClearCollection handles DELETE /collections/{type}.
func (s *Server) ClearCollection(w http.ResponseWriter, r *http.Request) {
	t, ok := s.collectionType(w, r)
	if !ok {
		return
	}
	n, err := s.api.Clear(r.Context(), t)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, countResponse{Deleted: &n})
}

// CollectionStats handles GET /collections/{type}/stats.
func (s *Server) CollectionStats(w http.ResponseWriter, r *http.Request) {
	t, ok := s.collectionType(w, r)
	if !ok {
		return
	}
	stats, err := s.api.Stats(r.Context(), t)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, stats[0])
}

// AllStats handles GET /stats.
func (s *Server) AllStats(w http.ResponseWriter, r *http.Request) {
	stats, err := s.api.Stats(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, statsResponse{Collections: stats})
}

// SearchCollection handles POST /collections/{type}/search.
func (s *Server) SearchCollection(w http.ResponseWriter, r *http.Request) {
	t, ok := s.collectionType(w, r)
	if !ok {
		return
	}
	var req searchRequest
	if !decode(w, r, &req) {
		return
	}
	limit, ok := bodyLimit(w, req.Limit)
	if !ok {
		return
	}

	set := 0
	for _, given := range []bool{req.Query != "", req.Vector != nil, req.Vectors != nil} {
		if given {
			set++
		}
	}
	if set > 1 {
		writeError(w, http.StatusBadRequest, CodeBadRequest, `set only one of "query", "vector" or "vectors"`)
		return
	}
	if req.Vectors != nil {
		s.searchBatch(w, r, t, req.Vectors, limit)
		return
	}

	var hits []graphvec.Hit
	var err error
	switch {
	case req.Vector != nil:
		hits, err = s.api.SearchByEmbedding(r.Context(), t, req.Vector, limit)
	case req.Query != "":
		hits, err = s.api.SearchByText(r.Context(), t, req.Query, limit)
	default:
		writeError(w, http.StatusBadRequest, CodeBadRequest, `"query", "vector" or "vectors" is required`)
		return
	}
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, hitsResponse{Results: nonNil(hits)})
}

func (s *Server) searchBatch(
	w http.ResponseWriter, r *http.Request, t graphvec.CollectionType, vectors [][]float32, limit int,
) {
	if len(vectors) > maxLimit {
		writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf(`at most %d "vectors" per request`, maxLimit))
		return
	}
	lists, err := s.api.SearchByEmbeddings(r.Context(), t, vectors, limit)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}
	resp := batchHitsResponse{Results: make([][]graphvec.Hit, len(lists))}
	for i, hits := range lists {
		resp.Results[i] = nonNil(hits)
	}
	writeJSON(w, http.StatusOK, resp)
}

// SearchMultiple handles POST /search.
func (s *Server) SearchMultiple(w http.ResponseWriter, r *http.Request) {
	req, types, limit, ok := s.multiSearchRequest(w, r)
	if !ok {
		return
	}

	out, err := s.api.SearchMultipleCollections(r.Context(), types, req.Query, limit, searchOptions(req)...)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := multiSearchResponse{Results: make(map[string]outcomeDTO, len(out))}
	for t, o := range out {
		dto := outcomeDTO{Hits: nonNil(o.Hits)}
		if o.Err != nil {
			_, e := classify(o.Err)
			dto.Error = &e
			s.requestLogger(r).Warn("Collection search failed",
				zap.String("collection", string(t)),
				zap.Error(o.Err),
			)
		}
		resp.Results[string(t)] = dto
	}
	writeJSON(w, http.StatusOK, resp)
}

// HybridSearch handles POST /search/hybrid. Collections that failed are listed under "errors"
// next to the merged results of the others.
func (s *Server) HybridSearch(w http.ResponseWriter, r *http.Request) {
	req, types, limit, ok := s.multiSearchRequest(w, r)
	if !ok {
		return
	}

	merged, err := s.api.HybridSearch(r.Context(), types, req.Query, limit, searchOptions(req)...)
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	resp := hybridResponse{Results: nonNil(merged.Hits)}
	for t, ferr := range merged.Failed {
		if resp.Errors == nil {
			resp.Errors = make(map[string]ErrorResponse, len(merged.Failed))
		}
		_, e := classify(ferr)
		resp.Errors[string(t)] = e
		s.requestLogger(r).Warn("Collection search failed",
			zap.String("collection", string(t)),
			zap.Error(ferr),
		)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Embed handles POST /embeddings.
func (s *Server) Embed(w http.ResponseWriter, r *http.Request) {
	var req embedRequest
	if !decode(w, r, &req) {
		return
	}

	switch {
	case req.Inputs != nil:
		vecs, err := s.api.EmbedBatch(r.Context(), req.Inputs)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		dim := 0
		if len(vecs) > 0 {
			dim = len(vecs[0])
		}
		writeJSON(w, http.StatusOK, embedResponse{Embeddings: vecs, Dimension: dim})
	case req.Input != "":
		vec, err := s.api.Embed(r.Context(), req.Input)
		if err != nil {
			s.handleDomainError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, embedResponse{Embedding: vec, Dimension: len(vec)})
	default:
		writeError(w, http.StatusBadRequest, CodeBadRequest, `"input" or "inputs" is required`)
	}
}

// HealthCheck handles GET /health.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	report, err := s.api.Health(r.Context())
	if err != nil {
		s.handleDomainError(w, r, err)
		return
	}

	status := http.StatusOK
	if report.Status == healthuc.Unhealthy {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, report)
}

// Metrics handles GET /metrics.
func (s *Server) Metrics(w http.ResponseWriter, r *http.Request) {
	promhttp.Handler().ServeHTTP(w, r)
}

func (s *Server) multiSearchRequest(
	w http.ResponseWriter, r *http.Request,
) (multiSearchRequest, []graphvec.CollectionType, int, bool) {
	var req multiSearchRequest
	if !decode(w, r, &req) {
		return req, nil, 0, false
	}
	if req.Query == "" {
		writeError(w, http.StatusBadRequest, CodeBadRequest, `"query" is required`)
		return req, nil, 0, false
	}
	limit, ok := bodyLimit(w, req.Limit)
	if !ok {
		return req, nil, 0, false
	}

	types := make([]graphvec.CollectionType, 0, len(req.Collections))
	for _, name := range req.Collections {
		t, err := graphvec.ParseCollectionType(name)
		if err != nil {
			s.handleDomainError(w, r, err)
			return req, nil, 0, false
		}
		types = append(types, t)
	}
	return req, types, limit, true
}

func searchOptions(req multiSearchRequest) []graphvec.SearchOption {
	if req.AllOrNothing == nil {
		return nil
	}
	return []graphvec.SearchOption{graphvec.AllOrNothing(*req.AllOrNothing)}
}

func (s *Server) collectionType(w http.ResponseWriter, r *http.Request) (graphvec.CollectionType, bool) {
	t, err := graphvec.ParseCollectionType(chi.URLParam(r, "type"))
	if err != nil {
		s.handleDomainError(w, r, err)
		return "", false
	}
	return t, true
}

func (s *Server) requestLogger(r *http.Request) *zap.Logger {
	return logpkg.FromContextOr(r.Context(), s.logger)
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		msg := "invalid request body: " + err.Error()
		if errors.Is(err, io.EOF) {
			msg = "request body is empty"
		}
		writeError(w, http.StatusBadRequest, CodeBadRequest, msg)
		return false
	}
	return true
}

func bodyLimit(w http.ResponseWriter, limit int) (int, bool) {
	switch {
	case limit == 0:
		return defaultLimit, true
	case limit < 0 || limit > maxLimit:
		writeError(w, http.StatusBadRequest, CodeBadRequest, fmt.Sprintf("limit must be between 1 and %d", maxLimit))
		return 0, false
	}
	return limit, true
}

func queryLimit(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := r.URL.Query().Get("limit")
	if raw == "" {
		return defaultLimit, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		writeError(w, http.StatusBadRequest, CodeBadRequest, "limit must be an integer")
		return 0, false
	}
	return bodyLimit(w, n)
}

func nonNil(hits []graphvec.Hit) []graphvec.Hit {
	if hits == nil {
		return []graphvec.Hit{}
	}
	return hits
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
