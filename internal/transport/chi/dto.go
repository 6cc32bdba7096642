package chi

import "github.com/kailas-cloud/graphvec"

// ErrorCode is the machine-readable part of an error response.
type ErrorCode string

const (
	CodeBadRequest            ErrorCode = "bad_request"
	CodeUnauthorized          ErrorCode = "unauthorized"
	CodeUnknownCollectionType ErrorCode = "unknown_collection_type"
	CodeMissingField          ErrorCode = "missing_field"
	CodeUnknownField          ErrorCode = "unknown_field"
	CodeFieldTooLong          ErrorCode = "field_too_long"
	CodeDimensionMismatch     ErrorCode = "dimension_mismatch"
	CodeEmbeddingService      ErrorCode = "embedding_service_error"
	CodeVectorService         ErrorCode = "vector_service_error"
	CodeNotConnected          ErrorCode = "not_connected"
	CodeTimeout               ErrorCode = "timeout"
	CodeInternal              ErrorCode = "internal_error"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Code    ErrorCode `json:"code"`
	Message string    `json:"message"`
}

type insertRequest struct {
	Fields  map[string]string `json:"fields"`
	Vector  []float32         `json:"vector,omitempty"`
	Records []graphvec.Record `json:"records,omitempty"`
}

type countResponse struct {
	Inserted *int `json:"inserted,omitempty"`
	Deleted  *int `json:"deleted,omitempty"`
}

type searchRequest struct {
	Query   string      `json:"query"`
	Vector  []float32   `json:"vector"`
	Vectors [][]float32 `json:"vectors"`
	Limit   int         `json:"limit"`
}

type multiSearchRequest struct {
	Collections  []string `json:"collections"`
	Query        string   `json:"query"`
	Limit        int      `json:"limit"`
	AllOrNothing *bool    `json:"all_or_nothing"`
}

type hitsResponse struct {
	Results []graphvec.Hit `json:"results"`
}

type batchHitsResponse struct {
	Results [][]graphvec.Hit `json:"results"`
}

type hybridResponse struct {
	Results []graphvec.Hit           `json:"results"`
	Errors  map[string]ErrorResponse `json:"errors,omitempty"`
}

type outcomeDTO struct {
	Hits  []graphvec.Hit `json:"hits"`
	Error *ErrorResponse `json:"error,omitempty"`
}

type multiSearchResponse struct {
	Results map[string]outcomeDTO `json:"results"`
}

type embedRequest struct {
	Input  string   `json:"input"`
	Inputs []string `json:"inputs"`
}

type embedResponse struct {
	Embedding  []float32   `json:"embedding,omitempty"`
	Embeddings [][]float32 `json:"embeddings,omitempty"`
	Dimension  int         `json:"dimension"`
}

type statsResponse struct {
	Collections []graphvec.Stats `json:"collections"`
}
