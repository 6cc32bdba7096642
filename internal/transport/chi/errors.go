package chi

import (
	"context"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/kailas-cloud/graphvec/internal/domain"
)

type errorMapping struct {
	sentinel error
	status   int
	code     ErrorCode
	// expose returns the full error text; it carries the offending field or dimensions.
	expose bool
}

var errorMappings = []errorMapping{
	{domain.ErrUnknownCollectionType, http.StatusBadRequest, CodeUnknownCollectionType, true},
	{domain.ErrMissingField, http.StatusBadRequest, CodeMissingField, true},
	{domain.ErrUnknownField, http.StatusBadRequest, CodeUnknownField, true},
	{domain.ErrFieldTooLong, http.StatusBadRequest, CodeFieldTooLong, true},
	{domain.ErrDimensionMismatch, http.StatusUnprocessableEntity, CodeDimensionMismatch, true},
	{domain.ErrNotConnected, http.StatusServiceUnavailable, CodeNotConnected, false},
	{domain.ErrEmbeddingService, http.StatusBadGateway, CodeEmbeddingService, false},
	{domain.ErrVectorService, http.StatusServiceUnavailable, CodeVectorService, false},
	{context.DeadlineExceeded, http.StatusGatewayTimeout, CodeTimeout, false},
}

// classify maps err to a status and a client-safe envelope.
func classify(err error) (int, ErrorResponse) {
	for _, m := range errorMappings {
		if !errors.Is(err, m.sentinel) {
			continue
		}
		msg := m.sentinel.Error()
		if m.expose {
			msg = err.Error()
		}
		return m.status, ErrorResponse{Code: m.code, Message: msg}
	}
	return http.StatusInternalServerError, ErrorResponse{Code: CodeInternal, Message: "internal error"}
}

func (s *Server) handleDomainError(w http.ResponseWriter, r *http.Request, err error) {
	status, resp := classify(err)
	log := s.requestLogger(r)
	if status >= http.StatusInternalServerError {
		log.Error("Request failed", zap.Int("status", status), zap.Error(err))
	} else {
		log.Warn("Request rejected", zap.Int("status", status), zap.Error(err))
	}
	writeJSON(w, status, resp)
}

func writeError(w http.ResponseWriter, status int, code ErrorCode, message string) {
	writeJSON(w, status, ErrorResponse{Code: code, Message: message})
}
