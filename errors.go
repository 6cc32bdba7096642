package graphvec

import "github.com/kailas-cloud/graphvec/internal/domain"

// Errors returned by Client operations. Match them with errors.Is.
var (
	ErrUnknownCollectionType = domain.ErrUnknownCollectionType
	ErrMissingField          = domain.ErrMissingField
	ErrUnknownField          = domain.ErrUnknownField
	ErrFieldTooLong          = domain.ErrFieldTooLong
	ErrDimensionMismatch     = domain.ErrDimensionMismatch
	ErrEmbeddingService      = domain.ErrEmbeddingService
	ErrVectorService         = domain.ErrVectorService
	ErrNotConnected          = domain.ErrNotConnected
)
