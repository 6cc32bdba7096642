package db

import "errors"

// Sentinel errors for database operations.
var (
	ErrKeyNotFound        = errors.New("db: key not found")
	ErrCollectionNotFound = errors.New("db: collection not found")
	ErrCollectionExists   = errors.New("db: collection already exists")
	ErrInvalidIdentifier  = errors.New("db: invalid identifier")
	ErrInvalidQuery       = errors.New("db: invalid query")
)

// Op constants name the backend operation for error context.
const (
	OpPing     = "PING"
	OpCreate   = "CREATE"
	OpDrop     = "DROP"
	OpExists   = "EXISTS"
	OpInsert   = "INSERT"
	OpDelete   = "DELETE"
	OpTruncate = "TRUNCATE"
	OpSearch   = "SEARCH"
	OpFind     = "FIND"
	OpCount    = "COUNT"
	OpGet      = "GET"
	OpSet      = "SET"
	OpSequence = "SEQUENCE"
)

// Error wraps an underlying error with the operation name for diagnostics.
type Error struct {
	Op  string
	Err error
}

func (e *Error) Error() string { return e.Op + ": " + e.Err.Error() }
func (e *Error) Unwrap() error { return e.Err }

// IsBackendError reports whether err came from the backend itself rather than from input validation.
func IsBackendError(err error) bool {
	var e *Error
	return errors.As(err, &e)
}

// IsTransient reports whether a backend error may succeed on retry: anything the backend
// returned other than a missing or duplicate collection or a rejected query.
func IsTransient(err error) bool {
	if !IsBackendError(err) {
		return false
	}
	return !errors.Is(err, ErrCollectionNotFound) &&
		!errors.Is(err, ErrCollectionExists) &&
		!errors.Is(err, ErrInvalidIdentifier) &&
		!errors.Is(err, ErrInvalidQuery) &&
		!errors.Is(err, ErrKeyNotFound)
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isSpecial := r == '_' || r == ':' || r == '-'
		if !isAlpha && !isDigit && !isSpecial {
			return false
		}
	}
	return true
}
