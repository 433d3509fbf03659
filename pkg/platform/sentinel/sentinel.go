package sentinel

import "errors"

// Sentinel errors for storage-layer facts. Stores return these (optionally
// wrapped) so services can translate them into domain error codes without
// each store knowing the taxonomy.
//
// These represent factual states about records, not validation failures:
// - ErrNotFound: record does not exist in the store
// - ErrConflict: versioned update lost a race against another writer
// - ErrAlreadyUsed: single-use resource (registration code) already consumed
// - ErrDuplicate: a record for this key already exists
// - ErrInvalidState: record in wrong state for the requested mutation
// - ErrUnavailable: backing service temporarily unreachable
//
// For validation of inputs, use pkg/domain-errors directly.
var (
	ErrNotFound     = errors.New("not found")
	ErrConflict     = errors.New("conflict")
	ErrAlreadyUsed  = errors.New("already used")
	ErrDuplicate    = errors.New("duplicate")
	ErrInvalidState = errors.New("invalid state")
	ErrUnavailable  = errors.New("unavailable")
)
