// Package graph holds the declaration/reference graph built from compiler index facts.
//
// # Ownership Model
//
// Declarations and references live in arenas addressed by DeclID and RefID.
// Parent/child edges are single-owner arena edges; references carry plain
// USR lookups with no ownership.
//
// # Thread Safety
//
// Ingestion mutates the graph from many goroutines. Every mutating method comes
// in a lock-acquiring form and a WithoutLock form; callers batching several
// mutations hold the lock once through WithLock. Normalization, retention and
// marking run single-threaded over the completed graph.
package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph operations.
var (
	// ErrDeclarationNotFound is returned when an ID or USR has no declaration.
	ErrDeclarationNotFound = errors.New("declaration not found")

	// ErrReferenceNotFound is returned when a reference ID is not in the arena.
	ErrReferenceNotFound = errors.New("reference not found")

	// ErrEmptyUsrs is returned when adding a declaration without any USR.
	ErrEmptyUsrs = errors.New("declaration has no usrs")

	// ErrIntegrity marks a violated graph invariant. Analysis cannot continue safely.
	ErrIntegrity = errors.New("graph integrity violation")
)

// IntegrityError describes an invariant a pass found broken.
type IntegrityError struct {
	Pass        string
	Declaration *Declaration
	Detail      string
}

// NewIntegrityError creates an IntegrityError for pass.
func NewIntegrityError(pass string, decl *Declaration, format string, args ...any) *IntegrityError {
	return &IntegrityError{Pass: pass, Declaration: decl, Detail: fmt.Sprintf(format, args...)}
}

func (e *IntegrityError) Error() string {
	if e.Declaration != nil {
		return fmt.Sprintf("%s: %s %q at %s: %s", e.Pass, e.Declaration.Kind, e.Declaration.Name, e.Declaration.Location, e.Detail)
	}
	return fmt.Sprintf("%s: %s", e.Pass, e.Detail)
}

// Unwrap allows errors.Is(err, ErrIntegrity).
func (e *IntegrityError) Unwrap() error {
	return ErrIntegrity
}
