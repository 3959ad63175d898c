// Package stats provides the pluggable statistic-computation capability.
// Each Computer handles one file kind and produces a batch of stat kinds in
// a single pass, so one computation can satisfy several metrics at once.
package stats

import (
	"context"
	"errors"
	"fmt"

	"github.com/apertium/apertium-stats-service/internal/entry"
)

// ErrComputationFailed is returned when a computer cannot produce values,
// typically because the input is malformed.
var ErrComputationFailed = errors.New("computation failed")

// ErrUnsupportedFileKind is returned when no computer is registered for the
// requested file kind.
var ErrUnsupportedFileKind = errors.New("unsupported file kind")

// ErrDuplicateComputer is returned when two computers claim the same file kind.
var ErrDuplicateComputer = errors.New("duplicate computer for file kind")

// Values maps computed stat kinds to their serialized values.
type Values map[entry.StatKind]string

// Computer computes statistics over the content of one file kind.
type Computer interface {
	// Kinds lists the file kinds this computer handles.
	Kinds() []entry.FileKind

	// Stats lists the stat kinds the computer produces for a file.
	Stats() []entry.StatKind

	// Compute extracts all supported statistics from body in one pass.
	// path is used for error reporting only.
	Compute(ctx context.Context, path string, body []byte) (Values, error)
}

// Registry dispatches computations to the Computer registered for a file kind.
type Registry struct {
	byKind map[entry.FileKind]Computer
}

// NewRegistry creates a registry from computers, rejecting duplicate kinds.
func NewRegistry(computers ...Computer) (*Registry, error) {
	byKind := make(map[entry.FileKind]Computer, len(computers))

	for _, c := range computers {
		for _, kind := range c.Kinds() {
			if _, exists := byKind[kind]; exists {
				return nil, fmt.Errorf("%w: %s", ErrDuplicateComputer, kind)
			}

			byKind[kind] = c
		}
	}

	return &Registry{byKind: byKind}, nil
}

// Default returns a registry with every built-in computer registered.
func Default() *Registry {
	reg, err := NewRegistry(
		&MonodixComputer{},
		&BidixComputer{},
		&TransferComputer{},
		&RlxComputer{},
		&TwolComputer{},
		&LexcComputer{},
		&LexdComputer{},
	)
	if err != nil {
		// Built-in kinds are disjoint; a duplicate is a programming error.
		panic(err)
	}

	return reg
}

// For returns the computer registered for kind.
func (r *Registry) For(kind entry.FileKind) (Computer, error) {
	c, ok := r.byKind[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFileKind, kind)
	}

	return c, nil
}

// Supports reports whether statKind is among the stats produced for fileKind.
func (r *Registry) Supports(fileKind entry.FileKind, statKind entry.StatKind) bool {
	c, ok := r.byKind[fileKind]
	if !ok {
		return false
	}

	for _, s := range c.Stats() {
		if s == statKind {
			return true
		}
	}

	return false
}
