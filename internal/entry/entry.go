// Package entry defines the persisted statistic record and the computation
// key that identifies one dedupable unit of work.
package entry

import "time"

// Entry is an immutable record of one computed statistic value.
// Rows are appended, never mutated or deleted; recomputation of the same
// key produces a new row and lookups pick the newest Created among exact
// matches.
type Entry struct {
	// ID is the monotonic surrogate key assigned by the store.
	ID int64 `json:"-"`

	// Requested is the timestamp the originating request arrived.
	Requested time.Time `json:"requested"`

	// Created is the timestamp the value was computed and persisted.
	Created time.Time `json:"created"`

	// Name is the package identifier, e.g. "apertium-eng-spa".
	Name string `json:"name"`

	// Revision is the upstream-assigned integer revision the value was
	// computed at. Ordering is defined by the upstream source, not Created.
	Revision int `json:"revision"`

	// Path is the file within the package the statistic applies to.
	Path string `json:"path"`

	// FileKind classifies the analyzed artifact.
	FileKind FileKind `json:"file_kind"`

	// StatKind names the computed metric.
	StatKind StatKind `json:"stat_kind"`

	// Value is the serialized result, typically numeric.
	Value string `json:"value"`
}

// Key identifies one dedupable unit of computation work. Two requests with
// an identical key must share one computation outcome.
//
// Path is empty at request granularity: a request targets every file of the
// requested kind in the package, and the concrete paths are only known once
// the package listing has been fetched.
type Key struct {
	Name     string
	Revision int
	Path     string
	FileKind FileKind
	StatKind StatKind
}
