// Package source fetches package content at a specific revision from the
// upstream version-control host. Revisions are integers assigned by the
// upstream and monotonically increasing per package.
package source

import (
	"context"
	"errors"
)

// ErrSourceUnavailable is returned when the upstream host cannot be reached
// or answers with a server error.
var ErrSourceUnavailable = errors.New("source unavailable")

// ErrRevisionNotFound is returned when the requested revision does not exist
// for the package.
var ErrRevisionNotFound = errors.New("revision not found")

// ErrPackageNotFound is returned when the package does not exist upstream.
var ErrPackageNotFound = errors.New("package not found")

// File is one file of a fetched package.
type File struct {
	// Path is the file path relative to the package root.
	Path string

	// Body is the raw file content.
	Body []byte
}

// PackageContent is the materialized content of a package at one revision.
type PackageContent struct {
	Name     string
	Revision int
	Files    []File
}

// Fetcher materializes package content and resolves revisions. Fetch may be
// slow (seconds to minutes for large dictionaries); callers run it off the
// request path.
type Fetcher interface {
	// LatestRevision resolves the current head revision of a package.
	LatestRevision(ctx context.Context, name string) (int, error)

	// Fetch downloads the package files present at the given revision whose
	// paths satisfy keep. Passing a nil keep fetches every file.
	Fetch(ctx context.Context, name string, revision int, keep func(path string) bool) (*PackageContent, error)
}
