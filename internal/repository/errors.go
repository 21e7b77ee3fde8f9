package repository

import "errors"

// ErrNotFound is returned by all repositories when no record matches the
// query. Callers should compare with errors.Is.
var ErrNotFound = errors.New("repository: record not found")
