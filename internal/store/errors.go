package store

import "errors"

// ErrNotFound is returned when a claim or relationship does not exist.
var ErrNotFound = errors.New("not found")
