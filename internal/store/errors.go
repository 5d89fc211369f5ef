package store

import "errors"

// ErrConflict is returned when a write collides with an existing unique key.
var ErrConflict = errors.New("store: unique key conflict")
