package repositories

import "errors"

// ErrNotFound reports a row that does not exist, or exists under another
// party. The services package re-exports the same value so handlers and the
// assistant map both layers through a single errors.Is check.
var ErrNotFound = errors.New("not found")
