package repositories

import "errors"

// ErrConflict reports that a conditional update matched no row: the value
// the caller based its write on has changed (or the row was tombstoned)
// since it was read.
var ErrConflict = errors.New("concurrent modification conflict")
