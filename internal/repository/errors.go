// Package repository defines the MySQL-backed stores used by the
// authentication core and the generic record handlers.  Sentinel errors in
// this file let the service and handler layers tell "no such row" apart
// from a store failure.
package repository

import "errors"

// ErrNotFound is returned when a point lookup matches no row.  Handlers
// should translate this into an HTTP 404 (or a 401 for session lookups).
var ErrNotFound = errors.New("not found")

// ErrEmailExists is returned when an insert violates the unique email key.
var ErrEmailExists = errors.New("email already exists")

// ErrInvalidTable is returned when a record table is not on the allow-list.
var ErrInvalidTable = errors.New("invalid table")

// ErrInvalidColumn is returned when a record payload names a column that is
// not a plain identifier.
var ErrInvalidColumn = errors.New("invalid column")

// mysqlDuplicateEntry is the server error number for a unique key violation.
const mysqlDuplicateEntry = 1062
