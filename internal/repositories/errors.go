// Package repositories defines data-access interfaces for the catalog
// together with GORM-backed and in-memory implementations.
package repositories

import "errors"

// ErrNotFound is returned when a lookup matches no record. Handlers
// translate it into an HTTP 404 response with errors.Is.
var ErrNotFound = errors.New("record not found")
