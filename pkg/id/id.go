// Package id generates time-sortable run identifiers.
package id

import "github.com/oklog/ulid/v2"

// New returns a fresh ULID string. IDs created within the same millisecond
// remain lexicographically increasing.
func New() string {
	return ulid.Make().String()
}
