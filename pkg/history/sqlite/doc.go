// Package sqlite implements history.Store on an embedded SQLite database.
// The schema is created by migrations embedded in the binary and applied
// once per file on Open.
package sqlite
