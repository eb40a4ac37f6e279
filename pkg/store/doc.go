// Package store owns the single SQLite connection of the service and
// serializes every query through a FIFO gate with a bounded wait. It also
// provides the cat fact and subscriber repository operations and the embedded
// schema migrations.
package store
