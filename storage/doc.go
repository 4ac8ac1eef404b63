/*
Package storage implements the RequestStore persistence contract.

Two backends are provided: a durable SQLite backend used in production and a
mutex-guarded in-memory backend for tests and development. Both enforce the
same lifecycle invariants: request identifiers are never reused, key rows are
insert-only, and a terminal request status is never overwritten.

Backends are created through NewRequestStore from a location URI, so the
storage choice is a deployment concern rather than a code one.
*/
package storage
