package interfaces

import "context"

// RequestStore is the persistence contract for validator requests and their
// generated keys. Implementations must provide per-operation atomicity: a
// status update or key append either fully happens or not at all, so a reader
// never observes a successful status before all of its keys are durable
// (callers only mark successful after the final append returns).
//
// Reads of an unknown request identifier fail with ErrRequestNotFound.
type RequestStore interface {
	// CreateRequest persists a new request. Fails with ErrRequestExists if
	// the identifier is already taken.
	CreateRequest(ctx context.Context, req *ValidatorRequest) error

	// GetRequest returns the request for the given identifier.
	GetRequest(ctx context.Context, id RequestID) (*ValidatorRequest, error)

	// UpdateStatus transitions a request's status. Transitions out of a
	// terminal status fail with ErrAlreadyTerminal. errorMessage is stored
	// only alongside StatusFailed and must be empty otherwise.
	UpdateStatus(ctx context.Context, id RequestID, status RequestStatus, errorMessage string) error

	// AppendKey stores one generated key for a request. Keys are
	// insert-only; the (request, sequence index) pair must be unique.
	AppendKey(ctx context.Context, key *GeneratedKey) error

	// ListKeys returns all keys for a request ordered by sequence index.
	ListKeys(ctx context.Context, id RequestID) ([]GeneratedKey, error)

	// Ping verifies the underlying storage is reachable.
	Ping(ctx context.Context) error

	// Close releases storage resources.
	Close() error
}
