package interfaces

import (
	"errors"
	"fmt"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
)

// Sentinel errors shared across the service. Handlers map these onto HTTP
// status codes, everything else is a storage or internal failure.
var (
	// ErrInvalidArgument indicates malformed caller input. Rejected before
	// any state is persisted.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrRequestNotFound indicates an unknown request identifier.
	ErrRequestNotFound = errors.New("request not found")

	// ErrRequestExists indicates an identifier collision on create.
	ErrRequestExists = errors.New("request already exists")

	// ErrAlreadyTerminal indicates an attempt to transition a request out
	// of a terminal status.
	ErrAlreadyTerminal = errors.New("request already in terminal status")

	// ErrGenerationFailed indicates the key generator could not produce a
	// key. Recorded on the request, never returned to the submitter.
	ErrGenerationFailed = errors.New("key generation failed")
)

// RequestID uniquely identifies a validator creation request.
type RequestID string

// NewRequestID generates a fresh random request identifier.
func NewRequestID() RequestID {
	return RequestID(uuid.NewString())
}

// String returns the identifier as a plain string.
func (id RequestID) String() string {
	return string(id)
}

// FeeRecipient is an Ethereum address string receiving validator rewards.
// Format: 0x followed by 40 hexadecimal characters.
type FeeRecipient string

// NewFeeRecipient validates and returns a fee recipient address.
func NewFeeRecipient(s string) (FeeRecipient, error) {
	if !common.IsHexAddress(s) {
		return "", fmt.Errorf("%w: fee recipient must be 0x followed by 40 hex characters, got %q", ErrInvalidArgument, s)
	}
	return FeeRecipient(s), nil
}

// String returns the address as a plain string.
func (f FeeRecipient) String() string {
	return string(f)
}

// RequestStatus is the lifecycle state of a validator request.
type RequestStatus string

const (
	// StatusStarted is set synchronously on submission, before any key is
	// generated.
	StatusStarted RequestStatus = "started"

	// StatusSuccessful means all requested keys were generated and stored.
	StatusSuccessful RequestStatus = "successful"

	// StatusFailed means key generation aborted; the request records the
	// error and keeps any keys generated before the failure.
	StatusFailed RequestStatus = "failed"
)

// Terminal reports whether the status admits no further transitions.
func (s RequestStatus) Terminal() bool {
	return s == StatusSuccessful || s == StatusFailed
}

// Valid reports whether the status is one of the known states.
func (s RequestStatus) Valid() bool {
	switch s {
	case StatusStarted, StatusSuccessful, StatusFailed:
		return true
	default:
		return false
	}
}

// ValidatorRequest is one user-initiated batch ask for N validator keys.
// Identity fields are immutable after creation; only the lifecycle engine
// mutates status and error message.
type ValidatorRequest struct {
	ID            RequestID
	NumValidators int
	FeeRecipient  FeeRecipient
	Status        RequestStatus
	ErrorMessage  string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// GeneratedKey is a single validator key produced for a request. Rows are
// insert-only: written once during processing, never mutated.
type GeneratedKey struct {
	RequestID     RequestID
	SequenceIndex int
	KeyValue      string
	FeeRecipient  FeeRecipient
	CreatedAt     time.Time
}

// RequestView is the externally visible state of a request. Keys are
// populated only for successful requests, ordered by sequence index.
// ErrorMessage is populated only for failed requests.
type RequestView struct {
	ID           RequestID
	Status       RequestStatus
	Keys         []string
	ErrorMessage string
}
