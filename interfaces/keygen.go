package interfaces

import "context"

// KeyGenerator produces validator keys. Implementations may be slow (real
// key-derivation hardware is throttled) and may fail; failures should wrap
// ErrGenerationFailed so callers can classify them.
type KeyGenerator interface {
	// GenerateKey produces one opaque validator key string. Honors context
	// cancellation while waiting on pacing or hardware.
	GenerateKey(ctx context.Context) (string, error)
}
