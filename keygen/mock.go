package keygen

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"log/slog"
	"time"

	"github.com/ruteri/validator-provisioning-service/interfaces"
)

// DefaultKeyDelay models the pacing of throttled key-derivation hardware.
const DefaultKeyDelay = 20 * time.Millisecond

// MockKeyGenerator produces random hex key strings with a fixed pacing delay
// per key. It stands in for real validator key derivation.
type MockKeyGenerator struct {
	delay time.Duration
	log   *slog.Logger
}

// NewMockKeyGenerator creates a mock generator with the given pacing delay.
// A zero delay disables pacing, which is what tests want.
func NewMockKeyGenerator(delay time.Duration, log *slog.Logger) *MockKeyGenerator {
	return &MockKeyGenerator{delay: delay, log: log}
}

// GenerateKey produces one random 32-character hex key after the pacing
// delay elapses. Returns early if the context is canceled during pacing.
func (g *MockKeyGenerator) GenerateKey(ctx context.Context) (string, error) {
	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %w", interfaces.ErrGenerationFailed, ctx.Err())
		}
	}

	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("%w: %w", interfaces.ErrGenerationFailed, err)
	}

	key := hex.EncodeToString(buf)
	g.log.Debug("Generated validator key", slog.String("keyPrefix", key[:8]))
	return key, nil
}
