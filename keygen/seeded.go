package keygen

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"golang.org/x/crypto/hkdf"

	"github.com/ruteri/validator-provisioning-service/interfaces"
)

// SeededKeyGenerator derives keys deterministically from a master seed,
// suitable for development environments that need reproducible keys across
// restarts. Key n is HKDF-SHA256(seed, info="validator-key-n").
type SeededKeyGenerator struct {
	seed  []byte
	delay time.Duration

	mu      sync.Mutex
	counter uint64
}

// NewSeededKeyGenerator creates a deterministic generator. The seed must be
// at least 32 bytes long.
func NewSeededKeyGenerator(seed []byte, delay time.Duration) (*SeededKeyGenerator, error) {
	if len(seed) < 32 {
		return nil, errors.New("seed must be at least 32 bytes")
	}
	s := make([]byte, len(seed))
	copy(s, seed)
	return &SeededKeyGenerator{seed: s, delay: delay}, nil
}

// GenerateKey derives the next key in the sequence.
func (g *SeededKeyGenerator) GenerateKey(ctx context.Context) (string, error) {
	if g.delay > 0 {
		timer := time.NewTimer(g.delay)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			return "", fmt.Errorf("%w: %w", interfaces.ErrGenerationFailed, ctx.Err())
		}
	}

	g.mu.Lock()
	n := g.counter
	g.counter++
	g.mu.Unlock()

	info := fmt.Sprintf("validator-key-%d", n)
	reader := hkdf.New(sha256.New, g.seed, nil, []byte(info))

	buf := make([]byte, 16)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return "", fmt.Errorf("%w: %w", interfaces.ErrGenerationFailed, err)
	}

	return hex.EncodeToString(buf), nil
}
