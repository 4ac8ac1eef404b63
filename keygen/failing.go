package keygen

import (
	"context"
	"fmt"
	"sync"

	"github.com/ruteri/validator-provisioning-service/interfaces"
)

// FailingKeyGenerator wraps another generator and fails on the n-th call
// (1-based). Used in tests to exercise partial-failure paths.
type FailingKeyGenerator struct {
	inner  interfaces.KeyGenerator
	failAt int

	mu    sync.Mutex
	calls int
}

// NewFailingKeyGenerator creates a generator that delegates to inner except
// for call number failAt, which returns a generation failure.
func NewFailingKeyGenerator(inner interfaces.KeyGenerator, failAt int) *FailingKeyGenerator {
	return &FailingKeyGenerator{inner: inner, failAt: failAt}
}

// GenerateKey delegates to the wrapped generator unless this is the
// configured failing call.
func (g *FailingKeyGenerator) GenerateKey(ctx context.Context) (string, error) {
	g.mu.Lock()
	g.calls++
	n := g.calls
	g.mu.Unlock()

	if n == g.failAt {
		return "", fmt.Errorf("%w: injected failure on call %d", interfaces.ErrGenerationFailed, n)
	}
	return g.inner.GenerateKey(ctx)
}
