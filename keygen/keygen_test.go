package keygen

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/validator-provisioning-service/interfaces"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestMockKeyGenerator_ProducesDistinctKeys(t *testing.T) {
	gen := NewMockKeyGenerator(0, testLogger())

	seen := make(map[string]bool)
	for i := 0; i < 10; i++ {
		key, err := gen.GenerateKey(context.Background())
		require.NoError(t, err)
		assert.Len(t, key, 32)
		assert.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
	}
}

func TestMockKeyGenerator_HonorsCancellation(t *testing.T) {
	gen := NewMockKeyGenerator(time.Minute, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := gen.GenerateKey(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrGenerationFailed)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestSeededKeyGenerator_Deterministic(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}

	gen1, err := NewSeededKeyGenerator(seed, 0)
	require.NoError(t, err)
	gen2, err := NewSeededKeyGenerator(seed, 0)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		k1, err := gen1.GenerateKey(context.Background())
		require.NoError(t, err)
		k2, err := gen2.GenerateKey(context.Background())
		require.NoError(t, err)
		assert.Equal(t, k1, k2)
		assert.Len(t, k1, 32)
	}
}

func TestSeededKeyGenerator_RejectsShortSeed(t *testing.T) {
	_, err := NewSeededKeyGenerator([]byte("too short"), 0)
	require.Error(t, err)
}

func TestFailingKeyGenerator_FailsAtConfiguredCall(t *testing.T) {
	gen := NewFailingKeyGenerator(NewMockKeyGenerator(0, testLogger()), 2)

	_, err := gen.GenerateKey(context.Background())
	require.NoError(t, err)

	_, err = gen.GenerateKey(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrGenerationFailed)

	_, err = gen.GenerateKey(context.Background())
	require.NoError(t, err)
}
