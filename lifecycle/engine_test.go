package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/validator-provisioning-service/interfaces"
	"github.com/ruteri/validator-provisioning-service/keygen"
	"github.com/ruteri/validator-provisioning-service/storage"
)

const testFeeRecipient = "0x1234567890abcdef1234567890abcdef12345678"

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, store interfaces.RequestStore, gen interfaces.KeyGenerator) *Engine {
	engine := New(&Config{
		Store:   store,
		KeyGen:  gen,
		Log:     testLogger(),
		Workers: 4,
	})
	t.Cleanup(engine.Close)
	return engine
}

func drain(t *testing.T, engine *Engine) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, engine.Drain(ctx))
}

// gateGenerator blocks key generation until released, so tests can observe
// the started state deterministically.
type gateGenerator struct {
	release chan struct{}
	inner   interfaces.KeyGenerator
}

func (g *gateGenerator) GenerateKey(ctx context.Context) (string, error) {
	select {
	case <-g.release:
	case <-ctx.Done():
		return "", fmt.Errorf("%w: %w", interfaces.ErrGenerationFailed, ctx.Err())
	}
	return g.inner.GenerateKey(ctx)
}

// flakyStore injects an append failure into an otherwise working store.
type flakyStore struct {
	interfaces.RequestStore
	failAppend bool
}

func (s *flakyStore) AppendKey(ctx context.Context, key *interfaces.GeneratedKey) error {
	if s.failAppend {
		return errors.New("disk full")
	}
	return s.RequestStore.AppendKey(ctx, key)
}

func TestSubmit_ImmediateQueryReturnsStarted(t *testing.T) {
	store := storage.NewMemoryStore()
	gate := &gateGenerator{
		release: make(chan struct{}),
		inner:   keygen.NewMockKeyGenerator(0, testLogger()),
	}
	engine := newTestEngine(t, store, gate)

	id, err := engine.Submit(context.Background(), 3, testFeeRecipient)
	require.NoError(t, err)
	require.NotEmpty(t, id)

	view, err := engine.Query(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusStarted, view.Status)
	assert.Empty(t, view.Keys)
	assert.Empty(t, view.ErrorMessage)

	close(gate.release)
	drain(t, engine)

	view, err = engine.Query(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusSuccessful, view.Status)
	assert.Len(t, view.Keys, 3)
}

func TestSubmit_InvalidArguments(t *testing.T) {
	store := storage.NewMemoryStore()
	engine := newTestEngine(t, store, keygen.NewMockKeyGenerator(0, testLogger()))

	cases := []struct {
		name          string
		numValidators int
		feeRecipient  string
	}{
		{"zero validators", 0, testFeeRecipient},
		{"negative validators", -1, testFeeRecipient},
		{"missing 0x prefix", 3, "1234567890abcdef1234567890abcdef12345678"},
		{"too short", 3, "0x1234"},
		{"too long", 3, testFeeRecipient + "ab"},
		{"non-hex body", 3, "0x1234567890abcdef1234567890abcdef1234567z"},
		{"empty", 3, ""},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := engine.Submit(context.Background(), tc.numValidators, tc.feeRecipient)
			require.Error(t, err)
			assert.ErrorIs(t, err, interfaces.ErrInvalidArgument)
		})
	}
}

func TestProcess_Success(t *testing.T) {
	store := storage.NewMemoryStore()
	engine := newTestEngine(t, store, keygen.NewMockKeyGenerator(0, testLogger()))

	id, err := engine.Submit(context.Background(), 3, testFeeRecipient)
	require.NoError(t, err)
	drain(t, engine)

	view, err := engine.Query(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusSuccessful, view.Status)
	require.Len(t, view.Keys, 3)

	seen := make(map[string]bool)
	for _, key := range view.Keys {
		assert.NotEmpty(t, key)
		assert.False(t, seen[key], "duplicate key %s", key)
		seen[key] = true
	}

	// Stored keys carry the request's fee recipient and dense indices.
	keys, err := store.ListKeys(context.Background(), id)
	require.NoError(t, err)
	require.Len(t, keys, 3)
	for i, key := range keys {
		assert.Equal(t, i, key.SequenceIndex)
		assert.Equal(t, interfaces.FeeRecipient(testFeeRecipient), key.FeeRecipient)
	}
}

func TestProcess_SingleValidator(t *testing.T) {
	store := storage.NewMemoryStore()
	engine := newTestEngine(t, store, keygen.NewMockKeyGenerator(0, testLogger()))

	id, err := engine.Submit(context.Background(), 1, testFeeRecipient)
	require.NoError(t, err)
	drain(t, engine)

	view, err := engine.Query(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusSuccessful, view.Status)
	assert.Len(t, view.Keys, 1)
}

func TestProcess_GeneratorFailureMidway(t *testing.T) {
	store := storage.NewMemoryStore()
	gen := keygen.NewFailingKeyGenerator(keygen.NewMockKeyGenerator(0, testLogger()), 2)
	engine := newTestEngine(t, store, gen)

	id, err := engine.Submit(context.Background(), 3, testFeeRecipient)
	require.NoError(t, err)
	drain(t, engine)

	view, err := engine.Query(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusFailed, view.Status)
	assert.NotEmpty(t, view.ErrorMessage)
	assert.Empty(t, view.Keys)

	// The key generated before the failure survives.
	keys, err := store.ListKeys(context.Background(), id)
	require.NoError(t, err)
	assert.Len(t, keys, 1)
}

func TestProcess_StorageFailureOnAppend(t *testing.T) {
	store := &flakyStore{RequestStore: storage.NewMemoryStore(), failAppend: true}
	engine := newTestEngine(t, store, keygen.NewMockKeyGenerator(0, testLogger()))

	id, err := engine.Submit(context.Background(), 2, testFeeRecipient)
	require.NoError(t, err)
	drain(t, engine)

	view, err := engine.Query(context.Background(), id)
	require.NoError(t, err)
	assert.Equal(t, interfaces.StatusFailed, view.Status)
	assert.Contains(t, view.ErrorMessage, "disk full")
}

func TestQuery_Unknown(t *testing.T) {
	engine := newTestEngine(t, storage.NewMemoryStore(), keygen.NewMockKeyGenerator(0, testLogger()))

	_, err := engine.Query(context.Background(), "no-such-request")
	require.Error(t, err)
	assert.ErrorIs(t, err, interfaces.ErrRequestNotFound)
}

func TestQuery_TerminalResultsAreStable(t *testing.T) {
	store := storage.NewMemoryStore()
	engine := newTestEngine(t, store, keygen.NewMockKeyGenerator(0, testLogger()))

	id, err := engine.Submit(context.Background(), 2, testFeeRecipient)
	require.NoError(t, err)
	drain(t, engine)

	first, err := engine.Query(context.Background(), id)
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		again, err := engine.Query(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestConcurrentSubmissions(t *testing.T) {
	store := storage.NewMemoryStore()
	engine := newTestEngine(t, store, keygen.NewMockKeyGenerator(0, testLogger()))

	const requests = 20
	ids := make([]interfaces.RequestID, requests)
	for i := range ids {
		id, err := engine.Submit(context.Background(), 2, testFeeRecipient)
		require.NoError(t, err)
		ids[i] = id
	}
	drain(t, engine)

	for _, id := range ids {
		view, err := engine.Query(context.Background(), id)
		require.NoError(t, err)
		assert.Equal(t, interfaces.StatusSuccessful, view.Status)
		assert.Len(t, view.Keys, 2)
	}
}

func TestSubmit_AfterClose(t *testing.T) {
	engine := New(&Config{
		Store:  storage.NewMemoryStore(),
		KeyGen: keygen.NewMockKeyGenerator(0, testLogger()),
		Log:    testLogger(),
	})
	engine.Close()

	_, err := engine.Submit(context.Background(), 1, testFeeRecipient)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDraining)
}
