package storage

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ruteri/validator-provisioning-service/interfaces"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// storeFixtures returns one constructor per backend so the contract tests
// run against both.
func storeFixtures(t *testing.T) map[string]func(t *testing.T) interfaces.RequestStore {
	return map[string]func(t *testing.T) interfaces.RequestStore{
		"sqlite": func(t *testing.T) interfaces.RequestStore {
			store, err := NewSqliteStore(filepath.Join(t.TempDir(), "test.db"), testLogger())
			require.NoError(t, err)
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
		"memory": func(t *testing.T) interfaces.RequestStore {
			store := NewMemoryStore()
			t.Cleanup(func() { _ = store.Close() })
			return store
		},
	}
}

func newTestRequest() *interfaces.ValidatorRequest {
	now := time.Now().UTC()
	return &interfaces.ValidatorRequest{
		ID:            interfaces.NewRequestID(),
		NumValidators: 3,
		FeeRecipient:  "0x1234567890abcdef1234567890abcdef12345678",
		Status:        interfaces.StatusStarted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
}

func TestRequestStore_CreateAndGet(t *testing.T) {
	for name, newStore := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			req := newTestRequest()
			require.NoError(t, store.CreateRequest(ctx, req))

			got, err := store.GetRequest(ctx, req.ID)
			require.NoError(t, err)
			assert.Equal(t, req.ID, got.ID)
			assert.Equal(t, req.NumValidators, got.NumValidators)
			assert.Equal(t, req.FeeRecipient, got.FeeRecipient)
			assert.Equal(t, interfaces.StatusStarted, got.Status)
			assert.Empty(t, got.ErrorMessage)
		})
	}
}

func TestRequestStore_CreateDuplicate(t *testing.T) {
	for name, newStore := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			req := newTestRequest()
			require.NoError(t, store.CreateRequest(ctx, req))

			err := store.CreateRequest(ctx, req)
			require.Error(t, err)
			assert.ErrorIs(t, err, interfaces.ErrRequestExists)
		})
	}
}

func TestRequestStore_GetUnknown(t *testing.T) {
	for name, newStore := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)

			_, err := store.GetRequest(context.Background(), "no-such-request")
			require.Error(t, err)
			assert.ErrorIs(t, err, interfaces.ErrRequestNotFound)
		})
	}
}

func TestRequestStore_UpdateStatus(t *testing.T) {
	for name, newStore := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			req := newTestRequest()
			require.NoError(t, store.CreateRequest(ctx, req))

			require.NoError(t, store.UpdateStatus(ctx, req.ID, interfaces.StatusFailed, "boom"))

			got, err := store.GetRequest(ctx, req.ID)
			require.NoError(t, err)
			assert.Equal(t, interfaces.StatusFailed, got.Status)
			assert.Equal(t, "boom", got.ErrorMessage)
		})
	}
}

func TestRequestStore_TerminalStatusIsFinal(t *testing.T) {
	for name, newStore := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			req := newTestRequest()
			require.NoError(t, store.CreateRequest(ctx, req))
			require.NoError(t, store.UpdateStatus(ctx, req.ID, interfaces.StatusSuccessful, ""))

			err := store.UpdateStatus(ctx, req.ID, interfaces.StatusFailed, "late failure")
			require.Error(t, err)
			assert.ErrorIs(t, err, interfaces.ErrAlreadyTerminal)

			got, err := store.GetRequest(ctx, req.ID)
			require.NoError(t, err)
			assert.Equal(t, interfaces.StatusSuccessful, got.Status)
		})
	}
}

func TestRequestStore_UpdateStatusUnknown(t *testing.T) {
	for name, newStore := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)

			err := store.UpdateStatus(context.Background(), "no-such-request", interfaces.StatusFailed, "boom")
			require.Error(t, err)
			assert.ErrorIs(t, err, interfaces.ErrRequestNotFound)
		})
	}
}

func TestRequestStore_AppendAndListKeys(t *testing.T) {
	for name, newStore := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			req := newTestRequest()
			require.NoError(t, store.CreateRequest(ctx, req))

			// Append out of order to verify read-side ordering.
			for _, idx := range []int{2, 0, 1} {
				require.NoError(t, store.AppendKey(ctx, &interfaces.GeneratedKey{
					RequestID:     req.ID,
					SequenceIndex: idx,
					KeyValue:      "key-" + string(rune('a'+idx)),
					FeeRecipient:  req.FeeRecipient,
				}))
			}

			keys, err := store.ListKeys(ctx, req.ID)
			require.NoError(t, err)
			require.Len(t, keys, 3)
			for i, key := range keys {
				assert.Equal(t, i, key.SequenceIndex)
				assert.Equal(t, req.ID, key.RequestID)
				assert.Equal(t, req.FeeRecipient, key.FeeRecipient)
				assert.NotEmpty(t, key.KeyValue)
			}
		})
	}
}

func TestRequestStore_ListKeysEmptyWhileStarted(t *testing.T) {
	for name, newStore := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			ctx := context.Background()

			req := newTestRequest()
			require.NoError(t, store.CreateRequest(ctx, req))

			keys, err := store.ListKeys(ctx, req.ID)
			require.NoError(t, err)
			assert.Empty(t, keys)
		})
	}
}

func TestRequestStore_ListKeysUnknown(t *testing.T) {
	for name, newStore := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)

			_, err := store.ListKeys(context.Background(), "no-such-request")
			require.Error(t, err)
			assert.ErrorIs(t, err, interfaces.ErrRequestNotFound)
		})
	}
}

func TestRequestStore_Ping(t *testing.T) {
	for name, newStore := range storeFixtures(t) {
		t.Run(name, func(t *testing.T) {
			store := newStore(t)
			require.NoError(t, store.Ping(context.Background()))
		})
	}
}

func TestMemoryStore_PingAfterClose(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Close())
	require.Error(t, store.Ping(context.Background()))
}

func TestNewRequestStore_Schemes(t *testing.T) {
	log := testLogger()

	store, err := NewRequestStore("memory://", log)
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, store)

	dbPath := filepath.Join(t.TempDir(), "factory.db")
	store, err = NewRequestStore("sqlite://"+dbPath, log)
	require.NoError(t, err)
	assert.IsType(t, &SqliteStore{}, store)
	require.NoError(t, store.Close())

	_, err = NewRequestStore("postgres://localhost/validators", log)
	require.Error(t, err)
}
