package lifecycle

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	uberatomic "go.uber.org/atomic"

	"github.com/ruteri/validator-provisioning-service/interfaces"
	"github.com/ruteri/validator-provisioning-service/metrics"
)

// ErrDraining is returned by Submit once the engine has been closed.
var ErrDraining = errors.New("engine is shutting down")

const (
	defaultWorkers   = 8
	defaultQueueSize = 256
)

// Config carries the engine's dependencies and tuning knobs.
type Config struct {
	// Store persists requests and generated keys.
	Store interfaces.RequestStore

	// KeyGen produces validator keys.
	KeyGen interfaces.KeyGenerator

	// Log is the structured logger for engine operations.
	Log *slog.Logger

	// Workers bounds the number of concurrently processed requests.
	// Defaults to 8.
	Workers int

	// QueueSize is the capacity of the background unit queue. Defaults
	// to 256.
	QueueSize int

	// Metrics instruments the engine. If nil, metrics are registered on a
	// private throwaway registry.
	Metrics *metrics.ProvisioningMetrics
}

// Engine owns the validator request lifecycle: it accepts submissions,
// schedules exactly one background unit per request on a bounded worker
// pool, and drives each request to a terminal status.
//
// Operations on different requests are independent; operations on one
// request are strictly ordered because a single background unit performs
// them all.
type Engine struct {
	store  interfaces.RequestStore
	keygen interfaces.KeyGenerator
	log    *slog.Logger
	m      *metrics.ProvisioningMetrics

	tasks chan interfaces.RequestID

	// inflight enforces at-most-one active background unit per request id.
	mu       sync.Mutex
	inflight map[interfaces.RequestID]struct{}

	workerWG sync.WaitGroup
	unitWG   sync.WaitGroup
	closed   uberatomic.Bool
}

// New creates and starts an engine with the given configuration.
func New(cfg *Config) *Engine {
	workers := cfg.Workers
	if workers <= 0 {
		workers = defaultWorkers
	}
	queueSize := cfg.QueueSize
	if queueSize <= 0 {
		queueSize = defaultQueueSize
	}
	m := cfg.Metrics
	if m == nil {
		m = metrics.NewProvisioningMetrics(prometheus.NewRegistry())
	}

	e := &Engine{
		store:    cfg.Store,
		keygen:   cfg.KeyGen,
		log:      cfg.Log,
		m:        m,
		tasks:    make(chan interfaces.RequestID, queueSize),
		inflight: make(map[interfaces.RequestID]struct{}),
	}

	e.workerWG.Add(workers)
	for i := 0; i < workers; i++ {
		go e.worker()
	}
	return e
}

// Submit validates the inputs, persists a new request with started status,
// and schedules its background unit. It returns as soon as the request is
// durable, before any key is generated.
//
// Inputs are re-validated here even though the HTTP layer validates them
// too, so the engine stays safe against future callers.
func (e *Engine) Submit(ctx context.Context, numValidators int, feeRecipient string) (interfaces.RequestID, error) {
	if e.closed.Load() {
		return "", ErrDraining
	}
	if numValidators <= 0 {
		return "", fmt.Errorf("%w: numValidators must be positive, got %d", interfaces.ErrInvalidArgument, numValidators)
	}
	recipient, err := interfaces.NewFeeRecipient(feeRecipient)
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	req := &interfaces.ValidatorRequest{
		ID:            interfaces.NewRequestID(),
		NumValidators: numValidators,
		FeeRecipient:  recipient,
		Status:        interfaces.StatusStarted,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := e.store.CreateRequest(ctx, req); err != nil {
		return "", fmt.Errorf("persist request: %w", err)
	}

	if err := e.enqueue(req.ID); err != nil {
		// The request stays in started status; an operator-level reaper
		// would pick it up. See the stuck-request note in DESIGN.md.
		e.log.Error("Failed to enqueue background unit", "err", err, slog.String("requestID", req.ID.String()))
		return "", err
	}

	e.m.RequestsSubmitted.Inc()
	e.log.Info("Validator request submitted",
		slog.String("requestID", req.ID.String()),
		slog.Int("numValidators", numValidators))
	return req.ID, nil
}

// Query returns the externally visible state of a request. Keys are included
// only for successful requests, the error message only for failed ones.
func (e *Engine) Query(ctx context.Context, id interfaces.RequestID) (*interfaces.RequestView, error) {
	req, err := e.store.GetRequest(ctx, id)
	if err != nil {
		return nil, err
	}

	view := &interfaces.RequestView{ID: req.ID, Status: req.Status}
	switch req.Status {
	case interfaces.StatusSuccessful:
		keys, err := e.store.ListKeys(ctx, id)
		if err != nil {
			return nil, err
		}
		view.Keys = make([]string, len(keys))
		for i, key := range keys {
			view.Keys[i] = key.KeyValue
		}
	case interfaces.StatusFailed:
		view.ErrorMessage = req.ErrorMessage
	}
	return view, nil
}

// enqueue registers the request as inflight and hands it to the worker pool.
// The closed re-check and the WaitGroup increment happen under the same lock
// Close takes, so Close never misses a unit that made it past Submit.
func (e *Engine) enqueue(id interfaces.RequestID) error {
	e.mu.Lock()
	if e.closed.Load() {
		e.mu.Unlock()
		return ErrDraining
	}
	if _, active := e.inflight[id]; active {
		e.mu.Unlock()
		return fmt.Errorf("background unit already active for request %s", id)
	}
	e.inflight[id] = struct{}{}
	e.unitWG.Add(1)
	e.mu.Unlock()

	e.m.QueuedUnits.Inc()
	e.tasks <- id
	return nil
}

func (e *Engine) worker() {
	defer e.workerWG.Done()
	for id := range e.tasks {
		e.process(context.Background(), id)

		e.mu.Lock()
		delete(e.inflight, id)
		e.mu.Unlock()
		e.m.QueuedUnits.Dec()
		e.unitWG.Done()
	}
}

// process is the background unit for one request: it generates the requested
// number of keys sequentially, persisting each one before generating the
// next, then flips the status. The terminal flip happens only after every
// key row is durable, so no reader observes successful status without the
// full key list.
func (e *Engine) process(ctx context.Context, id interfaces.RequestID) {
	start := time.Now()
	log := e.log.With(slog.String("requestID", id.String()))

	req, err := e.store.GetRequest(ctx, id)
	if err != nil {
		log.Error("Background unit could not load request", "err", err)
		return
	}
	if req.Status.Terminal() {
		log.Warn("Background unit skipped terminal request", slog.String("status", string(req.Status)))
		return
	}

	for i := 0; i < req.NumValidators; i++ {
		key, err := e.keygen.GenerateKey(ctx)
		if err != nil {
			log.Error("Key generation failed", "err", err, slog.Int("sequenceIndex", i))
			e.markFailed(ctx, id, err)
			return
		}

		err = e.store.AppendKey(ctx, &interfaces.GeneratedKey{
			RequestID:     id,
			SequenceIndex: i,
			KeyValue:      key,
			FeeRecipient:  req.FeeRecipient,
		})
		if err != nil {
			log.Error("Failed to store generated key", "err", err, slog.Int("sequenceIndex", i))
			e.markFailed(ctx, id, err)
			return
		}
		e.m.KeysGenerated.Inc()
	}

	if err := e.store.UpdateStatus(ctx, id, interfaces.StatusSuccessful, ""); err != nil {
		log.Error("Failed to mark request successful", "err", err)
		return
	}

	e.m.RequestsSuccessful.Inc()
	e.m.ProcessingDuration.Observe(time.Since(start).Seconds())
	log.Info("Validator request completed",
		slog.Int("numValidators", req.NumValidators),
		slog.Duration("elapsed", time.Since(start)))
}

// markFailed records the failure on the request. If even that write fails
// the request stays started and the error is only logged; background errors
// never cross the request boundary.
func (e *Engine) markFailed(ctx context.Context, id interfaces.RequestID, cause error) {
	if err := e.store.UpdateStatus(ctx, id, interfaces.StatusFailed, cause.Error()); err != nil {
		e.log.Error("Failed to mark request failed", "err", err, slog.String("requestID", id.String()))
		return
	}
	e.m.RequestsFailed.Inc()
}

// Drain blocks until all submitted background units have finished or the
// context expires. Tests submit, drain, then assert on terminal state
// instead of sleeping.
func (e *Engine) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.unitWG.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting submissions, waits for queued units to finish, and
// stops the workers. Safe to call once.
func (e *Engine) Close() {
	e.mu.Lock()
	alreadyClosed := e.closed.Swap(true)
	e.mu.Unlock()
	if alreadyClosed {
		return
	}

	e.unitWG.Wait()
	close(e.tasks)
	e.workerWG.Wait()
}
