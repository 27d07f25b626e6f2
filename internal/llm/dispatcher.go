package llm

import (
	"context"
	"sync"
	"time"

	"github.com/personify-ai/chat-platform/internal/apperr"
	"github.com/personify-ai/chat-platform/pkg/logger"
	"github.com/personify-ai/chat-platform/pkg/metrics"
)

// DispatcherConfig holds the global admission policy for outbound completion
// calls. The budget is process-wide and shared across all users: it protects
// the provider-side rate limit, not any per-user fairness.
type DispatcherConfig struct {
	MaxConcurrent int           // simultaneous in-flight calls
	MinSpacing    time.Duration // minimum gap between consecutive dispatches
	Timeout       time.Duration // per-call deadline
}

// Dispatcher is a bounded-concurrency, spaced gateway to a completion
// provider. Calls beyond the concurrency bound wait their turn; none are
// dropped. Explicit Start/Stop lifecycle, injected where needed.
type Dispatcher struct {
	client Client
	cfg    DispatcherConfig
	logger *logger.Logger

	mu      sync.Mutex
	slots   chan struct{}
	stop    chan struct{}
	nextAt  time.Time
	started bool
}

// NewDispatcher creates a dispatcher. Start must be called before use.
func NewDispatcher(client Client, cfg DispatcherConfig, log *logger.Logger) *Dispatcher {
	return &Dispatcher{client: client, cfg: cfg, logger: log}
}

// Start arms the dispatcher.
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.started {
		return
	}
	d.slots = make(chan struct{}, d.cfg.MaxConcurrent)
	d.stop = make(chan struct{})
	d.started = true
}

// Stop rejects new calls. In-flight calls run to completion.
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.started {
		return
	}
	close(d.stop)
	d.started = false
}

// Complete dispatches one completion call under the global budget. The call
// fails with CompletionProviderError on provider failure, timeout, or an
// empty completion; no retry is attempted here.
func (d *Dispatcher) Complete(ctx context.Context, req *CompletionRequest) (*CompletionResponse, error) {
	d.mu.Lock()
	slots, stop, started := d.slots, d.stop, d.started
	d.mu.Unlock()
	if !started {
		return nil, apperr.New(apperr.CodeCompletionProvider, "completion dispatcher is not running")
	}

	metrics.DispatcherWaiting.Inc()
	select {
	case slots <- struct{}{}:
		metrics.DispatcherWaiting.Dec()
	case <-stop:
		metrics.DispatcherWaiting.Dec()
		return nil, apperr.New(apperr.CodeCompletionProvider, "completion dispatcher stopped")
	case <-ctx.Done():
		metrics.DispatcherWaiting.Dec()
		return nil, apperr.Wrap(apperr.CodeCompletionProvider, "completion request cancelled while queued", ctx.Err())
	}
	defer func() { <-slots }()

	if err := d.waitSpacing(ctx); err != nil {
		return nil, err
	}

	metrics.DispatcherInFlight.Inc()
	defer metrics.DispatcherInFlight.Dec()

	callCtx, cancel := context.WithTimeout(ctx, d.cfg.Timeout)
	defer cancel()

	start := time.Now()
	resp, err := d.client.Complete(callCtx, req)
	elapsed := time.Since(start).Seconds()
	if err != nil {
		metrics.RecordCompletion(req.Model, "error", elapsed, 0, 0)
		return nil, apperr.Wrap(apperr.CodeCompletionProvider, "completion provider call failed", err)
	}
	if resp.Content == "" {
		metrics.RecordCompletion(req.Model, "empty", elapsed, resp.TokensIn, resp.TokensOut)
		return nil, apperr.New(apperr.CodeCompletionProvider, "provider returned an empty completion")
	}

	metrics.RecordCompletion(req.Model, "success", elapsed, resp.TokensIn, resp.TokensOut)
	return resp, nil
}

// waitSpacing reserves the next dispatch instant and sleeps until it. The
// reservation under the lock keeps consecutive dispatches at least MinSpacing
// apart regardless of how many callers arrive at once.
func (d *Dispatcher) waitSpacing(ctx context.Context) error {
	d.mu.Lock()
	now := time.Now()
	wait := d.nextAt.Sub(now)
	if wait < 0 {
		wait = 0
	}
	d.nextAt = now.Add(wait + d.cfg.MinSpacing)
	d.mu.Unlock()

	if wait == 0 {
		return nil
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return apperr.Wrap(apperr.CodeCompletionProvider, "completion request cancelled while pacing", ctx.Err())
	}
}
