package verification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"peticao/internal/submission/models"
	submissionstore "peticao/internal/submission/store/submission"
	"peticao/internal/verification/metrics"
	"peticao/pkg/platform/sentinel"
)

// ReasonProcessingFault marks submissions routed to manual review after
// repeated system faults, to distinguish them from verification verdicts.
const ReasonProcessingFault = "processing_fault"

// Worker sweeps pending submissions and drives them through the
// orchestrator with bounded concurrency. Claiming is a compare-and-swap
// on the pending state, so several worker instances can sweep the same
// store without double-processing.
type Worker struct {
	orchestrator *Orchestrator
	submissions  submissionstore.Store
	interval     time.Duration
	batch        int
	concurrency  int
	maxAttempts  int
	metrics      *metrics.Metrics
	logger       *slog.Logger
}

// WorkerOption configures a Worker.
type WorkerOption func(*Worker)

// WithWorkerLogger attaches a logger.
func WithWorkerLogger(l *slog.Logger) WorkerOption {
	return func(w *Worker) { w.logger = l }
}

// WithWorkerMetrics attaches metrics.
func WithWorkerMetrics(m *metrics.Metrics) WorkerOption {
	return func(w *Worker) { w.metrics = m }
}

// WithSweepInterval overrides the time between sweeps.
func WithSweepInterval(d time.Duration) WorkerOption {
	return func(w *Worker) { w.interval = d }
}

// WithBatchSize overrides how many pending submissions one sweep claims.
func WithBatchSize(n int) WorkerOption {
	return func(w *Worker) { w.batch = n }
}

// WithConcurrency bounds how many submissions are processed in parallel.
func WithConcurrency(n int) WorkerOption {
	return func(w *Worker) { w.concurrency = n }
}

// WithMaxAttempts sets how many fault-driven retries a submission gets
// before being routed to manual review.
func WithMaxAttempts(n int) WorkerOption {
	return func(w *Worker) { w.maxAttempts = n }
}

// NewWorker creates a Worker over the given orchestrator and store.
func NewWorker(orchestrator *Orchestrator, submissions submissionstore.Store, opts ...WorkerOption) *Worker {
	w := &Worker{
		orchestrator: orchestrator,
		submissions:  submissions,
		interval:     30 * time.Second,
		batch:        50,
		concurrency:  4,
		maxAttempts:  3,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run sweeps immediately, then on every tick, until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	w.logger.Info("verification worker started",
		slog.Duration("interval", w.interval),
		slog.Int("concurrency", w.concurrency),
	)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.Sweep(ctx)
	for {
		select {
		case <-ctx.Done():
			w.logger.Info("verification worker stopped")
			return
		case <-ticker.C:
			w.Sweep(ctx)
		}
	}
}

// Sweep claims one batch of pending submissions and processes them.
func (w *Worker) Sweep(ctx context.Context) {
	pending, err := w.submissions.ListPending(ctx, w.batch)
	if err != nil {
		w.logger.Error("pending sweep failed", slog.Any("error", err))
		return
	}
	if len(pending) == 0 {
		return
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(w.concurrency)
	for _, sub := range pending {
		g.Go(func() error {
			w.processOne(gctx, sub)
			return nil
		})
	}
	_ = g.Wait()
}

func (w *Worker) processOne(ctx context.Context, sub *models.Submission) {
	log := w.logger.With(slog.String("submission_id", sub.ID.String()))

	err := w.submissions.SetProcessing(ctx, sub.ID)
	if errors.Is(err, sentinel.ErrInvalidState) || errors.Is(err, sentinel.ErrNotFound) {
		// Another worker already claimed it.
		return
	}
	if err != nil {
		log.Error("claim failed", slog.Any("error", err))
		return
	}

	// Once claimed, the submission must reach a verdict or be requeued
	// even if the sweep's context is cancelled by shutdown.
	runCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Minute)
	defer cancel()

	_, err = w.orchestrator.Process(runCtx, sub)
	if err != nil {
		w.handleFault(runCtx, log, sub, err)
	}
}

// handleFault returns a faulted submission to the queue, or routes it to
// manual review once the attempt budget is spent. A fault never turns
// into a silent approval or rejection.
func (w *Worker) handleFault(ctx context.Context, log *slog.Logger, sub *models.Submission, cause error) {
	attempts := sub.Attempts + 1
	log.Error("verification fault",
		slog.Any("error", cause),
		slog.Int("attempts", attempts),
	)

	if attempts >= w.maxAttempts {
		if err := w.submissions.MarkManualReview(ctx, sub.ID, ReasonProcessingFault); err != nil {
			log.Error("manual review transition failed", slog.Any("error", err))
		}
		return
	}

	w.metrics.IncrementRequeues()
	if err := w.submissions.Requeue(ctx, sub.ID, attempts); err != nil {
		log.Error("requeue failed", slog.Any("error", err))
	}
}
