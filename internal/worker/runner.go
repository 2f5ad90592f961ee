// Package worker writes evaluation history in the background. It is
// decoupled from the HTTP layer: the api package holds a worker.Enqueuer and
// calls Enqueue, so a verdict response never waits on the database.
package worker

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/nyashahama/cognitive-guardian-backend/internal/store"
)

// ─── ENQUEUER INTERFACE ───────────────────────────────────────────────────────

// Enqueuer is the narrow interface the api package uses to hand off a
// finished evaluation. Keeping it here (not in api/) means api/ does not
// need to know about Runner or Job.
//
// The concrete implementation is *Runner. In tests, any struct with an Enqueue
// method satisfies the interface.
type Enqueuer interface {
	Enqueue(ctx context.Context, rec store.SaveEvaluationParams) error
}

// ErrQueueFull is returned by Enqueue when the buffer is full. The record is
// not retried.
var ErrQueueFull = errors.New("worker: queue is full")

// ─── RUNNER ───────────────────────────────────────────────────────────────────

// RunnerConfig holds tuning parameters for the Runner. Zero fields take the
// values from DefaultRunnerConfig.
type RunnerConfig struct {
	// Workers is the number of concurrent job goroutines. Default: 2.
	Workers int

	// QueueSize is the channel buffer. Default: 64.
	QueueSize int

	// JobTimeout is the per-attempt context deadline. Default: 10s.
	JobTimeout time.Duration

	// MaxRetries is the number of attempts before a record is dropped.
	// Default: 3.
	MaxRetries int

	// BaseBackoff is the wait after the first failed attempt; it doubles
	// after each further failure. Default: 1s.
	BaseBackoff time.Duration
}

// DefaultRunnerConfig returns safe production defaults.
func DefaultRunnerConfig() RunnerConfig {
	return RunnerConfig{
		Workers:     2,
		QueueSize:   64,
		JobTimeout:  10 * time.Second,
		MaxRetries:  3,
		BaseBackoff: time.Second,
	}
}

// Runner manages a pool of worker goroutines fed by an in-process channel.
type Runner struct {
	job    *Job
	cfg    RunnerConfig
	logger *slog.Logger

	queue chan store.SaveEvaluationParams
	wg    sync.WaitGroup
}

// NewRunner constructs a Runner. Call Start() to begin processing.
func NewRunner(job *Job, cfg RunnerConfig, logger *slog.Logger) *Runner {
	def := DefaultRunnerConfig()
	if cfg.Workers <= 0 {
		cfg.Workers = def.Workers
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = def.QueueSize
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = def.JobTimeout
	}
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = def.MaxRetries
	}
	if cfg.BaseBackoff <= 0 {
		cfg.BaseBackoff = def.BaseBackoff
	}

	return &Runner{
		job:    job,
		cfg:    cfg,
		logger: logger,
		queue:  make(chan store.SaveEvaluationParams, cfg.QueueSize),
	}
}

// Enqueue pushes a record onto the in-process channel. It satisfies the
// Enqueuer interface. If the channel is full it returns ErrQueueFull rather
// than blocking the HTTP response.
func (r *Runner) Enqueue(_ context.Context, rec store.SaveEvaluationParams) error {
	select {
	case r.queue <- rec:
		r.logger.Debug("worker: enqueued evaluation", "evaluation_id", rec.ID, "user_id", rec.UserID)
		return nil
	default:
		return ErrQueueFull
	}
}

// Start launches the worker pool. It blocks until ctx is cancelled and every
// worker has drained what was already queued. Call it in a goroutine from
// main:
//
//	go runner.Start(ctx)
func (r *Runner) Start(ctx context.Context) {
	r.logger.Info("worker: starting", "workers", r.cfg.Workers, "queue_size", r.cfg.QueueSize)

	for i := range r.cfg.Workers {
		r.wg.Add(1)
		go r.work(ctx, i)
	}

	r.wg.Wait()
	r.logger.Info("worker: stopped")
}

// work is the inner loop for each worker goroutine.
func (r *Runner) work(ctx context.Context, id int) {
	defer r.wg.Done()
	log := r.logger.With("worker_id", id)
	log.Debug("worker: goroutine started")

	for {
		select {
		case <-ctx.Done():
			r.drain(log)
			log.Debug("worker: goroutine stopping")
			return
		case rec := <-r.queue:
			r.runWithRetry(ctx, rec, log)
		}
	}
}

// drain makes one attempt at every record still buffered at shutdown. It
// runs on a fresh context because the parent is already cancelled.
func (r *Runner) drain(log *slog.Logger) {
	for {
		select {
		case rec := <-r.queue:
			r.runDetached(rec, log)
		default:
			return
		}
	}
}

// runDetached makes a single attempt on a context that does not inherit the
// cancelled parent.
func (r *Runner) runDetached(rec store.SaveEvaluationParams, log *slog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), r.cfg.JobTimeout)
	defer cancel()
	if err := r.job.Run(ctx, rec); err != nil {
		log.Error("worker: dropped evaluation during shutdown", "evaluation_id", rec.ID, "user_id", rec.UserID, "error", err)
	}
}

// runWithRetry executes the job up to MaxRetries times, then logs and drops
// the record. Once ctx is cancelled the record gets one final detached
// attempt instead of further retries.
func (r *Runner) runWithRetry(ctx context.Context, rec store.SaveEvaluationParams, log *slog.Logger) {
	var lastErr error

	for attempt := 1; attempt <= r.cfg.MaxRetries; attempt++ {
		if ctx.Err() != nil {
			r.runDetached(rec, log)
			return
		}

		jobCtx, cancel := context.WithTimeout(ctx, r.cfg.JobTimeout)
		lastErr = r.job.Run(jobCtx, rec)
		cancel()

		if lastErr == nil {
			return
		}

		log.Warn("worker: job attempt failed",
			"evaluation_id", rec.ID,
			"attempt", attempt,
			"max", r.cfg.MaxRetries,
			"error", lastErr,
		)

		if attempt < r.cfg.MaxRetries {
			// Exponential back-off: base, 2×base, 4×base …
			backoff := r.cfg.BaseBackoff << (attempt - 1)
			select {
			case <-ctx.Done():
				log.Warn("worker: shutdown during back-off, making final attempt", "evaluation_id", rec.ID)
				r.runDetached(rec, log)
				return
			case <-time.After(backoff):
			}
		}
	}

	log.Error("worker: evaluation permanently dropped", "evaluation_id", rec.ID, "user_id", rec.UserID, "error", lastErr)
}
