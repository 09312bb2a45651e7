package async

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/zatobox/invoice-ocr/internal/normalize"
)

// Processor handles one local file.
type Processor interface {
	ProcessFile(ctx context.Context, path string) (normalize.Result, error)
}

// Outcome is the result of one processed job.
type Outcome struct {
	Path    string
	Result  normalize.Result
	Err     error
	Elapsed time.Duration
}

type ProcessorQueue struct {
	proc    Processor
	logger  *slog.Logger
	workers int
	timeout time.Duration
	onDone  func(Outcome)

	ch   chan Job
	wg   sync.WaitGroup
	once sync.Once

	sendMu sync.RWMutex // guards closed and sends on ch
	closed bool

	outMu    sync.Mutex
	outcomes []Outcome
}

type Option func(*ProcessorQueue)

func WithWorkers(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.workers = n
		}
	}
}

func WithQueueSize(n int) Option {
	return func(q *ProcessorQueue) {
		if n > 0 {
			q.ch = make(chan Job, n)
		}
	}
}

func WithProcessTimeout(d time.Duration) Option {
	return func(q *ProcessorQueue) {
		if d > 0 {
			q.timeout = d
		}
	}
}

// WithOnDone registers a callback invoked from the worker after each job.
func WithOnDone(fn func(Outcome)) Option {
	return func(q *ProcessorQueue) { q.onDone = fn }
}

func NewProcessorQueue(proc Processor, logger *slog.Logger, opts ...Option) *ProcessorQueue {
	if logger == nil {
		logger = slog.Default()
	}
	q := &ProcessorQueue{
		proc:    proc,
		logger:  logger,
		workers: 4,
		timeout: 3 * time.Minute,
		ch:      make(chan Job, 256),
	}
	for _, o := range opts {
		o(q)
	}
	q.start()
	return q
}

func (q *ProcessorQueue) start() {
	q.once.Do(func() {
		for i := 0; i < q.workers; i++ {
			q.wg.Add(1)
			go func(workerID int) {
				defer q.wg.Done()
				q.logger.Debug("queue.worker.start", "worker_id", workerID)

				for job := range q.ch {
					start := time.Now()
					ctx, cancel := context.WithTimeout(context.Background(), q.timeout)
					res, err := q.proc.ProcessFile(ctx, job.Path)
					cancel()

					out := Outcome{Path: job.Path, Result: res, Err: err, Elapsed: time.Since(start)}
					if err != nil {
						q.logger.Error("queue.job.error", "worker_id", workerID, "path", job.Path, "error", err)
					} else {
						q.logger.Info("queue.job.ok",
							"worker_id", workerID,
							"path", job.Path,
							"structured", res.Structured(),
							"elapsed_ms", out.Elapsed.Milliseconds(),
						)
					}

					q.outMu.Lock()
					q.outcomes = append(q.outcomes, out)
					q.outMu.Unlock()
					if q.onDone != nil {
						q.onDone(out)
					}
				}

				q.logger.Debug("queue.worker.stop", "worker_id", workerID)
			}(i + 1)
		}
	})
}

// Enqueue blocks while the buffer is full.
func (q *ProcessorQueue) Enqueue(ctx context.Context, job Job) error {
	q.sendMu.RLock()
	defer q.sendMu.RUnlock()
	if q.closed {
		q.logger.Warn("queue.enqueue.closed", "path", job.Path)
		return ErrQueueClosed
	}
	if job.SubmittedAt.IsZero() {
		job.SubmittedAt = time.Now()
	}
	select {
	case q.ch <- job:
		q.logger.Debug("queue.enqueue.ok", "path", job.Path)
		return nil
	default:
	}
	q.logger.Warn("queue.enqueue.backpressure", "path", job.Path)
	select {
	case q.ch <- job:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Outcomes returns a copy of the outcomes collected so far.
func (q *ProcessorQueue) Outcomes() []Outcome {
	q.outMu.Lock()
	defer q.outMu.Unlock()
	return append([]Outcome(nil), q.outcomes...)
}

// Shutdown stops accepting jobs and waits for queued ones to finish or ctx to end.
func (q *ProcessorQueue) Shutdown(ctx context.Context) {
	q.sendMu.Lock()
	if q.closed {
		q.sendMu.Unlock()
		return
	}
	q.closed = true
	close(q.ch)
	q.sendMu.Unlock()

	done := make(chan struct{})
	go func() { defer close(done); q.wg.Wait() }()

	select {
	case <-ctx.Done():
		q.logger.Warn("queue.shutdown.interrupted")
	case <-done:
		q.logger.Info("queue.shutdown.ok")
	}
}
