// Package sender runs outbound Bot API calls on a small worker pool so that
// update handlers never wait on Telegram.
package sender

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/m3rciful/gatebot/core/logger"
	"github.com/m3rciful/gatebot/core/telegram/netutil"
)

var (
	// ErrQueueClosed is returned by Enqueue after Close.
	ErrQueueClosed = errors.New("telegram sender: queue closed")
	// ErrQueueFull means the job was not accepted.
	ErrQueueFull = errors.New("telegram sender: queue full")
)

const component = "tg.sender"

// Options tune the dispatcher. Zero values select defaults.
type Options struct {
	QueueSize    int
	Workers      int
	MaxRetries   int
	RetryBackoff time.Duration
	// MaxDuration bounds the time spent on a single job, retries included.
	MaxDuration time.Duration
	// Registerer receives the dispatcher collectors. Nil leaves them unregistered.
	Registerer prometheus.Registerer
}

func (o Options) withDefaults() Options {
	if o.QueueSize <= 0 {
		o.QueueSize = 256
	}
	if o.Workers <= 0 {
		o.Workers = 4
	}
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.RetryBackoff <= 0 {
		o.RetryBackoff = 2 * time.Second
	}
	if o.MaxDuration <= 0 {
		o.MaxDuration = 12 * time.Second
	}
	return o
}

type job struct {
	ctx      context.Context
	action   string
	endpoint string
	run      func() error
}

func (j job) attrs(extra ...slog.Attr) []slog.Attr {
	attrs := make([]slog.Attr, 0, 3+len(extra))
	attrs = append(attrs, slog.String("action", j.action))
	if j.endpoint != "" {
		attrs = append(attrs, slog.String("endpoint", j.endpoint))
	}
	return append(attrs, extra...)
}

// Dispatcher executes queued jobs with linear backoff on transient failures.
type Dispatcher struct {
	opts Options
	jobs chan job
	// mu guards closing jobs against concurrent Enqueue.
	mu     sync.RWMutex
	closed bool
	once   sync.Once
	wg     sync.WaitGroup
	errs   atomic.Uint64

	jobsTotal *prometheus.CounterVec
	queued    prometheus.Gauge
}

// NewDispatcher starts the workers.
func NewDispatcher(opts Options) *Dispatcher {
	opts = opts.withDefaults()
	factory := promauto.With(opts.Registerer)
	d := &Dispatcher{
		opts: opts,
		jobs: make(chan job, opts.QueueSize),
		jobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gatebot",
			Subsystem: "sender",
			Name:      "jobs_total",
			Help:      "Outbound Telegram jobs by result.",
		}, []string{"result"}),
		queued: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: "gatebot",
			Subsystem: "sender",
			Name:      "queue_length",
			Help:      "Jobs waiting for a worker.",
		}),
	}
	d.wg.Add(opts.Workers)
	for range opts.Workers {
		go d.worker()
	}
	return d
}

// Enqueue schedules run. run may be called more than once, so it must be safe
// to repeat.
func (d *Dispatcher) Enqueue(ctx context.Context, action, endpoint string, run func() error) error {
	if run == nil {
		return errors.New("telegram sender: nil run function")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrQueueClosed
	}
	select {
	case d.jobs <- job{ctx: ctx, action: action, endpoint: endpoint, run: run}:
		d.queued.Inc()
		return nil
	default:
		d.jobsTotal.WithLabelValues("rejected").Inc()
		return ErrQueueFull
	}
}

// ErrorCount returns the number of jobs that failed for good.
func (d *Dispatcher) ErrorCount() uint64 {
	return d.errs.Load()
}

// Close stops accepting jobs and waits for the queue to drain.
func (d *Dispatcher) Close() {
	d.once.Do(func() {
		d.mu.Lock()
		d.closed = true
		close(d.jobs)
		d.mu.Unlock()
		d.wg.Wait()
	})
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.queued.Dec()
		d.process(j)
	}
}

func (d *Dispatcher) process(j job) {
	ctx, cancel := context.WithTimeout(j.ctx, d.opts.MaxDuration)
	defer cancel()

	start := time.Now()
	attempts, err := d.attempt(ctx, j)
	elapsed := slog.Int64("elapsed_ms", logger.RoundMS(time.Since(start)).Milliseconds())

	if err == nil {
		d.jobsTotal.WithLabelValues("ok").Inc()
		level := slog.LevelDebug
		if attempts > 1 {
			level = slog.LevelInfo
		}
		logger.LogEvent(j.ctx, logger.Component(component), level, "send.success",
			j.attrs(slog.Int("attempts", attempts), elapsed)...)
		return
	}

	d.errs.Add(1)
	d.jobsTotal.WithLabelValues("fail").Inc()
	logger.Error(j.ctx, component, "send.fail", j.attrs(
		slog.Int("attempts", attempts),
		slog.String("error", netutil.Redact(err.Error())),
		slog.String("error_kind", netutil.Classify(err)),
		elapsed,
	)...)
}

// attempt runs j until it succeeds, fails permanently or ctx expires.
func (d *Dispatcher) attempt(ctx context.Context, j job) (int, error) {
	limit := d.opts.MaxRetries + 1
	for n := 1; ; n++ {
		if err := ctx.Err(); err != nil {
			return n - 1, err
		}
		err := j.run()
		if err == nil || n == limit || !retryable(err) {
			return n, err
		}

		delay := d.opts.RetryBackoff * time.Duration(n)
		logger.Debug(j.ctx, component, "send.retry",
			j.attrs(slog.Int("attempt", n), slog.Duration("delay", delay), slog.String("err", netutil.Redact(err.Error())))...)
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return n, ctx.Err()
		case <-timer.C:
		}
	}
}

// retryable covers transport failures and Bot API 5xx answers.
func retryable(err error) bool {
	return netutil.ShouldRetry(err) || netutil.StatusCode(err) >= 500
}
