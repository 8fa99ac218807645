package oracle

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Options tune the dispatcher. Zero fields fall back to the backend's
// published quota: one call every 12 seconds, three attempts.
type Options struct {
	MinInterval    time.Duration
	MaxAttempts    int
	BackoffBase    time.Duration
	RateLimitFloor time.Duration
	QueueDepth     int
}

func (o *Options) withDefaults() Options {
	opts := *o
	if opts.MinInterval <= 0 {
		opts.MinInterval = 12 * time.Second
	}
	if opts.MaxAttempts <= 0 {
		opts.MaxAttempts = 3
	}
	if opts.BackoffBase <= 0 {
		opts.BackoffBase = 15 * time.Second
	}
	if opts.RateLimitFloor <= 0 {
		opts.RateLimitFloor = 30 * time.Second
	}
	if opts.QueueDepth <= 0 {
		opts.QueueDepth = 64
	}
	return opts
}

type result struct {
	text string
	err  error
}

type job struct {
	ctx   context.Context
	req   Request
	reply chan result
}

// Dispatcher serializes every oracle call through a single consumer so
// the global quota holds no matter how many workers submit concurrently.
// Spacing is measured between call starts, retries included.
type Dispatcher struct {
	invoker   Invoker
	opts      Options
	jobs      chan job
	lastStart time.Time
	log       *zap.SugaredLogger
}

func NewDispatcher(invoker Invoker, opts Options) *Dispatcher {
	o := opts.withDefaults()
	return &Dispatcher{
		invoker: invoker,
		opts:    o,
		jobs:    make(chan job, o.QueueDepth),
		log:     zap.S().Named("oracle_dispatcher"),
	}
}

// Run consumes submitted calls until ctx is canceled. It must be running
// for Submit to make progress.
func (d *Dispatcher) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case j := <-d.jobs:
			j.reply <- d.process(ctx, j)
			d.log.Debugf("call completed, %d queued", len(d.jobs))
		}
	}
}

// Submit enqueues one call and blocks until it has been executed, the
// retry budget is exhausted, or ctx is canceled.
func (d *Dispatcher) Submit(ctx context.Context, req Request) (string, error) {
	j := job{ctx: ctx, req: req, reply: make(chan result, 1)}
	select {
	case d.jobs <- j:
	case <-ctx.Done():
		return "", ctx.Err()
	}
	select {
	case res := <-j.reply:
		return res.text, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (d *Dispatcher) process(ctx context.Context, j job) result {
	for attempt := 1; ; attempt++ {
		if err := d.pace(ctx, j.ctx); err != nil {
			return result{err: err}
		}
		d.lastStart = time.Now()

		text, err := d.invoker.Invoke(j.ctx, j.req)
		if err == nil {
			return result{text: text}
		}
		if IsStructural(err) || attempt >= d.opts.MaxAttempts || j.ctx.Err() != nil {
			return result{err: err}
		}

		wait := d.backoff(attempt, err)
		d.log.Infof("oracle call failed (attempt %d/%d), retrying in %s: %v",
			attempt, d.opts.MaxAttempts, wait, err)
		if werr := sleepCtx(ctx, j.ctx, wait); werr != nil {
			return result{err: err}
		}
	}
}

// pace blocks until the minimum interval since the previous call start
// has elapsed.
func (d *Dispatcher) pace(ctx, jobCtx context.Context) error {
	if d.lastStart.IsZero() {
		return nil
	}
	wait := d.opts.MinInterval - time.Since(d.lastStart)
	if wait <= 0 {
		return nil
	}
	d.log.Debugf("pacing: waiting %s before next call", wait)
	return sleepCtx(ctx, jobCtx, wait)
}

func (d *Dispatcher) backoff(attempt int, err error) time.Duration {
	if IsRateLimited(err) {
		wait := d.opts.BackoffBase
		if d.opts.RateLimitFloor > wait {
			wait = d.opts.RateLimitFloor
		}
		if server := retryAfter(err); server > wait {
			wait = server
		}
		return wait
	}
	wait := d.opts.BackoffBase << (attempt - 1)
	if wait < d.opts.BackoffBase {
		wait = d.opts.BackoffBase
	}
	return wait
}

func sleepCtx(ctx, jobCtx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-jobCtx.Done():
		return jobCtx.Err()
	}
}
