package worker

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/GTDGit/gtd_paygate/internal/metrics"
)

// Toucher bumps the usage fields of an API key.
type Toucher interface {
	Touch(ctx context.Context, keyID string) error
}

// UsageRecorder records API key usage off the request path. Record never
// blocks; failed touches are retried a bounded number of times and then
// dropped. Usage fields are telemetry and may lag or lose updates.
type UsageRecorder struct {
	toucher      Toucher
	queue        chan string
	slots        chan struct{}
	touchTimeout time.Duration
	drainTimeout time.Duration
	maxRetries   int
	backoff      time.Duration
	retries      *retryTracker
	metrics      *metrics.Metrics

	overflow sync.WaitGroup
	stop     chan struct{}
	done     chan struct{}
}

// RecorderOptions sizes a UsageRecorder.
type RecorderOptions struct {
	QueueSize int
	// MaxOverflow caps touches running outside the queue when it is full.
	MaxOverflow  int
	TouchTimeout time.Duration
	// DrainTimeout bounds shutdown: queued touches still pending after it
	// elapses are dropped.
	DrainTimeout time.Duration
	MaxRetries   int
}

// NewUsageRecorder constructs a UsageRecorder. Start must be called to
// process queued touches.
func NewUsageRecorder(toucher Toucher, opts RecorderOptions, m *metrics.Metrics) *UsageRecorder {
	if opts.TouchTimeout <= 0 {
		opts.TouchTimeout = 5 * time.Second
	}
	if opts.DrainTimeout <= 0 {
		opts.DrainTimeout = 5 * time.Second
	}
	return &UsageRecorder{
		toucher:      toucher,
		queue:        make(chan string, opts.QueueSize),
		slots:        make(chan struct{}, opts.MaxOverflow),
		touchTimeout: opts.TouchTimeout,
		drainTimeout: opts.DrainTimeout,
		maxRetries:   opts.MaxRetries,
		backoff:      200 * time.Millisecond,
		retries:      newRetryTracker(),
		metrics:      m,
		stop:         make(chan struct{}),
		done:         make(chan struct{}),
	}
}

// Record schedules a usage touch for keyID. When the queue is full the touch
// runs on its own goroutine if an overflow slot is free, and is dropped
// otherwise.
func (r *UsageRecorder) Record(keyID string) {
	if keyID == "" {
		return
	}
	select {
	case r.queue <- keyID:
		return
	default:
	}

	select {
	case r.slots <- struct{}{}:
		r.metrics.RecordUsageTouch("overflow")
		r.overflow.Add(1)
		go func() {
			defer func() {
				<-r.slots
				r.overflow.Done()
			}()
			r.touch(context.Background(), keyID)
		}()
	default:
		r.metrics.RecordUsageTouch("shed")
		log.Warn().Str("api_key_id", keyID).Msg("Usage queue full, dropping update")
	}
}

// Start processes queued touches until ctx is cancelled, then drains the
// queue within the drain timeout.
func (r *UsageRecorder) Start(ctx context.Context) {
	log.Info().Int("queue_size", cap(r.queue)).Int("max_retries", r.maxRetries).Msg("Starting usage recorder")
	defer close(r.done)

	go func() {
		<-ctx.Done()
		close(r.stop)
	}()

	for {
		if ctx.Err() != nil {
			r.shutdown()
			return
		}
		select {
		case keyID := <-r.queue:
			r.touch(context.Background(), keyID)
		case <-ctx.Done():
			r.shutdown()
			return
		}
	}
}

func (r *UsageRecorder) shutdown() {
	<-r.stop
	r.drain()
	log.Info().Msg("Usage recorder stopped")
}

// Wait blocks until Start has returned and overflow touches have finished,
// giving up on overflow touches after the drain timeout.
func (r *UsageRecorder) Wait() {
	<-r.done

	finished := make(chan struct{})
	go func() {
		r.overflow.Wait()
		close(finished)
	}()

	select {
	case <-finished:
	case <-time.After(r.drainTimeout):
		log.Warn().Msg("Usage recorder stopped with overflow touches still running")
	}
}

// drain makes one attempt per queued touch. Retries are skipped and whatever
// is still queued at the deadline is dropped.
func (r *UsageRecorder) drain() {
	ctx, cancel := context.WithTimeout(context.Background(), r.drainTimeout)
	defer cancel()
	defer r.retries.Reset()

	for {
		if ctx.Err() != nil {
			if n := len(r.queue); n > 0 {
				for i := 0; i < n; i++ {
					r.metrics.RecordUsageTouch("dropped")
				}
				log.Warn().Int("pending", n).Msg("Usage drain deadline reached, dropping queued updates")
			}
			return
		}
		select {
		case keyID := <-r.queue:
			r.touch(ctx, keyID)
		default:
			return
		}
	}
}

// touch runs detached from any request so a finished response cannot cancel
// it. Once the recorder is stopping a failed touch is not retried.
func (r *UsageRecorder) touch(parent context.Context, keyID string) {
	for {
		ctx, cancel := context.WithTimeout(parent, r.touchTimeout)
		err := r.toucher.Touch(ctx, keyID)
		cancel()

		if err == nil {
			r.retries.Clear(keyID)
			r.metrics.RecordUsageTouch("ok")
			return
		}

		attempt := r.retries.Fail(keyID)
		if attempt > r.maxRetries || r.stopping() {
			r.retries.Clear(keyID)
			r.metrics.RecordUsageTouch("dropped")
			log.Error().Err(err).Str("api_key_id", keyID).Int("attempts", attempt).Msg("Dropping usage update")
			return
		}

		r.metrics.RecordUsageTouch("retry")
		log.Warn().Err(err).Str("api_key_id", keyID).Int("attempt", attempt).Msg("Usage update failed, retrying")

		select {
		case <-time.After(r.backoff * time.Duration(attempt)):
		case <-r.stop:
		}
	}
}

func (r *UsageRecorder) stopping() bool {
	select {
	case <-r.stop:
		return true
	default:
		return false
	}
}

// retryTracker counts consecutive failures per key.
type retryTracker struct {
	mu       sync.Mutex
	attempts map[string]int
}

func newRetryTracker() *retryTracker {
	return &retryTracker{attempts: make(map[string]int)}
}

func (t *retryTracker) key(keyID string) string {
	return "touch:" + keyID
}

// Fail records a failure and returns the attempt count so far.
func (t *retryTracker) Fail(keyID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts[t.key(keyID)]++
	return t.attempts[t.key(keyID)]
}

func (t *retryTracker) Clear(keyID string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	delete(t.attempts, t.key(keyID))
}

func (t *retryTracker) Attempts(keyID string) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.attempts[t.key(keyID)]
}

func (t *retryTracker) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.attempts = make(map[string]int)
}
