package bootstrap

import (
	"context"
	"sync"
	"time"

	"github.com/artpar/ritan/adapters/metrics"
	"github.com/artpar/ritan/domain/usage"
	"github.com/artpar/ritan/ports"
	"github.com/rs/zerolog"
)

// RecorderOptions configures a LocalUsageRecorder.
type RecorderOptions struct {
	BatchSize     int
	FlushInterval time.Duration
	MaxBuffered   int // records beyond this are dropped
	WriteTimeout  time.Duration
	Logger        zerolog.Logger
	Metrics       *metrics.Collector
}

// LocalUsageRecorder buffers usage records and writes them in batches to the store.
// Write failures are reported on an internal channel, logged, and counted;
// they never reach the caller of Record.
type LocalUsageRecorder struct {
	store         ports.UsageStore
	buffer        []usage.Record
	mu            sync.Mutex
	batchSize     int
	maxBuffered   int
	flushInterval time.Duration
	writeTimeout  time.Duration
	logger        zerolog.Logger
	metrics       *metrics.Collector

	errCh     chan error
	stopCh    chan struct{}
	wg        sync.WaitGroup // background loops
	writes    sync.WaitGroup // in-flight batch writes
	closed    bool
	closeOnce sync.Once
}

// NewLocalUsageRecorder creates a new local usage recorder.
func NewLocalUsageRecorder(store ports.UsageStore, opts RecorderOptions) *LocalUsageRecorder {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 100
	}
	if opts.FlushInterval <= 0 {
		opts.FlushInterval = 5 * time.Second
	}
	if opts.MaxBuffered <= 0 {
		opts.MaxBuffered = opts.BatchSize * 100
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 30 * time.Second
	}

	r := &LocalUsageRecorder{
		store:         store,
		buffer:        make([]usage.Record, 0, opts.BatchSize),
		batchSize:     opts.BatchSize,
		maxBuffered:   opts.MaxBuffered,
		flushInterval: opts.FlushInterval,
		writeTimeout:  opts.WriteTimeout,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		errCh:         make(chan error, 16),
		stopCh:        make(chan struct{}),
	}

	r.wg.Add(2)
	go r.flushLoop()
	go r.errorLoop()

	return r
}

// Record queues a usage record. It never blocks on the store.
func (r *LocalUsageRecorder) Record(rec usage.Record) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed || len(r.buffer) >= r.maxBuffered {
		r.metrics.LedgerDrop()
		r.logger.Warn().Str("user_id", rec.UserID).Str("record_id", rec.ID).Msg("usage record dropped")
		return
	}

	r.buffer = append(r.buffer, rec)

	if len(r.buffer) >= r.batchSize {
		r.flushLocked()
	}
}

// Flush writes everything queued so far and waits for the write to finish.
func (r *LocalUsageRecorder) Flush(ctx context.Context) error {
	r.mu.Lock()
	records := r.takeLocked()
	r.mu.Unlock()

	if err := r.write(ctx, records); err != nil {
		return err
	}

	done := make(chan struct{})
	go func() {
		r.writes.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (r *LocalUsageRecorder) takeLocked() []usage.Record {
	if len(r.buffer) == 0 {
		return nil
	}
	records := make([]usage.Record, len(r.buffer))
	copy(records, r.buffer)
	r.buffer = r.buffer[:0]
	return records
}

// flushLocked hands the buffer to a background write.
func (r *LocalUsageRecorder) flushLocked() {
	records := r.takeLocked()
	if len(records) == 0 {
		return
	}

	r.writes.Add(1)
	go func() {
		defer r.writes.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.writeTimeout)
		defer cancel()
		if err := r.write(ctx, records); err != nil {
			select {
			case r.errCh <- err:
			default:
				r.logger.Error().Err(err).Msg("usage write failed")
			}
		}
	}()
}

func (r *LocalUsageRecorder) write(ctx context.Context, records []usage.Record) error {
	if len(records) == 0 {
		return nil
	}
	if err := r.store.RecordBatch(ctx, records); err != nil {
		r.metrics.LedgerFailed()
		return err
	}
	r.metrics.LedgerWritten(len(records))
	return nil
}

func (r *LocalUsageRecorder) flushLoop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			r.mu.Lock()
			r.flushLocked()
			r.mu.Unlock()
		case <-r.stopCh:
			return
		}
	}
}

func (r *LocalUsageRecorder) errorLoop() {
	defer r.wg.Done()
	for {
		select {
		case err := <-r.errCh:
			r.logger.Error().Err(err).Msg("usage write failed")
		case <-r.stopCh:
			return
		}
	}
}

// Close stops the recorder and flushes remaining records.
func (r *LocalUsageRecorder) Close() error {
	var err error
	r.closeOnce.Do(func() {
		close(r.stopCh)
		r.wg.Wait()

		r.mu.Lock()
		r.closed = true
		records := r.takeLocked()
		r.mu.Unlock()

		r.writes.Wait()

		// Final flush with timeout
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		err = r.write(ctx, records)
		if err != nil {
			r.logger.Error().Err(err).Int("records", len(records)).Msg("final usage flush failed")
		}
	})
	return err
}

// Ensure interface compliance.
var _ ports.UsageRecorder = (*LocalUsageRecorder)(nil)
