package core

import (
	"context"
	"sync"
	"time"

	"github.com/picogrid/swarm-defense/pkg/logger"
)

// FrameSink receives recorded frames in batches, in tick order
type FrameSink interface {
	WriteFrames(ctx context.Context, frames []Frame) error
}

// FrameBuffer batches frames on their way to a sink so the stepper never
// blocks on storage. Full batches are handed to a background flusher; while
// the sink keeps failing at most maxPending frames are held and the oldest
// are dropped.
type FrameBuffer struct {
	sink          FrameSink
	pending       []Frame
	maxBatchSize  int
	maxPending    int
	flushInterval time.Duration
	lastFlush     time.Time
	stats         BufferStats
	log           logger.Logger
	mu            sync.Mutex
	flushMu       sync.Mutex // Serializes flushes so batches arrive in order
	flushCh       chan struct{}
	stopChan      chan struct{}
	startOnce     sync.Once
	stopOnce      sync.Once
	wg            sync.WaitGroup
}

// BufferStats tracks delivery statistics
type BufferStats struct {
	FramesQueued  int64
	BatchesSent   int64
	FramesSent    int64
	FlushFailures int64
	FramesDropped int64
	LastBatchTime time.Time
	LastError     error
}

// NewFrameBuffer creates a frame buffer in front of sink. A maxPending below
// one defaults to twenty batches.
func NewFrameBuffer(sink FrameSink, maxBatchSize, maxPending int, flushInterval time.Duration, log logger.Logger) *FrameBuffer {
	if maxBatchSize < 1 {
		maxBatchSize = 1
	}
	if maxPending < 1 {
		maxPending = 20 * maxBatchSize
	}
	if maxPending < maxBatchSize {
		maxPending = maxBatchSize
	}
	if log == nil {
		log = logger.WithPrefix("frames")
	}
	return &FrameBuffer{
		sink:          sink,
		maxBatchSize:  maxBatchSize,
		maxPending:    maxPending,
		flushInterval: flushInterval,
		lastFlush:     time.Now(),
		log:           log,
		flushCh:       make(chan struct{}, 1),
		stopChan:      make(chan struct{}),
	}
}

// Start begins the flush goroutine. It flushes whenever Queue fills a batch
// and, with a positive flush interval, periodically. Calls after the first
// are no-ops; Queue starts it with a background context if nobody has.
func (fb *FrameBuffer) Start(ctx context.Context) {
	fb.startOnce.Do(func() {
		fb.wg.Add(1)
		go fb.flushLoop(ctx)
	})
}

func (fb *FrameBuffer) flushLoop(ctx context.Context) {
	defer fb.wg.Done()

	var tick <-chan time.Time
	if fb.flushInterval > 0 {
		ticker := time.NewTicker(fb.flushInterval)
		defer ticker.Stop()
		tick = ticker.C
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-fb.stopChan:
			return
		case <-fb.flushCh:
		case <-tick:
		}
		if err := fb.Flush(ctx); err != nil {
			fb.log.Warnf("Frame sink rejected batch, will retry: %v", err)
		}
	}
}

// Stop halts the periodic flush and delivers whatever is still pending
func (fb *FrameBuffer) Stop(ctx context.Context) error {
	fb.stopOnce.Do(func() { close(fb.stopChan) })
	fb.wg.Wait()
	return fb.Flush(ctx)
}

// Queue adds a frame and never blocks on the sink. Once a full batch is
// pending the flusher is signalled.
func (fb *FrameBuffer) Queue(frame Frame) {
	fb.mu.Lock()
	fb.pending = append(fb.pending, frame)
	fb.stats.FramesQueued++
	dropped := fb.trimLocked()
	full := len(fb.pending) >= fb.maxBatchSize
	fb.mu.Unlock()

	if dropped > 0 {
		fb.log.Warnf("Frame sink is behind, dropped %d oldest frames", dropped)
	}
	if full {
		fb.Start(context.Background())
		select {
		case fb.flushCh <- struct{}{}:
		default: // A flush is already requested
		}
	}
}

// trimLocked drops the oldest frames beyond maxPending. fb.mu must be held.
func (fb *FrameBuffer) trimLocked() int {
	excess := len(fb.pending) - fb.maxPending
	if excess <= 0 {
		return 0
	}
	fb.pending = append(fb.pending[:0:0], fb.pending[excess:]...)
	fb.stats.FramesDropped += int64(excess)
	return excess
}

// Flush sends all pending frames. On failure the batch is put back in front
// of anything queued meanwhile.
func (fb *FrameBuffer) Flush(ctx context.Context) error {
	fb.flushMu.Lock()
	defer fb.flushMu.Unlock()

	fb.mu.Lock()
	if len(fb.pending) == 0 {
		fb.mu.Unlock()
		return nil
	}
	batch := fb.pending
	fb.pending = nil
	fb.mu.Unlock()

	err := fb.sink.WriteFrames(ctx, batch)

	fb.mu.Lock()
	defer fb.mu.Unlock()
	if err != nil {
		fb.pending = append(batch, fb.pending...)
		fb.stats.FlushFailures++
		fb.stats.LastError = err
		if dropped := fb.trimLocked(); dropped > 0 {
			fb.log.Warnf("Frame sink is failing, dropped %d oldest frames", dropped)
		}
		return err
	}

	fb.lastFlush = time.Now()
	fb.stats.BatchesSent++
	fb.stats.FramesSent += int64(len(batch))
	fb.stats.LastBatchTime = fb.lastFlush
	fb.log.Debugf("Flushed %d frames", len(batch))
	return nil
}

// Stats returns current buffer statistics
func (fb *FrameBuffer) Stats() BufferStats {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.stats
}

// PendingCount returns the number of frames not yet delivered
func (fb *FrameBuffer) PendingCount() int {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return len(fb.pending)
}
