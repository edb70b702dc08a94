package imagestore

import (
	"context"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
)

type QueueConfig struct {
	Workers   int
	Buffer    int
	Retries   int
	BaseDelay time.Duration
	Timeout   time.Duration
}

func (c QueueConfig) withDefaults() QueueConfig {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.Buffer <= 0 {
		c.Buffer = 1024
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.BaseDelay <= 0 {
		c.BaseDelay = 500 * time.Millisecond
	}
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	return c
}

// CleanupQueue deletes images from the image store in the background.
// Deletions are best effort: a request never waits for them, failures are
// retried with exponential backoff and then logged.
type CleanupQueue struct {
	dst    Destroyer
	logger *zap.SugaredLogger
	cfg    QueueConfig

	jobs chan string
	wg   sync.WaitGroup

	mu     sync.RWMutex
	closed bool

	ctx    context.Context
	cancel context.CancelFunc
}

func NewCleanupQueue(dst Destroyer, logger *zap.SugaredLogger, cfg QueueConfig) *CleanupQueue {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	q := &CleanupQueue{
		dst:    dst,
		logger: logger,
		cfg:    cfg,
		jobs:   make(chan string, cfg.Buffer),
		ctx:    ctx,
		cancel: cancel,
	}
	for i := 0; i < cfg.Workers; i++ {
		q.wg.Add(1)
		go q.work()
	}
	return q
}

// Enqueue schedules deletion of the given public ids and returns how many
// were accepted. It never blocks: ids are dropped when the buffer is full
// or the queue is shut down.
func (q *CleanupQueue) Enqueue(publicIDs ...string) int {
	q.mu.RLock()
	defer q.mu.RUnlock()

	accepted := 0
	for _, id := range publicIDs {
		id = strings.TrimSpace(id)
		if id == "" {
			continue
		}
		if q.closed {
			q.logger.Warnw("image cleanup queue closed, dropping", "publicId", id)
			continue
		}
		select {
		case q.jobs <- id:
			accepted++
		default:
			q.logger.Warnw("image cleanup queue full, dropping", "publicId", id)
		}
	}
	return accepted
}

// Len is the number of ids waiting for a worker.
func (q *CleanupQueue) Len() int {
	return len(q.jobs)
}

// Shutdown stops accepting work and waits for queued deletions to finish.
// When ctx expires first, in-flight retries are abandoned.
func (q *CleanupQueue) Shutdown(ctx context.Context) error {
	q.mu.Lock()
	if !q.closed {
		q.closed = true
		close(q.jobs)
	}
	q.mu.Unlock()

	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		q.cancel()
		return nil
	case <-ctx.Done():
		q.cancel()
		<-done
		return ctx.Err()
	}
}

func (q *CleanupQueue) work() {
	defer q.wg.Done()
	for id := range q.jobs {
		q.destroy(id)
	}
}

func (q *CleanupQueue) destroy(publicID string) {
	delay := q.cfg.BaseDelay
	for attempt := 1; ; attempt++ {
		ctx, cancel := context.WithTimeout(q.ctx, q.cfg.Timeout)
		err := q.dst.Destroy(ctx, publicID)
		cancel()
		if err == nil {
			q.logger.Debugw("image deleted", "publicId", publicID, "attempt", attempt)
			return
		}

		if attempt > q.cfg.Retries || q.ctx.Err() != nil {
			q.logger.Errorw("image cleanup failed", "publicId", publicID, "attempts", attempt, "error", err)
			return
		}
		q.logger.Warnw("image cleanup retry", "publicId", publicID, "attempt", attempt, "delay", delay, "error", err)

		select {
		case <-time.After(delay):
		case <-q.ctx.Done():
			q.logger.Errorw("image cleanup abandoned", "publicId", publicID, "attempts", attempt, "error", err)
			return
		}
		delay *= 2
	}
}
