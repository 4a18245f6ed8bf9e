package cart

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/SalBom/app-sb-sub000/internal/domain"
)

const (
	DefaultSyncWorkers   = 2
	DefaultSyncQueueSize = 64
	defaultSyncTimeout   = 10 * time.Second
)

// Saver persists the cart on the backend.
type Saver interface {
	SaveCart(ctx context.Context, cuit string, items []domain.CartItem) error
}

type syncTask struct {
	items   []domain.CartItem
	version uint64
}

// Syncer pushes cart snapshots to the backend on a small worker pool.
//
// Policy: sync is best effort. A task is dropped when the queue is full, a
// failed save is logged at debug level and never retried, and callers are
// never told. Saves run one at a time in version order; a task older than one
// already sent is skipped, so the backend never goes back to a stale cart.
type Syncer struct {
	saver    Saver
	snapshot SnapshotCache
	cuit     string
	timeout  time.Duration
	logger   *zap.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan syncTask
	wg     sync.WaitGroup

	saveMu   sync.Mutex
	lastSent uint64
	sentAny  bool

	saved      atomic.Int64
	failed     atomic.Int64
	dropped    atomic.Int64
	superseded atomic.Int64
}

type SyncOptions struct {
	Workers   int
	QueueSize int
	Timeout   time.Duration
	// Snapshot, when set, also receives every synced state.
	Snapshot SnapshotCache
}

// NewSyncer starts the workers. An empty cuit produces a syncer that accepts nothing.
func NewSyncer(saver Saver, cuit string, opts SyncOptions, logger *zap.Logger) *Syncer {
	if opts.Workers <= 0 {
		opts.Workers = DefaultSyncWorkers
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultSyncQueueSize
	}
	if opts.Timeout <= 0 {
		opts.Timeout = defaultSyncTimeout
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Syncer{
		saver:    saver,
		snapshot: opts.Snapshot,
		cuit:     cuit,
		timeout:  opts.Timeout,
		logger:   logger,
		queue:    make(chan syncTask, opts.QueueSize),
	}

	for i := 0; i < opts.Workers; i++ {
		s.wg.Add(1)
		go s.worker()
	}
	return s
}

// Enqueue schedules state for persistence without blocking. It reports
// whether the task was accepted.
func (s *Syncer) Enqueue(state State) bool {
	if s.cuit == "" {
		return false
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return false
	}

	select {
	case s.queue <- syncTask{items: state.Items(), version: state.Version}:
		return true
	default:
		s.dropped.Add(1)
		s.logger.Debug("cart sync queue full, dropping snapshot", zap.Uint64("version", state.Version))
		return false
	}
}

// Close stops accepting tasks and waits for queued ones to finish.
func (s *Syncer) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	close(s.queue)
	s.mu.Unlock()

	s.wg.Wait()
}

// SyncStats counts task outcomes since start.
type SyncStats struct {
	Saved      int64
	Failed     int64
	Dropped    int64
	Superseded int64
}

func (s *Syncer) Stats() SyncStats {
	return SyncStats{
		Saved:      s.saved.Load(),
		Failed:     s.failed.Load(),
		Dropped:    s.dropped.Load(),
		Superseded: s.superseded.Load(),
	}
}

func (s *Syncer) worker() {
	defer s.wg.Done()
	for task := range s.queue {
		s.run(task)
	}
}

func (s *Syncer) run(task syncTask) {
	s.saveMu.Lock()
	defer s.saveMu.Unlock()
	if s.sentAny && task.version <= s.lastSent {
		s.superseded.Add(1)
		s.logger.Debug("cart sync superseded",
			zap.Uint64("version", task.version),
			zap.Uint64("last_sent", s.lastSent))
		return
	}
	s.lastSent, s.sentAny = task.version, true

	ctx, cancel := context.WithTimeout(context.Background(), s.timeout)
	defer cancel()

	if s.snapshot != nil {
		if err := s.snapshot.Set(ctx, s.cuit, task.items); err != nil {
			s.logger.Debug("cart snapshot write failed", zap.Error(err))
		}
	}

	if err := s.saver.SaveCart(ctx, s.cuit, task.items); err != nil {
		s.failed.Add(1)
		s.logger.Debug("cart sync failed",
			zap.Uint64("version", task.version),
			zap.Int("items", len(task.items)),
			zap.Error(err))
		return
	}
	s.saved.Add(1)
}
