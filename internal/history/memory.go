package history

import (
	"context"
	"sync"

	"github.com/hammamikhairi/armate/internal/domain"
	"github.com/hammamikhairi/armate/internal/logger"
)

// Compile-time interface checks.
var (
	_ domain.HistoryFeed     = (*MemoryFeed)(nil)
	_ domain.HistoryRecorder = (*MemoryFeed)(nil)
)

// MemoryFeed is an in-process history store with live subscriptions. Safe
// for concurrent access.
type MemoryFeed struct {
	mu     sync.Mutex
	items  []domain.Interaction
	subs   map[int]*memorySub
	nextID int
	log    *logger.Logger
}

type memorySub struct {
	limit int
	snaps chan []domain.Interaction
}

// NewMemoryFeed creates an empty feed.
func NewMemoryFeed(log *logger.Logger) *MemoryFeed {
	return &MemoryFeed{
		subs: make(map[int]*memorySub),
		log:  log,
	}
}

// Record appends an interaction and pushes a fresh snapshot to every
// subscriber.
func (f *MemoryFeed) Record(ctx context.Context, in domain.Interaction) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.items = append(f.items, in)
	f.log.Debug("history: recorded %s (total=%d)", in.ID, len(f.items))
	for _, s := range f.subs {
		offer(s.snaps, newestFirst(f.items, s.limit))
	}
	return nil
}

// Subscribe delivers the current snapshot immediately and a new one after
// every Record until ctx is done. The error channel never carries a value
// for the in-memory feed; both channels close when ctx ends.
func (f *MemoryFeed) Subscribe(ctx context.Context, limit int) (<-chan []domain.Interaction, <-chan error, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}
	s := &memorySub{limit: limit, snaps: make(chan []domain.Interaction, 1)}
	errs := make(chan error)

	f.mu.Lock()
	id := f.nextID
	f.nextID++
	f.subs[id] = s
	offer(s.snaps, newestFirst(f.items, limit))
	f.mu.Unlock()

	go func() {
		<-ctx.Done()
		f.mu.Lock()
		delete(f.subs, id)
		close(s.snaps)
		f.mu.Unlock()
		close(errs)
	}()
	return s.snaps, errs, nil
}

// Len returns how many interactions are stored.
func (f *MemoryFeed) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.items)
}
