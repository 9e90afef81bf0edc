package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

// MemoryHistory is an in-process History used by tests and the memory backend
type MemoryHistory[R any] struct {
	mu      sync.Mutex
	records map[model.RecordID]*memoryRecord[R]
	seq     uint64
	clock   func() time.Time

	subs   map[uint64]*memorySub
	subSeq uint64
}

type memoryRecord[R any] struct {
	record model.Record[R]
	seq    uint64
}

type memorySub struct {
	scope    model.ScopeKey
	onChange func()
}

// MemoryOption is a functional option for MemoryHistory
type MemoryOption func(*memoryOptions)

type memoryOptions struct {
	clock func() time.Time
}

// WithClock overrides the clock used to stamp inserted records
func WithClock(clock func() time.Time) MemoryOption {
	return func(o *memoryOptions) {
		o.clock = clock
	}
}

func NewMemoryHistory[R any](opts ...MemoryOption) *MemoryHistory[R] {
	o := memoryOptions{clock: time.Now}
	for _, opt := range opts {
		opt(&o)
	}

	return &MemoryHistory[R]{
		records: make(map[model.RecordID]*memoryRecord[R]),
		clock:   o.clock,
		subs:    make(map[uint64]*memorySub),
	}
}

func (m *MemoryHistory[R]) List(ctx context.Context, scope model.ScopeKey, limit int) ([]*model.Record[R], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var matched []*memoryRecord[R]
	for _, r := range m.records {
		if r.record.ScopeKey == scope {
			matched = append(matched, r)
		}
	}

	// Records created at the same instant keep insertion order, newest first.
	sort.Slice(matched, func(i, j int) bool {
		a, b := matched[i], matched[j]
		if !a.record.CreatedAt.Equal(b.record.CreatedAt) {
			return a.record.CreatedAt.After(b.record.CreatedAt)
		}
		return a.seq > b.seq
	})

	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}

	out := make([]*model.Record[R], 0, len(matched))
	for _, r := range matched {
		rec := r.record
		out = append(out, &rec)
	}
	return out, nil
}

func (m *MemoryHistory[R]) Get(ctx context.Context, id model.RecordID) (*model.Record[R], error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	r, ok := m.records[id]
	if !ok {
		return nil, goerr.Wrap(model.ErrRecordNotFound, "history record not found", goerr.V("id", id))
	}
	rec := r.record
	return &rec, nil
}

func (m *MemoryHistory[R]) Insert(ctx context.Context, record *model.Record[R]) error {
	if err := ctx.Err(); err != nil {
		return goerr.Wrap(err, "insert cancelled")
	}

	m.mu.Lock()
	m.seq++
	record.ID = model.NewRecordID()
	record.CreatedAt = m.clock().UTC()
	m.records[record.ID] = &memoryRecord[R]{record: *record, seq: m.seq}
	listeners := m.listenersLocked(record.ScopeKey)
	m.mu.Unlock()

	notify(listeners, 1)
	return nil
}

func (m *MemoryHistory[R]) DeleteOne(ctx context.Context, id model.RecordID) error {
	m.mu.Lock()
	r, ok := m.records[id]
	if !ok {
		m.mu.Unlock()
		return nil
	}
	delete(m.records, id)
	listeners := m.listenersLocked(r.record.ScopeKey)
	m.mu.Unlock()

	notify(listeners, 1)
	return nil
}

func (m *MemoryHistory[R]) DeleteAll(ctx context.Context, scope model.ScopeKey) error {
	m.mu.Lock()
	var n int
	for id, r := range m.records {
		if r.record.ScopeKey == scope {
			delete(m.records, id)
			n++
		}
	}
	listeners := m.listenersLocked(scope)
	m.mu.Unlock()

	notify(listeners, n)
	return nil
}

// Subscribe registers onChange for the scope. Notifications are delivered
// synchronously by the goroutine that made the change, after the store lock
// has been released.
func (m *MemoryHistory[R]) Subscribe(ctx context.Context, scope model.ScopeKey, onChange func()) (Subscription, error) {
	m.mu.Lock()
	m.subSeq++
	id := m.subSeq
	m.subs[id] = &memorySub{scope: scope, onChange: onChange}
	m.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	sub := newSubscription(cancel)
	context.AfterFunc(ctx, func() {
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
		close(sub.done)
	})

	return sub, nil
}

// Len returns the number of stored records across all scopes
func (m *MemoryHistory[R]) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func (m *MemoryHistory[R]) listenersLocked(scope model.ScopeKey) []func() {
	var out []func()
	for _, s := range m.subs {
		if s.scope == scope {
			out = append(out, s.onChange)
		}
	}
	return out
}

func notify(listeners []func(), events int) {
	for i := 0; i < events; i++ {
		for _, fn := range listeners {
			fn()
		}
	}
}

// MemoryLoginSink keeps login events in memory
type MemoryLoginSink struct {
	mu      sync.Mutex
	entries []*model.LoginEntry
}

func (s *MemoryLoginSink) RecordLogin(ctx context.Context, entry *model.LoginEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := *entry
	s.entries = append(s.entries, &copied)
	return nil
}

// Entries returns recorded login events in arrival order
func (s *MemoryLoginSink) Entries() []*model.LoginEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*model.LoginEntry(nil), s.entries...)
}
