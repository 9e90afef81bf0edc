package repository

import (
	"context"
	"sync"

	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/model"
)

// History is the per-kind analysis history table, partitioned by scope key
type History[R any] interface {
	// List returns at most limit records of the scope, newest first
	List(ctx context.Context, scope model.ScopeKey, limit int) ([]*model.Record[R], error)

	// Get retrieves a record by ID
	Get(ctx context.Context, id model.RecordID) (*model.Record[R], error)

	// Insert stores a new record and assigns its ID and CreatedAt
	Insert(ctx context.Context, record *model.Record[R]) error

	// DeleteOne removes a record. Deleting a missing record is a no-op.
	DeleteOne(ctx context.Context, id model.RecordID) error

	// DeleteAll removes every record of the scope and nothing else
	DeleteAll(ctx context.Context, scope model.ScopeKey) error

	// Subscribe calls onChange for every insert, update or delete in the
	// scope until the subscription is closed or ctx is cancelled.
	Subscribe(ctx context.Context, scope model.ScopeKey, onChange func()) (Subscription, error)
}

// Subscription is the cancellation handle of a change feed
type Subscription interface {
	// Close releases the feed and waits for its listener to stop. It must
	// not be called from inside onChange.
	Close()
}

// LoginSink receives login events. Callers treat it as best effort.
type LoginSink interface {
	RecordLogin(ctx context.Context, entry *model.LoginEntry) error
}

// NopLoginSink drops every login event
type NopLoginSink struct{}

func (NopLoginSink) RecordLogin(ctx context.Context, entry *model.LoginEntry) error {
	return nil
}

// Default history list sizes, one per view
const (
	DefaultCropHistoryLimit = 10
	DefaultSoilHistoryLimit = 6
)

// DefaultLimit returns the history list size shown for a kind
func DefaultLimit(kind model.Kind) int {
	if kind == model.KindSoil {
		return DefaultSoilHistoryLimit
	}
	return DefaultCropHistoryLimit
}

// subscription is a goroutine backed Subscription
type subscription struct {
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

func newSubscription(cancel context.CancelFunc) *subscription {
	return &subscription{
		cancel: cancel,
		done:   make(chan struct{}),
	}
}

func (s *subscription) Close() {
	s.once.Do(s.cancel)
	<-s.done
}
