package auth

import (
	"context"
	"time"

	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/model"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/repository"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// UseCase manages the local identity session
type UseCase struct {
	sessions *SessionStore
	sink     repository.LoginSink
	clock    func() time.Time

	sinkTimeout time.Duration
}

// DefaultSinkTimeout bounds the login event call
const DefaultSinkTimeout = 5 * time.Second

// Option is a functional option for UseCase
type Option func(*UseCase)

// WithClock overrides the clock used to stamp login events
func WithClock(clock func() time.Time) Option {
	return func(uc *UseCase) {
		uc.clock = clock
	}
}

// WithSinkTimeout sets the deadline of the login event call. Zero
// disables it.
func WithSinkTimeout(d time.Duration) Option {
	return func(uc *UseCase) {
		uc.sinkTimeout = d
	}
}

// New creates a new auth UseCase. A nil sink disables login events.
func New(sessions *SessionStore, sink repository.LoginSink, opts ...Option) *UseCase {
	if sink == nil {
		sink = repository.NopLoginSink{}
	}

	uc := &UseCase{
		sessions: sessions,
		sink:     sink,
		clock:    time.Now,

		sinkTimeout: DefaultSinkTimeout,
	}

	for _, opt := range opts {
		opt(uc)
	}

	return uc
}

// LoginResult reports a completed login. SinkErr is set when the login event
// could not be recorded; the session is established regardless.
type LoginResult struct {
	Session *Session
	SinkErr error
}

// Login validates the form values, stores the identity locally and then
// records a login event. The event call is bounded by the sink timeout.
func (u *UseCase) Login(ctx context.Context, name, email string) (*LoginResult, error) {
	id, err := model.NewIdentity(name, email)
	if err != nil {
		return nil, err
	}

	if err := u.sessions.Save(ctx, id); err != nil {
		return nil, err
	}

	result := &LoginResult{Session: NewSession(id)}
	if err := u.recordLogin(ctx, id); err != nil {
		logging.From(ctx).Warn("failed to record login event", "error", err, "email", id.Email)
		result.SinkErr = err
	}

	logging.From(ctx).Debug("logged in", "name", id.Name, "scope", result.Session.ScopeKey)
	return result, nil
}

func (u *UseCase) recordLogin(ctx context.Context, id *model.Identity) error {
	if u.sinkTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, u.sinkTimeout)
		defer cancel()
	}

	if err := u.sink.RecordLogin(ctx, model.NewLoginEntry(id, u.clock())); err != nil {
		return goerr.Wrap(err, "failed to record login event")
	}
	return nil
}

// Logout clears the stored identity. History rows are kept.
func (u *UseCase) Logout(ctx context.Context) error {
	return u.sessions.Clear(ctx)
}

// Current returns the active session, or nil when nobody is logged in
func (u *UseCase) Current(ctx context.Context) (*Session, error) {
	id, err := u.sessions.Load(ctx)
	if err != nil {
		return nil, err
	}
	if id == nil {
		return nil, nil
	}
	return NewSession(id), nil
}

// Require returns the active session or model.ErrNotLoggedIn
func (u *UseCase) Require(ctx context.Context) (*Session, error) {
	s, err := u.Current(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, goerr.Wrap(model.ErrNotLoggedIn, "login required")
	}
	return s, nil
}
