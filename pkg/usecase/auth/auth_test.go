package auth_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/adapter"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/model"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/repository"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/usecase/auth"
	"github.com/m-mizutani/goerr/v2"
	"github.com/m-mizutani/gt"
)

type failingSink struct {
	calls int
}

func (s *failingSink) RecordLogin(ctx context.Context, entry *model.LoginEntry) error {
	s.calls++
	return goerr.New("sink unavailable")
}

// blockingSink waits until the call is cancelled
type blockingSink struct{}

func (blockingSink) RecordLogin(ctx context.Context, entry *model.LoginEntry) error {
	<-ctx.Done()
	return ctx.Err()
}

func newStore(t *testing.T) (adapter.LocalStorage, *auth.SessionStore) {
	t.Helper()
	storage, err := adapter.NewLocalStorage(context.Background(), adapter.InMemoryLocalStorage)
	gt.NoError(t, err)
	t.Cleanup(func() { _ = storage.Close() })
	return storage, auth.NewSessionStore(storage)
}

func TestLogin(t *testing.T) {
	ctx := context.Background()
	_, sessions := newStore(t)
	sink := &repository.MemoryLoginSink{}
	at := time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)
	uc := auth.New(sessions, sink, auth.WithClock(func() time.Time { return at }))

	result, err := uc.Login(ctx, "  Jane Doe ", " jane@uni.edu ")
	gt.NoError(t, err)
	gt.NoError(t, result.SinkErr)
	gt.Equal(t, result.Session.Identity.Name, "Jane Doe")
	gt.Equal(t, result.Session.ScopeKey, model.ScopeKey("amFuZUB1bmkuZWR1"))

	entries := sink.Entries()
	gt.A(t, entries).Length(1)
	gt.Equal(t, entries[0].FullName, "Jane Doe")
	gt.Equal(t, entries[0].Timestamp, at)

	current, err := uc.Current(ctx)
	gt.NoError(t, err)
	gt.V(t, current).NotNil()
	gt.Equal(t, current.Identity.Email, "jane@uni.edu")
}

func TestLoginRejectsBlankFields(t *testing.T) {
	ctx := context.Background()
	_, sessions := newStore(t)
	sink := &repository.MemoryLoginSink{}
	uc := auth.New(sessions, sink)

	testCases := []struct {
		name  string
		user  string
		email string
	}{
		{name: "blank name", user: "  ", email: "a@b.c"},
		{name: "blank email", user: "A", email: ""},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := uc.Login(ctx, tc.user, tc.email)
			gt.Error(t, err)
			gt.True(t, errors.Is(err, model.ErrInvalidIdentity))
		})
	}

	gt.A(t, sink.Entries()).Length(0)
	current, err := uc.Current(ctx)
	gt.NoError(t, err)
	gt.Nil(t, current)
}

func TestLoginSinkFailureStillLogsIn(t *testing.T) {
	ctx := context.Background()
	_, sessions := newStore(t)
	sink := &failingSink{}
	uc := auth.New(sessions, sink)

	result, err := uc.Login(ctx, "Jane", "jane@uni.edu")
	gt.NoError(t, err)
	gt.Error(t, result.SinkErr)
	gt.Equal(t, sink.calls, 1)

	current, err := uc.Current(ctx)
	gt.NoError(t, err)
	gt.V(t, current).NotNil()
	gt.Equal(t, current.Identity.Name, "Jane")
}

func TestLoginSinkTimeout(t *testing.T) {
	ctx := context.Background()
	_, sessions := newStore(t)
	uc := auth.New(sessions, blockingSink{}, auth.WithSinkTimeout(50*time.Millisecond))

	type loginReturn struct {
		result *auth.LoginResult
		err    error
	}
	done := make(chan loginReturn, 1)
	go func() {
		result, err := uc.Login(ctx, "Jane", "jane@uni.edu")
		done <- loginReturn{result, err}
	}()

	select {
	case ret := <-done:
		gt.NoError(t, ret.err)
		gt.Error(t, ret.result.SinkErr)
		gt.True(t, errors.Is(ret.result.SinkErr, context.DeadlineExceeded))
	case <-time.After(3 * time.Second):
		t.Fatal("login is blocked by the login sink")
	}

	current, err := uc.Current(ctx)
	gt.NoError(t, err)
	gt.V(t, current).NotNil()
	gt.Equal(t, current.Identity.Email, "jane@uni.edu")
}

func TestLogout(t *testing.T) {
	ctx := context.Background()
	_, sessions := newStore(t)
	uc := auth.New(sessions, nil)

	_, err := uc.Login(ctx, "Jane", "jane@uni.edu")
	gt.NoError(t, err)
	gt.NoError(t, uc.Logout(ctx))
	gt.NoError(t, uc.Logout(ctx))

	current, err := uc.Current(ctx)
	gt.NoError(t, err)
	gt.Nil(t, current)

	_, err = uc.Require(ctx)
	gt.True(t, errors.Is(err, model.ErrNotLoggedIn))
}

func TestMalformedSessionIsAbsent(t *testing.T) {
	ctx := context.Background()
	storage, sessions := newStore(t)
	uc := auth.New(sessions, nil)

	testCases := map[string]string{
		"not json":      `{"name":`,
		"missing email": `{"name":"Jane"}`,
		"wrong type":    `["Jane"]`,
	}

	for name, raw := range testCases {
		t.Run(name, func(t *testing.T) {
			gt.NoError(t, storage.Set(ctx, auth.SessionKey, []byte(raw)))

			current, err := uc.Current(ctx)
			gt.NoError(t, err)
			gt.Nil(t, current)
		})
	}
}
