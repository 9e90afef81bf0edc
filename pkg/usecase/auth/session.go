package auth

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/adapter"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/model"
	"github.com/Amit-Kumar-Behera-Hub/TDP-Conclave/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

// SessionKey is the local storage key holding the serialized identity
const SessionKey = "agritech_user"

// Session is the active identity and the scope its history lives under
type Session struct {
	Identity *model.Identity `json:"identity" yaml:"identity"`
	ScopeKey model.ScopeKey  `json:"scope_key" yaml:"scope_key"`
}

func NewSession(id *model.Identity) *Session {
	return &Session{Identity: id, ScopeKey: id.ScopeKey()}
}

// SessionStore persists the identity across restarts
type SessionStore struct {
	storage adapter.LocalStorage
}

func NewSessionStore(storage adapter.LocalStorage) *SessionStore {
	return &SessionStore{storage: storage}
}

// Load returns the stored identity, or nil when none is stored. A value that
// cannot be decoded is treated as absent.
func (s *SessionStore) Load(ctx context.Context) (*model.Identity, error) {
	raw, err := s.storage.Get(ctx, SessionKey)
	if err != nil {
		if errors.Is(err, model.ErrKeyNotFound) {
			return nil, nil
		}
		return nil, goerr.Wrap(err, "failed to load session")
	}

	var id model.Identity
	if err := json.Unmarshal(raw, &id); err != nil {
		logging.From(ctx).Warn("discarding malformed session", "error", err)
		return nil, nil
	}
	if err := id.Validate(); err != nil {
		logging.From(ctx).Warn("discarding incomplete session", "error", err)
		return nil, nil
	}

	return &id, nil
}

func (s *SessionStore) Save(ctx context.Context, id *model.Identity) error {
	raw, err := json.Marshal(id)
	if err != nil {
		return goerr.Wrap(err, "failed to encode session")
	}
	if err := s.storage.Set(ctx, SessionKey, raw); err != nil {
		return goerr.Wrap(err, "failed to save session")
	}
	return nil
}

func (s *SessionStore) Clear(ctx context.Context) error {
	if err := s.storage.Delete(ctx, SessionKey); err != nil {
		return goerr.Wrap(err, "failed to clear session")
	}
	return nil
}
