package model

import (
	"encoding/base64"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/m-mizutani/goerr/v2"
)

// scopeKeyLength is the number of encoded characters kept from the email.
const scopeKeyLength = 20

// Identity is the unverified user profile established at login.
type Identity struct {
	Name  string `json:"name" yaml:"name"`
	Email string `json:"email" yaml:"email"`
}

// NewIdentity trims the submitted form values and rejects blank ones. The
// email is not checked beyond that.
func NewIdentity(name, email string) (*Identity, error) {
	name = strings.TrimSpace(name)
	email = strings.TrimSpace(email)

	if name == "" {
		return nil, goerr.Wrap(ErrInvalidIdentity, "name is empty")
	}
	if email == "" {
		return nil, goerr.Wrap(ErrInvalidIdentity, "email is empty", goerr.V("name", name))
	}

	return &Identity{Name: name, Email: email}, nil
}

// Validate checks that a restored identity still has both fields.
func (x *Identity) Validate() error {
	if x == nil || strings.TrimSpace(x.Name) == "" || strings.TrimSpace(x.Email) == "" {
		return ErrInvalidIdentity
	}
	return nil
}

// ScopeKey derives the key partitioning remote history rows. Same email
// always yields the same key; collisions between emails sharing a long
// prefix are accepted.
func (x *Identity) ScopeKey() ScopeKey {
	encoded := base64.StdEncoding.EncodeToString([]byte(x.Email))
	if len(encoded) > scopeKeyLength {
		encoded = encoded[:scopeKeyLength]
	}
	return ScopeKey(encoded)
}

// ScopeKey partitions history rows per identity.
type ScopeKey string

func (k ScopeKey) String() string { return string(k) }

type LoginEntryID string

func NewLoginEntryID() LoginEntryID {
	return LoginEntryID(uuid.New().String())
}

// LoginEntry is one row of the append-only login event table.
type LoginEntry struct {
	ID        LoginEntryID
	FullName  string
	Email     string
	Timestamp time.Time
}

// NewLoginEntry builds a login event for the identity at the given time.
func NewLoginEntry(id *Identity, at time.Time) *LoginEntry {
	return &LoginEntry{
		ID:        NewLoginEntryID(),
		FullName:  id.Name,
		Email:     id.Email,
		Timestamp: at.UTC(),
	}
}
