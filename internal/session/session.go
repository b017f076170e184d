// Package session tracks at most one logged-in identity. Login accepts
// any non-empty email and performs no verification; the session is a
// purely client-local flag.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"strings"

	"github.com/google/uuid"

	"github.com/trkhq/trk/internal/models"
	"github.com/trkhq/trk/internal/state"
	"github.com/trkhq/trk/internal/store"
)

// ErrEmptyEmail is returned by Login for a blank email.
var ErrEmptyEmail = errors.New("email must not be empty")

// Session is the persisted blob layout for the identity container.
type Session struct {
	User          *models.User `json:"user"`
	Authenticated bool         `json:"isAuthenticated"`
}

// Manager is the identity container: two states, anonymous and
// authenticated, with login always succeeding and logout always
// clearing.
type Manager struct {
	state *state.Container[Session]
}

// New creates an anonymous in-memory manager with no persistence.
func New() *Manager {
	return &Manager{state: state.New(Session{})}
}

// Open restores the session from blobs and wires the persist hook.
// First run starts anonymous.
func Open(ctx context.Context, blobs store.Blobs) (*Manager, error) {
	var sess Session
	data, ok, err := blobs.Load(ctx, store.KeySession)
	if err != nil {
		return nil, err
	}
	if ok {
		if err := json.Unmarshal(data, &sess); err != nil {
			return nil, err
		}
	}

	m := &Manager{state: state.New(sess)}
	m.state.OnChange(func(s Session) {
		data, err := json.Marshal(s)
		if err != nil {
			return
		}
		_ = blobs.Save(context.Background(), store.KeySession, data)
	})
	return m, nil
}

// Login derives a display name from the email's local part, generates
// a fresh id, and marks the session authenticated. Any non-empty email
// is accepted.
func (m *Manager) Login(email string) (models.User, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return models.User{}, ErrEmptyEmail
	}

	name := email
	if at := strings.Index(email, "@"); at >= 0 {
		name = email[:at]
	}

	user := models.User{
		ID:    uuid.NewString(),
		Email: email,
		Name:  name,
	}
	m.state.Set(func(Session) Session {
		return Session{User: &user, Authenticated: true}
	})
	return user, nil
}

// Logout clears the identity unconditionally.
func (m *Manager) Logout() {
	m.state.Set(func(Session) Session {
		return Session{}
	})
}

// Current returns the logged-in user, if any.
func (m *Manager) Current() (models.User, bool) {
	s := m.state.Get()
	if s.User == nil {
		return models.User{}, false
	}
	return *s.User, true
}

// IsAuthenticated reports whether an identity is present.
func (m *Manager) IsAuthenticated() bool {
	s := m.state.Get()
	return s.Authenticated && s.User != nil
}
