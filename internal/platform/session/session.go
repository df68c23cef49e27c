// Package session persists the signed-in identity between console runs.
//
// Two keys are written: "token" holds the opaque bearer token and
// "currentUser" holds the JSON-encoded user profile. Both are written on a
// successful login and removed on logout or when the API rejects the token.
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/ehr/hospital/internal/domain/identity"
)

const (
	KeyToken       = "token"
	KeyCurrentUser = "currentUser"
)

var (
	// ErrNotFound is returned by KV.Get for a missing key.
	ErrNotFound = errors.New("session key not found")
	// ErrCorrupt is returned by Load when a stored profile cannot be decoded.
	ErrCorrupt = errors.New("stored session is corrupt")
)

// KV is a durable string key-value store. SetMany writes all entries or
// none of them.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	SetMany(ctx context.Context, entries map[string]string) error
	Delete(ctx context.Context, keys ...string) error
}

// Saved is a persisted session.
type Saved struct {
	Token string
	User  identity.User
}

// Save writes the token and profile together. If the write fails both keys
// are removed, so a later Load never pairs a new token with an old profile.
func Save(ctx context.Context, kv KV, token string, user identity.User) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("encode user: %w", err)
	}
	err = kv.SetMany(ctx, map[string]string{
		KeyToken:       token,
		KeyCurrentUser: string(data),
	})
	if err == nil {
		return nil
	}
	if cerr := Clear(ctx, kv); cerr != nil {
		return fmt.Errorf("save session: %w (clear: %v)", err, cerr)
	}
	return fmt.Errorf("save session: %w", err)
}

// Load returns the persisted session. ok is false when either key is
// missing. A profile that fails to decode yields ErrCorrupt.
func Load(ctx context.Context, kv KV) (s Saved, ok bool, err error) {
	token, err := kv.Get(ctx, KeyToken)
	if errors.Is(err, ErrNotFound) {
		return Saved{}, false, nil
	}
	if err != nil {
		return Saved{}, false, err
	}
	raw, err := kv.Get(ctx, KeyCurrentUser)
	if errors.Is(err, ErrNotFound) {
		return Saved{}, false, nil
	}
	if err != nil {
		return Saved{}, false, err
	}
	if token == "" {
		return Saved{}, false, nil
	}
	var u identity.User
	if err := json.Unmarshal([]byte(raw), &u); err != nil {
		return Saved{}, false, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if u.ID == 0 && u.Username == "" {
		return Saved{}, false, ErrCorrupt
	}
	return Saved{Token: token, User: u}, true, nil
}

// Clear removes both session keys.
func Clear(ctx context.Context, kv KV) error {
	return kv.Delete(ctx, KeyToken, KeyCurrentUser)
}

// Memory is an in-process KV used by tests and by the console when no
// session file is wanted.
type Memory struct {
	mu   sync.RWMutex
	data map[string]string
}

func NewMemory() *Memory {
	return &Memory{data: make(map[string]string)}
}

func (m *Memory) Get(_ context.Context, key string) (string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	v, ok := m.data[key]
	if !ok {
		return "", ErrNotFound
	}
	return v, nil
}

func (m *Memory) Set(_ context.Context, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = value
	return nil
}

func (m *Memory) SetMany(_ context.Context, entries map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for k, v := range entries {
		m.data[k] = v
	}
	return nil
}

func (m *Memory) Delete(_ context.Context, keys ...string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, k := range keys {
		delete(m.data, k)
	}
	return nil
}

// Len reports the number of stored keys.
func (m *Memory) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.data)
}
