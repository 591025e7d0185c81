package pin

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/moaaz-s/authcore/kv"
)

const stateKey = "pin_state"

// Config holds PIN lifecycle settings.
type Config struct {
	MaxAttempts     int
	LockoutDuration time.Duration
}

// Result is the outcome of a single ValidatePin call.
type Result struct {
	Valid             bool
	AttemptsRemaining int
	Locked            bool
	LockUntil         time.Time
}

type state struct {
	Hash      string `json:"hash,omitempty"`
	Attempts  int    `json:"attempts"`
	LockUntil int64  `json:"lock_until,omitempty"`
	Forgotten bool   `json:"forgotten,omitempty"`
}

// Manager owns the PIN lifecycle: set, validate with attempt counting
// and lockout, clear, and the forgot-PIN marker. All read-modify-write
// on the persisted record is serialized behind a mutex so concurrent
// validations cannot under-count lockout attempts.
type Manager struct {
	store  kv.Store
	hasher *Hasher
	config Config

	mu  sync.Mutex
	now func() time.Time
}

// NewManager creates a PIN Manager over the given store.
func NewManager(store kv.Store, hasher *Hasher, cfg Config) (*Manager, error) {
	if store == nil {
		return nil, errors.New("pin manager requires a store")
	}
	if hasher == nil {
		return nil, errors.New("pin manager requires a hasher")
	}
	if cfg.MaxAttempts <= 0 {
		return nil, errors.New("pin max attempts must be > 0")
	}
	if cfg.LockoutDuration <= 0 {
		return nil, errors.New("pin lockout duration must be > 0")
	}

	return &Manager{
		store:  store,
		hasher: hasher,
		config: cfg,
		now:    time.Now,
	}, nil
}

// SetPin hashes and persists a new PIN, resetting attempts and clearing
// any lockout and forgot-PIN marker in the same write.
func (m *Manager) SetPin(ctx context.Context, pin string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	record, err := m.hasher.Hash(pin)
	if err != nil {
		return err
	}

	return m.save(ctx, state{Hash: record})
}

// ValidatePin verifies pin against the stored record.
//
// A future lockUntil blocks verification outright without consuming an
// attempt, even for the correct PIN. Success resets the attempt
// counter. The failure that reaches MaxAttempts arms a fresh lockout
// and resets the counter.
func (m *Manager) ValidatePin(ctx context.Context, pin string) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.load(ctx)
	now := m.now()

	if until := time.Unix(st.LockUntil, 0); st.LockUntil > 0 && until.After(now) {
		return Result{Locked: true, LockUntil: until}, nil
	}

	if st.Hash == "" || !m.hasher.Verify(pin, st.Hash) {
		st.Attempts++
		if st.Attempts >= m.config.MaxAttempts {
			until := now.Add(m.config.LockoutDuration)
			st.Attempts = 0
			st.LockUntil = until.Unix()
			if err := m.save(ctx, st); err != nil {
				return Result{}, err
			}
			return Result{Locked: true, LockUntil: until}, nil
		}
		if err := m.save(ctx, st); err != nil {
			return Result{}, err
		}
		return Result{AttemptsRemaining: m.config.MaxAttempts - st.Attempts}, nil
	}

	if st.Attempts != 0 || st.LockUntil != 0 {
		st.Attempts = 0
		st.LockUntil = 0
		if err := m.save(ctx, st); err != nil {
			return Result{}, err
		}
	}
	return Result{Valid: true}, nil
}

// ClearPin erases the stored hash, attempt counter, and lockout.
func (m *Manager) ClearPin(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.store.RemoveItem(ctx, stateKey)
}

// IsPinSet reports whether a PIN hash is stored.
func (m *Manager) IsPinSet(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.load(ctx).Hash != ""
}

// IsLocked reports whether a lockout is currently in force.
func (m *Manager) IsLocked(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.load(ctx)
	return st.LockUntil > 0 && time.Unix(st.LockUntil, 0).After(m.now())
}

// MarkForgotten flags the PIN as forgotten. The flag is cleared by the
// next SetPin and drives FORGOT_PIN flow entry.
func (m *Manager) MarkForgotten(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	st := m.load(ctx)
	st.Forgotten = true
	return m.save(ctx, st)
}

// IsForgotten reports whether the forgot-PIN marker is set.
func (m *Manager) IsForgotten(ctx context.Context) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.load(ctx).Forgotten
}

// load reads the persisted state, failing closed: a missing or
// corrupted record reads as unset rather than erroring, to avoid crash
// loops on bad persisted data.
func (m *Manager) load(ctx context.Context) state {
	raw, err := m.store.GetItem(ctx, stateKey)
	if err != nil {
		return state{}
	}

	var st state
	if err := json.Unmarshal([]byte(raw), &st); err != nil {
		return state{}
	}
	return st
}

func (m *Manager) save(ctx context.Context, st state) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return m.store.SetItem(ctx, stateKey, string(data))
}
