package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/moaaz-s/authcore/kv"
	"github.com/moaaz-s/authcore/pin"
)

const recordKey = "session"

// ErrNotAuthenticated is returned when Activate is called without a
// valid server authentication.
var ErrNotAuthenticated = errors.New("server authentication required")

// Status is the derived state of the local session.
type Status uint8

const (
	// StatusInactive means no session record exists.
	StatusInactive Status = iota
	// StatusExpired means the record outlived its absolute TTL.
	StatusExpired
	// StatusLocked means the record exists but the unlock was lost.
	StatusLocked
	// StatusActive means the session is unlocked and PIN-verified.
	StatusActive
)

func (s Status) String() string {
	switch s {
	case StatusInactive:
		return "inactive"
	case StatusExpired:
		return "expired"
	case StatusLocked:
		return "locked"
	case StatusActive:
		return "active"
	}
	return "unknown"
}

// Record is the persisted session state. Locking clears Active and
// PinVerified but preserves the timestamps for audit. Timestamps are
// Unix nanoseconds so consecutive activity refreshes strictly increase
// them.
type Record struct {
	Active       bool  `json:"active"`
	PinVerified  bool  `json:"pin_verified"`
	LastActivity int64 `json:"last_activity"`
	ExpiresAt    int64 `json:"expires_at"`
}

// Config holds session lifetime settings.
type Config struct {
	TTL         time.Duration
	IdleTimeout time.Duration
}

// PinValidator is the credential dependency; satisfied by [pin.Manager].
type PinValidator interface {
	ValidatePin(ctx context.Context, p string) (pin.Result, error)
}

// AuthCheck reports whether the server-side authentication currently
// holds; satisfied by the token store.
type AuthCheck func(ctx context.Context) bool

// Manager owns the activity-tracked, auto-locking session record. The
// idle timer is the only background-scheduled operation in the core:
// re-armed on every activity refresh, cancelled on teardown.
type Manager struct {
	store     kv.Store
	pins      PinValidator
	checkAuth AuthCheck
	config    Config

	mu     sync.Mutex
	record *Record
	timer  *time.Timer
	onLock func()
	now    func() time.Time
}

// NewManager creates a session Manager and rehydrates any persisted
// record. An already-expired rehydrated record is discarded, so a
// restart never resumes into Expired.
func NewManager(ctx context.Context, store kv.Store, pins PinValidator, checkAuth AuthCheck, cfg Config) (*Manager, error) {
	if store == nil {
		return nil, errors.New("session manager requires a store")
	}
	if pins == nil {
		return nil, errors.New("session manager requires a pin validator")
	}
	if checkAuth == nil {
		return nil, errors.New("session manager requires an auth check")
	}
	if cfg.TTL <= 0 || cfg.IdleTimeout <= 0 {
		return nil, errors.New("session TTL and idle timeout must be > 0")
	}

	m := &Manager{
		store:     store,
		pins:      pins,
		checkAuth: checkAuth,
		config:    cfg,
		now:       time.Now,
	}
	m.rehydrate(ctx)
	return m, nil
}

func (m *Manager) rehydrate(ctx context.Context) {
	raw, err := m.store.GetItem(ctx, recordKey)
	if err != nil {
		return
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		_ = m.store.RemoveItem(ctx, recordKey)
		return
	}
	if rec.ExpiresAt <= m.now().UnixNano() {
		_ = m.store.RemoveItem(ctx, recordKey)
		return
	}

	m.record = &rec
	if rec.Active && rec.PinVerified {
		m.armIdleTimer()
	}
}

// SetLockHandler registers a callback invoked after an idle auto-lock.
// Must be set before the first Activate.
func (m *Manager) SetLockHandler(fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onLock = fn
}

// Activate verifies pin and, on success, (re)creates the session record
// unlocked. It requires server authentication to already hold. The
// [pin.Result] is returned verbatim so callers can surface remaining
// attempts or lockout.
func (m *Manager) Activate(ctx context.Context, p string) (pin.Result, error) {
	if !m.checkAuth(ctx) {
		return pin.Result{}, ErrNotAuthenticated
	}

	res, err := m.pins.ValidatePin(ctx, p)
	if err != nil {
		return pin.Result{}, err
	}
	if !res.Valid {
		return res, nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.record = &Record{
		Active:       true,
		PinVerified:  true,
		LastActivity: now.UnixNano(),
		ExpiresAt:    now.Add(m.config.TTL).UnixNano(),
	}
	if err := m.persist(ctx); err != nil {
		return pin.Result{}, err
	}
	m.armIdleTimer()
	return res, nil
}

// RefreshActivity bumps LastActivity and ExpiresAt and re-arms the idle
// timer. It is a no-op on an inactive session and is cheap enough to
// call on every interaction signal.
func (m *Manager) RefreshActivity(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record == nil || !m.record.Active {
		return
	}

	now := m.now()
	m.record.LastActivity = now.UnixNano()
	m.record.ExpiresAt = now.Add(m.config.TTL).UnixNano()
	m.armIdleTimer()
	_ = m.persist(ctx)
}

// Lock clears Active and PinVerified, preserving timestamps.
func (m *Manager) Lock(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lockLocked(ctx)
}

func (m *Manager) lockLocked(ctx context.Context) {
	m.stopIdleTimer()
	if m.record == nil {
		return
	}
	m.record.Active = false
	m.record.PinVerified = false
	_ = m.persist(ctx)
}

// Destroy removes the session record entirely. Called on logout or loss
// of server authentication.
func (m *Manager) Destroy(ctx context.Context) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopIdleTimer()
	m.record = nil
	_ = m.store.RemoveItem(ctx, recordKey)
}

// Status derives the session state. Expiry is checked before lock
// state: an expired record reports Expired even while Active.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record == nil {
		return StatusInactive
	}
	if m.record.ExpiresAt < m.now().UnixNano() {
		return StatusExpired
	}
	if !m.record.Active || !m.record.PinVerified {
		return StatusLocked
	}
	return StatusActive
}

// Active reports Status() == StatusActive.
func (m *Manager) Active() bool {
	return m.Status() == StatusActive
}

// Snapshot returns a copy of the current record, or nil.
func (m *Manager) Snapshot() *Record {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.record == nil {
		return nil
	}
	rec := *m.record
	return &rec
}

func (m *Manager) armIdleTimer() {
	if m.timer != nil {
		m.timer.Reset(m.config.IdleTimeout)
		return
	}
	m.timer = time.AfterFunc(m.config.IdleTimeout, m.idleLock)
}

func (m *Manager) stopIdleTimer() {
	if m.timer != nil {
		m.timer.Stop()
	}
}

func (m *Manager) idleLock() {
	m.mu.Lock()
	locked := m.record != nil && m.record.Active
	m.lockLocked(context.Background())
	onLock := m.onLock
	m.mu.Unlock()

	if locked && onLock != nil {
		onLock()
	}
}

func (m *Manager) persist(ctx context.Context) error {
	data, err := json.Marshal(m.record)
	if err != nil {
		return err
	}
	return m.store.SetItem(ctx, recordKey, string(data))
}
