package authcore

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	internalaudit "github.com/moaaz-s/authcore/internal/audit"
	"github.com/moaaz-s/authcore/kv"
	"github.com/moaaz-s/authcore/pin"
	"github.com/moaaz-s/authcore/session"
	"github.com/moaaz-s/authcore/token"
)

// Engine orchestrates the multi-channel authentication flows over the
// credential, token, and session components. Engine instances are
// configured through [Builder.Build] and safe for concurrent use; flow
// mutation is serialized internally.
type Engine struct {
	config      Config
	store       kv.Store
	pins        *pin.Manager
	tokens      *token.Store
	sessions    *session.Manager
	verifier    VerificationService
	tokenIssuer token.Issuer
	device      DeviceInfo
	audit       *internalaudit.Dispatcher
	metrics     *Metrics

	// mu serializes flow initiation/advance. Re-entrant AdvanceFlow
	// calls queue instead of interleaving over the same persisted
	// credential and token state.
	mu   sync.Mutex
	flow *FlowInstance
	now  func() time.Time
}

// Close flushes and stops the audit dispatcher.
func (e *Engine) Close() {
	if e == nil {
		return
	}
	if e.audit != nil {
		e.audit.Close()
	}
}

// CurrentStep returns the in-flight flow's current step, or "".
func (e *Engine) CurrentStep() Step {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flow.CurrentStep()
}

// FlowStepData returns a copy of the in-flight flow's accumulated step
// data, or the zero value when no flow is active.
func (e *Engine) FlowStepData() StepData {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.flow.StepData()
}

// GetAuthToken returns the persisted access token.
func (e *Engine) GetAuthToken(ctx context.Context) (string, error) {
	return e.tokens.AuthToken(ctx)
}

// SessionStatus derives the local session state.
func (e *Engine) SessionStatus() session.Status {
	return e.sessions.Status()
}

// RefreshActivity records an interaction signal, extending the session
// window and re-arming the idle auto-lock. Cheap to call frequently.
func (e *Engine) RefreshActivity(ctx context.Context) {
	e.sessions.RefreshActivity(ctx)
}

// LockSession locks the local session without touching server state.
func (e *Engine) LockSession(ctx context.Context) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.sessions.Lock(ctx)
	e.metrics.Inc(MetricSessionLocked)
	e.emitAudit(ctx, auditEventSessionLocked, true, nil, nil)
}

// Logout tears down authentication: best-effort server logout, token
// pair cleared, session destroyed, in-flight flow discarded.
func (e *Engine) Logout(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.tokenIssuer != nil {
		if err := e.tokenIssuer.Logout(ctx); err != nil {
			log.Printf("authcore: server logout failed: %v", err)
		}
	}

	if err := e.tokens.ClearTokens(ctx); err != nil {
		return err
	}
	e.sessions.Destroy(ctx)
	e.flow = nil

	e.metrics.Inc(MetricLogout)
	e.emitAudit(ctx, auditEventLogout, true, nil, nil)
	return nil
}

// MetricsSnapshot deep-copies the engine counters.
func (e *Engine) MetricsSnapshot() MetricsSnapshot {
	return e.metrics.Snapshot()
}

// mapSessionErr translates session-layer sentinels into the engine
// taxonomy: a session refused for lack of server authentication is a
// token problem from the caller's point of view.
func mapSessionErr(err error) error {
	if errors.Is(err, session.ErrNotAuthenticated) {
		return ErrTokenInvalid
	}
	return err
}
