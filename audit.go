package authcore

import (
	"context"
	"time"

	internalaudit "github.com/moaaz-s/authcore/internal/audit"
)

const (
	auditEventFlowInitiated    = "flow_initiated"
	auditEventStepAdvanced     = "step_advanced"
	auditEventFlowCompleted    = "flow_completed"
	auditEventFlowDeadEnd      = "flow_dead_end"
	auditEventOtpSent          = "otp_sent"
	auditEventOtpVerified      = "otp_verified"
	auditEventOtpFailure       = "otp_failure"
	auditEventTokenAcquired    = "token_acquired"
	auditEventTokenFailure     = "token_failure"
	auditEventPinSet           = "pin_set"
	auditEventPinFailure       = "pin_failure"
	auditEventPinLockout       = "pin_lockout"
	auditEventSessionActivated = "session_activated"
	auditEventSessionLocked    = "session_locked"
	auditEventLogout           = "logout"
)

// emitAudit forwards a flow-scoped event to the dispatcher. Callers
// must hold e.mu: the flow annotation reads the in-flight instance.
// meta is lazily built only when audit is enabled.
func (e *Engine) emitAudit(ctx context.Context, eventType string, success bool, err error, meta func() map[string]string) {
	if e.audit == nil {
		return
	}

	event := internalaudit.Event{
		Timestamp: time.Now(),
		EventType: eventType,
		DeviceID:  e.device.ID,
		Success:   success,
	}
	if flow := e.flow; flow != nil {
		event.Flow = string(flow.Type)
		event.Step = string(flow.CurrentStep())
	}
	if err != nil {
		event.Error = err.Error()
	}
	if meta != nil {
		event.Metadata = meta()
	}

	e.audit.Emit(ctx, event)
}

// AuditDropped reports how many audit events were dropped under
// backpressure.
func (e *Engine) AuditDropped() uint64 {
	if e == nil {
		return 0
	}
	return e.audit.Dropped()
}
