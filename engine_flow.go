package authcore

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// InitiateFlow starts a flow of the given type, replacing any in-flight
// instance. The starting index is the first step whose guard passes
// against a context built from initial data; with no initial data that
// context is unauthenticated, no-PIN, no-session.
func (e *Engine) InitiateFlow(ctx context.Context, t FlowType, initial *StepData) (*FlowInstance, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.pins == nil || e.tokens == nil || e.sessions == nil {
		return nil, ErrEngineNotReady
	}

	table := stepTable(t)
	if table == nil {
		return nil, fmt.Errorf("%w: unknown flow type %q", ErrValidation, t)
	}

	data := StepData{}
	if initial != nil {
		data = *initial
	}

	// The previous flow, if any, is implicitly discarded: its pending
	// guard evaluation can never apply to the new instance.
	e.flow = &FlowInstance{
		ID:     uuid.NewString(),
		Type:   t,
		Device: e.device,
		steps:  table,
		data:   data,
	}

	fc := e.buildContext(ctx, data, nil)
	idx := firstEligible(table, fc)
	if idx < 0 {
		e.flow = nil
		e.metrics.Inc(MetricDeadEnd)
		return nil, ErrDeadEnd
	}
	e.flow.CurrentIndex = idx

	e.metrics.Inc(MetricFlowInitiated)
	e.emitAudit(ctx, auditEventFlowInitiated, true, nil, nil)
	return e.flow, nil
}

// AdvanceFlow merges payload into the flow's step data, executes the
// side effect owned by the step being left, and moves to the first
// eligible step after the current index. Transitions only occur on
// explicit calls; there is no background polling.
func (e *Engine) AdvanceFlow(ctx context.Context, payload StepData) (*StepResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	flow := e.flow
	if flow == nil {
		return nil, ErrNoFlow
	}

	current := flow.CurrentStep()
	if current == StepAuthenticated {
		return &StepResult{
			NextStep: StepAuthenticated,
			Context:  e.buildContext(ctx, flow.data, nil),
		}, nil
	}

	flow.data = flow.data.merged(payload)

	overrides, result, err := e.leaveStep(ctx, flow)
	if err != nil {
		return result, err
	}
	if result == nil {
		result = &StepResult{}
	}

	fc := e.buildContext(ctx, flow.data, overrides)
	next := nextEligible(flow.steps, flow.CurrentIndex, fc)
	if next < 0 {
		e.metrics.Inc(MetricDeadEnd)
		e.emitAudit(ctx, auditEventFlowDeadEnd, false, ErrDeadEnd, nil)
		return nil, ErrDeadEnd
	}

	flow.CurrentIndex = next
	result.NextStep = flow.steps[next].Step
	result.Context = fc

	e.metrics.Inc(MetricStepAdvanced)
	e.emitAudit(ctx, auditEventStepAdvanced, true, nil, func() map[string]string {
		return map[string]string{"from": string(current), "to": string(result.NextStep)}
	})
	if result.NextStep == StepAuthenticated {
		e.metrics.Inc(MetricFlowCompleted)
		e.emitAudit(ctx, auditEventFlowCompleted, true, nil, nil)
	}
	return result, nil
}

// leaveStep executes the side effect owned by the flow's current step
// and returns context overrides asserting the facts it just
// established, so the next guard scan sees them before the owning
// component's own write would be re-read.
func (e *Engine) leaveStep(ctx context.Context, flow *FlowInstance) (*FlowContext, *StepResult, error) {
	switch flow.CurrentStep() {
	case StepPhoneEntry:
		return e.leavePhoneEntry(ctx, flow)
	case StepPhoneOtpPending:
		return e.leaveOtpPending(ctx, flow, MediumPhone)
	case StepEmailEntryPending:
		return e.leaveEmailEntry(ctx, flow)
	case StepEmailOtpPending:
		return e.leaveOtpPending(ctx, flow, MediumEmail)
	case StepTokenAcquisition:
		return e.leaveTokenAcquisition(ctx, flow)
	case StepUserProfilePending:
		return e.leaveUserProfile(flow)
	case StepPinSetupPending:
		return e.leavePinSetup(ctx, flow)
	case StepPinEntryPending:
		return e.leavePinEntry(ctx, flow)
	}
	return nil, nil, nil
}

func (e *Engine) leavePhoneEntry(ctx context.Context, flow *FlowInstance) (*FlowContext, *StepResult, error) {
	if flow.data.Phone == "" {
		return nil, nil, fmt.Errorf("%w: phone required", ErrValidation)
	}

	ticket, err := e.verifier.SendOtp(ctx, MediumPhone, flow.data.Phone)
	if err != nil {
		e.emitAudit(ctx, auditEventOtpFailure, false, err, nil)
		return nil, nil, err
	}

	e.metrics.Inc(MetricOtpSent)
	e.emitAudit(ctx, auditEventOtpSent, true, nil, func() map[string]string {
		return map[string]string{"medium": string(MediumPhone)}
	})

	if !ticket.RequiresOtp {
		flow.data.PhoneValidated = true
		return &FlowContext{PhoneValidated: true}, nil, nil
	}
	flow.data.OtpExpiry = ticket.ExpiresAt
	return nil, nil, nil
}

func (e *Engine) leaveEmailEntry(ctx context.Context, flow *FlowInstance) (*FlowContext, *StepResult, error) {
	if flow.data.Email == "" {
		return nil, nil, fmt.Errorf("%w: email required", ErrValidation)
	}

	ticket, err := e.verifier.SendOtp(ctx, MediumEmail, flow.data.Email)
	if err != nil {
		e.emitAudit(ctx, auditEventOtpFailure, false, err, nil)
		return nil, nil, err
	}

	e.metrics.Inc(MetricOtpSent)
	e.emitAudit(ctx, auditEventOtpSent, true, nil, func() map[string]string {
		return map[string]string{"medium": string(MediumEmail)}
	})

	if !ticket.RequiresOtp {
		flow.data.EmailVerified = true
		return &FlowContext{EmailVerified: true}, nil, nil
	}
	flow.data.EmailOtpExpiry = ticket.ExpiresAt
	return nil, nil, nil
}

func (e *Engine) leaveOtpPending(ctx context.Context, flow *FlowInstance, medium Medium) (*FlowContext, *StepResult, error) {
	code := flow.data.Code
	flow.data.Code = ""
	if len(code) != e.config.OTP.Length {
		return nil, nil, fmt.Errorf("%w: otp code must be %d digits", ErrValidation, e.config.OTP.Length)
	}

	value := flow.data.Phone
	expiry := flow.data.OtpExpiry
	if medium == MediumEmail {
		value = flow.data.Email
		expiry = flow.data.EmailOtpExpiry
	}
	if !expiry.IsZero() && !e.now().Before(expiry) {
		return nil, nil, ErrOTPExpired
	}

	if err := e.verifier.VerifyOtp(ctx, medium, value, code); err != nil {
		e.metrics.Inc(MetricOtpFailure)
		e.emitAudit(ctx, auditEventOtpFailure, false, err, func() map[string]string {
			return map[string]string{"medium": string(medium)}
		})
		return nil, nil, err
	}

	e.metrics.Inc(MetricOtpVerified)
	e.emitAudit(ctx, auditEventOtpVerified, true, nil, func() map[string]string {
		return map[string]string{"medium": string(medium)}
	})

	if medium == MediumPhone {
		flow.data.PhoneValidated = true
		flow.data.OtpExpiry = time.Time{}
		return &FlowContext{PhoneValidated: true}, nil, nil
	}
	flow.data.EmailVerified = true
	flow.data.EmailOtpExpiry = time.Time{}
	return &FlowContext{EmailVerified: true}, nil, nil
}

func (e *Engine) leaveTokenAcquisition(ctx context.Context, flow *FlowInstance) (*FlowContext, *StepResult, error) {
	if !e.tokens.Authenticated(ctx) {
		if err := e.acquireOrRefresh(ctx, flow); err != nil {
			e.metrics.Inc(MetricTokenRefreshFailure)
			e.emitAudit(ctx, auditEventTokenFailure, false, err, nil)
			return nil, nil, err
		}
	}

	e.metrics.Inc(MetricTokenAcquired)
	e.emitAudit(ctx, auditEventTokenAcquired, true, nil, nil)
	return &FlowContext{TokenValid: true}, nil, nil
}

// acquireOrRefresh prefers a single refresh of an existing pair, then
// falls back to a fresh acquisition against the verified phone+email.
func (e *Engine) acquireOrRefresh(ctx context.Context, flow *FlowInstance) error {
	if err := e.tokens.InitAndValidate(ctx); err == nil {
		return nil
	}
	return e.tokens.Acquire(ctx, flow.data.Phone, flow.data.Email)
}

func (e *Engine) leaveUserProfile(flow *FlowInstance) (*FlowContext, *StepResult, error) {
	if flow.data.FirstName == "" || flow.data.LastName == "" {
		return nil, nil, fmt.Errorf("%w: first and last name required", ErrValidation)
	}
	return nil, nil, nil
}

func (e *Engine) leavePinSetup(ctx context.Context, flow *FlowInstance) (*FlowContext, *StepResult, error) {
	p := flow.data.Pin
	flow.data.Pin = ""
	if err := e.validatePinInput(p); err != nil {
		return nil, nil, err
	}

	if err := e.pins.SetPin(ctx, p); err != nil {
		return nil, nil, err
	}
	e.metrics.Inc(MetricPinSet)
	e.emitAudit(ctx, auditEventPinSet, true, nil, nil)

	// A freshly set PIN counts as verified: activate the session with
	// the same value so the terminal guard can pass.
	res, err := e.sessions.Activate(ctx, p)
	if err != nil {
		return nil, nil, mapSessionErr(err)
	}
	if !res.Valid {
		// Cannot happen for a PIN written one line above; fail loud.
		return nil, nil, ErrAuthFailed
	}

	e.metrics.Inc(MetricSessionActivated)
	e.emitAudit(ctx, auditEventSessionActivated, true, nil, nil)
	return &FlowContext{PinSet: true, PinVerified: true, SessionActive: true}, nil, nil
}

func (e *Engine) leavePinEntry(ctx context.Context, flow *FlowInstance) (*FlowContext, *StepResult, error) {
	p := flow.data.Pin
	flow.data.Pin = ""
	if err := e.validatePinInput(p); err != nil {
		return nil, nil, err
	}

	res, err := e.sessions.Activate(ctx, p)
	if err != nil {
		return nil, nil, mapSessionErr(err)
	}
	if res.Locked {
		e.metrics.Inc(MetricPinLockout)
		e.emitAudit(ctx, auditEventPinLockout, false, ErrLockedOut, nil)
		return nil, &StepResult{LockUntil: res.LockUntil}, ErrLockedOut
	}
	if !res.Valid {
		e.metrics.Inc(MetricPinFailure)
		e.emitAudit(ctx, auditEventPinFailure, false, ErrAuthFailed, nil)
		return nil, &StepResult{AttemptsRemaining: res.AttemptsRemaining}, ErrAuthFailed
	}

	e.metrics.Inc(MetricSessionActivated)
	e.emitAudit(ctx, auditEventSessionActivated, true, nil, nil)
	return &FlowContext{PinVerified: true, SessionActive: true}, nil, nil
}

func (e *Engine) validatePinInput(p string) error {
	if len(p) < e.config.PIN.MinLength {
		return fmt.Errorf("%w: pin must be at least %d digits", ErrValidation, e.config.PIN.MinLength)
	}
	for _, r := range p {
		if r < '0' || r > '9' {
			return fmt.Errorf("%w: pin must be numeric", ErrValidation)
		}
	}
	return nil
}

// ResendPhoneOtp re-requests a phone passcode for the in-flight flow
// and refreshes its expiry.
func (e *Engine) ResendPhoneOtp(ctx context.Context) error {
	return e.resendOtp(ctx, MediumPhone)
}

// ResendEmailOtp re-requests an email passcode for the in-flight flow
// and refreshes its expiry.
func (e *Engine) ResendEmailOtp(ctx context.Context) error {
	return e.resendOtp(ctx, MediumEmail)
}

func (e *Engine) resendOtp(ctx context.Context, medium Medium) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	flow := e.flow
	if flow == nil {
		return ErrNoFlow
	}

	value := flow.data.Phone
	if medium == MediumEmail {
		value = flow.data.Email
	}
	if value == "" {
		return fmt.Errorf("%w: nothing to resend to", ErrValidation)
	}

	ticket, err := e.verifier.SendOtp(ctx, medium, value)
	if err != nil {
		e.emitAudit(ctx, auditEventOtpFailure, false, err, nil)
		return err
	}

	if medium == MediumPhone {
		flow.data.OtpExpiry = ticket.ExpiresAt
	} else {
		flow.data.EmailOtpExpiry = ticket.ExpiresAt
	}
	e.metrics.Inc(MetricOtpSent)
	e.emitAudit(ctx, auditEventOtpSent, true, nil, func() map[string]string {
		return map[string]string{"medium": string(medium), "resend": "true"}
	})
	return nil
}

// ForgotPin marks the credential as forgotten and starts the FORGOT_PIN
// flow, carrying over the current flow's contact facts when present.
func (e *Engine) ForgotPin(ctx context.Context) (*FlowInstance, error) {
	e.mu.Lock()
	carried := StepData{}
	if e.flow != nil {
		carried.Phone = e.flow.data.Phone
		carried.Email = e.flow.data.Email
	}
	e.mu.Unlock()

	if err := e.pins.MarkForgotten(ctx); err != nil {
		return nil, err
	}
	return e.InitiateFlow(ctx, FlowForgotPin, &carried)
}
