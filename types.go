package authcore

import (
	"context"
	"io"
	"time"

	internalaudit "github.com/moaaz-s/authcore/internal/audit"
)

// FlowType selects one of the fixed authentication flows.
type FlowType string

const (
	// FlowSignup is the first-time registration flow.
	FlowSignup FlowType = "SIGNUP"
	// FlowSignin is the returning-user flow.
	FlowSignin FlowType = "SIGNIN"
	// FlowForgotPin re-verifies the user and overwrites the PIN.
	FlowForgotPin FlowType = "FORGOT_PIN"
)

// Step identifies a position in a flow's fixed step vocabulary.
type Step string

const (
	// StepPhoneEntry collects the phone number.
	StepPhoneEntry Step = "PHONE_ENTRY"
	// StepPhoneOtpPending awaits the phone passcode.
	StepPhoneOtpPending Step = "PHONE_OTP_PENDING"
	// StepEmailEntryPending collects the email address.
	StepEmailEntryPending Step = "EMAIL_ENTRY_PENDING"
	// StepEmailOtpPending awaits the email passcode.
	StepEmailOtpPending Step = "EMAIL_OTP_PENDING"
	// StepTokenAcquisition obtains or refreshes the server token pair.
	StepTokenAcquisition Step = "TOKEN_ACQUISITION"
	// StepUserProfilePending collects first/last name (signup only).
	StepUserProfilePending Step = "USER_PROFILE_PENDING"
	// StepPinSetupPending sets a new local PIN.
	StepPinSetupPending Step = "PIN_SETUP_PENDING"
	// StepPinEntryPending verifies the existing local PIN.
	StepPinEntryPending Step = "PIN_ENTRY_PENDING"
	// StepAuthenticated is the terminal step.
	StepAuthenticated Step = "AUTHENTICATED"
)

// Medium is the delivery channel of a one-time passcode.
type Medium string

const (
	// MediumPhone delivers passcodes via SMS.
	MediumPhone Medium = "phone"
	// MediumEmail delivers passcodes via email.
	MediumEmail Medium = "email"
)

// OtpTicket is the verification service's answer to a send request.
type OtpTicket struct {
	// RequiresOtp is false when the channel is pre-verified and no
	// passcode round trip is needed.
	RequiresOtp bool
	ExpiresAt   time.Time
}

// VerificationService is the external OTP collaborator. Facts it owns
// (phone validated, email verified) live in step data, never in this
// core's persistence.
type VerificationService interface {
	SendOtp(ctx context.Context, medium Medium, value string) (OtpTicket, error)
	VerifyOtp(ctx context.Context, medium Medium, value, code string) error
}

// DeviceInfo is the stable device descriptor attached to every flow.
type DeviceInfo struct {
	ID       string `json:"id"`
	Platform string `json:"platform,omitempty"`
	Model    string `json:"model,omitempty"`
}

// DeviceProvider supplies the device descriptor.
type DeviceProvider interface {
	DeviceInfo(ctx context.Context) (DeviceInfo, error)
}

// StepData carries caller-supplied facts between transitions. Zero
// fields are ignored on merge, so a payload only ever asserts facts.
type StepData struct {
	Phone     string
	Email     string
	Code      string
	Pin       string
	FirstName string
	LastName  string

	PhoneValidated bool
	EmailVerified  bool

	OtpExpiry      time.Time
	EmailOtpExpiry time.Time
}

// merged returns d with the non-zero fields of other layered on top.
func (d StepData) merged(other StepData) StepData {
	if other.Phone != "" {
		d.Phone = other.Phone
	}
	if other.Email != "" {
		d.Email = other.Email
	}
	if other.Code != "" {
		d.Code = other.Code
	}
	if other.Pin != "" {
		d.Pin = other.Pin
	}
	if other.FirstName != "" {
		d.FirstName = other.FirstName
	}
	if other.LastName != "" {
		d.LastName = other.LastName
	}
	if other.PhoneValidated {
		d.PhoneValidated = true
	}
	if other.EmailVerified {
		d.EmailVerified = true
	}
	if !other.OtpExpiry.IsZero() {
		d.OtpExpiry = other.OtpExpiry
	}
	if !other.EmailOtpExpiry.IsZero() {
		d.EmailOtpExpiry = other.EmailOtpExpiry
	}
	return d
}

// FlowInstance is a single in-flight flow. It is single-owner: a new
// InitiateFlow replaces any previous instance.
type FlowInstance struct {
	ID           string
	Type         FlowType
	CurrentIndex int
	Device       DeviceInfo

	steps []stepDescriptor
	data  StepData
}

// CurrentStep returns the step at the instance's current index.
func (f *FlowInstance) CurrentStep() Step {
	if f == nil || f.CurrentIndex < 0 || f.CurrentIndex >= len(f.steps) {
		return ""
	}
	return f.steps[f.CurrentIndex].Step
}

// StepData returns a copy of the accumulated step data.
func (f *FlowInstance) StepData() StepData {
	if f == nil {
		return StepData{}
	}
	return f.data
}

// StepResult is the outcome of one AdvanceFlow call.
type StepResult struct {
	NextStep Step
	Context  FlowContext

	// AttemptsRemaining is set after a recoverable PIN failure.
	AttemptsRemaining int
	// LockUntil is set when the PIN is locked out.
	LockUntil time.Time
}

// AuditEvent is a structured audit record emitted by the engine.
type AuditEvent = internalaudit.Event

// AuditSink receives [AuditEvent] values from the audit dispatcher.
type AuditSink = internalaudit.Sink

// NoOpSink is an [AuditSink] that silently discards all events.
type NoOpSink = internalaudit.NoOpSink

// ChannelSink is a buffered channel-based [AuditSink].
type ChannelSink = internalaudit.ChannelSink

// JSONWriterSink is an [AuditSink] that writes JSON-encoded events to
// an [io.Writer].
type JSONWriterSink = internalaudit.JSONWriterSink

// NewChannelSink creates a [ChannelSink] with the given buffer capacity.
func NewChannelSink(buffer int) *ChannelSink {
	return internalaudit.NewChannelSink(buffer)
}

// NewJSONWriterSink creates a [JSONWriterSink] that writes to w.
func NewJSONWriterSink(w io.Writer) *JSONWriterSink {
	return internalaudit.NewJSONWriterSink(w)
}
