package authcore

import (
	"context"
	"time"
)

// FlowContext is the ephemeral fact snapshot guards are evaluated
// against. It is rebuilt at every transition; each field's truth lives
// in its owning component or in caller-supplied step data, never here.
type FlowContext struct {
	PhoneValidated bool
	EmailVerified  bool
	TokenValid     bool
	PinSet         bool
	PinVerified    bool
	SessionActive  bool

	OtpExpiry      time.Time
	EmailOtpExpiry time.Time

	Phone     string
	Email     string
	FirstName string
	LastName  string

	Device DeviceInfo

	// Now is the instant the snapshot was taken; guards that reason
	// about OTP expiry compare against it so they stay pure.
	Now time.Time
}

// profileComplete reports whether the signup profile facts are present.
func (c FlowContext) profileComplete() bool {
	return c.FirstName != "" && c.LastName != ""
}

// buildContext assembles a fresh snapshot: token/pin/session facts from
// their owning components, verification facts and profile fields from
// step data, then overrides layered on top. Overrides let a caller
// assert a fact immediately after an external call succeeds, before the
// owning component's own write lands.
func (e *Engine) buildContext(ctx context.Context, data StepData, overrides *FlowContext) FlowContext {
	fc := FlowContext{
		PhoneValidated: data.PhoneValidated,
		EmailVerified:  data.EmailVerified,
		TokenValid:     e.tokens.Authenticated(ctx),
		PinSet:         e.pins.IsPinSet(ctx),
		PinVerified:    e.sessions.Active(),
		SessionActive:  e.sessions.Active(),
		OtpExpiry:      data.OtpExpiry,
		EmailOtpExpiry: data.EmailOtpExpiry,
		Phone:          data.Phone,
		Email:          data.Email,
		FirstName:      data.FirstName,
		LastName:       data.LastName,
		Device:         e.device,
		Now:            e.now(),
	}

	if overrides != nil {
		fc = fc.apply(*overrides)
	}
	return fc
}

// apply shallow-merges the asserted (non-zero) fields of o atop c.
func (c FlowContext) apply(o FlowContext) FlowContext {
	if o.PhoneValidated {
		c.PhoneValidated = true
	}
	if o.EmailVerified {
		c.EmailVerified = true
	}
	if o.TokenValid {
		c.TokenValid = true
	}
	if o.PinSet {
		c.PinSet = true
	}
	if o.PinVerified {
		c.PinVerified = true
	}
	if o.SessionActive {
		c.SessionActive = true
	}
	if !o.OtpExpiry.IsZero() {
		c.OtpExpiry = o.OtpExpiry
	}
	if !o.EmailOtpExpiry.IsZero() {
		c.EmailOtpExpiry = o.EmailOtpExpiry
	}
	if o.Phone != "" {
		c.Phone = o.Phone
	}
	if o.Email != "" {
		c.Email = o.Email
	}
	if o.FirstName != "" {
		c.FirstName = o.FirstName
	}
	if o.LastName != "" {
		c.LastName = o.LastName
	}
	return c
}
