package authcore

import "errors"

var (
	// ErrValidation indicates malformed input, rejected before any
	// collaborator call.
	ErrValidation = errors.New("invalid input")
	// ErrAuthFailed indicates a wrong OTP or PIN. Recoverable; the step
	// result reports remaining attempts where applicable.
	ErrAuthFailed = errors.New("authentication failed")
	// ErrLockedOut indicates attempts are exhausted. Recoverable only
	// after the lockout elapses.
	ErrLockedOut = errors.New("locked out")
	// ErrOTPInvalid indicates the supplied one-time passcode was wrong.
	ErrOTPInvalid = errors.New("invalid otp")
	// ErrOTPExpired indicates the one-time passcode outlived its window.
	ErrOTPExpired = errors.New("otp expired")
	// ErrOTPRateLimited indicates the verification service refused to
	// send or check a passcode.
	ErrOTPRateLimited = errors.New("otp rate limited")
	// ErrTokenInvalid indicates a missing, undecodable, or expired
	// access token. Forces re-authentication, never silently retried.
	ErrTokenInvalid = errors.New("invalid token")
	// ErrTransport indicates a collaborator was unreachable. Propagated
	// as-is; retry policy belongs to the transport collaborator.
	ErrTransport = errors.New("collaborator unreachable")
	// ErrDeadEnd indicates no eligible next step exists. This is a
	// configuration error, distinct from user-facing auth failures.
	ErrDeadEnd = errors.New("no eligible next step")
	// ErrNoFlow indicates AdvanceFlow was called without an in-flight
	// flow instance.
	ErrNoFlow = errors.New("no active flow")
	// ErrEngineNotReady indicates the engine was not built through the
	// Builder.
	ErrEngineNotReady = errors.New("engine not initialized")
)
