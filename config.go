package authcore

import (
	"errors"
	"time"
)

// Config defines engine-wide settings. Configure once through the
// [Builder] and treat as immutable afterwards.
type Config struct {
	PIN     PINConfig
	Token   TokenConfig
	Session SessionConfig
	OTP     OTPConfig
	Audit   AuditConfig
	Metrics MetricsConfig

	// KeyPrefix namespaces the Redis-backed store when one is used.
	KeyPrefix string
}

// PINConfig controls credential hashing and the lockout policy.
type PINConfig struct {
	// Iterations is the PBKDF2 iteration count. Zero selects 100000.
	Iterations      int
	MinLength       int
	MaxAttempts     int
	LockoutDuration time.Duration
}

// TokenConfig controls access-token expiry inspection.
type TokenConfig struct {
	// ExpiryBuffer is subtracted from the remaining token lifetime so a
	// token never expires mid-operation. Zero selects 300s.
	ExpiryBuffer time.Duration
}

// SessionConfig controls the local session window.
type SessionConfig struct {
	TTL         time.Duration
	IdleTimeout time.Duration
}

// OTPConfig controls passcode expectations on the client side.
type OTPConfig struct {
	// Length is the expected passcode length for input validation.
	Length int
}

// AuditConfig controls the asynchronous audit dispatcher.
type AuditConfig struct {
	Enabled    bool
	BufferSize int
	DropIfFull bool
}

// MetricsConfig controls the in-process counters.
type MetricsConfig struct {
	Enabled bool
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		PIN: PINConfig{
			Iterations:      100_000,
			MinLength:       4,
			MaxAttempts:     3,
			LockoutDuration: 5 * time.Minute,
		},
		Token: TokenConfig{
			ExpiryBuffer: 300 * time.Second,
		},
		Session: SessionConfig{
			TTL:         30 * time.Minute,
			IdleTimeout: 2 * time.Minute,
		},
		OTP: OTPConfig{
			Length: 6,
		},
		Audit: AuditConfig{
			Enabled:    true,
			BufferSize: 256,
			DropIfFull: true,
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// Validate rejects configurations the engine cannot run with.
func (c Config) Validate() error {
	if c.PIN.MaxAttempts <= 0 {
		return errors.New("PIN.MaxAttempts must be > 0")
	}
	if c.PIN.LockoutDuration <= 0 {
		return errors.New("PIN.LockoutDuration must be > 0")
	}
	if c.PIN.MinLength < 4 {
		return errors.New("PIN.MinLength must be >= 4")
	}
	if c.Token.ExpiryBuffer < 0 {
		return errors.New("Token.ExpiryBuffer must be >= 0")
	}
	if c.Session.TTL <= 0 {
		return errors.New("Session.TTL must be > 0")
	}
	if c.Session.IdleTimeout <= 0 {
		return errors.New("Session.IdleTimeout must be > 0")
	}
	if c.Session.IdleTimeout > c.Session.TTL {
		return errors.New("Session.IdleTimeout must not exceed Session.TTL")
	}
	if c.OTP.Length <= 0 {
		return errors.New("OTP.Length must be > 0")
	}
	return nil
}
