package authcore

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	internalaudit "github.com/moaaz-s/authcore/internal/audit"
	"github.com/moaaz-s/authcore/kv"
	"github.com/moaaz-s/authcore/pin"
	"github.com/moaaz-s/authcore/session"
	"github.com/moaaz-s/authcore/token"
)

// Builder assembles an [Engine]. Collaborators are injected here once;
// the engine holds no module-level mutable state, so independent
// builders yield fully isolated engines.
type Builder struct {
	config Config
	store  kv.Store
	redis  redis.UniversalClient

	verifier       VerificationService
	issuer         token.Issuer
	deviceProvider DeviceProvider
	auditSink      AuditSink

	built bool
}

// New creates a Builder with [DefaultConfig].
func New() *Builder {
	return &Builder{config: DefaultConfig()}
}

// WithConfig replaces the configuration.
func (b *Builder) WithConfig(cfg Config) *Builder {
	b.config = cfg
	return b
}

// WithStore sets an explicit persistent store. Takes precedence over
// WithRedis.
func (b *Builder) WithStore(store kv.Store) *Builder {
	b.store = store
	return b
}

// WithRedis backs the persistent store with a Redis client.
func (b *Builder) WithRedis(client redis.UniversalClient) *Builder {
	b.redis = client
	return b
}

// WithVerificationService sets the OTP collaborator. Required.
func (b *Builder) WithVerificationService(v VerificationService) *Builder {
	b.verifier = v
	return b
}

// WithTokenIssuer sets the token issuance collaborator. Required.
func (b *Builder) WithTokenIssuer(i token.Issuer) *Builder {
	b.issuer = i
	return b
}

// WithDeviceProvider sets the device-identity collaborator. When unset,
// a store-backed provider generating a stable UUID is used.
func (b *Builder) WithDeviceProvider(p DeviceProvider) *Builder {
	b.deviceProvider = p
	return b
}

// WithAuditSink sets the audit event receiver.
func (b *Builder) WithAuditSink(sink AuditSink) *Builder {
	b.auditSink = sink
	return b
}

// WithMetricsEnabled toggles the in-process counters.
func (b *Builder) WithMetricsEnabled(enabled bool) *Builder {
	b.config.Metrics.Enabled = enabled
	return b
}

// Build validates the configuration, rehydrates persisted state, and
// returns a ready engine. A builder can be used once.
func (b *Builder) Build(ctx context.Context) (*Engine, error) {
	if b.built {
		return nil, errors.New("builder already used")
	}

	if err := b.config.Validate(); err != nil {
		return nil, err
	}
	if b.verifier == nil {
		return nil, errors.New("verification service required")
	}
	if b.issuer == nil {
		return nil, errors.New("token issuer required")
	}

	store := b.store
	if store == nil {
		if b.redis != nil {
			store = kv.NewRedis(b.redis, b.config.KeyPrefix)
		} else {
			store = kv.NewMemory()
		}
	}

	hasher, err := pin.NewHasher(b.config.PIN.Iterations)
	if err != nil {
		return nil, err
	}
	pins, err := pin.NewManager(store, hasher, pin.Config{
		MaxAttempts:     b.config.PIN.MaxAttempts,
		LockoutDuration: b.config.PIN.LockoutDuration,
	})
	if err != nil {
		return nil, err
	}

	tokens, err := token.NewStore(store, b.issuer, b.config.Token.ExpiryBuffer)
	if err != nil {
		return nil, err
	}

	sessions, err := session.NewManager(ctx, store, pins, tokens.Authenticated, session.Config{
		TTL:         b.config.Session.TTL,
		IdleTimeout: b.config.Session.IdleTimeout,
	})
	if err != nil {
		return nil, err
	}

	provider := b.deviceProvider
	if provider == nil {
		provider = NewStoredDeviceProvider(store)
	}
	device, err := provider.DeviceInfo(ctx)
	if err != nil {
		return nil, err
	}

	engine := &Engine{
		config:      b.config,
		store:       store,
		pins:        pins,
		tokens:      tokens,
		sessions:    sessions,
		verifier:    b.verifier,
		tokenIssuer: b.issuer,
		device:      device,
		metrics:     NewMetrics(b.config.Metrics),
		now:         time.Now,
	}
	engine.audit = internalaudit.NewDispatcher(internalaudit.Config{
		Enabled:    b.config.Audit.Enabled,
		BufferSize: b.config.Audit.BufferSize,
		DropIfFull: b.config.Audit.DropIfFull,
	}, b.auditSink)

	// The session manager invokes the handler from its timer goroutine
	// with its own mutex released, so taking engine.mu here preserves
	// the engine.mu -> session.mu lock order used everywhere else.
	sessions.SetLockHandler(func() {
		engine.metrics.Inc(MetricSessionLocked)
		engine.mu.Lock()
		defer engine.mu.Unlock()
		engine.emitAudit(context.Background(), auditEventSessionLocked, true, nil, func() map[string]string {
			return map[string]string{"reason": "idle_timeout"}
		})
	})

	b.built = true
	return engine, nil
}
