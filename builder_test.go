package authcore

import (
	"context"
	"testing"
	"time"

	"github.com/moaaz-s/authcore/kv"
)

func TestBuilderRequiresVerificationService(t *testing.T) {
	_, err := New().
		WithTokenIssuer(&fakeIssuer{t: t, ttl: time.Hour}).
		Build(context.Background())
	if err == nil {
		t.Fatal("expected error without a verification service")
	}
}

func TestBuilderRequiresTokenIssuer(t *testing.T) {
	_, err := New().
		WithVerificationService(&fakeVerifier{}).
		Build(context.Background())
	if err == nil {
		t.Fatal("expected error without a token issuer")
	}
}

func TestBuilderRejectsInvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PIN.MaxAttempts = 0

	_, err := New().
		WithConfig(cfg).
		WithVerificationService(&fakeVerifier{}).
		WithTokenIssuer(&fakeIssuer{t: t, ttl: time.Hour}).
		Build(context.Background())
	if err == nil {
		t.Fatal("expected error for invalid config")
	}
}

func TestBuilderSingleUse(t *testing.T) {
	b := New().
		WithVerificationService(&fakeVerifier{code: "123456", ttl: time.Minute}).
		WithTokenIssuer(&fakeIssuer{t: t, ttl: time.Hour})

	eng, err := b.Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer eng.Close()

	if _, err := b.Build(context.Background()); err == nil {
		t.Fatal("expected error reusing a builder")
	}
}

func TestBuilderDefaultsToMemoryStore(t *testing.T) {
	eng, err := New().
		WithVerificationService(&fakeVerifier{code: "123456", ttl: time.Minute}).
		WithTokenIssuer(&fakeIssuer{t: t, ttl: time.Hour}).
		Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer eng.Close()

	if _, err := eng.InitiateFlow(context.Background(), FlowSignin, nil); err != nil {
		t.Fatalf("InitiateFlow on default store failed: %v", err)
	}
}

func TestBuilderCustomDeviceProvider(t *testing.T) {
	provider := staticDeviceProvider{DeviceInfo{ID: "device-42", Platform: "test"}}

	eng, err := New().
		WithVerificationService(&fakeVerifier{code: "123456", ttl: time.Minute}).
		WithTokenIssuer(&fakeIssuer{t: t, ttl: time.Hour}).
		WithDeviceProvider(provider).
		Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer eng.Close()

	flow, err := eng.InitiateFlow(context.Background(), FlowSignin, nil)
	if err != nil {
		t.Fatalf("InitiateFlow failed: %v", err)
	}
	if flow.Device.ID != "device-42" {
		t.Fatalf("device ID = %q, want device-42", flow.Device.ID)
	}
}

type staticDeviceProvider struct {
	info DeviceInfo
}

func (p staticDeviceProvider) DeviceInfo(context.Context) (DeviceInfo, error) {
	return p.info, nil
}

func TestBuilderMetricsDisabled(t *testing.T) {
	eng, err := New().
		WithVerificationService(&fakeVerifier{code: "123456", ttl: time.Minute}).
		WithTokenIssuer(&fakeIssuer{t: t, ttl: time.Hour}).
		WithMetricsEnabled(false).
		Build(context.Background())
	if err != nil {
		t.Fatalf("Build failed: %v", err)
	}
	defer eng.Close()

	if _, err := eng.InitiateFlow(context.Background(), FlowSignin, nil); err != nil {
		t.Fatalf("InitiateFlow failed: %v", err)
	}
	snap := eng.MetricsSnapshot()
	if got := snap.Counters[MetricFlowInitiated]; got != 0 {
		t.Fatalf("disabled metrics counted %d flow initiations", got)
	}
}

func TestBuilderSharedStoreIsolation(t *testing.T) {
	// Two engines over distinct stores must not see each other's state.
	storeA, storeB := kv.NewMemory(), kv.NewMemory()

	build := func(store kv.Store) *Engine {
		eng, err := New().
			WithStore(store).
			WithVerificationService(&fakeVerifier{code: "123456", ttl: time.Minute}).
			WithTokenIssuer(&fakeIssuer{t: t, ttl: time.Hour}).
			Build(context.Background())
		if err != nil {
			t.Fatalf("Build failed: %v", err)
		}
		t.Cleanup(eng.Close)
		return eng
	}

	engA, engB := build(storeA), build(storeB)
	if _, err := engA.InitiateFlow(context.Background(), FlowSignin, nil); err != nil {
		t.Fatalf("InitiateFlow failed: %v", err)
	}
	if got := engB.CurrentStep(); got != "" {
		t.Fatalf("engine B observed flow state %q", got)
	}
}
