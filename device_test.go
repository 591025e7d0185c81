package authcore

import (
	"context"
	"testing"

	"github.com/moaaz-s/authcore/kv"
)

func TestStoredDeviceProviderStableID(t *testing.T) {
	store := kv.NewMemory()
	provider := NewStoredDeviceProvider(store)

	first, err := provider.DeviceInfo(context.Background())
	if err != nil {
		t.Fatalf("DeviceInfo failed: %v", err)
	}
	if first.ID == "" {
		t.Fatal("expected a generated device ID")
	}

	// A second provider over the same store resolves the same identity.
	second, err := NewStoredDeviceProvider(store).DeviceInfo(context.Background())
	if err != nil {
		t.Fatalf("DeviceInfo failed: %v", err)
	}
	if second.ID != first.ID {
		t.Fatalf("device ID changed across restarts: %q vs %q", first.ID, second.ID)
	}
}

func TestStoredDeviceProviderRegeneratesCorruptRecord(t *testing.T) {
	store := kv.NewMemory()
	if err := store.SetItem(context.Background(), deviceKey, "{not json"); err != nil {
		t.Fatalf("SetItem failed: %v", err)
	}

	info, err := NewStoredDeviceProvider(store).DeviceInfo(context.Background())
	if err != nil {
		t.Fatalf("DeviceInfo failed: %v", err)
	}
	if info.ID == "" {
		t.Fatal("expected a regenerated device ID")
	}
}
