package authcore

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"runtime"

	"github.com/google/uuid"

	"github.com/moaaz-s/authcore/kv"
)

const deviceKey = "device_info"

// StoredDeviceProvider persists a generated device identity in the
// store so the same installation reports the same ID across restarts.
type StoredDeviceProvider struct {
	store kv.Store
}

// NewStoredDeviceProvider returns a provider backed by store.
func NewStoredDeviceProvider(store kv.Store) *StoredDeviceProvider {
	return &StoredDeviceProvider{store: store}
}

// DeviceInfo returns the persisted identity, generating and storing a
// new one on first use.
func (p *StoredDeviceProvider) DeviceInfo(ctx context.Context) (DeviceInfo, error) {
	raw, err := p.store.GetItem(ctx, deviceKey)
	switch {
	case err == nil:
		var info DeviceInfo
		if jsonErr := json.Unmarshal([]byte(raw), &info); jsonErr == nil && info.ID != "" {
			return info, nil
		}
		// Corrupt record, regenerate below.
	case !errors.Is(err, kv.ErrNotFound):
		return DeviceInfo{}, fmt.Errorf("device info: %w", err)
	}

	info := DeviceInfo{
		ID:       uuid.NewString(),
		Platform: runtime.GOOS,
		Model:    runtime.GOARCH,
	}
	encoded, err := json.Marshal(info)
	if err != nil {
		return DeviceInfo{}, fmt.Errorf("device info: %w", err)
	}
	if err := p.store.SetItem(ctx, deviceKey, string(encoded)); err != nil {
		return DeviceInfo{}, fmt.Errorf("device info: %w", err)
	}
	return info, nil
}
