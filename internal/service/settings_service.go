package service

import (
	"context"
	"strconv"
)

const settingPaymentsEnabled = "payments_enabled"

// Settings holds runtime switches an administrator can flip without a restart.
type Settings struct {
	PaymentsEnabled bool `json:"paymentsEnabled"`
}

// SettingsService reads switches from the shared database so every instance
// sees the same value.
type SettingsService struct {
	store SettingsStore
}

func NewSettingsService(store SettingsStore) *SettingsService {
	return &SettingsService{store: store}
}

// PaymentsEnabled defaults to true until an administrator writes the setting.
func (s *SettingsService) PaymentsEnabled(ctx context.Context) (bool, error) {
	raw, ok, err := s.store.Get(ctx, settingPaymentsEnabled)
	if err != nil {
		return false, err
	}
	if !ok {
		return true, nil
	}
	enabled, err := strconv.ParseBool(raw)
	if err != nil {
		return true, nil
	}
	return enabled, nil
}

func (s *SettingsService) SetPaymentsEnabled(ctx context.Context, enabled bool) error {
	return s.store.Set(ctx, settingPaymentsEnabled, strconv.FormatBool(enabled))
}

func (s *SettingsService) Get(ctx context.Context) (Settings, error) {
	enabled, err := s.PaymentsEnabled(ctx)
	if err != nil {
		return Settings{}, err
	}
	return Settings{PaymentsEnabled: enabled}, nil
}

func (s *SettingsService) Update(ctx context.Context, settings Settings) (Settings, error) {
	if err := s.SetPaymentsEnabled(ctx, settings.PaymentsEnabled); err != nil {
		return Settings{}, err
	}
	return s.Get(ctx)
}
