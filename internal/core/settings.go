package core

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"pictocore/pkg/domain"
	"pictocore/pkg/schema"
)

// SettingsStore holds process-wide preferences keyed by string. Keys under
// the "__pictocore." prefix are reserved and hidden from All.
type SettingsStore interface {
	Get(ctx context.Context, key string) (domain.Setting, bool, error)
	Set(ctx context.Context, key string, value any) (domain.Setting, error)
	Delete(ctx context.Context, key string) (bool, error)
	All(ctx context.Context) ([]domain.Setting, error)
}

const reservedSettingPrefix = "__pictocore."

var scopeSettings = []domain.Collection{domain.CollectionSettings}

type storeSettings struct {
	svc *Service
}

func (st *storeSettings) Get(ctx context.Context, key string) (out domain.Setting, ok bool, err error) {
	err = st.svc.view(ctx, "get_setting", scopeSettings, func(v domain.TransactionView) error {
		out, ok, err = get[domain.Setting](v, domain.CollectionSettings, key)
		return err
	})
	return out, ok, err
}

func (st *storeSettings) Set(ctx context.Context, key string, value any) (out domain.Setting, err error) {
	err = st.svc.run(ctx, "set_setting", scopeSettings, func(tx *Tx) error {
		out, err = tx.PutSetting(key, value)
		return err
	})
	return out, err
}

func (st *storeSettings) Delete(ctx context.Context, key string) (deleted bool, err error) {
	err = st.svc.run(ctx, "delete_setting", scopeSettings, func(tx *Tx) error {
		deleted, err = tx.DeleteSetting(key)
		return err
	})
	return deleted, err
}

func (st *storeSettings) All(ctx context.Context) (out []domain.Setting, err error) {
	err = st.svc.view(ctx, "list_settings", scopeSettings, func(v domain.TransactionView) error {
		out, err = all[domain.Setting](v, domain.CollectionSettings)
		return err
	})
	return visibleSettings(out), err
}

func visibleSettings(in []domain.Setting) []domain.Setting {
	out := make([]domain.Setting, 0, len(in))
	for _, s := range in {
		if !strings.HasPrefix(s.Key, reservedSettingPrefix) {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

// MemorySettings is a SettingsStore kept in a map, for tests and for
// processes that must not persist preferences.
type MemorySettings struct {
	mu   sync.RWMutex
	data map[string]domain.Setting
	now  func() time.Time
}

// NewMemorySettings returns an empty MemorySettings.
func NewMemorySettings() *MemorySettings {
	return &MemorySettings{data: make(map[string]domain.Setting), now: time.Now}
}

// Get implements SettingsStore.
func (m *MemorySettings) Get(_ context.Context, key string) (domain.Setting, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.data[key]
	if !ok {
		return domain.Setting{}, false, nil
	}
	return s.Clone(), true, nil
}

// Set implements SettingsStore.
func (m *MemorySettings) Set(_ context.Context, key string, value any) (domain.Setting, error) {
	valid, err := schema.ValidateSetting(domain.Setting{Key: key, Value: value, UpdatedAt: m.now().UTC()})
	if err != nil {
		return domain.Setting{}, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = valid.Clone()
	return valid, nil
}

// Delete implements SettingsStore.
func (m *MemorySettings) Delete(_ context.Context, key string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.data[key]
	delete(m.data, key)
	return ok, nil
}

// All implements SettingsStore.
func (m *MemorySettings) All(context.Context) ([]domain.Setting, error) {
	m.mu.RLock()
	out := make([]domain.Setting, 0, len(m.data))
	for _, s := range m.data {
		out = append(out, s.Clone())
	}
	m.mu.RUnlock()
	return visibleSettings(out), nil
}
