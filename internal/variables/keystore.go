// Package variables implements the two per-station configuration surfaces:
// the ordered OCPP 1.6 configuration key store and the typed OCPP 2.0.1
// component/variable/attribute registry.
package variables

import (
	"sync"

	"github.com/voltbench/ocpp-sim/internal/domain"
)

// Well-known 1.6 configuration keys the station runtime reads.
const (
	KeyHeartbeatInterval         = "HeartbeatInterval"
	KeyHeartBeatInterval         = "HeartBeatInterval" // legacy spelling some CSMS use
	KeyMeterValueSampleInterval  = "MeterValueSampleInterval"
	KeyMeterValuesSampledData    = "MeterValuesSampledData"
	KeyNumberOfConnectors        = "NumberOfConnectors"
	KeyAuthorizeRemoteTxRequests = "AuthorizeRemoteTxRequests"
	KeyLocalAuthListEnabled      = "LocalAuthListEnabled"
	KeyAuthCacheEnabled          = "AuthCacheEnabled"
	KeyWebSocketPingInterval     = "WebSocketPingInterval"
	KeyConnectionTimeOut         = "ConnectionTimeOut"
	KeySupportedFeatureProfiles  = "SupportedFeatureProfiles"
)

// KeyOption customizes an added configuration key.
type KeyOption func(*domain.ConfigurationKey)

func Readonly() KeyOption {
	return func(k *domain.ConfigurationKey) { k.Readonly = true }
}

func Hidden() KeyOption {
	return func(k *domain.ConfigurationKey) { k.Visible = false }
}

func RebootRequired() KeyOption {
	return func(k *domain.ConfigurationKey) { k.Reboot = true }
}

// KeyStore holds the OCPP 1.6 configuration keys of one station, preserving
// insertion order for GetConfiguration responses.
type KeyStore struct {
	mu    sync.RWMutex
	order []string
	keys  map[string]*domain.ConfigurationKey
}

func NewKeyStore() *KeyStore {
	return &KeyStore{keys: make(map[string]*domain.ConfigurationKey)}
}

// Add inserts a key if absent and returns whether it was added.
func (s *KeyStore) Add(key, value string, opts ...KeyOption) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; ok {
		return false
	}
	k := &domain.ConfigurationKey{Key: key, Value: value, Visible: true}
	for _, opt := range opts {
		opt(k)
	}
	s.keys[key] = k
	s.order = append(s.order, key)
	return true
}

// Get returns a copy of the key.
func (s *KeyStore) Get(key string) (domain.ConfigurationKey, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	k, ok := s.keys[key]
	if !ok {
		return domain.ConfigurationKey{}, false
	}
	return *k, true
}

// SetValue overwrites the value of an existing key regardless of its
// readonly flag; the ChangeConfiguration handler enforces mutability.
func (s *KeyStore) SetValue(key, value string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	k, ok := s.keys[key]
	if !ok {
		return false
	}
	k.Value = value
	return true
}

// Delete removes a key, keeping order consistent.
func (s *KeyStore) Delete(key string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.keys[key]; !ok {
		return false
	}
	delete(s.keys, key)
	for i, k := range s.order {
		if k == key {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Keys returns copies of all keys in insertion order.
func (s *KeyStore) Keys() []domain.ConfigurationKey {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.ConfigurationKey, 0, len(s.order))
	for _, name := range s.order {
		out = append(out, *s.keys[name])
	}
	return out
}

// Load replaces the store contents with persisted keys.
func (s *KeyStore) Load(keys []domain.ConfigurationKey) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = s.order[:0]
	s.keys = make(map[string]*domain.ConfigurationKey, len(keys))
	for i := range keys {
		k := keys[i]
		s.keys[k.Key] = &k
		s.order = append(s.order, k.Key)
	}
}
