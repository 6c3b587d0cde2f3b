// Package brokerconfig manages the broker's own on-disk configuration,
// generalizing pubsub-gui's internal/config.Manager/models.AppConfig:
// the same JSON-file-with-defaults and atomic-save shape, but holding
// broker quota/default knobs (spec.md §2/§7) instead of GUI/profile
// settings.
package brokerconfig

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	"github.com/oladejiayo/localzure-sub001/internal/brokererr"
	"github.com/oladejiayo/localzure-sub001/internal/model"
)

// Config holds the tunable limits and defaults a broker instance starts
// with; Load fills every field absent from the file with its
// NewDefaultConfig value. The Default* fields are loaded and saved but not
// read when entities are created: new queues, topics and subscriptions take
// their defaults from the model package's constants.
type Config struct {
	MaxQueues                int           `json:"maxQueues"`
	MaxTopics                int           `json:"maxTopics"`
	MaxSubscriptionsPerTopic int           `json:"maxSubscriptionsPerTopic"`
	DefaultLockDuration      time.Duration `json:"defaultLockDuration"`
	DefaultMessageTTL        time.Duration `json:"defaultMessageTTL"`
	DefaultMaxDeliveryCount  int           `json:"defaultMaxDeliveryCount"`
	DefaultMaxSizeMB         int           `json:"defaultMaxSizeMB"`
	PersistenceDir           string        `json:"persistenceDir,omitempty"`
	AuditDir                 string        `json:"auditDir,omitempty"`
	RateLimitEnabled         bool          `json:"rateLimitEnabled"`
	RateLimitMaxTokens       int           `json:"rateLimitMaxTokens"`
	RateLimitRefillPerSecond float64       `json:"rateLimitRefillPerSecond"`
}

// NewDefaultConfig mirrors models.NewDefaultConfig: every field filled
// from the model package's published defaults.
func NewDefaultConfig() *Config {
	return &Config{
		MaxQueues:                model.MaxQueues,
		MaxTopics:                model.MaxTopics,
		MaxSubscriptionsPerTopic: model.MaxSubscriptionsPerTopic,
		DefaultLockDuration:      model.DefaultLockDuration,
		DefaultMessageTTL:        model.DefaultMessageTTL,
		DefaultMaxDeliveryCount:  model.DefaultMaxDeliveryCount,
		DefaultMaxSizeMB:         model.DefaultMaxSizeMB,
		RateLimitEnabled:         false,
		RateLimitMaxTokens:       100,
		RateLimitRefillPerSecond: 50,
	}
}

// Manager handles loading and saving a Config file, following
// config.Manager's InitConfigDir/LoadConfig/SaveConfig shape exactly.
type Manager struct {
	path string
}

// NewManager builds a Manager rooted at path, creating its parent
// directory if needed.
func NewManager(path string) (*Manager, error) {
	m := &Manager{path: path}
	if err := m.initDir(); err != nil {
		return nil, err
	}
	return m, nil
}

func (m *Manager) initDir() error {
	dir := filepath.Dir(m.path)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return os.MkdirAll(dir, 0o700)
	}
	return nil
}

// Load reads the config file, returning defaults if it does not exist.
func (m *Manager) Load() (*Config, error) {
	if _, err := os.Stat(m.path); os.IsNotExist(err) {
		return NewDefaultConfig(), nil
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		return nil, err
	}

	cfg := NewDefaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, brokererr.Wrap(brokererr.InvalidArgument, "malformed broker config file", err)
	}
	return cfg, nil
}

// Save atomically overwrites the config file (temp file + rename), as
// config.Manager.SaveConfig does.
func (m *Manager) Save(cfg *Config) error {
	if err := m.initDir(); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(m.path)
	tmp, err := os.CreateTemp(dir, "broker-config-*.tmp")
	if err != nil {
		return err
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	if err := os.Rename(tmpPath, m.path); err != nil {
		return err
	}
	return os.Chmod(m.path, 0o600)
}

// Path returns the underlying config file path.
func (m *Manager) Path() string {
	return m.path
}
