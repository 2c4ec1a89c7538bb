// Package config loads and persists the application configuration record
// (config.json in the configuration directory).
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"

	"github.com/rtodo/rtodo/pkg/types"
)

const (
	configFileName = "config"
	configFileType = "json"
	configFileExt  = "config.json"

	cfgKeyAutoLaunch    = "auto_launch"
	cfgKeyCloseBehavior = "close_behavior"
)

// Store owns the configuration record and its file. It is the only place
// that reads or writes config.json; components receive a *Store rather than
// consulting global state.
type Store struct {
	mu   sync.Mutex
	dir  string
	data types.AppConfig
}

// Load reads config.json from configDir. A missing file yields the default
// record; the directory is created so a later Save succeeds.
func Load(configDir string) (*Store, error) {
	if err := os.MkdirAll(configDir, 0o755); err != nil {
		return nil, fmt.Errorf("create config dir: %w", err)
	}

	v := viper.New()
	v.SetDefault(cfgKeyAutoLaunch, false)
	v.SetDefault(cfgKeyCloseBehavior, types.CloseDirect)
	v.SetConfigName(configFileName)
	v.SetConfigType(configFileType)
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	data := types.DefaultAppConfig()
	if err := v.Unmarshal(&data); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := data.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &Store{dir: configDir, data: data}, nil
}

// Path returns the location of config.json.
func (s *Store) Path() string {
	return filepath.Join(s.dir, configFileExt)
}

// Get returns a copy of the current record.
func (s *Store) Get() types.AppConfig {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data
}

// DataPath returns the configured data path, or "" for the platform default.
func (s *Store) DataPath() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.data.CustomDataPath()
}

// SetDataPath records a new data directory and saves the file. An empty
// path resets to the platform default.
func (s *Store) SetDataPath(path string) error {
	return s.Update(func(c *types.AppConfig) {
		if path == "" {
			c.DataPath = nil
			return
		}
		c.DataPath = &path
	})
}

// Update applies fn to the record and saves it. The in-memory record is left
// unchanged if validation or the write fails.
func (s *Store) Update(fn func(*types.AppConfig)) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.data
	fn(&next)
	if err := next.Validate(); err != nil {
		return fmt.Errorf("validate config: %w", err)
	}
	if err := writeFile(s.Path(), next); err != nil {
		return err
	}
	s.data = next
	return nil
}

// writeFile replaces path atomically with the JSON encoding of cfg.
func writeFile(path string, cfg types.AppConfig) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(path), ".config-*.json")
	if err != nil {
		return fmt.Errorf("create temp config: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		tmp.Close()
		return fmt.Errorf("write config: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync config: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close config: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return fmt.Errorf("replace config: %w", err)
	}
	return nil
}
