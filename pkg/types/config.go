package types

import (
	"errors"
	"fmt"
)

// Close behaviors recognized by the desktop shell.
const (
	CloseDirect   = "direct"
	CloseMinimize = "minimize"
)

// ErrCloseBehaviorUnknown is returned by Validate for an unrecognized
// close_behavior value.
var ErrCloseBehaviorUnknown = errors.New("unknown close behavior")

// AppConfig is the persisted application configuration record. A nil
// DataPath means "use the platform default data directory".
type AppConfig struct {
	AutoLaunch     bool    `json:"auto_launch" yaml:"auto_launch" mapstructure:"auto_launch"`
	CloseBehavior  string  `json:"close_behavior" yaml:"close_behavior" mapstructure:"close_behavior"`
	GlobalShortcut *string `json:"global_shortcut" yaml:"global_shortcut" mapstructure:"global_shortcut"`
	DataPath       *string `json:"data_path" yaml:"data_path" mapstructure:"data_path"`
}

// DefaultAppConfig returns the configuration used when no file exists.
func DefaultAppConfig() AppConfig {
	return AppConfig{CloseBehavior: CloseDirect}
}

// Validate checks that the record is well-formed.
func (c AppConfig) Validate() error {
	switch c.CloseBehavior {
	case CloseDirect, CloseMinimize:
	default:
		return fmt.Errorf("%w: %q", ErrCloseBehaviorUnknown, c.CloseBehavior)
	}
	return nil
}

// CustomDataPath returns the configured data path, or "" when unset.
func (c AppConfig) CustomDataPath() string {
	if c.DataPath == nil {
		return ""
	}
	return *c.DataPath
}
