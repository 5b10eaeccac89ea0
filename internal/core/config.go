package core

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/valter-silva-au/taskflow/pkg/models"
)

// ConfigurationManager loads the .taskflowrc configuration file.
type ConfigurationManager interface {
	LoadGlobalConfig() (*models.GlobalConfig, error)
}

// viperConfigManager implements ConfigurationManager using Viper for
// reading the YAML configuration file.
type viperConfigManager struct {
	basePath string
}

// NewConfigurationManager creates a ConfigurationManager that reads the
// .taskflowrc file from basePath.
func NewConfigurationManager(basePath string) ConfigurationManager {
	return &viperConfigManager{basePath: basePath}
}

// DefaultGlobalConfig returns a GlobalConfig populated with defaults.
func DefaultGlobalConfig() *models.GlobalConfig {
	return &models.GlobalConfig{
		DefaultPriority:  models.PriorityMedium,
		ArchiveAfterDays: 30,
		LockMaxAttempts:  40,
		LockBaseBackoff:  25 * time.Millisecond,
		RateLimitMin:     5 * time.Second,
		PatternsDir:      "patterns",
	}
}

// LoadGlobalConfig reads .taskflowrc from the base path. A missing file is
// not an error; defaults are returned.
func (cm *viperConfigManager) LoadGlobalConfig() (*models.GlobalConfig, error) {
	cfg := DefaultGlobalConfig()

	v := viper.New()
	v.SetConfigName(".taskflowrc")
	v.SetConfigType("yaml")
	v.AddConfigPath(cm.basePath)

	v.SetDefault("defaults.priority", string(cfg.DefaultPriority))
	v.SetDefault("archive.after_days", cfg.ArchiveAfterDays)
	v.SetDefault("lock.max_attempts", cfg.LockMaxAttempts)
	v.SetDefault("lock.base_backoff_ms", int(cfg.LockBaseBackoff/time.Millisecond))
	v.SetDefault("rate_limit.min_seconds", int(cfg.RateLimitMin/time.Second))
	v.SetDefault("patterns.dir", cfg.PatternsDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading .taskflowrc: %w", err)
	}

	cfg.DefaultPriority = models.Priority(v.GetString("defaults.priority"))
	cfg.ArchiveAfterDays = v.GetInt("archive.after_days")
	cfg.LockMaxAttempts = v.GetInt("lock.max_attempts")
	cfg.LockBaseBackoff = time.Duration(v.GetInt("lock.base_backoff_ms")) * time.Millisecond
	cfg.RateLimitMin = time.Duration(v.GetInt("rate_limit.min_seconds")) * time.Second
	cfg.PatternsDir = v.GetString("patterns.dir")
	cfg.ActivePatterns = v.GetStringSlice("patterns.active")
	cfg.ActiveRoles = v.GetStringSlice("roles.active")

	if models.PriorityTier(cfg.DefaultPriority) > 3 {
		return nil, &ValidationError{Field: "defaults.priority", Reason: fmt.Sprintf("unknown priority %q", cfg.DefaultPriority)}
	}
	if cfg.LockMaxAttempts <= 0 {
		return nil, &ValidationError{Field: "lock.max_attempts", Reason: "must be positive"}
	}

	return cfg, nil
}
