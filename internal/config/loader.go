package config

import (
	"context"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/sentra-sec/sentra/pkg/constants"
	"github.com/sentra-sec/sentra/pkg/logger"
)

// Loader reads configuration from file and environment and supports hot
// reload of the runtime-tunable security section.
type Loader struct {
	v   *viper.Viper
	log logger.Logger
}

// NewLoader creates a Loader with defaults applied.
func NewLoader(log logger.Logger) *Loader {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", constants.DefaultServicePort)
	v.SetDefault("server.environment", "development")
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.shutdown_timeout", int(constants.DefaultShutdownTimeout.Seconds()))
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("tracing.enabled", false)
	v.SetDefault("tracing.service_name", "sentra")
	v.SetDefault("tracing.sampling_rate", 0.1)
	v.SetDefault("redis.enabled", false)
	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.alert_topic", "sentra.alerts")

	defaults := DefaultSecurityConfig()
	v.SetDefault("security.anomaly_threshold", defaults.AnomalyThreshold)
	v.SetDefault("security.learning_rate", defaults.LearningRate)
	v.SetDefault("security.max_failed_attempts", defaults.MaxFailedAttempts)
	v.SetDefault("security.lockout_duration", defaults.LockoutDuration)
	v.SetDefault("security.session_timeout", defaults.SessionTimeout)
	v.SetDefault("security.metrics_history_cap", defaults.MetricsHistoryCap)
	v.SetDefault("security.reporting_interval", defaults.ReportingInterval)

	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("/etc/sentra/")
	v.AddConfigPath(".")

	v.SetEnvPrefix("SENTRA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	return &Loader{v: v, log: log.WithComponent("config")}
}

// Load reads the configuration. A missing config file is not an error; the
// defaults and environment cover it.
func (l *Loader) Load() (*Config, error) {
	if err := l.v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	cfg, err := l.unmarshal()
	if err != nil {
		return nil, err
	}

	if used := l.v.ConfigFileUsed(); used != "" {
		l.log.Info(context.Background(), "configuration loaded", logger.String("file", used))
	}
	return cfg, nil
}

// Watch re-reads the configuration on file change and hands the result to
// onChange. Invalid updates are logged and dropped; the previous
// configuration stays in effect.
func (l *Loader) Watch(onChange func(*Config)) {
	l.v.OnConfigChange(func(e fsnotify.Event) {
		cfg, err := l.unmarshal()
		if err != nil {
			l.log.Error(context.Background(), "rejected configuration reload", err,
				logger.String("file", e.Name))
			return
		}
		l.log.Info(context.Background(), "configuration reloaded", logger.String("file", e.Name))
		onChange(cfg)
	})
	l.v.WatchConfig()
}

func (l *Loader) unmarshal() (*Config, error) {
	var cfg Config
	if err := l.v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	// Unlisted classes fall back to the defaults table.
	merged := DefaultRateLimitRules()
	for class, rule := range cfg.Security.RateLimits {
		merged[class] = rule
	}
	cfg.Security.RateLimits = merged

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
