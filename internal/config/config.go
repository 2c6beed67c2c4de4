// Package config holds the application's configuration surface. Every
// runtime-tunable engine threshold lives here and flows into
// SecurityManager.UpdateConfig on hot reload.
package config

import (
	"fmt"
	"time"

	"github.com/sentra-sec/sentra/pkg/constants"
)

// Config holds the application's configuration.
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Log      LogConfig      `mapstructure:"log"`
	Tracing  TracingConfig  `mapstructure:"tracing"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Kafka    KafkaConfig    `mapstructure:"kafka"`
	Security SecurityConfig `mapstructure:"security"`
}

type ServerConfig struct {
	Host            string   `mapstructure:"host"`
	Port            int      `mapstructure:"port"`
	Environment     string   `mapstructure:"environment"`
	ReadTimeout     int      `mapstructure:"read_timeout"`  // seconds
	WriteTimeout    int      `mapstructure:"write_timeout"` // seconds
	AllowedOrigins  []string `mapstructure:"allowed_origins"`
	ShutdownTimeout int      `mapstructure:"shutdown_timeout"` // seconds
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type TracingConfig struct {
	Enabled        bool    `mapstructure:"enabled"`
	JaegerEndpoint string  `mapstructure:"jaeger_endpoint"`
	ServiceName    string  `mapstructure:"service_name"`
	SamplingRate   float64 `mapstructure:"sampling_rate"`
}

// RedisConfig configures the optional Redis rate-limit store. When Enabled is
// false the in-memory store is used.
type RedisConfig struct {
	Enabled   bool     `mapstructure:"enabled"`
	Addresses []string `mapstructure:"addresses"`
	Password  string   `mapstructure:"password"`
	DB        int      `mapstructure:"db"`
}

// KafkaConfig configures the optional Kafka alert sink. When Enabled is false
// alerts are dropped by the noop sink.
type KafkaConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	Brokers      []string      `mapstructure:"brokers"`
	AlertTopic   string        `mapstructure:"alert_topic"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	BatchTimeout time.Duration `mapstructure:"batch_timeout"`
}

// RateLimitRule is the per-operation-class window configuration.
type RateLimitRule struct {
	MaxRequests   int           `mapstructure:"max_requests" json:"max_requests"`
	Window        time.Duration `mapstructure:"window" json:"window"`
	BlockDuration time.Duration `mapstructure:"block_duration" json:"block_duration"`
}

// ThreatPatternConfig registers an extra threat pattern beyond the built-ins.
type ThreatPatternConfig struct {
	ID          string `mapstructure:"id"`
	Name        string `mapstructure:"name"`
	Severity    string `mapstructure:"severity"`
	Expression  string `mapstructure:"expression"`
	Description string `mapstructure:"description"`
	Mitigation  string `mapstructure:"mitigation"`
}

// SecurityConfig carries every runtime-tunable engine parameter.
type SecurityConfig struct {
	AnomalyThreshold  float64       `mapstructure:"anomaly_threshold" json:"anomaly_threshold"`
	LearningRate      float64       `mapstructure:"learning_rate" json:"learning_rate"`
	MaxFailedAttempts int           `mapstructure:"max_failed_attempts" json:"max_failed_attempts"`
	LockoutDuration   time.Duration `mapstructure:"lockout_duration" json:"lockout_duration"`
	SessionTimeout    time.Duration `mapstructure:"session_timeout" json:"session_timeout"`
	MetricsHistoryCap int           `mapstructure:"metrics_history_cap" json:"metrics_history_cap"`
	ReportingInterval time.Duration `mapstructure:"reporting_interval" json:"reporting_interval"`
	SessionTokenKey   string        `mapstructure:"session_token_key" json:"-"`

	// RateLimits overrides per-operation-class windows, keyed by class name.
	RateLimits map[string]RateLimitRule `mapstructure:"rate_limits" json:"rate_limits"`

	// CertificatePins seeds the pin store, domain → fingerprints.
	CertificatePins map[string][]string `mapstructure:"certificate_pins" json:"certificate_pins"`

	// ThreatPatterns registers extra patterns beyond the built-in signatures.
	ThreatPatterns []ThreatPatternConfig `mapstructure:"threat_patterns" json:"threat_patterns"`
}

// DefaultSecurityConfig returns the engine defaults from pkg/constants.
func DefaultSecurityConfig() SecurityConfig {
	return SecurityConfig{
		AnomalyThreshold:  constants.DefaultAnomalyThreshold,
		LearningRate:      constants.DefaultLearningRate,
		MaxFailedAttempts: constants.DefaultMaxFailedAttempts,
		LockoutDuration:   constants.DefaultLockoutWindow,
		SessionTimeout:    constants.DefaultSessionTimeout,
		MetricsHistoryCap: constants.DefaultMetricsHistoryCap,
		ReportingInterval: constants.DefaultReportingInterval,
		RateLimits:        DefaultRateLimitRules(),
	}
}

// DefaultRateLimitRules returns the per-class windows used when the config
// file does not override a class.
func DefaultRateLimitRules() map[string]RateLimitRule {
	return map[string]RateLimitRule{
		string(constants.ClassAuthentication):   {MaxRequests: 10, Window: time.Minute, BlockDuration: 5 * time.Minute},
		string(constants.ClassIdentityCreation): {MaxRequests: 3, Window: time.Hour, BlockDuration: time.Hour},
		string(constants.ClassResolution):       {MaxRequests: 120, Window: time.Minute, BlockDuration: time.Minute},
		string(constants.ClassAPI):              {MaxRequests: 100, Window: time.Minute, BlockDuration: 5 * time.Minute},
		string(constants.ClassUserAction):       {MaxRequests: 60, Window: time.Minute, BlockDuration: time.Minute},
		string(constants.ClassFileUpload):       {MaxRequests: 10, Window: 10 * time.Minute, BlockDuration: 10 * time.Minute},
		string(constants.ClassRecovery):         {MaxRequests: 3, Window: time.Hour, BlockDuration: time.Hour},
	}
}

// Validate checks for essential configuration values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	return c.Security.Validate()
}

// Validate rejects thresholds outside their documented ranges.
func (s *SecurityConfig) Validate() error {
	if s.AnomalyThreshold < 0 || s.AnomalyThreshold > 1 {
		return fmt.Errorf("security.anomaly_threshold must be in [0,1]: %v", s.AnomalyThreshold)
	}
	if s.LearningRate <= 0 || s.LearningRate > 1 {
		return fmt.Errorf("security.learning_rate must be in (0,1]: %v", s.LearningRate)
	}
	if s.MaxFailedAttempts <= 0 {
		return fmt.Errorf("security.max_failed_attempts must be positive: %d", s.MaxFailedAttempts)
	}
	if s.LockoutDuration <= 0 {
		return fmt.Errorf("security.lockout_duration must be positive: %v", s.LockoutDuration)
	}
	if s.SessionTimeout <= 0 {
		return fmt.Errorf("security.session_timeout must be positive: %v", s.SessionTimeout)
	}
	if s.MetricsHistoryCap <= 0 {
		return fmt.Errorf("security.metrics_history_cap must be positive: %d", s.MetricsHistoryCap)
	}
	for class, rule := range s.RateLimits {
		if rule.MaxRequests <= 0 || rule.Window <= 0 {
			return fmt.Errorf("security.rate_limits[%s] must have positive max_requests and window", class)
		}
	}
	return nil
}
