// Package config loads scanlock configuration from file and environment
// and owns global logger setup.
package config

import (
	"strings"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Engine  EngineConfig  `yaml:"engine" mapstructure:"engine"`
	OCR     OCRConfig     `yaml:"ocr" mapstructure:"ocr"`
	Capture CaptureConfig `yaml:"capture" mapstructure:"capture"`
	Store   StoreConfig   `yaml:"store" mapstructure:"store"`
	Server  ServerConfig  `yaml:"server" mapstructure:"server"`
	Log     LogConfig     `yaml:"log" mapstructure:"log"`

	Monitoring MonitoringConfig `yaml:"monitoring" mapstructure:"monitoring"`
}

// EngineConfig tunes the stabilization engine's scheduling. The acceptance
// thresholds and relaxation checkpoints are fixed engine behavior and are
// deliberately not configurable.
type EngineConfig struct {
	EvaluateIntervalMS int `yaml:"evaluate_interval_ms" mapstructure:"evaluate_interval_ms"`
	StopGraceMS        int `yaml:"stop_grace_ms" mapstructure:"stop_grace_ms"`
}

// OCRConfig configures the text recognition provider.
type OCRConfig struct {
	Provider      string  `yaml:"provider" mapstructure:"provider"`
	TesseractPath string  `yaml:"tesseract_path" mapstructure:"tesseract_path"`
	Language      string  `yaml:"language" mapstructure:"language"`
	ReplayScript  string  `yaml:"replay_script" mapstructure:"replay_script"`
	AnthropicKey  string  `yaml:"anthropic_api_key" mapstructure:"anthropic_api_key"`
	Model         string  `yaml:"model" mapstructure:"model"`
	MaxTokens     int     `yaml:"max_tokens" mapstructure:"max_tokens"`
	VisionDefault float64 `yaml:"vision_default_confidence" mapstructure:"vision_default_confidence"`
}

// CaptureConfig configures frame delivery pacing.
type CaptureConfig struct {
	FramesPerSecond float64 `yaml:"frames_per_second" mapstructure:"frames_per_second"`
	Loop            bool    `yaml:"loop" mapstructure:"loop"`
}

// StoreConfig configures decision history persistence.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"`
	Path        string `yaml:"path" mapstructure:"path"`
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// MonitoringConfig configures background health checks over decision
// history. Alerts fire to WebhookURL; an empty URL disables sending.
type MonitoringConfig struct {
	Enabled             bool    `yaml:"enabled" mapstructure:"enabled"`
	WebhookURL          string  `yaml:"webhook_url" mapstructure:"webhook_url"`
	CheckIntervalSecs   int     `yaml:"check_interval_secs" mapstructure:"check_interval_secs"`
	LookbackWindowHours int     `yaml:"lookback_window_hours" mapstructure:"lookback_window_hours"`
	EmergencyRateAlert  float64 `yaml:"emergency_rate_alert" mapstructure:"emergency_rate_alert"`
	UndecidedRateAlert  float64 `yaml:"undecided_rate_alert" mapstructure:"undecided_rate_alert"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("SCANLOCK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("engine.evaluate_interval_ms", 300)
	v.SetDefault("engine.stop_grace_ms", 300)
	v.SetDefault("ocr.provider", "tesseract")
	v.SetDefault("ocr.tesseract_path", "tesseract")
	v.SetDefault("ocr.language", "eng")
	v.SetDefault("ocr.model", "claude-haiku-4-5-20251001")
	v.SetDefault("ocr.max_tokens", 1024)
	v.SetDefault("ocr.vision_default_confidence", 0.9)
	v.SetDefault("capture.frames_per_second", 10)
	v.SetDefault("store.driver", "sqlite")
	v.SetDefault("store.path", "scanlock.db")
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("monitoring.check_interval_secs", 300)
	v.SetDefault("monitoring.lookback_window_hours", 24)
	v.SetDefault("monitoring.emergency_rate_alert", 0.5)
	v.SetDefault("monitoring.undecided_rate_alert", 0.5)

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
