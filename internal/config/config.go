package config

import (
	"strings"

	"github.com/joho/godotenv"
	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config holds the full application configuration.
type Config struct {
	Roboflow RoboflowConfig `yaml:"roboflow" mapstructure:"roboflow"`
	Policy   PolicyConfig   `yaml:"policy" mapstructure:"policy"`
	Server   ServerConfig   `yaml:"server" mapstructure:"server"`
	Batch    BatchConfig    `yaml:"batch" mapstructure:"batch"`
	Log      LogConfig      `yaml:"log" mapstructure:"log"`
}

// RoboflowConfig holds vendor API credentials and workflow identifiers.
type RoboflowConfig struct {
	APIURL          string `yaml:"api_url" mapstructure:"api_url"`
	APIKey          string `yaml:"api_key" mapstructure:"api_key"`
	Workspace       string `yaml:"workspace" mapstructure:"workspace"`
	RiceWorkflowID  string `yaml:"rice_workflow_id" mapstructure:"rice_workflow_id"`
	WheatWorkflowID string `yaml:"wheat_workflow_id" mapstructure:"wheat_workflow_id"`
}

// PolicyConfig holds the arbitration policy parameters.
type PolicyConfig struct {
	MinConfidence float64 `yaml:"min_confidence" mapstructure:"min_confidence"`
	Margin        float64 `yaml:"margin" mapstructure:"margin"`
}

// ServerConfig configures the HTTP API server.
type ServerConfig struct {
	Host           string `yaml:"host" mapstructure:"host"`
	Port           int    `yaml:"port" mapstructure:"port"`
	Debug          bool   `yaml:"debug" mapstructure:"debug"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes" mapstructure:"max_upload_bytes"`
}

// BatchConfig configures batch processing defaults.
type BatchConfig struct {
	Workers int `yaml:"workers" mapstructure:"workers"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from .env, config file, and environment.
func Load() (*Config, error) {
	// A missing .env file is fine; the environment wins either way.
	_ = godotenv.Load()

	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CROPSCOUT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Credential keys get empty defaults so AutomaticEnv can
	// bind them during Unmarshal.
	v.SetDefault("roboflow.api_url", "https://serverless.roboflow.com")
	v.SetDefault("roboflow.api_key", "")
	v.SetDefault("roboflow.workspace", "")
	v.SetDefault("roboflow.rice_workflow_id", "")
	v.SetDefault("roboflow.wheat_workflow_id", "")
	v.SetDefault("policy.min_confidence", 0.4)
	v.SetDefault("policy.margin", 0.02)
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.max_upload_bytes", 16<<20)
	v.SetDefault("batch.workers", 4)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

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

// Validate reports the credential and workflow settings that must be
// present before any workflow can run.
func (c *Config) Validate() []string {
	var missing []string
	if c.Roboflow.APIKey == "" {
		missing = append(missing, "roboflow.api_key")
	}
	if c.Roboflow.Workspace == "" {
		missing = append(missing, "roboflow.workspace")
	}
	if c.Roboflow.RiceWorkflowID == "" {
		missing = append(missing, "roboflow.rice_workflow_id")
	}
	if c.Roboflow.WheatWorkflowID == "" {
		missing = append(missing, "roboflow.wheat_workflow_id")
	}
	return missing
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
