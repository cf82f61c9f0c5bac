// Package config provides Viper-based hierarchical configuration management:
// defaults, optional yaml config file, then environment variables.
package config

import (
	"fmt"
	"strings"

	"obs/reversal-watcher/internal/bakong"

	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Config represents the complete application configuration.
type Config struct {
	Log struct {
		Level  string `mapstructure:"level" yaml:"level"`
		Format string `mapstructure:"format" yaml:"format"`
	} `mapstructure:"log" yaml:"log"`

	Poll struct {
		IntervalSeconds int    `mapstructure:"interval_seconds" yaml:"interval_seconds"`
		Strategy        string `mapstructure:"strategy" yaml:"strategy"`
	} `mapstructure:"poll" yaml:"poll"`

	Server struct {
		Port int `mapstructure:"port" yaml:"port"`
	} `mapstructure:"server" yaml:"server"`

	DB struct {
		Host     string `mapstructure:"host" yaml:"host"`
		Port     int    `mapstructure:"port" yaml:"port"`
		User     string `mapstructure:"user" yaml:"user"`
		Password string `mapstructure:"password" yaml:"-"` // Never serialize credentials
		Name     string `mapstructure:"name" yaml:"name"`
		SSLMode  string `mapstructure:"ssl_mode" yaml:"ssl_mode"`

		// InMemory swaps the Postgres ledger for the in-process one. Meant
		// for local runs and demos, not production.
		InMemory bool `mapstructure:"in_memory" yaml:"in_memory"`
	} `mapstructure:"db" yaml:"db"`

	Bakong struct {
		SOAPURL   string `mapstructure:"soap_url" yaml:"soap_url"`
		APIURL    string `mapstructure:"api_url" yaml:"api_url"`
		AuthURL   string `mapstructure:"auth_url" yaml:"auth_url"`
		ReportURL string `mapstructure:"report_url" yaml:"report_url"`

		APIKey   string `mapstructure:"api_key" yaml:"-"`
		Username string `mapstructure:"username" yaml:"username"`
		Password string `mapstructure:"password" yaml:"-"`

		// PayeeCodes are the participant codes polled each run.
		PayeeCodes []string `mapstructure:"payee_codes" yaml:"payee_codes"`

		// ReversingBIC and OriginBIC form the direction pair that marks a
		// credit transfer as a returned payment.
		ReversingBIC string `mapstructure:"reversing_bic" yaml:"reversing_bic"`
		OriginBIC    string `mapstructure:"origin_bic" yaml:"origin_bic"`

		// SenderBIC, SenderAccount and SenderName identify this institution
		// in outbound payloads.
		SenderBIC     string `mapstructure:"sender_bic" yaml:"sender_bic"`
		SenderAccount string `mapstructure:"sender_account" yaml:"sender_account"`
		SenderName    string `mapstructure:"sender_name" yaml:"sender_name"`

		// DestinationBIC and DestinationAccount receive forwarded funds.
		DestinationBIC     string `mapstructure:"destination_bic" yaml:"destination_bic"`
		DestinationAccount string `mapstructure:"destination_account" yaml:"destination_account"`

		TransactionSize int `mapstructure:"transaction_size" yaml:"transaction_size"`
		MaxRetries      int `mapstructure:"max_retries" yaml:"max_retries"`
		RetryDelayMS    int `mapstructure:"retry_delay_ms" yaml:"retry_delay_ms"`
		TimeoutSeconds  int `mapstructure:"timeout_seconds" yaml:"timeout_seconds"`
	} `mapstructure:"bakong" yaml:"bakong"`
}

// ValidateService checks the settings the watcher daemon cannot run
// without. Kept separate from InitializeConfig so offline commands like the
// CSV export do not demand gateway credentials.
func (c *Config) ValidateService() error {
	if c.Bakong.SOAPURL == "" {
		return fmt.Errorf("bakong.soap_url is required")
	}
	if c.Bakong.Username == "" || c.Bakong.Password == "" {
		return fmt.Errorf("bakong.username and bakong.password are required")
	}
	if len(c.Bakong.PayeeCodes) == 0 {
		return fmt.Errorf("bakong.payee_codes must name at least one participant")
	}
	if c.Bakong.DestinationBIC == "" || c.Bakong.DestinationAccount == "" {
		return fmt.Errorf("bakong.destination_bic and bakong.destination_account are required")
	}
	return nil
}

// DSN builds the Postgres connection string from the DB section.
func (c *Config) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.DB.Host, c.DB.Port, c.DB.User, c.DB.Password, c.DB.Name, c.DB.SSLMode)
}

// InitializeConfig initializes Viper configuration with hierarchical loading.
func InitializeConfig() (*Config, error) {
	v := viper.New()

	// 1. Set defaults
	setDefaults(v)

	// 2. Config file locations
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("$HOME/.reversal-watcher")
	v.AddConfigPath(".reversal-watcher")
	v.AddConfigPath(".")

	// 3. Environment variables
	v.SetEnvPrefix("WATCHER")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	// 4. Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Log the error but don't fail - continue with defaults and env vars
			fmt.Printf("Warning: error reading config file %s: %v\n", v.ConfigFileUsed(), err)
		}
	}

	// 5. Credentials keep their historical unprefixed names
	bindLegacyEnv(v)

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// 6. Validate configuration
	if err := validateConfig(&config); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &config, nil
}

// bindLegacyEnv maps the deployment's established environment variable names
// onto config keys, so existing .env files keep working unchanged.
func bindLegacyEnv(v *viper.Viper) {
	bindings := map[string]string{
		"bakong.soap_url":            "BAKONG_SOAP_URL",
		"bakong.api_url":             "BAKONG_API_URL",
		"bakong.auth_url":            "BAKONG_AUTH_URL",
		"bakong.report_url":          "BAKONG_REPORT_URL",
		"bakong.api_key":             "BAKONG_API_KEY",
		"bakong.username":            "BAKONG_USERNAME",
		"bakong.password":            "BAKONG_PASSWORD",
		"bakong.sender_bic":          "BAKONG_SENDER_BIC",
		"bakong.sender_account":      "BAKONG_SENDER_ACCOUNT",
		"bakong.destination_bic":     "BAKONG_DESTINATION_BIC",
		"bakong.destination_account": "BAKONG_DESTINATION_ACCOUNT",
		"db.host":                    "DB_HOST",
		"db.port":                    "DB_PORT",
		"db.user":                    "DB_USER",
		"db.password":                "DB_PASSWORD",
		"db.name":                    "DB_NAME",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			fmt.Printf("Warning: failed to bind %s environment variable: %v\n", env, err)
		}
	}
}

// setDefaults sets default configuration values.
func setDefaults(v *viper.Viper) {
	// Log defaults
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "text")

	// Poll defaults
	v.SetDefault("poll.interval_seconds", 60)
	v.SetDefault("poll.strategy", string(bakong.StrategySOAP))

	// Server defaults
	v.SetDefault("server.port", 8080)

	// DB defaults
	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.name", "reversal_watcher")
	v.SetDefault("db.ssl_mode", "disable")
	v.SetDefault("db.in_memory", false)

	// Bakong defaults
	v.SetDefault("bakong.payee_codes", []string{})
	v.SetDefault("bakong.reversing_bic", "BKRTKHPP")
	v.SetDefault("bakong.origin_bic", "TOURKHPP")
	v.SetDefault("bakong.sender_name", "OBS")
	v.SetDefault("bakong.transaction_size", 200)
	v.SetDefault("bakong.max_retries", 3)
	v.SetDefault("bakong.retry_delay_ms", 1000)
	v.SetDefault("bakong.timeout_seconds", 10)
}

// validateConfig validates the configuration values.
func validateConfig(config *Config) error {
	// Validate log level
	if _, err := logrus.ParseLevel(config.Log.Level); err != nil {
		return fmt.Errorf("invalid log level: %s", config.Log.Level)
	}

	// Validate log format
	if config.Log.Format != "text" && config.Log.Format != "json" {
		return fmt.Errorf("invalid log format: %s (must be 'text' or 'json')", config.Log.Format)
	}

	if config.Poll.IntervalSeconds < 1 {
		return fmt.Errorf("poll.interval_seconds must be positive, got: %d", config.Poll.IntervalSeconds)
	}

	switch bakong.StrategyType(config.Poll.Strategy) {
	case bakong.StrategySOAP, bakong.StrategyReport:
	default:
		return fmt.Errorf("invalid poll strategy: %s (must be 'soap' or 'report')", config.Poll.Strategy)
	}

	if config.Poll.Strategy == string(bakong.StrategyReport) {
		if config.Bakong.ReportURL == "" {
			return fmt.Errorf("bakong.report_url required when poll strategy is 'report'")
		}
		if config.Bakong.AuthURL == "" {
			return fmt.Errorf("bakong.auth_url required when poll strategy is 'report'")
		}
	}

	if config.Server.Port < 1 || config.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got: %d", config.Server.Port)
	}

	return nil
}
