// Package session assembles the API clients, credential manager, catalog and
// flow machine of one wizard run.
package session

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"go.uber.org/zap/zapcore"
	"golang.org/x/text/language"

	"github.com/cozystack/pipewiz/internal/pkg/apperror"
	"github.com/cozystack/pipewiz/internal/pkg/creation"
	"github.com/cozystack/pipewiz/internal/pkg/flow"
)

// Config is the configuration of a session.
type Config struct {
	// Pipeline service
	ServerURL      string
	RemediationURL string
	Organization   string

	// HTTP behaviour
	RequestTimeout time.Duration
	RateLimit      float64 // requests per second, 0 disables limiting
	CacheTTL       time.Duration

	// Flow delays
	MinDelay    time.Duration
	SaveDelay   time.Duration
	SettleDelay time.Duration

	// Logging
	LogLevel string
	LogFile  string

	Language string
}

// DefaultConfig returns the default configuration. ServerURL has no default.
func DefaultConfig() *Config {
	return &Config{
		Organization:   creation.DefaultOrganization,
		RequestTimeout: 30 * time.Second,
		RateLimit:      5,
		CacheTTL:       time.Minute,
		MinDelay:       flow.DefaultMinDelay,
		SaveDelay:      flow.DefaultSaveDelay,
		SettleDelay:    flow.DefaultSettleDelay,
		LogLevel:       "info",
		Language:       "en",
	}
}

// Factory validates configurations and creates sessions from them.
type Factory struct {
	defaultConfig *Config
}

// NewFactory creates a factory.
func NewFactory() *Factory {
	return &Factory{
		defaultConfig: DefaultConfig(),
	}
}

// DefaultConfig returns a copy of the factory defaults.
func (f *Factory) DefaultConfig() *Config {
	cfg := *f.defaultConfig

	return &cfg
}

// ValidateConfig reports every problem of config at once.
func (f *Factory) ValidateConfig(config *Config) error {
	if config == nil {
		return apperror.NewConfigurationError("SES_001", "configuration is nil", "a session configuration is required")
	}

	var result *multierror.Error

	if strings.TrimSpace(config.ServerURL) == "" {
		result = multierror.Append(result, apperror.NewValidationError("SES_002", "server URL is required", "set server.url or --server"))
	} else if err := validateURL(config.ServerURL); err != nil {
		result = multierror.Append(result, apperror.NewValidationError("SES_003", "invalid server URL", err.Error()))
	}

	if config.RemediationURL != "" {
		if err := validateURL(config.RemediationURL); err != nil {
			result = multierror.Append(result, apperror.NewValidationError("SES_004", "invalid remediation URL", err.Error()))
		}
	}

	if config.RequestTimeout <= 0 {
		result = multierror.Append(result, apperror.NewValidationError("SES_005",
			"request timeout must be positive", fmt.Sprintf("timeout: %v", config.RequestTimeout)))
	}

	if config.RateLimit < 0 {
		result = multierror.Append(result, apperror.NewValidationError("SES_006",
			"rate limit cannot be negative", fmt.Sprintf("rate limit: %v", config.RateLimit)))
	}

	if config.CacheTTL < 0 {
		result = multierror.Append(result, apperror.NewValidationError("SES_007",
			"cache TTL cannot be negative", fmt.Sprintf("TTL: %v", config.CacheTTL)))
	}

	for name, d := range map[string]time.Duration{
		"minDelay":    config.MinDelay,
		"saveDelay":   config.SaveDelay,
		"settleDelay": config.SettleDelay,
	} {
		if d < 0 {
			result = multierror.Append(result, apperror.NewValidationError("SES_008",
				"delay cannot be negative", fmt.Sprintf("%s: %v", name, d)))
		}
	}

	if _, err := zapcore.ParseLevel(config.LogLevel); err != nil {
		result = multierror.Append(result, apperror.NewValidationError("SES_009", "invalid log level", config.LogLevel))
	}

	if config.Language != "" {
		if _, err := language.Parse(config.Language); err != nil {
			result = multierror.Append(result, apperror.NewValidationError("SES_010", "invalid language", config.Language))
		}
	}

	return result.ErrorOrNil()
}

func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("unsupported scheme %q in %s", u.Scheme, raw)
	}

	if u.Host == "" {
		return fmt.Errorf("missing host in %s", raw)
	}

	return nil
}
