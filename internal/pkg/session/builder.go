package session

import (
	"net/http"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/cozystack/pipewiz/internal/pkg/apperror"
	"github.com/cozystack/pipewiz/internal/pkg/creation"
	"github.com/cozystack/pipewiz/internal/pkg/credentials"
	"github.com/cozystack/pipewiz/internal/pkg/flow"
	"github.com/cozystack/pipewiz/internal/pkg/httpapi"
	"github.com/cozystack/pipewiz/internal/pkg/i18n"
	"github.com/cozystack/pipewiz/internal/pkg/logging"
)

// Builder assembles a Session step by step.
type Builder struct {
	config     *Config
	logger     *zap.Logger
	clock      clock.Clock
	httpClient *http.Client
}

// NewBuilder creates a builder with the default configuration.
func NewBuilder() *Builder {
	return &Builder{
		config: DefaultConfig(),
	}
}

// WithConfig replaces the whole configuration.
func (b *Builder) WithConfig(config *Config) *Builder {
	cfg := *config
	b.config = &cfg

	return b
}

// WithServerURL sets the pipeline service URL.
func (b *Builder) WithServerURL(serverURL string) *Builder {
	b.config.ServerURL = serverURL

	return b
}

// WithRemediationURL sets the build file service URL.
func (b *Builder) WithRemediationURL(remediationURL string) *Builder {
	b.config.RemediationURL = remediationURL

	return b
}

// WithOrganization sets the pipeline organization.
func (b *Builder) WithOrganization(org string) *Builder {
	b.config.Organization = org

	return b
}

// WithDelays sets the flow delays.
func (b *Builder) WithDelays(minDelay, saveDelay, settleDelay time.Duration) *Builder {
	b.config.MinDelay = minDelay
	b.config.SaveDelay = saveDelay
	b.config.SettleDelay = settleDelay

	return b
}

// WithRequestSettings sets the HTTP timeout and rate limit.
func (b *Builder) WithRequestSettings(timeout time.Duration, rateLimit float64) *Builder {
	b.config.RequestTimeout = timeout
	b.config.RateLimit = rateLimit

	return b
}

// WithCacheTTL sets how long name checks are cached.
func (b *Builder) WithCacheTTL(ttl time.Duration) *Builder {
	b.config.CacheTTL = ttl

	return b
}

// WithLogging sets the log level and file.
func (b *Builder) WithLogging(level, logFile string) *Builder {
	b.config.LogLevel = level
	b.config.LogFile = logFile

	return b
}

// WithLanguage sets the message language.
func (b *Builder) WithLanguage(lang string) *Builder {
	b.config.Language = lang

	return b
}

// WithLogger uses logger instead of building one from the configuration.
func (b *Builder) WithLogger(logger *zap.Logger) *Builder {
	b.logger = logger

	return b
}

// WithClock sets the clock of the flow.
func (b *Builder) WithClock(clk clock.Clock) *Builder {
	b.clock = clk

	return b
}

// WithHTTPClient sets the HTTP client of both services.
func (b *Builder) WithHTTPClient(client *http.Client) *Builder {
	b.httpClient = client

	return b
}

// Config returns the configuration built so far.
func (b *Builder) Config() *Config {
	return b.config
}

// Build validates the configuration and creates the session.
func (b *Builder) Build() (*Session, error) {
	if err := NewFactory().ValidateConfig(b.config); err != nil {
		return nil, err
	}

	cfg := *b.config

	logger, ownsLogger := b.logger, false
	if logger == nil {
		var err error

		if logger, err = logging.New(cfg.LogLevel, cfg.LogFile); err != nil {
			return nil, apperror.NewErrorWithCause(apperror.ErrConfiguration, "SES_011", "failed to set up logging", cfg.LogFile, err)
		}

		ownsLogger = true
	}

	catalog, err := i18n.Load(cfg.Language)
	if err != nil {
		return nil, apperror.NewErrorWithCause(apperror.ErrConfiguration, "SES_012", "failed to load messages", cfg.Language, err)
	}

	server, err := httpapi.New(httpapi.Config{
		BaseURL:    cfg.ServerURL,
		Timeout:    cfg.RequestTimeout,
		RateLimit:  cfg.RateLimit,
		HTTPClient: b.httpClient,
		Logger:     logger.Named("server"),
	})
	if err != nil {
		return nil, err
	}

	remediation := server
	if cfg.RemediationURL != "" {
		if remediation, err = httpapi.New(httpapi.Config{
			BaseURL:    cfg.RemediationURL,
			Timeout:    cfg.RequestTimeout,
			RateLimit:  cfg.RateLimit,
			HTTPClient: b.httpClient,
			Logger:     logger.Named("remediation"),
		}); err != nil {
			return nil, err
		}
	}

	api, err := creation.NewClient(creation.ClientConfig{
		Server:       server,
		Remediation:  remediation,
		Organization: cfg.Organization,
		CacheTTL:     cfg.CacheTTL,
		Clock:        b.clock,
		Logger:       logger.Named("creation"),
	})
	if err != nil {
		return nil, err
	}

	manager := credentials.NewManager(credentials.NewClient(server), catalog.Translate(flow.MsgNoCredentialOption, nil))

	machine := flow.New(api, manager, flow.Options{
		Clock:       b.clock,
		Logger:      logger.Named("flow"),
		Translate:   catalog.Translate,
		MinDelay:    cfg.MinDelay,
		SaveDelay:   cfg.SaveDelay,
		SettleDelay: cfg.SettleDelay,
		Archetypes:  creation.Archetypes(),
	})

	logger.Debug("session built",
		zap.String("server", server.BaseURL()),
		zap.String("remediation", remediation.BaseURL()),
		zap.String("organization", cfg.Organization),
		zap.Stringer("language", catalog.Language()))

	return &Session{
		Config:      &cfg,
		Logger:      logger,
		Catalog:     catalog,
		API:         api,
		Credentials: manager,
		Machine:     machine,
		ownsLogger:  ownsLogger,
	}, nil
}
