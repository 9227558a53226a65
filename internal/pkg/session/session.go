package session

import (
	"go.uber.org/zap"

	"github.com/cozystack/pipewiz/internal/pkg/creation"
	"github.com/cozystack/pipewiz/internal/pkg/credentials"
	"github.com/cozystack/pipewiz/internal/pkg/flow"
	"github.com/cozystack/pipewiz/internal/pkg/i18n"
)

// Session is everything one wizard run needs.
type Session struct {
	Config      *Config
	Logger      *zap.Logger
	Catalog     *i18n.Catalog
	API         *creation.Client
	Credentials *credentials.Manager
	Machine     *flow.Machine

	ownsLogger bool
}

// NewSession validates config and builds a session from it.
func (f *Factory) NewSession(config *Config) (*Session, error) {
	if err := f.ValidateConfig(config); err != nil {
		return nil, err
	}

	return NewBuilder().WithConfig(config).Build()
}

// T translates a message key.
func (s *Session) T(key string, data map[string]any) string {
	return s.Catalog.Translate(key, data)
}

// Close destroys the machine and flushes the logger.
func (s *Session) Close() error {
	s.Machine.Destroy()

	if s.ownsLogger {
		// stderr cannot be synced on some platforms
		_ = s.Logger.Sync() //nolint:errcheck
	}

	return nil
}
