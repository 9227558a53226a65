package flow

import (
	"context"
	"time"

	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/cozystack/pipewiz/internal/pkg/creation"
	"github.com/cozystack/pipewiz/internal/pkg/credentials"
)

// Default delays of the flow.
const (
	DefaultMinDelay    = 500 * time.Millisecond
	DefaultSaveDelay   = time.Second
	DefaultSettleDelay = 3 * time.Second
)

// Logger is the logging surface the machine needs; *zap.Logger satisfies it.
type Logger interface {
	Debug(msg string, fields ...zap.Field)
	Info(msg string, fields ...zap.Field)
	Warn(msg string, fields ...zap.Field)
	Error(msg string, fields ...zap.Field)
}

// Translator resolves a message key with template data.
type Translator func(key string, data map[string]any) string

// CredentialSource is the credential coordinator as used by the machine.
// *credentials.Manager implements it.
type CredentialSource interface {
	ListAllCredentials(ctx context.Context) (map[string]credentials.Credential, error)
	Credentials() []credentials.Credential
	SystemSSHCredential() *credentials.Credential
	None() credentials.Credential
}

// Options configures a Machine. Zero delays are kept as zero.
type Options struct {
	Clock     clock.Clock
	Logger    Logger
	Translate Translator

	// MinDelay floors credential loading.
	MinDelay time.Duration
	// SaveDelay floors the creation request.
	SaveDelay time.Duration
	// SettleDelay separates a build file injection from the creation request.
	SettleDelay time.Duration

	Archetypes []creation.Archetype
}

// DefaultOptions returns options with the default delays.
func DefaultOptions() Options {
	return Options{
		MinDelay:    DefaultMinDelay,
		SaveDelay:   DefaultSaveDelay,
		SettleDelay: DefaultSettleDelay,
		Archetypes:  creation.Archetypes(),
	}
}

func (o *Options) setDefaults() {
	if o.Clock == nil {
		o.Clock = clock.New()
	}

	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}

	if o.Translate == nil {
		o.Translate = func(key string, _ map[string]any) string { return key }
	}

	if o.Archetypes == nil {
		o.Archetypes = creation.Archetypes()
	}
}
