package credentials

import (
	"context"
	"slices"
	"sync"

	"github.com/siderolabs/gen/xslices"
	"golang.org/x/sync/singleflight"

	"github.com/cozystack/pipewiz/internal/pkg/apperror"
)

// API is the credential store as seen by the manager.
type API interface {
	ListCredentials(ctx context.Context) ([]Credential, error)
}

// Manager owns the list of known credentials and the detected system SSH
// credential. Concurrent ListAllCredentials calls share one request.
type Manager struct {
	api   API
	none  Credential
	group singleflight.Group

	mu          sync.RWMutex
	credentials []Credential
	systemSSH   *Credential
}

// NewManager creates a manager; noneLabel is the display name of the
// "no credential" sentinel.
func NewManager(api API, noneLabel string) *Manager {
	return &Manager{
		api:  api,
		none: None(noneLabel),
	}
}

// ListAllCredentials fetches the credential list, replaces the cached list
// and returns the credentials keyed by id.
func (m *Manager) ListAllCredentials(ctx context.Context) (map[string]Credential, error) {
	v, err, _ := m.group.Do("list", func() (any, error) {
		return m.api.ListCredentials(ctx)
	})
	if err != nil {
		return nil, apperror.WrapError(err, apperror.ErrNetwork, "CRED_001", "failed to list credentials", "")
	}

	stored := xslices.Filter(v.([]Credential), func(c Credential) bool {
		return c.ID != ""
	})

	byID := make(map[string]Credential, len(stored))
	for _, c := range stored {
		byID[c.ID] = c
	}

	var systemSSH *Credential
	if i := slices.IndexFunc(stored, Credential.isSystemSSH); i >= 0 {
		c := stored[i]
		systemSSH = &c
	}

	m.mu.Lock()
	m.credentials = stored
	m.systemSSH = systemSSH
	m.mu.Unlock()

	return byID, nil
}

// Credentials returns the known credentials with the sentinel first.
func (m *Manager) Credentials() []Credential {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return append([]Credential{m.none}, m.credentials...)
}

// SystemSSHCredential returns the system default SSH credential, if any.
func (m *Manager) SystemSSHCredential() *Credential {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.systemSSH == nil {
		return nil
	}

	c := *m.systemSSH

	return &c
}

// None returns the "no credential" sentinel.
func (m *Manager) None() Credential {
	return m.none
}

// Lookup finds a known credential by id.
func (m *Manager) Lookup(id string) (Credential, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, c := range m.credentials {
		if c.ID == id {
			return c, true
		}
	}

	return Credential{}, false
}
