package credentials

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cozystack/pipewiz/internal/pkg/apperror"
	"github.com/cozystack/pipewiz/internal/pkg/httpapi"
)

type fakeAPI struct {
	calls atomic.Int32
	delay time.Duration
	list  []Credential
	err   error
}

func (f *fakeAPI) ListCredentials(context.Context) ([]Credential, error) {
	f.calls.Add(1)
	time.Sleep(f.delay)

	return f.list, f.err
}

func TestManagerListAllCredentials(t *testing.T) {
	api := &fakeAPI{list: []Credential{
		{ID: "gh-token", Username: "bot", DisplayName: "GitHub bot", Kind: KindUsernamePassword},
		{ID: "git-ssh", Username: "jenkins", Kind: KindSSH, SystemDefault: true},
		{DisplayName: "broken entry without id"},
	}}

	m := NewManager(api, "- none -")

	byID, err := m.ListAllCredentials(context.Background())
	require.NoError(t, err)

	assert.Len(t, byID, 2)
	assert.Equal(t, "bot", byID["gh-token"].Username)

	creds := m.Credentials()
	require.Len(t, creds, 3)
	assert.True(t, creds[0].IsNone())
	assert.Equal(t, "- none -", creds[0].Label())
	assert.Equal(t, "gh-token", creds[1].ID)

	ssh := m.SystemSSHCredential()
	require.NotNil(t, ssh)
	assert.Equal(t, "git-ssh", ssh.ID)

	c, ok := m.Lookup("gh-token")
	assert.True(t, ok)
	assert.Equal(t, "GitHub bot", c.Label())

	_, ok = m.Lookup("missing")
	assert.False(t, ok)
}

func TestManagerWithoutSystemSSH(t *testing.T) {
	api := &fakeAPI{list: []Credential{
		{ID: "ssh-but-not-default", Kind: KindSSH},
	}}

	m := NewManager(api, "none")
	_, err := m.ListAllCredentials(context.Background())
	require.NoError(t, err)

	assert.Nil(t, m.SystemSSHCredential())
}

func TestManagerListErrorKeepsSentinel(t *testing.T) {
	m := NewManager(&fakeAPI{err: errors.New("connection refused")}, "none")

	_, err := m.ListAllCredentials(context.Background())
	require.Error(t, err)
	assert.True(t, apperror.IsNetworkError(err))

	creds := m.Credentials()
	require.Len(t, creds, 1)
	assert.True(t, creds[0].IsNone())
}

func TestManagerCollapsesConcurrentLists(t *testing.T) {
	api := &fakeAPI{delay: 50 * time.Millisecond, list: []Credential{{ID: "a"}}}
	m := NewManager(api, "none")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := m.ListAllCredentials(context.Background())
			assert.NoError(t, err)
		}()
	}

	wg.Wait()
	assert.Less(t, api.calls.Load(), int32(5))
}

func TestCredentialPredicates(t *testing.T) {
	tests := []struct {
		name   string
		cred   Credential
		none   bool
		inline bool
	}{
		{"sentinel", None("none"), true, false},
		{"stored", Credential{ID: "x"}, false, false},
		{"inline", Credential{Username: "u", Password: "p"}, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.none, tt.cred.IsNone())
			assert.Equal(t, tt.inline, tt.cred.IsInline())
		})
	}
}

func TestClientListCredentials(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/credentials/", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`[
			{"id":"git-ssh","username":"jenkins","displayName":"Jenkins SSH","kind":"ssh","systemDefault":true},
			{"id":"token","username":"bot","kind":"usernamePassword"}
		]`))
	}))
	defer srv.Close()

	httpClient, err := httpapi.New(httpapi.Config{BaseURL: srv.URL + "/api"})
	require.NoError(t, err)

	list, err := NewClient(httpClient).ListCredentials(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].SystemDefault)
	assert.Equal(t, KindSSH, list[0].Kind)
	assert.Empty(t, list[1].Password)
}

func TestClientListCredentialsErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	httpClient, err := httpapi.New(httpapi.Config{BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = NewClient(httpClient).ListCredentials(context.Background())
	require.Error(t, err)
	assert.True(t, apperror.IsNetworkError(err))
}
