package creation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/siderolabs/go-pointer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cozystack/pipewiz/internal/pkg/apperror"
	"github.com/cozystack/pipewiz/internal/pkg/httpapi"
)

func newTestClient(t *testing.T, handler http.Handler, ttl time.Duration, clk clock.Clock) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	server, err := httpapi.New(httpapi.Config{BaseURL: srv.URL + "/blue/rest"})
	require.NoError(t, err)

	c, err := NewClient(ClientConfig{Server: server, Organization: "acme", CacheTTL: ttl, Clock: clk})
	require.NoError(t, err)

	return c
}

func TestNewClientRequiresServer(t *testing.T) {
	_, err := NewClient(ClientConfig{})
	require.Error(t, err)
	assert.True(t, apperror.IsConfigurationError(err))
}

func TestCheckPipelineNameAvailable(t *testing.T) {
	var calls atomic.Int32

	mux := http.NewServeMux()
	mux.HandleFunc("/blue/rest/organizations/acme/pipelines/taken/", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_, _ = w.Write([]byte(`{"name":"taken"}`))
	})
	mux.HandleFunc("/blue/rest/organizations/acme/pipelines/free/", func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/blue/rest/organizations/acme/pipelines/broken/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	clk := clock.NewMock()
	c := newTestClient(t, mux, time.Minute, clk)
	ctx := context.Background()

	available, err := c.CheckPipelineNameAvailable(ctx, "free")
	require.NoError(t, err)
	assert.True(t, available)

	available, err = c.CheckPipelineNameAvailable(ctx, "taken")
	require.NoError(t, err)
	assert.False(t, available)

	// cached
	_, err = c.CheckPipelineNameAvailable(ctx, "free")
	require.NoError(t, err)
	assert.Equal(t, int32(2), calls.Load())

	clk.Add(2 * time.Minute)

	_, err = c.CheckPipelineNameAvailable(ctx, "free")
	require.NoError(t, err)
	assert.Equal(t, int32(3), calls.Load())

	_, err = c.CheckPipelineNameAvailable(ctx, "broken")
	require.Error(t, err)
	assert.True(t, apperror.IsNetworkError(err))
}

func TestCheckPipelineNameAvailableEscapesOnce(t *testing.T) {
	tests := []struct {
		name        string
		wantPath    string
		wantEscaped string
	}{
		{name: "my app", wantPath: "/blue/rest/organizations/acme/pipelines/my app/", wantEscaped: "/blue/rest/organizations/acme/pipelines/my%20app/"},
		{name: "a/b", wantPath: "/blue/rest/organizations/acme/pipelines/a/b/", wantEscaped: "/blue/rest/organizations/acme/pipelines/a%2Fb/"},
		{name: "plain", wantPath: "/blue/rest/organizations/acme/pipelines/plain/", wantEscaped: "/blue/rest/organizations/acme/pipelines/plain/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var gotPath, gotEscaped string

			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotPath, gotEscaped = r.URL.Path, r.URL.EscapedPath()
				w.WriteHeader(http.StatusNotFound)
			}), 0, nil)

			available, err := c.CheckPipelineNameAvailable(context.Background(), tt.name)
			require.NoError(t, err)
			assert.True(t, available)
			assert.Equal(t, tt.wantPath, gotPath)
			assert.Equal(t, tt.wantEscaped, gotEscaped)
		})
	}
}

func TestCheckBuildFileExists(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		exists  bool
		wantErr bool
	}{
		{name: "present", status: http.StatusOK, body: `{"fileStatus":true}`, exists: true},
		{name: "absent", status: http.StatusOK, body: `{"fileStatus":false}`, exists: false},
		{name: "malformed", status: http.StatusOK, body: `{}`, wantErr: true},
		{name: "server error", status: http.StatusBadGateway, body: `{"message":"down"}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, "/blue/rest/checkJenkinsFile", r.URL.Path)
				assert.Equal(t, "git@github.com:acme/app.git", r.URL.Query().Get("repoUrl"))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}), 0, nil)

			status, err := c.CheckBuildFileExists(context.Background(), "git@github.com:acme/app.git")
			if tt.wantErr {
				require.Error(t, err)

				return
			}

			require.NoError(t, err)
			assert.Equal(t, tt.exists, status.Exists)
		})
	}
}

func TestInjectBuildFile(t *testing.T) {
	var form map[string]string

	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		form = map[string]string{
			"repoUrl":      r.PostForm.Get("repoUrl"),
			"username":     r.PostForm.Get("username"),
			"pass":         r.PostForm.Get("pass"),
			"type":         r.PostForm.Get("type"),
			"credentialId": r.PostForm.Get("credentialId"),
		}

		if r.PostForm.Get("type") == "java" {
			_, _ = w.Write([]byte(`{"status":"success","branch":"add-jenkinsfile"}`))

			return
		}

		_, _ = w.Write([]byte(`{"status":"error","message":"push rejected"}`))
	}), 0, nil)

	res, err := c.InjectBuildFile(context.Background(), InjectRequest{
		RepositoryURL: "https://github.com/acme/app.git",
		CredentialID:  pointer.To("gh"),
		Username:      "bot",
		Password:      "secret",
		Archetype:     "java",
	})
	require.NoError(t, err)
	assert.True(t, res.Success)
	assert.Equal(t, "add-jenkinsfile", res.Branch)
	assert.Equal(t, map[string]string{
		"repoUrl":      "https://github.com/acme/app.git",
		"username":     "bot",
		"pass":         "secret",
		"type":         "java",
		"credentialId": "gh",
	}, form)

	res, err = c.InjectBuildFile(context.Background(), InjectRequest{
		RepositoryURL: "https://github.com/acme/app.git",
		Archetype:     "nodejs",
	})
	require.NoError(t, err)
	assert.False(t, res.Success)
	assert.Equal(t, "push rejected", res.Detail)
	assert.Empty(t, form["credentialId"])
}

func TestCreatePipelineOutcomes(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		outcome Outcome
	}{
		{name: "success", status: http.StatusCreated, body: `{"id":"42","name":"app"}`, outcome: OutcomeSuccess},
		{name: "conflict", status: http.StatusConflict, body: `{}`, outcome: OutcomeInvalidName},
		{name: "already exists", status: http.StatusBadRequest, body: `{"code":"ALREADY_EXISTS"}`, outcome: OutcomeInvalidName},
		{
			name: "invalid name", status: http.StatusBadRequest,
			body:    `{"message":"bad","errors":[{"field":"name","message":"bad name"}]}`,
			outcome: OutcomeInvalidName,
		},
		{
			name: "invalid uri", status: http.StatusBadRequest,
			body:    `{"errors":[{"field":"scmConfig.uri","message":"unreachable"}]}`,
			outcome: OutcomeInvalidURI,
		},
		{
			name: "invalid credential", status: http.StatusUnprocessableEntity,
			body:    `{"errors":[{"field":"scmConfig.credentialId","message":"denied"}]}`,
			outcome: OutcomeInvalidCredential,
		},
		{name: "unknown field", status: http.StatusBadRequest, body: `{"errors":[{"field":"other"}]}`, outcome: OutcomeError},
		{name: "server error", status: http.StatusInternalServerError, body: `oops`, outcome: OutcomeError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got createBody

			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, http.MethodPost, r.Method)
				assert.Equal(t, "/blue/rest/organizations/acme/pipelines/", r.URL.Path)
				assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}), 0, nil)

			res := c.CreatePipeline(context.Background(), CreateRequest{
				RepositoryURL: "https://github.com/acme/app.git",
				PipelineName:  "app",
			})

			assert.Equal(t, tt.outcome, res.Outcome)
			assert.Equal(t, "app", got.Name)
			assert.Equal(t, "https://github.com/acme/app.git", got.ScmConfig.URI)
			assert.Nil(t, got.ScmConfig.CredentialID)

			if tt.outcome == OutcomeSuccess {
				require.NotNil(t, res.Pipeline)
				assert.Equal(t, Pipeline{ID: "42", Name: "app"}, *res.Pipeline)
				assert.NoError(t, res.Err)
			} else {
				assert.Nil(t, res.Pipeline)
				assert.Error(t, res.Err)
			}
		})
	}
}

func TestCreatePipelineTransportFailureIsErrorOutcome(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	server, err := httpapi.New(httpapi.Config{BaseURL: base})
	require.NoError(t, err)

	c, err := NewClient(ClientConfig{Server: server})
	require.NoError(t, err)

	res := c.CreatePipeline(context.Background(), CreateRequest{RepositoryURL: "x", PipelineName: "x"})
	assert.Equal(t, OutcomeError, res.Outcome)
	assert.True(t, apperror.IsNetworkError(res.Err))
}

func TestCacheExpiry(t *testing.T) {
	clk := clock.NewMock()
	cache := NewCache[string](time.Second, clk)

	cache.Set("a", "1")

	v, ok := cache.Get("a")
	assert.True(t, ok)
	assert.Equal(t, "1", v)

	clk.Add(time.Second)

	_, ok = cache.Get("a")
	assert.False(t, ok)

	hits, misses, evicted, size := cache.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
	assert.Equal(t, int64(1), evicted)
	assert.Zero(t, size)

	disabled := NewCache[string](0, clk)
	disabled.Set("a", "1")

	_, ok = disabled.Get("a")
	assert.False(t, ok)
}

func TestArchetypes(t *testing.T) {
	tags := make([]string, 0, 3)
	for _, a := range Archetypes() {
		tags = append(tags, a.Tag)
	}

	assert.Equal(t, []string{"nodejs", "java", ".net"}, tags)
	assert.Equal(t, "INVALID_CREDENTIAL", OutcomeInvalidCredential.String())
}
