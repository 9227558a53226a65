package httpapi

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cozystack/pipewiz/internal/pkg/apperror"
)

func TestNewValidatesBaseURL(t *testing.T) {
	tests := []struct {
		name    string
		baseURL string
	}{
		{"empty", ""},
		{"whitespace", "   "},
		{"no scheme", "example.com/api"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(Config{BaseURL: tt.baseURL})
			require.Error(t, err)
			assert.True(t, apperror.IsConfigurationError(err))
		})
	}
}

func TestResolveKeepsBasePath(t *testing.T) {
	c, err := New(Config{BaseURL: "https://ci.example.com/blue/rest"})
	require.NoError(t, err)

	assert.Equal(t, "https://ci.example.com/blue/rest/organizations/jenkins/pipelines/",
		c.Resolve("/organizations/jenkins/pipelines/", nil))
	assert.Equal(t, "https://ci.example.com/blue/rest/check?repoUrl=git%40host%3Arepo.git",
		c.Resolve("check", url.Values{"repoUrl": {"git@host:repo.git"}}))
	assert.Equal(t, "https://ci.example.com/blue/rest/pipelines/my%20app/",
		c.Resolve("pipelines/"+url.PathEscape("my app")+"/", nil))
	assert.Equal(t, "https://ci.example.com/blue/rest/pipelines/a%2Fb/",
		c.Resolve("pipelines/"+url.PathEscape("a/b")+"/", nil))
}

func TestDoSendsHeadersAndReturnsNon2xx(t *testing.T) {
	var gotRequestID, gotContentType, gotBody string

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequestID = r.Header.Get(RequestIDHeader)
		gotContentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)

		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"bad"}`))
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL, RateLimit: 10})
	require.NoError(t, err)

	resp, err := c.PostJSON(context.Background(), "pipelines/", []byte(`{"name":"x"}`))
	require.NoError(t, err)

	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.False(t, resp.OK())
	assert.JSONEq(t, `{"message":"bad"}`, string(resp.Body))
	assert.Equal(t, resp.RequestID, gotRequestID)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, "application/json", gotContentType)
	assert.Equal(t, `{"name":"x"}`, gotBody)
}

func TestDoTransportFailureIsNetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: base})
	require.NoError(t, err)

	_, err = c.Get(context.Background(), "anything", nil)
	require.Error(t, err)
	assert.True(t, apperror.IsNetworkError(err))
}

func TestPostFormEncodesBody(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "java", r.PostForm.Get("type"))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	c, err := New(Config{BaseURL: srv.URL})
	require.NoError(t, err)

	resp, err := c.PostForm(context.Background(), "AddJenkinsFile", url.Values{"type": {"java"}})
	require.NoError(t, err)
	assert.True(t, resp.OK())
}
