package creation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/siderolabs/go-pointer"
	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/cozystack/pipewiz/internal/pkg/apperror"
	"github.com/cozystack/pipewiz/internal/pkg/httpapi"
)

// DefaultOrganization is used when no organization is configured.
const DefaultOrganization = "jenkins"

// Field names reported by the pipeline service when it rejects input.
const (
	fieldName         = "name"
	fieldURI          = "scmConfig.uri"
	fieldCredentialID = "scmConfig.credentialId"
)

// ClientConfig configures the HTTP facade.
type ClientConfig struct {
	// Server serves the pipeline and credential endpoints.
	Server *httpapi.Client
	// Remediation serves build file detection and injection. Defaults to Server.
	Remediation *httpapi.Client

	Organization string
	CacheTTL     time.Duration
	Clock        clock.Clock
	Logger       *zap.Logger
}

// Client implements API over HTTP/JSON.
type Client struct {
	server       *httpapi.Client
	remediation  *httpapi.Client
	organization string
	names        *Cache[bool]
	logger       *zap.Logger
}

var _ API = (*Client)(nil)

// NewClient creates the HTTP facade.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Server == nil {
		return nil, apperror.NewConfigurationError("API_001", "pipeline server client is required", "")
	}

	remediation := cfg.Remediation
	if remediation == nil {
		remediation = cfg.Server
	}

	org := strings.TrimSpace(cfg.Organization)
	if org == "" {
		org = DefaultOrganization
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		server:       cfg.Server,
		remediation:  remediation,
		organization: org,
		names:        NewCache[bool](cfg.CacheTTL, cfg.Clock),
		logger:       logger,
	}, nil
}

func (c *Client) pipelinesPath() string {
	return "organizations/" + url.PathEscape(c.organization) + "/pipelines/"
}

// CheckPipelineNameAvailable implements API.
func (c *Client) CheckPipelineNameAvailable(ctx context.Context, name string) (bool, error) {
	if available, ok := c.names.Get(name); ok {
		return available, nil
	}

	resp, err := c.server.Get(ctx, c.pipelinesPath()+url.PathEscape(name)+"/", nil)
	if err != nil {
		return false, err
	}

	var available bool

	switch {
	case resp.StatusCode == http.StatusNotFound:
		available = true
	case resp.OK():
		available = false
	default:
		return false, apperror.NewNetworkError("API_002", "name check failed", fmt.Sprintf("status %d", resp.StatusCode))
	}

	c.names.Set(name, available)

	hits, misses, evicted, size := c.names.Stats()
	c.logger.Debug("pipeline name checked",
		zap.String("name", name),
		zap.Bool("available", available),
		zap.Int64("cache_hits", hits),
		zap.Int64("cache_misses", misses),
		zap.Int64("cache_evicted", evicted),
		zap.Int("cache_size", size))

	return available, nil
}

// CheckBuildFileExists implements API.
func (c *Client) CheckBuildFileExists(ctx context.Context, repositoryURL string) (BuildFileStatus, error) {
	resp, err := c.remediation.Get(ctx, "checkJenkinsFile", url.Values{"repoUrl": {repositoryURL}})
	if err != nil {
		return BuildFileStatus{}, err
	}

	if !resp.OK() {
		return BuildFileStatus{}, apperror.NewNetworkError("API_003", "build file check failed",
			fmt.Sprintf("status %d: %s", resp.StatusCode, message(resp.Body)))
	}

	status := gjson.GetBytes(resp.Body, "fileStatus")
	if !status.Exists() {
		return BuildFileStatus{}, apperror.NewNetworkError("API_004", "malformed build file check response", string(resp.Body))
	}

	return BuildFileStatus{
		Exists: status.Bool(),
		Detail: message(resp.Body),
	}, nil
}

// InjectBuildFile implements API. A response that is not a success is a
// reported failure, not an error.
func (c *Client) InjectBuildFile(ctx context.Context, req InjectRequest) (InjectResult, error) {
	form := url.Values{
		"repoUrl":  {req.RepositoryURL},
		"username": {req.Username},
		"pass":     {req.Password},
		"type":     {req.Archetype},
	}

	if id := pointer.SafeDeref(req.CredentialID); id != "" {
		form.Set("credentialId", id)
	}

	resp, err := c.remediation.PostForm(ctx, "AddJenkinsFile", form)
	if err != nil {
		return InjectResult{}, err
	}

	status := gjson.GetBytes(resp.Body, "status").String()
	if !resp.OK() || !strings.EqualFold(status, "success") {
		detail := message(resp.Body)
		if detail == "" {
			detail = fmt.Sprintf("status %d", resp.StatusCode)
		}

		c.logger.Info("build file injection reported failure",
			zap.String("repository", req.RepositoryURL), zap.String("detail", detail))

		return InjectResult{Success: false, Detail: detail}, nil
	}

	return InjectResult{
		Success: true,
		Branch:  gjson.GetBytes(resp.Body, "branch").String(),
	}, nil
}

type scmConfig struct {
	URI          string  `json:"uri"`
	CredentialID *string `json:"credentialId,omitempty"`
}

type createBody struct {
	Name      string    `json:"name"`
	ScmConfig scmConfig `json:"scmConfig"`
}

// CreatePipeline implements API.
func (c *Client) CreatePipeline(ctx context.Context, req CreateRequest) CreateResult {
	body, err := json.Marshal(createBody{
		Name: req.PipelineName,
		ScmConfig: scmConfig{
			URI:          req.RepositoryURL,
			CredentialID: req.CredentialID,
		},
	})
	if err != nil {
		return CreateResult{
			Outcome: OutcomeError,
			Err:     apperror.NewInternalErrorWithCause("API_005", "failed to encode request", "", err),
		}
	}

	resp, err := c.server.PostJSON(ctx, c.pipelinesPath(), body)
	if err != nil {
		return CreateResult{Outcome: OutcomeError, Err: err}
	}

	if resp.OK() {
		var p Pipeline
		if err := json.Unmarshal(resp.Body, &p); err != nil || p.Name == "" {
			p.Name = req.PipelineName
		}

		c.names.Set(req.PipelineName, false)

		return CreateResult{Outcome: OutcomeSuccess, Pipeline: &p}
	}

	outcome := classify(resp)
	detail := message(resp.Body)

	if detail == "" {
		detail = fmt.Sprintf("status %d", resp.StatusCode)
	}

	if outcome == OutcomeInvalidName {
		c.names.Set(req.PipelineName, false)
	}

	return CreateResult{
		Outcome: outcome,
		Err:     apperror.NewNetworkError("API_006", "pipeline creation rejected", detail),
	}
}

// classify maps a rejected creation response onto an outcome.
func classify(resp *httpapi.Response) Outcome {
	if resp.StatusCode == http.StatusConflict {
		return OutcomeInvalidName
	}

	if gjson.GetBytes(resp.Body, "code").String() == "ALREADY_EXISTS" {
		return OutcomeInvalidName
	}

	if resp.StatusCode < 400 || resp.StatusCode >= 500 {
		return OutcomeError
	}

	for _, field := range gjson.GetBytes(resp.Body, "errors.#.field").Array() {
		switch field.String() {
		case fieldName:
			return OutcomeInvalidName
		case fieldURI:
			return OutcomeInvalidURI
		case fieldCredentialID:
			return OutcomeInvalidCredential
		}
	}

	return OutcomeError
}

func message(body []byte) string {
	if m := gjson.GetBytes(body, "message"); m.Exists() {
		return m.String()
	}

	return gjson.GetBytes(body, "errors.0.message").String()
}
