package credentials

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cozystack/pipewiz/internal/pkg/apperror"
	"github.com/cozystack/pipewiz/internal/pkg/httpapi"
)

// Client lists credentials from the credential store over HTTP.
type Client struct {
	http *httpapi.Client
}

// NewClient creates a credential store client on top of an HTTP client.
func NewClient(http *httpapi.Client) *Client {
	return &Client{http: http}
}

// ListCredentials implements API.
func (c *Client) ListCredentials(ctx context.Context) ([]Credential, error) {
	resp, err := c.http.Get(ctx, "credentials/", nil)
	if err != nil {
		return nil, err
	}

	if !resp.OK() {
		return nil, apperror.NewNetworkError("CRED_002", "credential store returned an error",
			fmt.Sprintf("status %d", resp.StatusCode))
	}

	var list []Credential
	if err := json.Unmarshal(resp.Body, &list); err != nil {
		return nil, apperror.NewNetworkErrorWithCause("CRED_003", "malformed credential list", "", err)
	}

	return list, nil
}
