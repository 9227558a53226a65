package flow

import (
	"strings"

	"github.com/siderolabs/go-pointer"

	"github.com/cozystack/pipewiz/internal/pkg/apperror"
	"github.com/cozystack/pipewiz/internal/pkg/credentials"
)

// DeriveName proposes a pipeline name from a repository URL: the last path
// segment, cut at its first dot.
//
//	https://example.com/org/my-repo.git -> my-repo
//	git@github.com:org/app.git          -> app
func DeriveName(repositoryURL string) string {
	s := strings.TrimRight(strings.TrimSpace(repositoryURL), "/")

	if i := strings.LastIndexAny(s, "/:"); i >= 0 {
		s = s[i+1:]
	}

	name, _, _ := strings.Cut(s, ".")

	return name
}

// IsHTTPURL reports whether the repository is reached over HTTP(S).
func IsHTTPURL(repositoryURL string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(repositoryURL)), "http")
}

// ValidateRepositoryURL checks the connect step input.
func ValidateRepositoryURL(repositoryURL string) error {
	if strings.TrimSpace(repositoryURL) == "" {
		return apperror.NewValidationError("FLOW_001", "repository URL is required", "")
	}

	return nil
}

// ResolveCredentialID picks the credential id sent with a creation request.
//
// The sentinel on a non-HTTP repository falls back to the system SSH
// credential; fallback reports whether that fallback was wanted but
// unavailable. A stored credential yields its id; inline credentials and
// the sentinel otherwise yield nil.
func ResolveCredentialID(selected credentials.Credential, repositoryURL string, systemSSH *credentials.Credential) (id *string, missingSSH bool) {
	if selected.IsNone() {
		if IsHTTPURL(repositoryURL) {
			return nil, false
		}

		if systemSSH == nil || systemSSH.ID == "" {
			return nil, true
		}

		return pointer.To(systemSSH.ID), false
	}

	if selected.IsInline() {
		return nil, false
	}

	return pointer.To(selected.ID), false
}
