// Package creation is the boundary towards the remote pipeline service: name
// availability, build file detection and injection, and pipeline creation.
package creation

import (
	"context"
	"fmt"
)

// Outcome is the result of a pipeline creation request.
type Outcome int

// Outcomes reported by CreatePipeline. OutcomeNone means no attempt was made.
const (
	OutcomeNone Outcome = iota
	OutcomeSuccess
	OutcomeInvalidName
	OutcomeInvalidURI
	OutcomeInvalidCredential
	OutcomeError
)

func (o Outcome) String() string {
	switch o {
	case OutcomeNone:
		return "NONE"
	case OutcomeSuccess:
		return "SUCCESS"
	case OutcomeInvalidName:
		return "INVALID_NAME"
	case OutcomeInvalidURI:
		return "INVALID_URI"
	case OutcomeInvalidCredential:
		return "INVALID_CREDENTIAL"
	case OutcomeError:
		return "ERROR"
	default:
		return fmt.Sprintf("Outcome(%d)", int(o))
	}
}

// Pipeline identifies a created pipeline.
type Pipeline struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// BuildFileStatus reports whether a repository already carries a build file.
type BuildFileStatus struct {
	Exists bool
	Detail string
}

// InjectRequest asks the remediation service to push a build file.
type InjectRequest struct {
	RepositoryURL string
	// CredentialID is nil when no stored credential is used.
	CredentialID *string
	Username     string
	Password     string
	Archetype    string
}

// InjectResult is the reported result of a build file injection.
type InjectResult struct {
	Success bool
	Branch  string
	Detail  string
}

// CreateRequest asks for a new pipeline.
type CreateRequest struct {
	RepositoryURL string
	// CredentialID is nil when no credential is attached.
	CredentialID *string
	PipelineName string
}

// CreateResult is the structured result of a creation request. Err carries
// the detail of OutcomeError and of rejected input.
type CreateResult struct {
	Outcome  Outcome
	Pipeline *Pipeline
	Err      error
}

// API is the remote pipeline service.
//
// Expected failure modes of CreatePipeline are reported through the outcome,
// never as a Go error. The other operations return an error only when the
// service could not be asked at all.
type API interface {
	CheckPipelineNameAvailable(ctx context.Context, name string) (bool, error)
	CheckBuildFileExists(ctx context.Context, repositoryURL string) (BuildFileStatus, error)
	InjectBuildFile(ctx context.Context, req InjectRequest) (InjectResult, error)
	CreatePipeline(ctx context.Context, req CreateRequest) CreateResult
}

// Archetype is a build file template the remediation service can inject.
type Archetype struct {
	Tag   string
	Label string
}

// Archetypes returns the build file templates offered by the remediation step.
func Archetypes() []Archetype {
	return []Archetype{
		{Tag: "nodejs", Label: "NodeJs"},
		{Tag: "java", Label: "Java"},
		{Tag: ".net", Label: ".Net"},
	}
}
