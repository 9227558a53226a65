package flow

import (
	"github.com/cozystack/pipewiz/internal/pkg/creation"
)

// Props carried by the steps the machine renders.
type (
	LoadingProps struct{}

	ConnectProps struct {
		RepositoryURL string
	}

	RenameProps struct {
		Name string
	}

	AddBuildFileProps struct {
		RepositoryURL string
		Archetypes    []creation.Archetype
	}

	CreatePipelineProps struct {
		PipelineName string
	}

	ErrorProps struct {
		Message string
		Err     error
	}
)

// Message keys handed to the translator.
const (
	MsgLoadingCredentials = "loading.credentials"
	MsgConnectCompleted   = "connect.completed"
	MsgCredentialsFailed  = "connect.credentials_failed"
	MsgRepositoryRequired = "connect.repository_required"
	MsgRepositoryInvalid  = "connect.repository_invalid"
	MsgCredentialInvalid  = "connect.credential_invalid"
	MsgCreateButton       = "connect.create"
	MsgCreateButtonBusy   = "connect.creating"
	MsgRenameCompleted    = "rename.completed"
	MsgNameRequired       = "rename.name_required"
	MsgBuildFileMissing   = "buildfile.missing"
	MsgBuildFileAdding    = "buildfile.adding"
	MsgBuildFileAdded     = "buildfile.added"
	MsgBuildFileFailed    = "buildfile.failed"
	MsgCreating           = "create.creating"
	MsgUnexpectedError    = "error.unexpected"
	MsgNoCredentialOption = "credentials.none"
)
