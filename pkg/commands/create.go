// Copyright Cozystack Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
	"github.com/siderolabs/gen/xslices"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/term"

	"github.com/cozystack/pipewiz/internal/pkg/creation"
	"github.com/cozystack/pipewiz/internal/pkg/credentials"
	"github.com/cozystack/pipewiz/internal/pkg/flow"
)

var createCmdFlags struct {
	repositoryURL string
	credentialID  string
	username      string
	password      string
	name          string
	archetype     string
}

// headlessMachine is the part of the flow machine the create command drives.
type headlessMachine interface {
	Start(ctx context.Context) error
	Wait()
	Snapshot() flow.Snapshot
	Subscribe(fn func(flow.Snapshot)) func()
	CreatePipeline(repositoryURL string, credential credentials.Credential) error
	SaveRenamedPipeline(name string) error
	AddBuildFile(archetype string) error
}

// createCmd runs the wizard without a UI, answering its questions from flags.
var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a pipeline without the terminal UI",
	Long: `Connect a repository and create its pipeline non-interactively.

A name conflict is answered with --name and a missing Jenkinsfile with
--archetype; without them the command stops and explains what is missing.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if createCmdFlags.credentialID != "" && createCmdFlags.username != "" {
			return errors.New("--credential-id and --username are mutually exclusive")
		}

		if createCmdFlags.username != "" && createCmdFlags.password == "" && isatty.IsTerminal(os.Stdin.Fd()) {
			password, err := readPassword(cmd.ErrOrStderr(), fmt.Sprintf("Password for %s: ", createCmdFlags.username))
			if err != nil {
				return err
			}

			createCmdFlags.password = password
		}

		s, err := newSession("")
		if err != nil {
			return err
		}
		defer s.Close() //nolint:errcheck

		opts := createOptions{
			repositoryURL: createCmdFlags.repositoryURL,
			name:          createCmdFlags.name,
			archetype:     createCmdFlags.archetype,
			credential: func() (credentials.Credential, error) {
				return chooseCredential(s.Credentials, createCmdFlags.credentialID, createCmdFlags.username, createCmdFlags.password)
			},
		}

		pipeline, err := driveCreate(cmd.Context(), s.Machine, opts, newProgress(cmd.OutOrStdout()))
		if err != nil {
			s.Logger.Debug("pipeline creation stopped", zap.Error(err))

			return err
		}

		color.New(color.FgGreen, color.Bold).Fprintln(cmd.OutOrStdout(), s.T("ui.complete", map[string]any{ //nolint:errcheck
			"Name": pipeline.Name,
			"ID":   pipeline.ID,
		}))

		return nil
	},
}

type createOptions struct {
	repositoryURL string
	name          string
	archetype     string
	// credential is called once the credentials are loaded.
	credential func() (credentials.Credential, error)
}

// driveCreate runs the machine from start to a terminal state. Each step
// the machine stops at is answered once; a step reached again is an error.
func driveCreate(ctx context.Context, m headlessMachine, opts createOptions, p *progress) (*creation.Pipeline, error) {
	unsubscribe := m.Subscribe(p.show)
	defer unsubscribe()

	if err := m.Start(ctx); err != nil {
		return nil, err
	}

	m.Wait()

	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("pipeline creation interrupted: %w", err)
	}

	credential, err := opts.credential()
	if err != nil {
		return nil, err
	}

	if err = m.CreatePipeline(opts.repositoryURL, credential); err != nil {
		return nil, err
	}

	var renamed, injected bool

	for {
		m.Wait()

		if err = ctx.Err(); err != nil {
			return nil, fmt.Errorf("pipeline creation interrupted: %w", err)
		}

		snap := m.Snapshot()

		switch snap.StateID {
		case flow.StateComplete:
			return snap.Pipeline, nil
		case flow.StateError:
			if snap.Err != nil {
				return nil, fmt.Errorf("pipeline creation failed: %w", snap.Err)
			}

			return nil, errors.New("pipeline creation failed")
		case flow.StateConnect:
			return nil, connectError(snap)
		case flow.StateRename:
			if opts.name == "" || renamed {
				return nil, fmt.Errorf("a pipeline named %q already exists, choose another one with --name", snap.PipelineName)
			}

			renamed = true
			err = m.SaveRenamedPipeline(opts.name)
		case flow.StateAddBuildFile:
			if opts.archetype == "" {
				return nil, fmt.Errorf("the repository has no Jenkinsfile, add one with --archetype (%s)", archetypeTags())
			}

			if injected {
				return nil, fmt.Errorf("failed to add the Jenkinsfile: %s", strings.Join(snap.Placeholders, " "))
			}

			injected = true
			err = m.AddBuildFile(opts.archetype)
		default:
			return nil, fmt.Errorf("unexpected wizard state %s", snap.StateID)
		}

		if err != nil {
			return nil, err
		}
	}
}

func connectError(snap flow.Snapshot) error {
	problems := xslices.Filter([]string{snap.RepositoryError, snap.CredentialError}, func(s string) bool {
		return s != ""
	})

	if len(problems) == 0 {
		return errors.New("the pipeline service sent the wizard back to the connect step")
	}

	return errors.New(strings.Join(problems, " "))
}

func archetypeTags() string {
	return strings.Join(xslices.Map(creation.Archetypes(), func(a creation.Archetype) string {
		return a.Tag
	}), ", ")
}

// credentialLookup finds stored credentials by id.
type credentialLookup interface {
	Lookup(id string) (credentials.Credential, bool)
	None() credentials.Credential
}

// chooseCredential turns the credential flags into the credential submitted
// with the repository.
func chooseCredential(lookup credentialLookup, id, username, password string) (credentials.Credential, error) {
	switch {
	case id != "":
		c, ok := lookup.Lookup(id)
		if !ok {
			return credentials.Credential{}, fmt.Errorf("credential %q not found, see `pipewiz credentials list`", id)
		}

		return c, nil
	case username != "":
		return credentials.Credential{Username: username, Password: password}, nil
	default:
		return lookup.None(), nil
	}
}

func readPassword(w io.Writer, prompt string) (string, error) {
	fmt.Fprint(w, prompt) //nolint:errcheck

	password, err := term.ReadPassword(int(os.Stdin.Fd()))

	fmt.Fprintln(w) //nolint:errcheck

	if err != nil {
		return "", fmt.Errorf("failed to read password: %w", err)
	}

	return string(password), nil
}

// progress prints placeholder messages as the machine changes them.
type progress struct {
	mu   sync.Mutex
	out  io.Writer
	last string
}

func newProgress(out io.Writer) *progress {
	return &progress{out: out}
}

func (p *progress) show(snap flow.Snapshot) {
	text := strings.Join(snap.Placeholders, "\n")

	p.mu.Lock()
	defer p.mu.Unlock()

	if text == "" || text == p.last {
		return
	}

	p.last = text

	c := color.New(color.FgCyan)
	if snap.StateID == flow.StateError {
		c = color.New(color.FgRed)
	}

	c.Fprintln(p.out, text) //nolint:errcheck
}

func init() {
	createCmd.Flags().StringVar(&createCmdFlags.repositoryURL, "repo", "", "URL of the Git repository")
	createCmd.Flags().StringVar(&createCmdFlags.credentialID, "credential-id", "", "id of a stored credential")
	createCmd.Flags().StringVar(&createCmdFlags.username, "username", "", "username of an inline credential")
	createCmd.Flags().StringVar(&createCmdFlags.password, "password", "", "password of an inline credential (prompted for when omitted on a terminal)")
	createCmd.Flags().StringVar(&createCmdFlags.name, "name", "", "pipeline name to use if the derived one is taken")
	createCmd.Flags().StringVar(&createCmdFlags.archetype, "archetype", "", "Jenkinsfile template to add if the repository has none ("+archetypeTags()+")")
	_ = createCmd.MarkFlagRequired("repo") //nolint:errcheck
	addCommand(createCmd)
}
