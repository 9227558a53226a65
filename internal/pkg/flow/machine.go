// Package flow drives the pipeline creation wizard: it owns the current
// state, the rendered steps and the asynchronous calls that move between
// them.
package flow

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/siderolabs/go-pointer"
	"go.uber.org/zap"

	"github.com/cozystack/pipewiz/internal/pkg/apperror"
	"github.com/cozystack/pipewiz/internal/pkg/creation"
	"github.com/cozystack/pipewiz/internal/pkg/credentials"
)

// Errors returned when the machine cannot take a request.
var (
	ErrDestroyed    = apperror.NewStateError("FLOW_010", "flow has been destroyed", "")
	ErrBusy         = apperror.NewStateError("FLOW_011", "a request is already in flight", "")
	ErrNotAccepting = apperror.NewStateError("FLOW_012", "request not accepted in the current state", "")
)

// Snapshot is a consistent copy of the machine state handed to views.
type Snapshot struct {
	StateID      StateID
	Outcome      creation.Outcome
	Steps        []Step
	Placeholders []string

	RepositoryURL      string
	RepositoryError    string
	CredentialError    string
	SelectedCredential credentials.Credential
	PipelineName       string
	Pipeline           *creation.Pipeline

	// Busy is set while a request of the current step is in flight; views
	// disable their inputs while it is set.
	Busy bool
	// CreateLabel is the label of the connect step's submit button.
	CreateLabel string
	// Err is the detail of the last failure.
	Err error
}

// Machine is the wizard flow state machine. It is safe for concurrent use;
// subscribers are notified outside of its lock.
type Machine struct {
	api       creation.API
	creds     CredentialSource
	opts      Options
	scheduler *Scheduler

	mu           sync.Mutex
	ctx          context.Context //nolint:containedctx
	cancel       context.CancelFunc
	started      bool
	destroyed    bool
	busy         bool
	state        StateID
	registry     *Registry
	outcome      creation.Outcome
	placeholders []string
	repoURL      string
	repoErr      string
	credErr      string
	selected     credentials.Credential
	pipelineName string
	pipeline     *creation.Pipeline
	lastErr      error
	subscribers  map[int]func(Snapshot)
	nextSub      int

	wg sync.WaitGroup
}

// New creates a machine in LOADING_CREDENTIALS. Call Start to load the
// credentials.
func New(api creation.API, creds CredentialSource, opts Options) *Machine {
	opts.setDefaults()

	m := &Machine{
		api:         api,
		creds:       creds,
		opts:        opts,
		scheduler:   NewScheduler(opts.Clock),
		state:       StateLoadingCredentials,
		registry:    NewRegistry(),
		selected:    creds.None(),
		subscribers: map[int]func(Snapshot){},
	}

	m.registry.Render(Step{StateID: StateLoadingCredentials, Props: LoadingProps{}})
	m.placeholders = []string{m.t(MsgLoadingCredentials, nil)}

	return m
}

func (m *Machine) t(key string, data map[string]any) string {
	return m.opts.Translate(key, data)
}

// Start loads the credentials and then shows the connect step. ctx bounds
// the lifetime of the machine: once it is done the machine is destroyed.
func (m *Machine) Start(ctx context.Context) error {
	m.mu.Lock()

	if m.destroyed {
		m.mu.Unlock()

		return ErrDestroyed
	}

	if m.started {
		m.mu.Unlock()

		return ErrNotAccepting
	}

	m.started = true
	m.ctx, m.cancel = context.WithCancel(ctx)
	m.busy = true
	m.mu.Unlock()

	context.AfterFunc(m.ctx, m.Destroy)

	m.goAsync(func(ctx context.Context) {
		_, err := AtLeast(ctx, m.opts.Clock, m.opts.MinDelay, m.creds.ListAllCredentials)
		if ctx.Err() != nil {
			return
		}

		m.update(func() {
			m.busy = false
			m.registry.Remove(StateLoadingCredentials)
			m.registry.Render(Step{StateID: StateConnect, Props: ConnectProps{}})
			m.transition(StateConnect)

			if err != nil {
				m.opts.Logger.Warn("failed to list credentials", zap.Error(err))
				m.lastErr = err
				m.placeholders = []string{m.t(MsgCredentialsFailed, map[string]any{"Error": err.Error()})}

				return
			}

			m.placeholders = []string{m.t(MsgConnectCompleted, nil)}
		})
	})

	return nil
}

// CreatePipeline validates the connect step input and starts the creation.
// An empty URL sets the repository field error and issues no request.
func (m *Machine) CreatePipeline(repositoryURL string, credential credentials.Credential) error {
	m.mu.Lock()

	if err := m.acceptLocked(StateConnect, StateRename); err != nil {
		m.mu.Unlock()

		return err
	}

	if err := ValidateRepositoryURL(repositoryURL); err != nil {
		m.repoErr = m.t(MsgRepositoryRequired, nil)
		m.unlockAndNotify()

		return err
	}

	m.repoURL = strings.TrimSpace(repositoryURL)
	m.repoErr = ""
	m.credErr = ""
	m.selected = credential
	m.pipelineName = DeriveName(m.repoURL)
	m.busy = true

	// A new submission from connect starts over after it.
	m.registry.RemoveAfter(StateConnect, false)
	m.registry.Render(Step{StateID: StateConnect, Props: ConnectProps{RepositoryURL: m.repoURL}})
	m.unlockAndNotify()

	m.goAsync(func(ctx context.Context) {
		status, err := m.api.CheckBuildFileExists(ctx, m.repositoryURL())
		if err != nil {
			m.update(func() { m.failLocked(err) })

			return
		}

		if !status.Exists {
			m.update(func() {
				m.busy = false
				m.registry.Render(Step{
					StateID: StateAddBuildFile,
					Props: AddBuildFileProps{
						RepositoryURL: m.repoURL,
						Archetypes:    slices.Clone(m.opts.Archetypes),
					},
					After: pointer.To(StateConnect),
				})
				m.transition(StateAddBuildFile)
				m.placeholders = []string{m.t(MsgBuildFileMissing, nil)}
			})

			return
		}

		m.createAfter(ctx, StateConnect)
	})

	return nil
}

// SaveRenamedPipeline resubmits the creation with a corrected name.
func (m *Machine) SaveRenamedPipeline(name string) error {
	m.mu.Lock()

	if err := m.acceptLocked(StateRename); err != nil {
		m.mu.Unlock()

		return err
	}

	name = strings.TrimSpace(name)
	if name == "" {
		m.placeholders = []string{m.t(MsgNameRequired, nil)}
		m.unlockAndNotify()

		return apperror.NewValidationError("FLOW_002", "pipeline name is required", "")
	}

	m.pipelineName = name
	m.busy = true
	m.registry.Render(Step{StateID: StateRename, Props: RenameProps{Name: name}})
	m.unlockAndNotify()

	m.goAsync(func(ctx context.Context) {
		m.createAfter(ctx, m.anchor())
	})

	return nil
}

// AddBuildFile asks the remediation service to push a build file of the
// given archetype. A reported failure keeps the step for another attempt.
func (m *Machine) AddBuildFile(archetype string) error {
	m.mu.Lock()

	if err := m.acceptLocked(StateAddBuildFile); err != nil {
		m.mu.Unlock()

		return err
	}

	if !slices.ContainsFunc(m.opts.Archetypes, func(a creation.Archetype) bool { return a.Tag == archetype }) {
		m.mu.Unlock()

		return apperror.NewValidationError("FLOW_003", "unknown build file archetype", archetype)
	}

	id, _ := ResolveCredentialID(m.selected, m.repoURL, m.creds.SystemSSHCredential())
	req := creation.InjectRequest{
		RepositoryURL: m.repoURL,
		CredentialID:  id,
		Username:      m.selected.Username,
		Password:      m.selected.Password,
		Archetype:     archetype,
	}

	m.busy = true
	m.placeholders = []string{m.t(MsgBuildFileAdding, nil)}
	m.unlockAndNotify()

	m.goAsync(func(ctx context.Context) {
		res, err := m.api.InjectBuildFile(ctx, req)
		if err != nil {
			m.update(func() { m.failLocked(err) })

			return
		}

		if !res.Success {
			m.update(func() {
				m.busy = false
				m.placeholders = []string{m.t(MsgBuildFileFailed, map[string]any{"Detail": res.Detail})}
			})

			return
		}

		m.update(func() {
			m.placeholders = []string{m.t(MsgBuildFileAdded, map[string]any{"Branch": res.Branch})}
		})

		m.scheduler.Schedule(m.opts.SettleDelay, func() {
			m.createAfter(ctx, StateAddBuildFile)
		})
	})

	return nil
}

// CheckPipelineNameAvailable asks whether name is free. An empty name is
// never available and is not sent.
func (m *Machine) CheckPipelineNameAvailable(ctx context.Context, name string) (bool, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return false, nil
	}

	return m.api.CheckPipelineNameAvailable(ctx, name)
}

// createAfter renders the creation step after anchor and issues the
// creation request. It runs on an async goroutine.
func (m *Machine) createAfter(ctx context.Context, anchor StateID) {
	var req creation.CreateRequest

	ok := m.update(func() {
		m.busy = true
		m.registry.RemoveAfter(anchor, false)
		m.registry.Render(Step{
			StateID: StateCreatePipeline,
			Props:   CreatePipelineProps{PipelineName: m.pipelineName},
			After:   pointer.To(anchor),
		})
		m.transition(StateCreatePipeline)
		m.placeholders = []string{m.t(MsgCreating, map[string]any{"Name": m.pipelineName})}

		req = creation.CreateRequest{
			RepositoryURL: m.repoURL,
			CredentialID:  m.resolveCredentialLocked(),
			PipelineName:  m.pipelineName,
		}
	})
	if !ok {
		return
	}

	floor := WaitAtLeast(m.opts.Clock, m.opts.SaveDelay)

	res := m.api.CreatePipeline(ctx, req)

	if floor.Wait(ctx) != nil {
		return
	}

	m.update(func() { m.applyOutcomeLocked(res) })
}

func (m *Machine) resolveCredentialLocked() *string {
	id, missingSSH := ResolveCredentialID(m.selected, m.repoURL, m.creds.SystemSSHCredential())
	if missingSSH {
		m.opts.Logger.Warn("no system SSH credential available, creating pipeline without credential",
			zap.String("repository", m.repoURL))
	}

	return id
}

func (m *Machine) applyOutcomeLocked(res creation.CreateResult) {
	m.outcome = res.Outcome
	m.busy = false
	m.lastErr = res.Err

	m.opts.Logger.Info("pipeline creation finished",
		zap.Stringer("outcome", res.Outcome), zap.String("name", m.pipelineName))

	switch res.Outcome {
	case creation.OutcomeSuccess:
		m.pipeline = res.Pipeline
		m.transition(StateComplete)
		m.placeholders = nil
	case creation.OutcomeInvalidName:
		m.registry.RemoveAfter(StateConnect, false)
		m.registry.Render(Step{
			StateID: StateRename,
			Props:   RenameProps{Name: m.pipelineName},
			After:   pointer.To(StateConnect),
		})
		m.transition(StateRename)
		m.placeholders = []string{m.t(MsgRenameCompleted, map[string]any{"Name": m.pipelineName})}
	case creation.OutcomeInvalidURI:
		m.registry.RemoveAfter(StateConnect, false)
		m.transition(StateConnect)
		m.repoErr = m.t(MsgRepositoryInvalid, nil)
		m.placeholders = nil
	case creation.OutcomeInvalidCredential:
		m.registry.RemoveAfter(StateConnect, false)
		m.transition(StateConnect)
		m.credErr = m.t(MsgCredentialInvalid, nil)
		m.placeholders = nil
	default:
		m.failLocked(res.Err)
	}
}

// failLocked shows the terminal error step after connect.
func (m *Machine) failLocked(err error) {
	if err == nil {
		err = apperror.NewStateError("FLOW_004", "pipeline creation failed without detail", "")
	}

	m.opts.Logger.Error("pipeline flow failed", zap.Error(err))

	m.busy = false
	m.lastErr = err
	m.registry.RemoveAfter(StateConnect, false)
	m.registry.Render(Step{
		StateID: StateError,
		Props: ErrorProps{
			Message: m.t(MsgUnexpectedError, map[string]any{"Error": err.Error()}),
			Err:     err,
		},
		After: pointer.To(StateConnect),
	})
	m.transition(StateError)
	m.placeholders = nil
}

func (m *Machine) transition(to StateID) {
	if m.state == to {
		return
	}

	if !isAllowed(m.state, to) {
		m.opts.Logger.Error("invalid transition", zap.Stringer("from", m.state), zap.Stringer("to", to))

		return
	}

	m.opts.Logger.Debug("transition", zap.Stringer("from", m.state), zap.Stringer("to", to))
	m.state = to
}

// acceptLocked checks that a user request may run in the current state.
func (m *Machine) acceptLocked(states ...StateID) error {
	switch {
	case m.destroyed:
		return ErrDestroyed
	case !m.started:
		return ErrNotAccepting
	case m.busy:
		return ErrBusy
	case !slices.Contains(states, m.state):
		return ErrNotAccepting
	}

	return nil
}

// anchor is the step creation follows: rename when shown, else connect.
func (m *Machine) anchor() StateID {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.registry.Has(StateRename) {
		return StateRename
	}

	return StateConnect
}

func (m *Machine) repositoryURL() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.repoURL
}

// goAsync runs fn on a tracked goroutine unless the machine is gone.
func (m *Machine) goAsync(fn func(ctx context.Context)) bool {
	m.mu.Lock()

	if m.destroyed || m.ctx == nil {
		m.mu.Unlock()

		return false
	}

	ctx := m.ctx
	m.wg.Add(1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()

		fn(ctx)
	}()

	return true
}

// update applies fn under the lock and notifies subscribers. It reports
// false without calling fn once the machine is destroyed.
func (m *Machine) update(fn func()) bool {
	m.mu.Lock()

	if m.destroyed {
		m.mu.Unlock()

		return false
	}

	fn()
	m.unlockAndNotify()

	return true
}

func (m *Machine) unlockAndNotify() {
	snap := m.snapshotLocked()

	subs := make([]func(Snapshot), 0, len(m.subscribers))
	for id := 0; id < m.nextSub; id++ {
		if fn, ok := m.subscribers[id]; ok {
			subs = append(subs, fn)
		}
	}

	m.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (m *Machine) snapshotLocked() Snapshot {
	label := m.t(MsgCreateButton, nil)
	if m.busy {
		label = m.t(MsgCreateButtonBusy, nil)
	}

	return Snapshot{
		StateID:            m.state,
		Outcome:            m.outcome,
		Steps:              m.registry.Steps(),
		Placeholders:       slices.Clone(m.placeholders),
		RepositoryURL:      m.repoURL,
		RepositoryError:    m.repoErr,
		CredentialError:    m.credErr,
		SelectedCredential: m.selected,
		PipelineName:       m.pipelineName,
		Pipeline:           m.pipeline,
		Busy:               m.busy,
		CreateLabel:        label,
		Err:                m.lastErr,
	}
}

// Subscribe registers fn for every state change. fn runs on the goroutine
// that changed the state and must not block.
func (m *Machine) Subscribe(fn func(Snapshot)) (unsubscribe func()) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.nextSub
	m.nextSub++
	m.subscribers[id] = fn

	return func() {
		m.mu.Lock()
		defer m.mu.Unlock()

		delete(m.subscribers, id)
	}
}

// Snapshot returns the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.snapshotLocked()
}

// State returns the current state id.
func (m *Machine) State() StateID {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.state
}

// Pipeline returns the created pipeline, if any.
func (m *Machine) Pipeline() *creation.Pipeline {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.pipeline
}

// Destroyed reports whether the machine was torn down, by Destroy or by the
// end of the context given to Start.
func (m *Machine) Destroyed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.destroyed
}

// Disabled reports whether views must not submit requests.
func (m *Machine) Disabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.busy || m.destroyed
}

// Credentials lists the selectable credentials, the "none" option first.
func (m *Machine) Credentials() []credentials.Credential {
	return m.creds.Credentials()
}

// NoCredentialOption is the "none" credential.
func (m *Machine) NoCredentialOption() credentials.Credential {
	return m.creds.None()
}

// Archetypes lists the build file templates offered by remediation.
func (m *Machine) Archetypes() []creation.Archetype {
	return slices.Clone(m.opts.Archetypes)
}

// Wait blocks until no asynchronous work of the machine is running and no
// scheduled callback is due.
func (m *Machine) Wait() {
	m.wg.Wait()
	m.scheduler.Wait()
}

// Destroy stops the machine. Pending work is cancelled and completions that
// arrive later are dropped.
func (m *Machine) Destroy() {
	m.mu.Lock()

	if m.destroyed {
		m.mu.Unlock()

		return
	}

	m.destroyed = true
	m.busy = false

	if m.cancel != nil {
		m.cancel()
	}

	clear(m.subscribers)
	m.mu.Unlock()

	m.scheduler.Stop()

	m.opts.Logger.Debug("flow destroyed")
}
