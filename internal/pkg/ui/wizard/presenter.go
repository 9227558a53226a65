package wizard

import (
	"context"
	"fmt"
	"reflect"
	"slices"
	"strings"

	"github.com/benbjohnson/clock"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/cozystack/pipewiz/internal/pkg/creation"
	"github.com/cozystack/pipewiz/internal/pkg/credentials"
	"github.com/cozystack/pipewiz/internal/pkg/flow"
)

// Machine is the part of the flow machine the views drive.
type Machine interface {
	Snapshot() flow.Snapshot
	Subscribe(fn func(flow.Snapshot)) func()
	Start(ctx context.Context) error
	CreatePipeline(repositoryURL string, credential credentials.Credential) error
	SaveRenamedPipeline(name string) error
	AddBuildFile(archetype string) error
	CheckPipelineNameAvailable(ctx context.Context, name string) (bool, error)
	Credentials() []credentials.Credential
	Disabled() bool
	Destroy()
}

// stepView is the widget of one rendered step.
type stepView struct {
	props  any
	box    *tview.Flex
	focus  tview.Primitive
	height int
	update func(flow.Snapshot)
	// sticky views keep their widgets, and what was typed into them, when
	// the props of their step change.
	sticky bool
}

// Presenter turns machine snapshots into tview widgets. Render must run on
// the tview event goroutine.
type Presenter struct {
	app     *tview.Application
	machine Machine
	t       flow.Translator
	logger  *zap.Logger
	ctx     context.Context //nolint:containedctx
	names   *nameChecker

	root         *tview.Flex
	steps        *tview.Flex
	placeholders *tview.TextView

	views     map[flow.StateID]*stepView
	order     []flow.StateID
	lastState flow.StateID
	rendered  bool
}

// NewPresenter creates the presenter and its root layout.
func NewPresenter(ctx context.Context, app *tview.Application, machine Machine, t flow.Translator, logger *zap.Logger) *Presenter {
	p := &Presenter{
		app:     app,
		machine: machine,
		t:       t,
		logger:  logger,
		ctx:     ctx,
		steps:   tview.NewFlex().SetDirection(tview.FlexRow),
		views:   map[flow.StateID]*stepView{},
	}

	p.names = newNameChecker(clock.New(), nameCheckDelay, machine.CheckPipelineNameAvailable)

	p.placeholders = tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true)

	p.root = tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(p.steps, 0, 1, true).
		AddItem(p.placeholders, 3, 0, false)

	p.root.SetBorder(true).SetTitle(" " + t("ui.title", nil) + " ").SetTitleAlign(tview.AlignLeft)

	return p
}

// Root is the primitive to install as the application root.
func (p *Presenter) Root() tview.Primitive {
	return p.root
}

// Order is the order of the step widgets currently laid out.
func (p *Presenter) Order() []flow.StateID {
	return slices.Clone(p.order)
}

// Render brings the widgets in line with snap.
func (p *Presenter) Render(snap flow.Snapshot) {
	ids := make([]flow.StateID, 0, len(snap.Steps))

	for _, step := range snap.Steps {
		ids = append(ids, step.StateID)

		if v, ok := p.views[step.StateID]; ok && (v.sticky || reflect.DeepEqual(v.props, step.Props)) {
			continue
		}

		p.views[step.StateID] = p.newView(step)
		p.order = nil
	}

	if !slices.Equal(ids, p.order) {
		p.steps.Clear()

		for _, id := range ids {
			v := p.views[id]
			p.steps.AddItem(v.box, v.height, 0, id == snap.StateID)
		}

		for id := range p.views {
			if !slices.Contains(ids, id) {
				delete(p.views, id)
			}
		}

		p.order = ids
	}

	for i, step := range snap.Steps {
		v := p.views[step.StateID]
		v.box.SetTitle(fmt.Sprintf(" %s %s ", StatusOf(snap, i).marker(), p.t(titleKeys[step.StateID], nil)))

		if v.update != nil {
			v.update(snap)
		}
	}

	p.placeholders.SetText(p.placeholderText(snap))

	if !p.rendered || p.lastState != snap.StateID {
		if v, ok := p.views[snap.StateID]; ok && v.focus != nil {
			p.app.SetFocus(v.focus)
		}
	}

	p.rendered = true
	p.lastState = snap.StateID
}

func (p *Presenter) placeholderText(snap flow.Snapshot) string {
	lines := slices.Clone(snap.Placeholders)

	if snap.StateID == flow.StateComplete && snap.Pipeline != nil {
		lines = append(lines, "[green]"+tview.Escape(p.t("ui.complete", map[string]any{
			"Name": snap.Pipeline.Name,
			"ID":   snap.Pipeline.ID,
		}))+"[-]")
	}

	return strings.Join(lines, "\n")
}

// submit runs a machine request off the event goroutine; the machine
// notifies the views of its effects.
func (p *Presenter) submit(name string, fn func() error) {
	if p.machine.Disabled() {
		return
	}

	go func() {
		if err := fn(); err != nil {
			p.logger.Debug("request not accepted", zap.String("request", name), zap.Error(err))
		}
	}()
}

func (p *Presenter) newView(step flow.Step) *stepView {
	var v *stepView

	switch props := step.Props.(type) {
	case flow.ConnectProps:
		v = p.connectView(props)
	case flow.RenameProps:
		v = p.renameView(props)
	case flow.AddBuildFileProps:
		v = p.buildFileView(props)
	case flow.CreatePipelineProps:
		v = p.createView(props)
	case flow.ErrorProps:
		v = p.errorView(props)
	default:
		v = p.loadingView()
	}

	v.props = step.Props
	v.box.SetBorder(true).SetTitleAlign(tview.AlignLeft)

	return v
}

func (p *Presenter) loadingView() *stepView {
	text := tview.NewTextView().SetText(p.t(flow.MsgLoadingCredentials, nil))

	return &stepView{
		box:    tview.NewFlex().AddItem(text, 0, 1, false),
		height: 3,
	}
}

func (p *Presenter) connectView(props flow.ConnectProps) *stepView {
	creds := p.machine.Credentials()
	labels := make([]string, 0, len(creds))

	for _, c := range creds {
		labels = append(labels, c.Label())
	}

	repositoryURL := props.RepositoryURL
	selected := 0

	var username, password string

	form := tview.NewForm().
		AddInputField(p.t("ui.repository", nil), repositoryURL, 60, nil, func(text string) {
			repositoryURL = text
		}).
		AddDropDown(p.t("ui.credential", nil), labels, 0, func(_ string, index int) {
			selected = index
		}).
		AddInputField(p.t("ui.username", nil), "", 30, nil, func(text string) {
			username = text
		}).
		AddPasswordField(p.t("ui.password", nil), "", 30, '*', func(text string) {
			password = text
		})

	form.AddButton(p.t(flow.MsgCreateButton, nil), func() {
		credential := creds[0]

		switch {
		case strings.TrimSpace(username) != "":
			credential = credentials.Credential{Username: strings.TrimSpace(username), Password: password}
		case selected > 0 && selected < len(creds):
			credential = creds[selected]
		}

		url := repositoryURL
		p.submit("create", func() error { return p.machine.CreatePipeline(url, credential) })
	})

	fieldErrors := tview.NewTextView().SetDynamicColors(true)

	box := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(form, 0, 1, true).
		AddItem(fieldErrors, 2, 0, false)

	return &stepView{
		box:    box,
		focus:  form,
		height: 15,
		sticky: true,
		update: func(snap flow.Snapshot) {
			var lines []string

			for _, e := range []string{snap.RepositoryError, snap.CredentialError} {
				if e != "" {
					lines = append(lines, "[red]"+tview.Escape(e)+"[-]")
				}
			}

			fieldErrors.SetText(strings.Join(lines, "\n"))
			form.GetButton(0).SetLabel(snap.CreateLabel)
		},
	}
}

func (p *Presenter) renameView(props flow.RenameProps) *stepView {
	name := props.Name
	hint := tview.NewTextView().SetDynamicColors(true)

	form := tview.NewForm().
		AddInputField(p.t("ui.name", nil), name, 40, nil, func(text string) {
			name = text
			p.checkName(text, hint)
		})

	form.AddButton(p.t("ui.save", nil), func() {
		newName := name
		p.submit("rename", func() error { return p.machine.SaveRenamedPipeline(newName) })
	})

	box := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(form, 0, 1, true).
		AddItem(hint, 1, 0, false)

	return &stepView{
		box:    box,
		focus:  form,
		height: 8,
	}
}

// checkName shows whether name is free once the field settled and the
// service answered.
func (p *Presenter) checkName(name string, hint *tview.TextView) {
	p.names.Changed(p.ctx, name, func(name string, available bool, err error) {
		var text string

		switch {
		case err != nil:
			p.logger.Debug("name check failed", zap.String("name", name), zap.Error(err))
		case strings.TrimSpace(name) == "":
		case available:
			text = "[green]" + tview.Escape(p.t("ui.name_available", map[string]any{"Name": name})) + "[-]"
		default:
			text = "[red]" + tview.Escape(p.t("ui.name_taken", map[string]any{"Name": name})) + "[-]"
		}

		p.app.QueueUpdateDraw(func() {
			if !p.names.Current(name) {
				return
			}

			hint.SetText(text)
		})
	})
}

func (p *Presenter) buildFileView(props flow.AddBuildFileProps) *stepView {
	labels := make([]string, 0, len(props.Archetypes))
	for _, a := range props.Archetypes {
		labels = append(labels, a.Label)
	}

	selected := 0

	form := tview.NewForm().
		AddDropDown(p.t("step.buildfile", nil), labels, 0, func(_ string, index int) {
			selected = index
		})

	form.AddButton(p.t("ui.add", nil), func() {
		if selected < 0 || selected >= len(props.Archetypes) {
			return
		}

		archetype := props.Archetypes[selected]
		p.submit("add build file", func() error { return p.machine.AddBuildFile(archetype.Tag) })
	})

	return &stepView{
		box:    tview.NewFlex().AddItem(form, 0, 1, true),
		focus:  form,
		height: 7,
	}
}

func (p *Presenter) createView(props flow.CreatePipelineProps) *stepView {
	text := tview.NewTextView().SetDynamicColors(true)

	return &stepView{
		box:    tview.NewFlex().AddItem(text, 0, 1, false),
		height: 3,
		update: func(snap flow.Snapshot) {
			if snap.StateID == flow.StateComplete && snap.Pipeline != nil {
				text.SetText("[green]" + tview.Escape(pipelineLabel(snap.Pipeline)) + "[-]")

				return
			}

			text.SetText(tview.Escape(p.t(flow.MsgCreating, map[string]any{"Name": props.PipelineName})))
		},
	}
}

func pipelineLabel(pl *creation.Pipeline) string {
	if pl.ID == "" {
		return pl.Name
	}

	return fmt.Sprintf("%s (%s)", pl.Name, pl.ID)
}

func (p *Presenter) errorView(props flow.ErrorProps) *stepView {
	text := tview.NewTextView().
		SetDynamicColors(true).
		SetWrap(true).
		SetText("[red]" + tview.Escape(props.Message) + "[-]")

	quit := tview.NewButton(p.t("ui.quit", nil)).SetSelectedFunc(func() {
		p.machine.Destroy()
		p.app.Stop()
	})

	box := tview.NewFlex().SetDirection(tview.FlexRow).
		AddItem(text, 0, 1, false).
		AddItem(quit, 1, 0, true)

	return &stepView{
		box:    box,
		focus:  quit,
		height: 6,
	}
}
