// Package wizard is the terminal UI of the pipeline creation flow.
package wizard

import (
	"context"
	"fmt"

	"github.com/gdamore/tcell/v2"
	"github.com/rivo/tview"
	"go.uber.org/zap"

	"github.com/cozystack/pipewiz/internal/pkg/flow"
)

// Wizard runs the flow machine inside a tview application.
type Wizard struct {
	app       *tview.Application
	machine   Machine
	translate flow.Translator
	logger    *zap.Logger
}

// New creates a wizard for machine.
func New(machine Machine, translate flow.Translator, logger *zap.Logger) *Wizard {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Wizard{
		app:       tview.NewApplication(),
		machine:   machine,
		translate: translate,
		logger:    logger,
	}
}

// Run shows the wizard until the user quits. The machine is destroyed on
// return.
func (w *Wizard) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	presenter := NewPresenter(ctx, w.app, w.machine, w.translate, w.logger)
	defer presenter.names.Stop()

	presenter.Render(w.machine.Snapshot())

	unsubscribe := w.machine.Subscribe(func(snap flow.Snapshot) {
		if snap.StateID.Terminal() {
			w.logger.Info("flow finished", zap.Stringer("state", snap.StateID), zap.Stringer("outcome", snap.Outcome))
		}

		w.app.QueueUpdateDraw(func() {
			presenter.Render(snap)
		})
	})
	defer unsubscribe()
	defer w.machine.Destroy()

	w.setupInputCapture()

	go func() {
		<-ctx.Done()
		w.app.Stop()
	}()

	if err := w.machine.Start(ctx); err != nil {
		return fmt.Errorf("failed to start the flow: %w", err)
	}

	w.logger.Info("wizard started")

	if err := w.app.SetRoot(presenter.Root(), true).EnableMouse(true).Run(); err != nil {
		return fmt.Errorf("failed to run the terminal UI: %w", err)
	}

	w.logger.Info("wizard stopped", zap.Stringer("state", w.machine.Snapshot().StateID))

	return nil
}

// setupInputCapture tears the flow down on Ctrl+C.
func (w *Wizard) setupInputCapture() {
	w.app.SetInputCapture(func(event *tcell.EventKey) *tcell.EventKey {
		if event.Key() == tcell.KeyCtrlC {
			w.machine.Destroy()
			w.app.Stop()

			return nil
		}

		return event
	})
}
