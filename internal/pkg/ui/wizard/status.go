package wizard

import (
	"github.com/cozystack/pipewiz/internal/pkg/flow"
)

// StepStatus is the indicator shown next to a step title.
type StepStatus int

const (
	StatusIncomplete StepStatus = iota
	StatusActive
	StatusComplete
	StatusError
)

func (s StepStatus) String() string {
	return [...]string{
		"incomplete",
		"active",
		"complete",
		"error",
	}[s]
}

// marker is the colored glyph of a status, in tview color tags.
func (s StepStatus) marker() string {
	return [...]string{
		"[gray]○[-]",
		"[yellow]●[-]",
		"[green]✔[-]",
		"[red]✘[-]",
	}[s]
}

// StatusOf computes the indicator of the i-th step of snap. Steps before the
// current one are complete, steps after it incomplete.
func StatusOf(snap flow.Snapshot, i int) StepStatus {
	step := snap.Steps[i]

	switch snap.StateID {
	case flow.StateComplete:
		return StatusComplete
	case flow.StateError:
		if step.StateID == flow.StateError {
			return StatusError
		}

		return StatusComplete
	}

	current := -1

	for j, s := range snap.Steps {
		if s.StateID == snap.StateID {
			current = j

			break
		}
	}

	switch {
	case current < 0:
		return StatusIncomplete
	case i < current:
		return StatusComplete
	case i == current:
		return StatusActive
	default:
		return StatusIncomplete
	}
}

// titleKeys maps every state with a step to the message key of its title.
var titleKeys = map[flow.StateID]string{
	flow.StateLoadingCredentials: "step.loading",
	flow.StateConnect:            "step.connect",
	flow.StateRename:             "step.rename",
	flow.StateAddBuildFile:       "step.buildfile",
	flow.StateCreatePipeline:     "step.create",
	flow.StateError:              "step.error",
}
