package flow

import (
	"fmt"
	"slices"
)

// StateID identifies a step of the flow. The order of the constants is the
// default rendering order of steps.
type StateID int

const (
	StateLoadingCredentials StateID = iota
	StateConnect
	StateRename
	StateAddBuildFile
	StateCreatePipeline
	StateComplete
	StateError
)

func (s StateID) String() string {
	names := [...]string{
		"LOADING_CREDENTIALS",
		"STEP_CONNECT",
		"STEP_RENAME",
		"ADD_BUILD_FILE",
		"CREATE_PIPELINE",
		"COMPLETE",
		"ERROR",
	}

	if s < 0 || int(s) >= len(names) {
		return fmt.Sprintf("StateID(%d)", int(s))
	}

	return names[s]
}

// Terminal reports whether no transition leaves the state.
func (s StateID) Terminal() bool {
	return len(allowedTransitions[s]) == 0
}

var allowedTransitions = map[StateID][]StateID{
	StateLoadingCredentials: {
		StateConnect,
	},
	StateConnect: {
		StateCreatePipeline,
		StateAddBuildFile,
		StateError,
	},
	StateRename: {
		StateCreatePipeline,
		StateAddBuildFile,
		StateError,
	},
	StateAddBuildFile: {
		StateCreatePipeline,
		StateError,
	},
	StateCreatePipeline: {
		StateComplete,
		StateRename,
		StateConnect, // rejected input
		StateError,
	},
}

func isAllowed(from, to StateID) bool {
	return slices.Contains(allowedTransitions[from], to)
}
