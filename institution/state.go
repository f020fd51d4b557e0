// SPDX-License-Identifier: MIT

package institution

import "fmt"

// State is the per-period allocation state.
type State int

const (
	StateIdle State = iota
	StateForecastRefreshed
	StateModelBuilt
	StateSolved
	StateExtracted
	StateSkipped
)

var stateNames = [...]string{
	StateIdle:              "idle",
	StateForecastRefreshed: "forecast_refreshed",
	StateModelBuilt:        "model_built",
	StateSolved:            "solved",
	StateExtracted:         "extracted",
	StateSkipped:           "skipped",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return fmt.Sprintf("State(%d)", int(s))
	}
	return stateNames[s]
}

// Terminal reports whether s ends a period.
func (s State) Terminal() bool { return s == StateExtracted || s == StateSkipped }
