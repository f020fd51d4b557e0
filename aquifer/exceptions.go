// SPDX-License-Identifier: MIT

package aquifer

import "fmt"

// ExceptionKind selects how a named source's pumping is redirected before it
// enters the convolution.
type ExceptionKind uint8

const (
	// ExceptionBaseline pins the source at its baseline (zero deviation).
	ExceptionBaseline ExceptionKind = iota
	// ExceptionScale uses Factor × own pumping.
	ExceptionScale
	// ExceptionTransfer uses own pumping + Factor × pumping of From.
	ExceptionTransfer
)

// String implements fmt.Stringer.
func (k ExceptionKind) String() string {
	switch k {
	case ExceptionBaseline:
		return "baseline"
	case ExceptionScale:
		return "scale"
	case ExceptionTransfer:
		return "transfer"
	default:
		return "unknown"
	}
}

// PumpingException is one row of the redirection table.
type PumpingException struct {
	Source string
	Kind   ExceptionKind
	Factor float64
	From   string
}

// ExceptionTable is an ordered, auditable list of named pumping redirections.
type ExceptionTable []PumpingException

// DefaultExceptions returns the redirections used by the Jordan basin model:
//
//   - 210401_ag_02: Mukheibeh wells held at baseline.
//   - 130104_urb_01: Azraq urban layer 1 keeps 75% of its pumping.
//   - 130104_urb_02: Azraq urban layer 2 receives the other 25% of layer 1.
//   - 330103_ag_01: Ma'an held at baseline (governmental irrigation pumping).
func DefaultExceptions() ExceptionTable {
	return ExceptionTable{
		{Source: "210401_ag_02", Kind: ExceptionBaseline},
		{Source: "130104_urb_01", Kind: ExceptionScale, Factor: 0.75},
		{Source: "130104_urb_02", Kind: ExceptionTransfer, Factor: 0.25, From: "130104_urb_01"},
		{Source: "330103_ag_01", Kind: ExceptionBaseline},
	}
}

// Lookup returns the exception for source, if any.
func (t ExceptionTable) Lookup(source string) (PumpingException, bool) {
	for _, e := range t {
		if e.Source == source {
			return e, true
		}
	}
	return PumpingException{}, false
}

// Apply returns the effective pumping per source. names, pumping and baseline
// are aligned by source index. Transfers read the raw (pre-exception) pumping
// of From; a missing From source is an error.
func (t ExceptionTable) Apply(names []string, pumping, baseline []float64) ([]float64, error) {
	if len(names) != len(pumping) || len(pumping) != len(baseline) {
		return nil, fmt.Errorf("aquifer: exceptions: %d names, %d pumping, %d baseline: %w",
			len(names), len(pumping), len(baseline), ErrDimensionMismatch)
	}
	pos := make(map[string]int, len(names))
	for i, n := range names {
		pos[n] = i
	}

	out := make([]float64, len(pumping))
	copy(out, pumping)
	for _, e := range t {
		i, ok := pos[e.Source]
		if !ok {
			continue
		}
		switch e.Kind {
		case ExceptionBaseline:
			out[i] = baseline[i]
		case ExceptionScale:
			out[i] = e.Factor * pumping[i]
		case ExceptionTransfer:
			j, ok := pos[e.From]
			if !ok {
				return nil, fmt.Errorf("aquifer: exception %q transfers from unknown source %q", e.Source, e.From)
			}
			out[i] = pumping[i] + e.Factor*pumping[j]
		}
	}

	return out, nil
}
