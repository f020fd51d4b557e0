// SPDX-License-Identifier: MIT

package forecast

import (
	"context"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/katalvlaran/basinflow/horizon"
)

// Provider supplies the exogenous inputs of one institution for one period.
type Provider interface {
	Forecast(ctx context.Context, inst string, idx horizon.Index) (Inputs, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context, inst string, idx horizon.Index) (Inputs, error)

// Forecast implements Provider.
func (f ProviderFunc) Forecast(ctx context.Context, inst string, idx horizon.Index) (Inputs, error) {
	return f(ctx, inst, idx)
}

// Static serves the same climatological inputs every year.
type Static struct {
	byInst map[string]Inputs
}

// NewStatic returns a provider over per-institution inputs.
func NewStatic(byInst map[string]Inputs) *Static {
	s := &Static{byInst: make(map[string]Inputs, len(byInst))}
	for k, v := range byInst {
		s.byInst[k] = v.Clone()
	}
	return s
}

// Forecast implements Provider. Unknown institutions yield ErrForecastMissing.
func (s *Static) Forecast(_ context.Context, inst string, _ horizon.Index) (Inputs, error) {
	in, ok := s.byInst[inst]
	if !ok {
		return Inputs{}, fmt.Errorf("%w: no static inputs for institution %q", ErrForecastMissing, inst)
	}
	return in.Clone(), nil
}

// staticFile is the on-disk layout read by LoadStatic:
//
//	institutions:
//	  jva:
//	    demand:
//	      city: [10, 10, 12, 14, 16, 18, 20, 20, 16, 12, 10, 10]
type staticFile struct {
	Institutions map[string]Inputs `yaml:"institutions"`
}

// LoadStatic decodes a YAML forecast table.
func LoadStatic(r io.Reader) (*Static, error) {
	var f staticFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("forecast: decode static table: %w", err)
	}
	return NewStatic(f.Institutions), nil
}

// LoadStaticFile opens path and calls LoadStatic.
func LoadStaticFile(path string) (*Static, error) {
	fh, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("forecast: %w", err)
	}
	defer fh.Close()

	return LoadStatic(fh)
}
