// SPDX-License-Identifier: MIT

package forecast_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/basinflow/forecast"
	"github.com/katalvlaran/basinflow/horizon"
)

func TestBoardVersionsIncrease(t *testing.T) {
	b := forecast.NewBoard()
	_, err := b.Latest("jva", "delivery")
	require.ErrorIs(t, err, forecast.ErrForecastMissing)

	vals := forecast.Series{}
	vals.Set("canal", 5, 40)
	s1 := b.Publish("jva", "delivery", horizon.Date{Year: 2020, Month: 4}, vals)
	vals.Set("canal", 5, 99) // caller mutation must not leak into the board
	s2 := b.Publish("jva", "delivery", horizon.Date{Year: 2020, Month: 5}, forecast.Series{})
	require.Equal(t, 1, s1.Version)
	require.Equal(t, 2, s2.Version)
	require.InDelta(t, 40.0, s1.Values.At("canal", 5), 0)

	latest, err := b.Latest("jva", "delivery")
	require.NoError(t, err)
	require.Equal(t, 2, latest.Version)
	require.Equal(t, []string{"delivery"}, b.Names("jva"))
	require.Empty(t, b.Names("waj"))
}

func TestResolveBinding(t *testing.T) {
	b := forecast.NewBoard()
	vals := forecast.Series{}
	for m := 1; m <= 12; m++ {
		vals.Set("kac_out", m, float64(m))
	}
	b.Publish("jva", "delivery", horizon.Date{Year: 2020, Month: 1}, vals)

	in := forecast.NewInputs()
	in.Inflow.Set("kac_out", 3, 100)
	bind := forecast.Binding{Producer: "jva", Name: "delivery", Into: forecast.SeriesInflow, Nodes: []string{"kac_out"}}
	require.NoError(t, b.Resolve("waj", bind, []int{3, 4}, &in))
	require.InDelta(t, 103.0, in.Inflow.At("kac_out", 3), 0)
	require.InDelta(t, 4.0, in.Inflow.At("kac_out", 4), 0)
	require.Zero(t, in.Inflow.At("kac_out", 5))

	bind.Nodes = []string{"nowhere"}
	err := b.Resolve("waj", bind, []int{3}, &in)
	require.ErrorIs(t, err, forecast.ErrForecastMissing)
	require.ErrorContains(t, err, "nowhere")

	bind.Name = "ghost"
	err = b.Resolve("waj", bind, []int{3}, &in)
	require.ErrorIs(t, err, forecast.ErrForecastMissing)
	require.ErrorContains(t, err, "jva/ghost")
}

func TestResolveBindingMap(t *testing.T) {
	b := forecast.NewBoard()
	vals := forecast.Series{}
	vals.Set("l7", 6, 25)
	b.Publish("mwi", "transfer", horizon.Date{Year: 2020, Month: 6}, vals)

	in := forecast.NewInputs()
	bind := forecast.Binding{
		Producer: "mwi", Name: "transfer", Into: forecast.SeriesInflow,
		Nodes: []string{"l7"}, Map: map[string]string{"l7": "intake"},
	}
	require.NoError(t, b.Resolve("waj", bind, []int{6}, &in))
	require.InDelta(t, 25.0, in.Inflow.At("intake", 6), 0)
	require.Zero(t, in.Inflow.At("l7", 6))
}

const table = `
institutions:
  jva:
    demand:
      farms: [1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12]
    inflow:
      kt_dam: [50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50, 50]
`

func TestLoadStatic(t *testing.T) {
	p, err := forecast.LoadStatic(strings.NewReader(table))
	require.NoError(t, err)

	idx, err := horizon.New(horizon.Date{Year: 2021, Month: 6}, 2020)
	require.NoError(t, err)
	in, err := p.Forecast(context.Background(), "jva", idx)
	require.NoError(t, err)
	require.InDelta(t, 6.0, in.Demand.At("farms", 6), 0)
	require.InDelta(t, 50.0, in.Inflow.At("kt_dam", 12), 0)
	require.Zero(t, in.ExogOut.At("farms", 1))

	in.Demand.Set("farms", 6, 0)
	again, err := p.Forecast(context.Background(), "jva", idx)
	require.NoError(t, err)
	require.InDelta(t, 6.0, again.Demand.At("farms", 6), 0, "providers hand out copies")

	_, err = p.Forecast(context.Background(), "waj", idx)
	require.ErrorIs(t, err, forecast.ErrForecastMissing)

	_, err = forecast.LoadStatic(strings.NewReader("institutions:\n  jva:\n    demand:\n      farms: [1, 2]\n"))
	require.Error(t, err)
}

func TestSeriesKindRoundTrip(t *testing.T) {
	for _, k := range []forecast.SeriesKind{forecast.SeriesDemand, forecast.SeriesExogOut} {
		got, err := forecast.ParseSeriesKind(k.String())
		require.NoError(t, err)
		require.Equal(t, k, got)
	}
	_, err := forecast.ParseSeriesKind("rain")
	require.ErrorIs(t, err, forecast.ErrUnknownSeries)
}
