// SPDX-License-Identifier: MIT

package horizon_test

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/katalvlaran/basinflow/horizon"
)

func TestNewPartitionsYear(t *testing.T) {
	for m := 1; m <= 12; m++ {
		ix, err := horizon.New(horizon.Date{Year: 2001, Month: m}, 2000)
		require.NoError(t, err)
		all := append(append([]int{}, ix.Remaining...), ix.Past...)
		sort.Ints(all)
		require.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, all, "month %d", m)
		require.Equal(t, m, ix.Anchor())
	}
}

func TestDecemberHorizon(t *testing.T) {
	ix, err := horizon.New(horizon.Date{Year: 2003, Month: 12}, 2000)
	require.NoError(t, err)
	require.Equal(t, []int{12}, ix.Remaining)
	require.Len(t, ix.Past, 11)
	require.Equal(t, 12, ix.Last())
}

func TestFirstYearHasNoPast(t *testing.T) {
	ix, err := horizon.New(horizon.Date{Year: 2000, Month: 7}, 2000)
	require.NoError(t, err)
	require.True(t, ix.FirstYear)
	require.Empty(t, ix.Past)
	require.Equal(t, []int{7, 8, 9, 10, 11, 12}, ix.Remaining)
	require.False(t, ix.IsPast(3))

	off, ok := ix.Offset(9)
	require.True(t, ok)
	require.Equal(t, 2, off)
	_, ok = ix.Offset(2)
	require.False(t, ok)
}

func TestNewRejectsBadInput(t *testing.T) {
	_, err := horizon.New(horizon.Date{Year: 2000, Month: 13}, 2000)
	require.ErrorIs(t, err, horizon.ErrBadMonth)
	_, err = horizon.New(horizon.Date{Year: 1999, Month: 1}, 2000)
	require.ErrorIs(t, err, horizon.ErrBeforeStart)
}

func TestDateArithmetic(t *testing.T) {
	d := horizon.Date{Year: 2000, Month: 12}
	require.Equal(t, horizon.Date{Year: 2001, Month: 1}, d.Next())
	require.True(t, d.Before(d.Next()))
	require.Equal(t, 13, horizon.Date{Year: 2001, Month: 12}.MonthsSince(horizon.Date{Year: 2000, Month: 11}))
	require.Equal(t, "2000-12", d.String())
}
