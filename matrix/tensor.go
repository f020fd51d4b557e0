// SPDX-License-Identifier: MIT

// Package matrix - Tensor3: dense 3-D storage in the same row-major layout as Dense.
//
// Layout: element (i, j, k) lives at (i*d1 + j)*d2 + k, so the innermost axis
// (k) is contiguous. The aquifer engine stores unit_response[location][source][lag]
// here and reads lag windows with Fiber.

package matrix

import "fmt"

// Tensor3 is a dense d0×d1×d2 array of float64.
type Tensor3 struct {
	d0, d1, d2 int
	data       []float64
}

func tensorErrorf(method string, i, j, k int, err error) error {
	return fmt.Errorf("Tensor3.%s(%d,%d,%d): %w", method, i, j, k, err)
}

// NewTensor3 allocates a zero tensor.
func NewTensor3(d0, d1, d2 int) (*Tensor3, error) {
	if d0 <= 0 || d1 <= 0 || d2 <= 0 {
		return nil, ErrBadShape
	}

	return &Tensor3{d0: d0, d1: d1, d2: d2, data: make([]float64, d0*d1*d2)}, nil
}

// Dims returns the three extents.
func (t *Tensor3) Dims() (int, int, int) { return t.d0, t.d1, t.d2 }

func (t *Tensor3) indexOf(method string, i, j, k int) (int, error) {
	if i < 0 || i >= t.d0 || j < 0 || j >= t.d1 || k < 0 || k >= t.d2 {
		return 0, tensorErrorf(method, i, j, k, ErrOutOfRange)
	}

	return (i*t.d1+j)*t.d2 + k, nil
}

// At returns element (i, j, k).
func (t *Tensor3) At(i, j, k int) (float64, error) {
	idx, err := t.indexOf(ctxAt, i, j, k)
	if err != nil {
		return 0, err
	}

	return t.data[idx], nil
}

// Set assigns element (i, j, k).
func (t *Tensor3) Set(i, j, k int, v float64) error {
	idx, err := t.indexOf(ctxSet, i, j, k)
	if err != nil {
		return err
	}
	t.data[idx] = v

	return nil
}

// Fiber returns the read-only window t[i][j][0:n] without copying.
// Callers must not modify the returned slice.
func (t *Tensor3) Fiber(i, j, n int) ([]float64, error) {
	if n < 0 || n > t.d2 {
		return nil, tensorErrorf("Fiber", i, j, n, ErrOutOfRange)
	}
	idx, err := t.indexOf("Fiber", i, j, 0)
	if err != nil {
		return nil, err
	}

	return t.data[idx : idx+n : idx+n], nil
}
