// SPDX-License-Identifier: MIT

package flow

import "sort"

// prepare validates endpoints and returns a clone with every capacity
// ≤ eps dropped. Reverse entries are created lazily during augmentation.
func prepare(caps Capacities, source, sink string, opts FlowOptions) (Capacities, error) {
	if err := opts.Ctx.Err(); err != nil {
		return nil, err
	}
	if !caps.HasVertex(source) {
		return nil, ErrSourceNotFound
	}
	if !caps.HasVertex(sink) {
		return nil, ErrSinkNotFound
	}
	res := caps.Clone()
	for u, inner := range res {
		for v, c := range inner {
			if c < -opts.Epsilon {
				return nil, EdgeError{From: u, To: v, Cap: c}
			}
			if c <= opts.Epsilon {
				delete(inner, v)
			}
		}
	}
	return res, nil
}

// augment moves x units along u→v in the residual.
func augment(res Capacities, u, v string, x float64) {
	res[u][v] -= x
	res[v][u] += x
}

// sortedNeighbors lists v with res[u][v] > eps in ID order, so augmenting
// paths (and floating-point sums) are reproducible.
func sortedNeighbors(res Capacities, u string, eps float64) []string {
	var out []string
	for v, c := range res[u] {
		if c > eps {
			out = append(out, v)
		}
	}
	sort.Strings(out)
	return out
}
