package fl

import "math"

// Model holds named parameter tensors as flat float64 vectors.
type Model map[string][]float64

// Clone returns a deep copy of the model.
func (m Model) Clone() Model {
	out := make(Model, len(m))
	for name, v := range m {
		cp := make([]float64, len(v))
		copy(cp, v)
		out[name] = cp
	}

	return out
}

// L2Delta returns the L2 norm of the element-wise difference between two
// models: sqrt of the summed squared per-tensor norms. Tensors present in
// only one of the models contribute their full norm.
func L2Delta(prev, next Model) float64 {
	var total float64
	seen := make(map[string]bool, len(next))

	for name, nv := range next {
		seen[name] = true
		pv := prev[name]
		var sq float64
		for i, x := range nv {
			d := x
			if i < len(pv) {
				d -= pv[i]
			}
			sq += d * d
		}
		total += sq
	}
	for name, pv := range prev {
		if seen[name] {
			continue
		}
		var sq float64
		for _, x := range pv {
			sq += x * x
		}
		total += sq
	}

	return math.Sqrt(total)
}
