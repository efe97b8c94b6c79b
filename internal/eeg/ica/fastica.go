package ica

import (
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"

	"gonum.org/v1/gonum/mat"
)

// ErrNonConvergence indicates the FastICA iteration did not settle within the
// configured iteration cap. The caller may retry with relaxed parameters; the
// pipeline itself never retries.
var ErrNonConvergence = errors.New("decomposition failed to converge")

// decomposition holds the fitted model: S = W*K*(X - mean), X̂ = A*S + mean.
type decomposition struct {
	// sources is k x T, one unit-variance source per row.
	sources *mat.Dense
	// unmixing is k x n: sources = unmixing * centred data.
	unmixing *mat.Dense
	// mixing is n x k, the pseudo-inverse of unmixing.
	mixing *mat.Dense
	// means holds the per-channel offsets removed before whitening.
	means []float64
}

// fastICA runs a symmetric FastICA with a tanh contrast function on the
// channel-major matrix x (n channels, T samples). numComponents is clamped to
// n. The random seed drives the orthonormal initialisation; fixed seed and
// input give a bit-identical decomposition.
func fastICA(x [][]float64, numComponents int, seed int64, maxIter int, tol float64) (*decomposition, error) {
	n := len(x)
	if n == 0 {
		return nil, fmt.Errorf("%w: no channels", ErrNonConvergence)
	}
	t := len(x[0])
	k := numComponents
	if k <= 0 || k > n {
		k = n
	}

	// centre
	centred := mat.NewDense(n, t, nil)
	means := make([]float64, n)
	for i := 0; i < n; i++ {
		var m float64
		for _, v := range x[i] {
			m += v
		}
		m /= float64(t)
		means[i] = m
		for j, v := range x[i] {
			centred.Set(i, j, v-m)
		}
	}

	// whiten: K = D^{-1/2} E^T from the covariance eigendecomposition
	whitener, dewhitener, err := whiten(centred, k)
	if err != nil {
		return nil, err
	}
	var z mat.Dense
	z.Mul(whitener, centred) // k x T

	// orthonormal random start
	rng := rand.New(rand.NewSource(seed))
	w := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			w.Set(i, j, rng.NormFloat64())
		}
	}
	w, err = symmetricOrth(w)
	if err != nil {
		return nil, err
	}

	converged := false
	for iter := 0; iter < maxIter; iter++ {
		next, err := fastICAStep(w, &z, t)
		if err != nil {
			return nil, err
		}
		delta := convergenceDelta(next, w)
		w = next
		if delta < tol {
			converged = true
			break
		}
	}
	if !converged {
		return nil, fmt.Errorf("%w after %d iterations (tol %g)", ErrNonConvergence, maxIter, tol)
	}

	var sources mat.Dense
	sources.Mul(w, &z) // k x T

	var unmixing mat.Dense
	unmixing.Mul(w, whitener) // k x n

	// mixing = E_k D_k^{1/2} W^T, the exact pseudo-inverse under whitening
	var mixing mat.Dense
	mixing.Mul(dewhitener, w.T()) // n x k

	d := &decomposition{
		sources:  &sources,
		unmixing: &unmixing,
		mixing:   &mixing,
		means:    means,
	}
	d.canonicalise()
	return d, nil
}

// fastICAStep performs one symmetric update: W+ = E[g(WZ)Z^T] - diag(E[g'])W,
// re-orthonormalised.
func fastICAStep(w *mat.Dense, z *mat.Dense, t int) (*mat.Dense, error) {
	k, _ := w.Dims()

	var wz mat.Dense
	wz.Mul(w, z) // k x T

	g := mat.NewDense(k, t, nil)
	gPrimeMean := make([]float64, k)
	for i := 0; i < k; i++ {
		var acc float64
		for j := 0; j < t; j++ {
			th := math.Tanh(wz.At(i, j))
			g.Set(i, j, th)
			acc += 1 - th*th
		}
		gPrimeMean[i] = acc / float64(t)
	}

	var update mat.Dense
	update.Mul(g, z.T()) // k x k
	update.Scale(1/float64(t), &update)

	next := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			next.Set(i, j, update.At(i, j)-gPrimeMean[i]*w.At(i, j))
		}
	}
	return symmetricOrth(next)
}

// convergenceDelta measures how far the new unmixing rows have rotated.
// Symmetric decorrelation leaves row order and sign free to flip between
// iterations, so each new row is matched against the closest previous row:
// delta = max_i (1 - max_j |<next_i, prev_j>|). Rows are orthonormal, so a
// delta near zero means next equals prev up to permutation and sign.
func convergenceDelta(next, prev *mat.Dense) float64 {
	k, _ := next.Dims()
	maxDelta := 0.0
	for i := 0; i < k; i++ {
		best := 0.0
		for j := 0; j < k; j++ {
			if dot := math.Abs(mat.Dot(next.RowView(i), prev.RowView(j))); dot > best {
				best = dot
			}
		}
		if d := 1 - best; d > maxDelta {
			maxDelta = d
		}
	}
	return maxDelta
}

// whiten returns K (k x n) projecting centred data onto k unit-variance
// principal directions, and its pseudo-inverse (n x k).
func whiten(centred *mat.Dense, k int) (*mat.Dense, *mat.Dense, error) {
	n, t := centred.Dims()
	if t < 2 {
		return nil, nil, fmt.Errorf("%w: %d samples cannot estimate covariance", ErrNonConvergence, t)
	}

	cov := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			dot := mat.Dot(centred.RowView(i), centred.RowView(j))
			cov.SetSym(i, j, dot/float64(t-1))
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(cov, true) {
		return nil, nil, fmt.Errorf("%w: covariance eigendecomposition failed", ErrNonConvergence)
	}
	vals := eig.Values(nil) // ascending
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	whitener := mat.NewDense(k, n, nil)
	dewhitener := mat.NewDense(n, k, nil)
	for r := 0; r < k; r++ {
		idx := n - 1 - r // largest eigenvalues first
		d := vals[idx]
		if d < 1e-12 {
			return nil, nil, fmt.Errorf("%w: rank-deficient data (eigenvalue %g)", ErrNonConvergence, d)
		}
		scale := 1 / math.Sqrt(d)
		for c := 0; c < n; c++ {
			whitener.Set(r, c, vecs.At(c, idx)*scale)
			dewhitener.Set(c, r, vecs.At(c, idx)*math.Sqrt(d))
		}
	}
	return whitener, dewhitener, nil
}

// symmetricOrth decorrelates W via (W W^T)^{-1/2} W.
func symmetricOrth(w *mat.Dense) (*mat.Dense, error) {
	k, _ := w.Dims()
	wwt := mat.NewSymDense(k, nil)
	for i := 0; i < k; i++ {
		for j := i; j < k; j++ {
			wwt.SetSym(i, j, mat.Dot(w.RowView(i), w.RowView(j)))
		}
	}

	var eig mat.EigenSym
	if !eig.Factorize(wwt, true) {
		return nil, fmt.Errorf("%w: decorrelation eigendecomposition failed", ErrNonConvergence)
	}
	vals := eig.Values(nil)
	var vecs mat.Dense
	eig.VectorsTo(&vecs)

	invSqrt := mat.NewDense(k, k, nil)
	for i := 0; i < k; i++ {
		for j := 0; j < k; j++ {
			var acc float64
			for m := 0; m < k; m++ {
				d := vals[m]
				if d < 1e-12 {
					return nil, fmt.Errorf("%w: degenerate unmixing estimate", ErrNonConvergence)
				}
				acc += vecs.At(i, m) * vecs.At(j, m) / math.Sqrt(d)
			}
			invSqrt.Set(i, j, acc)
		}
	}

	var out mat.Dense
	out.Mul(invSqrt, w)
	return &out, nil
}

// canonicalise fixes the two ambiguities of ICA so output is reproducible:
// each component's dominant mixing weight is made positive, and components
// are ordered by descending mixing-vector norm (explained variance).
func (d *decomposition) canonicalise() {
	n, k := d.mixing.Dims()
	_, t := d.sources.Dims()

	norms := make([]float64, k)
	for c := 0; c < k; c++ {
		// sign: dominant mixing entry positive
		maxAbs, maxVal := 0.0, 0.0
		for r := 0; r < n; r++ {
			v := d.mixing.At(r, c)
			norms[c] += v * v
			if a := math.Abs(v); a > maxAbs {
				maxAbs, maxVal = a, v
			}
		}
		if maxVal < 0 {
			for r := 0; r < n; r++ {
				d.mixing.Set(r, c, -d.mixing.At(r, c))
			}
			for j := 0; j < t; j++ {
				d.sources.Set(c, j, -d.sources.At(c, j))
			}
			for j := 0; j < n; j++ {
				d.unmixing.Set(c, j, -d.unmixing.At(c, j))
			}
		}
	}

	order := make([]int, k)
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool { return norms[order[a]] > norms[order[b]] })

	d.sources = reorderRows(d.sources, order)
	d.unmixing = reorderRows(d.unmixing, order)
	d.mixing = reorderCols(d.mixing, order)
}

func reorderRows(m *mat.Dense, order []int) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for i, src := range order {
		for j := 0; j < c; j++ {
			out.Set(i, j, m.At(src, j))
		}
	}
	return out
}

func reorderCols(m *mat.Dense, order []int) *mat.Dense {
	r, c := m.Dims()
	out := mat.NewDense(r, c, nil)
	for j, src := range order {
		for i := 0; i < r; i++ {
			out.Set(i, j, m.At(i, src))
		}
	}
	return out
}
