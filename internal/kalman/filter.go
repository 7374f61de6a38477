// Package kalman implements a discrete linear Kalman filter on top of
// gonum dense matrices.
//
// The filter is deliberately model-agnostic: callers supply the state
// transition F, observation model H, process noise Q, measurement noise R
// and initial covariance P0. Motion-model specifics (constant velocity,
// box parameterisation) live with the caller.
package kalman

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"
)

var (
	// ErrDimension is returned when a matrix or vector has the wrong shape.
	ErrDimension = errors.New("kalman: dimension mismatch")
	// ErrSingularInnovation is returned when the innovation covariance
	// S = H P Hᵀ + R cannot be inverted. The filter state is left untouched.
	ErrSingularInnovation = errors.New("kalman: singular innovation covariance")
)

// Filter holds the state estimate x (n), covariance P (n×n) and the fixed
// model matrices. Dimensions never change after construction.
type Filter struct {
	n, m int

	x *mat.VecDense
	p *mat.Dense

	f *mat.Dense // state transition (n×n)
	h *mat.Dense // observation model (m×n)
	q *mat.Dense // process noise (n×n)
	r *mat.Dense // measurement noise (m×m)

	identity *mat.Dense
}

// NewFilter builds a filter with zero initial state. All matrices are copied.
func NewFilter(f, h, q, r, p0 mat.Matrix) (*Filter, error) {
	n, nc := f.Dims()
	if n == 0 || n != nc {
		return nil, fmt.Errorf("%w: F is %dx%d, want square", ErrDimension, n, nc)
	}
	m, hc := h.Dims()
	if m == 0 || hc != n {
		return nil, fmt.Errorf("%w: H is %dx%d, want mx%d", ErrDimension, m, hc, n)
	}
	if qr, qc := q.Dims(); qr != n || qc != n {
		return nil, fmt.Errorf("%w: Q is %dx%d, want %dx%d", ErrDimension, qr, qc, n, n)
	}
	if rr, rc := r.Dims(); rr != m || rc != m {
		return nil, fmt.Errorf("%w: R is %dx%d, want %dx%d", ErrDimension, rr, rc, m, m)
	}
	if pr, pc := p0.Dims(); pr != n || pc != n {
		return nil, fmt.Errorf("%w: P0 is %dx%d, want %dx%d", ErrDimension, pr, pc, n, n)
	}

	identity := mat.NewDense(n, n, nil)
	for i := 0; i < n; i++ {
		identity.Set(i, i, 1)
	}

	return &Filter{
		n:        n,
		m:        m,
		x:        mat.NewVecDense(n, nil),
		p:        mat.DenseCopyOf(p0),
		f:        mat.DenseCopyOf(f),
		h:        mat.DenseCopyOf(h),
		q:        mat.DenseCopyOf(q),
		r:        mat.DenseCopyOf(r),
		identity: identity,
	}, nil
}

// Dims returns the state and observation dimensions.
func (kf *Filter) Dims() (n, m int) {
	return kf.n, kf.m
}

// SetState overwrites the state vector. Covariance is unchanged.
func (kf *Filter) SetState(x []float64) error {
	if len(x) != kf.n {
		return fmt.Errorf("%w: state has %d elements, want %d", ErrDimension, len(x), kf.n)
	}
	for i, v := range x {
		kf.x.SetVec(i, v)
	}
	return nil
}

// SetStateAt overwrites element i of the state vector. It panics if i is
// out of range, like mat.VecDense.SetVec.
func (kf *Filter) SetStateAt(i int, v float64) {
	kf.x.SetVec(i, v)
}

// State returns a copy of the state vector.
func (kf *Filter) State() []float64 {
	out := make([]float64, kf.n)
	for i := range out {
		out[i] = kf.x.AtVec(i)
	}
	return out
}

// Covariance returns a copy of P.
func (kf *Filter) Covariance() *mat.Dense {
	return mat.DenseCopyOf(kf.p)
}

// Predict advances the estimate one step: x = F x, P = F P Fᵀ + Q.
func (kf *Filter) Predict() {
	var x mat.VecDense
	x.MulVec(kf.f, kf.x)
	kf.x = &x

	var fp, p mat.Dense
	fp.Mul(kf.f, kf.p)
	p.Mul(&fp, kf.f.T())
	p.Add(&p, kf.q)
	kf.p = &p
}

// Project returns the predicted observation H x.
func (kf *Filter) Project() []float64 {
	var hx mat.VecDense
	hx.MulVec(kf.h, kf.x)
	out := make([]float64, kf.m)
	for i := range out {
		out[i] = hx.AtVec(i)
	}
	return out
}

// Update applies one correction step with observation z and returns the
// normalised innovation squared yᵀ S⁻¹ y for that observation.
func (kf *Filter) Update(z []float64) (float64, error) {
	if len(z) != kf.m {
		return 0, fmt.Errorf("%w: observation has %d elements, want %d", ErrDimension, len(z), kf.m)
	}

	// Innovation y = z - H x
	zv := mat.NewVecDense(kf.m, append([]float64(nil), z...))
	var hx, y mat.VecDense
	hx.MulVec(kf.h, kf.x)
	y.SubVec(zv, &hx)

	// Innovation covariance S = H P Hᵀ + R
	var hp, s mat.Dense
	hp.Mul(kf.h, kf.p)
	s.Mul(&hp, kf.h.T())
	s.Add(&s, kf.r)

	var sInv mat.Dense
	if err := sInv.Inverse(&s); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrSingularInnovation, err)
	}

	// Kalman gain K = P Hᵀ S⁻¹
	var pht, k mat.Dense
	pht.Mul(kf.p, kf.h.T())
	k.Mul(&pht, &sInv)

	// x = x + K y
	var ky, x mat.VecDense
	ky.MulVec(&k, &y)
	x.AddVec(kf.x, &ky)

	// P = (I - K H) P
	var kh, ikh, p mat.Dense
	kh.Mul(&k, kf.h)
	ikh.Sub(kf.identity, &kh)
	p.Mul(&ikh, kf.p)

	var sy mat.VecDense
	sy.MulVec(&sInv, &y)
	nis := mat.Dot(&y, &sy)

	kf.x = &x
	kf.p = &p
	return nis, nil
}
