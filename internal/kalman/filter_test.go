package kalman

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// newConstantVelocity1D returns a [pos, vel] filter with unit time step,
// no process noise and unit measurement noise.
func newConstantVelocity1D(t *testing.T) *Filter {
	t.Helper()
	f := mat.NewDense(2, 2, []float64{
		1, 1,
		0, 1,
	})
	h := mat.NewDense(1, 2, []float64{1, 0})
	q := mat.NewDense(2, 2, nil)
	r := mat.NewDense(1, 1, []float64{1})
	p0 := mat.NewDiagDense(2, []float64{1, 1})
	kf, err := NewFilter(f, h, q, r, p0)
	require.NoError(t, err)
	return kf
}

func TestNewFilter_DimensionChecks(t *testing.T) {
	t.Parallel()

	square := mat.NewDense(2, 2, nil)
	h := mat.NewDense(1, 2, nil)
	r := mat.NewDense(1, 1, nil)

	tests := []struct {
		name       string
		f, h, q, r mat.Matrix
		p0         mat.Matrix
	}{
		{"non-square F", mat.NewDense(2, 3, nil), h, square, r, square},
		{"H wrong width", square, mat.NewDense(1, 3, nil), square, r, square},
		{"Q wrong size", square, h, mat.NewDense(3, 3, nil), r, square},
		{"R wrong size", square, h, square, mat.NewDense(2, 2, nil), square},
		{"P0 wrong size", square, h, square, r, mat.NewDense(1, 1, nil)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewFilter(tt.f, tt.h, tt.q, tt.r, tt.p0)
			assert.ErrorIs(t, err, ErrDimension)
		})
	}
}

func TestFilter_PredictUpdate(t *testing.T) {
	t.Parallel()

	kf := newConstantVelocity1D(t)
	n, m := kf.Dims()
	assert.Equal(t, 2, n)
	assert.Equal(t, 1, m)

	require.NoError(t, kf.SetState([]float64{0, 2}))
	kf.Predict()

	assert.InDeltaSlice(t, []float64{2, 2}, kf.State(), 1e-12)
	assert.InDeltaSlice(t, []float64{2}, kf.Project(), 1e-12)

	p := kf.Covariance()
	assert.InDelta(t, 2.0, p.At(0, 0), 1e-12)
	assert.InDelta(t, 1.0, p.At(0, 1), 1e-12)
	assert.InDelta(t, 1.0, p.At(1, 1), 1e-12)

	nis, err := kf.Update([]float64{4})
	require.NoError(t, err)

	// y = 2, S = 3
	assert.InDelta(t, 4.0/3.0, nis, 1e-12)
	assert.InDeltaSlice(t, []float64{2 + 4.0/3.0, 2 + 2.0/3.0}, kf.State(), 1e-12)

	p = kf.Covariance()
	assert.InDelta(t, 2.0/3.0, p.At(0, 0), 1e-12)
	assert.InDelta(t, 1.0/3.0, p.At(0, 1), 1e-12)
	assert.InDelta(t, 1.0/3.0, p.At(1, 0), 1e-12)
	assert.InDelta(t, 2.0/3.0, p.At(1, 1), 1e-12)
}

func TestFilter_UpdateExactObservation(t *testing.T) {
	t.Parallel()

	kf := newConstantVelocity1D(t)
	require.NoError(t, kf.SetState([]float64{5, 0}))

	nis, err := kf.Update([]float64{5})
	require.NoError(t, err)
	assert.Zero(t, nis)
	assert.InDeltaSlice(t, []float64{5, 0}, kf.State(), 1e-12)
}

func TestFilter_SingularInnovation(t *testing.T) {
	t.Parallel()

	zero2 := mat.NewDense(2, 2, nil)
	f := mat.NewDense(2, 2, []float64{1, 1, 0, 1})
	h := mat.NewDense(1, 2, []float64{1, 0})
	kf, err := NewFilter(f, h, zero2, mat.NewDense(1, 1, nil), zero2)
	require.NoError(t, err)
	require.NoError(t, kf.SetState([]float64{1, 1}))

	_, err = kf.Update([]float64{3})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrSingularInnovation))
	assert.Equal(t, []float64{1, 1}, kf.State(), "state must be untouched on failure")
}

func TestFilter_DimensionErrors(t *testing.T) {
	t.Parallel()

	kf := newConstantVelocity1D(t)
	assert.ErrorIs(t, kf.SetState([]float64{1}), ErrDimension)
	assert.Panics(t, func() { kf.SetStateAt(2, 0) })

	_, err := kf.Update([]float64{1, 2})
	assert.ErrorIs(t, err, ErrDimension)
}

func TestFilter_StateIsCopy(t *testing.T) {
	t.Parallel()

	kf := newConstantVelocity1D(t)
	require.NoError(t, kf.SetState([]float64{1, 2}))

	s := kf.State()
	s[0] = 99
	assert.Equal(t, 1.0, kf.State()[0])

	p := kf.Covariance()
	p.Set(0, 0, 99)
	assert.Equal(t, 1.0, kf.Covariance().At(0, 0))
}
