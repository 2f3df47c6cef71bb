package opt

import (
	"context"
	"math"
	"testing"

	"github.com/rmera/gostring/gsm"
	"github.com/rmera/gostring/ic"
	"github.com/rmera/gostring/lot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// a bent triatomic, away from its minimum.
var tri = []float64{
	-0.9, 0.3, 0.0,
	0.0, 0.0, 0.0,
	1.2, 0.4, 0.1,
}

func triNode(Te *testing.T) *gsm.Node {
	Te.Helper()
	prims := ic.NewPrimitiveSet(ic.NewDistance(0, 1), ic.NewDistance(1, 2), ic.NewAngle(0, 1, 2))
	ff := lot.NewForceField(3,
		lot.Harmonic{Coord: ic.NewDistance(0, 1), K: 0.5, Eq: 1.0},
		lot.Harmonic{Coord: ic.NewDistance(1, 2), K: 0.5, Eq: 1.0},
		lot.Harmonic{Coord: ic.NewAngle(0, 1, 2), K: 0.2, Eq: 1.8},
	)
	return gsm.NewNode(1, ic.NewEngine(prims, 3), ff, tri)
}

func TestSetDMax(Te *testing.T) {
	o := New(0, nil, nil)
	assert.InDelta(Te, 0.1, o.DMax(), 1e-12)
	o.SetDMax(10)
	assert.InDelta(Te, DefaultOptions().MaxDMax, o.DMax(), 1e-12)
	o.SetDMax(0)
	assert.InDelta(Te, DefaultOptions().MinDMax, o.DMax(), 1e-12)
}

func TestFactory(Te *testing.T) {
	f := Factory(nil, nil)
	a, b := f(1), f(2)
	a.SetDMax(0.05)
	assert.InDelta(Te, 0.1, b.DMax(), 1e-12)
	a.Conv().GradRMS = 1
	assert.NotEqual(Te, 1.0, b.Conv().GradRMS)
}

func TestBFGSSecant(Te *testing.T) {
	H := mat.NewDense(3, 3, []float64{
		1, 0, 0,
		0, 2, 0,
		0, 0, 3,
	})
	s := []float64{0.1, -0.05, 0.02}
	y := []float64{0.12, -0.08, 0.07}
	bfgs(H, s, y)
	var Hs mat.VecDense
	Hs.MulVec(H, mat.NewVecDense(3, s))
	assert.InDeltaSlice(Te, y, Hs.RawVector().Data, 1e-10)
	assert.True(Te, mat.EqualApprox(H, H.T(), 1e-12))
}

func TestBFGSSkipsNegativeCurvature(Te *testing.T) {
	H := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	bfgs(H, []float64{0.1, 0}, []float64{-0.1, 0})
	assert.True(Te, mat.Equal(H, mat.NewDense(2, 2, []float64{1, 0, 0, 1})))
}

func TestPowellSecant(Te *testing.T) {
	H := mat.NewDense(2, 2, []float64{1, 0.1, 0.1, 2})
	s := []float64{0.1, 0.05}
	y := []float64{-0.02, 0.1}
	powell(H, s, y)
	var Hs mat.VecDense
	Hs.MulVec(H, mat.NewVecDense(2, s))
	assert.InDeltaSlice(Te, y, Hs.RawVector().Data, 1e-10)
	assert.True(Te, mat.EqualApprox(H, H.T(), 1e-12))
}

func TestConstrainedStep(Te *testing.T) {
	o := New(0, nil, nil)
	H := mat.NewDense(2, 2, []float64{1, 0, 0, 2})
	g := []float64{0.1, 0.2}
	dq := o.constrainedStep(H, g, false)
	assert.InDeltaSlice(Te, []float64{0, -0.1}, dq, 1e-10)
	dq = o.constrainedStep(H, g, true)
	assert.InDeltaSlice(Te, []float64{0.1, -0.1}, dq, 1e-10)
}

func TestNewtonStepGoesDownhill(Te *testing.T) {
	o := New(0, nil, nil)
	H := mat.NewDense(2, 2, []float64{-1, 0, 0, 2})
	dq := o.newtonStep(H, []float64{0.1, 0.2})
	assert.InDeltaSlice(Te, []float64{-0.1, -0.1}, dq, 1e-10)
}

func TestTSStep(Te *testing.T) {
	o := New(0, nil, nil)
	H := mat.NewDense(2, 2, []float64{-0.5, 0, 0, 1})
	U := mat.NewDense(2, 2, []float64{1, 0, 0, 1})
	g := []float64{0.1, 0.2}
	dq := o.tsStep(H, g, U, []float64{1, 0})
	assert.InDeltaSlice(Te, []float64{0.2, -0.2}, dq, 1e-10)
	assert.Equal(Te, 1, o.Nneg())
	assert.True(Te, o.MaxOverlapGood())

	//following the positive mode, which the tangent points to.
	dq = o.tsStep(H, g, U, []float64{0, 1})
	assert.InDeltaSlice(Te, []float64{-0.2, 0.2}, dq, 1e-10)

	o.o.MinOverlap = 0.9
	o.tsStep(H, g, U, []float64{math.Sqrt2 / 2, math.Sqrt2 / 2})
	assert.False(Te, o.MaxOverlapGood())
}

func TestOptimizeLowersEnergy(Te *testing.T) {
	ctx := context.Background()
	n := triNode(Te)
	require.NoError(Te, n.Evaluate(ctx))
	e0 := n.Energy()
	o := New(1, nil, nil)
	require.NoError(Te, o.Optimize(ctx, n, 0, gsm.ICTAN, 20, nil))
	assert.True(Te, n.Evaluated())
	assert.Less(Te, n.Energy(), e0)
}

func TestOptimizeKeepsConstraint(Te *testing.T) {
	ctx := context.Background()
	n := triNode(Te)
	r0 := n.Primitives()[0]
	o := New(1, nil, nil)
	require.NoError(Te, o.Optimize(ctx, n, 0, gsm.ICTAN, 5, []float64{1, 0, 0}))
	assert.InDelta(Te, r0, n.Primitives()[0], 1e-3)
	assert.True(Te, n.Evaluated())
}

func TestMinimize(Te *testing.T) {
	ctx := context.Background()
	n := triNode(Te)
	o := New(1, nil, nil)
	require.NoError(Te, o.Optimize(ctx, n, 0, gsm.Unconstrained, 300, nil))
	assert.Less(Te, n.Energy(), 1e-5)
	q := n.Primitives()
	assert.InDelta(Te, 1.0, q[0], 0.01)
	assert.InDelta(Te, 1.0, q[1], 0.01)
}

func TestOptimizeCanceled(Te *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	n := triNode(Te)
	o := New(1, nil, nil)
	assert.ErrorIs(Te, o.Optimize(ctx, n, 0, gsm.ICTAN, 5, nil), context.Canceled)
}
