package gsm

import (
	"context"
	"errors"
	"fmt"
	"math"
	"testing"
	"time"

	chem "github.com/rmera/gostring"
	"github.com/rmera/gostring/ic"
	"github.com/rmera/gostring/lot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"gonum.org/v1/gonum/floats"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// stubOpt only evaluates the node it is given.
type stubOpt struct {
	conv    Convergence
	dmax    float64
	variant Variant
	calls   int
}

func (s *stubOpt) Optimize(ctx context.Context, n *Node, refE float64, t OptType, steps int, tangent []float64) error {
	s.calls++
	return n.Evaluate(ctx)
}
func (s *stubOpt) Converged() bool      { return true }
func (s *stubOpt) Nneg() int            { return 1 }
func (s *stubOpt) MaxOverlapGood() bool { return true }
func (s *stubOpt) Conv() *Convergence   { return &s.conv }
func (s *stubOpt) DMax() float64        { return s.dmax }
func (s *stubOpt) SetDMax(d float64)    { s.dmax = d }
func (s *stubOpt) SetVariant(v Variant) { s.variant = v }

func stubFactory(id int) Optimizer { return &stubOpt{dmax: 0.1} }

// scriptOpt reports the curvature and convergence it is told to.
type scriptOpt struct {
	stubOpt
	nneg        int
	overlapBad  bool
	unconverged bool
}

func (s *scriptOpt) Converged() bool      { return !s.unconverged }
func (s *scriptOpt) Nneg() int            { return s.nneg }
func (s *scriptOpt) MaxOverlapGood() bool { return !s.overlapBad }

func testOptions(nodes int) *Options {
	o := DefaultOptions()
	o.Nodes = nodes
	o.Workers = 2
	o.Optimizer = stubFactory
	return o
}

func triTop(Te *testing.T) *chem.Topology {
	Te.Helper()
	top, err := chem.NewTopology([]*chem.Atom{chem.NewAtom("H"), chem.NewAtom("O"), chem.NewAtom("H")}, 0, 0)
	require.NoError(Te, err)
	return top
}

// triGeom has both bonds 1 A long, and the angle theta (degrees) at the central atom.
func triGeom(theta float64) []float64 {
	t := chem.Deg2Rad(theta)
	return []float64{
		1, 0, 0,
		0, 0, 0,
		math.Cos(t), math.Sin(t), 0,
	}
}

func triFF() *lot.ForceField {
	return lot.NewForceField(3,
		lot.Harmonic{Coord: ic.NewDistance(0, 1), K: 0.5, Eq: 1.0},
		lot.Harmonic{Coord: ic.NewDistance(1, 2), K: 0.5, Eq: 1.0},
		lot.Harmonic{Coord: ic.NewAngle(0, 1, 2), K: 0.2, Eq: 1.9},
	)
}

func triNode(id int, theta float64, prims ...ic.Primitive) *Node {
	if len(prims) == 0 {
		prims = []ic.Primitive{ic.NewDistance(0, 1), ic.NewDistance(1, 2), ic.NewAngle(0, 1, 2)}
	}
	eng := ic.NewEngine(ic.NewPrimitiveSet(prims...), 3)
	return NewNode(id, eng, triFF(), triGeom(theta))
}

// triString returns a grown 3-node string with angles a0, a1 and a2.
func triString(Te *testing.T, a0, a1, a2 float64) *String {
	Te.Helper()
	ctx := context.Background()
	S, err := NewDE(ctx, triTop(Te), triNode(0, a0), triNode(2, a2), testOptions(3))
	require.NoError(Te, err)
	S.nodes[1] = S.nodes[0].Copy(1, triGeom(a1))
	S.nR = 2
	require.NoError(Te, S.evaluate(ctx, []int{1}))
	return S
}

func TestErrorKinds(Te *testing.T) {
	err := newError(KindCapacity, "full", "AddNodeR", nil)
	assert.ErrorIs(Te, err, ErrCapacity)
	assert.NotErrorIs(Te, err, ErrBudget)
	assert.True(Te, err.Critical())
	d := errDecorate(err, "Grow")
	assert.Contains(Te, d.Error(), "AddNodeR < Grow")

	wrapped := errDecorate(fmt.Errorf("newton: %w", ic.ErrRetryExhausted), "step")
	assert.ErrorIs(Te, wrapped, ErrRetryExhausted)
	assert.ErrorIs(Te, wrapped, ic.ErrRetryExhausted)
	var ge *Error
	require.True(Te, errors.As(wrapped, &ge))
	assert.Equal(Te, KindRetryExhausted, ge.Kind())
	assert.Equal(Te, "budget exhausted", KindBudget.String())

	inner := errDecorate(context.Canceled, "Evaluate")
	assert.ErrorIs(Te, inner, context.Canceled)
	assert.Nil(Te, errDecorate(nil, "x"))
}

func TestParseDrivingCoords(Te *testing.T) {
	dc, err := ParseDrivingCoords([]string{
		"ADD 1 3 1.2",
		"# a comment",
		"",
		"break 2 1",
		"TORSION 1 2 3 4 180",
	})
	require.NoError(Te, err)
	require.Len(Te, dc, 3)
	assert.Equal(Te, Add, dc[0].Kind)
	assert.Equal(Te, []int{1, 3}, dc[0].Atoms)
	assert.True(Te, dc[0].HasTarget)
	assert.InDelta(Te, 1.2, dc[0].Target, 1e-12)
	assert.Equal(Te, Break, dc[1].Kind)
	assert.False(Te, dc[1].HasTarget)
	assert.Equal(Te, []int{0, 1}, dc[1].atoms())
	assert.Equal(Te, TorsionDrive, dc[2].Kind)
	assert.Equal(Te, "TORSION", dc[2].Kind.String())

	for _, bad := range []string{"ANGLE 1 2 3", "FOO 1 2", "ADD 1 x 1.0", "ADD 0 2", "ADD 1 2 3 4"} {
		_, err := ParseDrivingCoords([]string{bad})
		assert.ErrorIs(Te, err, ErrInvariant, bad)
	}
}

func TestDrivingTangent(Te *testing.T) {
	d02 := ic.NewDistance(0, 2)
	n := triNode(0, 120, ic.NewDistance(0, 1), ic.NewDistance(1, 2), ic.NewAngle(0, 1, 2), d02)
	r := d02.Value(n.xyz) //sqrt(3)
	idx := n.eng.Prims().DofIndex(d02)
	require.GreaterOrEqual(Te, idx, 0)

	t, bdist, err := DrivingTangent(n, nil, []DrivingCoord{{Kind: Add, Atoms: []int{3, 1}, Target: 1.2, HasTarget: true}})
	require.NoError(Te, err)
	assert.InDelta(Te, 1.2-r, t[idx], 1e-12)
	assert.InDelta(Te, r-1.2, bdist, 1e-12)

	//reached targets do not count for the boundary distance.
	_, bdist, err = DrivingTangent(n, nil, []DrivingCoord{{Kind: Add, Atoms: []int{1, 3}, Target: 2.0, HasTarget: true}})
	require.NoError(Te, err)
	assert.Zero(Te, bdist)

	_, bdist, err = DrivingTangent(n, nil, []DrivingCoord{{Kind: Break, Atoms: []int{1, 3}, Target: 2.5, HasTarget: true}})
	require.NoError(Te, err)
	assert.InDelta(Te, 2.5-r, bdist, 1e-12)

	//default ADD target, from the van der Waals radii.
	top := triTop(Te)
	t, _, err = DrivingTangent(n, top, []DrivingCoord{{Kind: Add, Atoms: []int{1, 3}}})
	require.NoError(Te, err)
	assert.InDelta(Te, 2*top.Atom(0).Vdw/2.8-r, t[idx], 1e-12)
	_, _, err = DrivingTangent(n, nil, []DrivingCoord{{Kind: Add, Atoms: []int{1, 3}}})
	assert.ErrorIs(Te, err, ErrInvariant)

	_, _, err = DrivingTangent(n, nil, nil)
	assert.ErrorIs(Te, err, ErrInvariant)
	_, _, err = DrivingTangent(triNode(0, 120), nil, []DrivingCoord{{Kind: Add, Atoms: []int{1, 3}, Target: 1.2, HasTarget: true}})
	assert.ErrorIs(Te, err, ErrInvariant)
}

func TestDrivingTangentTorsionWrap(Te *testing.T) {
	xyz := []float64{
		0.0, 1.2, 0.3,
		0.0, 0.0, 0.0,
		1.5, 0.0, 0.0,
		1.9, 1.1, -0.6,
	}
	dih := ic.NewDihedral(0, 1, 2, 3)
	eng := ic.NewEngine(ic.NewPrimitiveSet(
		ic.NewDistance(0, 1), ic.NewDistance(1, 2), ic.NewDistance(2, 3),
		ic.NewAngle(0, 1, 2), ic.NewAngle(1, 2, 3), dih), 4)
	n := NewNode(0, eng, lot.NewForceField(4), xyz)
	phi := dih.Value(xyz) * 180 / math.Pi
	t, bdist, err := DrivingTangent(n, nil, []DrivingCoord{{Kind: TorsionDrive, Atoms: []int{1, 2, 3, 4}, Target: phi + 350, HasTarget: true}})
	require.NoError(Te, err)
	idx := eng.Prims().DofIndex(dih)
	assert.InDelta(Te, chem.Deg2Rad(-10), t[idx], 1e-9)
	assert.InDelta(Te, chem.Deg2Rad(10), bdist, 1e-9)
}

func TestTangent(Te *testing.T) {
	a, b := triNode(0, 100), triNode(1, 110)
	t, err := Tangent(a, b)
	require.NoError(Te, err)
	tb, err := Tangent(b, a)
	require.NoError(Te, err)
	floats.Scale(-1, tb)
	assert.InDeltaSlice(Te, t, tb, 1e-12)
	assert.InDelta(Te, chem.Deg2Rad(10), t[2], 1e-9)
	u, norm := unit(t)
	assert.InDelta(Te, 1, floats.Norm(u, 2), 1e-12)
	assert.InDelta(Te, chem.Deg2Rad(10), norm, 1e-9)

	_, err = Tangent(a, a.Copy(1, nil))
	assert.ErrorIs(Te, err, ErrInvariant)
}

func TestTangents3Way(Te *testing.T) {
	S := triString(Te, 100, 110, 120)
	//monotonic uphill: the tangent goes to the next node.
	S.nodes[0].energy, S.nodes[1].energy, S.nodes[2].energy = 0, 0.001, 0.002
	require.NoError(Te, S.tangents3Way(false))
	t, _ := Tangent(S.nodes[1], S.nodes[2])
	u, _ := unit(t)
	assert.InDeltaSlice(Te, u, S.Tangent(1), 1e-12)
	assert.NotNil(Te, S.nodes[1].Constraint())

	//a peak: the tangents to both sides are blended.
	S.nodes[2].energy = 0.0005
	E := S.Energies()
	dE1, dE2 := math.Abs(E[2]-E[1]), math.Abs(E[1]-E[0])
	f1 := math.Max(dE1, dE2) / (dE1 + dE2 + 1e-8)
	t1, _ := Tangent(S.nodes[1], S.nodes[2])
	t2, _ := Tangent(S.nodes[0], S.nodes[1])
	exp := make([]float64, len(t1))
	floats.AddScaled(exp, f1, t1)
	floats.AddScaled(exp, 1-f1, t2)
	exp, _ = unit(exp)
	require.NoError(Te, S.tangents3Way(false))
	assert.InDeltaSlice(Te, exp, S.Tangent(1), 1e-9)
	//both tangents point along the angle, so the blend does too.
	assert.InDelta(Te, 1, S.Tangent(1)[2], 1e-9)
}

func TestCapacity(Te *testing.T) {
	ctx := context.Background()
	S, err := NewDE(ctx, triTop(Te), triNode(0, 100), triNode(2, 120), testOptions(3))
	require.NoError(Te, err)
	assert.False(Te, S.Grown())
	ok, err := S.AddNodeR()
	require.NoError(Te, err)
	require.True(Te, ok)
	assert.True(Te, S.Grown())
	assert.True(Te, S.Active(1))
	_, err = S.AddNodeR()
	assert.ErrorIs(Te, err, ErrCapacity)
	_, err = S.AddNodeP()
	assert.ErrorIs(Te, err, ErrCapacity)
	ang := ic.NewAngle(0, 1, 2).Value(S.Node(1).XYZ())
	assert.InDelta(Te, chem.Deg2Rad(110), ang, 1e-3)
}

func TestGrowthIterationCap(Te *testing.T) {
	ctx := context.Background()
	o := testOptions(7)
	o.MaxGrowthIters = 1
	S, err := NewDE(ctx, triTop(Te), triNode(0, 100), triNode(6, 160), o)
	require.NoError(Te, err)
	assert.ErrorIs(Te, S.Grow(ctx), ErrBudget)
	assert.False(Te, S.Grown())
	//one iteration, on the two front nodes.
	calls := 0
	for _, op := range S.opt {
		calls += op.(*stubOpt).calls
	}
	assert.Equal(Te, 2, calls)
}

func TestNewStringErrors(Te *testing.T) {
	ctx := context.Background()
	_, err := NewDE(ctx, triTop(Te), triNode(0, 100), triNode(2, 120), testOptions(2))
	assert.ErrorIs(Te, err, ErrInvariant)
	o := testOptions(5)
	o.Optimizer = nil
	_, err = NewDE(ctx, triTop(Te), triNode(0, 100), triNode(2, 120), o)
	assert.ErrorIs(Te, err, ErrInvariant)
	_, err = NewSE(ctx, triTop(Te), triNode(0, 100), nil, testOptions(5))
	assert.ErrorIs(Te, err, ErrInvariant)
	_, err = NewDE(ctx, triTop(Te), triNode(0, 100), triNode(2, 120, ic.NewDistance(0, 1)), testOptions(5))
	assert.ErrorIs(Te, err, ErrInvariant)
}

func TestReparamEven(Te *testing.T) {
	S := triString(Te, 100, 110, 120)
	before := S.Node(1).XYZ()
	require.NoError(Te, S.Reparam(context.Background(), 4))
	assert.Equal(Te, before, S.Node(1).XYZ())
	assert.Zero(Te, S.Node(1).NewHess())
}

func TestReparamUneven(Te *testing.T) {
	S := triString(Te, 100, 102, 120)
	require.NoError(Te, S.Reparam(context.Background(), 4))
	ang := ic.NewAngle(0, 1, 2).Value(S.Node(1).XYZ())
	assert.InDelta(Te, chem.Deg2Rad(110), ang, 1e-3)
	assert.True(Te, S.Node(1).Evaluated())
	assert.Equal(Te, 2, S.Node(1).NewHess())
}

func TestReparamNotGrown(Te *testing.T) {
	S, err := NewDE(context.Background(), triTop(Te), triNode(0, 100), triNode(4, 120), testOptions(5))
	require.NoError(Te, err)
	assert.ErrorIs(Te, S.Reparam(context.Background(), 1), ErrInvariant)
}

// energyString returns a grown string with the given energies, in kcal/mol.
func energyString(Te *testing.T, E []float64) *String {
	Te.Helper()
	S, err := newString(triTop(Te), testOptions(len(E)))
	require.NoError(Te, err)
	for i, e := range E {
		S.nodes[i] = triNode(i, 100+float64(i))
		S.nodes[i].energy = e / lot.KcalMolPerHartree
		S.nodes[i].computed = true
	}
	S.nR = len(E)
	return S
}

func TestFindPeaks(Te *testing.T) {
	cases := []struct {
		name string
		E    []float64
		mode peakMode
		want int
	}{
		{"single", []float64{0, 5, 10, 5, 0}, peaksOpting, 1},
		{"uphill", []float64{0, 1, 2, 3, 4}, peaksOpting, -1},
		{"two", []float64{0, 10, 2, 12, 0}, peaksOpting, 2},
		{"shallow", []float64{0, 0.3, 0.1, 0.05, 0}, peaksOpting, 0},
		{"dissociative", []float64{0, 20, 19.8, 19.9, 19.85}, peaksGrowing, -2},
		{"intermediate", []float64{0, 10, 2, 3, 4}, peaksIntermediate, 2},
	}
	for _, c := range cases {
		S := energyString(Te, c.E)
		assert.Equal(Te, c.want, S.findPeaks(c.mode), c.name)
	}
}

func TestHasIntermediate(Te *testing.T) {
	assert.True(Te, energyString(Te, []float64{0, 10, 2, 12, 0}).hasIntermediate())
	assert.False(Te, energyString(Te, []float64{0, 5, 10, 5, 0}).hasIntermediate())
	assert.False(Te, energyString(Te, []float64{0, 10, 9.5, 12, 0}).hasIntermediate())
}

func TestTSNodeAndEnergies(Te *testing.T) {
	S := energyString(Te, []float64{0, 5, 10, 5, 0})
	assert.Equal(Te, 2, S.TSNode())
	assert.InDeltaSlice(Te, []float64{0, 5, 10, 5, 0}, S.Energies(), 1e-9)
	assert.Len(Te, S.Geometries(), 5)
}

func TestMonotonic(Te *testing.T) {
	assert.True(Te, monotonic([]float64{0, 1, 2, 1.8, 3}, 0.5))
	assert.True(Te, monotonic([]float64{3, 2, 1, 0}, 0.1))
	assert.False(Te, monotonic([]float64{0, 5, 0}, 0.5))
}

func TestMultSteps(Te *testing.T) {
	S := energyString(Te, []float64{0, 5, 10, 5, 0})
	S.stage.find = true
	assert.Equal(Te, 6, S.multSteps(2, 2, 3))
	assert.Equal(Te, 3, S.multSteps(1, 2, 3))
	assert.Equal(Te, 3, S.multSteps(1, 0, 3))
}

func TestSetOptType(Te *testing.T) {
	S := energyString(Te, []float64{0, 5, 10, 5, 0})
	assert.Equal(Te, ICTAN, S.setOptType(2, 2))
	S.stage.climb = true
	assert.Equal(Te, CLIMB, S.setOptType(2, 2))
	assert.Equal(Te, ICTAN, S.setOptType(1, 2))
	S.stage.find = true
	assert.Equal(Te, TS, S.setOptType(2, 2))
}

func TestParallelTimeout(Te *testing.T) {
	S := energyString(Te, []float64{0, 5, 10, 5, 0})
	S.opts.NodeTimeout = 20 * time.Millisecond
	err := S.parallel(context.Background(), []int{1, 2, 3}, func(ctx context.Context, i int) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(Te, err, ErrBudget)
	assert.ErrorIs(Te, err, context.DeadlineExceeded)
}

func TestParallelCanceled(Te *testing.T) {
	S := energyString(Te, []float64{0, 5, 10, 5, 0})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := S.parallel(ctx, []int{1, 2, 3}, func(ctx context.Context, i int) error {
		<-ctx.Done()
		return ctx.Err()
	})
	assert.ErrorIs(Te, err, context.Canceled)
	assert.NotErrorIs(Te, err, ErrBudget)
}

func TestOptimizeIterationRunsActive(Te *testing.T) {
	S := energyString(Te, []float64{0, 5, 10, 5, 0})
	S.active[1], S.active[3] = true, true
	require.NoError(Te, S.optimizeIteration(context.Background(), 3, true))
	assert.Equal(Te, 1, S.opt[1].(*stubOpt).calls)
	assert.Equal(Te, 0, S.opt[2].(*stubOpt).calls)
	assert.Equal(Te, 1, S.opt[3].(*stubOpt).calls)
}

func TestInsertAt(Te *testing.T) {
	assert.Equal(Te, []int{1, 9, 2, 3}, insertAt([]int{1, 2, 3}, 1, 9))
	assert.Equal(Te, []int{1, 2, 3, 9}, insertAt([]int{1, 2, 3}, 3, 9))
}
