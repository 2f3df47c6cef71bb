package gsm_test

import (
	"context"
	"math"
	"sync"
	"testing"

	chem "github.com/rmera/gostring"
	"github.com/rmera/gostring/gsm"
	"github.com/rmera/gostring/ic"
	"github.com/rmera/gostring/lot"
	"github.com/rmera/gostring/opt"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	mu     sync.Mutex
	stages map[string]int
}

func (r *recorder) WriteSnapshot(s *gsm.Snapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.stages == nil {
		r.stages = make(map[string]int)
	}
	r.stages[s.Stage]++
	return nil
}

func topology(Te *testing.T, symbols ...string) *chem.Topology {
	Te.Helper()
	ats := make([]*chem.Atom, len(symbols))
	for i, s := range symbols {
		ats[i] = chem.NewAtom(s)
	}
	top, err := chem.NewTopology(ats, 0, 0)
	require.NoError(Te, err)
	return top
}

// chain returns a 4-atom chain with 1.5 A bonds, tetrahedral angles and the
// dihedral phi (degrees).
func chain(phi float64) []float64 {
	const b = 1.5
	th := chem.Deg2Rad(109.47)
	p := chem.Deg2Rad(phi)
	return []float64{
		b * math.Cos(th), b * math.Sin(th), 0,
		0, 0, 0,
		b, 0, 0,
		b - b*math.Cos(th), b * math.Sin(th) * math.Cos(p), b * math.Sin(th) * math.Sin(p),
	}
}

func chainNode(id int, phi float64) *gsm.Node {
	dih := ic.NewDihedral(0, 1, 2, 3)
	prims := ic.NewPrimitiveSet(
		ic.NewDistance(0, 1), ic.NewDistance(1, 2), ic.NewDistance(2, 3),
		ic.NewAngle(0, 1, 2), ic.NewAngle(1, 2, 3), dih)
	ff := lot.NewForceField(4,
		lot.Harmonic{Coord: ic.NewDistance(0, 1), K: 0.3, Eq: 1.5},
		lot.Harmonic{Coord: ic.NewDistance(1, 2), K: 0.3, Eq: 1.5},
		lot.Harmonic{Coord: ic.NewDistance(2, 3), K: 0.3, Eq: 1.5},
		lot.Harmonic{Coord: ic.NewAngle(0, 1, 2), K: 0.1, Eq: chem.Deg2Rad(109.47)},
		lot.Harmonic{Coord: ic.NewAngle(1, 2, 3), K: 0.1, Eq: chem.Deg2Rad(109.47)},
		lot.Torsion{Coord: dih, V: 0.01, N: 3},
	)
	return gsm.NewNode(id, ic.NewEngine(prims, 4), ff, chain(phi))
}

func TestDoubleEndedTorsion(Te *testing.T) {
	for _, rtype := range []int{gsm.Climb, gsm.FindTS} {
		ctx := context.Background()
		o := gsm.DefaultOptions()
		o.Nodes = 9
		o.Workers = 4
		o.Optimizer = opt.Factory(nil, nil)
		rec := &recorder{}
		o.Snapshots = rec
		S, err := gsm.NewDE(ctx, topology(Te, "C", "C", "C", "C"), chainNode(0, 60), chainNode(8, 180), o)
		require.NoError(Te, err)

		require.NoError(Te, S.Grow(ctx))
		assert.True(Te, S.Grown())
		assert.Equal(Te, 9, S.NR()+S.NP())
		assert.Positive(Te, rec.stages["growth"])

		require.NoError(Te, S.Optimize(ctx, rtype), rtype)
		assert.Positive(Te, rec.stages["converged"], rtype)
		ts := S.TSNode()
		assert.Greater(Te, ts, 0)
		assert.Less(Te, ts, S.N()-1)
		assert.Less(Te, S.Node(ts).GradRMS(), o.ConvTol, rtype)
		E := S.Energies()
		//the barrier of the torsion term is 0.01 Hartree, about 6.3 kcal/mol.
		assert.Greater(Te, E[ts], 3.0)
		assert.Less(Te, E[ts], 8.0)
		phi := math.Abs(ic.NewDihedral(0, 1, 2, 3).Value(S.Node(ts).XYZ())) * 180 / math.Pi
		assert.InDelta(Te, 120, phi, 25)
		assert.Len(Te, S.Geometries(), S.N())
	}
}

func TestSingleEndedAdd(Te *testing.T) {
	ctx := context.Background()
	//both bonds 1 A long, atoms 1 and 3 1.8 A apart.
	h := math.Sqrt(1 - 0.81)
	xyz := []float64{
		-0.9, h, 0,
		0, 0, 0,
		0.9, h, 0,
	}
	dc, err := gsm.ParseDrivingCoords([]string{"ADD 1 3 1.2"})
	require.NoError(Te, err)
	prims := ic.NewPrimitiveSet(ic.NewDistance(0, 1), ic.NewDistance(1, 2), ic.NewAngle(0, 1, 2))
	for _, p := range gsm.DrivingPrimitives(dc) {
		prims.Add(p)
	}
	ff := lot.NewForceField(3,
		lot.Harmonic{Coord: ic.NewDistance(0, 1), K: 0.5, Eq: 1.0},
		lot.Harmonic{Coord: ic.NewDistance(1, 2), K: 0.5, Eq: 1.0},
		lot.Morse{A: 0, B: 2, D: 0.05, Alpha: 1.8, Re: 1.2},
	)
	reactant := gsm.NewNode(0, ic.NewEngine(prims, 3), ff, xyz)

	o := gsm.DefaultOptions()
	o.Nodes = 9
	o.Workers = 4
	o.Optimizer = opt.Factory(nil, nil)
	S, err := gsm.NewSE(ctx, topology(Te, "H", "O", "H"), reactant, dc, o)
	require.NoError(Te, err)
	assert.True(Te, S.SingleEnded())
	bdist0 := S.Node(0).BDist()
	assert.InDelta(Te, 0.6, bdist0, 1e-9)

	require.NoError(Te, S.Run(ctx, gsm.NoClimb))
	require.GreaterOrEqual(Te, S.N(), 2)
	//each node is closer to the target than the one it was grown from.
	for i := 1; i < S.N(); i++ {
		assert.LessOrEqual(Te, S.Node(i).BDist(), S.Node(i-1).BDist()+1e-9, i)
	}
	last := S.Node(S.N() - 1)
	assert.Less(Te, last.BDist(), bdist0)
	r02 := ic.NewDistance(0, 2).Value(last.XYZ())
	assert.InDelta(Te, 1.2, r02, 0.02)
	//the profile goes downhill toward the Morse minimum.
	E := S.Energies()
	assert.Less(Te, E[len(E)-1], E[0])
}
