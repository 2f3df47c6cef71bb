package lot

import (
	"context"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	chem "github.com/rmera/gostring"
	"github.com/rmera/gostring/ic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var chain = []float64{
	0.0, 1.2, 0.3,
	0.0, 0.0, 0.0,
	1.5, 0.0, 0.0,
	1.9, 1.1, -0.6,
}

func chainFF() *ForceField {
	return NewForceField(4,
		Harmonic{Coord: ic.NewDistance(0, 1), K: 0.3, Eq: 1.5},
		Harmonic{Coord: ic.NewDistance(1, 2), K: 0.3, Eq: 1.5},
		Harmonic{Coord: ic.NewDistance(2, 3), K: 0.3, Eq: 1.5},
		Harmonic{Coord: ic.NewAngle(0, 1, 2), K: 0.1, Eq: 1.9},
		Harmonic{Coord: ic.NewAngle(1, 2, 3), K: 0.1, Eq: 1.9},
		Harmonic{Coord: ic.NewDihedral(0, 1, 2, 3), K: 0.01, Eq: 3.1},
		Torsion{Coord: ic.NewDihedral(0, 1, 2, 3), V: 0.01, N: 3},
		Morse{A: 0, B: 3, D: 0.05, Alpha: 1.8, Re: 2.5},
	)
}

func numGrad(Te *testing.T, l LevelOfTheory, xyz []float64) []float64 {
	const h = 1e-5
	g := make([]float64, len(xyz))
	x := append([]float64{}, xyz...)
	for i := range x {
		x[i] = xyz[i] + h
		rp, err := l.Compute(context.Background(), x)
		require.NoError(Te, err)
		x[i] = xyz[i] - h
		rm, err := l.Compute(context.Background(), x)
		require.NoError(Te, err)
		x[i] = xyz[i]
		g[i] = (rp.Energy - rm.Energy) / (2 * h)
	}
	return g
}

func TestForceFieldGradient(Te *testing.T) {
	ff := chainFF()
	assert.Equal(Te, 8, ff.Len())
	r, err := ff.Compute(context.Background(), chain)
	require.NoError(Te, err)
	assert.Greater(Te, r.Energy, 0.0)
	assert.InDeltaSlice(Te, numGrad(Te, ff, chain), r.Gradient, 1e-6)
}

func TestForceFieldMinimum(Te *testing.T) {
	ff := NewForceField(2, Harmonic{Coord: ic.NewDistance(0, 1), K: 0.5, Eq: 1.0})
	r, err := ff.Compute(context.Background(), []float64{0, 0, 0, 1, 0, 0})
	require.NoError(Te, err)
	assert.InDelta(Te, 0, r.Energy, 1e-12)
	assert.InDeltaSlice(Te, make([]float64, 6), r.Gradient, 1e-12)
	_, err = ff.Compute(context.Background(), []float64{0, 0, 0})
	require.Error(Te, err)
}

func TestForceFieldCanceled(Te *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := chainFF().Compute(ctx, chain)
	assert.ErrorIs(Te, err, context.Canceled)
}

func TestTorsionProfile(Te *testing.T) {
	t := Torsion{Coord: ic.NewDihedral(0, 1, 2, 3), V: 0.01, N: 3}
	g := make([]float64, 12)
	//cis geometry, phi=0, which is a maximum of the three-fold term.
	cis := []float64{0, 1, 0, 0, 0, 0, 1.5, 0, 0, 1.5, 1, 0}
	assert.InDelta(Te, 0.01, t.Energy(cis, g), 1e-9)
}

func TestAverageAndPenalty(Te *testing.T) {
	a := chainFF()
	b := NewForceField(4, Morse{A: 0, B: 3, D: 0.08, Alpha: 1.5, Re: 2.0})
	avg := &Average{A: a, B: b}
	pen := NewPenalty(a, b)
	assert.Equal(Te, AveragedSeam, avg.Surface())
	assert.Equal(Te, PenaltySurface, pen.Surface())
	assert.True(Te, pen.DoCoupling())
	ra, err := a.Compute(context.Background(), chain)
	require.NoError(Te, err)
	rb, err := b.Compute(context.Background(), chain)
	require.NoError(Te, err)
	r, err := avg.Compute(context.Background(), chain)
	require.NoError(Te, err)
	assert.InDelta(Te, 0.5*(ra.Energy+rb.Energy), r.Energy, 1e-12)
	assert.Equal(Te, []float64{ra.Energy, rb.Energy}, r.States)
	assert.InDeltaSlice(Te, numGrad(Te, avg, chain), r.Gradient, 1e-6)
	rp, err := pen.Compute(context.Background(), chain)
	require.NoError(Te, err)
	assert.GreaterOrEqual(Te, rp.Energy, r.Energy)
	assert.InDeltaSlice(Te, numGrad(Te, pen, chain), rp.Gradient, 1e-6)
}

const engrad = `#
# Number of atoms
#
 3
#
# The current total energy in Eh
#
    -5.070544440612
#
# The current gradient in Eh/bohr
#
       0.000000000000
       0.000000000000
      -0.005294626000
       0.000000000000
       0.003000000000
       0.002647313000
       0.000000000000
      -0.003000000000
       0.002647313000
#
# The atomic numbers and current coordinates in Bohr
#
   8     0.0000000    0.0000000   -0.7410000
   1     0.0000000    1.4305000    0.3705000
   1     0.0000000   -1.4305000    0.3705000
`

func TestReadEngrad(Te *testing.T) {
	r, err := ReadEngrad(strings.NewReader(engrad))
	require.NoError(Te, err)
	assert.InDelta(Te, -5.070544440612, r.Energy, 1e-12)
	require.Len(Te, r.Gradient, 9)
	assert.InDelta(Te, -0.005294626/Bohr2A, r.Gradient[2], 1e-12)
	_, err = ReadEngrad(strings.NewReader("#\n 3\n#\n -5.0\n 0.1\n"))
	require.Error(Te, err)
	_, ok := err.(Error)
	assert.True(Te, ok)
}

func water(Te *testing.T) *chem.Topology {
	ats := []*chem.Atom{chem.NewAtom("O"), chem.NewAtom("H"), chem.NewAtom("H")}
	top, err := chem.NewTopology(ats, 0, 0)
	require.NoError(Te, err)
	return top
}

// TestXTBFake runs XTB against a script that only writes the engrad file xtb would.
func TestXTBFake(Te *testing.T) {
	if runtime.GOOS == "windows" {
		Te.Skip("needs a POSIX shell")
	}
	dir := Te.TempDir()
	script := filepath.Join(dir, "fakextb")
	body := "#!/bin/sh\necho \"$@\" > args.txt\ncat > gostring.engrad <<'EOF'\n" + engrad + "EOF\necho normal termination of xtb\n"
	require.NoError(Te, os.WriteFile(script, []byte(body), 0o755))
	x := NewXTB(water(Te), nil)
	x.Command = script
	x.Scratch = dir
	x.Dielectric = 80
	xyz := []float64{0, 0, -0.39, 0, 0.757, 0.196, 0, -0.757, 0.196}
	r, err := x.Compute(context.Background(), xyz)
	require.NoError(Te, err)
	assert.InDelta(Te, -5.070544440612, r.Energy, 1e-12)
	assert.Len(Te, r.Gradient, 9)
	assert.Contains(Te, x.args("gostring"), "--alpb")

	x.Command = filepath.Join(dir, "does-not-exist")
	_, err = x.Compute(context.Background(), xyz)
	require.Error(Te, err)
	_, err = x.Compute(context.Background(), xyz[:6])
	require.Error(Te, err)
}
