package main

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	chem "github.com/rmera/gostring"
	"github.com/rmera/gostring/gsm"
	"github.com/rmera/gostring/lot"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const ffConfig = `
rtype: 0
driving:
  - ADD 1 3 1.2
gsm:
  nodes: 7
  workers: 2
  node_timeout: 30s
  calibration:
    noise: 2.0
opt:
  dmax: 0.05
lot:
  program: ff
  terms:
    - {type: bond, atoms: [1, 2], k: 0.5, eq: 1.0}
    - {type: bond, atoms: [2, 3], k: 0.5, eq: 1.0}
    - {type: morse, atoms: [1, 3], d: 0.05, alpha: 1.8, re: 1.2}
`

func writeFile(Te *testing.T, name, content string) string {
	Te.Helper()
	p := filepath.Join(Te.TempDir(), name)
	require.NoError(Te, os.WriteFile(p, []byte(content), 0o644))
	return p
}

func TestLoadConfig(Te *testing.T) {
	cfg, err := LoadConfig(writeFile(Te, "run.yaml", ffConfig))
	require.NoError(Te, err)
	assert.Equal(Te, gsm.NoClimb, cfg.Rtype)
	assert.Equal(Te, 7, cfg.GSM.Nodes)
	assert.Equal(Te, 30*time.Second, cfg.GSM.NodeTimeout)
	assert.Equal(Te, 2.0, cfg.GSM.Calibration.Noise)
	assert.Equal(Te, 0.05, cfg.Opt.DMax)
	//untouched values keep their defaults.
	def := gsm.DefaultOptions()
	assert.Equal(Te, def.ConvTol, cfg.GSM.ConvTol)
	assert.Equal(Te, def.Calibration.ClimbTotalGrad, cfg.GSM.Calibration.ClimbTotalGrad)

	dc, err := cfg.DrivingCoords()
	require.NoError(Te, err)
	require.Len(Te, dc, 1)
	top, err := chem.NewTopology([]*chem.Atom{chem.NewAtom("H"), chem.NewAtom("O"), chem.NewAtom("H")}, 0, 0)
	require.NoError(Te, err)
	l, err := cfg.LevelOfTheory(top, zap.NewNop())
	require.NoError(Te, err)
	ff, ok := l.(*lot.ForceField)
	require.True(Te, ok)
	assert.Equal(Te, 3, ff.Len())

	cfg, err = LoadConfig("")
	require.NoError(Te, err)
	assert.Equal(Te, gsm.Climb, cfg.Rtype)
	assert.Equal(Te, "xtb", cfg.LoT.Program)
}

func TestConfigErrors(Te *testing.T) {
	for name, content := range map[string]string{
		"rtype":   "rtype: 5\n",
		"program": "lot:\n  program: orca\n",
		"nodes":   "gsm:\n  nodes: 2\n",
		"yaml":    "gsm: [1, 2\n",
	} {
		_, err := LoadConfig(writeFile(Te, name+".yaml", content))
		assert.Error(Te, err, name)
	}
	_, err := LoadConfig(filepath.Join(Te.TempDir(), "missing.yaml"))
	assert.True(Te, errors.Is(err, os.ErrNotExist))

	for _, t := range []TermConfig{
		{Type: "spring", Atoms: []int{1, 2}},
		{Type: "angle", Atoms: []int{1, 2}},
		{Type: "bond", Atoms: []int{1, 4}},
		{Type: "bond", Atoms: []int{0, 1}},
	} {
		_, err := t.term(3)
		assert.Error(Te, err, t.Type)
	}
	cfg := DefaultConfig()
	cfg.LoT.Program = "ff"
	_, err = cfg.forceField(3)
	assert.Error(Te, err)
}

func TestTermUnits(Te *testing.T) {
	t := TermConfig{Type: "angle", Atoms: []int{1, 2, 3}, K: 0.1, Eq: 90}
	term, err := t.term(3)
	require.NoError(Te, err)
	h, ok := term.(lot.Harmonic)
	require.True(Te, ok)
	assert.InDelta(Te, math.Pi/2, h.Eq, 1e-9)
	//at the equilibrium angle there is no energy.
	xyz := []float64{1, 0, 0, 0, 0, 0, 0, 1, 0}
	assert.InDelta(Te, 0, h.Energy(xyz, make([]float64, 9)), 1e-12)
}

func TestRunSingleEnded(Te *testing.T) {
	dir := Te.TempDir()
	h := math.Sqrt(1 - 0.81)
	xyz := writeFile(Te, "water.xyz", "3\nreactant\n"+
		"H  -0.900000  "+ftoa(h)+"  0.000000\n"+
		"O   0.000000  0.000000  0.000000\n"+
		"H   0.900000  "+ftoa(h)+"  0.000000\n")
	cfg, err := LoadConfig(writeFile(Te, "run.yaml", ffConfig))
	require.NoError(Te, err)
	cfg.Output = filepath.Join(dir, "out")

	r := newRunner(cfg, zap.NewNop())
	err = r.run(context.Background(), xyz, "")
	if err != nil && !errors.Is(err, gsm.ErrBudget) {
		require.NoError(Te, err)
	}
	for _, ext := range []string{".xyz", ".stf"} {
		_, err := os.Stat(cfg.Output + ext)
		assert.NoError(Te, err, ext)
	}
	mol, err := chem.XYZFileRead(cfg.Output + ".xyz")
	require.NoError(Te, err)
	assert.GreaterOrEqual(Te, mol.LenFrames(), 2)
	assert.Equal(Te, 0.0, mol.Energies[0])

	path, err := restartPath(cfg.Output + ".stf")
	require.NoError(Te, err)
	assert.NotEmpty(Te, path)
	path, err = restartPath(cfg.Output + ".xyz")
	require.NoError(Te, err)
	assert.Len(Te, path, mol.LenFrames())

	snaps, err := readSnapshots(cfg.Output+".stf", 3)
	require.NoError(Te, err)
	assert.NotEmpty(Te, snaps)
	assert.LessOrEqual(Te, len(snaps), 4)
}

func TestDoubleEndedNeedsMatchingAtoms(Te *testing.T) {
	a := writeFile(Te, "a.xyz", "2\n\nH 0 0 0\nH 0.74 0 0\n")
	b := writeFile(Te, "b.xyz", "3\n\nH 0 0 0\nH 0.74 0 0\nH 3 0 0\n")
	r := newRunner(DefaultConfig(), zap.NewNop())
	assert.Error(Te, r.run(context.Background(), a, b))
	assert.Error(Te, r.run(context.Background(), a, ""))
}

func ftoa(f float64) string {
	return strconv.FormatFloat(f, 'f', 6, 64)
}
