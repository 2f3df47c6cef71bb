package chem

import (
	"bytes"
	"math"
	"strings"
	"testing"

	v3 "github.com/rmera/gostring/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const waterTraj = `3
-76.4 first
O    0.000000    0.000000    0.000000
H    0.957200    0.000000    0.000000
H   -0.239987    0.926627    0.000000
3
-76.3
O    0.000000    0.000000    0.000000
H    1.000000    0.000000    0.000000
H   -0.300000    0.950000    0.000000
`

func TestXYZReadWrite(Te *testing.T) {
	mol, err := XYZRead(strings.NewReader(waterTraj))
	require.NoError(Te, err)
	assert.Equal(Te, 3, mol.Len())
	assert.Equal(Te, 2, mol.LenFrames())
	assert.Equal(Te, []float64{-76.4, -76.3}, mol.Energies)
	assert.Equal(Te, "O", mol.Atom(0).Symbol)
	assert.InDelta(Te, 16.0, mol.Atom(0).Mass, 1e-9)
	var buf bytes.Buffer
	require.NoError(Te, XYZWrite(&buf, mol.Topology, mol.Frame(1), "-76.3"))
	again, err := XYZRead(&buf)
	require.NoError(Te, err)
	assert.InDeltaSlice(Te, mol.Frame(1), again.Frame(0), 1e-6)
}

func TestXYZReadBad(Te *testing.T) {
	_, err := XYZRead(strings.NewReader("3\n\nO 0 0 0\nH 1 0 0\n"))
	require.Error(Te, err)
	_, ok := err.(CError)
	assert.True(Te, ok)
}

func TestAssignBondsAndFragments(Te *testing.T) {
	mol, err := XYZRead(strings.NewReader(waterTraj + `6

O    0.000000    0.000000    0.000000
H    0.957200    0.000000    0.000000
H   -0.239987    0.926627    0.000000
O    5.000000    0.000000    0.000000
H    5.957200    0.000000    0.000000
H    4.760013    0.926627    0.000000
`))
	require.Error(Te, err, "frames with different atom counts must be rejected")
	assert.Nil(Te, mol)

	dimer, err := XYZRead(strings.NewReader(`6

O    0.000000    0.000000    0.000000
H    0.957200    0.000000    0.000000
H   -0.239987    0.926627    0.000000
O    5.000000    0.000000    0.000000
H    5.957200    0.000000    0.000000
H    4.760013    0.926627    0.000000
`))
	require.NoError(Te, err)
	bonds, err := AssignBonds(dimer.Coords[0], dimer.Topology)
	require.NoError(Te, err)
	assert.Len(Te, bonds, 4)
	frags := Fragments(dimer.Topology)
	require.Len(Te, frags, 2)
	assert.Equal(Te, []int{0, 1, 2}, frags[0])
	i, j, d := ClosestPair(dimer.Coords[0], frags[0], frags[1])
	assert.Equal(Te, 1, i)
	assert.Equal(Te, 5, j)
	assert.Less(Te, d, 5.0)
}

func TestSuper(Te *testing.T) {
	templa, _ := v3.NewMatrix([]float64{0, 0, 0, 1, 0, 0, 0, 1, 0, 0, 0, 1})
	//rotate 90 degrees around z and translate.
	test, _ := v3.NewMatrix([]float64{2, 2, 2, 2, 3, 2, 1, 2, 2, 2, 2, 3})
	sup, err := Super(test, templa, nil)
	require.NoError(Te, err)
	rmsd, err := RMSD(sup, templa)
	require.NoError(Te, err)
	assert.Less(Te, rmsd, 1e-8)
	assert.InDelta(Te, math.Pi, Deg2Rad(180), 1e-12)
}

func TestCenterOfMass(Te *testing.T) {
	geo, _ := v3.NewMatrix([]float64{0, 0, 0, 1, 0, 0, 0, 1, 0})
	com, err := CenterOfMass(geo, nil)
	require.NoError(Te, err)
	assert.InDeltaSlice(Te, []float64{1.0 / 3, 1.0 / 3, 0}, com.Flat(), 1e-12)
	assert.Equal(Te, []float64{0, 0, 0, 1, 0, 0, 0, 1, 0}, geo.Flat(), "the geometry must not change")

	com, err = CenterOfMass(geo, []float64{2, 1, 1})
	require.NoError(Te, err)
	assert.InDeltaSlice(Te, []float64{0.25, 0.25, 0}, com.Flat(), 1e-12)

	_, err = CenterOfMass(geo, []float64{1, 1})
	assert.Error(Te, err)
	_, err = CenterOfMass(geo, []float64{0, 0, 0})
	assert.Error(Te, err)
}
