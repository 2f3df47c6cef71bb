package v3

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlatRoundTrip(Te *testing.T) {
	a := []float64{1.0, 2.0, 3, 4, 5, 6, 7, 8, 9}
	A, err := FromFlat(a)
	require.NoError(Te, err)
	assert.Equal(Te, 3, A.NVecs())
	A.Set(0, 0, 100)
	assert.Equal(Te, 1.0, a[0], "FromFlat must copy its input")
	assert.Equal(Te, []float64{100, 2, 3, 4, 5, 6, 7, 8, 9}, A.Flat())
}

func TestNewMatrixBadLength(Te *testing.T) {
	_, err := NewMatrix([]float64{1, 2, 3, 4})
	require.Error(Te, err)
	_, ok := err.(Error)
	assert.True(Te, ok)
}

func TestSomeVecs(Te *testing.T) {
	a := []float64{1.0, 2.0, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18}
	A, err := NewMatrix(a)
	require.NoError(Te, err)
	B := Zeros(3)
	B.SomeVecs(A, []int{1, 3, 5})
	assert.Equal(Te, []float64{4, 5, 6, 10, 11, 12, 16, 17, 18}, B.Flat())
	assert.Panics(Te, func() { Zeros(2).SomeVecs(A, []int{1, 3, 5}) })
}

func TestAddSubVec(Te *testing.T) {
	A, _ := NewMatrix([]float64{1, 1, 1, 2, 2, 2})
	v, _ := NewMatrix([]float64{1, 2, 3})
	B := Zeros(2)
	B.AddVec(A, v)
	assert.Equal(Te, []float64{2, 3, 4, 3, 4, 5}, B.Flat())
	B.SubVec(B, v)
	assert.Equal(Te, A.Flat(), B.Flat())
	assert.InDelta(Te, math.Sqrt(3), A.Distance(0, 1), 1e-12)
}
