/*
 * engine.go, part of gostring.
 *
 * Copyright 2024 Raul Mera Adasme <rauldotmeraatusachdotcl>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU Lesser General Public License as
 * published by the Free Software Foundation; either version 2.1 of the
 * License, or (at your option) any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU Lesser General
 * Public License along with this program.  If not, see
 * <http://www.gnu.org/licenses/>.
 *
 */

package ic

import (
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"

	"go.uber.org/zap"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// GInverseMethod selects how the generalized inverse of the G matrix is obtained.
type GInverseMethod int

const (
	SVD GInverseMethod = iota
	Eig
)

const (
	DefaultCacheWarn = 1000
	singularCutoff   = 1e-6 //singular values/eigenvalues of G under this are dropped
	svdRetries       = 10
	svdNoise         = 1e-2

	cartMaxIter   = 50
	cartMaxFail   = 5
	cartConverged = 1e-6
	cartBroken    = 1e-1
	cartApprox    = 1e-3
)

type cartMemo struct {
	xyz, dq, result []float64
	bork            bool
}

// Engine transforms between cartesian coordinates and the primitives of a PrimitiveSet.
// It keeps a memo of Wilson B-matrices keyed by the exact bytes of the geometry. The memo
// is never evicted, a warning is logged when it grows past the warning size. Use ClearCache
// to empty it.
type Engine struct {
	prims     *PrimitiveSet
	natoms    int
	method    GInverseMethod
	bcache    map[string]*mat.Dense
	border    []string
	cacheWarn int
	warned    bool
	memo      *cartMemo
	rng       *rand.Rand
	factorize func(G *mat.Dense) (*mat.SVD, bool)
	log       *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger of the engine.
func WithLogger(l *zap.Logger) Option {
	return func(E *Engine) {
		if l != nil {
			E.log = l
		}
	}
}

// WithGInverse sets the method used to invert the G matrix.
func WithGInverse(m GInverseMethod) Option {
	return func(E *Engine) { E.method = m }
}

// WithCacheWarn sets the number of cached B-matrices that triggers a warning.
func WithCacheWarn(n int) Option {
	return func(E *Engine) { E.cacheWarn = n }
}

// WithSeed sets the seed for the perturbations used when the SVD fails.
func WithSeed(seed int64) Option {
	return func(E *Engine) { E.rng = rand.New(rand.NewSource(seed)) }
}

func defaultFactorize(G *mat.Dense) (*mat.SVD, bool) {
	var svd mat.SVD
	ok := svd.Factorize(G, mat.SVDThin)
	return &svd, ok
}

// NewEngine returns an Engine for a molecule with natoms atoms and the primitives in prims.
func NewEngine(prims *PrimitiveSet, natoms int, opts ...Option) *Engine {
	E := &Engine{
		prims:     prims,
		natoms:    natoms,
		bcache:    make(map[string]*mat.Dense),
		cacheWarn: DefaultCacheWarn,
		rng:       rand.New(rand.NewSource(1)),
		factorize: defaultFactorize,
		log:       zap.NewNop(),
	}
	for _, o := range opts {
		o(E)
	}
	return E
}

// Copy returns a new Engine with the same primitives and settings, and empty caches.
func (E *Engine) Copy() *Engine {
	return &Engine{
		prims:     E.prims,
		natoms:    E.natoms,
		method:    E.method,
		bcache:    make(map[string]*mat.Dense),
		cacheWarn: E.cacheWarn,
		rng:       rand.New(rand.NewSource(E.rng.Int63())),
		factorize: E.factorize,
		log:       E.log,
	}
}

// Prims returns the primitive set of the engine.
func (E *Engine) Prims() *PrimitiveSet { return E.prims }

// NAtoms returns the number of atoms the engine works with.
func (E *Engine) NAtoms() int { return E.natoms }

// NPrims returns the number of primitives.
func (E *Engine) NPrims() int { return E.prims.Len() }

func (E *Engine) check(xyz []float64) {
	if len(xyz) != 3*E.natoms {
		panic(ErrWrongLength)
	}
}

// Calculate returns the values of all primitives at xyz.
func (E *Engine) Calculate(xyz []float64) []float64 {
	E.check(xyz)
	return E.prims.Values(xyz)
}

// CalcDiff returns the primitive-wise difference xyz1-xyz2.
func (E *Engine) CalcDiff(xyz1, xyz2 []float64) []float64 {
	E.check(xyz1)
	E.check(xyz2)
	return E.prims.Diffs(xyz1, xyz2)
}

func fingerprint(xyz []float64) string {
	b := make([]byte, 8*len(xyz))
	for i, v := range xyz {
		binary.LittleEndian.PutUint64(b[8*i:], math.Float64bits(v))
	}
	return string(b)
}

func (E *Engine) wilsonB(xyz []float64) *mat.Dense {
	n := E.prims.Len()
	B := mat.NewDense(n, len(xyz), nil)
	for i := 0; i < n; i++ {
		B.SetRow(i, E.prims.At(i).Derivative(xyz))
	}
	return B
}

// WilsonB returns the Jacobian of the primitives with respect to the cartesian coordinates,
// with one row per primitive. Identical geometries return the same matrix, which must not
// be modified.
func (E *Engine) WilsonB(xyz []float64) *mat.Dense {
	E.check(xyz)
	key := fingerprint(xyz)
	if B, ok := E.bcache[key]; ok {
		return B
	}
	B := E.wilsonB(xyz)
	E.bcache[key] = B
	E.border = append(E.border, key)
	if len(E.border) > E.cacheWarn && !E.warned {
		E.log.Warn("B-matrix cache is large, consider clearing it", zap.Int("entries", len(E.border)))
		E.warned = true
	}
	return B
}

// CacheLen returns the number of cached B-matrices.
func (E *Engine) CacheLen() int { return len(E.border) }

// ClearCache empties the B-matrix memo and the NewCartesian memo.
func (E *Engine) ClearCache() {
	E.bcache = make(map[string]*mat.Dense)
	E.border = nil
	E.warned = false
	E.memo = nil
}

// GMatrix returns B*B^T at xyz.
func (E *Engine) GMatrix(xyz []float64) *mat.Dense {
	B := E.WilsonB(xyz)
	n, _ := B.Dims()
	G := mat.NewDense(n, n, nil)
	G.Mul(B, B.T())
	return G
}

// GInverse returns the generalized inverse of the G matrix at xyz.
func (E *Engine) GInverse(xyz []float64) (*mat.Dense, error) {
	if E.method == Eig {
		return E.gInverseEig(xyz)
	}
	return E.gInverseSVD(xyz)
}

func (E *Engine) gInverseSVD(xyz []float64) (*mat.Dense, error) {
	G := E.GMatrix(xyz)
	svd, ok := E.factorize(G)
	for try := 1; !ok; try++ {
		if try > svdRetries {
			return nil, &Error{message: fmt.Sprintf("SVD of the G matrix failed after %d perturbations", svdRetries), deco: []string{"GInverse"}, critical: true, cause: ErrRetryExhausted}
		}
		E.log.Warn("SVD of the G matrix failed, perturbing geometry", zap.Int("try", try))
		pert := make([]float64, len(xyz))
		for i, v := range xyz {
			pert[i] = v + svdNoise*E.rng.Float64()
		}
		B := E.wilsonB(pert) //not cached
		n, _ := B.Dims()
		G = mat.NewDense(n, n, nil)
		G.Mul(B, B.T())
		svd, ok = E.factorize(G)
	}
	var U, V mat.Dense
	svd.UTo(&U)
	svd.VTo(&V)
	s := svd.Values(nil)
	sinv := make([]float64, len(s))
	for i, v := range s {
		if math.Abs(v) > singularCutoff {
			sinv[i] = 1 / v
		}
	}
	n := len(s)
	Ginv := mat.NewDense(n, n, nil)
	Ginv.Product(&V, mat.NewDiagDense(n, sinv), U.T())
	return Ginv, nil
}

func (E *Engine) gInverseEig(xyz []float64) (*mat.Dense, error) {
	G := E.GMatrix(xyz)
	n, _ := G.Dims()
	sym := mat.NewSymDense(n, nil)
	for i := 0; i < n; i++ {
		for j := i; j < n; j++ {
			sym.SetSym(i, j, G.At(i, j))
		}
	}
	var es mat.EigenSym
	if ok := es.Factorize(sym, true); !ok {
		return nil, &Error{message: "Eigendecomposition of the G matrix failed", deco: []string{"GInverse"}, critical: true, cause: ErrRetryExhausted}
	}
	vals := es.Values(nil)
	var V mat.Dense
	es.VectorsTo(&V)
	inv := make([]float64, n)
	for i, v := range vals {
		if math.Abs(v) > singularCutoff {
			inv[i] = 1 / v
		}
	}
	Ginv := mat.NewDense(n, n, nil)
	Ginv.Product(&V, mat.NewDiagDense(n, inv), V.T())
	return Ginv, nil
}

// CalcGrad returns the gradient in primitive coordinates, G^-1*B*gx, for the cartesian
// gradient gx at xyz.
func (E *Engine) CalcGrad(xyz, gx []float64) ([]float64, error) {
	E.check(gx)
	B := E.WilsonB(xyz)
	Ginv, err := E.GInverse(xyz)
	if err != nil {
		err.(*Error).Decorate("CalcGrad")
		return nil, err
	}
	n, _ := B.Dims()
	Bg := mat.NewVecDense(n, nil)
	Bg.MulVec(B, mat.NewVecDense(len(gx), gx))
	gq := mat.NewVecDense(n, nil)
	gq.MulVec(Ginv, Bg)
	return gq.RawVector().Data, nil
}

func equalSlices(a, b []float64) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func copySlice(a []float64) []float64 {
	r := make([]float64, len(a))
	copy(r, a)
	return r
}

// NewCartesian returns the cartesian coordinates obtained by displacing xyz by dq in the
// primitive space. The displacement is found by a damped iteration, each step being
// B^T*G^-1*dq, and checking the actual change in the primitives after every step.
// If the error in the displacement is larger than 0.1 at the end, the geometry of the first
// step is returned and bork is true. The error is only non-nil if the G matrix
// could not be inverted.
func (E *Engine) NewCartesian(xyz, dq []float64) (newxyz []float64, bork bool, err error) {
	E.check(xyz)
	if len(dq) != E.prims.Len() {
		panic(ErrWrongLength)
	}
	if E.memo != nil && equalSlices(E.memo.xyz, xyz) && equalSlices(E.memo.dq, dq) {
		return copySlice(E.memo.result), E.memo.bork, nil
	}
	finish := func(iter int, rmsdt, ndqt float64, xyzsave, xyziter1 []float64) ([]float64, bool, error) {
		res := xyzsave
		bork := false
		if ndqt > cartBroken {
			E.log.Debug("failed to obtain cartesian coordinates", zap.Int("iterations", iter), zap.Float64("rmsd", rmsdt), zap.Float64("dq_error", ndqt))
			res = xyziter1
			bork = true
		} else if ndqt > cartApprox {
			E.log.Debug("approximate cartesian coordinates obtained", zap.Int("iterations", iter), zap.Float64("rmsd", rmsdt), zap.Float64("dq_error", ndqt))
		}
		E.memo = &cartMemo{xyz: copySlice(xyz), dq: copySlice(dq), result: copySlice(res), bork: bork}
		return copySlice(res), bork, nil
	}
	xyz1 := copySlice(xyz)
	dq1 := copySlice(dq)
	damp := 1.0
	fails := 0
	var xyzsave, xyziter1 []float64
	var rmsdt, ndqt float64
	for iter := 1; ; iter++ {
		B := E.WilsonB(xyz1)
		Ginv, err := E.GInverse(xyz1)
		if err != nil {
			err.(*Error).Decorate("NewCartesian")
			return nil, true, err
		}
		n, _ := B.Dims()
		gdq := mat.NewVecDense(n, nil)
		gdq.MulVec(Ginv, mat.NewVecDense(n, dq1))
		dx := mat.NewVecDense(len(xyz1), nil)
		dx.MulVec(B.T(), gdq)
		xyz2 := copySlice(xyz1)
		floats.AddScaled(xyz2, damp, dx.RawVector().Data)
		if iter == 1 {
			xyzsave = copySlice(xyz2)
			xyziter1 = copySlice(xyz2)
		}
		actual := E.CalcDiff(xyz2, xyz1)
		step := make([]float64, len(xyz2))
		floats.SubTo(step, xyz2, xyz1)
		rmsd := math.Sqrt(floats.Dot(step, step) / float64(len(step)))
		resid := make([]float64, len(dq1))
		floats.SubTo(resid, dq1, actual)
		ndq := floats.Norm(resid, 2)
		if iter > 1 {
			if ndq > ndqt {
				damp /= 2
				fails++
			} else {
				fails = 0
				damp = math.Min(damp*1.2, 1.0)
				rmsdt = rmsd
				ndqt = ndq
				xyzsave = copySlice(xyz2)
			}
		} else {
			rmsdt = rmsd
			ndqt = ndq
		}
		if rmsd < cartConverged || ndq < cartConverged || fails >= cartMaxFail || iter == cartMaxIter {
			return finish(iter, rmsdt, ndqt, xyzsave, xyziter1)
		}
		dq1 = resid
		xyz1 = xyz2
	}
}
