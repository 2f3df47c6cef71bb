/*
 * string.go, part of gostring.
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

package gsm

import (
	"context"
	"fmt"
	"math"

	chem "github.com/rmera/gostring"
	"github.com/rmera/gostring/lot"
	"go.uber.org/zap"
)

// String is a chain of N node slots. Slots [0,nR) are grown from the reactant and
// [N-nP,N) from the product. The slots in between are empty until the string is
// fully grown, which happens when nR+nP==N. Nodes are addressed by index, and each
// slot has its own optimizer.
type String struct {
	opts *Options
	cal  Calibration
	log  *zap.Logger
	top  *chem.Topology

	nodes  []*Node
	opt    []Optimizer
	active []bool
	nR, nP int

	driving  []DrivingCoord
	tangents [][]float64
	dqmaga   []float64

	doneGrowing bool
	stage       stage
}

// stage holds the flags and counters of the optimization stage controller.
type stage struct {
	climber, finder bool //what the current run allows
	climb, find     bool

	nclimb           int
	hessrcount       int
	hessCounter      int
	hessNegStreak    int //TS iterations with extra negative eigenvalues, minus those with one
	noptIntermediate int
	flagIntermediate bool
	endEarly         bool
	added            bool
	newClimbScale    float64
	pTSnode          int
	emax, emaxp      float64
	dEIter           float64
	tsE0             float64
}

func newString(top *chem.Topology, opts *Options) (*String, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if opts.Nodes < 3 {
		return nil, newError(KindInvariant, fmt.Sprintf("a string needs at least 3 nodes, %d requested", opts.Nodes), "newString", nil)
	}
	if opts.Optimizer == nil {
		return nil, newError(KindInvariant, "no optimizer factory given", "newString", nil)
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	S := &String{
		opts:     opts,
		cal:      opts.Calibration,
		log:      log,
		top:      top,
		nodes:    make([]*Node, opts.Nodes),
		opt:      make([]Optimizer, opts.Nodes),
		active:   make([]bool, opts.Nodes),
		tangents: make([][]float64, opts.Nodes),
		dqmaga:   make([]float64, opts.Nodes),
	}
	for i := range S.opt {
		S.opt[i] = opts.Optimizer(i)
	}
	S.stage.newClimbScale = 2
	return S, nil
}

// NewDE returns a double-ended string between reactant and product. Both nodes
// must use the same primitives, and are evaluated here.
func NewDE(ctx context.Context, top *chem.Topology, reactant, product *Node, opts *Options) (*String, error) {
	S, err := newString(top, opts)
	if err != nil {
		return nil, errDecorate(err, "NewDE")
	}
	if reactant.eng.NPrims() != product.eng.NPrims() {
		return nil, newError(KindInvariant, "reactant and product have different primitive sets", "NewDE", nil)
	}
	reactant.ID = 0
	product.ID = S.N() - 1
	S.nodes[0] = reactant
	S.nodes[S.N()-1] = product
	S.nR, S.nP = 1, 1
	if err := S.evaluate(ctx, []int{0, S.N() - 1}); err != nil {
		return nil, errDecorate(err, "NewDE")
	}
	return S, nil
}

// NewSE returns a single-ended string grown from reactant toward the targets of
// the driving coordinates dc. The primitives of reactant must contain every
// driven primitive (see DrivingPrimitives).
func NewSE(ctx context.Context, top *chem.Topology, reactant *Node, dc []DrivingCoord, opts *Options) (*String, error) {
	S, err := newString(top, opts)
	if err != nil {
		return nil, errDecorate(err, "NewSE")
	}
	if len(dc) == 0 {
		return nil, newError(KindInvariant, "single-ended string without driving coordinates", "NewSE", nil)
	}
	S.driving = dc
	reactant.ID = 0
	S.nodes[0] = reactant
	S.nR, S.nP = 1, 0
	_, bdist, err := DrivingTangent(reactant, top, dc)
	if err != nil {
		return nil, errDecorate(err, "NewSE")
	}
	reactant.bdist = bdist
	if err := S.evaluate(ctx, []int{0}); err != nil {
		return nil, errDecorate(err, "NewSE")
	}
	return S, nil
}

// SingleEnded is true for strings grown with driving coordinates.
func (S *String) SingleEnded() bool { return S.driving != nil }

// N returns the number of node slots.
func (S *String) N() int { return len(S.nodes) }

// NR returns the number of nodes grown from the reactant, including it.
func (S *String) NR() int { return S.nR }

// NP returns the number of nodes grown from the product, including it.
func (S *String) NP() int { return S.nP }

// Grown is true when every slot is populated.
func (S *String) Grown() bool { return S.nR+S.nP == S.N() }

// Node returns the node in slot i, or nil if the slot is empty.
func (S *String) Node(i int) *Node { return S.nodes[i] }

// Active is true if slot i will be optimized in the next iteration.
func (S *String) Active(i int) bool { return S.active[i] }

// Optimizer returns the optimizer of slot i.
func (S *String) Optimizer(i int) Optimizer { return S.opt[i] }

// Tangent returns the last tangent computed for slot i, or nil.
func (S *String) Tangent(i int) []float64 { return S.tangents[i] }

// Climbing is true while the peak node climbs.
func (S *String) Climbing() bool { return S.stage.climb }

// Finding is true during the exact transition state search.
func (S *String) Finding() bool { return S.stage.find }

// EndedEarly is true if the optimization stopped because of a persistent intermediate.
func (S *String) EndedEarly() bool { return S.stage.endEarly }

// Topology returns the topology of the molecule.
func (S *String) Topology() *chem.Topology { return S.top }

// populated returns the indexes of the populated slots.
func (S *String) populated() []int {
	var r []int
	for i, n := range S.nodes {
		if n != nil {
			r = append(r, i)
		}
	}
	return r
}

// Energies returns the energy of every slot in kcal/mol, relative to the first
// node. Empty slots have 0.
func (S *String) Energies() []float64 {
	E := make([]float64, S.N())
	e0 := S.nodes[0].energy
	for i, n := range S.nodes {
		if n != nil {
			E[i] = (n.energy - e0) * lot.KcalMolPerHartree
		}
	}
	return E
}

// TSNode returns the index of the highest energy node. For penalty surfaces the
// mean of the two states is used instead of the penalized energy.
func (S *String) TSNode() int {
	E := S.Energies()
	if S.nodes[0].lot.Surface() == lot.PenaltySurface {
		ref := mean(S.nodes[0].states)
		for i, n := range S.nodes {
			if n != nil && len(n.states) > 0 {
				E[i] = (mean(n.states) - ref) * lot.KcalMolPerHartree
			}
		}
	}
	ts := 0
	for i, n := range S.nodes {
		if n != nil && E[i] > E[ts] {
			ts = i
		}
	}
	return ts
}

func mean(v []float64) float64 {
	if len(v) == 0 {
		return 0
	}
	s := 0.0
	for _, x := range v {
		s += x
	}
	return s / float64(len(v))
}

// Geometries returns copies of the geometries of the populated slots, in order.
func (S *String) Geometries() [][]float64 {
	var r [][]float64
	for _, n := range S.nodes {
		if n != nil {
			r = append(r, n.XYZ())
		}
	}
	return r
}

// setActive marks the slots from nR-1 and N-nP as active, and the rest as inactive.
// Endpoints are never active.
func (S *String) setActive(nR1, nP1 int) {
	for i := range S.active {
		S.active[i] = false
	}
	for _, i := range []int{nR1, nP1} {
		if i > 0 && i < S.N()-1 && S.nodes[i] != nil {
			S.active[i] = true
		}
	}
}

// evaluate computes, in parallel, the nodes in idx that have not been evaluated.
func (S *String) evaluate(ctx context.Context, idx []int) error {
	var todo []int
	for _, i := range idx {
		if S.nodes[i] != nil && !S.nodes[i].computed {
			todo = append(todo, i)
		}
	}
	return S.parallel(ctx, todo, func(ctx context.Context, i int) error {
		return S.nodes[i].Evaluate(ctx)
	})
}

// metrics returns the total gradient, the RMS of the node gradients and their sum,
// over the interior nodes.
func (S *String) metrics() (totalgrad, gradrms, sumgradrms float64) {
	n := 0
	natoms := S.nodes[0].eng.NAtoms()
	dof := math.Sqrt(float64(max(3*natoms-6, 1)))
	for i := 1; i < S.N()-1; i++ {
		nd := S.nodes[i]
		if nd == nil {
			continue
		}
		g := nd.gradRMS
		totalgrad += g * dof
		gradrms += g * g
		sumgradrms += g
		n++
	}
	if n > 0 {
		gradrms = math.Sqrt(gradrms / float64(n))
	}
	return totalgrad, gradrms, sumgradrms
}

func (S *String) snapshot(label string, iter int) {
	if S.opts.Snapshots == nil {
		return
	}
	snap := &Snapshot{
		Stage:     label,
		Iteration: iter,
		Energies:  make([]float64, 0, S.N()),
	}
	E := S.Energies()
	ts := S.TSNode()
	for i, n := range S.nodes {
		if n == nil {
			continue
		}
		if i == ts {
			snap.TSNode = len(snap.Geometries)
		}
		snap.Geometries = append(snap.Geometries, n.XYZ())
		snap.Energies = append(snap.Energies, E[i])
		snap.GradRMS = append(snap.GradRMS, n.gradRMS)
	}
	if err := S.opts.Snapshots.WriteSnapshot(snap); err != nil {
		S.log.Warn("could not write snapshot", zap.String("stage", label), zap.Int("iteration", iter), zap.Error(err))
	}
}
