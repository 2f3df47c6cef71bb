/*
 * run.go, part of gostring
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

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/google/uuid"
	chem "github.com/rmera/gostring"
	"github.com/rmera/gostring/chemplot"
	"github.com/rmera/gostring/gsm"
	"github.com/rmera/gostring/ic"
	"github.com/rmera/gostring/opt"
	"github.com/rmera/gostring/traj/stf"
	"go.uber.org/zap"
)

// runner carries out one string calculation.
type runner struct {
	cfg *Config
	log *zap.Logger
	id  string
}

func newRunner(cfg *Config, log *zap.Logger) *runner {
	id := uuid.NewString()
	return &runner{cfg: cfg, log: log.With(zap.String("run", id[:8])), id: id}
}

func (r *runner) prefix() string {
	if r.cfg.Output != "" {
		return r.cfg.Output
	}
	return "gostring-" + r.id[:8]
}

// readMolecule reads an xyz file and returns its topology and the geometry of its
// last frame.
func (r *runner) readMolecule(name string) (*chem.Topology, []float64, error) {
	mol, err := chem.XYZFileRead(name)
	if err != nil {
		return nil, nil, err
	}
	mol.SetCharge(r.cfg.Charge)
	mol.SetUnpaired(r.cfg.Unpaired)
	return mol.Topology, mol.Frame(mol.LenFrames() - 1), nil
}

// run grows and optimizes a string from reactant, to product if given, or along
// the driving coordinates otherwise. The path is written to prefix.xyz, the
// snapshots to prefix.stf and the energy profiles to prefix.png.
func (r *runner) run(ctx context.Context, reactant, product string) error {
	top, rxyz, err := r.readMolecule(reactant)
	if err != nil {
		return err
	}
	geoms := [][]float64{rxyz}
	if product != "" {
		ptop, pxyz, err := r.readMolecule(product)
		if err != nil {
			return err
		}
		if ptop.Len() != top.Len() {
			return fmt.Errorf("reactant has %d atoms, product %d", top.Len(), ptop.Len())
		}
		geoms = append(geoms, pxyz)
	}
	dc, err := r.cfg.DrivingCoords()
	if err != nil {
		return err
	}
	if product == "" && len(dc) == 0 {
		return errors.New("single-ended runs need driving coordinates")
	}
	prims, err := ic.Build(top, geoms, ic.BuildOptions{TRIC: r.cfg.TRIC, Extra: gsm.DrivingPrimitives(dc), Logger: r.log})
	if err != nil {
		return err
	}
	l, err := r.cfg.LevelOfTheory(top, r.log)
	if err != nil {
		return err
	}
	prefix := r.prefix()
	header := map[string]string{"run": r.id, "reactant": reactant}
	if product != "" {
		header["product"] = product
	}
	w, err := stf.NewWriter(prefix+".stf", top.Len(), header)
	if err != nil {
		return err
	}
	defer w.Close()

	opts := r.cfg.GSM
	opts.Optimizer = opt.Factory(&r.cfg.Opt, r.log)
	opts.Snapshots = w
	opts.Logger = r.log
	eng := func() *ic.Engine { return ic.NewEngine(prims, top.Len(), ic.WithLogger(r.log)) }
	rnode := gsm.NewNode(0, eng(), l, geoms[0])
	var S *gsm.String
	if product != "" {
		S, err = gsm.NewDE(ctx, top, rnode, gsm.NewNode(opts.Nodes-1, eng(), l, geoms[1]), &opts)
	} else {
		S, err = gsm.NewSE(ctx, top, rnode, dc, &opts)
	}
	if err != nil {
		return err
	}
	if r.cfg.Restart != "" {
		path, err := restartPath(r.cfg.Restart)
		if err != nil {
			return err
		}
		r.log.Info("restarting", zap.String("from", r.cfg.Restart), zap.Int("geometries", len(path)))
		if err := S.SetupFromGeometries(ctx, path); err != nil {
			return err
		}
	}
	r.log.Info("starting run", zap.Int("primitives", prims.Len()), zap.Int("rtype", r.cfg.Rtype))
	runErr := S.Run(ctx, r.cfg.Rtype)
	if runErr != nil && !errors.Is(runErr, gsm.ErrBudget) {
		return runErr
	}
	if runErr != nil {
		r.log.Warn("run did not converge", zap.Error(runErr))
	}
	if err := writePath(prefix+".xyz", top, S); err != nil {
		return err
	}
	if err := w.Close(); err != nil {
		return err
	}
	ts := S.TSNode()
	r.log.Info("run finished",
		zap.Int("ts_node", ts),
		zap.Float64("barrier", S.Energies()[ts]),
		zap.Bool("ended_early", S.EndedEarly()),
		zap.String("path", prefix+".xyz"))
	if err := plotFile(prefix+".stf", prefix+".png", "Energy profile", 5); err != nil {
		r.log.Warn("could not plot the profile", zap.Error(err))
	}
	return runErr
}

// writePath writes the populated nodes of S to name, with the node energies
// (kcal/mol) as comments.
func writePath(name string, top *chem.Topology, S *gsm.String) error {
	f, err := os.Create(name)
	if err != nil {
		return err
	}
	E := S.Energies()
	for i, nn := 0, S.N(); i < nn; i++ {
		n := S.Node(i)
		if n == nil {
			continue
		}
		if err := chem.XYZWrite(f, top, n.XYZ(), fmt.Sprintf("%.6f node %d", E[i], i)); err != nil {
			f.Close()
			return err
		}
	}
	return f.Close()
}

// restartPath reads the geometries of a previous path, either from an xyz file
// with one frame per node or from the last snapshot of a stf file.
func restartPath(name string) ([][]float64, error) {
	if strings.HasSuffix(strings.ToLower(name), ".xyz") {
		mol, err := chem.XYZFileRead(name)
		if err != nil {
			return nil, err
		}
		path := make([][]float64, mol.LenFrames())
		for i := range path {
			path[i] = mol.Frame(i)
		}
		return path, nil
	}
	s, _, err := stf.Last(name)
	if err != nil {
		return nil, err
	}
	return s.Geometries, nil
}

// readSnapshots returns the optimization snapshots in a stf file, keeping at most
// keep of them, evenly spaced, plus the last one. The growth snapshots are
// skipped unless there is nothing else.
func readSnapshots(name string, keep int) ([]*gsm.Snapshot, error) {
	rd, _, err := stf.Open(name)
	if err != nil {
		return nil, err
	}
	defer rd.Close()
	var all, growth []*gsm.Snapshot
	for {
		s, err := rd.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if s.Stage == "growth" {
			growth = append(growth, s)
			continue
		}
		all = append(all, s)
	}
	if len(all) == 0 {
		all = growth
	}
	if keep <= 0 || len(all) <= keep {
		return all, nil
	}
	every := (len(all) + keep - 1) / keep
	var ret []*gsm.Snapshot
	for i := 0; i < len(all)-1; i += every {
		ret = append(ret, all[i])
	}
	return append(ret, all[len(all)-1]), nil
}

func plotFile(in, out, title string, keep int) error {
	snaps, err := readSnapshots(in, keep)
	if err != nil {
		return err
	}
	return chemplot.SaveProfile(snaps, title, out)
}
