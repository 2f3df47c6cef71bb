/*
 * xtb.go, part of gostring.
 *
 * Copyright 2016 Raul Mera <rmera{at}chemDOThelsinkiDOTfi>
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
//In order to use this part of the library you need the xtb program, which must be obtained from Prof. Stefan Grimme's group.
//Please cite the the xtb references if you used the program.

package lot

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"

	"github.com/google/uuid"
	chem "github.com/rmera/gostring"
	"go.uber.org/zap"
)

// XTB runs the xtb program for each energy/gradient request. Each call uses its own
// scratch directory, so concurrent calls are safe.
type XTB struct {
	Command    string
	Method     string //gfn0, gfn1, gfn2 or gfnff
	NCPU       int
	Dielectric float64 //selects an ALPB solvent, 0 for gas phase
	Scratch    string  //parent of the scratch directories, the system temporary directory if empty
	Keep       bool    //keep the scratch directories
	top        *chem.Topology
	log        *zap.Logger
}

// NewXTB returns an XTB level of theory for the molecule top, with default settings.
func NewXTB(top *chem.Topology, log *zap.Logger) *XTB {
	if log == nil {
		log = zap.NewNop()
	}
	return &XTB{
		Command: "xtb",
		Method:  "gfn2",
		NCPU:    max(runtime.NumCPU()/2, 1),
		top:     top,
		log:     log,
	}
}

func (X *XTB) DoCoupling() bool     { return false }
func (X *XTB) Surface() SurfaceKind { return SingleSurface }

func (X *XTB) args(inputname string) []string {
	args := []string{inputname + ".xyz", "--grad",
		"--chrg", strconv.Itoa(X.top.Charge()),
		"--uhf", strconv.Itoa(X.top.Unpaired()),
	}
	if X.NCPU > 1 {
		args = append(args, "-P", strconv.Itoa(X.NCPU))
	}
	switch X.Method {
	case "gfnff":
		args = append(args, "--gfnff")
	case "gfn0", "gfn1", "gfn2":
		args = append(args, "--gfn", strings.TrimPrefix(X.Method, "gfn"))
	default:
		args = append(args, "--gfn", "2")
	}
	if X.Dielectric > 0 && X.Method != "gfn0" { //gfn0 doesn't support implicit solvation
		if solvent, ok := dielectric2Solvent[int(X.Dielectric)]; ok {
			args = append(args, "--alpb", solvent)
		}
	}
	return args
}

// Compute writes xyz to a scratch directory, runs xtb with the --grad flag and reads the
// resulting .engrad file.
func (X *XTB) Compute(ctx context.Context, xyz []float64) (*Result, error) {
	if err := checkLength("XTB", xyz, X.top.Len()); err != nil {
		return nil, err
	}
	inputname := "gostring"
	dir, err := os.MkdirTemp(X.Scratch, "xtb-"+uuid.NewString()[:8]+"-")
	if err != nil {
		return nil, Error{message: ErrCantInput, code: "XTB", inputname: inputname, additional: err.Error(), deco: []string{"Compute"}, critical: true}
	}
	if !X.Keep {
		defer os.RemoveAll(dir)
	}
	fout, err := os.Create(filepath.Join(dir, inputname+".xyz"))
	if err != nil {
		return nil, Error{message: ErrCantInput, code: "XTB", inputname: inputname, additional: err.Error(), deco: []string{"Compute"}, critical: true}
	}
	err = chem.XYZWrite(fout, X.top, xyz, "written by gostring")
	fout.Close()
	if err != nil {
		return nil, Error{message: ErrCantInput, code: "XTB", inputname: inputname, additional: err.Error(), deco: []string{"Compute"}, critical: true}
	}
	out, err := os.Create(filepath.Join(dir, inputname+".out"))
	if err != nil {
		return nil, Error{message: ErrCantInput, code: "XTB", inputname: inputname, additional: err.Error(), deco: []string{"Compute"}, critical: true}
	}
	defer out.Close()
	command := exec.CommandContext(ctx, X.Command, X.args(inputname)...)
	command.Dir = dir
	command.Stdout = out
	command.Stderr = out
	X.log.Debug("running xtb", zap.String("dir", dir), zap.Strings("args", command.Args))
	if err := command.Run(); err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, Error{message: ErrNotRunning, code: "XTB", inputname: inputname, additional: err.Error(), deco: []string{"Compute"}, critical: true}
	}
	engrads, _ := filepath.Glob(filepath.Join(dir, "*.engrad"))
	if len(engrads) == 0 {
		return nil, Error{message: ErrNoGradient, code: "XTB", inputname: inputname, additional: "no .engrad file produced", deco: []string{"Compute"}, critical: true}
	}
	f, err := os.Open(engrads[0])
	if err != nil {
		return nil, Error{message: ErrNoGradient, code: "XTB", inputname: inputname, additional: err.Error(), deco: []string{"Compute"}, critical: true}
	}
	defer f.Close()
	r, err := ReadEngrad(f)
	if err != nil {
		if e, ok := err.(Error); ok {
			e.inputname = inputname
			e.Decorate("Compute")
			return nil, e
		}
		return nil, err
	}
	if len(r.Gradient) != len(xyz) {
		return nil, Error{message: ErrNoGradient, code: "XTB", inputname: inputname, additional: fmt.Sprintf("%d gradient components for %d coordinates", len(r.Gradient), len(xyz)), deco: []string{"Compute"}, critical: true}
	}
	return r, nil
}

// ReadEngrad parses an ORCA-style .engrad file, as written by xtb. The gradient is
// converted from Hartree/bohr to Hartree/A.
func ReadEngrad(r io.Reader) (*Result, error) {
	scanner := bufio.NewScanner(r)
	var fields []string
	for scanner.Scan() {
		l := strings.TrimSpace(scanner.Text())
		if l == "" || strings.HasPrefix(l, "#") {
			continue
		}
		fields = append(fields, l)
	}
	if err := scanner.Err(); err != nil {
		return nil, Error{message: ErrNoGradient, code: "XTB", additional: err.Error(), deco: []string{"ReadEngrad"}, critical: true}
	}
	if len(fields) < 2 {
		return nil, Error{message: ErrNoEnergy, code: "XTB", additional: "truncated engrad file", deco: []string{"ReadEngrad"}, critical: true}
	}
	natoms, err := strconv.Atoi(fields[0])
	if err != nil || natoms <= 0 {
		return nil, Error{message: ErrNoEnergy, code: "XTB", additional: "bad number of atoms " + fields[0], deco: []string{"ReadEngrad"}, critical: true}
	}
	energy, err := strconv.ParseFloat(fields[1], 64)
	if err != nil {
		return nil, Error{message: ErrNoEnergy, code: "XTB", additional: err.Error(), deco: []string{"ReadEngrad"}, critical: true}
	}
	if len(fields) < 2+3*natoms {
		return nil, Error{message: ErrNoGradient, code: "XTB", additional: fmt.Sprintf("%d gradient lines for %d atoms", len(fields)-2, natoms), deco: []string{"ReadEngrad"}, critical: true}
	}
	grad := make([]float64, 3*natoms)
	for i := range grad {
		g, err := strconv.ParseFloat(fields[2+i], 64)
		if err != nil {
			return nil, Error{message: ErrNoGradient, code: "XTB", additional: err.Error(), deco: []string{"ReadEngrad"}, critical: true}
		}
		grad[i] = g / Bohr2A
	}
	return &Result{Energy: energy, Gradient: grad}, nil
}

var dielectric2Solvent = map[int]string{
	80: "h2o",
	5:  "chcl3",
	9:  "ch2cl2",
	21: "acetone",
	37: "acetonitrile",
	33: "methanol",
	2:  "toluene",
	7:  "thf",
	47: "dmso",
	38: "dmf",
}
