/*
 * config.go, part of gostring
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
	"fmt"
	"os"
	"strings"

	chem "github.com/rmera/gostring"
	"github.com/rmera/gostring/gsm"
	"github.com/rmera/gostring/ic"
	"github.com/rmera/gostring/lot"
	"github.com/rmera/gostring/opt"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"
)

// Config is the content of a run file. Atom indexes are 1-based and angles are
// in degrees.
type Config struct {
	Charge   int      `yaml:"charge"`
	Unpaired int      `yaml:"unpaired"`
	TRIC     bool     `yaml:"tric"`
	Rtype    int      `yaml:"rtype"` //0 no climb, 1 climb, 2 climb and TS search
	Driving  []string `yaml:"driving"`
	Output   string   `yaml:"output"` //prefix for the output files
	Restart  string   `yaml:"restart"`

	GSM gsm.Options `yaml:"gsm"`
	Opt opt.Options `yaml:"opt"`
	LoT LoTConfig   `yaml:"lot"`
}

// LoTConfig selects the level of theory.
type LoTConfig struct {
	Program string       `yaml:"program"` //xtb or ff
	XTB     XTBConfig    `yaml:"xtb"`
	Terms   []TermConfig `yaml:"terms"`
}

type XTBConfig struct {
	Command    string  `yaml:"command"`
	Method     string  `yaml:"method"`
	NCPU       int     `yaml:"ncpu"`
	Dielectric float64 `yaml:"dielectric"`
	Scratch    string  `yaml:"scratch"`
	Keep       bool    `yaml:"keep"`
}

// TermConfig is one force field term. Type is bond, angle, dihedral or oop for
// harmonic terms, torsion or morse.
type TermConfig struct {
	Type  string  `yaml:"type"`
	Atoms []int   `yaml:"atoms"`
	K     float64 `yaml:"k"`
	Eq    float64 `yaml:"eq"`
	V     float64 `yaml:"v"`
	N     int     `yaml:"n"`
	Phase float64 `yaml:"phase"`
	D     float64 `yaml:"d"`
	Alpha float64 `yaml:"alpha"`
	Re    float64 `yaml:"re"`
}

// DefaultConfig returns a configuration for a climbing run with xtb.
func DefaultConfig() *Config {
	return &Config{
		Rtype: gsm.Climb,
		GSM:   *gsm.DefaultOptions(),
		Opt:   *opt.DefaultOptions(),
		LoT:   LoTConfig{Program: "xtb"},
	}
}

// LoadConfig reads a YAML run file. Fields not present keep their default values.
func LoadConfig(name string) (*Config, error) {
	c := DefaultConfig()
	if name == "" {
		return c, nil
	}
	data, err := os.ReadFile(name)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", name, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("config %s: %w", name, err)
	}
	return c, nil
}

// Validate checks the settings that can be checked without a molecule.
func (c *Config) Validate() error {
	if c.Rtype < gsm.NoClimb || c.Rtype > gsm.FindTS {
		return fmt.Errorf("rtype must be 0, 1 or 2, got %d", c.Rtype)
	}
	switch strings.ToLower(c.LoT.Program) {
	case "xtb", "ff":
	default:
		return fmt.Errorf("unknown level of theory program %q", c.LoT.Program)
	}
	if c.GSM.Nodes < 3 {
		return fmt.Errorf("at least 3 nodes are needed, got %d", c.GSM.Nodes)
	}
	return nil
}

// DrivingCoords parses the driving coordinates of the run, if any.
func (c *Config) DrivingCoords() ([]gsm.DrivingCoord, error) {
	if len(c.Driving) == 0 {
		return nil, nil
	}
	return gsm.ParseDrivingCoords(c.Driving)
}

// LevelOfTheory builds the level of theory for the molecule top.
func (c *Config) LevelOfTheory(top *chem.Topology, log *zap.Logger) (lot.LevelOfTheory, error) {
	if strings.ToLower(c.LoT.Program) == "ff" {
		return c.forceField(top.Len())
	}
	x := lot.NewXTB(top, log)
	xc := c.LoT.XTB
	if xc.Command != "" {
		x.Command = xc.Command
	}
	if xc.Method != "" {
		x.Method = xc.Method
	}
	if xc.NCPU > 0 {
		x.NCPU = xc.NCPU
	}
	x.Dielectric = xc.Dielectric
	x.Scratch = xc.Scratch
	x.Keep = xc.Keep
	return x, nil
}

func (c *Config) forceField(natoms int) (*lot.ForceField, error) {
	if len(c.LoT.Terms) == 0 {
		return nil, fmt.Errorf("force field without terms")
	}
	ff := lot.NewForceField(natoms)
	for i, t := range c.LoT.Terms {
		term, err := t.term(natoms)
		if err != nil {
			return nil, fmt.Errorf("term %d: %w", i+1, err)
		}
		ff.Add(term)
	}
	return ff, nil
}

var termAtoms = map[string]int{
	"bond":     2,
	"angle":    3,
	"dihedral": 4,
	"oop":      4,
	"torsion":  4,
	"morse":    2,
}

func (t TermConfig) term(natoms int) (lot.Term, error) {
	typ := strings.ToLower(t.Type)
	n, ok := termAtoms[typ]
	if !ok {
		return nil, fmt.Errorf("unknown term type %q", t.Type)
	}
	if len(t.Atoms) != n {
		return nil, fmt.Errorf("%s needs %d atoms, got %d", typ, n, len(t.Atoms))
	}
	a := make([]int, n)
	for i, v := range t.Atoms {
		if v < 1 || v > natoms {
			return nil, fmt.Errorf("atom index %d out of range", v)
		}
		a[i] = v - 1
	}
	switch typ {
	case "bond":
		return lot.Harmonic{Coord: ic.NewDistance(a[0], a[1]), K: t.K, Eq: t.Eq}, nil
	case "angle":
		return lot.Harmonic{Coord: ic.NewAngle(a[0], a[1], a[2]), K: t.K, Eq: chem.Deg2Rad(t.Eq)}, nil
	case "dihedral":
		return lot.Harmonic{Coord: ic.NewDihedral(a[0], a[1], a[2], a[3]), K: t.K, Eq: chem.Deg2Rad(t.Eq)}, nil
	case "oop":
		return lot.Harmonic{Coord: ic.NewOutOfPlane(a[0], a[1], a[2], a[3]), K: t.K, Eq: chem.Deg2Rad(t.Eq)}, nil
	case "torsion":
		return lot.Torsion{Coord: ic.NewDihedral(a[0], a[1], a[2], a[3]), V: t.V, N: t.N, Phase: chem.Deg2Rad(t.Phase)}, nil
	default:
		return lot.Morse{A: a[0], B: a[1], D: t.D, Alpha: t.Alpha, Re: t.Re}, nil
	}
}
