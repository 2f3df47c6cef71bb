/*
 * options.go, part of gostring.
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
	"runtime"
	"time"

	"go.uber.org/zap"
)

// Options contains the settings of a String. Energies are in kcal/mol, relative to the
// first node, gradients in Hartree/A or Hartree/rad, and steps in the internal
// coordinate space. Use DefaultOptions to obtain reasonable values.
type Options struct {
	Nodes          int     `yaml:"nodes"`
	ConvTol        float64 `yaml:"conv_tol"`   //gradient RMS
	ConvGmax       float64 `yaml:"conv_gmax"`  //largest gradient component
	ConvEdiff      float64 `yaml:"conv_ediff"` //energy change between steps
	ConvdE         float64 `yaml:"conv_de"`    //gap between states, for seams
	AddNodeTol     float64 `yaml:"add_node_tol"`
	DQMagMax       float64 `yaml:"dqmag_max"`
	DQMagMin       float64 `yaml:"dqmag_min"`
	BDistMin       float64 `yaml:"bdist_min"`
	BDistRatio     float64 `yaml:"bdist_ratio"`
	MaxGrowthIters int     `yaml:"max_growth_iters"`
	MaxOptIters    int     `yaml:"max_opt_iters"`
	MaxOptSteps    int     `yaml:"max_opt_steps"` //per node and growth iteration
	OptSteps       int     `yaml:"opt_steps"`     //per node and optimization iteration
	//GrowthDirection is 0 to grow from both ends, 1 to grow from the reactant only
	//and 2 to grow from the product only. Single-ended strings always use 1.
	GrowthDirection int `yaml:"growth_direction"`
	//ProductGeomFixed is false if the last node of a fully grown single-ended
	//string is to be minimized when it is not a minimum.
	ProductGeomFixed bool `yaml:"product_geom_fixed"`
	//Align superimposes every new node on its parent. It should be false when
	//translation/rotation primitives are used.
	Align       bool          `yaml:"align"`
	Workers     int           `yaml:"workers"`
	NodeTimeout time.Duration `yaml:"node_timeout"` //0 for no timeout
	Calibration Calibration   `yaml:"calibration"`

	Optimizer OptimizerFactory `yaml:"-"`
	Snapshots SnapshotWriter   `yaml:"-"`
	Logger    *zap.Logger      `yaml:"-"`
}

// DefaultOptions returns the default options. The optimizer factory must still be set.
func DefaultOptions() *Options {
	return &Options{
		Nodes:            9,
		ConvTol:          0.0005,
		ConvGmax:         0.0005,
		ConvEdiff:        0.1,
		ConvdE:           0.5,
		AddNodeTol:       0.1,
		DQMagMax:         0.8,
		DQMagMin:         0.2,
		BDistMin:         0.05,
		BDistRatio:       0.5,
		MaxGrowthIters:   30,
		MaxOptIters:      80,
		MaxOptSteps:      3,
		OptSteps:         3,
		ProductGeomFixed: true,
		Align:            true,
		Workers:          runtime.NumCPU(),
		Calibration:      DefaultCalibration(),
	}
}

// Calibration contains the empirical thresholds that govern the changes between
// stages. They are tuning constants, not derived quantities. Energies in kcal/mol.
type Calibration struct {
	ClimbTotalGrad     float64 `yaml:"climb_total_grad"`     //start climbing under this total gradient
	ClimbCGrad         float64 `yaml:"climb_cgrad"`          //or under this gradient along the tangent
	ClimbDEIter        float64 `yaml:"climb_de_iter"`        //and if the peak energy changed less than this
	AllConvergedFactor float64 `yaml:"all_converged_factor"` //all nodes under ConvTol times this also starts a climb

	FindTotalGrad  float64 `yaml:"find_total_grad"`
	FindCGrad      float64 `yaml:"find_cgrad"`
	FindTotalGrad2 float64 `yaml:"find_total_grad2"`
	FindCGrad2     float64 `yaml:"find_cgrad2"`
	FindTSFactor   float64 `yaml:"find_ts_factor"`    //peak gradient RMS under ConvTol times this
	FindLooseTS    float64 `yaml:"find_loose_ts"`     //peak gradient RMS under ConvTol times this alone
	FindDEIter     float64 `yaml:"find_de_iter"`      //peak energy change must be under this
	FindDMax       float64 `yaml:"find_dmax"`         //step cap for the peak node on entering the TS search
	ConvFactor     float64 `yaml:"conv_factor"`       //looser convergence for non-peak nodes when climbing
	TSConvTotal    float64 `yaml:"ts_conv_total"`     //alternative TS convergence: total gradient
	TSConvFactor   float64 `yaml:"ts_conv_factor"`    //alternative TS convergence: peak gradient RMS factor
	TSConvDE       float64 `yaml:"ts_conv_de"`        //alternative TS convergence: energy change
	ClimbConvDE    float64 `yaml:"climb_conv_de"`     //climbing convergence: energy change
	MaxNneg        int     `yaml:"max_nneg"`          //more negative eigenvalues than this is bad curvature
	HessCounterMax int     `yaml:"hess_counter_max"`  //TS iterations after which the Hessian is rebuilt
	HessNegStreak  int     `yaml:"hess_neg_streak"`   //net iterations with several negative eigenvalues that count as bad curvature
	TSEnergyDrift  float64 `yaml:"ts_energy_drift"`   //peak energy drift that forces a Hessian rebuild
	ClimbCooldown  int     `yaml:"climb_cooldown"`    //iterations of climbing after a demotion
	ClimbScaleMax  float64 `yaml:"climb_scale_max"`   //cap for the DMAX divisor when the peak moves
	MultHigh       float64 `yaml:"mult_high"`         //nodes over this fraction of the peak get more steps
	MultSteep      float64 `yaml:"mult_steep"`        //steep peak ratio when searching
	MultSteepPlain float64 `yaml:"mult_steep_plain"`  //steep peak ratio before climbing
	AllUpTol       float64 `yaml:"all_up_tol"`        //monotonic profile tolerance, disables climbing
	PeakEDiff      float64 `yaml:"peak_ediff"`        //significant peak height
	PeakEDiffGrow  float64 `yaml:"peak_ediff_grow"`   //same, while growing
	PeakEDiffInter float64 `yaml:"peak_ediff_inter"`  //same, when looking for intermediates
	PeakUpTol      float64 `yaml:"peak_up_tol"`       //tolerance for the all-uphill check
	DissociativeE  float64 `yaml:"dissociative_e"`    //last node over this may be a dissociation
	DissociativeDE float64 `yaml:"dissociative_de"`   //flat tail tolerance for dissociations
	Noise          float64 `yaml:"noise"`             //minimum depth of an intermediate
	IntermediateIt int     `yaml:"intermediate_iter"` //iterations without climbing after an intermediate appears
}

// DefaultCalibration returns the thresholds used by default.
func DefaultCalibration() Calibration {
	return Calibration{
		ClimbTotalGrad:     0.3,
		ClimbCGrad:         0.01,
		ClimbDEIter:        1.0,
		AllConvergedFactor: 1.1,
		FindTotalGrad:      0.2,
		FindCGrad:          0.01,
		FindTotalGrad2:     0.1,
		FindCGrad2:         0.02,
		FindTSFactor:       10,
		FindLooseTS:        5,
		FindDEIter:         1.0,
		FindDMax:           0.1,
		ConvFactor:         2.5,
		TSConvTotal:        0.1,
		TSConvFactor:       2.5,
		TSConvDE:           0.02,
		ClimbConvDE:        0.2,
		MaxNneg:            3,
		HessCounterMax:     5,
		HessNegStreak:      3,
		TSEnergyDrift:      10,
		ClimbCooldown:      2,
		ClimbScaleMax:      5,
		MultHigh:           0.9,
		MultSteep:          1.25,
		MultSteepPlain:     1.5,
		AllUpTol:           0.5,
		PeakEDiff:          0.5,
		PeakEDiffGrow:      1.0,
		PeakEDiffInter:     2.0,
		PeakUpTol:          0.1,
		DissociativeE:      15,
		DissociativeDE:     0.5,
		Noise:              1.0,
		IntermediateIt:     3,
	}
}
