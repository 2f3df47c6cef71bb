package ic

import (
	"math"

	"go.uber.org/zap"
)

const (
	fdStep      = 1e-5
	fdThreshold = 1e-5
)

// FDResult compares the analytic derivative of a primitive with a central
// finite difference.
type FDResult struct {
	Primitive Primitive
	MaxErr    float64
	Pass      bool
	Errors    []float64 //analytic-numerical, per cartesian coordinate.
}

// CheckFiniteDifference compares the analytic derivative of every primitive at xyz
// with a central finite difference (step 1e-5 A). Failures are logged as warnings.
func (E *Engine) CheckFiniteDifference(xyz []float64) []FDResult {
	E.check(xyz)
	ret := make([]FDResult, E.prims.Len())
	xp := copySlice(xyz)
	xm := copySlice(xyz)
	for i := 0; i < E.prims.Len(); i++ {
		p := E.prims.At(i)
		an := p.Derivative(xyz)
		r := FDResult{Primitive: p, Errors: make([]float64, len(xyz))}
		for j := range xyz {
			xp[j] = xyz[j] + fdStep
			xm[j] = xyz[j] - fdStep
			num := p.Diff(xp, xm) / (2 * fdStep)
			xp[j] = xyz[j]
			xm[j] = xyz[j]
			r.Errors[j] = an[j] - num
			r.MaxErr = math.Max(r.MaxErr, math.Abs(r.Errors[j]))
		}
		r.Pass = r.MaxErr < fdThreshold
		if !r.Pass {
			E.log.Warn("analytic derivative disagrees with finite difference", zap.String("primitive", p.String()), zap.Float64("max_error", r.MaxErr))
		}
		ret[i] = r
	}
	return ret
}
