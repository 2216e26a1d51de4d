package anyddpg

import (
	"math"
	"math/rand"
)

const (
	DefaultNoiseTheta = 0.15
	DefaultNoiseSigma = 0.2
	DefaultNoiseDT    = 1e-2
)

// OUNoise generates Ornstein-Uhlenbeck exploration noise,
// one independent process per task at the task's own
// action width.
type OUNoise struct {
	Theta float64
	Sigma float64
	DT    float64

	specs TaskSpecs
	state [][]float64
	gen   *rand.Rand
}

// NewOUNoise creates noise processes for all tasks.
//
// Zero Theta, Sigma or DT fields are replaced by the
// package defaults.
func NewOUNoise(specs TaskSpecs, theta, sigma, dt float64, seed int64) *OUNoise {
	if theta == 0 {
		theta = DefaultNoiseTheta
	}
	if sigma == 0 {
		sigma = DefaultNoiseSigma
	}
	if dt == 0 {
		dt = DefaultNoiseDT
	}
	res := &OUNoise{
		Theta: theta,
		Sigma: sigma,
		DT:    dt,
		specs: specs,
		gen:   rand.New(rand.NewSource(seed)),
	}
	for _, spec := range specs {
		res.state = append(res.state, make([]float64, spec.ActionSize))
	}
	return res
}

// Reset zeroes a task's process, e.g. at the start of an
// episode.
func (o *OUNoise) Reset(task int) {
	for i := range o.state[task] {
		o.state[task][i] = 0
	}
}

// Sample advances a task's process by one step and
// returns the noise to add to the task's action.
func (o *OUNoise) Sample(task int) []float64 {
	x := o.state[task]
	res := make([]float64, len(x))
	scale := o.Sigma * math.Sqrt(o.DT)
	for i := range x {
		x[i] += -o.Theta*x[i]*o.DT + scale*o.gen.NormFloat64()
		res[i] = x[i]
	}
	return res
}
