package anyddpg

// A Transition is a single interaction with one task's
// environment.
//
// State, Action and NextState are stored at the task's
// own width; they are padded out to the widest task only
// when a combined batch is assembled.
type Transition struct {
	Task      int
	State     []float64
	Action    []float64
	Reward    float64
	NextState []float64
	Absorbing bool
}

// A TaskSpec describes the fixed properties of one task.
type TaskSpec struct {
	// ObsSize and ActionSize are the task's observation
	// and action widths.
	ObsSize    int
	ActionSize int

	// Discount is the task's reward discount factor.
	Discount float64

	// Horizon is the maximum number of steps per episode.
	Horizon int

	// ActionBound is the symmetric bound on every action
	// component, so actions live in [-Bound, Bound].
	ActionBound float64
}

// TaskSpecs describes all of an agent's tasks.
// Task ids are indices into the slice.
type TaskSpecs []TaskSpec

// MaxObsSize returns the widest observation across all
// tasks, i.e. the padded observation width.
func (t TaskSpecs) MaxObsSize() int {
	var res int
	for _, spec := range t {
		if spec.ObsSize > res {
			res = spec.ObsSize
		}
	}
	return res
}

// MaxActionSize returns the widest action across all
// tasks, i.e. the padded action width.
func (t TaskSpecs) MaxActionSize() int {
	var res int
	for _, spec := range t {
		if spec.ActionSize > res {
			res = spec.ActionSize
		}
	}
	return res
}

// Contains reports whether task is a valid task id.
func (t TaskSpecs) Contains(task int) bool {
	return task >= 0 && task < len(t)
}
