package anyddpg

import (
	"errors"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/serializer"
)

// ErrShapeMismatch is returned when imported shared
// weights do not match the network's own shapes.
var ErrShapeMismatch = errors.New("shared weight shape mismatch")

// An Actor is a deterministic multitask policy network.
//
// The trunk is shared across all tasks and maps padded
// observations to a hidden representation.
// Each task has its own head, which maps the hidden
// representation to a padded action.
// Action components beyond a task's own width are always
// exactly zero, and meaningful components are bounded by
// the task's action bound.
type Actor struct {
	Trunk anynet.Net
	Heads []anynet.Net

	Specs TaskSpecs

	creator  anyvec.Creator
	maskRows [][]float64
	frozen   bool
}

// NewActor creates a randomly-initialized actor with two
// shared hidden layers.
func NewActor(c anyvec.Creator, specs TaskSpecs, hidden1, hidden2 int) *Actor {
	res := &Actor{
		Trunk: anynet.Net{
			anynet.NewFC(c, specs.MaxObsSize(), hidden1),
			anynet.Tanh,
			anynet.NewFC(c, hidden1, hidden2),
			anynet.Tanh,
		},
		Specs:   specs,
		creator: c,
	}
	for _, spec := range specs {
		res.Heads = append(res.Heads, anynet.Net{
			anynet.NewFC(c, hidden2, specs.MaxActionSize()),
			anynet.Tanh,
		})
		row := make([]float64, specs.MaxActionSize())
		for i := 0; i < spec.ActionSize; i++ {
			row[i] = spec.ActionBound
		}
		res.maskRows = append(res.maskRows, row)
	}
	return res
}

// ApplyBlocks applies the actor to a combined batch which
// is laid out as one contiguous block of rows per task,
// each block containing rows rows.
//
// The result has one padded action per row.
func (a *Actor) ApplyBlocks(states anydiff.Res, rows int) anydiff.Res {
	n := rows * len(a.Heads)
	return anydiff.Pool(a.Trunk.Apply(states, n), func(hidden anydiff.Res) anydiff.Res {
		chunk := hidden.Output().Len() / len(a.Heads)
		outs := make([]anydiff.Res, len(a.Heads))
		for i := range a.Heads {
			sub := anydiff.Slice(hidden, i*chunk, (i+1)*chunk)
			outs[i] = a.applyHead(i, sub, rows)
		}
		return anydiff.Concat(outs...)
	})
}

// ApplyTask applies the actor for a single task's batch
// of padded observations.
func (a *Actor) ApplyTask(task int, states anydiff.Res, n int) anydiff.Res {
	return a.applyHead(task, a.Trunk.Apply(states, n), n)
}

func (a *Actor) applyHead(task int, hidden anydiff.Res, n int) anydiff.Res {
	out := a.Heads[task].Apply(hidden, n)
	return anydiff.Mul(out, a.mask(task, n))
}

// mask produces a constant which bounds the meaningful
// action components and zeroes the padding components.
func (a *Actor) mask(task, rows int) anydiff.Res {
	row := a.maskRows[task]
	tiled := make([]float64, 0, rows*len(row))
	for i := 0; i < rows; i++ {
		tiled = append(tiled, row...)
	}
	c := a.creator
	return anydiff.NewConst(c.MakeVectorData(c.MakeNumericList(tiled)))
}

// Parameters returns the shared parameters followed by
// the per-task head parameters.
func (a *Actor) Parameters() []*anydiff.Var {
	res := a.SharedParameters()
	for _, head := range a.Heads {
		res = append(res, head.Parameters()...)
	}
	return res
}

// SharedParameters returns the parameters of the shared
// trunk.
func (a *Actor) SharedParameters() []*anydiff.Var {
	return a.Trunk.Parameters()
}

// SharedWeights returns a deep, detached copy of the
// shared parameters.
func (a *Actor) SharedWeights() []anyvec.Vector {
	return copyVectors(a.SharedParameters())
}

// SetSharedWeights overwrites the shared parameters.
//
// If the shapes do not match exactly, it fails with
// ErrShapeMismatch before any parameter is modified.
func (a *Actor) SetSharedWeights(weights []anyvec.Vector) error {
	return setVectors(a.SharedParameters(), weights)
}

// Freeze excludes the shared parameters from gradient
// updates. It is idempotent.
func (a *Actor) Freeze() {
	a.frozen = true
}

// Unfreeze makes the shared parameters eligible for
// gradient updates again. It is idempotent.
func (a *Actor) Unfreeze() {
	a.frozen = false
}

// SharedFrozen reports whether the shared parameters are
// currently frozen.
func (a *Actor) SharedFrozen() bool {
	return a.frozen
}

// Clone creates a deep copy of the actor with its own
// parameter storage, e.g. for use as a target network.
func (a *Actor) Clone() (*Actor, error) {
	trunk, err := copyNet(a.Trunk)
	if err != nil {
		return nil, err
	}
	res := &Actor{
		Trunk:    trunk,
		Specs:    a.Specs,
		creator:  a.creator,
		maskRows: a.maskRows,
		frozen:   a.frozen,
	}
	for _, head := range a.Heads {
		copied, err := copyNet(head)
		if err != nil {
			return nil, err
		}
		res.Heads = append(res.Heads, copied)
	}
	return res, nil
}

// A Critic is a multitask action-value network.
//
// The state layer, action layer and hidden net are shared
// across all tasks; the action is injected by summing the
// two linear maps before the first activation.
// Each task has its own scalar head.
type Critic struct {
	StateLayer  *anynet.FC
	ActionLayer *anynet.FC
	Hidden      anynet.Net
	Heads       []anynet.Net

	Specs TaskSpecs

	frozen bool
}

// NewCritic creates a randomly-initialized critic with
// two shared hidden layers.
func NewCritic(c anyvec.Creator, specs TaskSpecs, hidden1, hidden2 int) *Critic {
	res := &Critic{
		StateLayer:  anynet.NewFC(c, specs.MaxObsSize(), hidden1),
		ActionLayer: anynet.NewFC(c, specs.MaxActionSize(), hidden1),
		Hidden: anynet.Net{
			anynet.Tanh,
			anynet.NewFC(c, hidden1, hidden2),
			anynet.Tanh,
		},
		Specs: specs,
	}
	for range specs {
		res.Heads = append(res.Heads, anynet.Net{
			anynet.NewFC(c, hidden2, 1),
		})
	}
	return res
}

// ApplyBlocks applies the critic to a combined batch laid
// out as one contiguous block of rows rows per task.
//
// The result has one Q-value per row.
func (cr *Critic) ApplyBlocks(states, actions anydiff.Res, rows int) anydiff.Res {
	n := rows * len(cr.Heads)
	pre := anydiff.Add(cr.StateLayer.Apply(states, n),
		cr.ActionLayer.Apply(actions, n))
	return anydiff.Pool(cr.Hidden.Apply(pre, n), func(hidden anydiff.Res) anydiff.Res {
		chunk := hidden.Output().Len() / len(cr.Heads)
		outs := make([]anydiff.Res, len(cr.Heads))
		for i := range cr.Heads {
			sub := anydiff.Slice(hidden, i*chunk, (i+1)*chunk)
			outs[i] = cr.Heads[i].Apply(sub, rows)
		}
		return anydiff.Concat(outs...)
	})
}

// Parameters returns the shared parameters followed by
// the per-task head parameters.
func (cr *Critic) Parameters() []*anydiff.Var {
	res := cr.SharedParameters()
	for _, head := range cr.Heads {
		res = append(res, head.Parameters()...)
	}
	return res
}

// SharedParameters returns the parameters of the shared
// layers.
func (cr *Critic) SharedParameters() []*anydiff.Var {
	return anynet.AllParameters(cr.StateLayer, cr.ActionLayer, cr.Hidden)
}

// SharedWeights returns a deep, detached copy of the
// shared parameters.
func (cr *Critic) SharedWeights() []anyvec.Vector {
	return copyVectors(cr.SharedParameters())
}

// SetSharedWeights overwrites the shared parameters.
//
// If the shapes do not match exactly, it fails with
// ErrShapeMismatch before any parameter is modified.
func (cr *Critic) SetSharedWeights(weights []anyvec.Vector) error {
	return setVectors(cr.SharedParameters(), weights)
}

// Freeze excludes the shared parameters from gradient
// updates. It is idempotent.
func (cr *Critic) Freeze() {
	cr.frozen = true
}

// Unfreeze makes the shared parameters eligible for
// gradient updates again. It is idempotent.
func (cr *Critic) Unfreeze() {
	cr.frozen = false
}

// SharedFrozen reports whether the shared parameters are
// currently frozen.
func (cr *Critic) SharedFrozen() bool {
	return cr.frozen
}

// Clone creates a deep copy of the critic with its own
// parameter storage, e.g. for use as a target network.
func (cr *Critic) Clone() (*Critic, error) {
	stateLayer, err := copyFC(cr.StateLayer)
	if err != nil {
		return nil, err
	}
	actionLayer, err := copyFC(cr.ActionLayer)
	if err != nil {
		return nil, err
	}
	hidden, err := copyNet(cr.Hidden)
	if err != nil {
		return nil, err
	}
	res := &Critic{
		StateLayer:  stateLayer,
		ActionLayer: actionLayer,
		Hidden:      hidden,
		Specs:       cr.Specs,
		frozen:      cr.frozen,
	}
	for _, head := range cr.Heads {
		copied, err := copyNet(head)
		if err != nil {
			return nil, err
		}
		res.Heads = append(res.Heads, copied)
	}
	return res, nil
}

func copyNet(n anynet.Net) (anynet.Net, error) {
	copied, err := serializer.Copy(n)
	if err != nil {
		return nil, err
	}
	return copied.(anynet.Net), nil
}

func copyFC(fc *anynet.FC) (*anynet.FC, error) {
	copied, err := serializer.Copy(fc)
	if err != nil {
		return nil, err
	}
	return copied.(*anynet.FC), nil
}

func copyVectors(params []*anydiff.Var) []anyvec.Vector {
	res := make([]anyvec.Vector, len(params))
	for i, p := range params {
		res[i] = p.Vector.Copy()
	}
	return res
}

// setVectors overwrites every parameter with the matching
// vector, failing before any write if a shape differs.
func setVectors(params []*anydiff.Var, vecs []anyvec.Vector) error {
	if err := checkVectors(params, vecs); err != nil {
		return err
	}
	assignVectors(params, vecs)
	return nil
}

func checkVectors(params []*anydiff.Var, vecs []anyvec.Vector) error {
	if len(params) != len(vecs) {
		return ErrShapeMismatch
	}
	for i, p := range params {
		if p.Vector.Len() != vecs[i].Len() {
			return ErrShapeMismatch
		}
	}
	return nil
}

func assignVectors(params []*anydiff.Var, vecs []anyvec.Vector) {
	for i, p := range params {
		p.Vector.Set(vecs[i])
	}
}
