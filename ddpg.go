package anyddpg

import (
	"errors"

	"github.com/unixpickle/anydiff"
	"github.com/unixpickle/anynet/anysgd"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/essentials"
)

// ErrInvalidTaskID is returned when a transition is
// tagged with an out-of-range task id.
var ErrInvalidTaskID = errors.New("invalid task id")

const (
	DefaultActorStepSize     = 1e-4
	DefaultCriticStepSize    = 1e-3
	DefaultCriticWeightDecay = 1e-2
)

// DDPG is a multitask DDPG agent.
//
// It owns one replay memory per task and updates a pair
// of actor/critic networks with one combined batch across
// all tasks, soft-updating a pair of target networks
// after every gradient step.
type DDPG struct {
	Actor  *Actor
	Critic *Critic

	// The target networks lag the live networks by the
	// smoothing factor Tau.
	// They are never written to by the optimizer.
	TargetActor  *Actor
	TargetCritic *Critic

	Specs     TaskSpecs
	BatchSize int

	// Tau is the soft-update coefficient in (0, 1].
	Tau float64

	// ActorStepSize and CriticStepSize are the Adam step
	// sizes. If 0, the package defaults are used.
	ActorStepSize  float64
	CriticStepSize float64

	// CriticWeightDecay is the L2 decay coefficient added
	// to the critic gradient. If 0, the package default is
	// used.
	CriticWeightDecay float64

	creator     anyvec.Creator
	replay      []*ReplayMemory
	actorTrans  anysgd.Transformer
	criticTrans anysgd.Transformer

	numUpdates     int
	lastCriticLoss float64

	// Scratch buffers for the combined batch, allocated
	// once at maximum width and reused across updates.
	states     []float64
	actions    []float64
	nextStates []float64
	rewards    []float64
	absorbing  []float64
	targets    []float64
}

// NewDDPG creates an agent from a live actor and critic.
//
// The target networks are deep copies of the live ones,
// with their weights synced at construction.
// Each task gets a replay memory with the given minimum
// size and capacity.
func NewDDPG(actor *Actor, critic *Critic, batchSize, minSize, capacity int,
	tau float64) (agent *DDPG, err error) {
	defer essentials.AddCtxTo("create DDPG", &err)
	if len(actor.Specs) == 0 || len(actor.Specs) != len(critic.Specs) {
		return nil, errors.New("actor and critic task specs must match")
	}
	if batchSize <= 0 {
		return nil, errors.New("batch size must be positive")
	}
	if tau <= 0 || tau > 1 {
		return nil, errors.New("tau must be in (0, 1]")
	}

	targetActor, err := actor.Clone()
	if err != nil {
		return nil, err
	}
	targetCritic, err := critic.Clone()
	if err != nil {
		return nil, err
	}

	specs := actor.Specs
	res := &DDPG{
		Actor:        actor,
		Critic:       critic,
		TargetActor:  targetActor,
		TargetCritic: targetCritic,
		Specs:        specs,
		BatchSize:    batchSize,
		Tau:          tau,
		creator:      actor.creator,
		actorTrans:   &anysgd.Adam{},
		criticTrans:  &anysgd.Adam{},
	}
	for range specs {
		mem, err := NewReplayMemory(minSize, capacity)
		if err != nil {
			return nil, err
		}
		res.replay = append(res.replay, mem)
	}

	n := batchSize * len(specs)
	res.states = make([]float64, n*specs.MaxObsSize())
	res.actions = make([]float64, n*specs.MaxActionSize())
	res.nextStates = make([]float64, n*specs.MaxObsSize())
	res.rewards = make([]float64, n)
	res.absorbing = make([]float64, n)
	res.targets = make([]float64, n)

	return res, nil
}

// Fit routes the transitions into the per-task replay
// memories and, once every memory is initialized, runs
// one gradient-update cycle.
//
// If any transition carries an out-of-range task id, Fit
// fails with ErrInvalidTaskID before touching any memory.
func (d *DDPG) Fit(dataset []Transition) error {
	for _, t := range dataset {
		if !d.Specs.Contains(t.Task) {
			return ErrInvalidTaskID
		}
	}
	perTask := make([][]Transition, len(d.Specs))
	for _, t := range dataset {
		perTask[t.Task] = append(perTask[t.Task], t)
	}
	for i, ts := range perTask {
		if len(ts) > 0 {
			d.replay[i].Add(ts)
		}
	}
	if !d.Ready() {
		return nil
	}
	return d.update()
}

// Ready reports whether every task's replay memory has
// reached its minimum size.
func (d *DDPG) Ready() bool {
	for _, mem := range d.replay {
		if !mem.Initialized() {
			return false
		}
	}
	return true
}

// TaskAction runs the live actor on one observation of
// one task, returning the action at the task's own width.
func (d *DDPG) TaskAction(task int, obs []float64) ([]float64, error) {
	if !d.Specs.Contains(task) {
		return nil, ErrInvalidTaskID
	}
	c := d.creator
	padded := make([]float64, d.Specs.MaxObsSize())
	copy(padded, obs)
	in := anydiff.NewConst(c.MakeVectorData(c.MakeNumericList(padded)))
	out := d.Actor.ApplyTask(task, in, 1)
	return floatsFromVector(out.Output())[:d.Specs[task].ActionSize], nil
}

// SharedWeights exports a deep copy of the shared weights
// of both networks as a [critic, actor] bundle.
func (d *DDPG) SharedWeights() *SharedWeights {
	return &SharedWeights{
		Critic: d.Critic.SharedWeights(),
		Actor:  d.Actor.SharedWeights(),
	}
}

// SetSharedWeights overwrites the shared weights of both
// live networks from a bundle.
//
// The import is all-or-nothing: if any shape mismatches,
// it fails with ErrShapeMismatch and no weight changes.
func (d *DDPG) SetSharedWeights(w *SharedWeights) error {
	if err := checkVectors(d.Critic.SharedParameters(), w.Critic); err != nil {
		return err
	}
	if err := checkVectors(d.Actor.SharedParameters(), w.Actor); err != nil {
		return err
	}
	assignVectors(d.Critic.SharedParameters(), w.Critic)
	assignVectors(d.Actor.SharedParameters(), w.Actor)
	return nil
}

// FreezeSharedWeights excludes the shared weights of both
// networks from gradient updates. It is idempotent.
func (d *DDPG) FreezeSharedWeights() {
	d.Critic.Freeze()
	d.Actor.Freeze()
}

// UnfreezeSharedWeights re-enables gradient updates on
// the shared weights of both networks. It is idempotent.
func (d *DDPG) UnfreezeSharedWeights() {
	d.Critic.Unfreeze()
	d.Actor.Unfreeze()
}

// NumUpdates returns the number of gradient-update cycles
// performed so far.
func (d *DDPG) NumUpdates() int {
	return d.numUpdates
}

// LastCriticLoss returns the critic loss of the most
// recent update cycle.
func (d *DDPG) LastCriticLoss() float64 {
	return d.lastCriticLoss
}

func (d *DDPG) update() error {
	c := d.creator
	maxObs := d.Specs.MaxObsSize()
	maxAct := d.Specs.MaxActionSize()

	zeroFloats(d.states)
	zeroFloats(d.actions)
	zeroFloats(d.nextStates)
	for i := range d.replay {
		batch, err := d.replay[i].Sample(d.BatchSize)
		if err != nil {
			return err
		}
		for j, t := range batch {
			row := i*d.BatchSize + j
			copy(d.states[row*maxObs:(row+1)*maxObs], t.State)
			copy(d.actions[row*maxAct:(row+1)*maxAct], t.Action)
			copy(d.nextStates[row*maxObs:(row+1)*maxObs], t.NextState)
			d.rewards[row] = t.Reward
			if t.Absorbing {
				d.absorbing[row] = 1
			} else {
				d.absorbing[row] = 0
			}
		}
	}

	states := c.MakeVectorData(c.MakeNumericList(d.states))
	actions := c.MakeVectorData(c.MakeNumericList(d.actions))
	nextStates := c.MakeVectorData(c.MakeNumericList(d.nextStates))

	d.computeTargets(d.nextQ(nextStates))

	// The critic is fit first, so the actor's policy
	// gradient sees the freshly-updated critic.
	d.fitCritic(states, actions)
	d.fitActor(states)
	d.updateTargets()
	d.numUpdates++
	return nil
}

// nextQ evaluates the target actor and target critic on
// the next states, one Q-value per row.
func (d *DDPG) nextQ(nextStates anyvec.Vector) []float64 {
	in := anydiff.NewConst(nextStates)
	act := d.TargetActor.ApplyBlocks(in, d.BatchSize)
	q := d.TargetCritic.ApplyBlocks(in, anydiff.NewConst(act.Output()), d.BatchSize)
	return floatsFromVector(q.Output())
}

// computeTargets fills the target scratch buffer with the
// bootstrapped critic targets.
//
// Absorbing transitions keep their immediate reward but
// contribute no bootstrapped term.
func (d *DDPG) computeTargets(qNext []float64) {
	for i, spec := range d.Specs {
		for j := 0; j < d.BatchSize; j++ {
			row := i*d.BatchSize + j
			target := d.rewards[row]
			if d.absorbing[row] == 0 {
				target += spec.Discount * qNext[row]
			}
			d.targets[row] = target
		}
	}
}

func (d *DDPG) fitCritic(states, actions anyvec.Vector) {
	c := d.creator
	n := len(d.targets)
	grad := anydiff.NewGrad(d.Critic.Parameters()...)
	targets := anydiff.NewConst(c.MakeVectorData(c.MakeNumericList(d.targets)))
	q := d.Critic.ApplyBlocks(anydiff.NewConst(states), anydiff.NewConst(actions),
		d.BatchSize)
	loss := anydiff.Scale(anydiff.Sum(anydiff.Square(anydiff.Sub(q, targets))),
		c.MakeNumeric(1/float64(n)))
	d.lastCriticLoss = floatsFromVector(loss.Output())[0]
	loss.Propagate(anyvec.Ones(c, 1), grad)
	addWeightDecay(grad, d.Critic.Parameters(), d.criticWeightDecay())
	if d.Critic.SharedFrozen() {
		zeroGradEntries(grad, d.Critic.SharedParameters())
	}
	g := d.criticTrans.Transform(grad)
	if d.Critic.SharedFrozen() {
		zeroGradEntries(g, d.Critic.SharedParameters())
	}
	g.Scale(c.MakeNumeric(-d.criticStepSize()))
	g.AddToVars()
}

func (d *DDPG) fitActor(states anyvec.Vector) {
	c := d.creator
	n := len(d.targets)
	grad := anydiff.NewGrad(d.Actor.Parameters()...)
	in := anydiff.NewConst(states)
	act := d.Actor.ApplyBlocks(in, d.BatchSize)
	q := d.Critic.ApplyBlocks(in, act, d.BatchSize)
	obj := anydiff.Scale(anydiff.Sum(q), c.MakeNumeric(1/float64(n)))
	obj.Propagate(anyvec.Ones(c, 1), grad)
	if d.Actor.SharedFrozen() {
		zeroGradEntries(grad, d.Actor.SharedParameters())
	}
	g := d.actorTrans.Transform(grad)
	if d.Actor.SharedFrozen() {
		zeroGradEntries(g, d.Actor.SharedParameters())
	}
	// Ascend the mean Q-value of the actor's own actions.
	g.Scale(c.MakeNumeric(d.actorStepSize()))
	g.AddToVars()
}

func (d *DDPG) updateTargets() {
	softUpdate(d.Critic.Parameters(), d.TargetCritic.Parameters(), d.Tau)
	softUpdate(d.Actor.Parameters(), d.TargetActor.Parameters(), d.Tau)
}

func (d *DDPG) actorStepSize() float64 {
	if d.ActorStepSize != 0 {
		return d.ActorStepSize
	}
	return DefaultActorStepSize
}

func (d *DDPG) criticStepSize() float64 {
	if d.CriticStepSize != 0 {
		return d.CriticStepSize
	}
	return DefaultCriticStepSize
}

func (d *DDPG) criticWeightDecay() float64 {
	if d.CriticWeightDecay != 0 {
		return d.CriticWeightDecay
	}
	return DefaultCriticWeightDecay
}

// softUpdate mixes every live parameter into the matching
// target parameter: target = tau*live + (1-tau)*target.
func softUpdate(live, target []*anydiff.Var, tau float64) {
	for i, lp := range live {
		tp := target[i]
		c := lp.Vector.Creator()
		mixed := lp.Vector.Copy()
		mixed.Scale(c.MakeNumeric(tau))
		old := tp.Vector.Copy()
		old.Scale(c.MakeNumeric(1 - tau))
		mixed.Add(old)
		tp.Vector.Set(mixed)
	}
}

// addWeightDecay adds decay*w to every parameter's
// gradient entry, i.e. L2 regularization.
func addWeightDecay(g anydiff.Grad, params []*anydiff.Var, decay float64) {
	if decay == 0 {
		return
	}
	for _, p := range params {
		if vec, ok := g[p]; ok {
			reg := p.Vector.Copy()
			reg.Scale(vec.Creator().MakeNumeric(decay))
			vec.Add(reg)
		}
	}
}

func zeroGradEntries(g anydiff.Grad, params []*anydiff.Var) {
	for _, p := range params {
		if vec, ok := g[p]; ok {
			vec.Scale(vec.Creator().MakeNumeric(0))
		}
	}
}

func zeroFloats(s []float64) {
	for i := range s {
		s[i] = 0
	}
}

func floatsFromVector(vec anyvec.Vector) []float64 {
	switch data := vec.Data().(type) {
	case []float32:
		res := make([]float64, len(data))
		for i, x := range data {
			res[i] = float64(x)
		}
		return res
	case []float64:
		return data
	default:
		panic("unsupported numeric type")
	}
}
