package anyddpg

import (
	"errors"
	"log"
	"math"

	"github.com/unixpickle/anyrl"
	"github.com/unixpickle/essentials"
)

// A Runner drives one multitask training run to
// completion: it fills the replay memories with
// exploratory data, then alternates learning and
// evaluation epochs, tracking the best-performing shared
// weight snapshot along the way.
type Runner struct {
	Agent *DDPG

	// Envs contains one environment per task, indexed by
	// task id.
	Envs []anyrl.Env

	// Noise is the exploration noise used while learning.
	Noise *OUNoise

	NumEpochs     int
	StepsPerEpoch int // fit calls per learning epoch
	EvalSteps     int // env steps per task per evaluation

	// UnfreezeEpoch, if positive, freezes the shared
	// weights after the first evaluation and unfreezes
	// them once the epoch counter reaches it.
	UnfreezeEpoch int

	// Transfer, if non-nil, is imported into the agent
	// after the initial replay fill.
	Transfer *SharedWeights

	// SharedPath, if non-empty, is where the best shared
	// weight bundle is persisted when the run ends.
	SharedPath string

	// Stop, if non-nil, ends the run after the current
	// epoch.
	Stop <-chan struct{}

	// Logger receives per-epoch per-task returns.
	// If nil, the default logger is used.
	Logger *log.Logger

	// BestScore and BestWeights track the best shared
	// snapshot seen so far, by summed per-task return.
	BestScore   float64
	BestWeights *SharedWeights

	obs     [][]float64
	epSteps []int
}

// Run executes the whole training run.
func (r *Runner) Run() (err error) {
	defer essentials.AddCtxTo("run multitask DDPG", &err)
	if len(r.Envs) != len(r.Agent.Specs) {
		return errors.New("environment count does not match task count")
	}
	r.BestScore = math.Inf(-1)

	if err := r.resetAll(); err != nil {
		return err
	}
	for !r.Agent.Ready() {
		batch, err := r.gatherStep(true)
		if err != nil {
			return err
		}
		if err := r.Agent.Fit(batch); err != nil {
			return err
		}
	}

	if r.Transfer != nil {
		if err := r.Agent.SetSharedWeights(r.Transfer); err != nil {
			return err
		}
	}

	if err := r.evaluate(0); err != nil {
		return err
	}
	if r.UnfreezeEpoch > 0 {
		r.Agent.FreezeSharedWeights()
	}

	for epoch := 1; epoch <= r.NumEpochs; epoch++ {
		if r.UnfreezeEpoch > 0 && epoch >= r.UnfreezeEpoch {
			r.Agent.UnfreezeSharedWeights()
		}
		if err := r.learnEpoch(); err != nil {
			return err
		}
		if err := r.evaluate(epoch); err != nil {
			return err
		}
		if r.stopped() {
			break
		}
	}

	if r.SharedPath != "" && r.BestWeights != nil {
		return SaveSharedWeights(r.SharedPath, r.BestWeights)
	}
	return nil
}

func (r *Runner) learnEpoch() error {
	if err := r.resetAll(); err != nil {
		return err
	}
	for step := 0; step < r.StepsPerEpoch; step++ {
		batch, err := r.gatherStep(true)
		if err != nil {
			return err
		}
		if err := r.Agent.Fit(batch); err != nil {
			return err
		}
	}
	return nil
}

// gatherStep advances every task's environment by one
// step and returns the resulting transitions.
func (r *Runner) gatherStep(explore bool) ([]Transition, error) {
	res := make([]Transition, 0, len(r.Envs))
	for task := range r.Envs {
		action, err := r.action(task, r.obs[task], explore)
		if err != nil {
			return nil, err
		}
		obs, reward, done, err := r.stepEnv(task, action)
		if err != nil {
			return nil, err
		}
		res = append(res, Transition{
			Task:      task,
			State:     r.obs[task],
			Action:    action,
			Reward:    reward,
			NextState: obs,
			Absorbing: done,
		})
		r.obs[task] = obs
		r.epSteps[task]++
		if done || r.epSteps[task] >= r.Agent.Specs[task].Horizon {
			if err := r.resetTask(task); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

// evaluate runs the deterministic policy on every task
// and logs the per-task mean discounted returns.
func (r *Runner) evaluate(epoch int) error {
	scores := make([]float64, len(r.Envs))
	var sum float64
	for task := range r.Envs {
		score, err := r.evaluateTask(task)
		if err != nil {
			return err
		}
		scores[task] = score
		sum += score
		r.logger().Printf("epoch %d: task %d: mean_return=%f", epoch, task, score)
	}
	r.logger().Printf("epoch %d: total_return=%f critic_loss=%f", epoch, sum,
		r.Agent.LastCriticLoss())
	// The pre-training baseline is logged but never
	// snapshotted; only learning epochs compete for the
	// best shared weights.
	if epoch > 0 && sum >= r.BestScore {
		r.BestScore = sum
		r.BestWeights = r.Agent.SharedWeights()
	}
	return nil
}

func (r *Runner) evaluateTask(task int) (float64, error) {
	if err := r.resetTask(task); err != nil {
		return 0, err
	}
	spec := r.Agent.Specs[task]
	var episodes [][]float64
	var current []float64
	for step := 0; step < r.EvalSteps; step++ {
		action, err := r.action(task, r.obs[task], false)
		if err != nil {
			return 0, err
		}
		obs, reward, done, err := r.stepEnv(task, action)
		if err != nil {
			return 0, err
		}
		current = append(current, reward)
		r.obs[task] = obs
		r.epSteps[task]++
		if done || r.epSteps[task] >= spec.Horizon {
			episodes = append(episodes, current)
			current = nil
			if err := r.resetTask(task); err != nil {
				return 0, err
			}
		}
	}
	if len(current) > 0 {
		episodes = append(episodes, current)
	}
	return MeanDiscountedReturn(episodes, spec.Discount), nil
}

// action computes the agent's action for one task,
// adding exploration noise and clamping to the task's
// bound when explore is set.
func (r *Runner) action(task int, obs []float64, explore bool) ([]float64, error) {
	action, err := r.Agent.TaskAction(task, obs)
	if err != nil {
		return nil, err
	}
	if explore && r.Noise != nil {
		bound := r.Agent.Specs[task].ActionBound
		for i, n := range r.Noise.Sample(task) {
			action[i] = math.Max(-bound, math.Min(bound, action[i]+n))
		}
	}
	return action, nil
}

func (r *Runner) stepEnv(task int, action []float64) ([]float64, float64, bool, error) {
	obs, reward, done, err := r.Envs[task].Step(action)
	if err != nil {
		return nil, 0, false, err
	}
	return obs, reward, done, nil
}

func (r *Runner) resetAll() error {
	if r.obs == nil {
		r.obs = make([][]float64, len(r.Envs))
		r.epSteps = make([]int, len(r.Envs))
	}
	for task := range r.Envs {
		if err := r.resetTask(task); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runner) resetTask(task int) error {
	obs, err := r.Envs[task].Reset()
	if err != nil {
		return err
	}
	r.obs[task] = obs
	r.epSteps[task] = 0
	if r.Noise != nil {
		r.Noise.Reset(task)
	}
	return nil
}

func (r *Runner) stopped() bool {
	if r.Stop == nil {
		return false
	}
	select {
	case <-r.Stop:
		return true
	default:
		return false
	}
}

func (r *Runner) logger() *log.Logger {
	if r.Logger != nil {
		return r.Logger
	}
	return log.Default()
}
