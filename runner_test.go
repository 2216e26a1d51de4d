package anyddpg

import (
	"io"
	"log"
	"math"
	"testing"

	"github.com/unixpickle/anyrl"
	"github.com/unixpickle/anyvec"
	"github.com/unixpickle/anyvec/anyvec64"
)

// stubEnv is a deterministic environment with fixed-size
// observations and fixed-length episodes.
type stubEnv struct {
	creator    anyvec.Creator
	obsSize    int
	actSize    int
	episodeLen int
	reward     float64

	steps int
}

func (s *stubEnv) Reset() ([]float64, error) {
	s.steps = 0
	return s.observation(), nil
}

func (s *stubEnv) Step(action []float64) ([]float64, float64, bool, error) {
	if len(action) != s.actSize {
		panic("bad action size")
	}
	s.steps++
	return s.observation(), s.reward, s.steps >= s.episodeLen, nil
}

func (s *stubEnv) observation() []float64 {
	obs := make([]float64, s.obsSize)
	for i := range obs {
		obs[i] = 0.1 * float64(i+s.steps+1)
	}
	return obs
}

func TestRunnerFlow(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	agent := newTestAgent(t, 2, 4, 100, 0.5)

	runner := &Runner{
		Agent: agent,
		Envs: []anyrl.Env{
			&stubEnv{creator: c, obsSize: 3, actSize: 2, episodeLen: 6, reward: 1},
			&stubEnv{creator: c, obsSize: 2, actSize: 1, episodeLen: 4, reward: -1},
		},
		Noise:         NewOUNoise(agent.Specs, 0, 0, 0, 123),
		NumEpochs:     2,
		StepsPerEpoch: 3,
		EvalSteps:     5,
		UnfreezeEpoch: 1,
		Logger:        log.New(io.Discard, "", 0),
	}
	if err := runner.Run(); err != nil {
		t.Fatal(err)
	}

	if !agent.Ready() {
		t.Error("agent not ready after the fill phase")
	}

	// 4 fill steps (one update on the last) plus 3 fit
	// calls in each of the 2 learning epochs.
	if agent.NumUpdates() != 7 {
		t.Errorf("update count should be 7 but got %d", agent.NumUpdates())
	}

	if runner.BestWeights == nil {
		t.Error("no best shared snapshot tracked")
	}
	if agent.Actor.SharedFrozen() || agent.Critic.SharedFrozen() {
		t.Error("shared weights still frozen after the unfreeze epoch")
	}
}

func TestRunnerBestSnapshot(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	agent := newTestAgent(t, 2, 4, 100, 0.5)

	runner := &Runner{
		Agent: agent,
		Envs: []anyrl.Env{
			&stubEnv{creator: c, obsSize: 3, actSize: 2, episodeLen: 6, reward: 2},
			&stubEnv{creator: c, obsSize: 2, actSize: 1, episodeLen: 4, reward: 0.5},
		},
		NumEpochs:     1,
		StepsPerEpoch: 2,
		EvalSteps:     4,
		Logger:        log.New(io.Discard, "", 0),
	}
	if err := runner.Run(); err != nil {
		t.Fatal(err)
	}

	// Rewards are constant and positive, so the last
	// evaluation ties or beats every earlier one and the
	// snapshot must reflect the final shared weights.
	final := agent.SharedWeights()
	if !vectorListsEqual(runner.BestWeights.Critic, final.Critic) ||
		!vectorListsEqual(runner.BestWeights.Actor, final.Actor) {
		t.Error("best snapshot does not match the final shared weights")
	}
}

func vectorListsEqual(a, b []anyvec.Vector) bool {
	if len(a) != len(b) {
		return false
	}
	for i, vec := range a {
		x := vec.Data().([]float64)
		y := b[i].Data().([]float64)
		for j := range x {
			if x[j] != y[j] {
				return false
			}
		}
	}
	return true
}

func TestRunnerBaselineSnapshot(t *testing.T) {
	c := anyvec64.DefaultCreator{}
	agent := newTestAgent(t, 2, 4, 100, 0.5)

	runner := &Runner{
		Agent: agent,
		Envs: []anyrl.Env{
			&stubEnv{creator: c, obsSize: 3, actSize: 2, episodeLen: 6, reward: 1},
			&stubEnv{creator: c, obsSize: 2, actSize: 1, episodeLen: 4, reward: 1},
		},
		NumEpochs: 0,
		EvalSteps: 3,
		Logger:    log.New(io.Discard, "", 0),
	}
	if err := runner.Run(); err != nil {
		t.Fatal(err)
	}

	// The pre-training evaluation is a logged baseline
	// only; without learning epochs there is no snapshot.
	if runner.BestWeights != nil {
		t.Error("baseline evaluation produced a best snapshot")
	}
	if !math.IsInf(runner.BestScore, -1) {
		t.Errorf("baseline evaluation moved the best score to %v", runner.BestScore)
	}
}
