package anyddpg

import "testing"

func TestReplayMemoryInitialization(t *testing.T) {
	mem, err := NewReplayMemory(4, 8)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := mem.Sample(1); err != ErrInsufficientData {
		t.Errorf("expected ErrInsufficientData but got %v", err)
	}
	mem.Add(makeTransitions(0, 3))
	if mem.Initialized() {
		t.Error("initialized below minimum size")
	}
	mem.Add(makeTransitions(0, 1))
	if !mem.Initialized() {
		t.Error("not initialized at minimum size")
	}
	if _, err := mem.Sample(10); err != nil {
		t.Errorf("sample failed after initialization: %v", err)
	}
}

func TestReplayMemoryEviction(t *testing.T) {
	mem, err := NewReplayMemory(1, 3)
	if err != nil {
		t.Fatal(err)
	}
	for i := 0; i < 5; i++ {
		mem.Add([]Transition{{Task: 0, Reward: float64(i)}})
	}
	if mem.Len() != 3 {
		t.Fatalf("length should be 3 but got %d", mem.Len())
	}
	stored := map[float64]bool{}
	for _, entry := range mem.entries {
		stored[entry.Reward] = true
	}
	for _, want := range []float64{2, 3, 4} {
		if !stored[want] {
			t.Errorf("reward %v evicted too early (stored: %v)", want, stored)
		}
	}
}

func TestNewReplayMemoryValidation(t *testing.T) {
	if _, err := NewReplayMemory(5, 4); err == nil {
		t.Error("expected error for minSize > capacity")
	}
	if _, err := NewReplayMemory(0, 4); err == nil {
		t.Error("expected error for zero minSize")
	}
}

func makeTransitions(task, n int) []Transition {
	res := make([]Transition, n)
	for i := range res {
		res[i] = Transition{
			Task:      task,
			State:     []float64{0.1, 0.2},
			Action:    []float64{0.3},
			Reward:    1,
			NextState: []float64{0.2, 0.1},
		}
	}
	return res
}
