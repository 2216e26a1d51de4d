package anyddpg

import "testing"

func TestOUNoiseDeterminism(t *testing.T) {
	specs := testTaskSpecs()
	n1 := NewOUNoise(specs, 0, 0, 0, 42)
	n2 := NewOUNoise(specs, 0, 0, 0, 42)

	for i := 0; i < 10; i++ {
		for task := range specs {
			s1 := n1.Sample(task)
			s2 := n2.Sample(task)
			if len(s1) != specs[task].ActionSize {
				t.Fatalf("task %d: noise width %d != %d", task, len(s1),
					specs[task].ActionSize)
			}
			for j := range s1 {
				if s1[j] != s2[j] {
					t.Fatalf("step %d: task %d: %v != %v", i, task, s1[j], s2[j])
				}
			}
		}
	}
}

func TestOUNoiseReset(t *testing.T) {
	specs := testTaskSpecs()
	noise := NewOUNoise(specs, 0, 0, 0, 7)
	for i := 0; i < 5; i++ {
		noise.Sample(0)
	}
	noise.Reset(0)
	for _, x := range noise.state[0] {
		if x != 0 {
			t.Errorf("state not zeroed after reset: %v", noise.state[0])
			break
		}
	}
}
