package anyddpg

import (
	"math"
	"testing"
)

func TestDiscountedReturn(t *testing.T) {
	got := DiscountedReturn([]float64{1, 1, 1}, 0.5)
	if got != 1.75 {
		t.Errorf("expected 1.75 but got %v", got)
	}
	if DiscountedReturn(nil, 0.9) != 0 {
		t.Error("empty episode should have zero return")
	}
}

func TestMeanDiscountedReturn(t *testing.T) {
	episodes := [][]float64{
		{1, 1, 1},
		{2},
	}
	got := MeanDiscountedReturn(episodes, 0.5)
	want := (1.75 + 2) / 2
	if math.Abs(got-want) > 1e-12 {
		t.Errorf("expected %v but got %v", want, got)
	}
	if MeanDiscountedReturn(nil, 0.9) != 0 {
		t.Error("no episodes should mean zero return")
	}
}
