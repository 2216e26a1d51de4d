package anyddpg

// DiscountedReturn computes the discounted return of one
// episode's reward sequence.
func DiscountedReturn(rewards []float64, discount float64) float64 {
	var res, factor float64
	factor = 1
	for _, r := range rewards {
		res += factor * r
		factor *= discount
	}
	return res
}

// MeanDiscountedReturn averages the discounted returns of
// a set of episodes.
//
// It returns 0 for an empty set.
func MeanDiscountedReturn(episodes [][]float64, discount float64) float64 {
	if len(episodes) == 0 {
		return 0
	}
	var sum float64
	for _, ep := range episodes {
		sum += DiscountedReturn(ep, discount)
	}
	return sum / float64(len(episodes))
}
