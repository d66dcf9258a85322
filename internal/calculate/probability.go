package calculate

import "math"

// ProbabilityAtLeastOne is the chance that a pool of n independent users with
// conversion probability p produces at least one sale
func ProbabilityAtLeastOne(p float64, n int) float64 {
	if n <= 0 || p <= 0 {
		return 0
	}
	if p >= 1 {
		return 1
	}
	return 1 - math.Pow(1-p, float64(n))
}

// TrialsForProbability is the number of users needed to reach the target
// probability of at least one sale. Returns +Inf when p is 0.
func TrialsForProbability(p, target float64) float64 {
	if p <= 0 {
		return math.Inf(1)
	}
	if target <= 0 {
		return 0
	}
	if p >= 1 {
		return 1
	}
	if target >= 1 {
		return math.Inf(1)
	}
	return math.Ceil(math.Log(1-target) / math.Log(1-p))
}
