// Package mathx holds the small numeric helpers shared by the mortality
// solver, observations and likelihoods.
package mathx

import "math"

// ZeroFun returns x when x >= delta, otherwise a smooth positive value in
// (delta/2, delta] so that callers can divide by it without producing Inf.
func ZeroFun(x float64, delta ...float64) float64 {
	d := zerofunDelta
	if len(delta) > 0 && delta[0] > 0. {
		d = delta[0]
	}
	if x >= d {
		return x
	}
	return d / (2. - (x / d))
}

// Floored reports whether ZeroFun would replace x by its floor
func Floored(x float64) bool { return x < zerofunDelta }

// LnFactorial returns ln(t!) for real t >= 0
func LnFactorial(t float64) float64 {
	v, _ := math.Lgamma(t + 1.)
	return v
}

func IsOne(v float64) bool { return math.Abs(v-1.) < oneTolerance }

func IsZero(v float64) bool { return math.Abs(v) < nearzero }
