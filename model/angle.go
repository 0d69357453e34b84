package model

import (
	"math"

	"gonum.org/v1/gonum/mat"
)

// NormalizeAngle returns the angle in (-Pi, Pi] which is congruent to a modulo 2*Pi.
// NaN and infinite inputs return NaN.
func NormalizeAngle(a float64) float64 {
	if a > -math.Pi && a <= math.Pi {
		return a
	}

	a = math.Mod(a+math.Pi, 2*math.Pi)
	if a <= 0 {
		a += 2 * math.Pi
	}

	a -= math.Pi
	if a <= -math.Pi {
		return math.Pi
	}

	return a
}

// NormalizeAngles normalizes the components of v at indices idx in place.
func NormalizeAngles(v *mat.VecDense, idx []int) {
	for _, i := range idx {
		v.SetVec(i, NormalizeAngle(v.AtVec(i)))
	}
}
