// -*- tab-width:2 -*-

package rpcq

// This file has the distributions used for link latency and the
// interfaces to use them.

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/stat/distuv"
)

// smallestP keeps quantiles finite at the edges.
const smallestP = 1e-9

// ModelCdf maps a probability p in [0, 1) to a value of the random
// variable (an inverse CDF). It should be >= 0 for all p.
type ModelCdf func(p float64) float64

// Sample draws one value using rng.
func (f ModelCdf) Sample(rng *rand.Rand) float64 {
	return f(rng.Float64())
}

// ConstantCDF always returns v.
func ConstantCDF(v float64) ModelCdf {
	return func(_ float64) float64 {
		return v
	}
}

// UniformCDF returns the inverse CDF of a uniform random variable over [a, b]
// Given a probability p (0 to 1), it returns the corresponding z such that P(Z <= z) = p.
func UniformCDF(a, b float64) ModelCdf {
	return func(p float64) float64 {
		if p < 0 {
			return a
		}

		if p > 1 {
			return b
		}

		return a + p*(b-a) // Linear interpolation between a and b
	}
}

// NormalCDF returns the inverse CDF of a normal random variable with
// mean mu and standard deviation sigma, truncated at zero.
func NormalCDF(mu, sigma float64) ModelCdf {
	norm := distuv.Normal{
		Mu:    mu,
		Sigma: sigma,
	}

	return func(p float64) float64 {
		return math.Max(0, norm.Quantile(clampP(p)))
	}
}

// LogNormalCDF returns the inverse CDF of a Log-Normal distribution with mean mu
// and standard deviation sigma for the logarithm of the distribution.
func LogNormalCDF(mu, sigma float64) ModelCdf {
	logNorm := distuv.LogNormal{
		Mu:    mu,
		Sigma: sigma,
	}

	return func(p float64) float64 {
		return logNorm.Quantile(clampP(p))
	}
}

// ParetoCDF returns the inverse CDF of a Pareto distribution with scale xm and shape alpha.
func ParetoCDF(xm, alpha float64) ModelCdf {
	pareto := distuv.Pareto{
		Xm:    xm,
		Alpha: alpha,
	}

	return func(p float64) float64 {
		return pareto.Quantile(clampP(p))
	}
}

func clampP(p float64) float64 {
	return math.Min(math.Max(p, smallestP), 1-smallestP)
}
