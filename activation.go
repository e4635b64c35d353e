package anfis

import "math"

// Numerically stable sigmoid and log-sigmoid, branched by input range so no
// intermediate exponential can overflow.  See
// http://fa.bianp.net/blog/2019/evaluate_logistic for the derivation and the
// breakpoint choices.

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1.0 / (1.0 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1.0 + e)
}

func logsig(z float64) float64 {
	switch {
	case z < -33.3:
		return z
	case z < -18.0:
		return z - math.Exp(z)
	case z < 37.0:
		return -math.Log1p(math.Exp(-z))
	default:
		return -math.Exp(-z)
	}
}
