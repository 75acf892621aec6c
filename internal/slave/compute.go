package slave

// Integrand is the function every worker integrates.
func Integrand(x float64) float64 {
	return x * x * x
}

// LeftRiemannSum approximates the integral of Integrand over [lower, upper]
// with splits equal-width rectangles sampled at their left edge.
func LeftRiemannSum(lower, upper float64, splits int) float64 {
	if splits < 1 {
		splits = 1
	}
	h := (upper - lower) / float64(splits)

	sum := 0.0
	for i := range splits {
		x := lower + float64(i)*h
		sum += Integrand(x) * h
	}
	return sum
}
