package randx

import "math"

const (
	bisectLo       = 1.0
	bisectHi       = 10.0
	bisectMaxIters = 100
	bisectTol      = 1.0

	growthLo = 1.03
	growthHi = 1.07

	jitterLo = 0.05
	jitterHi = 0.15
)

// GrowthRatio solves for the geometric ratio r such that
// start + start*r + ... + start*r^(quotaDays-1) = targetSum, by bisection on
// [1, 10]. Out-of-range targets clamp to the nearest bound.
func GrowthRatio(start, quotaDays, targetSum int) float64 {
	if start <= 0 || quotaDays <= 1 {
		return 1
	}
	sumFor := func(r float64) float64 {
		if math.Abs(r-1) < 1e-12 {
			return float64(start) * float64(quotaDays)
		}
		return float64(start) * (math.Pow(r, float64(quotaDays)) - 1) / (r - 1)
	}
	target := float64(targetSum)
	if sumFor(bisectLo) >= target {
		return bisectLo
	}
	if sumFor(bisectHi) <= target {
		return bisectHi
	}
	lo, hi := bisectLo, bisectHi
	for i := 0; i < bisectMaxIters; i++ {
		mid := (lo + hi) / 2
		s := sumFor(mid)
		if math.Abs(s-target) <= bisectTol {
			return mid
		}
		if s < target {
			lo = mid
		} else {
			hi = mid
		}
	}
	return (lo + hi) / 2
}

// DailyQuota returns the email target for one campaign day. Days within the
// quota window follow the geometric curve toward targetSum; later days keep
// growing by a per-call uniform factor in [1.03, 1.07]. Intensity scales a
// ±U(5%,15%) jitter on the result; the result is always >= 1.
func (k *Kernel) DailyQuota(day, start, quotaDays, targetSum int, intensity float64) int {
	if day < 1 {
		day = 1
	}
	if start < 1 {
		start = 1
	}
	r := GrowthRatio(start, quotaDays, targetSum)
	q := float64(start) * math.Pow(r, float64(min(day, quotaDays)-1))
	if day > quotaDays {
		g := k.FloatRange(growthLo, growthHi)
		q *= math.Pow(g, float64(day-quotaDays))
	}
	q = math.Round(q)
	if intensity > 0 {
		frac := k.FloatRange(jitterLo, jitterHi) * intensity
		if k.Intn(2) == 0 {
			frac = -frac
		}
		q = math.Round(q * (1 + frac))
	}
	if q < 1 {
		q = 1
	}
	return int(q)
}

func min(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
