package randx

import "math"

// Split divides total across n parts. Each of the first n-1 parts is drawn
// uniformly from [max(1, ⌊avg·0.8⌋), min(⌊avg·1.2⌋, remaining-(parts left))]
// and the last part takes the residue, so the parts always sum to total and
// every part is >= 1 whenever total >= n.
func (k *Kernel) Split(total, n int) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	if n == 1 {
		out[0] = total
		return out
	}
	avg := float64(total) / float64(n)
	remaining := total
	for i := 0; i < n-1; i++ {
		lo := max(1, int(avg*0.8))
		hi := min(int(avg*1.2), remaining-(n-i-1))
		if hi < 1 {
			// not enough left to seed the remaining parts
			if remaining > 0 {
				out[i] = 1
				remaining--
			}
			continue
		}
		if lo > hi {
			lo = hi
		}
		v := k.IntRange(lo, hi)
		out[i] = v
		remaining -= v
	}
	out[n-1] = remaining
	return out
}

// SenderSplit divides domainTotal across n senders. Each draw varies around
// the even share by ±(0.2 + 0.3·intensity)·base and is capped both at
// maxPct percent of the domain total and at what the remaining senders still
// need. Residue lands on the last sender; cap overflow is shifted onto
// senders with headroom so the parts keep summing to domainTotal.
func (k *Kernel) SenderSplit(domainTotal, n int, maxPct, intensity float64) []int {
	if n <= 0 {
		return nil
	}
	out := make([]int, n)
	if domainTotal <= 0 {
		return out
	}
	if n == 1 {
		out[0] = domainTotal
		return out
	}
	capPer := int(float64(domainTotal) * maxPct / 100.0)
	if capPer < 1 {
		capPer = 1
	}
	base := float64(domainTotal) / float64(n)
	spread := (0.2 + 0.3*intensity) * base
	remaining := domainTotal
	for i := 0; i < n-1; i++ {
		v := int(math.Round(base + (k.Float64()*2-1)*spread))
		if v > capPer {
			v = capPer
		}
		if hi := remaining - (n - i - 1); v > hi {
			v = hi
		}
		if v < 1 {
			v = 1
		}
		if v > remaining {
			v = remaining
		}
		if remaining <= 0 {
			v = 0
		}
		out[i] = v
		remaining -= v
	}
	out[n-1] = remaining

	if out[n-1] > capPer {
		over := out[n-1] - capPer
		out[n-1] = capPer
		for i := 0; i < n-1 && over > 0; i++ {
			room := capPer - out[i]
			if room <= 0 {
				continue
			}
			if room > over {
				room = over
			}
			out[i] += room
			over -= room
		}
		// caps cannot absorb everything; totals win over the cap
		out[n-1] += over
	}
	return out
}
