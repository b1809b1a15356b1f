package randx

// Volume regimes for the hourly distribution.
const (
	highVolumeFloor = 2000
	midVolumeFloor  = 500

	redistributeFrac = 0.20
	nightDrainCap    = 0.30
	highSwapFrac     = 0.10
	midSwapFrac      = 0.30
	minuteSwapFrac   = 0.10
)

var (
	nightHours = []int{0, 1, 2, 3, 4, 5, 22, 23}
	peakHours  = []int{9, 10, 11, 14, 15, 16}
	allHours   = []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 15, 16, 17, 18, 19, 20, 21, 22, 23}
)

// HourlyDistribution spreads n emails over the 24 hours of a day. Large
// volumes use the whole day with traffic shifted off the night hours toward
// business peaks; smaller volumes concentrate on a random subset of hours.
// The result always sums to exactly n.
func (k *Kernel) HourlyDistribution(n int, intensity float64) [24]int {
	var hours [24]int
	if n <= 0 {
		return hours
	}
	switch {
	case n > highVolumeFloor:
		k.fillAllDay(&hours, n, intensity)
		k.correctTotal(&hours, allHours, n)
	case n > midVolumeFloor:
		active := k.activeHours(k.IntRange(12, 18))
		k.fillEven(&hours, active, n)
		k.swapAmong(&hours, active, int(intensity*midSwapFrac*float64(n)), 2)
		k.correctTotal(&hours, active, n)
	default:
		lo := max(4, 8-int(3*intensity))
		hi := min(12, 12-int(2*intensity))
		if hi < lo {
			hi = lo
		}
		active := k.activeHours(k.IntRange(lo, hi))
		k.fillEven(&hours, active, n)
		k.swapAmong(&hours, active, int(intensity*midSwapFrac*float64(n)), 2)
		k.correctTotal(&hours, active, n)
	}
	return hours
}

// fillAllDay handles the high-volume regime: an even 24-hour spread, night
// traffic drained toward the peak hours, then intensity-scaled swaps.
func (k *Kernel) fillAllDay(hours *[24]int, n int, intensity float64) {
	base := n / 24
	rem := n % 24
	for h := range hours {
		hours[h] = base
	}
	for i := 0; i < rem; i++ {
		hours[i%24]++
	}

	moveTotal := int(redistributeFrac * float64(n))
	perNight := moveTotal / len(nightHours)
	drainCap := int(nightDrainCap * float64(base))
	moved := 0
	for _, h := range nightHours {
		take := min(perNight, drainCap)
		if take > hours[h] {
			take = hours[h]
		}
		hours[h] -= take
		moved += take
	}
	for i := 0; i < moved; i++ {
		hours[peakHours[i%len(peakHours)]]++
	}

	k.swapAmong(hours, allHours, int(intensity*highSwapFrac*float64(n)), 1)
}

// activeHours picks count distinct hours of the day.
func (k *Kernel) activeHours(count int) []int {
	if count > 24 {
		count = 24
	}
	perm := k.Perm(24)
	return perm[:count]
}

// fillEven gives each active hour an equal share and scatters the remainder.
func (k *Kernel) fillEven(hours *[24]int, active []int, n int) {
	base := n / len(active)
	rem := n % len(active)
	for _, h := range active {
		hours[h] = base
	}
	if rem > 0 {
		perm := k.Perm(len(active))
		for i := 0; i < rem && i < len(perm); i++ {
			hours[active[perm[i]]]++
		}
	}
}

// swapAmong moves one email at a time between random active hours. A source
// hour must hold at least minFrom so that minFrom=2 never empties an hour.
func (k *Kernel) swapAmong(hours *[24]int, active []int, swaps, minFrom int) {
	if len(active) < 2 {
		return
	}
	for i := 0; i < swaps; i++ {
		from := k.pickHour(hours, active, minFrom)
		if from < 0 {
			return
		}
		to := active[k.Intn(len(active))]
		if to == from {
			continue
		}
		hours[from]--
		hours[to]++
	}
}

// pickHour returns a random active hour holding at least minCount, or -1.
func (k *Kernel) pickHour(hours *[24]int, active []int, minCount int) int {
	candidates := make([]int, 0, len(active))
	for _, h := range active {
		if hours[h] >= minCount {
			candidates = append(candidates, h)
		}
	}
	if len(candidates) == 0 {
		return -1
	}
	return candidates[k.Intn(len(candidates))]
}

// correctTotal tops up or drains random active hours until the distribution
// sums to exactly n. Drains prefer hours that stay nonzero.
func (k *Kernel) correctTotal(hours *[24]int, active []int, n int) {
	total := 0
	for _, c := range hours {
		total += c
	}
	for total < n {
		hours[active[k.Intn(len(active))]]++
		total++
	}
	for total > n {
		h := k.pickHour(hours, active, 2)
		if h < 0 {
			h = k.pickHour(hours, active, 1)
		}
		if h < 0 {
			return
		}
		hours[h]--
		total--
	}
}

// MinuteDistribution spreads m emails over the 60 minutes of an hour: an
// even share per minute, the remainder scattered over distinct minutes, then
// 10% random one-email moves. Sums to exactly m.
func (k *Kernel) MinuteDistribution(m int) [60]int {
	var minutes [60]int
	if m <= 0 {
		return minutes
	}
	base := m / 60
	rem := m % 60
	for i := range minutes {
		minutes[i] = base
	}
	if rem > 0 {
		perm := k.Perm(60)
		for i := 0; i < rem; i++ {
			minutes[perm[i]]++
		}
	}
	swaps := int(minuteSwapFrac * float64(m))
	for i := 0; i < swaps; i++ {
		from := k.pickMinute(&minutes)
		if from < 0 {
			return minutes
		}
		to := k.Intn(60)
		if to == from {
			continue
		}
		minutes[from]--
		minutes[to]++
	}
	return minutes
}

// pickMinute returns a random minute with at least one email, or -1.
func (k *Kernel) pickMinute(minutes *[60]int) int {
	candidates := make([]int, 0, 60)
	for i, c := range minutes {
		if c > 0 {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return -1
	}
	return candidates[k.Intn(len(candidates))]
}
