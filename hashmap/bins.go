package hashmap

import "math"

// primes holds, for each i, the smallest prime greater than 2^(5+i/3).
var primes = [...]int{
	17, 23, 29, 37, 41, 53, 67, 83, 103, 131, 163, 211, 257, 331, 409, 521, 647, 821,
	1031, 1291, 1627, 2053, 2591, 3251, 4099, 5167, 6521, 8209, 10331,
	13007, 16411, 20663, 26017, 32771, 41299, 52021, 65537, 82571, 104033,
	131101, 165161, 208067, 262147, 330287, 416147, 524309, 660563,
	832291, 1048583, 1321139, 1664543, 2097169, 2642257, 3329023, 4194319,
	5284493, 6658049, 8388617, 10568993, 13316089,
}

// maxBins is the largest bin count PickSize returns.
const maxBins = uint64(math.MaxUint32)

// PickSize returns the bin count for n elements at the given optimal
// load: the smallest tabled prime not below n/optimalLoad, or the
// estimate itself once it is past the table.
func PickSize(n int, optimalLoad float64) int {
	if n < 0 {
		n = 0
	}
	est := maxBins
	if f := float64(n) / optimalLoad; f < float64(maxBins) {
		est = uint64(f)
	}
	for _, p := range primes {
		if est <= uint64(p) {
			return p
		}
	}
	return int(min(est, uint64(math.MaxInt)))
}
