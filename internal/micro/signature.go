package micro

import (
	"math"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Weights for the maker-detection blend. Symmetry dominates because human
// books are rarely balanced; automated quoting produces mirror-image depth.
const (
	weightSymmetry    = 0.30
	weightConsistency = 0.25
	weightSizes       = 0.20
	weightFrequency   = 0.15
	weightDepth       = 0.10

	makerCutoff   = 0.70
	exploitCutoff = 0.60

	uniformCV = 0.15
)

// symmetry compares aggregate bid and ask depth: 1 means perfectly mirrored.
func symmetry(s domain.OrderbookSnapshot) float64 {
	bid, ask := s.BidDepth(), s.AskDepth()
	if bid == 0 || ask == 0 {
		return 0
	}
	return math.Min(bid, ask) / math.Max(bid, ask)
}

// spreadConsistency is 1 minus the coefficient of variation of recent
// spreads, clamped to [0, 1]. A maker re-quoting a fixed spread scores high.
func spreadConsistency(history []domain.OrderbookSnapshot) float64 {
	if len(history) < 2 {
		return 0
	}
	spreads := make([]float64, len(history))
	for i, s := range history {
		spreads[i] = s.Spread()
	}
	cv := coefficientOfVariation(spreads)
	return math.Max(0, 1-cv)
}

// sizePattern classifies how sizes are laid out across the book's levels
// and scores their regularity.
func sizePattern(s domain.OrderbookSnapshot) (domain.SizePattern, float64) {
	sizes := make([]float64, 0, len(s.Bids)+len(s.Asks))
	for _, l := range s.Bids {
		sizes = append(sizes, l.Size)
	}
	for _, l := range s.Asks {
		sizes = append(sizes, l.Size)
	}
	if len(sizes) < 2 {
		return domain.PatternRandom, 0
	}

	cv := coefficientOfVariation(sizes)
	score := math.Max(0, 1-cv)
	switch {
	case cv < uniformCV:
		return domain.PatternUniform, score
	case monotonic(s.Bids, 1) && monotonic(s.Asks, 1):
		return domain.PatternIncreasing, score
	case monotonic(s.Bids, -1) && monotonic(s.Asks, -1):
		return domain.PatternDecreasing, score
	default:
		return domain.PatternRandom, score
	}
}

// monotonic checks level sizes move in one direction away from the touch.
func monotonic(levels []domain.PriceLevel, dir int) bool {
	if len(levels) < 2 {
		return false
	}
	for i := 1; i < len(levels); i++ {
		d := levels[i].Size - levels[i-1].Size
		if dir > 0 && d <= 0 {
			return false
		}
		if dir < 0 && d >= 0 {
			return false
		}
	}
	return true
}

func coefficientOfVariation(xs []float64) float64 {
	var sum float64
	for _, x := range xs {
		sum += x
	}
	mean := sum / float64(len(xs))
	if mean == 0 {
		return 1
	}
	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return math.Sqrt(ss/float64(len(xs))) / math.Abs(mean)
}

// blend computes the composite maker confidence from component scores.
func blend(sym, consistency, sizes, freq, depth float64) float64 {
	return sym*weightSymmetry +
		consistency*weightConsistency +
		sizes*weightSizes +
		freq*weightFrequency +
		depth*weightDepth
}
