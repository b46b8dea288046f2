package risk

import (
	"math"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

const (
	winRateFloor    = 0.45
	strongWinRate   = 0.60
	strongAvgReturn = 0.05
	growthCap       = 1.2
)

// adaptiveMultiplier maps a rolling performance window to a deterministic
// sizing multiplier: shrink on poor form, shrink geometrically per loss in a
// streak beyond two, halve on negative average return, and grow modestly
// under sustained strong performance.
func adaptiveMultiplier(stats domain.TradeStats) float64 {
	mult := 1.0
	if stats.WinRate < winRateFloor {
		mult *= 0.7
	}
	if stats.ConsecutiveLosses >= 3 {
		mult *= math.Pow(0.8, float64(stats.ConsecutiveLosses-2))
	}
	if stats.AvgReturn < 0 {
		mult *= 0.5
	}
	if stats.WinRate > strongWinRate && stats.AvgReturn > strongAvgReturn {
		mult = math.Min(growthCap, mult*1.1)
	}
	return mult
}
