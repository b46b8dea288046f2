package detect

import (
	"math"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// synthetic evaluates a cross-quote pair for the same event. Both pairings
// are tried: buy YES on a plus NO on b ("direct"), and buy NO on a plus YES
// on b ("reverse"). Each is charged both platforms' taker fees; the larger
// positive net wins.
func (d *Detector) synthetic(a, b domain.MarketQuote) *domain.Opportunity {
	fees := a.TakerFee + b.TakerFee

	directCost := a.YesAsk + b.NoAsk + fees
	reverseCost := a.NoAsk + b.YesAsk + fees
	directNet := 1.0 - directCost
	reverseNet := 1.0 - reverseCost

	var (
		direction domain.SyntheticDirection
		cost, net float64
		legA, legB domain.OpportunityLeg
	)
	switch {
	case directNet <= 0 && reverseNet <= 0:
		return nil
	case directNet >= reverseNet:
		direction, cost, net = domain.DirectionDirect, directCost, directNet
		legA = domain.OpportunityLeg{Platform: a.Platform, MarketID: a.MarketID, Side: domain.SideYes, Price: a.YesAsk, Fee: a.TakerFee, Volume: a.TotalVolume()}
		legB = domain.OpportunityLeg{Platform: b.Platform, MarketID: b.MarketID, Side: domain.SideNo, Price: b.NoAsk, Fee: b.TakerFee, Volume: b.TotalVolume()}
	default:
		direction, cost, net = domain.DirectionReverse, reverseCost, reverseNet
		legA = domain.OpportunityLeg{Platform: a.Platform, MarketID: a.MarketID, Side: domain.SideNo, Price: a.NoAsk, Fee: a.TakerFee, Volume: a.TotalVolume()}
		legB = domain.OpportunityLeg{Platform: b.Platform, MarketID: b.MarketID, Side: domain.SideYes, Price: b.YesAsk, Fee: b.TakerFee, Volume: b.TotalVolume()}
	}
	if net < d.cfg.MinProfit {
		return nil
	}

	risk := executionRisk(a, b)
	hours := resolutionHorizon(a, b)
	roi := net / cost

	return &domain.Opportunity{
		Kind:          domain.OpportunitySynthetic,
		Event:         a.Event,
		Legs:          []domain.OpportunityLeg{legA, legB},
		Direction:     direction,
		TotalCost:     cost,
		Profit:        net,
		ROI:           roi,
		AnnualizedROI: domain.Annualize(roi, hours),
		Confidence:    1 - risk,
		ExecutionRisk: risk,
		Liquidity:     liquidityScore(a, b),
		DetectedAt:    laterOf(a.Timestamp, b.Timestamp),
	}
}

// executionRisk blends thin volume, fee drag, and a venue penalty that is
// doubled when the legs sit on different platforms.
func executionRisk(a, b domain.MarketQuote) float64 {
	volumeRisk := math.Max(0, 1-(a.TotalVolume()+b.TotalVolume())/100000)
	feeRisk := (a.TakerFee + b.TakerFee) * 10
	platformRisk := 0.05
	if a.Platform != b.Platform {
		platformRisk = 0.10
	}
	return math.Min(1, volumeRisk*0.5+feeRisk*0.3+platformRisk*0.2)
}

// liquidityScore rewards deep combined volume and balance between the legs.
func liquidityScore(a, b domain.MarketQuote) float64 {
	total := a.TotalVolume() + b.TotalVolume()
	depth := math.Min(total/50000, 1)
	balance := math.Min(a.TotalVolume(), b.TotalVolume()) / math.Max(total/2, 1)
	return depth*0.6 + balance*0.4
}

// resolutionHorizon picks the earlier known resolution time of the pair.
func resolutionHorizon(a, b domain.MarketQuote) float64 {
	switch {
	case a.HoursToResolution > 0 && b.HoursToResolution > 0:
		return math.Min(a.HoursToResolution, b.HoursToResolution)
	case a.HoursToResolution > 0:
		return a.HoursToResolution
	default:
		return b.HoursToResolution
	}
}
