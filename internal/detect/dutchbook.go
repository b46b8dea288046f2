package detect

import (
	"math"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// dutchBook checks one market's YES/NO asks for complementary-outcome
// mispricing. Returns nil when the combined cost clears the guaranteed
// payout or the profit is below the noise floor.
func (d *Detector) dutchBook(q domain.MarketQuote) *domain.Opportunity {
	cost := q.YesAsk + q.NoAsk
	if cost >= 1.0 {
		return nil
	}
	profit := 1.0 - cost
	if profit < d.cfg.MinProfit {
		return nil
	}
	roi := profit / cost

	liquidity := math.Min(q.TotalVolume()/d.cfg.VolumeNorm, 1)
	tighter := math.Min(q.Spread(domain.SideYes), q.Spread(domain.SideNo))
	confidence := 0.6*liquidity + 0.4*(1-tighter)

	return &domain.Opportunity{
		Kind:  domain.OpportunityDutchBook,
		Event: q.Event,
		Legs: []domain.OpportunityLeg{
			{Platform: q.Platform, MarketID: q.MarketID, Side: domain.SideYes, Price: q.YesAsk, Fee: q.TakerFee, Volume: q.YesVolume},
			{Platform: q.Platform, MarketID: q.MarketID, Side: domain.SideNo, Price: q.NoAsk, Fee: q.TakerFee, Volume: q.NoVolume},
		},
		TotalCost:     cost,
		Profit:        profit,
		ROI:           roi,
		AnnualizedROI: domain.Annualize(roi, q.HoursToResolution),
		Confidence:    confidence,
		DetectedAt:    q.Timestamp,
	}
}
