package detect

import "github.com/alanyoungcy/arbengine/internal/domain"

// endgame scans for markets trading near certain resolution: once a side's
// bid clears the threshold, buying that side at the ask earns the residual
// (1 - price) over a short horizon, which annualizes aggressively. Not
// risk-free, so the result carries a reduced confidence.
func (d *Detector) endgame(q domain.MarketQuote) *domain.Opportunity {
	for _, side := range []domain.Side{domain.SideYes, domain.SideNo} {
		bid, ask := q.Bid(side), q.Ask(side)
		if bid <= d.cfg.EndgameMinBid || ask >= 1 || ask <= 0 {
			continue
		}
		roi := (1 - ask) / ask
		annualized := domain.Annualize(roi, q.HoursToResolution)
		if annualized < d.cfg.EndgameMinAnnualized {
			continue
		}
		return &domain.Opportunity{
			Kind:  domain.OpportunityEndgame,
			Event: q.Event,
			Legs: []domain.OpportunityLeg{
				{Platform: q.Platform, MarketID: q.MarketID, Side: side, Price: ask, Fee: q.TakerFee, Volume: q.TotalVolume()},
			},
			TotalCost:     ask,
			Profit:        1 - ask,
			ROI:           roi,
			AnnualizedROI: annualized,
			Confidence:    bid, // the market's own certainty estimate
			DetectedAt:    q.Timestamp,
		}
	}
	return nil
}
