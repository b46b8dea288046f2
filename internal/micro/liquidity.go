package micro

import "github.com/alanyoungcy/arbengine/internal/domain"

// Liquidity profiles one book snapshot: spread in basis points of mid,
// resting size within 10, 50, and 100 bps of mid on both sides combined,
// and the signed depth imbalance. Pure over the snapshot; analyzer state is
// not consulted.
func (a *Analyzer) Liquidity(snap domain.OrderbookSnapshot) domain.LiquidityProfile {
	p := domain.LiquidityProfile{
		MarketID:  snap.MarketID,
		Platform:  snap.Platform,
		MidPrice:  snap.MidPrice,
		Timestamp: snap.Timestamp,
	}
	if snap.MidPrice <= 0 {
		return p
	}

	p.SpreadBps = snap.Spread() / snap.MidPrice * 10000
	p.Depth10 = depthWithin(snap, 10)
	p.Depth50 = depthWithin(snap, 50)
	p.Depth100 = depthWithin(snap, 100)

	bid, ask := snap.BidDepth(), snap.AskDepth()
	if total := bid + ask; total > 0 {
		p.Imbalance = (bid - ask) / total
	}
	return p
}

// depthWithin sums resting size priced within bps basis points of mid on
// either side.
func depthWithin(snap domain.OrderbookSnapshot, bps float64) float64 {
	band := snap.MidPrice * bps / 10000
	var total float64
	for _, l := range snap.Bids {
		if l.Price >= snap.MidPrice-band {
			total += l.Size
		}
	}
	for _, l := range snap.Asks {
		if l.Price <= snap.MidPrice+band {
			total += l.Size
		}
	}
	return total
}
