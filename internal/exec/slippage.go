package exec

import (
	"github.com/alanyoungcy/arbengine/internal/domain"
)

// EstimateBuySlippage walks the ask levels for the requested size and
// reports the size-weighted average fill price versus the best ask. When
// the visible book cannot absorb the size, the estimate carries zero
// confidence and the caller should not proceed.
func EstimateBuySlippage(book domain.OrderbookSnapshot, size float64) domain.SlippageEstimate {
	return walkLevels(book.Asks, book.BestAsk, size)
}

// EstimateSellSlippage walks the bid levels for the requested size.
func EstimateSellSlippage(book domain.OrderbookSnapshot, size float64) domain.SlippageEstimate {
	return walkLevels(book.Bids, book.BestBid, size)
}

func walkLevels(levels []domain.PriceLevel, best, size float64) domain.SlippageEstimate {
	if size <= 0 || len(levels) == 0 {
		return domain.SlippageEstimate{}
	}

	var filled, cost float64
	for _, l := range levels {
		take := min(l.Size, size-filled)
		cost += take * l.Price
		filled += take
		if filled >= size {
			break
		}
	}
	if filled < size {
		return domain.SlippageEstimate{Fillable: false, Confidence: 0}
	}

	avg := cost / size
	slip := avg - best
	if slip < 0 {
		slip = -slip
	}
	// Confidence decays with how much of the visible book the fill consumes.
	var total float64
	for _, l := range levels {
		total += l.Size
	}
	return domain.SlippageEstimate{
		FillPrice:  avg,
		Slippage:   slip,
		Confidence: 1 - size/total,
		Fillable:   true,
	}
}
