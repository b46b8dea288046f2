package risk

import (
	"errors"
	"log/slog"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Allocation pairs an opportunity with its final bankroll fraction.
type Allocation struct {
	Opportunity domain.Opportunity
	Fraction    float64
	Amount      float64
}

// CorrelationFn reports pairwise co-movement in [0,1] between two
// opportunities, or false when unknown.
type CorrelationFn func(a, b domain.Opportunity) (float64, bool)

// Allocate sizes a batch of concurrent opportunities against one bankroll.
// Each gets its standalone Kelly fraction discounted by a correlation
// penalty against the rest of the batch; if the discounted sum exceeds the
// exposure cap, every allocation is scaled down proportionally so the total
// equals the cap exactly.
func (s *Sizer) Allocate(opps []domain.Opportunity, bankroll, exposureCap float64, corr CorrelationFn) []Allocation {
	if exposureCap <= 0 {
		exposureCap = 0.5
	}

	allocs := make([]Allocation, 0, len(opps))
	var total float64
	for i, opp := range opps {
		dec, err := s.SizeOpportunity(opp, bankroll)
		if err != nil {
			if !errors.Is(err, domain.ErrNoEdge) {
				s.logger.Warn("allocation skipped",
					slog.String("event", opp.Event),
					slog.String("error", err.Error()))
			}
			continue
		}
		fraction := dec.Fraction
		if corr != nil {
			fraction *= 1 - 0.5*maxCorrelation(opp, opps, i, corr)
		}
		allocs = append(allocs, Allocation{Opportunity: opp, Fraction: fraction})
		total += fraction
	}

	if total > exposureCap {
		scale := exposureCap / total
		for i := range allocs {
			allocs[i].Fraction *= scale
		}
	}
	for i := range allocs {
		allocs[i].Amount = allocs[i].Fraction * bankroll
	}
	return allocs
}

// maxCorrelation finds the strongest known co-movement between opp and the
// rest of the batch.
func maxCorrelation(opp domain.Opportunity, opps []domain.Opportunity, self int, corr CorrelationFn) float64 {
	var highest float64
	for j, other := range opps {
		if j == self {
			continue
		}
		if c, ok := corr(opp, other); ok && c > highest {
			highest = c
		}
	}
	return highest
}
