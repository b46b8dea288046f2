package domain

import (
	"fmt"
	"time"
)

// Side identifies which outcome of a binary market a price refers to.
type Side string

const (
	SideYes Side = "YES"
	SideNo  Side = "NO"
)

// Opposite returns the complementary outcome side.
func (s Side) Opposite() Side {
	if s == SideYes {
		return SideNo
	}
	return SideYes
}

// EventMatcher decides whether two platforms' event names describe the same
// underlying outcome. Implementations trade recall against false pairings.
type EventMatcher interface {
	SameEvent(a, b string) bool
}

// MarketQuote is the top-of-book view of a binary market on one platform.
// Prices are probabilities in [0, 1]; volumes are 24h notional in dollars.
type MarketQuote struct {
	Platform          string
	MarketID          string
	Event             string
	YesBid            float64
	YesAsk            float64
	NoBid             float64
	NoAsk             float64
	YesVolume         float64
	NoVolume          float64
	TakerFee          float64
	HoursToResolution float64
	Timestamp         time.Time
}

// Validate checks price sanity before a quote enters detection.
func (q MarketQuote) Validate() error {
	if q.Platform == "" || q.MarketID == "" {
		return fmt.Errorf("quote %s/%s: %w", q.Platform, q.MarketID, ErrInvalidQuote)
	}
	for _, p := range []struct {
		name     string
		bid, ask float64
	}{
		{"yes", q.YesBid, q.YesAsk},
		{"no", q.NoBid, q.NoAsk},
	} {
		if p.bid < 0 || p.ask < 0 || p.bid > 1 || p.ask > 1 {
			return fmt.Errorf("quote %s/%s: %s side out of [0,1]: %w", q.Platform, q.MarketID, p.name, ErrInvalidQuote)
		}
		if p.bid > p.ask {
			return fmt.Errorf("quote %s/%s: %s bid %.4f above ask %.4f: %w", q.Platform, q.MarketID, p.name, p.bid, p.ask, ErrInvalidQuote)
		}
	}
	return nil
}

// TotalVolume is combined YES+NO 24h volume.
func (q MarketQuote) TotalVolume() float64 {
	return q.YesVolume + q.NoVolume
}

// Spread returns the bid-ask spread on the given side.
func (q MarketQuote) Spread(side Side) float64 {
	if side == SideYes {
		return q.YesAsk - q.YesBid
	}
	return q.NoAsk - q.NoBid
}

// Ask returns the ask price on the given side.
func (q MarketQuote) Ask(side Side) float64 {
	if side == SideYes {
		return q.YesAsk
	}
	return q.NoAsk
}

// Bid returns the bid price on the given side.
func (q MarketQuote) Bid(side Side) float64 {
	if side == SideYes {
		return q.YesBid
	}
	return q.NoBid
}
