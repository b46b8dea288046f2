package domain

import "time"

// PriceLevel is a single price+size entry in an orderbook.
type PriceLevel struct {
	Price float64
	Size  float64
}

// OrderbookSnapshot is a full snapshot of bids and asks for one side of a
// binary market on one platform.
type OrderbookSnapshot struct {
	Platform  string
	MarketID  string
	Side      Side
	Bids      []PriceLevel
	Asks      []PriceLevel
	BestBid   float64
	BestAsk   float64
	MidPrice  float64
	Timestamp time.Time
}

// Spread returns the current bid-ask spread.
func (s OrderbookSnapshot) Spread() float64 {
	return s.BestAsk - s.BestBid
}

// BidDepth sums the visible size on the bid side.
func (s OrderbookSnapshot) BidDepth() float64 {
	var total float64
	for _, l := range s.Bids {
		total += l.Size
	}
	return total
}

// AskDepth sums the visible size on the ask side.
func (s OrderbookSnapshot) AskDepth() float64 {
	var total float64
	for _, l := range s.Asks {
		total += l.Size
	}
	return total
}

// PriceChange is an incremental orderbook level update.
type PriceChange struct {
	Platform  string
	MarketID  string
	Side      Side   // market side, YES or NO
	BookSide  string // "bids" or "asks"
	Price     float64
	Size      float64 // 0 means remove level
	Timestamp time.Time
}

// TradePrint is a single observed trade execution, fed to order flow analysis.
type TradePrint struct {
	Platform  string
	MarketID  string
	Price     float64
	Size      float64
	Aggressor string // "BUY" or "SELL"
	Timestamp time.Time
}
