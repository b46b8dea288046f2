package feed

import (
	"strconv"
	"time"

	"github.com/alanyoungcy/arbengine/internal/domain"
)

// Wire DTOs for the market-data WebSocket feed. Venues send prices and sizes
// as strings; parse helpers tolerate missing or malformed fields by returning
// zero values.

// wsCommand is the JSON command sent to the feed endpoint.
type wsCommand struct {
	Type     string   `json:"type"` // "subscribe" or "unsubscribe"
	Channel  string   `json:"channel"`
	Platform string   `json:"platform,omitempty"`
	Markets  []string `json:"markets"`
}

// quoteMessage is a two-sided top-of-book quote for a binary market.
type quoteMessage struct {
	EventType string `json:"event_type"`
	Platform  string `json:"platform"`
	MarketID  string `json:"market_id"`
	Event     string `json:"event"`
	YesBid    string `json:"yes_bid"`
	YesAsk    string `json:"yes_ask"`
	NoBid     string `json:"no_bid"`
	NoAsk     string `json:"no_ask"`
	YesVolume string `json:"yes_volume"`
	NoVolume  string `json:"no_volume"`
	TakerFee  string `json:"taker_fee"`
	Horizon   string `json:"hours_to_resolution"`
	Timestamp string `json:"timestamp"`
}

// toDomain converts a quoteMessage to a domain.MarketQuote.
func (m *quoteMessage) toDomain() domain.MarketQuote {
	return domain.MarketQuote{
		Platform:          m.Platform,
		MarketID:          m.MarketID,
		Event:             m.Event,
		YesBid:            parsePrice(m.YesBid),
		YesAsk:            parsePrice(m.YesAsk),
		NoBid:             parsePrice(m.NoBid),
		NoAsk:             parsePrice(m.NoAsk),
		YesVolume:         parsePrice(m.YesVolume),
		NoVolume:          parsePrice(m.NoVolume),
		TakerFee:          parsePrice(m.TakerFee),
		HoursToResolution: parsePrice(m.Horizon),
		Timestamp:         parseTimestamp(m.Timestamp),
	}
}

// wireLevel is a single price level as [price, size] strings.
type wireLevel struct {
	Price string `json:"price"`
	Size  string `json:"size"`
}

// bookMessage is a full orderbook snapshot for one side of a market.
type bookMessage struct {
	EventType string      `json:"event_type"`
	Platform  string      `json:"platform"`
	MarketID  string      `json:"market_id"`
	Side      string      `json:"side"` // "YES" or "NO"
	Bids      []wireLevel `json:"bids"`
	Asks      []wireLevel `json:"asks"`
	Timestamp string      `json:"timestamp"`
}

// toDomain converts a bookMessage to a domain.OrderbookSnapshot, deriving
// best bid/ask and mid price from the levels.
func (m *bookMessage) toDomain() domain.OrderbookSnapshot {
	snap := domain.OrderbookSnapshot{
		Platform:  m.Platform,
		MarketID:  m.MarketID,
		Side:      domain.Side(m.Side),
		Timestamp: parseTimestamp(m.Timestamp),
	}

	snap.Bids = make([]domain.PriceLevel, 0, len(m.Bids))
	for _, lvl := range m.Bids {
		snap.Bids = append(snap.Bids, domain.PriceLevel{
			Price: parsePrice(lvl.Price),
			Size:  parsePrice(lvl.Size),
		})
	}
	snap.Asks = make([]domain.PriceLevel, 0, len(m.Asks))
	for _, lvl := range m.Asks {
		snap.Asks = append(snap.Asks, domain.PriceLevel{
			Price: parsePrice(lvl.Price),
			Size:  parsePrice(lvl.Size),
		})
	}

	for _, lvl := range snap.Bids {
		if lvl.Price > snap.BestBid {
			snap.BestBid = lvl.Price
		}
	}
	for _, lvl := range snap.Asks {
		if snap.BestAsk == 0 || lvl.Price < snap.BestAsk {
			snap.BestAsk = lvl.Price
		}
	}
	if snap.BestBid > 0 && snap.BestAsk > 0 {
		snap.MidPrice = (snap.BestBid + snap.BestAsk) / 2
	}
	return snap
}

// levelMessage is an incremental price-level update.
type levelMessage struct {
	EventType string `json:"event_type"`
	Platform  string `json:"platform"`
	MarketID  string `json:"market_id"`
	Side      string `json:"side"`      // "YES" or "NO"
	BookSide  string `json:"book_side"` // "bids" or "asks"
	Price     string `json:"price"`
	Size      string `json:"size"`
	Timestamp string `json:"timestamp"`
}

// toDomain converts a levelMessage to a domain.PriceChange.
func (m *levelMessage) toDomain() domain.PriceChange {
	return domain.PriceChange{
		Platform:  m.Platform,
		MarketID:  m.MarketID,
		Side:      domain.Side(m.Side),
		BookSide:  m.BookSide,
		Price:     parsePrice(m.Price),
		Size:      parsePrice(m.Size),
		Timestamp: parseTimestamp(m.Timestamp),
	}
}

// tradeMessage is a single trade print.
type tradeMessage struct {
	EventType string `json:"event_type"`
	Platform  string `json:"platform"`
	MarketID  string `json:"market_id"`
	Side      string `json:"side"`
	Price     string `json:"price"`
	Size      string `json:"size"`
	Aggressor string `json:"aggressor"` // "BUY" or "SELL"
	Timestamp string `json:"timestamp"`
}

// toDomain converts a tradeMessage to a domain.TradePrint.
func (m *tradeMessage) toDomain() domain.TradePrint {
	return domain.TradePrint{
		Platform:  m.Platform,
		MarketID:  m.MarketID,
		Price:     parsePrice(m.Price),
		Size:      parsePrice(m.Size),
		Aggressor: m.Aggressor,
		Timestamp: parseTimestamp(m.Timestamp),
	}
}

func parsePrice(s string) float64 {
	if s == "" {
		return 0
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	return f
}

func parseTimestamp(s string) time.Time {
	if s == "" {
		return time.Time{}
	}
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t
	}
	// Fall back to Unix milliseconds, which some venues send.
	if ms, err := strconv.ParseInt(s, 10, 64); err == nil {
		return time.UnixMilli(ms)
	}
	return time.Time{}
}
