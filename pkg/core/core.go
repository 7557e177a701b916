package core

import (
	"context"
	"strings"
	"time"
)

// Feeder provides market data for the decision cycle
type Feeder interface {
	LastQuote(ctx context.Context, pair string) (float64, error)
	CandlesByPeriod(ctx context.Context, pair, period string, start, end time.Time) ([]Candle, error)
	CandlesByLimit(ctx context.Context, pair, period string, limit int) ([]Candle, error)
	CandlesSubscription(ctx context.Context, pair, timeframe string) (chan Candle, chan error)
}

// Broker places and manages exchange orders. Wire-format details live
// behind this interface and are out of scope for the calculation core.
type Broker interface {
	OpenPosition(ctx context.Context, pair string) (*PositionRecord, error)
	CreateOrderMarket(ctx context.Context, side SideType, pair string, size float64) error
	CreateOrderStop(ctx context.Context, side SideType, pair string, size, price float64) error
	CreateOrderLimit(ctx context.Context, side SideType, pair string, size, limit float64) error
	CancelAll(ctx context.Context, pair string) error
}

// Signal is a directional trading signal from an advisor
type Signal struct {
	Action     SideType
	Hold       bool
	Reason     string
	StopLoss   float64
	TakeProfit float64
	Confidence float64
}

// Advisor produces a directional signal from a market snapshot. The
// LLM-backed implementation lives outside this module.
type Advisor interface {
	Advise(ctx context.Context, snapshot MarketSnapshot, history []Signal) (Signal, error)
}

// PositionFilter selects position records during storage queries
type PositionFilter func(PositionRecord) bool

// PositionStorage persists position fill history for weighted-entry math
type PositionStorage interface {
	CreatePosition(record *PositionRecord) error
	UpdatePosition(record *PositionRecord) error
	Positions(filters ...PositionFilter) ([]*PositionRecord, error)
	Close() error
}

// WithPair filters records belonging to a single trading pair
func WithPair(pair string) PositionFilter {
	return func(record PositionRecord) bool {
		return record.Pair == pair
	}
}

// WithSide filters records by position direction
func WithSide(side SideType) PositionFilter {
	return func(record PositionRecord) bool {
		return record.Side == side
	}
}

// Notifier receives trading decisions and errors for delivery to the user
type Notifier interface {
	Notify(message string)
	OnError(err error)
}

// BaseCurrency extracts the asset part of a pair symbol, the text before
// the first '/' ("BTC" from "BTC/USDT:USDT")
func BaseCurrency(symbol string) string {
	if idx := strings.Index(symbol, "/"); idx > 0 {
		return symbol[:idx]
	}
	return symbol
}
