package binance

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/quantbr/perpedge/pkg/core"

	"github.com/adshao/go-binance/v2"
	"github.com/adshao/go-binance/v2/common"
	"github.com/adshao/go-binance/v2/futures"
)

// MarginType represents the margin type for futures
type MarginType = futures.MarginType

const (
	// MarginTypeIsolated represents isolated margin type
	MarginTypeIsolated MarginType = "ISOLATED"

	// MarginTypeCrossed represents cross margin type
	MarginTypeCrossed MarginType = "CROSSED"

	// ErrNoNeedChangeMarginType is returned when margin type change is not needed
	ErrNoNeedChangeMarginType int64 = -4046
)

// PairOption represents configuration for a specific trading pair
type PairOption struct {
	Pair       string
	Leverage   int
	MarginType futures.MarginType
}

// Futures is the Binance USD-M futures client. It implements both
// core.Feeder and core.Broker.
type Futures struct {
	client      *futures.Client
	assetsInfo  map[string]AssetInfo
	pairOptions []PairOption
}

// FuturesOption is a function that configures a Futures client
type FuturesOption func(*Futures)

// WithFuturesCredentials sets the API credentials for the Futures client
func WithFuturesCredentials(key, secret string) FuturesOption {
	return func(f *Futures) {
		f.client = futures.NewClient(key, secret)
	}
}

// WithFuturesLeverage sets the leverage and margin type for a trading pair
func WithFuturesLeverage(pair string, leverage int, marginType MarginType) FuturesOption {
	return func(f *Futures) {
		f.pairOptions = append(f.pairOptions, PairOption{
			Pair:       SymbolFor(strings.ToUpper(pair)),
			Leverage:   leverage,
			MarginType: marginType,
		})
	}
}

// NewFutures creates a new Binance futures exchange client
func NewFutures(ctx context.Context, options ...FuturesOption) (*Futures, error) {
	binance.WebsocketKeepalive = true

	exchange := &Futures{
		client:      futures.NewClient("", ""),
		assetsInfo:  make(map[string]AssetInfo),
		pairOptions: make([]PairOption, 0),
	}

	for _, option := range options {
		option(exchange)
	}

	if err := exchange.validateConnection(ctx); err != nil {
		return nil, err
	}

	if err := exchange.configurePairs(ctx); err != nil {
		return nil, err
	}

	if err := exchange.initializeAssetInfo(ctx); err != nil {
		return nil, err
	}

	return exchange, nil
}

// validateConnection tests the connection to the Binance Futures API
func (f *Futures) validateConnection(ctx context.Context) error {
	err := f.client.NewPingService().Do(ctx)
	if err != nil {
		return fmt.Errorf("binance futures ping fail: %w", err)
	}
	return nil
}

// configurePairs sets leverage and margin type for all configured trading pairs
func (f *Futures) configurePairs(ctx context.Context) error {
	for _, option := range f.pairOptions {
		_, err := f.client.NewChangeLeverageService().
			Symbol(option.Pair).
			Leverage(option.Leverage).
			Do(ctx)
		if err != nil {
			return fmt.Errorf("failed to set leverage for %s: %w", option.Pair, err)
		}

		err = f.client.NewChangeMarginTypeService().
			Symbol(option.Pair).
			MarginType(option.MarginType).
			Do(ctx)
		if err != nil {
			// Ignore "no need to change" error
			if apiError, ok := err.(*common.APIError); !ok || apiError.Code != ErrNoNeedChangeMarginType {
				return fmt.Errorf("failed to set margin type for %s: %w", option.Pair, err)
			}
		}
	}
	return nil
}

// initializeAssetInfo fetches exchange information and initializes asset data
func (f *Futures) initializeAssetInfo(ctx context.Context) error {
	exchangeInfo, err := f.client.NewExchangeInfoService().Do(ctx)
	if err != nil {
		return fmt.Errorf("failed to get futures exchange info: %w", err)
	}

	for _, info := range exchangeInfo.Symbols {
		assetInfo, err := createAssetInfo(info)
		if err != nil {
			return err
		}

		f.assetsInfo[info.Symbol] = assetInfo
	}

	return nil
}

// formatQuantity formats a quantity according to the pair's precision
func (f *Futures) formatQuantity(symbol string, value float64) string {
	return formatQuantity(f.assetsInfo, symbol, value)
}

// formatPrice formats a price according to the pair's precision
func (f *Futures) formatPrice(symbol string, value float64) string {
	return formatPrice(f.assetsInfo, symbol, value)
}

// validate checks if an order quantity is valid for a pair
func (f *Futures) validate(symbol string, quantity float64) error {
	return validateOrder(f.assetsInfo, symbol, quantity)
}

// AssetsInfo returns the trading rules for a pair
func (f *Futures) AssetsInfo(pair string) (AssetInfo, error) {
	if val, ok := f.assetsInfo[SymbolFor(pair)]; ok {
		return val, nil
	}

	return AssetInfo{}, fmt.Errorf("asset info not found in binance futures")
}

// LastQuote gets the latest price for a pair
func (f *Futures) LastQuote(ctx context.Context, pair string) (float64, error) {
	candles, err := f.CandlesByLimit(ctx, pair, "1m", 1)
	if err != nil || len(candles) < 1 {
		return 0, err
	}
	return candles[0].Close, nil
}

// OpenPosition returns the live position for a pair, or nil when flat
func (f *Futures) OpenPosition(ctx context.Context, pair string) (*core.PositionRecord, error) {
	symbol := SymbolFor(pair)

	acc, err := f.client.NewGetAccountService().Do(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get futures account: %w", err)
	}

	for _, position := range acc.Positions {
		if position.Symbol != symbol {
			continue
		}

		size, err := strconv.ParseFloat(position.PositionAmt, 64)
		if err != nil {
			return nil, err
		}
		if size == 0 {
			continue
		}

		entry, err := strconv.ParseFloat(position.EntryPrice, 64)
		if err != nil {
			return nil, err
		}

		side := core.SideLong
		if size < 0 || position.PositionSide == futures.PositionSideTypeShort {
			side = core.SideShort
			if size < 0 {
				size = -size
			}
		}

		now := time.Now()
		return &core.PositionRecord{
			Pair:       pair,
			Side:       side,
			Size:       size,
			EntryPrice: entry,
			CreatedAt:  now,
			UpdatedAt:  now,
		}, nil
	}

	return nil, nil
}

// CreateOrderMarket creates a market order
func (f *Futures) CreateOrderMarket(ctx context.Context, side core.SideType, pair string, size float64) error {
	symbol := SymbolFor(pair)

	if err := f.validate(symbol, size); err != nil {
		return err
	}

	_, err := f.client.NewCreateOrderService().
		Symbol(symbol).
		Type(futures.OrderTypeMarket).
		Side(orderSide(side)).
		Quantity(f.formatQuantity(symbol, size)).
		NewOrderResponseType(futures.NewOrderRespTypeRESULT).
		Do(ctx)

	return err
}

// CreateOrderStop creates a stop-market order that closes the position on
// the given side. A long position is protected by a sell stop, a short by
// a buy stop.
func (f *Futures) CreateOrderStop(ctx context.Context, side core.SideType, pair string, size, price float64) error {
	symbol := SymbolFor(pair)

	if err := f.validate(symbol, size); err != nil {
		return err
	}

	closeSide := futures.SideTypeSell
	if side == core.SideShort {
		closeSide = futures.SideTypeBuy
	}

	_, err := f.client.NewCreateOrderService().
		Symbol(symbol).
		Type(futures.OrderTypeStopMarket).
		TimeInForce(futures.TimeInForceTypeGTC).
		Side(closeSide).
		Quantity(f.formatQuantity(symbol, size)).
		StopPrice(f.formatPrice(symbol, price)).
		Do(ctx)

	return err
}

// CreateOrderLimit creates a limit order
func (f *Futures) CreateOrderLimit(ctx context.Context, side core.SideType, pair string, size, limit float64) error {
	symbol := SymbolFor(pair)

	if err := f.validate(symbol, size); err != nil {
		return err
	}

	_, err := f.client.NewCreateOrderService().
		Symbol(symbol).
		Type(futures.OrderTypeLimit).
		TimeInForce(futures.TimeInForceTypeGTC).
		Side(orderSide(side)).
		Quantity(f.formatQuantity(symbol, size)).
		Price(f.formatPrice(symbol, limit)).
		Do(ctx)

	return err
}

// CancelAll cancels every open order for a pair
func (f *Futures) CancelAll(ctx context.Context, pair string) error {
	return f.client.NewCancelAllOpenOrdersService().
		Symbol(SymbolFor(pair)).
		Do(ctx)
}

// klineStreamer matches the signature of futures.WsKlineServe so the
// reconnect loop can be exercised without a live socket
type klineStreamer func(symbol, interval string, handler futures.WsKlineHandler,
	errHandler futures.ErrHandler) (doneC, stopC chan struct{}, err error)

// CandlesSubscription subscribes to candle updates for a pair. The stream
// reconnects with exponential backoff until the context is canceled.
func (f *Futures) CandlesSubscription(ctx context.Context, pair, period string) (chan core.Candle, chan error) {
	candleChan := make(chan core.Candle)
	errChan := make(chan error)

	go f.streamCandles(ctx, pair, period, futures.WsKlineServe, candleChan, errChan)

	return candleChan, errChan
}

// streamCandles owns both output channels. They are closed only after the
// websocket handler loop has fully stopped, so a kline event arriving during
// shutdown can never hit a closed channel.
func (f *Futures) streamCandles(ctx context.Context, pair, period string, serve klineStreamer,
	candleChan chan core.Candle, errChan chan error) {

	defer close(errChan)
	defer close(candleChan)

	symbol := SymbolFor(pair)
	retry := setupBackoffRetry()

	for {
		done, stop, err := serve(symbol, period, func(event *futures.WsKlineEvent) {
			retry.Reset()
			select {
			case candleChan <- convertFuturesWsKlineToCandle(pair, event.Kline):
			case <-ctx.Done():
			}
		}, func(err error) {
			select {
			case errChan <- err:
			case <-ctx.Done():
			}
		})

		if err != nil {
			select {
			case errChan <- err:
			case <-ctx.Done():
			}
			return
		}

		select {
		case <-ctx.Done():
			close(stop)
			<-done
			return
		case <-done:
			time.Sleep(retry.Duration())
		}
	}
}

// CandlesByLimit gets the last complete candles for a pair
func (f *Futures) CandlesByLimit(ctx context.Context, pair, period string, limit int) ([]core.Candle, error) {
	data, err := f.client.NewKlinesService().
		Symbol(SymbolFor(pair)).
		Interval(period).
		Limit(limit + 1). // +1 to account for the incomplete candle
		Do(ctx)

	if err != nil {
		return nil, err
	}

	candles := make([]core.Candle, 0, len(data)-1)
	for i, d := range data {
		// Skip the last candle as it's incomplete
		if i == len(data)-1 {
			break
		}

		candles = append(candles, convertFuturesKlineToCandle(pair, *d))
	}

	return candles, nil
}

// CandlesByPeriod gets candles for a pair within a time range
func (f *Futures) CandlesByPeriod(ctx context.Context, pair, period string,
	start, end time.Time) ([]core.Candle, error) {

	data, err := f.client.NewKlinesService().
		Symbol(SymbolFor(pair)).
		Interval(period).
		StartTime(start.UnixNano() / int64(time.Millisecond)).
		EndTime(end.UnixNano() / int64(time.Millisecond)).
		Do(ctx)

	if err != nil {
		return nil, err
	}

	candles := make([]core.Candle, 0, len(data))
	for _, d := range data {
		candles = append(candles, convertFuturesKlineToCandle(pair, *d))
	}

	return candles, nil
}

// orderSide maps a position direction to the exchange order side
func orderSide(side core.SideType) futures.SideType {
	if side == core.SideShort {
		return futures.SideTypeSell
	}
	return futures.SideTypeBuy
}

// convertFuturesKlineToCandle converts a Binance futures kline to a core.Candle
func convertFuturesKlineToCandle(pair string, k futures.Kline) core.Candle {
	t := time.Unix(0, k.OpenTime*int64(time.Millisecond))
	candle := core.Candle{
		Pair:      pair,
		Time:      t,
		UpdatedAt: t,
		Complete:  true,
	}

	candle.Open, _ = strconv.ParseFloat(k.Open, 64)
	candle.Close, _ = strconv.ParseFloat(k.Close, 64)
	candle.High, _ = strconv.ParseFloat(k.High, 64)
	candle.Low, _ = strconv.ParseFloat(k.Low, 64)
	candle.Volume, _ = strconv.ParseFloat(k.Volume, 64)

	return candle
}

// convertFuturesWsKlineToCandle converts a websocket kline to a core.Candle
func convertFuturesWsKlineToCandle(pair string, k futures.WsKline) core.Candle {
	t := time.Unix(0, k.StartTime*int64(time.Millisecond))
	candle := core.Candle{
		Pair:      pair,
		Time:      t,
		UpdatedAt: t,
		Complete:  k.IsFinal,
	}

	candle.Open, _ = strconv.ParseFloat(k.Open, 64)
	candle.Close, _ = strconv.ParseFloat(k.Close, 64)
	candle.High, _ = strconv.ParseFloat(k.High, 64)
	candle.Low, _ = strconv.ParseFloat(k.Low, 64)
	candle.Volume, _ = strconv.ParseFloat(k.Volume, 64)

	return candle
}
