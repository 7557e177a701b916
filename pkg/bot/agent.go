// Package bot runs the decision cycle: it watches candle streams, asks the
// advisor for entries, computes exits through the strategy engine and keeps
// the protective orders on the exchange in sync.
package bot

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/quantbr/perpedge/pkg/config"
	"github.com/quantbr/perpedge/pkg/core"
	"github.com/quantbr/perpedge/pkg/indicator"
	"github.com/quantbr/perpedge/pkg/logger"
	"github.com/quantbr/perpedge/pkg/storage"
	"github.com/quantbr/perpedge/pkg/strategy"

	"github.com/xhit/go-str2duration/v2"
)

// Agent status values
const (
	StatusRunning = "running"
	StatusStopped = "stopped"
)

const (
	defaultWarmupCandles = 100
	signalHistoryLimit   = 10

	// stopMoveEpsilon suppresses stop updates below 0.01% of price
	stopMoveEpsilon = 1e-4
)

// Settings configures the decision cycle
type Settings struct {
	Pairs         []string
	Timeframe     string
	WarmupCandles int

	// PositionSize is the quote-currency amount committed per entry
	PositionSize float64
}

// Agent is the trading agent. It implements notification.Controller so the
// telegram service can pause, resume and query it.
type Agent struct {
	settings Settings
	feeder   core.Feeder
	broker   core.Broker
	storage  core.PositionStorage
	engine   *strategy.Engine
	cfg      *config.Manager
	advisor  core.Advisor
	notifier core.Notifier
	dataFeed *DataFeedSubscription
	log      logger.Logger

	mu        sync.Mutex
	status    string
	signals   map[string][]core.Signal
	lastStops map[string]float64
}

// Option configures an Agent
type Option func(*Agent)

// WithAdvisor sets the entry signal source
func WithAdvisor(advisor core.Advisor) Option {
	return func(a *Agent) {
		a.advisor = advisor
	}
}

// WithNotifier sets the notification sink
func WithNotifier(notifier core.Notifier) Option {
	return func(a *Agent) {
		a.notifier = notifier
	}
}

// WithStorage sets the position history store
func WithStorage(st core.PositionStorage) Option {
	return func(a *Agent) {
		a.storage = st
	}
}

// SetNotifier attaches a notification sink after construction. The
// telegram service needs the agent as its controller, so the two are
// wired in two steps.
func (a *Agent) SetNotifier(notifier core.Notifier) {
	a.notifier = notifier
}

// NewAgent creates a trading agent
func NewAgent(settings Settings, feeder core.Feeder, broker core.Broker,
	cfg *config.Manager, log logger.Logger, options ...Option) (*Agent, error) {

	if log == nil {
		log = logger.Nop()
	}

	if err := validateSettings(settings); err != nil {
		return nil, err
	}

	if settings.WarmupCandles <= 0 {
		settings.WarmupCandles = defaultWarmupCandles
	}

	agent := &Agent{
		settings:  settings,
		feeder:    feeder,
		broker:    broker,
		cfg:       cfg,
		engine:    strategy.NewEngine(cfg, log),
		dataFeed:  NewDataFeed(feeder, log),
		log:       log,
		status:    StatusRunning,
		signals:   make(map[string][]core.Signal),
		lastStops: make(map[string]float64),
	}

	for _, option := range options {
		option(agent)
	}

	if agent.storage == nil {
		memory, err := storage.FromMemory()
		if err != nil {
			return nil, err
		}
		agent.storage = memory
	}

	return agent, nil
}

// validateSettings rejects empty pair lists and unparseable timeframes
func validateSettings(settings Settings) error {
	if len(settings.Pairs) == 0 {
		return fmt.Errorf("at least one pair must be configured")
	}

	for _, pair := range settings.Pairs {
		if pair == "" {
			return fmt.Errorf("empty pair in settings")
		}
	}

	if _, err := str2duration.ParseDuration(settings.Timeframe); err != nil {
		return fmt.Errorf("invalid timeframe %q: %w", settings.Timeframe, err)
	}

	if settings.PositionSize <= 0 {
		return fmt.Errorf("position size must be positive")
	}

	return nil
}

// Run subscribes to every configured pair and blocks processing candles
// until the context is canceled or all streams close
func (a *Agent) Run(ctx context.Context) error {
	for _, pair := range a.settings.Pairs {
		pair := pair
		a.dataFeed.Subscribe(pair, a.settings.Timeframe, func(candle core.Candle) {
			a.onCandle(ctx, candle)
		}, true)

		candles, err := a.feeder.CandlesByLimit(ctx, pair, a.settings.Timeframe, a.settings.WarmupCandles)
		if err != nil {
			return fmt.Errorf("failed to preload candles for %s: %w", pair, err)
		}
		a.dataFeed.Preload(pair, a.settings.Timeframe, candles)
	}

	a.dataFeed.Start(ctx, true)
	return nil
}

// Status reports whether the decision cycle is paused
func (a *Agent) Status() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status
}

// Start resumes the decision cycle
func (a *Agent) Start() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = StatusRunning
}

// Stop pauses the decision cycle. Streams stay connected; candles are
// dropped until Start.
func (a *Agent) Stop() {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = StatusStopped
}

// PositionReport renders the stored open positions for the notifier
func (a *Agent) PositionReport() string {
	records, err := a.storage.Positions()
	if err != nil {
		a.log.WithError(err).Error("failed to load positions for report")
		return ""
	}

	if len(records) == 0 {
		return ""
	}

	report := ""
	for _, record := range records {
		report += fmt.Sprintf("*%s* %s\nSize: `%.6f`\nEntry: `%.4f`\n\n",
			record.Pair, record.Side, record.Size, record.EntryPrice)
	}
	return report
}

// ConfigReport renders the effective strategy config for a symbol
func (a *Agent) ConfigReport(symbol string) string {
	effective := a.cfg.Snapshot().WithOverrides(a.cfg.SymbolConfig(core.BaseCurrency(symbol)))

	content, err := json.MarshalIndent(effective, "", "  ")
	if err != nil {
		return fmt.Sprintf("failed to render config: %v", err)
	}
	return fmt.Sprintf("```\n%s\n```", content)
}

// onCandle is the decision cycle entry point, called once per closed candle
func (a *Agent) onCandle(ctx context.Context, candle core.Candle) {
	if a.Status() != StatusRunning {
		return
	}

	pair := candle.Pair

	history, err := a.feeder.CandlesByLimit(ctx, pair, a.settings.Timeframe, a.settings.WarmupCandles)
	if err != nil {
		a.log.WithError(err).WithField("pair", pair).Error("failed to fetch candle history")
		return
	}

	snap := core.MarketSnapshot{
		Pair:    pair,
		Price:   candle.Close,
		Candles: history,
		Levels:  indicator.Levels(history),
		Trend:   indicator.Trend(history),
	}

	position, err := a.broker.OpenPosition(ctx, pair)
	if err != nil {
		a.log.WithError(err).WithField("pair", pair).Error("failed to fetch open position")
		a.onError(err)
		return
	}

	if position == nil {
		a.maybeEnter(ctx, snap)
		return
	}

	a.manageExits(ctx, snap, position)
}

// maybeEnter asks the advisor for a signal and opens a protected position
// when the exit math holds up
func (a *Agent) maybeEnter(ctx context.Context, snap core.MarketSnapshot) {
	if a.advisor == nil {
		return
	}

	signal, err := a.advisor.Advise(ctx, snap, a.signalHistory(snap.Pair))
	if err != nil {
		a.log.WithError(err).WithField("pair", snap.Pair).Error("advisor failed")
		return
	}

	a.recordSignal(snap.Pair, signal)

	if signal.Hold {
		a.log.WithFields(map[string]any{"pair": snap.Pair, "reason": signal.Reason}).Debug("advisor holds")
		return
	}

	side := signal.Action
	entryPrice := snap.Price

	effective := a.cfg.Snapshot().WithOverrides(a.cfg.SymbolConfig(core.BaseCurrency(snap.Pair)))

	var stop core.PriceLevel
	if effective.StopLoss.KlineBasedStopLoss {
		stop = a.engine.KlineStopLoss(side, entryPrice, snap, 0)
	} else {
		stop = a.engine.AdaptiveStopLoss(side, entryPrice, snap)
	}

	target := a.engine.AggressiveTakeProfit(side, entryPrice, stop.Value, snap, 0, snap.Trend.Label)
	if !target.IsAcceptable {
		a.log.WithFields(map[string]any{
			"pair":  snap.Pair,
			"ratio": target.ActualRiskReward,
		}).Info("entry skipped, risk/reward below floor")
		return
	}

	if !a.engine.ValidatePriceRelationship(entryPrice, stop.Value, target.TakeProfit, side) {
		a.log.WithField("pair", snap.Pair).Warn("entry skipped, price relationship invalid")
		return
	}

	size := a.settings.PositionSize / entryPrice

	if err := a.broker.CreateOrderMarket(ctx, side, snap.Pair, size); err != nil {
		a.log.WithError(err).WithField("pair", snap.Pair).Error("failed to open position")
		a.onError(err)
		return
	}

	if err := a.broker.CreateOrderStop(ctx, side, snap.Pair, size, stop.Value); err != nil {
		a.log.WithError(err).WithField("pair", snap.Pair).Error("failed to place stop order")
		a.onError(err)
	}

	a.placeLadder(ctx, side, entryPrice, stop.Value, snap.Pair, size)

	now := time.Now()
	record := &core.PositionRecord{
		Pair:       snap.Pair,
		Side:       side,
		Size:       size,
		EntryPrice: entryPrice,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := a.storage.CreatePosition(record); err != nil {
		a.log.WithError(err).WithField("pair", snap.Pair).Error("failed to record position")
	}

	a.setLastStop(snap.Pair, stop.Value)

	a.notify(fmt.Sprintf("OPEN %s %s\nEntry: %.4f\nStop: %.4f\nTarget: %.4f (RR %.2f)\nReason: %s",
		side, snap.Pair, entryPrice, stop.Value, target.TakeProfit, target.ActualRiskReward, signal.Reason))
}

// placeLadder converts the configured take-profit ladder into reduce
// limit orders
func (a *Agent) placeLadder(ctx context.Context, side core.SideType, entryPrice, stopLoss float64, pair string, size float64) {
	targets := a.engine.LadderTargets(side, entryPrice, stopLoss, core.BaseCurrency(pair))
	if len(targets) == 0 {
		return
	}

	closeSide := core.SideShort
	if side == core.SideShort {
		closeSide = core.SideLong
	}

	for _, target := range targets {
		if err := a.broker.CreateOrderLimit(ctx, closeSide, pair, size*target.CloseRatio, target.Price); err != nil {
			a.log.WithError(err).WithFields(map[string]any{
				"pair":   pair,
				"target": target.Price,
			}).Error("failed to place ladder order")
			a.onError(err)
		}
	}
}

// manageExits recomputes the aggregate exit pair for a live position and
// refreshes the protective orders when the stop moved
func (a *Agent) manageExits(ctx context.Context, snap core.MarketSnapshot, position *core.PositionRecord) {
	a.syncPosition(position)

	records, err := a.storage.Positions(core.WithPair(snap.Pair))
	if err != nil {
		a.log.WithError(err).WithField("pair", snap.Pair).Error("failed to load position history")
		return
	}

	history := make([]core.PositionRecord, 0, len(records))
	for _, record := range records {
		history = append(history, *record)
	}

	overall := a.engine.OverallStopLossTakeProfit(history, position, snap.Price, snap)
	stop := a.applyTrailing(snap, position.Side, overall)

	last, seen := a.lastStop(snap.Pair)
	if seen && math.Abs(stop-last) <= last*stopMoveEpsilon {
		return
	}

	if err := a.broker.CancelAll(ctx, snap.Pair); err != nil {
		a.log.WithError(err).WithField("pair", snap.Pair).Error("failed to cancel working orders")
		a.onError(err)
		return
	}

	if err := a.broker.CreateOrderStop(ctx, position.Side, snap.Pair, position.Size, stop); err != nil {
		a.log.WithError(err).WithField("pair", snap.Pair).Error("failed to refresh stop order")
		a.onError(err)
		return
	}

	a.placeLadder(ctx, position.Side, overall.WeightedEntry, stop, snap.Pair, position.Size)

	a.setLastStop(snap.Pair, stop)

	a.notify(fmt.Sprintf("UPDATE %s %s\nWeighted entry: %.4f\nStop: %.4f\nTarget: %.4f",
		position.Side, snap.Pair, overall.WeightedEntry, stop, overall.TakeProfit))
}

// applyTrailing tightens the stop once price has advanced past the
// activation threshold
func (a *Agent) applyTrailing(snap core.MarketSnapshot, side core.SideType, overall core.OverallResult) float64 {
	effective := a.cfg.Snapshot().WithOverrides(a.cfg.SymbolConfig(core.BaseCurrency(snap.Pair)))
	sl := effective.StopLoss

	stop := overall.StopLoss
	if !sl.EnableTrailingStop {
		return stop
	}

	if side == core.SideLong {
		if snap.Price >= overall.WeightedEntry*(1+sl.TrailingActivationRatio) {
			stop = math.Max(stop, snap.Price*(1-sl.TrailingDistanceRatio))
		}
	} else {
		if snap.Price <= overall.WeightedEntry*(1-sl.TrailingActivationRatio) {
			stop = math.Min(stop, snap.Price*(1+sl.TrailingDistanceRatio))
		}
	}

	return stop
}

// syncPosition keeps the stored history in line with the live exchange
// position. A fill the agent did not place itself (manual adds) shows up
// here as a new record.
func (a *Agent) syncPosition(position *core.PositionRecord) {
	records, err := a.storage.Positions(core.WithPair(position.Pair), core.WithSide(position.Side))
	if err != nil {
		a.log.WithError(err).WithField("pair", position.Pair).Error("failed to query stored positions")
		return
	}

	if len(records) == 0 {
		now := time.Now()
		record := *position
		record.CreatedAt = now
		record.UpdatedAt = now
		if err := a.storage.CreatePosition(&record); err != nil {
			a.log.WithError(err).WithField("pair", position.Pair).Error("failed to record live position")
		}
		return
	}

	latest := records[len(records)-1]
	if latest.Size == position.Size && latest.EntryPrice == position.EntryPrice {
		return
	}

	latest.Size = position.Size
	latest.EntryPrice = position.EntryPrice
	latest.UpdatedAt = time.Now()
	if err := a.storage.UpdatePosition(latest); err != nil {
		a.log.WithError(err).WithField("pair", position.Pair).Error("failed to update stored position")
	}
}

// lastStop returns the last stop price submitted for a pair
func (a *Agent) lastStop(pair string) (float64, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	stop, ok := a.lastStops[pair]
	return stop, ok
}

func (a *Agent) setLastStop(pair string, stop float64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.lastStops[pair] = stop
}

// signalHistory returns the recent advisor signals for a pair
func (a *Agent) signalHistory(pair string) []core.Signal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]core.Signal(nil), a.signals[pair]...)
}

// recordSignal appends a signal to the pair's bounded history
func (a *Agent) recordSignal(pair string, signal core.Signal) {
	a.mu.Lock()
	defer a.mu.Unlock()

	history := append(a.signals[pair], signal)
	if len(history) > signalHistoryLimit {
		history = history[len(history)-signalHistoryLimit:]
	}
	a.signals[pair] = history
}

func (a *Agent) notify(message string) {
	a.log.Info(message)
	if a.notifier != nil {
		a.notifier.Notify(message)
	}
}

func (a *Agent) onError(err error) {
	if a.notifier != nil {
		a.notifier.OnError(err)
	}
}
