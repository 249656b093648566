package strategy

import (
	"context"
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"trader-agent/broker"
	"trader-agent/notification"
	"trader-agent/sentiment"
	"trader-agent/types"
)

// Defaults applied by NewEngine when the config leaves them zero.
const (
	defaultNewsWindow  = 72 * time.Hour
	defaultHistoryDays = 40
)

// IndicatorConfig parameterizes the technical indicator gate.
type IndicatorConfig struct {
	ShortWindow  int
	LongWindow   int
	SignalWindow int
	RSIPeriod    int
	Overbought   float64
	Oversold     float64
	HistoryDays  int
}

// Config describes one user's trading session parameters.
type Config struct {
	UserID   string
	Symbol   string
	SpendCap float64

	// NewsWindow is how far back headlines are fetched each iteration.
	NewsWindow time.Duration

	// UseIndicators enables the technical indicator gate alongside sentiment.
	UseIndicators bool
	Indicators    IndicatorConfig
}

// Engine runs one trading iteration at a time for a single session. Each
// iteration reads the market, estimates sentiment, decides, and places at
// most one bracket order plus an optional liquidation.
type Engine struct {
	cfg       Config
	broker    broker.Client
	estimator sentiment.Estimator
	bus       notification.Publisher

	mu       sync.Mutex
	lastSide string
	trades   int64
}

// NewEngine creates an engine for the session, filling config defaults.
func NewEngine(cfg Config, b broker.Client, estimator sentiment.Estimator, bus notification.Publisher) *Engine {
	if cfg.NewsWindow <= 0 {
		cfg.NewsWindow = defaultNewsWindow
	}
	if cfg.UseIndicators {
		ind := &cfg.Indicators
		if ind.ShortWindow <= 0 {
			ind.ShortWindow = 12
		}
		if ind.LongWindow <= 0 {
			ind.LongWindow = 26
		}
		if ind.SignalWindow <= 0 {
			ind.SignalWindow = 9
		}
		if ind.RSIPeriod <= 0 {
			ind.RSIPeriod = 14
		}
		if ind.Overbought <= 0 {
			ind.Overbought = 60
		}
		if ind.Oversold <= 0 {
			ind.Oversold = 40
		}
		if ind.HistoryDays <= 0 {
			ind.HistoryDays = defaultHistoryDays
		}
	}
	return &Engine{cfg: cfg, broker: b, estimator: estimator, bus: bus}
}

// TradeCount returns the number of trades executed so far, liquidations
// included.
func (e *Engine) TradeCount() int {
	return int(atomic.LoadInt64(&e.trades))
}

// WaitIdle blocks until no iteration is in flight.
func (e *Engine) WaitIdle() {
	e.mu.Lock()
	defer e.mu.Unlock()
}

// RunTick executes one trading iteration. If the previous iteration is
// still running the tick is skipped rather than queued, so a slow broker
// can never stack up concurrent iterations.
func (e *Engine) RunTick(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	if !e.mu.TryLock() {
		log.Printf("Warning: iteration for %s still running, skipping tick", e.cfg.UserID)
		return
	}
	defer e.mu.Unlock()

	if err := e.iterate(ctx); err != nil {
		log.Printf("Iteration for %s (%s) failed: %v", e.cfg.UserID, e.cfg.Symbol, err)
	}
}

func (e *Engine) iterate(ctx context.Context) error {
	price, err := e.broker.LatestPrice(e.cfg.Symbol)
	if err != nil {
		return fmt.Errorf("price lookup: %w", err)
	}

	cash, err := e.broker.AvailableCash()
	if err != nil {
		return fmt.Errorf("cash lookup: %w", err)
	}

	label, probability := e.estimate(ctx)

	signal := e.decide(label, probability, price, cash)
	if signal.Side == types.SideHold {
		return nil
	}

	if signal.Liquidate {
		if err := e.broker.ClosePosition(e.cfg.Symbol); err != nil {
			log.Printf("Warning: failed to liquidate %s before reversal: %v", e.cfg.Symbol, err)
		} else {
			e.recordTrade(ctx, fmt.Sprintf("Closed %s position ahead of %s reversal", e.cfg.Symbol, signal.Side))
		}
	}

	orderID, err := e.broker.PlaceBracketOrder(types.OrderRequest{
		Symbol:     e.cfg.Symbol,
		Side:       signal.Side,
		Quantity:   signal.Quantity,
		TakeProfit: signal.TakeProfit,
		StopLoss:   signal.StopLoss,
	})
	if err != nil {
		return fmt.Errorf("order placement: %w", err)
	}

	e.lastSide = signal.Side
	e.recordTrade(ctx, fmt.Sprintf("%s %.0f %s @ $%.2f (order %s)",
		signal.Side, signal.Quantity, e.cfg.Symbol, signal.ReferencePrice, orderID))
	return nil
}

// estimate fetches recent headlines and runs the sentiment model. Any
// failure, or an empty news window, degrades to a neutral estimate so the
// iteration can still act on indicators.
func (e *Engine) estimate(ctx context.Context) (sentiment.Label, float64) {
	end := time.Now()
	start := end.Add(-e.cfg.NewsWindow)

	headlines, err := e.broker.Headlines(e.cfg.Symbol, start, end)
	if err != nil {
		log.Printf("Warning: headline fetch for %s failed: %v", e.cfg.Symbol, err)
		return sentiment.LabelNeutral, 0
	}
	if len(headlines) == 0 {
		return sentiment.LabelNeutral, 0
	}

	label, probability, err := e.estimator.Estimate(ctx, headlines)
	if err != nil {
		log.Printf("Warning: sentiment estimate for %s failed: %v", e.cfg.Symbol, err)
		return sentiment.LabelNeutral, 0
	}
	return label, probability
}

func (e *Engine) decide(label sentiment.Label, probability, price, cash float64) types.TradeSignal {
	if !e.cfg.UseIndicators {
		return Decide(label, probability, e.cfg.SpendCap, price, cash, e.lastSide)
	}

	closes, err := e.broker.DailyCloses(e.cfg.Symbol, e.cfg.Indicators.HistoryDays)
	if err != nil {
		log.Printf("Warning: close history for %s unavailable, deciding on sentiment alone: %v", e.cfg.Symbol, err)
		return Decide(label, probability, e.cfg.SpendCap, price, cash, e.lastSide)
	}

	ind := e.cfg.Indicators
	macd, macdSignal := MACD(closes, ind.ShortWindow, ind.LongWindow, ind.SignalWindow)
	return DecideAugmented(label, probability, e.cfg.SpendCap, price, cash, e.lastSide, IndicatorGate{
		MACD:       macd,
		MACDSignal: macdSignal,
		RSI:        RSI(closes, ind.RSIPeriod),
		Overbought: ind.Overbought,
		Oversold:   ind.Oversold,
	})
}

// recordTrade bumps the trade counter and publishes the event. Notification
// failures are logged, never fatal to the iteration.
func (e *Engine) recordTrade(ctx context.Context, description string) {
	atomic.AddInt64(&e.trades, 1)
	if err := e.bus.Publish(ctx, description, e.cfg.UserID); err != nil {
		log.Printf("Warning: failed to publish trade notification for %s: %v", e.cfg.UserID, err)
	}
}
