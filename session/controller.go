package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"trader-agent/broker"
	"trader-agent/notification"
	"trader-agent/sentiment"
	"trader-agent/store"
	"trader-agent/strategy"
	"trader-agent/types"
)

// Sentinel errors mapped to response statuses by the HTTP layer.
var (
	ErrNoCredentials     = errors.New("no credentials stored for user")
	ErrInsufficientFunds = errors.New("spending cap exceeds available cash")
	ErrAlreadyActive     = errors.New("session already active for user")
	ErrNoActiveSession   = errors.New("no active session for user")
	ErrEndTimeNotFuture  = errors.New("session end time must be in the future")
)

// Store is the persistence surface the controller needs.
type Store interface {
	Get(ctx context.Context, userID string) (*store.Record, error)
	StartSession(ctx context.Context, userID, ticker, endTime, amountToSpend string) error
	ClearSession(ctx context.Context, userID string) error
}

// BrokerFactory builds a broker client for a user's credential pair.
type BrokerFactory func(apiKey, apiSecret string) broker.Client

// Config holds the controller's timing and strategy settings, shared by all
// sessions it starts.
type Config struct {
	// TickInterval is the trading iteration cadence. The first iteration
	// runs immediately on start.
	TickInterval time.Duration

	// WatchdogInterval is how often each session's expiry is checked.
	WatchdogInterval time.Duration

	NewsWindow    time.Duration
	UseIndicators bool
	Indicators    strategy.IndicatorConfig
}

const (
	defaultTickInterval     = 24 * time.Hour
	defaultWatchdogInterval = time.Minute
)

// task is one running session: its engine, the goroutine cancel handle, and
// the parameters needed for the recap.
type task struct {
	engine  *strategy.Engine
	broker  broker.Client
	cancel  context.CancelFunc
	ticker  string
	endTime time.Time
}

// Controller owns every active trading session. At most one session runs
// per user; starts and stops for the same user are serialized.
type Controller struct {
	cfg       Config
	store     Store
	newBroker BrokerFactory
	estimator sentiment.Estimator
	bus       notification.Publisher

	mu     sync.Mutex
	tasks  map[string]*task
	userMu map[string]*sync.Mutex
}

// NewController creates a controller, filling config defaults.
func NewController(cfg Config, st Store, factory BrokerFactory, estimator sentiment.Estimator, bus notification.Publisher) *Controller {
	if cfg.TickInterval <= 0 {
		cfg.TickInterval = defaultTickInterval
	}
	if cfg.WatchdogInterval <= 0 {
		cfg.WatchdogInterval = defaultWatchdogInterval
	}
	return &Controller{
		cfg:       cfg,
		store:     st,
		newBroker: factory,
		estimator: estimator,
		bus:       bus,
		tasks:     make(map[string]*task),
		userMu:    make(map[string]*sync.Mutex),
	}
}

// userLock returns the per-user mutex, creating it on first use.
func (c *Controller) userLock(userID string) *sync.Mutex {
	c.mu.Lock()
	defer c.mu.Unlock()
	mu, ok := c.userMu[userID]
	if !ok {
		mu = &sync.Mutex{}
		c.userMu[userID] = mu
	}
	return mu
}

// Active reports whether the user has a running session.
func (c *Controller) Active(userID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.tasks[userID]
	return ok
}

// Start validates the request, persists the session fields, and launches
// the trading loop and expiry watchdog for the user.
func (c *Controller) Start(ctx context.Context, userID, symbol string, endTime time.Time, spendCap float64) error {
	lock := c.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	if c.Active(userID) {
		return ErrAlreadyActive
	}
	if !endTime.After(time.Now()) {
		return ErrEndTimeNotFuture
	}

	rec, err := c.store.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("failed to load record for %s: %w", userID, err)
	}
	if rec == nil || rec.APIKey == "" || rec.APISecret == "" {
		return ErrNoCredentials
	}

	b := c.newBroker(rec.APIKey, rec.APISecret)
	cash, err := b.AvailableCash()
	if err != nil {
		return fmt.Errorf("failed to check cash for %s: %w", userID, err)
	}
	if spendCap > cash {
		return ErrInsufficientFunds
	}

	if err := c.store.StartSession(ctx, userID, symbol,
		endTime.Format(types.EndTimeLayout),
		fmt.Sprintf("%g", spendCap)); err != nil {
		return fmt.Errorf("failed to persist session for %s: %w", userID, err)
	}

	engine := strategy.NewEngine(strategy.Config{
		UserID:        userID,
		Symbol:        symbol,
		SpendCap:      spendCap,
		NewsWindow:    c.cfg.NewsWindow,
		UseIndicators: c.cfg.UseIndicators,
		Indicators:    c.cfg.Indicators,
	}, b, c.estimator, c.bus)

	loopCtx, cancel := context.WithCancel(context.Background())
	t := &task{engine: engine, broker: b, cancel: cancel, ticker: symbol, endTime: endTime}

	c.mu.Lock()
	c.tasks[userID] = t
	c.mu.Unlock()

	go c.runLoop(loopCtx, engine)
	go c.watchdog(loopCtx, userID, endTime)

	log.Printf("Started session for %s: %s until %s, cap $%.2f",
		userID, symbol, endTime.Format(types.EndTimeLayout), spendCap)
	return nil
}

// runLoop runs the first iteration immediately, then one per tick until the
// session is cancelled.
func (c *Controller) runLoop(ctx context.Context, engine *strategy.Engine) {
	engine.RunTick(ctx)

	ticker := time.NewTicker(c.cfg.TickInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			engine.RunTick(ctx)
		}
	}
}

// watchdog stops the session once its end time passes. Losing the race to
// an explicit stop is fine: Stop on a gone session is a no-op here.
func (c *Controller) watchdog(ctx context.Context, userID string, endTime time.Time) {
	ticker := time.NewTicker(c.cfg.WatchdogInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if now.Before(endTime) {
				continue
			}
			log.Printf("Session for %s reached its end time, stopping", userID)
			if _, err := c.Stop(context.Background(), userID); err != nil && !errors.Is(err, ErrNoActiveSession) {
				log.Printf("Warning: watchdog failed to stop session for %s: %v", userID, err)
			}
			return
		}
	}
}

// Stop cancels the user's session, clears its persisted fields, and returns
// a recap of the run. The recap is also published to the notification bus.
func (c *Controller) Stop(ctx context.Context, userID string) (*types.SessionReport, error) {
	lock := c.userLock(userID)
	lock.Lock()
	defer lock.Unlock()

	c.mu.Lock()
	t, ok := c.tasks[userID]
	if ok {
		delete(c.tasks, userID)
	}
	c.mu.Unlock()
	if !ok {
		return nil, ErrNoActiveSession
	}

	t.cancel()
	// Let any in-flight iteration finish before reading the trade count.
	t.engine.WaitIdle()

	if err := c.store.ClearSession(ctx, userID); err != nil {
		log.Printf("Warning: failed to clear session fields for %s: %v", userID, err)
	}

	report := &types.SessionReport{TradeCount: t.engine.TradeCount()}
	if cash, err := t.broker.AvailableCash(); err != nil {
		log.Printf("Warning: failed to read cash for recap of %s: %v", userID, err)
	} else {
		report.CashValue = cash
	}
	if value, err := t.broker.PortfolioValue(); err != nil {
		log.Printf("Warning: failed to read portfolio value for recap of %s: %v", userID, err)
	} else {
		report.PortfolioValue = value
	}

	recap := fmt.Sprintf("Session recap for %s: %d trades, cash $%.2f, portfolio $%.2f",
		t.ticker, report.TradeCount, report.CashValue, report.PortfolioValue)
	if err := c.bus.Publish(ctx, recap, userID); err != nil {
		log.Printf("Warning: failed to publish recap for %s: %v", userID, err)
	}

	log.Printf("Stopped session for %s: %d trades", userID, report.TradeCount)
	return report, nil
}
