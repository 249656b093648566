package strategy

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"trader-agent/sentiment"
	"trader-agent/types"
)

type fakeBroker struct {
	mu sync.Mutex

	price    float64
	priceErr error
	cash     float64
	lines    []string
	linesErr error
	closes   []float64
	closeErr error
	orderErr error

	blockPrice chan struct{}

	orders      []types.OrderRequest
	liquidated  int
	cashLookups int
}

func (f *fakeBroker) VerifyCredentials() error          { return nil }
func (f *fakeBroker) PortfolioValue() (float64, error)  { return f.cash, nil }
func (f *fakeBroker) ClosePosition(symbol string) error { f.liquidated++; return nil }

func (f *fakeBroker) AvailableCash() (float64, error) {
	f.mu.Lock()
	f.cashLookups++
	f.mu.Unlock()
	return f.cash, nil
}

func (f *fakeBroker) LatestPrice(symbol string) (float64, error) {
	if f.blockPrice != nil {
		<-f.blockPrice
	}
	return f.price, f.priceErr
}

func (f *fakeBroker) Headlines(symbol string, start, end time.Time) ([]string, error) {
	return f.lines, f.linesErr
}

func (f *fakeBroker) DailyCloses(symbol string, days int) ([]float64, error) {
	return f.closes, f.closeErr
}

func (f *fakeBroker) PlaceBracketOrder(req types.OrderRequest) (string, error) {
	if f.orderErr != nil {
		return "", f.orderErr
	}
	f.mu.Lock()
	f.orders = append(f.orders, req)
	f.mu.Unlock()
	return "order-1", nil
}

type fakeEstimator struct {
	label sentiment.Label
	prob  float64
	calls int
}

func (f *fakeEstimator) Estimate(ctx context.Context, headlines []string) (sentiment.Label, float64, error) {
	f.calls++
	return f.label, f.prob, nil
}

type fakeBus struct {
	mu     sync.Mutex
	events []string
}

func (f *fakeBus) Publish(ctx context.Context, description, userID string) error {
	f.mu.Lock()
	f.events = append(f.events, description)
	f.mu.Unlock()
	return nil
}

func newTestEngine(b *fakeBroker, est *fakeEstimator, bus *fakeBus) *Engine {
	return NewEngine(Config{
		UserID:   "12345",
		Symbol:   "AAPL",
		SpendCap: 1000,
	}, b, est, bus)
}

func TestRunTickPlacesBuyOrder(t *testing.T) {
	b := &fakeBroker{price: 100, cash: 5000, lines: []string{"Record quarter"}}
	est := &fakeEstimator{label: sentiment.LabelPositive, prob: 0.95}
	bus := &fakeBus{}
	engine := newTestEngine(b, est, bus)

	engine.RunTick(context.Background())

	if len(b.orders) != 1 {
		t.Fatalf("orders placed = %d, want 1", len(b.orders))
	}
	order := b.orders[0]
	if order.Side != types.SideBuy || order.Quantity != 10 {
		t.Errorf("order = %+v, want buy of 10", order)
	}
	if order.Symbol != "AAPL" {
		t.Errorf("order symbol = %q, want AAPL", order.Symbol)
	}
	if engine.TradeCount() != 1 {
		t.Errorf("TradeCount() = %d, want 1", engine.TradeCount())
	}
	if len(bus.events) != 1 {
		t.Errorf("published events = %d, want 1", len(bus.events))
	}
}

func TestRunTickEmptyNewsHolds(t *testing.T) {
	b := &fakeBroker{price: 100, cash: 5000}
	est := &fakeEstimator{label: sentiment.LabelPositive, prob: 0.99}
	engine := newTestEngine(b, est, &fakeBus{})

	engine.RunTick(context.Background())

	if est.calls != 0 {
		t.Errorf("estimator called %d times for empty news, want 0", est.calls)
	}
	if len(b.orders) != 0 || engine.TradeCount() != 0 {
		t.Errorf("orders = %d, trades = %d, want none", len(b.orders), engine.TradeCount())
	}
}

func TestRunTickReversalLiquidates(t *testing.T) {
	b := &fakeBroker{price: 100, cash: 5000, lines: []string{"headline"}}
	est := &fakeEstimator{label: sentiment.LabelNegative, prob: 0.95}
	bus := &fakeBus{}
	engine := newTestEngine(b, est, bus)

	engine.RunTick(context.Background())
	if len(b.orders) != 1 || b.orders[0].Side != types.SideSell {
		t.Fatalf("first tick orders = %+v, want one sell", b.orders)
	}

	est.label = sentiment.LabelPositive
	engine.RunTick(context.Background())

	if b.liquidated != 1 {
		t.Errorf("liquidations = %d, want 1", b.liquidated)
	}
	if len(b.orders) != 2 || b.orders[1].Side != types.SideBuy {
		t.Fatalf("second tick orders = %+v, want a buy after the sell", b.orders)
	}
	if engine.TradeCount() != 3 {
		t.Errorf("TradeCount() = %d, want 3 (sell, liquidation, buy)", engine.TradeCount())
	}
	if len(bus.events) != 3 {
		t.Errorf("published events = %d, want 3", len(bus.events))
	}
}

func TestRunTickPriceFailureAborts(t *testing.T) {
	b := &fakeBroker{priceErr: errors.New("feed down"), cash: 5000, lines: []string{"headline"}}
	est := &fakeEstimator{label: sentiment.LabelPositive, prob: 0.99}
	engine := newTestEngine(b, est, &fakeBus{})

	engine.RunTick(context.Background())

	if b.cashLookups != 0 {
		t.Errorf("cash lookups = %d, want 0 after price failure", b.cashLookups)
	}
	if engine.TradeCount() != 0 {
		t.Errorf("TradeCount() = %d, want 0", engine.TradeCount())
	}
}

func TestRunTickSkipsWhileBusy(t *testing.T) {
	b := &fakeBroker{price: 100, cash: 5000, blockPrice: make(chan struct{})}
	est := &fakeEstimator{label: sentiment.LabelNeutral}
	engine := newTestEngine(b, est, &fakeBus{})

	done := make(chan struct{})
	go func() {
		engine.RunTick(context.Background())
		close(done)
	}()

	// Wait for the first tick to hold the iteration lock.
	waitFor(t, func() bool { return !tryLockProbe(&engine.mu) })

	engine.RunTick(context.Background())
	if b.cashLookups != 0 {
		t.Error("overlapping tick ran instead of being skipped")
	}

	close(b.blockPrice)
	<-done
}

func TestRunTickCancelledContext(t *testing.T) {
	b := &fakeBroker{price: 100, cash: 5000, lines: []string{"headline"}}
	est := &fakeEstimator{label: sentiment.LabelPositive, prob: 0.99}
	engine := newTestEngine(b, est, &fakeBus{})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	engine.RunTick(ctx)

	if engine.TradeCount() != 0 {
		t.Errorf("TradeCount() = %d, want 0 for cancelled context", engine.TradeCount())
	}
}

func tryLockProbe(mu *sync.Mutex) bool {
	if mu.TryLock() {
		mu.Unlock()
		return true
	}
	return false
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached before deadline")
}
