package broker

import (
	"fmt"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"trader-agent/types"
)

// Client is the brokerage surface the trading engine and session controller
// depend on. The production implementation talks to Alpaca; tests supply
// in-memory fakes.
type Client interface {
	// VerifyCredentials checks that the credential pair grants account access.
	VerifyCredentials() error

	// AvailableCash returns the account's settled cash balance.
	AvailableCash() (float64, error)

	// PortfolioValue returns the total account equity.
	PortfolioValue() (float64, error)

	// LatestPrice returns the most recent trade price for the symbol.
	LatestPrice(symbol string) (float64, error)

	// Headlines returns news headlines for the symbol over [start, end].
	Headlines(symbol string, start, end time.Time) ([]string, error)

	// DailyCloses returns up to days daily closing prices, oldest first.
	DailyCloses(symbol string, days int) ([]float64, error)

	// PlaceBracketOrder submits a market order wrapped in a take-profit and
	// stop-loss pair and returns the broker-assigned order ID.
	PlaceBracketOrder(req types.OrderRequest) (string, error)

	// ClosePosition liquidates the full open position in the symbol.
	ClosePosition(symbol string) error
}

// Alpaca implements Client against the Alpaca trading and market data APIs.
type Alpaca struct {
	trading *alpaca.Client
	md      *marketdata.Client
}

// NewAlpaca creates a client authenticated with the given credential pair.
// baseURL selects the paper or live trading environment.
func NewAlpaca(apiKey, apiSecret, baseURL string) *Alpaca {
	httpClient := &http.Client{Timeout: 30 * time.Second}

	trading := alpaca.NewClient(alpaca.ClientOpts{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		BaseURL:    baseURL,
		HTTPClient: httpClient,
	})

	md := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		HTTPClient: httpClient,
	})

	return &Alpaca{trading: trading, md: md}
}

// VerifyCredentials fetches the account to prove the credential pair works.
// Invalid keys come back as 401/403 from the API and surface here as errors.
func (a *Alpaca) VerifyCredentials() error {
	if _, err := a.trading.GetAccount(); err != nil {
		return fmt.Errorf("credential check failed: %w", err)
	}
	return nil
}

func (a *Alpaca) AvailableCash() (float64, error) {
	account, err := a.trading.GetAccount()
	if err != nil {
		return 0, fmt.Errorf("failed to get account: %w", err)
	}
	return account.Cash.InexactFloat64(), nil
}

func (a *Alpaca) PortfolioValue() (float64, error) {
	account, err := a.trading.GetAccount()
	if err != nil {
		return 0, fmt.Errorf("failed to get account: %w", err)
	}
	return account.PortfolioValue.InexactFloat64(), nil
}

func (a *Alpaca) LatestPrice(symbol string) (float64, error) {
	trade, err := a.md.GetLatestTrade(symbol, marketdata.GetLatestTradeRequest{})
	if err != nil {
		return 0, fmt.Errorf("failed to get latest trade for %s: %w", symbol, err)
	}
	return trade.Price, nil
}

func (a *Alpaca) Headlines(symbol string, start, end time.Time) ([]string, error) {
	news, err := a.md.GetNews(marketdata.GetNewsRequest{
		Symbols:    []string{symbol},
		Start:      start,
		End:        end,
		TotalLimit: 50,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get news for %s: %w", symbol, err)
	}

	headlines := make([]string, 0, len(news))
	for _, item := range news {
		if item.Headline != "" {
			headlines = append(headlines, item.Headline)
		}
	}
	return headlines, nil
}

func (a *Alpaca) DailyCloses(symbol string, days int) ([]float64, error) {
	end := time.Now()
	// Calendar window is padded so weekends and holidays still yield enough
	// trading days.
	start := end.AddDate(0, 0, -(days*2 + 10))

	bars, err := a.md.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get daily bars for %s: %w", symbol, err)
	}

	closes := make([]float64, 0, len(bars))
	for _, bar := range bars {
		closes = append(closes, bar.Close)
	}
	if len(closes) > days {
		closes = closes[len(closes)-days:]
	}
	return closes, nil
}

// PlaceBracketOrder submits a day market order with an attached take-profit
// limit and stop-loss stop. Prices are rounded to cents as the API requires.
func (a *Alpaca) PlaceBracketOrder(req types.OrderRequest) (string, error) {
	qty := decimal.NewFromFloat(req.Quantity)
	takeProfit := decimal.NewFromFloat(req.TakeProfit).Round(2)
	stopLoss := decimal.NewFromFloat(req.StopLoss).Round(2)

	order, err := a.trading.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &qty,
		Side:          alpaca.Side(req.Side),
		Type:          alpaca.Market,
		TimeInForce:   alpaca.Day,
		OrderClass:    alpaca.Bracket,
		TakeProfit:    &alpaca.TakeProfit{LimitPrice: &takeProfit},
		StopLoss:      &alpaca.StopLoss{StopPrice: &stopLoss},
		ClientOrderID: uuid.NewString(),
	})
	if err != nil {
		return "", fmt.Errorf("failed to place %s order for %s: %w", req.Side, req.Symbol, err)
	}
	return order.ID, nil
}

func (a *Alpaca) ClosePosition(symbol string) error {
	if _, err := a.trading.ClosePosition(symbol, alpaca.ClosePositionRequest{}); err != nil {
		return fmt.Errorf("failed to close position in %s: %w", symbol, err)
	}
	return nil
}
