package types

// Constants for order sides
const (
	SideBuy  = "buy"
	SideSell = "sell"
	SideHold = "hold"
)

// TradeSignal represents the outcome of one decision-policy evaluation.
// Quantity and the bracket prices are only meaningful when Side is "buy"
// or "sell".
type TradeSignal struct {
	Symbol         string  `json:"symbol"`
	Side           string  `json:"side"` // "buy", "sell", "hold"
	Quantity       float64 `json:"quantity"`
	ReferencePrice float64 `json:"reference_price"`
	TakeProfit     float64 `json:"take_profit"`
	StopLoss       float64 `json:"stop_loss"`
	Liquidate      bool    `json:"liquidate"` // close the open position before reversing direction
}

// OrderRequest describes one bracket order to submit to the brokerage.
type OrderRequest struct {
	Symbol     string  `json:"symbol"`
	Side       string  `json:"side"` // "buy" or "sell"
	Quantity   float64 `json:"quantity"`
	TakeProfit float64 `json:"take_profit"`
	StopLoss   float64 `json:"stop_loss"`
}
