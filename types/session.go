package types

// EndTimeLayout is the wire format for session end times ("YYYY-MM-DD HH:MM:SS").
const EndTimeLayout = "2006-01-02 15:04:05"

// SessionReport summarizes a trading session at the moment it is stopped.
type SessionReport struct {
	TradeCount     int     `json:"trade_count"`
	CashValue      float64 `json:"cash_value"`
	PortfolioValue float64 `json:"portfolio_value"`
}
