package ticker

import (
	"fmt"
	"net/http"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// Validator answers whether a ticker symbol is tradable by probing the
// market data API for recent daily bars.
type Validator struct {
	md *marketdata.Client
}

// NewValidator creates a validator using the given market data credentials.
func NewValidator(apiKey, apiSecret string) *Validator {
	md := marketdata.NewClient(marketdata.ClientOpts{
		APIKey:     apiKey,
		APISecret:  apiSecret,
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
	})
	return &Validator{md: md}
}

// Exists reports whether the symbol has traded within the last week. A
// symbol with no bars is unknown; a request failure is returned as an error
// so the caller can distinguish "not found" from "could not check".
func (v *Validator) Exists(symbol string) (bool, error) {
	end := time.Now()
	start := end.AddDate(0, 0, -7)

	bars, err := v.md.GetBars(symbol, marketdata.GetBarsRequest{
		TimeFrame: marketdata.OneDay,
		Start:     start,
		End:       end,
	})
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", symbol, err)
	}
	return len(bars) > 0, nil
}
