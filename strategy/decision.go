package strategy

import (
	"math"

	"trader-agent/sentiment"
	"trader-agent/types"
)

// Decision thresholds and bracket multipliers. A signal fires only when the
// sentiment model is confident beyond confidenceThreshold; the bracket legs
// are fixed percentages of the reference price.
const (
	confidenceThreshold = 0.9

	buyTakeProfitPct = 1.20
	buyStopLossPct   = 0.95

	sellTakeProfitPct = 0.80
	sellStopLossPct   = 1.05
)

// IndicatorGate carries the technical indicator values that can open a
// trade independently of sentiment.
type IndicatorGate struct {
	MACD       float64
	MACDSignal float64
	RSI        float64
	Overbought float64
	Oversold   float64
}

// Decide maps a sentiment estimate to a trade signal. It returns a hold
// signal when confidence is at or below the threshold, when the price or
// spending cap make a single share unaffordable, or when the cap is not
// strictly below available cash.
func Decide(label sentiment.Label, probability, spendCap, price, cash float64, lastSide string) types.TradeSignal {
	buySignal := label == sentiment.LabelPositive && probability > confidenceThreshold
	sellSignal := label == sentiment.LabelNegative && probability > confidenceThreshold
	return decide(buySignal, sellSignal, spendCap, price, cash, lastSide)
}

// DecideAugmented combines sentiment with technical indicators: a trade
// fires when either the sentiment gate or the indicator gate opens. MACD
// above its signal line or an oversold RSI opens the buy gate; the mirror
// conditions open the sell gate.
func DecideAugmented(label sentiment.Label, probability, spendCap, price, cash float64, lastSide string, gate IndicatorGate) types.TradeSignal {
	buySignal := label == sentiment.LabelPositive && probability > confidenceThreshold
	sellSignal := label == sentiment.LabelNegative && probability > confidenceThreshold

	if gate.MACD > gate.MACDSignal || gate.RSI < gate.Oversold {
		buySignal = true
	}
	if gate.MACD < gate.MACDSignal || gate.RSI > gate.Overbought {
		sellSignal = true
	}
	// Contradictory gates cancel out rather than racing.
	if buySignal && sellSignal {
		buySignal = false
		sellSignal = false
	}

	return decide(buySignal, sellSignal, spendCap, price, cash, lastSide)
}

func decide(buySignal, sellSignal bool, spendCap, price, cash float64, lastSide string) types.TradeSignal {
	hold := types.TradeSignal{Side: types.SideHold}

	if !buySignal && !sellSignal {
		return hold
	}
	if price <= 0 || spendCap <= price || spendCap >= cash {
		return hold
	}

	qty := math.Floor(spendCap / price)
	if qty < 1 {
		return hold
	}

	if buySignal {
		return types.TradeSignal{
			Side:           types.SideBuy,
			Quantity:       qty,
			ReferencePrice: price,
			TakeProfit:     price * buyTakeProfitPct,
			StopLoss:       price * buyStopLossPct,
			Liquidate:      lastSide == types.SideSell,
		}
	}

	return types.TradeSignal{
		Side:           types.SideSell,
		Quantity:       qty,
		ReferencePrice: price,
		TakeProfit:     price * sellTakeProfitPct,
		StopLoss:       price * sellStopLossPct,
		Liquidate:      lastSide == types.SideBuy,
	}
}
