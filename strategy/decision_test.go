package strategy

import (
	"math"
	"testing"

	"trader-agent/sentiment"
	"trader-agent/types"
)

func TestDecide(t *testing.T) {
	tests := []struct {
		name        string
		label       sentiment.Label
		probability float64
		spendCap    float64
		price       float64
		cash        float64
		lastSide    string
		wantSide    string
		wantQty     float64
		wantTP      float64
		wantSL      float64
		wantLiq     bool
	}{
		{
			name:        "Confident positive sentiment buys",
			label:       sentiment.LabelPositive,
			probability: 0.95,
			spendCap:    1000,
			price:       100,
			cash:        5000,
			wantSide:    types.SideBuy,
			wantQty:     10,
			wantTP:      120,
			wantSL:      95,
		},
		{
			name:        "Confident negative sentiment sells",
			label:       sentiment.LabelNegative,
			probability: 0.95,
			spendCap:    1000,
			price:       100,
			cash:        5000,
			wantSide:    types.SideSell,
			wantQty:     10,
			wantTP:      80,
			wantSL:      105,
		},
		{
			name:        "Probability at threshold holds",
			label:       sentiment.LabelPositive,
			probability: 0.9,
			spendCap:    1000,
			price:       100,
			cash:        5000,
			wantSide:    types.SideHold,
		},
		{
			name:        "Neutral sentiment holds regardless of confidence",
			label:       sentiment.LabelNeutral,
			probability: 0.99,
			spendCap:    1000,
			price:       100,
			cash:        5000,
			wantSide:    types.SideHold,
		},
		{
			name:        "Spending cap below share price holds",
			label:       sentiment.LabelPositive,
			probability: 0.95,
			spendCap:    50,
			price:       100,
			cash:        5000,
			wantSide:    types.SideHold,
		},
		{
			name:        "Spending cap equal to cash holds",
			label:       sentiment.LabelPositive,
			probability: 0.95,
			spendCap:    5000,
			price:       100,
			cash:        5000,
			wantSide:    types.SideHold,
		},
		{
			name:        "Spending cap above cash holds",
			label:       sentiment.LabelPositive,
			probability: 0.95,
			spendCap:    6000,
			price:       100,
			cash:        5000,
			wantSide:    types.SideHold,
		},
		{
			name:        "Zero price holds",
			label:       sentiment.LabelPositive,
			probability: 0.95,
			spendCap:    1000,
			price:       0,
			cash:        5000,
			wantSide:    types.SideHold,
		},
		{
			name:        "Buy after prior sell liquidates first",
			label:       sentiment.LabelPositive,
			probability: 0.95,
			spendCap:    1000,
			price:       100,
			cash:        5000,
			lastSide:    types.SideSell,
			wantSide:    types.SideBuy,
			wantQty:     10,
			wantTP:      120,
			wantSL:      95,
			wantLiq:     true,
		},
		{
			name:        "Buy after prior buy does not liquidate",
			label:       sentiment.LabelPositive,
			probability: 0.95,
			spendCap:    1000,
			price:       100,
			cash:        5000,
			lastSide:    types.SideBuy,
			wantSide:    types.SideBuy,
			wantQty:     10,
			wantTP:      120,
			wantSL:      95,
		},
		{
			name:        "Fractional cap rounds quantity down",
			label:       sentiment.LabelPositive,
			probability: 0.95,
			spendCap:    999,
			price:       100,
			cash:        5000,
			wantSide:    types.SideBuy,
			wantQty:     9,
			wantTP:      120,
			wantSL:      95,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Decide(tt.label, tt.probability, tt.spendCap, tt.price, tt.cash, tt.lastSide)
			if got.Side != tt.wantSide {
				t.Fatalf("side = %q, want %q", got.Side, tt.wantSide)
			}
			if got.Side == types.SideHold {
				return
			}
			if got.Quantity != tt.wantQty {
				t.Errorf("quantity = %v, want %v", got.Quantity, tt.wantQty)
			}
			if !closeEnough(got.TakeProfit, tt.wantTP) {
				t.Errorf("take profit = %v, want %v", got.TakeProfit, tt.wantTP)
			}
			if !closeEnough(got.StopLoss, tt.wantSL) {
				t.Errorf("stop loss = %v, want %v", got.StopLoss, tt.wantSL)
			}
			if got.Liquidate != tt.wantLiq {
				t.Errorf("liquidate = %v, want %v", got.Liquidate, tt.wantLiq)
			}
		})
	}
}

func TestDecideAugmented(t *testing.T) {
	bullish := IndicatorGate{MACD: 1.5, MACDSignal: 1.0, RSI: 50, Overbought: 60, Oversold: 40}
	bearish := IndicatorGate{MACD: 1.0, MACDSignal: 1.5, RSI: 50, Overbought: 60, Oversold: 40}
	oversold := IndicatorGate{MACD: 1.5, MACDSignal: 1.5, RSI: 30, Overbought: 60, Oversold: 40}
	overbought := IndicatorGate{MACD: 1.5, MACDSignal: 1.5, RSI: 70, Overbought: 60, Oversold: 40}

	tests := []struct {
		name     string
		label    sentiment.Label
		prob     float64
		gate     IndicatorGate
		wantSide string
	}{
		{"Bullish crossover buys at neutral sentiment", sentiment.LabelNeutral, 0, bullish, types.SideBuy},
		{"Bearish crossover sells at neutral sentiment", sentiment.LabelNeutral, 0, bearish, types.SideSell},
		{"Oversold RSI buys at neutral sentiment", sentiment.LabelNeutral, 0, oversold, types.SideBuy},
		{"Overbought RSI sells at neutral sentiment", sentiment.LabelNeutral, 0, overbought, types.SideSell},
		{"Bearish crossover with oversold RSI cancels out",
			sentiment.LabelNeutral, 0,
			IndicatorGate{MACD: 1.0, MACDSignal: 1.5, RSI: 30, Overbought: 60, Oversold: 40},
			types.SideHold},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := DecideAugmented(tt.label, tt.prob, 1000, 100, 5000, "", tt.gate)
			if got.Side != tt.wantSide {
				t.Errorf("side = %q, want %q", got.Side, tt.wantSide)
			}
		})
	}
}

func closeEnough(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}
