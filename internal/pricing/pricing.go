// Package pricing implements the sell-based margin model used when charge
// lines are split into buy and sell sides.
package pricing

import "math"

// DefaultMarginPercent applies when a tenant has no configured margin.
const DefaultMarginPercent = 15

// Financials breaks an amount into its buy and sell sides. Margin percent is
// sell-based (margin over sell); markup percent is cost-based (margin over
// buy). All monetary values are rounded to cents.
type Financials struct {
	SellPrice     float64 `json:"sell_price"`
	BuyPrice      float64 `json:"buy_price"`
	MarginAmount  float64 `json:"margin_amount"`
	MarginPercent float64 `json:"margin_percent"`
	MarkupPercent float64 `json:"markup_percent"`
}

// Calculate derives both sides from a single amount. When costBased is false
// the amount is the sell price and the buy price is derived by removing the
// margin; when true the amount is the buy price and the sell price adds the
// margin on top.
func Calculate(amount, marginPercent float64, costBased bool) Financials {
	if marginPercent < 0 {
		marginPercent = 0
	}
	var sell, buy float64
	if costBased {
		buy = amount
		sell = Round2(buy * (1 + marginPercent/100))
	} else {
		sell = amount
		buy = Round2(sell * (1 - marginPercent/100))
	}
	margin := Round2(sell - buy)
	markup := 0.0
	if buy > 0 {
		markup = Round2(margin / buy * 100)
	}
	return Financials{
		SellPrice:     Round2(sell),
		BuyPrice:      buy,
		MarginAmount:  margin,
		MarginPercent: marginPercent,
		MarkupPercent: markup,
	}
}

// Round2 rounds to cents.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
