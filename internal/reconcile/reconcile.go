// Package reconcile groups raw charge lines into buy/sell pairs.
//
// Charges are written to storage as flat rows, one per side. The editable
// view works on pairs: a buy row and a sell row describing the same
// underlying charge. Two rows belong together when they share the
// reconciliation key (leg id, category id, basis id).
package reconcile

import (
	"freightline/internal/domain"
)

type key struct {
	leg      string
	category string
	basis    string
}

func keyOf(c domain.ChargeLine) key {
	k := key{category: c.CategoryID, basis: c.BasisID}
	if c.LegID != nil {
		k.leg = *c.LegID
	}
	return k
}

// Pairs reconciles charge lines into buy/sell pairs. Each sell line is
// matched to the first unmatched buy line with the same key, in the order
// the buys appeared; a sell with no matching buy becomes a sell-only
// singleton. Buy lines left unmatched after all sells are processed become
// buy-only singletons, appended after the sell-derived pairs. The input is
// not modified. Lines with missing category or basis are tolerated; empty
// fields compare as-is, so equally incomplete lines still group together.
func Pairs(charges []domain.ChargeLine) []domain.ChargePair {
	var buys, sells []domain.ChargeLine
	for _, c := range charges {
		if c.Side == "buy" {
			buys = append(buys, c)
		} else {
			sells = append(sells, c)
		}
	}

	matched := make([]bool, len(buys))
	pairs := make([]domain.ChargePair, 0, len(sells)+len(buys))

	for _, sell := range sells {
		idx := -1
		for i, buy := range buys {
			if !matched[i] && keyOf(buy) == keyOf(sell) {
				idx = i
				break
			}
		}
		if idx >= 0 {
			buy := buys[idx]
			matched[idx] = true
			note := buy.Note
			if note == "" {
				note = sell.Note
			}
			pairs = append(pairs, domain.ChargePair{
				ID:         buy.ID,
				LegID:      buy.LegID,
				CategoryID: buy.CategoryID,
				BasisID:    buy.BasisID,
				CurrencyID: buy.CurrencyID,
				Unit:       buy.Unit,
				Buy:        sideOf(buy),
				Sell:       sideOf(sell),
				Note:       note,
			})
			continue
		}
		pairs = append(pairs, domain.ChargePair{
			ID:         sell.ID,
			LegID:      sell.LegID,
			CategoryID: sell.CategoryID,
			BasisID:    sell.BasisID,
			CurrencyID: sell.CurrencyID,
			Unit:       sell.Unit,
			Sell:       sideOf(sell),
			Note:       sell.Note,
		})
	}

	for i, buy := range buys {
		if matched[i] {
			continue
		}
		pairs = append(pairs, domain.ChargePair{
			ID:         buy.ID,
			LegID:      buy.LegID,
			CategoryID: buy.CategoryID,
			BasisID:    buy.BasisID,
			CurrencyID: buy.CurrencyID,
			Unit:       buy.Unit,
			Buy:        sideOf(buy),
			Note:       buy.Note,
		})
	}
	return pairs
}

func sideOf(c domain.ChargeLine) *domain.ChargeSide {
	amount := c.Amount
	if amount == 0 && c.Rate != 0 {
		amount = c.Rate * c.Quantity
	}
	return &domain.ChargeSide{
		ChargeID: c.ID,
		Quantity: c.Quantity,
		Rate:     c.Rate,
		Amount:   amount,
	}
}
