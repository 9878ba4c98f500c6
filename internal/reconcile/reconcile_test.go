package reconcile_test

import (
	"testing"

	"freightline/internal/domain"
	"freightline/internal/reconcile"
)

func strPtr(s string) *string { return &s }

func charge(id, side string, leg *string, cat, basis string, amount float64) domain.ChargeLine {
	return domain.ChargeLine{
		ID:         id,
		Side:       side,
		LegID:      leg,
		CategoryID: cat,
		BasisID:    basis,
		Quantity:   1,
		Rate:       amount,
		Amount:     amount,
	}
}

func TestPairMatchingBuySell(t *testing.T) {
	charges := []domain.ChargeLine{
		charge("b1", "buy", strPtr("L1"), "C1", "B1", 1000),
		charge("s1", "sell", strPtr("L1"), "C1", "B1", 1200),
	}
	pairs := reconcile.Pairs(charges)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	p := pairs[0]
	if p.Buy == nil || p.Sell == nil {
		t.Fatalf("expected both sides, got buy=%v sell=%v", p.Buy, p.Sell)
	}
	if p.Buy.Amount != 1000 {
		t.Fatalf("buy amount = %v, want 1000", p.Buy.Amount)
	}
	if p.Sell.Amount != 1200 {
		t.Fatalf("sell amount = %v, want 1200", p.Sell.Amount)
	}
}

func TestSellWithoutBuyBecomesSingleton(t *testing.T) {
	charges := []domain.ChargeLine{
		charge("b1", "buy", strPtr("L1"), "C1", "B1", 500),
		charge("s1", "sell", strPtr("L2"), "C1", "B1", 600),
	}
	pairs := reconcile.Pairs(charges)
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	// Sell-derived pairs come first.
	if pairs[0].Buy != nil || pairs[0].Sell == nil {
		t.Fatalf("expected sell singleton first, got %+v", pairs[0])
	}
	if pairs[1].Buy == nil || pairs[1].Sell != nil {
		t.Fatalf("expected leftover buy singleton, got %+v", pairs[1])
	}
}

func TestFirstUnmatchedBuyWins(t *testing.T) {
	charges := []domain.ChargeLine{
		charge("b1", "buy", strPtr("L1"), "C1", "B1", 100),
		charge("b2", "buy", strPtr("L1"), "C1", "B1", 999),
		charge("s1", "sell", strPtr("L1"), "C1", "B1", 150),
	}
	pairs := reconcile.Pairs(charges)
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if pairs[0].Buy.ChargeID != "b1" {
		t.Fatalf("expected first buy matched, got %s", pairs[0].Buy.ChargeID)
	}
	if pairs[1].Buy.ChargeID != "b2" || pairs[1].Sell != nil {
		t.Fatalf("expected b2 left over, got %+v", pairs[1])
	}
}

func TestMultipleSellsConsumeDistinctBuys(t *testing.T) {
	charges := []domain.ChargeLine{
		charge("b1", "buy", strPtr("L1"), "C1", "B1", 100),
		charge("b2", "buy", strPtr("L1"), "C1", "B1", 200),
		charge("s1", "sell", strPtr("L1"), "C1", "B1", 120),
		charge("s2", "sell", strPtr("L1"), "C1", "B1", 240),
	}
	pairs := reconcile.Pairs(charges)
	if len(pairs) != 2 {
		t.Fatalf("expected 2 pairs, got %d", len(pairs))
	}
	if pairs[0].Buy.ChargeID != "b1" || pairs[0].Sell.ChargeID != "s1" {
		t.Fatalf("pair 0 = %+v", pairs[0])
	}
	if pairs[1].Buy.ChargeID != "b2" || pairs[1].Sell.ChargeID != "s2" {
		t.Fatalf("pair 1 = %+v", pairs[1])
	}
}

func TestNilLegGroupsTogether(t *testing.T) {
	charges := []domain.ChargeLine{
		charge("b1", "buy", nil, "C1", "B1", 100),
		charge("s1", "sell", nil, "C1", "B1", 130),
	}
	pairs := reconcile.Pairs(charges)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair, got %d", len(pairs))
	}
	if pairs[0].Buy == nil || pairs[0].Sell == nil {
		t.Fatalf("expected full pair, got %+v", pairs[0])
	}
}

func TestMissingCategoryStillGroups(t *testing.T) {
	charges := []domain.ChargeLine{
		charge("b1", "buy", strPtr("L1"), "", "", 100),
		charge("s1", "sell", strPtr("L1"), "", "", 110),
	}
	pairs := reconcile.Pairs(charges)
	if len(pairs) != 1 {
		t.Fatalf("expected 1 pair for equally incomplete lines, got %d", len(pairs))
	}
}

func TestAmountDefaultsToRateTimesQuantity(t *testing.T) {
	c := domain.ChargeLine{ID: "b1", Side: "buy", CategoryID: "C1", BasisID: "B1", Quantity: 3, Rate: 50}
	pairs := reconcile.Pairs([]domain.ChargeLine{c})
	if len(pairs) != 1 || pairs[0].Buy == nil {
		t.Fatalf("unexpected pairs %+v", pairs)
	}
	if pairs[0].Buy.Amount != 150 {
		t.Fatalf("amount = %v, want 150", pairs[0].Buy.Amount)
	}
}

func TestEmptyInput(t *testing.T) {
	if pairs := reconcile.Pairs(nil); len(pairs) != 0 {
		t.Fatalf("expected empty output, got %d", len(pairs))
	}
}

func TestInputNotModified(t *testing.T) {
	charges := []domain.ChargeLine{
		charge("b1", "buy", strPtr("L1"), "C1", "B1", 100),
		charge("s1", "sell", strPtr("L1"), "C1", "B1", 120),
	}
	_ = reconcile.Pairs(charges)
	if charges[0].ID != "b1" || charges[1].ID != "s1" {
		t.Fatalf("input mutated: %+v", charges)
	}
}
