package ranking_test

import (
	"testing"

	"freightline/internal/domain"
	"freightline/internal/ranking"
)

func intPtr(v int) *int           { return &v }
func floatPtr(v float64) *float64 { return &v }

func TestEmptyInput(t *testing.T) {
	out := ranking.Rank(nil, nil)
	if len(out) != 0 {
		t.Fatalf("expected empty output, got %d", len(out))
	}
}

func TestSingleOption(t *testing.T) {
	out := ranking.Rank([]domain.RateOption{
		{ID: "opt-1", TotalAmount: 1500, TransitTimeDays: intPtr(20)},
	}, nil)
	if len(out) != 1 {
		t.Fatalf("expected 1 option, got %d", len(out))
	}
	o := out[0]
	if o.RankScore != 100 {
		t.Fatalf("score = %d, want 100", o.RankScore)
	}
	if !o.IsRecommended {
		t.Fatalf("expected recommended")
	}
	if o.RecommendationReason != "Only available option" {
		t.Fatalf("reason = %q", o.RecommendationReason)
	}
}

func TestIdenticalOptionsAllScore100(t *testing.T) {
	opts := []domain.RateOption{
		{ID: "a", TotalAmount: 1000, TransitTimeDays: intPtr(10), ReliabilityScore: floatPtr(0.9)},
		{ID: "b", TotalAmount: 1000, TransitTimeDays: intPtr(10), ReliabilityScore: floatPtr(0.9)},
		{ID: "c", TotalAmount: 1000, TransitTimeDays: intPtr(10), ReliabilityScore: floatPtr(0.9)},
	}
	out := ranking.Rank(opts, nil)
	for _, o := range out {
		if o.RankScore != 100 {
			t.Fatalf("option %s score = %d, want 100", o.ID, o.RankScore)
		}
	}
	// Stable sort keeps input order on ties; first input stays on top.
	if out[0].ID != "a" || !out[0].IsRecommended {
		t.Fatalf("expected first input recommended, got %s rec=%v", out[0].ID, out[0].IsRecommended)
	}
	for _, o := range out[1:] {
		if o.IsRecommended {
			t.Fatalf("option %s should not be recommended", o.ID)
		}
	}
}

func TestCheapestAndFastestWins(t *testing.T) {
	opts := []domain.RateOption{
		{ID: "slowCheap", TotalAmount: 1000, TransitTimeDays: intPtr(30), ReliabilityScore: floatPtr(0.7)},
		{ID: "fastPricey", TotalAmount: 3000, TransitTimeDays: intPtr(10), ReliabilityScore: floatPtr(0.7)},
		{ID: "best", TotalAmount: 1000, TransitTimeDays: intPtr(10), ReliabilityScore: floatPtr(0.7)},
	}
	out := ranking.Rank(opts, nil)
	if out[0].ID != "best" {
		t.Fatalf("expected best first, got %s", out[0].ID)
	}
	if out[0].RankScore != 100 {
		t.Fatalf("best score = %d, want 100", out[0].RankScore)
	}
	if out[0].RecommendationReason != "Best Price & Fastest Route & High Reliability" {
		t.Fatalf("reason = %q", out[0].RecommendationReason)
	}
}

func TestMissingTransitPenalized(t *testing.T) {
	opts := []domain.RateOption{
		{ID: "timed", TotalAmount: 1000, TransitTimeDays: intPtr(15)},
		{ID: "untimed", TotalAmount: 1000},
	}
	out := ranking.Rank(opts, nil)
	if out[0].ID != "timed" {
		t.Fatalf("expected timed option ranked first, got %s", out[0].ID)
	}
	if out[1].RankDetails["transit_time"] != 0 {
		t.Fatalf("untimed transit sub-score = %d, want 0", out[1].RankDetails["transit_time"])
	}
}

func TestMissingReliabilityNeutral(t *testing.T) {
	opts := []domain.RateOption{
		{ID: "reliable", TotalAmount: 1000, TransitTimeDays: intPtr(10), ReliabilityScore: floatPtr(0.9)},
		{ID: "unknown", TotalAmount: 1000, TransitTimeDays: intPtr(10)},
		{ID: "shaky", TotalAmount: 1000, TransitTimeDays: intPtr(10), ReliabilityScore: floatPtr(0.1)},
	}
	out := ranking.Rank(opts, nil)
	if out[0].ID != "reliable" || out[1].ID != "unknown" || out[2].ID != "shaky" {
		t.Fatalf("order = %s,%s,%s", out[0].ID, out[1].ID, out[2].ID)
	}
	if out[1].RankDetails["reliability"] != 50 {
		t.Fatalf("unknown reliability sub-score = %d, want 50", out[1].RankDetails["reliability"])
	}
}

func TestCustomCriteria(t *testing.T) {
	opts := []domain.RateOption{
		{ID: "cheap", TotalAmount: 500, TransitTimeDays: intPtr(40)},
		{ID: "fast", TotalAmount: 2000, TransitTimeDays: intPtr(5)},
	}
	timeOnly := &domain.RankingCriteria{Cost: 0, TransitTime: 1, Reliability: 0}
	out := ranking.Rank(opts, timeOnly)
	if out[0].ID != "fast" {
		t.Fatalf("expected fast option first under time-only weights, got %s", out[0].ID)
	}
	if out[0].RankScore != 100 || out[1].RankScore != 0 {
		t.Fatalf("scores = %d,%d", out[0].RankScore, out[1].RankScore)
	}
}

func TestSubScoreRounding(t *testing.T) {
	opts := []domain.RateOption{
		{ID: "a", TotalAmount: 100, TransitTimeDays: intPtr(10)},
		{ID: "b", TotalAmount: 200, TransitTimeDays: intPtr(20)},
		{ID: "c", TotalAmount: 400, TransitTimeDays: intPtr(40)},
	}
	out := ranking.Rank(opts, nil)
	var mid domain.RankedOption
	for _, o := range out {
		if o.ID == "b" {
			mid = o
		}
	}
	// (400-200)/(400-100) = 2/3 -> 67 after rounding.
	if mid.RankDetails["cost"] != 67 {
		t.Fatalf("mid cost sub-score = %d, want 67", mid.RankDetails["cost"])
	}
}

func TestExactlyOneRecommended(t *testing.T) {
	opts := []domain.RateOption{
		{ID: "a", TotalAmount: 900},
		{ID: "b", TotalAmount: 1100},
		{ID: "c", TotalAmount: 1000},
	}
	out := ranking.Rank(opts, nil)
	count := 0
	for _, o := range out {
		if o.IsRecommended {
			count++
		}
	}
	if count != 1 {
		t.Fatalf("recommended count = %d, want 1", count)
	}
}

func TestOverallBestValueFallback(t *testing.T) {
	// Winner on aggregate without dominating any single sub-score.
	opts := []domain.RateOption{
		{ID: "a", TotalAmount: 1000, TransitTimeDays: intPtr(20), ReliabilityScore: floatPtr(0.9)},
		{ID: "b", TotalAmount: 1400, TransitTimeDays: intPtr(10), ReliabilityScore: floatPtr(0.5)},
		{ID: "c", TotalAmount: 1100, TransitTimeDays: intPtr(12), ReliabilityScore: floatPtr(0.8)},
	}
	out := ranking.Rank(opts, nil)
	top := out[0]
	if top.ID != "c" {
		t.Fatalf("expected c on top, got %s (score %d)", top.ID, top.RankScore)
	}
	for name, sub := range top.RankDetails {
		if sub >= 90 {
			t.Fatalf("sub-score %s = %d breaks the fixture", name, sub)
		}
	}
	if top.RecommendationReason != "Overall Best Value" {
		t.Fatalf("reason = %q, want fallback", top.RecommendationReason)
	}
}
