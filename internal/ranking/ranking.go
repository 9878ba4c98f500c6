// Package ranking scores competing rate options for comparability.
package ranking

import (
	"math"
	"sort"
	"strings"

	"freightline/internal/domain"
)

const (
	// Missing transit times rank behind every real offer.
	missingTransitDays = 999
	// Missing reliability is treated as neutral.
	neutralReliability = 0.5
)

// DefaultCriteria weights cost highest, per the sales team's house rules.
func DefaultCriteria() domain.RankingCriteria {
	return domain.RankingCriteria{Cost: 0.4, TransitTime: 0.3, Reliability: 0.3}
}

// Rank scores and sorts options. The returned slice is ordered by descending
// rank score; ties keep their relative input order. Exactly one option in a
// non-empty result is marked recommended. Rank never fails: missing metrics
// degrade to documented defaults.
func Rank(options []domain.RateOption, criteria *domain.RankingCriteria) []domain.RankedOption {
	if len(options) == 0 {
		return []domain.RankedOption{}
	}
	crit := DefaultCriteria()
	if criteria != nil {
		crit = *criteria
	}

	if len(options) == 1 {
		return []domain.RankedOption{{
			RateOption: options[0],
			RankScore:  100,
			RankDetails: map[string]int{
				"cost":         100,
				"transit_time": 100,
				"reliability":  100,
			},
			IsRecommended:        true,
			RecommendationReason: "Only available option",
		}}
	}

	costs := make([]float64, len(options))
	times := make([]float64, len(options))
	rels := make([]float64, len(options))
	for i, o := range options {
		costs[i] = o.TotalAmount
		times[i] = missingTransitDays
		if o.TransitTimeDays != nil {
			times[i] = float64(*o.TransitTimeDays)
		}
		rels[i] = neutralReliability
		if o.ReliabilityScore != nil {
			rels[i] = *o.ReliabilityScore
		}
	}
	minCost, maxCost := minMax(costs)
	minTime, maxTime := minMax(times)
	minRel, maxRel := minMax(rels)

	ranked := make([]domain.RankedOption, len(options))
	for i, o := range options {
		costScore := inverted(costs[i], minCost, maxCost)
		timeScore := inverted(times[i], minTime, maxTime)
		relScore := direct(rels[i], minRel, maxRel)
		total := costScore*crit.Cost + timeScore*crit.TransitTime + relScore*crit.Reliability
		ranked[i] = domain.RankedOption{
			RateOption: o,
			RankScore:  int(math.Round(100 * total)),
			RankDetails: map[string]int{
				"cost":         int(math.Round(100 * costScore)),
				"transit_time": int(math.Round(100 * timeScore)),
				"reliability":  int(math.Round(100 * relScore)),
			},
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].RankScore > ranked[j].RankScore
	})

	top := &ranked[0]
	top.IsRecommended = true
	top.RecommendationReason = recommendationReason(top.RankDetails)
	return ranked
}

func minMax(vs []float64) (min, max float64) {
	min, max = vs[0], vs[0]
	for _, v := range vs[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// inverted maps a metric where lower is better onto [0,1].
func inverted(v, min, max float64) float64 {
	if max == min {
		return 1
	}
	return 1 - (v-min)/(max-min)
}

// direct maps a metric where higher is better onto [0,1].
func direct(v, min, max float64) float64 {
	if max == min {
		return 1
	}
	return (v - min) / (max - min)
}

func recommendationReason(details map[string]int) string {
	var reasons []string
	if details["cost"] >= 90 {
		reasons = append(reasons, "Best Price")
	}
	if details["transit_time"] >= 90 {
		reasons = append(reasons, "Fastest Route")
	}
	if details["reliability"] >= 90 {
		reasons = append(reasons, "High Reliability")
	}
	if len(reasons) == 0 {
		return "Overall Best Value"
	}
	return strings.Join(reasons, " & ")
}
