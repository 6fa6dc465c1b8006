package valuation

import (
	"thriftscan/valuator/internal/models"
)

// Range is a fallback price range in USD.
type Range struct {
	Low  float64
	High float64
}

// FallbackConfidence is used for every table-based estimate.
const FallbackConfidence = 0.4

// DefaultRanges mirrors the seeded valuation_categories table and is used
// until ranges are loaded from the database.
var DefaultRanges = map[string]Range{
	"handbag":      {20, 150},
	"footwear":     {15, 80},
	"outerwear":    {20, 120},
	"clothing":     {5, 40},
	"accessories":  {10, 60},
	"jewelry":      {15, 100},
	"home":         {10, 60},
	"electronics":  {15, 100},
	"collectibles": {10, 75},
}

// DefaultRange applies to any category not in the table.
var DefaultRange = Range{5, 50}

var brandMultipliers = map[string]float64{
	"Chanel":        5,
	"Hermes":        5,
	"Louis Vuitton": 5,
	"Gucci":         5,
	"Coach":         2,
	"Michael Kors":  2,
	"Kate Spade":    2,
}

// RangesFromCategories builds a range table from database rows. Rows for
// "other" become the default range.
func RangesFromCategories(cats []models.Category) (map[string]Range, Range) {
	ranges := make(map[string]Range, len(cats))
	def := DefaultRange
	for _, c := range cats {
		r := Range{c.FallbackLow, c.FallbackHigh}
		if c.Slug == models.CategoryOther {
			def = r
			continue
		}
		ranges[c.Slug] = r
	}
	return ranges, def
}

// TableEstimate is the deterministic estimate used when the completion API
// cannot be reached. It depends only on category and brand.
func TableEstimate(ranges map[string]Range, def Range, category, brand string) models.Estimate {
	r, ok := ranges[category]
	if !ok {
		r = def
	}
	mult := 1.0
	if m, ok := brandMultipliers[brand]; ok {
		mult = m
	}
	return models.Estimate{
		ValueLow:            r.Low * mult,
		ValueHigh:           r.High * mult,
		Confidence:          FallbackConfidence,
		RecommendedPlatform: "eBay",
		MarketInsights:      "Estimated from typical resale ranges for this category.",
		SellingTips:         []string{"Check sold listings for comparable items before pricing."},
	}
}

// ParseFailureEstimate is returned when the completion reply cannot be
// parsed.
func ParseFailureEstimate() models.Estimate {
	return models.Estimate{
		ValueLow:                10,
		ValueHigh:               50,
		Confidence:              0.3,
		RecommendedPlatform:     "eBay",
		RecommendedLivePlatform: "Whatnot",
		ConditionGuess:          "Unknown",
		MarketInsights:          "Unable to analyze this item automatically.",
		SellingTips:             []string{"Research sold listings on eBay to price this item."},
	}
}
