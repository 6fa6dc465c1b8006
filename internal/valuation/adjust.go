package valuation

import (
	"math"

	"thriftscan/valuator/internal/models"
)

const (
	noBrandFactor       = 0.8
	noImageFactor       = 0.7
	otherCategoryFactor = 0.9
)

// Clamp limits confidence to [0, 1]. NaN counts as no confidence.
func Clamp(confidence float64) float64 {
	switch {
	case math.IsNaN(confidence), confidence < 0:
		return 0
	case confidence > 1:
		return 1
	}
	return confidence
}

// AdjustConfidence clamps raw and applies the missing-signal discounts.
// Each discount applies independently, so they compound.
func AdjustConfidence(raw float64, c *models.Candidate) float64 {
	conf := Clamp(raw)
	if !c.Brand.Valid || c.Brand.String == "" {
		conf *= noBrandFactor
	}
	if !c.HasImage() {
		conf *= noImageFactor
	}
	if c.Category == models.CategoryOther {
		conf *= otherCategoryFactor
	}
	return conf
}
