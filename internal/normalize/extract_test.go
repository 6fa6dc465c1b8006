package normalize

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractBrand(t *testing.T) {
	tests := []struct {
		name string
		text string
		want string
		ok   bool
	}{
		{"simple", "Found this Coach purse", "Coach", true},
		{"case insensitive", "VINTAGE GUCCI loafers", "Gucci", true},
		{"accent folded", "Hermès scarf at the bins", "Hermes", true},
		{"alias", "North Face puffer for $8", "The North Face", true},
		{"typographic apostrophe", "Levi’s 501 jeans", "Levi's", true},
		{"order wins", "Kate Spade bag, not Coach", "Kate Spade", true},
		{"first in list wins over position", "coach and chanel", "Chanel", true},
		{"no brand", "Cute wicker basket from the thrift", "", false},
		{"empty", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractBrand(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractModel(t *testing.T) {
	tests := []struct {
		name  string
		text  string
		brand string
		want  string
		ok    bool
	}{
		{"model hash", "Seiko watch model #7s26-0020", "Seiko", "7S26-0020", true},
		{"style number", "style no. 5080 in black", "", "5080", true},
		{"serial", "serial # ab123", "", "AB123", true},
		{"item", "Item #4421", "", "4421", true},
		{"word is not a code", "the model number is unknown", "", "", false},
		{"coach creed", "Coach creed says No. H1234-F12345", "Coach", "F12345", true},
		{"coach pattern ignored for other brands", "Gucci F12345", "Gucci", "", false},
		{"nothing", "just a nice bag", "", "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := ExtractModel(tt.text, tt.brand)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestExtractPrice(t *testing.T) {
	tests := []struct {
		text string
		want int64
		ok   bool
	}{
		{"Found this Coach purse, paid $15 at Goodwill", 15, true},
		{"paid only $4.50 for it", 5, true},
		{"Bought it for $1,200 at an estate sale", 1200, true},
		{"cost me $ 7", 7, true},
		{"got these for just $3.99", 4, true},
		{"spent $20 on the lot", 20, true},
		{"picked it up for $2.49", 2, true},
		{"worth $500 easily", 0, false},
		{"paid nothing", 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			got, ok := ExtractPrice(tt.text)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestClassifyCategory(t *testing.T) {
	tests := []struct {
		text  string
		brand string
		want  string
	}{
		{"Found this Coach purse, paid $15", "Coach", "handbag"},
		{"Dr Martens boots in great shape", "Dr. Martens", "footwear"},
		{"wool coat", "", "outerwear"},
		{"two dresses and a skirt", "", "clothing"},
		{"leather belt", "", "accessories"},
		{"sterling silver earrings", "", "jewelry"},
		{"Pyrex butterprint", "Pyrex", "home"},
		{"Sony Walkman that works", "Sony", "electronics"},
		{"Star Wars figurine lot", "", "collectibles"},
		{"Louis Vuitton find", "Louis Vuitton", "handbag"},
		{"mystery object", "", "other"},
		{"laptop stand", "", "electronics"},
		{"cardigan", "", "clothing"},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyCategory(tt.text, tt.brand))
		})
	}
}
