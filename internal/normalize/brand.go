package normalize

import "strings"

type brandRule struct {
	name    string
	aliases []string
}

// brandRules is scanned in order and the first hit wins, so brands whose
// aliases contain another brand's alias must come first.
var brandRules = []brandRule{
	{"Louis Vuitton", []string{"louis vuitton", "vuitton"}},
	{"Chanel", []string{"chanel"}},
	{"Hermes", []string{"hermes"}},
	{"Gucci", []string{"gucci"}},
	{"Prada", []string{"prada"}},
	{"Dior", []string{"dior"}},
	{"Fendi", []string{"fendi"}},
	{"Balenciaga", []string{"balenciaga"}},
	{"Burberry", []string{"burberry"}},
	{"Saint Laurent", []string{"saint laurent", "yves saint"}},
	{"Kate Spade", []string{"kate spade"}},
	{"Michael Kors", []string{"michael kors"}},
	{"Coach", []string{"coach"}},
	{"Dooney & Bourke", []string{"dooney"}},
	{"Tory Burch", []string{"tory burch"}},
	{"Marc Jacobs", []string{"marc jacobs"}},
	{"Patagonia", []string{"patagonia"}},
	{"The North Face", []string{"north face"}},
	{"Arc'teryx", []string{"arc'teryx", "arcteryx"}},
	{"Canada Goose", []string{"canada goose"}},
	{"Barbour", []string{"barbour"}},
	{"Pendleton", []string{"pendleton"}},
	{"Carhartt", []string{"carhartt"}},
	{"Ralph Lauren", []string{"ralph lauren", "polo ralph"}},
	{"Levi's", []string{"levi's", "levis"}},
	{"Dr. Martens", []string{"dr. martens", "dr martens", "doc martens"}},
	{"Birkenstock", []string{"birkenstock"}},
	{"Red Wing", []string{"red wing"}},
	{"New Balance", []string{"new balance"}},
	{"Nike", []string{"nike"}},
	{"Adidas", []string{"adidas"}},
	{"Tiffany & Co.", []string{"tiffany"}},
	{"Rolex", []string{"rolex"}},
	{"Seiko", []string{"seiko"}},
	{"Pandora", []string{"pandora"}},
	{"Le Creuset", []string{"le creuset"}},
	{"Pyrex", []string{"pyrex"}},
	{"Fiestaware", []string{"fiestaware", "fiesta ware"}},
	{"Corningware", []string{"corningware", "corning ware"}},
	{"Dansk", []string{"dansk"}},
	{"Nintendo", []string{"nintendo"}},
	{"Sony", []string{"sony"}},
	{"Bose", []string{"bose"}},
}

// ExtractBrand returns the first known brand mentioned in text.
func ExtractBrand(text string) (string, bool) {
	folded := fold(text)
	for _, rule := range brandRules {
		for _, alias := range rule.aliases {
			if strings.Contains(folded, alias) {
				return rule.name, true
			}
		}
	}
	return "", false
}

// SameBrand reports whether two brand names refer to the same brand after
// case and accent folding.
func SameBrand(a, b string) bool {
	return fold(strings.TrimSpace(a)) == fold(strings.TrimSpace(b))
}
