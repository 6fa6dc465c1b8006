package normalize

import (
	"regexp"
	"strings"

	"thriftscan/valuator/internal/models"
)

type categoryRule struct {
	category string
	pattern  *regexp.Regexp
}

func keywords(words ...string) *regexp.Regexp {
	quoted := make([]string, len(words))
	for i, w := range words {
		quoted[i] = regexp.QuoteMeta(w)
	}
	return regexp.MustCompile(`(?i)\b(?:` + strings.Join(quoted, "|") + `)(?:e?s)?\b`)
}

var categoryRules = []categoryRule{
	{"handbag", keywords("purse", "handbag", "bag", "tote", "clutch", "crossbody", "satchel", "backpack", "hobo")},
	{"footwear", keywords("shoe", "boot", "sneaker", "heel", "loafer", "sandal", "pump", "clog", "moccasin")},
	{"outerwear", keywords("jacket", "coat", "parka", "blazer", "vest", "fleece", "anorak", "trench", "windbreaker")},
	{"clothing", keywords("shirt", "dress", "jeans", "sweater", "pants", "skirt", "blouse", "hoodie", "cardigan", "tee", "shorts", "jersey")},
	{"accessories", keywords("belt", "scarf", "hat", "sunglasses", "wallet", "glove", "necktie", "keychain")},
	{"jewelry", keywords("ring", "necklace", "bracelet", "earring", "brooch", "pendant", "watch")},
	{"home", keywords("pyrex", "vase", "lamp", "dish", "bowl", "mug", "plate", "teapot", "chair", "table", "rug", "quilt", "dutch oven", "casserole", "glassware")},
	{"electronics", keywords("camera", "console", "speaker", "radio", "phone", "laptop", "ipod", "walkman", "turntable", "stereo", "headphone")},
	{"collectibles", keywords("figurine", "vinyl", "record", "comic", "coin", "stamp", "trading card", "toy", "lego", "doll", "poster")},
}

// handbagBrands default to the handbag category when no keyword matched.
var handbagBrands = map[string]bool{
	"Louis Vuitton": true,
	"Chanel":        true,
	"Coach":         true,
	"Michael Kors":  true,
}

// ClassifyCategory returns the first category whose keywords occur in text,
// falling back to a brand default and finally to "other".
func ClassifyCategory(text, brand string) string {
	for _, rule := range categoryRules {
		if rule.pattern.MatchString(text) {
			return rule.category
		}
	}
	if handbagBrands[brand] {
		return "handbag"
	}
	return models.CategoryOther
}
