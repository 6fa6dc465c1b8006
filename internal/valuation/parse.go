package valuation

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"

	"thriftscan/valuator/internal/models"
)

// ExtractJSONObject returns the first balanced {...} substring of text.
// Braces inside JSON string literals are ignored.
func ExtractJSONObject(text string) (string, bool) {
	start := strings.IndexByte(text, '{')
	for start >= 0 {
		depth := 0
		inString := false
		escaped := false
		for i := start; i < len(text); i++ {
			ch := text[i]
			if inString {
				switch {
				case escaped:
					escaped = false
				case ch == '\\':
					escaped = true
				case ch == '"':
					inString = false
				}
				continue
			}
			switch ch {
			case '"':
				inString = true
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return text[start : i+1], true
				}
			}
		}
		// Unbalanced from this brace; try the next one.
		next := strings.IndexByte(text[start+1:], '{')
		if next < 0 {
			break
		}
		start += next + 1
	}
	return "", false
}

// flexNumber accepts 42, 42.5, "42", "$1,200" and null. NaN and infinities
// are rejected.
type flexNumber struct {
	value float64
	set   bool
}

func (n *flexNumber) UnmarshalJSON(data []byte) error {
	s := strings.TrimSpace(string(data))
	if s == "null" {
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return err
		}
		s = strings.NewReplacer("$", "", ",", "", " ", "").Replace(str)
		if s == "" {
			return nil
		}
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return eris.Wrapf(err, "not a number: %s", string(data))
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return eris.Errorf("not a finite number: %s", string(data))
	}
	n.value, n.set = f, true
	return nil
}

// flexStrings accepts either a JSON array of strings or a single string.
type flexStrings []string

func (s *flexStrings) UnmarshalJSON(data []byte) error {
	var list []string
	if err := json.Unmarshal(data, &list); err == nil {
		*s = list
		return nil
	}
	var one string
	if err := json.Unmarshal(data, &one); err != nil {
		return err
	}
	if one = strings.TrimSpace(one); one != "" {
		*s = []string{one}
	}
	return nil
}

type rawEstimate struct {
	ValueLow                flexNumber  `json:"value_low"`
	ValueHigh               flexNumber  `json:"value_high"`
	Confidence              flexNumber  `json:"confidence"`
	RecommendedPlatform     string      `json:"recommended_platform"`
	RecommendedLivePlatform string      `json:"recommended_live_platform"`
	ConditionGuess          string      `json:"condition_guess"`
	MarketInsights          string      `json:"market_insights"`
	SellingTips             flexStrings `json:"selling_tips"`
}

// ParseEstimate pulls the estimate object out of a completion reply. The
// three numeric fields are required; everything else is optional.
func ParseEstimate(text string) (models.Estimate, error) {
	obj, ok := ExtractJSONObject(text)
	if !ok {
		return models.Estimate{}, eris.New("no JSON object in reply")
	}

	var raw rawEstimate
	if err := json.Unmarshal([]byte(obj), &raw); err != nil {
		return models.Estimate{}, eris.Wrap(err, "decode estimate")
	}
	if !raw.ValueLow.set || !raw.ValueHigh.set || !raw.Confidence.set {
		return models.Estimate{}, eris.New("estimate is missing value_low, value_high or confidence")
	}

	est := models.Estimate{
		ValueLow:                raw.ValueLow.value,
		ValueHigh:               raw.ValueHigh.value,
		Confidence:              raw.Confidence.value,
		RecommendedPlatform:     strings.TrimSpace(raw.RecommendedPlatform),
		RecommendedLivePlatform: strings.TrimSpace(raw.RecommendedLivePlatform),
		ConditionGuess:          strings.TrimSpace(raw.ConditionGuess),
		MarketInsights:          strings.TrimSpace(raw.MarketInsights),
		SellingTips:             []string(raw.SellingTips),
	}
	if est.ValueLow > est.ValueHigh {
		est.ValueLow, est.ValueHigh = est.ValueHigh, est.ValueLow
	}
	if est.SellingTips == nil {
		est.SellingTips = []string{}
	}
	return est, nil
}
