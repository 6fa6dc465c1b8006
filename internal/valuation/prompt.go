package valuation

import (
	"fmt"
	"strings"

	"thriftscan/valuator/internal/models"
)

const systemPrompt = `You are an experienced reseller who prices secondhand items found at thrift stores.
Reply with a single JSON object and nothing else.`

const maxDescriptionRunes = 1500

// BuildPrompt embeds the known candidate fields and describes the JSON
// object expected back. Unknown fields are spelled out as unknown so the
// model does not invent them.
func BuildPrompt(c *models.Candidate) string {
	var b strings.Builder

	b.WriteString("Estimate the resale value of this secondhand item.\n\n")
	fmt.Fprintf(&b, "Title: %s\n", c.Title)
	fmt.Fprintf(&b, "Brand: %s\n", orUnknown(c.Brand.String, c.Brand.Valid))
	fmt.Fprintf(&b, "Model: %s\n", orUnknown(c.Model.String, c.Model.Valid))
	fmt.Fprintf(&b, "Category: %s\n", orUnknown(c.Category, c.Category != ""))
	if c.BuyPrice.Valid {
		fmt.Fprintf(&b, "Thrift price paid: $%d\n", c.BuyPrice.Int64)
	} else {
		b.WriteString("Thrift price paid: unknown\n")
	}
	if desc := strings.TrimSpace(c.Description); desc != "" {
		fmt.Fprintf(&b, "Description: %s\n", truncateRunes(desc, maxDescriptionRunes))
	}
	if c.HasImage() {
		b.WriteString("A photo of the item is attached.\n")
	}

	b.WriteString(`
Respond with JSON using exactly these fields:
{
  "value_low": number (USD, low end of a realistic resale range),
  "value_high": number (USD, high end),
  "confidence": number between 0 and 1,
  "recommended_platform": string (best marketplace to list on),
  "recommended_live_platform": string (best live-selling platform),
  "condition_guess": string,
  "market_insights": string (one or two sentences),
  "selling_tips": array of short strings
}`)
	return b.String()
}

func orUnknown(s string, ok bool) string {
	if !ok || s == "" {
		return "unknown"
	}
	return s
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
