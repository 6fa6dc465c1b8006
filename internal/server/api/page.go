package api

import (
	"fmt"
	"html/template"
	"net/http"

	"github.com/rs/zerolog/hlog"

	"thriftscan/valuator/internal/models"
)

var pageTemplate = template.Must(template.New("page").Funcs(template.FuncMap{
	"money": func(f *float64) string {
		if f == nil {
			return "?"
		}
		return fmt.Sprintf("$%.0f", *f)
	},
	"percent": func(f *float64) string {
		if f == nil {
			return "n/a"
		}
		return fmt.Sprintf("%.0f%%", *f*100)
	},
}).Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
{{- if .NoIndex}}
<meta name="robots" content="noindex">
{{- end}}
<title>{{.Title}} | What is it worth?</title>
<link rel="canonical" href="{{.URL}}">
</head>
<body>
<main>
<h1>{{.Title}}</h1>
{{- if .ImageURL}}
<img src="{{.ImageURL}}" alt="{{.Title}}" style="max-width:100%">
{{- end}}
<p class="range">Estimated resale value: <strong>{{money .ValueLow}} - {{money .ValueHigh}}</strong></p>
<p class="confidence">Confidence: {{percent .Confidence}}</p>
<dl>
{{- if .Brand}}<dt>Brand</dt><dd>{{.Brand}}</dd>{{end}}
{{- if .Model}}<dt>Model</dt><dd>{{.Model}}</dd>{{end}}
{{- if .CategoryName}}<dt>Category</dt><dd>{{.CategoryName}}</dd>{{end}}
{{- if .BuyPrice}}<dt>Thrift price</dt><dd>${{.BuyPrice}}</dd>{{end}}
{{- if .RecommendedPlatform}}<dt>Best place to sell</dt><dd>{{.RecommendedPlatform}}</dd>{{end}}
{{- if .RecommendedLivePlatform}}<dt>Live selling</dt><dd>{{.RecommendedLivePlatform}}</dd>{{end}}
{{- if .ConditionGuess}}<dt>Condition</dt><dd>{{.ConditionGuess}}</dd>{{end}}
</dl>
{{- if .MarketInsights}}
<p class="insights">{{.MarketInsights}}</p>
{{- end}}
{{- if .SellingTips}}
<ul class="tips">
{{- range .SellingTips}}
<li>{{.}}</li>
{{- end}}
</ul>
{{- end}}
<p class="source"><a href="{{.SourceURL}}" rel="nofollow">Original post in r/{{.Community}}</a></p>
</main>
</body>
</html>
`))

type pageData struct {
	ValuationResponse
	Brand                   string
	Model                   string
	BuyPrice                string
	RecommendedPlatform     string
	RecommendedLivePlatform string
	ConditionGuess          string
	MarketInsights          string
	ImageURL                string
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func newPageData(resp ValuationResponse) pageData {
	d := pageData{
		ValuationResponse:       resp,
		Brand:                   deref(resp.Brand),
		Model:                   deref(resp.Model),
		RecommendedPlatform:     deref(resp.RecommendedPlatform),
		RecommendedLivePlatform: deref(resp.RecommendedLivePlatform),
		ConditionGuess:          deref(resp.ConditionGuess),
		MarketInsights:          deref(resp.MarketInsights),
		ImageURL:                deref(resp.ImageURL),
	}
	if resp.BuyPrice != nil {
		d.BuyPrice = fmt.Sprint(*resp.BuyPrice)
	}
	return d
}

// Page renders the public HTML page of a valuation and counts the view.
func (h *ValuationsHandler) Page(w http.ResponseWriter, r *http.Request) {
	log := hlog.FromRequest(r)

	v, ok := h.lookupPublic(w, r, false)
	if !ok {
		return
	}

	if err := h.store.RecordEvent(r.Context(), v.ID, models.EventView, "page", ""); err != nil {
		log.Warn().Err(err).Int64("id", v.ID).Msg("Failed to count view")
	} else {
		v.ViewCount++
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if v.NoIndex {
		w.Header().Set("X-Robots-Tag", "noindex")
	}
	if err := pageTemplate.Execute(w, newPageData(h.response(v, h.categoryNames(r)))); err != nil {
		log.Error().Err(err).Msg("Failed to render page")
	}
}
