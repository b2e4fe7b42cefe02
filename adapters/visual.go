package adapters

import (
	"regexp"
	"sort"
	"strings"

	"pricewatch/internal/price"
	"pricewatch/internal/types"
	"pricewatch/utils"

	"github.com/PuerkitoBio/goquery"
)

const (
	maxCandidateLength = 40
	boldWeightFactor   = 1.5
)

var (
	// currency symbol or code adjacent to a number
	currencyPattern = regexp.MustCompile(`(?i)(?:[€$£]|\b(?:eur|usd|gbp|chf)\b)\s*\d|\d[\d.,\s\-–—]*(?:[€$£]|\b(?:eur|usd|gbp|chf)\b)`)

	// bare "12,99", "12.99", "12,-" or "12,–" without any currency marker
	loosePricePattern = regexp.MustCompile(`^\s*\d{1,6}(?:[.,]\d{2}|[.,]?\s?[\-–—]{1,2})\s*\*?\s*$`)

	// reference prices, unit prices and shipping costs
	qualifierPattern = regexp.MustCompile(`(?i)\b(?:statt|uvp|rrp|msrp|was|vorher|zuvor|ursprünglich|unverbindliche|streichpreis|list price|regular|reg\.?|grundpreis|versand|shipping|zzgl)\b|/\s*(?:\d+\s*)?(?:kg|g|l|ml|m|stk|st)\b|\b(?:pro|je|per)\s+\d*\s*(?:kg|g|l|ml|m|stück|stk)\b`)

	// class or id hints for crossed-out or per-unit price elements
	referenceClassPattern = regexp.MustCompile(`(?i)strike|crossed|old-?price|was-?price|list-?price|rrp|uvp|previous|base-?price|basisprice|unit-?price|price--before`)
)

// inline tags a price may be split into, e.g. "4<sup>69</sup>"
var inlineTags = map[string]bool{
	"span": true, "sup": true, "sub": true, "small": true, "b": true,
	"strong": true, "em": true, "i": true,
}

var skippedTags = map[string]bool{
	"script": true, "style": true, "noscript": true, "template": true,
	"option": true, "select": true, "title": true, "head": true,
}

// PriceCandidate is a price-looking element found by the visual scan
type PriceCandidate struct {
	Text  string
	Score float64
	Style types.Style
}

// ScanPriceCandidates enumerates short leaf-ish elements whose text matches
// pattern, scored by rendered font size and weight. Crossed-out, hidden and
// qualified ("statt", "UVP", unit prices) elements are excluded. The result is
// sorted by descending score; ties keep document order.
func ScanPriceCandidates(doc types.Document, pattern *regexp.Regexp) []PriceCandidate {
	var candidates []PriceCandidate

	doc.Find("body *").Each(func(i int, el *goquery.Selection) {
		if skippedTags[goquery.NodeName(el)] || !isLeafish(el) || isHidden(el) {
			return
		}
		if el.Closest("header, footer, nav, aside").Length() > 0 {
			return
		}

		text := utils.SplitText(el)
		if text == "" || len(text) > maxCandidateLength || !pattern.MatchString(text) {
			return
		}
		if qualifierPattern.MatchString(text) || hasReferenceClass(el) {
			return
		}
		if price.Normalize(text) <= 0 {
			return
		}

		style := doc.Style(el)
		if style.Strikethrough {
			return
		}

		score := style.FontSize
		if style.Bold() {
			score *= boldWeightFactor
		}
		candidates = append(candidates, PriceCandidate{Text: text, Score: score, Style: style})
	})

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Score > candidates[j].Score
	})
	return candidates
}

// isLeafish accepts elements without children or with only a few inline
// children that are themselves leaves
func isLeafish(el *goquery.Selection) bool {
	children := el.Children()
	if children.Length() == 0 {
		return true
	}
	if children.Length() > 3 {
		return false
	}
	ok := true
	children.EachWithBreak(func(i int, c *goquery.Selection) bool {
		ok = inlineTags[goquery.NodeName(c)] && c.Children().Length() == 0
		return ok
	})
	return ok
}

func isHidden(el *goquery.Selection) bool {
	if _, ok := el.Attr("hidden"); ok {
		return true
	}
	style, _ := el.Attr("style")
	style = strings.ReplaceAll(strings.ToLower(style), " ", "")
	return strings.Contains(style, "display:none") || strings.Contains(style, "visibility:hidden")
}

func hasReferenceClass(el *goquery.Selection) bool {
	related := []*goquery.Selection{el, el.Parent()}
	el.Children().Each(func(i int, c *goquery.Selection) {
		related = append(related, c)
	})

	for _, s := range related {
		class, _ := s.Attr("class")
		id, _ := s.Attr("id")
		if referenceClassPattern.MatchString(class + " " + id) {
			return true
		}
		if _, ok := s.Attr("data-a-strike"); ok {
			return true
		}
	}
	return false
}

// VisualPriceStrategy picks the most prominent currency-bearing element
func VisualPriceStrategy() Strategy[string] {
	return Strategy[string]{
		Name: "visual",
		Run: func(doc types.Document) (string, bool, error) {
			candidates := CurrencyCandidates(doc)
			if len(candidates) == 0 {
				return "", false, nil
			}
			return candidates[0].Text, true, nil
		},
	}
}

// AggressivePriceStrategy accepts bare "NN,NN" and "NN,–" shapes. It only runs
// when every other price strategy came up empty.
func AggressivePriceStrategy() Strategy[string] {
	return Strategy[string]{
		Name: "aggressive",
		Run: func(doc types.Document) (string, bool, error) {
			candidates := LooseCandidates(doc)
			if len(candidates) == 0 {
				return "", false, nil
			}
			return candidates[0].Text, true, nil
		},
	}
}

// CurrencyCandidates runs the visual scan with the currency pattern
func CurrencyCandidates(doc types.Document) []PriceCandidate {
	return ScanPriceCandidates(doc, currencyPattern)
}

// LooseCandidates runs the visual scan with the bare-number pattern
func LooseCandidates(doc types.Document) []PriceCandidate {
	return ScanPriceCandidates(doc, loosePricePattern)
}
