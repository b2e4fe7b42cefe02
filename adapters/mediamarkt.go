package adapters

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"pricewatch/internal/price"
	"pricewatch/internal/types"
)

const (
	preloadedStateMarker = "__PRELOADED_STATE__"
	maxStateDepth        = 40
)

// onlineStatus values MediaMarkt and Saturn use for web availability
var mediaMarktOnlineStatus = map[string]bool{
	"online_available":     true,
	"available":            true,
	"in_stock":             true,
	"online_not_available": false,
	"not_available":        false,
	"online_sold_out":      false,
	"sold_out":             false,
	"permanently_sold_out": false,
	"temporarily_sold_out": false,
	"online_unavailable":   false,
}

// MediaMarktAdapter handles extraction for mediamarkt.* and saturn.* pages
type MediaMarktAdapter struct {
	*BaseAdapter
}

// NewMediaMarktAdapter creates a new MediaMarkt/Saturn adapter
func NewMediaMarktAdapter(logger types.Logger) *MediaMarktAdapter {
	m := &MediaMarktAdapter{BaseAdapter: NewBaseAdapter("mediamarkt", logger)}

	m.recipe = Recipe{
		Price: m.PriceStrategies(
			[]Strategy[string]{{Name: "mediamarkt-state", Run: m.statePrice}},
			[]Strategy[string]{
				SplitPriceStrategy("mediamarkt-branded",
					`[data-test="mms-product-price"] [data-test="branded-price-whole-value"]`,
					`[data-test="mms-product-price"] [data-test="branded-price-decimal-value"]`),
				SplitPriceStrategy("mediamarkt-branded", `[data-test="branded-price-whole-value"]`, `[data-test="branded-price-decimal-value"]`),
			},
		),
		Title: m.TitleStrategies(nil, []Strategy[string]{
			TextStrategy("mediamarkt-title", `h1[data-test="mms-select-details-header"]`, `[data-test="product-title"]`),
		}),
		Image: m.ImageStrategies(nil, []Strategy[string]{
			AttrStrategy("mediamarkt-image", `[data-test="mms-media-gallery"] img`, "src"),
		}),
		Stock: []Strategy[bool]{{Name: "mediamarkt-state", Run: m.stateStock}},
		Variants: m.VariantStrategies(nil, []VariantSpec{
			{Name: "Color", Type: types.VariantColor, Selector: `[data-test="pdp-variant-selection"] a`},
			{Name: "Color", Type: types.VariantColor, Selector: `[data-test="pdp-variant-selection"] a img`, FromAlt: true},
		}),
		CTA: []string{
			`button[data-test="pdp-add-to-cart-button"]`,
			"#pdp-add-to-cart-button",
			`button[data-test="a2c-Button"]`,
		},
		Negative: m.NegativeKeywords(
			"online ausverkauft",
			"dieser artikel ist aktuell nicht verfügbar",
			"leider nicht mehr online verfügbar",
			"online nicht verfügbar",
		),
		WaitFor: []string{`[data-test="mms-product-price"]`, `h1[data-test="mms-select-details-header"]`},
	}
	return m
}

// state parses the preloaded Redux state. It returns nil without error when
// the page has none.
func (m *MediaMarktAdapter) state(doc types.Document) (interface{}, error) {
	script := scriptText(doc, preloadedStateMarker)
	if script == "" {
		return nil, nil
	}

	rest := script[strings.Index(script, preloadedStateMarker):]
	start := strings.Index(rest, "{")
	end := strings.LastIndex(rest, "}")
	if start < 0 || end <= start {
		return nil, fmt.Errorf("%w: preloaded state has no object", types.ErrParseFailure)
	}

	var state interface{}
	if err := json.Unmarshal([]byte(rest[start:end+1]), &state); err != nil {
		return nil, fmt.Errorf("%w: preloaded state: %v", types.ErrParseFailure, err)
	}
	return state, nil
}

func (m *MediaMarktAdapter) statePrice(doc types.Document) (string, bool, error) {
	state, err := m.state(doc)
	if err != nil || state == nil {
		return "", false, err
	}
	if v, ok := findPriceNode(state, 0); ok {
		return price.Format(v), true, nil
	}
	return "", false, nil
}

func (m *MediaMarktAdapter) stateStock(doc types.Document) (bool, bool, error) {
	state, err := m.state(doc)
	if err != nil || state == nil {
		return false, false, err
	}
	status, ok := findStringKey(state, "onlineStatus", 0)
	if !ok {
		return false, false, nil
	}
	inStock, known := mediaMarktOnlineStatus[strings.ToLower(status)]
	return inStock, known, nil
}

// findPriceNode searches for an object carrying both a currency and a price
func findPriceNode(v interface{}, depth int) (float64, bool) {
	if depth > maxStateDepth {
		return 0, false
	}
	switch t := v.(type) {
	case map[string]interface{}:
		if _, ok := t["currency"]; ok {
			if p := price.FromValue(t["price"]); p > 0 {
				return p, true
			}
			if p := price.FromValue(t["amount"]); p > 0 {
				return p, true
			}
		}
		for _, key := range sortedKeys(t) {
			if p, ok := findPriceNode(t[key], depth+1); ok {
				return p, true
			}
		}
	case []interface{}:
		for _, item := range t {
			if p, ok := findPriceNode(item, depth+1); ok {
				return p, true
			}
		}
	}
	return 0, false
}

// findStringKey returns the first string value stored under key
func findStringKey(v interface{}, key string, depth int) (string, bool) {
	if depth > maxStateDepth {
		return "", false
	}
	switch t := v.(type) {
	case map[string]interface{}:
		if s, ok := t[key].(string); ok && s != "" {
			return s, true
		}
		for _, k := range sortedKeys(t) {
			if s, ok := findStringKey(t[k], key, depth+1); ok {
				return s, true
			}
		}
	case []interface{}:
		for _, item := range t {
			if s, ok := findStringKey(item, key, depth+1); ok {
				return s, true
			}
		}
	}
	return "", false
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
