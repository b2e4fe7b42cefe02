package adapters

import (
	"encoding/json"
	"fmt"
	"strings"

	"pricewatch/internal/price"
	"pricewatch/internal/types"

	"github.com/PuerkitoBio/goquery"
)

// ldProduct is the subset of a schema.org Product the cascade reads
type ldProduct struct {
	Name         string
	Image        string
	Price        string
	Availability string
}

// findLDProduct returns the first Product found in the page's JSON-LD blocks.
// Blocks that fail to parse are skipped; the error is only returned when no
// block could be read at all.
func findLDProduct(doc types.Document) (*ldProduct, error) {
	var parseErr error
	var found *ldProduct
	parsed := 0

	doc.Find(`script[type="application/ld+json"]`).EachWithBreak(func(i int, s *goquery.Selection) bool {
		raw := strings.TrimSpace(s.Text())
		if raw == "" {
			return true
		}
		var data interface{}
		if err := json.Unmarshal([]byte(raw), &data); err != nil {
			parseErr = fmt.Errorf("%w: JSON-LD block %d: %v", types.ErrParseFailure, i, err)
			return true
		}
		parsed++
		if node := findLDNode(data); node != nil {
			found = toLDProduct(node)
			return false
		}
		return true
	})

	if found == nil && parsed == 0 && parseErr != nil {
		return nil, parseErr
	}
	return found, nil
}

func findLDNode(v interface{}) map[string]interface{} {
	switch t := v.(type) {
	case []interface{}:
		for _, item := range t {
			if node := findLDNode(item); node != nil {
				return node
			}
		}
	case map[string]interface{}:
		if isLDType(t["@type"], "Product") || isLDType(t["@type"], "ProductGroup") {
			return t
		}
		if graph, ok := t["@graph"]; ok {
			return findLDNode(graph)
		}
	}
	return nil
}

func isLDType(v interface{}, want string) bool {
	switch t := v.(type) {
	case string:
		return strings.EqualFold(strings.TrimPrefix(t, "http://schema.org/"), want) ||
			strings.EqualFold(strings.TrimPrefix(t, "https://schema.org/"), want)
	case []interface{}:
		for _, item := range t {
			if isLDType(item, want) {
				return true
			}
		}
	}
	return false
}

func toLDProduct(node map[string]interface{}) *ldProduct {
	p := &ldProduct{
		Name:  ldString(node["name"]),
		Image: ldImage(node["image"]),
	}

	offers := node["offers"]
	if offers == nil {
		// ProductGroup keeps offers on its variants
		if variants, ok := node["hasVariant"].([]interface{}); ok && len(variants) > 0 {
			if first, ok := variants[0].(map[string]interface{}); ok {
				offers = first["offers"]
			}
		}
	}

	for _, offer := range ldOffers(offers) {
		if p.Price == "" {
			p.Price = ldPrice(offer)
		}
		if p.Availability == "" {
			p.Availability = ldString(offer["availability"])
		}
	}
	return p
}

func ldOffers(v interface{}) []map[string]interface{} {
	switch t := v.(type) {
	case map[string]interface{}:
		return []map[string]interface{}{t}
	case []interface{}:
		var out []map[string]interface{}
		for _, item := range t {
			if m, ok := item.(map[string]interface{}); ok {
				out = append(out, m)
			}
		}
		return out
	}
	return nil
}

func ldPrice(offer map[string]interface{}) string {
	for _, key := range []string{"price", "lowPrice"} {
		if s := ldString(offer[key]); s != "" {
			return s
		}
	}
	if spec, ok := offer["priceSpecification"].(map[string]interface{}); ok {
		return ldString(spec["price"])
	}
	if specs, ok := offer["priceSpecification"].([]interface{}); ok && len(specs) > 0 {
		if spec, ok := specs[0].(map[string]interface{}); ok {
			return ldString(spec["price"])
		}
	}
	return ""
}

func ldString(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case float64:
		return price.Format(t)
	case json.Number:
		return t.String()
	}
	return ""
}

func ldImage(v interface{}) string {
	switch t := v.(type) {
	case string:
		return strings.TrimSpace(t)
	case []interface{}:
		for _, item := range t {
			if s := ldImage(item); s != "" {
				return s
			}
		}
	case map[string]interface{}:
		if s := ldString(t["url"]); s != "" {
			return s
		}
		return ldString(t["contentUrl"])
	}
	return ""
}

// ldAvailability maps a schema.org availability URL to a stock opinion
func ldAvailability(availability string) *bool {
	a := strings.ToLower(availability)
	var v bool
	switch {
	case a == "":
		return nil
	case strings.Contains(a, "instock"), strings.Contains(a, "limitedavailability"), strings.Contains(a, "onlineonly"):
		v = true
	case strings.Contains(a, "outofstock"), strings.Contains(a, "soldout"), strings.Contains(a, "discontinued"):
		v = false
	default:
		// PreOrder, BackOrder, InStoreOnly and friends carry no opinion
		return nil
	}
	return &v
}
