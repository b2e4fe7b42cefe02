package adapters

import (
	"regexp"
	"strings"

	"pricewatch/internal/types"
)

var (
	dataLayerPricePattern = regexp.MustCompile(`"price"\s*:\s*"?(\d+(?:[.,]\d+)?)"?`)
	dataLayerNamePattern  = regexp.MustCompile(`"name"\s*:\s*"([^"]+)"`)
)

// RossmannAdapter handles extraction for rossmann.de pages
type RossmannAdapter struct {
	*BaseAdapter
}

// NewRossmannAdapter creates a new Rossmann adapter
func NewRossmannAdapter(logger types.Logger) *RossmannAdapter {
	r := &RossmannAdapter{BaseAdapter: NewBaseAdapter("rossmann", logger)}

	r.recipe = Recipe{
		Price: r.PriceStrategies(
			[]Strategy[string]{{Name: "rossmann-datalayer", Run: r.dataLayerPrice}},
			[]Strategy[string]{
				SplitPriceStrategy("rossmann-split", ".rm-price__integer", ".rm-price__decimal"),
				TextStrategy("rossmann-price", ".rm-price__current", `[data-testid="product-price"]`, ".rm-productprice"),
			},
		),
		Title: r.TitleStrategies(
			[]Strategy[string]{{Name: "rossmann-datalayer", Run: r.dataLayerName}},
			[]Strategy[string]{TextStrategy("rossmann-title", "h1.rm-product__title", `[data-testid="product-title"]`)},
		),
		Image: r.ImageStrategies(nil, []Strategy[string]{
			{Name: "rossmann-image", Run: r.productImage},
		}),
		Variants: r.VariantStrategies(nil, []VariantSpec{
			{Name: "Color", Type: types.VariantColor, Selector: ".rm-variants a, .rm-product__variants a"},
			{Name: "Color", Type: types.VariantColor, Selector: ".rm-variants a img, .rm-product__variants a img", FromAlt: true},
		}),
		CTA: []string{"button.rm-addtocart", `[data-testid="add-to-cart"]`, `button[name="addToCart"]`},
		Negative: r.NegativeKeywords(
			"online nicht verfügbar",
			"online nicht bestellbar",
			"derzeit nicht lieferbar",
		),
		WaitFor: []string{".rm-price__current", "h1.rm-product__title"},
	}
	return r
}

// dataLayer returns the ecommerce part of the analytics dataLayer script
func (r *RossmannAdapter) dataLayer(doc types.Document) string {
	script := scriptText(doc, "dataLayer")
	if i := strings.Index(script, "ecommerce"); i >= 0 {
		return script[i:]
	}
	return ""
}

func (r *RossmannAdapter) dataLayerPrice(doc types.Document) (string, bool, error) {
	m := dataLayerPricePattern.FindStringSubmatch(r.dataLayer(doc))
	if m == nil {
		return "", false, nil
	}
	return m[1], true, nil
}

func (r *RossmannAdapter) dataLayerName(doc types.Document) (string, bool, error) {
	m := dataLayerNamePattern.FindStringSubmatch(r.dataLayer(doc))
	if m == nil {
		return "", false, nil
	}
	return cleanText(m[1]), true, nil
}

// productImage prefers the lazy-load source over the placeholder src
func (r *RossmannAdapter) productImage(doc types.Document) (string, bool, error) {
	for _, attr := range []string{"data-src", "src"} {
		if v, err := r.ExtractAttribute(doc, ".rm-product__image img", attr); err == nil && v != "" {
			return v, true, nil
		}
	}
	return "", false, nil
}
