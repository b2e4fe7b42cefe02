package adapters

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"pricewatch/internal/price"
	"pricewatch/internal/types"
)

// shopifyProduct is the product object Shopify themes embed for their scripts
type shopifyProduct struct {
	Title         string        `json:"title"`
	Price         interface{}   `json:"price"`
	Available     *bool         `json:"available"`
	FeaturedImage string        `json:"featured_image"`
	Options       []interface{} `json:"options"`
	Variants      []struct {
		Option1   string      `json:"option1"`
		Option2   string      `json:"option2"`
		Option3   string      `json:"option3"`
		Available bool        `json:"available"`
		Price     interface{} `json:"price"`
	} `json:"variants"`
}

const shopifyProductSelector = `script[data-product-json], script#ProductJson-product-template, script[id^="ProductJson"]`

// UniversalAdapter is the catch-all extractor for unknown shops. It relies on
// the shared strategies, Shopify product JSON and generic selectors.
type UniversalAdapter struct {
	*BaseAdapter
}

// NewUniversalAdapter creates the fallback adapter
func NewUniversalAdapter(logger types.Logger) *UniversalAdapter {
	u := &UniversalAdapter{BaseAdapter: NewBaseAdapter("universal", logger)}

	u.recipe = Recipe{
		Price: u.PriceStrategies(
			[]Strategy[string]{{Name: "shopify", Run: u.shopifyPrice}},
			[]Strategy[string]{
				TextStrategy("universal-price",
					".product-price .price--sale",
					".product__price",
					".product-price",
					"[data-product-price]",
					"#product-price",
					".price-item--sale",
				),
			},
		),
		Title: u.TitleStrategies(
			[]Strategy[string]{{Name: "shopify", Run: u.shopifyTitle}},
			nil,
		),
		Image: u.ImageStrategies(
			[]Strategy[string]{{Name: "shopify", Run: u.shopifyImage}},
			[]Strategy[string]{AttrStrategy("universal-image", ".product img, .product-image img, main img", "data-src", "src")},
		),
		Stock: []Strategy[bool]{{Name: "shopify", Run: u.shopifyStock}},
		Variants: u.VariantStrategies(
			[]Strategy[[]types.VariantGroup]{{Name: "shopify", Run: u.shopifyVariants}},
			[]VariantSpec{
				{Name: "Size", Type: types.VariantSize, Selector: `[class*="size"] a, [class*="size"] button, [class*="groesse"] a, [id*="size"] a, select[name*="size" i] option, select[name*="groesse" i] option`},
				{Name: "Color", Type: types.VariantColor, Selector: `[class*="color-swatch"] a, [class*="colour-swatch"] a, select[name*="color" i] option, select[name*="farbe" i] option`},
				{Name: "Color", Type: types.VariantColor, Selector: `[class*="color"] a img, [class*="colour"] a img, [class*="farbe"] a img`, FromAlt: true},
			},
		),
		CTA: []string{
			`button[name="add"]`,
			"#AddToCart",
			"#add-to-cart",
			".add-to-cart",
			`button[class*="add-to-cart"]`,
			`button[class*="addToCart"]`,
			`[data-testid*="add-to-cart"]`,
			`button[id*="add-to-cart"]`,
		},
		Negative: u.NegativeKeywords(
			"vorübergehend ausverkauft",
			"nicht auf lager",
			"momentan nicht verfügbar",
			"derzeit nicht verfügbar",
			"nicht vorrätig",
		),
		WaitFor: []string{`script[type="application/ld+json"]`, "h1"},
	}
	return u
}

func (u *UniversalAdapter) shopify(doc types.Document) (*shopifyProduct, error) {
	raw := strings.TrimSpace(doc.Find(shopifyProductSelector).First().Text())
	if raw == "" {
		return nil, nil
	}
	var product shopifyProduct
	if err := json.Unmarshal([]byte(raw), &product); err != nil {
		return nil, fmt.Errorf("%w: shopify product json: %v", types.ErrParseFailure, err)
	}
	return &product, nil
}

// shopifyAmount converts Shopify prices, which are integer cents in product JSON
func shopifyAmount(v interface{}) float64 {
	switch t := v.(type) {
	case float64:
		if t == math.Trunc(t) {
			return t / 100
		}
		return t
	case string:
		return price.Normalize(t)
	}
	return 0
}

func (u *UniversalAdapter) shopifyPrice(doc types.Document) (string, bool, error) {
	p, err := u.shopify(doc)
	if err != nil || p == nil {
		return "", false, err
	}
	amount := shopifyAmount(p.Price)
	if amount <= 0 && len(p.Variants) > 0 {
		amount = shopifyAmount(p.Variants[0].Price)
	}
	if amount <= 0 {
		return "", false, nil
	}
	return price.Format(amount), true, nil
}

func (u *UniversalAdapter) shopifyTitle(doc types.Document) (string, bool, error) {
	p, err := u.shopify(doc)
	if err != nil || p == nil {
		return "", false, err
	}
	title := cleanText(p.Title)
	return title, title != "", nil
}

func (u *UniversalAdapter) shopifyImage(doc types.Document) (string, bool, error) {
	p, err := u.shopify(doc)
	if err != nil || p == nil {
		return "", false, err
	}
	return p.FeaturedImage, p.FeaturedImage != "", nil
}

func (u *UniversalAdapter) shopifyStock(doc types.Document) (bool, bool, error) {
	p, err := u.shopify(doc)
	if err != nil || p == nil {
		return false, false, err
	}
	if p.Available != nil {
		return *p.Available, true, nil
	}
	if len(p.Variants) == 0 {
		return false, false, nil
	}
	for _, v := range p.Variants {
		if v.Available {
			return true, true, nil
		}
	}
	return false, true, nil
}

func (u *UniversalAdapter) shopifyVariants(doc types.Document) ([]types.VariantGroup, bool, error) {
	p, err := u.shopify(doc)
	if err != nil || p == nil {
		return nil, false, err
	}

	var groups []types.VariantGroup
	for i, option := range p.Options {
		if i > 2 {
			break
		}
		name := shopifyOptionName(option)
		if name == "" || strings.EqualFold(name, "title") {
			continue
		}
		kind := variantKindFromLabel(name)
		group := types.VariantGroup{Name: name, Type: kind}
		seen := make(map[string]int)
		for _, v := range p.Variants {
			value := cleanText([]string{v.Option1, v.Option2, v.Option3}[i])
			if !ValidOption(value, kind) {
				continue
			}
			addOption(&group, seen, value, v.Available)
		}
		if len(group.Options) > 0 {
			groups = append(groups, group)
		}
	}
	return groups, len(groups) > 0, nil
}

// shopifyOptionName handles both ["Size"] and [{"name": "Size"}] option lists
func shopifyOptionName(option interface{}) string {
	switch t := option.(type) {
	case string:
		return t
	case map[string]interface{}:
		if name, ok := t["name"].(string); ok {
			return name
		}
	}
	return ""
}
