package adapters

import (
	"fmt"
	"net/url"
	"strings"

	"pricewatch/internal/types"

	"github.com/PuerkitoBio/goquery"
)

// SiteExtractor turns a loaded product page into structured facts
type SiteExtractor interface {
	Name() string
	// WaitSelectors lists elements worth waiting for after navigation
	WaitSelectors() []string
	// Extract never fails; fields no strategy could resolve stay empty
	Extract(doc types.Document, selectedVariant string) *types.ExtractionResult
}

// Recipe is the per-site configuration of the extraction cascade
type Recipe struct {
	Price    []Strategy[string]
	Title    []Strategy[string]
	Image    []Strategy[string]
	Stock    []Strategy[bool] // embedded application state only
	Variants []Strategy[[]types.VariantGroup]
	CTA      []string // primary call-to-action selectors
	Negative []string // lowercase sold-out phrases in the site's locale
	WaitFor  []string
}

// BaseAdapter provides the cascade runner and the strategies shared by all
// site extractors. Site extractors embed it and only contribute a Recipe.
type BaseAdapter struct {
	name   string
	logger types.Logger
	recipe Recipe
}

// NewBaseAdapter creates a base adapter for the named site
func NewBaseAdapter(name string, logger types.Logger) *BaseAdapter {
	return &BaseAdapter{
		name:   name,
		logger: logger,
	}
}

// Name returns the adapter name
func (b *BaseAdapter) Name() string {
	return b.name
}

// WaitSelectors returns the selectors the page loader should wait for
func (b *BaseAdapter) WaitSelectors() []string {
	return b.recipe.WaitFor
}

// Extract runs every field cascade against doc
func (b *BaseAdapter) Extract(doc types.Document, selectedVariant string) *types.ExtractionResult {
	result := &types.ExtractionResult{
		Adapter:  b.name,
		Variants: []types.VariantGroup{},
		Sources:  make(map[string]string),
	}

	if v, src, ok := (Cascade[string]{Field: "price", Strategies: b.recipe.Price, Usable: parsablePrice}).Resolve(b.name, doc, b.logger); ok {
		result.Price = v
		result.Sources["price"] = src
	}
	if v, src, ok := (Cascade[string]{Field: "title", Strategies: b.recipe.Title, Usable: nonEmpty}).Resolve(b.name, doc, b.logger); ok {
		result.Title = v
		result.Sources["title"] = src
	}
	if v, src, ok := (Cascade[string]{Field: "image", Strategies: b.recipe.Image, Usable: nonEmpty}).Resolve(b.name, doc, b.logger); ok {
		result.Image = absoluteURL(doc.URL(), v)
		result.Sources["image"] = src
	}

	hasGroups := func(g []types.VariantGroup) bool { return len(g) > 0 }
	if v, src, ok := (Cascade[[]types.VariantGroup]{Field: "variants", Strategies: b.recipe.Variants, Usable: hasGroups}).Resolve(b.name, doc, b.logger); ok {
		result.Variants = v
		result.Sources["variants"] = src
	}
	result.HasVariants = len(result.Variants) > 0

	verdict := ClassifyStock(b.stockSignals(doc))
	result.InStock = verdict.InStock
	result.Sources["stock"] = verdict.Signal

	if option, ok := selectedOption(result.Variants, selectedVariant); ok {
		result.InStock = option.Available
		result.Sources["stock"] = "variant"
	}

	b.logger.Debugf("%s extracted %q price=%q in_stock=%v variants=%d", b.name, result.Title, result.Price, result.InStock, len(result.Variants))
	return result
}

func (b *BaseAdapter) stockSignals(doc types.Document) StockSignals {
	var signals StockSignals

	if v, _, ok := (Cascade[bool]{Field: "stock", Strategies: b.recipe.Stock}).Resolve(b.name, doc, b.logger); ok {
		signals.State = &v
	}

	product, err := findLDProduct(doc)
	if err != nil {
		b.logger.Warnf("%v", &types.AdapterFieldError{Adapter: b.name, Field: "stock", Strategy: SignalJSONLD, Err: err})
	} else if product != nil {
		signals.LDAvailable = ldAvailability(product.Availability)
	}

	signals.CTAFound, signals.CTAEnabled = ctaState(doc, b.recipe.CTA)
	signals.NegativeHit = findNegativeKeyword(doc.Text(), b.recipe.Negative)
	return signals
}

// PriceStrategies orders site strategies around the shared ones:
// state, JSON-LD, microdata, meta tags, site selectors, visual scan, aggressive scan
func (b *BaseAdapter) PriceStrategies(state, selectors []Strategy[string]) []Strategy[string] {
	out := append([]Strategy[string]{}, state...)
	out = append(out, JSONLDPriceStrategy(), MicrodataPriceStrategy(), MetaPriceStrategy())
	out = append(out, selectors...)
	return append(out, VisualPriceStrategy(), AggressivePriceStrategy())
}

// TitleStrategies orders title strategies the same way as prices
func (b *BaseAdapter) TitleStrategies(state, selectors []Strategy[string]) []Strategy[string] {
	out := append([]Strategy[string]{}, state...)
	out = append(out, JSONLDTitleStrategy(), MetaTitleStrategy())
	out = append(out, selectors...)
	return append(out, HeadingTitleStrategy())
}

// ImageStrategies orders image strategies the same way as prices
func (b *BaseAdapter) ImageStrategies(state, selectors []Strategy[string]) []Strategy[string] {
	out := append([]Strategy[string]{}, state...)
	out = append(out, JSONLDImageStrategy(), AttrStrategy("og:image", `meta[property="og:image"]`, "content"),
		AttrStrategy("twitter:image", `meta[name="twitter:image"]`, "content"))
	return append(out, selectors...)
}

// VariantStrategies puts the DOM scan of specs after any state strategies
func (b *BaseAdapter) VariantStrategies(state []Strategy[[]types.VariantGroup], specs []VariantSpec) []Strategy[[]types.VariantGroup] {
	out := append([]Strategy[[]types.VariantGroup]{}, state...)
	if len(specs) == 0 {
		return out
	}
	return append(out, Strategy[[]types.VariantGroup]{
		Name: "dom",
		Run: func(doc types.Document) ([]types.VariantGroup, bool, error) {
			groups := DetectVariants(doc, specs)
			return groups, len(groups) > 0, nil
		},
	})
}

// NegativeKeywords appends the site phrases to the common ones
func (b *BaseAdapter) NegativeKeywords(site ...string) []string {
	return append(append([]string{}, site...), commonNegativeKeywords...)
}

// JSONLDPriceStrategy reads offers.price or offers.lowPrice of a JSON-LD Product
func JSONLDPriceStrategy() Strategy[string] {
	return ldStrategy(func(p *ldProduct) string { return p.Price })
}

// JSONLDTitleStrategy reads the name of a JSON-LD Product
func JSONLDTitleStrategy() Strategy[string] {
	return ldStrategy(func(p *ldProduct) string { return p.Name })
}

// JSONLDImageStrategy reads the image of a JSON-LD Product
func JSONLDImageStrategy() Strategy[string] {
	return ldStrategy(func(p *ldProduct) string { return p.Image })
}

func ldStrategy(field func(*ldProduct) string) Strategy[string] {
	return Strategy[string]{
		Name: SignalJSONLD,
		Run: func(doc types.Document) (string, bool, error) {
			product, err := findLDProduct(doc)
			if err != nil || product == nil {
				return "", false, err
			}
			v := field(product)
			return v, v != "", nil
		},
	}
}

// MicrodataPriceStrategy reads itemprop="price" markup
func MicrodataPriceStrategy() Strategy[string] {
	return Strategy[string]{
		Name: "microdata",
		Run: func(doc types.Document) (string, bool, error) {
			el := doc.Find(`[itemprop="price"]`).First()
			if el.Length() == 0 {
				return "", false, nil
			}
			if v, ok := el.Attr("content"); ok && strings.TrimSpace(v) != "" {
				return strings.TrimSpace(v), true, nil
			}
			v := cleanText(el.Text())
			return v, v != "", nil
		},
	}
}

// MetaPriceStrategy reads product:price:amount style meta tags
func MetaPriceStrategy() Strategy[string] {
	return Strategy[string]{
		Name: "meta",
		Run: func(doc types.Document) (string, bool, error) {
			for _, selector := range []string{
				`meta[property="product:price:amount"]`,
				`meta[property="og:price:amount"]`,
				`meta[itemprop="price"]`,
			} {
				if v, ok := doc.Find(selector).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
					return strings.TrimSpace(v), true, nil
				}
			}
			return "", false, nil
		},
	}
}

// MetaTitleStrategy reads og:title or twitter:title without a trailing shop name
func MetaTitleStrategy() Strategy[string] {
	return Strategy[string]{
		Name: "meta",
		Run: func(doc types.Document) (string, bool, error) {
			for _, selector := range []string{`meta[property="og:title"]`, `meta[name="twitter:title"]`} {
				if v, ok := doc.Find(selector).First().Attr("content"); ok && strings.TrimSpace(v) != "" {
					return trimShopSuffix(cleanText(v)), true, nil
				}
			}
			return "", false, nil
		},
	}
}

// HeadingTitleStrategy tries common product heading selectors
func HeadingTitleStrategy() Strategy[string] {
	return TextStrategy("heading",
		"h1.product-title",
		"h1[class*='title']",
		".product-name h1",
		".product-info h1",
		".product-details h1",
		"h1",
	)
}

// trimShopSuffix removes " | Shop" or " - Shop" tails from page titles
func trimShopSuffix(title string) string {
	for _, sep := range []string{" | ", " - ", " – "} {
		if i := strings.LastIndex(title, sep); i > 0 && len(title)-i-len(sep) <= 25 {
			return strings.TrimSpace(title[:i])
		}
	}
	return title
}

// ExtractText extracts text from an element using a CSS selector
func (b *BaseAdapter) ExtractText(doc types.Document, selector string) (string, error) {
	element := doc.Find(selector)
	if element.Length() == 0 {
		return "", fmt.Errorf("element not found with selector: %s", selector)
	}

	return cleanText(element.First().Text()), nil
}

// ExtractAttribute extracts an attribute value from an element
func (b *BaseAdapter) ExtractAttribute(doc types.Document, selector string, attribute string) (string, error) {
	element := doc.Find(selector)
	if element.Length() == 0 {
		return "", fmt.Errorf("element not found with selector: %s", selector)
	}

	value, exists := element.First().Attr(attribute)
	if !exists {
		return "", fmt.Errorf("attribute %s not found on element %s", attribute, selector)
	}

	return value, nil
}

// scriptText returns the contents of the first script whose text contains marker
func scriptText(doc types.Document, marker string) string {
	var text string
	doc.Find("script").EachWithBreak(func(i int, s *goquery.Selection) bool {
		if t := s.Text(); strings.Contains(t, marker) {
			text = t
			return false
		}
		return true
	})
	return text
}

func absoluteURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if strings.HasPrefix(ref, "//") {
		return "https:" + ref
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return ref
	}
	refURL, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return baseURL.ResolveReference(refURL).String()
}
