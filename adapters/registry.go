package adapters

import (
	"strings"

	"pricewatch/internal/types"
)

// route pairs a URL predicate with the extractor it selects
type route struct {
	match     func(url string) bool
	extractor SiteExtractor
}

// Registry maps product URLs to site extractors. Routes are evaluated in
// declaration order and the first match wins; unmatched URLs go to the
// universal extractor.
type Registry struct {
	routes   []route
	fallback SiteExtractor
}

// NewRegistry creates the registry with every built-in site extractor.
// The order below is the tie-break between loose substring matches.
func NewRegistry(logger types.Logger) *Registry {
	r := &Registry{fallback: NewUniversalAdapter(logger)}
	r.Register(urlContains("amazon.", "amzn."), NewAmazonAdapter(logger))
	r.Register(urlContains("zalando"), NewZalandoAdapter(logger))
	r.Register(urlContains("mediamarkt", "saturn"), NewMediaMarktAdapter(logger))
	r.Register(urlContains("rossmann"), NewRossmannAdapter(logger))
	r.Register(urlContains("ebay"), NewEbayAdapter(logger))
	return r
}

// Register appends a route after all existing ones
func (r *Registry) Register(match func(url string) bool, extractor SiteExtractor) {
	r.routes = append(r.routes, route{match: match, extractor: extractor})
}

// Select returns the extractor for url. It never returns nil.
func (r *Registry) Select(url string) SiteExtractor {
	for _, rt := range r.routes {
		if rt.match(url) {
			return rt.extractor
		}
	}
	return r.fallback
}

// Extractors lists the routed extractors in order, followed by the fallback
func (r *Registry) Extractors() []SiteExtractor {
	out := make([]SiteExtractor, 0, len(r.routes)+1)
	for _, rt := range r.routes {
		out = append(out, rt.extractor)
	}
	return append(out, r.fallback)
}

func urlContains(needles ...string) func(string) bool {
	return func(url string) bool {
		lower := strings.ToLower(url)
		for _, n := range needles {
			if strings.Contains(lower, n) {
				return true
			}
		}
		return false
	}
}
