package adapters

import (
	"fmt"
	"strings"

	"pricewatch/internal/price"
	"pricewatch/internal/types"

	"github.com/PuerkitoBio/goquery"
)

// Strategy resolves one output field from a document.
// found=false means the strategy has no opinion.
type Strategy[T any] struct {
	Name string
	Run  func(doc types.Document) (value T, found bool, err error)
}

// Cascade is an ordered list of strategies for one field. The first strategy
// that yields a usable value wins.
type Cascade[T any] struct {
	Field      string
	Strategies []Strategy[T]
	Usable     func(T) bool
}

// Resolve runs the strategies in order. Failing or panicking strategies are
// logged as AdapterFieldError and skipped.
func (c Cascade[T]) Resolve(adapter string, doc types.Document, logger types.Logger) (T, string, bool) {
	var zero T
	for _, s := range c.Strategies {
		v, found, err := runStrategy(s, doc)
		if err != nil {
			logger.Warnf("%v", &types.AdapterFieldError{Adapter: adapter, Field: c.Field, Strategy: s.Name, Err: err})
			continue
		}
		if !found {
			continue
		}
		if c.Usable != nil && !c.Usable(v) {
			logger.Debugf("%s: %s strategy %q returned unusable value %v", adapter, c.Field, s.Name, v)
			continue
		}
		logger.Debugf("%s: %s resolved by %q", adapter, c.Field, s.Name)
		return v, s.Name, true
	}
	return zero, "", false
}

func runStrategy[T any](s Strategy[T], doc types.Document) (v T, found bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
		}
	}()
	return s.Run(doc)
}

// nonEmpty is the usability check for text fields
func nonEmpty(s string) bool {
	return strings.TrimSpace(s) != ""
}

// parsablePrice is the usability check for raw price text
func parsablePrice(s string) bool {
	return price.Normalize(s) > 0
}

// TextStrategy returns the text of the first selector that matches with non-empty text
func TextStrategy(name string, selectors ...string) Strategy[string] {
	return Strategy[string]{
		Name: name,
		Run: func(doc types.Document) (string, bool, error) {
			for _, selector := range selectors {
				var text string
				doc.Find(selector).EachWithBreak(func(i int, s *goquery.Selection) bool {
					text = cleanText(s.Text())
					return text == ""
				})
				if text != "" {
					return text, true, nil
				}
			}
			return "", false, nil
		},
	}
}

// AttrStrategy returns the first non-empty attribute value among attrs on the first
// element matching selector
func AttrStrategy(name, selector string, attrs ...string) Strategy[string] {
	return Strategy[string]{
		Name: name,
		Run: func(doc types.Document) (string, bool, error) {
			el := doc.Find(selector).First()
			if el.Length() == 0 {
				return "", false, nil
			}
			for _, attr := range attrs {
				if v, ok := el.Attr(attr); ok && strings.TrimSpace(v) != "" {
					return strings.TrimSpace(v), true, nil
				}
			}
			return "", false, nil
		},
	}
}

// SplitPriceStrategy joins separately rendered integer and fraction parts with a
// newline, which the normalizer reads as a decimal point
func SplitPriceStrategy(name, wholeSelector, fractionSelector string) Strategy[string] {
	return Strategy[string]{
		Name: name,
		Run: func(doc types.Document) (string, bool, error) {
			whole := strings.TrimRight(cleanText(doc.Find(wholeSelector).First().Text()), ".,")
			if whole == "" {
				return "", false, nil
			}
			fraction := cleanText(doc.Find(fractionSelector).First().Text())
			if fraction == "" {
				return whole, true, nil
			}
			return whole + "\n" + fraction, true, nil
		},
	}
}

func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
