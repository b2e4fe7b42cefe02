package adapters

import (
	"regexp"
	"strings"

	"pricewatch/internal/types"

	"github.com/PuerkitoBio/goquery"
)

const maxOptionLength = 20

var (
	optionCurrencyPattern = regexp.MustCompile(`(?i)[€$£]|\b(?:eur|usd|gbp|chf)\b|\d+[.,]\d{2}\b`)
	paginationPattern     = regexp.MustCompile(`(?i)^(?:previous|prev|next|zurück|weiter|vorherige|nächste|mehr|more|less|weniger|[<>«»‹›]+)$`)
	instructionPattern    = regexp.MustCompile(`(?i)select|choose|notify|wählen|benachrichtig|größentabelle|grössentabelle|size guide|size chart|find your size|passform|alle anzeigen|show all`)

	letterSizePattern   = regexp.MustCompile(`(?i)^(?:\d?x{0,4}[sl]|m|one ?size|os)$`)
	slashSizePattern    = regexp.MustCompile(`(?i)^(?:x{0,3}[sl]|m)\s?/\s?(?:x{0,3}[sl]|m)$`)
	numericSizePattern  = regexp.MustCompile(`^\d{2}(?:[.,]5| ?½| 1/3| 2/3)?$`)
	prefixedSizePattern = regexp.MustCompile(`(?i)^(?:(?:eu|us|uk|de|fr|it)\s?\d{1,2}(?:[.,]5)?|\d{1,2}(?:[.,]5)?\s?(?:eu|us|uk))$`)
	jeansSizePattern    = regexp.MustCompile(`(?i)^w?\d{2}\s?/\s?l?\d{2}$`)
	letterPattern       = regexp.MustCompile(`\p{L}`)

	// "M (Ausverkauft)" style suffixes in select options
	optionSuffixPattern = regexp.MustCompile(`\s*[(\[][^)\]]*[)\]]\s*$`)
	soldOutHintPattern  = regexp.MustCompile(`(?i)ausverkauft|sold out|out of stock|nicht verfügbar|unavailable|vergriffen`)
)

var unavailableClassMarkers = []string{
	"unavailable", "disabled", "sold-out", "soldout", "out-of-stock",
	"outofstock", "not-available", "inactive", "crossed",
}

// VariantSpec tells the detector where one option list lives
type VariantSpec struct {
	Name     string
	Type     types.VariantType
	Selector string
	// FromAlt reads option values from img alt attributes. Such specs only
	// fill a group that found no textual options.
	FromAlt bool
}

// DetectVariants scans option controls described by specs. Specs sharing a
// group name feed the same group. Values are deduplicated within a group
// ignoring case, so "xl" and "XL" are one option spelled as first seen, and
// availability of duplicates is merged. Groups without a valid option are dropped.
func DetectVariants(doc types.Document, specs []VariantSpec) []types.VariantGroup {
	var order []string
	groups := make(map[string]*types.VariantGroup)
	index := make(map[string]map[string]int)

	for _, spec := range specs {
		group, ok := groups[spec.Name]
		if !ok {
			group = &types.VariantGroup{Name: spec.Name, Type: spec.Type}
			groups[spec.Name] = group
			index[spec.Name] = make(map[string]int)
			order = append(order, spec.Name)
		}
		if spec.FromAlt && len(group.Options) > 0 {
			continue
		}

		doc.Find(spec.Selector).Each(func(i int, el *goquery.Selection) {
			value, hintedUnavailable := optionValue(el, spec.FromAlt)
			if !ValidOption(value, spec.Type) {
				return
			}
			available := !hintedUnavailable && OptionAvailable(el)
			addOption(group, index[spec.Name], value, available)
		})
	}

	out := make([]types.VariantGroup, 0, len(order))
	for _, name := range order {
		if g := groups[name]; len(g.Options) > 0 {
			out = append(out, *g)
		}
	}
	return out
}

func addOption(group *types.VariantGroup, seen map[string]int, value string, available bool) {
	key := strings.ToLower(value)
	if i, ok := seen[key]; ok {
		group.Options[i].Available = group.Options[i].Available || available
		return
	}
	seen[key] = len(group.Options)
	group.Options = append(group.Options, types.VariantOption{Value: value, Available: available})
}

// optionValue reads the display value of an option control. The second return
// is true when the value itself says the option is sold out.
func optionValue(el *goquery.Selection, fromAlt bool) (string, bool) {
	var value string
	if fromAlt {
		img := el
		if goquery.NodeName(el) != "img" {
			img = el.Find("img").First()
		}
		value, _ = img.Attr("alt")
	} else {
		value = el.Text()
		for _, attr := range []string{"data-value", "title", "aria-label"} {
			if strings.TrimSpace(value) != "" {
				break
			}
			value, _ = el.Attr(attr)
		}
	}
	value = cleanText(value)

	unavailable := false
	if suffix := optionSuffixPattern.FindString(value); suffix != "" {
		unavailable = soldOutHintPattern.MatchString(suffix)
		value = strings.TrimSpace(strings.TrimSuffix(value, suffix))
	}
	return value, unavailable
}

// ValidOption rejects UI noise: prices, pagination, instructions and long text
func ValidOption(value string, kind types.VariantType) bool {
	if value == "" || len([]rune(value)) > maxOptionLength {
		return false
	}
	if optionCurrencyPattern.MatchString(value) || paginationPattern.MatchString(value) ||
		instructionPattern.MatchString(value) {
		return false
	}

	switch kind {
	case types.VariantSize:
		return IsSizeValue(value)
	case types.VariantColor:
		return letterPattern.MatchString(value)
	}
	return true
}

// IsSizeValue reports whether value has one of the accepted size shapes
func IsSizeValue(value string) bool {
	for _, p := range []*regexp.Regexp{letterSizePattern, slashSizePattern, numericSizePattern, prefixedSizePattern, jeansSizePattern} {
		if p.MatchString(value) {
			return true
		}
	}
	return false
}

// OptionAvailable inspects disabled state and CSS classes of an option control,
// its immediate parent and its enclosing list item
func OptionAvailable(el *goquery.Selection) bool {
	for _, s := range []*goquery.Selection{el, el.Parent(), el.Closest("li")} {
		if s.Length() == 0 {
			continue
		}
		if _, ok := s.Attr("disabled"); ok {
			return false
		}
		if v, _ := s.Attr("aria-disabled"); strings.EqualFold(v, "true") {
			return false
		}
		if v, ok := s.Attr("data-available"); ok && strings.EqualFold(v, "false") {
			return false
		}
		class, _ := s.Attr("class")
		class = strings.ToLower(class)
		for _, marker := range unavailableClassMarkers {
			if strings.Contains(class, marker) {
				return false
			}
		}
	}
	return true
}

// selectedOption finds value among the groups, case-insensitively
func selectedOption(groups []types.VariantGroup, value string) (types.VariantOption, bool) {
	want := strings.ToLower(strings.TrimSpace(value))
	if want == "" {
		return types.VariantOption{}, false
	}
	for _, g := range groups {
		for _, o := range g.Options {
			if strings.ToLower(o.Value) == want {
				return o, true
			}
		}
	}
	return types.VariantOption{}, false
}
