package adapters

import (
	"strings"

	"pricewatch/internal/types"

	"github.com/PuerkitoBio/goquery"
)

var (
	sizeLabelHints  = []string{"größe", "grösse", "size", "schuhgröße", "taille"}
	colorLabelHints = []string{"farbe", "color", "colour"}
)

// EbayAdapter handles extraction for ebay.* listings
type EbayAdapter struct {
	*BaseAdapter
}

// NewEbayAdapter creates a new eBay adapter
func NewEbayAdapter(logger types.Logger) *EbayAdapter {
	e := &EbayAdapter{BaseAdapter: NewBaseAdapter("ebay", logger)}

	e.recipe = Recipe{
		Price: e.PriceStrategies(nil, []Strategy[string]{
			TextStrategy("ebay-price",
				".x-price-primary .ux-textspans",
				".x-bin-price__content .ux-textspans",
				"#prcIsum",
				"#mm-saleDscPrc",
			),
		}),
		Title: e.TitleStrategies(nil, []Strategy[string]{
			TextStrategy("ebay-title", "h1.x-item-title__mainTitle .ux-textspans", "#itemTitle"),
		}),
		Image: e.ImageStrategies(nil, []Strategy[string]{
			AttrStrategy("ebay-image", ".ux-image-carousel-item.active img", "data-zoom-src", "src"),
			AttrStrategy("ebay-image", "#icImg", "src"),
		}),
		Variants: []Strategy[[]types.VariantGroup]{{Name: "ebay-msku", Run: e.mskuVariants}},
		CTA:      []string{"#binBtn_btn", "#binBtn_btn_1", `a[data-testid="ux-call-to-action"]`, "#isCartBtn_btn"},
		Negative: e.NegativeKeywords(
			"dieses angebot wurde beendet",
			"das angebot ist beendet",
			"this listing has ended",
			"this listing was ended",
		),
		WaitFor: []string{".x-price-primary", "h1.x-item-title__mainTitle"},
	}
	return e
}

// mskuVariants reads the multi-SKU select boxes. Each box becomes a group
// named after its label.
func (e *EbayAdapter) mskuVariants(doc types.Document) ([]types.VariantGroup, bool, error) {
	var groups []types.VariantGroup

	doc.Find("select.x-msku__select-box, select.msku-sel").Each(func(i int, box *goquery.Selection) {
		name := mskuLabel(doc, box)
		kind := variantKindFromLabel(name)

		group := types.VariantGroup{Name: name, Type: kind}
		seen := make(map[string]int)
		box.Find("option").Each(func(j int, opt *goquery.Selection) {
			value, soldOut := optionValue(opt, false)
			if !ValidOption(value, kind) {
				return
			}
			addOption(&group, seen, value, !soldOut && OptionAvailable(opt))
		})
		if len(group.Options) > 0 {
			groups = append(groups, group)
		}
	})

	return groups, len(groups) > 0, nil
}

func mskuLabel(doc types.Document, box *goquery.Selection) string {
	for _, attr := range []string{"selectboxlabel", "aria-label", "name"} {
		if v, ok := box.Attr(attr); ok && strings.TrimSpace(v) != "" {
			return cleanText(v)
		}
	}
	if id, ok := box.Attr("id"); ok {
		if label := cleanText(doc.Find(`label[for="` + id + `"]`).First().Text()); label != "" {
			return strings.TrimSuffix(label, ":")
		}
	}
	return "Option"
}

func variantKindFromLabel(label string) types.VariantType {
	lower := strings.ToLower(label)
	for _, hint := range colorLabelHints {
		if strings.Contains(lower, hint) {
			return types.VariantColor
		}
	}
	for _, hint := range sizeLabelHints {
		if strings.Contains(lower, hint) {
			return types.VariantSize
		}
	}
	// unknown dimensions are validated like colors: free text with letters
	return types.VariantColor
}
