package adapters

import (
	"pricewatch/internal/types"
)

// AmazonAdapter handles extraction for amazon.* and amzn.* pages
type AmazonAdapter struct {
	*BaseAdapter
}

// NewAmazonAdapter creates a new Amazon adapter
func NewAmazonAdapter(logger types.Logger) *AmazonAdapter {
	a := &AmazonAdapter{BaseAdapter: NewBaseAdapter("amazon", logger)}

	a.recipe = Recipe{
		Price: a.PriceStrategies(
			[]Strategy[string]{
				AttrStrategy("amazon-state", "#attach-base-product-price", "value"),
				AttrStrategy("amazon-twister", "#twister-plus-price-data-price", "value"),
			},
			[]Strategy[string]{
				TextStrategy("amazon-price",
					"#corePriceDisplay_desktop_feature_div .a-price.priceToPay .a-offscreen",
					"#corePrice_feature_div .a-price:not([data-a-strike]) .a-offscreen",
					"#apex_desktop .a-price.priceToPay .a-offscreen",
					"#priceblock_dealprice",
					"#priceblock_ourprice",
				),
				SplitPriceStrategy("amazon-split", ".a-price.priceToPay .a-price-whole", ".a-price.priceToPay .a-price-fraction"),
			},
		),
		Title: a.TitleStrategies(nil, []Strategy[string]{
			TextStrategy("amazon-title", "#productTitle", "#title"),
		}),
		Image: a.ImageStrategies(nil, []Strategy[string]{
			AttrStrategy("amazon-image", "#landingImage", "data-old-hires", "src"),
			AttrStrategy("amazon-image", "#imgBlkFront", "src"),
		}),
		Stock: []Strategy[bool]{{Name: "amazon-state", Run: a.stateStock}},
		Variants: a.VariantStrategies(nil, []VariantSpec{
			{Name: "Size", Type: types.VariantSize, Selector: "#variation_size_name li .a-button-text, #inline-twister-row-size_name li .swatch-title-text"},
			{Name: "Size", Type: types.VariantSize, Selector: "#native_dropdown_selected_size_name option"},
			{Name: "Color", Type: types.VariantColor, Selector: "#variation_color_name li img, #inline-twister-row-color_name li img", FromAlt: true},
		}),
		CTA: []string{"#add-to-cart-button", "#buy-now-button"},
		Negative: a.NegativeKeywords(
			"derzeit nicht verfügbar",
			"nicht auf lager",
			"ob und wann dieser artikel wieder vorrätig sein wird",
		),
		WaitFor: []string{"#productTitle", "#corePrice_feature_div", "#attach-base-product-price"},
	}
	return a
}

// stateStock reads the out-of-stock buy box Amazon renders server side
func (a *AmazonAdapter) stateStock(doc types.Document) (bool, bool, error) {
	if text, err := a.ExtractText(doc, "#outOfStock"); err == nil && text != "" {
		return false, true, nil
	}
	if doc.Find("#outOfStockBuyBox_feature_div .a-box").Length() > 0 {
		return false, true, nil
	}
	return false, false, nil
}
