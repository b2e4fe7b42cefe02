package adapters

import (
	"encoding/json"
	"fmt"
	"strings"

	"pricewatch/internal/price"
	"pricewatch/internal/types"
)

// ZalandoAdapter handles extraction for zalando.* pages
type ZalandoAdapter struct {
	*BaseAdapter
}

type zalandoProps struct {
	Model struct {
		ArticleInfo zalandoArticle `json:"articleInfo"`
	} `json:"model"`
}

type zalandoArticle struct {
	Name  string `json:"name"`
	Color string `json:"color"`
	Brand struct {
		Name string `json:"name"`
	} `json:"brand"`
	Available    *bool `json:"available"`
	DisplayPrice struct {
		Price struct {
			Formatted string  `json:"formatted"`
			Value     float64 `json:"value"`
		} `json:"price"`
	} `json:"displayPrice"`
	Media struct {
		Images []struct {
			Sources struct {
				Zoom   string `json:"zoom"`
				Detail string `json:"detail"`
			} `json:"sources"`
		} `json:"images"`
	} `json:"media"`
	Units []struct {
		Size      string `json:"size"`
		Available bool   `json:"available"`
	} `json:"units"`
}

// NewZalandoAdapter creates a new Zalando adapter
func NewZalandoAdapter(logger types.Logger) *ZalandoAdapter {
	z := &ZalandoAdapter{BaseAdapter: NewBaseAdapter("zalando", logger)}

	z.recipe = Recipe{
		Price: z.PriceStrategies(
			[]Strategy[string]{{Name: "zalando-state", Run: z.statePrice}},
			[]Strategy[string]{
				TextStrategy("zalando-price", `[data-testid="pdp-price-container"] p:first-of-type`, `[data-testid="pdp-price-container"] span`),
			},
		),
		Title: z.TitleStrategies(
			[]Strategy[string]{{Name: "zalando-state", Run: z.stateTitle}},
			[]Strategy[string]{TextStrategy("zalando-title", `[data-testid="pdp-title"]`, "h1 span:last-child")},
		),
		Image: z.ImageStrategies(
			[]Strategy[string]{{Name: "zalando-state", Run: z.stateImage}},
			nil,
		),
		Stock: []Strategy[bool]{{Name: "zalando-state", Run: z.stateStock}},
		Variants: z.VariantStrategies(
			[]Strategy[[]types.VariantGroup]{{Name: "zalando-state", Run: z.stateVariants}},
			[]VariantSpec{
				{Name: "Size", Type: types.VariantSize, Selector: `[data-testid="pdp-size-picker"] label span, [data-testid="pdp-size-picker"] [role="option"] span`},
				{Name: "Color", Type: types.VariantColor, Selector: `[data-testid="pdp-color-picker"] a img, ul[aria-label*="Farbe"] a img`, FromAlt: true},
			},
		),
		CTA: []string{`button[data-testid="pdp-add-to-cart"]`, "#add-to-bag", `button[data-testid="pdp-add-to-bag"]`},
		Negative: z.NegativeKeywords(
			"leider ausverkauft",
			"dieser artikel ist nicht mehr verfügbar",
			"benachrichtige mich",
		),
		WaitFor: []string{"script#z-vegas-pdp-props", `[data-testid="pdp-price-container"]`},
	}
	return z
}

// article parses the PDP props blob. It returns nil without error when the
// page has no blob.
func (z *ZalandoAdapter) article(doc types.Document) (*zalandoArticle, error) {
	raw := strings.TrimSpace(doc.Find("script#z-vegas-pdp-props").First().Text())
	if raw == "" {
		return nil, nil
	}
	raw = strings.TrimPrefix(raw, "<![CDATA[")
	raw = strings.TrimSuffix(raw, "]]>")

	var props zalandoProps
	if err := json.Unmarshal([]byte(raw), &props); err != nil {
		return nil, fmt.Errorf("%w: zalando props: %v", types.ErrParseFailure, err)
	}
	return &props.Model.ArticleInfo, nil
}

func (z *ZalandoAdapter) statePrice(doc types.Document) (string, bool, error) {
	a, err := z.article(doc)
	if err != nil || a == nil {
		return "", false, err
	}
	if a.DisplayPrice.Price.Formatted != "" {
		return a.DisplayPrice.Price.Formatted, true, nil
	}
	if a.DisplayPrice.Price.Value > 0 {
		return price.Format(a.DisplayPrice.Price.Value), true, nil
	}
	return "", false, nil
}

func (z *ZalandoAdapter) stateTitle(doc types.Document) (string, bool, error) {
	a, err := z.article(doc)
	if err != nil || a == nil || a.Name == "" {
		return "", false, err
	}
	return strings.TrimSpace(a.Brand.Name + " " + a.Name), true, nil
}

func (z *ZalandoAdapter) stateImage(doc types.Document) (string, bool, error) {
	a, err := z.article(doc)
	if err != nil || a == nil || len(a.Media.Images) == 0 {
		return "", false, err
	}
	src := a.Media.Images[0].Sources
	if src.Zoom != "" {
		return src.Zoom, true, nil
	}
	return src.Detail, src.Detail != "", nil
}

func (z *ZalandoAdapter) stateStock(doc types.Document) (bool, bool, error) {
	a, err := z.article(doc)
	if err != nil || a == nil {
		return false, false, err
	}
	if a.Available != nil {
		return *a.Available, true, nil
	}
	if len(a.Units) == 0 {
		return false, false, nil
	}
	for _, u := range a.Units {
		if u.Available {
			return true, true, nil
		}
	}
	return false, true, nil
}

func (z *ZalandoAdapter) stateVariants(doc types.Document) ([]types.VariantGroup, bool, error) {
	a, err := z.article(doc)
	if err != nil || a == nil {
		return nil, false, err
	}

	group := types.VariantGroup{Name: "Size", Type: types.VariantSize}
	seen := make(map[string]int)
	for _, u := range a.Units {
		value := cleanText(u.Size)
		if !ValidOption(value, types.VariantSize) {
			continue
		}
		addOption(&group, seen, value, u.Available)
	}
	if len(group.Options) == 0 {
		return nil, false, nil
	}
	return []types.VariantGroup{group}, true, nil
}
