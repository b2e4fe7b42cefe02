package adapters

import (
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pricewatch/internal/price"
	"pricewatch/internal/types"
)

const amazonPage = `<html><head><title>Amazon.de</title></head><body>
<span id="productTitle">  Laufschuh Pegasus 40  </span>
<input type="hidden" id="attach-base-product-price" value="89.99">
<div id="corePrice_feature_div">
  <span class="a-price" data-a-strike="true"><span class="a-offscreen">119,99 €</span></span>
</div>
<img id="landingImage" src="https://m.media-amazon.com/images/I/small.jpg" data-old-hires="https://m.media-amazon.com/images/I/large.jpg">
<div id="variation_size_name"><ul>
  <li class="swatchAvailable"><span class="a-button"><span class="a-button-inner"><span class="a-button-text">42</span></span></span></li>
  <li class="swatchUnavailable"><span class="a-button"><span class="a-button-inner"><span class="a-button-text">43</span></span></span></li>
</ul></div>
<div id="variation_color_name"><ul>
  <li><img alt="Schwarz"></li>
  <li><img alt="Weiß"></li>
</ul></div>
<input id="add-to-cart-button" type="submit" value="In den Einkaufswagen">
</body></html>`

func TestAmazonAdapter_Extract(t *testing.T) {
	doc := newDoc(t, "https://www.amazon.de/dp/B0C1234567", amazonPage)

	result := NewAmazonAdapter(logrus.New()).Extract(doc, "")

	assert.Equal(t, "amazon", result.Adapter)
	assert.Equal(t, "Laufschuh Pegasus 40", result.Title)
	assert.Equal(t, "89.99", result.Price)
	assert.Equal(t, "https://m.media-amazon.com/images/I/large.jpg", result.Image)
	assert.True(t, result.InStock)
	assert.True(t, result.HasVariants)
	assert.Equal(t, map[string]string{
		"price":    "amazon-state",
		"title":    "amazon-title",
		"image":    "amazon-image",
		"variants": "dom",
		"stock":    SignalCTA,
	}, result.Sources)

	require.Len(t, result.Variants, 2)
	assert.Equal(t, []types.VariantOption{{Value: "42", Available: true}, {Value: "43", Available: false}}, result.Variants[0].Options)
	assert.Equal(t, []types.VariantOption{{Value: "Schwarz", Available: true}, {Value: "Weiß", Available: true}}, result.Variants[1].Options)
}

func TestAmazonAdapter_SelectedVariantDecidesStock(t *testing.T) {
	doc := newDoc(t, "https://www.amazon.de/dp/B0C1234567", amazonPage)

	result := NewAmazonAdapter(logrus.New()).Extract(doc, "43")

	assert.False(t, result.InStock)
	assert.Equal(t, "variant", result.Sources["stock"])
}

func TestAmazonAdapter_OutOfStock(t *testing.T) {
	doc := newDoc(t, "https://www.amazon.de/dp/B0", `<html><body>
		<span id="productTitle">Kaffeemühle</span>
		<div id="outOfStock"><span>Derzeit nicht verfügbar.</span></div>
		<div class="a-price priceToPay"><span class="a-price-whole">34,</span><span class="a-price-fraction">90</span></div>
	</body></html>`)

	result := NewAmazonAdapter(logrus.New()).Extract(doc, "")

	assert.False(t, result.InStock)
	assert.Equal(t, SignalState, result.Sources["stock"])
	assert.Equal(t, "amazon-split", result.Sources["price"])
	assert.InDelta(t, 34.90, price.Normalize(result.Price), 0.001)
}

func TestZalandoAdapter_StateBlob(t *testing.T) {
	doc := newDoc(t, "https://www.zalando.de/nike-sneaker.html", `<html><body>
<script id="z-vegas-pdp-props" type="application/json"><![CDATA[{"model":{"articleInfo":{
  "name":"Sneaker low","brand":{"name":"Nike"},
  "displayPrice":{"price":{"formatted":"99,95 €","value":99.95}},
  "media":{"images":[{"sources":{"zoom":"https://img01.ztat.net/zoom.jpg"}}]},
  "units":[{"size":"40","available":true},{"size":"41","available":false},{"size":"40","available":false}]
}}}]]></script>
<h1><span>Nike</span><span>Sneaker low</span></h1>
<p>Leider ausverkauft</p>
</body></html>`)

	result := NewZalandoAdapter(logrus.New()).Extract(doc, "")

	assert.Equal(t, "99,95 €", result.Price)
	assert.Equal(t, "Nike Sneaker low", result.Title)
	assert.Equal(t, "https://img01.ztat.net/zoom.jpg", result.Image)
	assert.True(t, result.InStock, "structured state beats the sold-out text")
	assert.Equal(t, SignalState, result.Sources["stock"])
	assert.Equal(t, "zalando-state", result.Sources["variants"])

	require.Len(t, result.Variants, 1)
	assert.Equal(t, []types.VariantOption{{Value: "40", Available: true}, {Value: "41", Available: false}}, result.Variants[0].Options)
}

func TestZalandoAdapter_BrokenStateFallsBack(t *testing.T) {
	logger, hook := test.NewNullLogger()
	doc := newDoc(t, "https://www.zalando.de/x.html", `<html><body>
<script id="z-vegas-pdp-props" type="application/json"><![CDATA[{"model": {"articleInfo": ]]></script>
<h1>Regenjacke</h1>
<div data-testid="pdp-price-container"><p>49,95 €</p></div>
</body></html>`)

	result := NewZalandoAdapter(logger).Extract(doc, "")

	assert.Equal(t, "49,95 €", result.Price)
	assert.Equal(t, "zalando-price", result.Sources["price"])
	assert.Equal(t, "Regenjacke", result.Title)
	assert.NotEmpty(t, hook.AllEntries())
}

func TestMediaMarktAdapter_PreloadedState(t *testing.T) {
	doc := newDoc(t, "https://www.mediamarkt.de/de/product/_samsung-tv-123.html", `<html><body>
<script>window.__PRELOADED_STATE__ = {"apollo":{"Product:1":{"title":"TV","price":{"price":499,"currency":"EUR"},"onlineStatus":"ONLINE_NOT_AVAILABLE"}}};</script>
<h1 data-test="mms-select-details-header">Samsung TV 55"</h1>
<div data-test="mms-product-price"><span data-test="branded-price-whole-value">549,</span><span data-test="branded-price-decimal-value">–</span></div>
<button data-test="pdp-add-to-cart-button">In den Warenkorb</button>
</body></html>`)

	result := NewMediaMarktAdapter(logrus.New()).Extract(doc, "")

	assert.Equal(t, "499", result.Price)
	assert.Equal(t, "mediamarkt-state", result.Sources["price"])
	assert.Equal(t, `Samsung TV 55"`, result.Title)
	assert.False(t, result.InStock)
	assert.Equal(t, SignalState, result.Sources["stock"])
}

func TestMediaMarktAdapter_BrandedPrice(t *testing.T) {
	doc := newDoc(t, "https://www.saturn.de/de/product/_airpods.html", `<html><body>
<h1 data-test="mms-select-details-header">AirPods</h1>
<div data-test="mms-product-price"><span data-test="branded-price-whole-value">149,</span><span data-test="branded-price-decimal-value">–</span></div>
<button data-test="pdp-add-to-cart-button">In den Warenkorb</button>
</body></html>`)

	result := NewMediaMarktAdapter(logrus.New()).Extract(doc, "")

	assert.Equal(t, "mediamarkt-branded", result.Sources["price"])
	assert.InDelta(t, 149.0, price.Normalize(result.Price), 0.001)
	assert.True(t, result.InStock)
	assert.Equal(t, SignalCTA, result.Sources["stock"])
}

func TestRossmannAdapter_DataLayer(t *testing.T) {
	doc := newDoc(t, "https://www.rossmann.de/de/pflege/p/4305615", `<html><body>
<script>window.dataLayer = window.dataLayer || []; dataLayer.push({"event":"view_item","ecommerce":{"items":[{"name":"Zahnpasta Sensitive","price":"1.95"}]}});</script>
<h1 class="rm-product__title">Zahnpasta</h1>
<div class="rm-product__image"><img src="/placeholder.gif" data-src="/media/zahnpasta.jpg"></div>
<p>Online nicht verfügbar</p>
</body></html>`)

	result := NewRossmannAdapter(logrus.New()).Extract(doc, "")

	assert.Equal(t, "1.95", result.Price)
	assert.Equal(t, "Zahnpasta Sensitive", result.Title)
	assert.Equal(t, "https://www.rossmann.de/media/zahnpasta.jpg", result.Image)
	assert.False(t, result.InStock)
	assert.Equal(t, SignalKeywords, result.Sources["stock"])
	assert.False(t, result.HasVariants)
	assert.NotNil(t, result.Variants)
}

func TestEbayAdapter_JSONLDAndMSKU(t *testing.T) {
	doc := newDoc(t, "https://www.ebay.de/itm/1234567890", `<html><head>
<script type="application/ld+json">{"@context":"https://schema.org","@type":"Product","name":"Vintage Jacke",
 "offers":{"@type":"Offer","price":"45.00","priceCurrency":"EUR","availability":"https://schema.org/InStock"}}</script>
</head><body>
<h1 class="x-item-title__mainTitle"><span class="ux-textspans">Vintage Jacke Gr. M</span></h1>
<div class="x-price-primary"><span class="ux-textspans">EUR 45,00</span></div>
<select class="x-msku__select-box" selectboxlabel="Größe">
  <option>- Auswählen -</option><option>S</option><option>M (Ausverkauft)</option><option disabled>L</option>
</select>
<select class="x-msku__select-box" selectboxlabel="Farbe">
  <option>- Auswählen -</option><option>Blau</option><option>Grün</option>
</select>
<a data-testid="ux-call-to-action" href="#">Sofort-Kaufen</a>
</body></html>`)

	result := NewEbayAdapter(logrus.New()).Extract(doc, "")

	assert.Equal(t, "45.00", result.Price)
	assert.Equal(t, SignalJSONLD, result.Sources["price"])
	assert.Equal(t, "Vintage Jacke", result.Title)
	assert.True(t, result.InStock)
	assert.Equal(t, SignalJSONLD, result.Sources["stock"])

	require.Len(t, result.Variants, 2)
	assert.Equal(t, types.VariantGroup{Name: "Größe", Type: types.VariantSize, Options: []types.VariantOption{
		{Value: "S", Available: true},
		{Value: "M", Available: false},
		{Value: "L", Available: false},
	}}, result.Variants[0])
	assert.Equal(t, types.VariantGroup{Name: "Farbe", Type: types.VariantColor, Options: []types.VariantOption{
		{Value: "Blau", Available: true},
		{Value: "Grün", Available: true},
	}}, result.Variants[1])
}

func TestEbayAdapter_EndedListing(t *testing.T) {
	doc := newDoc(t, "https://www.ebay.de/itm/1", `<html><body>
<h1 class="x-item-title__mainTitle"><span class="ux-textspans">Retro Konsole</span></h1>
<div class="x-price-primary"><span class="ux-textspans">EUR 120,00</span></div>
<p>Dieses Angebot wurde beendet.</p>
</body></html>`)

	result := NewEbayAdapter(logrus.New()).Extract(doc, "")

	assert.Equal(t, "EUR 120,00", result.Price)
	assert.Equal(t, "ebay-price", result.Sources["price"])
	assert.False(t, result.InStock)
}

func TestUniversalAdapter_ShopifyProductJSON(t *testing.T) {
	doc := newDoc(t, "https://shop.example/products/linen-shirt", `<html><body>
<script type="application/json" data-product-json>{"title":"Linen Shirt","price":4990,
 "featured_image":"//cdn.shopify.com/s/files/shirt.jpg","options":["Size","Color"],
 "variants":[
  {"option1":"S","option2":"White","available":false,"price":4990},
  {"option1":"M","option2":"White","available":true,"price":4990},
  {"option1":"S","option2":"Navy","available":true,"price":4990}]}</script>
<h1>Linen Shirt</h1>
<button name="add" disabled>Sold out</button>
</body></html>`)

	result := NewUniversalAdapter(logrus.New()).Extract(doc, "")

	assert.Equal(t, "49.9", result.Price)
	assert.Equal(t, "Linen Shirt", result.Title)
	assert.Equal(t, "https://cdn.shopify.com/s/files/shirt.jpg", result.Image)
	assert.True(t, result.InStock)
	assert.Equal(t, SignalState, result.Sources["stock"])

	require.Len(t, result.Variants, 2)
	assert.Equal(t, []types.VariantOption{{Value: "S", Available: true}, {Value: "M", Available: true}}, result.Variants[0].Options)
	assert.Equal(t, types.VariantColor, result.Variants[1].Type)
	assert.Equal(t, []types.VariantOption{{Value: "White", Available: true}, {Value: "Navy", Available: true}}, result.Variants[1].Options)
}

func TestUniversalAdapter_DisabledButtonIsNotSoldOut(t *testing.T) {
	doc := newDoc(t, "https://leuchten.example/p/lampe", `<html><body>
<h1>Lampe</h1><span>19,99 €</span><button name="add" disabled>In den Warenkorb</button>
</body></html>`)

	result := NewUniversalAdapter(logrus.New()).Extract(doc, "")

	assert.True(t, result.InStock)
	assert.Equal(t, SignalDefault, result.Sources["stock"])
}

func TestUniversalAdapter_MetaAndVisual(t *testing.T) {
	doc := newDoc(t, "https://kaffee.example/p/x200", `<html><head>
<meta property="og:title" content="Kaffeemaschine X200 | Beispielshop">
<meta property="og:image" content="/img/x200.jpg">
</head><body>
<h1>Kaffeemaschine X200</h1>
<div class="price-box"><s>199,00 €</s><strong style="font-size:28px">149,00 €</strong></div>
<p>Nicht auf Lager</p>
</body></html>`)

	result := NewUniversalAdapter(logrus.New()).Extract(doc, "")

	assert.Equal(t, "149,00 €", result.Price)
	assert.Equal(t, "visual", result.Sources["price"])
	assert.Equal(t, "Kaffeemaschine X200", result.Title)
	assert.Equal(t, "meta", result.Sources["title"])
	assert.Equal(t, "https://kaffee.example/img/x200.jpg", result.Image)
	assert.False(t, result.InStock)
}

func TestUniversalAdapter_EmptyPage(t *testing.T) {
	doc := newDoc(t, "https://nothing.example/", `<html><body></body></html>`)

	result := NewUniversalAdapter(logrus.New()).Extract(doc, "")

	require.NotNil(t, result)
	assert.Empty(t, result.Title)
	assert.Empty(t, result.Price)
	assert.NotNil(t, result.Variants)
	assert.False(t, result.HasVariants)
	assert.True(t, result.InStock)
	assert.Equal(t, SignalDefault, result.Sources["stock"])
}

func TestBaseAdapter_ExtractHelpers(t *testing.T) {
	b := NewBaseAdapter("test", logrus.New())
	doc := newDoc(t, "u", `<html><body><h1 data-sku="A1"> Titel  </h1></body></html>`)

	text, err := b.ExtractText(doc, "h1")
	require.NoError(t, err)
	assert.Equal(t, "Titel", text)

	_, err = b.ExtractText(doc, "h2")
	assert.Error(t, err)

	sku, err := b.ExtractAttribute(doc, "h1", "data-sku")
	require.NoError(t, err)
	assert.Equal(t, "A1", sku)

	_, err = b.ExtractAttribute(doc, "h1", "data-missing")
	assert.Error(t, err)
}

func TestTrimShopSuffix(t *testing.T) {
	assert.Equal(t, "Kaffeemaschine X200", trimShopSuffix("Kaffeemaschine X200 | Beispielshop"))
	assert.Equal(t, "T-Shirt", trimShopSuffix("T-Shirt - Shop"))
	assert.Equal(t, "A - very long product name that continues for a while", trimShopSuffix("A - very long product name that continues for a while"))
}
