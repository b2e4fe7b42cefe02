package adapters

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pricewatch/internal/types"
)

func TestFindLDProduct_Graph(t *testing.T) {
	doc := newDoc(t, "u", `<html><head>
	<script type="application/ld+json">{
		"@context": "https://schema.org",
		"@graph": [
			{"@type": "WebPage", "name": "Startseite"},
			{"@type": "Product", "name": "Trinkflasche 750 ml",
			 "image": {"@type": "ImageObject", "url": "https://cdn.example/bottle.jpg"},
			 "offers": [{"@type": "Offer", "price": 19.9, "availability": "https://schema.org/InStock"}]}
		]
	}</script></head><body></body></html>`)

	p, err := findLDProduct(doc)

	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Trinkflasche 750 ml", p.Name)
	assert.Equal(t, "https://cdn.example/bottle.jpg", p.Image)
	assert.Equal(t, "19.9", p.Price)
	assert.Equal(t, "https://schema.org/InStock", p.Availability)
}

func TestFindLDProduct_AggregateOfferAndTypeList(t *testing.T) {
	doc := newDoc(t, "u", `<html><head>
	<script type="application/ld+json">[{"@type": "BreadcrumbList"}, {"@type": ["Product", "Thing"], "name": "Kopfhörer",
		"image": ["https://cdn.example/a.jpg", "https://cdn.example/b.jpg"],
		"offers": {"@type": "AggregateOffer", "lowPrice": "12.50", "highPrice": "20.00"}}]</script>
	</head><body></body></html>`)

	p, err := findLDProduct(doc)

	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Kopfhörer", p.Name)
	assert.Equal(t, "https://cdn.example/a.jpg", p.Image)
	assert.Equal(t, "12.50", p.Price)
	assert.Empty(t, p.Availability)
}

func TestFindLDProduct_ProductGroupVariantOffers(t *testing.T) {
	doc := newDoc(t, "u", `<html><head>
	<script type="application/ld+json">{"@type": "ProductGroup", "name": "Shirt",
		"hasVariant": [{"@type": "Product", "offers": {"price": "29.95", "availability": "OutOfStock"}}]}</script>
	</head><body></body></html>`)

	p, err := findLDProduct(doc)

	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "29.95", p.Price)
	assert.Equal(t, "OutOfStock", p.Availability)
}

func TestFindLDProduct_SkipsMalformedBlocks(t *testing.T) {
	doc := newDoc(t, "u", `<html><head>
	<script type="application/ld+json">{"@type": "Product", "name": </script>
	<script type="application/ld+json">{"@type": "Product", "name": "Lampe", "offers": {"price": "39.00"}}</script>
	</head><body></body></html>`)

	p, err := findLDProduct(doc)

	require.NoError(t, err)
	require.NotNil(t, p)
	assert.Equal(t, "Lampe", p.Name)
}

func TestFindLDProduct_OnlyMalformed(t *testing.T) {
	doc := newDoc(t, "u", `<html><head>
	<script type="application/ld+json">{broken</script>
	</head><body></body></html>`)

	p, err := findLDProduct(doc)

	assert.Nil(t, p)
	require.Error(t, err)
	assert.True(t, errors.Is(err, types.ErrParseFailure))
}

func TestFindLDProduct_None(t *testing.T) {
	doc := newDoc(t, "u", `<html><head>
	<script type="application/ld+json">{"@type": "Organization", "name": "Shop"}</script>
	</head><body></body></html>`)

	p, err := findLDProduct(doc)

	assert.NoError(t, err)
	assert.Nil(t, p)
}
