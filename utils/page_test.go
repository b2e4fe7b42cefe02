package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const stylePage = `<html><body>
<h1><span id="heading-price">49,99 €</span></h1>
<p><span id="plain">12,00 €</span></p>
<p><strong id="bold">15,00 €</strong></p>
<p><del><span id="crossed">79,99 €</span></del></p>
<p><span id="inline" style="font-size: 28px; font-weight: bold">19,99 €</span></p>
<p><span id="inline-strike" style="text-decoration: line-through">29,99 €</span></p>
<p><span id="annotated" data-pw-fs="36" data-pw-fw="800" data-pw-td="none">9,99 €</span></p>
<p><span id="annotated-strike" data-pw-fs="14" data-pw-fw="400" data-pw-td="line-through">11,99 €</span></p>
<div id="split">4<sup>69</sup><span>€</span></div>
</body></html>`

func TestPage_Style(t *testing.T) {
	page, err := NewPage("https://shop.example/p/1", stylePage)
	require.NoError(t, err)

	tests := []struct {
		selector   string
		size       float64
		weight     int
		strikethru bool
	}{
		{"#heading-price", 32, 700, false},
		{"#plain", 16, 400, false},
		{"#bold", 16, 700, false},
		{"#crossed", 16, 400, true},
		{"#inline", 28, 700, false},
		{"#inline-strike", 16, 400, true},
		{"#annotated", 36, 800, false},
		{"#annotated-strike", 14, 400, true},
	}

	for _, tt := range tests {
		t.Run(tt.selector, func(t *testing.T) {
			style := page.Style(page.Find(tt.selector))
			assert.InDelta(t, tt.size, style.FontSize, 0.01)
			assert.Equal(t, tt.weight, style.FontWeight)
			assert.Equal(t, tt.strikethru, style.Strikethrough)
		})
	}
}

func TestPage_StyleMissingElement(t *testing.T) {
	page, err := NewPage("https://shop.example/p/1", stylePage)
	require.NoError(t, err)

	style := page.Style(page.Find("#missing"))

	assert.Zero(t, style.FontSize)
	assert.False(t, style.Bold())
}

func TestSplitText(t *testing.T) {
	page, err := NewPage("https://shop.example/p/1", stylePage)
	require.NoError(t, err)

	assert.Equal(t, "4\n69\n€", SplitText(page.Find("#split")))
	assert.Equal(t, "49,99 €", SplitText(page.Find("#heading-price")))
	assert.Equal(t, "", SplitText(page.Find("#missing")))
}

func TestPage_TextSkipsScripts(t *testing.T) {
	page, err := NewPage("u", `<html><head><title>T</title></head><body>
		<p>Sofort   lieferbar</p>
		<script>window.state = {"soldOut": true}</script>
		<style>.x{}</style>
	</body></html>`)
	require.NoError(t, err)

	assert.Equal(t, "Sofort lieferbar", page.Text())
	assert.Equal(t, "u", page.URL())
}
