package adapters

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func boolPtr(v bool) *bool {
	return &v
}

func TestClassifyStock(t *testing.T) {
	tests := []struct {
		name    string
		signals StockSignals
		want    StockVerdict
	}{
		{
			name:    "nothing observed defaults to in stock",
			signals: StockSignals{},
			want:    StockVerdict{InStock: true, Signal: SignalDefault},
		},
		{
			name:    "negative keyword",
			signals: StockSignals{NegativeHit: "ausverkauft"},
			want:    StockVerdict{InStock: false, Signal: SignalKeywords},
		},
		{
			name:    "enabled buy button beats keyword",
			signals: StockSignals{NegativeHit: "ausverkauft", CTAFound: true, CTAEnabled: true},
			want:    StockVerdict{InStock: true, Signal: SignalCTA},
		},
		{
			name:    "disabled buy button keeps the default",
			signals: StockSignals{CTAFound: true, CTAEnabled: false},
			want:    StockVerdict{InStock: true, Signal: SignalDefault},
		},
		{
			name:    "disabled buy button keeps the keyword verdict",
			signals: StockSignals{NegativeHit: "sold out", CTAFound: true, CTAEnabled: false},
			want:    StockVerdict{InStock: false, Signal: SignalKeywords},
		},
		{
			name:    "json-ld beats buy button",
			signals: StockSignals{LDAvailable: boolPtr(false), CTAFound: true, CTAEnabled: true},
			want:    StockVerdict{InStock: false, Signal: SignalJSONLD},
		},
		{
			name:    "state in stock beats sold-out text",
			signals: StockSignals{State: boolPtr(true), NegativeHit: "sold out"},
			want:    StockVerdict{InStock: true, Signal: SignalState},
		},
		{
			name:    "state beats everything",
			signals: StockSignals{State: boolPtr(false), LDAvailable: boolPtr(true), CTAFound: true, CTAEnabled: true},
			want:    StockVerdict{InStock: false, Signal: SignalState},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ClassifyStock(tt.signals))
		})
	}
}

func TestCTAState(t *testing.T) {
	doc := newDoc(t, "u", `<html><body>
		<button id="plain">Kaufen</button>
		<button id="attr" disabled>Kaufen</button>
		<button id="aria" aria-disabled="true">Kaufen</button>
		<button id="class" class="btn btn--disabled">Kaufen</button>
	</body></html>`)

	tests := []struct {
		selectors []string
		found     bool
		enabled   bool
	}{
		{[]string{"#plain"}, true, true},
		{[]string{"#attr"}, true, false},
		{[]string{"#aria"}, true, false},
		{[]string{"#class"}, true, false},
		{[]string{"#missing", "#plain"}, true, true},
		{[]string{"#missing"}, false, false},
		{nil, false, false},
	}

	for _, tt := range tests {
		found, enabled := ctaState(doc, tt.selectors)
		assert.Equal(t, tt.found, found, "%v", tt.selectors)
		assert.Equal(t, tt.enabled, enabled, "%v", tt.selectors)
	}
}

func TestFindNegativeKeyword(t *testing.T) {
	keywords := []string{"leider ausverkauft", "nicht lieferbar"}

	assert.Equal(t, "leider ausverkauft", findNegativeKeyword("Dieser Artikel ist LEIDER AUSVERKAUFT.", keywords))
	assert.Equal(t, "nicht lieferbar", findNegativeKeyword("Zur Zeit nicht lieferbar", keywords))
	assert.Empty(t, findNegativeKeyword("Sofort lieferbar", keywords))
}

func TestLDAvailability(t *testing.T) {
	assert.Equal(t, boolPtr(true), ldAvailability("https://schema.org/InStock"))
	assert.Equal(t, boolPtr(true), ldAvailability("http://schema.org/LimitedAvailability"))
	assert.Equal(t, boolPtr(false), ldAvailability("https://schema.org/OutOfStock"))
	assert.Equal(t, boolPtr(false), ldAvailability("SoldOut"))
	assert.Equal(t, boolPtr(false), ldAvailability("https://schema.org/Discontinued"))
	assert.Nil(t, ldAvailability("https://schema.org/PreOrder"))
	assert.Nil(t, ldAvailability(""))
}
