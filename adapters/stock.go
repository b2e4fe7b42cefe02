package adapters

import (
	"strings"

	"pricewatch/internal/types"

	"github.com/PuerkitoBio/goquery"
)

// Stock signal names, strongest first
const (
	SignalState    = "state"
	SignalJSONLD   = "json-ld"
	SignalCTA      = "cta"
	SignalKeywords = "keywords"
	SignalDefault  = "default"
)

// commonNegativeKeywords apply to every site on top of its own list
var commonNegativeKeywords = []string{
	"ausverkauft",
	"nicht verfügbar",
	"nicht lieferbar",
	"nicht mehr erhältlich",
	"sold out",
	"out of stock",
	"currently unavailable",
	"no longer available",
}

// StockSignals are the raw observations the classifier merges.
// Nil pointers mean the signal was not observed.
type StockSignals struct {
	State       *bool  // embedded application state
	LDAvailable *bool  // JSON-LD offers.availability
	CTAFound    bool   // primary buy button present
	CTAEnabled  bool   // and not disabled
	NegativeHit string // first negative phrase found in the page text
}

// StockVerdict is the classifier output and the signal that decided it
type StockVerdict struct {
	InStock bool
	Signal  string
}

// ClassifyStock merges the signals. Each stronger signal overrides whatever a
// weaker one concluded: state > JSON-LD > call-to-action > keyword scan.
//
// Only an enabled buy button is evidence; a disabled one leaves the weaker
// verdict standing. Without a negative keyword and without any stronger signal
// the verdict is in stock. Pages that phrase "sold out" in an unrecognized way
// therefore read as available; this is a known accuracy trade-off.
func ClassifyStock(s StockSignals) StockVerdict {
	verdict := StockVerdict{InStock: true, Signal: SignalDefault}

	if s.NegativeHit != "" {
		verdict = StockVerdict{InStock: false, Signal: SignalKeywords}
	}
	if s.CTAFound && s.CTAEnabled {
		verdict = StockVerdict{InStock: true, Signal: SignalCTA}
	}
	if s.LDAvailable != nil {
		verdict = StockVerdict{InStock: *s.LDAvailable, Signal: SignalJSONLD}
	}
	if s.State != nil {
		verdict = StockVerdict{InStock: *s.State, Signal: SignalState}
	}
	return verdict
}

// ctaState looks for the first element matching any selector and reports
// whether it is enabled
func ctaState(doc types.Document, selectors []string) (found, enabled bool) {
	for _, selector := range selectors {
		el := doc.Find(selector).First()
		if el.Length() == 0 {
			continue
		}
		return true, !isDisabled(el)
	}
	return false, false
}

func isDisabled(el *goquery.Selection) bool {
	if _, ok := el.Attr("disabled"); ok {
		return true
	}
	if v, _ := el.Attr("aria-disabled"); strings.EqualFold(v, "true") {
		return true
	}
	class, _ := el.Attr("class")
	class = strings.ToLower(class)
	return strings.Contains(class, "disabled") || strings.Contains(class, "inactive")
}

// findNegativeKeyword returns the first phrase contained in the page text
func findNegativeKeyword(text string, keywords []string) string {
	lower := strings.ToLower(text)
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return kw
		}
	}
	return ""
}
