package types

import "github.com/PuerkitoBio/goquery"

// Style is the rendered presentation of an element as far as it is known
type Style struct {
	FontSize      float64 // px
	FontWeight    int
	Strikethrough bool
}

// Bold reports whether the element renders with a heavy font weight
func (s Style) Bold() bool {
	return s.FontWeight >= 600
}

// Document is a loaded product page that can be queried
type Document interface {
	// URL returns the address the document was loaded from
	URL() string

	// Find runs a CSS selector against the whole document
	Find(selector string) *goquery.Selection

	// Text returns the visible body text without scripts and styles
	Text() string

	// Style returns the rendered style of the first element in sel
	Style(sel *goquery.Selection) Style
}
