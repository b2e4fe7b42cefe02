package utils

import (
	"fmt"
	"strconv"
	"strings"

	"pricewatch/internal/types"

	"github.com/PuerkitoBio/goquery"
)

// Attributes written by the browser's style annotation pass
const (
	attrFontSize   = "data-pw-fs"
	attrFontWeight = "data-pw-fw"
	attrDecoration = "data-pw-td"
)

const (
	defaultFontSize   = 16.0
	defaultFontWeight = 400
	ancestorDepth     = 4
)

var headingSizes = map[string]float64{
	"h1": 32, "h2": 24, "h3": 18.72, "h4": 16, "h5": 13.28, "h6": 10.72,
	"small": 13.33, "big": 19.2,
}

// Page is a product page snapshot that implements types.Document
type Page struct {
	url  string
	doc  *goquery.Document
	text string
}

var _ types.Document = (*Page)(nil)

// NewPage parses an HTML snapshot into a queryable page
func NewPage(pageURL, html string) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("failed to parse HTML: %w", err)
	}

	body := doc.Find("body").Clone()
	body.Find("script, style, noscript, template").Remove()

	return &Page{
		url:  pageURL,
		doc:  doc,
		text: strings.Join(strings.Fields(body.Text()), " "),
	}, nil
}

// URL returns the address the page was loaded from
func (p *Page) URL() string {
	return p.url
}

// Find runs a CSS selector against the page
func (p *Page) Find(selector string) *goquery.Selection {
	return p.doc.Find(selector)
}

// Text returns the visible body text with whitespace collapsed
func (p *Page) Text() string {
	return p.text
}

// Style resolves the rendered style of the first element in sel.
// Browser annotations win; static pages fall back to inline styles and tag semantics.
func (p *Page) Style(sel *goquery.Selection) types.Style {
	el := sel.First()
	if el.Length() == 0 {
		return types.Style{}
	}

	return types.Style{
		FontSize:      fontSize(el),
		FontWeight:    fontWeight(el),
		Strikethrough: strikethrough(el),
	}
}

// SplitText returns the text of sel with every text node on its own line.
// Prices rendered as "4<sup>69</sup>" come out as "4\n69".
func SplitText(sel *goquery.Selection) string {
	var parts []string
	var walk func(s *goquery.Selection)
	walk = func(s *goquery.Selection) {
		s.Contents().Each(func(i int, c *goquery.Selection) {
			switch goquery.NodeName(c) {
			case "#text":
				if t := strings.TrimSpace(c.Text()); t != "" {
					parts = append(parts, t)
				}
			case "script", "style", "#comment":
			default:
				walk(c)
			}
		})
	}
	walk(sel.First())
	return strings.Join(parts, "\n")
}

func fontSize(el *goquery.Selection) float64 {
	if v, ok := el.Attr(attrFontSize); ok {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil && f > 0 {
			return f
		}
	}

	cur := el
	for i := 0; i < ancestorDepth && cur.Length() > 0; i++ {
		if v, ok := inlineStyle(cur)["font-size"]; ok {
			if f := parseCSSLength(v); f > 0 {
				return f
			}
		}
		if f, ok := headingSizes[goquery.NodeName(cur)]; ok {
			return f
		}
		cur = cur.Parent()
	}
	return defaultFontSize
}

func fontWeight(el *goquery.Selection) int {
	if v, ok := el.Attr(attrFontWeight); ok {
		if w := parseFontWeight(v); w > 0 {
			return w
		}
	}

	cur := el
	for i := 0; i < ancestorDepth && cur.Length() > 0; i++ {
		if v, ok := inlineStyle(cur)["font-weight"]; ok {
			if w := parseFontWeight(v); w > 0 {
				return w
			}
		}
		switch goquery.NodeName(cur) {
		case "b", "strong", "h1", "h2", "h3", "h4", "h5", "h6":
			return 700
		}
		cur = cur.Parent()
	}
	return defaultFontWeight
}

func strikethrough(el *goquery.Selection) bool {
	if v, ok := el.Attr(attrDecoration); ok {
		return strings.Contains(v, "line-through")
	}

	cur := el
	for i := 0; i < ancestorDepth && cur.Length() > 0; i++ {
		switch goquery.NodeName(cur) {
		case "s", "del", "strike":
			return true
		}
		style := inlineStyle(cur)
		if strings.Contains(style["text-decoration"], "line-through") ||
			strings.Contains(style["text-decoration-line"], "line-through") {
			return true
		}
		cur = cur.Parent()
	}
	return false
}

func inlineStyle(el *goquery.Selection) map[string]string {
	raw, ok := el.Attr("style")
	if !ok {
		return nil
	}

	out := make(map[string]string)
	for _, decl := range strings.Split(raw, ";") {
		key, value, found := strings.Cut(decl, ":")
		if !found {
			continue
		}
		out[strings.ToLower(strings.TrimSpace(key))] = strings.ToLower(strings.TrimSpace(value))
	}
	return out
}

func parseCSSLength(v string) float64 {
	v = strings.TrimSpace(strings.TrimSuffix(v, "!important"))
	mult := 1.0
	switch {
	case strings.HasSuffix(v, "px"):
		v = strings.TrimSuffix(v, "px")
	case strings.HasSuffix(v, "rem"):
		v, mult = strings.TrimSuffix(v, "rem"), defaultFontSize
	case strings.HasSuffix(v, "em"):
		v, mult = strings.TrimSuffix(v, "em"), defaultFontSize
	case strings.HasSuffix(v, "pt"):
		v, mult = strings.TrimSuffix(v, "pt"), 4.0/3.0
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return 0
	}
	return f * mult
}

func parseFontWeight(v string) int {
	v = strings.TrimSpace(strings.ToLower(v))
	switch v {
	case "bold", "bolder":
		return 700
	case "normal", "lighter":
		return 400
	}
	w, err := strconv.Atoi(v)
	if err != nil {
		return 0
	}
	return w
}
