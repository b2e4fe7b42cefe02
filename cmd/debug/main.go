package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"strings"

	"pricewatch/adapters"
	"pricewatch/extractor"
	"pricewatch/internal/config"
	"pricewatch/internal/types"

	"github.com/PuerkitoBio/goquery"
	"github.com/joho/godotenv"
)

func main() {
	_ = godotenv.Load()

	var (
		urlFlag  = flag.String("url", "", "Product page URL to inspect")
		limit    = flag.Int("limit", 10, "Candidates to print per pattern")
		httpOnly = flag.Bool("http-only", false, "Use HTTP requests only (disable headless browser)")
	)
	flag.Parse()

	if *urlFlag == "" {
		log.Fatal("--url flag is required")
	}

	logger := config.NewLogger(true)
	engine := config.Load(logger).EngineConfig()
	if *httpOnly {
		engine.UseHeadlessBrowser = false
	}

	pageURL, err := extractor.ValidateURL(*urlFlag)
	if err != nil {
		log.Fatal(err)
	}

	loader := extractor.NewLoader(engine, logger)
	defer loader.Close()

	ext := extractor.NewExtractor(engine, logger, loader)
	site := ext.Registry().Select(pageURL)
	fmt.Printf("=== %s (adapter: %s) ===\n", pageURL, site.Name())

	ctx, cancel := context.WithTimeout(context.Background(), engine.CheckTimeout)
	defer cancel()

	doc, err := loader.Load(ctx, pageURL, site.WaitSelectors())
	if err != nil {
		log.Fatalf("Failed to load page: %v", err)
	}

	result := site.Extract(doc, "")
	fmt.Printf("Title: %q\nPrice: %q\nIn stock: %v\n", result.Title, result.Price, result.InStock)
	for field, source := range result.Sources {
		fmt.Printf("  %-8s <- %s\n", field, source)
	}
	for _, group := range result.Variants {
		values := make([]string, 0, len(group.Options))
		for _, opt := range group.Options {
			marker := ""
			if !opt.Available {
				marker = " (n/a)"
			}
			values = append(values, opt.Value+marker)
		}
		fmt.Printf("Variant %s [%s]: %s\n", group.Name, group.Type, strings.Join(values, ", "))
	}

	printCandidates("Currency candidates", adapters.CurrencyCandidates(doc), *limit)
	printCandidates("Loose candidates", adapters.LooseCandidates(doc), *limit)
	printScripts(doc)
}

func printCandidates(title string, candidates []adapters.PriceCandidate, limit int) {
	fmt.Printf("\n%s: %d\n", title, len(candidates))
	for i, c := range candidates {
		if i >= limit {
			break
		}
		fmt.Printf("  %2d: score=%5.1f size=%4.1f bold=%-5v text=%q\n",
			i+1, c.Score, c.Style.FontSize, c.Style.Bold(), strings.ReplaceAll(c.Text, "\n", "|"))
	}
}

// printScripts lists structured data blocks a strategy could read
func printScripts(doc types.Document) {
	fmt.Println("\nStructured data:")
	doc.Find(`script[type="application/ld+json"]`).Each(func(i int, s *goquery.Selection) {
		text := strings.TrimSpace(s.Text())
		if len(text) > 120 {
			text = text[:120] + "..."
		}
		fmt.Printf("  ld+json %d: %s\n", i+1, text)
	})
	doc.Find("script[id]").Each(func(i int, s *goquery.Selection) {
		id, _ := s.Attr("id")
		fmt.Printf("  script#%s (%d bytes)\n", id, len(s.Text()))
	})
}
