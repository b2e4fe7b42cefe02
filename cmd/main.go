package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"os"
	"time"

	"pricewatch/extractor"
	"pricewatch/internal/config"
	"pricewatch/internal/types"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	var (
		urlFlag      = flag.String("url", "", "Product page URL to extract")
		variantFlag  = flag.String("variant", "", "Selected variant (e.g. a size) whose availability decides in_stock")
		outputFlag   = flag.String("output", "", "Output file path (default: stdout)")
		requestDelay = flag.Duration("delay", 0, "Delay between retries (default from config)")
		maxRetries   = flag.Int("retries", -1, "Maximum retry attempts (default from config)")
		timeout      = flag.Duration("timeout", 0, "Navigation timeout (default from config)")
		httpOnly     = flag.Bool("http-only", false, "Use HTTP requests only (disable headless browser)")
		verbose      = flag.Bool("verbose", false, "Enable verbose logging")
	)
	flag.Parse()

	if *urlFlag == "" {
		log.Fatal("--url flag is required")
	}

	logger := config.NewLogger(*verbose)
	cfg := config.Load(logger)
	if !*verbose {
		config.ApplyLevel(logger, cfg.Logging.Level)
	}

	engine := cfg.EngineConfig()
	if *requestDelay > 0 {
		engine.RequestDelay = *requestDelay
	}
	if *maxRetries >= 0 {
		engine.MaxRetries = *maxRetries
	}
	if *timeout > 0 {
		engine.Timeout = *timeout
	}
	if *httpOnly {
		engine.UseHeadlessBrowser = false
	}

	if err := run(engine, logger, *urlFlag, *variantFlag, *outputFlag); err != nil {
		logger.Errorf("%v", err)
		os.Exit(1)
	}
}

// run extracts one page. It returns instead of exiting so the browser is
// always closed.
func run(engine *types.Config, logger *logrus.Logger, pageURL, variant, output string) error {
	loader := extractor.NewLoader(engine, logger)
	defer loader.Close()
	ext := extractor.NewExtractor(engine, logger, loader)

	ctx, cancel := context.WithTimeout(context.Background(), engine.CheckTimeout)
	defer cancel()

	startTime := time.Now()
	logger.Infof("Starting extraction for %s", pageURL)

	preview, err := ext.Preview(ctx, pageURL, variant)
	if err != nil {
		return fmt.Errorf("extraction failed: %w", err)
	}

	logger.Infof("Extraction completed in %v with %s adapter", time.Since(startTime), preview.Adapter)
	for field, source := range preview.Sources {
		logger.Debugf("  %s <- %s", field, source)
	}

	if output != "" {
		if err := extractor.SaveJSON(output, preview); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		logger.Infof("Results written to: %s", output)
		return nil
	}

	jsonData, err := json.MarshalIndent(preview, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	fmt.Println(string(jsonData))
	return nil
}
