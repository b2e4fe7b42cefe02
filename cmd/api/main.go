package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"pricewatch/extractor"
	"pricewatch/internal/config"
	"pricewatch/internal/types"
	"pricewatch/monitor"
	"pricewatch/notify"
	"pricewatch/storage"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// ExtractRequest is the body of POST /extract
type ExtractRequest struct {
	URL             string `json:"url"`
	SelectedVariant string `json:"selectedVariant"`
}

// TrackRequest is the body of POST /items
type TrackRequest struct {
	OwnerID         string          `json:"owner_id"`
	URL             string          `json:"url"`
	Mode            types.TrackMode `json:"mode"`
	Tier            types.PlanTier  `json:"tier"`
	TargetPrice     *float64        `json:"target_price"`
	SelectedVariant string          `json:"selected_variant"`
}

// APIResponse represents the response from the API
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// tabCounter is implemented by loaders that hold browser tabs
type tabCounter interface {
	ActiveSessions() int
}

// Server holds the API server dependencies
type Server struct {
	logger    *logrus.Logger
	extractor *extractor.Extractor
	store     storage.Store
	scheduler *monitor.Scheduler
	timeout   time.Duration
	tabs      tabCounter // nil without a headless browser
}

// NewServer creates a new API server
func NewServer(logger *logrus.Logger, ext *extractor.Extractor, store storage.Store, scheduler *monitor.Scheduler, timeout time.Duration) *Server {
	return &Server{
		logger:    logger,
		extractor: ext,
		store:     store,
		scheduler: scheduler,
		timeout:   timeout,
	}
}

// Routes registers the endpoints
func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/extract", s.handleExtract)
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("GET /items", s.handleListItems)
	mux.HandleFunc("POST /items", s.handleTrack)
	mux.HandleFunc("POST /items/{id}/check", s.handleCheck)
	return mux
}

// handleExtract previews one product page
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
	w.Header().Set("Access-Control-Allow-Headers", "Content-Type")

	// Handle preflight requests
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}
	if r.Method != http.MethodPost {
		s.sendError(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.URL) == "" {
		s.sendError(w, "No url provided", http.StatusBadRequest)
		return
	}

	s.logger.Infof("Preview requested for %s", req.URL)

	ctx, cancel := context.WithTimeout(r.Context(), s.timeout)
	defer cancel()

	preview, err := s.extractor.Preview(ctx, req.URL, req.SelectedVariant)
	if err != nil {
		s.logger.Warnf("Preview of %s failed: %v", req.URL, err)
		s.sendError(w, err.Error(), statusFor(err))
		return
	}
	s.send(w, http.StatusOK, preview)
}

// statusFor maps engine errors to HTTP status codes
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrInvalidURL):
		return http.StatusBadRequest
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrExtractionEmpty):
		return http.StatusUnprocessableEntity
	case errors.Is(err, types.ErrNavigationTimeout), errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	}
	return http.StatusBadGateway
}

func (s *Server) handleListItems(w http.ResponseWriter, r *http.Request) {
	items, err := s.store.ListItems(r.Context())
	if err != nil {
		s.logger.Errorf("Failed to list items: %v", err)
		s.sendError(w, "Failed to list items", http.StatusInternalServerError)
		return
	}
	if owner := r.URL.Query().Get("owner_id"); owner != "" {
		filtered := items[:0]
		for _, item := range items {
			if item.OwnerID == owner {
				filtered = append(filtered, item)
			}
		}
		items = filtered
	}
	s.send(w, http.StatusOK, items)
}

// handleTrack adds an item to the watch list, enforcing the plan's item limit
func (s *Server) handleTrack(w http.ResponseWriter, r *http.Request) {
	var req TrackRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.sendError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	pageURL, err := extractor.ValidateURL(req.URL)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.OwnerID == "" {
		s.sendError(w, "owner_id is required", http.StatusBadRequest)
		return
	}
	switch req.Mode {
	case types.ModeDeal:
		if req.TargetPrice == nil || *req.TargetPrice <= 0 {
			s.sendError(w, "deal mode needs a positive target_price", http.StatusBadRequest)
			return
		}
	case types.ModeRestock:
	default:
		s.sendError(w, fmt.Sprintf("unknown mode %q", req.Mode), http.StatusBadRequest)
		return
	}
	if req.Tier == "" {
		req.Tier = types.TierFree
	}

	ctx := r.Context()
	plan, err := s.store.GetPlanConfig(ctx, req.Tier)
	if err != nil {
		s.sendError(w, err.Error(), http.StatusBadRequest)
		return
	}
	items, err := s.store.ListItems(ctx)
	if err != nil {
		s.logger.Errorf("Failed to list items: %v", err)
		s.sendError(w, "Failed to list items", http.StatusInternalServerError)
		return
	}
	owned := 0
	for _, item := range items {
		if item.OwnerID == req.OwnerID {
			owned++
		}
	}
	if plan.ItemLimit > 0 && owned >= plan.ItemLimit {
		s.sendError(w, fmt.Sprintf("plan %s allows %d items", plan.Tier, plan.ItemLimit), http.StatusConflict)
		return
	}

	item, err := s.store.InsertItem(ctx, types.TrackedItem{
		OwnerID:         req.OwnerID,
		URL:             pageURL,
		Mode:            req.Mode,
		Tier:            req.Tier,
		TargetPrice:     req.TargetPrice,
		SelectedVariant: req.SelectedVariant,
	})
	if err != nil {
		s.logger.Errorf("Failed to insert item: %v", err)
		s.sendError(w, "Failed to store item", http.StatusInternalServerError)
		return
	}
	s.logger.Infof("Tracking %s for %s (%s, %s)", item.URL, item.OwnerID, item.Mode, item.Tier)
	s.send(w, http.StatusCreated, item)
}

// handleCheck runs one immediate check of a tracked item
func (s *Server) handleCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	item, err := s.store.GetItem(ctx, r.PathValue("id"))
	if err != nil {
		s.sendError(w, err.Error(), statusFor(err))
		return
	}

	report, err := s.scheduler.CheckNow(ctx, *item)
	if errors.Is(err, monitor.ErrCheckInFlight) {
		s.sendError(w, err.Error(), http.StatusConflict)
		return
	}
	if err != nil {
		s.sendError(w, err.Error(), http.StatusInternalServerError)
		return
	}

	resp := map[string]interface{}{
		"outcome": report.Outcome,
		"price":   report.Price,
		"alerts":  report.Alerts,
	}
	if report.Result != nil {
		resp["result"] = report.Result
	}
	if report.Err != nil {
		resp["error"] = report.Err.Error()
	}
	s.send(w, http.StatusOK, resp)
}

// handleHealth handles the health check endpoint
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	health := map[string]interface{}{
		"status":    "healthy",
		"in_flight": s.scheduler.InFlight(),
	}
	if s.tabs != nil {
		health["open_tabs"] = s.tabs.ActiveSessions()
	}
	json.NewEncoder(w).Encode(health)
}

func (s *Server) send(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(APIResponse{Success: true, Data: data}); err != nil {
		s.logger.Errorf("Failed to encode response: %v", err)
	}
}

// sendError sends an error response
func (s *Server) sendError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(APIResponse{Success: false, Error: message}); err != nil {
		s.logger.Errorf("Failed to encode error response: %v", err)
	}
}

// newNotifier sends through Telegram when a bot token is configured and
// always logs alerts
func newNotifier(cfg config.Config, logger *logrus.Logger) (monitor.Notifier, error) {
	logNotifier := notify.NewLogNotifier(logger)
	telegram := cfg.Notifications.Telegram
	if telegram.BotToken == "" {
		logger.Info("No TELEGRAM_BOT_TOKEN configured, alerts are only logged")
		return logNotifier, nil
	}

	chatID, err := telegram.DefaultChatID()
	if err != nil {
		return nil, err
	}
	bot, err := notify.NewTelegramBot(telegram.BotToken)
	if err != nil {
		return nil, err
	}
	logger.Infof("Telegram bot authorized as %s", bot.Self.UserName)
	return notify.Multi{logNotifier, notify.NewTelegramNotifier(bot, chatID, telegram.Chats, logger)}, nil
}

func main() {
	// Load .env file if present
	_ = godotenv.Load()

	logger := config.NewLogger(false)
	cfg := config.Load(logger)
	config.ApplyLevel(logger, cfg.Logging.Level)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(ctx, cfg.Database.Driver, cfg.Database.DSN, cfg.PlanTable(), logger)
	if err != nil {
		logger.Fatalf("Failed to open storage: %v", err)
	}
	defer store.Close()

	notifier, err := newNotifier(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to set up notifications: %v", err)
	}

	engine := cfg.EngineConfig()
	loader := extractor.NewLoader(engine, logger)
	defer loader.Close()
	ext := extractor.NewExtractor(engine, logger, loader)

	scheduler := monitor.New(engine, logger, monitor.Deps{
		Extractor: ext,
		Items:     store,
		Cooldowns: store,
		Alerts:    store,
		Notifier:  notifier,
	})
	scheduler.Start(ctx)

	server := NewServer(logger, ext, store, scheduler, engine.CheckTimeout)
	server.tabs, _ = loader.(tabCounter)
	httpServer := &http.Server{
		Addr:              ":" + cfg.API.Port,
		Handler:           server.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Starting API server on port %s", cfg.API.Port)
		logger.Info("Available endpoints:")
		logger.Info("  POST /extract            - Preview price, stock and variants of a product URL")
		logger.Info("  GET  /items              - List tracked items")
		logger.Info("  POST /items              - Track a product")
		logger.Info("  POST /items/{id}/check   - Check a tracked item now")
		logger.Info("  GET  /health             - Health check")
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Errorf("API server failed: %v", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("HTTP shutdown: %v", err)
	}
	scheduler.Stop()
}
