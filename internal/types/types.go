package types

import (
	"context"
	"time"
)

// TrackMode selects which condition raises an alert for a tracked item
type TrackMode string

const (
	ModeDeal    TrackMode = "deal"
	ModeRestock TrackMode = "restock"
)

// PlanTier is the owner's subscription level
type PlanTier string

const (
	TierFree  PlanTier = "free"
	TierPro   PlanTier = "pro"
	TierUltra PlanTier = "ultra"
)

// AlertType identifies the kind of alert fired for an item
type AlertType string

const (
	AlertDeal    AlertType = "deal"
	AlertRestock AlertType = "restock"
)

// VariantType classifies a selectable product dimension
type VariantType string

const (
	VariantSize  VariantType = "size"
	VariantColor VariantType = "color"
)

// TrackedItem is a product page watched on behalf of one owner.
// The engine only ever writes LastPrice, LastStock and LastCheckedAt.
type TrackedItem struct {
	ID              string     `json:"id"`
	OwnerID         string     `json:"owner_id"`
	URL             string     `json:"url"`
	Mode            TrackMode  `json:"mode"`
	Tier            PlanTier   `json:"tier"`
	TargetPrice     *float64   `json:"target_price,omitempty"`
	SelectedVariant string     `json:"selected_variant,omitempty"`
	LastPrice       *float64   `json:"last_price,omitempty"`
	LastStock       *bool      `json:"last_stock,omitempty"`
	LastCheckedAt   *time.Time `json:"last_checked_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
}

// VariantOption is one selectable value inside a variant group
type VariantOption struct {
	Value     string `json:"value"`
	Available bool   `json:"available"`
}

// VariantGroup is a product dimension such as Size or Color.
// Option values are unique and keep first-seen order.
type VariantGroup struct {
	Name    string          `json:"name"`
	Type    VariantType     `json:"type"`
	Options []VariantOption `json:"options"`
}

// ExtractionResult holds the facts read from one product page load
type ExtractionResult struct {
	Title       string            `json:"title"`
	Price       string            `json:"price"`
	Image       string            `json:"image,omitempty"`
	InStock     bool              `json:"in_stock"`
	Variants    []VariantGroup    `json:"variants"`
	HasVariants bool              `json:"has_variants"`
	Adapter     string            `json:"adapter"`
	Sources     map[string]string `json:"sources,omitempty"`
}

// PlanConfig describes what a subscription tier grants
type PlanConfig struct {
	Tier                 PlanTier `json:"tier" yaml:"tier"`
	ItemLimit            int      `json:"item_limit" yaml:"itemLimit"`
	CheckIntervalSeconds int      `json:"check_interval_seconds" yaml:"checkIntervalSeconds"`
	SMSAlerts            bool     `json:"sms_alerts" yaml:"smsAlerts"`
	AutoCheckout         bool     `json:"auto_checkout" yaml:"autoCheckout"`
}

// CheckInterval returns the cadence as a duration
func (p PlanConfig) CheckInterval() time.Duration {
	return time.Duration(p.CheckIntervalSeconds) * time.Second
}

// PlanTable maps each tier to its plan
type PlanTable map[PlanTier]PlanConfig

// Lookup returns the plan for tier. Unknown tiers get the Free plan.
func (t PlanTable) Lookup(tier PlanTier) PlanConfig {
	if p, ok := t[tier]; ok {
		return p
	}
	return t[TierFree]
}

// DefaultPlans returns the built-in plan table
func DefaultPlans() PlanTable {
	return PlanTable{
		TierFree:  {Tier: TierFree, ItemLimit: 3, CheckIntervalSeconds: 24 * 60 * 60},
		TierPro:   {Tier: TierPro, ItemLimit: 25, CheckIntervalSeconds: 12 * 60 * 60},
		TierUltra: {Tier: TierUltra, ItemLimit: 100, CheckIntervalSeconds: 6 * 60 * 60, SMSAlerts: true, AutoCheckout: true},
	}
}

// AlertPayload is the content handed to the alert dispatcher
type AlertPayload struct {
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	Price         float64  `json:"price,omitempty"`
	PreviousPrice *float64 `json:"previous_price,omitempty"`
	TargetPrice   *float64 `json:"target_price,omitempty"`
	InStock       bool     `json:"in_stock"`
	Variant       string   `json:"variant,omitempty"`
	Channels      []string `json:"channels,omitempty"`
}

// AlertEvent is an append-only record of a fired alert
type AlertEvent struct {
	ID        string       `json:"id"`
	OwnerID   string       `json:"owner_id"`
	ItemID    string       `json:"item_id"`
	AlertType AlertType    `json:"alert_type"`
	Payload   AlertPayload `json:"payload"`
	Timestamp time.Time    `json:"timestamp"`
}

// CooldownEntry remembers the last dispatched alert per (item, alert type)
type CooldownEntry struct {
	ItemID         string    `json:"item_id"`
	AlertType      AlertType `json:"alert_type"`
	LastFiredAt    time.Time `json:"last_fired_at"`
	LastFiredValue float64   `json:"last_fired_value"`
}

// CheckResult is what the scheduler persists after a successful check.
// A nil Price means the page price could not be parsed and the stored one stays.
type CheckResult struct {
	Price     *float64
	Stock     bool
	CheckedAt time.Time
}

// Config holds the configuration for the extraction engine and scheduler
type Config struct {
	RequestDelay          time.Duration
	MaxRetries            int
	Timeout               time.Duration // page navigation
	StageTimeout          time.Duration // per extraction-stage waits
	CheckTimeout          time.Duration // whole check, navigation included
	MaxConcurrentRequests int           // worker pool size
	UseHeadlessBrowser    bool
	UserAgent             string
	Headers               map[string]string
	BlockedURLs           []string
	SweepInterval         time.Duration
	CooldownWindow        time.Duration
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		RequestDelay:          1 * time.Second,
		MaxRetries:            3,
		Timeout:               30 * time.Second,
		StageTimeout:          5 * time.Second,
		CheckTimeout:          60 * time.Second,
		MaxConcurrentRequests: 4,
		UseHeadlessBrowser:    true,
		UserAgent:             "Mozilla/5.0 (Macintosh; Intel Mac OS X 10_15_7) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36",
		Headers: map[string]string{
			"Accept-Language": "de-DE,de;q=0.9,en-US;q=0.8,en;q=0.7",
		},
		BlockedURLs: []string{
			"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg",
			"*.woff", "*.woff2", "*.ttf", "*.mp4", "*.webm",
			"*google-analytics.com*", "*googletagmanager.com*", "*doubleclick.net*",
		},
		SweepInterval:  5 * time.Minute,
		CooldownWindow: 2 * time.Hour,
	}
}

// Logger defines the logging interface
type Logger interface {
	Debug(args ...interface{})
	Info(args ...interface{})
	Warn(args ...interface{})
	Error(args ...interface{})
	Debugf(format string, args ...interface{})
	Infof(format string, args ...interface{})
	Warnf(format string, args ...interface{})
	Errorf(format string, args ...interface{})
}

// PageLoader obtains a loaded, queryable document for a URL.
// waitFor lists selectors worth waiting for once navigation finished.
type PageLoader interface {
	Load(ctx context.Context, url string, waitFor []string) (Document, error)
}
