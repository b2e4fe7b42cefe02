// Package monitor sweeps tracked items, re-checks the due ones through a
// bounded worker pool and raises deduplicated alerts.
package monitor

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"pricewatch/internal/price"
	"pricewatch/internal/types"

	"github.com/google/uuid"
)

// ErrCheckInFlight is returned by CheckNow when the item is already being checked
var ErrCheckInFlight = errors.New("check already in flight")

// Extractor turns a product URL into extraction facts
type Extractor interface {
	Extract(ctx context.Context, url, selectedVariant string) (*types.ExtractionResult, error)
}

// ItemRepository stores tracked items and the plan table
type ItemRepository interface {
	ListDueItems(ctx context.Context, now time.Time) ([]types.TrackedItem, error)
	UpdateCheckResult(ctx context.Context, itemID string, result types.CheckResult) error
	GetPlanConfig(ctx context.Context, tier types.PlanTier) (types.PlanConfig, error)
}

// AlertLog is the append-only record of fired alerts
type AlertLog interface {
	AppendAlert(ctx context.Context, event types.AlertEvent) error
}

// Notifier delivers alerts. Delivery failures are logged, never retried here.
type Notifier interface {
	Notify(ctx context.Context, ownerID, itemID string, alertType types.AlertType, payload types.AlertPayload) error
}

// Deps are the collaborators of a Scheduler
type Deps struct {
	Extractor Extractor
	Items     ItemRepository
	Cooldowns CooldownStore
	Alerts    AlertLog
	Notifier  Notifier
}

// Outcome is the terminal state of one item check
type Outcome string

const (
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
	OutcomeFailed    Outcome = "failed"
)

// Report describes one finished item check
type Report struct {
	ItemID     string
	Outcome    Outcome
	Result     *types.ExtractionResult
	Price      *float64
	Alerts     []types.AlertEvent
	Suppressed int
	Err        error
}

// SweepStats summarizes one sweep
type SweepStats struct {
	Listed          int
	Dispatched      int
	SkippedNotDue   int
	SkippedInFlight int
	Updated         int
	Unchanged       int
	Failed          int
	Alerts          int
	Suppressed      int
}

func (s *SweepStats) add(r Report) {
	switch r.Outcome {
	case OutcomeUpdated:
		s.Updated++
	case OutcomeUnchanged:
		s.Unchanged++
	case OutcomeFailed:
		s.Failed++
	}
	s.Alerts += len(r.Alerts)
	s.Suppressed += r.Suppressed
}

// Scheduler runs periodic sweeps over the tracked items
type Scheduler struct {
	config *types.Config
	logger types.Logger
	deps   Deps
	gate   *Gate
	now    func() time.Time

	sem      chan struct{}
	mu       sync.Mutex
	inFlight map[string]struct{}
	checks   sync.WaitGroup

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// New creates a scheduler
func New(config *types.Config, logger types.Logger, deps Deps) *Scheduler {
	workers := config.MaxConcurrentRequests
	if workers <= 0 {
		workers = 1
	}
	return &Scheduler{
		config:   config,
		logger:   logger,
		deps:     deps,
		gate:     NewGate(deps.Cooldowns, config.CooldownWindow),
		now:      time.Now,
		sem:      make(chan struct{}, workers),
		inFlight: make(map[string]struct{}),
		stop:     make(chan struct{}),
	}
}

// IsDue reports whether the plan's check interval has elapsed since the last check
func IsDue(item types.TrackedItem, plan types.PlanConfig, now time.Time) bool {
	if item.LastCheckedAt == nil {
		return true
	}
	return now.Sub(*item.LastCheckedAt) >= plan.CheckInterval()
}

// Start sweeps immediately and then every SweepInterval until ctx is done or
// Stop is called
func (s *Scheduler) Start(ctx context.Context) {
	s.done = make(chan struct{})
	go s.run(ctx)
}

func (s *Scheduler) run(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.config.SweepInterval)
	defer ticker.Stop()

	for {
		sweepCtx, cancel := context.WithCancel(ctx)
		go func() {
			select {
			case <-s.stop:
				cancel()
			case <-sweepCtx.Done():
			}
		}()
		if _, err := s.Sweep(sweepCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.logger.Errorf("Sweep failed: %v", err)
		}
		cancel()

		select {
		case <-ctx.Done():
			return
		case <-s.stop:
			return
		case <-ticker.C:
		}
	}
}

// Stop ends the sweep loop and waits for in-flight checks to finish
func (s *Scheduler) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
	if s.done != nil {
		<-s.done
	}
	s.checks.Wait()
}

// Sweep lists due items and checks them through the worker pool. Cancelling
// ctx stops further dispatches; checks already dispatched run to completion.
func (s *Scheduler) Sweep(ctx context.Context) (SweepStats, error) {
	var stats SweepStats
	startTime := s.now()

	items, err := s.deps.Items.ListDueItems(ctx, startTime)
	if err != nil {
		return stats, fmt.Errorf("failed to list due items: %w", err)
	}
	stats.Listed = len(items)

	var mu sync.Mutex
	var sweep sync.WaitGroup

dispatch:
	for _, item := range items {
		if ctx.Err() != nil {
			s.logger.Infof("Sweep cancelled after %d dispatches", stats.Dispatched)
			break
		}

		plan, err := s.deps.Items.GetPlanConfig(ctx, item.Tier)
		if err != nil {
			s.logger.Warnf("No plan for item %s (tier %q): %v", item.ID, item.Tier, err)
			continue
		}
		if !IsDue(item, plan, startTime) {
			stats.SkippedNotDue++
			continue
		}
		if !s.claim(item.ID) {
			stats.SkippedInFlight++
			continue
		}

		select {
		case s.sem <- struct{}{}:
		case <-ctx.Done():
			s.release(item.ID)
			s.logger.Infof("Sweep cancelled after %d dispatches", stats.Dispatched)
			break dispatch
		}

		stats.Dispatched++
		sweep.Add(1)
		s.checks.Add(1)
		go func(item types.TrackedItem, plan types.PlanConfig) {
			defer sweep.Done()
			defer s.checks.Done()
			defer func() { <-s.sem }()
			defer s.release(item.ID)

			report := s.check(context.WithoutCancel(ctx), item, plan)

			mu.Lock()
			stats.add(report)
			mu.Unlock()
		}(item, plan)
	}

	sweep.Wait()

	s.logger.Infof("Sweep finished in %v: listed=%d dispatched=%d not_due=%d in_flight=%d updated=%d unchanged=%d failed=%d alerts=%d suppressed=%d",
		s.now().Sub(startTime), stats.Listed, stats.Dispatched, stats.SkippedNotDue, stats.SkippedInFlight,
		stats.Updated, stats.Unchanged, stats.Failed, stats.Alerts, stats.Suppressed)
	return stats, nil
}

// CheckNow checks one item immediately, regardless of its due time. It shares
// the worker pool and the in-flight set with sweeps.
func (s *Scheduler) CheckNow(ctx context.Context, item types.TrackedItem) (Report, error) {
	plan, err := s.deps.Items.GetPlanConfig(ctx, item.Tier)
	if err != nil {
		return Report{}, fmt.Errorf("failed to get plan for tier %q: %w", item.Tier, err)
	}
	if !s.claim(item.ID) {
		return Report{}, fmt.Errorf("%w: %s", ErrCheckInFlight, item.ID)
	}
	defer s.release(item.ID)

	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return Report{}, ctx.Err()
	}
	defer func() { <-s.sem }()

	s.checks.Add(1)
	defer s.checks.Done()

	return s.check(ctx, item, plan), nil
}

// InFlight returns the number of items currently being checked
func (s *Scheduler) InFlight() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.inFlight)
}

func (s *Scheduler) claim(itemID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inFlight[itemID]; busy {
		return false
	}
	s.inFlight[itemID] = struct{}{}
	return true
}

func (s *Scheduler) release(itemID string) {
	s.mu.Lock()
	delete(s.inFlight, itemID)
	s.mu.Unlock()
}

// check runs Checking -> {Updated | Unchanged | Failed} for one item
func (s *Scheduler) check(ctx context.Context, item types.TrackedItem, plan types.PlanConfig) Report {
	report := Report{ItemID: item.ID}

	checkCtx, cancel := context.WithTimeout(ctx, s.config.CheckTimeout)
	defer cancel()

	result, err := s.deps.Extractor.Extract(checkCtx, item.URL, item.SelectedVariant)
	if err != nil {
		s.logger.Warnf("Check of item %s (%s) failed: %v", item.ID, item.URL, err)
		report.Outcome, report.Err = OutcomeFailed, err
		return report
	}
	report.Result = result

	if v := price.Normalize(result.Price); v > 0 {
		report.Price = &v
	} else if result.Price != "" {
		s.logger.Debugf("Item %s: %v: %q", item.ID, types.ErrParseFailure, result.Price)
	}

	checkedAt := s.now()
	err = s.deps.Items.UpdateCheckResult(ctx, item.ID, types.CheckResult{
		Price:     report.Price,
		Stock:     result.InStock,
		CheckedAt: checkedAt,
	})
	if err != nil {
		s.logger.Errorf("Failed to store check result for item %s: %v", item.ID, err)
		report.Outcome, report.Err = OutcomeFailed, err
		return report
	}

	if !priceChanged(item.LastPrice, report.Price) && !stockChanged(item.LastStock, result.InStock) {
		report.Outcome = OutcomeUnchanged
		s.logger.Debugf("Item %s unchanged", item.ID)
		return report
	}

	report.Outcome = OutcomeUpdated
	s.logger.Debugf("Item %s updated: price %s -> %s, in stock %s -> %v",
		item.ID, formatPrice(item.LastPrice), formatPrice(report.Price), formatStock(item.LastStock), result.InStock)

	s.evaluateAlerts(ctx, item, plan, result, &report, checkedAt)
	return report
}

// evaluateAlerts fires the alert the item's mode asks for, through the cooldown gate
func (s *Scheduler) evaluateAlerts(ctx context.Context, item types.TrackedItem, plan types.PlanConfig, result *types.ExtractionResult, report *Report, now time.Time) {
	switch item.Mode {
	case types.ModeDeal:
		if report.Price == nil || item.TargetPrice == nil || *report.Price > *item.TargetPrice {
			return
		}
		// a stock-only change says nothing new about the price
		if !priceChanged(item.LastPrice, report.Price) {
			return
		}
		s.dispatch(ctx, item, plan, result, report, types.AlertDeal, *report.Price, now)

	case types.ModeRestock:
		if item.LastStock == nil {
			return
		}
		if *item.LastStock && !result.InStock {
			if err := s.gate.Rearm(ctx, item.ID); err != nil {
				s.logger.Errorf("Failed to rearm restock cooldown for item %s: %v", item.ID, err)
			}
			return
		}
		if !*item.LastStock && result.InStock {
			s.dispatch(ctx, item, plan, result, report, types.AlertRestock, restockFired, now)
		}
	}
}

func (s *Scheduler) dispatch(ctx context.Context, item types.TrackedItem, plan types.PlanConfig, result *types.ExtractionResult, report *Report, alertType types.AlertType, value float64, now time.Time) {
	allowed, err := s.gate.Allow(ctx, item.ID, alertType, value, now)
	if err != nil {
		// an unreadable cooldown must not swallow the alert
		s.logger.Errorf("Cooldown lookup failed, dispatching anyway: %v", err)
		allowed = true
	}
	if !allowed {
		report.Suppressed++
		s.logger.Infof("Suppressed %s alert for item %s (cooldown)", alertType, item.ID)
		return
	}

	event := types.AlertEvent{
		ID:        uuid.NewString(),
		OwnerID:   item.OwnerID,
		ItemID:    item.ID,
		AlertType: alertType,
		Payload:   buildPayload(item, plan, result, report.Price),
		Timestamp: now,
	}

	if err := s.deps.Alerts.AppendAlert(ctx, event); err != nil {
		s.logger.Errorf("Failed to append %s alert for item %s: %v", alertType, item.ID, err)
		return
	}
	if err := s.gate.Record(ctx, item.ID, alertType, value, now); err != nil {
		s.logger.Errorf("%v", err)
	}
	report.Alerts = append(report.Alerts, event)
	s.logger.Infof("Fired %s alert %s for item %s (owner %s)", alertType, event.ID, item.ID, item.OwnerID)

	if err := s.deps.Notifier.Notify(ctx, item.OwnerID, item.ID, alertType, event.Payload); err != nil {
		s.logger.Warnf("Alert delivery for item %s failed: %v", item.ID, err)
	}
}

func buildPayload(item types.TrackedItem, plan types.PlanConfig, result *types.ExtractionResult, current *float64) types.AlertPayload {
	payload := types.AlertPayload{
		Title:         result.Title,
		URL:           item.URL,
		PreviousPrice: item.LastPrice,
		TargetPrice:   item.TargetPrice,
		InStock:       result.InStock,
		Variant:       item.SelectedVariant,
		Channels:      []string{"push"},
	}
	if current != nil {
		payload.Price = *current
	}
	if plan.SMSAlerts {
		payload.Channels = append(payload.Channels, "sms")
	}
	return payload
}

// priceChanged ignores unparsed prices: the stored one is kept
func priceChanged(last, current *float64) bool {
	if current == nil {
		return false
	}
	return last == nil || *last != *current
}

func stockChanged(last *bool, current bool) bool {
	return last == nil || *last != current
}

func formatPrice(p *float64) string {
	if p == nil {
		return "-"
	}
	return price.Format(*p)
}

func formatStock(b *bool) string {
	if b == nil {
		return "-"
	}
	return fmt.Sprintf("%v", *b)
}
