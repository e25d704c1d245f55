package engine

import (
	"context"
	"errors"
	"sync"
	"time"

	"investtracker/internal/alerting"
	"investtracker/internal/logger"
	"investtracker/internal/models"
	"investtracker/internal/quotes"
	"investtracker/internal/valuation"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// ErrCycleInProgress is returned by RunCycle while another cycle is running.
var ErrCycleInProgress = errors.New("evaluation cycle already in progress")

// Config bounds a cycle's fetches and commit retries.
type Config struct {
	CycleTimeout      time.Duration
	QuoteTimeout      time.Duration
	QuoteConcurrency  int
	QuoteMaxAge       time.Duration
	CommitMaxAttempts int
	CommitBackoff     time.Duration
}

// CycleResult contains the outcome of one evaluation cycle.
type CycleResult struct {
	RulesLoaded    int           `json:"rules_loaded"`
	QuotesFetched  int           `json:"quotes_fetched"`
	QuoteErrors    int           `json:"quote_errors"`
	PricesRecorded int           `json:"prices_recorded"`
	Evaluated      int           `json:"evaluated"`
	Fired          int           `json:"fired"`
	StateChanges   int           `json:"state_changes"`
	Skipped        int           `json:"skipped"`
	Quarantined    int           `json:"quarantined"`
	Deferred       int           `json:"deferred"`
	Duration       time.Duration `json:"-"`
	DurationMS     int64         `json:"duration_ms"`
}

// Runner executes evaluation cycles. At most one cycle runs at a time.
type Runner struct {
	store  Store
	source quotes.Source
	cfg    Config
	log    *zap.SugaredLogger
	now    func() time.Time

	mu sync.Mutex
}

// NewRunner creates a Runner.
func NewRunner(store Store, source quotes.Source, cfg Config) *Runner {
	if cfg.CommitMaxAttempts <= 0 {
		cfg.CommitMaxAttempts = 1
	}
	if cfg.QuoteConcurrency <= 0 {
		cfg.QuoteConcurrency = 1
	}
	return &Runner{
		store:  store,
		source: source,
		cfg:    cfg,
		log:    logger.Named("engine"),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// RunCycle evaluates every active rule once against fresh quotes.
//
// Quote failures only skip the affected rules. A rule whose commit keeps
// failing is deferred to the next cycle. The returned error is non-nil only
// when the cycle could not start or the rules could not be loaded.
func (r *Runner) RunCycle(ctx context.Context) (*CycleResult, error) {
	if !r.mu.TryLock() {
		return nil, ErrCycleInProgress
	}
	defer r.mu.Unlock()

	start := time.Now()
	result := &CycleResult{}
	defer func() {
		result.Duration = time.Since(start)
		result.DurationMS = result.Duration.Milliseconds()
	}()

	if r.cfg.CycleTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.cfg.CycleTimeout)
		defer cancel()
	}

	// 1. Load active rules with their assets.
	rules, err := r.store.LoadActiveRules(ctx)
	if err != nil {
		return nil, err
	}
	result.RulesLoaded = len(rules)
	if len(rules) == 0 {
		r.log.Debug("no active alert rules, nothing to do")
		return result, nil
	}

	// 2. Fetch one quote per distinct key.
	prices := r.fetchPrices(ctx, rules, result)

	// 3. Value each asset referenced by a rule.
	snapshots := r.valueAssets(rules, prices)

	// 4. Decide and commit rule by rule.
	commitCtx := context.WithoutCancel(ctx)
	for i := range rules {
		if err := ctx.Err(); err != nil {
			remaining := len(rules) - i
			result.Deferred += remaining
			r.log.Warnw("cycle deadline reached, deferring remaining rules", "remaining", remaining, "error", err)
			break
		}
		rule := &rules[i]
		if rule.Asset == nil {
			result.Skipped++
			continue
		}
		r.processRule(ctx, commitCtx, rule, snapshots[rule.AssetID], result)
	}

	r.log.Infow("evaluation cycle completed",
		"rules", result.RulesLoaded,
		"fired", result.Fired,
		"state_changes", result.StateChanges,
		"skipped", result.Skipped,
		"quarantined", result.Quarantined,
		"deferred", result.Deferred,
		"quote_errors", result.QuoteErrors,
	)
	return result, nil
}

func (r *Runner) fetchPrices(ctx context.Context, rules []models.AlertRule, result *CycleResult) map[quotes.Key]decimal.Decimal {
	seen := make(map[quotes.Key]bool)
	var keys []quotes.Key
	for _, rule := range rules {
		if rule.Asset == nil {
			continue
		}
		key := assetKey(rule.Asset)
		if !seen[key] {
			seen[key] = true
			keys = append(keys, key)
		}
	}

	batch := quotes.FetchAll(ctx, r.source, keys, r.cfg.QuoteConcurrency, r.cfg.QuoteTimeout)
	for _, fe := range batch.Errors {
		r.log.Warnw("quote unavailable", "ticker", fe.Key.Ticker, "market", fe.Key.Market, "error", fe.Err)
	}
	result.QuoteErrors = len(batch.Errors)

	now := r.now()
	prices := make(map[quotes.Key]decimal.Decimal, len(batch.Quotes))
	fresh := make([]quotes.Quote, 0, len(batch.Quotes))
	for key, q := range batch.Quotes {
		if !q.Fresh(now, r.cfg.QuoteMaxAge) {
			r.log.Warnw("stale quote ignored", "ticker", key.Ticker, "market", key.Market, "observed_at", q.ObservedAt)
			continue
		}
		prices[key] = q.Price
		fresh = append(fresh, q)
	}
	result.QuotesFetched = len(batch.Quotes)

	// Stale quotes stay out of the price history.
	recorded, err := r.store.RecordPrices(context.WithoutCancel(ctx), fresh)
	if err != nil {
		r.log.Errorw("failed to record prices", "error", err)
	}
	result.PricesRecorded = recorded
	return prices
}

// valueAssets returns the valuation of every asset referenced by rules, keyed by asset id.
func (r *Runner) valueAssets(rules []models.AlertRule, prices map[quotes.Key]decimal.Decimal) map[string]valuation.Position {
	lookup := func(a *models.Asset) (decimal.Decimal, bool) {
		p, ok := prices[assetKey(a)]
		return p, ok
	}

	snapshots := make(map[string]valuation.Position)
	for _, rule := range rules {
		a := rule.Asset
		if a == nil {
			continue
		}
		if _, done := snapshots[a.ID]; done {
			continue
		}
		p, err := valuation.Evaluate([]models.Asset{*a}, lookup)
		if err != nil {
			r.log.Errorw("invalid holding, rules on this asset are skipped", "asset_id", a.ID, "error", err)
			snapshots[a.ID] = valuation.Position{Asset: a}
			continue
		}
		snapshots[a.ID] = p.Positions[0]
	}
	return snapshots
}

// processRule evaluates and commits one rule, re-evaluating on conflict.
func (r *Runner) processRule(ctx, commitCtx context.Context, rule *models.AlertRule, pos valuation.Position, result *CycleResult) {
	backoff := r.cfg.CommitBackoff
	for attempt := 1; ; attempt++ {
		now := r.now()
		dec := alerting.Evaluate(rule, rule.Asset, pos.CurrentPrice, now)

		err := r.commit(commitCtx, rule, dec, now)
		if err == nil {
			r.tally(rule, dec, result)
			return
		}

		log := r.log.With("rule_id", rule.ID, "attempt", attempt, "outcome", dec.Outcome.String())
		if attempt >= r.cfg.CommitMaxAttempts || !r.sleep(ctx, backoff) {
			result.Deferred++
			log.Warnw("commit failed, deferring rule to next cycle", "error", err)
			return
		}
		log.Infow("commit failed, retrying", "error", err, "backoff", backoff)
		backoff *= 2

		if errors.Is(err, ErrPersistenceConflict) {
			fresh, rerr := r.store.ReloadRule(commitCtx, rule.ID)
			if errors.Is(rerr, ErrRuleGone) {
				result.Skipped++
				return
			}
			if rerr != nil {
				result.Deferred++
				log.Warnw("failed to reload rule after conflict", "error", rerr)
				return
			}
			if fresh.Asset == nil || fresh.AssetID != rule.AssetID {
				result.Skipped++
				return
			}
			// The price in hand belongs to the old quote key. The rule stays
			// unknown until the new instrument is observed next cycle.
			if assetKey(fresh.Asset) != assetKey(rule.Asset) {
				result.Skipped++
				return
			}
			rule = fresh
		}
	}
}

func (r *Runner) commit(ctx context.Context, rule *models.AlertRule, dec alerting.Decision, now time.Time) error {
	switch dec.Outcome {
	case alerting.StateChange:
		return r.store.CommitRuleState(ctx, rule, dec.Side, true)
	case alerting.Quarantine:
		return r.store.CommitRuleState(ctx, rule, models.SideUnknown, false)
	case alerting.Fire:
		_, err := r.store.CommitRuleFiring(ctx, rule, Firing{
			Price:     dec.Price,
			Threshold: dec.Threshold,
			Side:      dec.Side,
			Message:   dec.Message,
			Title:     alerting.Title(rule.AlertType, rule.Asset.Ticker),
			FiredAt:   now,
		})
		return err
	}
	return nil
}

func (r *Runner) tally(rule *models.AlertRule, dec alerting.Decision, result *CycleResult) {
	switch dec.Outcome {
	case alerting.Skip:
		result.Skipped++
	case alerting.NoChange:
		result.Evaluated++
	case alerting.StateChange:
		result.Evaluated++
		result.StateChanges++
	case alerting.Fire:
		result.Evaluated++
		result.Fired++
		r.log.Infow("alert fired", "rule_id", rule.ID, "user_id", rule.UserID, "ticker", rule.Asset.Ticker,
			"price", dec.Price.String(), "threshold", dec.Threshold.String())
	case alerting.Quarantine:
		result.Quarantined++
		r.log.Errorw("alert rule state inconsistent, rule deactivated",
			"rule_id", rule.ID,
			"reason", dec.Reason,
			"last_triggered_at", rule.LastTriggeredAt,
			"activated_at", rule.ActivatedAt,
		)
	}
}

// sleep waits for d unless ctx ends first or the wait would overrun ctx's
// deadline. It reports whether the full wait happened.
func (r *Runner) sleep(ctx context.Context, d time.Duration) bool {
	if deadline, ok := ctx.Deadline(); ok && time.Now().Add(d).After(deadline) {
		return false
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func assetKey(a *models.Asset) quotes.Key {
	return quotes.NewKey(a.Ticker, a.Market, string(a.AssetType))
}
