package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"carteira/internal/core"
	"carteira/internal/ledger"
)

// RecurringProcessorConfig holds configuration for the recurring processor
type RecurringProcessorConfig struct {
	// PollInterval is how often due rules are checked (default: 1h)
	PollInterval time.Duration

	// MaxCatchUp bounds how many missed occurrences one rule may generate
	// in a single pass (default: 31)
	MaxCatchUp int
}

// DefaultRecurringProcessorConfig returns sensible defaults
func DefaultRecurringProcessorConfig() RecurringProcessorConfig {
	return RecurringProcessorConfig{
		PollInterval: time.Hour,
		MaxCatchUp:   31,
	}
}

// RecurringProcessor turns due recurring rules into planned transactions.
type RecurringProcessor struct {
	store        ledger.Store
	transactions *TransactionService
	config       RecurringProcessorConfig
	now          func() time.Time

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewRecurringProcessor(store ledger.Store, transactions *TransactionService, config RecurringProcessorConfig) *RecurringProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultRecurringProcessorConfig().PollInterval
	}
	if config.MaxCatchUp < 1 {
		config.MaxCatchUp = DefaultRecurringProcessorConfig().MaxCatchUp
	}
	return &RecurringProcessor{
		store:        store,
		transactions: transactions,
		config:       config,
		now:          func() time.Time { return time.Now().UTC() },
	}
}

// Start begins the polling loop. Returns an error if already running.
func (p *RecurringProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("recurring processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	go p.runLoop(ctx, stopCh, doneCh)

	slog.InfoContext(ctx, "Recurring processor started",
		"poll_interval", p.config.PollInterval,
		"max_catch_up", p.config.MaxCatchUp)
	return nil
}

// Stop signals the loop and waits for the current pass to finish. Only the
// first of concurrent callers closes the loop; the rest return nil.
func (p *RecurringProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	stopCh, doneCh := p.stopCh, p.doneCh
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Recurring processor stopped gracefully")
	case <-ctx.Done():
		slog.WarnContext(ctx, "Recurring processor stop timed out")
		return ctx.Err()
	}
	return nil
}

func (p *RecurringProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

func (p *RecurringProcessor) runLoop(ctx context.Context, stopCh <-chan struct{}, doneCh chan struct{}) {
	defer close(doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.runOnce(ctx)

	for {
		select {
		case <-stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.runOnce(ctx)
		}
	}
}

func (p *RecurringProcessor) runOnce(ctx context.Context) {
	if _, err := p.ProcessDue(ctx, p.now()); err != nil {
		slog.ErrorContext(ctx, "Recurring processing failed", "error", err)
	}
}

// ProcessDue generates the transactions of every rule due at now and moves
// each rule to its next occurrence. It returns the number of transactions
// created. A failing rule is logged and left due for the next pass.
func (p *RecurringProcessor) ProcessDue(ctx context.Context, now time.Time) (int, error) {
	rules, err := p.store.DueRecurringRules(ctx, now)
	if err != nil {
		return 0, fmt.Errorf("load due recurring rules: %w", err)
	}

	slog.InfoContext(ctx, "Processing recurring rules",
		"due", len(rules),
		"processing_date", now.Format(core.DateLayout))

	created := 0
	for _, r := range rules {
		if ctx.Err() != nil {
			return created, ctx.Err()
		}
		n, err := p.processRule(ctx, r, now)
		created += n
		if err != nil {
			slog.ErrorContext(ctx, "Failed to process recurring rule",
				"rule_id", r.ID,
				"name", r.Name,
				"error", err)
		}
	}

	slog.InfoContext(ctx, "Recurring processing complete",
		"created", created,
		"total_checked", len(rules))
	return created, nil
}

func (p *RecurringProcessor) processRule(ctx context.Context, r core.RecurringRule, now time.Time) (int, error) {
	sched, err := GetScheduler(r.Frequency)
	if err != nil {
		return 0, err
	}

	created := 0
	occ := r.NextOccurrenceAt
	for i := 0; i < p.config.MaxCatchUp && !occ.After(now) && r.Active(occ); i++ {
		if r.Amount == nil {
			slog.InfoContext(ctx, "Recurring reminder due",
				"rule_id", r.ID,
				"name", r.Name,
				"date", occ.Format(core.DateLayout))
		} else {
			tx := core.Transaction{
				UserID:      r.UserID,
				Date:        occ,
				Description: r.Name,
				CategoryID:  r.CategoryID,
				Flow:        r.Flow,
				Amount:      *r.Amount,
				AccountID:   r.AccountID,
				CardID:      r.CardID,
				Planned:     true,
			}
			if _, err := p.transactions.CreateFromRule(ctx, tx); err != nil {
				// Occurrences before occ are already stored.
				if created > 0 {
					if aerr := p.store.AdvanceRecurringRule(ctx, r.ID, occ); aerr != nil {
						slog.ErrorContext(ctx, "Failed to advance recurring rule", "rule_id", r.ID, "error", aerr)
					}
				}
				return created, fmt.Errorf("create transaction for %s: %w", occ.Format(core.DateLayout), err)
			}
			created++
		}
		occ = sched.Next(occ, r.StartDate)
	}

	if !r.Active(occ) {
		if err := p.store.DeleteRecurringRule(ctx, r.UserID, r.ID); err != nil {
			return created, fmt.Errorf("remove ended rule: %w", err)
		}
		slog.InfoContext(ctx, "Recurring rule ended", "rule_id", r.ID, "name", r.Name)
		return created, nil
	}

	if err := p.store.AdvanceRecurringRule(ctx, r.ID, occ); err != nil {
		return created, fmt.Errorf("advance rule: %w", err)
	}
	slog.DebugContext(ctx, "Recurring rule advanced",
		"rule_id", r.ID,
		"generated", created,
		"next_occurrence", occ.Format(core.DateLayout))
	return created, nil
}
