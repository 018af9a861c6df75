package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"cassa/internal/bus"
	"cassa/internal/core"
	"cassa/internal/sheets"
	"cassa/internal/storage"
)

// SyncProcessorConfig holds configuration for the ledger sync processor
type SyncProcessorConfig struct {
	// PollInterval is how often to sweep for unexported expenses (default: 5m)
	PollInterval time.Duration

	// BatchSize is the max number of expenses appended per sweep (default: 25)
	BatchSize int

	// InvoiceBaseURL resolves relative invoice paths into links
	InvoiceBaseURL string
}

// DefaultSyncProcessorConfig returns sensible defaults
func DefaultSyncProcessorConfig() SyncProcessorConfig {
	return SyncProcessorConfig{
		PollInterval: 5 * time.Minute,
		BatchSize:    25,
	}
}

// SyncProcessor exports approved expenses to the ledger. It sweeps on a
// timer and whenever it is kicked, so approvals show up promptly and rows
// missed by a failed append are picked up later.
type SyncProcessor struct {
	storage *storage.SQLiteRepository
	ledger  sheets.LedgerWriter
	config  SyncProcessorConfig

	kick chan struct{}

	// Lifecycle management
	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	doneCh  chan struct{}
}

func NewSyncProcessor(storage *storage.SQLiteRepository, ledger sheets.LedgerWriter, config SyncProcessorConfig) *SyncProcessor {
	if config.PollInterval <= 0 {
		config.PollInterval = DefaultSyncProcessorConfig().PollInterval
	}
	if config.BatchSize <= 0 {
		config.BatchSize = DefaultSyncProcessorConfig().BatchSize
	}
	return &SyncProcessor{
		storage: storage,
		ledger:  ledger,
		config:  config,
		kick:    make(chan struct{}, 1),
	}
}

// Start begins the processing loop. Returns an error if already running.
func (p *SyncProcessor) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.running {
		p.mu.Unlock()
		return fmt.Errorf("sync processor is already running")
	}
	p.running = true
	p.stopCh = make(chan struct{})
	p.doneCh = make(chan struct{})
	p.mu.Unlock()

	go p.runLoop(ctx)

	slog.InfoContext(ctx, "Sync processor started",
		"poll_interval", p.config.PollInterval,
		"batch_size", p.config.BatchSize)
	return nil
}

// Stop gracefully stops the processor and waits for completion.
func (p *SyncProcessor) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	stopCh, doneCh := p.stopCh, p.doneCh
	p.running = false
	p.mu.Unlock()

	close(stopCh)

	select {
	case <-doneCh:
		slog.InfoContext(ctx, "Sync processor stopped gracefully")
		return nil
	case <-ctx.Done():
		slog.WarnContext(ctx, "Sync processor stop timed out")
		return ctx.Err()
	}
}

func (p *SyncProcessor) IsRunning() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.running
}

// Kick requests a sweep without waiting for the next tick. Kicks coalesce.
func (p *SyncProcessor) Kick() {
	select {
	case p.kick <- struct{}{}:
	default:
	}
}

// Subscribe kicks the processor on every expense change.
func (p *SyncProcessor) Subscribe(b *bus.Bus) func() {
	return b.Subscribe(bus.DataMutated, func(_ context.Context, ev bus.Event) error {
		if ev.Kind == KindExpense {
			p.Kick()
		}
		return nil
	})
}

func (p *SyncProcessor) runLoop(ctx context.Context) {
	defer close(p.doneCh)

	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.sweep(ctx)

	for {
		select {
		case <-p.stopCh:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.sweep(ctx)
		case <-p.kick:
			p.sweep(ctx)
		}
	}
}

func (p *SyncProcessor) sweep(ctx context.Context) {
	for {
		n, err := p.ProcessBatch(ctx)
		if err != nil {
			slog.ErrorContext(ctx, "Ledger sync failed", "error", err)
			return
		}
		if n < p.config.BatchSize {
			return
		}
	}
}

// ProcessBatch appends one batch of unexported approved expenses and marks
// them synced. It returns how many were exported.
func (p *SyncProcessor) ProcessBatch(ctx context.Context) (int, error) {
	pending, err := p.storage.ListUnsyncedApproved(ctx, p.config.BatchSize)
	if err != nil {
		return 0, fmt.Errorf("list unsynced expenses: %w", err)
	}
	if len(pending) == 0 {
		return 0, nil
	}

	rows, err := p.ledgerRows(ctx, pending)
	if err != nil {
		return 0, err
	}
	ref, err := p.ledger.Append(ctx, rows)
	if err != nil {
		return 0, fmt.Errorf("append to ledger: %w", err)
	}

	exported := 0
	for _, e := range pending {
		if err := p.storage.MarkSynced(ctx, e.ID); err != nil {
			// The row is in the ledger; it will be appended again next sweep.
			slog.WarnContext(ctx, "Failed to mark expense as synced",
				"expense_id", e.ID, "error", err)
			continue
		}
		exported++
	}

	slog.InfoContext(ctx, "Synced expenses to ledger",
		"count", exported,
		"ledger_ref", ref)
	return exported, nil
}

func (p *SyncProcessor) ledgerRows(ctx context.Context, expenses []core.Expense) ([]sheets.LedgerRow, error) {
	users, err := p.storage.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("load users: %w", err)
	}
	categories, err := p.storage.ListCategories(ctx, core.KindExpense)
	if err != nil {
		return nil, fmt.Errorf("load categories: %w", err)
	}
	vendors, err := p.storage.ListVendors(ctx)
	if err != nil {
		return nil, fmt.Errorf("load vendors: %w", err)
	}
	names := NewNameIndex(users, categories, vendors)

	rows := make([]sheets.LedgerRow, len(expenses))
	for i, e := range expenses {
		invoice, _ := core.InvoiceURL(p.config.InvoiceBaseURL, e.InvoicePath)
		rows[i] = sheets.LedgerRow{
			ExpenseID:   e.ID,
			Date:        e.Date,
			User:        names.User(e.UserID),
			Category:    names.Category(e.CategoryID),
			Vendor:      names.Vendor(e.VendorID),
			Description: e.Description,
			Amount:      e.Amount,
			Invoice:     invoice,
			ApprovedAt:  e.ReviewedAt,
		}
	}
	return rows, nil
}

// NameIndex resolves record ids to display names. Unknown ids resolve to "".
type NameIndex struct {
	users      map[int64]string
	categories map[int64]string
	vendors    map[int64]string
}

func NewNameIndex(users []core.User, categories []core.Category, vendors []core.Vendor) NameIndex {
	idx := NameIndex{
		users:      make(map[int64]string, len(users)),
		categories: make(map[int64]string, len(categories)),
		vendors:    make(map[int64]string, len(vendors)),
	}
	for _, u := range users {
		idx.users[u.ID] = u.Name
	}
	for _, c := range categories {
		idx.categories[c.ID] = c.Name
	}
	for _, v := range vendors {
		idx.vendors[v.ID] = v.Name
	}
	return idx
}

func (n NameIndex) User(id int64) string     { return n.users[id] }
func (n NameIndex) Category(id int64) string { return n.categories[id] }
func (n NameIndex) Vendor(id int64) string   { return n.vendors[id] }
