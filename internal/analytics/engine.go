package analytics

import (
	"context"
	"errors"
	"log/slog"

	"github.com/halldis/tokensight/internal/chaintime"
	"github.com/halldis/tokensight/internal/syncutil"
	"github.com/halldis/tokensight/internal/traces"
)

// Notifier receives engine events for fan-out to live subscribers.
// Implementations must not block; the engine calls these on the hot path
// after a successful commit.
type Notifier interface {
	TransferRecorded(t *TransferRecord, profile *AccountProfile)
	AccountFlagged(account string, riskScore uint64)
	DormantReactivation(account string, idleFor uint64)
}

// Engine is the transfer processor. It owns the update protocol: ledger
// write, daily-aggregate upsert, flag classification, score recomputation,
// and the atomic profile commit. All mutations for one account are
// serialized through a sharded mutex; cross-account work proceeds in
// parallel.
type Engine struct {
	store    Store
	clock    chaintime.Clock
	params   Params
	notifier Notifier
	logger   *slog.Logger
	accounts syncutil.ShardedMutex
}

// Option configures the engine.
type Option func(*Engine)

// WithClock overrides the chain time source (tests use chaintime.Manual).
func WithClock(c chaintime.Clock) Option {
	return func(e *Engine) { e.clock = c }
}

// WithParams overrides the default tunables.
func WithParams(p Params) Option {
	return func(e *Engine) { e.params = p }
}

// WithNotifier attaches a live-event notifier.
func WithNotifier(n Notifier) Option {
	return func(e *Engine) { e.notifier = n }
}

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// NewEngine creates an engine backed by the given store.
func NewEngine(store Store, opts ...Option) *Engine {
	e := &Engine{
		store:  store,
		clock:  chaintime.SystemClock{},
		params: DefaultParams(),
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Params returns the engine's tunables.
func (e *Engine) Params() Params {
	return e.params
}

// Register creates a profile for a new account. The profile starts with all
// counters at zero and first_activity = last_activity = the current chain
// time. Returns ErrAccountExists for a duplicate registration.
func (e *Engine) Register(ctx context.Context, account string) error {
	ctx, span := traces.StartSpan(ctx, "analytics.Register", traces.Account(account))
	defer span.End()
	done := observeOp("register")

	unlock := e.accounts.Lock(account)
	defer unlock()

	now := e.clock.Now()
	profile := &AccountProfile{
		Account:       account,
		FirstActivity: now,
		LastActivity:  now,
	}

	if err := e.store.Register(ctx, profile); err != nil {
		done("error")
		return err
	}
	done("ok")
	AccountsRegistered.Inc()

	e.logger.Info("account registered", "account", account, "at", now)
	return nil
}

// RecordTransfer processes one outgoing transfer for a registered account
// and returns the allocated transfer ID.
//
// The update follows a strict ordering that downstream consumers depend on:
// flags read the pre-update profile and the post-upsert daily aggregate; the
// risk score's volume term reads the post-update total volume while its
// frequency term reads the pre-increment transfer count. Everything commits
// atomically, so failures leave no partial state (an allocated transfer ID
// may be skipped, never reused).
func (e *Engine) RecordTransfer(ctx context.Context, account, recipient string, amount uint64, transferType string) (uint64, error) {
	ctx, span := traces.StartSpan(ctx, "analytics.RecordTransfer",
		traces.Account(account), traces.Recipient(recipient), traces.Amount(amount))
	defer span.End()
	done := observeOp("record_transfer")

	if amount == 0 {
		done("invalid")
		return 0, ErrInvalidAmount
	}

	unlock := e.accounts.Lock(account)
	defer unlock()

	prev, err := e.store.GetProfile(ctx, account)
	if err != nil {
		done("not_found")
		return 0, err
	}

	now := e.clock.Now()

	// Gap since the account's previous activity (registration counts).
	var timeHeld uint64
	if now > prev.LastActivity {
		timeHeld = now - prev.LastActivity
	}
	newAverage := (prev.AverageHoldTime*prev.TotalTransfers + timeHeld) / (prev.TotalTransfers + 1)

	id, err := e.store.AllocateTransferID(ctx)
	if err != nil {
		done("error")
		return 0, err
	}
	span.SetAttributes(traces.TransferID(id))

	record := &TransferRecord{
		ID:           id,
		Account:      account,
		Recipient:    recipient,
		Amount:       amount,
		Timestamp:    now,
		TransferType: transferType,
	}

	aggregate, err := e.upsertAggregate(ctx, account, now, amount)
	if err != nil {
		done("error")
		return 0, err
	}
	flags := classify(e.params, prev, amount, aggregate, now)

	post := *prev
	post.TotalTransfers = prev.TotalTransfers + 1
	post.TotalVolume = prev.TotalVolume + amount
	post.LastActivity = now
	post.AverageHoldTime = newAverage
	post.RiskScore = riskScore(e.params, &post, prev.TotalTransfers, flags)
	post.LoyaltyScore = loyaltyScore(e.params, &post)
	post.IsFlagged = post.RiskScore >= e.params.RiskHighThreshold

	transition := !prev.IsFlagged && post.IsFlagged

	commit := &TransferCommit{
		Transfer:       record,
		Aggregate:      aggregate,
		Flags:          &flags,
		Profile:        &post,
		FlagTransition: transition,
	}
	if err := e.store.CommitTransfer(ctx, commit); err != nil {
		done("error")
		return 0, err
	}

	done("ok")
	span.SetAttributes(traces.RiskScore(post.RiskScore))
	RiskScoreObserved.Observe(float64(post.RiskScore))
	if transition {
		AccountsFlagged.Inc()
		e.logger.Warn("account crossed high-risk threshold",
			"account", account, "risk_score", post.RiskScore, "transfer_id", id)
	}

	if e.notifier != nil {
		e.notifier.TransferRecorded(record, &post)
		if transition {
			e.notifier.AccountFlagged(account, post.RiskScore)
		}
		if flags.DormantReactivation {
			e.notifier.DormantReactivation(account, timeHeld)
		}
	}

	e.logger.Debug("transfer recorded",
		"account", account,
		"transfer_id", id,
		"amount", amount,
		"risk_score", post.RiskScore,
		"loyalty_score", post.LoyaltyScore,
	)
	return id, nil
}

// upsertAggregate builds the post-upsert daily aggregate for the transfer.
// unique_recipients is only ever set on the day's first transfer; later
// transfers leave it untouched regardless of recipient (legacy parity).
func (e *Engine) upsertAggregate(ctx context.Context, account string, now, amount uint64) (*DailyAggregate, error) {
	day := e.params.dayOf(now)

	existing, err := e.store.GetDailyActivity(ctx, account, day)
	switch {
	case errors.Is(err, ErrNoActivity):
		return &DailyAggregate{
			Account:          account,
			Day:              day,
			TransferCount:    1,
			TotalVolume:      amount,
			UniqueRecipients: 1,
		}, nil
	case err != nil:
		return nil, err
	}

	updated := *existing
	updated.TransferCount++
	updated.TotalVolume += amount
	return &updated, nil
}

// Profile returns the current profile for an account.
func (e *Engine) Profile(ctx context.Context, account string) (*AccountProfile, error) {
	return e.store.GetProfile(ctx, account)
}

// Flags returns the most recent behavior flags for an account.
// Returns ErrNoActivity before the account's first transfer.
func (e *Engine) Flags(ctx context.Context, account string) (*BehaviorFlags, error) {
	return e.store.GetFlags(ctx, account)
}

// Transfer returns one ledger entry by account and transfer ID.
func (e *Engine) Transfer(ctx context.Context, account string, id uint64) (*TransferRecord, error) {
	return e.store.GetTransfer(ctx, account, id)
}

// Transfers returns an account's most recent ledger entries, newest first.
// Entries with IDs at or above before are excluded; NoBefore returns the
// newest page.
func (e *Engine) Transfers(ctx context.Context, account string, before uint64, limit int) ([]*TransferRecord, error) {
	if limit <= 0 {
		limit = 50
	}
	return e.store.ListTransfers(ctx, account, before, limit)
}

// DailyActivity returns the aggregate for an account and day index.
func (e *Engine) DailyActivity(ctx context.Context, account string, day uint64) (*DailyAggregate, error) {
	return e.store.GetDailyActivity(ctx, account, day)
}

// GlobalAnalytics returns the process-wide counters.
func (e *Engine) GlobalAnalytics(ctx context.Context) (*GlobalCounters, error) {
	return e.store.GetGlobalCounters(ctx)
}
