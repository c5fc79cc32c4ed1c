// Package analytics implements behavioral scoring for token transfer activity.
//
// Every recorded transfer updates the sender's profile, rewrites its five
// behavior flags, and recomputes two composite scores: a risk score built from
// volume, frequency, and flag weights, and a loyalty score built from holding
// duration, hold-time consistency, and an activity band. Profiles, the
// per-account transfer ledger, daily aggregates, and the global counters are
// committed together so no reader ever observes a half-applied transfer.
package analytics

import (
	"context"
	"errors"
)

var (
	ErrUnauthorized    = errors.New("caller is not the operator")
	ErrAccountNotFound = errors.New("account not registered")
	ErrAccountExists   = errors.New("account already registered")
	ErrInvalidAmount   = errors.New("transfer amount must be greater than zero")
	ErrTransferMissing = errors.New("transfer not found")
	ErrNoActivity      = errors.New("no recorded activity")
)

// AccountProfile is the per-account record of cumulative metrics and derived
// scores. Created at registration, mutated on every recorded transfer, never
// deleted. Timestamps are chain time units, not wall-clock seconds.
type AccountProfile struct {
	Account         string `json:"account"`
	TotalTransfers  uint64 `json:"totalTransfers"`
	TotalVolume     uint64 `json:"totalVolume"`
	FirstActivity   uint64 `json:"firstActivity"`
	LastActivity    uint64 `json:"lastActivity"`
	AverageHoldTime uint64 `json:"averageHoldTime"`
	RiskScore       uint64 `json:"riskScore"`
	LoyaltyScore    uint64 `json:"loyaltyScore"`
	IsFlagged       bool   `json:"isFlagged"`
}

// TransferRecord is one ledger entry. Immutable once written; keyed by
// (account, ID) with IDs globally unique and strictly increasing.
type TransferRecord struct {
	ID           uint64 `json:"id"`
	Account      string `json:"account"`
	Recipient    string `json:"recipient"`
	Amount       uint64 `json:"amount"`
	Timestamp    uint64 `json:"timestamp"`
	TransferType string `json:"transferType"`
}

// DailyAggregate is the per-account, per-day activity rollup. Day is the
// transfer timestamp integer-divided by Params.BlocksPerDay.
//
// UniqueRecipients is initialized to 1 on the first transfer of a day and
// never incremented afterwards, even for a new recipient. That matches the
// system this engine replaces; consumers must not read it as a distinct count.
type DailyAggregate struct {
	Account          string `json:"account"`
	Day              uint64 `json:"day"`
	TransferCount    uint64 `json:"transferCount"`
	TotalVolume      uint64 `json:"totalVolume"`
	UniqueRecipients uint64 `json:"uniqueRecipients"`
}

// BehaviorFlags is the point-in-time classifier output for an account.
// Overwritten wholesale on every transfer, never merged.
type BehaviorFlags struct {
	RapidTrading        bool `json:"rapidTrading"`
	LargeVolume         bool `json:"largeVolume"`
	SuspiciousPattern   bool `json:"suspiciousPattern"`
	WhaleActivity       bool `json:"whaleActivity"`
	DormantReactivation bool `json:"dormantReactivation"`
}

// GlobalCounters are the process-wide totals.
//
// TotalFlaggedAccounts counts accounts that have ever crossed the high-risk
// threshold; it never decrements when a score later drops. AverageRiskScore
// is carried for compatibility with downstream consumers but is not
// recomputed by this engine.
type GlobalCounters struct {
	TotalAccounts        uint64 `json:"totalAccounts"`
	TotalFlaggedAccounts uint64 `json:"totalFlaggedAccounts"`
	AverageRiskScore     uint64 `json:"averageRiskScore"`
	NextTransferID       uint64 `json:"nextTransferId"`
}

// TransferCommit bundles everything a single recorded transfer changes.
// Stores apply it all-or-nothing: the ledger row, the upserted daily
// aggregate, the rewritten flags, the updated profile, and the flagged
// counter bump when FlagTransition is set.
type TransferCommit struct {
	Transfer       *TransferRecord
	Aggregate      *DailyAggregate
	Flags          *BehaviorFlags
	Profile        *AccountProfile
	FlagTransition bool // Profile.IsFlagged went from false to true this cycle
}

// NoBefore lists from the newest transfer with no upper ID bound.
const NoBefore = ^uint64(0)

// Store persists profiles, the transfer ledger, daily aggregates, flags, and
// the global counters. Implementations must make Register, CommitTransfer,
// and AllocateTransferID atomic; reads must never observe a partial commit.
type Store interface {
	// Register creates a zeroed profile and increments TotalAccounts in one
	// step. Returns ErrAccountExists if the account is already registered.
	Register(ctx context.Context, profile *AccountProfile) error

	// AllocateTransferID atomically claims the next global transfer ID.
	// Allocated IDs are never reused, even if the commit that follows fails.
	AllocateTransferID(ctx context.Context) (uint64, error)

	// CommitTransfer applies a complete transfer update atomically.
	CommitTransfer(ctx context.Context, commit *TransferCommit) error

	GetProfile(ctx context.Context, account string) (*AccountProfile, error)
	GetFlags(ctx context.Context, account string) (*BehaviorFlags, error)
	GetTransfer(ctx context.Context, account string, id uint64) (*TransferRecord, error)

	// ListTransfers returns up to limit entries newest first, restricted to
	// IDs strictly below before. Pass NoBefore for the first page.
	ListTransfers(ctx context.Context, account string, before uint64, limit int) ([]*TransferRecord, error)
	GetDailyActivity(ctx context.Context, account string, day uint64) (*DailyAggregate, error)
	GetGlobalCounters(ctx context.Context) (*GlobalCounters, error)
}
