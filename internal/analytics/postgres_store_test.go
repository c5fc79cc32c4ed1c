//go:build integration

package analytics

import (
	"context"
	"errors"
	"testing"

	"github.com/halldis/tokensight/internal/testutil"
)

func setupTestDB(t *testing.T) (*PostgresStore, func()) {
	t.Helper()

	db, cleanup := testutil.PGTest(t)
	return NewPostgresStore(db), cleanup
}

func TestPostgresRegisterAndGetProfile(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	profile := &AccountProfile{Account: "0xpg1", FirstActivity: 1000, LastActivity: 1000}
	if err := store.Register(ctx, profile); err != nil {
		t.Fatalf("register: %v", err)
	}

	if err := store.Register(ctx, profile); !errors.Is(err, ErrAccountExists) {
		t.Fatalf("duplicate register: got %v, want ErrAccountExists", err)
	}

	got, err := store.GetProfile(ctx, "0xpg1")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if got.FirstActivity != 1000 || got.TotalTransfers != 0 {
		t.Errorf("profile = %+v", got)
	}

	if _, err := store.GetProfile(ctx, "0xnope"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("missing profile: got %v, want ErrAccountNotFound", err)
	}

	g, err := store.GetGlobalCounters(ctx)
	if err != nil {
		t.Fatalf("counters: %v", err)
	}
	if g.TotalAccounts != 1 {
		t.Errorf("total_accounts = %d, want 1", g.TotalAccounts)
	}
}

func TestPostgresAllocateTransferID(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	first, err := store.AllocateTransferID(ctx)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	second, err := store.AllocateTransferID(ctx)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if second != first+1 {
		t.Errorf("IDs not consecutive: %d then %d", first, second)
	}
}

func TestPostgresCommitAndReadBack(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.Register(ctx, &AccountProfile{Account: "0xpg2", FirstActivity: 1000, LastActivity: 1000}); err != nil {
		t.Fatalf("register: %v", err)
	}

	id, err := store.AllocateTransferID(ctx)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}

	commit := &TransferCommit{
		Transfer: &TransferRecord{
			ID: id, Account: "0xpg2", Recipient: "0xdef", Amount: 42, Timestamp: 1010, TransferType: "transfer",
		},
		Aggregate: &DailyAggregate{Account: "0xpg2", Day: 7, TransferCount: 1, TotalVolume: 42, UniqueRecipients: 1},
		Flags:     &BehaviorFlags{LargeVolume: true},
		Profile: &AccountProfile{
			Account: "0xpg2", TotalTransfers: 1, TotalVolume: 42,
			FirstActivity: 1000, LastActivity: 1010, RiskScore: 80, IsFlagged: true,
		},
		FlagTransition: true,
	}
	if err := store.CommitTransfer(ctx, commit); err != nil {
		t.Fatalf("commit: %v", err)
	}

	tr, err := store.GetTransfer(ctx, "0xpg2", id)
	if err != nil {
		t.Fatalf("get transfer: %v", err)
	}
	if tr.Amount != 42 || tr.Recipient != "0xdef" {
		t.Errorf("transfer = %+v", tr)
	}

	flags, err := store.GetFlags(ctx, "0xpg2")
	if err != nil {
		t.Fatalf("get flags: %v", err)
	}
	if !flags.LargeVolume || flags.RapidTrading {
		t.Errorf("flags = %+v", flags)
	}

	agg, err := store.GetDailyActivity(ctx, "0xpg2", 7)
	if err != nil {
		t.Fatalf("get daily: %v", err)
	}
	if agg.TransferCount != 1 || agg.UniqueRecipients != 1 {
		t.Errorf("aggregate = %+v", agg)
	}

	p, err := store.GetProfile(ctx, "0xpg2")
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if !p.IsFlagged || p.RiskScore != 80 {
		t.Errorf("profile = %+v", p)
	}

	g, _ := store.GetGlobalCounters(ctx)
	if g.TotalFlaggedAccounts != 1 {
		t.Errorf("total_flagged_accounts = %d, want 1", g.TotalFlaggedAccounts)
	}

	list, err := store.ListTransfers(ctx, "0xpg2", NoBefore, 10)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 1 || list[0].ID != id {
		t.Errorf("list = %+v", list)
	}
}

func TestPostgresErrorTaxonomy(t *testing.T) {
	store, cleanup := setupTestDB(t)
	defer cleanup()
	ctx := context.Background()

	if err := store.Register(ctx, &AccountProfile{Account: "0xpg3", FirstActivity: 1, LastActivity: 1}); err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := store.GetFlags(ctx, "0xpg3"); !errors.Is(err, ErrNoActivity) {
		t.Errorf("flags before activity: got %v, want ErrNoActivity", err)
	}
	if _, err := store.GetFlags(ctx, "0xmissing"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("flags for missing account: got %v, want ErrAccountNotFound", err)
	}
	if _, err := store.GetTransfer(ctx, "0xpg3", 12345); !errors.Is(err, ErrTransferMissing) {
		t.Errorf("missing transfer: got %v, want ErrTransferMissing", err)
	}
	if _, err := store.GetDailyActivity(ctx, "0xpg3", 99); !errors.Is(err, ErrNoActivity) {
		t.Errorf("empty day: got %v, want ErrNoActivity", err)
	}
}
