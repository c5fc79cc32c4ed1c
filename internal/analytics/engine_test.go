package analytics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/halldis/tokensight/internal/chaintime"
)

func newTestEngine(start uint64) (*Engine, *chaintime.Manual) {
	clk := chaintime.NewManual(start)
	e := NewEngine(NewMemoryStore(), WithClock(clk))
	return e, clk
}

func mustRegister(t *testing.T, e *Engine, account string) {
	t.Helper()
	if err := e.Register(context.Background(), account); err != nil {
		t.Fatalf("register %s: %v", account, err)
	}
}

func mustRecord(t *testing.T, e *Engine, account string, amount uint64) uint64 {
	t.Helper()
	id, err := e.RecordTransfer(context.Background(), account, "0xrecipient", amount, "transfer")
	if err != nil {
		t.Fatalf("record transfer for %s: %v", account, err)
	}
	return id
}

func TestRegisterDuplicate(t *testing.T) {
	e, _ := newTestEngine(1000)
	mustRegister(t, e, "0xabc")

	err := e.Register(context.Background(), "0xabc")
	if !errors.Is(err, ErrAccountExists) {
		t.Fatalf("expected ErrAccountExists, got %v", err)
	}

	g, err := e.GlobalAnalytics(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if g.TotalAccounts != 1 {
		t.Errorf("duplicate registration changed total_accounts: %d", g.TotalAccounts)
	}
}

func TestRegisterInitialProfile(t *testing.T) {
	e, _ := newTestEngine(5000)
	mustRegister(t, e, "0xabc")

	p, err := e.Profile(context.Background(), "0xabc")
	if err != nil {
		t.Fatal(err)
	}
	if p.FirstActivity != 5000 || p.LastActivity != 5000 {
		t.Errorf("activity timestamps = %d/%d, want 5000/5000", p.FirstActivity, p.LastActivity)
	}
	if p.TotalTransfers != 0 || p.TotalVolume != 0 || p.RiskScore != 0 || p.IsFlagged {
		t.Errorf("new profile not zeroed: %+v", p)
	}
}

func TestZeroAmountRejectedWithoutSideEffects(t *testing.T) {
	e, _ := newTestEngine(1000)
	mustRegister(t, e, "0xabc")

	before, _ := e.GlobalAnalytics(context.Background())

	_, err := e.RecordTransfer(context.Background(), "0xabc", "0xdef", 0, "")
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}

	after, _ := e.GlobalAnalytics(context.Background())
	if after.NextTransferID != before.NextTransferID {
		t.Errorf("zero-amount transfer consumed an ID: %d -> %d", before.NextTransferID, after.NextTransferID)
	}
	p, _ := e.Profile(context.Background(), "0xabc")
	if p.TotalTransfers != 0 {
		t.Errorf("zero-amount transfer mutated the profile: %+v", p)
	}
	if _, err := e.Flags(context.Background(), "0xabc"); !errors.Is(err, ErrNoActivity) {
		t.Errorf("expected ErrNoActivity before first transfer, got %v", err)
	}
}

func TestUnregisteredAccount(t *testing.T) {
	e, _ := newTestEngine(1000)

	_, err := e.RecordTransfer(context.Background(), "0xghost", "0xdef", 10, "")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
	if _, err := e.Profile(context.Background(), "0xghost"); !errors.Is(err, ErrAccountNotFound) {
		t.Errorf("expected ErrAccountNotFound from Profile, got %v", err)
	}
}

func TestTransferIDsGloballyUniqueAndIncreasing(t *testing.T) {
	e, _ := newTestEngine(1000)
	mustRegister(t, e, "0xaaa")
	mustRegister(t, e, "0xbbb")

	seen := make(map[uint64]bool)
	var last uint64
	first := true
	for i := 0; i < 10; i++ {
		account := "0xaaa"
		if i%2 == 1 {
			account = "0xbbb"
		}
		id := mustRecord(t, e, account, 10)
		if seen[id] {
			t.Fatalf("transfer ID %d allocated twice", id)
		}
		seen[id] = true
		if !first && id <= last {
			t.Fatalf("IDs not strictly increasing: %d after %d", id, last)
		}
		last = id
		first = false
	}

	g, _ := e.GlobalAnalytics(context.Background())
	if g.NextTransferID != 10 {
		t.Errorf("next_transfer_id = %d, want 10", g.NextTransferID)
	}
}

func TestRapidTradingTripsOnCountAboveLimit(t *testing.T) {
	e, _ := newTestEngine(1000)
	mustRegister(t, e, "0xabc")

	// Transfers 1..50 land in the same day bucket and stay unflagged.
	for i := 0; i < int(DefaultMaxTransfersPerDay); i++ {
		mustRecord(t, e, "0xabc", 10)
	}
	flags, err := e.Flags(context.Background(), "0xabc")
	if err != nil {
		t.Fatal(err)
	}
	if flags.RapidTrading {
		t.Fatal("rapid_trading set at exactly the daily limit")
	}

	// The 51st pushes today's count above the limit.
	mustRecord(t, e, "0xabc", 10)
	flags, _ = e.Flags(context.Background(), "0xabc")
	if !flags.RapidTrading {
		t.Fatal("rapid_trading not set above the daily limit")
	}
	if flags.LargeVolume || flags.SuspiciousPattern {
		t.Errorf("small transfers set volume flags: %+v", flags)
	}

	p, _ := e.Profile(context.Background(), "0xabc")
	if p.RiskScore != 10 {
		t.Errorf("risk score = %d, want 10 (rapid trading only)", p.RiskScore)
	}
}

func TestLargeVolumeAndSuspiciousPattern(t *testing.T) {
	e, _ := newTestEngine(1000)
	mustRegister(t, e, "0xabc")

	// A single transfer above one tenth of the whale threshold.
	mustRecord(t, e, "0xabc", 100_001)
	flags, _ := e.Flags(context.Background(), "0xabc")
	if !flags.LargeVolume {
		t.Fatal("large_volume not set")
	}
	if flags.SuspiciousPattern {
		t.Fatal("suspicious_pattern set without rapid trading")
	}

	// Push today's count over the limit with large transfers: both inputs
	// fire, and the pattern flag contributes its own points on top.
	for i := 0; i < int(DefaultMaxTransfersPerDay); i++ {
		mustRecord(t, e, "0xabc", 100_001)
	}
	flags, _ = e.Flags(context.Background(), "0xabc")
	if !flags.RapidTrading || !flags.LargeVolume || !flags.SuspiciousPattern {
		t.Fatalf("expected all three pattern flags, got %+v", flags)
	}

	// volume: 51 * 100_001 > 1M post-update (+25), whale pre-update (+5),
	// rapid (+10) + large (+10) + suspicious (+15) = 65.
	p, _ := e.Profile(context.Background(), "0xabc")
	if p.RiskScore != 65 {
		t.Errorf("risk score = %d, want 65", p.RiskScore)
	}
}

func TestWhaleActivityReadsPreUpdateVolume(t *testing.T) {
	e, _ := newTestEngine(1000)
	mustRegister(t, e, "0xwhale")

	// This transfer lifts the lifetime volume past the threshold, but the
	// whale flag reads the profile as it stood before the update.
	mustRecord(t, e, "0xwhale", 1_000_001)
	flags, _ := e.Flags(context.Background(), "0xwhale")
	if flags.WhaleActivity {
		t.Fatal("whale_activity set from post-update volume")
	}

	// The volume component of the risk score, by contrast, is post-update.
	p, _ := e.Profile(context.Background(), "0xwhale")
	if p.RiskScore != 25+10 { // volume + large_volume
		t.Errorf("risk score = %d, want 35", p.RiskScore)
	}

	// The next transfer sees the whale standing.
	mustRecord(t, e, "0xwhale", 10)
	flags, _ = e.Flags(context.Background(), "0xwhale")
	if !flags.WhaleActivity {
		t.Fatal("whale_activity not set on the transfer after crossing")
	}
}

func TestDormantReactivation(t *testing.T) {
	e, clk := newTestEngine(1000)
	mustRegister(t, e, "0xsleepy")
	mustRecord(t, e, "0xsleepy", 10)

	// Idle for exactly the dormancy period: not dormant (strict inequality).
	clk.Advance(DefaultDormancyPeriod)
	mustRecord(t, e, "0xsleepy", 10)
	flags, _ := e.Flags(context.Background(), "0xsleepy")
	if flags.DormantReactivation {
		t.Fatal("dormant_reactivation set at exactly the dormancy period")
	}

	clk.Advance(DefaultDormancyPeriod + 1)
	mustRecord(t, e, "0xsleepy", 10)
	flags, _ = e.Flags(context.Background(), "0xsleepy")
	if !flags.DormantReactivation {
		t.Fatal("dormant_reactivation not set past the dormancy period")
	}

	// Dormancy clears on the immediately following transfer.
	clk.Advance(1)
	mustRecord(t, e, "0xsleepy", 10)
	flags, _ = e.Flags(context.Background(), "0xsleepy")
	if flags.DormantReactivation {
		t.Fatal("dormant_reactivation persisted after reactivation")
	}
}

func TestFrequencyComponentUsesPreIncrementCount(t *testing.T) {
	e, clk := newTestEngine(1000)
	mustRegister(t, e, "0xbusy")

	// Spread transfers across days to keep rapid_trading quiet. The
	// frequency component needs the pre-increment count to exceed 100, so
	// it first fires on the 102nd transfer.
	for i := 0; i < 101; i++ {
		mustRecord(t, e, "0xbusy", 1)
		clk.Advance(DefaultBlocksPerDay)
	}
	p, _ := e.Profile(context.Background(), "0xbusy")
	if p.RiskScore != 0 {
		t.Fatalf("risk score = %d after 101 transfers, want 0", p.RiskScore)
	}

	mustRecord(t, e, "0xbusy", 1)
	p, _ = e.Profile(context.Background(), "0xbusy")
	if p.RiskScore != riskFrequencyPoints {
		t.Errorf("risk score = %d on 102nd transfer, want %d", p.RiskScore, riskFrequencyPoints)
	}
}

func TestFlaggedCounterMonotonic(t *testing.T) {
	e, clk := newTestEngine(1000)
	mustRegister(t, e, "0xrisky")

	// Build whale-level volume and a >100 lifetime transfer count, then a
	// burst of large transfers on one day. The transfer that crosses the
	// daily limit scores volume(25) + frequency(25) + rapid(10) +
	// large(10) + suspicious(15) + whale(5) = 90.
	mustRecord(t, e, "0xrisky", 2_000_000)
	for i := 0; i < 100; i++ {
		clk.Advance(DefaultBlocksPerDay)
		mustRecord(t, e, "0xrisky", 1)
	}
	clk.Advance(DefaultBlocksPerDay)
	for i := 0; i < int(DefaultMaxTransfersPerDay); i++ {
		mustRecord(t, e, "0xrisky", 100_001)
	}
	p, _ := e.Profile(context.Background(), "0xrisky")
	if p.IsFlagged {
		t.Fatalf("flagged below threshold: risk=%d", p.RiskScore)
	}

	mustRecord(t, e, "0xrisky", 100_001)
	p, _ = e.Profile(context.Background(), "0xrisky")
	if p.RiskScore < DefaultRiskHighThreshold || !p.IsFlagged {
		t.Fatalf("expected flagged profile, risk=%d flagged=%v", p.RiskScore, p.IsFlagged)
	}
	g, _ := e.GlobalAnalytics(context.Background())
	if g.TotalFlaggedAccounts != 1 {
		t.Fatalf("total_flagged_accounts = %d, want 1", g.TotalFlaggedAccounts)
	}

	// A quiet transfer the next day drops the score below the threshold;
	// the profile unflags but the global counter never decrements.
	clk.Advance(DefaultBlocksPerDay)
	mustRecord(t, e, "0xrisky", 10)
	p, _ = e.Profile(context.Background(), "0xrisky")
	if p.IsFlagged {
		t.Errorf("is_flagged did not recompute down: risk=%d", p.RiskScore)
	}
	g, _ = e.GlobalAnalytics(context.Background())
	if g.TotalFlaggedAccounts != 1 {
		t.Errorf("total_flagged_accounts = %d after unflag, want 1", g.TotalFlaggedAccounts)
	}

	// Crossing again is a fresh false-to-true transition and counts again.
	clk.Advance(DefaultBlocksPerDay)
	for i := 0; i <= int(DefaultMaxTransfersPerDay); i++ {
		mustRecord(t, e, "0xrisky", 100_001)
	}
	g, _ = e.GlobalAnalytics(context.Background())
	if g.TotalFlaggedAccounts != 2 {
		t.Errorf("total_flagged_accounts = %d after re-flag, want 2", g.TotalFlaggedAccounts)
	}
}

func TestAverageHoldTimeRunningMean(t *testing.T) {
	e, clk := newTestEngine(1000)
	mustRegister(t, e, "0xabc")

	clk.Advance(100)
	mustRecord(t, e, "0xabc", 10) // gap 100, avg (0*0+100)/1 = 100
	clk.Advance(50)
	mustRecord(t, e, "0xabc", 10) // gap 50, avg (100*1+50)/2 = 75
	clk.Advance(10)
	mustRecord(t, e, "0xabc", 10) // gap 10, avg (75*2+10)/3 = 53 (truncated)

	p, _ := e.Profile(context.Background(), "0xabc")
	if p.AverageHoldTime != 53 {
		t.Errorf("average hold time = %d, want 53", p.AverageHoldTime)
	}
	if p.LastActivity != 1160 {
		t.Errorf("last activity = %d, want 1160", p.LastActivity)
	}
}

func TestUniqueRecipientsFrozenAtOne(t *testing.T) {
	e, _ := newTestEngine(1000)
	mustRegister(t, e, "0xabc")

	for i := 0; i < 5; i++ {
		// Five distinct recipients, same day.
		_, err := e.RecordTransfer(context.Background(), "0xabc", fmt.Sprintf("0xr%d", i), 10, "")
		if err != nil {
			t.Fatal(err)
		}
	}

	day := e.Params().dayOf(1000)
	agg, err := e.DailyActivity(context.Background(), "0xabc", day)
	if err != nil {
		t.Fatal(err)
	}
	if agg.TransferCount != 5 || agg.TotalVolume != 50 {
		t.Errorf("aggregate = %+v, want count 5 volume 50", agg)
	}
	if agg.UniqueRecipients != 1 {
		t.Errorf("unique_recipients = %d, want 1 (never incremented past the day's first transfer)", agg.UniqueRecipients)
	}
}

func TestDailyAggregateRollsOverAtDayBoundary(t *testing.T) {
	e, clk := newTestEngine(0)
	mustRegister(t, e, "0xabc")

	clk.Set(DefaultBlocksPerDay - 1)
	mustRecord(t, e, "0xabc", 10)
	clk.Set(DefaultBlocksPerDay)
	mustRecord(t, e, "0xabc", 20)

	a0, err := e.DailyActivity(context.Background(), "0xabc", 0)
	if err != nil {
		t.Fatal(err)
	}
	a1, err := e.DailyActivity(context.Background(), "0xabc", 1)
	if err != nil {
		t.Fatal(err)
	}
	if a0.TransferCount != 1 || a0.TotalVolume != 10 {
		t.Errorf("day 0 aggregate = %+v", a0)
	}
	if a1.TransferCount != 1 || a1.TotalVolume != 20 {
		t.Errorf("day 1 aggregate = %+v", a1)
	}

	if _, err := e.DailyActivity(context.Background(), "0xabc", 2); !errors.Is(err, ErrNoActivity) {
		t.Errorf("expected ErrNoActivity for empty day, got %v", err)
	}
}

func TestListTransfersNewestFirst(t *testing.T) {
	e, _ := newTestEngine(1000)
	mustRegister(t, e, "0xabc")

	var ids []uint64
	for i := 0; i < 5; i++ {
		ids = append(ids, mustRecord(t, e, "0xabc", uint64(i+1)))
	}

	list, err := e.Transfers(context.Background(), "0xabc", NoBefore, 3)
	if err != nil {
		t.Fatal(err)
	}
	if len(list) != 3 {
		t.Fatalf("got %d transfers, want 3", len(list))
	}
	for i, tr := range list {
		want := ids[len(ids)-1-i]
		if tr.ID != want {
			t.Errorf("transfer[%d].ID = %d, want %d", i, tr.ID, want)
		}
	}

	// A bound at the oldest returned ID continues where the page left off.
	rest, err := e.Transfers(context.Background(), "0xabc", list[2].ID, 10)
	if err != nil {
		t.Fatal(err)
	}
	if len(rest) != 2 {
		t.Fatalf("got %d older transfers, want 2", len(rest))
	}
	if rest[0].ID != ids[1] || rest[1].ID != ids[0] {
		t.Errorf("older page IDs = %d, %d, want %d, %d", rest[0].ID, rest[1].ID, ids[1], ids[0])
	}
}

func TestGetTransferScopedToAccount(t *testing.T) {
	e, _ := newTestEngine(1000)
	mustRegister(t, e, "0xaaa")
	mustRegister(t, e, "0xbbb")

	id := mustRecord(t, e, "0xaaa", 42)

	got, err := e.Transfer(context.Background(), "0xaaa", id)
	if err != nil {
		t.Fatal(err)
	}
	if got.Amount != 42 || got.Account != "0xaaa" {
		t.Errorf("transfer = %+v", got)
	}

	// Same ID under a different account is not visible.
	if _, err := e.Transfer(context.Background(), "0xbbb", id); !errors.Is(err, ErrTransferMissing) {
		t.Errorf("expected ErrTransferMissing for other account, got %v", err)
	}
}

type recordingNotifier struct {
	transfers int
	flagged   []string
	dormant   []string
}

func (n *recordingNotifier) TransferRecorded(t *TransferRecord, p *AccountProfile) { n.transfers++ }
func (n *recordingNotifier) AccountFlagged(account string, risk uint64)            { n.flagged = append(n.flagged, account) }
func (n *recordingNotifier) DormantReactivation(account string, idle uint64)       { n.dormant = append(n.dormant, account) }

func TestNotifierEvents(t *testing.T) {
	clk := chaintime.NewManual(1000)
	n := &recordingNotifier{}
	e := NewEngine(NewMemoryStore(), WithClock(clk), WithNotifier(n))

	mustRegister(t, e, "0xabc")
	mustRecord(t, e, "0xabc", 10)
	clk.Advance(DefaultDormancyPeriod + 1)
	mustRecord(t, e, "0xabc", 10)

	if n.transfers != 2 {
		t.Errorf("transfer events = %d, want 2", n.transfers)
	}
	if len(n.dormant) != 1 || n.dormant[0] != "0xabc" {
		t.Errorf("dormant events = %v, want [0xabc]", n.dormant)
	}
	if len(n.flagged) != 0 {
		t.Errorf("unexpected flagged events: %v", n.flagged)
	}
}
