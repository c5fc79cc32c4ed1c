package analytics

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/lib/pq"
)

// PostgresStore persists analytics state in PostgreSQL.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgreSQL-backed analytics store.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate creates the analytics tables if they don't exist and seeds the
// global counters row. Production deployments run cmd/migrate instead; this
// keeps ad-hoc environments working.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS account_profiles (
			account            TEXT PRIMARY KEY,
			total_transfers    BIGINT NOT NULL DEFAULT 0,
			total_volume       BIGINT NOT NULL DEFAULT 0,
			first_activity     BIGINT NOT NULL,
			last_activity      BIGINT NOT NULL,
			average_hold_time  BIGINT NOT NULL DEFAULT 0,
			risk_score         BIGINT NOT NULL DEFAULT 0,
			loyalty_score      BIGINT NOT NULL DEFAULT 0,
			is_flagged         BOOLEAN NOT NULL DEFAULT FALSE
		);

		CREATE TABLE IF NOT EXISTS transfer_records (
			id             BIGINT PRIMARY KEY,
			account        TEXT NOT NULL,
			recipient      TEXT NOT NULL,
			amount         BIGINT NOT NULL,
			ts             BIGINT NOT NULL,
			transfer_type  TEXT NOT NULL DEFAULT ''
		);
		CREATE INDEX IF NOT EXISTS idx_transfer_records_account
			ON transfer_records (account, id DESC);

		CREATE TABLE IF NOT EXISTS daily_aggregates (
			account            TEXT NOT NULL,
			day                BIGINT NOT NULL,
			transfer_count     BIGINT NOT NULL,
			total_volume       BIGINT NOT NULL,
			unique_recipients  BIGINT NOT NULL,
			PRIMARY KEY (account, day)
		);

		CREATE TABLE IF NOT EXISTS behavior_flags (
			account               TEXT PRIMARY KEY,
			rapid_trading         BOOLEAN NOT NULL,
			large_volume          BOOLEAN NOT NULL,
			suspicious_pattern    BOOLEAN NOT NULL,
			whale_activity        BOOLEAN NOT NULL,
			dormant_reactivation  BOOLEAN NOT NULL
		);

		CREATE TABLE IF NOT EXISTS global_counters (
			id                      INT PRIMARY KEY CHECK (id = 1),
			total_accounts          BIGINT NOT NULL DEFAULT 0,
			total_flagged_accounts  BIGINT NOT NULL DEFAULT 0,
			average_risk_score      BIGINT NOT NULL DEFAULT 0,
			next_transfer_id        BIGINT NOT NULL DEFAULT 0
		);
		INSERT INTO global_counters (id) VALUES (1) ON CONFLICT (id) DO NOTHING;
	`)
	return err
}

func (s *PostgresStore) Register(ctx context.Context, profile *AccountProfile) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin register: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO account_profiles
			(account, total_transfers, total_volume, first_activity, last_activity,
			 average_hold_time, risk_score, loyalty_score, is_flagged)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`,
		profile.Account, profile.TotalTransfers, profile.TotalVolume,
		profile.FirstActivity, profile.LastActivity, profile.AverageHoldTime,
		profile.RiskScore, profile.LoyaltyScore, profile.IsFlagged,
	)
	if err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == "23505" { // unique_violation
			return ErrAccountExists
		}
		return fmt.Errorf("insert profile: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE global_counters SET total_accounts = total_accounts + 1 WHERE id = 1
	`); err != nil {
		return fmt.Errorf("bump total_accounts: %w", err)
	}

	return tx.Commit()
}

func (s *PostgresStore) AllocateTransferID(ctx context.Context) (uint64, error) {
	var next uint64
	err := s.db.QueryRowContext(ctx, `
		UPDATE global_counters
		SET next_transfer_id = next_transfer_id + 1
		WHERE id = 1
		RETURNING next_transfer_id - 1
	`).Scan(&next)
	if err != nil {
		return 0, fmt.Errorf("allocate transfer id: %w", err)
	}
	return next, nil
}

func (s *PostgresStore) CommitTransfer(ctx context.Context, commit *TransferCommit) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin commit: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	t := commit.Transfer
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO transfer_records (id, account, recipient, amount, ts, transfer_type)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, t.ID, t.Account, t.Recipient, t.Amount, t.Timestamp, t.TransferType); err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}

	a := commit.Aggregate
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO daily_aggregates (account, day, transfer_count, total_volume, unique_recipients)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (account, day) DO UPDATE SET
			transfer_count = EXCLUDED.transfer_count,
			total_volume = EXCLUDED.total_volume,
			unique_recipients = EXCLUDED.unique_recipients
	`, a.Account, a.Day, a.TransferCount, a.TotalVolume, a.UniqueRecipients); err != nil {
		return fmt.Errorf("upsert daily aggregate: %w", err)
	}

	f := commit.Flags
	p := commit.Profile
	if _, err := tx.ExecContext(ctx, `
		INSERT INTO behavior_flags
			(account, rapid_trading, large_volume, suspicious_pattern, whale_activity, dormant_reactivation)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (account) DO UPDATE SET
			rapid_trading = EXCLUDED.rapid_trading,
			large_volume = EXCLUDED.large_volume,
			suspicious_pattern = EXCLUDED.suspicious_pattern,
			whale_activity = EXCLUDED.whale_activity,
			dormant_reactivation = EXCLUDED.dormant_reactivation
	`, p.Account, f.RapidTrading, f.LargeVolume, f.SuspiciousPattern,
		f.WhaleActivity, f.DormantReactivation); err != nil {
		return fmt.Errorf("upsert flags: %w", err)
	}

	res, err := tx.ExecContext(ctx, `
		UPDATE account_profiles SET
			total_transfers = $2,
			total_volume = $3,
			last_activity = $4,
			average_hold_time = $5,
			risk_score = $6,
			loyalty_score = $7,
			is_flagged = $8
		WHERE account = $1
	`, p.Account, p.TotalTransfers, p.TotalVolume, p.LastActivity,
		p.AverageHoldTime, p.RiskScore, p.LoyaltyScore, p.IsFlagged)
	if err != nil {
		return fmt.Errorf("update profile: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrAccountNotFound
	}

	if commit.FlagTransition {
		if _, err := tx.ExecContext(ctx, `
			UPDATE global_counters
			SET total_flagged_accounts = total_flagged_accounts + 1
			WHERE id = 1
		`); err != nil {
			return fmt.Errorf("bump flagged accounts: %w", err)
		}
	}

	return tx.Commit()
}

func (s *PostgresStore) GetProfile(ctx context.Context, account string) (*AccountProfile, error) {
	var p AccountProfile
	err := s.db.QueryRowContext(ctx, `
		SELECT account, total_transfers, total_volume, first_activity, last_activity,
		       average_hold_time, risk_score, loyalty_score, is_flagged
		FROM account_profiles WHERE account = $1
	`, account).Scan(
		&p.Account, &p.TotalTransfers, &p.TotalVolume, &p.FirstActivity,
		&p.LastActivity, &p.AverageHoldTime, &p.RiskScore, &p.LoyaltyScore,
		&p.IsFlagged,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrAccountNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get profile: %w", err)
	}
	return &p, nil
}

func (s *PostgresStore) GetFlags(ctx context.Context, account string) (*BehaviorFlags, error) {
	var f BehaviorFlags
	err := s.db.QueryRowContext(ctx, `
		SELECT rapid_trading, large_volume, suspicious_pattern, whale_activity, dormant_reactivation
		FROM behavior_flags WHERE account = $1
	`, account).Scan(
		&f.RapidTrading, &f.LargeVolume, &f.SuspiciousPattern,
		&f.WhaleActivity, &f.DormantReactivation,
	)
	if errors.Is(err, sql.ErrNoRows) {
		// Distinguish "not registered" from "no transfers yet".
		if _, perr := s.GetProfile(ctx, account); perr != nil {
			return nil, perr
		}
		return nil, ErrNoActivity
	}
	if err != nil {
		return nil, fmt.Errorf("get flags: %w", err)
	}
	return &f, nil
}

func (s *PostgresStore) GetTransfer(ctx context.Context, account string, id uint64) (*TransferRecord, error) {
	var t TransferRecord
	err := s.db.QueryRowContext(ctx, `
		SELECT id, account, recipient, amount, ts, transfer_type
		FROM transfer_records WHERE account = $1 AND id = $2
	`, account, id).Scan(&t.ID, &t.Account, &t.Recipient, &t.Amount, &t.Timestamp, &t.TransferType)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrTransferMissing
	}
	if err != nil {
		return nil, fmt.Errorf("get transfer: %w", err)
	}
	return &t, nil
}

func (s *PostgresStore) ListTransfers(ctx context.Context, account string, before uint64, limit int) ([]*TransferRecord, error) {
	query := `
		SELECT id, account, recipient, amount, ts, transfer_type
		FROM transfer_records
		WHERE account = $1
		ORDER BY id DESC
		LIMIT $2
	`
	args := []any{account, limit}
	if before != NoBefore {
		// IDs are stored as BIGINT; an unbounded page skips the predicate
		// rather than passing a sentinel that overflows int64.
		query = `
			SELECT id, account, recipient, amount, ts, transfer_type
			FROM transfer_records
			WHERE account = $1 AND id < $2
			ORDER BY id DESC
			LIMIT $3
		`
		args = []any{account, before, limit}
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var result []*TransferRecord
	for rows.Next() {
		var t TransferRecord
		if err := rows.Scan(&t.ID, &t.Account, &t.Recipient, &t.Amount, &t.Timestamp, &t.TransferType); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		result = append(result, &t)
	}
	return result, rows.Err()
}

func (s *PostgresStore) GetDailyActivity(ctx context.Context, account string, day uint64) (*DailyAggregate, error) {
	var a DailyAggregate
	err := s.db.QueryRowContext(ctx, `
		SELECT account, day, transfer_count, total_volume, unique_recipients
		FROM daily_aggregates WHERE account = $1 AND day = $2
	`, account, day).Scan(&a.Account, &a.Day, &a.TransferCount, &a.TotalVolume, &a.UniqueRecipients)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoActivity
	}
	if err != nil {
		return nil, fmt.Errorf("get daily activity: %w", err)
	}
	return &a, nil
}

func (s *PostgresStore) GetGlobalCounters(ctx context.Context) (*GlobalCounters, error) {
	var g GlobalCounters
	err := s.db.QueryRowContext(ctx, `
		SELECT total_accounts, total_flagged_accounts, average_risk_score, next_transfer_id
		FROM global_counters WHERE id = 1
	`).Scan(&g.TotalAccounts, &g.TotalFlaggedAccounts, &g.AverageRiskScore, &g.NextTransferID)
	if err != nil {
		return nil, fmt.Errorf("get global counters: %w", err)
	}
	return &g, nil
}
