package analytics

import (
	"context"
	"sync"
)

type dayKey struct {
	account string
	day     uint64
}

type transferKey struct {
	account string
	id      uint64
}

// MemoryStore is an in-memory analytics store for demo/development mode.
// A single RWMutex makes every commit all-or-nothing for readers.
type MemoryStore struct {
	mu        sync.RWMutex
	profiles  map[string]*AccountProfile
	flags     map[string]*BehaviorFlags
	transfers map[transferKey]*TransferRecord
	history   map[string][]uint64 // account -> transfer IDs in commit order
	daily     map[dayKey]*DailyAggregate
	counters  GlobalCounters
}

// NewMemoryStore creates an empty in-memory analytics store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		profiles:  make(map[string]*AccountProfile),
		flags:     make(map[string]*BehaviorFlags),
		transfers: make(map[transferKey]*TransferRecord),
		history:   make(map[string][]uint64),
		daily:     make(map[dayKey]*DailyAggregate),
	}
}

func (m *MemoryStore) Register(ctx context.Context, profile *AccountProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, ok := m.profiles[profile.Account]; ok {
		return ErrAccountExists
	}
	cp := *profile
	m.profiles[profile.Account] = &cp
	m.counters.TotalAccounts++
	return nil
}

func (m *MemoryStore) AllocateTransferID(ctx context.Context) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := m.counters.NextTransferID
	m.counters.NextTransferID++
	return id, nil
}

func (m *MemoryStore) CommitTransfer(ctx context.Context, commit *TransferCommit) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	account := commit.Profile.Account

	if _, ok := m.profiles[account]; !ok {
		return ErrAccountNotFound
	}

	rec := *commit.Transfer
	m.transfers[transferKey{account, rec.ID}] = &rec
	m.history[account] = append(m.history[account], rec.ID)

	agg := *commit.Aggregate
	m.daily[dayKey{account, agg.Day}] = &agg

	fl := *commit.Flags
	m.flags[account] = &fl

	prof := *commit.Profile
	m.profiles[account] = &prof

	if commit.FlagTransition {
		m.counters.TotalFlaggedAccounts++
	}
	return nil
}

func (m *MemoryStore) GetProfile(ctx context.Context, account string) (*AccountProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	p, ok := m.profiles[account]
	if !ok {
		return nil, ErrAccountNotFound
	}
	cp := *p
	return &cp, nil
}

func (m *MemoryStore) GetFlags(ctx context.Context, account string) (*BehaviorFlags, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if _, ok := m.profiles[account]; !ok {
		return nil, ErrAccountNotFound
	}
	f, ok := m.flags[account]
	if !ok {
		return nil, ErrNoActivity
	}
	cp := *f
	return &cp, nil
}

func (m *MemoryStore) GetTransfer(ctx context.Context, account string, id uint64) (*TransferRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.transfers[transferKey{account, id}]
	if !ok {
		return nil, ErrTransferMissing
	}
	cp := *t
	return &cp, nil
}

func (m *MemoryStore) ListTransfers(ctx context.Context, account string, before uint64, limit int) ([]*TransferRecord, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	ids := m.history[account]
	result := make([]*TransferRecord, 0, limit)
	for i := len(ids) - 1; i >= 0 && len(result) < limit; i-- {
		if ids[i] >= before {
			continue
		}
		if t, ok := m.transfers[transferKey{account, ids[i]}]; ok {
			cp := *t
			result = append(result, &cp)
		}
	}
	return result, nil
}

func (m *MemoryStore) GetDailyActivity(ctx context.Context, account string, day uint64) (*DailyAggregate, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	a, ok := m.daily[dayKey{account, day}]
	if !ok {
		return nil, ErrNoActivity
	}
	cp := *a
	return &cp, nil
}

func (m *MemoryStore) GetGlobalCounters(ctx context.Context) (*GlobalCounters, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cp := m.counters
	return &cp, nil
}
