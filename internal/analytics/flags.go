package analytics

// classify computes a fresh BehaviorFlags snapshot for one transfer.
//
// Inputs are deliberately asymmetric in time: prev is the profile as it stood
// BEFORE this transfer (so whale_activity and dormant_reactivation reflect
// the account's standing going into the transfer), while agg is the daily
// aggregate AFTER the upsert (so rapid_trading sees today's count including
// this transfer). suspicious_pattern is the conjunction of rapid_trading and
// large_volume from this same call, not persisted state.
func classify(p Params, prev *AccountProfile, amount uint64, agg *DailyAggregate, now uint64) BehaviorFlags {
	rapid := agg.TransferCount > p.MaxTransfersPerDay
	large := amount > p.largeVolumeCutoff()

	var dormant bool
	if now > prev.LastActivity {
		dormant = now-prev.LastActivity > p.DormancyPeriod
	}

	return BehaviorFlags{
		RapidTrading:        rapid,
		LargeVolume:         large,
		SuspiciousPattern:   rapid && large,
		WhaleActivity:       prev.TotalVolume > p.WhaleThreshold,
		DormantReactivation: dormant,
	}
}
