package analytics

// Risk component weights. These are the literal weights the legacy system
// shipped with; Params.Weight* does not feed them (see params.go).
const (
	riskVolumePoints    = 25
	riskFrequencyPoints = 25

	riskRapidTradingPoints  = 10
	riskLargeVolumePoints   = 10
	riskSuspiciousPoints    = 15
	riskWhaleActivityPoints = 5
	riskDormantPoints       = 10

	// frequency component fires once lifetime transfers exceed this
	riskFrequencyFloor = 100
)

// Loyalty component caps and the activity band.
const (
	loyaltyDurationMax    = 40
	loyaltyConsistencyMax = 30
	loyaltyActivityHigh   = 30
	loyaltyActivityLow    = 10

	// consistencyUnit is the average hold time granting full consistency
	// points. The legacy constant is one day of seconds even though hold
	// times are measured in chain time units; kept verbatim for parity.
	consistencyUnit = 86_400

	activityBandLow  = 5
	activityBandHigh = 50
)

// riskScore computes the composite risk score for a transfer that was just
// applied. post is the profile with this transfer already folded in;
// prevTransfers is the lifetime transfer count from before the increment:
// the frequency threshold intentionally checks the pre-increment value while
// the volume threshold checks the post-update total.
//
// suspicious_pattern double-counts its two inputs by design: a transfer that
// is both rapid and large contributes 10+10+15.
func riskScore(p Params, post *AccountProfile, prevTransfers uint64, flags BehaviorFlags) uint64 {
	var score uint64

	if post.TotalVolume > p.WhaleThreshold {
		score += riskVolumePoints
	}
	if prevTransfers > riskFrequencyFloor {
		score += riskFrequencyPoints
	}

	if flags.RapidTrading {
		score += riskRapidTradingPoints
	}
	if flags.LargeVolume {
		score += riskLargeVolumePoints
	}
	if flags.SuspiciousPattern {
		score += riskSuspiciousPoints
	}
	if flags.WhaleActivity {
		score += riskWhaleActivityPoints
	}
	if flags.DormantReactivation {
		score += riskDormantPoints
	}

	return score
}

// loyaltyScore computes the composite loyalty score from the post-update
// profile. Component proration uses truncating integer division; the
// rounding loss is the documented behavior, not an approximation error.
func loyaltyScore(p Params, post *AccountProfile) uint64 {
	var score uint64

	// Duration: full points once the account has been active for the
	// minimum hold time, linearly prorated below it.
	holdDuration := post.LastActivity - post.FirstActivity
	if p.MinHoldTimeForLoyalty == 0 || holdDuration >= p.MinHoldTimeForLoyalty {
		score += loyaltyDurationMax
	} else {
		score += holdDuration * loyaltyDurationMax / p.MinHoldTimeForLoyalty
	}

	// Consistency: rewards long average gaps between transfers.
	if post.AverageHoldTime > consistencyUnit {
		score += loyaltyConsistencyMax
	} else {
		score += post.AverageHoldTime * loyaltyConsistencyMax / consistencyUnit
	}

	// Activity band: full points for a healthy middle, a floor for both
	// near-inactive and churning accounts. Both bounds are exclusive.
	if post.TotalTransfers > activityBandLow && post.TotalTransfers < activityBandHigh {
		score += loyaltyActivityHigh
	} else {
		score += loyaltyActivityLow
	}

	return score
}
