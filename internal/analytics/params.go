package analytics

// Default tunables. Time-valued defaults are in chain time units with
// BlocksPerDay units to a day: the dormancy period is ~100 days and the
// minimum hold time for full loyalty is ~30 days.
const (
	DefaultRiskHighThreshold  = 75
	DefaultMaxTransfersPerDay = 50
	DefaultWhaleThreshold     = 1_000_000
	DefaultBlocksPerDay       = 144
	DefaultDormancyPeriod     = 100 * DefaultBlocksPerDay
	DefaultMinHoldTime        = 30 * DefaultBlocksPerDay
)

// Params are the engine tunables. The four Weight* fields are declared for
// compatibility with the legacy configuration surface but the scoring
// formulas use the literal component weights in scores.go; changing them has
// no effect. Do not wire them into the formulas.
type Params struct {
	RiskHighThreshold     uint64 `json:"riskHighThreshold"`
	MaxTransfersPerDay    uint64 `json:"maxTransfersPerDay"`
	WhaleThreshold        uint64 `json:"whaleThreshold"`
	DormancyPeriod        uint64 `json:"dormancyPeriod"`
	MinHoldTimeForLoyalty uint64 `json:"minHoldTimeForLoyalty"`
	BlocksPerDay          uint64 `json:"blocksPerDay"`

	WeightFrequency   uint64 `json:"weightFrequency"`
	WeightVolume      uint64 `json:"weightVolume"`
	WeightDuration    uint64 `json:"weightDuration"`
	WeightConsistency uint64 `json:"weightConsistency"`
}

// DefaultParams returns the default tunables.
func DefaultParams() Params {
	return Params{
		RiskHighThreshold:     DefaultRiskHighThreshold,
		MaxTransfersPerDay:    DefaultMaxTransfersPerDay,
		WhaleThreshold:        DefaultWhaleThreshold,
		DormancyPeriod:        DefaultDormancyPeriod,
		MinHoldTimeForLoyalty: DefaultMinHoldTime,
		BlocksPerDay:          DefaultBlocksPerDay,

		WeightFrequency:   30,
		WeightVolume:      25,
		WeightDuration:    25,
		WeightConsistency: 20,
	}
}

// largeVolumeCutoff is the single-transfer size that trips the large_volume
// flag: one tenth of the whale threshold.
func (p Params) largeVolumeCutoff() uint64 {
	return p.WhaleThreshold / 10
}

// dayOf buckets a chain timestamp into a day index.
func (p Params) dayOf(timestamp uint64) uint64 {
	if p.BlocksPerDay == 0 {
		return 0
	}
	return timestamp / p.BlocksPerDay
}
