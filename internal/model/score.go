package model

import "time"

// TrustTier buckets a vendor trust score.
type TrustTier string

const (
	TrustTierHigh   TrustTier = "HIGH"
	TrustTierMedium TrustTier = "MEDIUM"
	TrustTierLow    TrustTier = "LOW"
	TrustTierJunk   TrustTier = "JUNK"
)

// TrustTierFor maps a 0-100 trust score onto its tier.
func TrustTierFor(score float64) TrustTier {
	switch {
	case score >= 75:
		return TrustTierHigh
	case score >= 45:
		return TrustTierMedium
	case score >= 20:
		return TrustTierLow
	default:
		return TrustTierJunk
	}
}

// TrustBreakdown holds the individually clamped factor contributions
// behind a vendor trust score. Persisted as a typed JSON column.
type TrustBreakdown struct {
	LifetimeVolume float64 `json:"lifetime_volume"`
	RecentVolume   float64 `json:"recent_volume"`
	TitleDiversity float64 `json:"title_diversity"`
	RateDisclosure float64 `json:"rate_disclosure"`
	LocationRate   float64 `json:"location_rate"`
	ContactDepth   float64 `json:"contact_depth"`
}

// VendorTrustScore is the latest trust estimate for one vendor company.
// Each full recompute overwrites the previous row; history lives in the
// run log, not here.
type VendorTrustScore struct {
	VendorCompanyID int64          `json:"vendor_company_id"`
	Score           float64        `json:"score"`
	Tier            TrustTier      `json:"tier"`
	Breakdown       TrustBreakdown `json:"breakdown"`
	ComputedAt      time.Time      `json:"computed_at"`
}

// ClosureTier buckets a closure score.
type ClosureTier string

const (
	ClosureTierHot  ClosureTier = "HOT"
	ClosureTierWarm ClosureTier = "WARM"
	ClosureTierCool ClosureTier = "COOL"
	ClosureTierCold ClosureTier = "COLD"
)

// ClosureTierFor maps a 0-100 closure score onto its tier.
func ClosureTierFor(score float64) ClosureTier {
	switch {
	case score >= 70:
		return ClosureTierHot
	case score >= 50:
		return ClosureTierWarm
	case score >= 30:
		return ClosureTierCool
	default:
		return ClosureTierCold
	}
}
