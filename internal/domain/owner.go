package domain

import (
	"strings"
	"time"
)

// OwnerTier enumerates account tiers with their job allowance.
type OwnerTier string

const (
	OwnerTierFree       OwnerTier = "free"
	OwnerTierBasic      OwnerTier = "basic"
	OwnerTierPro        OwnerTier = "pro"
	OwnerTierEnterprise OwnerTier = "enterprise"
)

var tierLimits = map[OwnerTier]int{
	OwnerTierFree:       5,
	OwnerTierBasic:      15,
	OwnerTierPro:        50,
	OwnerTierEnterprise: 999,
}

// ParseOwnerTier resolves a tier name case-insensitively.
func ParseOwnerTier(v string) (OwnerTier, error) {
	tier := OwnerTier(strings.ToLower(strings.TrimSpace(v)))
	if _, ok := tierLimits[tier]; !ok {
		return "", ErrUnsupportedTier
	}
	return tier, nil
}

// MaxJobs returns the number of non-archived jobs the tier may hold.
func (t OwnerTier) MaxJobs() int {
	return tierLimits[t]
}

// Owner stores per-account quota overrides.
type Owner struct {
	ID        string
	Tier      OwnerTier
	MaxJobs   int
	UpdatedAt time.Time
}
