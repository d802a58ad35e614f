package tiers

// HasFeature reports whether key is part of t's feature set.
func HasFeature(t Tier, key FeatureKey) bool {
	if !t.Valid() {
		return false
	}
	for _, f := range catalog[t].features {
		if f == key {
			return true
		}
	}
	return false
}

// MeetsTier reports whether t ranks at or above required.
func MeetsTier(t, required Tier) bool {
	return t >= required
}

// Requirement is an access requirement expressed either as a feature or as a
// minimum tier. When Feature is set, Tier is ignored.
type Requirement struct {
	Feature FeatureKey
	Tier    Tier
}

// RequireFeature builds a feature requirement.
func RequireFeature(key FeatureKey) Requirement {
	return Requirement{Feature: key}
}

// RequireTier builds a minimum-tier requirement.
func RequireTier(t Tier) Requirement {
	return Requirement{Tier: t}
}

// Allows evaluates the requirement against t.
func (r Requirement) Allows(t Tier) bool {
	if r.Feature != "" {
		return HasFeature(t, r.Feature)
	}
	return MeetsTier(t, r.Tier)
}

// RequiredTier is the tier to name on an upgrade prompt. Unknown features
// point at the top tier.
func (r Requirement) RequiredTier() Tier {
	if r.Feature != "" {
		if t, ok := RequiredTierFor(r.Feature); ok {
			return t
		}
		return Unlimited
	}
	return r.Tier
}
