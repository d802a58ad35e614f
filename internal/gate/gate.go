// Package gate decides what a tier-gated piece of UI shows for a session and
// renders the matching HTML fragment. Every screen that hides content behind a
// tier goes through Decide rather than comparing tiers itself.
package gate

import (
	"swimdesk/internal/metrics"
	"swimdesk/internal/tiers"
	"swimdesk/internal/tierstate"
)

// Outcome is what the gate shows.
type Outcome string

const (
	OutcomePlaceholder Outcome = "placeholder"
	OutcomeContent     Outcome = "content"
	OutcomeFallback    Outcome = "fallback"
	OutcomeOverlay     Outcome = "overlay"
	OutcomeNothing     Outcome = "nothing"
)

// Options tune what is shown when access is denied. ShowUpgradePrompt
// defaults to true when nil.
type Options struct {
	HasFallback       bool
	ShowUpgradePrompt *bool
}

func (o Options) upgradePrompt() bool {
	return o.ShowUpgradePrompt == nil || *o.ShowUpgradePrompt
}

// Decision is the result of evaluating a gate.
type Decision struct {
	Outcome      Outcome    `json:"outcome"`
	HasAccess    bool       `json:"has_access"`
	CurrentTier  tiers.Tier `json:"current_tier"`
	RequiredTier tiers.Tier `json:"required_tier"`
}

// Decide maps the session state and requirement to exactly one outcome:
// loading stores give a placeholder, access gives the content, otherwise the
// fallback, the upgrade overlay, or nothing, in that order of preference.
func Decide(state tierstate.State, req tiers.Requirement, opts Options) Decision {
	d := Decision{
		CurrentTier:  state.Tier,
		RequiredTier: req.RequiredTier(),
	}

	switch {
	case state.Loading:
		d.Outcome = OutcomePlaceholder
	case req.Allows(state.Tier):
		d.HasAccess = true
		d.Outcome = OutcomeContent
	case opts.HasFallback:
		d.Outcome = OutcomeFallback
	case opts.upgradePrompt():
		d.Outcome = OutcomeOverlay
	default:
		d.Outcome = OutcomeNothing
	}

	metrics.GateDecisionsTotal.WithLabelValues(string(d.Outcome)).Inc()
	return d
}

// BadgeOutcome is the compact indicator shown inline in lists.
type BadgeOutcome string

const (
	BadgeLoading  BadgeOutcome = "loading"
	BadgeIncluded BadgeOutcome = "included"
	BadgeRequired BadgeOutcome = "required"
)

// Badge is an included/required marker without the overlay treatment.
type Badge struct {
	Outcome      BadgeOutcome `json:"outcome"`
	RequiredTier tiers.Tier   `json:"required_tier"`
	Label        string       `json:"label"`
}

// DecideBadge evaluates req like Decide but yields a badge.
func DecideBadge(state tierstate.State, req tiers.Requirement) Badge {
	b := Badge{RequiredTier: req.RequiredTier()}
	switch {
	case state.Loading:
		b.Outcome = BadgeLoading
	case req.Allows(state.Tier):
		b.Outcome = BadgeIncluded
		b.Label = "Included"
	default:
		b.Outcome = BadgeRequired
		b.Label = b.RequiredTier.DisplayName()
	}
	return b
}
