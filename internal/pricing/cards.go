// Package pricing builds the pricing page cards from the tier catalog.
package pricing

import "swimdesk/internal/tiers"

// Feature is one line on a pricing card.
type Feature struct {
	Key         tiers.FeatureKey `json:"key"`
	Description string           `json:"description"`
	// New marks features first introduced on this card's tier.
	New bool `json:"new"`
}

// Card is the pricing page entry for one tier.
type Card struct {
	Tier        tiers.Tier    `json:"tier"`
	Name        string        `json:"name"`
	Pricing     tiers.Pricing `json:"pricing"`
	Features    []Feature     `json:"features"`
	Highlighted bool          `json:"highlighted"`
	Current     bool          `json:"current"`
}

// Highlighted is the tier promoted on the pricing page.
const Highlighted = tiers.Growth

// Cards returns one card per tier in ascending order. current marks the
// session's own tier.
func Cards(current tiers.Tier) []Card {
	all := tiers.All()
	cards := make([]Card, 0, len(all))
	for _, t := range all {
		keys := tiers.FeaturesOf(t)
		features := make([]Feature, 0, len(keys))
		for _, k := range keys {
			introduced, _ := tiers.RequiredTierFor(k)
			features = append(features, Feature{
				Key:         k,
				Description: tiers.DescriptionOf(k),
				New:         introduced == t,
			})
		}
		cards = append(cards, Card{
			Tier:        t,
			Name:        t.DisplayName(),
			Pricing:     tiers.PricingOf(t),
			Features:    features,
			Highlighted: t == Highlighted,
			Current:     t == current,
		})
	}
	return cards
}
