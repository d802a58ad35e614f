package handlers

import (
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"

	"swimdesk/internal/common"
	"swimdesk/internal/pricing"
	"swimdesk/internal/tiers"
)

// TierHandlers serve the read-only tier catalog and the pricing page.
type TierHandlers struct {
	stores SessionStores
}

func NewTierHandlers(stores SessionStores) *TierHandlers {
	return &TierHandlers{stores: stores}
}

type CatalogFeature struct {
	Key         tiers.FeatureKey `json:"key"`
	Description string           `json:"description"`
}

type CatalogTier struct {
	Tier     tiers.Tier       `json:"tier"`
	Name     string           `json:"name"`
	Pricing  tiers.Pricing    `json:"pricing"`
	Features []CatalogFeature `json:"features"`
}

func catalogTier(t tiers.Tier) CatalogTier {
	keys := tiers.FeaturesOf(t)
	features := make([]CatalogFeature, 0, len(keys))
	for _, k := range keys {
		features = append(features, CatalogFeature{Key: k, Description: tiers.DescriptionOf(k)})
	}
	return CatalogTier{
		Tier:     t,
		Name:     t.DisplayName(),
		Pricing:  tiers.PricingOf(t),
		Features: features,
	}
}

// ListTiers returns every tier in ascending order.
func (h *TierHandlers) ListTiers(c echo.Context) error {
	all := tiers.All()
	out := make([]CatalogTier, 0, len(all))
	for _, t := range all {
		out = append(out, catalogTier(t))
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"tiers": out,
	})
}

func (h *TierHandlers) GetTier(c echo.Context) error {
	t, ok := tiers.ParseTier(strings.ToLower(c.Param("tier")))
	if !ok {
		return common.SendNotFoundError(c, "Tier")
	}
	return c.JSON(http.StatusOK, catalogTier(t))
}

// GetFeature describes a feature and names the lowest tier that includes it.
func (h *TierHandlers) GetFeature(c echo.Context) error {
	key := tiers.FeatureKey(c.Param("feature"))
	required, ok := tiers.RequiredTierFor(key)
	if !ok {
		return common.SendNotFoundError(c, "Feature")
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"key":           key,
		"description":   tiers.DescriptionOf(key),
		"required_tier": required,
	})
}

// PricingResponse is the pricing page: the cards and the order they are
// revealed in.
type PricingResponse struct {
	Cards       []pricing.Card `json:"cards"`
	RevealOrder []int          `json:"reveal_order"`
	Highlighted tiers.Tier     `json:"highlighted"`
	Loading     bool           `json:"loading"`
}

// GetPricing marks the session's tier as current once it has loaded.
func (h *TierHandlers) GetPricing(c echo.Context) error {
	current := tiers.Tier(-1)
	loading := false
	if _, ok := common.GetSessionIDFromContext(c.Request().Context()); ok {
		store, err := sessionStore(c, h.stores)
		if err != nil {
			return err
		}
		state := store.Snapshot()
		loading = state.Loading
		if !loading {
			current = state.Tier
		}
	}

	cards := pricing.Cards(current)
	return c.JSON(http.StatusOK, PricingResponse{
		Cards:       cards,
		RevealOrder: pricing.Order(len(cards)),
		Highlighted: pricing.Highlighted,
		Loading:     loading,
	})
}
