package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	"swimdesk/internal/common"
	"swimdesk/internal/gate"
	"swimdesk/internal/metrics"
	"swimdesk/internal/middleware"
	"swimdesk/internal/tiers"
	"swimdesk/internal/tierstate"
)

// SessionStores hands out the tier store of a browser session.
type SessionStores interface {
	Get(ctx context.Context, sessionID string) *tierstate.Store
	Remove(sessionID string)
}

// sessionStore resolves the store of the request's session.
func sessionStore(c echo.Context, stores SessionStores) (*tierstate.Store, error) {
	ctx := c.Request().Context()
	sessionID, ok := common.GetSessionIDFromContext(ctx)
	if !ok {
		return nil, echo.NewHTTPError(http.StatusBadRequest, "Session not found")
	}
	return stores.Get(ctx, sessionID), nil
}

// SessionHandlers expose the session's selected tier.
type SessionHandlers struct {
	stores SessionStores
	cookie middleware.SessionConfig
	log    *slog.Logger
}

func NewSessionHandlers(stores SessionStores, cookie middleware.SessionConfig, log *slog.Logger) *SessionHandlers {
	return &SessionHandlers{
		stores: stores,
		cookie: cookie,
		log:    log,
	}
}

// SessionTierResponse is the tier state of a session.
type SessionTierResponse struct {
	Tier    tiers.Tier `json:"tier"`
	Name    string     `json:"name"`
	Loading bool       `json:"loading"`
	Changed bool       `json:"changed"`
}

func tierResponse(state tierstate.State, changed bool) SessionTierResponse {
	return SessionTierResponse{
		Tier:    state.Tier,
		Name:    state.Tier.DisplayName(),
		Loading: state.Loading,
		Changed: changed,
	}
}

// GetTier returns the current tier. While loading the tier is provisional.
func (h *SessionHandlers) GetTier(c echo.Context) error {
	store, err := sessionStore(c, h.stores)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, tierResponse(store.Snapshot(), false))
}

// SetTierRequest selects a tier by identifier.
type SetTierRequest struct {
	Tier string `json:"tier"`
}

// SetTier changes the session tier. Unknown identifiers leave it unchanged.
func (h *SessionHandlers) SetTier(c echo.Context) error {
	var req SetTierRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	store, err := sessionStore(c, h.stores)
	if err != nil {
		return err
	}

	changed := store.SetTierString(c.Request().Context(), req.Tier)
	state := store.Snapshot()
	if changed {
		metrics.TierChangesTotal.WithLabelValues("session", state.Tier.String()).Inc()
	} else {
		h.log.Debug("ignoring unknown tier", slog.String("tier", req.Tier))
	}

	return c.JSON(http.StatusOK, tierResponse(state, changed))
}

// EndSession resets the session's store and drops the cookie.
func (h *SessionHandlers) EndSession(c echo.Context) error {
	sessionID, ok := common.GetSessionIDFromContext(c.Request().Context())
	if ok {
		h.stores.Remove(sessionID)
	}
	middleware.ExpireSessionCookie(c, h.cookie)
	return c.NoContent(http.StatusNoContent)
}

// FeatureBadge is one catalog feature with its badge for the session tier.
type FeatureBadge struct {
	Feature     tiers.FeatureKey `json:"feature"`
	Description string           `json:"description"`
	Badge       gate.Badge       `json:"badge"`
}

// ListFeatures returns every catalog feature with an included/required badge.
func (h *SessionHandlers) ListFeatures(c echo.Context) error {
	store, err := sessionStore(c, h.stores)
	if err != nil {
		return err
	}
	state := store.Snapshot()

	keys := tiers.FeaturesOf(tiers.Unlimited)
	out := make([]FeatureBadge, 0, len(keys))
	for _, k := range keys {
		out = append(out, FeatureBadge{
			Feature:     k,
			Description: tiers.DescriptionOf(k),
			Badge:       gate.DecideBadge(state, tiers.RequireFeature(k)),
		})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"tier":     state.Tier,
		"loading":  state.Loading,
		"features": out,
	})
}
