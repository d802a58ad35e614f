package handlers

import (
	"bytes"
	"html/template"
	"net/http"

	"github.com/labstack/echo/v4"

	"swimdesk/internal/gate"
	"swimdesk/internal/tiers"
)

// GateHandlers evaluate and render tier gates for the session.
type GateHandlers struct {
	stores SessionStores
}

func NewGateHandlers(stores SessionStores) *GateHandlers {
	return &GateHandlers{stores: stores}
}

// GateRequest names either a feature or a minimum tier. Content and Fallback
// are plain text and are escaped when rendered.
type GateRequest struct {
	Feature           string `json:"feature"`
	Tier              string `json:"tier"`
	Content           string `json:"content"`
	Fallback          string `json:"fallback"`
	ShowUpgradePrompt *bool  `json:"show_upgrade_prompt"`
}

func (r GateRequest) requirement() (tiers.Requirement, error) {
	switch {
	case r.Feature != "" && r.Tier != "":
		return tiers.Requirement{}, echo.NewHTTPError(http.StatusBadRequest, "Specify either feature or tier, not both")
	case r.Feature != "":
		key := tiers.FeatureKey(r.Feature)
		if !tiers.KnownFeature(key) {
			return tiers.Requirement{}, echo.NewHTTPError(http.StatusBadRequest, "Unknown feature")
		}
		return tiers.RequireFeature(key), nil
	case r.Tier != "":
		t, ok := tiers.ParseTier(r.Tier)
		if !ok {
			return tiers.Requirement{}, echo.NewHTTPError(http.StatusBadRequest, "Unknown tier")
		}
		return tiers.RequireTier(t), nil
	default:
		return tiers.Requirement{}, echo.NewHTTPError(http.StatusBadRequest, "Feature or tier is required")
	}
}

func (r GateRequest) options() gate.Options {
	return gate.Options{
		HasFallback:       r.Fallback != "",
		ShowUpgradePrompt: r.ShowUpgradePrompt,
	}
}

func (h *GateHandlers) decide(c echo.Context) (gate.Decision, GateRequest, error) {
	var req GateRequest
	if err := c.Bind(&req); err != nil {
		return gate.Decision{}, req, echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	requirement, err := req.requirement()
	if err != nil {
		return gate.Decision{}, req, err
	}
	store, err := sessionStore(c, h.stores)
	if err != nil {
		return gate.Decision{}, req, err
	}
	return gate.Decide(store.Snapshot(), requirement, req.options()), req, nil
}

// Evaluate returns the gate decision as JSON.
func (h *GateHandlers) Evaluate(c echo.Context) error {
	d, _, err := h.decide(c)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, d)
}

// Render returns the HTML fragment for the gate decision.
func (h *GateHandlers) Render(c echo.Context) error {
	d, req, err := h.decide(c)
	if err != nil {
		return err
	}

	var buf bytes.Buffer
	content := template.HTML(template.HTMLEscapeString(req.Content))
	fallback := template.HTML(template.HTMLEscapeString(req.Fallback))
	if err := gate.Render(&buf, d, content, fallback); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to render gate")
	}
	c.Response().Header().Set("X-Gate-Outcome", string(d.Outcome))
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}

// Badge returns the compact badge fragment.
func (h *GateHandlers) Badge(c echo.Context) error {
	var req GateRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	requirement, err := req.requirement()
	if err != nil {
		return err
	}
	store, err := sessionStore(c, h.stores)
	if err != nil {
		return err
	}

	b := gate.DecideBadge(store.Snapshot(), requirement)
	var buf bytes.Buffer
	if err := gate.RenderBadge(&buf, b); err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to render badge")
	}
	c.Response().Header().Set("X-Gate-Outcome", string(b.Outcome))
	return c.HTMLBlob(http.StatusOK, buf.Bytes())
}
