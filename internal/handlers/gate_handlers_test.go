package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"swimdesk/internal/gate"
	"swimdesk/internal/tiers"
	"swimdesk/internal/tierstate"
)

func TestEvaluateGate(t *testing.T) {
	e := newSessionServer(newRegistry(t, tierstate.NewMemoryPersistence()))
	sid := newSessionID()

	tests := []struct {
		name string
		body string
		want gate.Outcome
	}{
		{"basic session lacks growth", `{"tier":"growth"}`, gate.OutcomeOverlay},
		{"basic session has scheduling", `{"feature":"class_scheduling"}`, gate.OutcomeContent},
		{"fallback wins", `{"feature":"api_access","fallback":"later"}`, gate.OutcomeFallback},
		{"prompt disabled", `{"tier":"starter","show_upgrade_prompt":false}`, gate.OutcomeNothing},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := doRequest(e, http.MethodPost, "/v1/gate/evaluate", sid, tt.body)
			require.Equal(t, http.StatusOK, rec.Code)

			var d gate.Decision
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
			assert.Equal(t, tt.want, d.Outcome)
			assert.Equal(t, tiers.Basic, d.CurrentTier)
		})
	}
}

func TestEvaluateGateRejectsBadRequirements(t *testing.T) {
	e := newSessionServer(newRegistry(t, tierstate.NewMemoryPersistence()))
	sid := newSessionID()

	for _, body := range []string{
		`{}`,
		`{"feature":"teleportation"}`,
		`{"tier":"gold"}`,
		`{"tier":"growth","feature":"waitlists"}`,
	} {
		rec := doRequest(e, http.MethodPost, "/v1/gate/evaluate", sid, body)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

// slowPersistence never answers before its context ends.
type slowPersistence struct{}

func (slowPersistence) LoadTier(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func (slowPersistence) SaveTier(context.Context, string, string) error { return nil }

func TestEvaluateGateWhileLoading(t *testing.T) {
	registry, err := tierstate.NewRegistry(slowPersistence{}, testLogger(), tierstate.RegistryConfig{
		Capacity:    4,
		LoadWait:    10 * time.Millisecond,
		LoadTimeout: time.Second,
	})
	require.NoError(t, err)
	e := newSessionServer(registry)

	rec := doRequest(e, http.MethodPost, "/v1/gate/evaluate", newSessionID(), `{"tier":"basic"}`)
	require.Equal(t, http.StatusOK, rec.Code)

	var d gate.Decision
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &d))
	assert.Equal(t, gate.OutcomePlaceholder, d.Outcome)
	assert.False(t, d.HasAccess)
}

func TestRenderGate(t *testing.T) {
	e := newSessionServer(newRegistry(t, tierstate.NewMemoryPersistence()))
	sid := newSessionID()

	rec := doRequest(e, http.MethodPost, "/v1/gate/render", sid, `{"feature":"advanced_reporting","content":"<b>Revenue</b>"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "overlay", rec.Header().Get("X-Gate-Outcome"))
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/html")

	body := rec.Body.String()
	assert.Contains(t, body, "Upgrade to Growth")
	assert.Contains(t, body, "&lt;b&gt;Revenue&lt;/b&gt;")
	assert.NotContains(t, body, "<b>Revenue</b>")

	doRequest(e, http.MethodPut, "/v1/session/tier", sid, `{"tier":"growth"}`)
	rec = doRequest(e, http.MethodPost, "/v1/gate/render", sid, `{"feature":"advanced_reporting","content":"Revenue"}`)
	assert.Equal(t, "content", rec.Header().Get("X-Gate-Outcome"))
	assert.Equal(t, "Revenue", rec.Body.String())
}

func TestRenderBadge(t *testing.T) {
	e := newSessionServer(newRegistry(t, tierstate.NewMemoryPersistence()))
	sid := newSessionID()

	rec := doRequest(e, http.MethodPost, "/v1/gate/badge", sid, `{"feature":"multi_location"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "required", rec.Header().Get("X-Gate-Outcome"))
	assert.Contains(t, rec.Body.String(), `data-required-tier="growth"`)
	assert.Contains(t, rec.Body.String(), ">Growth</span>")

	rec = doRequest(e, http.MethodPost, "/v1/gate/badge", sid, `{"tier":"basic"}`)
	assert.Contains(t, rec.Body.String(), ">Included</span>")

	rec = doRequest(e, http.MethodPost, "/v1/gate/badge", sid, `{"tier":"diamond"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
