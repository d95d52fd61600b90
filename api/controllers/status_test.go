package controllers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidnajera/mentiondesk-backend/internal/social"
	"github.com/davidnajera/mentiondesk-backend/pkg/breaker"
	"github.com/davidnajera/mentiondesk-backend/pkg/clock"
	"github.com/davidnajera/mentiondesk-backend/pkg/config"
	"github.com/davidnajera/mentiondesk-backend/pkg/gateway"
)

type stubUpstream struct{}

func (stubUpstream) DoJSON(context.Context, gateway.Request, any) error { return nil }

type seededStore struct {
	rows map[string]breaker.Snapshot
}

func (s *seededStore) Load(context.Context, string) (*breaker.Snapshot, error) { return nil, nil }
func (s *seededStore) Save(context.Context, string, breaker.Snapshot) error   { return nil }
func (s *seededStore) List(context.Context) (map[string]breaker.Snapshot, error) {
	return s.rows, nil
}

func healthGateway(t *testing.T, store breaker.Store) *social.Gateway {
	t.Helper()
	clk := clock.NewFake(time.Now().UTC())
	gw, err := social.New(social.Params{
		Config:   config.SocialConfig{Platforms: []string{"twitter", "facebook"}},
		Client:   stubUpstream{},
		Breakers: breaker.NewRegistry(breaker.Options{}, clk, store, nil, nil),
		Store:    store,
	})
	require.NoError(t, err)
	return gw
}

func TestStatusHealthDegradedWhenAnyCircuitOpen(t *testing.T) {
	store := &seededStore{rows: map[string]breaker.Snapshot{
		"twitter":  {State: breaker.StateOpen},
		"facebook": {State: breaker.StateClosed},
	}}

	req := httptest.NewRequest(http.MethodGet, "/v1/status/health", nil)
	rec := httptest.NewRecorder()
	StatusHealth(healthGateway(t, store), nil)(rec, req)

	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	var body struct {
		Status   string `json:"status"`
		Circuits []struct {
			Platform string `json:"platform"`
			Healthy  bool   `json:"healthy"`
		} `json:"circuits"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "degraded", body.Status)
	require.Len(t, body.Circuits, 2)
	assert.Equal(t, "facebook", body.Circuits[0].Platform)
	assert.True(t, body.Circuits[0].Healthy)
	assert.Equal(t, "twitter", body.Circuits[1].Platform)
	assert.False(t, body.Circuits[1].Healthy)
}

func TestStatusHealthHealthyWhenAllClosed(t *testing.T) {
	store := &seededStore{rows: map[string]breaker.Snapshot{
		"twitter": {State: breaker.StateClosed},
	}}

	req := httptest.NewRequest(http.MethodGet, "/v1/status/health", nil)
	rec := httptest.NewRecorder()
	StatusHealth(healthGateway(t, store), nil)(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestStatusLive(t *testing.T) {
	rec := httptest.NewRecorder()
	StatusLive()(rec, httptest.NewRequest(http.MethodGet, "/v1/status", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}
