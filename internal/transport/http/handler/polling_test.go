package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/signcast/notify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mock ---

type mockSchedulerSvc struct{ mock.Mock }

func (m *mockSchedulerSvc) ResolveInterval(ctx context.Context, orgID string, now time.Time) domain.IntervalResolution {
	args := m.Called(ctx, orgID, now)
	return args.Get(0).(domain.IntervalResolution)
}
func (m *mockSchedulerSvc) ActivateOverride(ctx context.Context, orgID string, durationHours int) (*domain.EmergencyOverride, error) {
	args := m.Called(ctx, orgID, durationHours)
	if ov, _ := args.Get(0).(*domain.EmergencyOverride); ov != nil {
		return ov, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSchedulerSvc) DeactivateOverride(ctx context.Context, orgID string) error {
	return m.Called(ctx, orgID).Error(0)
}
func (m *mockSchedulerSvc) GetConfig(ctx context.Context, orgID string) (*domain.PollingConfig, error) {
	args := m.Called(ctx, orgID)
	if c, _ := args.Get(0).(*domain.PollingConfig); c != nil {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockSchedulerSvc) PutConfig(ctx context.Context, cfg *domain.PollingConfig) error {
	return m.Called(ctx, cfg).Error(0)
}

// withOrgID injects a chi URL param "orgID" into the request context.
func withOrgID(r *http.Request, orgID string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orgID", orgID)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// --- Resolve tests ---

func TestResolve_NoScreenInContext(t *testing.T) {
	h := NewPollingHandler(&mockSchedulerSvc{})
	r := httptest.NewRequest(http.MethodGet, "/v1/polling-config", nil)
	rr := httptest.NewRecorder()
	h.Resolve(rr, r)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestResolve_ReturnsIntervalForDeviceOrg(t *testing.T) {
	svc := &mockSchedulerSvc{}
	svc.On("ResolveInterval", mock.Anything, "org1", mock.AnythingOfType("time.Time")).
		Return(domain.IntervalResolution{IntervalSeconds: 30})
	h := NewPollingHandler(svc)
	scr := &domain.Screen{ScreenID: "scr1", OrgID: "org1", Active: true}

	r := httptest.NewRequest(http.MethodGet, "/v1/polling-config", nil)
	rr := httptest.NewRecorder()
	serveAsDevice(scr, http.HandlerFunc(h.Resolve), rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	var res domain.IntervalResolution
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&res))
	assert.Equal(t, 30, res.IntervalSeconds)
	assert.False(t, res.EmergencyActive)
	svc.AssertExpectations(t)
}

// --- config tests ---

func TestGetConfig_NotFound(t *testing.T) {
	svc := &mockSchedulerSvc{}
	svc.On("GetConfig", mock.Anything, "org1").Return(nil, domain.ErrNotFound)
	h := NewPollingHandler(svc)

	r := withOrgID(httptest.NewRequest(http.MethodGet, "/v1/polling-config/org1", nil), "org1")
	rr := httptest.NewRecorder()
	h.GetConfig(rr, r)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestPutConfig_InvalidBody(t *testing.T) {
	h := NewPollingHandler(&mockSchedulerSvc{})
	r := withOrgID(httptest.NewRequest(http.MethodPut, "/v1/polling-config/org1", bytes.NewBufferString("not-json")), "org1")
	rr := httptest.NewRecorder()
	h.PutConfig(rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPutConfig_ValidationFailure(t *testing.T) {
	svc := &mockSchedulerSvc{}
	svc.On("PutConfig", mock.Anything, mock.Anything).Return(domain.ErrBadRequest)
	h := NewPollingHandler(svc)
	body, _ := json.Marshal(domain.PollingConfig{Timezone: "UTC"})

	r := withOrgID(httptest.NewRequest(http.MethodPut, "/v1/polling-config/org1", bytes.NewReader(body)), "org1")
	rr := httptest.NewRecorder()
	h.PutConfig(rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestPutConfig_OrgIDComesFromPath(t *testing.T) {
	svc := &mockSchedulerSvc{}
	var got *domain.PollingConfig
	svc.On("PutConfig", mock.Anything, mock.AnythingOfType("*domain.PollingConfig")).
		Run(func(args mock.Arguments) { got = args.Get(1).(*domain.PollingConfig) }).
		Return(nil)
	h := NewPollingHandler(svc)
	body, _ := json.Marshal(domain.PollingConfig{
		OrgID:    "spoofed",
		Timezone: "UTC",
		Windows:  []domain.PollingWindow{{Start: "00:00", End: "24:00", IntervalSeconds: 300}},
	})

	r := withOrgID(httptest.NewRequest(http.MethodPut, "/v1/polling-config/org1", bytes.NewReader(body)), "org1")
	rr := httptest.NewRecorder()
	h.PutConfig(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, got)
	assert.Equal(t, "org1", got.OrgID, "body org_id must be overridden by the path")
}

// --- override tests ---

func TestActivateOverride_NoBody_UsesDefaultDuration(t *testing.T) {
	svc := &mockSchedulerSvc{}
	now := time.Now().UTC()
	expires := now.Add(4 * time.Hour)
	svc.On("ActivateOverride", mock.Anything, "org1", 0).
		Return(&domain.EmergencyOverride{Active: true, ActivatedAt: &now, ExpiresAt: &expires}, nil)
	h := NewPollingHandler(svc)

	r := withOrgID(httptest.NewRequest(http.MethodPost, "/v1/polling-config/org1/override", nil), "org1")
	rr := httptest.NewRecorder()
	h.ActivateOverride(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	var ov domain.EmergencyOverride
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&ov))
	assert.True(t, ov.Active)
	svc.AssertExpectations(t)
}

func TestActivateOverride_ExplicitDuration(t *testing.T) {
	svc := &mockSchedulerSvc{}
	svc.On("ActivateOverride", mock.Anything, "org1", 2).
		Return(&domain.EmergencyOverride{Active: true}, nil)
	h := NewPollingHandler(svc)
	body, _ := json.Marshal(domain.ActivateOverrideRequest{DurationHours: 2})

	r := withOrgID(httptest.NewRequest(http.MethodPost, "/v1/polling-config/org1/override", bytes.NewReader(body)), "org1")
	rr := httptest.NewRecorder()
	h.ActivateOverride(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestActivateOverride_ChunkedBody_DurationStillParsed(t *testing.T) {
	svc := &mockSchedulerSvc{}
	svc.On("ActivateOverride", mock.Anything, "org1", 2).
		Return(&domain.EmergencyOverride{Active: true}, nil)
	h := NewPollingHandler(svc)
	body, _ := json.Marshal(domain.ActivateOverrideRequest{DurationHours: 2})

	// Wrapping the reader hides its length, as a chunked upload would.
	r := httptest.NewRequest(http.MethodPost, "/v1/polling-config/org1/override",
		io.NopCloser(bytes.NewReader(body)))
	require.Equal(t, int64(-1), r.ContentLength)
	r = withOrgID(r, "org1")
	rr := httptest.NewRecorder()
	h.ActivateOverride(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}

func TestActivateOverride_DurationOutOfRange(t *testing.T) {
	h := NewPollingHandler(&mockSchedulerSvc{})
	body, _ := json.Marshal(domain.ActivateOverrideRequest{DurationHours: 48})

	r := withOrgID(httptest.NewRequest(http.MethodPost, "/v1/polling-config/org1/override", bytes.NewReader(body)), "org1")
	rr := httptest.NewRecorder()
	h.ActivateOverride(rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestDeactivateOverride(t *testing.T) {
	svc := &mockSchedulerSvc{}
	svc.On("DeactivateOverride", mock.Anything, "org1").Return(nil)
	h := NewPollingHandler(svc)

	r := withOrgID(httptest.NewRequest(http.MethodDelete, "/v1/polling-config/org1/override", nil), "org1")
	rr := httptest.NewRecorder()
	h.DeactivateOverride(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}
