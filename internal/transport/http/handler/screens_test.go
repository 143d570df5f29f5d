package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/signcast/notify/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// --- mock ---

type mockScreenSvc struct{ mock.Mock }

func (m *mockScreenSvc) Register(ctx context.Context, req domain.RegisterScreenRequest) (*domain.Screen, string, error) {
	args := m.Called(ctx, req)
	if s, _ := args.Get(0).(*domain.Screen); s != nil {
		return s, args.String(1), args.Error(2)
	}
	return nil, "", args.Error(2)
}
func (m *mockScreenSvc) Authenticate(ctx context.Context, screenID, deviceToken string) (*domain.Screen, error) {
	args := m.Called(ctx, screenID, deviceToken)
	if s, _ := args.Get(0).(*domain.Screen); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockScreenSvc) Get(ctx context.Context, screenID string) (*domain.Screen, error) {
	args := m.Called(ctx, screenID)
	if s, _ := args.Get(0).(*domain.Screen); s != nil {
		return s, args.Error(1)
	}
	return nil, args.Error(1)
}
func (m *mockScreenSvc) ListByOrg(ctx context.Context, orgID string) ([]domain.Screen, error) {
	args := m.Called(ctx, orgID)
	screens, _ := args.Get(0).([]domain.Screen)
	return screens, args.Error(1)
}
func (m *mockScreenSvc) Delete(ctx context.Context, screenID string) error {
	return m.Called(ctx, screenID).Error(0)
}

// withScreenID injects a chi URL param "id" into the request context.
func withScreenID(r *http.Request, id string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", id)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

// --- Register tests ---

func TestScreenRegister_InvalidBody(t *testing.T) {
	h := NewScreenHandler(&mockScreenSvc{})
	r := httptest.NewRequest(http.MethodPost, "/v1/screens", bytes.NewBufferString("not-json"))
	rr := httptest.NewRecorder()
	h.Register(rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestScreenRegister_ValidationFailure(t *testing.T) {
	h := NewScreenHandler(&mockScreenSvc{})
	body, _ := json.Marshal(domain.RegisterScreenRequest{Name: "Lobby"}) // missing org_id
	r := httptest.NewRequest(http.MethodPost, "/v1/screens", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.Register(rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestScreenRegister_HappyPath_ReturnsTokenOnce(t *testing.T) {
	svc := &mockScreenSvc{}
	scr := &domain.Screen{ScreenID: "scr1", OrgID: "org1", Name: "Lobby", Active: true}
	svc.On("Register", mock.Anything, mock.AnythingOfType("domain.RegisterScreenRequest")).
		Return(scr, "plaintext-device-token", nil)
	h := NewScreenHandler(svc)
	body, _ := json.Marshal(domain.RegisterScreenRequest{OrgID: "org1", Name: "Lobby", Location: "HQ"})

	r := httptest.NewRequest(http.MethodPost, "/v1/screens", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.Register(rr, r)

	assert.Equal(t, http.StatusCreated, rr.Code)
	var resp RegisteredScreenEnvelope
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "scr1", resp.Screen.ScreenID)
	assert.Equal(t, "plaintext-device-token", resp.DeviceToken)
	svc.AssertExpectations(t)
}

func TestScreenRegister_HashNeverSerialized(t *testing.T) {
	svc := &mockScreenSvc{}
	scr := &domain.Screen{ScreenID: "scr1", OrgID: "org1", Name: "Lobby", DeviceTokenHash: "$2a$10$secret"}
	svc.On("Register", mock.Anything, mock.Anything).Return(scr, "tok", nil)
	h := NewScreenHandler(svc)
	body, _ := json.Marshal(domain.RegisterScreenRequest{OrgID: "org1", Name: "Lobby"})

	r := httptest.NewRequest(http.MethodPost, "/v1/screens", bytes.NewReader(body))
	rr := httptest.NewRecorder()
	h.Register(rr, r)

	assert.NotContains(t, rr.Body.String(), "secret")
}

// --- Get tests ---

func TestScreenGet_NotFound(t *testing.T) {
	svc := &mockScreenSvc{}
	svc.On("Get", mock.Anything, "scr1").Return(nil, domain.ErrNotFound)
	h := NewScreenHandler(svc)

	r := withScreenID(httptest.NewRequest(http.MethodGet, "/v1/screens/scr1", nil), "scr1")
	rr := httptest.NewRecorder()
	h.Get(rr, r)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestScreenGet_HappyPath(t *testing.T) {
	svc := &mockScreenSvc{}
	svc.On("Get", mock.Anything, "scr1").Return(&domain.Screen{ScreenID: "scr1", Name: "Lobby"}, nil)
	h := NewScreenHandler(svc)

	r := withScreenID(httptest.NewRequest(http.MethodGet, "/v1/screens/scr1", nil), "scr1")
	rr := httptest.NewRecorder()
	h.Get(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp domain.Screen
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Equal(t, "Lobby", resp.Name)
}

// --- List tests ---

func TestScreenList_MissingOrgID(t *testing.T) {
	h := NewScreenHandler(&mockScreenSvc{})
	r := httptest.NewRequest(http.MethodGet, "/v1/screens", nil)
	rr := httptest.NewRecorder()
	h.List(rr, r)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestScreenList_HappyPath(t *testing.T) {
	svc := &mockScreenSvc{}
	svc.On("ListByOrg", mock.Anything, "org1").Return([]domain.Screen{
		{ScreenID: "scr1"}, {ScreenID: "scr2"},
	}, nil)
	h := NewScreenHandler(svc)

	r := httptest.NewRequest(http.MethodGet, "/v1/screens?org_id=org1", nil)
	rr := httptest.NewRecorder()
	h.List(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	var resp []domain.Screen
	require.NoError(t, json.NewDecoder(rr.Body).Decode(&resp))
	assert.Len(t, resp, 2)
	svc.AssertExpectations(t)
}

// --- Delete tests ---

func TestScreenDelete_HappyPath(t *testing.T) {
	svc := &mockScreenSvc{}
	svc.On("Delete", mock.Anything, "scr1").Return(nil)
	h := NewScreenHandler(svc)

	r := withScreenID(httptest.NewRequest(http.MethodDelete, "/v1/screens/scr1", nil), "scr1")
	rr := httptest.NewRecorder()
	h.Delete(rr, r)

	assert.Equal(t, http.StatusOK, rr.Code)
	svc.AssertExpectations(t)
}
