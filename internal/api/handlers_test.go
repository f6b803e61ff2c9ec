package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"example.com/supplierportal/services/deliverynote/config"
	"example.com/supplierportal/services/deliverynote/internal/ledger"
	"example.com/supplierportal/services/deliverynote/internal/model"
	"example.com/supplierportal/services/deliverynote/internal/repository"
	"example.com/supplierportal/services/deliverynote/internal/service"
)

type mockService struct {
	mock.Mock
}

func (m *mockService) GetSnapshot(ctx context.Context, noDN string) (*service.SnapshotResponse, error) {
	args := m.Called(ctx, noDN)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SnapshotResponse), args.Error(1)
}

func (m *mockService) ListBySupplier(ctx context.Context, supplierCode string) ([]*model.DeliveryNote, error) {
	args := m.Called(ctx, supplierCode)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.DeliveryNote), args.Error(1)
}

func (m *mockService) SubmitQuantities(ctx context.Context, cmd service.SubmitCommand) (*service.SnapshotResponse, error) {
	args := m.Called(ctx, cmd)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*service.SnapshotResponse), args.Error(1)
}

func (m *mockService) UpdateDriverInfo(ctx context.Context, cmd service.DriverInfoCommand) error {
	args := m.Called(ctx, cmd)
	return args.Error(0)
}

func (m *mockService) History(ctx context.Context, noDN string) ([]*model.SubmissionEvent, error) {
	args := m.Called(ctx, noDN)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.SubmissionEvent), args.Error(1)
}

func newTestServer(t *testing.T, svc service.DeliveryNoteService, token string) *Server {
	t.Helper()
	gin.SetMode(gin.TestMode)
	cfg := &config.ServerConfig{Host: "127.0.0.1", Port: 0, Mode: gin.TestMode, APIToken: token}
	log := logrus.New()
	return NewServer(cfg, svc, nil, log)
}

func TestGetSnapshotEndpoint(t *testing.T) {
	svc := new(mockService)
	svc.On("GetSnapshot", mock.Anything, "DN-0001").Return(&service.SnapshotResponse{NoDN: "DN-0001", Version: "42"}, nil)
	server := newTestServer(t, svc, "")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dn/detail/DN-0001", nil)
	server.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body service.SnapshotResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "DN-0001", body.NoDN)
	assert.Equal(t, "42", body.Version)
}

func TestGetSnapshotNotFound(t *testing.T) {
	svc := new(mockService)
	svc.On("GetSnapshot", mock.Anything, "DN-MISSING").Return(nil, repository.ErrNotFound)
	server := newTestServer(t, svc, "")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dn/detail/DN-MISSING", nil)
	server.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusNotFound, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "NOT_FOUND", body.Code)
}

func TestSubmitQuantitiesValidationError(t *testing.T) {
	svc := new(mockService)
	svc.On("SubmitQuantities", mock.Anything, mock.Anything).Return(nil,
		&ledger.ValidationError{Reason: ledger.ReasonExceedsRequested, Field: "L1", Max: 100})
	server := newTestServer(t, svc, "")

	payload, _ := json.Marshal(service.SubmitCommand{
		NoDN:    "DN-0001",
		Updates: []service.LineUpdate{{DNDetailNo: "L1", QtyConfirm: 150}},
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/dn/update", bytes.NewReader(payload))
	server.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "VALIDATION_ERROR", body.Code)
	assert.Equal(t, "exceedsRequested", body.Reason)
	assert.Equal(t, int64(100), body.Max)
}

func TestSubmitQuantitiesConflict(t *testing.T) {
	svc := new(mockService)
	svc.On("SubmitQuantities", mock.Anything, mock.Anything).Return(nil,
		&service.VersionConflictError{NoDN: "DN-0001"})
	server := newTestServer(t, svc, "")

	payload, _ := json.Marshal(service.SubmitCommand{
		NoDN:    "DN-0001",
		Version: "stale",
		Updates: []service.LineUpdate{{DNDetailNo: "L1", QtyConfirm: 10}},
	})
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/dn/update", bytes.NewReader(payload))
	server.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "CONFLICT", body.Code)
}

func TestSubmitQuantitiesMissingNoDN(t *testing.T) {
	svc := new(mockService)
	server := newTestServer(t, svc, "")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPut, "/dn/update", bytes.NewReader([]byte(`{"updates":[]}`)))
	server.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "SubmitQuantities", mock.Anything, mock.Anything)
}

func TestBearerAuthRejectsMissingToken(t *testing.T) {
	svc := new(mockService)
	server := newTestServer(t, svc, "secret-token")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dn/detail/DN-0001", nil)
	server.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	svc.AssertNotCalled(t, "GetSnapshot", mock.Anything, mock.Anything)
}

func TestBearerAuthAcceptsToken(t *testing.T) {
	svc := new(mockService)
	svc.On("GetSnapshot", mock.Anything, "DN-0001").Return(&service.SnapshotResponse{NoDN: "DN-0001"}, nil)
	server := newTestServer(t, svc, "secret-token")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/dn/detail/DN-0001", nil)
	req.Header.Set("Authorization", "Bearer secret-token")
	server.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}

func TestHealthEndpointBypassesAuth(t *testing.T) {
	svc := new(mockService)
	server := newTestServer(t, svc, "secret-token")

	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	server.httpServer.Handler.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
}
