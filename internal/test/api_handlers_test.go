package test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/FortiShop/product-inventory-service/internal/api"
	"github.com/FortiShop/product-inventory-service/internal/models"
)

// MockInventoryService implements the admin service interface for testing
type MockInventoryService struct {
	mock.Mock
}

func (m *MockInventoryService) GetInventory(ctx context.Context, productID int64) (*models.Inventory, bool, error) {
	args := m.Called(ctx, productID)
	if args.Get(0) == nil {
		return nil, args.Bool(1), args.Error(2)
	}
	return args.Get(0).(*models.Inventory), args.Bool(1), args.Error(2)
}

func (m *MockInventoryService) SetQuantity(ctx context.Context, productID int64, quantity int) (*models.Inventory, error) {
	args := m.Called(ctx, productID, quantity)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inventory), args.Error(1)
}

func setupTestRouter(svc *MockInventoryService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	return api.SetupRouter(api.NewHandler(svc), false)
}

func performRequest(router *gin.Engine, method, path, role, body string) *httptest.ResponseRecorder {
	var reader *strings.Reader
	if body != "" {
		reader = strings.NewReader(body)
	} else {
		reader = strings.NewReader("")
	}

	req := httptest.NewRequest(method, path, reader)
	if role != "" {
		req.Header.Set("X-ROLE", role)
	}
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)
	return recorder
}

func decodeErrorResponse(t *testing.T, recorder *httptest.ResponseRecorder) models.ErrorResponse {
	var body models.ErrorResponse
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body
}

func TestGetInventoryIsPublic(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupTestRouter(svc)

	inv := &models.Inventory{ProductID: 100, Quantity: 10, LastUpdated: time.Now()}
	svc.On("GetInventory", mock.Anything, int64(100)).Return(inv, true, nil)

	// Point reads need no role header
	recorder := performRequest(router, http.MethodGet, "/api/inventory/100", "", "")

	assert.Equal(t, http.StatusOK, recorder.Code)
	svc.AssertCalled(t, "GetInventory", mock.Anything, int64(100))
}

func TestGetInventoryIgnoresNonAdminRole(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupTestRouter(svc)

	inv := &models.Inventory{ProductID: 100, Quantity: 10, LastUpdated: time.Now()}
	svc.On("GetInventory", mock.Anything, int64(100)).Return(inv, true, nil)

	recorder := performRequest(router, http.MethodGet, "/api/inventory/100", "ROLE_USER", "")

	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestGetInventorySuccess(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupTestRouter(svc)

	inv := &models.Inventory{ProductID: 100, Quantity: 10, LastUpdated: time.Now()}
	svc.On("GetInventory", mock.Anything, int64(100)).Return(inv, true, nil)

	recorder := performRequest(router, http.MethodGet, "/api/inventory/100", "ROLE_ADMIN", "")

	assert.Equal(t, http.StatusOK, recorder.Code)
	var body models.InventoryResponse
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, int64(100), body.ProductID)
	assert.Equal(t, 10, body.Quantity)
}

func TestGetInventoryNotFound(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupTestRouter(svc)

	svc.On("GetInventory", mock.Anything, int64(999)).Return(nil, false, models.NewNotFoundError("inventory", 999))

	recorder := performRequest(router, http.MethodGet, "/api/inventory/999", "ROLE_ADMIN", "")

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	body := decodeErrorResponse(t, recorder)
	assert.Equal(t, models.ErrorCodeProductNotFound, body.Code)
	assert.False(t, body.Timestamp.IsZero())
}

func TestGetInventoryInvalidProductID(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupTestRouter(svc)

	recorder := performRequest(router, http.MethodGet, "/api/inventory/abc", "ROLE_ADMIN", "")

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	body := decodeErrorResponse(t, recorder)
	assert.Equal(t, models.ErrorCodeInvalidRequest, body.Code)
}

func TestSetInventoryWithoutAdminRole(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupTestRouter(svc)

	recorder := performRequest(router, http.MethodPut, "/api/inventory/100", "", `{"quantity": 50}`)

	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	svc.AssertNotCalled(t, "SetQuantity", mock.Anything, mock.Anything, mock.Anything)
}

func TestSetInventorySuccess(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupTestRouter(svc)

	inv := &models.Inventory{ProductID: 100, Quantity: 50, LastUpdated: time.Now()}
	svc.On("SetQuantity", mock.Anything, int64(100), 50).Return(inv, nil)

	recorder := performRequest(router, http.MethodPut, "/api/inventory/100", "ROLE_ADMIN", `{"quantity": 50}`)

	assert.Equal(t, http.StatusOK, recorder.Code)
	var body models.InventoryResponse
	assert.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	assert.Equal(t, 50, body.Quantity)
}

func TestSetInventoryZeroQuantity(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupTestRouter(svc)

	inv := &models.Inventory{ProductID: 100, Quantity: 0, LastUpdated: time.Now()}
	svc.On("SetQuantity", mock.Anything, int64(100), 0).Return(inv, nil)

	recorder := performRequest(router, http.MethodPut, "/api/inventory/100", "ROLE_ADMIN", `{"quantity": 0}`)

	// Zero is a valid absolute quantity, distinct from a missing field
	assert.Equal(t, http.StatusOK, recorder.Code)
	svc.AssertCalled(t, "SetQuantity", mock.Anything, int64(100), 0)
}

func TestSetInventoryMissingQuantity(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupTestRouter(svc)

	recorder := performRequest(router, http.MethodPut, "/api/inventory/100", "ROLE_ADMIN", `{}`)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	svc.AssertNotCalled(t, "SetQuantity", mock.Anything, mock.Anything, mock.Anything)
}

func TestSetInventoryNegativeQuantity(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupTestRouter(svc)

	recorder := performRequest(router, http.MethodPut, "/api/inventory/100", "ROLE_ADMIN", `{"quantity": -1}`)

	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	svc.AssertNotCalled(t, "SetQuantity", mock.Anything, mock.Anything, mock.Anything)
}

func TestSetInventoryNotFound(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupTestRouter(svc)

	svc.On("SetQuantity", mock.Anything, int64(999), 50).Return(nil, models.NewNotFoundError("inventory", 999))

	recorder := performRequest(router, http.MethodPut, "/api/inventory/999", "ROLE_ADMIN", `{"quantity": 50}`)

	assert.Equal(t, http.StatusNotFound, recorder.Code)
	body := decodeErrorResponse(t, recorder)
	assert.Equal(t, models.ErrorCodeProductNotFound, body.Code)
}

func TestHealthEndpointNeedsNoRole(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupTestRouter(svc)

	recorder := performRequest(router, http.MethodGet, "/health", "", "")

	assert.Equal(t, http.StatusOK, recorder.Code)
}

func TestRequestIDHeaderPropagated(t *testing.T) {
	svc := new(MockInventoryService)
	router := setupTestRouter(svc)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("X-Request-ID", "req-42")
	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, req)

	assert.Equal(t, "req-42", recorder.Header().Get("X-Request-ID"))
}
