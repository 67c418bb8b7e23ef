package api

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"

	"github.com/FortiShop/product-inventory-service/internal/interfaces"
	"github.com/FortiShop/product-inventory-service/internal/models"
)

// Handler exposes the admin inventory endpoints
type Handler struct {
	inventory interfaces.InventoryService
}

func NewHandler(inventory interfaces.InventoryService) *Handler {
	return &Handler{inventory: inventory}
}

// SetupRouter configures the gin router with all routes and middleware
func SetupRouter(handler *Handler, enableMetrics bool) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestIDMiddleware())

	router.GET("/health", handler.Health)
	if enableMetrics {
		router.GET("/metrics", gin.WrapH(promhttp.Handler()))
	}

	inventory := router.Group("/api")
	{
		// Reads are public; only absolute overwrites need the admin role
		inventory.GET("/inventory/:productId", handler.GetInventory)
		inventory.PUT("/inventory/:productId", AdminOnly(), handler.SetInventory)
	}

	return router
}

func (h *Handler) Health(c *gin.Context) {
	Response.Success(c, gin.H{"status": "ok"})
}

// GetInventory handles GET /api/inventory/:productId
func (h *Handler) GetInventory(c *gin.Context) {
	productID, ok := parseProductID(c)
	if !ok {
		return
	}

	inv, cacheHit, err := h.inventory.GetInventory(c.Request.Context(), productID)
	if err != nil {
		if models.IsNotFound(err) {
			Response.NotFound(c, "product not found")
			return
		}
		Response.InternalError(c, err)
		return
	}

	log.Debug().
		Int64("product_id", productID).
		Bool("cache_hit", cacheHit).
		Str("request_id", getRequestID(c)).
		Msg("Inventory read")
	Response.Success(c, models.NewInventoryResponse(inv))
}

// SetInventory handles PUT /api/inventory/:productId
func (h *Handler) SetInventory(c *gin.Context) {
	productID, ok := parseProductID(c)
	if !ok {
		return
	}

	var req models.SetInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		Response.BadRequest(c, bindingErrorMessage(err))
		return
	}

	inv, err := h.inventory.SetQuantity(c.Request.Context(), productID, *req.Quantity)
	if err != nil {
		if models.IsNotFound(err) {
			Response.NotFound(c, "product not found")
			return
		}
		Response.InternalError(c, err)
		return
	}

	Response.Success(c, models.NewInventoryResponse(inv))
}

// bindingErrorMessage turns validator failures into a stable message
// without leaking struct internals
func bindingErrorMessage(err error) string {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		for _, fieldErr := range validationErrors {
			switch fieldErr.Tag() {
			case "required":
				return "quantity is required"
			case "min":
				return "quantity must be >= 0"
			}
		}
	}
	return "invalid request body"
}

func parseProductID(c *gin.Context) (int64, bool) {
	productID, err := strconv.ParseInt(c.Param("productId"), 10, 64)
	if err != nil || productID <= 0 {
		Response.BadRequest(c, "productId must be a positive integer")
		return 0, false
	}
	return productID, true
}
