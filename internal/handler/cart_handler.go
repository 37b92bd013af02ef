package handler

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/safar-travel/service-booking/internal/application"
	"github.com/safar-travel/service-booking/internal/auth"
	"github.com/safar-travel/service-booking/internal/middleware"
	"github.com/safar-travel/service-booking/internal/response"
)

// CartHandler handles HTTP requests for the quote (cart) lifecycle.
type CartHandler struct {
	service *application.CartService
}

// NewCartHandler creates a new CartHandler.
func NewCartHandler(service *application.CartService) *CartHandler {
	return &CartHandler{service: service}
}

// RegisterRoutes registers all cart routes on the given router group.
func (h *CartHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	cart := r.Group("/cart")
	cart.Use(middleware.AuthMiddleware(jwtManager))
	{
		cart.GET("", h.GetCart)
		cart.POST("/items", h.AddItem)
		cart.DELETE("/:quoteId/items/:itemId", h.RemoveItem)
		cart.POST("/:quoteId/promo", h.ApplyPromo)
		cart.DELETE("/:quoteId/promo", h.RemovePromo)
		cart.POST("/:quoteId/checkout", h.Checkout)
	}
}

// GetCart handles GET /api/v1/cart
func (h *CartHandler) GetCart(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	dto, err := h.service.GetOrCreateQuote(c.Request.Context(), userID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// AddItem handles POST /api/v1/cart/items
func (h *CartHandler) AddItem(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req application.AddItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.AddItem(c.Request.Context(), userID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// RemoveItem handles DELETE /api/v1/cart/:quoteId/items/:itemId
func (h *CartHandler) RemoveItem(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	quoteID, err := uuid.Parse(c.Param("quoteId"))
	if err != nil {
		response.BadRequest(c, "invalid quote ID")
		return
	}
	itemID, err := uuid.Parse(c.Param("itemId"))
	if err != nil {
		response.BadRequest(c, "invalid item ID")
		return
	}

	dto, err := h.service.RemoveItem(c.Request.Context(), userID, quoteID, itemID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// ApplyPromo handles POST /api/v1/cart/:quoteId/promo
func (h *CartHandler) ApplyPromo(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	quoteID, err := uuid.Parse(c.Param("quoteId"))
	if err != nil {
		response.BadRequest(c, "invalid quote ID")
		return
	}

	var req application.ApplyPromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.ApplyPromo(c.Request.Context(), userID, quoteID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// RemovePromo handles DELETE /api/v1/cart/:quoteId/promo
func (h *CartHandler) RemovePromo(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	quoteID, err := uuid.Parse(c.Param("quoteId"))
	if err != nil {
		response.BadRequest(c, "invalid quote ID")
		return
	}

	dto, err := h.service.RemovePromo(c.Request.Context(), userID, quoteID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// Checkout handles POST /api/v1/cart/:quoteId/checkout
func (h *CartHandler) Checkout(c *gin.Context) {
	userID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	quoteID, err := uuid.Parse(c.Param("quoteId"))
	if err != nil {
		response.BadRequest(c, "invalid quote ID")
		return
	}

	dto, err := h.service.Checkout(c.Request.Context(), userID, quoteID)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}
