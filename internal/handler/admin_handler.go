package handler

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/safar-travel/service-booking/internal/application"
	"github.com/safar-travel/service-booking/internal/auth"
	"github.com/safar-travel/service-booking/internal/middleware"
	"github.com/safar-travel/service-booking/internal/response"
)

// AdminHandler handles admin-only promo and payment endpoints.
type AdminHandler struct {
	promoService   *application.PromoService
	paymentService *application.PaymentService
}

// NewAdminHandler creates a new AdminHandler.
func NewAdminHandler(promoService *application.PromoService, paymentService *application.PaymentService) *AdminHandler {
	return &AdminHandler{
		promoService:   promoService,
		paymentService: paymentService,
	}
}

// RegisterRoutes registers all admin routes on the given router group.
func (h *AdminHandler) RegisterRoutes(r *gin.RouterGroup, jwtManager *auth.JWTManager) {
	admin := r.Group("/admin")
	admin.Use(middleware.AuthMiddleware(jwtManager), middleware.RequireRole(auth.RoleAdmin))
	{
		admin.POST("/promo-codes", h.CreatePromo)
		admin.GET("/promo-codes", h.ListActivePromos)
		admin.GET("/promo-codes/:id", h.GetPromo)
		admin.POST("/promo-codes/:id/deactivate", h.DeactivatePromo)
		admin.POST("/promo-codes/:id/extend", h.ExtendPromoValidity)

		admin.GET("/payments", h.ListPayments)
		admin.GET("/payments/stats", h.GetPaymentStats)
	}
}

// CreatePromo handles POST /api/v1/admin/promo-codes
func (h *AdminHandler) CreatePromo(c *gin.Context) {
	adminID, ok := middleware.GetUserID(c)
	if !ok {
		response.Unauthorized(c, "unauthorized")
		return
	}

	var req application.CreatePromoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.promoService.CreatePromo(c.Request.Context(), adminID, req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, dto)
}

// ListActivePromos handles GET /api/v1/admin/promo-codes
func (h *AdminHandler) ListActivePromos(c *gin.Context) {
	dtos, err := h.promoService.ListActive(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dtos)
}

// GetPromo handles GET /api/v1/admin/promo-codes/:id
func (h *AdminHandler) GetPromo(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid promo code ID")
		return
	}

	dto, err := h.promoService.GetPromo(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// DeactivatePromo handles POST /api/v1/admin/promo-codes/:id/deactivate
func (h *AdminHandler) DeactivatePromo(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid promo code ID")
		return
	}

	dto, err := h.promoService.DeactivatePromo(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// ExtendPromoValidity handles POST /api/v1/admin/promo-codes/:id/extend
func (h *AdminHandler) ExtendPromoValidity(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid promo code ID")
		return
	}

	var req struct {
		ValidUntil time.Time `json:"valid_until" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.promoService.ExtendPromoValidity(c.Request.Context(), id, req.ValidUntil)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// ListPayments handles GET /api/v1/admin/payments
func (h *AdminHandler) ListPayments(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	dto, err := h.paymentService.ListAllPayments(c.Request.Context(), page, limit)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}

// GetPaymentStats handles GET /api/v1/admin/payments/stats
func (h *AdminHandler) GetPaymentStats(c *gin.Context) {
	dto, err := h.paymentService.GetPaymentStats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}
