package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/safar-travel/service-booking/internal/application"
	"github.com/safar-travel/service-booking/internal/response"
)

// SearchHandler handles HTTP requests for offer searches.
type SearchHandler struct {
	service *application.SearchService
}

// NewSearchHandler creates a new SearchHandler.
func NewSearchHandler(service *application.SearchService) *SearchHandler {
	return &SearchHandler{service: service}
}

// RegisterRoutes registers the search route on the router group. Offer search
// is open: browsing inventory requires no account.
func (h *SearchHandler) RegisterRoutes(r *gin.RouterGroup) {
	r.GET("/offers/search", h.SearchOffers)
}

// SearchOffers handles GET /api/v1/offers/search
func (h *SearchHandler) SearchOffers(c *gin.Context) {
	var req application.SearchOffersRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	dto, err := h.service.SearchOffers(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Success(c, dto)
}
