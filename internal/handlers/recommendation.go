package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shopsense/internal/services"
)

type RecommendationHandler struct {
	service services.RecommendationServiceInterface
	logger  *logrus.Logger
}

func NewRecommendationHandler(service services.RecommendationServiceInterface, logger *logrus.Logger) *RecommendationHandler {
	return &RecommendationHandler{
		service: service,
		logger:  logger,
	}
}

// Get serves GET /api/v1/recommendations/:userId?n=10.
func (h *RecommendationHandler) Get(c *gin.Context) {
	userID := c.Param("userId")

	n, ok := countParam(c, "n")
	if !ok {
		return
	}

	resp, err := h.service.GetRecommendations(c.Request.Context(), userID, n)
	if err != nil {
		h.logger.WithError(err).WithField("user_id", userID).Debug("Recommendation request rejected")
		respondServingError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Similar serves GET /api/v1/products/:productId/similar?k=4.
func (h *RecommendationHandler) Similar(c *gin.Context) {
	productID := c.Param("productId")

	k, ok := countParam(c, "k")
	if !ok {
		return
	}

	resp, err := h.service.SimilarProducts(c.Request.Context(), productID, k)
	if err != nil {
		respondServingError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Model serves GET /api/v1/model.
func (h *RecommendationHandler) Model(c *gin.Context) {
	info, err := h.service.ModelInfo()
	if err != nil {
		respondServingError(c, err)
		return
	}

	c.JSON(http.StatusOK, info)
}

// countParam reads an optional integer query parameter; absent means 0 (the service
// default). A malformed value is answered with 400 and ok=false.
func countParam(c *gin.Context, name string) (int, bool) {
	raw := c.Query(name)
	if raw == "" {
		return 0, true
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		respondError(c, http.StatusBadRequest, "INVALID_COUNT", name+" must be an integer")
		return 0, false
	}
	return n, true
}
