package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/temcen/shopsense/internal/recommender"
)

func respondError(c *gin.Context, status int, code, message string) {
	c.JSON(status, gin.H{
		"error": gin.H{
			"code":    code,
			"message": message,
		},
	})
}

// respondServingError maps engine errors onto status codes. Anything unrecognized is a 500.
func respondServingError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, recommender.ErrInvalidCount):
		respondError(c, http.StatusBadRequest, "INVALID_COUNT", err.Error())
	case errors.Is(err, recommender.ErrUserNotFound):
		respondError(c, http.StatusNotFound, "USER_NOT_FOUND", err.Error())
	case errors.Is(err, recommender.ErrProductNotFound):
		respondError(c, http.StatusNotFound, "PRODUCT_NOT_FOUND", err.Error())
	case errors.Is(err, recommender.ErrModelNotTrained):
		respondError(c, http.StatusServiceUnavailable, "MODEL_NOT_TRAINED", "No trained model is loaded")
	default:
		respondError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", "Internal server error")
	}
}
