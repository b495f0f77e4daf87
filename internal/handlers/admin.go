package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/temcen/shopsense/internal/artifact"
	"github.com/temcen/shopsense/internal/recommender"
	"github.com/temcen/shopsense/internal/services"
)

// AdminHandler exposes training and model reload.
type AdminHandler struct {
	training services.TrainingServiceInterface
	models   services.ModelManagerInterface
	logger   *logrus.Logger
}

func NewAdminHandler(training services.TrainingServiceInterface, models services.ModelManagerInterface, logger *logrus.Logger) *AdminHandler {
	return &AdminHandler{
		training: training,
		models:   models,
		logger:   logger,
	}
}

// Train runs a training pass synchronously and returns the new model's info.
func (h *AdminHandler) Train(c *gin.Context) {
	info, err := h.training.Train(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, services.ErrTrainingInProgress):
			respondError(c, http.StatusConflict, "TRAINING_IN_PROGRESS", err.Error())
		case errors.Is(err, services.ErrNoInteractions):
			respondError(c, http.StatusUnprocessableEntity, "NO_INTERACTIONS", err.Error())
		default:
			h.logger.WithError(err).Error("Admin training request failed")
			respondError(c, http.StatusInternalServerError, "TRAINING_FAILED", "Training failed")
		}
		return
	}

	c.JSON(http.StatusOK, info)
}

// Reload swaps in the model currently held by the artifact store.
func (h *AdminHandler) Reload(c *gin.Context) {
	info, err := h.models.Reload(c.Request.Context())
	if err != nil {
		switch {
		case errors.Is(err, artifact.ErrNotFound), errors.Is(err, recommender.ErrModelNotTrained):
			respondError(c, http.StatusNotFound, "MODEL_NOT_FOUND", "No trained model in the artifact store")
		default:
			h.logger.WithError(err).Error("Admin reload request failed")
			respondError(c, http.StatusInternalServerError, "RELOAD_FAILED", "Model reload failed")
		}
		return
	}

	c.JSON(http.StatusOK, info)
}
