package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/joshua-takyi/invites/internal/models"
)

// respondError maps service errors onto HTTP statuses. Storage and unexpected
// errors are logged and reported generically.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	var ve *models.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, models.ErrorResponse(ve.Error()))
	case models.IsResolutionError(err),
		errors.Is(err, models.ErrEventNotFound),
		errors.Is(err, models.ErrGuestNotFound),
		errors.Is(err, models.ErrWishNotFound):
		c.JSON(http.StatusNotFound, models.ErrorResponse("not found"))
	case errors.Is(err, models.ErrSecurityRejection):
		c.JSON(http.StatusForbidden, models.ErrorResponse("forbidden"))
	default:
		requestID, _ := c.Get("request_id")
		logger.Error("Request failed",
			"request_id", requestID,
			"path", c.Request.URL.Path,
			"error", err,
		)
		c.JSON(http.StatusInternalServerError, models.ErrorResponse("internal server error"))
	}
}
