package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/feral-file/ff-marketplace-sync/internal/api/shared/errors"
	"github.com/feral-file/ff-marketplace-sync/internal/logger"
)

// respondBadRequest responds with a bad request error
func respondBadRequest(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusBadRequest, errors.NewBadRequestError(message, details...))
}

// respondValidationError responds with a validation error
func respondValidationError(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, errors.NewValidationError(message))
}

// respondForbidden responds with a forbidden error
func respondForbidden(c *gin.Context, message string) {
	c.JSON(http.StatusForbidden, errors.NewForbiddenError(message))
}

// respondLifecycleError responds with the status matching a lifecycle error.
// Server side failures are logged, client errors are not.
func respondLifecycleError(c *gin.Context, err error, fields ...zap.Field) {
	status, apiErr := errors.FromDomainError(err)
	if status >= http.StatusInternalServerError {
		logger.ErrorCtx(c.Request.Context(), err, append(fields, zap.String("path", c.Request.URL.Path))...)
	}
	c.JSON(status, apiErr)
}
