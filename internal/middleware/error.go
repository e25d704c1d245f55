package middleware

import (
	"errors"

	"github.com/gin-gonic/gin"

	apperrors "investtracker/internal/errors"
	"investtracker/internal/logger"
)

// ErrorHandler converts errors attached with c.Error into JSON error
// responses, unless the handler already wrote a response. Binding errors
// become INVALID_INPUT; other non-AppErrors are logged and hidden.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}

		last := c.Errors.Last()
		err := last.Err
		if last.IsType(gin.ErrorTypeBind) {
			err = apperrors.WithMessage(apperrors.ErrInvalidInput, err.Error())
		}

		var appErr *apperrors.AppError
		if !errors.As(err, &appErr) {
			logger.Get().Errorw("unexpected error",
				"error", err.Error(),
				"path", c.Request.URL.Path,
				"method", c.Request.Method,
			)
			appErr = apperrors.ErrInternalServer
		} else if appErr.Internal != nil {
			logger.Get().Errorw("app error",
				"code", appErr.Code,
				"internal", appErr.Internal.Error(),
				"path", c.Request.URL.Path,
			)
		}

		c.JSON(appErr.StatusCode, gin.H{
			"error": gin.H{
				"code":    appErr.Code,
				"message": appErr.Message,
			},
		})
	}
}
