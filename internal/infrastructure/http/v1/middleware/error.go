package middleware

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"stockflow/internal/core/apperror"
	"stockflow/pkg/logger"
)

// ErrorHandler middleware transforms errors into consistent JSON responses.
// Hides internal errors from clients while logging full details.
func ErrorHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err

		appErr, ok := apperror.AsAppError(err)
		if !ok {
			logger.Error(c.Request.Context(), "unhandled error", "error", err)
			appErr = apperror.NewInternal(err)
		} else if appErr.Err != nil {
			logger.Error(c.Request.Context(), "request error",
				"code", appErr.Code,
				"cause", appErr.Err,
			)
		}

		body := gin.H{
			"code":    appErr.Code,
			"message": appErr.Message,
			"details": appErr.Details,
		}
		if appErr.HTTPStatus >= http.StatusInternalServerError {
			body["details"] = map[string]any{"request_id": c.GetString("request_id")}
		}

		settleIdempotency(c, appErr, body)
		c.JSON(appErr.HTTPStatus, body)
	}
}

// settleIdempotency records the failure for replay. A retryable abort
// releases the key instead, so the client's retry with the same key runs
// the operation again.
func settleIdempotency(c *gin.Context, appErr *apperror.AppError, body gin.H) {
	key, store, ok := IdempotencyFromContext(c)
	if !ok {
		return
	}
	ctx := c.Request.Context()

	if appErr.Code == apperror.CodeTransactionAborted || appErr.HTTPStatus >= http.StatusInternalServerError {
		if err := store.ReleaseKey(ctx, key); err != nil {
			logger.Warn(ctx, "idempotency key not released", "key", key, "error", err)
		}
		return
	}

	raw, err := json.Marshal(body)
	if err != nil {
		return
	}
	if err := store.FailKey(ctx, key, appErr.HTTPStatus, "application/json", raw); err != nil {
		logger.Warn(ctx, "idempotency key not failed", "key", key, "error", err)
	}
}
