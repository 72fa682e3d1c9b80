package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/imrishuroy/go-license-orderflow/internal/apperr"
	"github.com/imrishuroy/go-license-orderflow/internal/logging"
)

func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindInvalidRequest, apperr.KindInvalidState:
		return http.StatusBadRequest
	case apperr.KindUnauthorized:
		return http.StatusUnauthorized
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindGone:
		return http.StatusGone
	case apperr.KindConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes {"error", "code"} for err. The wrapped cause is logged, never returned.
func respondError(c *gin.Context, err error) {
	writeError(c, err, statusFor(apperr.KindOf(err)))
}

// respondWebhookError reports signature failures as 400, which is what the
// payment gateway expects from a receiver that rejects a delivery.
func respondWebhookError(c *gin.Context, err error) {
	status := statusFor(apperr.KindOf(err))
	if apperr.Is(err, apperr.KindUnauthorized) {
		status = http.StatusBadRequest
	}
	writeError(c, err, status)
}

func writeError(c *gin.Context, err error, status int) {
	kind := apperr.KindOf(err)
	log := logging.From(c)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "kind", kind, "err", err)
	} else {
		log.Info("request rejected", "kind", kind, "err", err)
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": apperr.PublicMessage(err),
		"code":  string(kind),
	})
}
