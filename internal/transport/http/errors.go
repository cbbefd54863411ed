package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/shop-ledger/internal/service"
)

func statusFor(kind service.Kind) int {
	switch kind {
	case service.KindValidation:
		return http.StatusBadRequest
	case service.KindNotFound:
		return http.StatusNotFound
	case service.KindAlreadyFinalized, service.KindAlreadyPaid,
		service.KindAlreadyCompleted, service.KindAlreadyCancelled:
		return http.StatusConflict
	case service.KindInsufficientFunds:
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": kind, "message": msg}.
func writeError(c *gin.Context, err error) {
	kind := service.KindOf(err)
	if kind == service.KindStorage {
		_ = c.Error(err).SetType(gin.ErrorTypePrivate)
	}
	c.AbortWithStatusJSON(statusFor(kind), gin.H{"error": kind, "message": service.Message(err)})
}

func badRequest(c *gin.Context, msg string) {
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": service.KindValidation, "message": msg})
}
