package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/richardliu001/shop-ledger/internal/config"
	"github.com/richardliu001/shop-ledger/internal/observability"
	"go.uber.org/zap"
)

func NewRouter(h *Handler, tokens TokenResolver, rl config.RateLimitConfig, log *zap.SugaredLogger) *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(LoggingMiddleware(log))
	r.Use(RateLimitMiddleware(rl.RPS, rl.Burst))

	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/metrics", gin.WrapH(observability.MetricsHandler()))

	user := r.Group("/v1", AuthMiddleware(tokens))
	admin := user.Group("/admin", RequireAdmin())
	h.RegisterHandlers(user, admin)
	return r
}
