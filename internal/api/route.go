package api

import (
	"github.com/fachebot/talk-digest-bot/internal/api/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRouter(group *HandlersGroup) *gin.Engine {
	r := gin.New()
	_ = r.SetTrustedProxies([]string{"localhost"})

	// TraceId & Logger & CORS
	r.Use(middleware.TraceMiddleware())
	r.Use(middleware.CORSMiddleware())
	middleware.Setup(r)

	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/health", group.HealthHandler.Health)
		apiGroup.GET("/digest", group.DigestHandler.GetDigest)
	}

	return r
}
