package router

import (
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"testsmith.app/testsmith/internal/http/handler"
	"testsmith.app/testsmith/internal/service"
)

type RouterConfig struct {
	AdminAPIKey  string
	OutputPrefix string
}

func SetupRoutes(router *gin.Engine, runs service.RunService, redisClient *redis.Client, cfg RouterConfig) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	v1 := router.Group("/api/v1")
	{
		runHandler := handler.NewRunHandler(runs, cfg.AdminAPIKey)
		outputHandler := handler.NewRunOutputHandler(redisClient, cfg.OutputPrefix)
		RunRouter(v1.Group("/runs"), runHandler, outputHandler)
	}
}
