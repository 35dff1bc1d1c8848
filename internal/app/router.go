package app

import (
	"kbot_backend/docs"
	"kbot_backend/pkg/monitoring"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
)

func (a *App) registerRoutes(router *gin.Engine, c *controllers) {
	docs.SwaggerInfo.BasePath = "/api"
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler, ginSwagger.URL("/swagger/doc.json")))

	router.GET("/metrics", monitoring.PrometheusHandler())

	api := router.Group("/api")
	{
		api.GET("/health", c.health.HealthCheck)

		// 教学会话，用户标识由上游网关注入
		kb := api.Group("/kb/:kbId/teach")
		{
			kb.GET("/modules", c.teach.ListModules)
			kb.POST("/sessions", c.teach.StartSession)
		}

		sessions := api.Group("/teach/sessions/:sessionId")
		{
			sessions.POST("/interactions", c.teach.Interact)
			sessions.GET("", c.teach.GetSession)
			sessions.GET("/interactions", c.teach.ListInteractions)
			sessions.POST("/abandon", c.teach.AbandonSession)
		}

		// 图谱制品导入，外部构建流程调用
		api.POST("/admin/kb/:kbId/graph", c.teach.ImportGraph)
	}
}
