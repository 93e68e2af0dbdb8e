package api

import (
	"backend/internal/auth"
	"backend/internal/logger"
	middlewarepkg "backend/internal/middleware"

	"github.com/gin-gonic/gin"
)

// RegisterRoutes 注册所有 API 路由
func RegisterRoutes(router *gin.Engine, container *AppContainer, handlers *Handlers) {
	api := router.Group("/api")
	api.Use(
		auth.AuthMiddleware(container.JWTService),
		middlewarepkg.GinTenantContextMiddleware(logger.Get()),
	)
	registerAPIRoutes(api, handlers)

	// 版本化 API 组
	apiV1 := router.Group("/api/v1")
	apiV1.Use(
		auth.AuthMiddleware(container.JWTService),
		middlewarepkg.GinTenantContextMiddleware(logger.Get()),
	)
	registerAPIRoutes(apiV1, handlers)
}

// registerAPIRoutes 注册需要认证的 API 路由
func registerAPIRoutes(apiGroup *gin.RouterGroup, h *Handlers) {
	// 全局默认库（独立前缀，避免与 /pathways/:id 冲突）
	apiGroup.GET("/library/pathways", h.Pathway.ListLibrary)

	// 路径模板管理
	pathwayGroup := apiGroup.Group("/pathways")
	{
		pathwayGroup.GET("", h.Pathway.ListPathways)
		pathwayGroup.POST("", h.Pathway.CreatePathway)
		pathwayGroup.POST("/overrides", h.Pathway.CreateOverride)
		pathwayGroup.DELETE("/overrides/:sourceId", h.Pathway.RevertOverride)
		pathwayGroup.GET("/:id", h.Pathway.GetPathway)
		pathwayGroup.PUT("/:id", h.Pathway.UpdatePathway)
		pathwayGroup.DELETE("/:id", h.Pathway.DeletePathway)
		pathwayGroup.POST("/:id/approve", h.Pathway.ApprovePathway)
		pathwayGroup.POST("/:id/nodes", h.Node.CreateNode)
		pathwayGroup.PUT("/:id/positions", h.Node.BulkUpdatePositions)
	}

	// 节点与图结构
	nodeGroup := apiGroup.Group("/nodes")
	{
		nodeGroup.PUT("/:id", h.Node.UpdateNode)
		nodeGroup.DELETE("/:id", h.Node.DeleteNode)
		nodeGroup.POST("/:id/options", h.Node.CreateOption)
		nodeGroup.POST("/:id/links", h.Node.CreateLink)
	}

	optionGroup := apiGroup.Group("/options")
	{
		optionGroup.PUT("/:id", h.Node.UpdateOption)
		optionGroup.DELETE("/:id", h.Node.DeleteOption)
	}

	apiGroup.DELETE("/links/:id", h.Node.DeleteLink)

	// 实例运行
	instanceGroup := apiGroup.Group("/instances")
	{
		instanceGroup.GET("", h.Instance.ListInstances)
		instanceGroup.POST("", h.Instance.StartInstance)
		instanceGroup.GET("/:id", h.Instance.GetInstance)
		instanceGroup.POST("/:id/continue", h.Instance.Continue)
		instanceGroup.POST("/:id/answer", h.Instance.Answer)
	}
}
