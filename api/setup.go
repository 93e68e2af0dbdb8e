package api

import (
	"fmt"
	"net/http"
	"os"
	"strings"

	_ "backend/api/docs"
	"backend/api/handlers/pathways"
	"backend/internal/auth"
	"backend/internal/config"
	"backend/internal/logger"
	"backend/internal/metrics"
	middlewarepkg "backend/internal/middleware"
	"backend/internal/pathway"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"gorm.io/gorm"
)

// AppContainer 应用级共享依赖
type AppContainer struct {
	DB         *gorm.DB
	Config     *config.Config
	JWTService *auth.JWTService
}

// Handlers 全部 HTTP Handler
type Handlers struct {
	Pathway  *pathways.PathwayHandler
	Node     *pathways.NodeHandler
	Instance *pathways.InstanceHandler
}

// SetupRouter 设置并返回 Gin 路由
func SetupRouter(db *gorm.DB, cfg *config.Config) *gin.Engine {
	router := gin.New()

	container := buildContainer(db, cfg)
	handlers := buildHandlers(db)

	// 全局中间件
	router.Use(gin.Recovery())
	router.Use(middlewarepkg.RequestIDMiddleware())
	router.Use(metrics.PrometheusMiddleware())

	rateLimiter := middlewarepkg.NewRateLimiter(middlewarepkg.DefaultRateLimiterConfig())
	router.Use(middlewarepkg.RateLimitMiddleware(rateLimiter))

	// 健康检查
	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Prometheus 指标
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// Swagger 文档
	router.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	RegisterRoutes(router, container, handlers)

	return router
}

// buildContainer 构建共享依赖容器
func buildContainer(db *gorm.DB, cfg *config.Config) *AppContainer {
	jwtSecret := strings.TrimSpace(cfg.Auth.JWTSecret)
	if jwtSecret == "" {
		jwtSecret = strings.TrimSpace(os.Getenv("JWT_SECRET_KEY"))
	}
	if jwtSecret == "" {
		// 生产模式必须显式配置密钥，防止使用弱默认值
		if strings.EqualFold(cfg.Server.Mode, "release") {
			logger.Fatal("JWT 密钥未配置，生产环境禁止使用默认密钥")
		}
		jwtSecret = "default_jwt_secret_key_change_in_production"
		logger.Warn("JWT 密钥未配置，已回退为开发默认值，请在生产环境设置强随机密钥")
	}

	issuer := cfg.Auth.Issuer
	if issuer == "" {
		issuer = "PathwayHub"
	}

	return &AppContainer{
		DB:         db,
		Config:     cfg,
		JWTService: auth.NewJWTService(jwtSecret, issuer),
	}
}

// buildHandlers 构建全部 Handler
func buildHandlers(db *gorm.DB) *Handlers {
	pathwaySvc := pathway.NewPathwayService(db)
	overrideSvc := pathway.NewOverrideService(db)
	nodeSvc := pathway.NewNodeService(db)
	instanceSvc := pathway.NewInstanceService(db)

	return &Handlers{
		Pathway:  pathways.NewPathwayHandler(pathwaySvc, overrideSvc),
		Node:     pathways.NewNodeHandler(nodeSvc),
		Instance: pathways.NewInstanceHandler(instanceSvc),
	}
}

// ListenAddr 根据配置拼接监听地址
func ListenAddr(cfg *config.Config) string {
	return fmt.Sprintf(":%d", cfg.Server.Port)
}
