package api

import (
	"net/http"

	"github.com/fyerfyer/resume-analyzer/api/handler"
	"github.com/fyerfyer/resume-analyzer/api/middleware"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RouterOptions 路由可选功能
type RouterOptions struct {
	EnableCORS    bool   // 是否允许跨域请求
	EnableMetrics bool   // 是否暴露Prometheus指标
	MetricsPath   string // 指标路径，默认为/metrics
}

// SetupRouter 设置API路由
// 配置所有的API端点并应用中间件
func SetupRouter(
	analysisHandler *handler.AnalysisHandler,
	taskHandler *handler.TaskHandler,
	historyHandler *handler.HistoryHandler,
	opts RouterOptions,
) *gin.Engine {
	router := gin.New()

	router.Use(middleware.ErrorHandler())
	router.Use(middleware.SetTraceID())
	router.Use(middleware.Logger())
	if opts.EnableCORS {
		router.Use(Cors())
	}

	// 在调试模式下记录请求体和响应体
	if gin.Mode() == gin.DebugMode {
		router.Use(middleware.RequestLogger())
	}

	router.GET("/", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "Hello world"})
	})

	// 兼容前端的简历分析接口
	router.POST("/rag-query", analysisHandler.RAGQuery)

	if opts.EnableMetrics {
		path := opts.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		router.GET(path, gin.WrapH(promhttp.Handler()))
	}

	api := router.Group("/api")
	{
		// 分析API
		analyzeGroup := api.Group("/analyze")
		{
			// 同步分析 - POST /api/analyze
			analyzeGroup.POST("", analysisHandler.Analyze)

			// 异步分析 - POST /api/analyze/async
			analyzeGroup.POST("/async", analysisHandler.AnalyzeAsync)
		}

		// 任务状态 - GET /api/tasks/:id
		api.GET("/tasks/:id", taskHandler.GetTaskStatus)

		// 分析记录API
		historyGroup := api.Group("/analyses")
		{
			historyGroup.GET("", historyHandler.ListAnalyses)
			historyGroup.GET("/:id", historyHandler.GetAnalysis)
		}

		// 健康检查API
		api.GET("/health", func(c *gin.Context) {
			c.JSON(http.StatusOK, gin.H{
				"status": "ok",
			})
		})
	}

	return router
}

// Cors 跨域资源共享中间件，允许所有来源
func Cors() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Writer.Header().Set("Access-Control-Allow-Origin", "*")
		c.Writer.Header().Set("Access-Control-Allow-Credentials", "true")
		c.Writer.Header().Set("Access-Control-Allow-Headers", "Content-Type, Content-Length, Accept-Encoding, X-CSRF-Token, Authorization, accept, origin, Cache-Control, X-Requested-With, X-Trace-ID")
		c.Writer.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS, GET, PUT, DELETE")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
