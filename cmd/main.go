package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fyerfyer/resume-analyzer/api"
	"github.com/fyerfyer/resume-analyzer/api/handler"
	"github.com/fyerfyer/resume-analyzer/api/middleware"
	appconfig "github.com/fyerfyer/resume-analyzer/config"
	"github.com/fyerfyer/resume-analyzer/internal/cache"
	"github.com/fyerfyer/resume-analyzer/internal/database"
	"github.com/fyerfyer/resume-analyzer/internal/embedding"
	"github.com/fyerfyer/resume-analyzer/internal/llm"
	"github.com/fyerfyer/resume-analyzer/internal/metrics"
	"github.com/fyerfyer/resume-analyzer/internal/repository"
	"github.com/fyerfyer/resume-analyzer/internal/services"
	"github.com/fyerfyer/resume-analyzer/internal/vectordb"
	"github.com/fyerfyer/resume-analyzer/pkg/storage"
	"github.com/fyerfyer/resume-analyzer/pkg/taskqueue"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// 命令行参数，非空时覆盖配置文件
type flags struct {
	ConfigFile string // 配置文件路径
	Port       int    // 服务端口
	Mode       string // 运行模式 (debug/release)
	LogLevel   string // 日志级别
}

func main() {
	// .env 不存在时忽略
	_ = godotenv.Load()

	f := parseFlags()

	cfg, err := appconfig.Load(f.ConfigFile)
	if err != nil {
		logrus.Fatalf("Failed to load config: %v", err)
	}
	applyFlags(cfg, f)

	gin.SetMode(cfg.Server.Mode)

	logger := middleware.ConfigureLogger(middleware.LogOptions{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	logger.WithFields(logrus.Fields{
		"embed_provider": cfg.Embed.Provider,
		"llm_provider":   cfg.LLM.Provider,
		"index":          cfg.VectorDB.Type,
	}).Info("Starting resume analyzer...")

	if !vectordb.Supported(cfg.VectorDB.Type) {
		logger.Fatalf("Index type %q is not available in this build (faiss requires -tags faiss)", cfg.VectorDB.Type)
	}

	m := metrics.NewMetrics()

	embedder, err := setupEmbedding(cfg, logger)
	if err != nil {
		logger.Fatalf("Failed to initialize embedding client: %v", err)
	}

	llmClient, err := setupLLM(cfg)
	if err != nil {
		logger.Fatalf("Failed to initialize LLM client: %v", err)
	}

	pipelineOpts := []services.PipelineOption{
		services.WithIndexConfig(vectordb.Config{Type: cfg.VectorDB.Type}),
		services.WithPipelineMetrics(m),
		services.WithPipelineLogger(logger),
	}
	if cfg.Embed.Workers > 1 {
		pipelineOpts = append(pipelineOpts, services.WithBatchProcessor(embedding.NewBatchProcessor(embedder, cfg.Embed.Workers)))
	}
	pipeline := services.NewRetrievalPipeline(embedder, pipelineOpts...)

	synthesizer := llm.NewSynthesizer(llmClient,
		llm.WithSynthesizerMaxTokens(cfg.LLM.MaxTokens),
		llm.WithSynthesizerTemperature(cfg.LLM.Temperature),
	)

	serviceOpts := []services.AnalysisOption{
		services.WithDefaults(cfg.Analysis.ChunkSize, cfg.Analysis.TopK, cfg.Analysis.Query),
		services.WithMetrics(m),
		services.WithLogger(logger),
	}

	if cfg.Database.Enable {
		dbCfg := database.DefaultConfig()
		dbCfg.Type = cfg.Database.Type
		dbCfg.DSN = cfg.Database.DSN
		if err := database.Setup(dbCfg, logger); err != nil {
			logger.Fatalf("Failed to initialize database: %v", err)
		}
		defer database.Close()
		serviceOpts = append(serviceOpts, services.WithAnalysisRepository(repository.NewAnalysisRepository()))
		logger.Info("Analysis history enabled")
	}

	if cfg.Storage.Enable {
		fileStorage, err := setupStorage(cfg)
		if err != nil {
			logger.Fatalf("Failed to initialize storage: %v", err)
		}
		serviceOpts = append(serviceOpts, services.WithStorage(fileStorage))
	}

	var queue *taskqueue.RedisQueue
	var worker *taskqueue.RedisWorker
	if cfg.Queue.Enable {
		if !cfg.Storage.Enable {
			logger.Fatal("Task queue requires storage to be enabled")
		}
		queueCfg := setupQueueConfig(cfg, logger)
		queue, err = taskqueue.NewRedisQueue(queueCfg)
		if err != nil {
			logger.Fatalf("Failed to initialize task queue: %v", err)
		}
		defer queue.Close()
		worker = taskqueue.NewRedisWorker(queue, queueCfg)
		serviceOpts = append(serviceOpts, services.WithTaskQueue(queue))
	}

	analysisService := services.NewAnalysisService(pipeline, synthesizer, serviceOpts...)

	if worker != nil {
		for _, taskType := range analysisService.GetTaskTypes() {
			worker.RegisterHandler(taskType, analysisService)
		}
		if err := worker.Start(); err != nil {
			logger.Fatalf("Failed to start task worker: %v", err)
		}
		defer worker.Stop()
		logger.WithField("concurrency", cfg.Queue.Concurrency).Info("Task worker started")
	}

	r := api.SetupRouter(
		handler.NewAnalysisHandler(analysisService,
			handler.WithMaxUploadBytes(cfg.Server.MaxUploadBytes()),
			handler.WithRequestTimeout(cfg.Server.RequestTimeout),
		),
		handler.NewTaskHandler(analysisService),
		handler.NewHistoryHandler(analysisService),
		api.RouterOptions{
			EnableCORS:    cfg.Server.CORS,
			EnableMetrics: cfg.Metrics.Enable,
			MetricsPath:   cfg.Metrics.Path,
		},
	)

	srv := &http.Server{
		Addr:              cfg.Server.Address(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Infof("Server is running on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		logger.Errorf("Server forced to shutdown: %v", err)
	}

	logger.Info("Server exited")
}

// parseFlags 解析命令行参数
func parseFlags() flags {
	f := flags{}
	flag.StringVar(&f.ConfigFile, "config", "", "Path to config file")
	flag.IntVar(&f.Port, "port", 0, "Server port (overrides config)")
	flag.StringVar(&f.Mode, "mode", "", "Run mode debug/release (overrides config)")
	flag.StringVar(&f.LogLevel, "log-level", "", "Log level debug/info/warn/error (overrides config)")
	flag.Parse()
	return f
}

// applyFlags 命令行参数优先于配置文件
func applyFlags(cfg *appconfig.Config, f flags) {
	if f.Port > 0 {
		cfg.Server.Port = f.Port
	}
	if f.Mode != "" {
		cfg.Server.Mode = f.Mode
	}
	if f.LogLevel != "" {
		cfg.Log.Level = f.LogLevel
	}
}

// setupEmbedding 创建嵌入客户端，启用缓存时包装一层缓存
func setupEmbedding(cfg *appconfig.Config, logger *logrus.Logger) (embedding.Client, error) {
	if cfg.Embed.APIKey == "" {
		return nil, fmt.Errorf("embedding API key is required (set embed.api_key or %s)", appconfig.GeminiKeyEnv)
	}

	opts := []embedding.Option{
		embedding.WithAPIKey(cfg.Embed.APIKey),
		embedding.WithModel(cfg.Embed.Model),
		embedding.WithTimeout(cfg.Embed.Timeout),
		embedding.WithMaxRetries(cfg.Embed.MaxRetries),
		embedding.WithDimensions(cfg.Embed.Dimensions),
		embedding.WithRateLimit(cfg.Embed.RateLimit),
	}
	if cfg.Embed.BaseURL != "" {
		opts = append(opts, embedding.WithBaseURL(cfg.Embed.BaseURL))
	}

	client, err := embedding.NewClient(cfg.Embed.Provider, opts...)
	if err != nil {
		return nil, err
	}

	if !cfg.Cache.Enable {
		return client, nil
	}

	vectorCache, err := cache.NewCache(cache.Config{
		Type:            cfg.Cache.Type,
		RedisAddr:       cfg.Cache.Address,
		RedisPassword:   cfg.Cache.Password,
		RedisDB:         cfg.Cache.DB,
		KeyPrefix:       "resume:embed:",
		DefaultTTL:      cfg.Cache.TTL,
		CleanupInterval: 10 * time.Minute,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize embedding cache: %w", err)
	}
	logger.WithField("type", cfg.Cache.Type).Info("Embedding cache enabled")
	return embedding.NewCachedClient(client, vectorCache, cfg.Embed.CacheTTL, logger), nil
}

// setupLLM 创建大语言模型客户端
func setupLLM(cfg *appconfig.Config) (llm.Client, error) {
	if cfg.LLM.APIKey == "" {
		return nil, fmt.Errorf("LLM API key is required (set llm.api_key or %s)", appconfig.GeminiKeyEnv)
	}

	opts := []llm.Option{
		llm.WithAPIKey(cfg.LLM.APIKey),
		llm.WithModel(cfg.LLM.Model),
		llm.WithTimeout(cfg.LLM.Timeout),
		llm.WithMaxRetries(cfg.LLM.MaxRetries),
	}
	if cfg.LLM.BaseURL != "" {
		opts = append(opts, llm.WithBaseURL(cfg.LLM.BaseURL))
	}
	if cfg.LLM.MaxTokens > 0 {
		opts = append(opts, llm.WithMaxTokens(cfg.LLM.MaxTokens))
	}
	if cfg.LLM.Temperature > 0 {
		opts = append(opts, llm.WithTemperature(cfg.LLM.Temperature))
	}

	return llm.NewClient(cfg.LLM.Provider, opts...)
}

// setupStorage 创建上传文件存档
func setupStorage(cfg *appconfig.Config) (storage.Storage, error) {
	return storage.NewStorage(storage.Config{
		Type: cfg.Storage.Type,
		Local: storage.LocalConfig{
			Path: cfg.Storage.Path,
		},
		Minio: storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			UseSSL:    cfg.Storage.UseSSL,
			Bucket:    cfg.Storage.Bucket,
		},
	})
}

// setupQueueConfig 创建任务队列配置
func setupQueueConfig(cfg *appconfig.Config, logger *logrus.Logger) *taskqueue.Config {
	queueCfg := taskqueue.DefaultConfig()
	queueCfg.RedisAddr = cfg.Queue.Address
	queueCfg.RedisPassword = cfg.Queue.Password
	queueCfg.RedisDB = cfg.Queue.DB
	queueCfg.Concurrency = cfg.Queue.Concurrency
	queueCfg.RetryLimit = cfg.Queue.RetryLimit
	queueCfg.Logger = logger

	logger.WithFields(logrus.Fields{
		"redis_addr":  queueCfg.RedisAddr,
		"concurrency": queueCfg.Concurrency,
		"retry_limit": queueCfg.RetryLimit,
	}).Info("Setting up task queue")
	return queueCfg
}
