package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/cloudwego/hertz/pkg/app/server"
	"github.com/cloudwego/hertz/pkg/common/hlog"
	hertzzerolog "github.com/hertz-contrib/logger/zerolog"
	hertztracing "github.com/hertz-contrib/obs-opentelemetry/tracing"
	"github.com/joho/godotenv"
	"github.com/spf13/pflag"

	"resume-agent-go/internal/api/handler"
	"resume-agent-go/internal/api/router"
	"resume-agent-go/internal/config"
	"resume-agent-go/internal/embedding"
	"resume-agent-go/internal/llm"
	"resume-agent-go/internal/logger"
	"resume-agent-go/internal/orchestrator"
	"resume-agent-go/internal/parser"
	"resume-agent-go/internal/storage"
	"resume-agent-go/internal/tracing"
	"resume-agent-go/internal/vectorstore"
	"resume-agent-go/internal/workflow"
)

func main() {
	// .env 缺失不算错误，生产环境直接用进程环境变量
	_ = godotenv.Load()

	var configPath string
	pflag.StringVarP(&configPath, "config", "c", "", "配置文件路径")
	pflag.Parse()

	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		logger.Fatal().Err(err).Msg("加载配置失败")
	}

	logger.Init(logger.Config{
		Level:        cfg.Logger.Level,
		Format:       cfg.Logger.Format,
		TimeFormat:   cfg.Logger.TimeFormat,
		ReportCaller: cfg.Logger.ReportCaller,
	})
	hlog.SetLogger(hertzzerolog.From(logger.Logger))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracing, err := tracing.InitProvider(ctx, cfg.Tracing.Endpoint)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化链路追踪失败")
	}
	defer func() {
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancelShutdown()
		if err := shutdownTracing(shutdownCtx); err != nil {
			logger.Warn().Err(err).Msg("关闭链路追踪导出器失败")
		}
	}()

	storageManager, err := storage.NewStorage(ctx, cfg)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化存储失败")
	}
	defer storageManager.Close()
	logger.Info().Msg("存储服务初始化成功")

	embedder, err := embedding.NewOpenAIEmbedder(cfg.LLM.APIKey, cfg.Embedding)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化嵌入服务失败")
	}
	cachedEmbedder := embedding.NewCachedEmbedder(
		embedder,
		embedding.NewCache(4096),
		llm.CredentialIdentity(cfg.LLM.APIKey),
	)

	// MinIO降级运行时归档传nil，避免接口包裹空指针
	var archive vectorstore.RawTextArchive
	if storageManager.MinIO != nil {
		archive = storageManager.MinIO
	}
	store := vectorstore.NewClient(
		cachedEmbedder,
		storageManager.Qdrant,
		storageManager.MySQL,
		archive,
		cfg.Qdrant.DefaultSearchLimit,
	)
	logger.Info().Msg("向量检索层初始化成功")

	factory := llm.NewFactory(cfg, storageManager)
	engine := workflow.NewEngine(factory,
		workflow.WithActivityLogger(store),
		workflow.WithScreeningRecorder(storageManager.MySQL),
		workflow.WithScreeningThreshold(cfg.Screening.DefaultThreshold),
	)
	orch := orchestrator.New(engine)
	logger.Info().Int("screening_threshold", cfg.Screening.DefaultThreshold).Msg("工作流引擎初始化成功")

	extractor, err := parser.NewTextExtractor(ctx)
	if err != nil {
		logger.Fatal().Err(err).Msg("初始化文本提取器失败")
	}

	tracer, tracerCfg := hertztracing.NewServerTracer()
	h := server.New(
		tracer,
		server.WithHostPorts(cfg.Server.Address),
		server.WithHandleMethodNotAllowed(true),
	)
	h.Use(hertztracing.ServerMiddleware(tracerCfg))

	router.RegisterRoutes(h, cfg.Server.TenantKeys, router.Handlers{
		Resume:    handler.NewResumeHandler(extractor, store, cfg.Qdrant.DefaultSearchLimit),
		Job:       handler.NewJobHandler(store, cfg.Qdrant.DefaultSearchLimit),
		Pipeline:  handler.NewPipelineHandler(orch, store),
		Dashboard: handler.NewDashboardHandler(store, storageManager.Qdrant),
	})
	logger.Info().Str("address", cfg.Server.Address).Int("tenants", len(cfg.Server.TenantKeys)).Msg("HTTP路由注册成功")

	go func() {
		if err := h.Run(); err != nil {
			logger.Fatal().Err(err).Msg("启动HTTP服务器失败")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Info().Msg("接收到终止信号，正在优雅退出...")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(),
		config.GetDuration(cfg.Server.ShutdownTimeout, 5*time.Second))
	defer cancelShutdown()
	if err := h.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("服务器关闭失败")
	}
	logger.Info().Msg("优雅退出完成")
}
