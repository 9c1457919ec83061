package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"knowledge_graph_backend/internal/aigen"
	"knowledge_graph_backend/internal/config"
	"knowledge_graph_backend/internal/controller"
	"knowledge_graph_backend/internal/repository"
	"knowledge_graph_backend/internal/service"
	"knowledge_graph_backend/pkg/configwatcher"
	"knowledge_graph_backend/pkg/database"
	"knowledge_graph_backend/pkg/logger"
	"knowledge_graph_backend/pkg/monitoring"
	"knowledge_graph_backend/pkg/security"
	"knowledge_graph_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	ConfigPath      string
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	tracer          *sdktrace.TracerProvider
	configCallbacks []func(*config.Config)
	stopWatch       context.CancelFunc
}

type repositories struct {
	concept       *repository.ConceptRepository
	relationship  *repository.RelationshipRepository
	course        *repository.CourseRepository
	courseConcept *repository.CourseConceptRepository
	mastery       *repository.MasteryRepository
	batches       repository.BatchStore
}

type services struct {
	graph          *service.KnowledgeGraphService
	mastery        *service.UserMasteryService
	prerequisite   *service.PrerequisiteCheckService
	recommendation *service.LearningRecommendationService
	suggestion     *service.ConceptSuggestionService
	storage        *service.StorageService
	export         *service.GraphExportService
}

type controllers struct {
	concept        *controller.ConceptController
	graph          *controller.GraphController
	courseConcept  *controller.CourseConceptController
	mastery        *controller.MasteryController
	recommendation *controller.RecommendationController
	suggestion     *controller.SuggestionController
	health         *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

func (a *App) initRepositories(db *gorm.DB, rdb *redis.Client, cfg *config.Config) *repositories {
	ttl := time.Duration(cfg.Redis.BatchTTLHours) * time.Hour

	// Redis 未启用时批次只保存在进程内
	var batches repository.BatchStore
	if rdb != nil {
		batches = repository.NewRedisBatchStore(rdb, ttl)
	} else {
		batches = repository.NewMemoryBatchStore(ttl)
	}

	return &repositories{
		concept:       repository.NewConceptRepository(db),
		relationship:  repository.NewRelationshipRepository(db),
		course:        repository.NewCourseRepository(db),
		courseConcept: repository.NewCourseConceptRepository(db),
		mastery:       repository.NewMasteryRepository(db),
		batches:       batches,
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config) *services {
	s := &services{}

	s.graph = service.NewKnowledgeGraphService(repos.concept, repos.relationship, repos.courseConcept, repos.course, repos.mastery)

	s.mastery = service.NewUserMasteryService(repos.mastery, repos.courseConcept)
	if _, err := s.mastery.SetConfig(cfg.Mastery.Override()); err != nil {
		logger.Log.Fatal("Invalid mastery configuration", zap.Error(err))
	}
	a.RegisterConfigCallback(func(newCfg *config.Config) {
		if _, err := s.mastery.SetConfig(newCfg.Mastery.Override()); err != nil {
			logger.Log.Error("Rejected reloaded mastery configuration", zap.Error(err))
		}
	})

	s.prerequisite = service.NewPrerequisiteCheckService(
		repos.concept,
		repos.relationship,
		repos.courseConcept,
		repos.mastery,
		cfg.Recommendation.PrerequisiteThreshold,
	)
	s.recommendation = service.NewLearningRecommendationService(
		repos.concept,
		repos.relationship,
		repos.courseConcept,
		repos.mastery,
		cfg.Recommendation.DefaultLimit,
	)

	generator, err := aigen.NewGenerator(cfg.AI)
	if err != nil {
		logger.Log.Fatal("Failed to initialize suggestion generator", zap.Error(err))
	}
	s.suggestion = service.NewConceptSuggestionService(generator, repos.batches, s.graph)

	s.storage = service.NewStorageService(cfg)
	s.export = service.NewGraphExportService(s.graph, s.storage)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB, rdb *redis.Client) *controllers {
	return &controllers{
		concept:        controller.NewConceptController(s.graph),
		graph:          controller.NewGraphController(s.graph, s.export),
		courseConcept:  controller.NewCourseConceptController(s.graph, s.prerequisite),
		mastery:        controller.NewMasteryController(s.mastery),
		recommendation: controller.NewRecommendationController(s.recommendation),
		suggestion:     controller.NewSuggestionController(s.suggestion),
		health:         controller.NewHealthController(db, rdb),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins, time.Duration(cfg.CORS.MaxAgeHours)*time.Hour))
	router.Use(security.Secure())
	router.Use(security.RateLimiter(cfg.RateLimit.MaxRequests,
		time.Duration(cfg.RateLimit.WindowMinutes)*time.Minute, security.ClientIP))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// watchConfig 配置文件变更时依次执行已注册的回调
func (a *App) watchConfig() {
	if a.ConfigPath == "" || len(a.configCallbacks) == 0 {
		return
	}
	watcher, err := configwatcher.New(a.ConfigPath, configwatcher.DefaultDebounce, func(cfg *config.Config) {
		for _, cb := range a.configCallbacks {
			cb(cfg)
		}
	})
	if err != nil {
		logger.Log.Error("Config hot reload disabled", zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	a.stopWatch = cancel
	go func() {
		if err := watcher.Run(ctx); err != nil {
			logger.Log.Error("Config watcher stopped", zap.Error(err))
		}
	}()
}

func NewApp(cfg *config.Config, configPath string) *App {
	logger.InitLogger(cfg)

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(&cfg.Database, cfg.ForceMigrate || cfg.Server.Mode != "release")
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
		log.Fatalf("Failed to initialize database: %v", err)
	}

	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize redis", zap.Error(err))
		log.Fatalf("Failed to initialize redis: %v", err)
	}

	app := &App{
		Config:     cfg,
		ConfigPath: configPath,
		DB:         db,
		Redis:      rdb,
	}
	if cfg.MigrateOnly {
		return app
	}

	repos := app.initRepositories(db, rdb, cfg)
	services := app.initServices(repos, cfg)
	controllers := app.initControllers(services, db, rdb)

	// 监控初始化
	monitoring.Init()

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	app.Router = router

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("knowledge-graph", cfg.Tracing)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == "local" && cfg.Storage.LocalPath != "" {
		router.Static("/exports", cfg.Storage.LocalPath)
	}

	app.watchConfig()

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		logger.Log.Info("Server running", zap.String("port", a.Config.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Log.Fatal("listen failed", zap.Error(err))
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	logger.Log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.stopWatch != nil {
		a.stopWatch()
	}
	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		a.Redis.Close()
	}

	logger.Log.Info("Server exiting")
}
