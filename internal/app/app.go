package app

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"kbot_backend/internal/config"
	"kbot_backend/internal/controller"
	"kbot_backend/internal/repository"
	"kbot_backend/internal/service"
	"kbot_backend/pkg/database"
	"kbot_backend/pkg/logger"
	"kbot_backend/pkg/monitoring"
	"kbot_backend/pkg/security"
	"kbot_backend/pkg/tracing"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config          *config.Config
	Router          *gin.Engine
	DB              *gorm.DB
	Redis           *redis.Client
	services        *services
	configCallbacks []func(*config.Config)
}

type repositories struct {
	graph       *repository.ModuleGraphRepository
	session     *repository.SessionRepository
	interaction *repository.InteractionRepository
}

type services struct {
	storage  *service.StorageService
	ai       *service.AIService
	graphs   *service.GraphService
	importer *service.GraphImportService
	engine   *service.TeachEngine
}

type controllers struct {
	teach  *controller.TeachController
	health *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.configCallbacks = append(a.configCallbacks, callback)
}

// ReloadConfig 配置热更新入口，configwatcher 回调触发
func (a *App) ReloadConfig(cfg *config.Config) {
	a.Config.Teach = cfg.Teach
	for _, callback := range a.configCallbacks {
		callback(cfg)
	}
}

func (a *App) initRepositories(db *gorm.DB) *repositories {
	return &repositories{
		graph:       repository.NewModuleGraphRepository(db),
		session:     repository.NewSessionRepository(db),
		interaction: repository.NewInteractionRepository(db),
	}
}

func (a *App) initServices(repos *repositories, cfg *config.Config, rdb *redis.Client) *services {
	s := &services{}

	s.storage = service.NewStorageService(cfg)
	s.ai = service.NewAIService(cfg.AI)
	s.graphs = service.NewGraphService(repos.graph, rdb, cfg.Teach)
	s.importer = service.NewGraphImportService(repos.graph, s.graphs, s.storage)
	s.engine = service.NewTeachEngine(s.graphs, repos.session, repos.interaction, s.ai, s.ai, cfg.Teach)

	return s
}

func (a *App) initControllers(s *services, db *gorm.DB) *controllers {
	return &controllers{
		teach:  controller.NewTeachController(s.engine, s.importer),
		health: controller.NewHealthController(db),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	maxRequests := cfg.RateLimit.MaxRequests
	if maxRequests <= 0 {
		maxRequests = 6000
	}
	window := time.Duration(cfg.RateLimit.WindowMinutes) * time.Minute
	if window <= 0 {
		window = time.Minute
	}
	router.Use(security.RateLimiter(maxRequests, window))

	// 分布式追踪中间件
	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

// initActiveSessionsGauge 重启后把活跃会话数恢复到监控指标
func (a *App) initActiveSessionsGauge(repos *repositories) {
	count, err := repos.session.CountActive()
	if err != nil {
		logger.Log.Warn("Failed to count active sessions", zap.Error(err))
		return
	}
	monitoring.ActiveSessions.Set(float64(count))
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	defer logger.Log.Sync()

	logger.Log.Info("Logger initialized successfully")

	db, err := database.InitDB(cfg)
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
		Config: cfg,
		DB:     db,
		Redis:  rdb,
	}

	repos := app.initRepositories(db)
	services := app.initServices(repos, cfg, rdb)
	app.services = services
	controllers := app.initControllers(services, db)

	// 策略参数热更新
	app.RegisterConfigCallback(func(newCfg *config.Config) {
		services.engine.UpdateConfig(newCfg.Teach)
	})

	// 监控初始化
	monitoring.Init()
	app.initActiveSessionsGauge(repos)

	if cfg.Server.Mode == "release" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.Default()
	app.Router = router

	app.setupMiddlewares(router, cfg)

	if cfg.Tracing.Enabled {
		_, err := tracing.InitTracer("kbot-backend", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
	}

	app.registerRoutes(router, controllers)

	return app
}

// ImportGraphArtifact 启动参数 -import-graph 的执行入口
func (a *App) ImportGraphArtifact(kbID, path string) error {
	_, err := a.services.importer.ImportFromFile(context.Background(), kbID, path)
	return err
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:    ":" + a.Config.Server.Port,
		Handler: a.Router,
	}

	// 启动服务器
	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %s\n", err)
		}
	}()

	// 等待中断信号优雅地关闭服务器（设置5秒的超时时间）
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatal("Server forced to shutdown:", err)
	}

	log.Println("Server exiting")
}
