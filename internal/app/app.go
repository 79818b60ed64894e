package app

import (
	"context"
	"edu_progress_backend/internal/config"
	"edu_progress_backend/internal/controller"
	"edu_progress_backend/internal/middleware"
	"edu_progress_backend/internal/repository"
	"edu_progress_backend/internal/repository/inmem"
	"edu_progress_backend/internal/service"
	"edu_progress_backend/internal/util"
	"edu_progress_backend/pkg/configwatcher"
	"edu_progress_backend/pkg/database"
	"edu_progress_backend/pkg/logger"
	"edu_progress_backend/pkg/monitoring"
	"edu_progress_backend/pkg/security"
	"edu_progress_backend/pkg/tracing"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type App struct {
	Config    *config.Config
	ConfigDir string
	Router    *gin.Engine
	DB        *gorm.DB
	Redis     *redis.Client

	services        *services
	tracer          *sdktrace.TracerProvider
	mu              sync.Mutex
	configCallbacks []func(*config.Config)
}

// stores 存储层接口，mysql 和进程内两种实现
type stores struct {
	lessons       service.LessonStore
	progress      service.ProgressStore
	courses       service.CourseStore
	roster        service.RosterStore
	notifications service.NotificationStore
	content       service.ContentStore
}

type services struct {
	settings       *service.ProgressSettings
	storage        service.StorageProvider
	progress       *service.ProgressService
	courseProgress *service.CourseProgressService
	notification   *service.NotificationService
	content        *service.ContentService
}

type controllers struct {
	progress       *controller.ProgressController
	courseProgress *controller.CourseProgressController
	content        *controller.ContentController
	notification   *controller.NotificationController
	health         *controller.HealthController
}

func (a *App) RegisterConfigCallback(callback func(*config.Config)) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.configCallbacks = append(a.configCallbacks, callback)
}

// applyConfig 热更新，只有注册了回调的部分会生效
func (a *App) applyConfig(cfg *config.Config) {
	a.mu.Lock()
	callbacks := append([]func(*config.Config){}, a.configCallbacks...)
	a.mu.Unlock()
	for _, cb := range callbacks {
		cb(cfg)
	}
}

func gormStores(db *gorm.DB) *stores {
	courses := repository.NewCourseRepository(db)
	return &stores{
		lessons:       repository.NewLessonRepository(db),
		progress:      repository.NewProgressRepository(db),
		courses:       courses,
		roster:        courses,
		notifications: repository.NewNotificationRepository(db),
		content:       courses,
	}
}

func memoryStores(store *inmem.Store) *stores {
	return &stores{
		lessons:       store,
		progress:      store,
		courses:       store,
		roster:        store,
		notifications: store,
		content:       store,
	}
}

func (a *App) initServices(st *stores, cfg *config.Config, rdb *redis.Client) (*services, error) {
	s := &services{}

	storage, err := service.NewStorageProvider(&cfg.Storage)
	if err != nil {
		return nil, err
	}
	s.storage = storage

	s.settings = service.NewProgressSettings(cfg.Progress)
	a.RegisterConfigCallback(func(c *config.Config) {
		s.settings.Apply(c.Progress)
	})

	var cache service.ProgressCache
	if rdb != nil {
		cache = service.NewRedisProgressCache(rdb, cfg.Progress.CacheTTL)
	}

	var sender service.NotificationSender = service.LogSender{}
	if cfg.Notification.SendgridAPIKey != "" {
		sender = service.NewSendgridSender(cfg.Notification.SendgridAPIKey, cfg.Notification.AppName, cfg.Notification.FromEmail)
	}

	s.progress = service.NewProgressService(st.lessons, st.progress, cache, s.settings)
	s.courseProgress = service.NewCourseProgressService(st.courses, st.lessons, st.progress, st.roster, cache, s.settings)
	s.notification = service.NewNotificationService(st.roster, st.notifications, sender, cfg.Notification.Concurrency, cfg.Notification.Timeout)
	s.content = service.NewContentService(st.content, st.roster, s.storage, s.notification, cache)

	return s, nil
}

func (a *App) initControllers(s *services) *controllers {
	return &controllers{
		progress:       controller.NewProgressController(s.progress, s.courseProgress, s.storage),
		courseProgress: controller.NewCourseProgressController(s.courseProgress),
		content:        controller.NewContentController(s.content),
		notification:   controller.NewNotificationController(s.notification),
		health:         controller.NewHealthController(a.DB, a.Redis),
	}
}

func (a *App) setupMiddlewares(router *gin.Engine, cfg *config.Config) {
	router.Use(security.CORS(cfg.CORS.AllowedOrigins))
	router.Use(security.Secure())

	if cfg.Tracing.Enabled {
		router.Use(tracing.GinMiddleware())
	}

	router.Use(monitoring.MetricsMiddleware())
}

func (a *App) initStores(cfg *config.Config) *stores {
	if cfg.Database.Driver == util.DriverMemory {
		logger.Log.Warn("Using in-memory store, data is lost on restart")
		return memoryStores(inmem.NewStore())
	}

	db, err := database.InitDB(&cfg.Database, cfg.Server.Mode)
	if err != nil {
		logger.Log.Fatal("Failed to initialize database", zap.Error(err))
	}
	a.DB = db

	if cfg.Server.Mode != gin.ReleaseMode || cfg.ForceMigrate {
		if err := database.Migrate(db); err != nil {
			logger.Log.Fatal("Failed to migrate database", zap.Error(err))
		}
	}
	return gormStores(db)
}

// initRedis 缓存是可选的，连接失败时降级为不缓存
func (a *App) initRedis(cfg *config.Config) {
	if cfg.Redis.Host == "" || cfg.Progress.CacheTTL <= 0 {
		return
	}
	rdb, err := database.InitRedis(&cfg.Redis)
	if err != nil {
		logger.Log.Warn("Redis unavailable, course progress cache disabled", zap.Error(err))
		return
	}
	a.Redis = rdb
}

func NewApp(cfg *config.Config) *App {
	logger.InitLogger(cfg)
	logger.Log.Info("Logger initialized successfully")

	app := &App{Config: cfg, ConfigDir: "configs"}

	st := app.initStores(cfg)
	if cfg.MigrateOnly {
		return app
	}
	app.initRedis(cfg)

	services, err := app.initServices(st, cfg, app.Redis)
	if err != nil {
		logger.Log.Fatal("Failed to initialize services", zap.Error(err))
	}
	app.services = services
	controllers := app.initControllers(services)

	monitoring.Init()

	if cfg.Tracing.Enabled {
		tp, err := tracing.InitTracer("edu-progress", cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Log.Fatal("Failed to initialize tracing", zap.Error(err))
		}
		app.tracer = tp
	}

	gin.SetMode(cfg.Server.Mode)
	router := gin.New()
	router.Use(gin.Recovery())
	if cfg.Server.Mode == gin.DebugMode {
		router.Use(gin.Logger())
	}
	app.Router = router

	app.setupMiddlewares(router, cfg)
	app.registerRoutes(router, controllers, cfg)

	if cfg.Storage.Type == util.StorageLocal {
		router.Static("/uploads", cfg.Storage.LocalPath)
	}

	return app
}

func (a *App) Run() {
	srv := &http.Server{
		Addr:              ":" + a.Config.Server.Port,
		Handler:           a.Router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	defer stopWatch()
	go func() {
		if err := configwatcher.Watch(watchCtx, a.ConfigDir, a.applyConfig); err != nil {
			logger.Log.Warn("Config hot reload disabled", zap.Error(err))
		}
	}()

	go func() {
		log.Printf("Server running on port %s", a.Config.Server.Port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
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
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if a.tracer != nil {
		if err := a.tracer.Shutdown(ctx); err != nil {
			logger.Log.Error("Failed to shutdown tracer provider", zap.Error(err))
		}
	}
	if a.Redis != nil {
		_ = a.Redis.Close()
	}

	log.Println("Server exiting")
}

// rateLimitKey 已登录用户按用户限流
var rateLimitKey = security.UserOrIPKey(middleware.CurrentUserID)
