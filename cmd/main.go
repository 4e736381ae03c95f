package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"selllink/internal/controller"
	"selllink/internal/middleware"
	"selllink/internal/model"
	"selllink/internal/repository"
	"selllink/internal/router"
	"selllink/internal/service"
	"selllink/internal/session"
	"selllink/internal/task"
	"selllink/pkg/database"
)

func main() {
	// 1. 加载环境变量
	if err := godotenv.Load(); err != nil {
		log.Println("未找到 .env 文件，使用进程环境变量")
	}

	// 2. 初始化数据库
	db := initDatabase()

	// 3. 初始化依赖
	deps := initDependencies(db)

	// 4. 启动定时任务
	initTasks(deps)

	// 5. 初始化路由
	r := setupRouter(deps)

	// 6. 启动服务
	startServer(r)
}

// ==================== 依赖容器 ====================

// Dependencies 依赖容器
type Dependencies struct {
	DB       *gorm.DB
	Sessions *session.Manager
	Repos    *Repositories
	Services *Services

	ListingCtl *controller.ListingController
	PublicCtl  *controller.PublicController

	cookieMaxAge   int
	localUploadDir string
}

// Repositories 仓库集合
type Repositories struct {
	SharedListing repository.SharedListingRepository
}

// Services 服务集合
type Services struct {
	AI       *service.AIService
	Storage  *service.StorageService
	Detect   *service.DetectService
	RemoveBg *service.RemoveBgService
	Copy     *service.CopyService
	Share    *service.ShareService
}

// ==================== 初始化函数 ====================

// initDatabase 初始化数据库
func initDatabase() *gorm.DB {
	return database.InitDB(
		getEnv("SQLITE_PATH", "selllink.db"),
		&model.SharedListing{},
	)
}

// initDependencies 初始化所有依赖
func initDependencies(db *gorm.DB) *Dependencies {
	// -------- Repo 层 --------
	repos := &Repositories{
		SharedListing: repository.NewSharedListingRepository(db),
	}

	// -------- 存储 & AI 服务 --------
	storageSvc := initStorageService()
	aiSvc := service.NewAIService(&service.AIConfig{
		ApiKey:      getEnv("GEMINI_API_KEY", ""),
		TextModel:   getEnv("GEMINI_TEXT_MODEL", ""),
		VisionModel: getEnv("GEMINI_VISION_MODEL", ""),
	})

	// -------- 能力服务 --------
	services := &Services{
		AI:      aiSvc,
		Storage: storageSvc,
	}
	services.Detect = service.NewDetectService(&service.DetectConfig{
		EdgeURL: getEnv("DETECT_EDGE_URL", ""),
	}, aiSvc)
	services.RemoveBg = service.NewRemoveBgService(&service.RemoveBgConfig{
		EdgeURL:     getEnv("REMOVEBG_EDGE_URL", ""),
		ProxyURL:    getEnv("REMOVEBG_PROXY_URL", ""),
		ClipDropKey: getEnv("CLIPDROP_API_KEY", ""),
	}, storageSvc)
	services.Copy = service.NewCopyService(aiSvc)
	services.Share = service.NewShareService(repos.SharedListing, shareTTL())

	logProviders(services)

	// -------- 会话 --------
	sessionTTL := time.Duration(getEnvInt("SESSION_TTL_MINUTES", 120)) * time.Minute
	sessions := session.NewManager(getEnvInt("SESSION_MAX", 1024), sessionTTL)

	return &Dependencies{
		DB:         db,
		Sessions:   sessions,
		Repos:      repos,
		Services:   services,
		ListingCtl: controller.NewListingController(services.Detect, services.RemoveBg, services.Copy, services.Share),
		PublicCtl:  controller.NewPublicController(services.Share),

		cookieMaxAge:   int(sessionTTL / time.Second),
		localUploadDir: localUploadDir(storageSvc),
	}
}

// initStorageService 初始化存储服务
// 去背结果可选托管；初始化失败不挡启动，结果退回 data URI
func initStorageService() *service.StorageService {
	storageSvc, err := service.NewStorageService(&service.StorageConfig{
		Provider:  getEnv("STORAGE_PROVIDER", "local"),
		Bucket:    getEnv("AWS_BUCKET", ""),
		Region:    getEnv("AWS_REGION", ""),
		AccessKey: getEnv("AWS_ACCESS_KEY_ID", ""),
		SecretKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		Endpoint:  getEnv("STORAGE_ENDPOINT", ""),
		CDNDomain: getEnv("AWS_CDN_DOMAIN", ""),
		BasePath:  getEnv("STORAGE_BASE_PATH", "./uploads"),
		BaseURL:   getEnv("STORAGE_BASE_URL", "/uploads"),
	})
	if err != nil {
		log.Printf("警告: 存储服务初始化失败: %v", err)
		return nil
	}
	return storageSvc
}

// localUploadDir 本地存储时的静态目录，其余情况为空
func localUploadDir(storageSvc *service.StorageService) string {
	if storageSvc == nil {
		return ""
	}
	if local, ok := storageSvc.GetProvider().(*service.LocalStorage); ok {
		return local.Dir()
	}
	return ""
}

func shareTTL() time.Duration {
	return time.Duration(getEnvInt("SHARE_TTL_HOURS", 168)) * time.Hour
}

func logProviders(services *Services) {
	detect := services.Detect.ProviderName()
	if detect == "" {
		detect = "未配置"
	}
	removeBg := services.RemoveBg.ProviderName()
	if removeBg == "" {
		removeBg = "未配置（回退原图）"
	}
	log.Printf("能力后端: detect=%s remove-bg=%s", detect, removeBg)
}

// ==================== 定时任务 ====================

// initTasks 初始化定时任务
func initTasks(deps *Dependencies) {
	cleanupTask := task.NewCleanupTask(deps.Repos.SharedListing)
	cleanupTask.Start()

	log.Println("定时任务已启动")
}

// ==================== 路由 ====================

func setupRouter(deps *Dependencies) *gin.Engine {
	if getEnv("GIN_MODE", "") == "release" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.Default()
	r.Use(middleware.CORS(getEnv("CORS_ORIGIN", "")))
	router.InitRoutes(r, deps.Sessions, deps.cookieMaxAge, deps.ListingCtl, deps.PublicCtl, deps.localUploadDir)
	return r
}

// ==================== 服务启动 ====================

// startServer 启动服务
func startServer(r *gin.Engine) {
	port := getEnv("SERVER_PORT", "8080")

	srv := &http.Server{
		Addr:    ":" + port,
		Handler: r,
	}

	// 异步启动服务
	go func() {
		log.Printf("服务启动在 :%s", port)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("服务启动失败: %v", err)
		}
	}()

	// 等待退出信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("正在关闭服务...")

	// 优雅关闭，最多等待 10 秒
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("服务强制关闭: %v", err)
	}

	log.Println("服务已退出")
}

// ==================== 工具函数 ====================

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}
