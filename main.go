package main

import (
	"context"
	"fmt"
	"log"

	"anonlink/config"
	"anonlink/database"
	"anonlink/handlers"
	"anonlink/logger"
	"anonlink/middleware"
	"anonlink/models"
	"anonlink/repositories"
	"anonlink/services"
	"anonlink/storage"

	"github.com/gin-gonic/gin"
)

func main() {
	log.Println("starting anonlink service")

	cfg, err := config.LoadConfig("config.yaml")
	if err != nil {
		log.Fatalf("load config failed: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	if err := database.InitMySQL(&cfg.Database); err != nil {
		log.Fatalf("init mysql failed: %v", err)
	}

	database.DB.AutoMigrate(
		&models.User{},
		&models.File{},
		&models.DownloadLog{},
	)
	log.Println("database migration completed")

	if err := database.InitRedis(&cfg.Redis); err != nil {
		log.Fatalf("init redis failed: %v", err)
	}

	blobStore := storage.NewDiskStore(cfg.Storage.BasePath)
	repoContainer := repositories.NewGormRepositories(database.DB, database.RedisClient).BuildContainer()
	serviceContainer := services.NewContainer(repoContainer, blobStore)
	handlers.SetServices(serviceContainer)

	serviceContainer.Cleanup.Start(context.Background())
	log.Println("cleanup worker started")

	r := gin.Default()
	r.Use(middleware.CORSMiddleware())
	r.Use(middleware.RequestLogger())
	setupRoutes(r, repoContainer)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("server listening on http://%s", addr)
	if err := r.Run(addr); err != nil {
		log.Fatalf("server start failed: %v", err)
	}
}

func setupRoutes(r *gin.Engine, repos repositories.Container) {
	api := r.Group("/api")

	api.GET("/health", handlers.HealthCheck)

	auth := api.Group("/auth")
	{
		auth.POST("/register", handlers.Register)
		auth.POST("/login", handlers.Login)
	}

	protected := api.Group("")
	protected.Use(middleware.AuthMiddleware())
	{
		protected.GET("/auth/profile", handlers.GetProfile)
		protected.GET("/user/storage/quota", handlers.GetStorageQuota)

		protected.GET("/files", handlers.ListFiles)
		protected.POST("/files/upload", handlers.UploadFile)
		protected.GET("/files/:id/download", handlers.DownloadFile)
		protected.DELETE("/files/:id", handlers.DeleteFile)
		protected.POST("/files/:id/regenerate-link", handlers.RegenerateLink)
	}

	public := api.Group("")
	public.Use(middleware.PublicRateLimit(repos.RateLimit))
	{
		public.GET("/download/:token", handlers.PublicDownload)
		public.GET("/file-info/:token", handlers.GetFileInfo)
		public.GET("/thumbnail/:token", handlers.PublicThumbnail)
	}
}
