package main

import (
	"fmt"
	"log"
	"time"

	"onyx-api/configs"
	v1 "onyx-api/internal/api/v1"
	"onyx-api/internal/assistant"
	"onyx-api/internal/billing"
	"onyx-api/internal/config"
	"onyx-api/internal/middleware"
	"onyx-api/internal/repository"
	"onyx-api/pkg/database"
	"onyx-api/pkg/logger"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

func main() {
	logger.InitLoggers()
	defer logger.SyncLoggers()

	cfg := configs.LoadConfig()
	if cfg.JWTSecret != "" {
		config.SecretKey = []byte(cfg.JWTSecret)
	}

	config.DB = database.ConnectDB(cfg)
	defer config.DB.Close()
	repository.CreateTableIfNotExists(config.DB)

	config.RedisClient = database.ConnectRedis(cfg)
	defer config.RedisClient.Close()

	openaiCfg := openai.DefaultConfig(cfg.OpenAIKey)
	if cfg.OpenAIOrganization != "" {
		openaiCfg.OrgID = cfg.OpenAIOrganization
	}
	assistant.Init(openai.NewClientWithConfig(openaiCfg), cfg.FineTunedTaskModel, cfg.FineTunedChatModel)

	billing.Init(&cfg)

	app := fiber.New(fiber.Config{
		AppName: "Onyx API",
	})
	app.Use(middleware.ErrorHandler())
	app.Use(cors.New())
	app.Use(limiter.New(limiter.Config{
		Max:        100,
		Expiration: 1 * time.Minute,
	}))

	v1.RegisterRoutes(app)

	logger.SystemLogger.Info("Server starting", zap.Int("port", cfg.Port))
	if err := app.Listen(fmt.Sprintf(":%d", cfg.Port)); err != nil {
		log.Fatalf("Server failed to start: %v", err)
	}
}
