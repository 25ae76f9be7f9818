package main

import (
	"context"
	"log"
	"time"

	"github.com/moguls753/kontor/internal/config"
	"github.com/moguls753/kontor/internal/jobs/inmemory"
	"github.com/moguls753/kontor/internal/logger"
	"github.com/moguls753/kontor/internal/models"
	"github.com/moguls753/kontor/internal/repository"
	"github.com/moguls753/kontor/internal/routes"
	"github.com/moguls753/kontor/internal/secrets"
	syncsvc "github.com/moguls753/kontor/internal/services/sync"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

func main() {
	cfg := config.Load()
	logger.Init(cfg.LogLevel)

	db := cfg.InitDB()

	db.AutoMigrate(
		&models.User{},
		&models.BankConnection{},
		&models.Account{},
		&models.TransactionRecord{},
		&models.Category{},
		&models.GoCardlessCredential{},
		&models.EnableBankingCredential{},
		&models.LLMCredential{},
	)

	cipher, err := secrets.NewCipher(cfg.SecretsKey)
	if err != nil {
		log.Fatalf("failed to init secrets cipher: %v", err)
	}

	queue := inmemory.NewQueue(64, 2)
	defer queue.Close()

	r := gin.Default()
	// CORS config
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{cfg.CORSOrigin},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-User-ID"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	adapterFactory := routes.RegisterRoutes(r, db, routes.Deps{
		Cipher:               cipher,
		Queue:                queue,
		BaseURL:              cfg.BaseURL,
		EnableBankingBaseURL: cfg.EnableBankingBaseURL,
		GoCardlessBaseURL:    cfg.GoCardlessBaseURL,
	})

	syncService := syncsvc.NewService(
		repository.NewBankConnectionRepository(db),
		repository.NewAccountRepository(db),
		repository.NewTransactionRepository(db),
		adapterFactory,
	)
	if err := queue.Start(context.Background(), syncService.HandleJob); err != nil {
		log.Fatalf("failed to start sync workers: %v", err)
	}

	r.Run(":" + cfg.Port)
}
