package routes

import (
	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	handler "github.com/moguls753/kontor/internal/handlers"
	"github.com/moguls753/kontor/internal/jobs"
	"github.com/moguls753/kontor/internal/repository"
	"github.com/moguls753/kontor/internal/secrets"
	"github.com/moguls753/kontor/internal/services/categorizer"
	"github.com/moguls753/kontor/internal/services/linking"
	"github.com/moguls753/kontor/internal/services/tokens"
)

// Deps carries the non-repository collaborators the route table needs.
// Provider base URLs are optional overrides for sandbox environments.
type Deps struct {
	Cipher               *secrets.Cipher
	Queue                jobs.Publisher
	BaseURL              string
	EnableBankingBaseURL string
	GoCardlessBaseURL    string
}

// RegisterRoutes wires repos, services and handlers onto the engine and
// returns the adapter factory for the sync worker.
func RegisterRoutes(r *gin.Engine, db *gorm.DB, deps Deps) *linking.Factory {
	userRepo := repository.NewUserRepository(db)
	connectionRepo := repository.NewBankConnectionRepository(db)
	accountRepo := repository.NewAccountRepository(db)
	transactionRepo := repository.NewTransactionRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	credentialRepo := repository.NewCredentialRepository(db)

	tokenService := tokens.NewService(credentialRepo, deps.Cipher)
	adapterFactory := &linking.Factory{
		Creds:                credentialRepo,
		Cipher:               deps.Cipher,
		Tokens:               tokenService,
		EnableBankingBaseURL: deps.EnableBankingBaseURL,
		GoCardlessBaseURL:    deps.GoCardlessBaseURL,
	}
	linkingService := linking.NewService(connectionRepo, accountRepo, adapterFactory, deps.Queue, deps.BaseURL)
	categorizerService := categorizer.NewService(transactionRepo, categoryRepo, credentialRepo, deps.Cipher)

	connectionHandler := handler.NewBankConnectionHandler(connectionRepo, linkingService)
	accountHandler := handler.NewAccountHandler(accountRepo)
	transactionHandler := handler.NewTransactionHandler(transactionRepo, categorizerService)
	categoryHandler := handler.NewCategoryHandler(categoryRepo, categorizerService)
	credentialHandler := handler.NewCredentialHandler(credentialRepo, deps.Cipher, adapterFactory)
	institutionHandler := handler.NewInstitutionHandler(adapterFactory)
	dashboardHandler := handler.NewDashboardHandler(accountRepo, transactionRepo)

	// Health check
	r.GET("/up", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	api := r.Group("/api/v1")
	api.Use(handler.RateLimit(50, 100))
	api.Use(handler.CurrentUser(userRepo))

	creds := api.Group("/credentials")
	creds.GET("", credentialHandler.Show)
	creds.POST("", credentialHandler.Upsert)
	creds.PUT("", credentialHandler.Upsert)
	creds.POST("/test", credentialHandler.Test)

	api.GET("/institutions", institutionHandler.Index)

	connections := api.Group("/bank_connections")
	connections.GET("", connectionHandler.Index)
	connections.POST("", connectionHandler.Create)
	connections.GET("/:id", connectionHandler.Show)
	connections.DELETE("/:id", connectionHandler.Destroy)
	connections.GET("/:id/callback", connectionHandler.Callback)
	connections.POST("/:id/sync", connectionHandler.Sync)

	categories := api.Group("/categories")
	categories.GET("", categoryHandler.Index)
	categories.POST("", categoryHandler.Create)
	categories.PUT("/:id", categoryHandler.Update)
	categories.DELETE("/:id", categoryHandler.Destroy)
	categories.POST("/create_defaults", categoryHandler.CreateDefaults)
	categories.POST("/suggest", categoryHandler.Suggest)

	transactions := api.Group("/transactions")
	transactions.GET("", transactionHandler.Index)
	transactions.POST("/categorize", transactionHandler.Categorize)

	accounts := api.Group("/accounts")
	accounts.GET("", accountHandler.Index)
	accounts.GET("/:id", accountHandler.Show)
	accounts.PUT("/:id", accountHandler.Update)

	api.GET("/dashboard", dashboardHandler.Show)

	return adapterFactory
}
