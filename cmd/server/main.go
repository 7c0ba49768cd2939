package main

import (
	"encoding/json"
	"log"
	"net/http"
	"os"

	"github.com/gorilla/mux"
	"github.com/joho/godotenv"
	httpSwagger "github.com/swaggo/http-swagger"
	"go.uber.org/zap"

	_ "github.com/gatekeep-app/gatekeep/docs"
	"github.com/gatekeep-app/gatekeep/internal/db"
	"github.com/gatekeep-app/gatekeep/internal/handlers"
	"github.com/gatekeep-app/gatekeep/internal/logger"
	"github.com/gatekeep-app/gatekeep/internal/models"
	"github.com/gatekeep-app/gatekeep/internal/repositories"
	"github.com/gatekeep-app/gatekeep/internal/services"
)

func main() {
	// .env is optional; real deployments set the environment directly
	_ = godotenv.Load()

	zlog, err := logger.New("gatekeep")
	if err != nil {
		log.Fatal("Failed to build logger:", err)
	}
	defer zlog.Sync()

	// Database connection
	config := db.NewConfig()
	database, err := db.Connect(config)
	if err != nil {
		zlog.Fatal("failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	if err := database.Health(); err != nil {
		zlog.Fatal("database health check failed", zap.Error(err))
	}
	if err := database.AutoMigrate(&models.Action{}, &models.AutoApproveRule{}); err != nil {
		zlog.Fatal("database migration failed", zap.Error(err))
	}
	zlog.Info("database connection established", zap.String("driver", config.Driver))

	// Repositories
	actionRepo := repositories.NewActionRepository(database)
	ruleRepo := repositories.NewRuleRepository(database)
	statsRepo := repositories.NewStatsRepository(database)

	// Services
	ruleService := services.NewRuleService(ruleRepo, zlog)
	actionService := services.NewActionService(actionRepo, ruleService, zlog)
	statsService := services.NewStatsService(statsRepo, ruleRepo, zlog)

	// Handlers
	actionHandler := handlers.NewActionHandler(actionService)
	ruleHandler := handlers.NewRuleHandler(ruleService)
	statsHandler := handlers.NewStatsHandler(statsService)

	router := mux.NewRouter()

	// Health check endpoint
	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"status":  "healthy",
			"service": "gatekeep",
		})
	}).Methods("GET")

	// Action queue endpoints
	api := router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/actions", actionHandler.Create).Methods("POST")
	api.HandleFunc("/actions", actionHandler.List).Methods("GET")
	api.HandleFunc("/actions/{id}", actionHandler.Get).Methods("GET")
	api.HandleFunc("/actions/{id}/approve", actionHandler.Approve).Methods("POST")
	api.HandleFunc("/actions/{id}/deny", actionHandler.Deny).Methods("POST")
	api.HandleFunc("/actions/{id}/edit", actionHandler.Edit).Methods("POST")
	api.HandleFunc("/actions/{id}/evaluate", actionHandler.Evaluate).Methods("POST")
	api.HandleFunc("/actions/{id}/matches", actionHandler.Matches).Methods("GET")
	api.HandleFunc("/actions/{id}/rule-draft", actionHandler.RuleDraft).Methods("GET")

	// Auto-approve rule endpoints
	api.HandleFunc("/rules", ruleHandler.Create).Methods("POST")
	api.HandleFunc("/rules", ruleHandler.List).Methods("GET")
	api.HandleFunc("/rules/{id}", ruleHandler.Get).Methods("GET")
	api.HandleFunc("/rules/{id}/toggle", ruleHandler.Toggle).Methods("POST")
	api.HandleFunc("/rules/{id}", ruleHandler.Delete).Methods("DELETE")
	api.HandleFunc("/rules/{id}/outcome", ruleHandler.RecordOutcome).Methods("POST")

	// Stats
	api.HandleFunc("/stats", statsHandler.Get).Methods("GET")

	// API documentation
	router.PathPrefix("/swagger/").Handler(httpSwagger.WrapHandler)

	// CORS middleware
	corsHandler := func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

			if r.Method == "OPTIONS" {
				w.WriteHeader(http.StatusOK)
				return
			}

			next.ServeHTTP(w, r)
		})
	}

	port := os.Getenv("SERVER_PORT")
	if port == "" {
		port = "8080"
	}

	zlog.Info("server starting", zap.String("port", port))
	if err := http.ListenAndServe(":"+port, corsHandler(router)); err != nil {
		zlog.Fatal("server exited", zap.Error(err))
	}
}
