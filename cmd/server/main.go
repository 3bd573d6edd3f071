package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/herdworks/fieldsync/internal/config"
	"github.com/herdworks/fieldsync/internal/database"
	"github.com/herdworks/fieldsync/internal/handlers"
	"github.com/herdworks/fieldsync/internal/repositories"
	"github.com/herdworks/fieldsync/internal/services"
	"github.com/joho/godotenv"
)

func main() {
	ctx := context.Background()

	godotenv.Load()

	cfg, err := config.LoadServerConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize database connections
	postgresPool, err := database.NewPostgresPool(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to create postgres pool: %v", err)
	}
	defer postgresPool.Close()

	redisClient, err := database.NewRedisClient(ctx, cfg.RedisURL)
	if err != nil {
		log.Fatalf("Failed to create redis client: %v", err)
	}
	defer redisClient.Close()

	// Repositories
	accountRepo := repositories.NewPostgresAccountRepository(postgresPool)
	animalRepo := repositories.NewPostgresAnimalRepository(postgresPool)
	attendanceRepo := repositories.NewPostgresAttendanceRepository(postgresPool)
	medicalRepo := repositories.NewPostgresMedicalRepository(postgresPool)
	breedingRepo := repositories.NewPostgresBreedingRepository(postgresPool)
	sessionRepo := repositories.NewRedisSessionRepository(redisClient)

	// Services
	authService := services.NewAuthService(accountRepo, sessionRepo, cfg.JWTSecret, cfg.JWTExpiry)
	reconcileService := services.NewReconcileService(animalRepo, attendanceRepo, medicalRepo, breedingRepo)

	// Handlers
	authHandler := handlers.NewAuthHandler(authService)
	animalHandler := handlers.NewAnimalHandler(animalRepo)
	recordsHandler := handlers.NewRecordsHandler(attendanceRepo, medicalRepo, breedingRepo)
	syncHandler := handlers.NewSyncHandler(reconcileService)

	router := handlers.Routes(authService, authHandler, animalHandler, recordsHandler, syncHandler)

	// Start Server
	server := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.ServerPort),
		Handler: router,
	}

	// graceful shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan

		log.Println("Shutting down server...")
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		server.Shutdown(ctx)
	}()

	log.Printf("Starting server on port %s", cfg.ServerPort)
	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server error: %v", err)
	}

	log.Println("Server stopped gracefully")
}
