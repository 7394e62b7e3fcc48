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

	"github.com/recetario/backend/config"
	"github.com/recetario/backend/internal/api"
	"github.com/recetario/backend/internal/cache"
	"github.com/recetario/backend/internal/database"
	"github.com/recetario/backend/internal/router"
	"github.com/recetario/backend/internal/service"
	"github.com/recetario/backend/internal/txn"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	db, err := database.New(cfg)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}

	// Fall back to the in-process cache when Redis is unreachable; the cache
	// is a discardable projection either way.
	var store cache.Cache
	if redisClient, err := database.NewRedisClient(cfg); err != nil {
		log.Printf("Redis unavailable, using in-memory cache: %v", err)
		store = cache.NewMemoryCache()
	} else {
		store = cache.NewRedisCache(redisClient)
	}

	var images service.ImageStore
	if s3cfg, err := config.NewS3Config(context.Background()); err != nil {
		log.Printf("S3 unavailable, image uploads disabled: %v", err)
	} else {
		images = service.NewImageService(s3cfg)
	}

	co := txn.New(db, store)
	identity := service.NewIdentityService(co, store)
	catalog := service.NewCatalogService(co, store, images)

	userHandler := api.NewUserHandler(identity, store)
	categoryHandler := api.NewCategoryHandler(catalog, store)
	recipeHandler := api.NewRecipeHandler(catalog, store)

	engine := router.SetupRouter(userHandler, categoryHandler, recipeHandler, identity, nil)

	srv := &http.Server{
		Addr:    fmt.Sprintf("%s:%s", cfg.ServerHost, cfg.ServerPort),
		Handler: engine,
	}

	errChan := make(chan error, 1)
	go func() {
		log.Printf("Starting server on %s", srv.Addr)
		errChan <- srv.ListenAndServe()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errChan:
		if err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server error: %v", err)
		}
	case sig := <-quit:
		log.Printf("Received signal: %v", sig)
	}

	log.Println("Shutting down server...")
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Fatalf("Server shutdown error: %v", err)
	}
	log.Println("Server stopped")
}
