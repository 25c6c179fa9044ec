package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/pawmart/storefront/internal/backend"
	c "github.com/pawmart/storefront/internal/cache"
	"github.com/pawmart/storefront/internal/cartstore"
	"github.com/pawmart/storefront/internal/config"
	"github.com/pawmart/storefront/internal/gateway"
	"github.com/pawmart/storefront/internal/notify"
	"github.com/pawmart/storefront/internal/poller"
)

func main() {
	cfg := config.Load()

	client := backend.NewClient(cfg.BackendBaseURL, cfg.RequestTimeout)

	// Cart snapshot cache is optional; without Redis the stores read
	// straight through to the backend.
	var snapshotCache c.SnapshotCache
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       0,
		})
		defer redisClient.Close()
		if err := redisClient.Ping(context.Background()).Err(); err != nil {
			log.Fatal("Redis connection failed:", err)
		}
		log.Printf("Redis ping succeeded")
		snapshotCache = c.NewRedisCache(redisClient)
	}

	var notifier notify.Notifier = notify.LogNotifier{}
	if len(cfg.KafkaBrokers) > 0 {
		kafkaNotifier := notify.NewKafkaNotifier(cfg.NotifyTopic, cfg.KafkaBrokers...)
		defer kafkaNotifier.Close()
		notifier = kafkaNotifier
		log.Printf("Publishing notifications to %s", cfg.NotifyTopic)
	}

	stores := gateway.NewStoreRegistry(func(accountID string) *cartstore.Store {
		return cartstore.NewStore(accountID, client, snapshotCache, notifier)
	})
	watches := gateway.NewWatchRegistry(client, notifier, stores,
		poller.DefaultPaymentInterval, poller.DefaultWatchInterval)
	defer watches.CloseAll()

	cartHandler := gateway.NewCartHandler(stores)
	orderHandler := gateway.NewOrderHandler(watches)

	// Setup router
	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(gateway.RequestIDMiddleware)
	r.Use(middleware.Timeout(cfg.RequestTimeout))
	r.Use(middleware.Compress(5))
	r.Use(gateway.AuthMiddleware)

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/cart", func(r chi.Router) {
			r.Get("/", cartHandler.GetCart)
			r.Post("/items", cartHandler.AddItem)
			r.Put("/items/{item_id}", cartHandler.UpdateQuantity)
			r.Delete("/items/{item_id}", cartHandler.RemoveItem)
			r.Delete("/", cartHandler.ClearCart)
		})
		r.Route("/orders/{order_id}", func(r chi.Router) {
			r.Get("/", orderHandler.GetOrder)
			r.Post("/confirm-payment", orderHandler.ConfirmPayment)
			r.Post("/cancel", orderHandler.Cancel)
			r.Post("/status", orderHandler.Advance)
			r.Get("/payment-qr", orderHandler.PaymentQR)
			r.Post("/watch", orderHandler.Watch)
			r.Delete("/watch", orderHandler.Unwatch)
		})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: otelhttp.NewHandler(r, "storefront"),
	}

	go func() {
		log.Printf("Storefront listening on port %s", cfg.HTTPPort)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to serve: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down storefront...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP shutdown error: %v", err)
	}
	watches.CloseAll()
	log.Println("Storefront stopped")
}
