package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"

	"github.com/promoworks/voucher-redemption-service/internal/api"
	"github.com/promoworks/voucher-redemption-service/internal/api/handlers"
	"github.com/promoworks/voucher-redemption-service/internal/api/middleware"
	"github.com/promoworks/voucher-redemption-service/internal/cache"
	"github.com/promoworks/voucher-redemption-service/internal/fraud"
	"github.com/promoworks/voucher-redemption-service/internal/repository"
	"github.com/promoworks/voucher-redemption-service/internal/service"
	"github.com/promoworks/voucher-redemption-service/internal/signing"
	"github.com/promoworks/voucher-redemption-service/internal/token"
	"github.com/promoworks/voucher-redemption-service/pkg/db"
)

func main() {
	// load DB config from env
	cfg := db.LoadPostgresConfig()

	conn, err := db.NewPostgresConnection(cfg)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer conn.Close()

	// Missing signing configuration is fatal: the service must not accept
	// traffic it cannot issue or verify codes for.
	secret := os.Getenv("SHORTCODE_SECRET")
	if secret == "" {
		log.Fatal("SHORTCODE_SECRET must be set")
	}

	keys := signing.NewKeyManager()
	if err := keys.EnsureKeyPair(); err != nil {
		log.Fatalf("signing keypair: %v", err)
	}

	voucherRepo := repository.NewVoucherRepo(conn)
	redemptionRepo := repository.NewRedemptionRepo(conn)
	fraudRepo := repository.NewFraudRepo(conn)
	providerRepo := repository.NewProviderRepo(conn)

	issuer, err := token.NewIssuer(keys, voucherRepo, []byte(secret))
	if err != nil {
		log.Fatalf("token issuer: %v", err)
	}

	var voucherCache cache.VoucherCache
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		client := redis.NewClient(&redis.Options{Addr: addr, Password: os.Getenv("REDIS_PASSWORD")})
		voucherCache = cache.NewRedisVoucherCache(client, 30*time.Second, nil)
	} else {
		voucherCache = cache.NewMemoryVoucherCache(30 * time.Second)
	}

	fraudCfg := fraud.DefaultConfig()
	if path := os.Getenv("FRAUD_CONFIG"); path != "" {
		fraudCfg, err = fraud.LoadConfig(path)
		if err != nil {
			log.Fatalf("fraud config: %v", err)
		}
	}
	detector, err := fraud.NewDetector(fraudCfg, redemptionRepo, fraudRepo, providerRepo, nil)
	if err != nil {
		log.Fatalf("fraud detector: %v", err)
	}

	validator := service.NewValidator(issuer, voucherRepo, providerRepo, voucherCache)
	coordinator := service.NewCoordinator(validator, redemptionRepo, voucherCache, detector, nil)
	reconciler := service.NewReconciler(coordinator)

	handler := api.NewRouter(handlers.NewRedemptionHandler(issuer, validator, coordinator, reconciler))

	r := chi.NewRouter()
	r.Use(middleware.Logger)
	r.Mount("/", handler)

	srv := &http.Server{
		Addr:         ":8080",
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// graceful shutdown
	idleConnsClosed := make(chan struct{})
	go func() {
		c := make(chan os.Signal, 1)
		signal.Notify(c, os.Interrupt)
		<-c
		ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			log.Printf("HTTP server Shutdown: %v", err)
		}
		close(idleConnsClosed)
	}()

	log.Println("starting redemption-service on :8080")
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("listen: %s\n", err)
	}

	<-idleConnsClosed
	log.Println("server stopped")
}
