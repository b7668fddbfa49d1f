package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"lmsapi/internal/ratelimit"
	"lmsapi/internal/security"
	"lmsapi/internal/usertoken"
	"lmsapi/internal/util"
	"lmsapi/pkg/events"
	"lmsapi/pkg/identity"
	"lmsapi/pkg/search"
	"lmsapi/pkg/storage"
	"lmsapi/pkg/store"
	"lmsapi/services/api/internal/app"
	"lmsapi/services/api/internal/config"
	"lmsapi/services/api/internal/server"
)

const (
	serviceName     = "lms-api"
	rateLimitWindow = time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load(config.ConfigPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	tokenTTL, err := config.ParseDuration("identity.tokenTTL", cfg.Identity.TokenTTL)
	if err != nil {
		log.Fatalf("failed to parse token TTL: %v", err)
	}
	leeway, err := config.ParseDuration("identity.leeway", cfg.Identity.Leeway)
	if err != nil {
		log.Fatalf("failed to parse token leeway: %v", err)
	}

	logger := util.InitLogger(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var redisClient redis.UniversalClient
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword})
		defer redisClient.Close()
	}

	var (
		dataStore store.Store
		accounts  identity.Accounts
	)
	if cfg.DatabaseURL != "" {
		gormStore, err := store.NewGormStore(cfg.DatabaseURL)
		if err != nil {
			log.Fatalf("failed to init store: %v", err)
		}
		defer gormStore.Close()
		gormAccounts, err := identity.NewGormAccounts(gormStore.DB())
		if err != nil {
			log.Fatalf("failed to init identity accounts: %v", err)
		}
		dataStore, accounts = gormStore, gormAccounts
	} else {
		logger.Warn("databaseURL not set, using in-memory store")
		dataStore, accounts = store.NewMemoryStore(), identity.NewMemoryAccounts()
	}

	signer, err := identity.NewSigner(identity.SignerConfig{
		Issuer:         cfg.Identity.Issuer,
		Audience:       cfg.Identity.Audience,
		PrivateKeyPEM:  cfg.Identity.PrivateKey,
		PrivateKeyPath: cfg.Identity.PrivateKeyPath,
		KeyID:          cfg.Identity.KeyID,
		TTL:            tokenTTL,
		Leeway:         leeway,
	})
	if err != nil {
		log.Fatalf("failed to init token signer: %v", err)
	}
	var revoker identity.Revoker
	if redisClient != nil {
		revoker = identity.NewRedisRevoker(redisClient, "lms:revoked")
	}
	provider := identity.NewProvider(accounts, signer, revoker)

	verifiers := server.ChainVerifier{provider}
	if cfg.Identity.JWKSURL != "" {
		external, err := usertoken.NewVerifier(ctx, usertoken.Config{
			JWKSURL:  cfg.Identity.JWKSURL,
			Issuer:   cfg.Identity.JWKSIssuer,
			Audience: cfg.Identity.JWKSAudience,
			Leeway:   leeway,
		})
		if err != nil {
			log.Fatalf("failed to init external token verifier: %v", err)
		}
		verifiers = append(verifiers, external)
	}

	appCfg := app.Config{Store: dataStore, Identity: provider}
	if cfg.Storage.Endpoint != "" {
		objects, err := storage.NewMinioStore(storage.MinioConfig{
			Endpoint:  cfg.Storage.Endpoint,
			AccessKey: cfg.Storage.AccessKey,
			SecretKey: cfg.Storage.SecretKey,
			Bucket:    cfg.Storage.Bucket,
			Region:    cfg.Storage.Region,
			UseSSL:    cfg.Storage.UseSSL,
		})
		if err != nil {
			log.Fatalf("failed to init object storage: %v", err)
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			log.Fatalf("failed to ensure bucket: %v", err)
		}
		appCfg.Storage = objects
	} else {
		logger.Warn("storage endpoint not set, signed URLs disabled")
	}

	publisher, err := events.Open(events.Config{
		Driver:       cfg.Events.Driver,
		AMQPURL:      cfg.Events.AMQPURL,
		AMQPExchange: cfg.Events.AMQPExchange,
		KafkaBrokers: cfg.Events.KafkaBrokers,
		KafkaTopic:   cfg.Events.KafkaTopic,
		RedisStream:  cfg.Events.RedisStream,
	}, redisClient)
	if err != nil {
		log.Fatalf("failed to init events: %v", err)
	}
	defer publisher.Close()
	appCfg.Events = publisher

	if cfg.ElasticsearchURL != "" {
		index, err := search.NewElasticIndex([]string{cfg.ElasticsearchURL}, cfg.ElasticsearchIndex)
		if err != nil {
			log.Fatalf("failed to init search: %v", err)
		}
		if err := index.EnsureIndex(ctx); err != nil {
			log.Fatalf("failed to ensure search index: %v", err)
		}
		appCfg.Search = index
	}

	appCore, err := app.New(appCfg)
	if err != nil {
		log.Fatalf("failed to init app: %v", err)
	}

	proxyTrust, err := util.ParseProxyTrust(cfg.TrustedProxyCIDRs)
	if err != nil {
		log.Fatalf("failed to parse trusted proxies: %v", err)
	}
	srvCfg := server.Config{
		App:         appCore,
		Verifier:    verifiers,
		JWKS:        provider,
		ProxyTrust:  proxyTrust,
		Alerter:     security.NewAlerter(redisClient, "lms:alerts"),
		CORSOrigins: cfg.CORSOrigins,
	}
	if redisClient != nil {
		if srvCfg.RegisterLimiter, err = newLimiter(redisClient, "lms:ratelimit:register", cfg.RegisterRateLimitPerMinute); err != nil {
			log.Fatalf("failed to init register limiter: %v", err)
		}
		if srvCfg.LoginLimiter, err = newLimiter(redisClient, "lms:ratelimit:login", cfg.LoginRateLimitPerMinute); err != nil {
			log.Fatalf("failed to init login limiter: %v", err)
		}
	} else {
		logger.Warn("redisAddr not set, auth rate limiting disabled")
	}

	httpServer, err := server.New(srvCfg)
	if err != nil {
		log.Fatalf("failed to init server: %v", err)
	}

	addr := ":" + cfg.Port
	srv := &http.Server{
		Addr:         addr,
		Handler:      httpServer.Router(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	shutdownDone := make(chan struct{})
	go func() {
		defer close(shutdownDone)
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown error", "err", err)
		}
	}()

	slog.Info("server listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server error", "err", err)
		return
	}
	<-shutdownDone
	slog.Info("server stopped")
}

// newLimiter returns nil when limit is zero, which disables the route limit.
func newLimiter(client redis.UniversalClient, prefix string, limit int) (*ratelimit.FixedWindowLimiter, error) {
	if limit <= 0 {
		return nil, nil
	}
	return ratelimit.NewFixedWindowLimiter(client, prefix, limit, rateLimitWindow)
}
