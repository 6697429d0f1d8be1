package main

import (
	"context"
	"database/sql"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/devtrack-app/devtrack/internal/config"
	"github.com/devtrack-app/devtrack/internal/handler"
	ratelimit "github.com/devtrack-app/devtrack/internal/middleware"
	"github.com/devtrack-app/devtrack/internal/pkg/logger"
	"github.com/devtrack-app/devtrack/internal/pkg/oauthstate"
	"github.com/devtrack-app/devtrack/internal/pkg/supabase"
	"github.com/devtrack-app/devtrack/internal/pkg/tokencrypt"
	"github.com/devtrack-app/devtrack/internal/pkg/vercel"
	"github.com/devtrack-app/devtrack/internal/repository"
	"github.com/devtrack-app/devtrack/internal/server"
	"github.com/devtrack-app/devtrack/internal/service"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// newCipher builds the credential cipher from the configured master secret.
// An absent secret keeps local development usable: it logs a warning and
// falls back to the fixed dev key instead of refusing to start.
func newCipher(secret string, log *zap.Logger) *tokencrypt.Cipher {
	if strings.TrimSpace(secret) == "" {
		log.Warn("no encryption secret configured, using insecure dev key; set security.encryption_secret in production")
		return tokencrypt.NewInsecureDev()
	}
	cipher, err := tokencrypt.New(secret)
	if err != nil {
		log.Fatal("invalid encryption secret", zap.Error(err))
	}
	return cipher
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		panic(err)
	}

	log := logger.New(logger.Options{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		FilePath:   cfg.Log.FilePath,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	defer func() { _ = log.Sync() }()
	logger.SetGlobal(log)

	cipher := newCipher(cfg.Security.EncryptionSecret, log)

	// Provider clients and adapters.
	vercelClient := vercel.NewClient(vercel.Options{
		ClientID:     cfg.OAuth.Vercel.ClientID,
		ClientSecret: cfg.OAuth.Vercel.ClientSecret,
		Timeout:      cfg.Upstream.Timeout,
	})
	supabaseClient := supabase.NewClient(supabase.Options{
		ClientID:     cfg.OAuth.Supabase.ClientID,
		ClientSecret: cfg.OAuth.Supabase.ClientSecret,
		Timeout:      cfg.Upstream.Timeout,
	})
	registry := service.NewProviderRegistry(
		repository.NewVercelAdapter(vercelClient, cfg.Upstream.DeploymentPage),
		repository.NewSupabaseAdapter(supabaseClient),
	)

	// Account store: Postgres when configured, in-process otherwise.
	var accounts service.AccountStore
	if cfg.Database.DSN != "" {
		db, err := sql.Open("postgres", cfg.Database.DSN)
		if err != nil {
			log.Fatal("open database", zap.Error(err))
		}
		defer func() { _ = db.Close() }()
		if err := db.PingContext(context.Background()); err != nil {
			log.Fatal("database unreachable", zap.Error(err))
		}
		accounts = repository.NewConnectedAccountRepository(db)
	} else {
		log.Warn("no database configured, using in-memory account store")
		accounts = repository.NewMemoryAccountRepository()
	}

	// PKCE session store.
	var states oauthstate.Store
	if cfg.OAuth.StateStore == "memory" {
		states = oauthstate.NewMemoryStore()
	} else {
		states = oauthstate.NewCookieStore(cfg.Security.CookieSigningSecret, cfg.Security.CookieSecure)
	}

	providerConfigs := map[service.Provider]service.ProviderConfig{
		service.ProviderVercel: {
			ClientID:    cfg.OAuth.Vercel.ClientID,
			RedirectURI: cfg.OAuth.Vercel.RedirectURI,
		},
		service.ProviderSupabase: {
			ClientID:    cfg.OAuth.Supabase.ClientID,
			RedirectURI: cfg.OAuth.Supabase.RedirectURI,
		},
	}

	lifecycle := service.NewTokenLifecycle(cipher, log)
	oauthService := service.NewOAuthService(registry, cipher, accounts, providerConfigs, log)
	syncService := service.NewSyncService(registry, lifecycle, cfg.Upstream.SyncWorkers, log)
	defer syncService.Stop()

	var limiter *ratelimit.RateLimiter
	if cfg.RateLimit.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer func() { _ = rdb.Close() }()
		limiter = ratelimit.NewRateLimiter(rdb)
	}

	engine := server.NewRouter(cfg, server.Handlers{
		OAuth:   handler.NewOAuthHandler(oauthService, states, cfg.Server.FrontendURL, cfg.Security.CookieSecure, log),
		Service: handler.NewServiceHandler(oauthService, syncService, accounts, cfg.Security.CookieSecure, log),
	}, limiter, log)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.NewHTTPServer(cfg.Server.Addr, engine, log).Run(ctx); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
}
