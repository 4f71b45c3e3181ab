package main

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/cors"
	"margin/internal/auth"
	"margin/internal/capabilities"
	"margin/internal/config"
	"margin/internal/domain/models"
	"margin/internal/domain/repositories"
	"margin/internal/handler"
	"margin/internal/handler/sse"
	"margin/internal/metrics"
	"margin/internal/middleware"
	"margin/internal/repository/cached"
	"margin/internal/repository/memory"
	"margin/internal/repository/postgres"
	authsvc "margin/internal/service/auth"
	serviceLLM "margin/internal/service/llm"
	"margin/internal/service/llm/assistant"
	"margin/internal/service/llm/gateway"
	"margin/internal/service/toolserver"
	"margin/internal/service/usage"
)

// demoProjectID is seeded for the dev user in memory mode
const demoProjectID = "00000000-0000-4000-8000-0000000000d1"

// stores is the repository set for the chosen backend
type stores struct {
	profiles    repositories.ProfileRepository
	projects    repositories.ProjectRepository
	messages    repositories.MessageRepository
	highlights  repositories.HighlightRepository
	toolServers repositories.ToolServerRepository
	usage       repositories.UsageRepository
	tx          repositories.TransactionManager
	close       func()
}

func main() {
	// Load .env file (silently ignore if it doesn't exist - for production)
	_ = godotenv.Load()

	cfg := config.Load()

	logger, logCloser, err := config.NewLogger(cfg)
	if err != nil {
		log.Fatalf("Failed to set up logging: %v", err)
	}
	defer logCloser.Close()
	slog.SetDefault(logger)

	logger.Info("server starting",
		"environment", cfg.Environment,
		"port", cfg.Port,
		"storage", cfg.Storage,
		"table_prefix", cfg.TablePrefix,
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStores(ctx, cfg, logger)
	if err != nil {
		log.Fatalf("Failed to open storage: %v", err)
	}
	defer st.close()

	catalog, err := capabilities.NewRegistry()
	if err != nil {
		log.Fatalf("Failed to initialize capability registry: %v", err)
	}

	providers, err := serviceLLM.SetupProviders(cfg, catalog, logger)
	if err != nil {
		log.Fatalf("Failed to setup LLM providers: %v", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	projects := cached.NewProjectRepository(st.projects, cached.DefaultSize, cached.DefaultTTL)
	gate := usage.NewGate(st.profiles, st.usage, catalog, m, logger)
	authorizer := authsvc.NewOwnerBasedAuthorizer(projects, gate, cfg.AdminUserIDs, cfg.AdminEmails)

	connector := gateway.NewMCPConnector("margin", "1.0.0")
	pools := gateway.NewPoolCache(st.toolServers, connector, gateway.DefaultCacheConfig(), logger)
	defer pools.Close()
	toolServers := toolserver.NewService(st.toolServers, pools, gateway.NewTester(connector, 10*time.Second), logger)

	orchestrator := assistant.NewOrchestrator(assistant.Deps{
		Models:     providers,
		Messages:   st.messages,
		Highlights: st.highlights,
		Projects:   projects,
		Usage:      gate,
		Pools:      pools,
		Tx:         st.tx,
		Metrics:    m,
		Logger:     logger,
	}, assistant.ConfigFrom(cfg))

	routes := &handler.Routes{
		Chat: handler.NewChatHandler(handler.ChatDeps{
			Runner:     orchestrator,
			Turns:      assistant.NewTurnRegistry(),
			Gate:       gate,
			Authorizer: authorizer,
			Messages:   st.messages,
			Highlights: st.highlights,
			Metrics:    m,
			SSE:        sse.DefaultConfig(),
			Logger:     logger,
		}),
		ToolServers: handler.NewToolServerHandler(toolServers, authorizer, logger),
		Usage:       handler.NewUsageHandler(gate, logger),
		Metrics:     m.Handler(),
	}

	logger.Info("services initialized")

	// Create HTTP router (Go 1.22+ enhanced patterns)
	mux := http.NewServeMux()
	routes.Register(mux)

	var verifier auth.JWTVerifier
	if cfg.AuthDisabled {
		logger.Warn("AUTH DISABLED: every request runs as the dev user", "user_id", cfg.DevUserID)
	} else {
		v, err := auth.NewJWTVerifier(cfg.SupabaseJWKSURL, logger)
		if err != nil {
			log.Fatalf("Failed to create JWT verifier: %v", err)
		}
		defer v.Close()
		verifier = v
	}

	// Apply middleware in reverse order (they wrap each other)
	// Order: CORS → Recovery → Metrics → Auth → RateLimit → Routes
	var h http.Handler = mux
	h = middleware.RateLimit(
		middleware.NewUserLimiter(cfg.ChatRateRPS, cfg.ChatRateBurst),
		func(r *http.Request) bool { return r.Method == http.MethodPost && r.URL.Path == "/api/chat" },
		logger,
	)(h)
	h = middleware.Auth(verifier, middleware.AuthOptions{
		Disabled:    cfg.AuthDisabled,
		DevUserID:   cfg.DevUserID,
		PublicPaths: []string{"/health", "/metrics"},
	}, logger)(h)
	h = middleware.Metrics(m)(h)
	h = middleware.Recovery(logger)(h)

	// CORS - Must be before auth to handle OPTIONS pre-flight requests
	corsHandler := cors.New(cors.Options{
		AllowedOrigins:   strings.Split(cfg.CORSOrigins, ","),
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Origin", "Content-Type", "Accept", "Authorization"},
		AllowCredentials: true,
	})
	h = corsHandler.Handler(h)

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 0, // Disabled to allow long-lived SSE streams
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("shutdown failed", "error", err)
		}
	}()

	logger.Info("listening", "port", cfg.Port)
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// openStores connects the configured backend. Memory mode seeds a demo
// project for the dev user.
func openStores(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*stores, error) {
	if cfg.Storage == "memory" {
		s := memory.NewStore()
		s.PutProject(models.Project{
			ID:        demoProjectID,
			UserID:    cfg.DevUserID,
			Title:     "Demo essay",
			Status:    "active",
			CreatedAt: time.Now().UTC(),
		})
		logger.Warn("using in-memory storage; data is lost on restart", "demo_project_id", demoProjectID)
		return &stores{
			profiles:    s.Profiles(),
			projects:    s.Projects(),
			messages:    s.Messages(),
			highlights:  s.Highlights(),
			toolServers: s.ToolServers(),
			usage:       s.Usage(),
			tx:          s.TxManager(),
			close:       func() {},
		}, nil
	}

	pool, err := postgres.CreateConnectionPool(ctx, cfg.SupabaseDBURL)
	if err != nil {
		return nil, err
	}
	logger.Info("database connected")

	tables := postgres.NewTableNames(cfg.TablePrefix)
	if cfg.Migrate {
		if err := postgres.Migrate(ctx, pool, tables); err != nil {
			pool.Close()
			return nil, err
		}
		logger.Info("schema applied", "table_prefix", cfg.TablePrefix)
	}

	repoConfig := &postgres.RepositoryConfig{
		Pool:   pool,
		Tables: tables,
		Logger: logger,
	}
	return &stores{
		profiles:    postgres.NewProfileRepository(repoConfig),
		projects:    postgres.NewProjectRepository(repoConfig),
		messages:    postgres.NewMessageRepository(repoConfig),
		highlights:  postgres.NewHighlightRepository(repoConfig),
		toolServers: postgres.NewToolServerRepository(repoConfig),
		usage:       postgres.NewUsageRepository(repoConfig),
		tx:          postgres.NewTransactionManager(repoConfig),
		close:       pool.Close,
	}, nil
}
