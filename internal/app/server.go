// internal/app/server.go
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"attendance-service/internal/config"
	"attendance-service/internal/db"
	adminHandler "attendance-service/internal/handlers/admin"
	cronHandler "attendance-service/internal/handlers/cron"
	sessionHandler "attendance-service/internal/handlers/session"
	wsHandler "attendance-service/internal/handlers/websocket"
	"attendance-service/internal/middleware"
	"attendance-service/internal/pkg/jwt"
	"attendance-service/internal/pkg/password"
	"attendance-service/internal/pkg/redisx"
	"attendance-service/internal/service/reconcile"
	"attendance-service/internal/service/report"
	sessionUsecase "attendance-service/internal/service/session"
	"attendance-service/internal/websocket"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

type Server struct {
	cfg    config.AppConfig
	engine *gin.Engine
	logger *zap.Logger

	httpServer *http.Server
	stores     *Stores
	redis      *redis.Client
	scheduler  *reconcile.Scheduler
	stopHub    context.CancelFunc
}

func NewServer(cfg config.AppConfig, logger *zap.Logger) *Server {
	if !cfg.IsDevelopment() {
		gin.SetMode(gin.ReleaseMode)
	}
	return &Server{cfg: cfg, engine: gin.New(), logger: logger}
}

// Build connects the backends and wires repositories, services and routes.
func (s *Server) Build(ctx context.Context) error {
	if err := s.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	policy, err := s.cfg.Policy()
	if err != nil {
		return err
	}

	// ----- Storage -----
	stores, err := OpenStores(ctx, s.cfg, s.logger)
	if err != nil {
		return err
	}
	s.stores = stores

	// ----- Redis -----
	redisClient, err := db.NewRedisClient(ctx, db.RedisConfig{
		Addr:     s.cfg.RedisAddr,
		Password: s.cfg.RedisPass,
		PoolSize: 10,
	})
	if err != nil {
		return err
	}
	s.redis = redisClient
	if redisClient == nil {
		s.logger.Warn("REDIS_ADDR not set, login rate limiting and job locks disabled")
	} else {
		s.logger.Info("connected to redis", zap.String("addr", s.cfg.RedisAddr))
	}

	// ----- JWT Manager -----
	jwtManager, err := s.loadJWT()
	if err != nil {
		return err
	}

	// ----- WebSocket Hub -----
	hub := websocket.NewHub(s.logger)
	hubCtx, stopHub := context.WithCancel(context.Background())
	s.stopHub = stopHub
	go hub.Run(hubCtx)

	// ----- Services (Usecases) -----
	opts := []sessionUsecase.Option{
		sessionUsecase.WithTokenIssuer(jwtManager.Generator),
		sessionUsecase.WithNotifier(hub),
	}
	if redisClient != nil {
		opts = append(opts, sessionUsecase.WithRateLimiter(redisx.NewRateLimiter(redisClient, s.cfg.LoginMaxAttempts)))
	}
	sessionService := sessionUsecase.NewSessionService(
		stores.Sessions,
		stores.Users,
		stores.Devices,
		stores.Locations,
		password.NewHasher(bcrypt.DefaultCost),
		policy,
		s.logger,
		opts...,
	)
	reportService := report.NewReportService(stores.Sessions, stores.Users, policy.Location, s.logger)
	s.scheduler = NewScheduler(s.cfg, policy, stores.Sessions, redisClient, hub, s.logger)
	if s.cfg.SchedulerEnabled {
		s.scheduler.Start()
	}

	hub.RegisterHandler(websocket.NewSessionStatusHandler(sessionService))

	// ----- Middlewares -----
	s.engine.Use(
		middleware.RecoveryMiddleware(s.logger),
		middleware.LoggingMiddleware(s.logger),
		middleware.CORSMiddleware(s.cfg.CORSOrigins),
	)

	// ----- Router -----
	SetupRouter(s.engine, &Handlers{
		SessionHandler: sessionHandler.NewSessionHandler(sessionService, s.logger),
		AdminHandler:   adminHandler.NewAdminHandler(reportService, sessionService, s.logger),
		CronHandler:    cronHandler.NewCronHandler(s.scheduler, s.logger),
		WSHandler: wsHandler.NewWebSocketHandler(hub,
			websocket.NewTokenAuthenticator(jwtManager.Verifier, sessionService),
			s.cfg.CORSOrigins, s.logger),
		AuthMiddleware: middleware.NewAuthMiddleware(jwtManager.Verifier, sessionService),
		CronMiddleware: middleware.CronAuth(s.cfg.CronSecret, s.cfg.CronBearerSecret),
	})

	s.httpServer = &http.Server{
		Addr:              s.cfg.HTTPAddr,
		Handler:           s.engine,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// loadJWT reads the RS256 key pair. In development a missing key file
// falls back to a throwaway pair.
func (s *Server) loadJWT() (*jwt.Manager, error) {
	m, err := jwt.LoadAndBuild(s.cfg.JWT)
	if err == nil {
		return m, nil
	}
	if s.cfg.IsDevelopment() && errors.Is(err, os.ErrNotExist) {
		s.logger.Warn("jwt keys not found, using an ephemeral key pair", zap.Error(err))
		return jwt.NewEphemeral(s.cfg.JWT)
	}
	return nil, fmt.Errorf("failed to load JWT manager: %w", err)
}

// Run serves HTTP until Shutdown is called.
func (s *Server) Run() error {
	if s.httpServer == nil {
		return errors.New("server not built")
	}
	s.logger.Info("server running", zap.String("addr", s.cfg.HTTPAddr))
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains HTTP, stops the scheduler and the hub, then closes the
// backends.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	if s.httpServer != nil {
		err = s.httpServer.Shutdown(ctx)
	}
	if s.scheduler != nil && s.cfg.SchedulerEnabled {
		s.scheduler.Stop()
	}
	if s.stopHub != nil {
		s.stopHub()
	}
	if s.redis != nil {
		_ = s.redis.Close()
	}
	s.stores.Close()
	return err
}
