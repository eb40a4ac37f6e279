package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	ginzap "github.com/gin-contrib/zap"
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/telekom/catfact-mailer/pkg/config"
	"github.com/telekom/catfact-mailer/pkg/metrics"
	"github.com/telekom/catfact-mailer/pkg/ratelimit"
	"github.com/telekom/catfact-mailer/pkg/system"
	"github.com/telekom/catfact-mailer/pkg/version"
)

const (
	WelcomeMessage = "Welcome to the Cat Facts API! Try GET /catfact."
	HealthMessage  = "It works!"

	shutdownTimeout = 10 * time.Second
)

type APIController interface {
	BasePath() string
	Register(rg *gin.RouterGroup) error
	Handlers() []gin.HandlerFunc
}

type Server struct {
	gin              *gin.Engine
	config           config.Config
	log              *zap.SugaredLogger
	writeRateLimiter *ratelimit.IPRateLimiter
}

func NewServer(log *zap.Logger, cfg config.Config, debug bool) *Server {
	if !debug {
		gin.SetMode(gin.ReleaseMode)
	}
	slog := log.Sugar().Named("api")

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.Server.TrustedProxies); err != nil {
		slog.Warnw("Invalid trusted proxies, trusting none", "trustedProxies", cfg.Server.TrustedProxies, "error", err)
		_ = engine.SetTrustedProxies(nil)
	}
	engine.Use(
		ginzap.Ginzap(log, time.RFC3339, true),
		ginzap.RecoveryWithZap(log, true),
		system.RequestLogger(slog),
	)

	if debug {
		engine.Use(
			cors.New(cors.Config{
				AllowOrigins: []string{"http://localhost:5173", "http://127.0.0.1:8000"},
				AllowMethods: []string{"GET", "POST", "OPTIONS"},
				AllowHeaders: []string{"Origin", "Content-Type", system.RequestIDHeader},
				MaxAge:       12 * time.Hour,
			}),
		)
	}

	s := &Server{
		gin:              engine,
		config:           cfg,
		log:              slog,
		writeRateLimiter: ratelimit.New(ratelimit.ConfigFrom(cfg.RateLimit)),
	}

	engine.GET("/", s.welcome)
	engine.GET("/health", s.health)
	engine.GET("/version", s.getVersion)
	engine.GET("/metrics", gin.WrapH(metrics.MetricsHandler()))

	return s
}

// WriteRateLimit is the per-IP limiter middleware for endpoints that write to
// the store.
func (s *Server) WriteRateLimit() gin.HandlerFunc {
	return s.writeRateLimiter.Middleware()
}

func (s *Server) RegisterAll(controllers []APIController) error {
	r := s.gin.Group("")
	for _, c := range controllers {
		if err := c.Register(r.Group(c.BasePath(), c.Handlers()...)); err != nil {
			return err
		}
	}
	return nil
}

// Handler returns the gin engine, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.gin
}

// Listen serves until ctx is cancelled, then shuts down gracefully. An error
// from the listener (e.g. the port is taken) is returned as is.
func (s *Server) Listen(ctx context.Context) error {
	addr := s.config.Server.ListenAddress
	if addr == "" {
		addr = config.DefaultListenAddress
	}
	timeouts := s.config.Server.Timeouts
	srv := &http.Server{
		Addr:              addr,
		Handler:           otelhttp.NewHandler(s.gin, "catfacts.http"),
		ReadTimeout:       timeouts.GetReadTimeout(),
		ReadHeaderTimeout: timeouts.GetReadHeaderTimeout(),
		WriteTimeout:      timeouts.GetWriteTimeout(),
		IdleTimeout:       timeouts.GetIdleTimeout(),
	}

	errCh := make(chan error, 1)
	go func() {
		s.log.Infow("HTTP server listening", "address", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.log.Info("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	<-errCh
	return nil
}

// Close stops background goroutines owned by the server.
func (s *Server) Close() {
	if s.writeRateLimiter != nil {
		s.writeRateLimiter.Stop()
	}
}

func (s *Server) welcome(c *gin.Context) {
	c.String(http.StatusOK, WelcomeMessage)
}

func (s *Server) health(c *gin.Context) {
	c.String(http.StatusOK, HealthMessage)
}

func (s *Server) getVersion(c *gin.Context) {
	c.JSON(http.StatusOK, version.GetBuildInfo())
}
