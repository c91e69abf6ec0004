package gateway

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog/log"

	"github.com/danmuck/gemctl/internal/auth"
	"github.com/danmuck/gemctl/internal/navigator"
	"github.com/danmuck/gemctl/internal/observability"
)

const version = "0.1.0"

type Options struct {
	Name        string
	Addr        string
	CorsOrigins []string
	Metrics     bool
	// Token, when set, is required as a bearer token on command routes.
	Token string
}

type Server struct {
	opts     Options
	nav      *navigator.Controller
	auth     auth.Validator
	router   *gin.Engine
	appeared time.Time
}

// New builds the router with logging, metrics and CORS middleware and
// registers every route.
func New(nav *navigator.Controller, opts Options) *Server {
	if opts.Name == "" {
		opts.Name = "gemctl"
	}
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(log.Logger))
	r.Use(observability.RequestMetricsMiddleware(opts.Name))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CorsOrigins),
		AllowMethods: []string{"GET", "POST"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{
		opts:     opts,
		nav:      nav,
		auth:     auth.ForToken(opts.Token),
		router:   r,
		appeared: time.Now(),
	}
	s.registerRoutes()
	return s
}

func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		log.Info().Msgf("gateway.Serve name=%q addr=%q", s.opts.Name, s.opts.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("gateway.Shutdown failed")
		return err
	}
	log.Info().Msgf("gateway.Stopped name=%q", s.opts.Name)
	return nil
}

// requireToken rejects requests whose bearer token does not validate.
func (s *Server) requireToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		token, _ := auth.BearerToken(c.GetHeader("Authorization"))
		if err := s.auth.Validate(token); err != nil {
			log.Warn().Msgf("gateway.Auth path=%q ip=%q denied", c.FullPath(), c.ClientIP())
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
			return
		}
		c.Next()
	}
}

func normalizeOrigins(origins []string) []string {
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}
