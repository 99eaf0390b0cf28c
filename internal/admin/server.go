// Package admin serves the proxy's health, metrics and pair listing over HTTP.
package admin

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/danmuck/backwire/internal/bridge"
	"github.com/danmuck/backwire/internal/observability"
	"github.com/danmuck/backwire/internal/protocol"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

const Version = "0.1.0"

// Connections reports live proxied connections.
type Connections interface {
	Active() int64
}

type PairView struct {
	Name         string `json:"name"`
	From         string `json:"from"`
	To           string `json:"to"`
	FromProtocol int32  `json:"from_protocol"`
	ToProtocol   int32  `json:"to_protocol"`
	Clientbound  int    `json:"clientbound"`
	Serverbound  int    `json:"serverbound"`
}

type Options struct {
	ID          string
	CorsOrigins []string
	// Token guards every route but /healthz when set.
	Token string
}

type Server struct {
	ID      string
	Started time.Time

	engine *bridge.Engine
	conns  Connections
	router *gin.Engine
}

// New builds the admin router with recovery, request logging, metrics and
// CORS middleware. conns may be nil.
func New(opts Options, engine *bridge.Engine, conns Connections) *Server {
	id := opts.ID
	observability.RegisterMetrics()
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(observability.RequestLogger(observability.Component("admin")))
	r.Use(observability.RequestMetricsMiddleware(id))
	r.Use(cors.New(cors.Config{
		AllowOrigins: normalizeOrigins(opts.CorsOrigins),
		AllowMethods: []string{"GET"},
		AllowHeaders: []string{"Origin", "Content-Type", "Authorization"},
		MaxAge:       12 * time.Hour,
	}))
	_ = r.SetTrustedProxies([]string{"127.0.0.1", "::1"})

	s := &Server{ID: id, Started: time.Now(), engine: engine, conns: conns, router: r}
	var guard []gin.HandlerFunc
	if opts.Token != "" {
		guard = append(guard, RequireToken(StaticToken{Token: opts.Token}))
	}
	s.RegisterRoutes(guard...)
	return s
}

func (s *Server) Router() *gin.Engine { return s.router }

// RegisterRoutes mounts /healthz openly and the rest behind guard.
func (s *Server) RegisterRoutes(guard ...gin.HandlerFunc) {
	s.router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":  "ok",
			"uptime":  time.Since(s.Started).String(),
			"node":    s.ID,
			"version": Version,
		})
	})

	routes := s.router.Group("/", guard...)

	routes.GET("/ready", func(c *gin.Context) {
		var active int64
		if s.conns != nil {
			active = s.conns.Active()
		}
		c.JSON(http.StatusOK, gin.H{
			"ready":       s.engine != nil,
			"connections": active,
			"strict":      s.engine != nil && s.engine.Strict(),
		})
	})

	routes.GET("/metrics", gin.WrapH(promhttp.Handler()))

	routes.GET("/pairs", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"pairs": s.Pairs()})
	})
}

// Pairs lists the engine's version pairs, newest first.
func (s *Server) Pairs() []PairView {
	if s.engine == nil {
		return []PairView{}
	}
	pairs := s.engine.Pairs()
	out := make([]PairView, 0, len(pairs))
	for _, p := range pairs {
		view := PairView{
			Name:         p.Name(),
			From:         p.From().Original(),
			To:           p.To().Original(),
			FromProtocol: p.FromProtocol(),
			ToProtocol:   p.ToProtocol(),
		}
		for _, d := range p.Registry().Descriptors() {
			if d.Direction == protocol.Clientbound {
				view.Clientbound++
			} else {
				view.Serverbound++
			}
		}
		out = append(out, view)
	}
	return out
}

// Serve runs the router on addr until ctx is done.
func (s *Server) Serve(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", strings.TrimSpace(addr))
	if err != nil {
		return err
	}
	srv := &http.Server{Handler: s.router, ReadHeaderTimeout: 5 * time.Second}
	log.Info().Str("addr", ln.Addr().String()).Msg("admin.Serve listening")

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func normalizeOrigins(origins []string) []string {
	out := make([]string, 0, len(origins))
	for _, o := range origins {
		if v := strings.TrimSpace(o); v != "" {
			out = append(out, v)
		}
	}
	if len(out) == 0 {
		return []string{"http://localhost:3000"}
	}
	return out
}
