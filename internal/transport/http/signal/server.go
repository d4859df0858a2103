// Package signalhttp serves the inbound alert webhook and a small status API.
package signalhttp

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"signalbot/internal/logger"

	"github.com/gin-gonic/gin"
)

type Server struct {
	addr   string
	router *gin.Engine
	access *AccessList
}

type ServerConfig struct {
	Addr    string
	Router  *Router
	Access  *AccessList
	Metrics http.Handler
	// TrustedProxies may set X-Real-IP. Nil trusts no peer.
	TrustedProxies []string
}

func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Router == nil || cfg.Router.Submitter == nil {
		return nil, errors.New("signal http server requires a submitter")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.RemoteIPHeaders = []string{"X-Real-IP"}
	if err := router.SetTrustedProxies(cfg.TrustedProxies); err != nil {
		return nil, fmt.Errorf("signal http trusted proxies: %w", err)
	}
	router.Use(gin.Recovery(), requestLogger())

	router.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	if cfg.Metrics != nil {
		router.GET("/metrics", cfg.Access.guard(gin.WrapH(cfg.Metrics))...)
	}
	cfg.Router.Register(router, cfg.Access)

	return &Server{addr: cfg.Addr, router: router, access: cfg.Access}, nil
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery
		client := requestIP(c)
		c.Next()
		dur := time.Since(start)
		status := c.Writer.Status()
		fullPath := path
		if query != "" {
			fullPath = path + "?" + query
		}
		logger.Debugf("HTTP %s %s status=%d ip=%s dur=%s", method, fullPath, status, client, dur)
	}
}

func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.addr
}

func (s *Server) Handler() http.Handler { return s.router }

func (s *Server) Access() *AccessList { return s.access }

// Start serves until ctx is cancelled or the listener fails.
func (s *Server) Start(ctx context.Context) error {
	if s == nil {
		return nil
	}
	srv := &http.Server{Addr: s.addr, Handler: s.router, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()
	logger.Infof("signal http listening on %s", s.addr)

	select {
	case <-ctx.Done():
		shCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shCtx)
		return nil
	case err := <-errCh:
		return err
	}
}
