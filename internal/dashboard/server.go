// Package dashboard serves the bot's HTTP surface: health, lead stats,
// a live lead stream, and the platform webhooks.
package dashboard

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/zulandar/leadbot/internal/telegraph"
	"gorm.io/gorm"
)

// StartOpts holds configuration for the dashboard server.
type StartOpts struct {
	DB       *gorm.DB // optional; lead endpoints answer 503 without it
	Port     int
	Platform string
	Webhooks []telegraph.WebhookProvider
	Out      io.Writer
}

// NewRouter builds the gin engine with every route registered.
func NewRouter(opts StartOpts) (*gin.Engine, error) {
	router := gin.New()
	router.Use(gin.Recovery())

	seen := map[string]bool{}
	for _, wh := range opts.Webhooks {
		path := wh.WebhookPath()
		if path == "" || path[0] != '/' {
			return nil, fmt.Errorf("dashboard: invalid webhook path %q", path)
		}
		if seen[path] {
			return nil, fmt.Errorf("dashboard: duplicate webhook path %q", path)
		}
		seen[path] = true
		router.Any(path, gin.WrapH(wh.WebhookHandler()))
	}

	registerRoutes(router, opts.DB, opts.Platform)
	return router, nil
}

// Start launches the dashboard HTTP server. It blocks until ctx is cancelled,
// then shuts down gracefully.
func Start(ctx context.Context, opts StartOpts) error {
	if opts.Port <= 0 {
		opts.Port = 8080
	}

	gin.SetMode(gin.ReleaseMode)
	router, err := NewRouter(opts)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf(":%d", opts.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Graceful shutdown on context cancellation.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()

	if opts.Out != nil {
		fmt.Fprintf(opts.Out, "Dashboard running at http://localhost:%d\n", opts.Port)
		for _, wh := range opts.Webhooks {
			fmt.Fprintf(opts.Out, "dashboard: webhook mounted at %s\n", wh.WebhookPath())
		}
	}

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("dashboard: %w", err)
	}
	return nil
}
