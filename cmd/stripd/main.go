package main

import (
	"context"
	"log"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"

	"github.com/glimmerlab/strip/internal/config"
	"github.com/glimmerlab/strip/internal/host"
	"github.com/glimmerlab/strip/internal/logging"
	"github.com/glimmerlab/strip/internal/strip"
)

// scriptSource supplies the host's show/hide expressions for the
// story surface.
type scriptSource struct {
	show string
	hide string
}

func (s scriptSource) ShowStoryScript() string { return s.show }
func (s scriptSource) HideStoryScript() string { return s.hide }

func main() {
	_ = godotenv.Load()
	cfg := config.LoadOrDefault()

	logger, err := logging.New(logging.Config{
		Level:       cfg.Logging.Level,
		Development: cfg.Logging.Development,
	})
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	svc := strip.NewService(strip.Config{
		ChannelToken: cfg.Widget.Token,
		BundleInfo:   map[string]string{"v": cfg.Widget.BundleVersion},
		BaseURL:      cfg.Endpoints.BaseURL,
		StripPath:    cfg.Endpoints.StripPath,
		StoryPath:    cfg.Endpoints.StoryPath,
	}, strip.Options{
		Logger:      logger,
		PageTimeout: cfg.Script.PageTimeout,
	})
	svc.SetDataSource(scriptSource{
		show: "window.stripWidget.show();",
		hide: "window.stripWidget.hide();",
	})

	// First access begins loading both surfaces.
	svc.Strip()
	svc.Story()

	if !cfg.Logging.Development {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	host.NewBridge(svc, logger).Register(router)

	srv := &http.Server{
		Addr:    net.JoinHostPort(cfg.Server.Host, cfg.Server.Port),
		Handler: router,
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	errChan := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errChan <- err
		}
	}()
	logger.Info("strip demo host listening", zap.String("addr", srv.Addr))

	select {
	case <-sigChan:
		logger.Info("shutting down")
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(ctx); err != nil {
			logger.Warn("server shutdown", zap.Error(err))
		}
		svc.Close()
	case err := <-errChan:
		svc.Close()
		logger.Fatal("server error", zap.Error(err))
	}
}
