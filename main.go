package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"spacetraveling/pkg/config"
	"spacetraveling/pkg/handlers"
	"spacetraveling/pkg/logging"
	"spacetraveling/pkg/services"
)

func main() {
	if err := run(os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(args []string) error {
	command := "serve"
	if len(args) > 0 && !strings.HasPrefix(args[0], "-") {
		command, args = args[0], args[1:]
	}

	flags := flag.NewFlagSet(command, flag.ContinueOnError)
	skipBuild := flags.Bool("skip-build", false, "serve without building the site first")
	if err := flags.Parse(args); err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return err
	}

	provider, err := logging.NewProvider(logging.Config{Level: cfg.Log.Level, Format: cfg.Log.Format})
	if err != nil {
		return err
	}
	logger := provider.GetLogger("spacetraveling")

	renderer, err := services.NewRenderer(cfg.Site)
	if err != nil {
		return err
	}

	var repo *services.LocalRepository
	if cfg.ContentDir != "" {
		repo = services.NewLocalRepository(cfg.ContentDir)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch command {
	case "build":
		return build(ctx, cfg, renderer, repo, logger)
	case "serve":
		return serve(ctx, cfg, renderer, repo, logger, !*skipBuild)
	default:
		return fmt.Errorf("unknown command %q (want serve or build)", command)
	}
}

func build(ctx context.Context, cfg *config.Config, renderer *services.Renderer, repo *services.LocalRepository, logger logging.Logger) error {
	prismic := cfg.Prismic
	prismic.Endpoint = cfg.ContentEndpoint()

	if repo != nil && cfg.Prismic.Endpoint == "" {
		endpoint, shutdown, err := startContentAPI(cfg, repo, logger)
		if err != nil {
			return err
		}
		defer shutdown()
		prismic.Endpoint = endpoint
	}

	builder := services.NewBuilder(cfg.Build, cfg.Site, services.GetClient(prismic, nil), renderer, logger.With(map[string]any{"component": "build"}))
	result, err := builder.Build(ctx)
	if err != nil {
		return err
	}
	logger.Info("build.complete", "pages", result.PagesBuilt, "output", cfg.Build.OutputDir)
	return nil
}

// startContentAPI serves the local repository on a loopback port for the
// duration of a build.
func startContentAPI(cfg *config.Config, repo *services.LocalRepository, logger logging.Logger) (string, func(), error) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return "", nil, err
	}
	engine := gin.New()
	handlers.NewContentAPI(repo, cfg.Prismic.AccessToken, logger).RegisterRoutes(engine.Group(cfg.ContentAPIBase()))

	srv := &http.Server{Handler: engine, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("content_api.serve_failed", "error", err)
		}
	}()
	return "http://" + ln.Addr().String() + cfg.ContentAPIBase(), func() { _ = srv.Close() }, nil
}

func serve(ctx context.Context, cfg *config.Config, renderer *services.Renderer, repo *services.LocalRepository, logger logging.Logger, buildFirst bool) error {
	if cfg.Log.Level != "debug" && cfg.Log.Level != "trace" {
		gin.SetMode(gin.ReleaseMode)
	}

	if cfg.InsecureSessionSecret() {
		logger.Warn("config.default_session_secret", "hint", "set SESSION_SECRET; session cookies are signed with a public key")
	}

	prismic := cfg.Prismic
	prismic.Endpoint = cfg.ContentEndpoint()
	builder := services.NewBuilder(cfg.Build, cfg.Site, services.GetClient(prismic, nil), renderer, logger.With(map[string]any{"component": "build"}))

	router := handlers.NewRouter(handlers.Deps{
		Config:   cfg,
		Builder:  builder,
		Feeds:    services.NewFeedStore(cfg.FeedTTL),
		Renderer: renderer,
		Repo:     repo,
		Logger:   logger,
	})

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("http.listening", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	// The build runs against the live server so the local content API is reachable.
	if buildFirst {
		go func() {
			if _, err := builder.Build(ctx); err != nil {
				logger.Error("build.failed", "error", err)
			}
		}()
	}

	select {
	case err, ok := <-errCh:
		if ok {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("http.shutdown")
	return srv.Shutdown(shutdownCtx)
}
