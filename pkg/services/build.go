package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"spacetraveling/pkg/config"
	"spacetraveling/pkg/logging"
	"spacetraveling/pkg/models"
)

const manifestFile = "paths.json"

// BuildResult reports what a build produced.
type BuildResult struct {
	PagesBuilt int
	Routes     []string
	Duration   time.Duration
}

// Manifest lists the generated article routes. Routes outside the list are
// generated on demand.
type Manifest struct {
	Paths    []string  `json:"paths"`
	Fallback bool      `json:"fallback"`
	BuiltAt  time.Time `json:"built_at"`
}

// Builder renders the site to static files and generates missing article
// routes on demand.
type Builder struct {
	cfg      config.BuildConfig
	site     config.SiteConfig
	api      ContentAPI
	renderer *Renderer
	logger   logging.Logger
	now      func() time.Time

	group singleflight.Group

	mu      sync.RWMutex
	initial *models.PostsPage
	routes  map[string]string
}

func NewBuilder(cfg config.BuildConfig, site config.SiteConfig, api ContentAPI, renderer *Renderer, logger logging.Logger) *Builder {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &Builder{
		cfg:      cfg,
		site:     site,
		api:      api,
		renderer: renderer,
		logger:   logger,
		now:      time.Now,
		routes:   map[string]string{},
	}
}

// Build cleans the output directory and renders the listing page and one
// page per known article. Any content API failure aborts the build.
func (b *Builder) Build(ctx context.Context) (*BuildResult, error) {
	start := b.now()
	out := b.cfg.OutputDir

	if err := os.RemoveAll(out); err != nil {
		return nil, fmt.Errorf("build: clean %s: %w", out, err)
	}
	if err := os.MkdirAll(out, 0o755); err != nil {
		return nil, fmt.Errorf("build: create %s: %w", out, err)
	}

	initial, err := LoadInitialPage(ctx, b.api, b.site.DocumentType, b.site.PageSize)
	if err != nil {
		return nil, fmt.Errorf("build: initial page: %w", err)
	}
	index, err := b.renderer.RenderBytes(HomeTemplate, b.renderer.Home(NewFeed(initial, nil).View(), ""))
	if err != nil {
		return nil, fmt.Errorf("build: render index: %w", err)
	}
	if err := writeFileAtomic(filepath.Join(out, "index.html"), index); err != nil {
		return nil, err
	}
	if err := copyAssets(out); err != nil {
		return nil, fmt.Errorf("build: assets: %w", err)
	}

	ids, err := EnumerateAllIdentifiers(ctx, b.api, b.site.DocumentType)
	if err != nil {
		return nil, fmt.Errorf("build: enumerate: %w", err)
	}

	var (
		mu     sync.Mutex
		routes = make(map[string]string, len(ids))
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(b.cfg.Workers, 1))
	for _, uid := range ids {
		g.Go(func() error {
			path, err := b.renderArticle(gctx, b.api, uid)
			if err != nil {
				return fmt.Errorf("build: article %s: %w", uid, err)
			}
			mu.Lock()
			routes[uid] = path
			mu.Unlock()
			b.logger.Debug("build.article", "uid", uid, "path", path)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	result := &BuildResult{PagesBuilt: len(routes) + 1}
	for uid := range routes {
		result.Routes = append(result.Routes, PostURL(uid))
	}
	sort.Strings(result.Routes)

	manifest, err := json.MarshalIndent(Manifest{Paths: result.Routes, Fallback: true, BuiltAt: b.now().UTC()}, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := writeFileAtomic(filepath.Join(out, manifestFile), manifest); err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.initial = initial
	b.routes = routes
	b.mu.Unlock()

	result.Duration = b.now().Sub(start)
	b.logger.Info("build.done", "pages", result.PagesBuilt, "duration", result.Duration.String())
	return result, nil
}

// InitialPage is the listing page captured by the last build, nil before any build.
func (b *Builder) InitialPage() *models.PostsPage {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.initial
}

// SetInitialPage records a listing page loaded outside a build.
func (b *Builder) SetInitialPage(page *models.PostsPage) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.initial = page
}

// Lookup returns the generated file for uid.
func (b *Builder) Lookup(uid string) (string, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	path, ok := b.routes[uid]
	return path, ok
}

// Generate renders the article route for uid if it was not produced at build
// time. Concurrent calls for the same uid share one render, which is detached
// from the cancellation of whichever caller started it.
func (b *Builder) Generate(ctx context.Context, uid string) (string, error) {
	if path, ok := b.Lookup(uid); ok {
		return path, nil
	}
	renderCtx := context.WithoutCancel(ctx)
	v, err, _ := b.group.Do(uid, func() (interface{}, error) {
		if path, ok := b.Lookup(uid); ok {
			return path, nil
		}
		path, err := b.renderArticle(renderCtx, b.api, uid)
		if err != nil {
			return "", err
		}
		b.mu.Lock()
		b.routes[uid] = path
		b.mu.Unlock()
		b.logger.Info("build.fallback", "uid", uid)
		return path, nil
	})
	if err != nil {
		return "", err
	}
	return v.(string), nil
}

// RenderLive renders an article without writing it, for preview requests.
func (b *Builder) RenderLive(ctx context.Context, api ContentAPI, uid string, preview bool) ([]byte, error) {
	detail, err := LoadArticle(ctx, api, b.site.DocumentType, uid)
	if err != nil {
		return nil, err
	}
	return b.renderer.RenderBytes(PostTemplate, b.renderer.Post(detail, preview))
}

func (b *Builder) renderArticle(ctx context.Context, api ContentAPI, uid string) (string, error) {
	path := b.articlePath(uid)
	if path == "" {
		return "", notFoundError(b.site.DocumentType, uid)
	}
	page, err := b.RenderLive(ctx, api, uid, false)
	if err != nil {
		return "", err
	}
	if err := writeFileAtomic(path, page); err != nil {
		return "", err
	}
	return path, nil
}

func (b *Builder) articlePath(uid string) string {
	if uid == "" || strings.HasPrefix(uid, ".") || strings.ContainsAny(uid, `/\`) {
		return ""
	}
	return SafeJoin(b.cfg.OutputDir, "post", filepath.Join(uid, "index.html"))
}

func copyAssets(out string) error {
	assets := StaticFS()
	return fs.WalkDir(assets, ".", func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() {
			return err
		}
		data, err := fs.ReadFile(assets, path)
		if err != nil {
			return err
		}
		return writeFileAtomic(filepath.Join(out, filepath.FromSlash(path)), data)
	})
}
