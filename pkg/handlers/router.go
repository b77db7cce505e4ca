package handlers

import (
	"net/http"
	"time"

	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"

	"spacetraveling/pkg/config"
	"spacetraveling/pkg/logging"
	"spacetraveling/pkg/services"
)

// Deps are the collaborators the router wires together.
type Deps struct {
	Config   *config.Config
	Builder  *services.Builder
	Feeds    *services.FeedStore
	Renderer *services.Renderer
	Repo     *services.LocalRepository
	Logger   logging.Logger
}

func NewRouter(d Deps) *gin.Engine {
	logger := d.Logger
	if logger == nil {
		logger = logging.NoOp()
	}

	r := gin.New()
	r.Use(gin.Recovery(), RequestLogger(logger))

	store := cookie.NewStore([]byte(d.Config.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		MaxAge:   int(d.Config.FeedTTL.Seconds()),
		Secure:   d.Config.SecureCookies(),
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
	r.Use(sessions.Sessions(config.SessionName, store))

	r.SetHTMLTemplate(d.Renderer.Template())
	r.StaticFileFS("/images/logo.svg", "images/logo.svg", http.FS(services.StaticFS()))

	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok", "feeds": d.Feeds.Len()})
	})

	NewBlog(d.Config, d.Builder, d.Feeds, d.Renderer, logger.With(map[string]any{"component": "blog"})).RegisterRoutes(r)

	if d.Repo != nil {
		api := NewContentAPI(d.Repo, d.Config.Prismic.AccessToken, logger.With(map[string]any{"component": "content"})).
			SecureCookies(d.Config.SecureCookies())
		api.RegisterRoutes(r.Group(d.Config.ContentAPIBase()))
		api.RegisterPreview(r)
	}
	return r
}

// RequestLogger logs one line per request.
func RequestLogger(logger logging.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		logger.Info("http.request",
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"status", c.Writer.Status(),
			"latency", time.Since(start).String(),
		)
	}
}
