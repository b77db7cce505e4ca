package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"

	"spacetraveling/pkg/config"
	"spacetraveling/pkg/logging"
	"spacetraveling/pkg/models"
	"spacetraveling/pkg/services"
)

const feedSessionKey = "feed"

const (
	msgLoadFailed     = "Não foi possível carregar os posts. Tente novamente."
	msgLoadMoreFailed = "Não foi possível carregar mais posts. Tente novamente."
	msgLoadInFlight   = "Carregando mais posts..."
)

// Blog serves the listing and article routes.
type Blog struct {
	cfg      *config.Config
	builder  *services.Builder
	feeds    *services.FeedStore
	renderer *services.Renderer
	logger   logging.Logger
}

func NewBlog(cfg *config.Config, builder *services.Builder, feeds *services.FeedStore, renderer *services.Renderer, logger logging.Logger) *Blog {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &Blog{cfg: cfg, builder: builder, feeds: feeds, renderer: renderer, logger: logger}
}

func (h *Blog) RegisterRoutes(r gin.IRouter) {
	r.GET("/", h.Home)
	r.POST("/posts/more", h.LoadMore)
	r.GET("/api/posts/more", h.LoadMoreJSON)
	r.GET("/post/:slug", h.Post)
}

func (h *Blog) client(c *gin.Context) *services.Client {
	prismic := h.cfg.Prismic
	prismic.Endpoint = h.cfg.ContentEndpoint()
	return services.GetClient(prismic, c.Request)
}

// Home starts a fresh feed for the session from the build-time listing page.
func (h *Blog) Home(c *gin.Context) {
	session := sessions.Default(c)
	if old, ok := session.Get(feedSessionKey).(string); ok {
		h.feeds.Delete(old)
	}

	client := h.client(c)
	page := h.builder.InitialPage()
	if page == nil || client.Preview() {
		loaded, err := services.LoadInitialPage(c.Request.Context(), client, h.cfg.Site.DocumentType, h.cfg.Site.PageSize)
		if err != nil {
			h.logger.Error("listing.initial_failed", "error", err)
			c.HTML(http.StatusBadGateway, services.HomeTemplate, h.renderer.Home(services.FeedView{}, msgLoadFailed))
			return
		}
		if !client.Preview() {
			h.builder.SetInitialPage(loaded)
		}
		page = loaded
	}

	feed := services.NewFeed(page, client.FetchCursor)
	session.Set(feedSessionKey, h.feeds.Put(feed))
	if err := session.Save(); err != nil {
		h.logger.Warn("session.save_failed", "error", err)
	}

	c.HTML(http.StatusOK, services.HomeTemplate, h.renderer.Home(feed.View(), ""))
}

// LoadMore appends the next page to the session feed and re-renders the listing.
func (h *Blog) LoadMore(c *gin.Context) {
	feed, ok := h.sessionFeed(c)
	if !ok {
		c.Redirect(http.StatusSeeOther, "/")
		return
	}

	_, err := feed.LoadNextPage(c.Request.Context())
	status, msg := h.loadMoreOutcome(err)
	c.HTML(status, services.HomeTemplate, h.renderer.Home(feed.View(), msg))
}

// LoadMoreJSON is LoadMore for script clients: it returns only the appended page.
func (h *Blog) LoadMoreJSON(c *gin.Context) {
	feed, ok := h.sessionFeed(c)
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no listing in this session"})
		return
	}

	results, err := feed.LoadNextPage(c.Request.Context())
	status, msg := h.loadMoreOutcome(err)
	if msg != "" {
		c.JSON(status, gin.H{"error": msg})
		return
	}

	view := feed.View()
	var next *string
	if view.HasMore {
		s := string(view.Cursor)
		next = &s
	}
	if results == nil {
		results = []models.ArticleSummary{}
	}
	c.JSON(status, gin.H{"results": results, "next_page": next})
}

func (h *Blog) loadMoreOutcome(err error) (int, string) {
	switch {
	case err == nil, errors.Is(err, services.ErrNoMorePages):
		return http.StatusOK, ""
	case errors.Is(err, services.ErrPageInFlight):
		return http.StatusConflict, msgLoadInFlight
	default:
		h.logger.Error("listing.next_page_failed", "error", err)
		return http.StatusBadGateway, msgLoadMoreFailed
	}
}

func (h *Blog) sessionFeed(c *gin.Context) (*services.Feed, bool) {
	id, ok := sessions.Default(c).Get(feedSessionKey).(string)
	if !ok {
		return nil, false
	}
	return h.feeds.Get(id)
}

// Post serves the generated article page, generating it on first request
// when it was not part of the build. Preview requests always render live.
func (h *Blog) Post(c *gin.Context) {
	uid := c.Param("slug")
	ctx := c.Request.Context()

	client := h.client(c)
	if client.Preview() {
		page, err := h.builder.RenderLive(ctx, client, uid, true)
		if err != nil {
			h.fallback(c, uid, err)
			return
		}
		c.Header("Cache-Control", "no-store")
		c.Data(http.StatusOK, "text/html; charset=utf-8", page)
		return
	}

	path, err := h.builder.Generate(ctx, uid)
	if err != nil {
		h.fallback(c, uid, err)
		return
	}
	c.File(path)
}

// fallback renders the loading placeholder for routes that could not be generated.
func (h *Blog) fallback(c *gin.Context, uid string, err error) {
	status := http.StatusBadGateway
	if services.IsNotFound(err) {
		status = http.StatusNotFound
		h.logger.Debug("article.not_found", "uid", uid)
	} else {
		h.logger.Error("article.render_failed", "uid", uid, "error", err)
	}
	c.HTML(status, services.LoadingTemplate, h.renderer.Loading())
}
