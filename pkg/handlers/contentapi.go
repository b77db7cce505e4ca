package handlers

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"spacetraveling/pkg/config"
	"spacetraveling/pkg/logging"
	"spacetraveling/pkg/models"
	"spacetraveling/pkg/services"
)

// ContentAPI exposes a LocalRepository over the content API wire format.
type ContentAPI struct {
	repo   *services.LocalRepository
	token  string
	secure bool
	logger logging.Logger
}

func NewContentAPI(repo *services.LocalRepository, token string, logger logging.Logger) *ContentAPI {
	if logger == nil {
		logger = logging.NoOp()
	}
	return &ContentAPI{repo: repo, token: token, logger: logger}
}

// SecureCookies marks the preview cookie Secure even on plain HTTP requests,
// for deployments behind a TLS-terminating proxy.
func (h *ContentAPI) SecureCookies(on bool) *ContentAPI {
	h.secure = on
	return h
}

func (h *ContentAPI) RegisterRoutes(rg *gin.RouterGroup) {
	rg.Use(h.requireToken)
	rg.GET("", h.info)
	rg.GET("/documents/search", h.search)
}

// RegisterPreview mounts the routes that enter and leave preview mode.
func (h *ContentAPI) RegisterPreview(r gin.IRouter) {
	r.GET("/_content/preview", h.preview)
}

func (h *ContentAPI) requireToken(c *gin.Context) {
	if h.token == "" {
		c.Next()
		return
	}
	if c.GetHeader("Authorization") != "Bearer "+h.token {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid access token"})
		return
	}
	c.Next()
}

func (h *ContentAPI) info(c *gin.Context) {
	ref, err := h.repo.MasterRef()
	if err != nil {
		h.logger.Error("content.load_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "content unavailable"})
		return
	}
	c.JSON(http.StatusOK, models.APIInfo{Refs: []models.Ref{
		{ID: "master", Ref: ref, Label: "Master", IsMasterRef: true},
	}})
}

func (h *ContentAPI) search(c *gin.Context) {
	ref := c.Query("ref")
	if ref == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "ref parameter is missing"})
		return
	}

	var fetch []string
	if raw := c.Query("fetch"); raw != "" {
		fetch = strings.Split(raw, ",")
	}

	result, err := h.repo.Search(services.SearchQuery{
		Ref:      ref,
		Q:        c.Query("q"),
		Fetch:    fetch,
		Page:     parseInt(c.Query("page"), 1),
		PageSize: parseInt(c.Query("pageSize"), 0),
	})
	if err != nil {
		if errors.Is(err, services.ErrBadQuery) {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
		h.logger.Error("content.search_failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "search failed"})
		return
	}

	resp := models.QueryResponse{
		Page:             result.Page,
		ResultsPerPage:   result.PageSize,
		ResultsSize:      len(result.Documents),
		TotalResultsSize: result.Total,
		TotalPages:       result.TotalPages,
		Results:          result.Documents,
	}
	if result.Page < result.TotalPages {
		next := pageURL(c, result.Page+1)
		resp.NextPage = &next
	}
	if result.Page > 1 && result.Page-1 <= result.TotalPages {
		prev := pageURL(c, result.Page-1)
		resp.PrevPage = &prev
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ContentAPI) preview(c *gin.Context) {
	secure := h.secure || c.Request.TLS != nil
	if c.Query("exit") != "" {
		c.SetCookie(config.PreviewCookie, "", -1, "/", "", secure, true)
		c.Redirect(http.StatusFound, "/")
		return
	}
	ref, err := h.repo.PreviewRef()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "content unavailable"})
		return
	}
	c.SetCookie(config.PreviewCookie, ref, int((30 * time.Minute).Seconds()), "/", "", secure, true)
	c.Redirect(http.StatusFound, "/")
}

// pageURL rebuilds the current request URL as an absolute URL for page n.
func pageURL(c *gin.Context, n int) string {
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	q := c.Request.URL.Query()
	q.Set("page", strconv.Itoa(n))
	u := url.URL{Scheme: scheme, Host: c.Request.Host, Path: c.Request.URL.Path, RawQuery: q.Encode()}
	return u.String()
}

func parseInt(s string, def int) int {
	if strings.TrimSpace(s) == "" {
		return def
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return n
}
