package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacetraveling/pkg/config"
	"spacetraveling/pkg/models"
)

const (
	loadMoreLabel = "Carregar mais posts"
	headerLink    = `<a href="/"><img src="/images/logo.svg" alt="logo"`
)

func TestHomeAndLoadMore(t *testing.T) {
	site := newTestSite(t, map[string]string{"a.md": postA, "b.md": postB})

	res, body := site.do(http.MethodGet, "/")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Post A")
	assert.Contains(t, body, "25 mar 2021")
	assert.Contains(t, body, "Ada")
	assert.NotContains(t, body, "Post B")
	assert.Contains(t, body, loadMoreLabel)
	assert.Contains(t, body, headerLink)
	assert.Equal(t, 1, site.feeds.Len())

	res, body = site.do(http.MethodPost, "/posts/more")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.Contains(t, body, "Post B")
	assert.Less(t, strings.Index(body, "Post A"), strings.Index(body, "Post B"))
	assert.Contains(t, body, "20 mar 2021")
	assert.NotContains(t, body, loadMoreLabel)

	// the listing is exhausted; another trigger changes nothing.
	res, again := site.do(http.MethodPost, "/posts/more")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, strings.Count(body, "Post B"), strings.Count(again, "Post B"))
}

func TestHomeStartsFreshFeed(t *testing.T) {
	site := newTestSite(t, map[string]string{"a.md": postA, "b.md": postB})

	site.do(http.MethodGet, "/")
	site.do(http.MethodPost, "/posts/more")

	_, body := site.do(http.MethodGet, "/")
	assert.NotContains(t, body, "Post B")
	assert.Contains(t, body, loadMoreLabel)
	assert.Equal(t, 1, site.feeds.Len(), "the previous feed of the session is released")
}

func TestLoadMoreWithoutSession(t *testing.T) {
	site := newTestSite(t, map[string]string{"a.md": postA, "b.md": postB})
	site.client = &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
		return http.ErrUseLastResponse
	}}

	res, _ := site.do(http.MethodPost, "/posts/more")
	assert.Equal(t, http.StatusSeeOther, res.StatusCode)
	assert.Equal(t, "/", res.Header.Get("Location"))

	res, _ = site.do(http.MethodGet, "/api/posts/more")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestLoadMoreFailureKeepsFeed(t *testing.T) {
	site := newTestSite(t, map[string]string{"a.md": postA, "b.md": postB})
	site.do(http.MethodGet, "/")

	writeFile(t, site.dir, "broken.md", "---\nfirst_publication_date: someday\n---\n")
	site.repo.Invalidate()

	res, body := site.do(http.MethodPost, "/posts/more")
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	assert.Contains(t, body, "Post A")
	assert.NotContains(t, body, "Post B")
	assert.Contains(t, body, "Tente novamente")
	assert.Contains(t, body, loadMoreLabel)

	require.NoError(t, os.Remove(filepath.Join(site.dir, "broken.md")))
	site.repo.Invalidate()

	res, body = site.do(http.MethodPost, "/posts/more")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Post B")
	assert.NotContains(t, body, "Tente novamente")
}

func TestLoadMoreJSON(t *testing.T) {
	site := newTestSite(t, map[string]string{"a.md": postA, "b.md": postB, "c.md": postC})
	site.do(http.MethodGet, "/")

	var payload struct {
		Results  []models.ArticleSummary `json:"results"`
		NextPage *string                 `json:"next_page"`
	}
	res, body := site.do(http.MethodGet, "/api/posts/more")
	require.Equal(t, http.StatusOK, res.StatusCode)
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	require.Len(t, payload.Results, 1)
	assert.Equal(t, models.ArticleSummary{
		UID:                  "b",
		FirstPublicationDate: "2021-03-20T00:00:00+0000",
		Title:                "Post B",
		Subtitle:             "Second",
		Author:               "Bob",
	}, payload.Results[0])
	require.NotNil(t, payload.NextPage)
	assert.Contains(t, *payload.NextPage, "page=3")

	_, body = site.do(http.MethodGet, "/api/posts/more")
	payload.NextPage = nil
	require.NoError(t, json.Unmarshal([]byte(body), &payload))
	assert.Equal(t, "c", payload.Results[0].UID)
	assert.Nil(t, payload.NextPage)
}

func TestHomeWithoutContentSource(t *testing.T) {
	site := newTestSite(t, nil, func(cfg *config.Config) {
		cfg.ContentDir = ""
	})

	res, body := site.do(http.MethodGet, "/")
	assert.Equal(t, http.StatusBadGateway, res.StatusCode)
	assert.Contains(t, body, "Tente novamente")
	assert.NotContains(t, body, loadMoreLabel)
}

func TestArticleRoutes(t *testing.T) {
	site := newTestSite(t, map[string]string{"a.md": postA, "b.md": postB, "c.md": postC})

	result, err := site.builder.Build(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"/post/a", "/post/b", "/post/c"}, result.Routes)

	for _, uid := range []string{"a", "b", "c"} {
		_, ok := site.builder.Lookup(uid)
		assert.True(t, ok, uid)
	}

	res, body := site.do(http.MethodGet, "/post/a")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "<h1>Post A</h1>")
	assert.Contains(t, body, "1 min")
	assert.Contains(t, body, "<p>hello world</p>")

	res, body = site.do(http.MethodGet, "/post/d")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
	assert.Contains(t, body, "Carregando...")
	assert.Contains(t, body, headerLink)

	// a document published after the build is generated on first request.
	writeFile(t, site.dir, "d.md", "---\ntitle: Post D\nfirst_publication_date: 2021-05-01T00:00:00Z\n---\nlate\n")
	site.repo.Invalidate()

	res, body = site.do(http.MethodGet, "/post/d")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "<h1>Post D</h1>")
	_, ok := site.builder.Lookup("d")
	assert.True(t, ok)
}

func TestHomeUsesBuildListing(t *testing.T) {
	site := newTestSite(t, map[string]string{"a.md": postA, "b.md": postB})
	_, err := site.builder.Build(context.Background())
	require.NoError(t, err)

	// content changes after the build do not reach the prebuilt listing.
	writeFile(t, site.dir, "new.md", "---\ntitle: Post New\nfirst_publication_date: 2022-01-01T00:00:00Z\n---\nnew\n")
	site.repo.Invalidate()

	_, body := site.do(http.MethodGet, "/")
	assert.Contains(t, body, "Post A")
	assert.NotContains(t, body, "Post New")
}

func TestPreviewMode(t *testing.T) {
	site := newTestSite(t, map[string]string{"a.md": postA, "draft.md": draft})

	res, _ := site.do(http.MethodGet, "/post/draft")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res, body := site.do(http.MethodGet, "/_content/preview")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Secret Draft", "the preview listing includes drafts")

	res, body = site.do(http.MethodGet, "/post/draft")
	require.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "Secret Draft")
	assert.Equal(t, "no-store", res.Header.Get("Cache-Control"))
	assert.NoFileExists(t, filepath.Join(site.cfg.Build.OutputDir, "post", "draft", "index.html"))

	site.do(http.MethodGet, "/_content/preview?exit=1")
	res, _ = site.do(http.MethodGet, "/post/draft")
	assert.Equal(t, http.StatusNotFound, res.StatusCode)
}

func TestHealthAndAssets(t *testing.T) {
	site := newTestSite(t, map[string]string{"a.md": postA})

	res, body := site.do(http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.JSONEq(t, `{"status":"ok","feeds":0}`, body)

	res, body = site.do(http.MethodGet, "/images/logo.svg")
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Contains(t, body, "<svg")
}
