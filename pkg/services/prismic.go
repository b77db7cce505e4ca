package services

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/oauth2"

	"spacetraveling/pkg/config"
	"spacetraveling/pkg/models"
)

// ContentAPI is what the pages need from the content repository.
type ContentAPI interface {
	Query(ctx context.Context, predicates []string, opts QueryOptions) (*models.QueryResponse, error)
	GetByUID(ctx context.Context, docType, uid string) (*models.Document, error)
	FetchCursor(ctx context.Context, cursor models.Cursor) (*models.QueryResponse, error)
}

// QueryOptions narrows a search.
type QueryOptions struct {
	Fetch     []string
	PageSize  int
	Page      int
	Orderings string
}

// Client talks to a Prismic-compatible content API.
type Client struct {
	endpoint string
	host     string
	http     *http.Client
	authed   *http.Client
	preview  string

	mu        sync.Mutex
	masterRef string
}

// GetClient builds a new client for every call. When req carries a preview
// cookie, the client serves draft content through that preview ref.
func GetClient(cfg config.PrismicConfig, req *http.Request) *Client {
	hc := &http.Client{Timeout: cfg.Timeout}
	authed := hc
	if cfg.AccessToken != "" {
		authed = &http.Client{
			Timeout: cfg.Timeout,
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken}),
			},
		}
	}

	endpoint := strings.TrimRight(cfg.Endpoint, "/")
	return &Client{
		endpoint: endpoint,
		host:     hostOf(endpoint),
		http:     hc,
		authed:   authed,
		preview:  previewRef(req, endpoint),
	}
}

// clientFor returns the token-carrying client only for the configured host.
func (c *Client) clientFor(target string) *http.Client {
	if c.host != "" && hostOf(target) == c.host {
		return c.authed
	}
	return c.http
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Host)
}

// Preview reports whether the client serves a preview ref.
func (c *Client) Preview() bool {
	return c.preview != ""
}

// At builds an equality predicate.
func At(path, value string) string {
	return "[at(" + path + ", " + strconv.Quote(value) + ")]"
}

func (c *Client) Query(ctx context.Context, predicates []string, opts QueryOptions) (*models.QueryResponse, error) {
	if c.endpoint == "" {
		return nil, configMissingError()
	}
	ref, err := c.ref(ctx)
	if err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("ref", ref)
	if len(predicates) > 0 {
		params.Set("q", "["+strings.Join(predicates, "")+"]")
	}
	if len(opts.Fetch) > 0 {
		params.Set("fetch", strings.Join(opts.Fetch, ","))
	}
	if opts.PageSize > 0 {
		params.Set("pageSize", strconv.Itoa(opts.PageSize))
	}
	if opts.Page > 0 {
		params.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.Orderings != "" {
		params.Set("orderings", opts.Orderings)
	}

	var resp models.QueryResponse
	if err := c.getJSON(ctx, c.endpoint+"/documents/search?"+params.Encode(), &resp); err != nil {
		return nil, contentAPIError(err, "content query failed")
	}
	return &resp, nil
}

func (c *Client) GetByUID(ctx context.Context, docType, uid string) (*models.Document, error) {
	resp, err := c.Query(ctx, []string{At("my."+docType+".uid", uid)}, QueryOptions{PageSize: 1})
	if err != nil {
		return nil, err
	}
	if len(resp.Results) == 0 {
		return nil, notFoundError(docType, uid)
	}
	return &resp.Results[0], nil
}

// FetchCursor issues a plain GET against the literal cursor URL.
func (c *Client) FetchCursor(ctx context.Context, cursor models.Cursor) (*models.QueryResponse, error) {
	if cursor.Empty() {
		return nil, ErrNoMorePages
	}
	var resp models.QueryResponse
	if err := c.getJSON(ctx, string(cursor), &resp); err != nil {
		return nil, paginationError(err)
	}
	return &resp, nil
}

func (c *Client) ref(ctx context.Context) (string, error) {
	if c.preview != "" {
		return c.preview, nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.masterRef != "" {
		return c.masterRef, nil
	}

	var info models.APIInfo
	if err := c.getJSON(ctx, c.endpoint, &info); err != nil {
		return "", contentAPIError(err, "content api unreachable")
	}
	for _, r := range info.Refs {
		if r.IsMasterRef {
			c.masterRef = r.Ref
			return r.Ref, nil
		}
	}
	return "", contentAPIError(errNoMasterRef, "content api returned no master ref")
}

func (c *Client) getJSON(ctx context.Context, target string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")

	res, err := c.clientFor(target).Do(req)
	if err != nil {
		return err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return fmt.Errorf("content: GET %s: status %d: %s", redact(target), res.StatusCode, strings.TrimSpace(string(body)))
	}
	if err := json.NewDecoder(res.Body).Decode(out); err != nil {
		return fmt.Errorf("content: decode %s: %w", redact(target), err)
	}
	return nil
}

func redact(target string) string {
	u, err := url.Parse(target)
	if err != nil {
		return target
	}
	q := u.Query()
	if q.Has("access_token") {
		q.Set("access_token", "***")
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// previewRef extracts the preview ref from the preview cookie. The cookie holds
// either the ref itself or a JSON object keyed by repository host.
func previewRef(req *http.Request, endpoint string) string {
	if req == nil {
		return ""
	}
	cookie, err := req.Cookie(config.PreviewCookie)
	if err != nil || cookie.Value == "" {
		return ""
	}
	raw, err := url.QueryUnescape(cookie.Value)
	if err != nil {
		raw = cookie.Value
	}
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "{") {
		return raw
	}

	var byRepo map[string]struct {
		Preview string `json:"preview"`
	}
	if err := json.Unmarshal([]byte(raw), &byRepo); err != nil {
		return ""
	}
	repo := repositoryName(endpoint)
	for key, entry := range byRepo {
		if entry.Preview != "" && (repo == "" || repositoryName(key) == repo) {
			return entry.Preview
		}
	}
	return ""
}

func repositoryName(hostOrURL string) string {
	host := hostOrURL
	if u, err := url.Parse(hostOrURL); err == nil && u.Host != "" {
		host = u.Hostname()
	}
	name, _, _ := strings.Cut(host, ".")
	return name
}
