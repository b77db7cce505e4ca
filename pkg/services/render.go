package services

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"io/fs"
	"net/url"
	"strings"

	"spacetraveling/pkg/config"
	"spacetraveling/pkg/models"
)

//go:embed templates/*.html
var templateFS embed.FS

//go:embed static
var staticFS embed.FS

// Page names.
const (
	HomeTemplate    = "home"
	PostTemplate    = "post"
	LoadingTemplate = "loading"
)

// Page carries what every template needs.
type Page struct {
	SiteTitle string
	PageTitle string
	Lang      string
}

type HomePage struct {
	Page
	Feed  FeedView
	Error string
}

type PostPage struct {
	Page
	Post           *models.ArticleDetail
	ReadingMinutes int
	Preview        bool
}

type LoadingPage struct {
	Page
}

// Renderer owns the parsed page templates.
type Renderer struct {
	tmpl *template.Template
	site config.SiteConfig
}

func NewRenderer(site config.SiteConfig) (*Renderer, error) {
	funcs := template.FuncMap{
		"formatDate": func(raw string) string {
			formatted, _ := FormatDate(raw, site.Locale)
			return formatted
		},
		"richText": RenderRichText,
		"postURL":  PostURL,
	}
	tmpl, err := template.New("site").Funcs(funcs).ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, err
	}
	return &Renderer{tmpl: tmpl, site: site}, nil
}

// Template exposes the parsed set, for gin's HTML renderer.
func (r *Renderer) Template() *template.Template {
	return r.tmpl
}

func (r *Renderer) Render(w io.Writer, name string, data any) error {
	return r.tmpl.ExecuteTemplate(w, name, data)
}

// RenderBytes renders into memory so a failed render never leaves a partial page.
func (r *Renderer) RenderBytes(name string, data any) ([]byte, error) {
	var buf bytes.Buffer
	if err := r.Render(&buf, name, data); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (r *Renderer) Page(title string) Page {
	lang, _, _ := strings.Cut(r.site.Locale, "_")
	return Page{SiteTitle: r.site.Title, PageTitle: title, Lang: lang}
}

func (r *Renderer) Home(view FeedView, errMsg string) HomePage {
	return HomePage{Page: r.Page(""), Feed: view, Error: errMsg}
}

func (r *Renderer) Post(detail *models.ArticleDetail, preview bool) PostPage {
	p := PostPage{Page: r.Page(""), Post: detail, Preview: preview}
	if detail != nil {
		p.PageTitle = detail.Title
		p.ReadingMinutes = EstimateReadingMinutes(detail)
	}
	return p
}

func (r *Renderer) Loading() LoadingPage {
	return LoadingPage{Page: r.Page("")}
}

// PostURL is the article route for uid.
func PostURL(uid string) string {
	return "/post/" + url.PathEscape(uid)
}

// StaticFS holds the site assets, rooted so that "images/logo.svg" resolves.
func StaticFS() fs.FS {
	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(err)
	}
	return sub
}
