package services

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"spacetraveling/pkg/models"
)

const (
	defaultSearchPageSize = 20
	maxSearchPageSize     = 100
	previewRefSuffix      = "~preview"
)

// ErrBadQuery is returned for predicates the local repository does not understand.
var ErrBadQuery = errors.New("content: unsupported query")

var predicatePattern = regexp.MustCompile(`at\(\s*([\w.]+)\s*,\s*"((?:[^"\\]|\\.)*)"\s*\)`)

// LocalRepository serves markdown files with front matter as content API
// documents. Files are read once and kept until Invalidate is called.
type LocalRepository struct {
	dir string

	mu      sync.Mutex
	loaded  bool
	docs    []localDocument
	version string
}

type localDocument struct {
	doc       models.Document
	fields    map[string]interface{}
	published time.Time
	draft     bool
}

// SearchQuery is a parsed documents/search request.
type SearchQuery struct {
	Ref      string
	Q        string
	Fetch    []string
	Page     int
	PageSize int
}

// SearchResult is one page of matching documents.
type SearchResult struct {
	Documents  []models.Document
	Page       int
	PageSize   int
	Total      int
	TotalPages int
}

func NewLocalRepository(dir string) *LocalRepository {
	return &LocalRepository{dir: dir}
}

// Invalidate drops the loaded documents so the next access rereads the directory.
func (r *LocalRepository) Invalidate() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = false
	r.docs = nil
	r.version = ""
}

// MasterRef identifies the current published content.
func (r *LocalRepository) MasterRef() (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadLocked(); err != nil {
		return "", err
	}
	return r.version, nil
}

// PreviewRef identifies the current content including drafts.
func (r *LocalRepository) PreviewRef() (string, error) {
	ref, err := r.MasterRef()
	if err != nil {
		return "", err
	}
	return ref + previewRefSuffix, nil
}

func (r *LocalRepository) Search(q SearchQuery) (*SearchResult, error) {
	filters, err := parsePredicates(q.Q)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if err := r.loadLocked(); err != nil {
		return nil, err
	}
	withDrafts := q.Ref == r.version+previewRefSuffix

	var matched []localDocument
	for _, d := range r.docs {
		if d.draft && !withDrafts {
			continue
		}
		if matches(d, filters) {
			matched = append(matched, d)
		}
	}

	pageSize := q.PageSize
	if pageSize <= 0 {
		pageSize = defaultSearchPageSize
	}
	if pageSize > maxSearchPageSize {
		pageSize = maxSearchPageSize
	}
	page := q.Page
	if page <= 0 {
		page = 1
	}

	result := &SearchResult{
		Page:       page,
		PageSize:   pageSize,
		Total:      len(matched),
		TotalPages: (len(matched) + pageSize - 1) / pageSize,
		Documents:  []models.Document{},
	}
	start := (page - 1) * pageSize
	if start >= len(matched) {
		return result, nil
	}
	end := min(start+pageSize, len(matched))
	for _, d := range matched[start:end] {
		doc, err := d.project(q.Fetch)
		if err != nil {
			return nil, err
		}
		result.Documents = append(result.Documents, doc)
	}
	return result, nil
}

type predicate struct {
	path  string
	value string
}

func parsePredicates(q string) ([]predicate, error) {
	q = strings.TrimSpace(q)
	if q == "" {
		return nil, nil
	}
	var out []predicate
	for _, m := range predicatePattern.FindAllStringSubmatch(q, -1) {
		value, err := strconv.Unquote(`"` + m[2] + `"`)
		if err != nil {
			return nil, fmt.Errorf("%w: %s", ErrBadQuery, m[0])
		}
		path := m[1]
		switch {
		case path == "document.type", path == "document.id":
		case strings.HasPrefix(path, "my.") && strings.HasSuffix(path, ".uid"):
		default:
			return nil, fmt.Errorf("%w: %s", ErrBadQuery, path)
		}
		out = append(out, predicate{path: path, value: value})
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrBadQuery, q)
	}
	return out, nil
}

func matches(d localDocument, filters []predicate) bool {
	for _, f := range filters {
		switch {
		case f.path == "document.type":
			if d.doc.Type != f.value {
				return false
			}
		case f.path == "document.id":
			if d.doc.ID != f.value {
				return false
			}
		default:
			docType := strings.TrimSuffix(strings.TrimPrefix(f.path, "my."), ".uid")
			if d.doc.Type != docType || d.doc.UID != f.value {
				return false
			}
		}
	}
	return true
}

// project renders the document with data restricted to the fetch list.
func (d localDocument) project(fetch []string) (models.Document, error) {
	fields := d.fields
	if len(fetch) > 0 {
		fields = map[string]interface{}{}
		for _, f := range fetch {
			docType, key, ok := strings.Cut(strings.TrimSpace(f), ".")
			if !ok || docType != d.doc.Type {
				continue
			}
			if v, exists := d.fields[key]; exists {
				fields[key] = v
			}
		}
	}
	data, err := json.Marshal(fields)
	if err != nil {
		return models.Document{}, err
	}
	doc := d.doc
	doc.Data = data
	return doc, nil
}

func (r *LocalRepository) loadLocked() error {
	if r.loaded {
		return nil
	}

	var docs []localDocument
	hash := sha256.New()

	err := filepath.WalkDir(r.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !strings.HasSuffix(d.Name(), ".md") {
			return nil
		}
		content, err := os.ReadFile(path)
		if err != nil {
			return err
		}
		relPath, _ := filepath.Rel(r.dir, path)
		hash.Write([]byte(filepath.ToSlash(relPath)))
		hash.Write(content)

		doc, err := parseLocalDocument(relPath, content)
		if err != nil {
			return fmt.Errorf("content: %s: %w", relPath, err)
		}
		docs = append(docs, doc)
		return nil
	})
	if err != nil {
		return err
	}

	sort.SliceStable(docs, func(i, j int) bool {
		a, b := docs[i], docs[j]
		if !a.published.Equal(b.published) {
			return a.published.After(b.published)
		}
		return a.doc.UID < b.doc.UID
	})

	seen := map[string]bool{}
	for _, d := range docs {
		key := d.doc.Type + "/" + d.doc.UID
		if seen[key] {
			return fmt.Errorf("content: duplicate uid %q", d.doc.UID)
		}
		seen[key] = true
	}

	r.docs = docs
	r.version = hex.EncodeToString(hash.Sum(nil))[:16]
	r.loaded = true
	return nil
}

func parseLocalDocument(relPath string, content []byte) (localDocument, error) {
	fm, body, _, err := ParseFrontMatter(content)
	if err != nil {
		return localDocument{}, err
	}

	uid := stringField(fm, "uid")
	if uid == "" {
		uid = strings.TrimSuffix(filepath.Base(relPath), ".md")
	}
	docType := stringField(fm, "type")
	if docType == "" {
		docType = "posts"
	}

	doc := models.Document{
		ID:   uuid.NewSHA1(uuid.NameSpaceURL, []byte(docType+"/"+uid)).String(),
		UID:  uid,
		Type: docType,
		Tags: []string{},
	}
	if tags, ok := fm["tags"].([]interface{}); ok {
		for _, t := range tags {
			doc.Tags = append(doc.Tags, fmt.Sprint(t))
		}
	}

	var published time.Time
	if raw := stringField(fm, "first_publication_date"); raw != "" {
		t, ok := ParseTimestamp(raw)
		if !ok {
			return localDocument{}, fmt.Errorf("invalid first_publication_date %q", raw)
		}
		published = t
		formatted := t.UTC().Format("2006-01-02T15:04:05-0700")
		doc.FirstPublicationDate = &formatted
		doc.LastPublicationDate = &formatted
	}
	if raw := stringField(fm, "last_publication_date"); raw != "" {
		if t, ok := ParseTimestamp(raw); ok {
			formatted := t.UTC().Format("2006-01-02T15:04:05-0700")
			doc.LastPublicationDate = &formatted
		}
	}

	fields := map[string]interface{}{
		"title":    stringField(fm, "title"),
		"subtitle": stringField(fm, "subtitle"),
		"author":   stringField(fm, "author"),
		"banner":   map[string]interface{}{"url": nestedURL(fm, "banner")},
		"content":  MarkdownToBlocks([]byte(body)),
	}
	draft, _ := fm["draft"].(bool)

	return localDocument{doc: doc, fields: fields, published: published, draft: draft}, nil
}
