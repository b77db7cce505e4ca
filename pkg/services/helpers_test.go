package services

import (
	"context"
	"encoding/json"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"spacetraveling/pkg/models"
)

// stubAPI is an in-memory ContentAPI. pages["" ] answers Query; other keys
// answer FetchCursor.
type stubAPI struct {
	mu       sync.Mutex
	pages    map[models.Cursor]*models.QueryResponse
	docs     map[string]models.Document
	queries  []QueryOptions
	preds    [][]string
	fetched  []models.Cursor
	gets     int
	queryErr error
}

func newStubAPI() *stubAPI {
	return &stubAPI{
		pages: map[models.Cursor]*models.QueryResponse{},
		docs:  map[string]models.Document{},
	}
}

func (s *stubAPI) Query(_ context.Context, predicates []string, opts QueryOptions) (*models.QueryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.queries = append(s.queries, opts)
	s.preds = append(s.preds, predicates)
	if s.queryErr != nil {
		return nil, s.queryErr
	}
	return s.pages[""], nil
}

func (s *stubAPI) GetByUID(_ context.Context, docType, uid string) (*models.Document, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.gets++
	doc, ok := s.docs[uid]
	if !ok {
		return nil, notFoundError(docType, uid)
	}
	return &doc, nil
}

func (s *stubAPI) FetchCursor(_ context.Context, cursor models.Cursor) (*models.QueryResponse, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.fetched = append(s.fetched, cursor)
	resp, ok := s.pages[cursor]
	if !ok {
		return nil, paginationError(errNotFound)
	}
	return resp, nil
}

func (s *stubAPI) getCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gets
}

func strPtr(s string) *string {
	return &s
}

func postDoc(t *testing.T, uid, title, date string, content ...models.ContentBlock) models.Document {
	t.Helper()
	data := map[string]any{
		"title":    title,
		"subtitle": title + " subtitle",
		"author":   "Author " + uid,
		"banner":   map[string]any{"url": "https://images.example/" + uid + ".png"},
		"content":  content,
	}
	raw, err := json.Marshal(data)
	require.NoError(t, err)

	doc := models.Document{ID: "id-" + uid, UID: uid, Type: "posts", Data: raw}
	if date != "" {
		doc.FirstPublicationDate = strPtr(date)
	}
	return doc
}

func page(next string, docs ...models.Document) *models.QueryResponse {
	resp := &models.QueryResponse{Results: docs, ResultsSize: len(docs)}
	if next != "" {
		resp.NextPage = strPtr(next)
	}
	return resp
}

func uids(summaries []models.ArticleSummary) []string {
	out := make([]string, 0, len(summaries))
	for _, s := range summaries {
		out = append(out, s.UID)
	}
	return out
}

func paragraph(text string) models.RichText {
	return models.RichText{Type: models.NodeParagraph, Text: text}
}
