package services

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"spacetraveling/pkg/models"
)

// CursorFetcher retrieves the page a cursor points to.
type CursorFetcher func(ctx context.Context, cursor models.Cursor) (*models.QueryResponse, error)

// Feed is the listing state of one browsing session: an append-only list of
// summaries and the cursor of the next page.
type Feed struct {
	mu        sync.Mutex
	summaries []models.ArticleSummary
	cursor    models.Cursor
	inFlight  bool
	fetch     CursorFetcher
}

// FeedView is a point-in-time copy of a feed.
type FeedView struct {
	Summaries []models.ArticleSummary
	Cursor    models.Cursor
	HasMore   bool
}

func NewFeed(initial *models.PostsPage, fetch CursorFetcher) *Feed {
	f := &Feed{fetch: fetch}
	if initial != nil {
		f.summaries = append([]models.ArticleSummary(nil), initial.Results...)
		f.cursor = initial.NextPage
	}
	return f
}

// LoadNextPage follows the held cursor and appends the results. A call while
// another fetch is outstanding returns ErrPageInFlight; a call after the last
// page returns ErrNoMorePages. On failure the feed is left unchanged.
func (f *Feed) LoadNextPage(ctx context.Context) ([]models.ArticleSummary, error) {
	f.mu.Lock()
	if f.cursor.Empty() {
		f.mu.Unlock()
		return nil, ErrNoMorePages
	}
	if f.inFlight {
		f.mu.Unlock()
		return nil, ErrPageInFlight
	}
	f.inFlight = true
	cursor := f.cursor
	f.mu.Unlock()

	resp, err := f.fetch(ctx, cursor)

	var page *models.PostsPage
	if err == nil {
		page, err = projectPage(resp)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.inFlight = false
	if err != nil {
		return nil, paginationError(err)
	}
	f.summaries = append(f.summaries, page.Results...)
	f.cursor = page.NextPage
	return page.Results, nil
}

func (f *Feed) View() FeedView {
	f.mu.Lock()
	defer f.mu.Unlock()
	return FeedView{
		Summaries: append([]models.ArticleSummary(nil), f.summaries...),
		Cursor:    f.cursor,
		HasMore:   !f.cursor.Empty(),
	}
}

// FeedStore keeps one feed per browsing session. Feeds idle for longer than
// the TTL are dropped.
type FeedStore struct {
	mu    sync.Mutex
	ttl   time.Duration
	now   func() time.Time
	feeds map[string]*storedFeed
}

type storedFeed struct {
	feed     *Feed
	lastSeen time.Time
}

func NewFeedStore(ttl time.Duration) *FeedStore {
	return &FeedStore{
		ttl:   ttl,
		now:   time.Now,
		feeds: make(map[string]*storedFeed),
	}
}

// Put registers feed and returns its id.
func (s *FeedStore) Put(feed *Feed) string {
	id := uuid.NewString()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.sweepLocked()
	s.feeds[id] = &storedFeed{feed: feed, lastSeen: s.now()}
	return id
}

func (s *FeedStore) Get(id string) (*Feed, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	entry, ok := s.feeds[id]
	if !ok {
		return nil, false
	}
	if s.expiredLocked(entry) {
		delete(s.feeds, id)
		return nil, false
	}
	entry.lastSeen = s.now()
	return entry.feed, true
}

func (s *FeedStore) Delete(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.feeds, id)
}

func (s *FeedStore) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.feeds)
}

func (s *FeedStore) sweepLocked() {
	for id, entry := range s.feeds {
		if s.expiredLocked(entry) {
			delete(s.feeds, id)
		}
	}
}

func (s *FeedStore) expiredLocked(entry *storedFeed) bool {
	return s.ttl > 0 && s.now().Sub(entry.lastSeen) > s.ttl
}
