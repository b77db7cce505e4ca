package services

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"spacetraveling/pkg/models"
)

func writeContent(t *testing.T, dir, name, content string) {
	t.Helper()
	path := filepath.Join(dir, filepath.FromSlash(name))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func seedRepository(t *testing.T) (string, *LocalRepository) {
	t.Helper()
	dir := t.TempDir()
	writeContent(t, dir, "a.md", `---
title: Post A
subtitle: About A
author: Ada
first_publication_date: 2021-03-25T00:00:00Z
banner:
  url: https://images.example/a.png
tags: [space, rockets]
---

## Intro

hello world
`)
	writeContent(t, dir, "b.md", `+++
title = "Post B"
author = "Bob"
first_publication_date = 2021-03-20T00:00:00Z
+++

Body of b.
`)
	writeContent(t, dir, "nested/c.md", `---
uid: custom-c
title: Post C
first_publication_date: 2021-03-10T00:00:00Z
---
Body of c.
`)
	writeContent(t, dir, "draft.md", `---
title: Draft
draft: true
first_publication_date: 2021-04-01T00:00:00Z
---
Not yet.
`)
	writeContent(t, dir, "about.md", `---
type: pages
title: About
---
About us.
`)
	writeContent(t, dir, "notes.txt", "ignored")
	return dir, NewLocalRepository(dir)
}

func docUIDs(docs []models.Document) []string {
	out := make([]string, 0, len(docs))
	for _, d := range docs {
		out = append(out, d.UID)
	}
	return out
}

func TestLocalRepositorySearchByType(t *testing.T) {
	_, repo := seedRepository(t)
	ref, err := repo.MasterRef()
	require.NoError(t, err)

	res, err := repo.Search(SearchQuery{Ref: ref, Q: `[[at(document.type, "posts")]]`})
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b", "custom-c"}, docUIDs(res.Documents))
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, 1, res.TotalPages)
	assert.Equal(t, defaultSearchPageSize, res.PageSize)

	a := res.Documents[0]
	assert.Equal(t, uuid.NewSHA1(uuid.NameSpaceURL, []byte("posts/a")).String(), a.ID)
	assert.Equal(t, "posts", a.Type)
	assert.Equal(t, []string{"space", "rockets"}, a.Tags)
	require.NotNil(t, a.FirstPublicationDate)
	assert.Equal(t, "2021-03-25T00:00:00+0000", *a.FirstPublicationDate)

	var data models.PostData
	require.NoError(t, json.Unmarshal(a.Data, &data))
	assert.Equal(t, "Post A", data.Title)
	assert.Equal(t, "About A", data.Subtitle)
	assert.Equal(t, "Ada", data.Author)
	assert.Equal(t, "https://images.example/a.png", data.Banner.URL)
	require.Len(t, data.Content, 1)
	assert.Equal(t, "Intro", data.Content[0].Heading)
	assert.Equal(t, "hello world", data.Content[0].Body[0].Text)

	b := res.Documents[1]
	require.NotNil(t, b.FirstPublicationDate)
	assert.Equal(t, "2021-03-20T00:00:00+0000", *b.FirstPublicationDate)

	pages, err := repo.Search(SearchQuery{Ref: ref, Q: `[[at(document.type, "pages")]]`})
	require.NoError(t, err)
	assert.Equal(t, []string{"about"}, docUIDs(pages.Documents))
	assert.Nil(t, pages.Documents[0].FirstPublicationDate)
}

func TestLocalRepositoryDraftsNeedPreviewRef(t *testing.T) {
	_, repo := seedRepository(t)
	preview, err := repo.PreviewRef()
	require.NoError(t, err)

	res, err := repo.Search(SearchQuery{Ref: preview, Q: `[[at(document.type, "posts")]]`})
	require.NoError(t, err)
	assert.Equal(t, []string{"draft", "a", "b", "custom-c"}, docUIDs(res.Documents))

	res, err = repo.Search(SearchQuery{Ref: "stale", Q: `[[at(my.posts.uid, "draft")]]`})
	require.NoError(t, err)
	assert.Empty(t, res.Documents)
}

func TestLocalRepositoryPagination(t *testing.T) {
	_, repo := seedRepository(t)
	q := SearchQuery{Q: `[[at(document.type, "posts")]]`, PageSize: 1}

	q.Page = 2
	res, err := repo.Search(q)
	require.NoError(t, err)
	assert.Equal(t, []string{"b"}, docUIDs(res.Documents))
	assert.Equal(t, 3, res.TotalPages)

	q.Page = 4
	res, err = repo.Search(q)
	require.NoError(t, err)
	assert.NotNil(t, res.Documents)
	assert.Empty(t, res.Documents)

	q.PageSize = 1000
	q.Page = 1
	res, err = repo.Search(q)
	require.NoError(t, err)
	assert.Equal(t, maxSearchPageSize, res.PageSize)
}

func TestLocalRepositoryFetchRestrictsData(t *testing.T) {
	_, repo := seedRepository(t)
	res, err := repo.Search(SearchQuery{
		Q:     `[[at(my.posts.uid, "custom-c")]]`,
		Fetch: []string{"posts.title", "posts.author", "pages.title"},
	})
	require.NoError(t, err)
	require.Len(t, res.Documents, 1)

	var data map[string]any
	require.NoError(t, json.Unmarshal(res.Documents[0].Data, &data))
	assert.Equal(t, map[string]any{"title": "Post C", "author": ""}, data)
}

func TestLocalRepositoryRejectsUnknownPredicates(t *testing.T) {
	_, repo := seedRepository(t)
	for _, q := range []string{
		`[[at(document.tags, "space")]]`,
		`[[fulltext(document, "moon")]]`,
		`garbage`,
	} {
		_, err := repo.Search(SearchQuery{Q: q})
		assert.ErrorIs(t, err, ErrBadQuery, q)
	}

	res, err := repo.Search(SearchQuery{})
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total, "no predicate matches every published document")
}

func TestLocalRepositoryInvalidate(t *testing.T) {
	dir, repo := seedRepository(t)
	before, err := repo.MasterRef()
	require.NoError(t, err)
	assert.Len(t, before, 16)

	writeContent(t, dir, "d.md", "---\ntitle: Post D\nfirst_publication_date: 2021-05-01T00:00:00Z\n---\nNew.\n")

	same, err := repo.MasterRef()
	require.NoError(t, err)
	assert.Equal(t, before, same, "files are cached until invalidated")

	repo.Invalidate()
	after, err := repo.MasterRef()
	require.NoError(t, err)
	assert.NotEqual(t, before, after)

	res, err := repo.Search(SearchQuery{Q: `[[at(document.type, "posts")]]`})
	require.NoError(t, err)
	assert.Equal(t, []string{"d", "a", "b", "custom-c"}, docUIDs(res.Documents))
}

func TestLocalRepositoryDuplicateUID(t *testing.T) {
	dir := t.TempDir()
	writeContent(t, dir, "one/a.md", "---\ntitle: One\n---\n")
	writeContent(t, dir, "two/a.md", "---\ntitle: Two\n---\n")

	_, err := NewLocalRepository(dir).MasterRef()
	assert.ErrorContains(t, err, "duplicate uid")
}

func TestLocalRepositoryInvalidDate(t *testing.T) {
	dir := t.TempDir()
	writeContent(t, dir, "a.md", "---\nfirst_publication_date: someday\n---\n")

	_, err := NewLocalRepository(dir).MasterRef()
	assert.ErrorContains(t, err, "first_publication_date")
}
