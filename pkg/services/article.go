package services

import (
	"context"
	"encoding/json"
	"fmt"

	"spacetraveling/pkg/models"
)

// EnumerateAllIdentifiers lists the uid of every document of docType,
// following cursors until the listing is exhausted.
func EnumerateAllIdentifiers(ctx context.Context, api ContentAPI, docType string) ([]string, error) {
	resp, err := api.Query(ctx, []string{At("document.type", docType)}, QueryOptions{PageSize: 100})
	if err != nil {
		return nil, err
	}

	var ids []string
	seen := map[models.Cursor]bool{}
	for {
		for _, doc := range resp.Results {
			if doc.UID != "" {
				ids = append(ids, doc.UID)
			}
		}
		next := resp.Next()
		if next.Empty() || seen[next] {
			return ids, nil
		}
		seen[next] = true
		if resp, err = api.FetchCursor(ctx, next); err != nil {
			return nil, err
		}
	}
}

// LoadArticle fetches one article by uid.
func LoadArticle(ctx context.Context, api ContentAPI, docType, uid string) (*models.ArticleDetail, error) {
	doc, err := api.GetByUID(ctx, docType, uid)
	if err != nil {
		return nil, err
	}

	var data models.PostData
	if len(doc.Data) > 0 {
		if err := json.Unmarshal(doc.Data, &data); err != nil {
			return nil, fmt.Errorf("content: decode %s: %w", uid, err)
		}
	}
	return &models.ArticleDetail{
		UID:                  doc.UID,
		FirstPublicationDate: deref(doc.FirstPublicationDate),
		Title:                data.Title,
		BannerURL:            data.Banner.URL,
		Author:               data.Author,
		Content:              data.Content,
	}, nil
}
