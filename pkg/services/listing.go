package services

import (
	"context"
	"encoding/json"
	"fmt"

	"spacetraveling/pkg/models"
)

// LoadInitialPage fetches the first listing page, restricted to the summary fields.
func LoadInitialPage(ctx context.Context, api ContentAPI, docType string, pageSize int) (*models.PostsPage, error) {
	resp, err := api.Query(ctx, []string{At("document.type", docType)}, QueryOptions{
		Fetch:    []string{docType + ".title", docType + ".subtitle", docType + ".author"},
		PageSize: pageSize,
	})
	if err != nil {
		return nil, err
	}
	return projectPage(resp)
}

func projectPage(resp *models.QueryResponse) (*models.PostsPage, error) {
	results, err := ProjectSummaries(resp.Results)
	if err != nil {
		return nil, err
	}
	return &models.PostsPage{
		Results:  results,
		NextPage: resp.Next(),
	}, nil
}

// ProjectSummaries keeps exactly the listing fields of each document, in order.
func ProjectSummaries(docs []models.Document) ([]models.ArticleSummary, error) {
	out := make([]models.ArticleSummary, 0, len(docs))
	for _, doc := range docs {
		var data models.PostData
		if len(doc.Data) > 0 {
			if err := json.Unmarshal(doc.Data, &data); err != nil {
				return nil, fmt.Errorf("content: decode %s: %w", doc.UID, err)
			}
		}
		out = append(out, models.ArticleSummary{
			UID:                  doc.UID,
			FirstPublicationDate: deref(doc.FirstPublicationDate),
			Title:                data.Title,
			Subtitle:             data.Subtitle,
			Author:               data.Author,
		})
	}
	return out, nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
