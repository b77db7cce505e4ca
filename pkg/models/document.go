package models

import "encoding/json"

// Document is a raw record from the content API. Data stays undecoded until
// a page projects the fields it needs.
type Document struct {
	ID                   string          `json:"id"`
	UID                  string          `json:"uid,omitempty"`
	Type                 string          `json:"type"`
	Href                 string          `json:"href,omitempty"`
	Tags                 []string        `json:"tags"`
	Lang                 string          `json:"lang,omitempty"`
	FirstPublicationDate *string         `json:"first_publication_date"`
	LastPublicationDate  *string         `json:"last_publication_date"`
	Data                 json.RawMessage `json:"data"`
}

// QueryResponse is the search response envelope.
type QueryResponse struct {
	Page             int        `json:"page"`
	ResultsPerPage   int        `json:"results_per_page"`
	ResultsSize      int        `json:"results_size"`
	TotalResultsSize int        `json:"total_results_size"`
	TotalPages       int        `json:"total_pages"`
	NextPage         *string    `json:"next_page"`
	PrevPage         *string    `json:"prev_page"`
	Results          []Document `json:"results"`
}

// Next returns the continuation cursor, empty when the response was the last page.
func (r *QueryResponse) Next() Cursor {
	if r == nil || r.NextPage == nil {
		return ""
	}
	return Cursor(*r.NextPage)
}

// Ref is one entry of the repository ref list.
type Ref struct {
	ID          string `json:"id"`
	Ref         string `json:"ref"`
	Label       string `json:"label"`
	IsMasterRef bool   `json:"isMasterRef"`
}

// APIInfo is the response of the repository root endpoint.
type APIInfo struct {
	Refs []Ref `json:"refs"`
}

// PostData is the "posts" document data shape.
type PostData struct {
	Title    string `json:"title"`
	Subtitle string `json:"subtitle"`
	Author   string `json:"author"`
	Banner   struct {
		URL        string      `json:"url,omitempty"`
		Alt        string      `json:"alt,omitempty"`
		Dimensions *Dimensions `json:"dimensions,omitempty"`
	} `json:"banner"`
	Content []ContentBlock `json:"content"`
}
