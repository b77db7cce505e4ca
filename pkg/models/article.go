package models

// Cursor is the opaque continuation handle returned with every listing page.
// An empty cursor means there are no more pages.
type Cursor string

func (c Cursor) Empty() bool {
	return c == ""
}

// ArticleSummary is one item of the listing page.
type ArticleSummary struct {
	UID                  string `json:"uid"`
	FirstPublicationDate string `json:"first_publication_date,omitempty"`
	Title                string `json:"title"`
	Subtitle             string `json:"subtitle"`
	Author               string `json:"author"`
}

// PostsPage is a page of summaries plus the cursor to the next one.
type PostsPage struct {
	Results  []ArticleSummary `json:"results"`
	NextPage Cursor           `json:"next_page"`
}

// ArticleDetail is a fully loaded article.
type ArticleDetail struct {
	UID                  string         `json:"uid"`
	FirstPublicationDate string         `json:"first_publication_date,omitempty"`
	Title                string         `json:"title"`
	BannerURL            string         `json:"banner_url"`
	Author               string         `json:"author"`
	Content              []ContentBlock `json:"content"`
}

// ContentBlock is a heading followed by a rich-text body.
type ContentBlock struct {
	Heading string     `json:"heading"`
	Body    []RichText `json:"body"`
}
