package models

// Rich text node types as emitted by the content API.
const (
	NodeParagraph    = "paragraph"
	NodePreformatted = "preformatted"
	NodeListItem     = "list-item"
	NodeOListItem    = "o-list-item"
	NodeImage        = "image"
	NodeEmbed        = "embed"
)

// Span types.
const (
	SpanStrong    = "strong"
	SpanEm        = "em"
	SpanHyperlink = "hyperlink"
	SpanLabel     = "label"
)

// RichText is a single structured text node. Heading nodes use the types
// "heading1" through "heading6".
type RichText struct {
	Type       string      `json:"type"`
	Text       string      `json:"text,omitempty"`
	Spans      []Span      `json:"spans,omitempty"`
	URL        string      `json:"url,omitempty"`
	Alt        string      `json:"alt,omitempty"`
	Dimensions *Dimensions `json:"dimensions,omitempty"`
	OEmbed     *OEmbed     `json:"oembed,omitempty"`
}

// Span decorates a range of a node's text. Start and End are UTF-16 offsets.
type Span struct {
	Start int       `json:"start"`
	End   int       `json:"end"`
	Type  string    `json:"type"`
	Data  *SpanData `json:"data,omitempty"`
}

type SpanData struct {
	LinkType string `json:"link_type,omitempty"`
	URL      string `json:"url,omitempty"`
	Target   string `json:"target,omitempty"`
	Label    string `json:"label,omitempty"`
}

type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

type OEmbed struct {
	EmbedURL string `json:"embed_url"`
	Title    string `json:"title,omitempty"`
	Type     string `json:"type,omitempty"`
}
