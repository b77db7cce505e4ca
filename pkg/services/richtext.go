package services

import (
	"html"
	"html/template"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"

	"spacetraveling/pkg/models"
)

// AsText extracts the plain text of nodes, joined by a single space.
func AsText(nodes []models.RichText) string {
	parts := make([]string, 0, len(nodes))
	for _, n := range nodes {
		if n.Text == "" && (n.Type == models.NodeImage || n.Type == models.NodeEmbed) {
			continue
		}
		parts = append(parts, n.Text)
	}
	return strings.Join(parts, " ")
}

// RenderRichText serializes nodes to HTML. Consecutive list items are
// grouped into a single list element.
func RenderRichText(nodes []models.RichText) template.HTML {
	var b strings.Builder
	for i := 0; i < len(nodes); i++ {
		n := nodes[i]
		switch n.Type {
		case models.NodeListItem, models.NodeOListItem:
			tag := "ul"
			if n.Type == models.NodeOListItem {
				tag = "ol"
			}
			b.WriteString("<" + tag + ">")
			for ; i < len(nodes) && nodes[i].Type == n.Type; i++ {
				b.WriteString("<li>")
				b.WriteString(renderSpans(nodes[i].Text, nodes[i].Spans))
				b.WriteString("</li>")
			}
			i--
			b.WriteString("</" + tag + ">")
		default:
			renderNode(&b, n)
		}
	}
	return template.HTML(b.String())
}

func renderNode(b *strings.Builder, n models.RichText) {
	switch {
	case n.Type == models.NodeParagraph:
		b.WriteString("<p>" + renderSpans(n.Text, n.Spans) + "</p>")
	case n.Type == models.NodePreformatted:
		b.WriteString("<pre>" + html.EscapeString(n.Text) + "</pre>")
	case strings.HasPrefix(n.Type, "heading"):
		level, err := strconv.Atoi(strings.TrimPrefix(n.Type, "heading"))
		if err != nil || level < 1 || level > 6 {
			level = 2
		}
		tag := "h" + strconv.Itoa(level)
		b.WriteString("<" + tag + ">" + renderSpans(n.Text, n.Spans) + "</" + tag + ">")
	case n.Type == models.NodeImage:
		src := safeURL(n.URL)
		if src == "" || src == "#" {
			return
		}
		b.WriteString(`<img src="` + html.EscapeString(src) + `" alt="` + html.EscapeString(n.Alt) + `"`)
		if n.Dimensions != nil {
			b.WriteString(` width="` + strconv.Itoa(n.Dimensions.Width) + `" height="` + strconv.Itoa(n.Dimensions.Height) + `"`)
		}
		b.WriteString(">")
	case n.Type == models.NodeEmbed:
		if n.OEmbed == nil || n.OEmbed.EmbedURL == "" {
			return
		}
		label := n.OEmbed.Title
		if label == "" {
			label = n.OEmbed.EmbedURL
		}
		b.WriteString(`<div data-oembed="` + html.EscapeString(n.OEmbed.EmbedURL) + `"><a href="` +
			html.EscapeString(safeURL(n.OEmbed.EmbedURL)) + `">` + html.EscapeString(label) + "</a></div>")
	default:
		if n.Text != "" {
			b.WriteString("<p>" + renderSpans(n.Text, n.Spans) + "</p>")
		}
	}
}

// renderSpans escapes text and wraps span ranges in their tags. Offsets are
// UTF-16 code units. Spans that overlap without nesting are closed and
// reopened at the boundary.
func renderSpans(text string, spans []models.Span) string {
	if len(spans) == 0 {
		return html.EscapeString(text)
	}
	units := utf16.Encode([]rune(text))

	ordered := make([]models.Span, 0, len(spans))
	for _, s := range spans {
		if s.Start < 0 || s.End > len(units) || s.Start >= s.End {
			continue
		}
		ordered = append(ordered, s)
	}
	sort.SliceStable(ordered, func(i, j int) bool {
		if ordered[i].Start != ordered[j].Start {
			return ordered[i].Start < ordered[j].Start
		}
		return ordered[i].End > ordered[j].End
	})

	var (
		b     strings.Builder
		open  []models.Span
		next  int
		start int
	)
	flush := func(end int) {
		if end > start {
			b.WriteString(html.EscapeString(string(utf16.Decode(units[start:end]))))
			start = end
		}
	}
	for pos := 0; pos <= len(units); pos++ {
		closing := false
		for _, s := range open {
			if s.End == pos {
				closing = true
				break
			}
		}
		if closing {
			flush(pos)
			kept := open[:0]
			var reopen []models.Span
			for i := len(open) - 1; i >= 0; i-- {
				b.WriteString(closeTag(open[i]))
			}
			for _, s := range open {
				if s.End != pos {
					reopen = append(reopen, s)
				}
			}
			for _, s := range reopen {
				b.WriteString(openTag(s))
				kept = append(kept, s)
			}
			open = kept
		}
		for next < len(ordered) && ordered[next].Start == pos {
			flush(pos)
			b.WriteString(openTag(ordered[next]))
			open = append(open, ordered[next])
			next++
		}
	}
	flush(len(units))
	return b.String()
}

func openTag(s models.Span) string {
	switch s.Type {
	case models.SpanStrong:
		return "<strong>"
	case models.SpanEm:
		return "<em>"
	case models.SpanHyperlink:
		href := ""
		target := ""
		if s.Data != nil {
			href = s.Data.URL
			if s.Data.Target != "" {
				target = ` target="` + html.EscapeString(s.Data.Target) + `" rel="noopener noreferrer"`
			}
		}
		return `<a href="` + html.EscapeString(safeURL(href)) + `"` + target + ">"
	case models.SpanLabel:
		label := ""
		if s.Data != nil {
			label = s.Data.Label
		}
		return `<span class="` + html.EscapeString(label) + `">`
	default:
		return "<span>"
	}
}

func closeTag(s models.Span) string {
	switch s.Type {
	case models.SpanStrong:
		return "</strong>"
	case models.SpanEm:
		return "</em>"
	case models.SpanHyperlink:
		return "</a>"
	default:
		return "</span>"
	}
}

// safeURL strips control characters and allows only http, https, mailto
// and relative URLs. Anything else becomes "#".
func safeURL(u string) string {
	cleaned := strings.Map(func(r rune) rune {
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, u)
	cleaned = strings.TrimSpace(cleaned)

	parsed, err := url.Parse(cleaned)
	if err != nil {
		return "#"
	}
	switch strings.ToLower(parsed.Scheme) {
	case "", "http", "https", "mailto":
		return cleaned
	default:
		return "#"
	}
}
