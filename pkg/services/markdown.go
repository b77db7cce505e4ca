package services

import (
	"strconv"
	"strings"
	"unicode/utf16"

	"github.com/yuin/goldmark"
	"github.com/yuin/goldmark/ast"
	"github.com/yuin/goldmark/text"

	"spacetraveling/pkg/models"
)

var markdownEngine = goldmark.New()

// MarkdownToBlocks converts a markdown body into content blocks. Every
// level-2 heading opens a block; anything before the first one lands in a
// block with an empty heading.
func MarkdownToBlocks(source []byte) []models.ContentBlock {
	doc := markdownEngine.Parser().Parse(text.NewReader(source))

	var (
		blocks  []models.ContentBlock
		current *models.ContentBlock
	)
	push := func(node models.RichText) {
		if current == nil {
			blocks = append(blocks, models.ContentBlock{})
			current = &blocks[len(blocks)-1]
		}
		current.Body = append(current.Body, node)
	}

	for n := doc.FirstChild(); n != nil; n = n.NextSibling() {
		switch node := n.(type) {
		case *ast.Heading:
			if node.Level == 2 {
				blocks = append(blocks, models.ContentBlock{Heading: inlineText(node, source)})
				current = &blocks[len(blocks)-1]
				continue
			}
			txt, spans := collectInline(node, source)
			push(models.RichText{Type: "heading" + strconv.Itoa(node.Level), Text: txt, Spans: spans})
		case *ast.Paragraph:
			if img := loneImage(node); img != nil {
				push(models.RichText{Type: models.NodeImage, URL: string(img.Destination), Alt: inlineText(img, source)})
				continue
			}
			txt, spans := collectInline(node, source)
			push(models.RichText{Type: models.NodeParagraph, Text: txt, Spans: spans})
		case *ast.List:
			kind := models.NodeListItem
			if node.IsOrdered() {
				kind = models.NodeOListItem
			}
			for item := node.FirstChild(); item != nil; item = item.NextSibling() {
				txt, spans := collectInline(item, source)
				push(models.RichText{Type: kind, Text: txt, Spans: spans})
			}
		case *ast.FencedCodeBlock, *ast.CodeBlock:
			push(models.RichText{Type: models.NodePreformatted, Text: strings.TrimRight(codeLines(n, source), "\n")})
		case *ast.Blockquote:
			txt, spans := collectInline(node, source)
			push(models.RichText{Type: models.NodeParagraph, Text: txt, Spans: spans})
		}
	}
	return blocks
}

func loneImage(p *ast.Paragraph) *ast.Image {
	if p.ChildCount() != 1 {
		return nil
	}
	img, _ := p.FirstChild().(*ast.Image)
	return img
}

func codeLines(n ast.Node, source []byte) string {
	var b strings.Builder
	lines := n.Lines()
	for i := 0; i < lines.Len(); i++ {
		seg := lines.At(i)
		b.Write(seg.Value(source))
	}
	return b.String()
}

func inlineText(n ast.Node, source []byte) string {
	txt, _ := collectInline(n, source)
	return txt
}

// inlineCollector flattens inline nodes into text plus spans measured in
// UTF-16 code units.
type inlineCollector struct {
	source []byte
	b      strings.Builder
	units  int
	spans  []models.Span
}

func collectInline(n ast.Node, source []byte) (string, []models.Span) {
	c := &inlineCollector{source: source}
	c.walk(n)

	txt := strings.TrimRight(c.b.String(), " \n")
	limit := len(utf16.Encode([]rune(txt)))
	spans := c.spans[:0]
	for _, s := range c.spans {
		if s.End > limit {
			s.End = limit
		}
		if s.Start < s.End {
			spans = append(spans, s)
		}
	}
	if len(spans) == 0 {
		spans = nil
	}
	return txt, spans
}

func (c *inlineCollector) write(s string) {
	c.b.WriteString(s)
	c.units += len(utf16.Encode([]rune(s)))
}

func (c *inlineCollector) walk(n ast.Node) {
	for child := n.FirstChild(); child != nil; child = child.NextSibling() {
		switch node := child.(type) {
		case *ast.Text:
			c.write(string(node.Segment.Value(c.source)))
			if node.HardLineBreak() {
				c.write("\n")
			} else if node.SoftLineBreak() {
				c.write(" ")
			}
		case *ast.String:
			c.write(string(node.Value))
		case *ast.Emphasis:
			kind := models.SpanEm
			if node.Level >= 2 {
				kind = models.SpanStrong
			}
			c.span(node, kind, nil)
		case *ast.Link:
			c.span(node, models.SpanHyperlink, &models.SpanData{LinkType: "Web", URL: string(node.Destination)})
		case *ast.AutoLink:
			start := c.units
			c.write(string(node.Label(c.source)))
			c.spans = append(c.spans, models.Span{
				Start: start, End: c.units, Type: models.SpanHyperlink,
				Data: &models.SpanData{LinkType: "Web", URL: string(node.URL(c.source))},
			})
		case *ast.Image, *ast.RawHTML:
			// dropped from inline text
		default:
			if child.Kind() == ast.KindParagraph || child.Kind() == ast.KindTextBlock {
				if c.b.Len() > 0 {
					c.write(" ")
				}
			}
			c.walk(child)
		}
	}
}

func (c *inlineCollector) span(n ast.Node, kind string, data *models.SpanData) {
	start := c.units
	c.walk(n)
	if c.units > start {
		c.spans = append(c.spans, models.Span{Start: start, End: c.units, Type: kind, Data: data})
	}
}
