package services

import (
	"regexp"
	"strings"

	"spacetraveling/pkg/models"
)

const wordsPerMinute = 200

var nonWord = regexp.MustCompile(`\W+`)

// EstimateReadingMinutes concatenates each block's body text followed by its
// heading, with no separator between them, and rounds the word count up to
// whole minutes at 200 words per minute.
func EstimateReadingMinutes(detail *models.ArticleDetail) int {
	if detail == nil {
		return 0
	}
	var b strings.Builder
	for _, block := range detail.Content {
		b.WriteString(AsText(block.Body))
		b.WriteString(block.Heading)
	}
	words := CountWords(b.String())
	return (words + wordsPerMinute - 1) / wordsPerMinute
}

// CountWords counts the non-empty tokens between runs of non-word characters.
func CountWords(text string) int {
	n := 0
	for _, token := range nonWord.Split(text, -1) {
		if token != "" {
			n++
		}
	}
	return n
}
