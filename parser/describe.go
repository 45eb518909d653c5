package parser

import (
	nurl "net/url"
	"strings"

	readability "github.com/go-shiori/go-readability"
)

// maxExcerpt bounds the excerpt length written to logs.
const maxExcerpt = 160

// Describe returns the readable title and a short excerpt of a page. It is
// used to explain detail pages that yielded no pairs (error pages, captchas,
// redesigned layouts). Both values are empty when readability fails.
func Describe(rawHTML, pageURL string) (title, excerpt string) {
	parsedURL, err := nurl.Parse(pageURL)
	if err != nil {
		return "", ""
	}

	article, err := readability.FromReader(strings.NewReader(rawHTML), parsedURL)
	if err != nil {
		return "", ""
	}

	excerpt = collapseSpace(article.Excerpt)
	if excerpt == "" {
		excerpt = collapseSpace(article.TextContent)
	}
	if r := []rune(excerpt); len(r) > maxExcerpt {
		excerpt = string(r[:maxExcerpt]) + "…"
	}
	return collapseSpace(article.Title), excerpt
}
