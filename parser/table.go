package parser

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/use-agent/savings/models"
)

// TableRows returns every row matched by rowSel in document order. Each row
// holds its td cells; a cell's Href is its first anchor target resolved
// against baseURL.
func TableRows(rawHTML string, rowSel goquery.Matcher, baseURL string) ([]models.RawRow, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rawHTML))
	if err != nil {
		return nil, fmt.Errorf("parser: parse table html: %w", err)
	}

	base, baseErr := url.Parse(baseURL)
	if baseErr != nil {
		base = nil
	}

	var rows []models.RawRow
	doc.FindMatcher(rowSel).Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("td")
		row := make(models.RawRow, 0, cells.Length())
		cells.Each(func(_ int, td *goquery.Selection) {
			row = append(row, models.RawCell{
				Text: collapseSpace(td.Text()),
				Href: anchorHref(td, base),
			})
		})
		rows = append(rows, row)
	})

	return rows, nil
}

// anchorHref returns the first anchor href inside sel, absolute when base is
// known. An anchor without href counts as no link.
func anchorHref(sel *goquery.Selection, base *url.URL) string {
	href, ok := sel.Find("a").First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return ""
	}
	if base == nil {
		return href
	}
	resolved, err := base.Parse(href)
	if err != nil {
		return href
	}
	return resolved.String()
}
