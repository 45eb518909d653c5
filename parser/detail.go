package parser

import (
	"fmt"
	"io"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"

	"github.com/use-agent/savings/models"
)

// DetailPairs scans every table row in the document. A row with at least two
// th/td cells yields label=cell0, value=cell1 when both are non-empty after
// trimming. A repeated label keeps the last value.
func DetailPairs(r io.Reader) (models.DetailMapping, error) {
	var pairs models.DetailMapping

	root, err := html.Parse(r)
	if err != nil {
		return pairs, fmt.Errorf("parser: parse detail html: %w", err)
	}

	doc := goquery.NewDocumentFromNode(root)
	doc.Find("tr").Each(func(_ int, tr *goquery.Selection) {
		cells := tr.Find("th, td")
		if cells.Length() < 2 {
			return
		}
		label := collapseSpace(cells.Eq(0).Text())
		value := collapseSpace(cells.Eq(1).Text())
		if label == "" || value == "" {
			return
		}
		pairs.Set(label, value)
	})

	return pairs, nil
}
