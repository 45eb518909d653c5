package sink

import (
	"html"
	"strings"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/table"

	"github.com/use-agent/savings/models"
)

// maxDetailPreview bounds the detail_data text shown per row.
const maxDetailPreview = 60

var previewConverter = converter.NewConverter(
	converter.WithPlugins(
		base.NewBasePlugin(),
		commonmark.NewCommonmarkPlugin(),
		table.NewTablePlugin(
			table.WithCellPaddingBehavior(table.CellPaddingBehaviorMinimal),
		),
	),
)

// Preview renders the first n records as a Markdown table for the console.
func Preview(records []models.Record, n int) (string, error) {
	if n <= 0 || len(records) == 0 {
		return "", nil
	}
	if n > len(records) {
		n = len(records)
	}

	var b strings.Builder
	b.WriteString("<table><thead><tr>")
	for _, h := range []string{"Agency", "Description", "Uploaded on", "Saved", "Detail"} {
		b.WriteString("<th>" + h + "</th>")
	}
	b.WriteString("</tr></thead><tbody>")
	for _, r := range records[:n] {
		detail := "none"
		if r.HasDetail() {
			detail = truncate(*r.DetailData, maxDetailPreview)
		}
		b.WriteString("<tr>")
		for _, v := range []string{r.Agency, r.Description, r.UploadedOn, r.SavedText, detail} {
			b.WriteString("<td>" + html.EscapeString(v) + "</td>")
		}
		b.WriteString("</tr>")
	}
	b.WriteString("</tbody></table>")

	return previewConverter.ConvertString(b.String())
}

func truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max]) + "…"
}
