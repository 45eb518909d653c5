// Package extract maps raw table rows onto savings records.
package extract

import (
	"math"
	"strconv"
	"strings"

	"github.com/use-agent/savings/models"
)

// minCells is the number of cells a data row must carry.
const minCells = 5

// marker is the text of the pagination trigger row.
const marker = "see more"

// Stats counts what happened to the rows handed to Records.
type Stats struct {
	Rows          int
	Records       int
	SkippedMarker int
	SkippedShort  int
}

// Records converts rows into records, preserving order. Pagination marker
// rows and rows with fewer than five cells are skipped silently.
func Records(rows []models.RawRow) ([]models.Record, Stats) {
	stats := Stats{Rows: len(rows)}
	records := make([]models.Record, 0, len(rows))

	for _, row := range rows {
		if isMarkerRow(row) {
			stats.SkippedMarker++
			continue
		}
		if len(row) < minCells {
			stats.SkippedShort++
			continue
		}
		records = append(records, fromRow(row))
	}

	stats.Records = len(records)
	return records, stats
}

func fromRow(row models.RawRow) models.Record {
	savedText := row[4].Text
	amount, ok := ParseCurrency(savedText)
	if !ok {
		amount = 0
	}
	return models.Record{
		Agency:      row[0].Text,
		Description: row[1].Text,
		UploadedOn:  row[2].Text,
		Link:        row[3].Href,
		SavedText:   savedText,
		SavedAmount: amount,
	}
}

// isMarkerRow reports whether row is the single-cell "see more" trigger.
func isMarkerRow(row models.RawRow) bool {
	return len(row) == 1 && strings.Contains(strings.ToLower(row[0].Text), marker)
}

// ParseCurrency parses a display amount such as "$1,234.50". Dollar signs,
// thousands separators and surrounding spaces are removed before parsing.
// ok is false for anything that is not a finite number ("SEE FPDS", "").
func ParseCurrency(text string) (value float64, ok bool) {
	cleaned := strings.NewReplacer("$", "", ",", "").Replace(text)
	cleaned = strings.TrimSpace(cleaned)
	if cleaned == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}
