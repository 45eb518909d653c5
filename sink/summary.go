package sink

import (
	"fmt"

	"github.com/use-agent/savings/models"
)

// Summary is the aggregate reported at the end of a run.
type Summary struct {
	Records    int
	TotalSaved float64
	Billions   float64
}

// Summarize sums SavedAmount over every record given. Callers pass the full
// extracted set, so the total covers records that were never enriched.
func Summarize(records []models.Record) Summary {
	var total float64
	for _, r := range records {
		total += r.SavedAmount
	}
	return Summary{
		Records:    len(records),
		TotalSaved: total,
		Billions:   total / 1e9,
	}
}

func (s Summary) String() string {
	return fmt.Sprintf("Total savings: $%.2f billion", s.Billions)
}
