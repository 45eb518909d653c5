package sink

import (
	"encoding/csv"
	"fmt"
	"os"

	"github.com/use-agent/savings/models"
)

func writeCSV(path string, records []models.Record) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create csv: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("close csv: %w", cerr)
		}
	}()

	w := csv.NewWriter(f)
	if err := w.Write(Columns); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for i, r := range records {
		if err := w.Write(fields(r)); err != nil {
			return fmt.Errorf("write csv row %d: %w", i, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}
