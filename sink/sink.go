// Package sink persists records and computes the run summary.
package sink

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/use-agent/savings/config"
	"github.com/use-agent/savings/models"
)

// Columns is the output header, in order.
var Columns = []string{
	"agency",
	"description",
	"uploaded_on",
	"link",
	"saved_text",
	"saved_amount",
	"detail_data",
}

// Writer writes a record set to a timestamped file.
type Writer struct {
	cfg config.OutputConfig
	now func() time.Time
}

// NewWriter creates a Writer.
func NewWriter(cfg config.OutputConfig) *Writer {
	if cfg.Dir == "" {
		cfg.Dir = "."
	}
	if cfg.Prefix == "" {
		cfg.Prefix = "savings_data"
	}
	if cfg.Format == "" {
		cfg.Format = "csv"
	}
	return &Writer{cfg: cfg, now: time.Now}
}

// Format returns the configured output format.
func (w *Writer) Format() string {
	return w.cfg.Format
}

// Filename returns the output path for a run finished at t:
// <dir>/<prefix>_YYYYMMDD_HHMMSS.<format>.
func (w *Writer) Filename(t time.Time) string {
	name := fmt.Sprintf("%s_%s.%s", w.cfg.Prefix, t.Format("20060102_150405"), w.cfg.Format)
	return filepath.Join(w.cfg.Dir, name)
}

// Write persists every record, one row each, and returns the file path.
func (w *Writer) Write(records []models.Record) (string, error) {
	if err := os.MkdirAll(w.cfg.Dir, 0o755); err != nil {
		return "", models.NewScrapeError(models.ErrCodeOutput, "failed to create output directory", err)
	}

	path := w.Filename(w.now())

	var err error
	switch w.cfg.Format {
	case "csv":
		err = writeCSV(path, records)
	case "xlsx":
		err = writeXLSX(path, records)
	default:
		return "", models.NewScrapeError(models.ErrCodeInvalidInput,
			fmt.Sprintf("unknown output format %q", w.cfg.Format), nil)
	}
	if err != nil {
		return "", models.NewScrapeError(models.ErrCodeOutput, "failed to write "+path, err)
	}
	return path, nil
}

// fields flattens a record into output columns. A nil DetailData is written
// as an empty field.
func fields(r models.Record) []string {
	detail := ""
	if r.HasDetail() {
		detail = *r.DetailData
	}
	return []string{
		r.Agency,
		r.Description,
		r.UploadedOn,
		r.Link,
		r.SavedText,
		strconv.FormatFloat(r.SavedAmount, 'f', -1, 64),
		detail,
	}
}
