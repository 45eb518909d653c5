package sink

import (
	"encoding/csv"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/tealeg/xlsx/v2"

	"github.com/use-agent/savings/config"
	"github.com/use-agent/savings/models"
)

func strPtr(s string) *string { return &s }

func sampleRecords() []models.Record {
	return []models.Record{
		{
			Agency: "GSA", Description: "Lease, \"downtown\"", UploadedOn: "2/14/2025",
			Link: "https://www.fpds.gov/x", SavedText: "$1,234.50", SavedAmount: 1234.5,
			DetailData: strPtr(`{"Vendor":"ACME"}`),
		},
		{
			Agency: "DOD", Description: "Consulting", UploadedOn: "2/15/2025",
			SavedText: "SEE FPDS", SavedAmount: 0,
		},
	}
}

func fixedWriter(t *testing.T, format string) *Writer {
	t.Helper()
	w := NewWriter(config.OutputConfig{Dir: t.TempDir(), Prefix: "savings_data", Format: format})
	w.now = func() time.Time { return time.Date(2025, 3, 7, 14, 5, 9, 0, time.UTC) }
	return w
}

func TestFilename(t *testing.T) {
	w := NewWriter(config.OutputConfig{Dir: "out", Prefix: "savings_data", Format: "csv"})
	got := w.Filename(time.Date(2025, 3, 7, 14, 5, 9, 0, time.UTC))
	want := filepath.Join("out", "savings_data_20250307_140509.csv")
	if got != want {
		t.Errorf("Filename = %q, want %q", got, want)
	}
}

func TestWriteCSV(t *testing.T) {
	w := fixedWriter(t, "csv")
	path, err := w.Write(sampleRecords())
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if filepath.Base(path) != "savings_data_20250307_140509.csv" {
		t.Errorf("path = %s", path)
	}

	f, err := os.Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer f.Close()

	rows, err := csv.NewReader(f).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("got %d rows, want header + 2", len(rows))
	}
	if strings.Join(rows[0], ",") != strings.Join(Columns, ",") {
		t.Errorf("header = %v", rows[0])
	}
	if rows[1][1] != `Lease, "downtown"` {
		t.Errorf("quoted description = %q", rows[1][1])
	}
	if rows[1][5] != "1234.5" || rows[1][6] != `{"Vendor":"ACME"}` {
		t.Errorf("row 1 = %v", rows[1])
	}
	if rows[2][5] != "0" || rows[2][6] != "" || rows[2][3] != "" {
		t.Errorf("absence marker row = %v", rows[2])
	}
}

func TestWriteXLSX(t *testing.T) {
	w := fixedWriter(t, "xlsx")
	path, err := w.Write(sampleRecords())
	if err != nil {
		t.Fatalf("Write error: %v", err)
	}
	if !strings.HasSuffix(path, ".xlsx") {
		t.Errorf("path = %s", path)
	}

	f, err := xlsx.OpenFile(path)
	if err != nil {
		t.Fatalf("open xlsx: %v", err)
	}
	sheet, ok := f.Sheet[sheetName]
	if !ok {
		t.Fatalf("sheet %q missing", sheetName)
	}
	if len(sheet.Rows) != 3 {
		t.Fatalf("got %d rows, want 3", len(sheet.Rows))
	}
	if got := sheet.Rows[0].Cells[0].String(); got != "agency" {
		t.Errorf("header cell = %q", got)
	}
	if got := sheet.Rows[1].Cells[0].String(); got != "GSA" {
		t.Errorf("agency cell = %q", got)
	}
	amount, err := sheet.Rows[1].Cells[amountColumn].Float()
	if err != nil || amount != 1234.5 {
		t.Errorf("amount = %v, %v", amount, err)
	}
	if got := sheet.Rows[2].Cells[6].String(); got != "" {
		t.Errorf("absent detail cell = %q", got)
	}
}

func TestWriteFailure(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	if err := os.WriteFile(blocker, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}

	w := NewWriter(config.OutputConfig{Dir: filepath.Join(blocker, "sub"), Format: "csv"})
	_, err := w.Write(sampleRecords())
	var se *models.ScrapeError
	if !errors.As(err, &se) || se.Code != models.ErrCodeOutput {
		t.Errorf("err = %v, want %s", err, models.ErrCodeOutput)
	}
}

func TestSummarize(t *testing.T) {
	records := make([]models.Record, 12)
	for i := range records {
		records[i].SavedAmount = 250_000_000
	}
	s := Summarize(records)
	if s.Records != 12 {
		t.Errorf("Records = %d", s.Records)
	}
	if math.Abs(s.Billions-3.0) > 1e-9 {
		t.Errorf("Billions = %v, want 3", s.Billions)
	}
	if s.String() != "Total savings: $3.00 billion" {
		t.Errorf("String() = %q", s.String())
	}

	if got := Summarize(nil).String(); got != "Total savings: $0.00 billion" {
		t.Errorf("empty summary = %q", got)
	}
}

func TestPreview(t *testing.T) {
	out, err := Preview(sampleRecords(), 5)
	if err != nil {
		t.Fatalf("Preview error: %v", err)
	}
	for _, want := range []string{"Agency", "GSA", "DOD", "|"} {
		if !strings.Contains(out, want) {
			t.Errorf("preview missing %q:\n%s", want, out)
		}
	}

	out, err = Preview(sampleRecords(), 1)
	if err != nil {
		t.Fatalf("Preview error: %v", err)
	}
	if strings.Contains(out, "DOD") {
		t.Errorf("preview should stop after 1 row:\n%s", out)
	}

	if out, _ := Preview(nil, 5); out != "" {
		t.Errorf("empty preview = %q", out)
	}
}
