package sink

import (
	"fmt"

	"github.com/tealeg/xlsx/v2"

	"github.com/use-agent/savings/models"
)

const sheetName = "savings"

// amountColumn is the index of saved_amount, written as a number.
const amountColumn = 5

func writeXLSX(path string, records []models.Record) error {
	f := xlsx.NewFile()
	sheet, err := f.AddSheet(sheetName)
	if err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}

	header := sheet.AddRow()
	for _, col := range Columns {
		header.AddCell().SetString(col)
	}

	for _, r := range records {
		row := sheet.AddRow()
		for i, v := range fields(r) {
			cell := row.AddCell()
			if i == amountColumn {
				cell.SetFloat(r.SavedAmount)
				continue
			}
			cell.SetString(v)
		}
	}

	if err := f.Save(path); err != nil {
		return fmt.Errorf("save xlsx: %w", err)
	}
	return nil
}
