package ledger

import (
	"errors"
	"io"
	"log"
	"os"

	"github.com/xuri/excelize/v2"
)

// workbookCodec stores events on the first sheet of a spreadsheet
// workbook, header row first, one row per event.
type workbookCodec struct{}

func (workbookCodec) read(path string, configured []Column) ([]Event, []Column, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	defer f.Close()

	sheet := f.GetSheetName(0)
	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	cols, ok := columnsFromHeader(rows[0], configured)
	if !ok {
		return nil, nil, errors.New("ledger workbook: unrecognized header row")
	}

	events := make([]Event, 0, len(rows)-1)
	skipped := 0
	for _, row := range rows[1:] {
		// GetRows trims trailing empty cells; pad back to header width.
		for len(row) < len(cols)+4 {
			row = append(row, "")
		}
		e, ok := rowEvent(row, cols)
		if !ok {
			skipped++
			continue
		}
		if e.IdentityID == "" && e.DisplayName == "" {
			skipped++
			continue
		}
		events = append(events, e)
	}
	if skipped > 0 {
		log.Printf("warning: skipped %d malformed row(s) in %s", skipped, path)
	}
	return events, cols, nil
}

func (workbookCodec) encode(w io.Writer, cols []Column, events []Event) error {
	f := excelize.NewFile()
	defer f.Close()

	sheet := f.GetSheetName(0)
	if err := setRow(f, sheet, 1, header(cols)); err != nil {
		return err
	}
	for i, e := range events {
		if err := setRow(f, sheet, i+2, eventRow(e, cols)); err != nil {
			return err
		}
	}
	return f.Write(w)
}

func setRow(f *excelize.File, sheet string, row int, values []string) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	cells := make([]interface{}, len(values))
	for i, v := range values {
		cells[i] = v
	}
	return f.SetSheetRow(sheet, cell, &cells)
}
