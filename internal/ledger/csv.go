package ledger

import (
	"encoding/csv"
	"errors"
	"io"
	"log"
	"os"
)

// csvCodec stores events as comma-separated text with a header row, one
// row per event.
type csvCodec struct{}

func (csvCodec) read(path string, configured []Column) ([]Event, []Column, error) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1 // rows validated against the header below

	rows, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}
	if len(rows) == 0 {
		return nil, nil, nil
	}

	cols, ok := columnsFromHeader(rows[0], configured)
	if !ok {
		return nil, nil, errors.New("ledger csv: unrecognized header row")
	}

	events := make([]Event, 0, len(rows)-1)
	skipped := 0
	for _, row := range rows[1:] {
		e, ok := rowEvent(row, cols)
		if !ok {
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

func (csvCodec) encode(w io.Writer, cols []Column, events []Event) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header(cols)); err != nil {
		return err
	}
	for _, e := range events {
		if err := cw.Write(eventRow(e, cols)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
