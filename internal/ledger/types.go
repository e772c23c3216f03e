package ledger

import (
	"fmt"
	"strings"
)

// Date and time layouts used in the persisted ledger.
const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04:05"
)

// Event is one attendance row: a person was first seen on a given day.
// Immutable once written; removal is an operator action on the file,
// never a ledger operation.
type Event struct {
	IdentityID  string
	DisplayName string
	Attributes  map[string]string
	Date        string // YYYY-MM-DD
	Time        string // HH:MM:SS
}

// Column maps an identity attribute key to the header label written in
// the ledger file.
type Column struct {
	Key   string
	Label string
}

// Format selects the physical ledger encoding. Schema and dedup
// semantics are identical across formats.
type Format string

const (
	FormatCSV      Format = "csv"
	FormatWorkbook Format = "xlsx"
)

// ParseFormat maps a config value to a Format.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "csv", "":
		return FormatCSV, nil
	case "xlsx", "workbook", "excel":
		return FormatWorkbook, nil
	default:
		return "", fmt.Errorf("unknown ledger format %q (want csv or xlsx)", s)
	}
}

// Ext returns the file extension for the format.
func (f Format) Ext() string {
	return string(f)
}

// Fixed header labels flanking the attribute columns.
const (
	headerIdentityID  = "identity_id"
	headerDisplayName = "display_name"
	headerDate        = "date"
	headerTime        = "time"
)

// header builds the full header row for a set of attribute columns.
func header(cols []Column) []string {
	row := make([]string, 0, len(cols)+4)
	row = append(row, headerIdentityID, headerDisplayName)
	for _, c := range cols {
		row = append(row, c.Label)
	}
	return append(row, headerDate, headerTime)
}

// eventRow renders an event in header order.
func eventRow(e Event, cols []Column) []string {
	row := make([]string, 0, len(cols)+4)
	row = append(row, e.IdentityID, e.DisplayName)
	for _, c := range cols {
		row = append(row, e.Attributes[c.Key])
	}
	return append(row, e.Date, e.Time)
}

// columnsFromHeader recovers attribute columns from a file's header row,
// resolving labels back to keys via the configured columns. Unknown
// labels keep their data under a derived key, so files written by newer
// schemas still round-trip.
func columnsFromHeader(row []string, configured []Column) ([]Column, bool) {
	if len(row) < 4 || row[0] != headerIdentityID || row[len(row)-2] != headerDate {
		return nil, false
	}
	labels := row[2 : len(row)-2]
	cols := make([]Column, 0, len(labels))
	for _, label := range labels {
		key := ""
		for _, c := range configured {
			if strings.EqualFold(c.Label, label) {
				key = c.Key
				break
			}
		}
		if key == "" {
			key = deriveKey(label)
		}
		cols = append(cols, Column{Key: key, Label: label})
	}
	return cols, true
}

func deriveKey(label string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(label)), " ", "_")
}

// rowEvent parses a data row in header order. Rows that are too short
// for the header are rejected.
func rowEvent(row []string, cols []Column) (Event, bool) {
	if len(row) < len(cols)+4 {
		return Event{}, false
	}
	e := Event{
		IdentityID:  row[0],
		DisplayName: row[1],
		Date:        row[len(cols)+2],
		Time:        row[len(cols)+3],
	}
	for i, c := range cols {
		v := row[2+i]
		if v == "" {
			continue
		}
		if e.Attributes == nil {
			e.Attributes = make(map[string]string, len(cols))
		}
		e.Attributes[c.Key] = v
	}
	return e, true
}
