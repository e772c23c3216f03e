// Package ledger owns the append-only attendance log. Each identity is
// logged at most once per calendar day; the duplicate check and the
// append happen under one exclusive cross-process file lock, so
// concurrent sessions against the same file cannot write duplicate
// rows. Two physical encodings (csv, xlsx workbook) carry the same
// schema and the same semantics.
package ledger

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kozaktomas/face-attendance/internal/atomicfile"
	"github.com/kozaktomas/face-attendance/internal/lockfile"
	"github.com/kozaktomas/face-attendance/internal/store"
)

// ErrAlreadyLogged reports that the identity already has an event for
// the date. A normal control outcome, not a failure.
var ErrAlreadyLogged = errors.New("ledger: identity already logged for this date")

const defaultLockTimeout = 5 * time.Second

// codec is one physical encoding of the ledger file.
type codec interface {
	read(path string, configured []Column) ([]Event, []Column, error)
	encode(w io.Writer, cols []Column, events []Event) error
}

// writeFile persists events through the codec with a whole-file atomic
// replace.
func writeFile(c codec, path string, cols []Column, events []Event) error {
	return atomicfile.WriteFile(path, func(w io.Writer) error {
		return c.encode(w, cols, events)
	})
}

func codecFor(f Format) codec {
	if f == FormatWorkbook {
		return workbookCodec{}
	}
	return csvCodec{}
}

// Options configures a Ledger.
type Options struct {
	// AttributeColumns are the identity attributes written between
	// display_name and date. An existing file's own header wins, so
	// older ledgers keep their column set.
	AttributeColumns []Column
	// LockTimeout bounds the wait for the exclusive file lock.
	LockTimeout time.Duration
}

// Ledger appends attendance events to a single file.
type Ledger struct {
	path        string
	format      Format
	codec       codec
	attrColumns []Column
	lockTimeout time.Duration
}

func New(path string, format Format, opts Options) *Ledger {
	if opts.LockTimeout <= 0 {
		opts.LockTimeout = defaultLockTimeout
	}
	return &Ledger{
		path:        path,
		format:      format,
		codec:       codecFor(format),
		attrColumns: opts.AttributeColumns,
		lockTimeout: opts.LockTimeout,
	}
}

// Format returns the ledger's physical encoding.
func (l *Ledger) Format() Format {
	return l.format
}

// Path returns the ledger file path.
func (l *Ledger) Path() string {
	return l.path
}

func (l *Ledger) lockPath() string {
	return l.path + ".lock"
}

// HasLoggedToday reports whether the identity already has an event for
// the date (YYYY-MM-DD). Reads without a lock: the whole-file replace
// discipline guarantees a complete file either way.
func (l *Ledger) HasLoggedToday(ctx context.Context, identityID, date string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	events, _, err := l.codec.read(l.path, l.attrColumns)
	if err != nil {
		return false, err
	}
	return hasEvent(events, identityID, date), nil
}

// Record appends one attendance event for the identity at the given
// time, unless one already exists for that day. The duplicate check
// runs again under the exclusive lock immediately before the append, so
// two concurrent sessions cannot both write the same (identity, day)
// pair. Returns ErrAlreadyLogged when the event exists.
func (l *Ledger) Record(ctx context.Context, id store.Identity, now time.Time) error {
	if err := os.MkdirAll(filepath.Dir(l.path), 0755); err != nil {
		return err
	}

	lock, err := lockfile.Acquire(ctx, l.lockPath(), l.lockTimeout)
	if err != nil {
		return err
	}
	defer lock.Release()

	events, cols, err := l.codec.read(l.path, l.attrColumns)
	if err != nil {
		return err
	}
	if cols == nil {
		cols = l.attrColumns
	}

	date := now.Format(DateLayout)
	if hasEvent(events, id.ID, date) {
		return ErrAlreadyLogged
	}

	events = append(events, Event{
		IdentityID:  id.ID,
		DisplayName: id.DisplayName,
		Attributes:  id.Attributes,
		Date:        date,
		Time:        now.Format(TimeLayout),
	})
	return writeFile(l.codec, l.path, cols, events)
}

// EventsFor returns events within the inclusive date range, in ledger
// order (append order, which is chronological). Empty bounds leave that
// side open. Each call re-reads the file, so iteration is restartable
// and sees writes from other processes.
func (l *Ledger) EventsFor(ctx context.Context, from, to string) ([]Event, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	events, _, err := l.codec.read(l.path, l.attrColumns)
	if err != nil {
		return nil, err
	}
	if from == "" && to == "" {
		return events, nil
	}

	// ISO dates compare correctly as strings.
	out := events[:0:0]
	for _, e := range events {
		if from != "" && e.Date < from {
			continue
		}
		if to != "" && e.Date > to {
			continue
		}
		out = append(out, e)
	}
	return out, nil
}

// Export writes the ledger's events to another path in the requested
// format, converting encodings when they differ. The destination is an
// operator-chosen file outside the ledger's ownership and is written
// without the ledger lock.
func (l *Ledger) Export(ctx context.Context, path string, format Format) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	events, cols, err := l.codec.read(l.path, l.attrColumns)
	if err != nil {
		return err
	}
	if cols == nil {
		cols = l.attrColumns
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return writeFile(codecFor(format), path, cols, events)
}

// EncodeTo streams the ledger's events within the inclusive date range
// to w in the requested format, for report downloads.
func (l *Ledger) EncodeTo(ctx context.Context, w io.Writer, format Format, from, to string) error {
	events, err := l.EventsFor(ctx, from, to)
	if err != nil {
		return err
	}
	cols := l.attrColumns
	if _, fileCols, err := l.codec.read(l.path, l.attrColumns); err == nil && fileCols != nil {
		cols = fileCols
	}
	return codecFor(format).encode(w, cols, events)
}

func hasEvent(events []Event, identityID, date string) bool {
	for _, e := range events {
		if e.IdentityID == identityID && e.Date == date {
			return true
		}
	}
	return false
}
