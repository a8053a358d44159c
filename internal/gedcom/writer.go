package gedcom

import (
	"bufio"
	"fmt"
	"io"
	"time"
)

// Header describes the fixed HEAD and SUBM records of a document.
type Header struct {
	Source    string // generator name
	Version   string // generator version
	Date      time.Time
	Submitter string
	Language  string
	Note      string // optional content description
}

// Writer emits GEDCOM lines. The first write error is kept and every later
// write becomes a no-op, so callers check Flush once at the end.
type Writer struct {
	w   *bufio.Writer
	err error
}

// NewWriter wraps w in a buffered GEDCOM writer.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: bufio.NewWriter(w)}
}

// Line writes a logical line through Cont, wrapping long or multi-line values.
func (w *Writer) Line(line string) {
	w.write(Cont(line))
}

// Linef formats and writes a logical line through Cont.
func (w *Writer) Linef(format string, args ...any) {
	w.Line(fmt.Sprintf(format, args...))
}

// Plainf writes a short line verbatim. Used for tags whose values are
// bounded and never contain line breaks.
func (w *Writer) Plainf(format string, args ...any) {
	w.write(fmt.Sprintf(format, args...) + "\n")
}

// Header writes the HEAD and SUBM records.
func (w *Writer) Header(h Header) {
	w.Plainf("0 HEAD")
	w.Plainf("1 CHAR UTF-8")
	w.Plainf("1 GEDC")
	w.Plainf("2 VERS 5.5.1")
	w.Plainf("2 FORM LINEAGE-LINKED")
	w.Plainf("1 SOUR %s", h.Source)
	w.Plainf("2 VERS %s", h.Version)
	w.Plainf("2 NAME %s", h.Source)
	w.Plainf("1 DATE %s", h.Date.Format("02 Jan 2006"))
	w.Plainf("2 TIME %s", h.Date.Format("15:04:05"))
	if h.Note != "" {
		w.Linef("1 NOTE %s", h.Note)
	}
	w.Plainf("1 SUBM @SUBM@")
	w.Plainf("0 @SUBM@ SUBM")
	w.Linef("1 NAME %s", h.Submitter)
	w.Plainf("1 LANG %s", h.Language)
}

// Trailer writes the closing TRLR record.
func (w *Writer) Trailer() {
	w.Plainf("0 TRLR")
}

// Err reports the first write error, if any.
func (w *Writer) Err() error {
	return w.err
}

// Flush flushes buffered output and returns the first error seen.
func (w *Writer) Flush() error {
	if w.err != nil {
		return w.err
	}
	w.err = w.w.Flush()
	return w.err
}

func (w *Writer) write(s string) {
	if w.err != nil {
		return
	}
	_, w.err = w.w.WriteString(s)
}

// IndiRef returns the cross-reference pointer of an individual record.
func IndiRef(ordinal int) string {
	return fmt.Sprintf("@I%d@", ordinal)
}

// FamRef returns the cross-reference pointer of a family record.
func FamRef(ordinal int) string {
	return fmt.Sprintf("@F%d@", ordinal)
}
