package services

import (
	"encoding/csv"
	"io"
	"time"
)

const exportPageSize = 100

type csvOut struct {
	w *csv.Writer
}

func newCSV(w io.Writer, header []string) *csvOut {
	out := &csvOut{w: csv.NewWriter(w)}
	_ = out.w.Write(header)
	return out
}

func (c *csvOut) row(fields ...string) error {
	return c.w.Write(fields)
}

func (c *csvOut) flush() error {
	c.w.Flush()
	return c.w.Error()
}

// eachPage calls fetch with growing offsets until it has seen total rows or
// a page comes back empty.
func eachPage(fetch func(offset, limit int) (got, total int, err error)) error {
	offset := 0
	for {
		got, total, err := fetch(offset, exportPageSize)
		if err != nil {
			return err
		}
		offset += got
		if got == 0 || offset >= total {
			return nil
		}
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func formatTimePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return formatTime(*t)
}
