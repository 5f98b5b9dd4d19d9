// Package export writes records as NDJSON, JSON, CSV or XLSX documents, and
// renders articles as PDF.
package export

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/alpha-framework/alpha/internal/apperr"
	"github.com/alpha-framework/alpha/internal/models"
)

// flushEvery is how many records are written between flushes of a streaming
// HTTP response.
const flushEvery = 100

// Writer receives records one at a time. rec is used by the JSON formats and
// row by the tabular ones. Close finishes the document.
type Writer interface {
	Write(rec any, row []string) error
	Close() error
}

// NewWriter creates a writer for format. sheet names the XLSX worksheet and
// header is the column row of the tabular formats.
func NewWriter(w io.Writer, format, sheet string, header []string) (Writer, error) {
	switch format {
	case models.FormatNDJSON:
		return &ndjsonWriter{w: w, enc: json.NewEncoder(w), flusher: asFlusher(w)}, nil
	case models.FormatJSON:
		return &jsonWriter{w: w}, nil
	case models.FormatCSV:
		cw := csv.NewWriter(w)
		if err := cw.Write(header); err != nil {
			return nil, err
		}
		return &csvWriter{w: cw, flusher: asFlusher(w)}, nil
	case models.FormatXLSX:
		wb := NewWorkbook()
		sh, err := wb.AddSheet(sheet, header)
		if err != nil {
			wb.Close()
			return nil, err
		}
		return &xlsxWriter{out: w, wb: wb, sheet: sh}, nil
	default:
		return nil, fmt.Errorf("unsupported format %q: %w", format, apperr.ErrIllegalArgument)
	}
}

// ContentType returns the MIME type of an export format.
func ContentType(format string) string {
	switch format {
	case models.FormatNDJSON:
		return "application/x-ndjson"
	case models.FormatJSON:
		return "application/json"
	case models.FormatCSV:
		return "text/csv"
	case models.FormatXLSX:
		return "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
	default:
		return "application/octet-stream"
	}
}

// Filename returns "<resource>.<format>".
func Filename(resource, format string) string {
	return resource + "." + format
}

func asFlusher(w io.Writer) http.Flusher {
	f, _ := w.(http.Flusher)
	return f
}

type ndjsonWriter struct {
	w       io.Writer
	enc     *json.Encoder
	flusher http.Flusher
	count   int
}

func (n *ndjsonWriter) Write(rec any, _ []string) error {
	if err := n.enc.Encode(rec); err != nil {
		return err
	}
	n.count++
	if n.count%flushEvery == 0 && n.flusher != nil {
		n.flusher.Flush()
	}
	return nil
}

func (n *ndjsonWriter) Close() error { return nil }

type jsonWriter struct {
	w       io.Writer
	started bool
}

func (j *jsonWriter) Write(rec any, _ []string) error {
	sep := ","
	if !j.started {
		sep = "["
		j.started = true
	}
	if _, err := io.WriteString(j.w, sep); err != nil {
		return err
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	_, err = j.w.Write(data)
	return err
}

func (j *jsonWriter) Close() error {
	end := "]"
	if !j.started {
		end = "[]"
	}
	_, err := io.WriteString(j.w, end)
	return err
}

type csvWriter struct {
	w       *csv.Writer
	flusher http.Flusher
	count   int
}

func (c *csvWriter) Write(_ any, row []string) error {
	if err := c.w.Write(row); err != nil {
		return err
	}
	c.count++
	if c.count%flushEvery == 0 {
		c.w.Flush()
		if c.flusher != nil {
			c.flusher.Flush()
		}
	}
	return nil
}

func (c *csvWriter) Close() error {
	c.w.Flush()
	return c.w.Error()
}

type xlsxWriter struct {
	out   io.Writer
	wb    *Workbook
	sheet *Sheet
}

func (x *xlsxWriter) Write(_ any, row []string) error {
	return x.sheet.Append(row)
}

func (x *xlsxWriter) Close() error {
	defer x.wb.Close()
	return x.wb.Save(x.out)
}
