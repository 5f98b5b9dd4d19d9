package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"
)

const defaultSheet = "Sheet1"

// Workbook is an XLSX document whose sheets are written row by row with
// excelize stream writers. Sheets are written one after another; adding a
// sheet finishes the previous one.
type Workbook struct {
	f       *excelize.File
	bold    int
	current *Sheet
	sheets  int
}

// Sheet is one worksheet being streamed.
type Sheet struct {
	name string
	sw   *excelize.StreamWriter
	row  int
}

// NewWorkbook creates an empty workbook.
func NewWorkbook() *Workbook {
	return &Workbook{f: excelize.NewFile()}
}

// AddSheet starts a new worksheet with a bold header row.
func (wb *Workbook) AddSheet(name string, header []string) (*Sheet, error) {
	if err := wb.finishCurrent(); err != nil {
		return nil, err
	}

	if wb.sheets == 0 {
		if err := wb.f.SetSheetName(defaultSheet, name); err != nil {
			return nil, fmt.Errorf("rename sheet: %w", err)
		}
		style, err := wb.f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
		if err != nil {
			return nil, err
		}
		wb.bold = style
	} else if _, err := wb.f.NewSheet(name); err != nil {
		return nil, fmt.Errorf("add sheet %s: %w", name, err)
	}
	wb.sheets++

	sw, err := wb.f.NewStreamWriter(name)
	if err != nil {
		return nil, err
	}
	sh := &Sheet{name: name, sw: sw}
	wb.current = sh

	if len(header) > 0 {
		cells := make([]any, len(header))
		for i, h := range header {
			cells[i] = excelize.Cell{StyleID: wb.bold, Value: h}
		}
		if err := sh.appendCells(cells); err != nil {
			return nil, err
		}
	}
	return sh, nil
}

// Append writes one row below the previous one.
func (s *Sheet) Append(row []string) error {
	cells := make([]any, len(row))
	for i, v := range row {
		cells[i] = v
	}
	return s.appendCells(cells)
}

func (s *Sheet) appendCells(cells []any) error {
	s.row++
	cell, err := excelize.CoordinatesToCellName(1, s.row)
	if err != nil {
		return err
	}
	return s.sw.SetRow(cell, cells)
}

// Rows returns the number of rows written, header included.
func (s *Sheet) Rows() int { return s.row }

func (wb *Workbook) finishCurrent() error {
	if wb.current == nil {
		return nil
	}
	err := wb.current.sw.Flush()
	wb.current = nil
	return err
}

// Save finishes the last sheet and writes the document.
func (wb *Workbook) Save(w io.Writer) error {
	if err := wb.finishCurrent(); err != nil {
		return err
	}
	_, err := wb.f.WriteTo(w)
	return err
}

// Close releases the workbook's temporary files.
func (wb *Workbook) Close() error {
	return wb.f.Close()
}
