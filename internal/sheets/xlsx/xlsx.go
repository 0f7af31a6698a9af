// Package xlsx writes the schedule and payment log to a local Excel
// workbook, the offline counterpart of the Google Sheets export.
package xlsx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"heristone/internal/core"
	"heristone/internal/sheets"
)

const (
	defaultSheet = "Sheet1"
	columnWidth  = 14
)

type Config struct {
	Path          string
	ScheduleSheet string
	PaymentsSheet string
}

// Exporter renders workbooks. Export replaces the file at Path.
type Exporter struct {
	path          string
	scheduleSheet string
	paymentsSheet string
}

func New(cfg Config) (*Exporter, error) {
	if cfg.Path == "" {
		return nil, errors.New("missing XLSX_EXPORT_PATH")
	}
	e := &Exporter{
		path:          cfg.Path,
		scheduleSheet: cfg.ScheduleSheet,
		paymentsSheet: cfg.PaymentsSheet,
	}
	if e.scheduleSheet == "" {
		e.scheduleSheet = "Schedule"
	}
	if e.paymentsSheet == "" {
		e.paymentsSheet = "Payments"
	}
	if e.scheduleSheet == e.paymentsSheet {
		return nil, fmt.Errorf("schedule and payments sheets must differ: %q", e.scheduleSheet)
	}
	return e, nil
}

// Path returns the file Export writes to.
func (e *Exporter) Path() string { return e.path }

// Write renders the workbook for doc to w.
func (e *Exporter) Write(w io.Writer, doc core.Document, now time.Time) error {
	f, err := e.workbook(doc, now)
	if err != nil {
		return err
	}
	defer f.Close()

	if err := f.Write(w); err != nil {
		return fmt.Errorf("write workbook: %w", err)
	}
	return nil
}

// Export writes the workbook next to Path and renames it into place, so
// readers never see a partial file.
func (e *Exporter) Export(ctx context.Context, doc core.Document, now time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(filepath.Dir(e.path), ".heristone-*.xlsx")
	if err != nil {
		return fmt.Errorf("create temp workbook: %w", err)
	}
	defer os.Remove(tmp.Name())

	if err := e.Write(tmp, doc, now); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp workbook: %w", err)
	}
	if err := os.Rename(tmp.Name(), e.path); err != nil {
		return fmt.Errorf("replace %s: %w", e.path, err)
	}

	slog.InfoContext(ctx, "Exported document to workbook",
		"path", e.path,
		"installments", len(doc.Plan))
	return nil
}

func (e *Exporter) workbook(doc core.Document, now time.Time) (*excelize.File, error) {
	f := excelize.NewFile()
	if err := f.SetSheetName(defaultSheet, e.scheduleSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if _, err := f.NewSheet(e.paymentsSheet); err != nil {
		f.Close()
		return nil, fmt.Errorf("add sheet %s: %w", e.paymentsSheet, err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	if err := writeRows(f, e.scheduleSheet, sheets.ScheduleRows(doc, now), header); err != nil {
		f.Close()
		return nil, err
	}
	if err := writeRows(f, e.paymentsSheet, sheets.PaymentRows(doc), header); err != nil {
		f.Close()
		return nil, err
	}
	f.SetActiveSheet(0)
	return f, nil
}

func writeRows(f *excelize.File, sheet string, rows [][]interface{}, headerStyle int) error {
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(sheet, cell, &row); err != nil {
			return fmt.Errorf("write %s row %d: %w", sheet, i+1, err)
		}
	}
	if len(rows) == 0 {
		return nil
	}

	last, err := excelize.ColumnNumberToName(len(rows[0]))
	if err != nil {
		return err
	}
	if err := f.SetColWidth(sheet, "A", last, columnWidth); err != nil {
		return fmt.Errorf("size %s columns: %w", sheet, err)
	}
	if err := f.SetRowStyle(sheet, 1, 1, headerStyle); err != nil {
		return fmt.Errorf("style %s header: %w", sheet, err)
	}
	return nil
}
