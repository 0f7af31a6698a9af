package google

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"heristone/internal/core"
	"heristone/internal/sheets"
)

// Export overwrites the schedule and payments sheets with the document.
// Both sheets are written concurrently; the first failure cancels the other.
func (c *Client) Export(ctx context.Context, doc core.Document, now time.Time) error {
	schedule := sheets.ScheduleRows(doc, now)
	payments := sheets.PaymentRows(doc)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return c.replaceSheet(gctx, c.scheduleSheet, schedule)
	})
	g.Go(func() error {
		return c.replaceSheet(gctx, c.paymentsSheet, payments)
	})
	if err := g.Wait(); err != nil {
		return err
	}

	slog.InfoContext(ctx, "Exported document to Google Sheets",
		"spreadsheet_id", c.spreadsheetID,
		"installments", len(schedule)-2,
		"payments", len(payments)-1)
	return nil
}

func (c *Client) replaceSheet(ctx context.Context, sheet string, rows [][]interface{}) error {
	if err := c.values.Clear(ctx, c.spreadsheetID, fmt.Sprintf("%s!A:Z", sheet)); err != nil {
		return fmt.Errorf("clear %s: %w", sheet, err)
	}
	if err := c.values.Update(ctx, c.spreadsheetID, fmt.Sprintf("%s!A1", sheet), rows); err != nil {
		return fmt.Errorf("write %s: %w", sheet, err)
	}
	return nil
}
