package xlsx

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"heristone/internal/core"
)

func testDocument() core.Document {
	return core.Document{
		Project: core.ProjectInfo{Name: "p", ContractDate: core.NewDate(2024, 1, 1)},
		Plan: []core.Installment{
			{
				ID: 1, Name: "1차", PlannedAmount: 100000000, InterestRate: 5,
				DueDate: core.NewDate(2024, 6, 1),
				History: []core.Payment{
					{ID: 10, Amount: 50000000, Date: core.NewDate(2024, 7, 1), Memo: "이체"},
				},
			},
			{ID: 2, Name: "2차", PlannedAmount: 100000000, InterestRate: 5, DueDate: core.NewDate(2024, 12, 1)},
		},
	}
}

func TestNew(t *testing.T) {
	_, err := New(Config{})
	require.EqualError(t, err, "missing XLSX_EXPORT_PATH")

	_, err = New(Config{Path: "a.xlsx", ScheduleSheet: "S", PaymentsSheet: "S"})
	require.Error(t, err)

	e, err := New(Config{Path: "a.xlsx"})
	require.NoError(t, err)
	assert.Equal(t, "Schedule", e.scheduleSheet)
	assert.Equal(t, "Payments", e.paymentsSheet)
	assert.Equal(t, "a.xlsx", e.Path())
}

func TestExporter_Write(t *testing.T) {
	e, err := New(Config{Path: "unused.xlsx", ScheduleSheet: "일정", PaymentsSheet: "납부"})
	require.NoError(t, err)

	var buf bytes.Buffer
	now := time.Date(2024, 8, 1, 12, 0, 0, 0, time.UTC)
	require.NoError(t, e.Write(&buf, testDocument(), now))

	f, err := excelize.OpenReader(&buf)
	require.NoError(t, err)
	defer f.Close()

	assert.Equal(t, []string{"일정", "납부"}, f.GetSheetList())

	schedule, err := f.GetRows("일정")
	require.NoError(t, err)
	require.Len(t, schedule, 4)
	assert.Equal(t, "ID", schedule[0][0])
	assert.Equal(t, "1", schedule[1][0])
	assert.Equal(t, "overdue", schedule[1][4])
	assert.Equal(t, "1246575", schedule[1][10])
	assert.Equal(t, "D-122", schedule[2][3])
	assert.Equal(t, "합계", schedule[3][1])
	assert.Equal(t, "25.00%", schedule[3][12])

	payments, err := f.GetRows("납부")
	require.NoError(t, err)
	require.Len(t, payments, 2)
	assert.Equal(t, []string{"10", "1", "1차", "2024-07-01", "50000000", "1246575", "이체"}, payments[1])
}

func TestExporter_Export(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "heristone.xlsx")
	e, err := New(Config{Path: path})
	require.NoError(t, err)

	require.NoError(t, e.Export(context.Background(), testDocument(), time.Now()))
	// A second export replaces the file in place.
	require.NoError(t, e.Export(context.Background(), core.Document{}, time.Now()))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1, "temp files must not be left behind")

	f, err := excelize.OpenFile(path)
	require.NoError(t, err)
	defer f.Close()

	payments, err := f.GetRows("Payments")
	require.NoError(t, err)
	assert.Len(t, payments, 1, "empty document exports the header only")
}

func TestExporter_ExportCanceled(t *testing.T) {
	path := filepath.Join(t.TempDir(), "heristone.xlsx")
	e, err := New(Config{Path: path})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	require.ErrorIs(t, e.Export(ctx, testDocument(), time.Now()), context.Canceled)

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestExporter_ExportMissingDirectory(t *testing.T) {
	e, err := New(Config{Path: filepath.Join(t.TempDir(), "missing", "heristone.xlsx")})
	require.NoError(t, err)
	assert.Error(t, e.Export(context.Background(), testDocument(), time.Now()))
}
