// Package sheets renders the document as spreadsheet rows shared by the
// Google Sheets and xlsx exporters.
package sheets

import (
	"fmt"
	"time"

	"heristone/internal/core"
)

var (
	scheduleHeader = []interface{}{
		"ID", "차수", "납부 기한", "D-Day", "상태", "계획 금액", "납부 금액", "잔액",
		"이율(%)", "납부 횟수", "발생 이자", "예상 이자", "메모",
	}
	paymentsHeader = []interface{}{
		"납부 ID", "차수 ID", "차수", "납부일", "금액", "이자", "메모",
	}
)

// ScheduleRows renders the installment table, header first.
func ScheduleRows(doc core.Document, now time.Time) [][]interface{} {
	schedule := core.BuildSchedule(doc, now)
	rows := make([][]interface{}, 0, len(schedule)+2)
	rows = append(rows, scheduleHeader)
	for _, r := range schedule {
		rows = append(rows, []interface{}{
			r.ID,
			r.Name,
			r.DueDate.String(),
			core.FormatDDay(r.DDay),
			string(r.Status),
			r.PlannedAmount,
			r.PaidAmount,
			r.Remaining,
			r.InterestRate,
			r.PaymentCount,
			RoundWon(r.AccruedInterest),
			RoundWon(r.EstimatedInterest),
			r.Memo,
		})
	}

	stats := core.ComputeStats(doc)
	rows = append(rows, []interface{}{
		"", "합계", "", "", "",
		stats.TotalPlanned,
		stats.TotalPaid,
		stats.RemainingAmount,
		"",
		stats.PaymentCount,
		RoundWon(stats.AccruedInterest),
		RoundWon(stats.TotalEstimatedInterest),
		fmt.Sprintf("%.2f%%", stats.ProgressPercentage),
	})
	return rows
}

// PaymentRows renders every recorded payment in plan then history order.
func PaymentRows(doc core.Document) [][]interface{} {
	contract := doc.Project.ContractDate
	rows := [][]interface{}{paymentsHeader}
	for _, inst := range doc.Plan {
		for _, p := range inst.History {
			rows = append(rows, []interface{}{
				p.ID,
				inst.ID,
				inst.Name,
				p.Date.String(),
				p.Amount,
				RoundWon(core.PaymentInterest(p.Amount, inst.InterestRate, contract, p.Date)),
				p.Memo,
			})
		}
	}
	return rows
}

// RoundWon rounds a won amount half away from zero.
func RoundWon(v float64) int64 {
	if v < 0 {
		return -int64(-v + 0.5)
	}
	return int64(v + 0.5)
}
