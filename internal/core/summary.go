package core

import (
	"sort"
	"time"
)

// DefaultCompletionTolerance is how far below its planned amount an
// installment may be paid and still count as settled for next-payment
// selection. Underpayments up to this many won are treated as rounding.
const DefaultCompletionTolerance int64 = 100001

// Stats is the dashboard snapshot derived from a document.
type Stats struct {
	TotalPaid              int64   `json:"totalPaid"`
	TotalPlanned           int64   `json:"totalPlanned"`
	RemainingAmount        int64   `json:"remainingAmount"`
	AccruedInterest        float64 `json:"accruedInterest"`
	TotalEstimatedInterest float64 `json:"totalEstimatedInterest"`
	ProgressPercentage     float64 `json:"progressPercentage"`
	TotalOptions           int64   `json:"totalOptions"`

	PaymentCount            int `json:"paymentCount"`
	InstallmentCount        int `json:"installmentCount"`
	CompletedInstallments   int `json:"completedInstallments"`
	OutstandingInstallments int `json:"outstandingInstallments"`
}

// ComputeStats rolls up every installment and option. Remaining amount and
// progress are both measured against the sum of planned installments, not
// the project's total price, so the two always agree.
func ComputeStats(doc Document) Stats {
	var s Stats
	for _, inst := range doc.Plan {
		paid := inst.PaidAmount()
		s.TotalPaid += paid
		s.TotalPlanned += inst.PlannedAmount
		s.PaymentCount += len(inst.History)
		if paid >= inst.PlannedAmount {
			s.CompletedInstallments++
		} else {
			s.OutstandingInstallments++
		}
	}
	s.InstallmentCount = len(doc.Plan)
	s.RemainingAmount = s.TotalPlanned - s.TotalPaid
	if s.TotalPlanned != 0 {
		s.ProgressPercentage = float64(s.TotalPaid) / float64(s.TotalPlanned) * 100
	}

	s.AccruedInterest = AccruedInterest(doc.Plan, doc.Project.ContractDate)
	s.TotalEstimatedInterest = EstimatedInterest(doc.Plan, doc.Project.ContractDate)

	for _, o := range doc.Options {
		s.TotalOptions += o.Price
	}
	return s
}

// NextPaymentInfo pairs the next installment to pay with its D-Day.
type NextPaymentInfo struct {
	Installment Installment `json:"installment"`
	DDay        int         `json:"dday"`
	Outstanding int64       `json:"outstanding"`
}

// NextPayment selects the earliest-due installment that is underpaid by more
// than DefaultCompletionTolerance.
func NextPayment(plan []Installment, now time.Time) (NextPaymentInfo, bool) {
	return NextPaymentWithTolerance(plan, now, DefaultCompletionTolerance)
}

// NextPaymentWithTolerance is NextPayment with an explicit tolerance. Ties on
// due date keep plan order. ok is false when nothing is left to pay.
func NextPaymentWithTolerance(plan []Installment, now time.Time, tolerance int64) (NextPaymentInfo, bool) {
	var candidates []Installment
	for _, inst := range plan {
		if inst.PaidAmount()+tolerance < inst.PlannedAmount {
			candidates = append(candidates, inst)
		}
	}
	if len(candidates) == 0 {
		return NextPaymentInfo{}, false
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].DueDate.Before(candidates[j].DueDate.Time)
	})
	next := candidates[0]
	return NextPaymentInfo{
		Installment: next,
		DDay:        DaysBetween(Today(now), next.DueDate),
		Outstanding: next.Outstanding(),
	}, true
}

// InstallmentStatus classifies an installment for display.
type InstallmentStatus string

const (
	StatusCompleted InstallmentStatus = "completed"
	StatusOverdue   InstallmentStatus = "overdue"
	StatusPending   InstallmentStatus = "pending"
)

// ScheduleRow is one line of the installment table.
type ScheduleRow struct {
	ID                int64             `json:"id"`
	Name              string            `json:"name"`
	PlannedAmount     int64             `json:"plannedAmount"`
	PaidAmount        int64             `json:"paidAmount"`
	Remaining         int64             `json:"remaining"`
	DueDate           Date              `json:"dueDate"`
	DDay              int               `json:"dday"`
	InterestRate      float64           `json:"interestRate"`
	Memo              string            `json:"memo"`
	Status            InstallmentStatus `json:"status"`
	PaymentCount      int               `json:"paymentCount"`
	AccruedInterest   float64           `json:"accruedInterest"`
	EstimatedInterest float64           `json:"estimatedInterest"`
}

// BuildSchedule returns one row per installment in plan order.
func BuildSchedule(doc Document, now time.Time) []ScheduleRow {
	today := Today(now)
	contract := doc.Project.ContractDate

	rows := make([]ScheduleRow, 0, len(doc.Plan))
	for _, inst := range doc.Plan {
		dday := DaysBetween(today, inst.DueDate)
		status := StatusPending
		switch {
		case inst.Completed():
			status = StatusCompleted
		case dday < 0:
			status = StatusOverdue
		}
		rows = append(rows, ScheduleRow{
			ID:                inst.ID,
			Name:              inst.Name,
			PlannedAmount:     inst.PlannedAmount,
			PaidAmount:        inst.PaidAmount(),
			Remaining:         inst.Outstanding(),
			DueDate:           inst.DueDate,
			DDay:              dday,
			InterestRate:      inst.InterestRate,
			Memo:              inst.Memo,
			Status:            status,
			PaymentCount:      len(inst.History),
			AccruedInterest:   InstallmentAccruedInterest(inst, contract),
			EstimatedInterest: InstallmentEstimatedInterest(inst, contract),
		})
	}
	return rows
}
