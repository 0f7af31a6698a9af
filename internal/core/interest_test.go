package core

import (
	"math"
	"testing"
)

func approx(t *testing.T, name string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s = %.4f, want %.4f (±%v)", name, got, want, tol)
	}
}

func TestPaymentInterest(t *testing.T) {
	contract := NewDate(2024, 1, 1)

	tests := []struct {
		name   string
		amount int64
		rate   float64
		paid   Date
		want   float64
	}{
		{"half year of a leap year", 50000000, 5, NewDate(2024, 7, 1), 1246575.3425},
		{"on contract date", 50000000, 5, contract, 0},
		{"zero rate", 50000000, 0, NewDate(2024, 7, 1), 0},
		{"before contract", 36500000, 10, NewDate(2023, 12, 22), -100000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			approx(t, "PaymentInterest", PaymentInterest(tt.amount, tt.rate, contract, tt.paid), tt.want, 0.01)
		})
	}
	// A blank contract date decodes to the zero Date; the day count stays exact.
	approx(t, "zero contract date", PaymentInterest(36500, 10, Date{}, NewDate(2, 1, 1)), 3650, 1e-9)
}

func TestInstallmentInterest(t *testing.T) {
	contract := NewDate(2024, 1, 1)
	inst := Installment{
		ID:            1,
		PlannedAmount: 100000000,
		InterestRate:  5,
		DueDate:       NewDate(2024, 12, 31), // 365 days after contract
		History:       []Payment{{ID: 2, Amount: 50000000, Date: NewDate(2024, 7, 1)}},
	}

	approx(t, "accrued", InstallmentAccruedInterest(inst, contract), 1246575.34, 1)
	if got := InstallmentEstimatedInterest(inst, contract); got != 5000000 {
		t.Errorf("estimated = %v, want exactly 5000000", got)
	}

	// 2025-01-01 is 366 days after a 2024 contract; the 365-day basis does
	// not compensate for the leap day.
	inst.DueDate = NewDate(2025, 1, 1)
	approx(t, "estimated over leap year", InstallmentEstimatedInterest(inst, contract), 5013698.63, 0.01)
}

func TestPlanInterest(t *testing.T) {
	contract := NewDate(2024, 1, 1)
	plan := []Installment{
		{
			ID: 1, PlannedAmount: 100000000, InterestRate: 5, DueDate: NewDate(2024, 12, 31),
			History: []Payment{
				{ID: 10, Amount: 30000000, Date: NewDate(2024, 7, 1)},
				{ID: 11, Amount: 20000000, Date: NewDate(2024, 7, 1)},
			},
		},
		{ID: 2, PlannedAmount: 73000000, InterestRate: 4, DueDate: NewDate(2024, 7, 19)}, // 200 days
	}

	// Split payments accrue the same as one payment of their sum.
	approx(t, "AccruedInterest", AccruedInterest(plan, contract), 1246575.34, 1)
	approx(t, "EstimatedInterest", EstimatedInterest(plan, contract), 5000000+1600000, 0.001)

	if got := AccruedInterest(nil, contract); got != 0 {
		t.Errorf("empty plan accrued = %v", got)
	}
}
