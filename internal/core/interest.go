package core

import "github.com/shopspring/decimal"

// DayCountBasis is the fixed number of days per year used to prorate annual
// rates. Leap years are not special-cased.
const DayCountBasis = 365

var (
	hundred  = decimal.NewFromInt(100)
	yearDays = decimal.NewFromInt(DayCountBasis)
)

// simpleInterest computes principal * rate% * days / 365 without rounding.
func simpleInterest(principal int64, ratePercent float64, days int) decimal.Decimal {
	return decimal.NewFromInt(principal).
		Mul(decimal.NewFromFloat(ratePercent)).
		Div(hundred).
		Mul(decimal.NewFromInt(int64(days))).
		Div(yearDays)
}

// PaymentInterest is the simple interest accrued on one payment between the
// contract date and the date it was paid. A payment dated before the
// contract yields negative interest.
func PaymentInterest(amount int64, ratePercent float64, contract, paid Date) float64 {
	return simpleInterest(amount, ratePercent, DaysBetween(contract, paid)).InexactFloat64()
}

// InstallmentAccruedInterest sums PaymentInterest over the installment's
// recorded payments.
func InstallmentAccruedInterest(inst Installment, contract Date) float64 {
	return installmentAccrued(inst, contract).InexactFloat64()
}

func installmentAccrued(inst Installment, contract Date) decimal.Decimal {
	total := decimal.Zero
	for _, p := range inst.History {
		total = total.Add(simpleInterest(p.Amount, inst.InterestRate, DaysBetween(contract, p.Date)))
	}
	return total
}

// InstallmentEstimatedInterest is the interest the installment would carry
// if paid in full exactly on its due date.
func InstallmentEstimatedInterest(inst Installment, contract Date) float64 {
	return installmentEstimated(inst, contract).InexactFloat64()
}

func installmentEstimated(inst Installment, contract Date) decimal.Decimal {
	return simpleInterest(inst.PlannedAmount, inst.InterestRate, DaysBetween(contract, inst.DueDate))
}

// AccruedInterest is the interest on everything actually paid so far.
func AccruedInterest(plan []Installment, contract Date) float64 {
	total := decimal.Zero
	for _, inst := range plan {
		total = total.Add(installmentAccrued(inst, contract))
	}
	return total.InexactFloat64()
}

// EstimatedInterest is the interest of the whole plan paid on schedule. It
// is independent of AccruedInterest; the two are reported side by side.
func EstimatedInterest(plan []Installment, contract Date) float64 {
	total := decimal.Zero
	for _, inst := range plan {
		total = total.Add(installmentEstimated(inst, contract))
	}
	return total.InexactFloat64()
}
