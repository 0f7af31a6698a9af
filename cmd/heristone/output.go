package main

import (
	"fmt"
	"io"
	"text/tabwriter"

	"heristone/internal/core"
)

func printStats(w io.Writer, s core.Stats) {
	fmt.Fprintf(w, "Paid:               %s\n", core.FormatWon(s.TotalPaid))
	fmt.Fprintf(w, "Planned:            %s\n", core.FormatWon(s.TotalPlanned))
	fmt.Fprintf(w, "Remaining:          %s\n", core.FormatWon(s.RemainingAmount))
	fmt.Fprintf(w, "Progress:           %.2f%%\n", s.ProgressPercentage)
	fmt.Fprintf(w, "Accrued interest:   %s\n", core.FormatWonFloat(s.AccruedInterest))
	fmt.Fprintf(w, "Estimated interest: %s\n", core.FormatWonFloat(s.TotalEstimatedInterest))
	fmt.Fprintf(w, "Options:            %s\n", core.FormatWon(s.TotalOptions))
	fmt.Fprintf(w, "Installments:       %d completed, %d outstanding, %d payments\n",
		s.CompletedInstallments, s.OutstandingInstallments, s.PaymentCount)
}

func printNextPayment(w io.Writer, info core.NextPaymentInfo, ok bool) {
	if !ok {
		fmt.Fprintln(w, "All installments are paid")
		return
	}
	fmt.Fprintf(w, "%s due %s (%s), outstanding %s\n",
		info.Installment.Name,
		info.Installment.DueDate,
		core.FormatDDay(info.DDay),
		core.FormatWon(info.Outstanding))
}

func printSchedule(w io.Writer, rows []core.ScheduleRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tDUE\tD-DAY\tPLANNED\tPAID\tREMAINING\tRATE\tSTATUS")
	for _, r := range rows {
		fmt.Fprintf(tw, "%d\t%s\t%s\t%s\t%s\t%s\t%s\t%.2f%%\t%s\n",
			r.ID, r.Name, r.DueDate, core.FormatDDay(r.DDay),
			core.FormatWon(r.PlannedAmount), core.FormatWon(r.PaidAmount), core.FormatWon(r.Remaining),
			r.InterestRate, r.Status)
	}
	return tw.Flush()
}
