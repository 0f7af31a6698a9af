package core

import "fmt"

// Field names accepted by the generic update operations. They match the JSON
// keys of the document so edit events can be forwarded verbatim.
type (
	ProjectField     string
	InstallmentField string
	OptionField      string
)

const (
	ProjectName                ProjectField = "name"
	ProjectTotalAmount         ProjectField = "totalAmount"
	ProjectContractDate        ProjectField = "contractDate"
	ProjectCompletionDate      ProjectField = "completionDate"
	ProjectDefaultInterestRate ProjectField = "defaultInterestRate"

	InstallmentName          InstallmentField = "name"
	InstallmentPlannedAmount InstallmentField = "plannedAmount"
	InstallmentDueDate       InstallmentField = "dueDate"
	InstallmentMemo          InstallmentField = "memo"
	InstallmentInterestRate  InstallmentField = "interestRate"
	InstallmentPaidAmount    InstallmentField = "paidAmount"
	InstallmentHistory       InstallmentField = "paymentHistory"

	OptionName  OptionField = "name"
	OptionPrice OptionField = "price"
)

// DefaultOptionName is the name given to options created by AddOption.
const DefaultOptionName = "새 옵션"

// UpdateProjectField sets one project field from its text value. Amounts and
// rates are parsed leniently; dates must be YYYY-MM-DD.
func UpdateProjectField(doc Document, field ProjectField, value string) (Document, error) {
	out := doc.Clone()
	p := &out.Project
	switch field {
	case ProjectName:
		p.Name = value
	case ProjectTotalAmount:
		p.TotalAmount = ParseAmount(value)
	case ProjectContractDate:
		d, err := ParseDate(value)
		if err != nil {
			return doc, fmt.Errorf("project %s: %w", field, err)
		}
		p.ContractDate = d
	case ProjectCompletionDate:
		d, err := ParseDate(value)
		if err != nil {
			return doc, fmt.Errorf("project %s: %w", field, err)
		}
		p.CompletionDate = d
	case ProjectDefaultInterestRate:
		p.DefaultInterestRate = ParseRate(value)
	default:
		return doc, fmt.Errorf("project field %q: %w", field, ErrUnknownField)
	}
	return out, nil
}

// UpdateInstallmentField sets one installment field from its text value.
// The paid amount and the payment history are derived from payments and
// can only change through AddPayment and DeletePayment.
func UpdateInstallmentField(doc Document, id int64, field InstallmentField, value string) (Document, error) {
	i := doc.installmentIndex(id)
	if i < 0 {
		return doc, fmt.Errorf("installment %d: %w", id, ErrNotFound)
	}
	out := doc.Clone()
	inst := &out.Plan[i]
	switch field {
	case InstallmentName:
		inst.Name = value
	case InstallmentPlannedAmount:
		inst.PlannedAmount = ParseAmount(value)
	case InstallmentDueDate:
		d, err := ParseDate(value)
		if err != nil {
			return doc, fmt.Errorf("installment %d %s: %w", id, field, err)
		}
		inst.DueDate = d
	case InstallmentMemo:
		inst.Memo = value
	case InstallmentInterestRate:
		inst.InterestRate = ParseRate(value)
	case InstallmentPaidAmount, InstallmentHistory:
		return doc, fmt.Errorf("installment %d %s: %w", id, field, ErrReadOnlyField)
	default:
		return doc, fmt.Errorf("installment field %q: %w", field, ErrUnknownField)
	}
	return out, nil
}

// AddPayment appends a payment to the installment's history under a fresh id.
// Unlike the lenient field edits, a zero or negative amount is rejected with
// ErrInvalidAmount rather than recorded as a zero payment, and a zero date
// with ErrInvalidDate.
func AddPayment(doc Document, installmentID int64, amount int64, date Date, memo string) (Document, Payment, error) {
	if amount <= 0 {
		return doc, Payment{}, fmt.Errorf("payment of %d: %w", amount, ErrInvalidAmount)
	}
	if date.IsZero() {
		return doc, Payment{}, fmt.Errorf("payment date: %w", ErrInvalidDate)
	}
	i := doc.installmentIndex(installmentID)
	if i < 0 {
		return doc, Payment{}, fmt.Errorf("installment %d: %w", installmentID, ErrNotFound)
	}

	out := doc.Normalize()
	payment := Payment{
		ID:     out.NextID,
		Amount: amount,
		Date:   date,
		Memo:   memo,
	}
	out.NextID++
	out.Plan[i].History = append(out.Plan[i].History, payment)
	return out, payment, nil
}

// DeletePayment removes one payment from an installment's history.
func DeletePayment(doc Document, installmentID, paymentID int64) (Document, error) {
	i := doc.installmentIndex(installmentID)
	if i < 0 {
		return doc, fmt.Errorf("installment %d: %w", installmentID, ErrNotFound)
	}
	history := doc.Plan[i].History
	for j := range history {
		if history[j].ID != paymentID {
			continue
		}
		out := doc.Clone()
		h := out.Plan[i].History
		out.Plan[i].History = append(h[:j:j], h[j+1:]...)
		return out, nil
	}
	return doc, fmt.Errorf("installment %d payment %d: %w", installmentID, paymentID, ErrNotFound)
}

// UpdateOptionField sets an option's name or price.
func UpdateOptionField(doc Document, id int64, field OptionField, value string) (Document, error) {
	i := doc.optionIndex(id)
	if i < 0 {
		return doc, fmt.Errorf("option %d: %w", id, ErrNotFound)
	}
	out := doc.Clone()
	switch field {
	case OptionName:
		out.Options[i].Name = value
	case OptionPrice:
		out.Options[i].Price = ParseAmount(value)
	default:
		return doc, fmt.Errorf("option field %q: %w", field, ErrUnknownField)
	}
	return out, nil
}

// AddOption appends a zero-priced option with the default name.
func AddOption(doc Document) (Document, Option) {
	out := doc.Normalize()
	opt := Option{ID: out.NextID, Name: DefaultOptionName}
	out.NextID++
	out.Options = append(out.Options, opt)
	return out, opt
}

// DeleteOption removes an option by id.
func DeleteOption(doc Document, id int64) (Document, error) {
	i := doc.optionIndex(id)
	if i < 0 {
		return doc, fmt.Errorf("option %d: %w", id, ErrNotFound)
	}
	out := doc.Clone()
	out.Options = append(out.Options[:i:i], out.Options[i+1:]...)
	return out, nil
}
