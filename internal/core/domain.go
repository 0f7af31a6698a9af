package core

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

type (
	// ProjectInfo describes the purchase contract. DefaultInterestRate is
	// shown to the user but never used by the calculations.
	ProjectInfo struct {
		Name                string  `json:"name"`
		TotalAmount         int64   `json:"totalAmount"`
		ContractDate        Date    `json:"contractDate"`
		CompletionDate      Date    `json:"completionDate"`
		DefaultInterestRate float64 `json:"defaultInterestRate"`
	}

	// Option is an add-on purchase with a flat price.
	Option struct {
		ID    int64  `json:"id"`
		Name  string `json:"name"`
		Price int64  `json:"price"`
	}

	// Payment is one actual transfer recorded against an installment.
	Payment struct {
		ID     int64  `json:"id"`
		Amount int64  `json:"amount"`
		Date   Date   `json:"date"`
		Memo   string `json:"memo"`
	}

	// Installment is one scheduled partial payment ("중도금").
	Installment struct {
		ID            int64     `json:"id"`
		Name          string    `json:"name"`
		PlannedAmount int64     `json:"plannedAmount"`
		DueDate       Date      `json:"dueDate"`
		Memo          string    `json:"memo"`
		InterestRate  float64   `json:"interestRate"` // annual, percent
		History       []Payment `json:"paymentHistory"`
	}

	// Document is the whole persisted state: the unit of storage and the
	// input of every calculation.
	Document struct {
		Project ProjectInfo   `json:"projectInfo"`
		Options []Option      `json:"options"`
		Plan    []Installment `json:"paymentPlan"`
		NextID  int64         `json:"nextId"`
	}
)

var (
	ErrNotFound      = errors.New("not found")
	ErrUnknownField  = errors.New("unknown field")
	ErrReadOnlyField = errors.New("field is derived and cannot be set")
	ErrInvalidDate   = errors.New("invalid date")
	ErrInvalidAmount = errors.New("invalid amount")
)

// PaidAmount is the sum of the recorded payments.
func (i Installment) PaidAmount() int64 {
	var sum int64
	for _, p := range i.History {
		sum += p.Amount
	}
	return sum
}

// Outstanding is the planned amount not yet covered by payments. It goes
// negative on overpayment.
func (i Installment) Outstanding() int64 {
	return i.PlannedAmount - i.PaidAmount()
}

// Completed reports whether the payments cover the planned amount.
func (i Installment) Completed() bool {
	return i.PaidAmount() >= i.PlannedAmount
}

type installmentJSON struct {
	ID            int64     `json:"id"`
	Name          string    `json:"name"`
	PlannedAmount int64     `json:"plannedAmount"`
	DueDate       Date      `json:"dueDate"`
	Memo          string    `json:"memo"`
	InterestRate  float64   `json:"interestRate"`
	PaidAmount    int64     `json:"paidAmount"`
	History       []Payment `json:"paymentHistory"`
}

// MarshalJSON emits the computed paidAmount next to the stored fields so the
// blob stays readable by tools that expect the flat layout.
func (i Installment) MarshalJSON() ([]byte, error) {
	history := i.History
	if history == nil {
		history = []Payment{}
	}
	return json.Marshal(installmentJSON{
		ID:            i.ID,
		Name:          i.Name,
		PlannedAmount: i.PlannedAmount,
		DueDate:       i.DueDate,
		Memo:          i.Memo,
		InterestRate:  i.InterestRate,
		PaidAmount:    i.PaidAmount(),
		History:       history,
	})
}

// UnmarshalJSON ignores any stored paidAmount; it is always recomputed.
func (i *Installment) UnmarshalJSON(b []byte) error {
	var raw installmentJSON
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*i = Installment{
		ID:            raw.ID,
		Name:          raw.Name,
		PlannedAmount: raw.PlannedAmount,
		DueDate:       raw.DueDate,
		Memo:          raw.Memo,
		InterestRate:  raw.InterestRate,
		History:       raw.History,
	}
	return nil
}

// Clone returns a deep copy. Mutations work on clones so callers holding the
// previous document never observe a change.
func (d Document) Clone() Document {
	out := d
	out.Options = append([]Option(nil), d.Options...)
	out.Plan = make([]Installment, len(d.Plan))
	for i, inst := range d.Plan {
		inst.History = append([]Payment(nil), inst.History...)
		out.Plan[i] = inst
	}
	return out
}

// Normalize makes a decoded document safe to mutate: nil collections become
// empty and NextID is moved past every id in use. Documents written before
// the counter existed get one here.
func (d Document) Normalize() Document {
	out := d.Clone()
	if out.Options == nil {
		out.Options = []Option{}
	}
	if out.Plan == nil {
		out.Plan = []Installment{}
	}
	if highest := out.maxID(); out.NextID <= highest {
		out.NextID = highest + 1
	}
	return out
}

func (d Document) maxID() int64 {
	var highest int64
	for _, o := range d.Options {
		highest = max(highest, o.ID)
	}
	for _, inst := range d.Plan {
		highest = max(highest, inst.ID)
		for _, p := range inst.History {
			highest = max(highest, p.ID)
		}
	}
	return highest
}

// Installment returns the installment with the given id.
func (d Document) Installment(id int64) (Installment, bool) {
	if i := d.installmentIndex(id); i >= 0 {
		return d.Plan[i], true
	}
	return Installment{}, false
}

func (d Document) installmentIndex(id int64) int {
	for i := range d.Plan {
		if d.Plan[i].ID == id {
			return i
		}
	}
	return -1
}

func (d Document) optionIndex(id int64) int {
	for i := range d.Options {
		if d.Options[i].ID == id {
			return i
		}
	}
	return -1
}

// Validate reports structural problems: duplicate ids and negative amounts.
// Decoding never fails on these, so loaders call Validate to warn about them.
func (d Document) Validate() error {
	var problems []string

	if d.Project.TotalAmount < 0 {
		problems = append(problems, "negative total amount")
	}

	seenOptions := make(map[int64]struct{}, len(d.Options))
	for _, o := range d.Options {
		if _, dup := seenOptions[o.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate option id %d", o.ID))
		}
		seenOptions[o.ID] = struct{}{}
		if o.Price < 0 {
			problems = append(problems, fmt.Sprintf("option %d has negative price", o.ID))
		}
	}

	seenPlans := make(map[int64]struct{}, len(d.Plan))
	for _, inst := range d.Plan {
		if _, dup := seenPlans[inst.ID]; dup {
			problems = append(problems, fmt.Sprintf("duplicate installment id %d", inst.ID))
		}
		seenPlans[inst.ID] = struct{}{}
		if inst.PlannedAmount < 0 {
			problems = append(problems, fmt.Sprintf("installment %d has negative planned amount", inst.ID))
		}
		seenPayments := make(map[int64]struct{}, len(inst.History))
		for _, p := range inst.History {
			if _, dup := seenPayments[p.ID]; dup {
				problems = append(problems, fmt.Sprintf("installment %d: duplicate payment id %d", inst.ID, p.ID))
			}
			seenPayments[p.ID] = struct{}{}
			if p.Amount < 0 {
				problems = append(problems, fmt.Sprintf("installment %d: payment %d has negative amount", inst.ID, p.ID))
			}
		}
	}

	if len(problems) > 0 {
		return fmt.Errorf("document validation failed: %s", strings.Join(problems, "; "))
	}
	return nil
}
