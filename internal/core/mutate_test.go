package core

import (
	"errors"
	"testing"
)

func sampleDocument() Document {
	return Document{
		Project: ProjectInfo{Name: "p", TotalAmount: 300000000, ContractDate: NewDate(2024, 1, 1)},
		Options: []Option{{ID: 1, Name: "발코니", Price: 1000}},
		Plan: []Installment{
			{ID: 10, Name: "1차", PlannedAmount: 100000000, DueDate: NewDate(2024, 6, 1), InterestRate: 4.5},
			{ID: 11, Name: "2차", PlannedAmount: 100000000, DueDate: NewDate(2024, 12, 1), InterestRate: 4.5,
				History: []Payment{{ID: 20, Amount: 5000, Date: NewDate(2024, 11, 1)}}},
		},
		NextID: 21,
	}
}

func TestUpdateProjectField(t *testing.T) {
	doc := sampleDocument()

	tests := []struct {
		field   ProjectField
		value   string
		check   func(ProjectInfo) bool
		wantErr error
	}{
		{ProjectName, "새 이름", func(p ProjectInfo) bool { return p.Name == "새 이름" }, nil},
		{ProjectTotalAmount, "₩450,000,000", func(p ProjectInfo) bool { return p.TotalAmount == 450000000 }, nil},
		{ProjectTotalAmount, "abc", func(p ProjectInfo) bool { return p.TotalAmount == 0 }, nil},
		{ProjectContractDate, "2024-02-01", func(p ProjectInfo) bool { return p.ContractDate.Equal(NewDate(2024, 2, 1).Time) }, nil},
		{ProjectCompletionDate, "2027-03-31", func(p ProjectInfo) bool { return p.CompletionDate.Equal(NewDate(2027, 3, 31).Time) }, nil},
		{ProjectDefaultInterestRate, "5.1%", func(p ProjectInfo) bool { return p.DefaultInterestRate == 5.1 }, nil},
		{ProjectContractDate, "02/01/2024", nil, ErrInvalidDate},
		{"owner", "x", nil, ErrUnknownField},
	}

	for _, tt := range tests {
		t.Run(string(tt.field)+"="+tt.value, func(t *testing.T) {
			got, err := UpdateProjectField(doc, tt.field, tt.value)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("err = %v, want %v", err, tt.wantErr)
				}
				if got.Project != doc.Project {
					t.Fatal("failed update must leave the document unchanged")
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if !tt.check(got.Project) {
				t.Fatalf("project = %+v", got.Project)
			}
		})
	}

	if doc.Project.Name != "p" || doc.Project.TotalAmount != 300000000 {
		t.Fatal("input document was mutated")
	}
}

func TestUpdateInstallmentField(t *testing.T) {
	doc := sampleDocument()

	got, err := UpdateInstallmentField(doc, 11, InstallmentPlannedAmount, "120,000,000")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	inst, _ := got.Installment(11)
	if inst.PlannedAmount != 120000000 {
		t.Fatalf("PlannedAmount = %d", inst.PlannedAmount)
	}
	if inst.PaidAmount() != 5000 {
		t.Fatal("history must survive a field edit")
	}
	if orig, _ := doc.Installment(11); orig.PlannedAmount != 100000000 {
		t.Fatal("input document was mutated")
	}

	got, err = UpdateInstallmentField(doc, 10, InstallmentInterestRate, "4.9")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inst, _ := got.Installment(10); inst.InterestRate != 4.9 {
		t.Fatalf("InterestRate = %v", inst.InterestRate)
	}

	got, err = UpdateInstallmentField(doc, 10, InstallmentMemo, "대출 실행")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inst, _ := got.Installment(10); inst.Memo != "대출 실행" {
		t.Fatalf("Memo = %q", inst.Memo)
	}

	errCases := []struct {
		name    string
		id      int64
		field   InstallmentField
		value   string
		wantErr error
	}{
		{"missing installment", 99, InstallmentName, "x", ErrNotFound},
		{"paid amount is derived", 11, InstallmentPaidAmount, "1", ErrReadOnlyField},
		{"history is derived", 11, InstallmentHistory, "[]", ErrReadOnlyField},
		{"unknown field", 11, "color", "red", ErrUnknownField},
		{"bad due date", 11, InstallmentDueDate, "next week", ErrInvalidDate},
	}
	for _, tc := range errCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := UpdateInstallmentField(doc, tc.id, tc.field, tc.value); !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
		})
	}
}

func TestAddAndDeletePayment(t *testing.T) {
	doc := sampleDocument()

	added, p, err := AddPayment(doc, 10, 30000000, NewDate(2024, 5, 30), "계좌이체")
	if err != nil {
		t.Fatalf("AddPayment: %v", err)
	}
	if p.ID != 21 || added.NextID != 22 {
		t.Fatalf("payment id = %d, next = %d", p.ID, added.NextID)
	}
	inst, _ := added.Installment(10)
	if inst.PaidAmount() != 30000000 || len(inst.History) != 1 || inst.History[0] != p {
		t.Fatalf("installment after add = %+v", inst)
	}
	if orig, _ := doc.Installment(10); len(orig.History) != 0 {
		t.Fatal("input document was mutated")
	}

	// A second payment never reuses an id, even after deletion.
	removed, err := DeletePayment(added, 10, p.ID)
	if err != nil {
		t.Fatalf("DeletePayment: %v", err)
	}
	if inst, _ := removed.Installment(10); inst.PaidAmount() != 0 || len(inst.History) != 0 {
		t.Fatalf("installment after delete = %+v", inst)
	}
	_, p2, err := AddPayment(removed, 10, 1, NewDate(2024, 5, 31), "")
	if err != nil {
		t.Fatalf("AddPayment: %v", err)
	}
	if p2.ID == p.ID {
		t.Fatal("payment id reused")
	}

	// Other installment untouched throughout.
	if inst, _ := removed.Installment(11); inst.PaidAmount() != 5000 {
		t.Fatal("unrelated installment changed")
	}
}

func TestAddPayment_Rejects(t *testing.T) {
	doc := sampleDocument()
	tests := []struct {
		name    string
		id      int64
		amount  int64
		date    Date
		wantErr error
	}{
		{"zero amount", 10, 0, NewDate(2024, 5, 1), ErrInvalidAmount},
		{"negative amount", 10, -5, NewDate(2024, 5, 1), ErrInvalidAmount},
		{"zero date", 10, 5, Date{}, ErrInvalidDate},
		{"missing installment", 99, 5, NewDate(2024, 5, 1), ErrNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _, err := AddPayment(doc, tt.id, tt.amount, tt.date, "")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("err = %v, want %v", err, tt.wantErr)
			}
			if got.NextID != doc.NextID {
				t.Fatal("failed add must not consume an id")
			}
		})
	}
}

func TestDeletePayment_NotFound(t *testing.T) {
	doc := sampleDocument()
	if _, err := DeletePayment(doc, 99, 20); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing installment: %v", err)
	}
	if _, err := DeletePayment(doc, 10, 20); !errors.Is(err, ErrNotFound) {
		t.Fatalf("payment on another installment: %v", err)
	}
}

func TestDeletePayment_KeepsOrder(t *testing.T) {
	doc := sampleDocument()
	doc.Plan[0].History = []Payment{
		{ID: 30, Amount: 1, Date: NewDate(2024, 1, 1)},
		{ID: 31, Amount: 2, Date: NewDate(2024, 1, 2)},
		{ID: 32, Amount: 3, Date: NewDate(2024, 1, 3)},
	}
	got, err := DeletePayment(doc, 10, 31)
	if err != nil {
		t.Fatalf("DeletePayment: %v", err)
	}
	h := got.Plan[0].History
	if len(h) != 2 || h[0].ID != 30 || h[1].ID != 32 {
		t.Fatalf("history = %+v", h)
	}
	if len(doc.Plan[0].History) != 3 || doc.Plan[0].History[1].ID != 31 {
		t.Fatal("input history was mutated")
	}
}

func TestOptions(t *testing.T) {
	doc := sampleDocument()

	withOpt, opt := AddOption(doc)
	if opt.Name != DefaultOptionName || opt.Price != 0 {
		t.Fatalf("new option = %+v", opt)
	}
	if len(withOpt.Options) != 2 || len(doc.Options) != 1 {
		t.Fatal("AddOption must append to a copy")
	}

	priced, err := UpdateOptionField(withOpt, opt.ID, OptionPrice, "3,500,000원")
	if err != nil {
		t.Fatalf("UpdateOptionField: %v", err)
	}
	renamed, err := UpdateOptionField(priced, opt.ID, OptionName, "중문")
	if err != nil {
		t.Fatalf("UpdateOptionField: %v", err)
	}
	if got := renamed.Options[1]; got.Price != 3500000 || got.Name != "중문" {
		t.Fatalf("option = %+v", got)
	}
	if _, err := UpdateOptionField(renamed, opt.ID, "color", "x"); !errors.Is(err, ErrUnknownField) {
		t.Fatalf("unknown field: %v", err)
	}
	if _, err := UpdateOptionField(renamed, 999, OptionName, "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("missing option: %v", err)
	}

	deleted, err := DeleteOption(renamed, 1)
	if err != nil {
		t.Fatalf("DeleteOption: %v", err)
	}
	if len(deleted.Options) != 1 || deleted.Options[0].ID != opt.ID {
		t.Fatalf("options = %+v", deleted.Options)
	}
	if _, err := DeleteOption(deleted, 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("double delete: %v", err)
	}
}

func TestAddOption_EmptyDocumentIdsUnique(t *testing.T) {
	var doc Document
	seen := map[int64]bool{}
	for i := 0; i < 5; i++ {
		var opt Option
		doc, opt = AddOption(doc)
		if seen[opt.ID] || opt.ID <= 0 {
			t.Fatalf("option id %d reused or not positive", opt.ID)
		}
		seen[opt.ID] = true
	}
	if len(doc.Options) != 5 {
		t.Fatalf("options = %d", len(doc.Options))
	}
}

func TestAddOption_LegacyCounter(t *testing.T) {
	// Documents without a counter still get ids past every existing one.
	doc := sampleDocument()
	doc.NextID = 0
	_, opt := AddOption(doc)
	if opt.ID != 21 {
		t.Fatalf("option id = %d, want 21", opt.ID)
	}
}
