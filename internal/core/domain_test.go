package core

import (
	"encoding/json"
	"strings"
	"testing"
)

const legacyBlob = `{
  "projectInfo": {"name": "p", "totalAmount": 300000000, "contractDate": "2024-01-01", "completionDate": "2026-12-31", "defaultInterestRate": 4},
  "options": [{"id": 3, "name": "a", "price": 10}],
  "paymentPlan": [
    {"id": 1, "name": "1차", "plannedAmount": 100000000, "dueDate": "2024-06-01", "memo": "", "interestRate": 5,
     "paidAmount": 999,
     "paymentHistory": [{"id": 1718000000000, "amount": 40000000, "date": "2024-05-30", "memo": ""},
                        {"id": 1718000000001, "amount": 10000000, "date": "2024-05-31", "memo": "이체"}]}
  ]
}`

func TestDecodeDocument_RecomputesPaidAmount(t *testing.T) {
	doc, err := DecodeDocument([]byte(legacyBlob))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	inst, ok := doc.Installment(1)
	if !ok {
		t.Fatal("installment 1 missing")
	}
	if got := inst.PaidAmount(); got != 50000000 {
		t.Fatalf("PaidAmount = %d, want 50000000 (stored 999 must be ignored)", got)
	}
	if doc.NextID != 1718000000002 {
		t.Fatalf("NextID = %d, want one past the highest id", doc.NextID)
	}
}

func TestEncodeDocument_EmitsComputedPaidAmount(t *testing.T) {
	doc, err := DecodeDocument([]byte(legacyBlob))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	b, err := EncodeDocument(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}

	var raw struct {
		Plan []map[string]any `json:"paymentPlan"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if paid := raw.Plan[0]["paidAmount"]; paid != float64(50000000) {
		t.Fatalf("paidAmount on the wire = %v", paid)
	}
}

func TestEncodeDocument_EmptyHistoryIsArray(t *testing.T) {
	doc := Document{Plan: []Installment{{ID: 1, Name: "x"}}}
	b, err := EncodeDocument(doc)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if !strings.Contains(string(b), `"paymentHistory":[]`) {
		t.Fatalf("expected empty history array, got %s", b)
	}
}

func TestDecodeDocument_Garbage(t *testing.T) {
	for _, in := range []string{"", "{", "[1,2]", `{"paymentPlan": "x"}`} {
		if _, err := DecodeDocument([]byte(in)); err == nil {
			t.Errorf("DecodeDocument(%q) expected error", in)
		}
	}
}

func TestDefaultDocument(t *testing.T) {
	a := DefaultDocument()
	if err := a.Validate(); err != nil {
		t.Fatalf("default document invalid: %v", err)
	}
	if len(a.Plan) == 0 || len(a.Options) == 0 {
		t.Fatal("default document should carry a plan and options")
	}
	if a.NextID <= a.maxID() {
		t.Fatalf("NextID %d must exceed every id (max %d)", a.NextID, a.maxID())
	}

	// Copies are independent.
	a.Plan[0].Name = "changed"
	a.Options = nil
	b := DefaultDocument()
	if b.Plan[0].Name == "changed" || len(b.Options) == 0 {
		t.Fatal("DefaultDocument must return a fresh copy")
	}
}

func TestDocumentValidate(t *testing.T) {
	doc := Document{
		Project: ProjectInfo{TotalAmount: -1},
		Options: []Option{{ID: 1}, {ID: 1, Price: -5}},
		Plan: []Installment{
			{ID: 1, PlannedAmount: -1, History: []Payment{{ID: 7, Amount: 1}, {ID: 7, Amount: -1}}},
			{ID: 1},
		},
	}
	err := doc.Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{
		"negative total amount",
		"duplicate option id 1",
		"option 1 has negative price",
		"installment 1 has negative planned amount",
		"duplicate payment id 7",
		"payment 7 has negative amount",
		"duplicate installment id 1",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q missing %q", err, want)
		}
	}
}

func TestCloneIsDeep(t *testing.T) {
	doc := Document{
		Options: []Option{{ID: 1, Name: "a"}},
		Plan:    []Installment{{ID: 1, History: []Payment{{ID: 2, Amount: 5}}}},
	}
	c := doc.Clone()
	c.Options[0].Name = "b"
	c.Plan[0].History[0].Amount = 10

	if doc.Options[0].Name != "a" || doc.Plan[0].History[0].Amount != 5 {
		t.Fatal("Clone shares backing arrays with the original")
	}
}
