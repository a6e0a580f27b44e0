package validation

import (
	"strings"
	"testing"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/entity"
)

// --- ValidateUTF8 Tests ---

func TestValidateUTF8_Valid(t *testing.T) {
	tests := []struct {
		name  string
		value string
	}{
		{"ascii", "hello world"},
		{"empty", ""},
		{"hebrew", "שלום עולם"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateUTF8("field", tt.value); err != nil {
				t.Errorf("ValidateUTF8(%q) = %v, want nil", tt.value, err)
			}
		})
	}
}

func TestValidateUTF8_Invalid(t *testing.T) {
	err := ValidateUTF8("notes", string([]byte{0xff, 0xfe}))
	if err == nil || err.Field != "notes" {
		t.Errorf("ValidateUTF8(invalid) = %v, want error on notes", err)
	}
}

// --- ValidateNoNullBytes Tests ---

func TestValidateNoNullBytes(t *testing.T) {
	if err := ValidateNoNullBytes("notes", "clean"); err != nil {
		t.Errorf("clean value rejected: %v", err)
	}
	if err := ValidateNoNullBytes("notes", "a\x00b"); err == nil {
		t.Error("null byte accepted")
	}
}

// --- ValidateMaxLength Tests ---

func TestValidateMaxLength_AtLimit(t *testing.T) {
	if err := ValidateMaxLength("notes", strings.Repeat("a", 10), 10); err != nil {
		t.Errorf("ValidateMaxLength(10, max 10) = %v, want nil", err)
	}
}

func TestValidateMaxLength_CountsRunes(t *testing.T) {
	if err := ValidateMaxLength("notes", strings.Repeat("ש", 10), 10); err != nil {
		t.Errorf("multibyte runes counted as bytes: %v", err)
	}
	if err := ValidateMaxLength("notes", strings.Repeat("ש", 11), 10); err == nil {
		t.Error("ValidateMaxLength(11 runes, max 10) = nil, want error")
	}
}

// --- Collector Tests ---

func TestCollector_AccumulatesAndIgnoresNil(t *testing.T) {
	var c Collector
	c.Add(nil)
	if c.HasErrors() {
		t.Fatal("nil error counted")
	}
	c.Add(&ValidationError{Field: "a", Message: "x"})
	c.Add(&ValidationError{Field: "b", Message: "y"})
	if len(c.Errors()) != 2 {
		t.Errorf("Errors() = %v, want 2", c.Errors())
	}
}

// --- Struct Tests ---

type sampleRequest struct {
	TenantID   string `json:"tenant_id" validate:"required,tenant"`
	EntityType string `json:"entity_type" validate:"omitempty,entitykind"`
	Note       string `json:"note" validate:"max=5"`
}

func TestStruct_Valid(t *testing.T) {
	errs := Struct(sampleRequest{TenantID: "tenant-a", EntityType: "customer"})
	if len(errs) != 0 {
		t.Errorf("Struct(valid) = %v", errs)
	}
}

func TestStruct_ReportsJSONFieldNames(t *testing.T) {
	// Given: A request with every field invalid
	req := sampleRequest{TenantID: "bad tenant!", EntityType: "spaceship", Note: "too long"}

	// When: It is validated
	errs := Struct(req)

	// Then: Each failure is reported under its JSON name
	got := map[string]string{}
	for _, e := range errs {
		got[e.Field] = e.Message
	}
	if !strings.Contains(got["tenant_id"], "tenant") {
		t.Errorf("tenant_id error = %q", got["tenant_id"])
	}
	if !strings.Contains(got["entity_type"], "customers") {
		t.Errorf("entity_type error = %q", got["entity_type"])
	}
	if !strings.Contains(got["note"], "maximum length") {
		t.Errorf("note error = %q", got["note"])
	}
}

func TestStruct_Required(t *testing.T) {
	errs := Struct(sampleRequest{})
	if len(errs) != 1 || errs[0].Field != "tenant_id" || errs[0].Message != "is required" {
		t.Errorf("Struct(empty) = %v", errs)
	}
}

// --- ValidateRecordFields Tests ---

func kind(t *testing.T, name string) entity.Kind {
	t.Helper()
	k, err := entity.Lookup(name)
	if err != nil {
		t.Fatalf("Lookup: %v", err)
	}
	return k
}

func TestValidateRecordFields_Valid(t *testing.T) {
	errs := ValidateRecordFields(kind(t, "reservations"), map[string]any{
		"id":         12,
		"customerId": 3,
		"finalPrice": "1200.50",
		"includeVat": true,
		"dateFrom":   "2026-05-01T09:00:00Z",
		"notes":      nil,
	})
	if len(errs) != 0 {
		t.Errorf("ValidateRecordFields(valid) = %v", errs)
	}
}

func TestValidateRecordFields_Invalid(t *testing.T) {
	errs := ValidateRecordFields(kind(t, "customers"), map[string]any{
		"firstName": "a\x00b",
		"isCompany": "perhaps",
		"shoeSize":  44,
	})

	fields := map[string]bool{}
	for _, e := range errs {
		fields[e.Field] = true
	}
	for _, want := range []string{"firstName", "isCompany", "shoeSize"} {
		if !fields[want] {
			t.Errorf("missing error for %s in %v", want, errs)
		}
	}
}
