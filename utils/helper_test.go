package utils

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

func TestProcessValidationErrorsMapsFieldToTag(t *testing.T) {
	type loginInput struct {
		Username string `validate:"required"`
		Password string `validate:"required,min=8"`
	}

	err := validator.New().Struct(loginInput{Password: "short"})
	if err == nil {
		t.Fatal("expected validation to fail")
	}

	fields := ProcessValidationErrors(err)
	if fields["Username"] != "required" {
		t.Errorf("Username: got %q, want %q", fields["Username"], "required")
	}
	if fields["Password"] != "min" {
		t.Errorf("Password: got %q, want %q", fields["Password"], "min")
	}
}

func TestDecimalFromString(t *testing.T) {
	dec, err := DecimalFromString(" 12.50 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !dec.Equal(decimal.RequireFromString("12.5")) {
		t.Errorf("got %s, want 12.5", dec)
	}

	if _, err := DecimalFromString(""); err == nil {
		t.Error("empty string should fail")
	}
	if _, err := DecimalFromString("not-a-number"); err == nil {
		t.Error("garbage should fail")
	}
}

func TestPtrRoundTrip(t *testing.T) {
	if got := DereferencePtr(Ptr(42)); got != 42 {
		t.Errorf("got %d, want 42", got)
	}

	var nilStr *string
	if got := DereferencePtr(nilStr); got != "" {
		t.Errorf("nil pointer should dereference to zero value, got %q", got)
	}
}
