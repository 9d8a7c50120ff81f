package validation

import (
	"testing"

	"github.com/autoquant/alphakit/errors"
)

func TestStruct_ValidInput(t *testing.T) {
	type orderRequest struct {
		Symbol string  `mapstructure:"symbol" validate:"required,max=12"`
		Qty    int     `mapstructure:"qty" validate:"required,gt=0"`
		Rate   float64 `mapstructure:"rate" validate:"gte=0,lte=1"`
	}

	if err := Struct(orderRequest{Symbol: "AAPL", Qty: 10, Rate: 0.5}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestStruct_CollectsFieldErrors(t *testing.T) {
	type orderRequest struct {
		Symbol string `mapstructure:"symbol" validate:"required"`
		Qty    int    `mapstructure:"qty" validate:"gt=0"`
	}

	err := Struct(orderRequest{Qty: -1})
	if err == nil {
		t.Fatal("expected validation error")
	}

	appErr, ok := errors.AsAppError(err)
	if !ok {
		t.Fatalf("expected AppError, got %T", err)
	}
	if appErr.Code != errors.ErrCodeInvalidInput {
		t.Errorf("code = %s, want %s", appErr.Code, errors.ErrCodeInvalidInput)
	}
	fields, ok := appErr.Details["fields"].([]FieldError)
	if !ok || len(fields) != 2 {
		t.Errorf("expected 2 field errors, got %v", appErr.Details["fields"])
	}
}

func TestValidator_Collects(t *testing.T) {
	v := New().
		Required("symbol", "").
		Positive("qty", 0).
		Fraction("jitter", 1.5).
		Range("threshold", 0, 1, 10).
		OneOf("side", "hold", []string{"buy", "sell"})

	if got := len(v.Errors()); got != 5 {
		t.Fatalf("collected %d errors, want 5: %v", got, v.Errors())
	}

	appErr := v.Validate()
	if appErr == nil {
		t.Fatal("Validate returned nil with errors collected")
	}
	if appErr.Retryable {
		t.Error("validation errors must not be retryable")
	}
}

func TestValidator_CleanInput(t *testing.T) {
	v := New().
		Required("symbol", "AAPL").
		Positive("qty", 3).
		Fraction("jitter", 0.1).
		OneOf("side", "buy", []string{"buy", "sell"})

	if v.HasErrors() {
		t.Fatalf("unexpected errors: %v", v.Errors())
	}
	if v.Validate() != nil {
		t.Error("Validate should return nil for clean input")
	}
}

func TestValidator_RequiredUUID(t *testing.T) {
	tests := []struct {
		value   string
		wantErr bool
	}{
		{"b39a4f0e-2f3b-4f08-9a0c-2f9f1f7b8a6d", false},
		{"", true},
		{"not-a-uuid", true},
		{"00000000-0000-0000-0000-000000000000", true},
	}

	for _, tt := range tests {
		v := New().RequiredUUID("client_order_id", tt.value)
		if v.HasErrors() != tt.wantErr {
			t.Errorf("RequiredUUID(%q): hasErrors = %v, want %v", tt.value, v.HasErrors(), tt.wantErr)
		}
	}
}
