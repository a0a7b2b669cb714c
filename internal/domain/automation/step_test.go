package automation

import (
	"testing"

	"gorm.io/datatypes"
)

func TestDecodeStepsRoundTrip(t *testing.T) {
	steps := []Step{
		ConditionStep{Field: "role", Operator: "equals", Value: "coach"},
		EmailStep{Subject: "Welcome aboard", Body: "hello", TemplateKey: "welcome", Locale: "es"},
		DelayStep{DelayDays: 2, DelayHours: 12},
		EmailStep{Subject: "Checking in", Body: "still here?"},
	}

	raw, err := EncodeSteps(steps)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := DecodeSteps(raw)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != len(steps) {
		t.Fatalf("expected %d steps, got %d", len(steps), len(decoded))
	}

	cond, ok := decoded[0].(ConditionStep)
	if !ok {
		t.Fatalf("step 0 should be a condition, got %T", decoded[0])
	}
	if cond.Field != "role" || cond.Operator != "equals" || cond.Value != "coach" {
		t.Fatalf("condition did not round-trip: %+v", cond)
	}

	email, ok := decoded[1].(EmailStep)
	if !ok {
		t.Fatalf("step 1 should be an email, got %T", decoded[1])
	}
	if email.Subject != "Welcome aboard" || email.TemplateKey != "welcome" || email.Locale != "es" {
		t.Fatalf("email did not round-trip: %+v", email)
	}

	delay, ok := decoded[2].(DelayStep)
	if !ok {
		t.Fatalf("step 2 should be a delay, got %T", decoded[2])
	}
	if delay.DelayDays != 2 || delay.DelayHours != 12 {
		t.Fatalf("delay did not round-trip: %+v", delay)
	}
}

func TestDecodeStepsRejectsUnknownType(t *testing.T) {
	if _, err := DecodeSteps(datatypes.JSON([]byte(`[{"type":"webhook","url":"x"}]`))); err == nil {
		t.Fatal("unknown step type must fail decoding")
	}
}

func TestDecodeStepsRejectsMalformedJSON(t *testing.T) {
	if _, err := DecodeSteps(datatypes.JSON([]byte(`{"type":"email"}`))); err == nil {
		t.Fatal("a non-array payload must fail decoding")
	}
	if _, err := DecodeSteps(datatypes.JSON([]byte(`[{`))); err == nil {
		t.Fatal("truncated JSON must fail decoding")
	}
}

func TestDecodeStepsEmpty(t *testing.T) {
	steps, err := DecodeSteps(nil)
	if err != nil {
		t.Fatalf("nil payload: %v", err)
	}
	if len(steps) != 0 {
		t.Fatalf("nil payload should decode to no steps, got %d", len(steps))
	}
}
