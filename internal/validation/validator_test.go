package validation

import (
	"errors"
	"fmt"
	"testing"
)

type box struct {
	Label     string  `json:"annotation" validate:"required"`
	StartTime float64 `json:"startTime" validate:"gte=0"`
	EndTime   float64 `json:"endTime" validate:"gtefield=StartTime"`
}

type payload struct {
	Boxes []box  `json:"annotations" validate:"dive"`
	Title string `json:"title" validate:"max=5"`
}

func TestValidateStructPasses(t *testing.T) {
	p := payload{Boxes: []box{{Label: "Boat", StartTime: 1, EndTime: 2}}, Title: "ok"}
	if err := ValidateStruct(&p); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateStructReportsJSONFieldPaths(t *testing.T) {
	p := payload{Boxes: []box{{Label: "", StartTime: -1, EndTime: -2}}, Title: "too long"}
	err := ValidateStruct(&p)
	if err == nil {
		t.Fatal("expected validation failure")
	}
	got := map[string]string{}
	for _, fe := range err.Fields() {
		got[fe.Field] = fe.Message
	}
	want := map[string]string{
		"annotations[0].annotation": "annotations[0].annotation is required",
		"annotations[0].startTime":  "annotations[0].startTime must be greater than or equal to 0",
		"annotations[0].endTime":    "annotations[0].endTime must be greater than or equal to StartTime",
		"title":                     "title must be at most 5 characters",
	}
	for field, msg := range want {
		if got[field] != msg {
			t.Errorf("field %s: want %q, got %q", field, msg, got[field])
		}
	}
}

func TestAsRequestErrorUnwraps(t *testing.T) {
	base := NewError("annotations[0].annotation", "oneof", "unknown label")
	wrapped := fmt.Errorf("submit: %w", base)
	ve, ok := AsRequestError(wrapped)
	if !ok || ve != base {
		t.Fatalf("expected to unwrap validation error, got %v %v", ve, ok)
	}
	if _, ok := AsRequestError(errors.New("plain")); ok {
		t.Fatal("plain error should not unwrap")
	}
	ve.Add("x", "required", "x is required")
	if len(ve.Fields()) != 2 {
		t.Fatalf("expected 2 fields, got %d", len(ve.Fields()))
	}
}
