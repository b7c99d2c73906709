// Package validation wraps go-playground/validator with a shared instance
// and converts failures into RequestValidationError values that the HTTP
// layer renders as field-level details.
//
// Field names are taken from json tags so messages match request bodies:
//
//	type annotation struct {
//	    StartTime float64 `json:"startTime" validate:"gte=0"`
//	}
package validation
