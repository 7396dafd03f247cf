// Package validate is the shape validator shared by the endpoints. Every
// failure is a taxonomy error ready for the envelope.
package validate

import (
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/anshika-invatu/merchantwebapi-sub000/internal/apierr"
)

// DateLayout is the only accepted date format.
const DateLayout = "2006-01-02"

// MaxLookBackYears bounds how far back a date range may start.
const MaxLookBackYears = 2

// Required checks that body is present and that every field is set. A field
// holding null, "" or only whitespace counts as missing.
func Required(body map[string]any, resource string, fields ...string) error {
	if body == nil {
		return apierr.EmptyRequestBody(resource)
	}
	var missing []string
	for _, f := range fields {
		if isBlank(body[f]) {
			missing = append(missing, f)
		}
	}
	if len(missing) > 0 {
		return apierr.MissingFields(missing...)
	}
	return nil
}

func isBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case string:
		return strings.TrimSpace(t) == ""
	default:
		return false
	}
}

// IsUUIDv4 matches ^[0-9a-f]{8}-[0-9a-f]{4}-4[0-9a-f]{3}-[89ab][0-9a-f]{3}-[0-9a-f]{12}$ case-insensitively.
func IsUUIDv4(s string) bool {
	if len(s) != 36 {
		return false
	}
	id, err := uuid.Parse(s)
	if err != nil {
		return false
	}
	return id.Version() == 4 && id.Variant() == uuid.RFC4122
}

// UUID fails with InvalidUUIDError naming field.
func UUID(field, value string) error {
	if !IsUUIDv4(value) {
		return apierr.InvalidUUID(field)
	}
	return nil
}

// UUIDs validates several field/value pairs in order.
func UUIDs(pairs ...string) error {
	for i := 0; i+1 < len(pairs); i += 2 {
		if err := UUID(pairs[i], pairs[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// OneOf restricts value to a closed set.
func OneOf(field, value string, allowed ...string) error {
	for _, a := range allowed {
		if value == a {
			return nil
		}
	}
	return apierr.FieldValidation(fmt.Sprintf("The %s must be one of: %s.", field, strings.Join(allowed, ", ")))
}

// Date parses an ISO YYYY-MM-DD value.
func Date(field, value string) (time.Time, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(value))
	if err != nil {
		return time.Time{}, apierr.FieldValidation(fmt.Sprintf("The %s must be a date in YYYY-MM-DD format.", field))
	}
	return t, nil
}

// DateRange parses both ends and enforces from <= to and the look-back
// window relative to now.
func DateRange(from, to string, now time.Time) (time.Time, time.Time, error) {
	start, err := Date("fromDate", from)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := Date("toDate", to)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	if end.Before(start) {
		return time.Time{}, time.Time{}, apierr.FieldValidation("The fromDate must not be after the toDate.")
	}
	y, m, d := now.UTC().Date()
	limit := time.Date(y-MaxLookBackYears, m, d, 0, 0, 0, 0, time.UTC)
	if start.Before(limit) {
		return time.Time{}, time.Time{}, apierr.FieldValidation(
			fmt.Sprintf("The fromDate must not be more than %d years in the past.", MaxLookBackYears))
	}
	return start, end, nil
}

// Email checks a single bare address.
func Email(field, value string) error {
	addr, err := mail.ParseAddress(strings.TrimSpace(value))
	if err != nil || addr.Address != strings.TrimSpace(value) {
		return apierr.FieldValidation(fmt.Sprintf("The %s is not a valid email address.", field))
	}
	return nil
}
