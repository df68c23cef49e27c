// Package validation wraps go-playground/validator with the hospital form
// rules (phone numbers, ISO dates, clock times) and reports failures keyed by
// JSON field name, the same shape the API uses for field-level errors.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
)

// Errors maps a JSON field name to its messages.
type Errors map[string][]string

func (e Errors) Error() string {
	keys := make([]string, 0, len(e))
	for k := range e {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, strings.Join(e[k], ", ")))
	}
	return "Validation errors: " + strings.Join(parts, "; ")
}

var (
	once     sync.Once
	instance *validator.Validate

	phoneChars = regexp.MustCompile(`^[\d\s\-+()]+$`)
)

// Validator returns the shared, fully registered validator.
func Validator() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
		_ = v.RegisterValidation("phone", validatePhone)
		_ = v.RegisterValidation("isodate", validateISODate)
		_ = v.RegisterValidation("clock", validateClock)
		instance = v
	})
	return instance
}

// Struct validates s and converts failures into Errors. It returns nil when s
// is valid.
func Struct(s any) error {
	err := Validator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	out := Errors{}
	for _, fe := range verrs {
		out[fe.Field()] = append(out[fe.Field()], message(fe))
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "phone":
		return "Enter a valid phone number."
	case "isodate":
		return "Date has wrong format. Use YYYY-MM-DD."
	case "clock":
		return "Time has wrong format. Use hh:mm[:ss]."
	case "oneof":
		return fmt.Sprintf("Must be one of: %s.", strings.ReplaceAll(fe.Param(), " ", ", "))
	case "gt", "gte":
		return fmt.Sprintf("Ensure this value is greater than or equal to %s.", minParam(fe))
	case "lte", "max":
		return fmt.Sprintf("Ensure this value is less than or equal to %s.", fe.Param())
	case "min":
		return fmt.Sprintf("Ensure this value is at least %s.", fe.Param())
	default:
		return fmt.Sprintf("Failed %q validation.", fe.Tag())
	}
}

func minParam(fe validator.FieldError) string {
	if fe.Tag() == "gt" {
		return fe.Param() + " (exclusive)"
	}
	return fe.Param()
}

// validatePhone accepts digits, spaces, dashes, plus and parentheses with at
// least ten digits overall.
func validatePhone(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if !phoneChars.MatchString(s) {
		return false
	}
	digits := 0
	for _, r := range s {
		if r >= '0' && r <= '9' {
			digits++
		}
	}
	return digits >= 10
}

func validateISODate(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	_, err := time.Parse(time.DateOnly, s)
	return err == nil
}

func validateClock(fl validator.FieldLevel) bool {
	s := fl.Field().String()
	if s == "" {
		return true
	}
	if _, err := time.Parse("15:04", s); err == nil {
		return true
	}
	_, err := time.Parse(time.TimeOnly, s)
	return err == nil
}
