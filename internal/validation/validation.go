// Package validation checks form input and turns it into model values.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"

	"napdiary/internal/models"
)

const MinPasswordLength = 8

var validate = newValidator()

// newValidator names fields after their form tag and adds the clock tag,
// which accepts HH:MM and HH:MM:SS.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("form"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	if err := v.RegisterValidation("clock", func(fl validator.FieldLevel) bool {
		_, err := models.ParseClockTime(fl.Field().String())
		return err == nil
	}); err != nil {
		panic(err)
	}
	return v
}

// ValidationError represents a validation error on a single form field
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ErrNapEndBeforeStart rejects naps whose end is not after their start.
// Naps crossing midnight are recorded as two entries.
var ErrNapEndBeforeStart = ValidationError{Field: "end", Message: "end time must be after start time"}

// choiceNames names the lists offered by select fields
var choiceNames = map[string]string{
	"problem": "outcomes",
	"place":   "places",
}

// fieldError turns the first validator failure into a ValidationError.
// field names values checked with Var, which carry no name of their own.
func fieldError(err error, field string) error {
	var failures validator.ValidationErrors
	if !errors.As(err, &failures) || len(failures) == 0 {
		return err
	}

	fe := failures[0]
	if fe.Field() != "" {
		field = fe.Field()
	}
	return ValidationError{Field: field, Message: message(field, fe)}
}

func message(field string, fe validator.FieldError) string {
	label := strings.ReplaceAll(field, "_", " ")

	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "invalid email format"
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", label, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "datetime":
		return "date must be YYYY-MM-DD"
	case "clock":
		return "time must be HH:MM"
	case "oneof":
		if name, ok := choiceNames[field]; ok {
			return "choose one of the listed " + name
		}
		return "choose one of: " + fe.Param()
	}
	return label + " is invalid"
}

// ValidateEmail checks if an email address is valid
func ValidateEmail(email string) error {
	return fieldError(validate.Var(strings.TrimSpace(email), "required,email"), "email")
}

// ValidatePassword checks if a password meets requirements
func ValidatePassword(password string) error {
	return fieldError(validate.Var(password, fmt.Sprintf("required,min=%d", MinPasswordLength)), "password")
}

// NormalizeEmail trims and lowercases an address before lookup or storage
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// ChildInput is the raw add-child form. Last name and date of birth are optional.
type ChildInput struct {
	FirstName   string `form:"first_name" validate:"required,min=2,max=100"`
	LastName    string `form:"last_name" validate:"max=100"`
	DateOfBirth string `form:"date_of_birth" validate:"omitempty,datetime=2006-01-02"`
}

func (in ChildInput) trimmed() ChildInput {
	return ChildInput{
		FirstName:   strings.TrimSpace(in.FirstName),
		LastName:    strings.TrimSpace(in.LastName),
		DateOfBirth: strings.TrimSpace(in.DateOfBirth),
	}
}

// ParseChild validates the add-child form
func ParseChild(in ChildInput) (*models.Child, error) {
	in = in.trimmed()
	if err := validate.Struct(in); err != nil {
		return nil, fieldError(err, "")
	}

	child := &models.Child{
		FirstName: in.FirstName,
		LastName:  in.LastName,
	}
	if in.DateOfBirth != "" {
		date, err := models.ParseDate(in.DateOfBirth)
		if err != nil {
			return nil, err
		}
		child.DateOfBirth = date
	}
	return child, nil
}

// NapInput is the raw add-nap form
type NapInput struct {
	Date    string `form:"date" validate:"required,datetime=2006-01-02"`
	Start   string `form:"start" validate:"required,clock"`
	End     string `form:"end" validate:"required,clock"`
	Problem string `form:"problem" validate:"required,oneof=OK crying screaming"`
	Place   string `form:"place" validate:"required,oneof=crib stroll arms"`
	Notes   string `form:"notes" validate:"max=1000"`
}

func (in NapInput) trimmed() NapInput {
	return NapInput{
		Date:    strings.TrimSpace(in.Date),
		Start:   strings.TrimSpace(in.Start),
		End:     strings.TrimSpace(in.End),
		Problem: strings.TrimSpace(in.Problem),
		Place:   strings.TrimSpace(in.Place),
		Notes:   strings.TrimSpace(in.Notes),
	}
}

// ParseNap validates the add-nap form. The returned nap has no ID or child yet.
func ParseNap(in NapInput) (*models.Nap, error) {
	in = in.trimmed()
	if err := validate.Struct(in); err != nil {
		return nil, fieldError(err, "")
	}

	date, err := models.ParseDate(in.Date)
	if err != nil {
		return nil, err
	}
	start, err := models.ParseClockTime(in.Start)
	if err != nil {
		return nil, err
	}
	end, err := models.ParseClockTime(in.End)
	if err != nil {
		return nil, err
	}
	if end <= start {
		return nil, ErrNapEndBeforeStart
	}

	return &models.Nap{
		Date:    date,
		Start:   start,
		End:     end,
		Problem: models.Problem(in.Problem),
		Place:   models.Place(in.Place),
		Notes:   in.Notes,
	}, nil
}

// NightNapInput is the raw night form
type NightNapInput struct {
	Date       string `form:"date" validate:"required,datetime=2006-01-02"`
	WakeUp     string `form:"wake_up" validate:"required,clock"`
	FallAsleep string `form:"fall_asleep" validate:"required,clock"`
}

func (in NightNapInput) trimmed() NightNapInput {
	return NightNapInput{
		Date:       strings.TrimSpace(in.Date),
		WakeUp:     strings.TrimSpace(in.WakeUp),
		FallAsleep: strings.TrimSpace(in.FallAsleep),
	}
}

// ParseNightNap validates the night form. Both times belong to the same date,
// the wake-up in the morning and the fall-asleep in the evening.
func ParseNightNap(in NightNapInput) (*models.NightNap, error) {
	in = in.trimmed()
	if err := validate.Struct(in); err != nil {
		return nil, fieldError(err, "")
	}

	date, err := models.ParseDate(in.Date)
	if err != nil {
		return nil, err
	}
	wakeUp, err := models.ParseClockTime(in.WakeUp)
	if err != nil {
		return nil, err
	}
	fallAsleep, err := models.ParseClockTime(in.FallAsleep)
	if err != nil {
		return nil, err
	}
	if fallAsleep <= wakeUp {
		return nil, ValidationError{Field: "fall_asleep", Message: "fall-asleep time must be after wake-up time"}
	}

	return &models.NightNap{
		Date:       date,
		WakeUp:     wakeUp,
		FallAsleep: fallAsleep,
	}, nil
}
