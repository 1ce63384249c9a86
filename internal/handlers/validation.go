package handlers

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/BradenHooton/carepoint/internal/models"
	"github.com/go-playground/validator/v10"
)

// Global validator instance (reused across all handlers)
var validate = newValidator()

var (
	personNameRe = regexp.MustCompile(`^[\p{L} '\-]+$`)
	phoneRe      = regexp.MustCompile(`^\+?[0-9][0-9 \-()]{6,19}$`)
	usernameRe   = regexp.MustCompile(`^[a-zA-Z0-9_]+$`)
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())

	// Report fields by their JSON names
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("personname", func(fl validator.FieldLevel) bool {
		return personNameRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
		return phoneRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernameRe.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("isodate", func(fl validator.FieldLevel) bool {
		_, err := time.Parse(models.DateLayout, fl.Field().String())
		return err == nil
	})
	_ = v.RegisterValidation("timeslot", func(fl validator.FieldLevel) bool {
		return models.ValidTimeSlot(fl.Field().String())
	})
	_ = v.RegisterValidation("department", func(fl validator.FieldLevel) bool {
		return models.Department(fl.Field().String()).Valid()
	})
	return v
}

// ValidateRequest validates a request struct using go-playground/validator.
// Failures come back as *models.ValidationError keyed by JSON field name.
func ValidateRequest(req any) error {
	err := validate.Struct(req)
	if err == nil {
		return nil
	}

	ve, ok := err.(validator.ValidationErrors)
	if !ok {
		return fmt.Errorf("validation failed: %w", err)
	}

	out := models.NewValidationError()
	for _, fe := range ve {
		if _, seen := out.Fields[fe.Field()]; !seen {
			out.Add(fe.Field(), formatValidationError(fe))
		}
	}
	return out
}

// formatValidationError converts a validator FieldError to a user-friendly message
func formatValidationError(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "this field is required"
	case "email":
		return "must be a valid email address"
	case "min":
		return fmt.Sprintf("must have a minimum of %s characters", fe.Param())
	case "max":
		return fmt.Sprintf("must have a maximum of %s characters", fe.Param())
	case "len":
		return fmt.Sprintf("must be exactly %s characters", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be greater than or equal to %s", fe.Param())
	case "lte":
		return fmt.Sprintf("must be less than or equal to %s", fe.Param())
	case "numeric":
		return "must contain only digits"
	case "personname":
		return "may contain only letters, spaces, hyphens and apostrophes"
	case "phone":
		return "must be a valid phone number"
	case "username":
		return "may contain only letters, numbers and underscores"
	case "isodate":
		return "must be a date in YYYY-MM-DD format"
	case "timeslot":
		return "must be one of: " + strings.Join(models.TimeSlots, ", ")
	case "department":
		return "must be a known department"
	case "uuid4", "uuid":
		return "must be a valid id"
	default:
		return fmt.Sprintf("failed validation: %s", fe.Tag())
	}
}
