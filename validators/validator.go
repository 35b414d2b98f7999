package validators

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/anonto42/yatube/backend/internal/apperr"
)

var (
	slugPattern     = regexp.MustCompile(`^[-a-zA-Z0-9_]+$`)
	usernamePattern = regexp.MustCompile(`^[\w.@+-]+$`)
)

// CustomValidator adapts validator.Validate to echo.Validator.
type CustomValidator struct {
	validate *validator.Validate
}

// NewValidator returns the validator installed on the echo instance.
func NewValidator() *CustomValidator {
	return &CustomValidator{validate: New()}
}

// Validate implements echo.Validator. Failures come back as *apperr.ValidationError.
func (cv *CustomValidator) Validate(i interface{}) error {
	return ToValidationError(cv.validate.Struct(i))
}

// New builds a validator that reports form/json field names and knows the
// "slug" and "username" tags.
func New() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"form", "json"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return strings.ToLower(fld.Name)
	})
	_ = v.RegisterValidation("slug", func(fl validator.FieldLevel) bool {
		return slugPattern.MatchString(fl.Field().String())
	})
	_ = v.RegisterValidation("username", func(fl validator.FieldLevel) bool {
		return usernamePattern.MatchString(fl.Field().String())
	})
	return v
}

// ToValidationError converts validator output into the field map used by the handlers.
// Errors of any other kind pass through unchanged.
func ToValidationError(err error) error {
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return err
	}
	verr := &apperr.ValidationError{}
	for _, fe := range fieldErrs {
		verr.Add(fe.Field(), message(fe))
	}
	return verr
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "This field is required."
	case "email":
		return "Enter a valid email address."
	case "min":
		return "Ensure this value has at least " + fe.Param() + " characters."
	case "max":
		return "Ensure this value has at most " + fe.Param() + " characters."
	case "slug":
		return "Enter a valid slug consisting of letters, numbers, underscores or hyphens."
	case "username":
		return "Enter a valid username."
	default:
		return "Invalid value."
	}
}
