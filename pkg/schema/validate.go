package schema

import (
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func validatorInstance() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New(validator.WithRequiredStructEnabled())
	})
	return validate
}

// Validate checks every entity of the configuration against its struct rules.
// It never fails; each violation is returned as a validation error so the
// caller can record it alongside fetch and parse errors.
func Validate(c *Configuration) []ResolutionError {
	if c == nil {
		return nil
	}

	var out []ResolutionError
	check := func(collection, id string, entity any) {
		err := validatorInstance().Struct(entity)
		if err == nil {
			return
		}
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			out = append(out, ResolutionError{
				Source:  "schema",
				Kind:    ErrorKindValidation,
				Message: fmt.Sprintf("%s %q: %v", collection, id, err),
			})
			return
		}
		for _, fe := range verrs {
			out = append(out, ResolutionError{
				Source:  "schema",
				Kind:    ErrorKindValidation,
				Message: fmt.Sprintf("%s %q: %s %s", collection, id, fe.Namespace(), formatValidationError(fe)),
			})
		}
	}

	for _, e := range c.Experiments {
		check("experiment", e.ID, e)
	}
	for _, a := range c.Audiences {
		check("audience", a.ID, a)
	}
	for _, p := range c.Pages {
		check("page", p.ID, p)
	}
	for _, e := range c.Events {
		check("event", e.ID, e)
	}
	for _, f := range c.Features {
		check("feature", f.ID, f)
	}
	return out
}

// ValidateStruct runs the shared validator over any tagged struct.
// Option and request types elsewhere in the module use it.
func ValidateStruct(v any) error {
	err := validatorInstance().Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	return fmt.Errorf("%s %s", fe.Field(), formatValidationError(fe))
}

// formatValidationError creates a human-readable error message.
func formatValidationError(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "is required"
	case "min", "gte":
		return fmt.Sprintf("must be at least %s", e.Param())
	case "max", "lte":
		return fmt.Sprintf("must be at most %s", e.Param())
	case "url", "http_url":
		return "must be a valid URL"
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", e.Param())
	default:
		return fmt.Sprintf("failed validation '%s'", e.Tag())
	}
}
