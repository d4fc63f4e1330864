package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
)

// ValidationError is one failed check.
type ValidationError struct {
	// FieldPath uses the TOML names (e.g. "offload.priority_qnames[0]").
	FieldPath string
	Message   string
}

// ValidationErrors collects every failed check.
type ValidationErrors []ValidationError

func (ve ValidationErrors) Error() string {
	if len(ve) == 0 {
		return "no validation errors"
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "validation failed with %d error(s):", len(ve))
	for i, err := range ve {
		fmt.Fprintf(&sb, "\n  %d. %s: %s", i+1, err.FieldPath, err.Message)
	}
	return sb.String()
}

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("toml"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
}

func validationMessage(e validator.FieldError) string {
	switch e.Tag() {
	case "required":
		return "must not be empty"
	case "max":
		return fmt.Sprintf("must be at most %s characters", e.Param())
	case "lt":
		return fmt.Sprintf("must be < %s", e.Param())
	case "oneof":
		return fmt.Sprintf("must be one of: %s", e.Param())
	default:
		return fmt.Sprintf("validation failed: %s", e.Tag())
	}
}

// Validate checks struct tags and cross-field constraints.
func (c *Config) Validate() error {
	var errs ValidationErrors

	if err := validate.Struct(c); err != nil {
		var fieldErrs validator.ValidationErrors
		if !errors.As(err, &fieldErrs) {
			return err
		}
		for _, e := range fieldErrs {
			// Namespace is "Config.offload.priority_qnames[0]".
			path := e.Namespace()
			if _, rest, ok := strings.Cut(path, "."); ok {
				path = rest
			}
			errs = append(errs, ValidationError{FieldPath: path, Message: validationMessage(e)})
		}
	}

	if c.Device.ConnectTimeout.Duration < 0 {
		errs = append(errs, ValidationError{FieldPath: "device.connect_timeout", Message: "must not be negative"})
	}
	if c.Metrics.Retention.Duration < 0 {
		errs = append(errs, ValidationError{FieldPath: "metrics.retention", Message: "must not be negative"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}
