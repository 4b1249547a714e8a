package interpreter

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"

	"asl/interpreter/jsonpath"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
	registerCustomValidators()
}

// registerCustomValidators wires ASL-specific struct-tag rules on top of
// go-playground/validator's builtins.
func registerCustomValidators() {
	// jsonpath validates that a field, if non-empty, is a syntactically
	// valid JSONPath per the interpreter/jsonpath dialect.
	validate.RegisterValidation("jsonpath", func(fl validator.FieldLevel) bool {
		s := fl.Field().String()
		if s == "" {
			return true
		}
		_, err := compilePathOrContext(s)
		return err == nil
	})

	// asl_timeout validates that a timeout-seconds field, if set, is
	// strictly positive.
	validate.RegisterValidation("asl_timeout", func(fl validator.FieldLevel) bool {
		return fl.Field().Int() > 0
	})
}

func compilePathOrContext(s string) (any, error) {
	raw := s
	if strings.HasPrefix(raw, "$$") {
		raw = raw[1:]
	}
	return jsonpath.Compile(raw)
}

// applyDefaults fills zero-valued fields from their `default:"..."` struct
// tags, mirroring the teacher's ApplyDefaults helper.
func applyDefaults(v any) error {
	if v == nil {
		return fmt.Errorf("interpreter: cannot apply defaults to nil")
	}
	if err := defaults.Set(v); err != nil {
		return fmt.Errorf("interpreter: failed to apply default values: %w", err)
	}
	return nil
}

// validateStruct runs struct-tag validation and folds the resulting
// validator.ValidationErrors into one readable error, matching the
// formatting the rest of the codebase expects from parser errors.
func validateStruct(v any) error {
	if v == nil {
		return fmt.Errorf("interpreter: cannot validate nil")
	}
	if err := validate.Struct(v); err != nil {
		if fieldErrs, ok := err.(validator.ValidationErrors); ok {
			var msgs []string
			for _, fe := range fieldErrs {
				msgs = append(msgs, fmt.Sprintf("field '%s' failed validation: %s (rule: %s)", fe.Namespace(), fe.Error(), fe.Tag()))
			}
			return fmt.Errorf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
		}
		return fmt.Errorf("validation failed: %w", err)
	}
	return nil
}

// prepareStruct applies defaults then validates, logging at debug level so
// a parse failure's context is visible without the caller wiring its own
// logging around every Definition it decodes.
func prepareStruct(v any, kind string) error {
	if err := applyDefaults(v); err != nil {
		slog.Debug("interpreter: failed to apply defaults", "kind", kind, "error", err)
		return err
	}
	if err := validateStruct(v); err != nil {
		slog.Debug("interpreter: struct validation failed", "kind", kind, "error", err)
		return err
	}
	return nil
}
