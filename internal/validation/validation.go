// Package validation checks operator requests before they reach the sync
// core. Struct rules use go-playground/validator tags; record payloads are
// checked field by field against their entity kind.
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/entity"
	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/tenant"
)

// MaxTextLength bounds a single text field of a record.
const MaxTextLength = 4000

// ValidationError represents a single field validation failure.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Collector accumulates validation errors without failing on first.
type Collector struct {
	errors []ValidationError
}

// Add appends a validation error to the collector if non-nil.
func (c *Collector) Add(err *ValidationError) {
	if err != nil {
		c.errors = append(c.errors, *err)
	}
}

// HasErrors returns true if the collector has accumulated any errors.
func (c *Collector) HasErrors() bool {
	return len(c.errors) > 0
}

// Errors returns all accumulated validation errors.
func (c *Collector) Errors() []ValidationError {
	return c.errors
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
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
	_ = v.RegisterValidation("tenant", func(fl validator.FieldLevel) bool {
		return tenant.Validate(fl.Field().String()) == nil
	})
	_ = v.RegisterValidation("entitykind", func(fl validator.FieldLevel) bool {
		_, err := entity.Resolve(fl.Field().String())
		return err == nil
	})
	return v
}

// Struct validates s against its `validate` tags and reports each failing
// field under its JSON name.
func Struct(s any) []ValidationError {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return []ValidationError{{Field: "", Message: err.Error()}}
	}
	out := make([]ValidationError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, ValidationError{Field: fe.Field(), Message: message(fe)})
	}
	return out
}

func message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "tenant":
		return "must be a valid tenant identifier"
	case "entitykind":
		return "must be a known entity kind: " + strings.Join(entity.Names(), ", ")
	case "max":
		return fmt.Sprintf("exceeds maximum length of %s", fe.Param())
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	default:
		return fmt.Sprintf("failed %q validation", fe.Tag())
	}
}

// ValidateRecordFields checks a remote-shaped record payload for kind. Keys
// must be fields of the kind, text values must be clean and every value
// must coerce to the field type. The primary key may be present.
func ValidateRecordFields(kind entity.Kind, fields map[string]any) []ValidationError {
	byRemote := make(map[string]entity.Field, len(kind.Fields))
	for _, f := range kind.Fields {
		byRemote[f.Remote] = f
	}

	keys := make([]string, 0, len(fields))
	for k := range fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var c Collector
	for _, key := range keys {
		if key == kind.KeyField {
			continue
		}
		f, ok := byRemote[key]
		if !ok {
			c.Add(&ValidationError{Field: key, Message: "is not a field of " + kind.Name})
			continue
		}
		v := fields[key]
		if v == nil {
			continue
		}
		if s, isString := v.(string); isString && f.Type == entity.FieldString {
			c.Add(ValidateUTF8(key, s))
			c.Add(ValidateNoNullBytes(key, s))
			c.Add(ValidateMaxLength(key, s, MaxTextLength))
			continue
		}
		if _, err := entity.Coerce(f.Type, v); err != nil {
			c.Add(&ValidationError{Field: key, Message: "must be a valid " + f.Type.String()})
		}
	}
	return c.Errors()
}

// ValidateUTF8 returns an error if the value is not valid UTF-8.
func ValidateUTF8(field, value string) *ValidationError {
	if !utf8.ValidString(value) {
		return &ValidationError{
			Field:   field,
			Message: "must be valid UTF-8",
		}
	}
	return nil
}

// ValidateNoNullBytes returns an error if the value contains null bytes.
func ValidateNoNullBytes(field, value string) *ValidationError {
	if strings.Contains(value, "\x00") {
		return &ValidationError{
			Field:   field,
			Message: "must not contain null bytes",
		}
	}
	return nil
}

// ValidateMaxLength returns an error if the value exceeds max runes.
func ValidateMaxLength(field, value string, max int) *ValidationError {
	if utf8.RuneCountInString(value) > max {
		return &ValidationError{
			Field:   field,
			Message: fmt.Sprintf("exceeds maximum length of %d characters", max),
		}
	}
	return nil
}
