package validation

import (
	"errors"
	"fmt"
	"reflect"
	"sort"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/Davzs/adezz/internal/models"
)

// ErrInvalid is matched by every *Error.
var ErrInvalid = errors.New("validation failed")

// Error carries the rule each invalid field failed, keyed by JSON field name.
type Error struct {
	Fields map[string]string
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return ErrInvalid.Error()
	}
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, fmt.Sprintf("%s: %s", k, e.Fields[k]))
	}
	return fmt.Sprintf("%s (%s)", ErrInvalid.Error(), strings.Join(parts, ", "))
}

func (e *Error) Unwrap() error {
	return ErrInvalid
}

// Field builds an Error for a single field.
func Field(name, rule string) *Error {
	return &Error{Fields: map[string]string{name: rule}}
}

var validate *validator.Validate

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			return fld.Name
		}
		return name
	})

	mustRegister("category", oneOfList(models.Categories))
	mustRegister("condition", oneOfList(models.Conditions))
	mustRegister("listing_status", oneOfList([]string{
		string(models.ListingDraft),
		string(models.ListingActive),
		string(models.ListingInactive),
		string(models.ListingSold),
	}))
}

func mustRegister(tag string, fn validator.Func) {
	if err := validate.RegisterValidation(tag, fn); err != nil {
		panic(err)
	}
}

func oneOfList(allowed []string) validator.Func {
	set := make(map[string]struct{}, len(allowed))
	for _, a := range allowed {
		set[a] = struct{}{}
	}
	return func(fl validator.FieldLevel) bool {
		_, ok := set[fl.Field().String()]
		return ok
	}
}

// Struct validates v against its `validate` tags and returns an *Error on failure.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var vErrs validator.ValidationErrors
	if errors.As(err, &vErrs) {
		out := &Error{Fields: make(map[string]string, len(vErrs))}
		for _, fe := range vErrs {
			out.Fields[fieldPath(fe)] = rule(fe)
		}
		return out
	}
	return fmt.Errorf("validate %T: %w", v, err)
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if i := strings.Index(ns, "."); i >= 0 {
		return ns[i+1:]
	}
	return fe.Field()
}

func rule(fe validator.FieldError) string {
	if fe.Param() != "" {
		return fe.Tag() + "=" + fe.Param()
	}
	return fe.Tag()
}
