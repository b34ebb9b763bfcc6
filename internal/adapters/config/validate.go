package config

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.trai.ch/ybt/internal/core/domain"
)

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("yaml"), ",")
		if name == "" || name == "-" {
			return f.Name
		}
		return name
	})
	return v
}

// check validates every declaration separately so errors name their owner.
func (l *Loader) check(file *File) error {
	var errs []error
	if file.Settings != nil {
		errs = append(errs, l.checkOne("settings", file.Settings)...)
	}
	for i := range file.Environments {
		errs = append(errs, l.checkOne(file.Environments[i].Name, &file.Environments[i])...)
	}
	for i := range file.Targets {
		errs = append(errs, l.checkOne(file.Targets[i].Name, &file.Targets[i])...)
	}
	for i := range file.Policies {
		errs = append(errs, l.checkOne(file.Policies[i].Name, &file.Policies[i])...)
	}
	return errors.Join(errs...)
}

func (l *Loader) checkOne(owner string, s any) []error {
	err := l.validate.Struct(s)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return []error{&domain.MalformedDeclarationError{Target: owner, Reason: err.Error()}}
	}

	out := make([]error, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		out = append(out, &domain.MalformedDeclarationError{Target: owner, Reason: describe(fe)})
	}
	return out
}

func describe(fe validator.FieldError) string {
	field := fieldPath(fe)
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "oneof":
		return fmt.Sprintf("%s must be one of [%s], got %q", field, fe.Param(), fe.Value())
	case "min":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "excluded_with":
		return fmt.Sprintf("%s cannot be combined with %s", field, strings.ToLower(fe.Param()))
	case "required_without":
		return fmt.Sprintf("%s or %s is required", field, strings.ToLower(fe.Param()))
	case "required_if":
		cond, _, _ := strings.Cut(fe.Param(), " ")
		return fmt.Sprintf("%s is required by this %s", field, strings.ToLower(cond))
	default:
		return fmt.Sprintf("%s is invalid (%s)", field, fe.Tag())
	}
}

// fieldPath drops the top-level struct name from the namespace.
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if _, rest, ok := strings.Cut(ns, "."); ok {
		return rest
	}
	return ns
}
