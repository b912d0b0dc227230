package service

import (
	"errors"
	"reflect"
	"regexp"
	"strings"

	"gym-booking-service/internal/model"

	"github.com/go-playground/validator/v10"
)

var hhmmPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)

// NewValidator returns a validator that understands the catalog's custom
// rules and reports fields by their JSON names.
func NewValidator() *validator.Validate {
	v := validator.New()

	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmmPattern.MatchString(fl.Field().String())
	})

	v.RegisterStructValidation(func(sl validator.StructLevel) {
		entry := sl.Current().Interface().(model.ScheduleEntry)
		if entry.StartTime != "" && entry.EndTime != "" && entry.StartTime >= entry.EndTime {
			sl.ReportError(entry.EndTime, "end_time", "EndTime", "gtfield", "start_time")
		}
	}, model.ScheduleEntry{})

	return v
}

func validateTemplate(v *validator.Validate, class *model.ClassTemplate) error {
	fields := map[string]string{}

	if err := v.Struct(class); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for k, rule := range fieldErrors(verrs) {
			fields[k] = rule
		}
	}
	if class.Price.IsNegative() {
		fields["price"] = "min"
	}

	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// fieldErrors flattens validator errors into "schedule[0].end_time" style keys.
func fieldErrors(verrs validator.ValidationErrors) map[string]string {
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		ns := fe.Namespace()
		if i := strings.Index(ns, "."); i >= 0 {
			ns = ns[i+1:]
		}
		out[ns] = fe.Tag()
	}
	return out
}

// ValidateRequest runs struct validation on a request payload and converts
// failures into a *ValidationError.
func ValidateRequest(v *validator.Validate, req any) error {
	if err := v.Struct(req); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			return &ValidationError{Fields: fieldErrors(verrs)}
		}
		return err
	}
	return nil
}
