package domain

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/dunamismax/jobboard/internal/apperr"
	"github.com/go-playground/validator/v10"
)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		switch name {
		case "-":
			return ""
		case "":
			return field.Name
		default:
			return name
		}
	})

	enums := map[string]func(string) bool{
		"department":       IsDepartment,
		"work_type":        IsWorkType,
		"experience_level": IsExperienceLevel,
	}
	for tag, fn := range enums {
		fn := fn
		if err := v.RegisterValidation(tag, func(fl validator.FieldLevel) bool {
			return fn(fl.Field().String())
		}); err != nil {
			panic(fmt.Sprintf("register %s validation: %v", tag, err))
		}
	}
	return v
}

func validateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return apperr.InvalidInput("invalid request", err)
	}

	fields := make([]apperr.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, apperr.FieldError{
			Field:   fe.Field(),
			Message: fieldMessage(fe),
		})
	}
	return apperr.Validation(fields)
}

var fieldMessages = map[string]string{
	"jobSlug.required":   "Job slug is required",
	"name.required":      "Name is required",
	"name.min":           "Name must be at least 2 characters",
	"email.required":     "Email is required",
	"email.email":        "Please enter a valid email address",
	"interests.min":      "Please select at least one interest",
	"goals.required":     "Please tell us about your goals",
	"goals.min":          "Please provide more detail about your goals",
	"cvUrl.url":          "CV URL must be a valid URL",
	"filename.required":  "Filename is required",
	"fileType.required":  "File type is required",
	"dept.department":    "dept must be one of: " + strings.Join(departments, ", "),
	"workType.work_type": "workType must be one of: " + strings.Join(workTypes, ", "),
	"experience.experience_level": "experience must be one of: " +
		strings.Join(experienceLevels, ", "),
}

func fieldMessage(fe validator.FieldError) string {
	if msg, ok := fieldMessages[fe.Field()+"."+fe.Tag()]; ok {
		return msg
	}
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "min":
		if fe.Kind() == reflect.Slice {
			return fmt.Sprintf("%s must contain at least %s entries", fe.Field(), fe.Param())
		}
		return fmt.Sprintf("%s must be at least %s characters", fe.Field(), fe.Param())
	case "url", "http_url":
		return fe.Field() + " must be a valid URL"
	default:
		return fe.Field() + " is invalid"
	}
}
