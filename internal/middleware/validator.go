package middleware

import (
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/validator"
)

// RequestValidator plugs go-playground/validator into echo.
type RequestValidator struct {
	validate *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	v := validator.New()
	// Report json field names rather than Go field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &RequestValidator{validate: v}
}

func (rv *RequestValidator) Validate(i interface{}) error {
	return rv.validate.Struct(i)
}

// ValidationDetails turns validator errors into a field -> message map. It
// returns nil for any other error.
func ValidationDetails(err error) map[string]string {
	errs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}

	details := make(map[string]string, len(errs))
	for _, fe := range errs {
		switch fe.ActualTag() {
		case "required":
			details[fe.Field()] = fmt.Sprintf("field %s is a required field", fe.Field())
		case "oneof":
			details[fe.Field()] = fmt.Sprintf("field %s must be one of: %s", fe.Field(), fe.Param())
		case "uuid":
			details[fe.Field()] = fmt.Sprintf("field %s can contain only uuid", fe.Field())
		default:
			details[fe.Field()] = fmt.Sprintf("field %s is not valid", fe.Field())
		}
	}
	return details
}
