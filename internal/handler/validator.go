package handler

import (
	"errors"
	"fmt"

	"github.com/go-playground/validator/v10"
)

// RequestValidator adapts go-playground/validator to echo.Validator so
// handlers can call c.Validate on their request DTOs.
type RequestValidator struct {
	v *validator.Validate
}

func NewRequestValidator() *RequestValidator {
	return &RequestValidator{v: validator.New(validator.WithRequiredStructEnabled())}
}

// Validate returns the first failed rule as "<field>: <rule>".
func (rv *RequestValidator) Validate(i any) error {
	err := rv.v.Struct(i)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err
	}
	fe := verrs[0]
	switch fe.Tag() {
	case "required":
		return fmt.Errorf("%s: is required", fe.Namespace())
	case "min", "gte", "gt":
		return fmt.Errorf("%s: below minimum %s", fe.Namespace(), fe.Param())
	case "max", "lte", "lt":
		return fmt.Errorf("%s: exceeds maximum %s", fe.Namespace(), fe.Param())
	case "oneof":
		return fmt.Errorf("%s: must be one of [%s]", fe.Namespace(), fe.Param())
	case "email":
		return fmt.Errorf("%s: invalid email", fe.Namespace())
	}
	return fmt.Errorf("%s: failed %s", fe.Namespace(), fe.Tag())
}
