package serverutils

import (
	"errors"

	"github.com/go-playground/validator/v10"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateRequest runs the struct's validate tags. The returned error is a
// validator.ValidationErrors, which ErrorHandlerMiddleware turns into a 400.
func ValidateRequest(req interface{}) error {
	return validate.Struct(req)
}

func toFieldErrors(err error) ([]FieldError, bool) {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, false
	}

	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, FieldError{
			Field: fe.Field(),
			Tag:   fe.Tag(),
			Param: fe.Param(),
		})
	}
	return out, true
}
