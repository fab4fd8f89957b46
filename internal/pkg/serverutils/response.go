package serverutils

type Response[T any] struct {
	Success bool   `json:"success"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Data    T      `json:"data,omitempty"`
}

func SuccessResponse[T any](message string, data T) *Response[T] {
	return &Response[T]{
		Success: true,
		Code:    200,
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(code int, message string) *Response[any] {
	return &Response[any]{
		Success: false,
		Code:    code,
		Message: message,
	}
}

// FieldError describes one failed validation rule.
type FieldError struct {
	Field string `json:"field"`
	Tag   string `json:"tag"`
	Param string `json:"param,omitempty"`
}

func ValidationErrorResponse(errs []FieldError) *Response[[]FieldError] {
	return &Response[[]FieldError]{
		Success: false,
		Code:    400,
		Message: "Validation failed",
		Data:    errs,
	}
}
