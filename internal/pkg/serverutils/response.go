package serverutils

import "fmt"

// Response is the JSON envelope every endpoint returns.
type Response struct {
	Success bool        `json:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
	Errors  interface{} `json:"errors,omitempty"`
}

func SuccessResponse(message string, data interface{}) *Response {
	return &Response{
		Success: true,
		Message: message,
		Data:    data,
	}
}

func ErrorResponse(message string, errs interface{}) *Response {
	return &Response{
		Success: false,
		Message: message,
		Errors:  errs,
	}
}

// AppError is an error with an HTTP status. The error middleware renders it;
// anything else becomes an opaque 500 so backend details never leak.
type AppError struct {
	Status  int
	Message string
	Errors  interface{}
}

func (e *AppError) Error() string {
	return fmt.Sprintf("status %d: %s", e.Status, e.Message)
}

func NewNotFoundError(message string) *AppError {
	return &AppError{Status: 404, Message: message}
}

func NewBadRequestError(message string) *AppError {
	return &AppError{Status: 400, Message: message}
}

func NewValidationError(errs interface{}) *AppError {
	return &AppError{Status: 422, Message: "Validation failed", Errors: errs}
}
