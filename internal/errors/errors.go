package errors

import "fmt"

type AppError struct {
	Code    string
	Message string
	Cause   error
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an AppError with the same code, so wrapped
// errors still match the predefined sentinels via errors.Is.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

func New(code, message string, cause ...error) *AppError {
	var c error
	if len(cause) > 0 {
		c = cause[0]
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   c,
	}
}

var (
	ErrConfigNotFound = &AppError{Code: "CONFIG_001", Message: "configuration not found"}
	ErrConfigInvalid  = &AppError{Code: "CONFIG_002", Message: "invalid configuration"}

	ErrNoCarnet         = &AppError{Code: "DOC_001", Message: "document has no carnet"}
	ErrCarnetMismatch   = &AppError{Code: "DOC_002", Message: "document carnet does not match profile"}
	ErrNotPDF           = &AppError{Code: "DOC_003", Message: "file is not a PDF"}
	ErrExtractionFailed = &AppError{Code: "DOC_004", Message: "text extraction failed"}

	ErrProfileRequired = &AppError{Code: "PROFILE_001", Message: "profile with carnet required"}

	ErrUnparseableDateTime = &AppError{Code: "AGENDA_001", Message: "unparseable date/time"}
	ErrAppointmentNotFound = &AppError{Code: "AGENDA_002", Message: "appointment not found"}

	ErrStore       = &AppError{Code: "STORE_001", Message: "store operation failed"}
	ErrStoreLocked = &AppError{Code: "STORE_002", Message: "data directory in use by another process"}

	ErrNotFound   = &AppError{Code: "GEN_001", Message: "resource not found"}
	ErrBadRequest = &AppError{Code: "GEN_002", Message: "bad request"}
	ErrInternal   = &AppError{Code: "GEN_003", Message: "internal error"}
)

func IsAppError(err error) bool {
	_, ok := err.(*AppError)
	return ok
}

func GetCode(err error) string {
	if appErr, ok := err.(*AppError); ok {
		return appErr.Code
	}
	return "UNKNOWN"
}

func Wrap(err error, code, message string) *AppError {
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}
