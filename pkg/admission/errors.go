package admission

import (
	"errors"
	"fmt"
)

// Domain-level error values returned by the admission service.
var (
	ErrCourseNotFound       = errors.New("course not found")
	ErrLiveLessonNotFound   = errors.New("live lesson not found")
	ErrAlreadyEnrolled      = errors.New("already enrolled")
	ErrAlreadyBooked        = errors.New("already booked")
	ErrLiveLessonFull       = errors.New("live lesson full")
	ErrPastSchedule         = errors.New("live lesson already started")
	ErrDuplicateAdmission   = errors.New("duplicate admission")
	ErrPaymentIncomplete    = errors.New("payment incomplete")
	ErrIdentityMismatch     = errors.New("payment identity mismatch")
	ErrUnknownPaymentType   = errors.New("unknown payment type")
	ErrInvalidCourseID      = errors.New("invalid course id")
	ErrInvalidLiveLessonID  = errors.New("invalid live lesson id")
	ErrInvalidStudentEmail  = errors.New("invalid student email")
	ErrInvalidStudentName   = errors.New("invalid student name")
	ErrInvalidSessionID     = errors.New("invalid checkout session id")
	ErrInvalidPrice         = errors.New("invalid price")
	ErrInvalidSchedule      = errors.New("invalid schedule")
	ErrInvalidRedirectURL   = errors.New("invalid redirect url")
	ErrInvalidServiceConfig = errors.New("invalid service config")
	ErrGatewayNotConfigured = errors.New("payment gateway not configured")
)

// OperationError wraps a failure with a stable operation code.
type OperationError struct {
	operation string
	subject   string
	code      string
	err       error
}

// Error returns the formatted error message.
func (operationError OperationError) Error() string {
	return fmt.Sprintf("%s.%s.%s: %v", operationError.operation, operationError.subject, operationError.code, operationError.err)
}

// Unwrap returns the underlying error.
func (operationError OperationError) Unwrap() error {
	return operationError.err
}

// Operation returns the operation segment.
func (operationError OperationError) Operation() string {
	return operationError.operation
}

// Subject returns the subject segment.
func (operationError OperationError) Subject() string {
	return operationError.subject
}

// Code returns the stable error code segment.
func (operationError OperationError) Code() string {
	return operationError.code
}

// WrapError wraps an error with operation, subject, and code metadata.
func WrapError(operation string, subject string, code string, err error) error {
	if err == nil {
		return nil
	}
	return OperationError{
		operation: operation,
		subject:   subject,
		code:      code,
		err:       err,
	}
}

// IsRejection reports whether err is a domain rejection (bad input, missing
// entity, conflict, identity problem) rather than an infrastructure failure.
func IsRejection(err error) bool {
	for _, rejection := range rejectionErrors {
		if errors.Is(err, rejection) {
			return true
		}
	}
	return false
}

var rejectionErrors = []error{
	ErrCourseNotFound,
	ErrLiveLessonNotFound,
	ErrAlreadyEnrolled,
	ErrAlreadyBooked,
	ErrLiveLessonFull,
	ErrPastSchedule,
	ErrDuplicateAdmission,
	ErrPaymentIncomplete,
	ErrIdentityMismatch,
	ErrUnknownPaymentType,
	ErrInvalidCourseID,
	ErrInvalidLiveLessonID,
	ErrInvalidStudentEmail,
	ErrInvalidStudentName,
	ErrInvalidSessionID,
	ErrInvalidPrice,
	ErrInvalidRedirectURL,
}
