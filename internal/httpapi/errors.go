package httpapi

import (
	"errors"
	"net/http"

	"github.com/MarkoPoloResearchLab/academy/internal/catalog"
	"github.com/MarkoPoloResearchLab/academy/pkg/admission"
	"github.com/gin-gonic/gin"
)

const (
	codeInvalidRequest           = "invalid_request"
	codeUnauthorized             = "unauthorized"
	codeCourseNotFound           = "course_not_found"
	codeLiveLessonNotFound       = "live_lesson_not_found"
	codeAlreadyEnrolled          = "already_enrolled"
	codeAlreadyBooked            = "already_booked"
	codeLiveLessonFull           = "live_lesson_full"
	codePastSchedule             = "past_schedule"
	codePaymentIncomplete        = "payment_incomplete"
	codeUnknownPaymentType       = "unknown_payment_type"
	codePaymentVerification      = "payment_verification_failed"
	codePaymentProcessingFailed  = "payment_processing_failed"
	codeInternalError            = "internal_error"
	messageMissingFields         = "Missing required fields"
	messageAuthenticationNeeded  = "Authentication required"
	messagePaymentProcessing     = "Payment processing failed"
	messagePaymentVerification   = "Payment verification failed"
	messageInternalError         = "Internal server error"
	messageAlreadyEnrolledCourse = "You are already enrolled in this course"
	messageAlreadyBookedLesson   = "You are already booked for this lesson"
)

// apiError is a classified failure ready to be written as a JSON body.
type apiError struct {
	status  int
	code    string
	message string
}

func (failure apiError) isServerError() bool {
	return failure.status >= http.StatusInternalServerError
}

// classifyError maps a service error to its status, code, and message.
// kind decides how a write-time duplicate is reported; fallback is used for
// failures that are not domain rejections.
func classifyError(err error, kind admission.Kind, fallback apiError) apiError {
	switch {
	case errors.Is(err, admission.ErrDuplicateAdmission):
		if kind == admission.KindLiveLessonBooking {
			return apiError{status: http.StatusBadRequest, code: codeAlreadyBooked, message: messageAlreadyBookedLesson}
		}
		return apiError{status: http.StatusBadRequest, code: codeAlreadyEnrolled, message: messageAlreadyEnrolledCourse}
	case errors.Is(err, admission.ErrCourseNotFound):
		return apiError{status: http.StatusNotFound, code: codeCourseNotFound, message: "Course not found or not available"}
	case errors.Is(err, admission.ErrLiveLessonNotFound):
		return apiError{status: http.StatusNotFound, code: codeLiveLessonNotFound, message: "Live lesson not found or inactive"}
	case errors.Is(err, admission.ErrAlreadyEnrolled):
		return apiError{status: http.StatusBadRequest, code: codeAlreadyEnrolled, message: messageAlreadyEnrolledCourse}
	case errors.Is(err, admission.ErrAlreadyBooked):
		return apiError{status: http.StatusBadRequest, code: codeAlreadyBooked, message: messageAlreadyBookedLesson}
	case errors.Is(err, admission.ErrLiveLessonFull):
		return apiError{status: http.StatusBadRequest, code: codeLiveLessonFull, message: "No available spots for this lesson"}
	case errors.Is(err, admission.ErrPastSchedule):
		return apiError{status: http.StatusBadRequest, code: codePastSchedule, message: "This lesson has already started"}
	case errors.Is(err, admission.ErrPaymentIncomplete):
		return apiError{status: http.StatusBadRequest, code: codePaymentIncomplete, message: "Payment not completed"}
	case errors.Is(err, admission.ErrUnknownPaymentType):
		return apiError{status: http.StatusBadRequest, code: codeUnknownPaymentType, message: "Invalid payment type"}
	case errors.Is(err, admission.ErrIdentityMismatch):
		return apiError{status: http.StatusForbidden, code: codePaymentVerification, message: messagePaymentVerification}
	case errors.Is(err, admission.ErrInvalidCourseID),
		errors.Is(err, admission.ErrInvalidLiveLessonID),
		errors.Is(err, admission.ErrInvalidStudentEmail),
		errors.Is(err, admission.ErrInvalidStudentName),
		errors.Is(err, admission.ErrInvalidSessionID),
		errors.Is(err, admission.ErrInvalidRedirectURL),
		errors.Is(err, catalog.ErrInvalidInput):
		return apiError{status: http.StatusBadRequest, code: codeInvalidRequest, message: err.Error()}
	default:
		return fallback
	}
}

func internalFailure() apiError {
	return apiError{status: http.StatusInternalServerError, code: codeInternalError, message: messageInternalError}
}

func paymentProcessingFailure() apiError {
	return apiError{status: http.StatusInternalServerError, code: codePaymentProcessingFailed, message: messagePaymentProcessing}
}

func paymentVerificationFailure() apiError {
	return apiError{status: http.StatusInternalServerError, code: codePaymentProcessingFailed, message: messagePaymentVerification}
}

func invalidRequest(message string) apiError {
	return apiError{status: http.StatusBadRequest, code: codeInvalidRequest, message: message}
}

func unauthorized() apiError {
	return apiError{status: http.StatusUnauthorized, code: codeUnauthorized, message: messageAuthenticationNeeded}
}

func errorResponse(failure apiError) gin.H {
	return gin.H{
		"success": false,
		"error":   failure.message,
		"code":    failure.code,
	}
}
