package admission

import (
	"context"
	"fmt"
	"strings"
)

// Reconciliation reports what a verified payment produced.
// Created is false when the admission already existed.
type Reconciliation struct {
	Kind         Kind
	CourseID     CourseID
	LiveLessonID LiveLessonID
	Created      bool
}

// VerifyPayment confirms a paid checkout session belongs to the student and
// records the admission it paid for. Repeating it for the same session is safe.
func (service *Service) VerifyPayment(ctx context.Context, sessionID string, student Student) (Reconciliation, error) {
	trimmedSessionID := strings.TrimSpace(sessionID)
	reconciliation, operationError := service.verifyPayment(ctx, trimmedSessionID, student)
	entityID := reconciliation.CourseID.Int64()
	if reconciliation.Kind == KindLiveLessonBooking {
		entityID = reconciliation.LiveLessonID.Int64()
	}
	service.logOperation(ctx, OperationLog{
		Operation:    operationVerifyPayment,
		Kind:         reconciliation.Kind,
		EntityID:     entityID,
		StudentEmail: student.Email.String(),
		SessionID:    trimmedSessionID,
		Created:      reconciliation.Created,
		Error:        operationError,
	})
	return reconciliation, operationError
}

func (service *Service) verifyPayment(ctx context.Context, sessionID string, student Student) (Reconciliation, error) {
	if sessionID == "" {
		return Reconciliation{}, fmt.Errorf("%w: empty value", ErrInvalidSessionID)
	}
	gateway, err := service.requireGateway()
	if err != nil {
		return Reconciliation{}, err
	}
	session, err := gateway.RetrieveCheckoutSession(ctx, sessionID)
	if err != nil {
		return Reconciliation{}, WrapError(errorOperationGateway, errorSubjectCheckoutSession, errorCodeRetrieve, err)
	}
	if session.PaymentStatus != PaymentStatusPaid {
		return Reconciliation{}, fmt.Errorf("%w: status %q", ErrPaymentIncomplete, session.PaymentStatus)
	}
	if session.Metadata[metadataKeyStudentEmail] != student.Email.String() {
		return Reconciliation{}, ErrIdentityMismatch
	}

	kind := Kind(session.Metadata[metadataKeyType])
	switch kind {
	case KindCourseEnrollment:
		courseID, err := ParseCourseID(session.Metadata[metadataKeyCourseID])
		if err != nil {
			return Reconciliation{Kind: kind}, fmt.Errorf("%w: %v", ErrUnknownPaymentType, err)
		}
		_, created, err := service.admitCourse(ctx, courseID, student, paymentConfirmed, sessionID)
		if err != nil {
			return Reconciliation{Kind: kind, CourseID: courseID}, err
		}
		return Reconciliation{Kind: kind, CourseID: courseID, Created: created}, nil
	case KindLiveLessonBooking:
		liveLessonID, err := ParseLiveLessonID(session.Metadata[metadataKeyLiveLessonID])
		if err != nil {
			return Reconciliation{Kind: kind}, fmt.Errorf("%w: %v", ErrUnknownPaymentType, err)
		}
		name := student.Name
		if name.String() == "" {
			name, err = NewStudentName(student.DisplayName())
			if err != nil {
				return Reconciliation{Kind: kind, LiveLessonID: liveLessonID}, err
			}
		}
		_, created, err := service.admitLiveLesson(ctx, liveLessonID, student.Email, name, paymentConfirmed, sessionID)
		if err != nil {
			return Reconciliation{Kind: kind, LiveLessonID: liveLessonID}, err
		}
		return Reconciliation{Kind: kind, LiveLessonID: liveLessonID, Created: created}, nil
	default:
		return Reconciliation{}, fmt.Errorf("%w: %q", ErrUnknownPaymentType, kind)
	}
}
