package admission

import (
	"context"
	"errors"
	"fmt"
	"time"
)

// CheckoutConfig holds processor-facing defaults for checkout sessions.
type CheckoutConfig struct {
	Currency               string
	DefaultRedirectBaseURL string
}

// Service contains the admission rules over a Store and a PaymentGateway.
type Service struct {
	store     Store
	nowFn     func() time.Time
	gateway   PaymentGateway
	publisher EventPublisher
	logger    OperationLogger
	checkout  CheckoutConfig
}

// NewService wires a Service.
func NewService(store Store, now func() time.Time, options ...ServiceOption) (*Service, error) {
	if store == nil {
		return nil, fmt.Errorf("%w: store dependency is nil", ErrInvalidServiceConfig)
	}
	if now == nil {
		return nil, fmt.Errorf("%w: clock dependency is nil", ErrInvalidServiceConfig)
	}
	service := &Service{
		store:    store,
		nowFn:    now,
		checkout: CheckoutConfig{Currency: defaultCurrency},
	}
	for _, option := range options {
		if option != nil {
			option(service)
		}
	}
	return service, nil
}

// admissionMode selects how much of the guard runs before the write.
type admissionMode int

const (
	// paymentWaived admits directly: the full availability guard runs first.
	paymentWaived admissionMode = iota
	// paymentConfirmed reconciles a captured payment: only the existence check runs,
	// and an existing admission turns the write into a no-op.
	paymentConfirmed
)

// CheckCourse decides whether the student may be admitted to the course.
func (service *Service) CheckCourse(ctx context.Context, courseID CourseID, email StudentEmail) (Course, error) {
	return service.checkCourse(ctx, service.store, courseID, email)
}

// CheckLiveLesson decides whether the student may book the live lesson.
func (service *Service) CheckLiveLesson(ctx context.Context, liveLessonID LiveLessonID, email StudentEmail) (LiveLesson, error) {
	return service.checkLiveLesson(ctx, service.store, liveLessonID, email)
}

// EnrollCourse admits the student to a course without payment.
func (service *Service) EnrollCourse(ctx context.Context, courseID CourseID, student Student) (Enrollment, error) {
	enrollment, _, operationError := service.admitCourse(ctx, courseID, student, paymentWaived, "")
	service.logOperation(ctx, OperationLog{
		Operation:    operationEnroll,
		Kind:         KindCourseEnrollment,
		EntityID:     courseID.Int64(),
		StudentEmail: student.Email.String(),
		Created:      operationError == nil,
		Error:        operationError,
	})
	return enrollment, operationError
}

// BookLiveLesson books the student onto a live lesson without payment.
func (service *Service) BookLiveLesson(ctx context.Context, liveLessonID LiveLessonID, student Student) (Booking, error) {
	var (
		booking        Booking
		operationError error
	)
	if student.Name.String() == "" {
		operationError = fmt.Errorf("%w: empty value", ErrInvalidStudentName)
	} else {
		booking, _, operationError = service.admitLiveLesson(ctx, liveLessonID, student.Email, student.Name, paymentWaived, "")
	}
	service.logOperation(ctx, OperationLog{
		Operation:    operationBook,
		Kind:         KindLiveLessonBooking,
		EntityID:     liveLessonID.Int64(),
		StudentEmail: student.Email.String(),
		Created:      operationError == nil,
		Error:        operationError,
	})
	return booking, operationError
}

func (service *Service) checkCourse(ctx context.Context, store Store, courseID CourseID, email StudentEmail) (Course, error) {
	course, err := store.GetCourse(ctx, courseID)
	if err != nil {
		return Course{}, err
	}
	enrolled, err := store.EnrollmentExists(ctx, courseID, email)
	if err != nil {
		return Course{}, err
	}
	if enrolled {
		return Course{}, ErrAlreadyEnrolled
	}
	return course, nil
}

// checkLiveLesson rejects in order: missing, already started, full, already booked.
// A full lesson is reported as full even to a student who already holds a booking.
func (service *Service) checkLiveLesson(ctx context.Context, store Store, liveLessonID LiveLessonID, email StudentEmail) (LiveLesson, error) {
	lesson, err := store.GetLiveLesson(ctx, liveLessonID)
	if err != nil {
		return LiveLesson{}, err
	}
	started, err := lesson.Schedule.HasStartedBy(service.nowFn())
	if err != nil {
		return LiveLesson{}, err
	}
	if started {
		return LiveLesson{}, ErrPastSchedule
	}
	if lesson.IsFull() {
		return LiveLesson{}, ErrLiveLessonFull
	}
	booked, err := store.BookingExists(ctx, liveLessonID, email)
	if err != nil {
		return LiveLesson{}, err
	}
	if booked {
		return LiveLesson{}, ErrAlreadyBooked
	}
	return lesson, nil
}

// admitCourse inserts the enrollment and bumps the course counter as one unit.
// The guard reads run inside the same transaction but take no row lock, so two
// concurrent admissions can both pass the capacity read; the uniqueness
// constraint is what keeps a (course, student) pair at one record.
func (service *Service) admitCourse(ctx context.Context, courseID CourseID, student Student, mode admissionMode, sessionID string) (Enrollment, bool, error) {
	var (
		enrollment Enrollment
		created    bool
	)
	err := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		switch mode {
		case paymentWaived:
			if _, err := service.checkCourse(ctx, transactionStore, courseID, student.Email); err != nil {
				return err
			}
		case paymentConfirmed:
			enrolled, err := transactionStore.EnrollmentExists(ctx, courseID, student.Email)
			if err != nil {
				return err
			}
			if enrolled {
				return nil
			}
		}
		inserted, err := transactionStore.InsertEnrollment(ctx, EnrollmentInput{
			CourseID:     courseID,
			StudentEmail: student.Email,
			EnrolledAt:   service.nowFn().UTC(),
		})
		if err != nil {
			return err
		}
		if err := transactionStore.IncrementCourseEnrollment(ctx, courseID); err != nil {
			return err
		}
		enrollment = inserted
		created = true
		return nil
	})
	if err != nil {
		if mode == paymentConfirmed && errors.Is(err, ErrDuplicateAdmission) {
			return Enrollment{}, false, nil
		}
		return Enrollment{}, false, err
	}
	if created {
		service.publishAdmission(ctx, AdmissionEvent{
			Kind:         KindCourseEnrollment,
			EntityID:     courseID.Int64(),
			StudentEmail: student.Email.String(),
			SessionID:    sessionID,
			OccurredAt:   enrollment.EnrolledAt.Unix(),
		})
	}
	return enrollment, created, nil
}

// admitLiveLesson is the booking counterpart of admitCourse; the capacity race
// noted there applies to max_students as well.
func (service *Service) admitLiveLesson(ctx context.Context, liveLessonID LiveLessonID, email StudentEmail, name StudentName, mode admissionMode, sessionID string) (Booking, bool, error) {
	var (
		booking Booking
		created bool
	)
	err := service.store.WithTx(ctx, func(ctx context.Context, transactionStore Store) error {
		switch mode {
		case paymentWaived:
			if _, err := service.checkLiveLesson(ctx, transactionStore, liveLessonID, email); err != nil {
				return err
			}
		case paymentConfirmed:
			booked, err := transactionStore.BookingExists(ctx, liveLessonID, email)
			if err != nil {
				return err
			}
			if booked {
				return nil
			}
		}
		inserted, err := transactionStore.InsertBooking(ctx, BookingInput{
			LiveLessonID: liveLessonID,
			StudentEmail: email,
			StudentName:  name,
			BookingDate:  service.nowFn().UTC(),
		})
		if err != nil {
			return err
		}
		if err := transactionStore.IncrementLiveLessonEnrollment(ctx, liveLessonID); err != nil {
			return err
		}
		booking = inserted
		created = true
		return nil
	})
	if err != nil {
		if mode == paymentConfirmed && errors.Is(err, ErrDuplicateAdmission) {
			return Booking{}, false, nil
		}
		return Booking{}, false, err
	}
	if created {
		service.publishAdmission(ctx, AdmissionEvent{
			Kind:         KindLiveLessonBooking,
			EntityID:     liveLessonID.Int64(),
			StudentEmail: email.String(),
			SessionID:    sessionID,
			OccurredAt:   booking.BookingDate.Unix(),
		})
	}
	return booking, created, nil
}

func (service *Service) publishAdmission(ctx context.Context, event AdmissionEvent) {
	if service.publisher == nil {
		return
	}
	if err := service.publisher.PublishAdmission(ctx, event); err != nil {
		service.logOperation(ctx, OperationLog{
			Operation:    operationPublishEvent,
			Kind:         event.Kind,
			EntityID:     event.EntityID,
			StudentEmail: event.StudentEmail,
			SessionID:    event.SessionID,
			Error:        err,
		})
	}
}

func (service *Service) logOperation(ctx context.Context, entry OperationLog) {
	if service.logger == nil {
		return
	}
	if entry.Status == "" {
		switch {
		case entry.Error == nil:
			entry.Status = operationStatusOK
		case IsRejection(entry.Error):
			entry.Status = operationStatusRejected
		default:
			entry.Status = operationStatusError
		}
	}
	service.logger.LogOperation(ctx, entry)
}
