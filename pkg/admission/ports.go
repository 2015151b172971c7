package admission

import "context"

// Store is the persistence contract used by Service.
// gormstore and pgstore implement it.
type Store interface {
	WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error
	GetCourse(ctx context.Context, courseID CourseID) (Course, error)
	GetLiveLesson(ctx context.Context, liveLessonID LiveLessonID) (LiveLesson, error)
	EnrollmentExists(ctx context.Context, courseID CourseID, email StudentEmail) (bool, error)
	BookingExists(ctx context.Context, liveLessonID LiveLessonID, email StudentEmail) (bool, error)
	InsertEnrollment(ctx context.Context, input EnrollmentInput) (Enrollment, error)
	InsertBooking(ctx context.Context, input BookingInput) (Booking, error)
	IncrementCourseEnrollment(ctx context.Context, courseID CourseID) error
	IncrementLiveLessonEnrollment(ctx context.Context, liveLessonID LiveLessonID) error
	GetCustomerID(ctx context.Context, email StudentEmail) (string, bool, error)
	SaveCustomerID(ctx context.Context, email StudentEmail, customerID string) (string, error)
}

// PaymentStatus mirrors the processor's checkout session payment status.
type PaymentStatus string

const (
	PaymentStatusPaid   PaymentStatus = "paid"
	PaymentStatusUnpaid PaymentStatus = "unpaid"
)

// LineItem is the single product a checkout session charges for.
type LineItem struct {
	Name            string
	Description     string
	Images          []string
	UnitAmountCents AmountCents
	Currency        string
	Quantity        int64
}

// CheckoutSessionRequest describes a session to create at the processor.
type CheckoutSessionRequest struct {
	CustomerID string
	LineItem   LineItem
	SuccessURL string
	CancelURL  string
	Metadata   map[string]string
}

// CheckoutSession is the processor-side session as seen by the service.
type CheckoutSession struct {
	ID            string
	URL           string
	PaymentStatus PaymentStatus
	Metadata      map[string]string
}

// PaymentGateway is the external payment processor contract.
type PaymentGateway interface {
	CreateCustomer(ctx context.Context, email string, name string) (string, error)
	CreateCheckoutSession(ctx context.Context, request CheckoutSessionRequest) (CheckoutSession, error)
	RetrieveCheckoutSession(ctx context.Context, sessionID string) (CheckoutSession, error)
}

// AdmissionEvent is emitted after an admission commits.
type AdmissionEvent struct {
	Kind         Kind
	EntityID     int64
	StudentEmail string
	SessionID    string
	OccurredAt   int64
}

// EventPublisher delivers admission events to downstream consumers.
type EventPublisher interface {
	PublishAdmission(ctx context.Context, event AdmissionEvent) error
}
