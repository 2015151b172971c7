package admission

import (
	"context"
	"fmt"
	"net/url"
	"strings"
)

// CheckoutRequest carries the student and an optional redirect base URL.
// An empty RedirectBaseURL falls back to the configured default.
type CheckoutRequest struct {
	Student         Student
	RedirectBaseURL string
}

// Checkout is the hosted payment page the student is sent to.
type Checkout struct {
	SessionID string
	URL       string
}

// CheckoutCourse guards the course and opens a processor checkout session for it.
func (service *Service) CheckoutCourse(ctx context.Context, courseID CourseID, request CheckoutRequest) (Checkout, error) {
	checkout, operationError := service.checkoutCourse(ctx, courseID, request)
	service.logOperation(ctx, OperationLog{
		Operation:    operationCheckoutCourse,
		Kind:         KindCourseEnrollment,
		EntityID:     courseID.Int64(),
		StudentEmail: request.Student.Email.String(),
		SessionID:    checkout.SessionID,
		Error:        operationError,
	})
	return checkout, operationError
}

// CheckoutLiveLesson guards the live lesson and opens a processor checkout session for it.
func (service *Service) CheckoutLiveLesson(ctx context.Context, liveLessonID LiveLessonID, request CheckoutRequest) (Checkout, error) {
	checkout, operationError := service.checkoutLiveLesson(ctx, liveLessonID, request)
	service.logOperation(ctx, OperationLog{
		Operation:    operationCheckoutLiveLesson,
		Kind:         KindLiveLessonBooking,
		EntityID:     liveLessonID.Int64(),
		StudentEmail: request.Student.Email.String(),
		SessionID:    checkout.SessionID,
		Error:        operationError,
	})
	return checkout, operationError
}

func (service *Service) checkoutCourse(ctx context.Context, courseID CourseID, request CheckoutRequest) (Checkout, error) {
	gateway, err := service.requireGateway()
	if err != nil {
		return Checkout{}, err
	}
	course, err := service.checkCourse(ctx, service.store, courseID, request.Student.Email)
	if err != nil {
		return Checkout{}, err
	}
	amount, err := PriceToCents(course.Price)
	if err != nil {
		return Checkout{}, err
	}
	baseURL, err := service.redirectBaseURL(request.RedirectBaseURL)
	if err != nil {
		return Checkout{}, err
	}
	customerID, err := service.resolveCustomer(ctx, gateway, request.Student)
	if err != nil {
		return Checkout{}, err
	}
	var images []string
	if course.ThumbnailURL != "" {
		images = []string{course.ThumbnailURL}
	}
	session, err := gateway.CreateCheckoutSession(ctx, CheckoutSessionRequest{
		CustomerID: customerID,
		LineItem: LineItem{
			Name:            course.Title,
			Description:     fmt.Sprintf("Learn %s with %s", course.Title, course.InstructorName),
			Images:          images,
			UnitAmountCents: amount,
			Currency:        service.checkout.Currency,
			Quantity:        1,
		},
		SuccessURL: fmt.Sprintf("%s%s?session_id=%s&course_id=%s", baseURL, courseSuccessPath, checkoutSessionIDPlaceholder, courseID),
		CancelURL:  baseURL + courseCancelPath,
		Metadata: map[string]string{
			metadataKeyType:         string(KindCourseEnrollment),
			metadataKeyCourseID:     courseID.String(),
			metadataKeyStudentEmail: request.Student.Email.String(),
		},
	})
	if err != nil {
		return Checkout{}, WrapError(errorOperationGateway, errorSubjectCheckoutSession, errorCodeCreate, err)
	}
	return Checkout{SessionID: session.ID, URL: session.URL}, nil
}

func (service *Service) checkoutLiveLesson(ctx context.Context, liveLessonID LiveLessonID, request CheckoutRequest) (Checkout, error) {
	gateway, err := service.requireGateway()
	if err != nil {
		return Checkout{}, err
	}
	lesson, err := service.checkLiveLesson(ctx, service.store, liveLessonID, request.Student.Email)
	if err != nil {
		return Checkout{}, err
	}
	amount, err := PriceToCents(lesson.Price)
	if err != nil {
		return Checkout{}, err
	}
	baseURL, err := service.redirectBaseURL(request.RedirectBaseURL)
	if err != nil {
		return Checkout{}, err
	}
	customerID, err := service.resolveCustomer(ctx, gateway, request.Student)
	if err != nil {
		return Checkout{}, err
	}
	session, err := gateway.CreateCheckoutSession(ctx, CheckoutSessionRequest{
		CustomerID: customerID,
		LineItem: LineItem{
			Name:            liveLessonLineItemPrefix + lesson.Title,
			Description:     fmt.Sprintf("Live interactive lesson with %s on %s", lesson.InstructorName, lesson.Schedule.DisplayDate()),
			UnitAmountCents: amount,
			Currency:        service.checkout.Currency,
			Quantity:        1,
		},
		SuccessURL: fmt.Sprintf("%s%s?session_id=%s&lesson_id=%s", baseURL, liveLessonSuccessPath, checkoutSessionIDPlaceholder, liveLessonID),
		CancelURL:  baseURL + liveLessonCancelPath,
		Metadata: map[string]string{
			metadataKeyType:         string(KindLiveLessonBooking),
			metadataKeyLiveLessonID: liveLessonID.String(),
			metadataKeyStudentEmail: request.Student.Email.String(),
		},
	})
	if err != nil {
		return Checkout{}, WrapError(errorOperationGateway, errorSubjectCheckoutSession, errorCodeCreate, err)
	}
	return Checkout{SessionID: session.ID, URL: session.URL}, nil
}

// resolveCustomer returns the stored processor customer for the email, creating
// one on first checkout. A concurrent first checkout may leave an unused
// customer at the processor; the stored mapping wins.
func (service *Service) resolveCustomer(ctx context.Context, gateway PaymentGateway, student Student) (string, error) {
	customerID, found, err := service.store.GetCustomerID(ctx, student.Email)
	if err != nil {
		return "", err
	}
	if found {
		return customerID, nil
	}
	createdID, err := gateway.CreateCustomer(ctx, student.Email.String(), student.DisplayName())
	if err != nil {
		return "", WrapError(errorOperationGateway, errorSubjectCustomer, errorCodeCreate, err)
	}
	return service.store.SaveCustomerID(ctx, student.Email, createdID)
}

func (service *Service) requireGateway() (PaymentGateway, error) {
	if service.gateway == nil {
		return nil, ErrGatewayNotConfigured
	}
	return service.gateway, nil
}

func (service *Service) redirectBaseURL(requested string) (string, error) {
	candidate := strings.TrimSpace(requested)
	if candidate == "" {
		candidate = strings.TrimSpace(service.checkout.DefaultRedirectBaseURL)
	}
	if candidate == "" {
		return "", fmt.Errorf("%w: no redirect base url", ErrInvalidRedirectURL)
	}
	parsed, err := url.Parse(candidate)
	if err != nil || parsed.Host == "" || (parsed.Scheme != "http" && parsed.Scheme != "https") {
		return "", fmt.Errorf("%w: %q", ErrInvalidRedirectURL, candidate)
	}
	return strings.TrimRight(candidate, "/"), nil
}
