package admission

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"
)

var fixedNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

type enrollmentKey struct {
	courseID CourseID
	email    string
}

type bookingKey struct {
	liveLessonID LiveLessonID
	email        string
}

type stubStore struct {
	mu          sync.Mutex
	courses     map[CourseID]Course
	liveLessons map[LiveLessonID]LiveLesson
	enrollments map[enrollmentKey]Enrollment
	bookings    map[bookingKey]Booking
	customers   map[string]string
	nextID      int64

	// raceOnInsert simulates a concurrent writer: the existence read misses
	// but the insert hits the uniqueness constraint.
	raceOnInsert  bool
	failIncrement error
	txCalls       int
}

func newStubStore() *stubStore {
	return &stubStore{
		courses:     map[CourseID]Course{},
		liveLessons: map[LiveLessonID]LiveLesson{},
		enrollments: map[enrollmentKey]Enrollment{},
		bookings:    map[bookingKey]Booking{},
		customers:   map[string]string{},
	}
}

type stubStoreSnapshot struct {
	courses     map[CourseID]Course
	liveLessons map[LiveLessonID]LiveLesson
	enrollments map[enrollmentKey]Enrollment
	bookings    map[bookingKey]Booking
}

func (store *stubStore) snapshot() stubStoreSnapshot {
	snapshot := stubStoreSnapshot{
		courses:     map[CourseID]Course{},
		liveLessons: map[LiveLessonID]LiveLesson{},
		enrollments: map[enrollmentKey]Enrollment{},
		bookings:    map[bookingKey]Booking{},
	}
	for key, value := range store.courses {
		snapshot.courses[key] = value
	}
	for key, value := range store.liveLessons {
		snapshot.liveLessons[key] = value
	}
	for key, value := range store.enrollments {
		snapshot.enrollments[key] = value
	}
	for key, value := range store.bookings {
		snapshot.bookings[key] = value
	}
	return snapshot
}

func (store *stubStore) restore(snapshot stubStoreSnapshot) {
	store.courses = snapshot.courses
	store.liveLessons = snapshot.liveLessons
	store.enrollments = snapshot.enrollments
	store.bookings = snapshot.bookings
}

func (store *stubStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore Store) error) error {
	store.mu.Lock()
	store.txCalls++
	snapshot := store.snapshot()
	store.mu.Unlock()
	if err := fn(ctx, store); err != nil {
		store.mu.Lock()
		store.restore(snapshot)
		store.mu.Unlock()
		return err
	}
	return nil
}

func (store *stubStore) GetCourse(_ context.Context, courseID CourseID) (Course, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	course, ok := store.courses[courseID]
	if !ok {
		return Course{}, ErrCourseNotFound
	}
	return course, nil
}

func (store *stubStore) GetLiveLesson(_ context.Context, liveLessonID LiveLessonID) (LiveLesson, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	lesson, ok := store.liveLessons[liveLessonID]
	if !ok {
		return LiveLesson{}, ErrLiveLessonNotFound
	}
	return lesson, nil
}

func (store *stubStore) EnrollmentExists(_ context.Context, courseID CourseID, email StudentEmail) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.raceOnInsert {
		return false, nil
	}
	_, ok := store.enrollments[enrollmentKey{courseID: courseID, email: email.String()}]
	return ok, nil
}

func (store *stubStore) BookingExists(_ context.Context, liveLessonID LiveLessonID, email StudentEmail) (bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.raceOnInsert {
		return false, nil
	}
	_, ok := store.bookings[bookingKey{liveLessonID: liveLessonID, email: email.String()}]
	return ok, nil
}

func (store *stubStore) InsertEnrollment(_ context.Context, input EnrollmentInput) (Enrollment, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	key := enrollmentKey{courseID: input.CourseID, email: input.StudentEmail.String()}
	if _, ok := store.enrollments[key]; ok {
		return Enrollment{}, ErrDuplicateAdmission
	}
	store.nextID++
	enrollment := Enrollment{
		ID:           store.nextID,
		CourseID:     input.CourseID,
		StudentEmail: input.StudentEmail,
		EnrolledAt:   input.EnrolledAt,
	}
	store.enrollments[key] = enrollment
	return enrollment, nil
}

func (store *stubStore) InsertBooking(_ context.Context, input BookingInput) (Booking, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	key := bookingKey{liveLessonID: input.LiveLessonID, email: input.StudentEmail.String()}
	if _, ok := store.bookings[key]; ok {
		return Booking{}, ErrDuplicateAdmission
	}
	store.nextID++
	booking := Booking{
		ID:           store.nextID,
		LiveLessonID: input.LiveLessonID,
		StudentEmail: input.StudentEmail,
		StudentName:  input.StudentName,
		BookingDate:  input.BookingDate,
	}
	store.bookings[key] = booking
	return booking, nil
}

func (store *stubStore) IncrementCourseEnrollment(_ context.Context, courseID CourseID) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.failIncrement != nil {
		return store.failIncrement
	}
	course, ok := store.courses[courseID]
	if !ok {
		return ErrCourseNotFound
	}
	course.EnrolledStudents++
	store.courses[courseID] = course
	return nil
}

func (store *stubStore) IncrementLiveLessonEnrollment(_ context.Context, liveLessonID LiveLessonID) error {
	store.mu.Lock()
	defer store.mu.Unlock()
	if store.failIncrement != nil {
		return store.failIncrement
	}
	lesson, ok := store.liveLessons[liveLessonID]
	if !ok {
		return ErrLiveLessonNotFound
	}
	lesson.EnrolledStudents++
	store.liveLessons[liveLessonID] = lesson
	return nil
}

func (store *stubStore) GetCustomerID(_ context.Context, email StudentEmail) (string, bool, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	customerID, ok := store.customers[email.String()]
	return customerID, ok, nil
}

func (store *stubStore) SaveCustomerID(_ context.Context, email StudentEmail, customerID string) (string, error) {
	store.mu.Lock()
	defer store.mu.Unlock()
	if existing, ok := store.customers[email.String()]; ok {
		return existing, nil
	}
	store.customers[email.String()] = customerID
	return customerID, nil
}

func (store *stubStore) enrollmentCount() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.enrollments)
}

func (store *stubStore) bookingCount() int {
	store.mu.Lock()
	defer store.mu.Unlock()
	return len(store.bookings)
}

type stubGateway struct {
	customersCreated []string
	sessionRequests  []CheckoutSessionRequest
	sessions         map[string]CheckoutSession
	createErr        error
	retrieveErr      error
}

func newStubGateway() *stubGateway {
	return &stubGateway{sessions: map[string]CheckoutSession{}}
}

func (gateway *stubGateway) CreateCustomer(_ context.Context, email string, _ string) (string, error) {
	if gateway.createErr != nil {
		return "", gateway.createErr
	}
	gateway.customersCreated = append(gateway.customersCreated, email)
	return fmt.Sprintf("cus_%d", len(gateway.customersCreated)), nil
}

func (gateway *stubGateway) CreateCheckoutSession(_ context.Context, request CheckoutSessionRequest) (CheckoutSession, error) {
	if gateway.createErr != nil {
		return CheckoutSession{}, gateway.createErr
	}
	gateway.sessionRequests = append(gateway.sessionRequests, request)
	sessionID := fmt.Sprintf("cs_test_%d", len(gateway.sessionRequests))
	session := CheckoutSession{
		ID:            sessionID,
		URL:           "https://checkout.stripe.test/" + sessionID,
		PaymentStatus: PaymentStatusUnpaid,
		Metadata:      request.Metadata,
	}
	gateway.sessions[sessionID] = session
	return session, nil
}

func (gateway *stubGateway) RetrieveCheckoutSession(_ context.Context, sessionID string) (CheckoutSession, error) {
	if gateway.retrieveErr != nil {
		return CheckoutSession{}, gateway.retrieveErr
	}
	session, ok := gateway.sessions[sessionID]
	if !ok {
		return CheckoutSession{}, errors.New("no such checkout session")
	}
	return session, nil
}

func (gateway *stubGateway) markPaid(sessionID string) {
	session := gateway.sessions[sessionID]
	session.PaymentStatus = PaymentStatusPaid
	gateway.sessions[sessionID] = session
}

type recordingPublisher struct {
	events []AdmissionEvent
	err    error
}

func (publisher *recordingPublisher) PublishAdmission(_ context.Context, event AdmissionEvent) error {
	if publisher.err != nil {
		return publisher.err
	}
	publisher.events = append(publisher.events, event)
	return nil
}

type recorderLogger struct {
	mu      sync.Mutex
	entries []OperationLog
}

func (logger *recorderLogger) LogOperation(_ context.Context, entry OperationLog) {
	logger.mu.Lock()
	defer logger.mu.Unlock()
	logger.entries = append(logger.entries, entry)
}

func mustNewService(test *testing.T, store Store, options ...ServiceOption) *Service {
	test.Helper()
	service, err := NewService(store, func() time.Time { return fixedNow }, options...)
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	return service
}

func mustStudent(test *testing.T, email string, name string) Student {
	test.Helper()
	student, err := NewStudent(email, name)
	if err != nil {
		test.Fatalf("student: %v", err)
	}
	return student
}

func mustCourseID(test *testing.T, raw int64) CourseID {
	test.Helper()
	courseID, err := NewCourseID(raw)
	if err != nil {
		test.Fatalf("course id: %v", err)
	}
	return courseID
}

func mustLiveLessonID(test *testing.T, raw int64) LiveLessonID {
	test.Helper()
	liveLessonID, err := NewLiveLessonID(raw)
	if err != nil {
		test.Fatalf("live lesson id: %v", err)
	}
	return liveLessonID
}

func seedCourse(store *stubStore, id CourseID, price float64) Course {
	course := Course{
		ID:             id,
		Slug:           "go-fundamentals",
		Title:          "Go Fundamentals",
		ThumbnailURL:   "https://cdn.example.com/go.png",
		InstructorName: "Ada Lovelace",
		Price:          price,
		Published:      true,
	}
	store.courses[id] = course
	return course
}

func seedLiveLesson(store *stubStore, id LiveLessonID, maxStudents int64, enrolled int64, schedule Schedule) LiveLesson {
	lesson := LiveLesson{
		ID:               id,
		Title:            "Concurrency Clinic",
		InstructorName:   "Rob Pike",
		Price:            25,
		Schedule:         schedule,
		MaxStudents:      maxStudents,
		EnrolledStudents: enrolled,
		Active:           true,
	}
	store.liveLessons[id] = lesson
	return lesson
}

func futureSchedule() Schedule {
	return Schedule{Date: "2026-04-01", Clock: "18:00:00", Timezone: "UTC"}
}
