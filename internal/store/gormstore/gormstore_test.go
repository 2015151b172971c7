package gormstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/MarkoPoloResearchLab/academy/internal/catalog"
	"github.com/MarkoPoloResearchLab/academy/pkg/admission"
	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var storeNow = time.Date(2026, time.March, 10, 12, 0, 0, 0, time.UTC)

func openTestStore(test *testing.T) (*Store, *gorm.DB) {
	test.Helper()
	database, err := gorm.Open(sqlite.Open(test.TempDir()+"/academy.db"), &gorm.Config{})
	if err != nil {
		test.Fatalf("sqlite open failed: %v", err)
	}
	if err := Migrate(context.Background(), database); err != nil {
		test.Fatalf("migrate failed: %v", err)
	}
	return New(database), database
}

func seedCatalog(test *testing.T, database *gorm.DB) {
	test.Helper()
	rows := []interface{}{
		&Instructor{ID: 1, Name: "Ada Lovelace", AvatarURL: "https://cdn.example.com/ada.png", CreatedAt: storeNow},
		&Category{ID: 1, Name: "Programming", Slug: "programming"},
		&Category{ID: 2, Name: "Design", Slug: "design"},
		&Course{ID: 10, Title: "Go Fundamentals", Slug: "go-fundamentals", Description: "Types and interfaces", InstructorID: 1, CategoryID: 1, Price: 100, Rating: 4.5, EnrolledStudents: 7, IsPublished: true, CreatedAt: storeNow.Add(-48 * time.Hour)},
		&Course{ID: 11, Title: "Advanced Go", Slug: "advanced-go", InstructorID: 1, CategoryID: 1, Price: 150, Rating: 4.9, EnrolledStudents: 2, IsPublished: true, CreatedAt: storeNow.Add(-24 * time.Hour)},
		&Course{ID: 12, Title: "Color Theory", Slug: "color-theory", InstructorID: 1, CategoryID: 2, Price: 50, EnrolledStudents: 1, IsPublished: true, CreatedAt: storeNow},
		&Course{ID: 13, Title: "Draft Course", Slug: "draft-course", InstructorID: 1, CategoryID: 1, Price: 10, CreatedAt: storeNow},
		&LiveLesson{ID: 20, Title: "Morning Standup Patterns", InstructorID: 1, CategoryID: 1, ScheduledDate: scheduledDate(2026, time.April, 1), ScheduledTime: datatypes.NewTime(9, 0, 0, 0), Timezone: "UTC", MaxStudents: 2, Price: 25, Topics: datatypes.JSON(`["go","testing"]`), IsActive: true, CreatedAt: storeNow},
		&LiveLesson{ID: 21, Title: "Evening Concurrency Clinic", InstructorID: 1, CategoryID: 1, ScheduledDate: scheduledDate(2026, time.April, 1), ScheduledTime: datatypes.NewTime(19, 30, 0, 0), Timezone: "Europe/Berlin", MaxStudents: 10, EnrolledStudents: 3, Price: 30, IsActive: true, CreatedAt: storeNow},
		&LiveLesson{ID: 22, Title: "Yesterday's Review", InstructorID: 1, CategoryID: 1, ScheduledDate: scheduledDate(2026, time.March, 9), ScheduledTime: datatypes.NewTime(10, 0, 0, 0), Timezone: "UTC", MaxStudents: 10, Price: 15, IsActive: true, CreatedAt: storeNow},
		&LiveLesson{ID: 23, Title: "Cancelled Session", InstructorID: 1, CategoryID: 1, ScheduledDate: scheduledDate(2026, time.April, 2), ScheduledTime: datatypes.NewTime(10, 0, 0, 0), Timezone: "UTC", MaxStudents: 10, Price: 15, IsActive: true, CreatedAt: storeNow},
	}
	for _, row := range rows {
		if err := database.Create(row).Error; err != nil {
			test.Fatalf("seed %T: %v", row, err)
		}
	}
	// is_active defaults to true, so a false value has to be written explicitly.
	if err := database.Model(&LiveLesson{}).Where("id = ?", 23).Update("is_active", false).Error; err != nil {
		test.Fatalf("deactivate lesson: %v", err)
	}
}

func scheduledDate(year int, month time.Month, day int) datatypes.Date {
	return datatypes.Date(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

func mustEmail(test *testing.T, raw string) admission.StudentEmail {
	test.Helper()
	email, err := admission.NewStudentEmail(raw)
	if err != nil {
		test.Fatalf("email: %v", err)
	}
	return email
}

func mustName(test *testing.T, raw string) admission.StudentName {
	test.Helper()
	name, err := admission.NewStudentName(raw)
	if err != nil {
		test.Fatalf("name: %v", err)
	}
	return name
}

func TestGetCourseHidesUnpublished(test *testing.T) {
	test.Parallel()
	store, database := openTestStore(test)
	seedCatalog(test, database)
	ctx := context.Background()

	course, err := store.GetCourse(ctx, 10)
	if err != nil {
		test.Fatalf("get course: %v", err)
	}
	if course.Title != "Go Fundamentals" || course.InstructorName != "Ada Lovelace" || course.Price != 100 || !course.Published {
		test.Fatalf("unexpected course %+v", course)
	}
	if _, err := store.GetCourse(ctx, 13); !errors.Is(err, admission.ErrCourseNotFound) {
		test.Fatalf("expected ErrCourseNotFound for draft, got %v", err)
	}
	if _, err := store.GetCourse(ctx, 999); !errors.Is(err, admission.ErrCourseNotFound) {
		test.Fatalf("expected ErrCourseNotFound, got %v", err)
	}
}

func TestGetLiveLessonReturnsSchedule(test *testing.T) {
	test.Parallel()
	store, database := openTestStore(test)
	seedCatalog(test, database)
	ctx := context.Background()

	lesson, err := store.GetLiveLesson(ctx, 21)
	if err != nil {
		test.Fatalf("get lesson: %v", err)
	}
	expected := admission.Schedule{Date: "2026-04-01", Clock: "19:30:00", Timezone: "Europe/Berlin"}
	if lesson.Schedule != expected {
		test.Fatalf("expected schedule %+v, got %+v", expected, lesson.Schedule)
	}
	if lesson.AvailableSpots() != 7 {
		test.Fatalf("expected 7 available spots, got %d", lesson.AvailableSpots())
	}
	if _, err := store.GetLiveLesson(ctx, 23); !errors.Is(err, admission.ErrLiveLessonNotFound) {
		test.Fatalf("expected ErrLiveLessonNotFound for inactive lesson, got %v", err)
	}
}

func TestInsertEnrollmentDetectsDuplicate(test *testing.T) {
	test.Parallel()
	store, database := openTestStore(test)
	seedCatalog(test, database)
	ctx := context.Background()
	input := admission.EnrollmentInput{CourseID: 10, StudentEmail: mustEmail(test, "student@example.com"), EnrolledAt: storeNow}

	enrollment, err := store.InsertEnrollment(ctx, input)
	if err != nil {
		test.Fatalf("insert: %v", err)
	}
	if enrollment.ID == 0 || enrollment.Progress != 0 {
		test.Fatalf("unexpected enrollment %+v", enrollment)
	}
	_, err = store.InsertEnrollment(ctx, input)
	if !errors.Is(err, admission.ErrDuplicateAdmission) {
		test.Fatalf("expected ErrDuplicateAdmission, got %v", err)
	}
	var operationError admission.OperationError
	if !errors.As(err, &operationError) || operationError.Code() != errorCodeDuplicate {
		test.Fatalf("expected duplicate operation error, got %v", err)
	}
}

func TestInsertBookingDetectsDuplicate(test *testing.T) {
	test.Parallel()
	store, database := openTestStore(test)
	seedCatalog(test, database)
	ctx := context.Background()
	input := admission.BookingInput{
		LiveLessonID: 20,
		StudentEmail: mustEmail(test, "student@example.com"),
		StudentName:  mustName(test, "Grace Hopper"),
		BookingDate:  storeNow,
	}
	if _, err := store.InsertBooking(ctx, input); err != nil {
		test.Fatalf("insert: %v", err)
	}
	if _, err := store.InsertBooking(ctx, input); !errors.Is(err, admission.ErrDuplicateAdmission) {
		test.Fatalf("expected ErrDuplicateAdmission, got %v", err)
	}
	exists, err := store.BookingExists(ctx, 20, input.StudentEmail)
	if err != nil || !exists {
		test.Fatalf("expected booking to exist, got %v / %v", exists, err)
	}
}

func TestIsUniqueViolationMatchesOnlyNamedConstraint(test *testing.T) {
	test.Parallel()
	_, database := openTestStore(test)
	seedCatalog(test, database)
	insertEnrollment := "INSERT INTO course_enrollments (course_id, student_email, progress, enrolled_at) VALUES (?, ?, 0, ?)"
	if err := database.Exec(insertEnrollment, 10, "student@example.com", storeNow).Error; err != nil {
		test.Fatalf("seed enrollment: %v", err)
	}
	duplicateEnrollment := database.Exec(insertEnrollment, 10, "student@example.com", storeNow).Error
	missingEmail := database.Exec(insertEnrollment, 10, nil, storeNow).Error
	duplicateSlug := database.Exec("INSERT INTO categories (name, slug) VALUES (?, ?)", "Programming Again", "programming").Error
	insertCustomer := "INSERT INTO stripe_customers (email, stripe_customer_id, created_at) VALUES (?, ?, ?)"
	if err := database.Exec(insertCustomer, "student@example.com", "cus_1", storeNow).Error; err != nil {
		test.Fatalf("seed customer: %v", err)
	}
	duplicateCustomer := database.Exec(insertCustomer, "student@example.com", "cus_2", storeNow).Error

	testCases := []struct {
		name       string
		err        error
		constraint string
		expected   bool
	}{
		{name: "duplicate enrollment", err: duplicateEnrollment, constraint: constraintCourseEnrollmentStudent, expected: true},
		{name: "duplicate enrollment against booking constraint", err: duplicateEnrollment, constraint: constraintLiveLessonBookingStudent, expected: false},
		{name: "not null failure", err: missingEmail, constraint: constraintCourseEnrollmentStudent, expected: false},
		{name: "other unique index", err: duplicateSlug, constraint: constraintCourseEnrollmentStudent, expected: false},
		{name: "duplicate customer primary key", err: duplicateCustomer, constraint: constraintStripeCustomerPrimary, expected: true},
		{name: "unknown constraint", err: duplicateEnrollment, constraint: "uniq_unknown", expected: false},
		{name: "nil", constraint: constraintCourseEnrollmentStudent, expected: false},
	}
	for _, testCase := range testCases {
		if testCase.name != "nil" && testCase.err == nil {
			test.Fatalf("%s: expected the statement to fail", testCase.name)
		}
		if got := isUniqueViolation(testCase.err, testCase.constraint); got != testCase.expected {
			test.Fatalf("%s: expected %v, got %v (%v)", testCase.name, testCase.expected, got, testCase.err)
		}
	}
}

func TestIncrementCounters(test *testing.T) {
	test.Parallel()
	store, database := openTestStore(test)
	seedCatalog(test, database)
	ctx := context.Background()

	if err := store.IncrementCourseEnrollment(ctx, 10); err != nil {
		test.Fatalf("increment course: %v", err)
	}
	if err := store.IncrementLiveLessonEnrollment(ctx, 21); err != nil {
		test.Fatalf("increment lesson: %v", err)
	}
	var course Course
	if err := database.First(&course, 10).Error; err != nil || course.EnrolledStudents != 8 {
		test.Fatalf("expected course counter 8, got %d (%v)", course.EnrolledStudents, err)
	}
	var lesson LiveLesson
	if err := database.First(&lesson, 21).Error; err != nil || lesson.EnrolledStudents != 4 {
		test.Fatalf("expected lesson counter 4, got %d (%v)", lesson.EnrolledStudents, err)
	}
	if err := store.IncrementCourseEnrollment(ctx, 999); !errors.Is(err, admission.ErrCourseNotFound) {
		test.Fatalf("expected ErrCourseNotFound, got %v", err)
	}
	if err := store.IncrementLiveLessonEnrollment(ctx, 999); !errors.Is(err, admission.ErrLiveLessonNotFound) {
		test.Fatalf("expected ErrLiveLessonNotFound, got %v", err)
	}
}

func TestWithTxRollsBackOnError(test *testing.T) {
	test.Parallel()
	store, database := openTestStore(test)
	seedCatalog(test, database)
	ctx := context.Background()
	email := mustEmail(test, "student@example.com")
	failure := errors.New("counter failed")

	err := store.WithTx(ctx, func(ctx context.Context, txStore admission.Store) error {
		if _, err := txStore.InsertEnrollment(ctx, admission.EnrollmentInput{CourseID: 10, StudentEmail: email, EnrolledAt: storeNow}); err != nil {
			return err
		}
		return failure
	})
	if !errors.Is(err, failure) {
		test.Fatalf("expected transaction error, got %v", err)
	}
	exists, err := store.EnrollmentExists(ctx, 10, email)
	if err != nil || exists {
		test.Fatalf("expected rollback, exists=%v err=%v", exists, err)
	}
}

func TestSaveCustomerIDKeepsFirstMapping(test *testing.T) {
	test.Parallel()
	store, _ := openTestStore(test)
	ctx := context.Background()
	email := mustEmail(test, "student@example.com")

	if _, found, err := store.GetCustomerID(ctx, email); err != nil || found {
		test.Fatalf("expected no customer, found=%v err=%v", found, err)
	}
	first, err := store.SaveCustomerID(ctx, email, "cus_first")
	if err != nil || first != "cus_first" {
		test.Fatalf("expected cus_first, got %q (%v)", first, err)
	}
	second, err := store.SaveCustomerID(ctx, email, "cus_second")
	if err != nil || second != "cus_first" {
		test.Fatalf("expected the first mapping to win, got %q (%v)", second, err)
	}
}

func TestServiceEnrollsThroughStore(test *testing.T) {
	test.Parallel()
	store, database := openTestStore(test)
	seedCatalog(test, database)
	service, err := admission.NewService(store, func() time.Time { return storeNow })
	if err != nil {
		test.Fatalf("new service: %v", err)
	}
	student, err := admission.NewStudent("student@example.com", "Grace Hopper")
	if err != nil {
		test.Fatalf("student: %v", err)
	}
	ctx := context.Background()

	if _, err := service.EnrollCourse(ctx, 11, student); err != nil {
		test.Fatalf("enroll: %v", err)
	}
	if _, err := service.EnrollCourse(ctx, 11, student); !errors.Is(err, admission.ErrAlreadyEnrolled) {
		test.Fatalf("expected ErrAlreadyEnrolled, got %v", err)
	}
	if _, err := service.BookLiveLesson(ctx, 22, student); !errors.Is(err, admission.ErrPastSchedule) {
		test.Fatalf("expected ErrPastSchedule, got %v", err)
	}
	if _, err := service.BookLiveLesson(ctx, 20, student); err != nil {
		test.Fatalf("book: %v", err)
	}
	other, _ := admission.NewStudent("other@example.com", "Alan Turing")
	if _, err := service.BookLiveLesson(ctx, 20, other); err != nil {
		test.Fatalf("book second seat: %v", err)
	}
	third, _ := admission.NewStudent("third@example.com", "Barbara Liskov")
	if _, err := service.BookLiveLesson(ctx, 20, third); !errors.Is(err, admission.ErrLiveLessonFull) {
		test.Fatalf("expected ErrLiveLessonFull, got %v", err)
	}
}

func TestListCoursesFiltersAndSorts(test *testing.T) {
	test.Parallel()
	store, database := openTestStore(test)
	seedCatalog(test, database)
	ctx := context.Background()
	page := catalog.NormalizePage(0, 0)

	popular, err := store.ListCourses(ctx, catalog.CourseFilter{Sort: catalog.SortPopular, Page: page})
	if err != nil {
		test.Fatalf("list: %v", err)
	}
	if len(popular) != 3 || popular[0].ID != 10 || popular[2].ID != 12 {
		test.Fatalf("unexpected popular order %+v", popular)
	}
	if popular[0].CategorySlug != "programming" || popular[0].InstructorAvatar == "" {
		test.Fatalf("expected joined names, got %+v", popular[0])
	}

	cheap, err := store.ListCourses(ctx, catalog.CourseFilter{CategorySlug: "programming", Sort: catalog.SortPriceLow, Page: page})
	if err != nil {
		test.Fatalf("list: %v", err)
	}
	if len(cheap) != 2 || cheap[0].ID != 10 || cheap[1].ID != 11 {
		test.Fatalf("unexpected price order %+v", cheap)
	}

	searched, err := store.ListCourses(ctx, catalog.CourseFilter{Search: "INTERFACES", Sort: catalog.SortPopular, Page: page})
	if err != nil {
		test.Fatalf("search: %v", err)
	}
	if len(searched) != 1 || searched[0].ID != 10 {
		test.Fatalf("expected description match, got %+v", searched)
	}

	paged, err := store.ListCourses(ctx, catalog.CourseFilter{Sort: catalog.SortNewest, Page: catalog.Page{Limit: 1, Offset: 1}})
	if err != nil {
		test.Fatalf("page: %v", err)
	}
	if len(paged) != 1 || paged[0].ID != 11 {
		test.Fatalf("unexpected page %+v", paged)
	}
}

func TestListLiveLessonsFiltersByDateAndSlot(test *testing.T) {
	test.Parallel()
	store, database := openTestStore(test)
	seedCatalog(test, database)
	ctx := context.Background()
	fromDate := time.Date(2026, time.March, 10, 0, 0, 0, 0, time.UTC)
	page := catalog.NormalizePage(0, 0)

	lessons, err := store.ListLiveLessons(ctx, catalog.LiveLessonFilter{FromDate: fromDate, Page: page})
	if err != nil {
		test.Fatalf("list: %v", err)
	}
	if len(lessons) != 2 || lessons[0].ID != 20 || lessons[1].ID != 21 {
		test.Fatalf("unexpected lessons %+v", lessons)
	}
	if lessons[0].ScheduledDate != "2026-04-01" || lessons[0].ScheduledTime != "09:00:00" || lessons[0].AvailableSpots != 2 {
		test.Fatalf("unexpected first lesson %+v", lessons[0])
	}
	if len(lessons[0].Topics) != 2 || lessons[1].Topics == nil {
		test.Fatalf("unexpected topics %+v / %+v", lessons[0].Topics, lessons[1].Topics)
	}

	evening, err := store.ListLiveLessons(ctx, catalog.LiveLessonFilter{FromDate: fromDate, TimeSlot: catalog.TimeSlotEvening, Page: page})
	if err != nil {
		test.Fatalf("list evening: %v", err)
	}
	if len(evening) != 1 || evening[0].ID != 21 {
		test.Fatalf("unexpected evening lessons %+v", evening)
	}
}

func TestCreateCatalogEntries(test *testing.T) {
	test.Parallel()
	store, database := openTestStore(test)
	seedCatalog(test, database)
	ctx := context.Background()

	course, err := store.CreateCourse(ctx, catalog.NewCourse{
		CreateCourseInput: catalog.CreateCourseInput{Title: "Testing in Go", InstructorID: 1, CategoryID: 1, Price: 80, Level: "intermediate"},
		Slug:              "testing-in-go",
	})
	if err != nil {
		test.Fatalf("create course: %v", err)
	}
	if course.ID == 0 || !course.IsPublished || course.InstructorName != "Ada Lovelace" {
		test.Fatalf("unexpected course %+v", course)
	}

	lesson, err := store.CreateLiveLesson(ctx, catalog.NewLiveLesson{
		CreateLiveLessonInput: catalog.CreateLiveLessonInput{
			Title: "Profiling Workshop", InstructorID: 1, CategoryID: 1, ScheduledDate: "2026-05-02", ScheduledTime: "14:15",
			Timezone: "Asia/Tokyo", DurationHours: 2, MaxStudents: 5, Price: 40, Level: "advanced", Topics: []string{"pprof"},
		},
		Schedule: admission.Schedule{Date: "2026-05-02", Clock: "14:15", Timezone: "Asia/Tokyo"},
	})
	if err != nil {
		test.Fatalf("create lesson: %v", err)
	}
	if lesson.ScheduledDate != "2026-05-02" || lesson.ScheduledTime != "14:15:00" || lesson.Timezone != "Asia/Tokyo" {
		test.Fatalf("unexpected lesson schedule %+v", lesson)
	}
	if lesson.AvailableSpots != 5 || len(lesson.Topics) != 1 || !lesson.IsActive {
		test.Fatalf("unexpected lesson %+v", lesson)
	}
}

func TestDashboardReaders(test *testing.T) {
	test.Parallel()
	store, database := openTestStore(test)
	seedCatalog(test, database)
	ctx := context.Background()
	email := mustEmail(test, "student@example.com")

	for index, courseID := range []admission.CourseID{10, 11} {
		input := admission.EnrollmentInput{CourseID: courseID, StudentEmail: email, EnrolledAt: storeNow.Add(time.Duration(index) * time.Hour)}
		if _, err := store.InsertEnrollment(ctx, input); err != nil {
			test.Fatalf("enroll %d: %v", courseID, err)
		}
	}
	for _, lessonID := range []admission.LiveLessonID{21, 22} {
		input := admission.BookingInput{LiveLessonID: lessonID, StudentEmail: email, StudentName: mustName(test, "Grace"), BookingDate: storeNow}
		if _, err := store.InsertBooking(ctx, input); err != nil {
			test.Fatalf("book %d: %v", lessonID, err)
		}
	}

	courses, err := store.ListEnrolledCourses(ctx, email)
	if err != nil {
		test.Fatalf("courses: %v", err)
	}
	if len(courses) != 2 || courses[0].CourseID != 11 || courses[0].InstructorName != "Ada Lovelace" {
		test.Fatalf("expected newest enrollment first, got %+v", courses)
	}
	lessons, err := store.ListBookedLessons(ctx, email)
	if err != nil {
		test.Fatalf("lessons: %v", err)
	}
	if len(lessons) != 2 || lessons[0].LessonID != 22 || lessons[1].Timezone != "Europe/Berlin" {
		test.Fatalf("expected schedule order, got %+v", lessons)
	}
	if lessons[1].ScheduledTime != "19:30:00" {
		test.Fatalf("unexpected scheduled time %q", lessons[1].ScheduledTime)
	}
}
