package gormstore

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/academy/internal/catalog"
	"github.com/MarkoPoloResearchLab/academy/internal/dashboard"
	"github.com/MarkoPoloResearchLab/academy/pkg/admission"
	gosqlite "github.com/glebarez/go-sqlite"
	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	pgUniqueViolationCode  = "23505"
	errorOperationStore    = "store"
	errorSubjectCourse     = "course"
	errorSubjectLiveLesson = "live_lesson"
	errorSubjectEnrollment = "enrollment"
	errorSubjectBooking    = "booking"
	errorSubjectCustomer   = "customer"
	errorSubjectDashboard  = "dashboard"
	errorCodeCreate        = "create"
	errorCodeDuplicate     = "duplicate"
	errorCodeExists        = "exists"
	errorCodeGet           = "get"
	errorCodeIncrement     = "increment"
	errorCodeInsert        = "insert"
	errorCodeInvalid       = "invalid"
	errorCodeList          = "list"
	errorCodeSave          = "save"
)

// SQLite extended result codes for SQLITE_CONSTRAINT_UNIQUE and SQLITE_CONSTRAINT_PRIMARYKEY.
const (
	sqliteUniqueConstraintCode     = 2067
	sqlitePrimaryKeyConstraintCode = 1555
)

// sqliteConstraintColumns maps a constraint name to the column list SQLite
// reports for it, since SQLite errors never carry the index name.
var sqliteConstraintColumns = map[string]string{
	constraintCourseEnrollmentStudent:  "course_enrollments.course_id, course_enrollments.student_email",
	constraintLiveLessonBookingStudent: "live_lesson_bookings.live_lesson_id, live_lesson_bookings.student_email",
	constraintStripeCustomerPrimary:    "stripe_customers.email",
}

const (
	courseColumns = "c.id, c.title, c.slug, c.description, c.instructor_id, c.category_id, c.thumbnail_url, c.price, c.level, " +
		"c.duration_hours, c.total_lessons, c.rating, c.enrolled_students, c.is_published, c.created_at, " +
		"COALESCE(i.name, '') AS instructor_name, COALESCE(i.avatar_url, '') AS instructor_avatar, " +
		"COALESCE(cat.name, '') AS category_name, COALESCE(cat.slug, '') AS category_slug"
	liveLessonColumns = "ll.id, ll.title, ll.description, ll.instructor_id, ll.category_id, ll.scheduled_date, ll.scheduled_time, " +
		"ll.timezone, ll.duration_hours, ll.max_students, ll.enrolled_students, ll.price, ll.level, ll.topics, ll.meeting_url, " +
		"ll.is_active, ll.created_at, " +
		"COALESCE(i.name, '') AS instructor_name, COALESCE(i.avatar_url, '') AS instructor_avatar, " +
		"COALESCE(cat.name, '') AS category_name, COALESCE(cat.slug, '') AS category_slug"
	enrolledCourseColumns = "ce.id AS enrollment_id, ce.enrolled_at, ce.progress, ce.completed_at, c.id AS course_id, c.title, " +
		"c.description, c.thumbnail_url, c.price, c.level, c.duration_hours, c.total_lessons, " +
		"COALESCE(i.name, '') AS instructor_name, COALESCE(i.avatar_url, '') AS instructor_avatar"
	bookedLessonColumns = "llb.id AS booking_id, llb.booking_date, llb.attended, ll.id AS lesson_id, ll.title, ll.description, " +
		"ll.scheduled_date, ll.scheduled_time, ll.timezone, ll.duration_hours, ll.price, ll.level, ll.meeting_url, " +
		"COALESCE(i.name, '') AS instructor_name, COALESCE(i.avatar_url, '') AS instructor_avatar"
)

// Store implements admission.Store, catalog.Store, and dashboard.Reader using GORM.
type Store struct {
	db *gorm.DB
}

// New returns a Store backed by gorm.DB.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// WithTx executes fn within a transaction.
func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore admission.Store) error) error {
	return store.db.WithContext(ctx).Transaction(func(transaction *gorm.DB) error {
		return fn(ctx, &Store{db: transaction})
	})
}

func (store *Store) GetCourse(ctx context.Context, courseID admission.CourseID) (admission.Course, error) {
	var row courseRow
	err := store.coursesQuery(ctx).
		Where("c.id = ? AND c.is_published = ?", courseID.Int64(), true).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return admission.Course{}, wrapStoreError(errorSubjectCourse, errorCodeGet, admission.ErrCourseNotFound)
		}
		return admission.Course{}, wrapStoreError(errorSubjectCourse, errorCodeGet, err)
	}
	return admission.Course{
		ID:               courseID,
		Slug:             row.Slug,
		Title:            row.Title,
		Description:      row.Description,
		ThumbnailURL:     row.ThumbnailURL,
		InstructorName:   row.InstructorName,
		Price:            row.Price,
		EnrolledStudents: row.EnrolledStudents,
		Published:        row.IsPublished,
	}, nil
}

func (store *Store) GetLiveLesson(ctx context.Context, liveLessonID admission.LiveLessonID) (admission.LiveLesson, error) {
	var row liveLessonRow
	err := store.liveLessonsQuery(ctx).
		Where("ll.id = ? AND ll.is_active = ?", liveLessonID.Int64(), true).
		Take(&row).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return admission.LiveLesson{}, wrapStoreError(errorSubjectLiveLesson, errorCodeGet, admission.ErrLiveLessonNotFound)
		}
		return admission.LiveLesson{}, wrapStoreError(errorSubjectLiveLesson, errorCodeGet, err)
	}
	return admission.LiveLesson{
		ID:               liveLessonID,
		Title:            row.Title,
		Description:      row.Description,
		InstructorName:   row.InstructorName,
		Price:            row.Price,
		Schedule:         row.schedule(),
		MaxStudents:      row.MaxStudents,
		EnrolledStudents: row.EnrolledStudents,
		Active:           row.IsActive,
	}, nil
}

func (store *Store) EnrollmentExists(ctx context.Context, courseID admission.CourseID, email admission.StudentEmail) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&CourseEnrollment{}).
		Where("course_id = ? AND student_email = ?", courseID.Int64(), email.String()).
		Count(&count).Error
	if err != nil {
		return false, wrapStoreError(errorSubjectEnrollment, errorCodeExists, err)
	}
	return count > 0, nil
}

func (store *Store) BookingExists(ctx context.Context, liveLessonID admission.LiveLessonID, email admission.StudentEmail) (bool, error) {
	var count int64
	err := store.db.WithContext(ctx).
		Model(&LiveLessonBooking{}).
		Where("live_lesson_id = ? AND student_email = ?", liveLessonID.Int64(), email.String()).
		Count(&count).Error
	if err != nil {
		return false, wrapStoreError(errorSubjectBooking, errorCodeExists, err)
	}
	return count > 0, nil
}

func (store *Store) InsertEnrollment(ctx context.Context, input admission.EnrollmentInput) (admission.Enrollment, error) {
	model := CourseEnrollment{
		CourseID:     input.CourseID.Int64(),
		StudentEmail: input.StudentEmail.String(),
		EnrolledAt:   input.EnrolledAt.UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintCourseEnrollmentStudent) {
		return admission.Enrollment{}, wrapStoreError(errorSubjectEnrollment, errorCodeDuplicate, admission.ErrDuplicateAdmission)
	}
	if err != nil {
		return admission.Enrollment{}, wrapStoreError(errorSubjectEnrollment, errorCodeInsert, err)
	}
	return admission.Enrollment{
		ID:           model.ID,
		CourseID:     input.CourseID,
		StudentEmail: input.StudentEmail,
		Progress:     model.Progress,
		EnrolledAt:   model.EnrolledAt,
	}, nil
}

func (store *Store) InsertBooking(ctx context.Context, input admission.BookingInput) (admission.Booking, error) {
	model := LiveLessonBooking{
		LiveLessonID: input.LiveLessonID.Int64(),
		StudentEmail: input.StudentEmail.String(),
		StudentName:  input.StudentName.String(),
		BookingDate:  input.BookingDate.UTC(),
	}
	err := store.db.WithContext(ctx).Create(&model).Error
	if isUniqueViolation(err, constraintLiveLessonBookingStudent) {
		return admission.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeDuplicate, admission.ErrDuplicateAdmission)
	}
	if err != nil {
		return admission.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeInsert, err)
	}
	return admission.Booking{
		ID:           model.ID,
		LiveLessonID: input.LiveLessonID,
		StudentEmail: input.StudentEmail,
		StudentName:  input.StudentName,
		BookingDate:  model.BookingDate,
	}, nil
}

func (store *Store) IncrementCourseEnrollment(ctx context.Context, courseID admission.CourseID) error {
	result := store.db.WithContext(ctx).
		Model(&Course{}).
		Where("id = ?", courseID.Int64()).
		UpdateColumn("enrolled_students", gorm.Expr("enrolled_students + ?", 1))
	if result.Error != nil {
		return wrapStoreError(errorSubjectCourse, errorCodeIncrement, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectCourse, errorCodeIncrement, admission.ErrCourseNotFound)
	}
	return nil
}

func (store *Store) IncrementLiveLessonEnrollment(ctx context.Context, liveLessonID admission.LiveLessonID) error {
	result := store.db.WithContext(ctx).
		Model(&LiveLesson{}).
		Where("id = ?", liveLessonID.Int64()).
		UpdateColumn("enrolled_students", gorm.Expr("enrolled_students + ?", 1))
	if result.Error != nil {
		return wrapStoreError(errorSubjectLiveLesson, errorCodeIncrement, result.Error)
	}
	if result.RowsAffected == 0 {
		return wrapStoreError(errorSubjectLiveLesson, errorCodeIncrement, admission.ErrLiveLessonNotFound)
	}
	return nil
}

func (store *Store) GetCustomerID(ctx context.Context, email admission.StudentEmail) (string, bool, error) {
	var model StripeCustomer
	err := store.db.WithContext(ctx).Where("email = ?", email.String()).Take(&model).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapStoreError(errorSubjectCustomer, errorCodeGet, err)
	}
	return model.StripeCustomerID, true, nil
}

// SaveCustomerID keeps the first mapping written for an email and returns it.
func (store *Store) SaveCustomerID(ctx context.Context, email admission.StudentEmail, customerID string) (string, error) {
	model := StripeCustomer{
		Email:            email.String(),
		StripeCustomerID: customerID,
		CreatedAt:        time.Now().UTC(),
	}
	err := store.db.WithContext(ctx).
		Clauses(clause.OnConflict{Columns: []clause.Column{{Name: "email"}}, DoNothing: true}).
		Create(&model).Error
	if err != nil && !isUniqueViolation(err, constraintStripeCustomerPrimary) {
		return "", wrapStoreError(errorSubjectCustomer, errorCodeSave, err)
	}
	storedID, found, err := store.GetCustomerID(ctx, email)
	if err != nil {
		return "", err
	}
	if !found {
		return "", wrapStoreError(errorSubjectCustomer, errorCodeSave, gorm.ErrRecordNotFound)
	}
	return storedID, nil
}

// ListCourses implements catalog.Store.
func (store *Store) ListCourses(ctx context.Context, filter catalog.CourseFilter) ([]catalog.Course, error) {
	query := store.coursesQuery(ctx).Where("c.is_published = ?", true)
	if filter.CategorySlug != "" {
		query = query.Where("cat.slug = ?", filter.CategorySlug)
	}
	if filter.Search != "" {
		pattern := catalog.SearchPattern(filter.Search)
		query = query.Where("(LOWER(c.title) LIKE ? OR LOWER(i.name) LIKE ? OR LOWER(c.description) LIKE ?)", pattern, pattern, pattern)
	}
	var rows []courseRow
	err := query.
		Order(courseOrder(filter.Sort)).
		Limit(filter.Page.Limit).
		Offset(filter.Page.Offset).
		Scan(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectCourse, errorCodeList, err)
	}
	courses := make([]catalog.Course, 0, len(rows))
	for _, row := range rows {
		courses = append(courses, row.toCatalog())
	}
	return courses, nil
}

// CreateCourse implements catalog.Store.
func (store *Store) CreateCourse(ctx context.Context, course catalog.NewCourse) (catalog.Course, error) {
	model := Course{
		Title:         course.Title,
		Slug:          course.Slug,
		Description:   course.Description,
		InstructorID:  course.InstructorID,
		CategoryID:    course.CategoryID,
		ThumbnailURL:  course.ThumbnailURL,
		Price:         course.Price,
		Level:         course.Level,
		DurationHours: course.DurationHours,
		IsPublished:   true,
		CreatedAt:     time.Now().UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return catalog.Course{}, wrapStoreError(errorSubjectCourse, errorCodeCreate, err)
	}
	var row courseRow
	if err := store.coursesQuery(ctx).Where("c.id = ?", model.ID).Take(&row).Error; err != nil {
		return catalog.Course{}, wrapStoreError(errorSubjectCourse, errorCodeGet, err)
	}
	return row.toCatalog(), nil
}

// ListLiveLessons implements catalog.Store.
func (store *Store) ListLiveLessons(ctx context.Context, filter catalog.LiveLessonFilter) ([]catalog.LiveLesson, error) {
	query := store.liveLessonsQuery(ctx).
		Where("ll.is_active = ? AND ll.scheduled_date >= ?", true, datatypes.Date(filter.FromDate))
	if filter.CategorySlug != "" {
		query = query.Where("cat.slug = ?", filter.CategorySlug)
	}
	if filter.Search != "" {
		pattern := catalog.SearchPattern(filter.Search)
		query = query.Where("(LOWER(ll.title) LIKE ? OR LOWER(i.name) LIKE ? OR LOWER(ll.description) LIKE ?)", pattern, pattern, pattern)
	}
	if start, end, ok := filter.TimeSlot.Bounds(); ok {
		query = query.Where("ll.scheduled_time >= ? AND ll.scheduled_time < ?", start, end)
	}
	var rows []liveLessonRow
	err := query.
		Order("ll.scheduled_date ASC, ll.scheduled_time ASC, ll.id ASC").
		Limit(filter.Page.Limit).
		Offset(filter.Page.Offset).
		Scan(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectLiveLesson, errorCodeList, err)
	}
	lessons := make([]catalog.LiveLesson, 0, len(rows))
	for _, row := range rows {
		lesson, err := row.toCatalog()
		if err != nil {
			return nil, wrapStoreError(errorSubjectLiveLesson, errorCodeInvalid, err)
		}
		lessons = append(lessons, lesson)
	}
	return lessons, nil
}

// CreateLiveLesson implements catalog.Store.
func (store *Store) CreateLiveLesson(ctx context.Context, lesson catalog.NewLiveLesson) (catalog.LiveLesson, error) {
	startsAt, err := lesson.Schedule.StartsAt()
	if err != nil {
		return catalog.LiveLesson{}, wrapStoreError(errorSubjectLiveLesson, errorCodeInvalid, err)
	}
	topics, err := json.Marshal(lesson.Topics)
	if err != nil {
		return catalog.LiveLesson{}, wrapStoreError(errorSubjectLiveLesson, errorCodeInvalid, err)
	}
	timezone := lesson.Timezone
	if timezone == "" {
		timezone = startsAt.Location().String()
	}
	model := LiveLesson{
		Title:         lesson.Title,
		Description:   lesson.Description,
		InstructorID:  lesson.InstructorID,
		CategoryID:    lesson.CategoryID,
		ScheduledDate: datatypes.Date(time.Date(startsAt.Year(), startsAt.Month(), startsAt.Day(), 0, 0, 0, 0, time.UTC)),
		ScheduledTime: datatypes.NewTime(startsAt.Hour(), startsAt.Minute(), startsAt.Second(), 0),
		Timezone:      timezone,
		DurationHours: lesson.DurationHours,
		MaxStudents:   lesson.MaxStudents,
		Price:         lesson.Price,
		Level:         lesson.Level,
		Topics:        datatypes.JSON(topics),
		IsActive:      true,
		CreatedAt:     time.Now().UTC(),
	}
	if err := store.db.WithContext(ctx).Create(&model).Error; err != nil {
		return catalog.LiveLesson{}, wrapStoreError(errorSubjectLiveLesson, errorCodeCreate, err)
	}
	var row liveLessonRow
	if err := store.liveLessonsQuery(ctx).Where("ll.id = ?", model.ID).Take(&row).Error; err != nil {
		return catalog.LiveLesson{}, wrapStoreError(errorSubjectLiveLesson, errorCodeGet, err)
	}
	created, err := row.toCatalog()
	if err != nil {
		return catalog.LiveLesson{}, wrapStoreError(errorSubjectLiveLesson, errorCodeInvalid, err)
	}
	return created, nil
}

// ListEnrolledCourses implements dashboard.Reader.
func (store *Store) ListEnrolledCourses(ctx context.Context, email admission.StudentEmail) ([]dashboard.EnrolledCourse, error) {
	var rows []dashboard.EnrolledCourse
	err := store.db.WithContext(ctx).
		Table("course_enrollments AS ce").
		Select(enrolledCourseColumns).
		Joins("JOIN courses c ON ce.course_id = c.id").
		Joins("LEFT JOIN instructors i ON c.instructor_id = i.id").
		Where("ce.student_email = ?", email.String()).
		Order("ce.enrolled_at DESC, ce.id DESC").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectDashboard, errorCodeList, err)
	}
	return rows, nil
}

// ListBookedLessons implements dashboard.Reader.
func (store *Store) ListBookedLessons(ctx context.Context, email admission.StudentEmail) ([]dashboard.BookedLesson, error) {
	var rows []bookedLessonRow
	err := store.db.WithContext(ctx).
		Table("live_lesson_bookings AS llb").
		Select(bookedLessonColumns).
		Joins("JOIN live_lessons ll ON llb.live_lesson_id = ll.id").
		Joins("LEFT JOIN instructors i ON ll.instructor_id = i.id").
		Where("llb.student_email = ?", email.String()).
		Order("ll.scheduled_date ASC, ll.scheduled_time ASC, llb.id ASC").
		Scan(&rows).Error
	if err != nil {
		return nil, wrapStoreError(errorSubjectDashboard, errorCodeList, err)
	}
	lessons := make([]dashboard.BookedLesson, 0, len(rows))
	for _, row := range rows {
		lessons = append(lessons, row.toDashboard())
	}
	return lessons, nil
}

func (store *Store) coursesQuery(ctx context.Context) *gorm.DB {
	return store.db.WithContext(ctx).
		Table("courses AS c").
		Select(courseColumns).
		Joins("LEFT JOIN instructors i ON c.instructor_id = i.id").
		Joins("LEFT JOIN categories cat ON c.category_id = cat.id")
}

func (store *Store) liveLessonsQuery(ctx context.Context) *gorm.DB {
	return store.db.WithContext(ctx).
		Table("live_lessons AS ll").
		Select(liveLessonColumns).
		Joins("LEFT JOIN instructors i ON ll.instructor_id = i.id").
		Joins("LEFT JOIN categories cat ON ll.category_id = cat.id")
}

func courseOrder(order catalog.SortOrder) string {
	switch order {
	case catalog.SortPriceLow:
		return "c.price ASC, c.id ASC"
	case catalog.SortPriceHigh:
		return "c.price DESC, c.id ASC"
	case catalog.SortRating:
		return "c.rating DESC, c.id ASC"
	case catalog.SortNewest:
		return "c.created_at DESC, c.id DESC"
	default:
		return "c.enrolled_students DESC, c.id ASC"
	}
}

type courseRow struct {
	ID               int64
	Title            string
	Slug             string
	Description      string
	InstructorID     int64
	CategoryID       int64
	ThumbnailURL     string
	Price            float64
	Level            string
	DurationHours    float64
	TotalLessons     int
	Rating           float64
	EnrolledStudents int64
	IsPublished      bool
	CreatedAt        time.Time
	InstructorName   string
	InstructorAvatar string
	CategoryName     string
	CategorySlug     string
}

func (row courseRow) toCatalog() catalog.Course {
	return catalog.Course{
		ID:               row.ID,
		Title:            row.Title,
		Slug:             row.Slug,
		Description:      row.Description,
		InstructorID:     row.InstructorID,
		CategoryID:       row.CategoryID,
		ThumbnailURL:     row.ThumbnailURL,
		Price:            row.Price,
		Level:            row.Level,
		DurationHours:    row.DurationHours,
		TotalLessons:     row.TotalLessons,
		Rating:           row.Rating,
		EnrolledStudents: row.EnrolledStudents,
		IsPublished:      row.IsPublished,
		CreatedAt:        row.CreatedAt,
		InstructorName:   row.InstructorName,
		InstructorAvatar: row.InstructorAvatar,
		CategoryName:     row.CategoryName,
		CategorySlug:     row.CategorySlug,
	}
}

type liveLessonRow struct {
	ID               int64
	Title            string
	Description      string
	InstructorID     int64
	CategoryID       int64
	ScheduledDate    datatypes.Date
	ScheduledTime    datatypes.Time
	Timezone         string
	DurationHours    float64
	MaxStudents      int64
	EnrolledStudents int64
	Price            float64
	Level            string
	Topics           datatypes.JSON
	MeetingURL       string
	IsActive         bool
	CreatedAt        time.Time
	InstructorName   string
	InstructorAvatar string
	CategoryName     string
	CategorySlug     string
}

func (row liveLessonRow) schedule() admission.Schedule {
	return admission.Schedule{
		Date:     formatScheduledDate(row.ScheduledDate),
		Clock:    row.ScheduledTime.String(),
		Timezone: row.Timezone,
	}
}

func (row liveLessonRow) toCatalog() (catalog.LiveLesson, error) {
	topics := []string{}
	if len(row.Topics) > 0 {
		if err := json.Unmarshal(row.Topics, &topics); err != nil {
			return catalog.LiveLesson{}, err
		}
	}
	snapshot := admission.LiveLesson{MaxStudents: row.MaxStudents, EnrolledStudents: row.EnrolledStudents}
	return catalog.LiveLesson{
		ID:               row.ID,
		Title:            row.Title,
		Description:      row.Description,
		InstructorID:     row.InstructorID,
		CategoryID:       row.CategoryID,
		ScheduledDate:    formatScheduledDate(row.ScheduledDate),
		ScheduledTime:    row.ScheduledTime.String(),
		Timezone:         row.Timezone,
		DurationHours:    row.DurationHours,
		MaxStudents:      row.MaxStudents,
		EnrolledStudents: row.EnrolledStudents,
		AvailableSpots:   snapshot.AvailableSpots(),
		Price:            row.Price,
		Level:            row.Level,
		Topics:           topics,
		MeetingURL:       row.MeetingURL,
		IsActive:         row.IsActive,
		CreatedAt:        row.CreatedAt,
		InstructorName:   row.InstructorName,
		InstructorAvatar: row.InstructorAvatar,
		CategoryName:     row.CategoryName,
		CategorySlug:     row.CategorySlug,
	}, nil
}

type bookedLessonRow struct {
	BookingID        int64
	BookingDate      time.Time
	Attended         bool
	LessonID         int64
	Title            string
	Description      string
	ScheduledDate    datatypes.Date
	ScheduledTime    datatypes.Time
	Timezone         string
	DurationHours    float64
	Price            float64
	Level            string
	MeetingURL       string
	InstructorName   string
	InstructorAvatar string
}

func (row bookedLessonRow) toDashboard() dashboard.BookedLesson {
	return dashboard.BookedLesson{
		BookingID:        row.BookingID,
		BookingDate:      row.BookingDate,
		Attended:         row.Attended,
		LessonID:         row.LessonID,
		Title:            row.Title,
		Description:      row.Description,
		ScheduledDate:    formatScheduledDate(row.ScheduledDate),
		ScheduledTime:    row.ScheduledTime.String(),
		Timezone:         row.Timezone,
		DurationHours:    row.DurationHours,
		Price:            row.Price,
		Level:            row.Level,
		MeetingURL:       row.MeetingURL,
		InstructorName:   row.InstructorName,
		InstructorAvatar: row.InstructorAvatar,
	}
}

// formatScheduledDate reads the calendar date as stored; drivers hand back
// midnight in UTC or in the session zone, and neither should shift the day.
func formatScheduledDate(value datatypes.Date) string {
	return catalog.FormatDate(time.Time(value))
}

func wrapStoreError(subject string, code string, err error) error {
	return admission.WrapError(errorOperationStore, subject, code, err)
}

func isUniqueViolation(err error, constraint string) bool {
	if err == nil {
		return false
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraint
	}
	var sqliteErr *gosqlite.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		if code != sqliteUniqueConstraintCode && code != sqlitePrimaryKeyConstraintCode {
			return false
		}
		columns, known := sqliteConstraintColumns[constraint]
		// Messages read "... constraint failed: <table.column, ...> (<code>)".
		return known && strings.Contains(sqliteErr.Error(), "failed: "+columns+" (")
	}
	return false
}
