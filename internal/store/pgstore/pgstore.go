package pgstore

import (
	"context"
	"errors"
	"time"

	"github.com/MarkoPoloResearchLab/academy/pkg/admission"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

const (
	constraintCourseEnrollmentStudent  = "uniq_course_enrollments_course_student"
	constraintLiveLessonBookingStudent = "uniq_live_lesson_bookings_lesson_student"
	pgUniqueViolationCode              = "23505"
	errorOperationStore                = "store"
	errorSubjectCourse                 = "course"
	errorSubjectLiveLesson             = "live_lesson"
	errorSubjectEnrollment             = "enrollment"
	errorSubjectBooking                = "booking"
	errorSubjectCustomer               = "customer"
	errorSubjectTransaction            = "transaction"
	errorCodeBegin                     = "begin"
	errorCodeCommit                    = "commit"
	errorCodeDuplicate                 = "duplicate"
	errorCodeExists                    = "exists"
	errorCodeGet                       = "get"
	errorCodeIncrement                 = "increment"
	errorCodeInsert                    = "insert"
	errorCodeSave                      = "save"

	sqlSelectCourse = `
		select c.id, c.slug, c.title, coalesce(c.description,''), coalesce(c.thumbnail_url,''),
			coalesce(i.name,''), c.price::float8, c.enrolled_students, c.is_published
		from courses c
		left join instructors i on c.instructor_id = i.id
		where c.id = $1 and c.is_published = true
	`

	sqlSelectLiveLesson = `
		select ll.id, ll.title, coalesce(ll.description,''), coalesce(i.name,''), ll.price::float8,
			to_char(ll.scheduled_date, 'YYYY-MM-DD'), to_char(ll.scheduled_time, 'HH24:MI:SS'), ll.timezone,
			ll.max_students, ll.enrolled_students, ll.is_active
		from live_lessons ll
		left join instructors i on ll.instructor_id = i.id
		where ll.id = $1 and ll.is_active = true
	`

	sqlEnrollmentExists = `
		select exists(select 1 from course_enrollments where course_id = $1 and student_email = $2)
	`

	sqlBookingExists = `
		select exists(select 1 from live_lesson_bookings where live_lesson_id = $1 and student_email = $2)
	`

	sqlInsertEnrollment = `
		insert into course_enrollments(course_id, student_email, progress, enrolled_at)
		values ($1, $2, 0, $3)
		returning id, progress, enrolled_at
	`

	sqlInsertBooking = `
		insert into live_lesson_bookings(live_lesson_id, student_email, student_name, booking_date, attended)
		values ($1, $2, $3, $4, false)
		returning id, booking_date
	`

	sqlIncrementCourse = `
		update courses set enrolled_students = enrolled_students + 1 where id = $1
	`

	sqlIncrementLiveLesson = `
		update live_lessons set enrolled_students = enrolled_students + 1 where id = $1
	`

	sqlSelectCustomer = `
		select stripe_customer_id from stripe_customers where email = $1
	`

	sqlInsertCustomer = `
		insert into stripe_customers(email, stripe_customer_id, created_at)
		values ($1, $2, now())
		on conflict (email) do nothing
	`
)

// querier is the subset of pgx shared by pools and transactions.
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, arguments ...any) pgx.Row
}

// Store implements admission.Store using a pgx connection pool (autocommit).
// The schema is owned by gormstore.Migrate.
type Store struct {
	queries
	pool *pgxpool.Pool
}

// TxStore implements admission.Store for an active transaction.
type TxStore struct {
	queries
}

// New returns a Store backed by a pgx pool.
func New(pool *pgxpool.Pool) *Store {
	return &Store{queries: queries{db: pool}, pool: pool}
}

func (store *Store) WithTx(ctx context.Context, fn func(ctx context.Context, txStore admission.Store) error) error {
	tx, err := store.pool.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeBegin, err)
	}
	transactionStore := &TxStore{queries: queries{db: tx}}
	if err := fn(ctx, transactionStore); err != nil {
		_ = tx.Rollback(ctx)
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return wrapStoreError(errorSubjectTransaction, errorCodeCommit, err)
	}
	return nil
}

func (store *TxStore) WithTx(ctx context.Context, fn func(ctx context.Context, txStore admission.Store) error) error {
	return fn(ctx, store)
}

type queries struct {
	db querier
}

func (store queries) GetCourse(ctx context.Context, courseID admission.CourseID) (admission.Course, error) {
	var (
		course  admission.Course
		idValue int64
	)
	err := store.db.QueryRow(ctx, sqlSelectCourse, courseID.Int64()).Scan(
		&idValue,
		&course.Slug,
		&course.Title,
		&course.Description,
		&course.ThumbnailURL,
		&course.InstructorName,
		&course.Price,
		&course.EnrolledStudents,
		&course.Published,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return admission.Course{}, wrapStoreError(errorSubjectCourse, errorCodeGet, admission.ErrCourseNotFound)
		}
		return admission.Course{}, wrapStoreError(errorSubjectCourse, errorCodeGet, err)
	}
	course.ID = admission.CourseID(idValue)
	return course, nil
}

func (store queries) GetLiveLesson(ctx context.Context, liveLessonID admission.LiveLessonID) (admission.LiveLesson, error) {
	var (
		lesson  admission.LiveLesson
		idValue int64
	)
	err := store.db.QueryRow(ctx, sqlSelectLiveLesson, liveLessonID.Int64()).Scan(
		&idValue,
		&lesson.Title,
		&lesson.Description,
		&lesson.InstructorName,
		&lesson.Price,
		&lesson.Schedule.Date,
		&lesson.Schedule.Clock,
		&lesson.Schedule.Timezone,
		&lesson.MaxStudents,
		&lesson.EnrolledStudents,
		&lesson.Active,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return admission.LiveLesson{}, wrapStoreError(errorSubjectLiveLesson, errorCodeGet, admission.ErrLiveLessonNotFound)
		}
		return admission.LiveLesson{}, wrapStoreError(errorSubjectLiveLesson, errorCodeGet, err)
	}
	lesson.ID = admission.LiveLessonID(idValue)
	return lesson, nil
}

func (store queries) EnrollmentExists(ctx context.Context, courseID admission.CourseID, email admission.StudentEmail) (bool, error) {
	var exists bool
	if err := store.db.QueryRow(ctx, sqlEnrollmentExists, courseID.Int64(), email.String()).Scan(&exists); err != nil {
		return false, wrapStoreError(errorSubjectEnrollment, errorCodeExists, err)
	}
	return exists, nil
}

func (store queries) BookingExists(ctx context.Context, liveLessonID admission.LiveLessonID, email admission.StudentEmail) (bool, error) {
	var exists bool
	if err := store.db.QueryRow(ctx, sqlBookingExists, liveLessonID.Int64(), email.String()).Scan(&exists); err != nil {
		return false, wrapStoreError(errorSubjectBooking, errorCodeExists, err)
	}
	return exists, nil
}

func (store queries) InsertEnrollment(ctx context.Context, input admission.EnrollmentInput) (admission.Enrollment, error) {
	enrollment := admission.Enrollment{CourseID: input.CourseID, StudentEmail: input.StudentEmail}
	var enrolledAt time.Time
	err := store.db.QueryRow(ctx, sqlInsertEnrollment, input.CourseID.Int64(), input.StudentEmail.String(), input.EnrolledAt.UTC()).
		Scan(&enrollment.ID, &enrollment.Progress, &enrolledAt)
	if isUniqueViolation(err, constraintCourseEnrollmentStudent) {
		return admission.Enrollment{}, wrapStoreError(errorSubjectEnrollment, errorCodeDuplicate, admission.ErrDuplicateAdmission)
	}
	if err != nil {
		return admission.Enrollment{}, wrapStoreError(errorSubjectEnrollment, errorCodeInsert, err)
	}
	enrollment.EnrolledAt = enrolledAt.UTC()
	return enrollment, nil
}

func (store queries) InsertBooking(ctx context.Context, input admission.BookingInput) (admission.Booking, error) {
	booking := admission.Booking{LiveLessonID: input.LiveLessonID, StudentEmail: input.StudentEmail, StudentName: input.StudentName}
	var bookingDate time.Time
	err := store.db.QueryRow(ctx, sqlInsertBooking,
		input.LiveLessonID.Int64(),
		input.StudentEmail.String(),
		input.StudentName.String(),
		input.BookingDate.UTC(),
	).Scan(&booking.ID, &bookingDate)
	if isUniqueViolation(err, constraintLiveLessonBookingStudent) {
		return admission.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeDuplicate, admission.ErrDuplicateAdmission)
	}
	if err != nil {
		return admission.Booking{}, wrapStoreError(errorSubjectBooking, errorCodeInsert, err)
	}
	booking.BookingDate = bookingDate.UTC()
	return booking, nil
}

func (store queries) IncrementCourseEnrollment(ctx context.Context, courseID admission.CourseID) error {
	tag, err := store.db.Exec(ctx, sqlIncrementCourse, courseID.Int64())
	if err != nil {
		return wrapStoreError(errorSubjectCourse, errorCodeIncrement, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectCourse, errorCodeIncrement, admission.ErrCourseNotFound)
	}
	return nil
}

func (store queries) IncrementLiveLessonEnrollment(ctx context.Context, liveLessonID admission.LiveLessonID) error {
	tag, err := store.db.Exec(ctx, sqlIncrementLiveLesson, liveLessonID.Int64())
	if err != nil {
		return wrapStoreError(errorSubjectLiveLesson, errorCodeIncrement, err)
	}
	if tag.RowsAffected() == 0 {
		return wrapStoreError(errorSubjectLiveLesson, errorCodeIncrement, admission.ErrLiveLessonNotFound)
	}
	return nil
}

func (store queries) GetCustomerID(ctx context.Context, email admission.StudentEmail) (string, bool, error) {
	var customerID string
	err := store.db.QueryRow(ctx, sqlSelectCustomer, email.String()).Scan(&customerID)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, wrapStoreError(errorSubjectCustomer, errorCodeGet, err)
	}
	return customerID, true, nil
}

func (store queries) SaveCustomerID(ctx context.Context, email admission.StudentEmail, customerID string) (string, error) {
	if _, err := store.db.Exec(ctx, sqlInsertCustomer, email.String(), customerID); err != nil {
		return "", wrapStoreError(errorSubjectCustomer, errorCodeSave, err)
	}
	storedID, found, err := store.GetCustomerID(ctx, email)
	if err != nil {
		return "", err
	}
	if !found {
		return "", wrapStoreError(errorSubjectCustomer, errorCodeSave, pgx.ErrNoRows)
	}
	return storedID, nil
}

func wrapStoreError(subject string, code string, err error) error {
	return admission.WrapError(errorOperationStore, subject, code, err)
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == pgUniqueViolationCode && pgErr.ConstraintName == constraint
	}
	return false
}
