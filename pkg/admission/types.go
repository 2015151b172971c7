package admission

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

var fieldValidator = validator.New()

// CourseID identifies a recorded course.
type CourseID int64

// NewCourseID validates a course id.
func NewCourseID(raw int64) (CourseID, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidCourseID)
	}
	return CourseID(raw), nil
}

// ParseCourseID parses a decimal course id, as carried in checkout metadata.
func ParseCourseID(raw string) (CourseID, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidCourseID, raw)
	}
	return NewCourseID(value)
}

// Int64 returns the raw identifier.
func (id CourseID) Int64() int64 {
	return int64(id)
}

// String returns the decimal identifier.
func (id CourseID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// LiveLessonID identifies a scheduled live lesson.
type LiveLessonID int64

// NewLiveLessonID validates a live lesson id.
func NewLiveLessonID(raw int64) (LiveLessonID, error) {
	if raw <= 0 {
		return 0, fmt.Errorf("%w: must be greater than zero", ErrInvalidLiveLessonID)
	}
	return LiveLessonID(raw), nil
}

// ParseLiveLessonID parses a decimal live lesson id.
func ParseLiveLessonID(raw string) (LiveLessonID, error) {
	value, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %q is not a number", ErrInvalidLiveLessonID, raw)
	}
	return NewLiveLessonID(value)
}

// Int64 returns the raw identifier.
func (id LiveLessonID) Int64() int64 {
	return int64(id)
}

// String returns the decimal identifier.
func (id LiveLessonID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// StudentEmail is the student identity admissions are keyed on.
type StudentEmail struct {
	value string
}

// NewStudentEmail validates and normalizes a student email.
func NewStudentEmail(raw string) (StudentEmail, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return StudentEmail{}, fmt.Errorf("%w: empty value", ErrInvalidStudentEmail)
	}
	if err := fieldValidator.Var(trimmed, "email"); err != nil {
		return StudentEmail{}, fmt.Errorf("%w: %q is not an email address", ErrInvalidStudentEmail, trimmed)
	}
	return StudentEmail{value: trimmed}, nil
}

// String returns the normalized email.
func (email StudentEmail) String() string {
	return email.value
}

// IsZero reports whether the email is unset.
func (email StudentEmail) IsZero() bool {
	return email.value == ""
}

// StudentName is the display name recorded on a booking.
type StudentName struct {
	value string
}

// NewStudentName validates and normalizes a student name.
func NewStudentName(raw string) (StudentName, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return StudentName{}, fmt.Errorf("%w: empty value", ErrInvalidStudentName)
	}
	return StudentName{value: trimmed}, nil
}

// String returns the normalized name.
func (name StudentName) String() string {
	return name.value
}

// Student is the identity an admission is made for.
type Student struct {
	Email StudentEmail
	Name  StudentName
}

// NewStudent builds a Student; an empty name is allowed and falls back to the email.
func NewStudent(rawEmail string, rawName string) (Student, error) {
	email, err := NewStudentEmail(rawEmail)
	if err != nil {
		return Student{}, err
	}
	student := Student{Email: email}
	if strings.TrimSpace(rawName) != "" {
		name, err := NewStudentName(rawName)
		if err != nil {
			return Student{}, err
		}
		student.Name = name
	}
	return student, nil
}

// DisplayName returns the name, or the email when no name is known.
func (student Student) DisplayName() string {
	if student.Name.value != "" {
		return student.Name.value
	}
	return student.Email.value
}

// AmountCents is a price in the processor's minor currency unit.
type AmountCents int64

// Int64 returns the raw amount.
func (amount AmountCents) Int64() int64 {
	return int64(amount)
}

// PriceToCents converts a decimal price in currency units to minor units, rounding half away from zero.
func PriceToCents(price float64) (AmountCents, error) {
	if math.IsNaN(price) || math.IsInf(price, 0) || price < 0 {
		return 0, fmt.Errorf("%w: %v", ErrInvalidPrice, price)
	}
	return AmountCents(math.Round(price * 100)), nil
}

// Kind distinguishes the two admission flavours.
type Kind string

const (
	KindCourseEnrollment  Kind = "course_enrollment"
	KindLiveLessonBooking Kind = "live_lesson_booking"
)

// String returns the wire value.
func (kind Kind) String() string {
	return string(kind)
}

// Course is the admission-relevant snapshot of a course row.
type Course struct {
	ID               CourseID
	Slug             string
	Title            string
	Description      string
	ThumbnailURL     string
	InstructorName   string
	Price            float64
	EnrolledStudents int64
	Published        bool
}

// LiveLesson is the admission-relevant snapshot of a live lesson row.
type LiveLesson struct {
	ID               LiveLessonID
	Title            string
	Description      string
	InstructorName   string
	Price            float64
	Schedule         Schedule
	MaxStudents      int64
	EnrolledStudents int64
	Active           bool
}

// AvailableSpots returns the remaining capacity, never below zero.
func (lesson LiveLesson) AvailableSpots() int64 {
	remaining := lesson.MaxStudents - lesson.EnrolledStudents
	if remaining < 0 {
		return 0
	}
	return remaining
}

// IsFull reports whether the capacity counter reached the maximum.
func (lesson LiveLesson) IsFull() bool {
	return lesson.EnrolledStudents >= lesson.MaxStudents
}

// Enrollment is a created course admission.
type Enrollment struct {
	ID           int64
	CourseID     CourseID
	StudentEmail StudentEmail
	Progress     int
	EnrolledAt   time.Time
	CompletedAt  *time.Time
}

// Booking is a created live lesson admission.
type Booking struct {
	ID           int64
	LiveLessonID LiveLessonID
	StudentEmail StudentEmail
	StudentName  StudentName
	BookingDate  time.Time
	Attended     bool
}

// EnrollmentInput carries the fields written by InsertEnrollment.
type EnrollmentInput struct {
	CourseID     CourseID
	StudentEmail StudentEmail
	EnrolledAt   time.Time
}

// BookingInput carries the fields written by InsertBooking.
type BookingInput struct {
	LiveLessonID LiveLessonID
	StudentEmail StudentEmail
	StudentName  StudentName
	BookingDate  time.Time
}
