package gormstore

import (
	"context"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	constraintCourseEnrollmentStudent  = "uniq_course_enrollments_course_student"
	constraintLiveLessonBookingStudent = "uniq_live_lesson_bookings_lesson_student"
	constraintStripeCustomerPrimary    = "stripe_customers_pkey"
)

// Instructor mirrors the instructors table.
type Instructor struct {
	ID        int64     `gorm:"primaryKey"`
	Name      string    `gorm:"not null"`
	AvatarURL string    `gorm:""`
	Bio       string    `gorm:""`
	CreatedAt time.Time `gorm:"not null"`
}

func (Instructor) TableName() string { return "instructors" }

// Category mirrors the categories table.
type Category struct {
	ID   int64  `gorm:"primaryKey"`
	Name string `gorm:"not null"`
	Slug string `gorm:"not null;uniqueIndex"`
}

func (Category) TableName() string { return "categories" }

// Course mirrors the courses table.
type Course struct {
	ID               int64     `gorm:"primaryKey"`
	Title            string    `gorm:"not null"`
	Slug             string    `gorm:"not null;index"`
	Description      string    `gorm:""`
	InstructorID     int64     `gorm:"index"`
	CategoryID       int64     `gorm:"index"`
	ThumbnailURL     string    `gorm:""`
	Price            float64   `gorm:"not null"`
	Level            string    `gorm:""`
	DurationHours    float64   `gorm:""`
	TotalLessons     int       `gorm:"not null;default:0"`
	Rating           float64   `gorm:"not null;default:0"`
	EnrolledStudents int64     `gorm:"not null;default:0"`
	IsPublished      bool      `gorm:"not null;default:false;index"`
	CreatedAt        time.Time `gorm:"not null"`
}

func (Course) TableName() string { return "courses" }

// LiveLesson mirrors the live_lessons table.
type LiveLesson struct {
	ID               int64          `gorm:"primaryKey"`
	Title            string         `gorm:"not null"`
	Description      string         `gorm:""`
	InstructorID     int64          `gorm:"index"`
	CategoryID       int64          `gorm:"index"`
	ScheduledDate    datatypes.Date `gorm:"not null;index:idx_live_lessons_schedule,priority:1"`
	ScheduledTime    datatypes.Time `gorm:"not null;index:idx_live_lessons_schedule,priority:2"`
	Timezone         string         `gorm:"not null;default:'UTC'"`
	DurationHours    float64        `gorm:""`
	MaxStudents      int64          `gorm:"not null"`
	EnrolledStudents int64          `gorm:"not null;default:0"`
	Price            float64        `gorm:"not null"`
	Level            string         `gorm:""`
	Topics           datatypes.JSON `gorm:""`
	MeetingURL       string         `gorm:""`
	IsActive         bool           `gorm:"not null;default:true"`
	CreatedAt        time.Time      `gorm:"not null"`
}

func (LiveLesson) TableName() string { return "live_lessons" }

// CourseEnrollment mirrors the course_enrollments table.
type CourseEnrollment struct {
	ID           int64      `gorm:"primaryKey"`
	CourseID     int64      `gorm:"not null;uniqueIndex:uniq_course_enrollments_course_student,priority:1"`
	StudentEmail string     `gorm:"not null;uniqueIndex:uniq_course_enrollments_course_student,priority:2;index"`
	Progress     int        `gorm:"not null;default:0"`
	EnrolledAt   time.Time  `gorm:"not null"`
	CompletedAt  *time.Time `gorm:""`
}

func (CourseEnrollment) TableName() string { return "course_enrollments" }

// LiveLessonBooking mirrors the live_lesson_bookings table.
type LiveLessonBooking struct {
	ID           int64     `gorm:"primaryKey"`
	LiveLessonID int64     `gorm:"not null;uniqueIndex:uniq_live_lesson_bookings_lesson_student,priority:1"`
	StudentEmail string    `gorm:"not null;uniqueIndex:uniq_live_lesson_bookings_lesson_student,priority:2;index"`
	StudentName  string    `gorm:"not null"`
	BookingDate  time.Time `gorm:"not null"`
	Attended     bool      `gorm:"not null;default:false"`
}

func (LiveLessonBooking) TableName() string { return "live_lesson_bookings" }

// StripeCustomer maps a student email to its processor customer id.
type StripeCustomer struct {
	Email            string    `gorm:"primaryKey"`
	StripeCustomerID string    `gorm:"not null"`
	CreatedAt        time.Time `gorm:"not null"`
}

func (StripeCustomer) TableName() string { return "stripe_customers" }

// Models lists every table the service owns, in dependency order.
func Models() []interface{} {
	return []interface{}{
		&Instructor{},
		&Category{},
		&Course{},
		&LiveLesson{},
		&CourseEnrollment{},
		&LiveLessonBooking{},
		&StripeCustomer{},
	}
}

// Migrate creates or updates the schema.
func Migrate(ctx context.Context, db *gorm.DB) error {
	return db.WithContext(ctx).AutoMigrate(Models()...)
}
