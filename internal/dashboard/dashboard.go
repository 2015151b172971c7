// Package dashboard aggregates a student's enrollments and bookings.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/academy/pkg/admission"
	"go.uber.org/zap"
)

var ErrInvalidServiceConfig = errors.New("invalid dashboard service config")

// EnrolledCourse is one enrollment joined with its course.
type EnrolledCourse struct {
	EnrollmentID     int64      `json:"enrollment_id"`
	EnrolledAt       time.Time  `json:"enrolled_at"`
	Progress         int        `json:"progress"`
	CompletedAt      *time.Time `json:"completed_at"`
	CourseID         int64      `json:"course_id"`
	Title            string     `json:"title"`
	Description      string     `json:"description"`
	ThumbnailURL     string     `json:"thumbnail_url"`
	Price            float64    `json:"price"`
	Level            string     `json:"level"`
	DurationHours    float64    `json:"duration_hours"`
	TotalLessons     int        `json:"total_lessons"`
	InstructorName   string     `json:"instructor_name"`
	InstructorAvatar string     `json:"instructor_avatar"`
}

// BookedLesson is one booking joined with its live lesson.
type BookedLesson struct {
	BookingID        int64     `json:"booking_id"`
	BookingDate      time.Time `json:"booking_date"`
	Attended         bool      `json:"attended"`
	LessonID         int64     `json:"lesson_id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	ScheduledDate    string    `json:"scheduled_date"`
	ScheduledTime    string    `json:"scheduled_time"`
	Timezone         string    `json:"timezone"`
	DurationHours    float64   `json:"duration_hours"`
	Price            float64   `json:"price"`
	Level            string    `json:"level"`
	MeetingURL       string    `json:"meeting_url"`
	InstructorName   string    `json:"instructor_name"`
	InstructorAvatar string    `json:"instructor_avatar"`
}

// Schedule returns the lesson start as an admission schedule.
func (lesson BookedLesson) Schedule() admission.Schedule {
	return admission.Schedule{Date: lesson.ScheduledDate, Clock: lesson.ScheduledTime, Timezone: lesson.Timezone}
}

// Stats summarizes the dashboard.
type Stats struct {
	TotalCoursesEnrolled int `json:"totalCoursesEnrolled"`
	CompletedCourses     int `json:"completedCourses"`
	TotalLiveLessons     int `json:"totalLiveLessons"`
	AttendedLessons      int `json:"attendedLessons"`
	UpcomingLessonsCount int `json:"upcomingLessonsCount"`
}

// Dashboard is the aggregated view for one student.
type Dashboard struct {
	Stats           Stats            `json:"stats"`
	EnrolledCourses []EnrolledCourse `json:"enrolledCourses"`
	UpcomingLessons []BookedLesson   `json:"upcomingLessons"`
	PastLessons     []BookedLesson   `json:"pastLessons"`
}

// Reader loads the joined rows. Courses come newest enrollment first,
// lessons in schedule order.
type Reader interface {
	ListEnrolledCourses(ctx context.Context, email admission.StudentEmail) ([]EnrolledCourse, error)
	ListBookedLessons(ctx context.Context, email admission.StudentEmail) ([]BookedLesson, error)
}

// Service builds dashboards.
type Service struct {
	reader Reader
	nowFn  func() time.Time
	logger *zap.Logger
}

// NewService builds a dashboard Service.
func NewService(reader Reader, now func() time.Time, logger *zap.Logger) (*Service, error) {
	if reader == nil || now == nil {
		return nil, ErrInvalidServiceConfig
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{reader: reader, nowFn: now, logger: logger}, nil
}

// Build aggregates the student's courses and lessons. A lesson is upcoming
// only when it starts strictly after now; attendance is counted on past lessons.
func (service *Service) Build(ctx context.Context, email admission.StudentEmail) (Dashboard, error) {
	if email.IsZero() {
		return Dashboard{}, fmt.Errorf("%w: empty value", admission.ErrInvalidStudentEmail)
	}
	courses, err := service.reader.ListEnrolledCourses(ctx, email)
	if err != nil {
		return Dashboard{}, err
	}
	lessons, err := service.reader.ListBookedLessons(ctx, email)
	if err != nil {
		return Dashboard{}, err
	}

	now := service.nowFn()
	result := Dashboard{
		EnrolledCourses: make([]EnrolledCourse, 0, len(courses)),
		UpcomingLessons: make([]BookedLesson, 0),
		PastLessons:     make([]BookedLesson, 0),
	}
	result.EnrolledCourses = append(result.EnrolledCourses, courses...)
	for _, lesson := range lessons {
		startsAt, err := lesson.Schedule().StartsAt()
		if err != nil {
			service.logger.Warn("unresolvable lesson schedule",
				zap.Int64("lesson_id", lesson.LessonID),
				zap.Error(err),
			)
			result.PastLessons = append(result.PastLessons, lesson)
			continue
		}
		if startsAt.After(now) {
			result.UpcomingLessons = append(result.UpcomingLessons, lesson)
		} else {
			result.PastLessons = append(result.PastLessons, lesson)
		}
	}

	result.Stats.TotalCoursesEnrolled = len(courses)
	for _, course := range courses {
		if course.CompletedAt != nil {
			result.Stats.CompletedCourses++
		}
	}
	result.Stats.TotalLiveLessons = len(lessons)
	for _, lesson := range result.PastLessons {
		if lesson.Attended {
			result.Stats.AttendedLessons++
		}
	}
	result.Stats.UpcomingLessonsCount = len(result.UpcomingLessons)
	return result, nil
}
