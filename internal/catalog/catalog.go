// Package catalog lists and creates courses and live lessons.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/academy/pkg/admission"
	"github.com/go-playground/validator/v10"
)

const (
	defaultPageLimit = 50
	maxPageLimit     = 200
	categoryAll      = "all"
	dateLayout       = "2006-01-02"
)

var (
	ErrInvalidInput         = errors.New("invalid catalog input")
	ErrInvalidServiceConfig = errors.New("invalid catalog service config")
)

var (
	inputValidator      = validator.New()
	slugDisallowedChars = regexp.MustCompile(`[^a-z0-9\s-]`)
	slugWhitespace      = regexp.MustCompile(`\s+`)
	slugRepeatedHyphens = regexp.MustCompile(`-+`)
)

// SortOrder orders the course listing.
type SortOrder string

const (
	SortPopular   SortOrder = "popular"
	SortPriceLow  SortOrder = "price-low"
	SortPriceHigh SortOrder = "price-high"
	SortRating    SortOrder = "rating"
	SortNewest    SortOrder = "newest"
)

// ParseSortOrder maps the query value to a SortOrder; anything unknown sorts by popularity.
func ParseSortOrder(raw string) SortOrder {
	switch order := SortOrder(strings.TrimSpace(raw)); order {
	case SortPriceLow, SortPriceHigh, SortRating, SortNewest:
		return order
	default:
		return SortPopular
	}
}

// TimeSlot restricts live lessons to a part of the day.
type TimeSlot string

const (
	TimeSlotAny       TimeSlot = ""
	TimeSlotMorning   TimeSlot = "morning"
	TimeSlotAfternoon TimeSlot = "afternoon"
	TimeSlotEvening   TimeSlot = "evening"
)

// ParseTimeSlot maps the query value to a TimeSlot; "all" and unknown values mean no restriction.
func ParseTimeSlot(raw string) TimeSlot {
	switch slot := TimeSlot(strings.TrimSpace(raw)); slot {
	case TimeSlotMorning, TimeSlotAfternoon, TimeSlotEvening:
		return slot
	default:
		return TimeSlotAny
	}
}

// Bounds returns the half-open [start, end) wall-clock window of the slot.
func (slot TimeSlot) Bounds() (string, string, bool) {
	switch slot {
	case TimeSlotMorning:
		return "08:00:00", "12:00:00", true
	case TimeSlotAfternoon:
		return "12:00:00", "18:00:00", true
	case TimeSlotEvening:
		return "18:00:00", "22:00:00", true
	default:
		return "", "", false
	}
}

// Page is a limit/offset window.
type Page struct {
	Limit  int
	Offset int
}

// NormalizePage applies the default limit and clamps out-of-range values.
func NormalizePage(limit int, offset int) Page {
	if limit <= 0 {
		limit = defaultPageLimit
	}
	if limit > maxPageLimit {
		limit = maxPageLimit
	}
	if offset < 0 {
		offset = 0
	}
	return Page{Limit: limit, Offset: offset}
}

// CourseFilter narrows the published course listing.
type CourseFilter struct {
	CategorySlug string
	Search       string
	Sort         SortOrder
	Page         Page
}

// LiveLessonFilter narrows the active live lesson listing.
type LiveLessonFilter struct {
	CategorySlug string
	Search       string
	TimeSlot     TimeSlot
	FromDate     time.Time
	Page         Page
}

// Course is a listed course with its instructor and category names.
type Course struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Slug             string    `json:"slug"`
	Description      string    `json:"description"`
	InstructorID     int64     `json:"instructor_id"`
	CategoryID       int64     `json:"category_id"`
	ThumbnailURL     string    `json:"thumbnail_url"`
	Price            float64   `json:"price"`
	Level            string    `json:"level"`
	DurationHours    float64   `json:"duration_hours"`
	TotalLessons     int       `json:"total_lessons"`
	Rating           float64   `json:"rating"`
	EnrolledStudents int64     `json:"enrolled_students"`
	IsPublished      bool      `json:"is_published"`
	CreatedAt        time.Time `json:"created_at"`
	InstructorName   string    `json:"instructor_name"`
	InstructorAvatar string    `json:"instructor_avatar"`
	CategoryName     string    `json:"category_name"`
	CategorySlug     string    `json:"category_slug"`
}

// LiveLesson is a listed live lesson with its remaining capacity.
type LiveLesson struct {
	ID               int64     `json:"id"`
	Title            string    `json:"title"`
	Description      string    `json:"description"`
	InstructorID     int64     `json:"instructor_id"`
	CategoryID       int64     `json:"category_id"`
	ScheduledDate    string    `json:"scheduled_date"`
	ScheduledTime    string    `json:"scheduled_time"`
	Timezone         string    `json:"timezone"`
	DurationHours    float64   `json:"duration_hours"`
	MaxStudents      int64     `json:"max_students"`
	EnrolledStudents int64     `json:"enrolled_students"`
	AvailableSpots   int64     `json:"available_spots"`
	Price            float64   `json:"price"`
	Level            string    `json:"level"`
	Topics           []string  `json:"topics"`
	MeetingURL       string    `json:"meeting_url"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
	InstructorName   string    `json:"instructor_name"`
	InstructorAvatar string    `json:"instructor_avatar"`
	CategoryName     string    `json:"category_name"`
	CategorySlug     string    `json:"category_slug"`
}

// CreateCourseInput is the instructor-facing course payload.
type CreateCourseInput struct {
	Title         string  `json:"title" validate:"required"`
	Description   string  `json:"description"`
	InstructorID  int64   `json:"instructor_id" validate:"required,gt=0"`
	CategoryID    int64   `json:"category_id" validate:"required,gt=0"`
	ThumbnailURL  string  `json:"thumbnail_url" validate:"omitempty,url"`
	Price         float64 `json:"price" validate:"required,gt=0"`
	Level         string  `json:"level" validate:"required"`
	DurationHours float64 `json:"duration_hours" validate:"gte=0"`
}

// CreateLiveLessonInput is the instructor-facing live lesson payload.
type CreateLiveLessonInput struct {
	Title         string   `json:"title" validate:"required"`
	Description   string   `json:"description"`
	InstructorID  int64    `json:"instructor_id" validate:"required,gt=0"`
	CategoryID    int64    `json:"category_id" validate:"required,gt=0"`
	ScheduledDate string   `json:"scheduled_date" validate:"required"`
	ScheduledTime string   `json:"scheduled_time" validate:"required"`
	Timezone      string   `json:"timezone"`
	DurationHours float64  `json:"duration_hours" validate:"required,gt=0"`
	MaxStudents   int64    `json:"max_students" validate:"required,gt=0"`
	Price         float64  `json:"price" validate:"required,gt=0"`
	Level         string   `json:"level" validate:"required"`
	Topics        []string `json:"topics"`
}

// NewCourse is a validated course ready to persist.
type NewCourse struct {
	CreateCourseInput
	Slug string
}

// NewLiveLesson is a validated live lesson ready to persist.
type NewLiveLesson struct {
	CreateLiveLessonInput
	Schedule admission.Schedule
}

// Store is the persistence contract for the catalog.
type Store interface {
	ListCourses(ctx context.Context, filter CourseFilter) ([]Course, error)
	CreateCourse(ctx context.Context, course NewCourse) (Course, error)
	ListLiveLessons(ctx context.Context, filter LiveLessonFilter) ([]LiveLesson, error)
	CreateLiveLesson(ctx context.Context, lesson NewLiveLesson) (LiveLesson, error)
}

// Service applies listing defaults and input validation over a Store.
type Service struct {
	store Store
	nowFn func() time.Time
}

// NewService builds a catalog Service.
func NewService(store Store, now func() time.Time) (*Service, error) {
	if store == nil || now == nil {
		return nil, ErrInvalidServiceConfig
	}
	return &Service{store: store, nowFn: now}, nil
}

// ListCourses returns published courses matching the filter.
func (service *Service) ListCourses(ctx context.Context, filter CourseFilter) ([]Course, error) {
	filter.CategorySlug = normalizeCategory(filter.CategorySlug)
	filter.Search = strings.TrimSpace(filter.Search)
	if filter.Sort == "" {
		filter.Sort = SortPopular
	}
	filter.Page = NormalizePage(filter.Page.Limit, filter.Page.Offset)
	return service.store.ListCourses(ctx, filter)
}

// ListLiveLessons returns active lessons scheduled today or later.
func (service *Service) ListLiveLessons(ctx context.Context, filter LiveLessonFilter) ([]LiveLesson, error) {
	filter.CategorySlug = normalizeCategory(filter.CategorySlug)
	filter.Search = strings.TrimSpace(filter.Search)
	year, month, day := service.nowFn().UTC().Date()
	filter.FromDate = time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
	filter.Page = NormalizePage(filter.Page.Limit, filter.Page.Offset)
	return service.store.ListLiveLessons(ctx, filter)
}

// CreateCourse validates the input, derives the slug, and publishes the course.
func (service *Service) CreateCourse(ctx context.Context, input CreateCourseInput) (Course, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Level = strings.TrimSpace(input.Level)
	if err := inputValidator.Struct(input); err != nil {
		return Course{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	slug := Slugify(input.Title)
	if slug == "" {
		return Course{}, fmt.Errorf("%w: title produces an empty slug", ErrInvalidInput)
	}
	return service.store.CreateCourse(ctx, NewCourse{CreateCourseInput: input, Slug: slug})
}

// CreateLiveLesson validates the input, including that the schedule resolves.
func (service *Service) CreateLiveLesson(ctx context.Context, input CreateLiveLessonInput) (LiveLesson, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Level = strings.TrimSpace(input.Level)
	input.Timezone = strings.TrimSpace(input.Timezone)
	if err := inputValidator.Struct(input); err != nil {
		return LiveLesson{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	schedule := admission.Schedule{Date: input.ScheduledDate, Clock: input.ScheduledTime, Timezone: input.Timezone}
	if _, err := schedule.StartsAt(); err != nil {
		return LiveLesson{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if input.Topics == nil {
		input.Topics = []string{}
	}
	return service.store.CreateLiveLesson(ctx, NewLiveLesson{CreateLiveLessonInput: input, Schedule: schedule})
}

// Slugify lowercases the title, drops punctuation, and joins words with hyphens.
func Slugify(title string) string {
	slug := strings.ToLower(strings.TrimSpace(title))
	slug = slugDisallowedChars.ReplaceAllString(slug, "")
	slug = slugWhitespace.ReplaceAllString(slug, "-")
	slug = slugRepeatedHyphens.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// SearchPattern builds the case-insensitive LIKE pattern for a search term.
func SearchPattern(search string) string {
	return "%" + strings.ToLower(search) + "%"
}

// FormatDate renders a scheduled date column value.
func FormatDate(value time.Time) string {
	return value.Format(dateLayout)
}

func normalizeCategory(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if trimmed == categoryAll {
		return ""
	}
	return trimmed
}
