package httpapi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/MarkoPoloResearchLab/academy/internal/catalog"
	"github.com/MarkoPoloResearchLab/academy/internal/dashboard"
	"github.com/MarkoPoloResearchLab/academy/internal/logging"
	"github.com/MarkoPoloResearchLab/academy/pkg/admission"
	"github.com/gin-gonic/gin"
	"github.com/tyemirov/tauth/pkg/sessionvalidator"
	"go.uber.org/zap"
)

var ErrInvalidHandlerConfig = errors.New("invalid http handler config")

// AdmissionService is the enrollment, booking, and payment core.
type AdmissionService interface {
	EnrollCourse(ctx context.Context, courseID admission.CourseID, student admission.Student) (admission.Enrollment, error)
	BookLiveLesson(ctx context.Context, liveLessonID admission.LiveLessonID, student admission.Student) (admission.Booking, error)
	CheckoutCourse(ctx context.Context, courseID admission.CourseID, request admission.CheckoutRequest) (admission.Checkout, error)
	CheckoutLiveLesson(ctx context.Context, liveLessonID admission.LiveLessonID, request admission.CheckoutRequest) (admission.Checkout, error)
	VerifyPayment(ctx context.Context, sessionID string, student admission.Student) (admission.Reconciliation, error)
}

// CatalogService lists and creates courses and live lessons.
type CatalogService interface {
	ListCourses(ctx context.Context, filter catalog.CourseFilter) ([]catalog.Course, error)
	CreateCourse(ctx context.Context, input catalog.CreateCourseInput) (catalog.Course, error)
	ListLiveLessons(ctx context.Context, filter catalog.LiveLessonFilter) ([]catalog.LiveLesson, error)
	CreateLiveLesson(ctx context.Context, input catalog.CreateLiveLessonInput) (catalog.LiveLesson, error)
}

// DashboardService builds a student's dashboard.
type DashboardService interface {
	Build(ctx context.Context, email admission.StudentEmail) (dashboard.Dashboard, error)
}

// Handler serves the API routes.
type Handler struct {
	admissions AdmissionService
	catalog    CatalogService
	dashboards DashboardService
	logger     *zap.Logger
	timeout    time.Duration
}

// NewHandler builds a Handler; every service is required.
func NewHandler(admissions AdmissionService, catalogService CatalogService, dashboards DashboardService, logger *zap.Logger, timeout time.Duration) (*Handler, error) {
	if admissions == nil || catalogService == nil || dashboards == nil {
		return nil, ErrInvalidHandlerConfig
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if timeout <= 0 {
		timeout = defaultRequestTimeout
	}
	return &Handler{
		admissions: admissions,
		catalog:    catalogService,
		dashboards: dashboards,
		logger:     logger,
		timeout:    timeout,
	}, nil
}

// entityID accepts a JSON number or a numeric string.
type entityID int64

func (id *entityID) UnmarshalJSON(data []byte) error {
	trimmed := bytes.Trim(bytes.TrimSpace(data), `"`)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		*id = 0
		return nil
	}
	value, err := strconv.ParseInt(string(trimmed), 10, 64)
	if err != nil {
		return fmt.Errorf("id %s is not an integer", string(data))
	}
	*id = entityID(value)
	return nil
}

type enrollRequest struct {
	CourseID     entityID `json:"course_id"`
	StudentEmail string   `json:"student_email"`
}

type bookRequest struct {
	LiveLessonID entityID `json:"live_lesson_id"`
	StudentEmail string   `json:"student_email"`
	StudentName  string   `json:"student_name"`
}

type courseCheckoutRequest struct {
	CourseID    entityID `json:"courseId"`
	RedirectURL string   `json:"redirectURL"`
}

type liveLessonCheckoutRequest struct {
	LiveLessonID entityID `json:"liveLessonId"`
	RedirectURL  string   `json:"redirectURL"`
}

type verifyPaymentRequest struct {
	SessionID string `json:"sessionId"`
}

type enrollmentPayload struct {
	ID           int64      `json:"id"`
	CourseID     int64      `json:"course_id"`
	StudentEmail string     `json:"student_email"`
	Progress     int        `json:"progress"`
	EnrolledAt   time.Time  `json:"enrolled_at"`
	CompletedAt  *time.Time `json:"completed_at"`
}

type bookingPayload struct {
	ID           int64     `json:"id"`
	LiveLessonID int64     `json:"live_lesson_id"`
	StudentEmail string    `json:"student_email"`
	StudentName  string    `json:"student_name"`
	BookingDate  time.Time `json:"booking_date"`
	Attended     bool      `json:"attended"`
}

func (handler *Handler) handleEnroll(ctx *gin.Context) {
	var request enrollRequest
	if err := ctx.ShouldBindJSON(&request); err != nil || request.CourseID == 0 || strings.TrimSpace(request.StudentEmail) == "" {
		handler.respondError(ctx, invalidRequest(messageMissingFields), err)
		return
	}
	courseID, err := admission.NewCourseID(int64(request.CourseID))
	if err != nil {
		handler.respondError(ctx, classifyError(err, admission.KindCourseEnrollment, internalFailure()), err)
		return
	}
	student, err := admission.NewStudent(request.StudentEmail, "")
	if err != nil {
		handler.respondError(ctx, classifyError(err, admission.KindCourseEnrollment, internalFailure()), err)
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.timeout)
	defer cancel()
	enrollment, err := handler.admissions.EnrollCourse(requestCtx, courseID, student)
	if err != nil {
		handler.respondError(ctx, classifyError(err, admission.KindCourseEnrollment, internalFailure()), err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"enrollment": enrollmentPayload{
			ID:           enrollment.ID,
			CourseID:     enrollment.CourseID.Int64(),
			StudentEmail: enrollment.StudentEmail.String(),
			Progress:     enrollment.Progress,
			EnrolledAt:   enrollment.EnrolledAt,
			CompletedAt:  enrollment.CompletedAt,
		},
		"message": "Successfully enrolled in the course!",
	})
}

func (handler *Handler) handleBook(ctx *gin.Context) {
	var request bookRequest
	err := ctx.ShouldBindJSON(&request)
	if err != nil || request.LiveLessonID == 0 || strings.TrimSpace(request.StudentEmail) == "" || strings.TrimSpace(request.StudentName) == "" {
		handler.respondError(ctx, invalidRequest(messageMissingFields), err)
		return
	}
	liveLessonID, err := admission.NewLiveLessonID(int64(request.LiveLessonID))
	if err != nil {
		handler.respondError(ctx, classifyError(err, admission.KindLiveLessonBooking, internalFailure()), err)
		return
	}
	student, err := admission.NewStudent(request.StudentEmail, request.StudentName)
	if err != nil {
		handler.respondError(ctx, classifyError(err, admission.KindLiveLessonBooking, internalFailure()), err)
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.timeout)
	defer cancel()
	booking, err := handler.admissions.BookLiveLesson(requestCtx, liveLessonID, student)
	if err != nil {
		handler.respondError(ctx, classifyError(err, admission.KindLiveLessonBooking, internalFailure()), err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{
		"success": true,
		"booking": bookingPayload{
			ID:           booking.ID,
			LiveLessonID: booking.LiveLessonID.Int64(),
			StudentEmail: booking.StudentEmail.String(),
			StudentName:  booking.StudentName.String(),
			BookingDate:  booking.BookingDate,
			Attended:     booking.Attended,
		},
		"message": "Successfully booked for the live lesson!",
	})
}

func (handler *Handler) handleCourseCheckout(ctx *gin.Context) {
	student, ok := studentFromClaims(ctx)
	if !ok {
		handler.respondError(ctx, unauthorized(), nil)
		return
	}
	var request courseCheckoutRequest
	if err := ctx.ShouldBindJSON(&request); err != nil || request.CourseID == 0 {
		handler.respondError(ctx, invalidRequest("Course ID is required"), err)
		return
	}
	courseID, err := admission.NewCourseID(int64(request.CourseID))
	if err != nil {
		handler.respondError(ctx, classifyError(err, admission.KindCourseEnrollment, paymentProcessingFailure()), err)
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.timeout)
	defer cancel()
	checkout, err := handler.admissions.CheckoutCourse(requestCtx, courseID, admission.CheckoutRequest{
		Student:         student,
		RedirectBaseURL: request.RedirectURL,
	})
	if err != nil {
		handler.respondError(ctx, classifyError(err, admission.KindCourseEnrollment, paymentProcessingFailure()), err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"url": checkout.URL})
}

func (handler *Handler) handleLiveLessonCheckout(ctx *gin.Context) {
	student, ok := studentFromClaims(ctx)
	if !ok {
		handler.respondError(ctx, unauthorized(), nil)
		return
	}
	var request liveLessonCheckoutRequest
	if err := ctx.ShouldBindJSON(&request); err != nil || request.LiveLessonID == 0 {
		handler.respondError(ctx, invalidRequest("Live lesson ID is required"), err)
		return
	}
	liveLessonID, err := admission.NewLiveLessonID(int64(request.LiveLessonID))
	if err != nil {
		handler.respondError(ctx, classifyError(err, admission.KindLiveLessonBooking, paymentProcessingFailure()), err)
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.timeout)
	defer cancel()
	checkout, err := handler.admissions.CheckoutLiveLesson(requestCtx, liveLessonID, admission.CheckoutRequest{
		Student:         student,
		RedirectBaseURL: request.RedirectURL,
	})
	if err != nil {
		handler.respondError(ctx, classifyError(err, admission.KindLiveLessonBooking, paymentProcessingFailure()), err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"url": checkout.URL})
}

func (handler *Handler) handleVerifyPayment(ctx *gin.Context) {
	student, ok := studentFromClaims(ctx)
	if !ok {
		handler.respondError(ctx, unauthorized(), nil)
		return
	}
	var request verifyPaymentRequest
	if err := ctx.ShouldBindJSON(&request); err != nil || strings.TrimSpace(request.SessionID) == "" {
		handler.respondError(ctx, invalidRequest("Session ID is required"), err)
		return
	}

	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.timeout)
	defer cancel()
	reconciliation, err := handler.admissions.VerifyPayment(requestCtx, request.SessionID, student)
	if err != nil {
		handler.respondError(ctx, classifyError(err, reconciliation.Kind, paymentVerificationFailure()), err)
		return
	}
	response := gin.H{
		"success": true,
		"type":    reconciliation.Kind.String(),
		"created": reconciliation.Created,
	}
	if reconciliation.Kind == admission.KindLiveLessonBooking {
		response["liveLessonId"] = reconciliation.LiveLessonID.Int64()
	} else {
		response["courseId"] = reconciliation.CourseID.Int64()
	}
	ctx.JSON(http.StatusOK, response)
}

func (handler *Handler) handleListCourses(ctx *gin.Context) {
	limit, offset := pageQuery(ctx)
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.timeout)
	defer cancel()
	courses, err := handler.catalog.ListCourses(requestCtx, catalog.CourseFilter{
		CategorySlug: ctx.Query("category"),
		Search:       ctx.Query("search"),
		Sort:         catalog.ParseSortOrder(ctx.Query("sortBy")),
		Page:         catalog.NormalizePage(limit, offset),
	})
	if err != nil {
		handler.respondError(ctx, apiError{status: http.StatusInternalServerError, code: codeInternalError, message: "Failed to fetch courses"}, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "courses": courses, "total": len(courses)})
}

func (handler *Handler) handleCreateCourse(ctx *gin.Context) {
	var input catalog.CreateCourseInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		handler.respondError(ctx, invalidRequest(messageMissingFields), err)
		return
	}
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.timeout)
	defer cancel()
	course, err := handler.catalog.CreateCourse(requestCtx, input)
	if err != nil {
		fallback := apiError{status: http.StatusInternalServerError, code: codeInternalError, message: "Failed to create course"}
		handler.respondError(ctx, classifyError(err, "", fallback), err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "course": course})
}

func (handler *Handler) handleListLiveLessons(ctx *gin.Context) {
	limit, offset := pageQuery(ctx)
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.timeout)
	defer cancel()
	lessons, err := handler.catalog.ListLiveLessons(requestCtx, catalog.LiveLessonFilter{
		CategorySlug: ctx.Query("category"),
		Search:       ctx.Query("search"),
		TimeSlot:     catalog.ParseTimeSlot(ctx.Query("timeSlot")),
		Page:         catalog.NormalizePage(limit, offset),
	})
	if err != nil {
		handler.respondError(ctx, apiError{status: http.StatusInternalServerError, code: codeInternalError, message: "Failed to fetch live lessons"}, err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "lessons": lessons, "total": len(lessons)})
}

func (handler *Handler) handleCreateLiveLesson(ctx *gin.Context) {
	var input catalog.CreateLiveLessonInput
	if err := ctx.ShouldBindJSON(&input); err != nil {
		handler.respondError(ctx, invalidRequest(messageMissingFields), err)
		return
	}
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.timeout)
	defer cancel()
	lesson, err := handler.catalog.CreateLiveLesson(requestCtx, input)
	if err != nil {
		fallback := apiError{status: http.StatusInternalServerError, code: codeInternalError, message: "Failed to create live lesson"}
		handler.respondError(ctx, classifyError(err, "", fallback), err)
		return
	}
	ctx.JSON(http.StatusOK, gin.H{"success": true, "lesson": lesson})
}

func (handler *Handler) handleDashboard(ctx *gin.Context) {
	student, ok := studentFromClaims(ctx)
	if !ok {
		handler.respondError(ctx, unauthorized(), nil)
		return
	}
	requestCtx, cancel := context.WithTimeout(ctx.Request.Context(), handler.timeout)
	defer cancel()
	result, err := handler.dashboards.Build(requestCtx, student.Email)
	if err != nil {
		handler.respondError(ctx, apiError{status: http.StatusInternalServerError, code: codeInternalError, message: "Failed to fetch dashboard data"}, err)
		return
	}
	ctx.JSON(http.StatusOK, result)
}

func (handler *Handler) respondError(ctx *gin.Context, failure apiError, cause error) {
	if cause != nil {
		_ = ctx.Error(cause)
	}
	if failure.isServerError() {
		handler.logger.Error("request failed",
			zap.String("request_id", logging.RequestID(ctx)),
			zap.String("path", ctx.FullPath()),
			zap.String("code", failure.code),
			zap.Error(cause),
		)
	}
	ctx.AbortWithStatusJSON(failure.status, errorResponse(failure))
}

func studentFromClaims(ctx *gin.Context) (admission.Student, bool) {
	claims := getClaims(ctx)
	if claims == nil {
		return admission.Student{}, false
	}
	student, err := admission.NewStudent(claims.GetUserEmail(), claims.GetUserDisplayName())
	if err != nil {
		return admission.Student{}, false
	}
	return student, true
}

func getClaims(ctx *gin.Context) *sessionvalidator.Claims {
	claimsValue, ok := ctx.Get(claimsContextKey)
	if !ok {
		return nil
	}
	claims, _ := claimsValue.(*sessionvalidator.Claims)
	return claims
}

func pageQuery(ctx *gin.Context) (int, int) {
	limit, _ := strconv.Atoi(ctx.Query("limit"))
	offset, _ := strconv.Atoi(ctx.Query("offset"))
	return limit, offset
}
