package admission

const (
	operationEnroll             = "enroll"
	operationBook               = "book"
	operationCheckoutCourse     = "checkout_course"
	operationCheckoutLiveLesson = "checkout_live_lesson"
	operationVerifyPayment      = "verify_payment"
	operationPublishEvent       = "publish_event"

	operationStatusOK       = "ok"
	operationStatusRejected = "rejected"
	operationStatusError    = "error"

	metadataKeyType         = "type"
	metadataKeyCourseID     = "courseId"
	metadataKeyLiveLessonID = "liveLessonId"
	metadataKeyStudentEmail = "studentEmail"

	defaultCurrency              = "usd"
	checkoutSessionIDPlaceholder = "{CHECKOUT_SESSION_ID}"
	courseSuccessPath            = "/course-success"
	courseCancelPath             = "/courses"
	liveLessonSuccessPath        = "/lesson-success"
	liveLessonCancelPath         = "/live-lessons"
	liveLessonLineItemPrefix     = "Live Lesson: "

	errorOperationGateway       = "gateway"
	errorSubjectCustomer        = "customer"
	errorSubjectCheckoutSession = "checkout_session"
	errorCodeCreate             = "create"
	errorCodeRetrieve           = "retrieve"
)
