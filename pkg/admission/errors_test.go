package admission

import (
	"errors"
	"fmt"
	"testing"
)

func TestWrapErrorFormatsAndUnwraps(test *testing.T) {
	test.Parallel()
	baseErr := errors.New("boom")
	wrapped := WrapError("gateway", "checkout_session", "create", baseErr)
	if wrapped.Error() != "gateway.checkout_session.create: boom" {
		test.Fatalf("unexpected message %q", wrapped.Error())
	}
	if !errors.Is(wrapped, baseErr) {
		test.Fatalf("expected wrapped error to unwrap to base")
	}
	if WrapError("a", "b", "c", nil) != nil {
		test.Fatalf("expected nil for nil error")
	}
}

func TestIsRejection(test *testing.T) {
	test.Parallel()
	if !IsRejection(fmt.Errorf("%w: detail", ErrLiveLessonFull)) {
		test.Fatalf("expected full lesson to be a rejection")
	}
	if !IsRejection(ErrDuplicateAdmission) {
		test.Fatalf("expected duplicate admission to be a rejection")
	}
	for _, err := range []error{ErrInvalidSchedule, ErrGatewayNotConfigured, errors.New("io"), nil} {
		if IsRejection(err) {
			test.Fatalf("expected %v not to be a rejection", err)
		}
	}
}
