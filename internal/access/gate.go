package access

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"lmsapi/pkg/domain"
)

var (
	ErrUnauthenticated  = errors.New("Authentication required")
	ErrForbidden        = errors.New("Insufficient permissions")
	ErrCourseIDRequired = errors.New("courseId is required")
	ErrNotEnrolled      = errors.New("You must be enrolled in this course")
)

// EnrollmentChecker is the store query behind the enrollment gate.
type EnrollmentChecker interface {
	HasEnrollment(ctx context.Context, userID, courseID string) (bool, error)
}

// RequireRole passes when an identity is attached and its role is in allowed.
func RequireRole(ctx context.Context, allowed ...domain.Role) (Identity, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	for _, role := range allowed {
		if id.Role == role {
			return id, nil
		}
	}
	return id, ErrForbidden
}

// CheckEnrollment passes admins unconditionally and otherwise requires an
// enrollment for (caller, courseID). Store errors are returned wrapped so the
// caller fails closed.
func CheckEnrollment(ctx context.Context, enrollments EnrollmentChecker, courseID string) (Identity, error) {
	id, ok := IdentityFromContext(ctx)
	if !ok {
		return Identity{}, ErrUnauthenticated
	}
	if id.IsAdmin() {
		return id, nil
	}
	if strings.TrimSpace(courseID) == "" {
		return id, ErrCourseIDRequired
	}
	enrolled, err := enrollments.HasEnrollment(ctx, id.UID, courseID)
	if err != nil {
		return id, fmt.Errorf("check enrollment: %w", err)
	}
	if !enrolled {
		return id, ErrNotEnrolled
	}
	return id, nil
}
