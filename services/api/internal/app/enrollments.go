package app

import (
	"context"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"lmsapi/internal/util"
	"lmsapi/pkg/domain"
	"lmsapi/pkg/events"
	"lmsapi/pkg/store"
)

var errAlreadyEnrolled = conflict("Already enrolled in this course")

type EnrollInput struct {
	CourseID string `json:"courseId" validate:"required"`
}

// Enroll records uid's enrollment in a course. The course must exist and a
// user holds at most one enrollment per course.
func (a *App) Enroll(ctx context.Context, uid string, in EnrollInput) (domain.Enrollment, error) {
	if err := a.check(in, "courseId is required"); err != nil {
		return domain.Enrollment{}, err
	}

	var (
		courseExists bool
		enrolled     bool
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		_, ok, err := a.store.GetCourse(gctx, in.CourseID)
		courseExists = ok
		return err
	})
	g.Go(func() error {
		ok, err := a.store.HasEnrollment(gctx, uid, in.CourseID)
		enrolled = ok
		return err
	})
	if err := g.Wait(); err != nil {
		return domain.Enrollment{}, fmt.Errorf("enrollment preconditions: %w", err)
	}
	if !courseExists {
		return domain.Enrollment{}, errCourseNotFound
	}
	if enrolled {
		return domain.Enrollment{}, errAlreadyEnrolled
	}

	enrollment := domain.Enrollment{
		ID:         util.NewID(),
		UserID:     uid,
		CourseID:   in.CourseID,
		EnrolledAt: domain.At(a.clock()),
	}
	if err := a.store.CreateEnrollment(ctx, enrollment); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			return domain.Enrollment{}, errAlreadyEnrolled
		}
		return domain.Enrollment{}, fmt.Errorf("create enrollment: %w", err)
	}
	a.publish(ctx, events.TypeEnrollmentCreated, enrollment)
	return enrollment, nil
}

func (a *App) MyEnrollments(ctx context.Context, uid string) ([]domain.Enrollment, error) {
	enrollments, err := a.store.ListEnrollmentsByUser(ctx, uid)
	if err != nil {
		return nil, fmt.Errorf("list enrollments: %w", err)
	}
	return enrollments, nil
}

// EnrollmentStatus reports whether uid is enrolled in courseID.
type EnrollmentStatus struct {
	Enrolled bool `json:"enrolled"`
}

func (a *App) EnrollmentStatus(ctx context.Context, uid, courseID string) (EnrollmentStatus, error) {
	ok, err := a.store.HasEnrollment(ctx, uid, courseID)
	if err != nil {
		return EnrollmentStatus{}, fmt.Errorf("check enrollment: %w", err)
	}
	return EnrollmentStatus{Enrolled: ok}, nil
}
