package app

import (
	"context"
	"errors"
	"fmt"

	"lmsapi/internal/util"
	"lmsapi/pkg/domain"
	"lmsapi/pkg/store"
)

// ListCourses returns every course to admins and published courses to everyone else.
func (a *App) ListCourses(ctx context.Context, admin bool) ([]domain.Course, error) {
	courses, err := a.store.ListCourses(ctx, !admin)
	if err != nil {
		return nil, fmt.Errorf("list courses: %w", err)
	}
	return courses, nil
}

// SearchCourses matches title or description with the same visibility rule as ListCourses.
func (a *App) SearchCourses(ctx context.Context, query string, admin bool) ([]domain.Course, error) {
	courses, err := a.search.SearchCourses(ctx, query, !admin)
	if err != nil {
		return nil, fmt.Errorf("search courses: %w", err)
	}
	return courses, nil
}

func (a *App) GetCourse(ctx context.Context, id string) (domain.Course, error) {
	course, ok, err := a.store.GetCourse(ctx, id)
	if err != nil {
		return domain.Course{}, fmt.Errorf("get course: %w", err)
	}
	if !ok {
		return domain.Course{}, errCourseNotFound
	}
	return course, nil
}

type CreateCourseInput struct {
	Title        string `json:"title" validate:"required"`
	Description  string `json:"description"`
	ThumbnailURL string `json:"thumbnailUrl"`
	IsPublished  bool   `json:"isPublished"`
}

func (a *App) CreateCourse(ctx context.Context, in CreateCourseInput) (domain.Course, error) {
	if err := a.check(in, "title is required"); err != nil {
		return domain.Course{}, err
	}
	now := domain.At(a.clock())
	course := domain.Course{
		ID:           util.NewID(),
		Title:        in.Title,
		Description:  in.Description,
		ThumbnailURL: in.ThumbnailURL,
		IsPublished:  in.IsPublished,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	if err := a.store.CreateCourse(ctx, course); err != nil {
		return domain.Course{}, fmt.Errorf("create course: %w", err)
	}
	a.indexCourse(ctx, course)
	return course, nil
}

type UpdateCourseInput struct {
	Title        *string `json:"title"`
	Description  *string `json:"description"`
	ThumbnailURL *string `json:"thumbnailUrl"`
	IsPublished  *bool   `json:"isPublished"`
}

func (a *App) UpdateCourse(ctx context.Context, id string, in UpdateCourseInput) (domain.Course, error) {
	course, err := a.store.UpdateCourse(ctx, id, store.CourseUpdate{
		Title:        in.Title,
		Description:  in.Description,
		ThumbnailURL: in.ThumbnailURL,
		IsPublished:  in.IsPublished,
	}, a.clock())
	if errors.Is(err, store.ErrNotFound) {
		return domain.Course{}, errCourseNotFound
	}
	if err != nil {
		return domain.Course{}, fmt.Errorf("update course: %w", err)
	}
	a.indexCourse(ctx, course)
	return course, nil
}

// Deletion echoes a removed record id.
type Deletion struct {
	ID      string `json:"id"`
	Deleted bool   `json:"deleted"`
}

// DeleteCourse removes the course with its chapters and quizzes. Deleting a
// missing course succeeds.
func (a *App) DeleteCourse(ctx context.Context, id string) (Deletion, error) {
	if err := a.store.DeleteCourse(ctx, id); err != nil {
		return Deletion{}, fmt.Errorf("delete course: %w", err)
	}
	if err := a.search.DeleteCourse(ctx, id); err != nil {
		logger(ctx).Warn("course unindex failed", "course_id", id, "err", err)
	}
	return Deletion{ID: id, Deleted: true}, nil
}

func (a *App) indexCourse(ctx context.Context, course domain.Course) {
	if err := a.search.IndexCourse(ctx, course); err != nil {
		logger(ctx).Warn("course index failed", "course_id", course.ID, "err", err)
	}
}
