// Package search finds courses by title or description.
package search

import (
	"context"
	"strings"

	"lmsapi/pkg/domain"
)

// CourseIndex keeps a searchable copy of courses.
type CourseIndex interface {
	IndexCourse(ctx context.Context, c domain.Course) error
	DeleteCourse(ctx context.Context, id string) error
	SearchCourses(ctx context.Context, query string, publishedOnly bool) ([]domain.Course, error)
}

// CourseLister is the store read used when no search backend is configured.
type CourseLister interface {
	ListCourses(ctx context.Context, publishedOnly bool) ([]domain.Course, error)
}

// StoreIndex answers searches by filtering the store listing in process.
// Index and delete are no-ops because the store is the source of truth.
type StoreIndex struct {
	courses CourseLister
}

// NewStoreIndex wraps the course store.
func NewStoreIndex(courses CourseLister) *StoreIndex {
	return &StoreIndex{courses: courses}
}

func (s *StoreIndex) IndexCourse(context.Context, domain.Course) error { return nil }
func (s *StoreIndex) DeleteCourse(context.Context, string) error       { return nil }

func (s *StoreIndex) SearchCourses(ctx context.Context, query string, publishedOnly bool) ([]domain.Course, error) {
	all, err := s.courses.ListCourses(ctx, publishedOnly)
	if err != nil {
		return nil, err
	}
	q := strings.ToLower(strings.TrimSpace(query))
	out := make([]domain.Course, 0, len(all))
	for _, c := range all {
		if q == "" || strings.Contains(strings.ToLower(c.Title), q) || strings.Contains(strings.ToLower(c.Description), q) {
			out = append(out, c)
		}
	}
	return out, nil
}
