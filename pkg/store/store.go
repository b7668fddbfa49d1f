package store

import (
	"context"
	"errors"
	"strings"
	"time"

	"lmsapi/pkg/domain"
)

var (
	// ErrNotFound is returned by updates that target a missing record.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when an insert collides with a unique key.
	ErrDuplicate = errors.New("duplicate record")
)

// UserFilter narrows ListUsers. Search matches name or email, case-insensitively.
type UserFilter struct {
	Role   domain.Role
	Search string
}

// UserProfile is the identity-side view of a user used by upserts.
type UserProfile struct {
	UID         string
	Email       string
	DisplayName string
}

// UserUpdate holds optional user fields; nil means unchanged.
type UserUpdate struct {
	Name     *string
	Email    *string
	Role     *domain.Role
	IsActive *bool
}

// CourseUpdate holds optional course fields; nil means unchanged.
type CourseUpdate struct {
	Title        *string
	Description  *string
	ThumbnailURL *string
	IsPublished  *bool
}

// ChapterUpdate holds optional chapter fields; nil means unchanged.
type ChapterUpdate struct {
	Title    *string
	Content  *string
	VideoURL *string
	Order    *int
}

// QuizUpdate holds optional quiz fields; nil means unchanged.
type QuizUpdate struct {
	Title     *string
	Questions []domain.Question
}

// Store persists every LMS record. Getters return (zero, false, nil) for
// missing records; updates return ErrNotFound.
type Store interface {
	// users
	CreateUser(ctx context.Context, u domain.User) error
	GetUser(ctx context.Context, uid string) (domain.User, bool, error)
	ListUsers(ctx context.Context, filter UserFilter) ([]domain.User, error)
	UpdateUser(ctx context.Context, uid string, upd UserUpdate, now time.Time) (domain.User, error)
	// UpsertUserProfile creates a student record for p.UID, or merges email,
	// updatedAt and a non-empty display name into the existing one.
	UpsertUserProfile(ctx context.Context, p UserProfile, now time.Time) (user domain.User, created bool, err error)
	Leaderboard(ctx context.Context, limit int) ([]domain.User, error)

	// courses
	CreateCourse(ctx context.Context, c domain.Course) error
	GetCourse(ctx context.Context, id string) (domain.Course, bool, error)
	ListCourses(ctx context.Context, publishedOnly bool) ([]domain.Course, error)
	UpdateCourse(ctx context.Context, id string, upd CourseUpdate, now time.Time) (domain.Course, error)
	// DeleteCourse removes the course with its chapters and quizzes.
	DeleteCourse(ctx context.Context, id string) error

	// chapters
	CreateChapter(ctx context.Context, ch domain.Chapter) error
	GetChapter(ctx context.Context, courseID, id string) (domain.Chapter, bool, error)
	ListChapters(ctx context.Context, courseID string) ([]domain.Chapter, error)
	CountChapters(ctx context.Context, courseID string) (int, error)
	UpdateChapter(ctx context.Context, courseID, id string, upd ChapterUpdate, now time.Time) (domain.Chapter, error)
	DeleteChapter(ctx context.Context, courseID, id string) error

	// quizzes
	CreateQuiz(ctx context.Context, q domain.Quiz) error
	GetQuiz(ctx context.Context, courseID, id string) (domain.Quiz, bool, error)
	ListQuizzes(ctx context.Context, courseID string) ([]domain.Quiz, error)
	UpdateQuiz(ctx context.Context, courseID, id string, upd QuizUpdate, now time.Time) (domain.Quiz, error)
	DeleteQuiz(ctx context.Context, courseID, id string) error
	CreateQuizResult(ctx context.Context, r domain.QuizResult) error

	// enrollments
	CreateEnrollment(ctx context.Context, e domain.Enrollment) error
	HasEnrollment(ctx context.Context, userID, courseID string) (bool, error)
	ListEnrollmentsByUser(ctx context.Context, userID string) ([]domain.Enrollment, error)

	// progress
	GetProgress(ctx context.Context, userID, courseID string) (domain.Progress, bool, error)
	// CompleteChapter atomically adds chapterID to the user's completed set and
	// recomputes the percentage against totalChapters. created is true when the
	// record did not exist before.
	CompleteChapter(ctx context.Context, userID, courseID, chapterID string, totalChapters int, now time.Time) (p domain.Progress, created bool, err error)

	// chat
	AppendChatMessages(ctx context.Context, session domain.ChatSession, msgs ...domain.ChatMessage) error
	ListChatMessages(ctx context.Context, userID, sessionID string) ([]domain.ChatMessage, error)
}

// DefaultName derives a display name from the local part of an email.
func DefaultName(email string) string {
	local, _, _ := strings.Cut(email, "@")
	return local
}

func newProfileUser(p UserProfile, now time.Time) domain.User {
	name := p.DisplayName
	if name == "" {
		name = DefaultName(p.Email)
	}
	return domain.User{
		UID:       p.UID,
		Email:     p.Email,
		Name:      name,
		Role:      domain.RoleStudent,
		IsActive:  true,
		CreatedAt: domain.At(now),
		UpdatedAt: domain.At(now),
	}
}

// Percentage is round(completed / total * 100), 0 for an empty course.
func Percentage(completed, total int) int {
	if total <= 0 {
		return 0
	}
	return (completed*200 + total) / (total * 2)
}

func containsString(items []string, v string) bool {
	for _, item := range items {
		if item == v {
			return true
		}
	}
	return false
}
