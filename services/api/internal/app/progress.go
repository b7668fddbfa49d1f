package app

import (
	"context"
	"fmt"

	"lmsapi/pkg/domain"
	"lmsapi/pkg/events"
)

type CompleteChapterInput struct {
	CourseID  string `json:"courseId" validate:"required"`
	ChapterID string `json:"chapterId" validate:"required"`
}

// CompleteChapter marks a chapter completed for uid. created is true for the
// first completion in the course.
func (a *App) CompleteChapter(ctx context.Context, uid string, in CompleteChapterInput) (domain.Progress, bool, error) {
	if err := a.check(in, "courseId and chapterId are required"); err != nil {
		return domain.Progress{}, false, err
	}
	total, err := a.store.CountChapters(ctx, in.CourseID)
	if err != nil {
		return domain.Progress{}, false, fmt.Errorf("count chapters: %w", err)
	}
	progress, created, err := a.store.CompleteChapter(ctx, uid, in.CourseID, in.ChapterID, total, a.clock())
	if err != nil {
		return domain.Progress{}, false, fmt.Errorf("complete chapter: %w", err)
	}
	a.publish(ctx, events.TypeProgressUpdated, progress)
	return progress, created, nil
}

// GetProgress returns uid's progress in a course, or an empty record.
func (a *App) GetProgress(ctx context.Context, uid, courseID string) (domain.Progress, error) {
	progress, ok, err := a.store.GetProgress(ctx, uid, courseID)
	if err != nil {
		return domain.Progress{}, fmt.Errorf("get progress: %w", err)
	}
	if !ok {
		return domain.Progress{UserID: uid, CourseID: courseID, CompletedChapters: []string{}}, nil
	}
	return progress, nil
}
