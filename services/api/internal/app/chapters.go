package app

import (
	"context"
	"errors"
	"fmt"

	"lmsapi/internal/util"
	"lmsapi/pkg/domain"
	"lmsapi/pkg/store"
)

// ListChapters returns a course's chapters ordered by their order field.
func (a *App) ListChapters(ctx context.Context, courseID string) ([]domain.Chapter, error) {
	chapters, err := a.store.ListChapters(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list chapters: %w", err)
	}
	return chapters, nil
}

func (a *App) GetChapter(ctx context.Context, courseID, id string) (domain.Chapter, error) {
	chapter, ok, err := a.store.GetChapter(ctx, courseID, id)
	if err != nil {
		return domain.Chapter{}, fmt.Errorf("get chapter: %w", err)
	}
	if !ok {
		return domain.Chapter{}, errChapterNotFound
	}
	return chapter, nil
}

type CreateChapterInput struct {
	Title    string `json:"title" validate:"required"`
	Content  string `json:"content"`
	VideoURL string `json:"videoUrl"`
	Order    int    `json:"order"`
}

func (a *App) CreateChapter(ctx context.Context, courseID string, in CreateChapterInput) (domain.Chapter, error) {
	if err := a.check(in, "title is required"); err != nil {
		return domain.Chapter{}, err
	}
	chapter := domain.Chapter{
		ID:        util.NewID(),
		CourseID:  courseID,
		Title:     in.Title,
		Content:   in.Content,
		VideoURL:  in.VideoURL,
		Order:     in.Order,
		CreatedAt: domain.At(a.clock()),
	}
	if err := a.store.CreateChapter(ctx, chapter); err != nil {
		return domain.Chapter{}, fmt.Errorf("create chapter: %w", err)
	}
	return chapter, nil
}

type UpdateChapterInput struct {
	Title    *string `json:"title"`
	Content  *string `json:"content"`
	VideoURL *string `json:"videoUrl"`
	Order    *int    `json:"order"`
}

func (a *App) UpdateChapter(ctx context.Context, courseID, id string, in UpdateChapterInput) (domain.Chapter, error) {
	chapter, err := a.store.UpdateChapter(ctx, courseID, id, store.ChapterUpdate{
		Title:    in.Title,
		Content:  in.Content,
		VideoURL: in.VideoURL,
		Order:    in.Order,
	}, a.clock())
	if errors.Is(err, store.ErrNotFound) {
		return domain.Chapter{}, errChapterNotFound
	}
	if err != nil {
		return domain.Chapter{}, fmt.Errorf("update chapter: %w", err)
	}
	return chapter, nil
}

func (a *App) DeleteChapter(ctx context.Context, courseID, id string) (Deletion, error) {
	if err := a.store.DeleteChapter(ctx, courseID, id); err != nil {
		return Deletion{}, fmt.Errorf("delete chapter: %w", err)
	}
	return Deletion{ID: id, Deleted: true}, nil
}
