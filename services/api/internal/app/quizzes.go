package app

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"

	"lmsapi/internal/util"
	"lmsapi/pkg/domain"
	"lmsapi/pkg/events"
	"lmsapi/pkg/store"
)

// quizView hides correct answers from everyone but admins.
func quizView(q domain.Quiz, admin bool) any {
	if admin {
		return q
	}
	return q.Public()
}

// ListQuizzes returns a course's quizzes as the caller may see them.
func (a *App) ListQuizzes(ctx context.Context, courseID string, admin bool) ([]any, error) {
	quizzes, err := a.store.ListQuizzes(ctx, courseID)
	if err != nil {
		return nil, fmt.Errorf("list quizzes: %w", err)
	}
	out := make([]any, 0, len(quizzes))
	for _, q := range quizzes {
		out = append(out, quizView(q, admin))
	}
	return out, nil
}

func (a *App) GetQuiz(ctx context.Context, courseID, id string, admin bool) (any, error) {
	quiz, ok, err := a.store.GetQuiz(ctx, courseID, id)
	if err != nil {
		return nil, fmt.Errorf("get quiz: %w", err)
	}
	if !ok {
		return nil, errQuizNotFound
	}
	return quizView(quiz, admin), nil
}

type CreateQuizInput struct {
	Title     string            `json:"title" validate:"required"`
	Questions []domain.Question `json:"questions" validate:"required"`
}

func (a *App) CreateQuiz(ctx context.Context, courseID string, in CreateQuizInput) (domain.Quiz, error) {
	if err := a.check(in, "title and questions array are required"); err != nil {
		return domain.Quiz{}, err
	}
	now := domain.At(a.clock())
	quiz := domain.Quiz{
		ID:        util.NewID(),
		CourseID:  courseID,
		Title:     in.Title,
		Questions: in.Questions,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := a.store.CreateQuiz(ctx, quiz); err != nil {
		return domain.Quiz{}, fmt.Errorf("create quiz: %w", err)
	}
	return quiz, nil
}

type UpdateQuizInput struct {
	Title     *string           `json:"title"`
	Questions []domain.Question `json:"questions"`
}

func (a *App) UpdateQuiz(ctx context.Context, courseID, id string, in UpdateQuizInput) (domain.Quiz, error) {
	quiz, err := a.store.UpdateQuiz(ctx, courseID, id, store.QuizUpdate{
		Title:     in.Title,
		Questions: in.Questions,
	}, a.clock())
	if errors.Is(err, store.ErrNotFound) {
		return domain.Quiz{}, errQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, fmt.Errorf("update quiz: %w", err)
	}
	return quiz, nil
}

func (a *App) DeleteQuiz(ctx context.Context, courseID, id string) (Deletion, error) {
	if err := a.store.DeleteQuiz(ctx, courseID, id); err != nil {
		return Deletion{}, fmt.Errorf("delete quiz: %w", err)
	}
	return Deletion{ID: id, Deleted: true}, nil
}

type SubmitQuizInput struct {
	Answers Answers `json:"answers" validate:"required"`
}

var (
	errAnswersRequired = badRequest("answers array is required")
	errAnswersNotInts  = badRequest("answers must be an array of integers")
)

// Answers holds the chosen option index per question. Decoding fails on
// anything but an array of integers, so a mistyped answer is never scored.
type Answers []int

func (a *Answers) UnmarshalJSON(data []byte) error {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return errAnswersRequired
	}
	if raw == nil {
		*a = nil
		return nil
	}
	out := make(Answers, 0, len(raw))
	for _, item := range raw {
		n, err := strconv.Atoi(strings.TrimSpace(string(item)))
		if err != nil {
			return errAnswersNotInts
		}
		out = append(out, n)
	}
	*a = out
	return nil
}

// SubmitQuiz scores the answers against the quiz and appends a result. The
// echoed record has a null submittedAt.
func (a *App) SubmitQuiz(ctx context.Context, uid, courseID, quizID string, in SubmitQuizInput) (domain.QuizResult, error) {
	if err := a.check(in, "answers array is required"); err != nil {
		return domain.QuizResult{}, err
	}
	quiz, ok, err := a.store.GetQuiz(ctx, courseID, quizID)
	if err != nil {
		return domain.QuizResult{}, fmt.Errorf("get quiz: %w", err)
	}
	if !ok {
		return domain.QuizResult{}, errQuizNotFound
	}
	total := len(quiz.Questions)
	if len(in.Answers) != total {
		return domain.QuizResult{}, badRequestf("Expected %d answers, got %d", total, len(in.Answers))
	}
	correct := 0
	for i, q := range quiz.Questions {
		if q.CorrectAnswer == in.Answers[i] {
			correct++
		}
	}
	result := domain.QuizResult{
		ID:             util.NewID(),
		UserID:         uid,
		CourseID:       courseID,
		QuizID:         quizID,
		Answers:        in.Answers,
		Score:          store.Percentage(correct, total),
		CorrectCount:   correct,
		TotalQuestions: total,
		SubmittedAt:    domain.At(a.clock()),
	}
	if err := a.store.CreateQuizResult(ctx, result); err != nil {
		return domain.QuizResult{}, fmt.Errorf("save quiz result: %w", err)
	}
	a.publish(ctx, events.TypeQuizSubmitted, result)
	result.SubmittedAt = domain.Timestamp{}
	return result, nil
}
