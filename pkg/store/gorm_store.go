package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
	"lmsapi/pkg/domain"
)

const migrateLockID int64 = 51720417

// errProgressRace signals that a concurrent request created the progress row first.
var errProgressRace = errors.New("progress row created concurrently")

// GormStore implements Store using GORM + Postgres.
type GormStore struct {
	db *gorm.DB
}

var _ Store = (*GormStore)(nil)

// NewGormStore opens the DB and runs auto-migrations under an advisory lock.
func NewGormStore(dsn string) (*GormStore, error) {
	gormLog := gormlogger.New(
		log.New(os.Stdout, "\r\n", log.LstdFlags),
		gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
			Colorful:                  false,
		},
	)
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{Logger: gormLog, TranslateError: true})
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if err := withMigrationLock(db, func(tx *gorm.DB) error {
		if err := tx.AutoMigrate(
			&UserModel{},
			&CourseModel{},
			&ChapterModel{},
			&QuizModel{},
			&QuizResultModel{},
			&EnrollmentModel{},
			&ProgressModel{},
			&ChatSessionModel{},
			&ChatMessageModel{},
		); err != nil {
			return fmt.Errorf("auto migrate: %w", err)
		}
		return nil
	}); err != nil {
		return nil, err
	}
	return &GormStore{db: db}, nil
}

// DB exposes the connection so sibling stores can share the pool.
func (s *GormStore) DB() *gorm.DB {
	return s.db
}

// Close releases the connection pool.
func (s *GormStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func withMigrationLock(db *gorm.DB, fn func(*gorm.DB) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	sqlDB, err := db.DB()
	if err != nil {
		return fmt.Errorf("get sql db: %w", err)
	}
	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return fmt.Errorf("open sql conn: %w", err)
	}
	defer conn.Close()
	if err := execAdvisory(ctx, conn, "SELECT pg_advisory_lock($1)", migrateLockID); err != nil {
		return fmt.Errorf("acquire migrate lock: %w", err)
	}
	defer func() {
		_ = execAdvisory(ctx, conn, "SELECT pg_advisory_unlock($1)", migrateLockID)
	}()
	return fn(db)
}

func execAdvisory(ctx context.Context, conn *sql.Conn, query string, lockID int64) error {
	_, err := conn.ExecContext(ctx, query, lockID)
	return err
}

func translate(err error) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return ErrDuplicate
	}
	return err
}

// first loads one row into dst. Missing rows are (false, nil).
func first(tx *gorm.DB, dst any, query string, args ...any) (bool, error) {
	if err := tx.Where(query, args...).First(dst).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// patch applies updates to the row matching query and reloads it into dst.
func (s *GormStore) patch(ctx context.Context, dst any, updates map[string]any, query string, args ...any) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(dst).Where(query, args...).Updates(updates)
		if res.Error != nil {
			return translate(res.Error)
		}
		if res.RowsAffected == 0 {
			return ErrNotFound
		}
		return tx.Where(query, args...).First(dst).Error
	})
}

// users

// CreateUser inserts a new user; an existing uid yields ErrDuplicate.
func (s *GormStore) CreateUser(ctx context.Context, u domain.User) error {
	model := userToModel(u)
	return translate(s.db.WithContext(ctx).Create(&model).Error)
}

// GetUser returns a user by uid.
func (s *GormStore) GetUser(ctx context.Context, uid string) (domain.User, bool, error) {
	var model UserModel
	ok, err := first(s.db.WithContext(ctx), &model, "uid = ?", uid)
	if err != nil || !ok {
		return domain.User{}, false, err
	}
	return userFromModel(model), true, nil
}

// ListUsers returns users matching the filter ordered by creation.
func (s *GormStore) ListUsers(ctx context.Context, filter UserFilter) ([]domain.User, error) {
	q := s.db.WithContext(ctx).Model(&UserModel{})
	if filter.Role != "" {
		q = q.Where("role = ?", string(filter.Role))
	}
	if search := strings.ToLower(strings.TrimSpace(filter.Search)); search != "" {
		like := "%" + escapeLike(search) + "%"
		q = q.Where("(LOWER(name) LIKE ? OR LOWER(email) LIKE ?)", like, like)
	}
	var models []UserModel
	if err := q.Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(models))
	for _, m := range models {
		users = append(users, userFromModel(m))
	}
	return users, nil
}

// UpdateUser applies the non-nil fields of upd.
func (s *GormStore) UpdateUser(ctx context.Context, uid string, upd UserUpdate, now time.Time) (domain.User, error) {
	updates := map[string]any{"updated_at": now.UTC()}
	if upd.Name != nil {
		updates["name"] = *upd.Name
	}
	if upd.Email != nil {
		updates["email"] = *upd.Email
	}
	if upd.Role != nil {
		updates["role"] = string(*upd.Role)
	}
	if upd.IsActive != nil {
		updates["is_active"] = *upd.IsActive
	}
	var model UserModel
	if err := s.patch(ctx, &model, updates, "uid = ?", uid); err != nil {
		return domain.User{}, err
	}
	return userFromModel(model), nil
}

// UpsertUserProfile inserts or merges a profile in one statement pair inside a transaction.
func (s *GormStore) UpsertUserProfile(ctx context.Context, p UserProfile, now time.Time) (domain.User, bool, error) {
	var (
		model   UserModel
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		insert := userToModel(newProfileUser(p, now))
		res := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "uid"}},
			DoNothing: true,
		}).Create(&insert)
		if res.Error != nil {
			return res.Error
		}
		created = res.RowsAffected == 1
		if !created {
			updates := map[string]any{"email": p.Email, "updated_at": now.UTC()}
			if p.DisplayName != "" {
				updates["name"] = p.DisplayName
			}
			if err := tx.Model(&UserModel{}).Where("uid = ?", p.UID).Updates(updates).Error; err != nil {
				return err
			}
		}
		return tx.Where("uid = ?", p.UID).First(&model).Error
	})
	if err != nil {
		return domain.User{}, false, err
	}
	return userFromModel(model), created, nil
}

// Leaderboard returns users by total points, highest first. limit <= 0 means all.
func (s *GormStore) Leaderboard(ctx context.Context, limit int) ([]domain.User, error) {
	q := s.db.WithContext(ctx).Order("total_points DESC").Order("created_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	var models []UserModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	users := make([]domain.User, 0, len(models))
	for _, m := range models {
		users = append(users, userFromModel(m))
	}
	return users, nil
}

// courses

// CreateCourse inserts a course.
func (s *GormStore) CreateCourse(ctx context.Context, c domain.Course) error {
	model := courseToModel(c)
	return translate(s.db.WithContext(ctx).Create(&model).Error)
}

// GetCourse returns a course by id.
func (s *GormStore) GetCourse(ctx context.Context, id string) (domain.Course, bool, error) {
	var model CourseModel
	ok, err := first(s.db.WithContext(ctx), &model, "id = ?", id)
	if err != nil || !ok {
		return domain.Course{}, false, err
	}
	return courseFromModel(model), true, nil
}

// ListCourses returns courses ordered by creation, optionally only published ones.
func (s *GormStore) ListCourses(ctx context.Context, publishedOnly bool) ([]domain.Course, error) {
	q := s.db.WithContext(ctx).Order("created_at ASC")
	if publishedOnly {
		q = q.Where("is_published = ?", true)
	}
	var models []CourseModel
	if err := q.Find(&models).Error; err != nil {
		return nil, err
	}
	courses := make([]domain.Course, 0, len(models))
	for _, m := range models {
		courses = append(courses, courseFromModel(m))
	}
	return courses, nil
}

// UpdateCourse applies the non-nil fields of upd.
func (s *GormStore) UpdateCourse(ctx context.Context, id string, upd CourseUpdate, now time.Time) (domain.Course, error) {
	updates := map[string]any{"updated_at": now.UTC()}
	if upd.Title != nil {
		updates["title"] = *upd.Title
	}
	if upd.Description != nil {
		updates["description"] = *upd.Description
	}
	if upd.ThumbnailURL != nil {
		updates["thumbnail_url"] = *upd.ThumbnailURL
	}
	if upd.IsPublished != nil {
		updates["is_published"] = *upd.IsPublished
	}
	var model CourseModel
	if err := s.patch(ctx, &model, updates, "id = ?", id); err != nil {
		return domain.Course{}, err
	}
	return courseFromModel(model), nil
}

// DeleteCourse removes the course and its chapters and quizzes.
func (s *GormStore) DeleteCourse(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(&ChapterModel{}, "course_id = ?", id).Error; err != nil {
			return err
		}
		if err := tx.Delete(&QuizModel{}, "course_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Delete(&CourseModel{}, "id = ?", id).Error
	})
}

// chapters

// CreateChapter inserts a chapter.
func (s *GormStore) CreateChapter(ctx context.Context, ch domain.Chapter) error {
	model := chapterToModel(ch)
	return translate(s.db.WithContext(ctx).Create(&model).Error)
}

// GetChapter returns one chapter of a course.
func (s *GormStore) GetChapter(ctx context.Context, courseID, id string) (domain.Chapter, bool, error) {
	var model ChapterModel
	ok, err := first(s.db.WithContext(ctx), &model, "id = ? AND course_id = ?", id, courseID)
	if err != nil || !ok {
		return domain.Chapter{}, false, err
	}
	return chapterFromModel(model), true, nil
}

// ListChapters returns a course's chapters by ascending order.
func (s *GormStore) ListChapters(ctx context.Context, courseID string) ([]domain.Chapter, error) {
	var models []ChapterModel
	if err := s.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Order("sort_order ASC").
		Order("created_at ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	chapters := make([]domain.Chapter, 0, len(models))
	for _, m := range models {
		chapters = append(chapters, chapterFromModel(m))
	}
	return chapters, nil
}

// CountChapters returns how many chapters a course has.
func (s *GormStore) CountChapters(ctx context.Context, courseID string) (int, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&ChapterModel{}).Where("course_id = ?", courseID).Count(&count).Error; err != nil {
		return 0, err
	}
	return int(count), nil
}

// UpdateChapter applies the non-nil fields of upd.
func (s *GormStore) UpdateChapter(ctx context.Context, courseID, id string, upd ChapterUpdate, now time.Time) (domain.Chapter, error) {
	updates := map[string]any{"updated_at": now.UTC()}
	if upd.Title != nil {
		updates["title"] = *upd.Title
	}
	if upd.Content != nil {
		updates["content"] = *upd.Content
	}
	if upd.VideoURL != nil {
		updates["video_url"] = *upd.VideoURL
	}
	if upd.Order != nil {
		updates["sort_order"] = *upd.Order
	}
	var model ChapterModel
	if err := s.patch(ctx, &model, updates, "id = ? AND course_id = ?", id, courseID); err != nil {
		return domain.Chapter{}, err
	}
	return chapterFromModel(model), nil
}

// DeleteChapter removes one chapter.
func (s *GormStore) DeleteChapter(ctx context.Context, courseID, id string) error {
	return s.db.WithContext(ctx).Delete(&ChapterModel{}, "id = ? AND course_id = ?", id, courseID).Error
}

// quizzes

// CreateQuiz inserts a quiz.
func (s *GormStore) CreateQuiz(ctx context.Context, q domain.Quiz) error {
	model, err := quizToModel(q)
	if err != nil {
		return err
	}
	return translate(s.db.WithContext(ctx).Create(&model).Error)
}

// GetQuiz returns one quiz of a course.
func (s *GormStore) GetQuiz(ctx context.Context, courseID, id string) (domain.Quiz, bool, error) {
	var model QuizModel
	ok, err := first(s.db.WithContext(ctx), &model, "id = ? AND course_id = ?", id, courseID)
	if err != nil || !ok {
		return domain.Quiz{}, false, err
	}
	quiz, err := quizFromModel(model)
	if err != nil {
		return domain.Quiz{}, false, err
	}
	return quiz, true, nil
}

// ListQuizzes returns a course's quizzes by creation.
func (s *GormStore) ListQuizzes(ctx context.Context, courseID string) ([]domain.Quiz, error) {
	var models []QuizModel
	if err := s.db.WithContext(ctx).Where("course_id = ?", courseID).Order("created_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	quizzes := make([]domain.Quiz, 0, len(models))
	for _, m := range models {
		quiz, err := quizFromModel(m)
		if err != nil {
			return nil, err
		}
		quizzes = append(quizzes, quiz)
	}
	return quizzes, nil
}

// UpdateQuiz applies the set fields of upd. A nil Questions slice leaves questions unchanged.
func (s *GormStore) UpdateQuiz(ctx context.Context, courseID, id string, upd QuizUpdate, now time.Time) (domain.Quiz, error) {
	updates := map[string]any{"updated_at": now.UTC()}
	if upd.Title != nil {
		updates["title"] = *upd.Title
	}
	if upd.Questions != nil {
		raw, err := json.Marshal(upd.Questions)
		if err != nil {
			return domain.Quiz{}, fmt.Errorf("encode questions: %w", err)
		}
		updates["questions"] = raw
	}
	var model QuizModel
	if err := s.patch(ctx, &model, updates, "id = ? AND course_id = ?", id, courseID); err != nil {
		return domain.Quiz{}, err
	}
	return quizFromModel(model)
}

// DeleteQuiz removes one quiz.
func (s *GormStore) DeleteQuiz(ctx context.Context, courseID, id string) error {
	return s.db.WithContext(ctx).Delete(&QuizModel{}, "id = ? AND course_id = ?", id, courseID).Error
}

// CreateQuizResult appends a submission result.
func (s *GormStore) CreateQuizResult(ctx context.Context, r domain.QuizResult) error {
	answers, err := json.Marshal(r.Answers)
	if err != nil {
		return fmt.Errorf("encode answers: %w", err)
	}
	model := QuizResultModel{
		ID:             r.ID,
		UserID:         r.UserID,
		CourseID:       r.CourseID,
		QuizID:         r.QuizID,
		Answers:        answers,
		Score:          r.Score,
		CorrectCount:   r.CorrectCount,
		TotalQuestions: r.TotalQuestions,
		SubmittedAt:    r.SubmittedAt.Time,
	}
	return translate(s.db.WithContext(ctx).Create(&model).Error)
}

// enrollments

// CreateEnrollment inserts an enrollment. The (user, course) unique index turns
// a second enrollment into ErrDuplicate even under concurrent requests.
func (s *GormStore) CreateEnrollment(ctx context.Context, e domain.Enrollment) error {
	model := EnrollmentModel{
		ID:         e.ID,
		UserID:     e.UserID,
		CourseID:   e.CourseID,
		EnrolledAt: e.EnrolledAt.Time,
	}
	return translate(s.db.WithContext(ctx).Create(&model).Error)
}

// HasEnrollment reports whether the user is enrolled in the course.
func (s *GormStore) HasEnrollment(ctx context.Context, userID, courseID string) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).Model(&EnrollmentModel{}).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// ListEnrollmentsByUser returns a user's enrollments, oldest first.
func (s *GormStore) ListEnrollmentsByUser(ctx context.Context, userID string) ([]domain.Enrollment, error) {
	var models []EnrollmentModel
	if err := s.db.WithContext(ctx).Where("user_id = ?", userID).Order("enrolled_at ASC").Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.Enrollment, 0, len(models))
	for _, m := range models {
		out = append(out, domain.Enrollment{
			ID:         m.ID,
			UserID:     m.UserID,
			CourseID:   m.CourseID,
			EnrolledAt: domain.At(m.EnrolledAt),
		})
	}
	return out, nil
}

// progress

// GetProgress returns the progress record of a user in a course.
func (s *GormStore) GetProgress(ctx context.Context, userID, courseID string) (domain.Progress, bool, error) {
	var model ProgressModel
	ok, err := first(s.db.WithContext(ctx), &model, "id = ?", domain.ProgressID(userID, courseID))
	if err != nil || !ok {
		return domain.Progress{}, false, err
	}
	p, err := progressFromModel(model)
	if err != nil {
		return domain.Progress{}, false, err
	}
	return p, true, nil
}

// CompleteChapter locks the progress row for the duration of the read-modify-write.
// When two first completions race on insert, the loser retries against the winner's row.
func (s *GormStore) CompleteChapter(ctx context.Context, userID, courseID, chapterID string, totalChapters int, now time.Time) (domain.Progress, bool, error) {
	var (
		progress domain.Progress
		created  bool
		err      error
	)
	for attempt := 0; attempt < 2; attempt++ {
		progress, created, err = s.completeChapterTx(ctx, userID, courseID, chapterID, totalChapters, now)
		if !errors.Is(err, errProgressRace) {
			break
		}
	}
	return progress, created, err
}

func (s *GormStore) completeChapterTx(ctx context.Context, userID, courseID, chapterID string, totalChapters int, now time.Time) (domain.Progress, bool, error) {
	id := domain.ProgressID(userID, courseID)
	var (
		model   ProgressModel
		created bool
	)
	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		ok, err := first(tx.Clauses(clause.Locking{Strength: "UPDATE"}), &model, "id = ?", id)
		if err != nil {
			return err
		}
		if !ok {
			created = true
			completed := []string{chapterID}
			raw, err := json.Marshal(completed)
			if err != nil {
				return err
			}
			model = ProgressModel{
				ID:                id,
				UserID:            userID,
				CourseID:          courseID,
				CompletedChapters: raw,
				Percentage:        Percentage(len(completed), totalChapters),
				UpdatedAt:         now.UTC(),
			}
			res := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&model)
			if res.Error != nil {
				return res.Error
			}
			if res.RowsAffected == 0 {
				return errProgressRace
			}
			return nil
		}

		var completed []string
		if len(model.CompletedChapters) > 0 {
			if err := json.Unmarshal(model.CompletedChapters, &completed); err != nil {
				return fmt.Errorf("decode completed chapters: %w", err)
			}
		}
		if !containsString(completed, chapterID) {
			completed = append(completed, chapterID)
		}
		raw, err := json.Marshal(completed)
		if err != nil {
			return err
		}
		model.CompletedChapters = raw
		model.Percentage = Percentage(len(completed), totalChapters)
		model.UpdatedAt = now.UTC()
		return tx.Model(&ProgressModel{}).Where("id = ?", id).Updates(map[string]any{
			"completed_chapters": model.CompletedChapters,
			"percentage":         model.Percentage,
			"updated_at":         model.UpdatedAt,
		}).Error
	})
	if err != nil {
		return domain.Progress{}, false, err
	}
	p, err := progressFromModel(model)
	if err != nil {
		return domain.Progress{}, false, err
	}
	return p, created, nil
}

// chat

// AppendChatMessages upserts the session metadata and appends msgs in one transaction.
func (s *GormStore) AppendChatMessages(ctx context.Context, session domain.ChatSession, msgs ...domain.ChatMessage) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		sessionModel := ChatSessionModel{
			UserID:      session.UserID,
			SessionID:   session.ID,
			LastMessage: session.LastMessage,
			UpdatedAt:   session.UpdatedAt.Time,
		}
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "session_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"last_message", "updated_at"}),
		}).Create(&sessionModel).Error; err != nil {
			return err
		}
		if len(msgs) == 0 {
			return nil
		}
		models := make([]ChatMessageModel, 0, len(msgs))
		for i, msg := range msgs {
			models = append(models, ChatMessageModel{
				ID:        msg.ID,
				UserID:    session.UserID,
				SessionID: session.ID,
				Role:      msg.Role,
				Content:   msg.Content,
				CreatedAt: msg.Timestamp.Time,
				Seq:       i,
			})
		}
		return tx.Create(&models).Error
	})
}

// ListChatMessages returns a session's log, oldest first.
func (s *GormStore) ListChatMessages(ctx context.Context, userID, sessionID string) ([]domain.ChatMessage, error) {
	var models []ChatMessageModel
	if err := s.db.WithContext(ctx).
		Where("user_id = ? AND session_id = ?", userID, sessionID).
		Order("created_at ASC").
		Order("seq ASC").
		Find(&models).Error; err != nil {
		return nil, err
	}
	out := make([]domain.ChatMessage, 0, len(models))
	for _, m := range models {
		out = append(out, domain.ChatMessage{
			ID:        m.ID,
			SessionID: m.SessionID,
			UserID:    m.UserID,
			Role:      m.Role,
			Content:   m.Content,
			Timestamp: domain.At(m.CreatedAt),
		})
	}
	return out, nil
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func timePtr(ts domain.Timestamp) *time.Time {
	if ts.IsZero() {
		return nil
	}
	t := ts.Time
	return &t
}

func fromTimePtr(t *time.Time) domain.Timestamp {
	if t == nil {
		return domain.Timestamp{}
	}
	return domain.At(*t)
}

func userToModel(u domain.User) UserModel {
	return UserModel{
		UID:         u.UID,
		Email:       u.Email,
		Name:        u.Name,
		Role:        string(u.Role),
		TotalPoints: u.TotalPoints,
		IsActive:    u.IsActive,
		CreatedAt:   u.CreatedAt.Time,
		UpdatedAt:   timePtr(u.UpdatedAt),
	}
}

func userFromModel(m UserModel) domain.User {
	return domain.User{
		UID:         m.UID,
		Email:       m.Email,
		Name:        m.Name,
		Role:        domain.Role(m.Role),
		TotalPoints: m.TotalPoints,
		IsActive:    m.IsActive,
		CreatedAt:   domain.At(m.CreatedAt),
		UpdatedAt:   fromTimePtr(m.UpdatedAt),
	}
}

func courseToModel(c domain.Course) CourseModel {
	return CourseModel{
		ID:           c.ID,
		Title:        c.Title,
		Description:  c.Description,
		ThumbnailURL: c.ThumbnailURL,
		IsPublished:  c.IsPublished,
		CreatedAt:    c.CreatedAt.Time,
		UpdatedAt:    timePtr(c.UpdatedAt),
	}
}

func courseFromModel(m CourseModel) domain.Course {
	return domain.Course{
		ID:           m.ID,
		Title:        m.Title,
		Description:  m.Description,
		ThumbnailURL: m.ThumbnailURL,
		IsPublished:  m.IsPublished,
		CreatedAt:    domain.At(m.CreatedAt),
		UpdatedAt:    fromTimePtr(m.UpdatedAt),
	}
}

func chapterToModel(ch domain.Chapter) ChapterModel {
	return ChapterModel{
		ID:        ch.ID,
		CourseID:  ch.CourseID,
		Title:     ch.Title,
		Content:   ch.Content,
		VideoURL:  ch.VideoURL,
		Order:     ch.Order,
		CreatedAt: ch.CreatedAt.Time,
		UpdatedAt: timePtr(ch.UpdatedAt),
	}
}

func chapterFromModel(m ChapterModel) domain.Chapter {
	return domain.Chapter{
		ID:        m.ID,
		CourseID:  m.CourseID,
		Title:     m.Title,
		Content:   m.Content,
		VideoURL:  m.VideoURL,
		Order:     m.Order,
		CreatedAt: domain.At(m.CreatedAt),
		UpdatedAt: fromTimePtr(m.UpdatedAt),
	}
}

func quizToModel(q domain.Quiz) (QuizModel, error) {
	questions := q.Questions
	if questions == nil {
		questions = []domain.Question{}
	}
	raw, err := json.Marshal(questions)
	if err != nil {
		return QuizModel{}, fmt.Errorf("encode questions: %w", err)
	}
	return QuizModel{
		ID:        q.ID,
		CourseID:  q.CourseID,
		Title:     q.Title,
		Questions: raw,
		CreatedAt: q.CreatedAt.Time,
		UpdatedAt: timePtr(q.UpdatedAt),
	}, nil
}

func quizFromModel(m QuizModel) (domain.Quiz, error) {
	questions := []domain.Question{}
	if len(m.Questions) > 0 {
		if err := json.Unmarshal(m.Questions, &questions); err != nil {
			return domain.Quiz{}, fmt.Errorf("decode questions of quiz %s: %w", m.ID, err)
		}
	}
	return domain.Quiz{
		ID:        m.ID,
		CourseID:  m.CourseID,
		Title:     m.Title,
		Questions: questions,
		CreatedAt: domain.At(m.CreatedAt),
		UpdatedAt: fromTimePtr(m.UpdatedAt),
	}, nil
}

func progressFromModel(m ProgressModel) (domain.Progress, error) {
	completed := []string{}
	if len(m.CompletedChapters) > 0 {
		if err := json.Unmarshal(m.CompletedChapters, &completed); err != nil {
			return domain.Progress{}, fmt.Errorf("decode completed chapters: %w", err)
		}
	}
	return domain.Progress{
		ID:                m.ID,
		UserID:            m.UserID,
		CourseID:          m.CourseID,
		CompletedChapters: completed,
		Percentage:        m.Percentage,
		UpdatedAt:         domain.At(m.UpdatedAt),
	}, nil
}
