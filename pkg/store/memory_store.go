package store

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"lmsapi/pkg/domain"
)

// MemoryStore keeps every record in-process. It backs tests and local runs
// without Postgres and mirrors GormStore semantics, including atomic progress
// updates and enrollment uniqueness.
type MemoryStore struct {
	mu sync.RWMutex

	users       map[string]domain.User
	userOrder   []string
	courses     map[string]domain.Course
	courseOrder []string
	chapters    map[string]domain.Chapter
	quizzes     map[string]domain.Quiz
	quizOrder   []string
	results     []domain.QuizResult
	enrollments []domain.Enrollment
	progress    map[string]domain.Progress
	sessions    map[string]domain.ChatSession
	messages    map[string][]domain.ChatMessage
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore initializes an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		users:    make(map[string]domain.User),
		courses:  make(map[string]domain.Course),
		chapters: make(map[string]domain.Chapter),
		quizzes:  make(map[string]domain.Quiz),
		progress: make(map[string]domain.Progress),
		sessions: make(map[string]domain.ChatSession),
		messages: make(map[string][]domain.ChatMessage),
	}
}

func chatKey(userID, sessionID string) string {
	return userID + "/" + sessionID
}

// users

func (m *MemoryStore) CreateUser(_ context.Context, u domain.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.users[u.UID]; exists {
		return ErrDuplicate
	}
	m.users[u.UID] = u
	m.userOrder = append(m.userOrder, u.UID)
	return nil
}

func (m *MemoryStore) GetUser(_ context.Context, uid string) (domain.User, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[uid]
	return u, ok, nil
}

func (m *MemoryStore) ListUsers(_ context.Context, filter UserFilter) ([]domain.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	out := make([]domain.User, 0, len(m.userOrder))
	for _, uid := range m.userOrder {
		u := m.users[uid]
		if filter.Role != "" && u.Role != filter.Role {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(u.Name), search) &&
			!strings.Contains(strings.ToLower(u.Email), search) {
			continue
		}
		out = append(out, u)
	}
	return out, nil
}

func (m *MemoryStore) UpdateUser(_ context.Context, uid string, upd UserUpdate, now time.Time) (domain.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[uid]
	if !ok {
		return domain.User{}, ErrNotFound
	}
	if upd.Name != nil {
		u.Name = *upd.Name
	}
	if upd.Email != nil {
		u.Email = *upd.Email
	}
	if upd.Role != nil {
		u.Role = *upd.Role
	}
	if upd.IsActive != nil {
		u.IsActive = *upd.IsActive
	}
	u.UpdatedAt = domain.At(now)
	m.users[uid] = u
	return u, nil
}

func (m *MemoryStore) UpsertUserProfile(_ context.Context, p UserProfile, now time.Time) (domain.User, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, exists := m.users[p.UID]
	if !exists {
		u = newProfileUser(p, now)
		m.users[p.UID] = u
		m.userOrder = append(m.userOrder, p.UID)
		return u, true, nil
	}
	u.Email = p.Email
	if p.DisplayName != "" {
		u.Name = p.DisplayName
	}
	u.UpdatedAt = domain.At(now)
	m.users[p.UID] = u
	return u, false, nil
}

func (m *MemoryStore) Leaderboard(_ context.Context, limit int) ([]domain.User, error) {
	m.mu.RLock()
	out := make([]domain.User, 0, len(m.userOrder))
	for _, uid := range m.userOrder {
		out = append(out, m.users[uid])
	}
	m.mu.RUnlock()
	sort.SliceStable(out, func(i, j int) bool { return out[i].TotalPoints > out[j].TotalPoints })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// courses

func (m *MemoryStore) CreateCourse(_ context.Context, c domain.Course) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.courses[c.ID]; exists {
		return ErrDuplicate
	}
	m.courses[c.ID] = c
	m.courseOrder = append(m.courseOrder, c.ID)
	return nil
}

func (m *MemoryStore) GetCourse(_ context.Context, id string) (domain.Course, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.courses[id]
	return c, ok, nil
}

func (m *MemoryStore) ListCourses(_ context.Context, publishedOnly bool) ([]domain.Course, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Course, 0, len(m.courseOrder))
	for _, id := range m.courseOrder {
		c := m.courses[id]
		if publishedOnly && !c.IsPublished {
			continue
		}
		out = append(out, c)
	}
	return out, nil
}

func (m *MemoryStore) UpdateCourse(_ context.Context, id string, upd CourseUpdate, now time.Time) (domain.Course, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.courses[id]
	if !ok {
		return domain.Course{}, ErrNotFound
	}
	if upd.Title != nil {
		c.Title = *upd.Title
	}
	if upd.Description != nil {
		c.Description = *upd.Description
	}
	if upd.ThumbnailURL != nil {
		c.ThumbnailURL = *upd.ThumbnailURL
	}
	if upd.IsPublished != nil {
		c.IsPublished = *upd.IsPublished
	}
	c.UpdatedAt = domain.At(now)
	m.courses[id] = c
	return c, nil
}

func (m *MemoryStore) DeleteCourse(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, ch := range m.chapters {
		if ch.CourseID == id {
			delete(m.chapters, key)
		}
	}
	for key, q := range m.quizzes {
		if q.CourseID == id {
			delete(m.quizzes, key)
		}
	}
	m.quizOrder = filterIDs(m.quizOrder, func(key string) bool { _, ok := m.quizzes[key]; return ok })
	delete(m.courses, id)
	m.courseOrder = filterIDs(m.courseOrder, func(key string) bool { return key != id })
	return nil
}

// chapters

func (m *MemoryStore) CreateChapter(_ context.Context, ch domain.Chapter) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.chapters[ch.ID]; exists {
		return ErrDuplicate
	}
	m.chapters[ch.ID] = ch
	return nil
}

func (m *MemoryStore) GetChapter(_ context.Context, courseID, id string) (domain.Chapter, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ch, ok := m.chapters[id]
	if !ok || ch.CourseID != courseID {
		return domain.Chapter{}, false, nil
	}
	return ch, true, nil
}

func (m *MemoryStore) ListChapters(_ context.Context, courseID string) ([]domain.Chapter, error) {
	m.mu.RLock()
	out := make([]domain.Chapter, 0)
	for _, ch := range m.chapters {
		if ch.CourseID == courseID {
			out = append(out, ch)
		}
	}
	m.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if out[i].Order != out[j].Order {
			return out[i].Order < out[j].Order
		}
		if !out[i].CreatedAt.Equal(out[j].CreatedAt.Time) {
			return out[i].CreatedAt.Before(out[j].CreatedAt.Time)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) CountChapters(_ context.Context, courseID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, ch := range m.chapters {
		if ch.CourseID == courseID {
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) UpdateChapter(_ context.Context, courseID, id string, upd ChapterUpdate, now time.Time) (domain.Chapter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ch, ok := m.chapters[id]
	if !ok || ch.CourseID != courseID {
		return domain.Chapter{}, ErrNotFound
	}
	if upd.Title != nil {
		ch.Title = *upd.Title
	}
	if upd.Content != nil {
		ch.Content = *upd.Content
	}
	if upd.VideoURL != nil {
		ch.VideoURL = *upd.VideoURL
	}
	if upd.Order != nil {
		ch.Order = *upd.Order
	}
	ch.UpdatedAt = domain.At(now)
	m.chapters[id] = ch
	return ch, nil
}

func (m *MemoryStore) DeleteChapter(_ context.Context, courseID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ch, ok := m.chapters[id]; ok && ch.CourseID == courseID {
		delete(m.chapters, id)
	}
	return nil
}

// quizzes

func (m *MemoryStore) CreateQuiz(_ context.Context, q domain.Quiz) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.quizzes[q.ID]; exists {
		return ErrDuplicate
	}
	q.Questions = cloneQuestions(q.Questions)
	m.quizzes[q.ID] = q
	m.quizOrder = append(m.quizOrder, q.ID)
	return nil
}

func (m *MemoryStore) GetQuiz(_ context.Context, courseID, id string) (domain.Quiz, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	q, ok := m.quizzes[id]
	if !ok || q.CourseID != courseID {
		return domain.Quiz{}, false, nil
	}
	q.Questions = cloneQuestions(q.Questions)
	return q, true, nil
}

func (m *MemoryStore) ListQuizzes(_ context.Context, courseID string) ([]domain.Quiz, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Quiz, 0)
	for _, id := range m.quizOrder {
		q := m.quizzes[id]
		if q.CourseID != courseID {
			continue
		}
		q.Questions = cloneQuestions(q.Questions)
		out = append(out, q)
	}
	return out, nil
}

func (m *MemoryStore) UpdateQuiz(_ context.Context, courseID, id string, upd QuizUpdate, now time.Time) (domain.Quiz, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q, ok := m.quizzes[id]
	if !ok || q.CourseID != courseID {
		return domain.Quiz{}, ErrNotFound
	}
	if upd.Title != nil {
		q.Title = *upd.Title
	}
	if upd.Questions != nil {
		q.Questions = cloneQuestions(upd.Questions)
	}
	q.UpdatedAt = domain.At(now)
	m.quizzes[id] = q
	q.Questions = cloneQuestions(q.Questions)
	return q, nil
}

func (m *MemoryStore) DeleteQuiz(_ context.Context, courseID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if q, ok := m.quizzes[id]; ok && q.CourseID == courseID {
		delete(m.quizzes, id)
		m.quizOrder = filterIDs(m.quizOrder, func(key string) bool { return key != id })
	}
	return nil
}

func (m *MemoryStore) CreateQuizResult(_ context.Context, r domain.QuizResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	r.Answers = append([]int(nil), r.Answers...)
	m.results = append(m.results, r)
	return nil
}

// QuizResults returns every stored submission, in insertion order.
func (m *MemoryStore) QuizResults() []domain.QuizResult {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.QuizResult(nil), m.results...)
}

// enrollments

func (m *MemoryStore) CreateEnrollment(_ context.Context, e domain.Enrollment) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.enrollments {
		if existing.UserID == e.UserID && existing.CourseID == e.CourseID {
			return ErrDuplicate
		}
	}
	m.enrollments = append(m.enrollments, e)
	return nil
}

func (m *MemoryStore) HasEnrollment(_ context.Context, userID, courseID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, e := range m.enrollments {
		if e.UserID == userID && e.CourseID == courseID {
			return true, nil
		}
	}
	return false, nil
}

func (m *MemoryStore) ListEnrollmentsByUser(_ context.Context, userID string) ([]domain.Enrollment, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]domain.Enrollment, 0)
	for _, e := range m.enrollments {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

// progress

func (m *MemoryStore) GetProgress(_ context.Context, userID, courseID string) (domain.Progress, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	p, ok := m.progress[domain.ProgressID(userID, courseID)]
	if !ok {
		return domain.Progress{}, false, nil
	}
	p.CompletedChapters = append([]string{}, p.CompletedChapters...)
	return p, true, nil
}

func (m *MemoryStore) CompleteChapter(_ context.Context, userID, courseID, chapterID string, totalChapters int, now time.Time) (domain.Progress, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := domain.ProgressID(userID, courseID)
	p, exists := m.progress[id]
	if !exists {
		p = domain.Progress{ID: id, UserID: userID, CourseID: courseID}
	}
	completed := append([]string{}, p.CompletedChapters...)
	if !containsString(completed, chapterID) {
		completed = append(completed, chapterID)
	}
	p.CompletedChapters = completed
	p.Percentage = Percentage(len(completed), totalChapters)
	p.UpdatedAt = domain.At(now)
	m.progress[id] = p
	p.CompletedChapters = append([]string{}, completed...)
	return p, !exists, nil
}

// chat

func (m *MemoryStore) AppendChatMessages(_ context.Context, session domain.ChatSession, msgs ...domain.ChatMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := chatKey(session.UserID, session.ID)
	m.sessions[key] = session
	m.messages[key] = append(m.messages[key], msgs...)
	return nil
}

func (m *MemoryStore) ListChatMessages(_ context.Context, userID, sessionID string) ([]domain.ChatMessage, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return append([]domain.ChatMessage{}, m.messages[chatKey(userID, sessionID)]...), nil
}

// ChatSession returns the stored session metadata.
func (m *MemoryStore) ChatSession(userID, sessionID string) (domain.ChatSession, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[chatKey(userID, sessionID)]
	return s, ok
}

func filterIDs(ids []string, keep func(string) bool) []string {
	out := ids[:0]
	for _, id := range ids {
		if keep(id) {
			out = append(out, id)
		}
	}
	return out
}

func cloneQuestions(in []domain.Question) []domain.Question {
	if in == nil {
		return []domain.Question{}
	}
	out := make([]domain.Question, len(in))
	for i, q := range in {
		q.Options = append([]string(nil), q.Options...)
		out[i] = q
	}
	return out
}
