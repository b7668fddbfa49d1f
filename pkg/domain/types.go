package domain

// Role is a user's authorization level.
type Role string

const (
	RoleStudent    Role = "student"
	RoleInstructor Role = "instructor"
	RoleAdmin      Role = "admin"
)

// Roles lists every assignable role.
var Roles = []Role{RoleStudent, RoleAdmin, RoleInstructor}

// Valid reports whether r is one of Roles.
func (r Role) Valid() bool {
	for _, candidate := range Roles {
		if r == candidate {
			return true
		}
	}
	return false
}

type User struct {
	UID         string    `json:"uid"`
	Email       string    `json:"email"`
	Name        string    `json:"name"`
	Role        Role      `json:"role,omitempty"`
	TotalPoints int       `json:"totalPoints"`
	IsActive    bool      `json:"isActive"`
	CreatedAt   Timestamp `json:"createdAt"`
	UpdatedAt   Timestamp `json:"updatedAt"`
}

type Course struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	Description  string    `json:"description"`
	ThumbnailURL string    `json:"thumbnailUrl"`
	IsPublished  bool      `json:"isPublished"`
	CreatedAt    Timestamp `json:"createdAt"`
	UpdatedAt    Timestamp `json:"updatedAt"`
}

type Chapter struct {
	ID        string    `json:"id"`
	CourseID  string    `json:"courseId"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	VideoURL  string    `json:"videoUrl"`
	Order     int       `json:"order"`
	CreatedAt Timestamp `json:"createdAt"`
	UpdatedAt Timestamp `json:"updatedAt"`
}

// Question is one multiple-choice item. CorrectAnswer indexes Options.
type Question struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
}

// PublicQuestion is a Question without its answer.
type PublicQuestion struct {
	Question string   `json:"question"`
	Options  []string `json:"options"`
}

type Quiz struct {
	ID        string     `json:"id"`
	CourseID  string     `json:"courseId"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
	CreatedAt Timestamp  `json:"createdAt"`
	UpdatedAt Timestamp  `json:"updatedAt"`
}

// PublicQuiz is what non-admin callers see of a quiz.
type PublicQuiz struct {
	ID        string           `json:"id"`
	CourseID  string           `json:"courseId"`
	Title     string           `json:"title"`
	Questions []PublicQuestion `json:"questions"`
	CreatedAt Timestamp        `json:"createdAt"`
	UpdatedAt Timestamp        `json:"updatedAt"`
}

// Public strips correct answers.
func (q Quiz) Public() PublicQuiz {
	questions := make([]PublicQuestion, 0, len(q.Questions))
	for _, item := range q.Questions {
		questions = append(questions, PublicQuestion{Question: item.Question, Options: item.Options})
	}
	return PublicQuiz{
		ID:        q.ID,
		CourseID:  q.CourseID,
		Title:     q.Title,
		Questions: questions,
		CreatedAt: q.CreatedAt,
		UpdatedAt: q.UpdatedAt,
	}
}

type Enrollment struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	CourseID   string    `json:"courseId"`
	EnrolledAt Timestamp `json:"enrolledAt"`
}

// Progress tracks completed chapters of one user in one course.
// Its ID is always ProgressID(UserID, CourseID).
type Progress struct {
	ID                string    `json:"id,omitempty"`
	UserID            string    `json:"userId"`
	CourseID          string    `json:"courseId"`
	CompletedChapters []string  `json:"completedChapters"`
	Percentage        int       `json:"percentage"`
	UpdatedAt         Timestamp `json:"updatedAt"`
}

// ProgressID is the deterministic key of a progress record.
func ProgressID(userID, courseID string) string {
	return userID + "_" + courseID
}

type QuizResult struct {
	ID             string    `json:"id"`
	UserID         string    `json:"userId"`
	CourseID       string    `json:"courseId"`
	QuizID         string    `json:"quizId"`
	Answers        []int     `json:"answers"`
	Score          int       `json:"score"`
	CorrectCount   int       `json:"correctCount"`
	TotalQuestions int       `json:"totalQuestions"`
	SubmittedAt    Timestamp `json:"submittedAt"`
}

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

type ChatSession struct {
	ID          string    `json:"sessionId"`
	UserID      string    `json:"userId"`
	LastMessage string    `json:"lastMessage"`
	UpdatedAt   Timestamp `json:"updatedAt"`
}

type ChatMessage struct {
	ID        string    `json:"id"`
	SessionID string    `json:"sessionId"`
	UserID    string    `json:"userId"`
	Role      string    `json:"role"`
	Content   string    `json:"content"`
	Timestamp Timestamp `json:"timestamp"`
}

// IDToken is the verified content of a bearer token.
// Role is empty when the token carries no role claim.
type IDToken struct {
	UID   string
	Email string
	Role  string
}
