package store

import (
	"time"

	"gorm.io/datatypes"
)

// GORM models used for persistence. Nested values live in jsonb columns.
type UserModel struct {
	UID         string `gorm:"primaryKey"`
	Email       string `gorm:"index;not null"`
	Name        string
	Role        string     `gorm:"index"`
	TotalPoints int        `gorm:"not null;default:0;index"`
	IsActive    bool       `gorm:"not null;default:true"`
	CreatedAt   time.Time  `gorm:"autoCreateTime:false"`
	UpdatedAt   *time.Time `gorm:"autoUpdateTime:false"`
}

type CourseModel struct {
	ID           string `gorm:"primaryKey"`
	Title        string `gorm:"not null"`
	Description  string
	ThumbnailURL string
	IsPublished  bool       `gorm:"not null;default:false;index"`
	CreatedAt    time.Time  `gorm:"autoCreateTime:false"`
	UpdatedAt    *time.Time `gorm:"autoUpdateTime:false"`
}

type ChapterModel struct {
	ID        string `gorm:"primaryKey"`
	CourseID  string `gorm:"not null;index:idx_chapter_course_order,priority:1"`
	Title     string `gorm:"not null"`
	Content   string `gorm:"type:text"`
	VideoURL  string
	Order     int        `gorm:"column:sort_order;not null;default:0;index:idx_chapter_course_order,priority:2"`
	CreatedAt time.Time  `gorm:"autoCreateTime:false"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime:false"`
}

type QuizModel struct {
	ID        string         `gorm:"primaryKey"`
	CourseID  string         `gorm:"not null;index"`
	Title     string         `gorm:"not null"`
	Questions datatypes.JSON `gorm:"type:jsonb;not null"`
	CreatedAt time.Time  `gorm:"autoCreateTime:false"`
	UpdatedAt *time.Time `gorm:"autoUpdateTime:false"`
}

type QuizResultModel struct {
	ID             string         `gorm:"primaryKey"`
	UserID         string         `gorm:"not null;index"`
	CourseID       string         `gorm:"not null;index"`
	QuizID         string         `gorm:"not null;index"`
	Answers        datatypes.JSON `gorm:"type:jsonb"`
	Score          int            `gorm:"not null"`
	CorrectCount   int            `gorm:"not null"`
	TotalQuestions int            `gorm:"not null"`
	SubmittedAt    time.Time      `gorm:"not null"`
}

type EnrollmentModel struct {
	ID         string    `gorm:"primaryKey"`
	UserID     string    `gorm:"not null;uniqueIndex:uq_enrollment_user_course,priority:1"`
	CourseID   string    `gorm:"not null;uniqueIndex:uq_enrollment_user_course,priority:2;index"`
	EnrolledAt time.Time `gorm:"not null"`
}

type ProgressModel struct {
	ID                string         `gorm:"primaryKey"`
	UserID            string         `gorm:"not null;index"`
	CourseID          string         `gorm:"not null;index"`
	CompletedChapters datatypes.JSON `gorm:"type:jsonb;not null"`
	Percentage        int            `gorm:"not null"`
	UpdatedAt         time.Time      `gorm:"autoUpdateTime:false"`
}

type ChatSessionModel struct {
	UserID      string `gorm:"primaryKey"`
	SessionID   string `gorm:"primaryKey"`
	LastMessage string    `gorm:"type:text"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime:false"`
}

type ChatMessageModel struct {
	ID        string    `gorm:"primaryKey"`
	UserID    string    `gorm:"not null;index:idx_chat_message_session,priority:1"`
	SessionID string    `gorm:"not null;index:idx_chat_message_session,priority:2"`
	Role      string    `gorm:"not null"`
	Content   string    `gorm:"type:text;not null"`
	CreatedAt time.Time `gorm:"autoCreateTime:false;not null;index:idx_chat_message_session,priority:3"`
	Seq       int       `gorm:"not null"`
}
