package practice

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mrchandrayee/interview-practice/pkg/core"
)

// Lesson is one unit of training content.
type Lesson struct {
	ID         int             `json:"id"`
	Topic      string          `json:"topic"`
	Content    string          `json:"content"`
	Questions  json.RawMessage `json:"questions"`
	Duration   int             `json:"duration"`
	Objectives []string        `json:"objectives"`
	Difficulty string          `json:"difficulty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// Lesson difficulty levels.
const (
	DifficultyBeginner     = "beginner"
	DifficultyIntermediate = "intermediate"
	DifficultyAdvanced     = "advanced"
)

// TrainingSession is one run through a lesson.
type TrainingSession struct {
	ID              int             `json:"id"`
	Lesson          int             `json:"lesson"`
	StartTime       time.Time       `json:"start_time"`
	EndTime         *time.Time      `json:"end_time,omitempty"`
	IsCompleted     bool            `json:"is_completed"`
	IsPaused        bool            `json:"is_paused"`
	CurrentQuestion int             `json:"current_question"`
	Responses       json.RawMessage `json:"responses"`
	Score           *float64        `json:"score,omitempty"`
	Feedback        string          `json:"feedback,omitempty"`
}

// Progress tracks a user's standing on one lesson across sessions.
type Progress struct {
	ID              int        `json:"id"`
	Lesson          int        `json:"lesson"`
	CompletionCount int        `json:"completion_count"`
	AverageScore    float64    `json:"average_score"`
	LastCompleted   *time.Time `json:"last_completed,omitempty"`
	Mastered        bool       `json:"mastered"`
}

// TrainingService calls the training content endpoints.
type TrainingService struct {
	client *Client
}

// ListLessons returns the available lessons.
func (s *TrainingService) ListLessons(ctx context.Context) ([]Lesson, error) {
	var out []Lesson
	if err := s.client.doJSON(ctx, http.MethodGet, "/api/training/lessons/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// GetLesson fetches one lesson by id.
func (s *TrainingService) GetLesson(ctx context.Context, id int) (*Lesson, error) {
	var out Lesson
	if err := s.client.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/training/lessons/%d/", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateSession starts a training session for a lesson.
func (s *TrainingService) CreateSession(ctx context.Context, lessonID int) (*TrainingSession, error) {
	if lessonID <= 0 {
		return nil, core.NewInvalidRequestErrorWithParam("lesson id must be positive", "lesson")
	}
	req := map[string]int{"lesson": lessonID}
	var out TrainingSession
	if err := s.client.doJSON(ctx, http.MethodPost, "/api/training/sessions/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetSession fetches one training session by id.
func (s *TrainingService) GetSession(ctx context.Context, id int) (*TrainingSession, error) {
	var out TrainingSession
	if err := s.client.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/training/sessions/%d/", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ListProgress returns the caller's per-lesson progress.
func (s *TrainingService) ListProgress(ctx context.Context) ([]Progress, error) {
	var out []Progress
	if err := s.client.doJSON(ctx, http.MethodGet, "/api/training/progress/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}
