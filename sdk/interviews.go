package practice

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/mrchandrayee/interview-practice/pkg/core"
)

// Interview is a mock interview configured against a job description.
type Interview struct {
	ID               int        `json:"id"`
	JobDescription   string     `json:"job_description"`
	InterviewerType  string     `json:"interviewer_type"`
	InterviewerVoice string     `json:"interviewer_voice"`
	DurationMinutes  int        `json:"duration_minutes"`
	Transcript       string     `json:"transcript,omitempty"`
	RecordingURL     string     `json:"recording_url,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	CompletedAt      *time.Time `json:"completed_at,omitempty"`
	IsCompleted      bool       `json:"is_completed"`
}

// Interviewer types accepted by the platform.
const (
	InterviewerPeer       = "peer"
	InterviewerManager    = "manager"
	InterviewerBarRaiser  = "bar_raiser"
	InterviewerTechnical  = "technical"
	InterviewerBehavioral = "behavioral"
)

// InterviewUpdate carries the mutable interview fields.
type InterviewUpdate struct {
	Transcript   string     `json:"transcript,omitempty"`
	RecordingURL string     `json:"recording_url,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
	IsCompleted  *bool      `json:"is_completed,omitempty"`
}

// Assessment scores a completed interview across evaluation dimensions.
type Assessment struct {
	ID                   int       `json:"id"`
	Interview            int       `json:"interview"`
	DomainExpertiseScore int       `json:"domain_expertise_score"`
	CommunicationScore   int       `json:"communication_score"`
	CultureFitScore      int       `json:"culture_fit_score"`
	ProblemSolvingScore  int       `json:"problem_solving_score"`
	SelfAwarenessScore   int       `json:"self_awareness_score"`
	OverallScore         int       `json:"overall_score"`
	Strengths            string    `json:"strengths"`
	AreasForImprovement  string    `json:"areas_for_improvement"`
	Recommendations      string    `json:"recommendations"`
	CreatedAt            time.Time `json:"created_at"`
}

// InterviewCreate carries the fields required to set up a new interview.
type InterviewCreate struct {
	JobDescription   string `json:"job_description"`
	InterviewerType  string `json:"interviewer_type"`
	InterviewerVoice string `json:"interviewer_voice"`
	DurationMinutes  int    `json:"duration_minutes,omitempty"`
}

// InterviewsService calls the interview endpoints.
type InterviewsService struct {
	client *Client
}

// List returns the caller's interviews.
func (s *InterviewsService) List(ctx context.Context) ([]Interview, error) {
	var out []Interview
	if err := s.client.doJSON(ctx, http.MethodGet, "/api/interviews/", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Create sets up a new interview.
func (s *InterviewsService) Create(ctx context.Context, req *InterviewCreate) (*Interview, error) {
	if req == nil {
		return nil, core.NewInvalidRequestError("req must not be nil")
	}
	if req.JobDescription == "" {
		return nil, core.NewInvalidRequestErrorWithParam("job description must not be empty", "job_description")
	}
	var out Interview
	if err := s.client.doJSON(ctx, http.MethodPost, "/api/interviews/", req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Get fetches one interview by id.
func (s *InterviewsService) Get(ctx context.Context, id int) (*Interview, error) {
	var out Interview
	if err := s.client.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/interviews/%d/", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Update patches an interview, typically to attach the transcript and
// recording once the session ends.
func (s *InterviewsService) Update(ctx context.Context, id int, req *InterviewUpdate) (*Interview, error) {
	if req == nil {
		return nil, core.NewInvalidRequestError("req must not be nil")
	}
	var out Interview
	if err := s.client.doJSON(ctx, http.MethodPatch, fmt.Sprintf("/api/interviews/%d/update/", id), req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// CreateAssessment requests scoring of a completed interview.
func (s *InterviewsService) CreateAssessment(ctx context.Context, interviewID int) (*Assessment, error) {
	var out Assessment
	if err := s.client.doJSON(ctx, http.MethodPost, fmt.Sprintf("/api/interviews/%d/assessment/", interviewID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// GetAssessment fetches an assessment by id.
func (s *InterviewsService) GetAssessment(ctx context.Context, id int) (*Assessment, error) {
	var out Assessment
	if err := s.client.doJSON(ctx, http.MethodGet, fmt.Sprintf("/api/interviews/assessment/%d/", id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}
