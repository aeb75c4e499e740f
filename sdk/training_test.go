package practice

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestTrainingLessonsAndProgress(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/training/lessons/":
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"id": 1, "topic": "STAR method", "difficulty": "beginner", "duration": 20, "objectives": []string{"structure answers"}},
			})
		case "/api/training/lessons/1/":
			_ = json.NewEncoder(w).Encode(map[string]any{"id": 1, "topic": "STAR method", "difficulty": "beginner"})
		case "/api/training/progress/":
			_ = json.NewEncoder(w).Encode([]map[string]any{
				{"id": 5, "lesson": 1, "completion_count": 3, "average_score": 84.5, "mastered": true},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))

	lessons, err := client.Training.ListLessons(context.Background())
	if err != nil {
		t.Fatalf("ListLessons error: %v", err)
	}
	if len(lessons) != 1 || lessons[0].Topic != "STAR method" || lessons[0].Objectives[0] != "structure answers" {
		t.Fatalf("lessons=%+v", lessons)
	}

	lesson, err := client.Training.GetLesson(context.Background(), 1)
	if err != nil {
		t.Fatalf("GetLesson error: %v", err)
	}
	if lesson.Difficulty != DifficultyBeginner {
		t.Fatalf("lesson=%+v", lesson)
	}

	progress, err := client.Training.ListProgress(context.Background())
	if err != nil {
		t.Fatalf("ListProgress error: %v", err)
	}
	if len(progress) != 1 || !progress[0].Mastered || progress[0].AverageScore != 84.5 {
		t.Fatalf("progress=%+v", progress)
	}
}

func TestTrainingCreateSession(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/training/sessions/" {
			http.NotFound(w, r)
			return
		}
		var body map[string]int
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body["lesson"] != 7 {
			t.Errorf("body=%v, want lesson 7", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":11,"lesson":7,"current_question":0,"is_completed":false}`))
	}))
	defer server.Close()

	client := NewClient(WithBaseURL(server.URL))
	session, err := client.Training.CreateSession(context.Background(), 7)
	if err != nil {
		t.Fatalf("CreateSession error: %v", err)
	}
	if session.ID != 11 || session.Lesson != 7 {
		t.Fatalf("session=%+v", session)
	}

	if _, err := client.Training.CreateSession(context.Background(), 0); err == nil {
		t.Fatalf("expected validation error for lesson id 0")
	}
}
