package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"taskpilot/internal/model"
)

func newTaskRepo(srvURL string) *TaskRepository {
	return NewTaskRepository(NewClient(srvURL, 2*time.Second))
}

func TestTaskRepositoryList(t *testing.T) {
	taskID := uuid.NewString()

	router := mux.NewRouter()
	router.HandleFunc("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("user_id") != "alice" {
			http.Error(w, `{"error": "User ID is required"}`, http.StatusBadRequest)
			return
		}
		// The shape the service actually returns: nullable columns and
		// zone-less timestamps.
		fmt.Fprintf(w, `[{
			"id": %q,
			"title": "Write the report",
			"description": null,
			"category": null,
			"priority": 1,
			"status": "pending",
			"due_date": "2026-08-29T18:00:00",
			"completed_at": null,
			"user_id": "alice"
		}]`, taskID)
	}).Methods(http.MethodGet)
	srv := httptest.NewServer(router)
	defer srv.Close()

	tasks, err := newTaskRepo(srv.URL).List(context.Background(), "alice")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(tasks) != 1 {
		t.Fatalf("got %d tasks", len(tasks))
	}
	task := tasks[0]
	if task.ID != taskID || task.Title != "Write the report" {
		t.Errorf("unexpected task %+v", task)
	}
	if task.CategoryLabel() != "Uncategorized" {
		t.Errorf("null category should read as Uncategorized, got %q", task.CategoryLabel())
	}
	if task.DueDate == nil || task.DueDate.Hour() != 18 {
		t.Errorf("due date not decoded: %v", task.DueDate)
	}
	if task.CompletedAt != nil && !task.CompletedAt.IsZero() {
		t.Errorf("completed_at should stay empty, got %v", task.CompletedAt)
	}
}

func TestTaskRepositoryListFailures(t *testing.T) {
	t.Run("non-2xx is a transport error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer srv.Close()

		_, err := newTaskRepo(srv.URL).List(context.Background(), "alice")
		var te *TransportError
		if !errors.As(err, &te) {
			t.Fatalf("expected TransportError, got %v", err)
		}
		if te.Status != http.StatusInternalServerError {
			t.Errorf("status = %d", te.Status)
		}
	})

	t.Run("malformed body is a protocol error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[{"id": 123`)
		}))
		defer srv.Close()

		_, err := newTaskRepo(srv.URL).List(context.Background(), "alice")
		var pe *ProtocolError
		if !errors.As(err, &pe) {
			t.Fatalf("expected ProtocolError, got %v", err)
		}
	})

	t.Run("unreachable server is a transport error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		srv.Close()

		_, err := newTaskRepo(srv.URL).List(context.Background(), "alice")
		var te *TransportError
		if !errors.As(err, &te) {
			t.Fatalf("expected TransportError, got %v", err)
		}
		if te.Err == nil {
			t.Error("network failures should carry a cause")
		}
	})

	t.Run("unparseable timestamp is a protocol error", func(t *testing.T) {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fmt.Fprint(w, `[{"id": "1", "title": "x", "status": "pending", "due_date": "someday"}]`)
		}))
		defer srv.Close()

		_, err := newTaskRepo(srv.URL).List(context.Background(), "alice")
		var pe *ProtocolError
		if !errors.As(err, &pe) {
			t.Fatalf("expected ProtocolError, got %v", err)
		}
	})
}

func TestTaskRepositoryCreate(t *testing.T) {
	router := mux.NewRouter()
	var got map[string]any
	router.HandleFunc("/api/tasks", func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		title, _ := got["title"].(string)
		userID, _ := got["user_id"].(string)
		if title == "" || userID == "" {
			http.Error(w, `{"error": "Title and user_id are required"}`, http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusCreated)
		fmt.Fprintf(w, `{"id": %q, "message": "Task created successfully"}`, uuid.NewString())
	}).Methods(http.MethodPost)
	srv := httptest.NewServer(router)
	defer srv.Close()

	repo := newTaskRepo(srv.URL)
	draft := model.TaskDraft{
		Title:    "Plan the sprint",
		Category: "Work",
		Priority: model.PriorityHigh,
		DueDate:  model.NewTime(time.Date(2026, 9, 1, 9, 0, 0, 0, time.UTC)),
	}
	if err := repo.Create(context.Background(), draft, "alice"); err != nil {
		t.Fatalf("create: %v", err)
	}
	if got["user_id"] != "alice" {
		t.Errorf("user_id = %v", got["user_id"])
	}
	if got["due_date"] != "2026-09-01T09:00:00Z" {
		t.Errorf("due_date = %v", got["due_date"])
	}

	// A rejected draft surfaces as an error, not a silent success.
	if err := repo.Create(context.Background(), model.TaskDraft{}, ""); err == nil {
		t.Fatal("expected error for rejected draft")
	}
}

func TestTaskRepositoryUpdate(t *testing.T) {
	taskID := uuid.NewString()

	router := mux.NewRouter()
	var got map[string]any
	router.HandleFunc("/api/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		if mux.Vars(r)["id"] != taskID {
			http.Error(w, `{"error": "Task not found or access denied"}`, http.StatusNotFound)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		fmt.Fprint(w, `{"message": "Task updated successfully"}`)
	}).Methods(http.MethodPut)
	srv := httptest.NewServer(router)
	defer srv.Close()

	repo := newTaskRepo(srv.URL)
	patch := model.TaskPatch{"status": "pending", "completed_at": nil}
	if err := repo.Update(context.Background(), taskID, patch, "alice"); err != nil {
		t.Fatalf("update: %v", err)
	}

	if got["user_id"] != "alice" {
		t.Errorf("user_id = %v", got["user_id"])
	}
	// Clearing completed_at needs the key present with a JSON null.
	cleared, present := got["completed_at"]
	if !present || cleared != nil {
		t.Errorf("completed_at: present=%v value=%v", present, cleared)
	}

	if err := repo.Update(context.Background(), "missing", patch, "alice"); err == nil {
		t.Fatal("expected error for unknown task")
	}
}

func TestTaskRepositoryDelete(t *testing.T) {
	taskID := uuid.NewString()

	router := mux.NewRouter()
	router.HandleFunc("/api/tasks/{id}", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("user_id") != "alice" || mux.Vars(r)["id"] != taskID {
			http.Error(w, `{"error": "Task not found or access denied"}`, http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}).Methods(http.MethodDelete)
	srv := httptest.NewServer(router)
	defer srv.Close()

	repo := newTaskRepo(srv.URL)
	if err := repo.Delete(context.Background(), taskID, "alice"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if err := repo.Delete(context.Background(), taskID, "mallory"); err == nil {
		t.Fatal("expected error for foreign task")
	}
}
