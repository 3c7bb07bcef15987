package repository

import (
	"context"
	"net/http"
	"net/url"

	"taskpilot/internal/model"
)

// TaskRepository is the CRUD facade over the remote task collection.
type TaskRepository struct {
	client *Client
}

func NewTaskRepository(client *Client) *TaskRepository {
	return &TaskRepository{client: client}
}

// List fetches the full task collection for the user.
func (r *TaskRepository) List(ctx context.Context, userID string) ([]model.Task, error) {
	var tasks []model.Task
	query := url.Values{"user_id": {userID}}
	if err := r.client.getJSON(ctx, "/api/tasks", query, &tasks); err != nil {
		return nil, err
	}
	return tasks, nil
}

// Create submits a draft. The service assigns the id; refreshing the
// local snapshot is the caller's job.
func (r *TaskRepository) Create(ctx context.Context, draft model.TaskDraft, userID string) error {
	body := struct {
		model.TaskDraft
		UserID string `json:"user_id"`
	}{TaskDraft: draft, UserID: userID}
	return r.client.send(ctx, http.MethodPost, "/api/tasks", nil, body)
}

// Update applies a partial update. The caller keeps completed_at
// consistent with status before calling; the service applies fields
// verbatim.
func (r *TaskRepository) Update(ctx context.Context, taskID string, patch model.TaskPatch, userID string) error {
	body := model.TaskPatch{"user_id": userID}
	for field, value := range patch {
		body[field] = value
	}
	return r.client.send(ctx, http.MethodPut, "/api/tasks/"+url.PathEscape(taskID), nil, body)
}

// Delete removes a task for the given user.
func (r *TaskRepository) Delete(ctx context.Context, taskID, userID string) error {
	query := url.Values{"user_id": {userID}}
	return r.client.send(ctx, http.MethodDelete, "/api/tasks/"+url.PathEscape(taskID), query, nil)
}
