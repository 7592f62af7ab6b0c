package backend

import (
	"context"
	"net/http"
	"net/url"
	"strconv"
)

type TaskStatus string

const (
	TaskPending    TaskStatus = "pending"
	TaskInProgress TaskStatus = "in_progress"
	TaskCompleted  TaskStatus = "completed"
	TaskCancelled  TaskStatus = "cancelled"
)

// Valid reports whether s is one of the statuses the API accepts.
func (s TaskStatus) Valid() bool {
	switch s {
	case TaskPending, TaskInProgress, TaskCompleted, TaskCancelled:
		return true
	default:
		return false
	}
}

type TaskPriority string

const (
	PriorityLow    TaskPriority = "low"
	PriorityMedium TaskPriority = "medium"
	PriorityHigh   TaskPriority = "high"
)

type Task struct {
	ID          int          `json:"id"`
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Status      TaskStatus   `json:"status"`
	Priority    TaskPriority `json:"priority"`
	DueDate     *Timestamp   `json:"due_date,omitempty"`
	Tags        []string     `json:"tags"`
	CreatedAt   Timestamp    `json:"created_at"`
	UpdatedAt   Timestamp    `json:"updated_at"`
}

type TaskCreate struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Priority    TaskPriority `json:"priority,omitempty"`
	DueDate     *Timestamp   `json:"due_date,omitempty"`
	Tags        []string     `json:"tags,omitempty"`
}

// TaskUpdate is a partial update; nil fields are left unchanged.
type TaskUpdate struct {
	Title       *string       `json:"title,omitempty"`
	Description *string       `json:"description,omitempty"`
	Status      *TaskStatus   `json:"status,omitempty"`
	Priority    *TaskPriority `json:"priority,omitempty"`
	DueDate     *Timestamp    `json:"due_date,omitempty"`
	Tags        []string      `json:"tags,omitempty"`
}

// TaskFilter narrows ListTasks. Zero values mean "no filter" and the server default limit.
type TaskFilter struct {
	Status TaskStatus
	Limit  int
}

func (c *Client) ListTasks(ctx context.Context, filter TaskFilter) ([]Task, error) {
	query := url.Values{}
	if filter.Status != "" {
		query.Set("status", string(filter.Status))
	}
	if filter.Limit > 0 {
		query.Set("limit", strconv.Itoa(filter.Limit))
	}

	var out []Task
	if err := c.do(ctx, http.MethodGet, "/api/tasks/", query, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetTask(ctx context.Context, id int) (Task, error) {
	var out Task
	err := c.do(ctx, http.MethodGet, taskPath(id), nil, nil, &out)
	return out, err
}

func (c *Client) CreateTask(ctx context.Context, task TaskCreate) (Task, error) {
	var out Task
	err := c.do(ctx, http.MethodPost, "/api/tasks/", nil, task, &out)
	return out, err
}

func (c *Client) UpdateTask(ctx context.Context, id int, update TaskUpdate) (Task, error) {
	var out Task
	err := c.do(ctx, http.MethodPut, taskPath(id), nil, update, &out)
	return out, err
}

// CompleteTask marks a task completed.
func (c *Client) CompleteTask(ctx context.Context, id int) (Task, error) {
	status := TaskCompleted
	return c.UpdateTask(ctx, id, TaskUpdate{Status: &status})
}

func (c *Client) DeleteTask(ctx context.Context, id int) error {
	return c.do(ctx, http.MethodDelete, taskPath(id), nil, nil, nil)
}

func taskPath(id int) string {
	return "/api/tasks/" + strconv.Itoa(id)
}
