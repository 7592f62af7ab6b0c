package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

const taskJSON = `{"id":7,"title":"buy milk","description":null,"status":"pending","priority":"medium",
"due_date":null,"tags":["home"],"created_at":"2026-10-19T09:30:00","updated_at":"2026-10-19T09:30:00Z"}`

func TestListTasksWithFilter(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodGet, r.Method)
		require.Equal(t, "/api/tasks/", r.URL.Path)
		require.Equal(t, "pending", r.URL.Query().Get("status"))
		require.Equal(t, "5", r.URL.Query().Get("limit"))
		_, _ = w.Write([]byte(`[{"id":1,"title":"a","status":"pending","priority":"low","tags":[],
"created_at":"2026-10-19T09:30:00Z","updated_at":"2026-10-19T09:30:00Z"}]`))
	})

	tasks, err := client.ListTasks(context.Background(), TaskFilter{Status: TaskPending, Limit: 5})
	require.NoError(t, err)
	require.Len(t, tasks, 1)
	require.Equal(t, PriorityLow, tasks[0].Priority)
}

func TestCreateTaskPostsPayload(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, "buy milk", body["title"])
		require.Equal(t, "high", body["priority"])
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":9,"title":"buy milk","status":"pending","priority":"high","tags":[],
"created_at":"2026-10-19T09:30:00Z","updated_at":"2026-10-19T09:30:00Z"}`))
	})

	task, err := client.CreateTask(context.Background(), TaskCreate{Title: "buy milk", Priority: PriorityHigh})
	require.NoError(t, err)
	require.Equal(t, 9, task.ID)
	require.Equal(t, TaskPending, task.Status)
}

func TestCompleteTaskSendsStatusOnly(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPut, r.Method)
		require.Equal(t, "/api/tasks/9", r.URL.Path)
		var body map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		require.Equal(t, map[string]any{"status": "completed"}, body)
		_, _ = w.Write([]byte(`{"id":9,"title":"x","status":"completed","priority":"medium","tags":[],
"created_at":"2026-10-19T09:30:00Z","updated_at":"2026-10-19T10:30:00Z"}`))
	})

	task, err := client.CompleteTask(context.Background(), 9)
	require.NoError(t, err)
	require.Equal(t, TaskCompleted, task.Status)
}

func TestDeleteTaskNoContent(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodDelete, r.Method)
		w.WriteHeader(http.StatusNoContent)
	})

	require.NoError(t, client.DeleteTask(context.Background(), 3))
}

func TestGetTaskNotFound(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte(`{"detail":"Task with id 42 not found"}`))
	})

	_, err := client.GetTask(context.Background(), 42)
	require.True(t, IsNotFound(err))
	require.Contains(t, err.Error(), "Task with id 42 not found")
}

func TestGetTaskDecodesNaiveTimestamps(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/api/tasks/7", r.URL.Path)
		_, _ = w.Write([]byte(taskJSON))
	})

	task, err := client.GetTask(context.Background(), 7)
	require.NoError(t, err)
	require.Equal(t, "buy milk", task.Title)
	require.Nil(t, task.DueDate)
	require.Equal(t, []string{"home"}, task.Tags)
	require.Equal(t, time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC), task.CreatedAt.Time)
	require.True(t, task.CreatedAt.Equal(task.UpdatedAt.Time))
}

func TestTaskStatusValid(t *testing.T) {
	require.True(t, TaskInProgress.Valid())
	require.False(t, TaskStatus("archived").Valid())
}
