package store

import (
	"fmt"
	"sort"
	"sync"

	"simplesync/internal/models"
)

// TaskList holds the tasks for the current session. Nothing here is
// persisted; the list lives and dies with the process.
type TaskList struct {
	mu    sync.Mutex
	tasks map[string]models.Task
}

// NewTaskList returns an empty session task list.
func NewTaskList() *TaskList {
	return &TaskList{tasks: make(map[string]models.Task)}
}

// Add creates a new task from the given fields and stores it.
func (l *TaskList) Add(title, date, clock string) (models.Task, error) {
	t, err := models.New(title, date, clock)
	if err != nil {
		return models.Task{}, err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.tasks[t.ID] = t
	return t, nil
}

// Update replaces the title, date and time of the task with the given id.
// ID and CreatedAt are preserved.
func (l *TaskList) Update(id, title, date, clock string) (models.Task, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	existing, ok := l.tasks[id]
	if !ok {
		return models.Task{}, fmt.Errorf("no task with id %s", id)
	}
	updated := existing
	updated.Title = title
	updated.Date = date
	updated.Time = clock
	if err := updated.Validate(); err != nil {
		return models.Task{}, err
	}
	l.tasks[id] = updated
	return updated, nil
}

// Remove deletes the task with the given id, if present.
func (l *TaskList) Remove(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.tasks, id)
}

// Get returns the task with the given id.
func (l *TaskList) Get(id string) (models.Task, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	t, ok := l.tasks[id]
	return t, ok
}

// All returns the tasks ordered newest first.
func (l *TaskList) All() []models.Task {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]models.Task, 0, len(l.tasks))
	for _, t := range l.tasks {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt != out[j].CreatedAt {
			return out[i].CreatedAt > out[j].CreatedAt
		}
		return out[i].ID < out[j].ID
	})
	return out
}
