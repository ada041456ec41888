// Package model defines the data structures used throughout the application.
// In Go, we use structs to represent our data, similar to classes in other languages,
// but without inheritance. Go favours composition over inheritance.
package model

import "time"

// Task is a stored task record. It carries OwnerID, so it never leaves the
// service layer as-is; handlers only ever see a TaskView.
type Task struct {
	ID        int64
	Title     string
	Completed bool
	CreatedAt time.Time
	OwnerID   int64
}

// TaskView is the outward projection of a Task.
//
// The `json:"..."` tags tell Go's encoding/json package how to serialize
// this struct. There is deliberately no owner field here.
type TaskView struct {
	ID        int64     `json:"id"`
	Title     string    `json:"title"`
	Completed bool      `json:"completed"`
	CreatedAt time.Time `json:"createdAt"`
}

// NewTaskView copies the public fields of t into a TaskView.
func NewTaskView(t Task) TaskView {
	return TaskView{
		ID:        t.ID,
		Title:     t.Title,
		Completed: t.Completed,
		CreatedAt: t.CreatedAt,
	}
}

// NewTaskViews converts a slice of tasks. It never returns nil so an empty
// list encodes as [] rather than null.
func NewTaskViews(tasks []Task) []TaskView {
	views := make([]TaskView, 0, len(tasks))
	for _, t := range tasks {
		views = append(views, NewTaskView(t))
	}
	return views
}
