package models

import "time"

// ActivityAction — тип события журнала.
type ActivityAction string

const (
	ActionCreated   ActivityAction = "created"
	ActionUpdate    ActivityAction = "update"
	ActionCompleted ActivityAction = "completed"
	ActionDelete    ActivityAction = "delete"
)

// Activity — запись журнала действий над проектами и задачами.
// TaskID пуст для событий уровня проекта.
type Activity struct {
	ID        string
	TaskID    string
	ProjectID string
	UserID    string
	Action    ActivityAction
	Metadata  map[string]string
	Timestamp time.Time
}
