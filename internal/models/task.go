package models

import "time"

// Priority — приоритет задачи.
type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
	PriorityUrgent Priority = "urgent"
)

// Valid проверяет, что значение входит в перечисление.
func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityUrgent:
		return true
	}

	return false
}

// ReminderMethod — канал доставки напоминания.
type ReminderMethod string

const (
	ReminderPush  ReminderMethod = "push"
	ReminderEmail ReminderMethod = "email"
)

func (m ReminderMethod) Valid() bool {
	return m == ReminderPush || m == ReminderEmail
}

type Subtask struct {
	Title  string
	IsDone bool
}

type Reminder struct {
	Method ReminderMethod
	Time   time.Time
}

// Task — задача внутри проекта.
// AssigneeID по умолчанию совпадает с CreatorID.
type Task struct {
	ID          string
	Title       string
	Description string
	ProjectID   string
	AssigneeID  string
	CreatorID   string
	DueDate     *time.Time
	Priority    Priority
	Labels      []string
	Subtasks    []Subtask
	Reminders   []Reminder
	IsCompleted bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// CanModify сообщает, может ли userID менять или удалять задачу.
func (t *Task) CanModify(userID string) bool {
	return t.CreatorID == userID || t.AssigneeID == userID
}

// TaskFilter — фильтр выдачи задач исполнителя.
type TaskFilter struct {
	AssigneeID string
	ProjectID  string
	Label      string
}

// TaskPatch — частичное обновление задачи; nil означает «не менять».
type TaskPatch struct {
	Title       *string
	Description *string
	ProjectID   *string
	AssigneeID  *string
	DueDate     *time.Time
	ClearDue    bool
	Priority    *Priority
	Labels      *[]string
	Subtasks    *[]Subtask
	Reminders   *[]Reminder
	IsCompleted *bool
}
