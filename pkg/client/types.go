package client

import "time"

type User struct {
	ID        string    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	AvatarURL string    `json:"avatarUrl,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Project struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	MemberIDs []string  `json:"memberIds"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type Subtask struct {
	Title  string `json:"title"`
	IsDone bool   `json:"isDone"`
}

type Reminder struct {
	Time   time.Time `json:"time"`
	Method string    `json:"method"`
}

type Task struct {
	ID          string     `json:"id"`
	Title       string     `json:"title"`
	Description string     `json:"description"`
	ProjectID   string     `json:"projectId"`
	CreatorID   string     `json:"creatorId"`
	AssigneeID  string     `json:"assigneeId"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Priority    string     `json:"priority"`
	Labels      []string   `json:"labels"`
	Subtasks    []Subtask  `json:"subtasks"`
	Reminders   []Reminder `json:"reminders"`
	IsCompleted bool       `json:"isCompleted"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// NewTask — тело POST /tasks. Пустой AssigneeID — задача назначается создателю.
type NewTask struct {
	Title       string     `json:"title"`
	Description string     `json:"description,omitempty"`
	ProjectID   string     `json:"projectId"`
	AssigneeID  string     `json:"assigneeId,omitempty"`
	DueDate     *time.Time `json:"dueDate,omitempty"`
	Priority    string     `json:"priority,omitempty"`
	Labels      []string   `json:"labels,omitempty"`
}

type Activity struct {
	ID        string            `json:"id"`
	TaskID    string            `json:"taskId"`
	ProjectID string            `json:"projectId"`
	UserID    string            `json:"userId"`
	Action    string            `json:"action"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
}

type authResponse struct {
	AccessToken     string `json:"accessToken"`
	RefreshToken    string `json:"refreshToken"`
	AccessExpiresAt int64  `json:"accessExpiresAt"`
	User            *User  `json:"user,omitempty"`
}

func (a authResponse) session() Session {
	return Session{
		AccessToken:     a.AccessToken,
		RefreshToken:    a.RefreshToken,
		AccessExpiresAt: time.Unix(a.AccessExpiresAt, 0).UTC(),
	}
}
