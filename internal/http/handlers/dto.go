package handlers

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/pribylovaa/go-task-manager/internal/models"
)

// Внешние модели REST (camelCase) и их конвертация из доменных.

type registerRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

type authResponse struct {
	AccessToken     string        `json:"accessToken"`
	RefreshToken    string        `json:"refreshToken"`
	AccessExpiresAt int64         `json:"accessExpiresAt"` // Unix UTC
	User            *userResponse `json:"user,omitempty"`
}

type userResponse struct {
	ID            string    `json:"id"`
	Email         string    `json:"email"`
	Name          string    `json:"name"`
	AvatarURL     string    `json:"avatarUrl,omitempty"`
	OAuthProvider string    `json:"oauthProvider,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

type presignRequest struct {
	ContentType   string `json:"contentType"`
	ContentLength int64  `json:"contentLength"`
}

type presignResponse struct {
	UploadURL       string            `json:"uploadUrl"`
	AvatarKey       string            `json:"avatarKey"`
	ExpiresIn       int64             `json:"expiresIn"` // секунды
	RequiredHeaders map[string]string `json:"requiredHeaders"`
}

type confirmAvatarRequest struct {
	AvatarKey string `json:"avatarKey"`
}

type projectRequest struct {
	Name *string `json:"name"`
}

type memberRequest struct {
	UserID string `json:"userId"`
}

type projectResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	OwnerID   string    `json:"ownerId"`
	MemberIDs []string  `json:"memberIds"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type activityResponse struct {
	ID        string            `json:"id"`
	TaskID    string            `json:"taskId,omitempty"`
	ProjectID string            `json:"projectId"`
	UserID    string            `json:"userId"`
	Action    string            `json:"action"`
	Metadata  map[string]string `json:"metadata"`
	Timestamp time.Time         `json:"timestamp"`
}

type subtaskDTO struct {
	Title  string `json:"title"`
	IsDone bool   `json:"isDone"`
}

type reminderDTO struct {
	Method string    `json:"method"`
	Time   time.Time `json:"time"`
}

type createTaskRequest struct {
	Title       string        `json:"title"`
	Description string        `json:"description"`
	ProjectID   string        `json:"projectId"`
	AssigneeID  string        `json:"assigneeId"`
	DueDate     *time.Time    `json:"dueDate"`
	Priority    string        `json:"priority"`
	Labels      []string      `json:"labels"`
	Subtasks    []subtaskDTO  `json:"subtasks"`
	Reminders   []reminderDTO `json:"reminders"`
}

// updateTaskRequest — частичное обновление: отсутствующее поле не меняется,
// "dueDate": null снимает срок.
type updateTaskRequest struct {
	Title       *string        `json:"title"`
	Description *string        `json:"description"`
	ProjectID   *string        `json:"projectId"`
	AssigneeID  *string        `json:"assigneeId"`
	DueDate     optionalTime   `json:"dueDate"`
	Priority    *string        `json:"priority"`
	Labels      *[]string      `json:"labels"`
	Subtasks    *[]subtaskDTO  `json:"subtasks"`
	Reminders   *[]reminderDTO `json:"reminders"`
	IsCompleted *bool          `json:"isCompleted"`
}

type taskResponse struct {
	ID          string        `json:"id"`
	Title       string        `json:"title"`
	Description string        `json:"description"`
	ProjectID   string        `json:"projectId"`
	AssigneeID  string        `json:"assigneeId"`
	CreatorID   string        `json:"creatorId"`
	DueDate     *time.Time    `json:"dueDate"`
	Priority    string        `json:"priority"`
	Labels      []string      `json:"labels"`
	Subtasks    []subtaskDTO  `json:"subtasks"`
	Reminders   []reminderDTO `json:"reminders"`
	IsCompleted bool          `json:"isCompleted"`
	CreatedAt   time.Time     `json:"createdAt"`
	UpdatedAt   time.Time     `json:"updatedAt"`
}

// optionalTime различает отсутствующее поле, null и значение.
type optionalTime struct {
	Set   bool
	Value *time.Time
}

func (o *optionalTime) UnmarshalJSON(data []byte) error {
	o.Set = true
	if bytes.Equal(data, []byte("null")) {
		o.Value = nil
		return nil
	}

	var t time.Time
	if err := json.Unmarshal(data, &t); err != nil {
		return err
	}
	o.Value = &t
	return nil
}

func userFromModel(u *models.PublicUser) *userResponse {
	if u == nil {
		return nil
	}
	return &userResponse{
		ID:            u.ID,
		Email:         u.Email,
		Name:          u.Name,
		AvatarURL:     u.AvatarURL,
		OAuthProvider: u.OAuthProvider,
		CreatedAt:     u.CreatedAt,
		UpdatedAt:     u.UpdatedAt,
	}
}

func authFromTokens(tp models.TokenPair, u *models.PublicUser) authResponse {
	return authResponse{
		AccessToken:     tp.AccessToken,
		RefreshToken:    tp.RefreshToken,
		AccessExpiresAt: tp.AccessExpiresAt.Unix(),
		User:            userFromModel(u),
	}
}

func projectFromModel(p *models.Project) projectResponse {
	members := p.MemberIDs
	if members == nil {
		members = []string{}
	}
	return projectResponse{
		ID:        p.ID,
		Name:      p.Name,
		OwnerID:   p.OwnerID,
		MemberIDs: members,
		CreatedAt: p.CreatedAt,
		UpdatedAt: p.UpdatedAt,
	}
}

func activityFromModel(a models.Activity) activityResponse {
	md := a.Metadata
	if md == nil {
		md = map[string]string{}
	}
	return activityResponse{
		ID:        a.ID,
		TaskID:    a.TaskID,
		ProjectID: a.ProjectID,
		UserID:    a.UserID,
		Action:    string(a.Action),
		Metadata:  md,
		Timestamp: a.Timestamp,
	}
}

func taskFromModel(t *models.Task) taskResponse {
	out := taskResponse{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		ProjectID:   t.ProjectID,
		AssigneeID:  t.AssigneeID,
		CreatorID:   t.CreatorID,
		DueDate:     t.DueDate,
		Priority:    string(t.Priority),
		Labels:      t.Labels,
		Subtasks:    make([]subtaskDTO, 0, len(t.Subtasks)),
		Reminders:   make([]reminderDTO, 0, len(t.Reminders)),
		IsCompleted: t.IsCompleted,
		CreatedAt:   t.CreatedAt,
		UpdatedAt:   t.UpdatedAt,
	}
	if out.Labels == nil {
		out.Labels = []string{}
	}
	for _, s := range t.Subtasks {
		out.Subtasks = append(out.Subtasks, subtaskDTO{Title: s.Title, IsDone: s.IsDone})
	}
	for _, r := range t.Reminders {
		out.Reminders = append(out.Reminders, reminderDTO{Method: string(r.Method), Time: r.Time})
	}
	return out
}

func subtasksToModel(in []subtaskDTO) []models.Subtask {
	if in == nil {
		return nil
	}
	out := make([]models.Subtask, 0, len(in))
	for _, s := range in {
		out = append(out, models.Subtask{Title: s.Title, IsDone: s.IsDone})
	}
	return out
}

func remindersToModel(in []reminderDTO) []models.Reminder {
	if in == nil {
		return nil
	}
	out := make([]models.Reminder, 0, len(in))
	for _, r := range in {
		out = append(out, models.Reminder{Method: models.ReminderMethod(r.Method), Time: r.Time})
	}
	return out
}

func (in updateTaskRequest) toPatch() models.TaskPatch {
	p := models.TaskPatch{
		Title:       in.Title,
		Description: in.Description,
		ProjectID:   in.ProjectID,
		AssigneeID:  in.AssigneeID,
		Labels:      in.Labels,
		IsCompleted: in.IsCompleted,
	}
	if in.DueDate.Set {
		p.DueDate = in.DueDate.Value
		p.ClearDue = in.DueDate.Value == nil
	}
	if in.Priority != nil {
		prio := models.Priority(*in.Priority)
		p.Priority = &prio
	}
	if in.Subtasks != nil {
		s := subtasksToModel(*in.Subtasks)
		p.Subtasks = &s
	}
	if in.Reminders != nil {
		r := remindersToModel(*in.Reminders)
		p.Reminders = &r
	}
	return p
}
