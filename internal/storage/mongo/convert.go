package mongo

import (
	"strings"
	"time"

	"github.com/pribylovaa/go-task-manager/internal/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

type refreshTokenDoc struct {
	Token     string    `bson:"token"`
	ExpiresAt time.Time `bson:"expires_at"`
	CreatedAt time.Time `bson:"created_at"`
}

type userDoc struct {
	ID            primitive.ObjectID `bson:"_id,omitempty"`
	Email         string             `bson:"email"`
	Name          string             `bson:"name"`
	PasswordHash  string             `bson:"password_hash,omitempty"`
	OAuthProvider string             `bson:"oauth_provider,omitempty"`
	AvatarURL     string             `bson:"avatar_url,omitempty"`
	RefreshTokens []refreshTokenDoc  `bson:"refresh_tokens"`
	CreatedAt     time.Time          `bson:"created_at"`
	UpdatedAt     time.Time          `bson:"updated_at"`
}

type projectDoc struct {
	ID        primitive.ObjectID   `bson:"_id,omitempty"`
	Name      string               `bson:"name"`
	OwnerID   primitive.ObjectID   `bson:"owner_id"`
	MemberIDs []primitive.ObjectID `bson:"member_ids"`
	CreatedAt time.Time            `bson:"created_at"`
	UpdatedAt time.Time            `bson:"updated_at"`
}

type subtaskDoc struct {
	Title  string `bson:"title"`
	IsDone bool   `bson:"is_done"`
}

type reminderDoc struct {
	Method string    `bson:"method"`
	Time   time.Time `bson:"time"`
}

type taskDoc struct {
	ID          primitive.ObjectID `bson:"_id,omitempty"`
	Title       string             `bson:"title"`
	Description string             `bson:"description"`
	ProjectID   primitive.ObjectID `bson:"project_id"`
	AssigneeID  primitive.ObjectID `bson:"assignee_id"`
	CreatorID   primitive.ObjectID `bson:"creator_id"`
	DueDate     *time.Time         `bson:"due_date"`
	Priority    string             `bson:"priority"`
	Labels      []string           `bson:"labels"`
	Subtasks    []subtaskDoc       `bson:"subtasks"`
	Reminders   []reminderDoc      `bson:"reminders"`
	IsCompleted bool               `bson:"is_completed"`
	CreatedAt   time.Time          `bson:"created_at"`
	UpdatedAt   time.Time          `bson:"updated_at"`
}

type activityDoc struct {
	ID        primitive.ObjectID `bson:"_id,omitempty"`
	TaskID    primitive.ObjectID `bson:"task_id,omitempty"`
	ProjectID primitive.ObjectID `bson:"project_id"`
	UserID    primitive.ObjectID `bson:"user_id"`
	Action    string             `bson:"action"`
	Metadata  map[string]string  `bson:"metadata,omitempty"`
	Timestamp time.Time          `bson:"timestamp"`
}

// parseOID разбирает hex ObjectID; ok=false для пустой или некорректной строки.
func parseOID(id string) (primitive.ObjectID, bool) {
	oid, err := primitive.ObjectIDFromHex(strings.TrimSpace(id))
	if err != nil {
		return primitive.NilObjectID, false
	}

	return oid, true
}

func hexOrEmpty(oid primitive.ObjectID) string {
	if oid.IsZero() {
		return ""
	}

	return oid.Hex()
}

func refreshDocFromModel(e models.RefreshTokenEntry) refreshTokenDoc {
	return refreshTokenDoc{
		Token:     e.TokenHash,
		ExpiresAt: toMS(e.ExpiresAt),
		CreatedAt: toMS(e.CreatedAt),
	}
}

func userDocFromModel(u *models.User) userDoc {
	tokens := make([]refreshTokenDoc, 0, len(u.RefreshTokens))
	for _, e := range u.RefreshTokens {
		tokens = append(tokens, refreshDocFromModel(e))
	}

	return userDoc{
		Email:         u.Email,
		Name:          u.Name,
		PasswordHash:  u.PasswordHash,
		OAuthProvider: u.OAuthProvider,
		AvatarURL:     u.AvatarURL,
		RefreshTokens: tokens,
		CreatedAt:     toMS(u.CreatedAt),
		UpdatedAt:     toMS(u.UpdatedAt),
	}
}

func (d *userDoc) toModel() *models.User {
	tokens := make([]models.RefreshTokenEntry, 0, len(d.RefreshTokens))
	for _, rt := range d.RefreshTokens {
		tokens = append(tokens, models.RefreshTokenEntry{
			TokenHash: rt.Token,
			ExpiresAt: rt.ExpiresAt.UTC(),
			CreatedAt: rt.CreatedAt.UTC(),
		})
	}

	return &models.User{
		ID:            d.ID.Hex(),
		Email:         d.Email,
		Name:          d.Name,
		PasswordHash:  d.PasswordHash,
		OAuthProvider: d.OAuthProvider,
		AvatarURL:     d.AvatarURL,
		RefreshTokens: tokens,
		CreatedAt:     d.CreatedAt.UTC(),
		UpdatedAt:     d.UpdatedAt.UTC(),
	}
}

// oidsFromHex пропускает некорректные идентификаторы.
func oidsFromHex(ids []string) []primitive.ObjectID {
	out := make([]primitive.ObjectID, 0, len(ids))
	for _, id := range ids {
		if oid, ok := parseOID(id); ok {
			out = append(out, oid)
		}
	}

	return out
}

func (d *projectDoc) toModel() *models.Project {
	members := make([]string, 0, len(d.MemberIDs))
	for _, oid := range d.MemberIDs {
		members = append(members, oid.Hex())
	}

	return &models.Project{
		ID:        d.ID.Hex(),
		Name:      d.Name,
		OwnerID:   hexOrEmpty(d.OwnerID),
		MemberIDs: members,
		CreatedAt: d.CreatedAt.UTC(),
		UpdatedAt: d.UpdatedAt.UTC(),
	}
}

func taskDocFromModel(t *models.Task) taskDoc {
	d := taskDoc{
		Title:       t.Title,
		Description: t.Description,
		Priority:    string(t.Priority),
		Labels:      t.Labels,
		IsCompleted: t.IsCompleted,
		CreatedAt:   toMS(t.CreatedAt),
		UpdatedAt:   toMS(t.UpdatedAt),
	}
	if d.Labels == nil {
		d.Labels = []string{}
	}

	d.ProjectID, _ = parseOID(t.ProjectID)
	d.AssigneeID, _ = parseOID(t.AssigneeID)
	d.CreatorID, _ = parseOID(t.CreatorID)

	if t.DueDate != nil {
		due := toMS(*t.DueDate)
		d.DueDate = &due
	}

	d.Subtasks = make([]subtaskDoc, 0, len(t.Subtasks))
	for _, s := range t.Subtasks {
		d.Subtasks = append(d.Subtasks, subtaskDoc{Title: s.Title, IsDone: s.IsDone})
	}

	d.Reminders = make([]reminderDoc, 0, len(t.Reminders))
	for _, r := range t.Reminders {
		d.Reminders = append(d.Reminders, reminderDoc{Method: string(r.Method), Time: toMS(r.Time)})
	}

	return d
}

func (d *taskDoc) toModel() *models.Task {
	t := &models.Task{
		ID:          d.ID.Hex(),
		Title:       d.Title,
		Description: d.Description,
		ProjectID:   hexOrEmpty(d.ProjectID),
		AssigneeID:  hexOrEmpty(d.AssigneeID),
		CreatorID:   hexOrEmpty(d.CreatorID),
		Priority:    models.Priority(d.Priority),
		Labels:      d.Labels,
		IsCompleted: d.IsCompleted,
		CreatedAt:   d.CreatedAt.UTC(),
		UpdatedAt:   d.UpdatedAt.UTC(),
	}

	if d.DueDate != nil {
		due := d.DueDate.UTC()
		t.DueDate = &due
	}

	for _, s := range d.Subtasks {
		t.Subtasks = append(t.Subtasks, models.Subtask{Title: s.Title, IsDone: s.IsDone})
	}

	for _, r := range d.Reminders {
		t.Reminders = append(t.Reminders, models.Reminder{Method: models.ReminderMethod(r.Method), Time: r.Time.UTC()})
	}

	return t
}

func (d *activityDoc) toModel() models.Activity {
	return models.Activity{
		ID:        d.ID.Hex(),
		TaskID:    hexOrEmpty(d.TaskID),
		ProjectID: hexOrEmpty(d.ProjectID),
		UserID:    hexOrEmpty(d.UserID),
		Action:    models.ActivityAction(d.Action),
		Metadata:  d.Metadata,
		Timestamp: d.Timestamp.UTC(),
	}
}
