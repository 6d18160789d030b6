package models

import "time"

// Project — проект с владельцем и участниками.
type Project struct {
	ID        string
	Name      string
	OwnerID   string
	MemberIDs []string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// HasAccess сообщает, является ли userID владельцем или участником проекта.
func (p *Project) HasAccess(userID string) bool {
	if p.OwnerID == userID {
		return true
	}

	for _, id := range p.MemberIDs {
		if id == userID {
			return true
		}
	}

	return false
}
