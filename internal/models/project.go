package models

import (
	"time"

	"github.com/google/uuid"
)

// Project is a creator-owned listing that other users can ask to join.
type Project struct {
	ID             uuid.UUID `json:"id"`
	CreatorID      uuid.UUID `json:"creator_id"`
	Title          string    `json:"title"`
	Description    string    `json:"description"`
	Domain         string    `json:"domain"`
	RequiredSkills []string  `json:"required_skills"`
	MaxTeamSize    *int      `json:"max_team_size"`
	IsPublic       bool      `json:"is_public"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// ProjectInput is the payload for creating or updating a project.
type ProjectInput struct {
	Title          string   `json:"title" validate:"required,max=200"`
	Description    string   `json:"description" validate:"max=5000"`
	Domain         string   `json:"domain" validate:"max=100"`
	RequiredSkills []string `json:"required_skills" validate:"max=50,dive,max=50"`
	MaxTeamSize    *int     `json:"max_team_size" validate:"omitempty,min=1,max=50"`
	IsPublic       *bool    `json:"is_public"`
}

func (in *ProjectInput) Normalize() {
	in.Title = trimSpace(in.Title)
	in.Description = trimSpace(in.Description)
	in.Domain = trimSpace(in.Domain)
	in.RequiredSkills = NormalizeTags(in.RequiredSkills)
}

// Public reports the is_public flag, defaulting to true.
func (in ProjectInput) Public() bool {
	return in.IsPublic == nil || *in.IsPublic
}

// ProjectMember is a user's request to join a project.
type ProjectMember struct {
	ID        uuid.UUID      `json:"id"`
	ProjectID uuid.UUID      `json:"project_id"`
	UserID    uuid.UUID      `json:"user_id"`
	Status    Status         `json:"status"`
	CreatedAt time.Time      `json:"created_at"`
	UpdatedAt time.Time      `json:"updated_at"`
	Profile   ProfileSummary `json:"profile"`
}
