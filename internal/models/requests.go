package models

import "github.com/google/uuid"

type SignupRequest struct {
	Name     string `json:"name" validate:"notblank,max=100"`
	Email    string `json:"email" validate:"required,email,max=255"`
	Password string `json:"password" validate:"required,min=8,max=128"`
}

type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type ConnectionRequest struct {
	ReceiverID uuid.UUID `json:"receiver_id" validate:"required"`
}

type SendMessageRequest struct {
	ReceiverID uuid.UUID `json:"receiver_id" validate:"required"`
	Content    string    `json:"content" validate:"notblank,max=4000"`
}

// Normalize trims Content so the length limit applies to what is stored.
func (m *SendMessageRequest) Normalize() {
	m.Content = trimSpace(m.Content)
}

type PhotoVisibilityRequest struct {
	Visible bool `json:"visible"`
}

type RoleRequest struct {
	UserID uuid.UUID `json:"user_id" validate:"required"`
	Role   Role      `json:"role" validate:"approle"`
}

type ContactRequest struct {
	Name    string `json:"name" validate:"notblank,max=100"`
	Email   string `json:"email" validate:"required,email,max=255"`
	Subject string `json:"subject" validate:"notblank,max=200"`
	Message string `json:"message" validate:"notblank,max=5000"`
}
