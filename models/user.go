package models

import "time"

// UserAccount é o perfil de um usuário identificado pelo seu principal.
type UserAccount struct {
	Principal     string    `json:"principal"`
	Username      string    `json:"username"`
	Email         string    `json:"email"`
	CreatedAt     time.Time `json:"created_at"`
	TotalInvested int64     `json:"total_invested"`
	Verified      bool      `json:"verified"`
}
