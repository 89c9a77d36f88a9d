package models

import (
	"time"

	"github.com/gocql/gocql"
)

type User struct {
	ID           gocql.UUID `json:"user_id"`
	Name         string     `json:"name,omitempty"`
	Email        string     `json:"email"`
	PasswordHash string     `json:"-"`
	CreatedAt    time.Time  `json:"created_at"`
}
