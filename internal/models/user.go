package models

import (
	"time"
)

type User struct {
	ID                string
	Email             string // stored lower-cased
	PasswordHash      string // bcrypt, never serialized
	Name              string
	IsEmailVerified   bool
	LastLogin         *time.Time
	PasswordChangedAt *time.Time // login tokens issued before this are rejected
	CreatedAt         time.Time
	UpdatedAt         time.Time
}
