package domain

import "time"

// User is a registered portal account.
type User struct {
	ID           int64
	Name         string
	Email        string
	PasswordHash string
	Role         Role
	CompanyName  string
	PhoneNumber  string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
