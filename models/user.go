package models

import "time"

// User is a back-office account. Password is write-only and never persisted;
// PasswordHash is persisted and never rendered.
type User struct {
	ID           uint       `json:"id" gorm:"primaryKey"`
	Username     string     `json:"username" gorm:"size:150;not null;uniqueIndex" validate:"required,max=150"`
	Email        string     `json:"email" gorm:"size:254" validate:"omitempty,email"`
	FirstName    string     `json:"first_name" gorm:"size:150" validate:"max=150"`
	LastName     string     `json:"last_name" gorm:"size:150" validate:"max=150"`
	Password     string     `json:"password,omitempty" gorm:"-"`
	PasswordHash string     `json:"-" gorm:"size:128;not null"`
	IsStaff      bool       `json:"is_staff" gorm:"not null"`
	IsSuperuser  bool       `json:"is_superuser" gorm:"not null"`
	IsActive     bool       `json:"is_active" gorm:"not null"`
	LastLogin    *time.Time `json:"last_login"`
	DateJoined   time.Time  `json:"date_joined" gorm:"autoCreateTime"`
}

// UserSummary is the projection returned by a successful admin login.
type UserSummary struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	Email       string `json:"email"`
	IsSuperuser bool   `json:"is_superuser"`
}

func (u User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Email: u.Email, IsSuperuser: u.IsSuperuser}
}
