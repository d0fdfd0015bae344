package models

import (
	"time"

	"gorm.io/gorm"
)

// User represents a registered account. Passwords are stored as bcrypt hashes only.
type User struct {
	ID           uint   `gorm:"primaryKey" json:"id"`
	Username     string `gorm:"size:16;uniqueIndex;not null" json:"username"`
	Email        string `gorm:"size:255;uniqueIndex;not null" json:"email"`
	FirstName    string `gorm:"size:50" json:"first_name"`
	LastName     string `gorm:"size:50" json:"last_name"`
	Description  string `gorm:"size:150" json:"description"`
	Slug         string `gorm:"size:64;uniqueIndex;not null" json:"slug"`
	PasswordHash string `gorm:"size:255" json:"-"`
	// PasswordVersion increases on every credential change and is the
	// revocation signal for outstanding password-reset tokens.
	PasswordVersion int       `gorm:"default:0" json:"-"`
	DateJoined      time.Time `json:"date_joined"`
	IsActive        bool      `gorm:"default:true" json:"-"`
	IsStaff         bool      `gorm:"default:false" json:"-"`
	IsSuperuser     bool      `gorm:"default:false" json:"-"`
	IsAdmin         bool      `gorm:"default:false" json:"-"`
	UpdatedAt       time.Time `json:"-"`
	Posts           []Post    `gorm:"foreignKey:AuthorID" json:"-"`
}

// BeforeCreate hook ensures the join timestamp is set even when not provided.
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.DateJoined.IsZero() {
		u.DateJoined = time.Now()
	}
	return nil
}
