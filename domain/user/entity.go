package user

import (
	"strings"
	"time"
)

// User represents a registered account.
type User struct {
	ID           string    `gorm:"primaryKey" json:"id"`
	FirstName    string    `json:"firstName"`
	LastName     string    `json:"lastName"`
	Email        string    `gorm:"uniqueIndex" json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// FullName returns the user's display name.
func (u *User) FullName() string {
	return u.FirstName + " " + u.LastName
}

// Handle returns the stable per-account author label: the local part of the
// email address.
func (u *User) Handle() string {
	return HandleFromEmail(u.Email)
}

// HandleFromEmail derives the author label for an email address.
func HandleFromEmail(email string) string {
	if i := strings.Index(email, "@"); i >= 0 {
		return email[:i]
	}
	return email
}
