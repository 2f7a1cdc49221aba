package domain

import (
	"strings"
	"time"
)

// UserRole описывает роль пользователя.
type UserRole string

const (
	UserRoleUser  UserRole = "user"
	UserRoleAdmin UserRole = "admin"
)

// User описывает учётную запись.
type User struct {
	ID           int64     `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Name         string    `json:"name"`
	GitHubID     string    `json:"github_id,omitempty"`
	Role         UserRole  `json:"role"`
	CreatedAt    time.Time `json:"created_at"`
}

// IsAdmin сообщает, есть ли у пользователя права администратора.
func (u User) IsAdmin() bool {
	return u.Role == UserRoleAdmin
}

// RoleForEmail вычисляет роль по списку администраторов.
// Пользователь, уже ставший админом, роль не теряет.
func RoleForEmail(current UserRole, email string, adminEmails []string) UserRole {
	if current == UserRoleAdmin {
		return UserRoleAdmin
	}
	normalized := strings.ToLower(strings.TrimSpace(email))
	if normalized == "" {
		return UserRoleUser
	}
	for _, admin := range adminEmails {
		if strings.ToLower(strings.TrimSpace(admin)) == normalized {
			return UserRoleAdmin
		}
	}
	return UserRoleUser
}
