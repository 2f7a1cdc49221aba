// Package users отвечает за регистрацию, вход и роли пользователей.
package users

import (
	"context"
	"errors"
	"fmt"
	"net/mail"
	"strings"

	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"agent-radar/internal/domain"
)

const minPasswordLen = 6

var (
	ErrInvalidEmail   = errors.New("邮箱格式不正确")
	ErrWeakPassword   = errors.New("密码至少 6 位")
	ErrSelfDelete     = errors.New("不能删除自己")
	ErrSelfRoleChange = errors.New("不能修改自己的角色")
	ErrInvalidRole    = errors.New("未知角色")
)

// Service управляет учётными записями.
type Service struct {
	repo        domain.UserRepo
	adminEmails []string
	cost        int
	log         zerolog.Logger
}

// NewService создаёт сервис пользователей. adminEmails задаёт адреса администраторов.
func NewService(repo domain.UserRepo, adminEmails []string, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		adminEmails: adminEmails,
		cost:        bcrypt.DefaultCost,
		log:         logger.With().Str("component", "users").Logger(),
	}
}

// Register создаёт пользователя с bcrypt-хэшем пароля и сразу сверяет роль со списком администраторов.
func (s *Service) Register(ctx context.Context, email, password, name string) (domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.User{}, err
	}
	if len(password) < minPasswordLen {
		return domain.User{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return domain.User{}, fmt.Errorf("хэширование пароля: %w", err)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		name, _, _ = strings.Cut(email, "@")
	}
	user, err := s.repo.CreateUser(ctx, domain.User{
		Email:        email,
		PasswordHash: string(hash),
		Name:         name,
		Role:         domain.UserRoleUser,
	})
	if err != nil {
		return domain.User{}, err
	}
	s.log.Info().Int64("user_id", user.ID).Msg("users: пользователь зарегистрирован")
	return s.ReconcileRole(ctx, user)
}

// Login проверяет пароль и сверяет роль.
func (s *Service) Login(ctx context.Context, email, password string) (domain.User, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	user, err := s.repo.GetUserByEmail(ctx, email)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("получение пользователя: %w", err)
	}
	if user.PasswordHash == "" {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return domain.User{}, domain.ErrInvalidCredentials
	}
	return s.ReconcileRole(ctx, user)
}

// ReconcileRole повышает пользователя до администратора, если его адрес есть в списке.
// Повторный вызов ничего не меняет.
func (s *Service) ReconcileRole(ctx context.Context, user domain.User) (domain.User, error) {
	role := domain.RoleForEmail(user.Role, user.Email, s.adminEmails)
	if role == user.Role {
		return user, nil
	}
	if err := s.repo.UpdateUserRole(ctx, user.ID, role); err != nil {
		return domain.User{}, fmt.Errorf("обновление роли: %w", err)
	}
	s.log.Info().Int64("user_id", user.ID).Str("role", string(role)).Msg("users: роль обновлена по списку администраторов")
	user.Role = role
	return user, nil
}

// Get возвращает пользователя по идентификатору.
func (s *Service) Get(ctx context.Context, id int64) (domain.User, error) {
	return s.repo.GetUserByID(ctx, id)
}

// List возвращает всех пользователей.
func (s *Service) List(ctx context.Context) ([]domain.User, error) {
	return s.repo.ListUsers(ctx)
}

// SetRole меняет роль пользователя. Администратор не может менять роль самому себе.
func (s *Service) SetRole(ctx context.Context, actorID, id int64, role domain.UserRole) error {
	if role != domain.UserRoleUser && role != domain.UserRoleAdmin {
		return ErrInvalidRole
	}
	if actorID == id {
		return ErrSelfRoleChange
	}
	if _, err := s.repo.GetUserByID(ctx, id); err != nil {
		return err
	}
	return s.repo.UpdateUserRole(ctx, id, role)
}

// Delete удаляет пользователя вместе с каналами, расписанием, источниками и журналом.
func (s *Service) Delete(ctx context.Context, actorID, id int64) error {
	if actorID == id {
		return ErrSelfDelete
	}
	if err := s.repo.DeleteUser(ctx, id); err != nil {
		return err
	}
	s.log.Info().Int64("user_id", id).Int64("actor", actorID).Msg("users: пользователь удалён")
	return nil
}

func normalizeEmail(raw string) (string, error) {
	email := strings.ToLower(strings.TrimSpace(raw))
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", ErrInvalidEmail
	}
	return email, nil
}
