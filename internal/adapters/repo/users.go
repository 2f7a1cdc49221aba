package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	"agent-radar/internal/domain"
	"agent-radar/internal/infra/metrics"
)

const userColumns = `id, email, password_hash, name, github_id, role, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (domain.User, error) {
	var (
		u        domain.User
		githubID *string
		role     string
	)
	if err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &u.Name, &githubID, &role, &u.CreatedAt); err != nil {
		return domain.User{}, err
	}
	u.GitHubID = derefString(githubID)
	u.Role = domain.UserRole(role)
	return u, nil
}

// CreateUser регистрирует пользователя.
func (p *Postgres) CreateUser(ctx context.Context, user domain.User) (domain.User, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()
	if user.Role == "" {
		user.Role = domain.UserRoleUser
	}

	start := time.Now()
	created, err := scanUser(p.pool.QueryRow(ctx, `
INSERT INTO users (email, password_hash, name, github_id, role)
VALUES ($1,$2,$3,$4,$5)
RETURNING `+userColumns,
		strings.ToLower(strings.TrimSpace(user.Email)), user.PasswordHash, user.Name, nullString(user.GitHubID), string(user.Role)))
	metrics.ObserveNetworkRequest("postgres", "users_insert", "users", start, err)
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return domain.User{}, domain.ErrEmailTaken
	}
	return created, err
}

// GetUserByEmail ищет пользователя по email без учёта регистра.
func (p *Postgres) GetUserByEmail(ctx context.Context, email string) (domain.User, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	u, err := scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, strings.ToLower(strings.TrimSpace(email))))
	metrics.ObserveNetworkRequest("postgres", "users_get_by_email", "users", start, err)
	return u, notFound(err)
}

// GetUserByID возвращает пользователя.
func (p *Postgres) GetUserByID(ctx context.Context, id int64) (domain.User, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	u, err := scanUser(p.pool.QueryRow(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id))
	metrics.ObserveNetworkRequest("postgres", "users_get_by_id", "users", start, err)
	return u, notFound(err)
}

// UpdateUserRole меняет роль пользователя.
func (p *Postgres) UpdateUserRole(ctx context.Context, id int64, role domain.UserRole) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, `UPDATE users SET role = $2 WHERE id = $1`, id, string(role))
	metrics.ObserveNetworkRequest("postgres", "users_update_role", "users", start, err)
	return err
}

// ListUsers возвращает всех пользователей.
func (p *Postgres) ListUsers(ctx context.Context) ([]domain.User, error) {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	rows, err := p.pool.Query(ctx, `SELECT `+userColumns+` FROM users ORDER BY id`)
	metrics.ObserveNetworkRequest("postgres", "users_list", "users", start, err)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, u)
	}
	return out, rows.Err()
}

// DeleteUser удаляет пользователя; каналы, расписание, источники и логи удаляются каскадом.
func (p *Postgres) DeleteUser(ctx context.Context, id int64) error {
	ctx, cancel := p.connCtxWithParent(ctx)
	defer cancel()

	start := time.Now()
	tag, err := p.pool.Exec(ctx, `DELETE FROM users WHERE id = $1`, id)
	metrics.ObserveNetworkRequest("postgres", "users_delete", "users", start, err)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return domain.ErrNotFound
	}
	return nil
}
