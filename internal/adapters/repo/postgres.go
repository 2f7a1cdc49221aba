package repo

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"agent-radar/internal/domain"
	"agent-radar/internal/infra/metrics"
)

//go:embed schema.sql
var schemaSQL string

// Postgres реализует репозитории на основе pgxpool.
type Postgres struct {
	pool *pgxpool.Pool
}

var (
	_ domain.TrendingRepo    = (*Postgres)(nil)
	_ domain.AiItemRepo      = (*Postgres)(nil)
	_ domain.SkillsRepo      = (*Postgres)(nil)
	_ domain.UserRepo        = (*Postgres)(nil)
	_ domain.ChannelRepo     = (*Postgres)(nil)
	_ domain.ScheduleRepo    = (*Postgres)(nil)
	_ domain.SourceRepo      = (*Postgres)(nil)
	_ domain.PushLogRepo     = (*Postgres)(nil)
	_ domain.JobRunRepo      = (*Postgres)(nil)
	_ domain.RetentionRepo   = (*Postgres)(nil)
	_ domain.TranslationRepo = (*Postgres)(nil)
	_ domain.CatalogRepo     = (*Postgres)(nil)
	_ domain.AdminRepo       = (*Postgres)(nil)
)

// NewPostgres создаёт адаптер БД.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Migrate создаёт недостающие таблицы и индексы.
func (p *Postgres) Migrate(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	start := time.Now()
	_, err := p.pool.Exec(ctx, schemaSQL)
	metrics.ObserveNetworkRequest("postgres", "migrate", "schema", start, err)
	if err != nil {
		return fmt.Errorf("миграция схемы: %w", err)
	}
	return nil
}

func (p *Postgres) connCtxWithParent(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	if _, ok := ctx.Deadline(); ok {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, 5*time.Second)
}

func notFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.ErrNotFound
	}
	return err
}

func nullString(value string) *string {
	if value == "" {
		return nil
	}
	return &value
}

func derefString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}

// inTx выполняет fn в транзакции и откатывает её при ошибке.
func (p *Postgres) inTx(ctx context.Context, operation string, fn func(tx pgx.Tx) error) error {
	start := time.Now()
	tx, err := p.pool.BeginTx(ctx, pgx.TxOptions{})
	metrics.ObserveNetworkRequest("postgres", "begin_tx", operation, start, err)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(tx); err != nil {
		return err
	}
	start = time.Now()
	err = tx.Commit(ctx)
	metrics.ObserveNetworkRequest("postgres", "commit_tx", operation, start, err)
	return err
}
