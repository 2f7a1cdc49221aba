package jobs

import (
	"context"
	"fmt"
	"reflect"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"agent-radar/internal/domain"
	"agent-radar/internal/infra/metrics"
)

// Причины пропуска запуска.
const (
	ReasonRunning = "running"
	ReasonFresh   = "fresh"
)

// Operation выполняет тело задачи. Результат попадает в Result.Value.
type Operation func(ctx context.Context) (any, error)

// Counter позволяет результату задачи сообщить собственное количество записей.
type Counter interface {
	Count() int
}

// Options описывает сообщение, сохраняемое в JobRun.
// MessageFunc имеет приоритет над Message, а Message над Reason.
type Options struct {
	Message     string
	MessageFunc func(result any) string
	Reason      string
}

func (o Options) message(result any) string {
	if o.MessageFunc != nil {
		return o.MessageFunc(result)
	}
	if o.Message != "" {
		return o.Message
	}
	return o.Reason
}

// Result описывает итог запуска задачи.
type Result struct {
	Skipped   bool       `json:"skipped"`
	Reason    string     `json:"reason,omitempty"`
	LastRunAt *time.Time `json:"last_run_at,omitempty"`
	Count     int        `json:"count"`
	Value     any        `json:"-"`
}

// Runner исключает параллельный запуск одноимённых задач внутри процесса
// и сохраняет итог каждого завершённого запуска.
type Runner struct {
	runs domain.JobRunRepo
	log  zerolog.Logger
	now  func() time.Time

	mu      sync.Mutex
	running map[string]struct{}
}

// NewRunner создаёт исполнителя задач.
func NewRunner(runs domain.JobRunRepo, logger zerolog.Logger) *Runner {
	return &Runner{
		runs:    runs,
		log:     logger.With().Str("component", "jobs").Logger(),
		now:     time.Now,
		running: make(map[string]struct{}),
	}
}

func (r *Runner) acquire(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, busy := r.running[name]; busy {
		return false
	}
	r.running[name] = struct{}{}
	return true
}

func (r *Runner) release(name string) {
	r.mu.Lock()
	delete(r.running, name)
	r.mu.Unlock()
}

// Running сообщает, выполняется ли задача сейчас.
func (r *Runner) Running(name string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, busy := r.running[name]
	return busy
}

// Run выполняет задачу, если одноимённая задача не выполняется.
// Ошибка операции сохраняется в JobRun и возвращается вызывающему.
func (r *Runner) Run(ctx context.Context, name string, op Operation, opts Options) (Result, error) {
	if !r.acquire(name) {
		r.log.Debug().Str("job", name).Msg("jobs: задача уже выполняется, пропуск")
		return Result{Skipped: true, Reason: ReasonRunning}, nil
	}
	defer r.release(name)

	runID := uuid.NewString()
	logger := r.log.With().Str("job", name).Str("run_id", runID).Logger()
	logger.Info().Str("reason", opts.Reason).Msg("jobs: запуск")

	start := time.Now()
	value, err := op(ctx)
	metrics.ObserveJob(name, start, err)
	finished := r.now()

	if err != nil {
		r.record(ctx, logger, domain.JobRun{
			Name:        name,
			LastRunAt:   &finished,
			LastStatus:  domain.JobStatusFailed,
			LastMessage: err.Error(),
		})
		logger.Error().Err(err).Dur("duration", time.Since(start)).Msg("jobs: задача завершилась ошибкой")
		return Result{LastRunAt: &finished}, fmt.Errorf("job %s: %w", name, err)
	}

	count := NormalizeCount(value)
	message := opts.message(value)
	r.record(ctx, logger, domain.JobRun{
		Name:        name,
		LastRunAt:   &finished,
		LastStatus:  domain.JobStatusSuccess,
		LastMessage: message,
		LastCount:   count,
	})
	logger.Info().Int("count", count).Str("message", message).Dur("duration", time.Since(start)).Msg("jobs: задача выполнена")
	return Result{LastRunAt: &finished, Count: count, Value: value}, nil
}

func (r *Runner) record(ctx context.Context, logger zerolog.Logger, run domain.JobRun) {
	// Контекст операции мог истечь, а итог запуска всё равно нужно сохранить.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := r.runs.UpsertJobRun(saveCtx, run); err != nil {
		logger.Error().Err(err).Msg("jobs: не удалось сохранить состояние задачи")
	}
}

// NormalizeCount сводит результат задачи к числу: длина среза, само число
// или сумма числовых значений map.
func NormalizeCount(result any) int {
	switch v := result.(type) {
	case nil:
		return 0
	case Counter:
		return v.Count()
	case int:
		return v
	case int64:
		return int(v)
	case float64:
		return int(v)
	}
	rv := reflect.ValueOf(result)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		return rv.Len()
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return int(rv.Int())
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return int(rv.Uint())
	case reflect.Float32, reflect.Float64:
		return int(rv.Float())
	case reflect.Map:
		total := 0
		iter := rv.MapRange()
		for iter.Next() {
			total += NormalizeCount(iter.Value().Interface())
		}
		return total
	case reflect.Pointer:
		if rv.IsNil() {
			return 0
		}
		return NormalizeCount(rv.Elem().Interface())
	default:
		return 0
	}
}

// IsStale сообщает, прошло ли с последнего запуска не меньше minMinutes минут.
// Отсутствие запуска считается устаревшими данными.
func IsStale(lastRunAt *time.Time, minMinutes int, now time.Time) bool {
	if lastRunAt == nil || lastRunAt.IsZero() {
		return true
	}
	return now.Sub(*lastRunAt) >= time.Duration(minMinutes)*time.Minute
}
