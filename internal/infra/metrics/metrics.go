package metrics

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"
)

const namespace = "agent_radar"

var (
	JobRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "job_runs_total",
		Help:      "Запуски фоновых задач по статусу",
	}, []string{"job", "status"})

	JobDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "job_duration_seconds",
		Help:      "Длительность фоновых задач",
		Buckets:   []float64{.1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120, 300},
	}, []string{"job"})

	PushTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "push_total",
		Help:      "Попытки доставки дайджеста",
	}, []string{"channel", "status"})

	TickDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "scheduler_tick_seconds",
		Help:      "Длительность такта планировщика",
		Buckets:   prometheus.DefBuckets,
	})

	TicksSkipped = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "scheduler_ticks_skipped_total",
		Help:      "Такты, пропущенные из-за незавершённого предыдущего",
	})

	DigestBuildSeconds = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "digest_build_seconds",
		Help:      "Время построения дайджеста",
		Buckets:   prometheus.DefBuckets,
	})

	TranslationsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "translations_total",
		Help:      "Обращения к переводчику по результату",
	}, []string{"result"})

	// Сетевые запросы: фетчеры, транспорты, переводчик и БД.
	NetworkRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "network_request_duration_seconds",
		Help:      "Длительность сетевых запросов",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 15, 30},
	}, []string{"component", "operation", "target", "status"})

	NetworkRequestTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "network_request_total",
		Help:      "Количество сетевых запросов",
	}, []string{"component", "operation", "target", "status"})

	TranslateLLMSeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "translate_llm_seconds",
		Help:      "Длительность перевода через LLM",
		Buckets:   []float64{.25, .5, 1, 2, 4, 8, 16},
	}, []string{"model"})

	TranslateLLMTokens = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "translate_llm_tokens_total",
		Help:      "Токены, потраченные на перевод через LLM",
	}, []string{"model", "kind"})
)

// MustRegister регистрирует метрики.
func MustRegister(registerer prometheus.Registerer) {
	registerer.MustRegister(
		JobRunsTotal,
		JobDuration,
		PushTotal,
		TickDuration,
		TicksSkipped,
		DigestBuildSeconds,
		TranslationsTotal,
		NetworkRequestDuration,
		NetworkRequestTotal,
		TranslateLLMSeconds,
		TranslateLLMTokens,
	)
}

// StartServer поднимает отдельный листенер /metrics и гасит его при отмене ctx.
func StartServer(ctx context.Context, logger zerolog.Logger, addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadTimeout: 5 * time.Second, WriteTimeout: 10 * time.Second}

	go func() {
		<-ctx.Done()
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(stopCtx); err != nil {
			logger.Error().Err(err).Msg("metrics: ошибка остановки сервера")
		}
	}()
	go func() {
		logger.Info().Str("addr", addr).Msg("metrics: сервер запущен")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics: сервер упал")
		}
	}()
}

func statusLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}

func orUnknown(v string) string {
	if v == "" {
		return "unknown"
	}
	return v
}

// ObserveNetworkRequest записывает длительность и статус сетевого запроса.
func ObserveNetworkRequest(component, operation, target string, start time.Time, err error) {
	labels := []string{orUnknown(component), orUnknown(operation), orUnknown(target), statusLabel(err)}
	NetworkRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
	NetworkRequestTotal.WithLabelValues(labels...).Inc()
}

// ObserveJob фиксирует завершение задачи.
func ObserveJob(job string, start time.Time, err error) {
	JobRunsTotal.WithLabelValues(job, statusLabel(err)).Inc()
	JobDuration.WithLabelValues(job).Observe(time.Since(start).Seconds())
}

// ObservePush фиксирует попытку доставки в канал.
func ObservePush(channel string, err error) {
	PushTotal.WithLabelValues(channel, statusLabel(err)).Inc()
}

// ObserveLLMGeneration записывает длительность запроса к LLM и токены prompt/completion.
func ObserveLLMGeneration(model string, duration time.Duration, promptTokens, completionTokens, totalTokens int) {
	model = orUnknown(model)
	TranslateLLMSeconds.WithLabelValues(model).Observe(duration.Seconds())
	if totalTokens <= 0 {
		totalTokens = promptTokens + completionTokens
	}
	for kind, n := range map[string]int{"prompt": promptTokens, "completion": completionTokens, "total": totalTokens} {
		if n > 0 {
			TranslateLLMTokens.WithLabelValues(model, kind).Add(float64(n))
		}
	}
}
