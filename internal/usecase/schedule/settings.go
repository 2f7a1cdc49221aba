package schedule

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"agent-radar/internal/domain"
)

var (
	// ErrInvalidTimezone возвращается, если указан некорректный часовой пояс.
	ErrInvalidTimezone = errors.New("invalid timezone")
	// ErrInvalidTime возвращается для времени не в формате ЧЧ:ММ.
	ErrInvalidTime = errors.New("invalid time, expected HH:MM")
	// ErrInvalidFrequency возвращается для неизвестной периодичности.
	ErrInvalidFrequency = errors.New("invalid frequency")
)

// Service управляет расписанием рассылки пользователя.
type Service struct {
	schedules domain.ScheduleRepo
}

// NewService создаёт сервис.
func NewService(schedules domain.ScheduleRepo) *Service {
	return &Service{schedules: schedules}
}

// GetOrCreate возвращает расписание пользователя, создавая его со значениями по умолчанию.
func (s *Service) GetOrCreate(ctx context.Context, userID int64) (domain.PushSchedule, error) {
	current, err := s.schedules.GetSchedule(ctx, userID)
	if err == nil {
		return current, nil
	}
	if !errors.Is(err, domain.ErrNotFound) {
		return domain.PushSchedule{}, fmt.Errorf("получение расписания: %w", err)
	}
	created, err := s.schedules.CreateSchedule(ctx, domain.DefaultSchedule(userID))
	if err != nil {
		return domain.PushSchedule{}, fmt.Errorf("создание расписания: %w", err)
	}
	return created, nil
}

// UpdateInput описывает изменения расписания. Пустые поля заменяются значениями по умолчанию.
type UpdateInput struct {
	Time      string               `json:"time"`
	Timezone  string               `json:"timezone"`
	Frequency string               `json:"frequency"`
	Content   domain.ContentConfig `json:"content"`
}

// Update проверяет и сохраняет расписание пользователя.
func (s *Service) Update(ctx context.Context, userID int64, in UpdateInput) (domain.PushSchedule, error) {
	clock := domain.DefaultScheduleTime
	if strings.TrimSpace(in.Time) != "" {
		parsed, err := ParseLocalTime(in.Time)
		if err != nil {
			return domain.PushSchedule{}, ErrInvalidTime
		}
		clock = parsed.Format("15:04")
	}

	tz := domain.DefaultScheduleTimezone
	if strings.TrimSpace(in.Timezone) != "" {
		normalized, err := normalizeTimezone(in.Timezone)
		if err != nil {
			return domain.PushSchedule{}, err
		}
		tz = normalized
	}

	frequency := domain.FrequencyDaily
	if strings.TrimSpace(in.Frequency) != "" {
		f, ok := domain.ParseFrequency(in.Frequency)
		if !ok {
			return domain.PushSchedule{}, ErrInvalidFrequency
		}
		frequency = f
	}

	updated := domain.PushSchedule{
		UserID:    userID,
		Time:      clock,
		Timezone:  tz,
		Frequency: frequency,
		Content:   in.Content,
	}
	if err := s.schedules.UpdateSchedule(ctx, updated); err != nil {
		return domain.PushSchedule{}, fmt.Errorf("обновление расписания: %w", err)
	}
	return updated, nil
}

// ParseLocalTime парсит время формата ЧЧ:ММ.
func ParseLocalTime(input string) (time.Time, error) {
	return time.Parse("15:04", strings.TrimSpace(input))
}

func normalizeTimezone(raw string) (string, error) {
	candidate := strings.TrimSpace(raw)
	if candidate == "" {
		return "", ErrInvalidTimezone
	}
	candidate = strings.ReplaceAll(candidate, " ", "_")
	if _, err := time.LoadLocation(candidate); err == nil {
		return candidate, nil
	}

	lower := strings.ToLower(candidate)
	parts := strings.Split(lower, "/")
	for i, part := range parts {
		segments := strings.Split(part, "_")
		for j, segment := range segments {
			pieces := strings.Split(segment, "-")
			for k, piece := range pieces {
				if piece == "" {
					continue
				}
				pieces[k] = strings.ToUpper(piece[:1]) + piece[1:]
			}
			segments[j] = strings.Join(pieces, "-")
		}
		parts[i] = strings.Join(segments, "_")
	}
	normalized := strings.Join(parts, "/")
	if _, err := time.LoadLocation(normalized); err == nil {
		return normalized, nil
	}
	return "", ErrInvalidTimezone
}
