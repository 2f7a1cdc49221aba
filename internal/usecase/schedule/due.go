package schedule

import (
	"fmt"
	"time"

	"agent-radar/internal/domain"
)

// TimeParts описывает календарный слот в часовом поясе расписания.
type TimeParts struct {
	Hour    string // "08"
	Minute  string // "30"
	Weekday string // "Mon".."Sun"
	Date    string // "2006-01-02"
}

// Clock возвращает "HH:MM".
func (p TimeParts) Clock() string {
	return p.Hour + ":" + p.Minute
}

// PartsAt раскладывает момент времени в часовом поясе loc.
func PartsAt(now time.Time, loc *time.Location) TimeParts {
	local := now.In(loc)
	return TimeParts{
		Hour:    fmt.Sprintf("%02d", local.Hour()),
		Minute:  fmt.Sprintf("%02d", local.Minute()),
		Weekday: local.Weekday().String()[:3],
		Date:    local.Format(time.DateOnly),
	}
}

// LoadLocation загружает часовой пояс расписания. Пустое или неизвестное имя
// заменяется поясом по умолчанию, второй результат сообщает о такой замене.
func LoadLocation(name string) (*time.Location, bool) {
	if name != "" {
		if loc, err := time.LoadLocation(name); err == nil {
			return loc, false
		}
	}
	loc, err := time.LoadLocation(domain.DefaultScheduleTimezone)
	if err != nil {
		return time.FixedZone("CST", 8*3600), true
	}
	return loc, true
}

// IsWeekday сообщает, попадает ли день на будни.
func IsWeekday(weekday string) bool {
	switch weekday {
	case "Mon", "Tue", "Wed", "Thu", "Fri":
		return true
	default:
		return false
	}
}

// ShouldSend проверяет, приходится ли слот на время рассылки.
// Сравнение поминутное: пропущенная минута не догоняется.
func ShouldSend(s domain.PushSchedule, parts TimeParts) bool {
	if parts.Clock() != s.Time {
		return false
	}
	switch s.Frequency {
	case domain.FrequencyWeekday:
		return IsWeekday(parts.Weekday)
	case domain.FrequencyWeekly:
		return parts.Weekday == "Mon"
	default:
		return true
	}
}

// SentKey возвращает ключ идемпотентности слота: "timezone|date|time".
// Не зависит от канала, один на пользователя и слот.
func SentKey(s domain.PushSchedule, parts TimeParts) string {
	return s.Timezone + "|" + parts.Date + "|" + s.Time
}
