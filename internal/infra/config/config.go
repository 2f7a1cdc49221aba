package config

import (
	"log"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// AppConfig описывает конфигурацию сервиса.
type AppConfig struct {
	AppEnv      string `envconfig:"APP_ENV" default:"dev"`
	Port        int    `envconfig:"PORT" default:"8080"`
	MetricsAddr string `envconfig:"METRICS_ADDR"`

	PGDSN     string `envconfig:"PG_DSN"`
	RedisAddr string `envconfig:"REDIS_ADDR"`

	Auth struct {
		JWTSecret   string        `envconfig:"JWT_SECRET" default:"change-me"`
		TokenTTL    time.Duration `envconfig:"JWT_TTL" default:"168h"`
		AdminToken  string        `envconfig:"ADMIN_TOKEN"`
		AdminEmails string        `envconfig:"ADMIN_EMAILS"`
	} `envconfig:""`

	Cron struct {
		Trending string `envconfig:"CRON_TRENDING" default:"0 8 * * *"`
		AI       string `envconfig:"CRON_AI" default:"*/30 * * * *"`
		Skills   string `envconfig:"CRON_SKILLS" default:"15 8 * * *"`
		Cleanup  string `envconfig:"CRON_CLEANUP" default:"30 3 * * *"`
	} `envconfig:""`

	Retention struct {
		AIDays       int `envconfig:"AI_RETENTION_DAYS" default:"30"`
		TrendingDays int `envconfig:"TRENDING_RETENTION_DAYS" default:"90"`
		PushLogDays  int `envconfig:"PUSH_LOG_RETENTION_DAYS" default:"90"`
		SkillsDays   int `envconfig:"SKILLS_RETENTION_DAYS" default:"30"`
	} `envconfig:""`

	Translate struct {
		Enabled  bool          `envconfig:"TRANSLATE_ENABLED" default:"false"`
		Provider string        `envconfig:"TRANSLATE_PROVIDER" default:"libre"`
		Endpoint string        `envconfig:"TRANSLATE_ENDPOINT" default:"https://libretranslate.com/translate"`
		APIKey   string        `envconfig:"TRANSLATE_API_KEY"`
		Timeout  time.Duration `envconfig:"TRANSLATE_TIMEOUT" default:"6s"`
	} `envconfig:""`

	OpenAI struct {
		APIKey  string `envconfig:"OPENAI_API_KEY"`
		BaseURL string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`
		Model   string `envconfig:"OPENAI_MODEL" default:"gpt-4o-mini"`
	} `envconfig:""`

	HTTPTimeout time.Duration `envconfig:"HTTP_TIMEOUT" default:"15s"`
	ChunkDelay  time.Duration `envconfig:"CHUNK_DELAY" default:"500ms"`
}

// AdminEmailList возвращает список email администраторов.
func (c AppConfig) AdminEmailList() []string {
	var out []string
	for _, part := range strings.Split(c.Auth.AdminEmails, ",") {
		if email := strings.TrimSpace(part); email != "" {
			out = append(out, email)
		}
	}
	return out
}

// Load загружает конфиг из окружения.
func Load() AppConfig {
	var cfg AppConfig
	if err := envconfig.Process("", &cfg); err != nil {
		log.Fatalf("не удалось загрузить конфиг: %v", err)
	}
	return cfg
}
