package translator

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"strings"
	"time"
	"unicode"

	"github.com/rs/zerolog"

	"agent-radar/internal/domain"
	"agent-radar/internal/infra/metrics"
)

// Исходный текст в кэше обрезается до этой длины.
const sourceTextMaxRunes = 1000

// Cached переводит текст с постоянным кэшем. Никогда не возвращает ошибку:
// при любом сбое отдаётся исходный текст.
type Cached struct {
	provider domain.TextTranslator
	store    domain.TranslationRepo
	timeout  time.Duration
	log      zerolog.Logger
}

// NewCached оборачивает провайдер перевода кэшем в хранилище.
func NewCached(provider domain.TextTranslator, store domain.TranslationRepo, timeout time.Duration, logger zerolog.Logger) *Cached {
	if timeout <= 0 {
		timeout = 6 * time.Second
	}
	return &Cached{
		provider: provider,
		store:    store,
		timeout:  timeout,
		log:      logger.With().Str("component", "translator").Logger(),
	}
}

// TranslateText возвращает перевод, кэшированный перевод или исходный текст без изменений.
// Текст с иероглифами не переводится. Пробелы по краям убираются только для запроса и ключа кэша.
func (c *Cached) TranslateText(ctx context.Context, text string) string {
	clean := strings.TrimSpace(text)
	if clean == "" || HasChinese(clean) || c.provider == nil {
		metrics.TranslationsTotal.WithLabelValues("skipped").Inc()
		return text
	}

	hash := Hash(clean)
	if c.store != nil {
		cached, ok, err := c.store.GetTranslation(ctx, hash)
		if err != nil {
			c.log.Warn().Err(err).Msg("translator: ошибка чтения кэша")
		} else if ok && cached != "" {
			metrics.TranslationsTotal.WithLabelValues("cached").Inc()
			return cached
		}
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	translated, err := c.provider.Translate(callCtx, clean)
	if err != nil || strings.TrimSpace(translated) == "" {
		metrics.TranslationsTotal.WithLabelValues("failed").Inc()
		c.log.Debug().Err(err).Msg("translator: перевод не получен, используется исходный текст")
		return text
	}
	metrics.TranslationsTotal.WithLabelValues("translated").Inc()

	if c.store != nil {
		entry := domain.TranslationEntry{Hash: hash, SourceText: clipRunes(clean, sourceTextMaxRunes), TargetText: translated}
		if err := c.store.SaveTranslation(ctx, entry); err != nil {
			c.log.Warn().Err(err).Msg("translator: ошибка записи кэша")
		}
	}
	return translated
}

// HasChinese сообщает, есть ли в тексте иероглифы CJK.
func HasChinese(text string) bool {
	for _, r := range text {
		if unicode.Is(unicode.Han, r) {
			return true
		}
	}
	return false
}

// Hash возвращает ключ кэша перевода.
func Hash(text string) string {
	sum := sha1.Sum([]byte(text))
	return hex.EncodeToString(sum[:])
}

func clipRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
