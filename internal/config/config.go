// Пакет config — загрузка и валидация конфигурации CloudFile
// из переменных окружения.
package config

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/bigkaa/cloudfile/internal/domain/model"
)

// Версия приложения, задаётся при сборке через -ldflags.
var Version = "dev"

// Config содержит все параметры конфигурации CloudFile.
type Config struct {
	// --- Сервер ---

	// Порт HTTP-сервера (по умолчанию 8040)
	Port int
	// Уровень логирования (debug, info, warn, error)
	LogLevel slog.Level
	// Формат логов (json, text)
	LogFormat string
	// Максимальный размер тела запроса в байтах (OCR передаёт изображение в base64)
	MaxRequestBody int64

	// --- HTTP Server Timeouts ---

	HTTPReadTimeout  time.Duration
	HTTPWriteTimeout time.Duration
	HTTPIdleTimeout  time.Duration

	// --- Graceful shutdown ---

	ShutdownTimeout time.Duration

	// --- Симуляция обработки ---

	// Интервал тика прогресса (по умолчанию 800ms)
	TickInterval time.Duration
	// Диапазон приращения прогресса за тик, включительно (5..29)
	ProgressMinStep int
	ProgressMaxStep int
	// Доля исходного размера при «сжатии» (0.05)
	CompressionRatio float64
	// Максимальный случайный добавок к размеру результата в байтах (50000)
	CompressionJitter int64
	// Вероятность симулированной ошибки задания на тик (0 — ошибок нет)
	FailureRate float64
	// Целевой формат конвертера по умолчанию
	DefaultTargetFormat string

	// --- Генерация текста ---

	// Базовый URL сервиса генерации текста
	GenAIURL string
	// Имя модели
	GenAIModel string
	// API-ключ (пустой — Content Adapter вернёт ошибку при вызове)
	GenAIAPIKey string //nolint:gosec // G101: поле структуры, не содержит секрет напрямую
	// Таймаут запроса (0 — без таймаута)
	GenAITimeout time.Duration

	// --- История и уведомления ---

	HistorySize  int
	HistoryTTL   time.Duration
	NotifyBuffer int

	// --- topologymetrics ---

	DephealthEnabled       bool
	DephealthGroup         string
	DephealthCheckInterval time.Duration
	// Путь проверки сервиса генерации (относительно CF_GENAI_URL)
	DephealthGenAIPath string
}

// Load загружает конфигурацию из переменных окружения.
// Возвращает ошибку, если значения некорректны.
func Load() (*Config, error) {
	cfg := &Config{}
	var err error

	// --- Сервер ---

	cfg.Port, err = getEnvInt("CF_PORT", 8040)
	if err != nil {
		return nil, fmt.Errorf("CF_PORT: %w", err)
	}
	if cfg.Port < 1 || cfg.Port > 65535 {
		return nil, fmt.Errorf("CF_PORT: порт %d вне диапазона 1-65535", cfg.Port)
	}

	cfg.LogLevel, err = parseLogLevel(getEnvDefault("CF_LOG_LEVEL", "info"))
	if err != nil {
		return nil, fmt.Errorf("CF_LOG_LEVEL: %w", err)
	}

	cfg.LogFormat = getEnvDefault("CF_LOG_FORMAT", "json")
	if cfg.LogFormat != "json" && cfg.LogFormat != "text" {
		return nil, fmt.Errorf("CF_LOG_FORMAT: недопустимый формат %q, допустимые: json, text", cfg.LogFormat)
	}

	maxBody, err := getEnvInt("CF_MAX_REQUEST_BODY", 20<<20)
	if err != nil {
		return nil, fmt.Errorf("CF_MAX_REQUEST_BODY: %w", err)
	}
	if maxBody <= 0 {
		return nil, fmt.Errorf("CF_MAX_REQUEST_BODY: значение должно быть > 0")
	}
	cfg.MaxRequestBody = int64(maxBody)

	// --- HTTP Server Timeouts ---

	cfg.HTTPReadTimeout, err = getEnvDuration("CF_HTTP_READ_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CF_HTTP_READ_TIMEOUT: %w", err)
	}
	// Запись ответа Content Adapter ждёт генерацию, поэтому запас больше, чем у чтения
	cfg.HTTPWriteTimeout, err = getEnvDuration("CF_HTTP_WRITE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CF_HTTP_WRITE_TIMEOUT: %w", err)
	}
	cfg.HTTPIdleTimeout, err = getEnvDuration("CF_HTTP_IDLE_TIMEOUT", 120*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CF_HTTP_IDLE_TIMEOUT: %w", err)
	}

	cfg.ShutdownTimeout, err = getEnvDuration("CF_SHUTDOWN_TIMEOUT", 5*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CF_SHUTDOWN_TIMEOUT: %w", err)
	}

	// --- Симуляция обработки ---

	cfg.TickInterval, err = getEnvDurationFallback("CF_TICK_INTERVAL", 800*time.Millisecond)
	if err != nil {
		return nil, fmt.Errorf("CF_TICK_INTERVAL: %w", err)
	}

	cfg.ProgressMinStep, err = getEnvInt("CF_PROGRESS_MIN_STEP", 5)
	if err != nil {
		return nil, fmt.Errorf("CF_PROGRESS_MIN_STEP: %w", err)
	}
	cfg.ProgressMaxStep, err = getEnvInt("CF_PROGRESS_MAX_STEP", 29)
	if err != nil {
		return nil, fmt.Errorf("CF_PROGRESS_MAX_STEP: %w", err)
	}
	if cfg.ProgressMinStep < 1 || cfg.ProgressMaxStep > 100 || cfg.ProgressMinStep > cfg.ProgressMaxStep {
		return nil, fmt.Errorf("CF_PROGRESS_MIN_STEP/CF_PROGRESS_MAX_STEP: ожидается 1 <= min <= max <= 100, получено %d..%d",
			cfg.ProgressMinStep, cfg.ProgressMaxStep)
	}

	cfg.CompressionRatio, err = getEnvFloat("CF_COMPRESSION_RATIO", 0.05)
	if err != nil {
		return nil, fmt.Errorf("CF_COMPRESSION_RATIO: %w", err)
	}
	if cfg.CompressionRatio <= 0 || cfg.CompressionRatio > 1 {
		return nil, fmt.Errorf("CF_COMPRESSION_RATIO: значение должно быть в диапазоне (0, 1]")
	}

	jitter, err := getEnvInt("CF_COMPRESSION_JITTER", 50000)
	if err != nil {
		return nil, fmt.Errorf("CF_COMPRESSION_JITTER: %w", err)
	}
	if jitter < 0 {
		return nil, fmt.Errorf("CF_COMPRESSION_JITTER: значение не может быть отрицательным")
	}
	cfg.CompressionJitter = int64(jitter)

	cfg.FailureRate, err = getEnvFloat("CF_SIM_FAILURE_RATE", 0)
	if err != nil {
		return nil, fmt.Errorf("CF_SIM_FAILURE_RATE: %w", err)
	}
	if cfg.FailureRate < 0 || cfg.FailureRate > 1 {
		return nil, fmt.Errorf("CF_SIM_FAILURE_RATE: значение должно быть в диапазоне [0, 1]")
	}

	cfg.DefaultTargetFormat = strings.ToUpper(getEnvDefault("CF_DEFAULT_TARGET_FORMAT", "PDF"))
	if !model.IsConverterFormat(cfg.DefaultTargetFormat) {
		return nil, fmt.Errorf("CF_DEFAULT_TARGET_FORMAT: недопустимый формат %q, допустимые: %s",
			cfg.DefaultTargetFormat, strings.Join(model.ConverterFormats, ", "))
	}

	// --- Генерация текста ---

	cfg.GenAIURL = strings.TrimRight(getEnvDefault("CF_GENAI_URL", "https://generativelanguage.googleapis.com"), "/")
	if err := validateURL(cfg.GenAIURL); err != nil {
		return nil, fmt.Errorf("CF_GENAI_URL: %w", err)
	}
	cfg.GenAIModel = getEnvDefault("CF_GENAI_MODEL", "gemini-3-flash-preview")
	cfg.GenAIAPIKey = os.Getenv("CF_GENAI_API_KEY")

	cfg.GenAITimeout, err = getEnvDuration("CF_GENAI_TIMEOUT", 0)
	if err != nil {
		return nil, fmt.Errorf("CF_GENAI_TIMEOUT: %w", err)
	}

	// --- История и уведомления ---

	cfg.HistorySize, err = getEnvInt("CF_HISTORY_SIZE", 500)
	if err != nil {
		return nil, fmt.Errorf("CF_HISTORY_SIZE: %w", err)
	}
	if cfg.HistorySize < 1 {
		return nil, fmt.Errorf("CF_HISTORY_SIZE: значение должно быть >= 1")
	}
	cfg.HistoryTTL, err = getEnvDurationFallback("CF_HISTORY_TTL", 24*time.Hour)
	if err != nil {
		return nil, fmt.Errorf("CF_HISTORY_TTL: %w", err)
	}
	cfg.NotifyBuffer, err = getEnvInt("CF_NOTIFY_BUFFER", 500)
	if err != nil {
		return nil, fmt.Errorf("CF_NOTIFY_BUFFER: %w", err)
	}

	// --- topologymetrics ---

	cfg.DephealthEnabled, err = getEnvBool("CF_DEPHEALTH_ENABLED", false)
	if err != nil {
		return nil, fmt.Errorf("CF_DEPHEALTH_ENABLED: %w", err)
	}
	cfg.DephealthGroup = getEnvDefault("CF_DEPHEALTH_GROUP", "cloudfile")
	cfg.DephealthCheckInterval, err = getEnvDurationFallback("CF_DEPHEALTH_CHECK_INTERVAL", 15*time.Second)
	if err != nil {
		return nil, fmt.Errorf("CF_DEPHEALTH_CHECK_INTERVAL: %w", err)
	}
	cfg.DephealthGenAIPath = getEnvDefault("CF_DEPHEALTH_GENAI_PATH", "/")
	if !strings.HasPrefix(cfg.DephealthGenAIPath, "/") {
		return nil, fmt.Errorf("CF_DEPHEALTH_GENAI_PATH: путь должен начинаться с /")
	}

	return cfg, nil
}

// SetupLogger настраивает глобальный slog-логгер на основе конфигурации.
func SetupLogger(cfg *Config) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}

	var handler slog.Handler
	if cfg.LogFormat == "json" {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	} else {
		handler = slog.NewTextHandler(os.Stdout, opts)
	}

	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}

// --- Вспомогательные функции ---

func getEnvDefault(key, defaultVal string) string {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal
	}
	return val
}

func getEnvInt(key string, defaultVal int) (int, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, fmt.Errorf("некорректное целое число: %q", val)
	}
	return n, nil
}

func getEnvFloat(key string, defaultVal float64) (float64, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	f, err := strconv.ParseFloat(val, 64)
	if err != nil {
		return 0, fmt.Errorf("некорректное число: %q", val)
	}
	return f, nil
}

// getEnvDuration возвращает time.Duration из переменной окружения или значение по умолчанию.
func getEnvDuration(key string, defaultVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	if d < 0 {
		return 0, fmt.Errorf("значение не может быть отрицательным")
	}
	return d, nil
}

// getEnvDurationFallback — как getEnvDuration, но требует значение > 0.
func getEnvDurationFallback(key string, fallbackVal time.Duration) (time.Duration, error) {
	val := os.Getenv(key)
	if val == "" {
		return fallbackVal, nil
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		return 0, fmt.Errorf("некорректная длительность: %q (используйте формат Go: 30s, 1h, 15m)", val)
	}
	if d <= 0 {
		return 0, fmt.Errorf("значение должно быть > 0")
	}
	return d, nil
}

func getEnvBool(key string, defaultVal bool) (bool, error) {
	val := os.Getenv(key)
	if val == "" {
		return defaultVal, nil
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return false, fmt.Errorf("некорректное булево значение: %q (допустимые: true, false, 1, 0)", val)
	}
	return b, nil
}

// parseLogLevel преобразует строку уровня логирования в slog.Level.
func parseLogLevel(level string) (slog.Level, error) {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug, nil
	case "info":
		return slog.LevelInfo, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("недопустимый уровень %q, допустимые: debug, info, warn, error", level)
	}
}

// validateURL проверяет, что строка — абсолютный http(s) URL.
func validateURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("некорректный URL: %q", raw)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("ожидается схема http или https: %q", raw)
	}
	if u.Host == "" {
		return fmt.Errorf("в URL отсутствует хост: %q", raw)
	}
	return nil
}
