// content.go — сервис генерации контента (Content Adapter).
//
// Три операции поверх сервиса генерации текста: OCR изображения,
// краткое содержание текста и «экспорт сайта» в markdown.
// Каждая операция — один вызов generateContent; при пустом ответе
// возвращается фиксированный текст-заглушка. Повторов нет.
//
// Сбой вызова логируется один раз, публикуется ровно одно уведомление
// content_failed, а вызывающему возвращается ErrGenerationFailed.
package service

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/cloudfile/internal/genai"
	"github.com/bigkaa/cloudfile/internal/notify"
)

// Промпты и заглушки.
const (
	ocrPrompt       = "Perform high-accuracy OCR on this image. Return only the extracted text. If there is no text, say 'No text detected'."
	summarizePrompt = "Summarize the following text briefly and professionally:\n\n%s"
	webExportPrompt = "Act as a web scraper. Provide a detailed markdown-formatted text version of the website at %s. Include main headers and core content."

	ocrFallback       = "No text extracted."
	summaryFallback   = "Summary unavailable."
	webExportFallback = "Content could not be fetched."
)

// Операции (значение label operation в метриках).
const (
	opOCR       = "ocr"
	opSummarize = "summarize"
	opWebExport = "web_export"
)

// Prometheus-метрики генерации.
var (
	contentRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cf_content_requests_total",
		Help: "Количество вызовов сервиса генерации (по операции и статусу).",
	}, []string{"operation", "status"})

	contentDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "cf_content_duration_seconds",
		Help:    "Длительность вызова сервиса генерации.",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
	}, []string{"operation"})
)

// Generator — сервис генерации текста. Реализуется *genai.Client.
type Generator interface {
	GenerateContent(ctx context.Context, req genai.Request) (string, error)
}

// WebDocument — результат экспорта сайта.
type WebDocument struct {
	URL       string    `json:"url"`
	Title     string    `json:"title"`
	Content   string    `json:"content"`
	FetchedAt time.Time `json:"fetchedAt"`
}

// ContentService — фасад над сервисом генерации текста.
type ContentService struct {
	gen    Generator
	bus    *notify.Bus
	logger *slog.Logger

	// Флаги занятости по операциям
	ocrBusy     atomic.Bool
	summaryBusy atomic.Bool
	webBusy     atomic.Bool

	mu      sync.RWMutex
	lastWeb *WebDocument
}

// NewContentService создаёт сервис генерации контента.
func NewContentService(gen Generator, bus *notify.Bus, logger *slog.Logger) *ContentService {
	return &ContentService{
		gen:    gen,
		bus:    bus,
		logger: logger.With(slog.String("component", "content")),
	}
}

// PerformOCR распознаёт текст на изображении.
// data — содержимое изображения в base64, mimeType — image/*.
func (s *ContentService) PerformOCR(ctx context.Context, data, mimeType string) (string, error) {
	data = strings.TrimSpace(data)
	if data == "" {
		return "", fmt.Errorf("%w: пустое изображение", ErrInvalidInput)
	}
	if _, err := base64.StdEncoding.DecodeString(data); err != nil {
		return "", fmt.Errorf("%w: изображение не в base64: %v", ErrInvalidInput, err)
	}
	if !strings.HasPrefix(strings.ToLower(mimeType), "image/") {
		return "", fmt.Errorf("%w: ожидался MIME-тип image/*, получен %q", ErrInvalidInput, mimeType)
	}

	if !s.ocrBusy.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	defer s.ocrBusy.Store(false)

	text, err := s.generate(ctx, opOCR, genai.Request{
		Prompt:     ocrPrompt,
		InlineData: &genai.InlineData{MIMEType: mimeType, Data: data},
	})
	if err != nil {
		return "", s.fail(opOCR, "Не удалось распознать текст на изображении", "", err)
	}
	if text == "" {
		return ocrFallback, nil
	}
	return text, nil
}

// SummarizeDocument возвращает краткое содержание текста.
func (s *ContentService) SummarizeDocument(ctx context.Context, text string) (string, error) {
	if strings.TrimSpace(text) == "" {
		return "", fmt.Errorf("%w: пустой текст", ErrInvalidInput)
	}

	if !s.summaryBusy.CompareAndSwap(false, true) {
		return "", ErrBusy
	}
	defer s.summaryBusy.Store(false)

	summary, err := s.generate(ctx, opSummarize, genai.Request{
		Prompt: fmt.Sprintf(summarizePrompt, text),
	})
	if err != nil {
		return "", s.fail(opSummarize, "Не удалось подготовить краткое содержание", "", err)
	}
	if summary == "" {
		return summaryFallback, nil
	}
	return summary, nil
}

// FetchWebsiteContent просит модель описать страницу по адресу rawURL в markdown.
// Сама страница не загружается. При успехе результат сохраняется
// как последний экспорт; при сбое предыдущий результат не меняется.
func (s *ContentService) FetchWebsiteContent(ctx context.Context, rawURL string) (*WebDocument, error) {
	rawURL = strings.TrimSpace(rawURL)
	if err := validateWebURL(rawURL); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	if !s.webBusy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer s.webBusy.Store(false)

	content, err := s.generate(ctx, opWebExport, genai.Request{
		Prompt: fmt.Sprintf(webExportPrompt, rawURL),
	})
	if err != nil {
		return nil, s.fail(opWebExport, "Не удалось получить содержимое сайта", rawURL, err)
	}
	if content == "" {
		content = webExportFallback
	}

	doc := &WebDocument{
		URL:       rawURL,
		Title:     "Export from " + rawURL,
		Content:   content,
		FetchedAt: time.Now().UTC(),
	}

	s.mu.Lock()
	s.lastWeb = doc
	s.mu.Unlock()

	return doc, nil
}

// LastWebExport возвращает последний успешный экспорт сайта.
func (s *ContentService) LastWebExport() (WebDocument, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.lastWeb == nil {
		return WebDocument{}, false
	}
	return *s.lastWeb, true
}

// Busy сообщает, какие операции сейчас выполняются.
func (s *ContentService) Busy() map[string]bool {
	return map[string]bool{
		opOCR:       s.ocrBusy.Load(),
		opSummarize: s.summaryBusy.Load(),
		opWebExport: s.webBusy.Load(),
	}
}

// generate выполняет один вызов и снимает метрики.
func (s *ContentService) generate(ctx context.Context, op string, req genai.Request) (string, error) {
	start := time.Now()
	text, err := s.gen.GenerateContent(ctx, req)
	contentDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())

	status := "ok"
	switch {
	case err != nil:
		status = "error"
	case text == "":
		status = "empty"
	}
	contentRequestsTotal.WithLabelValues(op, status).Inc()
	return text, err
}

// fail логирует сбой, публикует одно уведомление content_failed
// и возвращает ошибку, обёрнутую в ErrGenerationFailed.
func (s *ContentService) fail(op, message, subject string, err error) error {
	s.logger.Error("Ошибка сервиса генерации",
		slog.String("operation", op),
		slog.String("error", err.Error()),
	)
	s.bus.Publish(notify.Notification{
		Level:   notify.LevelError,
		Kind:    notify.KindContentFailed,
		Message: message,
		Subject: subject,
	})
	return fmt.Errorf("%w: %w", ErrGenerationFailed, err)
}

// validateWebURL проверяет, что адрес — абсолютный http(s) URL.
func validateWebURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("пустой URL")
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("некорректный URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("схема URL должна быть http или https, получено %q", u.Scheme)
	}
	if u.Host == "" {
		return fmt.Errorf("URL не содержит хост")
	}
	return nil
}
