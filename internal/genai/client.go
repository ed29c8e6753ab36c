// Пакет genai — HTTP-клиент сервиса генерации текста (Gemini REST API).
// Одна операция: generateContent по текстовому промпту,
// опционально с inline-данными (base64) и MIME-типом.
package genai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// ErrNoAPIKey — ключ API не задан в конфигурации.
var ErrNoAPIKey = errors.New("не задан API-ключ сервиса генерации")

// InlineData — бинарные данные, передаваемые вместе с промптом.
type InlineData struct {
	// MIMEType — MIME-тип данных (image/png, image/jpeg, ...)
	MIMEType string
	// Data — содержимое в base64
	Data string
}

// Request — запрос генерации.
type Request struct {
	Prompt     string
	InlineData *InlineData
}

// --- Формат REST API ---

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MIMEType string `json:"mimeType"`
	Data     string `json:"data"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type generateRequest struct {
	Contents []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content content `json:"content"`
	} `json:"candidates"`
}

// Client — HTTP-клиент сервиса генерации текста.
type Client struct {
	httpClient *http.Client
	baseURL    string
	model      string
	apiKey     string //nolint:gosec // G101: поле структуры, не содержит секрет напрямую
	logger     *slog.Logger
}

// New создаёт клиент.
// baseURL — базовый URL API (например, https://generativelanguage.googleapis.com).
// timeout — таймаут запроса; 0 — без таймаута (повторов нет в любом случае).
func New(baseURL, model, apiKey string, timeout time.Duration, logger *slog.Logger) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		apiKey:     apiKey,
		logger:     logger.With(slog.String("component", "genai_client")),
	}
}

// Model возвращает имя используемой модели.
func (c *Client) Model() string {
	return c.model
}

// GenerateContent выполняет один вызов generateContent и возвращает
// текст первого кандидата. Пустая строка — сервис не вернул текста.
// POST {baseURL}/v1beta/models/{model}:generateContent
func (c *Client) GenerateContent(ctx context.Context, req Request) (string, error) {
	if c.apiKey == "" {
		return "", ErrNoAPIKey
	}

	parts := make([]part, 0, 2)
	if req.InlineData != nil {
		parts = append(parts, part{InlineData: &inlineData{
			MIMEType: req.InlineData.MIMEType,
			Data:     req.InlineData.Data,
		}})
	}
	parts = append(parts, part{Text: req.Prompt})

	body, err := json.Marshal(generateRequest{
		Contents: []content{{Role: "user", Parts: parts}},
	})
	if err != nil {
		return "", fmt.Errorf("сериализация запроса generateContent: %w", err)
	}

	reqURL := fmt.Sprintf("%s/v1beta/models/%s:generateContent", c.baseURL, url.PathEscape(c.model))
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("создание запроса generateContent: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	start := time.Now()
	resp, err := c.httpClient.Do(httpReq) //nolint:gosec // G704: URL из конфигурации
	if err != nil {
		return "", fmt.Errorf("запрос generateContent к %s: %w", c.baseURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		respBody, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return "", fmt.Errorf("сервис генерации вернул статус %d: %s", resp.StatusCode, strings.TrimSpace(string(respBody)))
	}

	var genResp generateResponse
	if err := json.NewDecoder(resp.Body).Decode(&genResp); err != nil {
		return "", fmt.Errorf("декодирование ответа generateContent: %w", err)
	}

	text := genResp.text()
	c.logger.Debug("Ответ сервиса генерации получен",
		slog.String("model", c.model),
		slog.Int("chars", len(text)),
		slog.Duration("duration", time.Since(start)),
	)
	return text, nil
}

// text склеивает текстовые части первого кандидата.
func (r *generateResponse) text() string {
	if len(r.Candidates) == 0 {
		return ""
	}
	var sb strings.Builder
	for _, p := range r.Candidates[0].Content.Parts {
		sb.WriteString(p.Text)
	}
	return sb.String()
}
