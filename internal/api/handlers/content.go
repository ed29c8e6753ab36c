// content.go — обработчики генерации контента:
// OCR, краткое содержание, экспорт сайта в markdown.
package handlers

import (
	"errors"
	"net/http"

	apierrors "github.com/bigkaa/cloudfile/internal/api/errors"
	"github.com/bigkaa/cloudfile/internal/genai"
	"github.com/bigkaa/cloudfile/internal/service"
)

type ocrRequest struct {
	Data     string `json:"data"`
	MIMEType string `json:"mimeType"`
}

type summarizeRequest struct {
	Text string `json:"text"`
}

type webExportRequest struct {
	URL string `json:"url"`
}

type textResult struct {
	Text string `json:"text"`
}

// PerformOCR — POST /api/v1/content/ocr.
func (h *APIHandler) PerformOCR(w http.ResponseWriter, r *http.Request) {
	var req ocrRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	text, err := h.content.PerformOCR(r.Context(), req.Data, req.MIMEType)
	if err != nil {
		writeContentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, textResult{Text: text})
}

// SummarizeDocument — POST /api/v1/content/summarize.
func (h *APIHandler) SummarizeDocument(w http.ResponseWriter, r *http.Request) {
	var req summarizeRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	text, err := h.content.SummarizeDocument(r.Context(), req.Text)
	if err != nil {
		writeContentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, textResult{Text: text})
}

// FetchWebsiteContent — POST /api/v1/content/web-export.
func (h *APIHandler) FetchWebsiteContent(w http.ResponseWriter, r *http.Request) {
	var req webExportRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	doc, err := h.content.FetchWebsiteContent(r.Context(), req.URL)
	if err != nil {
		writeContentError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// GetLastWebExport — GET /api/v1/content/web-export.
func (h *APIHandler) GetLastWebExport(w http.ResponseWriter, _ *http.Request) {
	doc, ok := h.content.LastWebExport()
	if !ok {
		apierrors.NotFound(w, "Экспорт сайта ещё не выполнялся")
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

// writeContentError сопоставляет ошибки ContentService с ответами API.
// Логирование и уведомление о сбое выполняет сервис.
func writeContentError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, service.ErrInvalidInput):
		apierrors.ValidationError(w, err.Error())
	case errors.Is(err, service.ErrBusy):
		apierrors.ContentBusy(w, "Операция уже выполняется, дождитесь результата")
	case errors.Is(err, genai.ErrNoAPIKey):
		apierrors.GenerationNotConfigured(w, "Сервис генерации не настроен: не задан CF_GENAI_API_KEY")
	case errors.Is(err, service.ErrGenerationFailed):
		apierrors.GenerationFailed(w, "Сервис генерации текста вернул ошибку")
	default:
		apierrors.InternalError(w, "Внутренняя ошибка генерации контента")
	}
}
