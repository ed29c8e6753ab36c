// Пакет errors — конструкторы стандартных ошибок CloudFile API.
// Единый формат: {"error": {"code": "...", "message": "..."}}.
// Все HTTP-ответы с ошибками должны использовать WriteError.
package errors

import (
	"encoding/json"
	"net/http"
)

// Коды ошибок, определённые в OpenAPI контракте.
const (
	CodeValidationError      = "VALIDATION_ERROR"
	CodeNotFound             = "NOT_FOUND"
	CodeUnsupportedFileType  = "UNSUPPORTED_FILE_TYPE"
	CodeRouteNotAccepting    = "ROUTE_NOT_ACCEPTING_FILES"
	CodeJobNotReady          = "JOB_NOT_READY"
	CodeContentBusy          = "CONTENT_BUSY"
	CodeGenerationFailed     = "GENERATION_FAILED"
	CodeInternalError        = "INTERNAL_ERROR"
	CodeRequestBodyTooLarge  = "REQUEST_BODY_TOO_LARGE"
	CodeGenerationNotEnabled = "GENERATION_NOT_CONFIGURED"
)

// errorBody — структура тела ответа ошибки.
type errorBody struct {
	Error errorDetail `json:"error"`
}

// errorDetail — детали ошибки.
type errorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteError записывает ответ ошибки в стандартном формате.
// statusCode — HTTP статус-код, code — машиночитаемый код, message — описание.
func WriteError(w http.ResponseWriter, statusCode int, code, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(errorBody{
		Error: errorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// --- Конструкторы для типичных ошибок ---

// ValidationError — 400 некорректные входные данные.
func ValidationError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadRequest, CodeValidationError, message)
}

// NotFound — 404 ресурс не найден.
func NotFound(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusNotFound, CodeNotFound, message)
}

// UnsupportedFileType — 415 тип файла не поддерживается модулем.
func UnsupportedFileType(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusUnsupportedMediaType, CodeUnsupportedFileType, message)
}

// RouteNotAccepting — 409 активный маршрут не принимает файлы.
func RouteNotAccepting(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeRouteNotAccepting, message)
}

// JobNotReady — 409 задание ещё не завершено.
func JobNotReady(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeJobNotReady, message)
}

// ContentBusy — 409 такая же операция генерации уже выполняется.
func ContentBusy(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusConflict, CodeContentBusy, message)
}

// GenerationFailed — 502 сбой сервиса генерации текста.
func GenerationFailed(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusBadGateway, CodeGenerationFailed, message)
}

// GenerationNotConfigured — 503 не задан API-ключ сервиса генерации.
func GenerationNotConfigured(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusServiceUnavailable, CodeGenerationNotEnabled, message)
}

// RequestBodyTooLarge — 413 тело запроса превышает CF_MAX_REQUEST_BODY.
func RequestBodyTooLarge(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusRequestEntityTooLarge, CodeRequestBodyTooLarge, message)
}

// InternalError — 500 внутренняя ошибка.
func InternalError(w http.ResponseWriter, message string) {
	WriteError(w, http.StatusInternalServerError, CodeInternalError, message)
}
